package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// CompanyService manages customer organisations and their contacts.
type CompanyService struct {
	companies repository.CompanyRepository
	contacts  repository.ContactRepository
	tickets   repository.TicketRepository
	tx        repository.Transactor
	policy    *policy.Policy
	audit     *audit.Recorder
	logger    *zap.Logger
}

// CompanyDependencies bundles requirements for the company service.
type CompanyDependencies struct {
	CompanyRepo repository.CompanyRepository
	ContactRepo repository.ContactRepository
	TicketRepo  repository.TicketRepository
	Transactor  repository.Transactor
	Policy      *policy.Policy
	Audit       *audit.Recorder
	Logger      *zap.Logger
}

// CompanyInput is used for create and, with nil fields left untouched,
// for update. An empty PrimaryContactID clears the primary contact.
type CompanyInput struct {
	Name             *string
	Email            *string
	Phone            *string
	Address          *string
	PrimaryContactID *string
}

// ContactInput is used for create and partial update.
type ContactInput struct {
	Name      *string
	Email     *string
	Phone     *string
	CompanyID *string
}

// CompanyDetail is a company with its contacts.
type CompanyDetail struct {
	Company  *domain.Company
	Contacts []domain.Contact
}

// NewCompanyService constructs the service.
func NewCompanyService(deps CompanyDependencies) *CompanyService {
	return &CompanyService{
		companies: deps.CompanyRepo,
		contacts:  deps.ContactRepo,
		tickets:   deps.TicketRepo,
		tx:        deps.Transactor,
		policy:    deps.Policy,
		audit:     deps.Audit,
		logger:    nopLogger(deps.Logger),
	}
}

// List returns every company ordered by name.
func (s *CompanyService) List(ctx context.Context, principal *domain.Principal) ([]domain.Company, error) {
	if err := policy.Authorize(principal, policy.CompanyView, policy.Resource{}); err != nil {
		return nil, err
	}
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, err
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	return companies, nil
}

// Get returns a company with its contacts.
func (s *CompanyService) Get(ctx context.Context, principal *domain.Principal, id string) (*CompanyDetail, error) {
	if err := policy.Authorize(principal, policy.CompanyView, policy.Resource{}); err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "company")
	}
	contacts, err := s.contacts.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	return &CompanyDetail{Company: company, Contacts: contacts}, nil
}

// Create registers a company.
func (s *CompanyService) Create(ctx context.Context, principal *domain.Principal, input CompanyInput) (*domain.Company, error) {
	if err := policy.Authorize(principal, policy.CompanyManage, policy.Resource{}); err != nil {
		return nil, err
	}
	if input.Name == nil || !validName(*input.Name) {
		return nil, apperrors.NewUserInput("company name must be at least 2 characters long")
	}
	if input.Email == nil || !validEmail(*input.Email) {
		return nil, apperrors.NewUserInput("invalid email format")
	}
	phone, err := optionalPhone(input.Phone)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(*input.Email)
	if err := s.ensureCompanyEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	company := &domain.Company{
		Name:    strings.TrimSpace(*input.Name),
		Email:   email,
		Phone:   phone,
		Address: optionalText(input.Address),
	}
	if input.PrimaryContactID != nil && *input.PrimaryContactID != "" {
		contact, err := s.contacts.GetByID(ctx, *input.PrimaryContactID)
		if err != nil {
			return nil, lookupError(err, "primary contact not found")
		}
		company.PrimaryContactID = &contact.ID
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionCompanyCreate,
		Resource: audit.ResourceCompany,
		Details:  map[string]any{"companyId": company.ID, "name": company.Name},
	})
	return company, nil
}

// Update applies a partial update to a company.
func (s *CompanyService) Update(ctx context.Context, principal *domain.Principal, id string, input CompanyInput) (*domain.Company, error) {
	if err := policy.Authorize(principal, policy.CompanyManage, policy.Resource{}); err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "company not found")
	}
	if input.Name != nil {
		if !validName(*input.Name) {
			return nil, apperrors.NewUserInput("company name must be at least 2 characters long")
		}
		company.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		if !validEmail(*input.Email) {
			return nil, apperrors.NewUserInput("invalid email format")
		}
		email := normalizeEmail(*input.Email)
		if err := s.ensureCompanyEmailFree(ctx, email, company.ID); err != nil {
			return nil, err
		}
		company.Email = email
	}
	if input.Phone != nil {
		if company.Phone, err = optionalPhone(input.Phone); err != nil {
			return nil, err
		}
	}
	if input.Address != nil {
		company.Address = optionalText(input.Address)
	}
	if input.PrimaryContactID != nil {
		if *input.PrimaryContactID == "" {
			company.PrimaryContactID = nil
		} else {
			contact, err := s.contacts.GetByID(ctx, *input.PrimaryContactID)
			if err != nil {
				return nil, lookupError(err, "primary contact not found")
			}
			if contact.CompanyID != company.ID {
				return nil, apperrors.NewUserInput("primary contact must belong to this company")
			}
			company.PrimaryContactID = &contact.ID
		}
	}

	if err := s.companies.Update(ctx, company); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionCompanyUpdate,
		Resource: audit.ResourceCompany,
		Details:  map[string]any{"companyId": company.ID},
	})
	return company, nil
}

// Delete removes a company and its contacts. Companies with tickets are
// never deleted.
func (s *CompanyService) Delete(ctx context.Context, principal *domain.Principal, id string) (*domain.Company, error) {
	if err := policy.Authorize(principal, policy.CompanyDelete, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("only admins can delete companies")
		}
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "company not found")
	}
	count, err := s.tickets.CountByCompany(ctx, company.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if count > 0 {
		return nil, apperrors.NewUserInput("cannot delete company with existing tickets")
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		contacts, err := s.contacts.ListByCompany(ctx, company.ID)
		if err != nil {
			return fmt.Errorf("list contacts: %w", err)
		}
		ids := make([]string, len(contacts))
		for i, c := range contacts {
			ids[i] = c.ID
		}
		if err := s.companies.ClearPrimaryContact(ctx, ids); err != nil {
			return fmt.Errorf("clear primary contacts: %w", err)
		}
		if err := s.contacts.DeleteByCompany(ctx, company.ID); err != nil {
			return fmt.Errorf("delete contacts: %w", err)
		}
		return s.companies.Delete(ctx, company.ID)
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionCompanyDelete,
		Resource: audit.ResourceCompany,
		Details:  map[string]any{"companyId": company.ID, "name": company.Name},
	})
	return company, nil
}

// Contacts lists the contacts of a company.
func (s *CompanyService) Contacts(ctx context.Context, principal *domain.Principal, companyID string) ([]domain.Contact, error) {
	detail, err := s.Get(ctx, principal, companyID)
	if err != nil {
		return nil, err
	}
	return detail.Contacts, nil
}

// GetContact returns one contact.
func (s *CompanyService) GetContact(ctx context.Context, principal *domain.Principal, id string) (*domain.Contact, error) {
	if err := policy.Authorize(principal, policy.CompanyView, policy.Resource{}); err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "contact")
	}
	return contact, nil
}

// MyContactInfo returns the calling customer's contact, or nil when the
// account has none.
func (s *CompanyService) MyContactInfo(ctx context.Context, principal *domain.Principal) (*domain.Contact, error) {
	if err := policy.Authorize(principal, policy.ContactSelf, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("only customers can access this endpoint")
		}
		return nil, err
	}
	contact, err := s.policy.CustomerContact(ctx, principal)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return contact, nil
}

// CreateContact adds a contact to an existing company.
func (s *CompanyService) CreateContact(ctx context.Context, principal *domain.Principal, input ContactInput) (*domain.Contact, error) {
	if err := policy.Authorize(principal, policy.ContactManage, policy.Resource{}); err != nil {
		return nil, err
	}
	if input.Name == nil || !validName(*input.Name) {
		return nil, apperrors.NewUserInput("contact name must be at least 2 characters long")
	}
	if input.Email == nil || !validEmail(*input.Email) {
		return nil, apperrors.NewUserInput("invalid email format")
	}
	phone, err := optionalPhone(input.Phone)
	if err != nil {
		return nil, err
	}
	if input.CompanyID == nil {
		return nil, apperrors.NewUserInput("company not found")
	}
	company, err := s.companies.GetByID(ctx, *input.CompanyID)
	if err != nil {
		return nil, lookupError(err, "company not found")
	}
	email := normalizeEmail(*input.Email)
	if err := s.ensureContactEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	contact := &domain.Contact{
		Name:      strings.TrimSpace(*input.Name),
		Email:     email,
		Phone:     phone,
		CompanyID: company.ID,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionContactCreate,
		Resource: audit.ResourceContact,
		Details:  map[string]any{"contactId": contact.ID, "companyId": company.ID},
	})
	return contact, nil
}

// UpdateContact applies a partial update. Moving a contact to another
// company clears it as primary contact of the old one.
func (s *CompanyService) UpdateContact(ctx context.Context, principal *domain.Principal, id string, input ContactInput) (*domain.Contact, error) {
	if err := policy.Authorize(principal, policy.ContactManage, policy.Resource{}); err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "contact not found")
	}
	if input.Name != nil {
		if !validName(*input.Name) {
			return nil, apperrors.NewUserInput("contact name must be at least 2 characters long")
		}
		contact.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		if !validEmail(*input.Email) {
			return nil, apperrors.NewUserInput("invalid email format")
		}
		email := normalizeEmail(*input.Email)
		if err := s.ensureContactEmailFree(ctx, email, contact.ID); err != nil {
			return nil, err
		}
		contact.Email = email
	}
	if input.Phone != nil {
		if contact.Phone, err = optionalPhone(input.Phone); err != nil {
			return nil, err
		}
	}
	moved := false
	if input.CompanyID != nil && *input.CompanyID != contact.CompanyID {
		company, err := s.companies.GetByID(ctx, *input.CompanyID)
		if err != nil {
			return nil, lookupError(err, "company not found")
		}
		contact.CompanyID = company.ID
		moved = true
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if moved {
			if err := s.companies.ClearPrimaryContact(ctx, []string{contact.ID}); err != nil {
				return fmt.Errorf("clear primary contact: %w", err)
			}
		}
		return s.contacts.Update(ctx, contact)
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionContactUpdate,
		Resource: audit.ResourceContact,
		Details:  map[string]any{"contactId": contact.ID},
	})
	return contact, nil
}

// DeleteContact removes a contact without tickets and clears it as primary
// contact wherever it was one.
func (s *CompanyService) DeleteContact(ctx context.Context, principal *domain.Principal, id string) (*domain.Contact, error) {
	if err := policy.Authorize(principal, policy.ContactDelete, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("only admins can delete contacts")
		}
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "contact not found")
	}
	count, err := s.tickets.CountByContact(ctx, contact.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if count > 0 {
		return nil, apperrors.NewUserInput("cannot delete contact with existing tickets")
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.companies.ClearPrimaryContact(ctx, []string{contact.ID}); err != nil {
			return fmt.Errorf("clear primary contact: %w", err)
		}
		return s.contacts.Delete(ctx, contact.ID)
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionContactDelete,
		Resource: audit.ResourceContact,
		Details:  map[string]any{"contactId": contact.ID, "companyId": contact.CompanyID},
	})
	return contact, nil
}

func (s *CompanyService) ensureCompanyEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.companies.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.NewInternalError(err)
	}
	if existing.ID != selfID {
		return apperrors.NewUserInput("company with this email already exists")
	}
	return nil
}

func (s *CompanyService) ensureContactEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.contacts.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.NewInternalError(err)
	}
	if existing.ID != selfID {
		return apperrors.NewUserInput("contact with this email already exists")
	}
	return nil
}

// notFound maps a missing row to NOT_FOUND for resource and anything else
// to an internal error.
func notFound(err error, resource string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewInternalError(err)
}
