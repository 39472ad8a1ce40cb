package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CompaniesHandler manages customer companies and their contacts.
type CompaniesHandler struct {
	service *service.CompanyService
}

// NewCompaniesHandler constructs handler.
func NewCompaniesHandler(companyService *service.CompanyService) *CompaniesHandler {
	return &CompaniesHandler{service: companyService}
}

// List GET /api/companies.
func (h *CompaniesHandler) List(c *fiber.Ctx) error {
	companies, err := h.service.List(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewCompanyList(companies))
}

// Get GET /api/companies/:id, including contacts.
func (h *CompaniesHandler) Get(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.NewCompanyResponse(detail.Company)
	resp.Contacts = dto.NewContactList(detail.Contacts)
	return data(c, resp)
}

// Create POST /api/companies.
func (h *CompaniesHandler) Create(c *fiber.Ctx) error {
	var req dto.CompanyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	company, err := h.service.Create(c.UserContext(), auth.Principal(c), companyInput(req))
	if err != nil {
		return err
	}
	return created(c, dto.NewCompanyResponse(company))
}

// Update PATCH /api/companies/:id.
func (h *CompaniesHandler) Update(c *fiber.Ctx) error {
	var req dto.CompanyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	company, err := h.service.Update(c.UserContext(), auth.Principal(c), c.Params("id"), companyInput(req))
	if err != nil {
		return err
	}
	return data(c, dto.NewCompanyResponse(company))
}

// Delete DELETE /api/companies/:id.
func (h *CompaniesHandler) Delete(c *fiber.Ctx) error {
	company, err := h.service.Delete(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewCompanyResponse(company))
}

// Contacts GET /api/companies/:id/contacts.
func (h *CompaniesHandler) Contacts(c *fiber.Ctx) error {
	contacts, err := h.service.Contacts(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewContactList(contacts))
}

// MyContact GET /api/contacts/me. Customers without a contact get null.
func (h *CompaniesHandler) MyContact(c *fiber.Ctx) error {
	contact, err := h.service.MyContactInfo(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	if contact == nil {
		return data(c, nil)
	}
	return data(c, dto.NewContactResponse(contact))
}

// GetContact GET /api/contacts/:id.
func (h *CompaniesHandler) GetContact(c *fiber.Ctx) error {
	contact, err := h.service.GetContact(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewContactResponse(contact))
}

// CreateContact POST /api/contacts.
func (h *CompaniesHandler) CreateContact(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contact, err := h.service.CreateContact(c.UserContext(), auth.Principal(c), contactInput(req))
	if err != nil {
		return err
	}
	return created(c, dto.NewContactResponse(contact))
}

// UpdateContact PATCH /api/contacts/:id.
func (h *CompaniesHandler) UpdateContact(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contact, err := h.service.UpdateContact(c.UserContext(), auth.Principal(c), c.Params("id"), contactInput(req))
	if err != nil {
		return err
	}
	return data(c, dto.NewContactResponse(contact))
}

// DeleteContact DELETE /api/contacts/:id.
func (h *CompaniesHandler) DeleteContact(c *fiber.Ctx) error {
	contact, err := h.service.DeleteContact(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewContactResponse(contact))
}

func companyInput(req dto.CompanyRequest) service.CompanyInput {
	return service.CompanyInput{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		PrimaryContactID: req.PrimaryContactID,
	}
}

func contactInput(req dto.ContactRequest) service.ContactInput {
	return service.ContactInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CompanyID: req.CompanyID,
	}
}
