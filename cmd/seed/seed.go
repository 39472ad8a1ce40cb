package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type seedOptions struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
	Demo          bool
	DemoPassword  string
}

type seedReport struct {
	Created []string
	Skipped []string
}

func (r *seedReport) created(kind, key string) { r.Created = append(r.Created, kind+":"+key) }
func (r *seedReport) skipped(kind, key string) { r.Skipped = append(r.Skipped, kind+":"+key) }

const (
	demoCompanyEmail  = "office@acme.example"
	demoEmployeeEmail = "employee@helpdesk.local"
	demoCustomerEmail = "customer@acme.example"
	demoTicketTitle   = "Welcome to the helpdesk"
)

func seed(ctx context.Context, repos repository.Set, services *service.Services, bcryptCost int, opts seedOptions) (*seedReport, error) {
	report := &seedReport{}

	admin, err := repos.Users.GetByEmail(ctx, opts.AdminEmail)
	switch {
	case err == nil:
		report.skipped("user", opts.AdminEmail)
	case apperrors.IsNotFound(err):
		hash, err := auth.HashPassword(opts.AdminPassword, bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		admin = &domain.User{
			Name:         opts.AdminName,
			Email:        opts.AdminEmail,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			IsActive:     true,
		}
		if err := repos.Users.Create(ctx, admin); err != nil {
			return nil, fmt.Errorf("create admin: %w", err)
		}
		report.created("user", opts.AdminEmail)
	default:
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	if !opts.Demo {
		return report, nil
	}
	return report, seedDemo(ctx, repos, services, admin.Principal(), opts.DemoPassword, report)
}

func seedDemo(ctx context.Context, repos repository.Set, services *service.Services, admin *domain.Principal, password string, report *seedReport) error {
	employee, err := ensureUser(ctx, repos, services, admin, report, service.UserCreateInput{
		Name: "Demo Employee", Email: demoEmployeeEmail, Password: password, Role: domain.RoleEmployee,
	})
	if err != nil {
		return err
	}

	company, err := repos.Companies.GetByEmail(ctx, demoCompanyEmail)
	if apperrors.IsNotFound(err) {
		company, err = services.Companies.Create(ctx, admin, service.CompanyInput{
			Name:    ptr("Acme GmbH"),
			Email:   ptr(demoCompanyEmail),
			Phone:   ptr("+49 30 1234567"),
			Address: ptr("Hauptstrasse 1, 10115 Berlin"),
		})
		if err != nil {
			return fmt.Errorf("create demo company: %w", err)
		}
		report.created("company", demoCompanyEmail)
	} else if err != nil {
		return fmt.Errorf("lookup demo company: %w", err)
	} else {
		report.skipped("company", demoCompanyEmail)
	}

	contact, err := repos.Contacts.GetByEmail(ctx, demoCustomerEmail)
	if apperrors.IsNotFound(err) {
		contact, err = services.Companies.CreateContact(ctx, admin, service.ContactInput{
			Name:      ptr("Demo Customer"),
			Email:     ptr(demoCustomerEmail),
			CompanyID: &company.ID,
		})
		if err != nil {
			return fmt.Errorf("create demo contact: %w", err)
		}
		report.created("contact", demoCustomerEmail)
		if _, err := services.Companies.Update(ctx, admin, company.ID, service.CompanyInput{PrimaryContactID: &contact.ID}); err != nil {
			return fmt.Errorf("set primary contact: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("lookup demo contact: %w", err)
	} else {
		report.skipped("contact", demoCustomerEmail)
	}

	if _, err := ensureUser(ctx, repos, services, admin, report, service.UserCreateInput{
		Name: "Demo Customer", Email: demoCustomerEmail, Password: password, Role: domain.RoleCustomer,
	}); err != nil {
		return err
	}

	existing, err := repos.Tickets.CountByContact(ctx, contact.ID)
	if err != nil {
		return fmt.Errorf("count demo tickets: %w", err)
	}
	if existing > 0 {
		report.skipped("ticket", demoTicketTitle)
		return nil
	}
	ticket, err := services.Tickets.Create(ctx, employee, service.TicketCreateInput{
		Title:            demoTicketTitle,
		Description:      "This ticket was created by the seed tool. Feel free to comment on it or log time.",
		CompanyID:        company.ID,
		ContactID:        contact.ID,
		AssignedToID:     &employee.ID,
		Priority:         domain.TicketPriorityLow,
		EstimatedMinutes: ptr(30),
	})
	if err != nil {
		return fmt.Errorf("create demo ticket: %w", err)
	}
	report.created("ticket", demoTicketTitle)

	end := time.Now().UTC().Truncate(time.Minute)
	if _, err := services.TimeEntries.Create(ctx, employee, service.TimeEntryCreateInput{
		TicketID:    ticket.ID,
		Description: "Initial triage",
		StartTime:   end.Add(-20 * time.Minute),
		EndTime:     end,
	}); err != nil {
		return fmt.Errorf("create demo time entry: %w", err)
	}
	report.created("time_entry", ticket.ID)
	return nil
}

func ensureUser(ctx context.Context, repos repository.Set, services *service.Services, admin *domain.Principal, report *seedReport, input service.UserCreateInput) (*domain.Principal, error) {
	existing, err := repos.Users.GetByEmail(ctx, input.Email)
	if err == nil {
		report.skipped("user", input.Email)
		return existing.Principal(), nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("lookup %s: %w", input.Email, err)
	}
	user, err := services.Users.Create(ctx, admin, input)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", input.Email, err)
	}
	report.created("user", input.Email)
	return user.Principal(), nil
}

func ptr[T any](v T) *T {
	return &v
}
