package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRequest is used for create and partial update. An empty
// primary_contact_id clears the primary contact.
type CompanyRequest struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Address          *string `json:"address"`
	PrimaryContactID *string `json:"primary_contact_id"`
}

// ContactRequest is used for create and partial update.
type ContactRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	CompanyID *string `json:"company_id"`
}

// CompanyResponse is one company. Contacts are only set on detail reads.
type CompanyResponse struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	Phone            *string           `json:"phone"`
	Address          *string           `json:"address"`
	PrimaryContactID *string           `json:"primary_contact_id"`
	Contacts         []ContactResponse `json:"contacts,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ContactResponse is one contact.
type ContactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CompanyID string    `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCompanyResponse converts a company.
func NewCompanyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		Address:          c.Address,
		PrimaryContactID: c.PrimaryContactID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// NewCompanyList converts companies.
func NewCompanyList(companies []domain.Company) []CompanyResponse {
	out := make([]CompanyResponse, len(companies))
	for i := range companies {
		out[i] = NewCompanyResponse(&companies[i])
	}
	return out
}

// NewContactResponse converts a contact.
func NewContactResponse(c *domain.Contact) ContactResponse {
	return ContactResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CompanyID: c.CompanyID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewContactList converts contacts.
func NewContactList(contacts []domain.Contact) []ContactResponse {
	out := make([]ContactResponse, len(contacts))
	for i := range contacts {
		out[i] = NewContactResponse(&contacts[i])
	}
	return out
}
