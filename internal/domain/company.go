package domain

import "time"

// Company is a customer organisation.
type Company struct {
	ID               string
	Name             string
	Email            string
	Phone            *string
	Address          *string
	PrimaryContactID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Contact is a person at a company. A CUSTOMER user is linked to the
// contact whose email equals the user's email.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
