package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ContactRepository encapsulates contact persistence.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	Update(ctx context.Context, contact *domain.Contact) error
	Delete(ctx context.Context, id string) error
	DeleteByCompany(ctx context.Context, companyID string) error
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Contact, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository instantiates repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

const contactColumns = `id, name, email, phone, company_id, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (name, email, phone, company_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.CompanyID,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	const query = `
        UPDATE contacts SET name=$1, email=$2, phone=$3, company_id=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.CompanyID,
		contact.ID,
	).Scan(&contact.UpdatedAt)
}

func (r *contactRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM contacts WHERE id=$1`, id))
}

func (r *contactRepository) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM contacts WHERE company_id=$1`, companyID)
	return err
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanContact(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id=$1`, id))
}

// GetByEmail matches case-insensitively; this lookup links CUSTOMER
// accounts to their contact record.
func (r *contactRepository) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	return scanContact(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE LOWER(email)=$1 LIMIT 1`, strings.ToLower(email)))
}

func (r *contactRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Contact, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE company_id=$1 ORDER BY name ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *contact)
	}
	return result, rows.Err()
}

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var contact domain.Contact
	if err := row.Scan(
		&contact.ID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.CompanyID,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}
