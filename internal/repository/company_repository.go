package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRepository encapsulates company persistence.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	Update(ctx context.Context, company *domain.Company) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	GetByEmail(ctx context.Context, email string) (*domain.Company, error)
	List(ctx context.Context) ([]domain.Company, error)
	// ClearPrimaryContact nulls primary_contact_id on every company that
	// points at one of contactIDs.
	ClearPrimaryContact(ctx context.Context, contactIDs []string) error
}

type companyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository instantiates repository.
func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepository{pool: pool}
}

const companyColumns = `id, name, email, phone, address, primary_contact_id, created_at, updated_at`

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, email, phone, address, primary_contact_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		company.Name,
		company.Email,
		company.Phone,
		company.Address,
		company.PrimaryContactID,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
}

func (r *companyRepository) Update(ctx context.Context, company *domain.Company) error {
	const query = `
        UPDATE companies SET name=$1, email=$2, phone=$3, address=$4, primary_contact_id=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		company.Name,
		company.Email,
		company.Phone,
		company.Address,
		company.PrimaryContactID,
		company.ID,
	).Scan(&company.UpdatedAt)
}

func (r *companyRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM companies WHERE id=$1`, id))
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanCompany(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=$1`, id))
}

func (r *companyRepository) GetByEmail(ctx context.Context, email string) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE email=$1`, strings.ToLower(email)))
}

func (r *companyRepository) List(ctx context.Context) ([]domain.Company, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *company)
	}
	return result, rows.Err()
}

func (r *companyRepository) ClearPrimaryContact(ctx context.Context, contactIDs []string) error {
	if len(contactIDs) == 0 {
		return nil
	}
	const query = `
        UPDATE companies SET primary_contact_id=NULL, updated_at=NOW()
        WHERE primary_contact_id = ANY($1::uuid[])`
	_, err := conn(ctx, r.pool).Exec(ctx, query, contactIDs)
	return err
}

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var company domain.Company
	if err := row.Scan(
		&company.ID,
		&company.Name,
		&company.Email,
		&company.Phone,
		&company.Address,
		&company.PrimaryContactID,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &company, nil
}
