package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Roles      []domain.Role
	ActiveOnly bool
}

// UserRepository defines persistence access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// SetRefreshToken replaces the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// RotateRefreshToken swaps expected for next atomically. It returns
	// pgx.ErrNoRows when the stored token is no longer expected.
	RotateRefreshToken(ctx context.Context, id, expected, next string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, is_active, refresh_token, last_login, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return conn(ctx, r.pool).QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	return conn(ctx, r.pool).QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id=$1`, id))
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, roles)
		clauses = append(clauses, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY name ASC`, userColumns, strings.Join(clauses, " AND "))
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE users SET refresh_token=$1, updated_at=NOW() WHERE id=$2`
	return affectedOne(conn(ctx, r.pool).Exec(ctx, query, token, id))
}

func (r *userRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) error {
	const query = `UPDATE users SET refresh_token=$1, updated_at=NOW() WHERE id=$2 AND refresh_token=$3`
	return affectedOne(conn(ctx, r.pool).Exec(ctx, query, next, id, expected))
}

func (r *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login=$1 WHERE id=$2`
	return affectedOne(conn(ctx, r.pool).Exec(ctx, query, at, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.RefreshToken,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
