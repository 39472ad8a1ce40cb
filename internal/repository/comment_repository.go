package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	Update(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	// ListByTicket returns comments oldest first; internal comments are
	// omitted unless includeInternal is set.
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, user_id, content, is_internal, created_at, updated_at`

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, user_id, content, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

func (r *commentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	const query = `
        UPDATE comments SET content=$1, is_internal=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query, comment.Content, comment.IsInternal, comment.ID).
		Scan(&comment.UpdatedAt)
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM comments WHERE id=$1`, id))
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanComment(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, id))
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND NOT is_internal`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var comment domain.Comment
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.UserID,
		&comment.Content,
		&comment.IsInternal,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}
