package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultTicketLimit applies when a listing does not set a limit.
const DefaultTicketLimit = 50

// TicketFilter is the storage-level ticket query. MatchNone short-circuits
// to an empty result; it is how a caller with no visible tickets is scoped.
type TicketFilter struct {
	Statuses        []domain.TicketStatus
	ExcludeStatuses []domain.TicketStatus
	Priority        *domain.TicketPriority
	AssignedToID    *string
	CompanyID       *string
	ContactID       *string
	CreatedByID     *string
	MatchNone       bool
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
	CountByContact(ctx context.Context, contactID string) (int, error)
	SetWorkSummary(ctx context.Context, id string, summary *string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, company_id, contact_id, assigned_to_id,
               created_by_id, estimated_minutes, work_summary, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, company_id, contact_id, assigned_to_id, created_by_id, estimated_minutes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CompanyID,
		ticket.ContactID,
		ticket.AssignedToID,
		ticket.CreatedByID,
		ticket.EstimatedMinutes,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, assigned_to_id=$5,
            estimated_minutes=$6, company_id=$7, contact_id=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedToID,
		ticket.EstimatedMinutes,
		ticket.CompanyID,
		ticket.ContactID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id))
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanTicket(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if filter.MatchNone || !allIDs(filter.AssignedToID, filter.CompanyID, filter.ContactID, filter.CreatedByID) {
		return []domain.Ticket{}, nil
	}

	clauses := []string{"1=1"}
	args := []any{}
	eq := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.ExcludeStatuses) > 0 {
		args = append(args, statusStrings(filter.ExcludeStatuses))
		clauses = append(clauses, fmt.Sprintf("NOT (status = ANY($%d))", len(args)))
	}
	if filter.Priority != nil {
		eq("priority", *filter.Priority)
	}
	if filter.AssignedToID != nil {
		eq("assigned_to_id", *filter.AssignedToID)
	}
	if filter.CompanyID != nil {
		eq("company_id", *filter.CompanyID)
	}
	if filter.ContactID != nil {
		eq("contact_id", *filter.ContactID)
	}
	if filter.CreatedByID != nil {
		eq("created_by_id", *filter.CreatedByID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultTicketLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE company_id=$1`, companyID).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByContact(ctx context.Context, contactID string) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE contact_id=$1`, contactID).Scan(&count)
	return count, err
}

func (r *ticketRepository) SetWorkSummary(ctx context.Context, id string, summary *string) error {
	const query = `UPDATE tickets SET work_summary=$1, updated_at=NOW() WHERE id=$2`
	return affectedOne(conn(ctx, r.pool).Exec(ctx, query, summary, id))
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CompanyID,
		&ticket.ContactID,
		&ticket.AssignedToID,
		&ticket.CreatedByID,
		&ticket.EstimatedMinutes,
		&ticket.WorkSummary,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
