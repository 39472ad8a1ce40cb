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

// TimeEntryFilter narrows time entry listings. From and To bound StartTime.
// Results come in creation order unless NewestFirst is set. A zero Limit
// returns every match.
type TimeEntryFilter struct {
	TicketID    *string
	UserID      *string
	From        *time.Time
	To          *time.Time
	Billable    *bool
	NewestFirst bool
	Limit       int
	Offset      int
}

// TimeEntryRepository manages time entries.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) error
	Update(ctx context.Context, entry *domain.TimeEntry) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.TimeEntry, error)
	List(ctx context.Context, filter TimeEntryFilter) ([]domain.TimeEntry, error)
}

type timeEntryRepository struct {
	pool *pgxpool.Pool
}

// NewTimeEntryRepository builds repository.
func NewTimeEntryRepository(pool *pgxpool.Pool) TimeEntryRepository {
	return &timeEntryRepository{pool: pool}
}

const timeEntryColumns = `id, ticket_id, user_id, description, start_time, end_time, duration, billable, created_at, updated_at`

func (r *timeEntryRepository) Create(ctx context.Context, entry *domain.TimeEntry) error {
	const query = `
        INSERT INTO time_entries (ticket_id, user_id, description, start_time, end_time, duration, billable)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Description,
		entry.StartTime,
		entry.EndTime,
		entry.Duration,
		entry.Billable,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
}

func (r *timeEntryRepository) Update(ctx context.Context, entry *domain.TimeEntry) error {
	const query = `
        UPDATE time_entries SET description=$1, start_time=$2, end_time=$3, duration=$4, billable=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.Description,
		entry.StartTime,
		entry.EndTime,
		entry.Duration,
		entry.Billable,
		entry.ID,
	).Scan(&entry.UpdatedAt)
}

func (r *timeEntryRepository) Delete(ctx context.Context, id string) error {
	if !isID(id) {
		return pgx.ErrNoRows
	}
	return affectedOne(conn(ctx, r.pool).Exec(ctx, `DELETE FROM time_entries WHERE id=$1`, id))
}

func (r *timeEntryRepository) GetByID(ctx context.Context, id string) (*domain.TimeEntry, error) {
	if !isID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanTimeEntry(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id=$1`, id))
}

func (r *timeEntryRepository) List(ctx context.Context, filter TimeEntryFilter) ([]domain.TimeEntry, error) {
	if !allIDs(filter.TicketID, filter.UserID) {
		return []domain.TimeEntry{}, nil
	}

	clauses := []string{"1=1"}
	args := []any{}
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}
	if filter.TicketID != nil {
		add("ticket_id=$%d", *filter.TicketID)
	}
	if filter.UserID != nil {
		add("user_id=$%d", *filter.UserID)
	}
	if filter.From != nil {
		add("start_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time <= $%d", *filter.To)
	}
	if filter.Billable != nil {
		add("billable=$%d", *filter.Billable)
	}

	order := "created_at ASC"
	if filter.NewestFirst {
		order = "start_time DESC, created_at DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE %s ORDER BY %s`,
		timeEntryColumns, strings.Join(clauses, " AND "), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, max(filter.Offset, 0))
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TimeEntry{}
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func scanTimeEntry(row pgx.Row) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.UserID,
		&entry.Description,
		&entry.StartTime,
		&entry.EndTime,
		&entry.Duration,
		&entry.Billable,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
