package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MaxAuditLimit caps a single audit listing.
const MaxAuditLimit = 500

// AuditLogFilter narrows audit listings. UserEmail and IPAddress match as
// case-insensitive substrings.
type AuditLogFilter struct {
	Action    string
	Resource  string
	UserEmail string
	IPAddress string
	Since     *time.Time
	Limit     int
	Offset    int
}

// AuditLogRepository persists audit entries.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	const query = `
        INSERT INTO audit_logs (user_id, action, resource, details, ip_address, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, timestamp`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.UserID,
		entry.Action,
		entry.Resource,
		details,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLog, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}
	if filter.Action != "" {
		add("a.action=$%d", filter.Action)
	}
	if filter.Resource != "" {
		add("a.resource=$%d", filter.Resource)
	}
	if filter.IPAddress != "" {
		add("a.ip_address ILIKE $%d", "%"+filter.IPAddress+"%")
	}
	if filter.UserEmail != "" {
		add("u.email ILIKE $%d", "%"+filter.UserEmail+"%")
	}
	if filter.Since != nil {
		add("a.timestamp >= $%d", *filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	query := fmt.Sprintf(`
        SELECT a.id, a.user_id, u.email, a.action, a.resource, a.details, a.ip_address, a.user_agent, a.timestamp
        FROM audit_logs a
        LEFT JOIN users u ON u.id::text = a.user_id
        WHERE %s
        ORDER BY a.timestamp DESC
        LIMIT %d OFFSET %d`, strings.Join(clauses, " AND "), limit, max(filter.Offset, 0))

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AuditLog{}
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.UserEmail,
			&entry.Action,
			&entry.Resource,
			&entry.Details,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
