package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Set bundles one implementation of every repository.
type Set struct {
	Users       UserRepository
	Companies   CompanyRepository
	Contacts    ContactRepository
	Tickets     TicketRepository
	Comments    CommentRepository
	TimeEntries TimeEntryRepository
	History     TicketHistoryRepository
	AuditLogs   AuditLogRepository
	Transactor  Transactor
}

// NewPostgresSet returns pgx backed repositories sharing pool.
func NewPostgresSet(pool *pgxpool.Pool, logger *zap.Logger) Set {
	return Set{
		Users:       NewUserRepository(pool),
		Companies:   NewCompanyRepository(pool),
		Contacts:    NewContactRepository(pool),
		Tickets:     NewTicketRepository(pool),
		Comments:    NewCommentRepository(pool),
		TimeEntries: NewTimeEntryRepository(pool),
		History:     NewTicketHistoryRepository(pool),
		AuditLogs:   NewAuditLogRepository(pool),
		Transactor:  NewTransactor(pool, logger),
	}
}
