// Package memory provides map backed repositories. They back the test
// suites and let the API run without Postgres in development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Store holds every table behind one lock.
type Store struct {
	mu        sync.RWMutex
	last      time.Time
	users     map[string]domain.User
	companies map[string]domain.Company
	contacts  map[string]domain.Contact
	tickets   map[string]domain.Ticket
	comments  map[string]domain.Comment
	entries   map[string]domain.TimeEntry
	history   []domain.TicketHistory
	audit     []domain.AuditLog
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:     map[string]domain.User{},
		companies: map[string]domain.Company{},
		contacts:  map[string]domain.Contact{},
		tickets:   map[string]domain.Ticket{},
		comments:  map[string]domain.Comment{},
		entries:   map[string]domain.TimeEntry{},
	}
}

// Repositories is the repository set backed by a Store.
type Repositories = repository.Set

// Repositories returns every repository view over s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Users:       &userRepo{s},
		Companies:   &companyRepo{s},
		Contacts:    &contactRepo{s},
		Tickets:     &ticketRepo{s},
		Comments:    &commentRepo{s},
		TimeEntries: &timeEntryRepo{s},
		History:     &historyRepo{s},
		AuditLogs:   &auditRepo{s},
		Transactor:  transactor{},
	}
}

// tick returns a strictly increasing timestamp so ordering by creation
// time is stable. Callers hold s.mu.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func newID() string {
	return uuid.NewString()
}

// transactor runs fn directly; every repository call already holds the
// store lock for its own duration.
type transactor struct{}

func (transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
