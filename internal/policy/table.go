// Package policy decides which principals may act on which resources.
// Every rule lives in one table so the behaviour for a role is readable in
// one place.
package policy

import "github.com/spec-kit/helpdesk/internal/domain"

// Action names an operation subject to authorization.
type Action string

const (
	TicketView   Action = "ticket.view"
	TicketCreate Action = "ticket.create"
	TicketUpdate Action = "ticket.update"
	TicketAssign Action = "ticket.assign"
	TicketDelete Action = "ticket.delete"

	TimeEntryView   Action = "time_entry.view"
	TimeEntryCreate Action = "time_entry.create"
	TimeEntryModify Action = "time_entry.modify"

	CommentCreate       Action = "comment.create"
	CommentModify       Action = "comment.modify"
	CommentViewInternal Action = "comment.view_internal"

	CompanyView   Action = "company.view"
	CompanyManage Action = "company.manage"
	CompanyDelete Action = "company.delete"
	ContactManage Action = "contact.manage"
	ContactDelete Action = "contact.delete"
	ContactSelf   Action = "contact.self"

	UserList   Action = "user.list"
	UserManage Action = "user.manage"

	AuditView Action = "audit.view"
)

// Scope is how much of a resource class a role may touch.
type Scope int

const (
	// Deny refuses the action outright.
	Deny Scope = iota
	// Own allows the action only on resources the principal owns.
	Own
	// Reduced allows the action on a narrowed view with fewer rows and
	// fields. The caller applies the narrowing.
	Reduced
	// Any allows the action on every resource.
	Any
)

func (s Scope) String() string {
	switch s {
	case Own:
		return "own"
	case Reduced:
		return "reduced"
	case Any:
		return "any"
	default:
		return "deny"
	}
}

type rule struct {
	admin, employee, customer Scope
}

var rules = map[Action]rule{
	TicketView:   {admin: Any, employee: Any, customer: Own},
	TicketCreate: {admin: Any, employee: Any, customer: Own},
	TicketUpdate: {admin: Any, employee: Any, customer: Deny},
	TicketAssign: {admin: Any, employee: Any, customer: Deny},
	TicketDelete: {admin: Any, employee: Deny, customer: Deny},

	TimeEntryView:   {admin: Any, employee: Own, customer: Deny},
	TimeEntryCreate: {admin: Any, employee: Any, customer: Deny},
	TimeEntryModify: {admin: Any, employee: Own, customer: Deny},

	CommentCreate:       {admin: Any, employee: Any, customer: Any},
	CommentModify:       {admin: Any, employee: Own, customer: Own},
	CommentViewInternal: {admin: Any, employee: Any, customer: Deny},

	CompanyView:   {admin: Any, employee: Any, customer: Deny},
	CompanyManage: {admin: Any, employee: Any, customer: Deny},
	CompanyDelete: {admin: Any, employee: Deny, customer: Deny},
	ContactManage: {admin: Any, employee: Any, customer: Deny},
	ContactDelete: {admin: Any, employee: Deny, customer: Deny},
	ContactSelf:   {admin: Deny, employee: Deny, customer: Any},

	// employees see the staff directory only
	UserList:   {admin: Any, employee: Reduced, customer: Deny},
	UserManage: {admin: Any, employee: Deny, customer: Deny},

	AuditView: {admin: Any, employee: Deny, customer: Deny},
}

// ScopeFor returns the scope role has for action. Unknown actions and
// roles are denied.
func ScopeFor(role domain.Role, action Action) Scope {
	r, ok := rules[action]
	if !ok {
		return Deny
	}
	switch role {
	case domain.RoleAdmin:
		return r.admin
	case domain.RoleEmployee:
		return r.employee
	case domain.RoleCustomer:
		return r.customer
	}
	return Deny
}
