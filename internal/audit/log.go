package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Actions recorded in the audit log.
const (
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionLogout          = "LOGOUT"
	ActionRegister        = "REGISTER"
	ActionTokenRefresh    = "TOKEN_REFRESH"
	ActionUserCreate      = "USER_CREATE"
	ActionUserUpdate      = "USER_UPDATE"
	ActionUserDelete      = "USER_DELETE"
	ActionUserDeactivate  = "USER_DEACTIVATE"
	ActionTicketCreate    = "TICKET_CREATE"
	ActionTicketUpdate    = "TICKET_UPDATE"
	ActionTicketDelete    = "TICKET_DELETE"
	ActionTicketStatus    = "TICKET_STATUS_CHANGE"
	ActionCompanyCreate   = "COMPANY_CREATE"
	ActionCompanyUpdate   = "COMPANY_UPDATE"
	ActionCompanyDelete   = "COMPANY_DELETE"
	ActionCommentDelete   = "COMMENT_DELETE"
	ActionTimeEntryDelete = "TIME_ENTRY_DELETE"
	ActionContactCreate   = "CONTACT_CREATE"
	ActionContactUpdate   = "CONTACT_UPDATE"
	ActionContactDelete   = "CONTACT_DELETE"
)

// Resources an audit entry can refer to.
const (
	ResourceUser      = "USER"
	ResourceTicket    = "TICKET"
	ResourceCompany   = "COMPANY"
	ResourceAuth      = "AUTH"
	ResourceComment   = "COMMENT"
	ResourceTimeEntry = "TIME_ENTRY"
	ResourceContact   = "CONTACT"
)

// AnonymousUser is stored as the user id for events without a principal.
const AnonymousUser = "anonymous"

type ctxKey string

const requestInfoKey ctxKey = "audit_request_info"

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequestInfo attaches client address and user agent to ctx.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey, requestInfo{
		ip:        strings.TrimSpace(ip),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func requestInfoFromContext(ctx context.Context) requestInfo {
	if ctx == nil {
		return requestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey).(requestInfo)
	return info
}

// Entry describes one auditable event.
type Entry struct {
	UserID   string
	Action   string
	Resource string
	Details  map[string]any
}

// Recorder persists audit entries. Failures never reach the caller.
type Recorder struct {
	repo   repository.AuditLogRepository
	logger *zap.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(repo repository.AuditLogRepository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record stores entry enriched with request metadata from ctx.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.repo == nil {
		return
	}
	userID := entry.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	log := &domain.AuditLog{
		UserID:   userID,
		Action:   entry.Action,
		Resource: entry.Resource,
		Details:  entry.Details,
	}
	info := requestInfoFromContext(ctx)
	if info.ip != "" {
		log.IPAddress = &info.ip
	}
	if info.userAgent != "" {
		log.UserAgent = &info.userAgent
	}

	if err := r.repo.Create(context.WithoutCancel(ctx), log); err != nil {
		r.logger.Warn("audit log write failed",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}
