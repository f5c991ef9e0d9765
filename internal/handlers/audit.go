package handlers

import (
	"net/http"
	"strings"
	"time"

	"zyberhero/internal/database"
	"zyberhero/internal/logger"
	"zyberhero/internal/web"
)

// auditor records dashboard mutations. A nil auditor records nothing.
type auditor struct {
	repo *database.AuditLogRepo
}

func (a *auditor) record(r *http.Request, action, target, detail, result string) {
	if a == nil || a.repo == nil {
		return
	}
	subject := web.GetSubject(r)
	if subject == "" {
		subject = "anonymous"
	}
	entry := &database.AuditLog{
		Subject: subject,
		Action:  action,
		Target:  target,
		Detail:  detail,
		Result:  result,
		IP:      web.ClientIP(r),
	}
	if err := a.repo.Create(r.Context(), entry); err != nil {
		logger.Audit.Warn().Err(err).Str("action", action).Msg("failed to write audit log")
		return
	}
	logger.Audit.Debug().Str("subject", subject).Str("action", action).Str("target", target).Msg(result)
}

func newAuditor(repo *database.AuditLogRepo) *auditor {
	if repo == nil {
		return nil
	}
	return &auditor{repo: repo}
}

// AuditHandler serves the audit trail of dashboard mutations.
type AuditHandler struct {
	repo *database.AuditLogRepo
}

func NewAuditHandler(repo *database.AuditLogRepo) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// List returns audit logs with pagination and filters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)

	filter := database.AuditFilter{
		Page:      pq.Page,
		PageSize:  pq.PageSize,
		SortOrder: pq.SortOrder,
		Action:    strings.TrimSpace(r.URL.Query().Get("action")),
		Subject:   strings.TrimSpace(r.URL.Query().Get("subject")),
	}
	var err error
	if pq.StartTime != "" {
		if filter.Since, err = time.Parse(time.RFC3339, pq.StartTime); err != nil {
			web.FailErr(w, r, web.ErrInvalidParam, "start_time must be RFC 3339")
			return
		}
	}
	if pq.EndTime != "" {
		if filter.Until, err = time.Parse(time.RFC3339, pq.EndTime); err != nil {
			web.FailErr(w, r, web.ErrInvalidParam, "end_time must be RFC 3339")
			return
		}
	}

	logs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		web.FailErr(w, r, web.ErrInternalError)
		return
	}
	web.OKPage(w, r, logs, total, pq.Page, pq.PageSize)
}
