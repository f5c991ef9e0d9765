package handlers

import (
	"net/http"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/telemetry"
	"zyberhero/internal/web"
)

// ActivityHandler serves activity ingestion and the usage summaries.
type ActivityHandler struct {
	svc *telemetry.Service
}

func NewActivityHandler(svc *telemetry.Service) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

type activityRequest struct {
	deviceRef
	AppName         string     `json:"appName"`
	WindowTitle     string     `json:"windowTitle"`
	DurationSeconds int        `json:"durationSeconds"`
	ExecutablePath  string     `json:"executablePath"`
	ScreenTime      bool       `json:"screenTime"`
	Timestamp       *time.Time `json:"timestamp"`
	LocalTimestamp  *time.Time `json:"localTimestamp"`
}

// Record appends one activity fact.
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decode(w, r, &req) {
		return
	}

	row, err := h.svc.RecordActivity(r.Context(), telemetry.ActivityInput{
		Device:          req.identifier(),
		AppName:         req.AppName,
		WindowTitle:     req.WindowTitle,
		DurationSeconds: req.DurationSeconds,
		ExecutablePath:  req.ExecutablePath,
		ScreenTime:      req.ScreenTime,
		Timestamp:       req.Timestamp,
		LocalTimestamp:  req.LocalTimestamp,
	})
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]uint{"id": row.ID})
}

// Recent returns the newest activity rows across devices.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	logs, err := h.svc.RecentActivity(r.Context(), limit)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, logs)
}

// DailyComparison returns per app usage for ?date= (default today).
func (h *ActivityHandler) DailyComparison(w http.ResponseWriter, r *http.Request) {
	scope, err := summaryScope(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	out, err := h.svc.DailyComparison(r.Context(), scope, r.URL.Query().Get("date"))
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, out)
}

// ScreenTime returns the day's focused and screen totals.
func (h *ActivityHandler) ScreenTime(w http.ResponseWriter, r *http.Request) {
	scope, err := summaryScope(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	out, err := h.svc.ScreenTimeTotal(r.Context(), scope, r.URL.Query().Get("date"))
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, out)
}

func summaryScope(r *http.Request) (telemetry.Scope, error) {
	dev, err := queryIdentifier(r)
	if err != nil {
		return telemetry.Scope{}, err
	}
	scope := telemetry.Scope{DeviceID: dev.DeviceID, DeviceUUID: dev.DeviceUUID}
	if v := strings.TrimSpace(r.URL.Query().Get("childId")); v != "" {
		childID, ok := web.QueryInt64(r, "childId")
		if !ok || childID <= 0 {
			return scope, apperr.InvalidID("childId must be a positive integer")
		}
		scope.ChildID = childID
	}
	return scope, nil
}
