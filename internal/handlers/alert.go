package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"zyberhero/internal/alerts"
	"zyberhero/internal/database"
	"zyberhero/internal/web"
)

// AlertHandler serves safety alerts.
type AlertHandler struct {
	store *alerts.Store
}

func NewAlertHandler(store *alerts.Store) *AlertHandler {
	return &AlertHandler{store: store}
}

type alertRequest struct {
	deviceRef
	Type        string          `json:"type"`
	AppName     string          `json:"appName"`
	URL         string          `json:"url"`
	WindowTitle string          `json:"windowTitle"`
	BadWords    interface{}     `json:"badWords"`
	Details     json.RawMessage `json:"details"`
	Timestamp   *time.Time      `json:"timestamp"`
}

// Create records one alert.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.store.Create(r.Context(), alerts.Input{
		Device:      req.identifier(),
		Type:        req.Type,
		AppName:     req.AppName,
		URL:         req.URL,
		WindowTitle: req.WindowTitle,
		BadWords:    req.BadWords,
		Details:     req.Details,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]interface{}{"id": v.ID, "severity": v.Severity})
}

// ForDevice returns the newest alerts of a device.
func (h *AlertHandler) ForDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	list, err := h.store.ForDevice(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, list)
}

// Latest returns the newest alert of a device, or null.
func (h *AlertHandler) Latest(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	v, err := h.store.Latest(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, v)
}

// Count returns the number of alerts in the trailing 24 hours.
func (h *AlertHandler) Count(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	n, err := h.store.CountLast24h(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]int64{"count": n})
}

// History pages through alerts with optional device, type and time filters.
func (h *AlertHandler) History(w http.ResponseWriter, r *http.Request) {
	pq := web.ParsePageQuery(r)
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}

	filter := database.AlertFilter{
		Page:      pq.Page,
		PageSize:  pq.PageSize,
		SortOrder: pq.SortOrder,
		DeviceID:  uint(dev.DeviceID),
		Type:      strings.TrimSpace(r.URL.Query().Get("type")),
	}
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

	list, total, err := h.store.Page(r.Context(), filter)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OKPage(w, r, list, total, pq.Page, pq.PageSize)
}
