package handlers

import (
	"encoding/json"
	"net/http"

	"zyberhero/internal/telemetry"
	"zyberhero/internal/web"
)

// LiveHandler serves the live app snapshot of devices.
type LiveHandler struct {
	svc *telemetry.Service
}

func NewLiveHandler(svc *telemetry.Service) *LiveHandler {
	return &LiveHandler{svc: svc}
}

type liveRequest struct {
	deviceRef
	Apps json.RawMessage `json:"apps"`
}

type liveAppRequest struct {
	AppName     string `json:"appName"`
	WindowTitle string `json:"windowTitle"`
}

// Report replaces the running app set of a device.
func (h *LiveHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req liveRequest
	if !decode(w, r, &req) {
		return
	}

	// a missing or non-array apps field leaves the list nil, which the
	// service rejects
	var apps []telemetry.LiveApp
	var items []liveAppRequest
	if len(req.Apps) > 0 && json.Unmarshal(req.Apps, &items) == nil && items != nil {
		apps = make([]telemetry.LiveApp, 0, len(items))
		for _, it := range items {
			apps = append(apps, telemetry.LiveApp{AppName: it.AppName, WindowTitle: it.WindowTitle})
		}
	}

	n, err := h.svc.ReportLive(r.Context(), telemetry.LiveReport{Device: req.identifier(), Apps: apps})
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]int{"running": n})
}

// Get returns the fresh running apps of a device.
func (h *LiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	stale, err := queryInt(r, "staleSeconds")
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	apps, err := h.svc.LiveApps(r.Context(), dev, stale)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, apps)
}
