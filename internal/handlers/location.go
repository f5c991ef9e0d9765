package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/location"
	"zyberhero/internal/web"
)

// LocationHandler serves GPS fixes and safe zones.
type LocationHandler struct {
	tracker *location.Tracker
	audit   *auditor
}

func NewLocationHandler(tracker *location.Tracker) *LocationHandler {
	return &LocationHandler{tracker: tracker}
}

func (h *LocationHandler) SetAuditRepo(repo *database.AuditLogRepo) {
	h.audit = newAuditor(repo)
}

type locationRequest struct {
	deviceRef
	DeviceMac string     `json:"deviceMac"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Altitude  *float64   `json:"altitude"`
	Timestamp *time.Time `json:"timestamp"`
}

// Record stores a fix for a registered device.
func (h *LocationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	dev := req.identifier()
	if dev.MACAddress == "" {
		dev.MACAddress = strings.TrimSpace(req.DeviceMac)
	}
	loc, err := h.tracker.Record(r.Context(), location.Fix{
		Device:    dev,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
		Altitude:  req.Altitude,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]uint{"locationId": loc.ID})
}

// Latest returns the newest fix of a device.
func (h *LocationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	h.latest(w, r, dev)
}

// ByDeviceUUID returns the newest fix of the device named in the path.
func (h *LocationHandler) ByDeviceUUID(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, identity.Identifier{DeviceUUID: strings.TrimSpace(r.PathValue("deviceUuid"))})
}

func (h *LocationHandler) latest(w http.ResponseWriter, r *http.Request, dev identity.Identifier) {
	loc, err := h.tracker.Latest(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, loc)
}

// History returns fixes newest first, optionally limited to one day.
func (h *LocationHandler) History(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	list, err := h.tracker.History(r.Context(), dev, location.HistoryQuery{
		Limit: limit,
		Date:  strings.TrimSpace(r.URL.Query().Get("date")),
	})
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, list)
}

// ZoneStatus reports which safe zones contain the device's latest fix.
func (h *LocationHandler) ZoneStatus(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	st, err := h.tracker.Status(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, st)
}

type zoneRequest struct {
	deviceRef
	ChildID   web.FlexID `json:"childId"`
	Name      string     `json:"name"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Radius    int        `json:"radius"`
	Address   string     `json:"address"`
}

// CreateZone stores a safe zone for a child.
func (h *LocationHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if !decode(w, r, &req) {
		return
	}
	zone, err := h.tracker.CreateZone(r.Context(), location.ZoneInput{
		ChildID:   req.ChildID.Int64(),
		Device:    req.identifier(),
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Radius:    req.Radius,
		Address:   req.Address,
	})
	if err != nil {
		h.audit.record(r, constants.AuditZoneCreate, req.Name, err.Error(), constants.AuditResultFailed)
		web.FromError(w, r, err)
		return
	}
	h.audit.record(r, constants.AuditZoneCreate, fmt.Sprintf("zone:%d", zone.ID), zone.Name, constants.AuditResultSuccess)
	web.OK(w, r, zone)
}

// Zones lists the safe zones of the child in the path.
func (h *LocationHandler) Zones(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathInt64(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidID)
		return
	}
	zones, err := h.tracker.Zones(r.Context(), id)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, zones)
}

// DeleteZone removes one safe zone.
func (h *LocationHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathInt64(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidID)
		return
	}
	target := fmt.Sprintf("zone:%d", id)
	if err := h.tracker.DeleteZone(r.Context(), id); err != nil {
		h.audit.record(r, constants.AuditZoneDelete, target, err.Error(), constants.AuditResultFailed)
		web.FromError(w, r, err)
		return
	}
	h.audit.record(r, constants.AuditZoneDelete, target, "", constants.AuditResultSuccess)
	web.OK(w, r, map[string]int64{"id": id})
}
