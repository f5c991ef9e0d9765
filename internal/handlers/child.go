package handlers

import (
	"fmt"
	"net/http"

	"zyberhero/internal/children"
	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/web"
)

// ChildHandler serves child profiles.
type ChildHandler struct {
	svc   *children.Service
	audit *auditor
}

func NewChildHandler(svc *children.Service) *ChildHandler {
	return &ChildHandler{svc: svc}
}

func (h *ChildHandler) SetAuditRepo(repo *database.AuditLogRepo) {
	h.audit = newAuditor(repo)
}

type childRequest struct {
	Name     string     `json:"name"`
	Age      *int       `json:"age"`
	Gender   string     `json:"gender"`
	DOB      string     `json:"dob"`
	Phone    string     `json:"phone"`
	DeviceID web.FlexID `json:"deviceId"`
}

// Create stores a child and links the optional device.
func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if !decode(w, r, &req) {
		return
	}
	child, err := h.svc.Create(r.Context(), children.Input{
		Name:     req.Name,
		Age:      req.Age,
		Gender:   req.Gender,
		DOB:      req.DOB,
		Phone:    req.Phone,
		DeviceID: req.DeviceID.Int64(),
	})
	if err != nil {
		h.audit.record(r, constants.AuditChildCreate, req.Name, err.Error(), constants.AuditResultFailed)
		web.FromError(w, r, err)
		return
	}
	h.audit.record(r, constants.AuditChildCreate, fmt.Sprintf("child:%d", child.ID), child.Name, constants.AuditResultSuccess)
	web.OK(w, r, child)
}

// List returns every child with its devices, newest first.
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, list)
}

// Get returns one child with its devices.
func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathInt64(r, "id")
	if !ok {
		web.FailErr(w, r, web.ErrInvalidID)
		return
	}
	child, err := h.svc.Get(r.Context(), id)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, child)
}
