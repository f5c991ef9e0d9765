package handlers

import (
	"context"
	"fmt"
	"net/http"

	"zyberhero/internal/constants"
	"zyberhero/internal/control"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/web"
)

// CommandHandler serves the per device command queue.
type CommandHandler struct {
	queue *control.Queue
	audit *auditor
}

func NewCommandHandler(queue *control.Queue) *CommandHandler {
	return &CommandHandler{queue: queue}
}

func (h *CommandHandler) SetAuditRepo(repo *database.AuditLogRepo) {
	h.audit = newAuditor(repo)
}

type commandRequest struct {
	deviceRef
	AppName  string `json:"appName"`
	Schedule string `json:"schedule"`
}

func (req commandRequest) input() control.Input {
	dev := req.identifier()
	return control.Input{
		Device:   identity.Identifier{DeviceID: dev.DeviceID, DeviceUUID: dev.DeviceUUID},
		AppName:  req.AppName,
		Schedule: req.Schedule,
	}
}

// Kill issues a persistent kill.
func (h *CommandHandler) Kill(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.queue.Kill)
}

// Relaunch clears any kill and issues a one-shot relaunch.
func (h *CommandHandler) Relaunch(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.queue.Relaunch)
}

// Schedule issues a one-shot schedule with its payload.
func (h *CommandHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.queue.Schedule)
}

func (h *CommandHandler) issue(w http.ResponseWriter, r *http.Request, fn func(context.Context, control.Input) (*control.Command, error)) {
	var req commandRequest
	if !decode(w, r, &req) {
		return
	}
	cmd, err := fn(r.Context(), req.input())
	if err != nil {
		h.audit.record(r, constants.AuditCommandIssue, req.AppName, err.Error(), constants.AuditResultFailed)
		web.FromError(w, r, err)
		return
	}
	h.audit.record(r, constants.AuditCommandIssue, fmt.Sprintf("command:%d", cmd.ID),
		fmt.Sprintf("%s %s", cmd.Action, cmd.AppName), constants.AuditResultSuccess)
	web.OK(w, r, cmd)
}

// Pending returns and consumes the device's active commands.
func (h *CommandHandler) Pending(w http.ResponseWriter, r *http.Request) {
	dev, err := queryIdentifier(r)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	cmds, err := h.queue.Pending(r.Context(), dev)
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, cmds)
}

type ackRequest struct {
	ID web.FlexID `json:"id"`
}

// Ack deactivates one command by id.
func (h *CommandHandler) Ack(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.queue.Ack(r.Context(), req.ID.Int64()); err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]int64{"id": req.ID.Int64()})
}
