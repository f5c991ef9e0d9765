package handlers

import (
	"net/http"
	"strings"

	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"
	"zyberhero/internal/web"
)

// DeviceHandler serves device registration and lookups.
type DeviceHandler struct {
	resolver *identity.Resolver
	events   Publisher
}

func NewDeviceHandler(resolver *identity.Resolver, events Publisher) *DeviceHandler {
	return &DeviceHandler{resolver: resolver, events: events}
}

type registerRequest struct {
	MACAddress  string     `json:"macAddress"`
	DeviceUUID  string     `json:"deviceUuid"`
	MachineName string     `json:"machineName"`
	UserName    string     `json:"userName"`
	OS          string     `json:"os"`
	ChildID     web.FlexID `json:"childId"`
}

type registerResponse struct {
	DeviceID   uint   `json:"deviceId"`
	DeviceUUID string `json:"deviceUuid"`
	ChildID    *uint  `json:"childId"`
}

// Register creates or updates the device of a MAC address.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.resolver.Register(r.Context(), identity.Registration{
		MACAddress:  req.MACAddress,
		DeviceUUID:  req.DeviceUUID,
		MachineName: req.MachineName,
		UserName:    req.UserName,
		OS:          req.OS,
		ChildID:     req.ChildID.Int64(),
	})
	if err != nil {
		web.FromError(w, r, err)
		return
	}

	if h.events != nil {
		h.events.Broadcast(constants.ChannelDevices, constants.EventDeviceRegistered, d)
	}
	web.OK(w, r, registerResponse{DeviceID: d.ID, DeviceUUID: d.DeviceUUID, ChildID: d.ChildID})
}

// List returns every device, most recently seen first.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.resolver.List(r.Context())
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, nonNilDevices(devices))
}

// Unassigned returns devices without a child.
func (h *DeviceHandler) Unassigned(w http.ResponseWriter, r *http.Request) {
	devices, err := h.resolver.Unassigned(r.Context())
	if err != nil {
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, nonNilDevices(devices))
}

// UUIDByMAC looks up the UUID of a registered MAC without registering it.
func (h *DeviceHandler) UUIDByMAC(w http.ResponseWriter, r *http.Request) {
	mac := strings.TrimSpace(r.URL.Query().Get("macAddress"))
	if mac == "" {
		web.FailErr(w, r, web.ErrInvalidParam, "macAddress is required")
		return
	}
	d, err := h.resolver.ByMAC(r.Context(), mac)
	if err != nil {
		logger.Device.Debug().Str("mac", mac).Msg("uuid lookup missed")
		web.FromError(w, r, err)
		return
	}
	web.OK(w, r, map[string]interface{}{"deviceId": d.ID, "deviceUuid": d.DeviceUUID})
}

func nonNilDevices(d []database.Device) []database.Device {
	if d == nil {
		return []database.Device{}
	}
	return d
}
