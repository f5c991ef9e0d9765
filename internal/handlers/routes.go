package handlers

import (
	"net/http"

	"zyberhero/internal/alerts"
	"zyberhero/internal/children"
	"zyberhero/internal/constants"
	"zyberhero/internal/control"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/location"
	"zyberhero/internal/notify"
	"zyberhero/internal/telemetry"
	"zyberhero/internal/web"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

// Services are the core components the API is built on.
type Services struct {
	Resolver  *identity.Resolver
	Telemetry *telemetry.Service
	Commands  *control.Queue
	Alerts    *alerts.Store
	Locations *location.Tracker
	Children  *children.Service
	Settings  *database.SettingRepo
	Notifier  *notify.Manager
	Audit     *database.AuditLogRepo
	Events    Publisher
}

// AgentPaths are the routes device agents call; they never require a token.
func AgentPaths() []string {
	return []string{
		"POST " + APIPrefix + "/devices/register",
		"GET " + APIPrefix + "/devices/uuid-by-mac",
		"POST " + APIPrefix + "/activity",
		"POST " + APIPrefix + "/live-status",
		"GET " + APIPrefix + "/commands/pending",
		"POST " + APIPrefix + "/commands/ack",
		"POST " + APIPrefix + "/alerts",
		"POST " + APIPrefix + "/location",
		APIPrefix + "/health",
		APIPrefix + "/ws",
	}
}

// Register mounts every API route on rt.
func Register(rt *web.Router, s Services) {
	api := rt.Group(APIPrefix)
	parent := func(h http.HandlerFunc) http.HandlerFunc {
		return web.RequireRole(h, constants.RoleParent)
	}

	device := NewDeviceHandler(s.Resolver, s.Events)
	api.POST("/devices/register", device.Register)
	api.GET("/devices", device.List)
	api.GET("/devices/unassigned", device.Unassigned)
	api.GET("/devices/uuid-by-mac", device.UUIDByMAC)

	activity := NewActivityHandler(s.Telemetry)
	api.POST("/activity", activity.Record)
	api.GET("/activity/recent", activity.Recent)
	api.GET("/activity/daily-comparison", activity.DailyComparison)
	api.GET("/activity/screen-time", activity.ScreenTime)

	live := NewLiveHandler(s.Telemetry)
	api.POST("/live-status", live.Report)
	api.GET("/live-status", live.Get)

	cmd := NewCommandHandler(s.Commands)
	cmd.SetAuditRepo(s.Audit)
	api.POST("/commands/kill", parent(cmd.Kill))
	api.POST("/commands/relaunch", parent(cmd.Relaunch))
	api.POST("/commands/schedule", parent(cmd.Schedule))
	api.GET("/commands/pending", cmd.Pending)
	api.POST("/commands/ack", cmd.Ack)

	alert := NewAlertHandler(s.Alerts)
	api.POST("/alerts", alert.Create)
	api.GET("/alerts", alert.ForDevice)
	api.GET("/alerts/latest", alert.Latest)
	api.GET("/alerts/count", alert.Count)
	api.GET("/alerts/history", alert.History)

	loc := NewLocationHandler(s.Locations)
	loc.SetAuditRepo(s.Audit)
	api.POST("/location", loc.Record)
	api.GET("/location/latest", loc.Latest)
	api.GET("/location/history", loc.History)
	api.GET("/location/zone-status", loc.ZoneStatus)
	api.POST("/location/safe-zones", parent(loc.CreateZone))
	api.DELETE("/location/safe-zones/{id}", parent(loc.DeleteZone))
	api.GET("/devices/{deviceUuid}/location", loc.ByDeviceUUID)

	child := NewChildHandler(s.Children)
	child.SetAuditRepo(s.Audit)
	api.POST("/children", parent(child.Create))
	api.GET("/children", child.List)
	api.GET("/children/{id}", child.Get)
	api.GET("/children/{id}/safe-zones", loc.Zones)

	if s.Notifier != nil && s.Settings != nil {
		nh := NewNotifyHandler(s.Settings, s.Notifier)
		nh.SetAuditRepo(s.Audit)
		api.GET("/notify/config", nh.GetConfig)
		api.PUT("/notify/config", parent(nh.UpdateConfig))
		api.POST("/notify/test", parent(nh.TestSend))
	}

	if s.Audit != nil {
		audit := NewAuditHandler(s.Audit)
		api.GET("/audit-logs", parent(audit.List))
	}

	api.GET("/health", Health)
}
