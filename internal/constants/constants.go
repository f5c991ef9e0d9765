package constants

// Severity levels, lowest first
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var AllSeverities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SeverityRank orders severities; unknown values rank as low.
func SeverityRank(s string) int {
	for i, v := range AllSeverities {
		if v == s {
			return i
		}
	}
	return 0
}

// Command actions
const (
	ActionKill     = "kill"
	ActionRelaunch = "relaunch"
	ActionSchedule = "schedule"
)

// Dashboard roles carried in JWT claims
const (
	RoleParent   = "parent"
	RoleReadonly = "readonly"
)

// WebSocket channels
const (
	ChannelDevices  = "devices"
	ChannelLive     = "live"
	ChannelCommands = "commands"
	ChannelAlerts   = "alerts"
)

// WebSocket event types
const (
	EventDeviceRegistered = "device.registered"
	EventLiveUpdated      = "live.updated"
	EventCommandIssued    = "command.issued"
	EventAlertCreated     = "alert.created"
	EventLocationUpdated  = "location.updated"
)

// Audit actions recorded for dashboard mutations
const (
	AuditCommandIssue  = "command.issue"
	AuditChildCreate   = "child.create"
	AuditZoneCreate    = "zone.create"
	AuditZoneDelete    = "zone.delete"
	AuditNotifyUpdate  = "notify.update"
	AuditResultSuccess = "success"
	AuditResultFailed  = "failed"
)

const UnknownApp = "unknown"
