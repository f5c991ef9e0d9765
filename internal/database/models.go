package database

import (
	"time"

	"gorm.io/datatypes"
)

// Device is the canonical identity of a monitored machine. MACAddress is the
// natural key; DeviceUUID is indexed but not unique.
type Device struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceUUID  string    `gorm:"column:device_uuid;size:64;index" json:"deviceUuid"`
	MACAddress  *string   `gorm:"column:mac_address;size:64;uniqueIndex" json:"macAddress"`
	MachineName *string   `gorm:"column:machine_name;index" json:"machineName"`
	UserName    *string   `gorm:"column:user_name" json:"userName"`
	OS          *string   `gorm:"column:os" json:"os"`
	ChildID     *uint     `gorm:"index" json:"childId"`
	LastSeen    time.Time `gorm:"index" json:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Child struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Age       *int       `json:"age"`
	Gender    *string    `json:"gender"`
	DOB       *time.Time `gorm:"column:dob" json:"dob"`
	Phone     *string    `json:"phone"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	Devices   []Device   `gorm:"foreignKey:ChildID" json:"devices"`
}

// ActivityLog is append-only.
type ActivityLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	DeviceID        uint       `gorm:"not null;index:idx_activity_device_ts,priority:1" json:"deviceId"`
	Timestamp       time.Time  `gorm:"index;index:idx_activity_device_ts,priority:2" json:"timestamp"`
	LocalTimestamp  *time.Time `json:"localTimestamp"`
	AppName         string     `gorm:"not null" json:"appName"`
	WindowTitle     string     `gorm:"type:text" json:"windowTitle"`
	DurationSeconds int        `gorm:"not null;default:0" json:"durationSeconds"`
	ExecutablePath  string     `json:"executablePath"`
	ScreenTime      bool       `json:"screenTime"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// LiveAppStatus holds one row per (device, app).
type LiveAppStatus struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    uint      `gorm:"not null;uniqueIndex:idx_live_device_app,priority:1" json:"deviceId"`
	AppName     string    `gorm:"size:255;not null;uniqueIndex:idx_live_device_app,priority:2" json:"appName"`
	WindowTitle string    `gorm:"type:text" json:"windowTitle"`
	IsRunning   bool      `gorm:"index" json:"isRunning"`
	LastSeen    time.Time `gorm:"index" json:"lastSeen"`
}

func (LiveAppStatus) TableName() string { return "live_app_status" }

// ControlCommand holds one row per (device, app, action).
type ControlCommand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"not null;uniqueIndex:idx_command_key,priority:1" json:"deviceId"`
	AppName   string    `gorm:"size:255;not null;uniqueIndex:idx_command_key,priority:2" json:"appName"`
	Action    string    `gorm:"size:32;not null;uniqueIndex:idx_command_key,priority:3" json:"action"`
	Schedule  *string   `gorm:"type:text" json:"schedule"`
	IsActive  bool      `gorm:"index" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Alert is append-only; severity is derived from Type on read.
type Alert struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	DeviceID  uint           `gorm:"not null;index" json:"deviceId"`
	AppName   string         `json:"appName"`
	Type      string         `gorm:"not null;index" json:"type"`
	Timestamp time.Time      `gorm:"index" json:"timestamp"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"not null;index:idx_location_device_ts,priority:1" json:"deviceId"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	Accuracy  *float64  `json:"accuracy"`
	Altitude  *float64  `json:"altitude"`
	Timestamp time.Time `gorm:"index:idx_location_device_ts,priority:2" json:"timestamp"`
}

type SafeZone struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChildID   uint      `gorm:"not null;index" json:"childId"`
	DeviceID  *uint     `json:"deviceId"`
	Name      string    `gorm:"not null" json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    int       `json:"radius"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLog records who changed what through the dashboard API.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Subject   string    `gorm:"size:128;index" json:"subject"`
	Action    string    `gorm:"size:64;index" json:"action"`
	Target    string    `gorm:"size:255" json:"target"`
	Detail    string    `gorm:"type:text" json:"detail"`
	Result    string    `gorm:"size:16" json:"result"`
	IP        string    `gorm:"size:64" json:"ip"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Setting stores notification channel credentials as key/value pairs.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
