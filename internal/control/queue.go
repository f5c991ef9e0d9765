// Package control keeps the per device command queue polled by agents.
//
// Each (device, app, action) key holds one row. Kill rows stay active until
// countermanded or acknowledged; relaunch and schedule rows are consumed by
// the fetch that delivers them.
package control

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"

	"gorm.io/gorm"
)

// Publisher pushes events to dashboard subscribers.
type Publisher interface {
	Broadcast(channel, msgType string, data interface{})
}

// Command is what an agent receives from a pending fetch.
type Command struct {
	ID       uint    `json:"id"`
	AppName  string  `json:"appName"`
	Action   string  `json:"action"`
	Schedule *string `json:"schedule"`
}

type Input struct {
	Device   identity.Identifier
	AppName  string
	Schedule string
}

type Queue struct {
	resolver *identity.Resolver
	commands *database.CommandRepo
	events   Publisher
	now      func() time.Time
}

func NewQueue(db *gorm.DB, resolver *identity.Resolver, events Publisher) *Queue {
	return &Queue{
		resolver: resolver,
		commands: database.NewCommandRepo(db),
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Kill activates a persistent kill for the app.
func (q *Queue) Kill(ctx context.Context, in Input) (*Command, error) {
	device, app, err := q.target(ctx, in)
	if err != nil {
		return nil, err
	}
	row, err := q.commands.Activate(ctx, device.ID, app, constants.ActionKill, nil, q.now())
	if err != nil {
		return nil, apperr.Internal("failed to issue kill", err)
	}
	return q.issued(row), nil
}

// Relaunch deactivates any kill for the app and activates a one-shot relaunch.
func (q *Queue) Relaunch(ctx context.Context, in Input) (*Command, error) {
	device, app, err := q.target(ctx, in)
	if err != nil {
		return nil, err
	}
	row, err := q.commands.Relaunch(ctx, device.ID, app, constants.ActionKill, constants.ActionRelaunch, q.now())
	if err != nil {
		return nil, apperr.Internal("failed to issue relaunch", err)
	}
	return q.issued(row), nil
}

// Schedule activates a one-shot schedule with its payload. Kill and relaunch
// rows are untouched.
func (q *Queue) Schedule(ctx context.Context, in Input) (*Command, error) {
	payload := strings.TrimSpace(in.Schedule)
	if payload == "" {
		return nil, apperr.Validation("appName and schedule are required")
	}
	device, app, err := q.target(ctx, in)
	if err != nil {
		return nil, err
	}
	row, err := q.commands.Activate(ctx, device.ID, app, constants.ActionSchedule, &payload, q.now())
	if err != nil {
		return nil, apperr.Internal("failed to issue schedule", err)
	}
	return q.issued(row), nil
}

// Pending returns the active commands of a device and consumes the one-shot
// ones among them.
func (q *Queue) Pending(ctx context.Context, dev identity.Identifier) ([]Command, error) {
	device, err := q.resolver.Resolve(ctx, identity.Identifier{
		DeviceID:    dev.DeviceID,
		DeviceUUID:  dev.DeviceUUID,
		MachineName: dev.MachineName,
	})
	if err != nil {
		return nil, err
	}
	rows, err := q.commands.TakePending(ctx, device.ID, constants.ActionKill)
	if err != nil {
		return nil, apperr.Internal("failed to fetch commands", err)
	}
	q.resolver.Touch(ctx, device.ID)

	out := make([]Command, 0, len(rows))
	for i := range rows {
		out = append(out, toCommand(&rows[i]))
	}
	if len(out) > 0 {
		logger.Command.Debug().Uint("device_id", device.ID).Int("count", len(out)).Msg("commands delivered")
	}
	return out, nil
}

// Ack deactivates one command. Unknown or already inactive ids succeed.
func (q *Queue) Ack(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.InvalidID("id must be a positive integer")
	}
	n, err := q.commands.Deactivate(ctx, uint(id))
	if err != nil {
		return apperr.Internal("failed to ack command", err)
	}
	logger.Command.Debug().Int64("id", id).Int64("changed", n).Msg("command acknowledged")
	return nil
}

func (q *Queue) target(ctx context.Context, in Input) (*database.Device, string, error) {
	app := strings.ToLower(strings.TrimSpace(in.AppName))
	if app == "" {
		return nil, "", apperr.Validation("appName is required")
	}
	if in.Device.DeviceID <= 0 && strings.TrimSpace(in.Device.DeviceUUID) == "" {
		return nil, "", apperr.MissingIdentifier()
	}
	device, err := q.resolver.Resolve(ctx, identity.Identifier{
		DeviceID:   in.Device.DeviceID,
		DeviceUUID: in.Device.DeviceUUID,
	})
	if err != nil {
		return nil, "", err
	}
	return device, app, nil
}

func (q *Queue) issued(row *database.ControlCommand) *Command {
	cmd := toCommand(row)
	logger.Command.Info().
		Uint("device_id", row.DeviceID).
		Str("app", row.AppName).
		Str("action", row.Action).
		Msg("command issued")
	if q.events != nil {
		q.events.Broadcast(constants.ChannelCommands, constants.EventCommandIssued, map[string]interface{}{
			"deviceId": row.DeviceID,
			"command":  cmd,
		})
	}
	return &cmd
}

func toCommand(row *database.ControlCommand) Command {
	return Command{
		ID:       row.ID,
		AppName:  row.AppName,
		Action:   row.Action,
		Schedule: row.Schedule,
	}
}
