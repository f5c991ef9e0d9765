package location

import (
	"context"
	"strings"

	"zyberhero/internal/apperr"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/logger"
)

type ZoneInput struct {
	ChildID   int64
	Device    identity.Identifier
	Name      string
	Latitude  *float64
	Longitude *float64
	Radius    int
	Address   string
}

// ZoneStatus is a device's latest fix and the safe zones containing it.
type ZoneStatus struct {
	Location *database.Location `json:"location"`
	Inside   []string           `json:"inside"`
	Zones    int                `json:"zones"`
}

// CreateZone stores a safe zone. Without a childId the child is taken from
// the given device.
func (t *Tracker) CreateZone(ctx context.Context, in ZoneInput) (*database.SafeZone, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperr.Validation("latitude and longitude are required")
	}
	if !validCoordinates(*in.Latitude, *in.Longitude) {
		return nil, apperr.Validation("latitude or longitude out of range")
	}
	if in.Radius <= 0 {
		return nil, apperr.Validation("radius must be positive")
	}

	zone := &database.SafeZone{
		Name:      name,
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		Radius:    in.Radius,
	}
	if a := strings.TrimSpace(in.Address); a != "" {
		zone.Address = &a
	}

	childID := in.ChildID
	if in.Device.DeviceID > 0 || strings.TrimSpace(in.Device.DeviceUUID) != "" {
		device, err := t.device(ctx, in.Device)
		if err != nil {
			return nil, err
		}
		zone.DeviceID = &device.ID
		if childID <= 0 {
			if device.ChildID == nil {
				return nil, apperr.Validation("device is not assigned to a child")
			}
			childID = int64(*device.ChildID)
		}
	}
	if childID <= 0 {
		return nil, apperr.Validation("childId or a device identifier is required")
	}

	ok, err := t.children.Exists(ctx, uint(childID))
	if err != nil {
		return nil, apperr.Internal("failed to load child", err)
	}
	if !ok {
		return nil, apperr.NotFound("child not found")
	}
	zone.ChildID = uint(childID)

	if err := t.zones.Create(ctx, zone); err != nil {
		return nil, apperr.Internal("failed to store safe zone", err)
	}
	logger.Location.Info().Uint("id", zone.ID).Uint("child_id", zone.ChildID).Str("name", name).Msg("safe zone created")
	return zone, nil
}

// Zones lists the safe zones of a child.
func (t *Tracker) Zones(ctx context.Context, childID int64) ([]database.SafeZone, error) {
	if childID <= 0 {
		return nil, apperr.InvalidID("childId must be a positive integer")
	}
	zones, err := t.zones.ListByChild(ctx, uint(childID))
	if err != nil {
		return nil, apperr.Internal("failed to list safe zones", err)
	}
	if zones == nil {
		zones = []database.SafeZone{}
	}
	return zones, nil
}

// DeleteZone removes a safe zone; unknown ids are NotFound.
func (t *Tracker) DeleteZone(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.InvalidID("id must be a positive integer")
	}
	n, err := t.zones.Delete(ctx, uint(id))
	if err != nil {
		return apperr.Internal("failed to delete safe zone", err)
	}
	if n == 0 {
		return apperr.NotFound("safe zone not found")
	}
	return nil
}

// Status evaluates the latest fix of a device against its child's zones.
func (t *Tracker) Status(ctx context.Context, dev identity.Identifier) (*ZoneStatus, error) {
	device, err := t.device(ctx, dev)
	if err != nil {
		return nil, err
	}
	loc, err := t.latest(ctx, device.ID)
	if err != nil {
		return nil, err
	}

	status := &ZoneStatus{Location: loc, Inside: []string{}}
	if device.ChildID == nil {
		return status, nil
	}
	zones, err := t.zones.ListByChild(ctx, *device.ChildID)
	if err != nil {
		return nil, apperr.Internal("failed to list safe zones", err)
	}
	status.Zones = len(zones)
	for _, z := range zones {
		if Distance(loc.Latitude, loc.Longitude, z.Latitude, z.Longitude) <= float64(z.Radius) {
			status.Inside = append(status.Inside, z.Name)
		}
	}
	return status, nil
}
