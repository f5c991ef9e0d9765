// Package children manages child profiles and their device links.
package children

import (
	"context"
	"strings"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/database"
	"zyberhero/internal/logger"

	"gorm.io/gorm"
)

type Input struct {
	Name   string
	Age    *int
	Gender string
	// DOB accepts YYYY-MM-DD or RFC 3339.
	DOB   string
	Phone string
	// DeviceID optionally links an existing device; failures are logged only.
	DeviceID int64
}

type Service struct {
	children *database.ChildRepo
	devices  *database.DeviceRepo
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		children: database.NewChildRepo(db),
		devices:  database.NewDeviceRepo(db),
	}
}

// Create stores a child and, best effort, links the given device to it.
func (s *Service) Create(ctx context.Context, in Input) (*database.Child, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Age != nil && *in.Age < 0 {
		return nil, apperr.Validation("age must not be negative")
	}

	child := &database.Child{
		Name:   name,
		Age:    in.Age,
		Gender: optional(in.Gender),
		Phone:  optional(in.Phone),
	}
	if d := strings.TrimSpace(in.DOB); d != "" {
		dob, err := parseDOB(d)
		if err != nil {
			return nil, err
		}
		child.DOB = &dob
	}

	if err := s.children.Create(ctx, child); err != nil {
		return nil, apperr.Internal("failed to create child", err)
	}
	logger.Child.Info().Uint("id", child.ID).Str("name", name).Msg("child created")

	if in.DeviceID > 0 {
		s.link(ctx, child.ID, uint(in.DeviceID))
	} else if in.DeviceID < 0 {
		logger.Child.Warn().Int64("device_id", in.DeviceID).Msg("ignoring invalid device id")
	}

	created, err := s.children.FindByID(ctx, child.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load child", err)
	}
	return created, nil
}

func (s *Service) link(ctx context.Context, childID, deviceID uint) {
	n, err := s.devices.AssignChild(ctx, deviceID, childID)
	switch {
	case err != nil:
		logger.Child.Warn().Err(err).Uint("child_id", childID).Uint("device_id", deviceID).Msg("device link failed")
	case n == 0:
		logger.Child.Warn().Uint("child_id", childID).Uint("device_id", deviceID).Msg("device link skipped, device not found")
	default:
		logger.Child.Debug().Uint("child_id", childID).Uint("device_id", deviceID).Msg("device linked")
	}
}

// List returns all children newest first, each with its devices.
func (s *Service) List(ctx context.Context) ([]database.Child, error) {
	list, err := s.children.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list children", err)
	}
	if list == nil {
		list = []database.Child{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*database.Child, error) {
	if id <= 0 {
		return nil, apperr.InvalidID("id must be a positive integer")
	}
	child, err := s.children.FindByID(ctx, uint(id))
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("child not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load child", err)
	}
	return child, nil
}

func parseDOB(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validationf("invalid dob %q, expected YYYY-MM-DD", s)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
