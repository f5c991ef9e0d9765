package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := NotFound("child not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("lookup: %w", DeviceNotRegistered())
	assert.True(t, errors.Is(wrapped, ErrDeviceNotRegistered))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validation("appName is required"), KindValidation},
		{MissingIdentifier(), KindMissingIdentifier},
		{InvalidID("bad id"), KindInvalidID},
		{Conflict("dup", errors.New("unique")), KindConflict},
		{fmt.Errorf("outer: %w", NotFound("x")), KindNotFound},
		{errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestError_Message(t *testing.T) {
	err := Internal("query failed", errors.New("disk full"))
	assert.Equal(t, "query failed: disk full", err.Error())
	assert.Equal(t, "Device not registered", DeviceNotRegistered().Error())
}
