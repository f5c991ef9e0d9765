package logger

import (
	"path/filepath"
	"testing"

	"zyberhero/internal/webconfig"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInit_ProductionWritesFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	Init(webconfig.LogConfig{
		Level:      "warn",
		Mode:       "production",
		FilePath:   filepath.Join(t.TempDir(), "logs", "zyberhero.log"),
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	Device.Warn().Msg("logger smoke")
}
