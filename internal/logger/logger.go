package logger

import (
	"io"
	"os"
	"path/filepath"

	"zyberhero/internal/webconfig"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = zerolog.Nop()

// Module sub-loggers
var (
	Device    = zerolog.Nop()
	Telemetry = zerolog.Nop()
	Command   = zerolog.Nop()
	Alert     = zerolog.Nop()
	Location  = zerolog.Nop()
	Child     = zerolog.Nop()
	Notify    = zerolog.Nop()
	Config    = zerolog.Nop()
	Audit     = zerolog.Nop()
	WS        = zerolog.Nop()
	DB        = zerolog.Nop()
	HTTP      = zerolog.Nop()
)

func Init(cfg webconfig.LogConfig) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writer io.Writer

	if cfg.Mode == "debug" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			writer = os.Stderr
		} else {
			writer = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}
		}
	}

	Log = zerolog.New(writer).With().Timestamp().Caller().Logger()

	Device = module("device")
	Telemetry = module("telemetry")
	Command = module("command")
	Alert = module("alert")
	Location = module("location")
	Child = module("child")
	Notify = module("notify")
	Config = module("config")
	Audit = module("audit")
	WS = module("websocket")
	DB = module("database")
	HTTP = module("http")
}

func module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
