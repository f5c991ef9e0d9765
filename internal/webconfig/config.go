package webconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port        int      `json:"port"`
	Bind        string   `json:"bind"`
	CORSOrigins []string `json:"cors_origins"`
}

type AuthConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret"`
	JWTExpire string `json:"jwt_expire"`
}

type DatabaseConfig struct {
	Driver      string `json:"driver"`
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn"`
}

type LogConfig struct {
	Level      string `json:"level"`
	Mode       string `json:"mode"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

type TelemetryConfig struct {
	LiveStaleSeconds    int `json:"live_stale_seconds"`
	RecentActivityLimit int `json:"recent_activity_limit"`
}

type AlertsConfig struct {
	NotifyMinSeverity string `json:"notify_min_severity"`
	ListLimit         int    `json:"list_limit"`
}

type LocationConfig struct {
	HistoryDefaultLimit int `json:"history_default_limit"`
}

type Config struct {
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Database  DatabaseConfig  `json:"database"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Alerts    AlertsConfig    `json:"alerts"`
	Location  LocationConfig  `json:"location"`
}

// defaultDataDir is <exe dir>/data, holding the database, config and logs.
func defaultDataDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "./data"
	}
	return filepath.Join(filepath.Dir(exe), "data")
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:        18800,
			Bind:        "0.0.0.0",
			CORSOrigins: []string{},
		},
		Auth: AuthConfig{
			Enabled:   false,
			JWTSecret: "",
			JWTExpire: "24h",
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dataDir, "zyberhero.db"),
		},
		Log: LogConfig{
			Level:      "info",
			Mode:       "production",
			FilePath:   filepath.Join(dataDir, "zyberhero.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			LiveStaleSeconds:    90,
			RecentActivityLimit: 100,
		},
		Alerts: AlertsConfig{
			NotifyMinSeverity: "high",
			ListLimit:         20,
		},
		Location: LocationConfig{
			HistoryDefaultLimit: 100,
		},
	}
}

func ConfigPath() string {
	if custom := strings.TrimSpace(os.Getenv("ZH_CONFIG")); custom != "" {
		return custom
	}
	return filepath.Join(defaultDataDir(), "zyberhero.json")
}

// EnvFilePath is the dotenv file read before environment overrides.
func EnvFilePath() string {
	if custom := strings.TrimSpace(os.Getenv("ZH_ENV_FILE")); custom != "" {
		return custom
	}
	return ".env"
}

func Load() (Config, error) {
	cfg := Default()

	// Layer 1: config file
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Default(), err
		}
	}

	// Layer 2: .env file; variables already set in the process win
	if err := godotenv.Load(EnvFilePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	// Layer 3: environment variables override
	applyEnvOverrides(&cfg)

	// Layer 4: generate JWT secret if empty and persist it
	if cfg.Auth.JWTSecret == "" {
		secret, err := generateSecret(32)
		if err != nil {
			return cfg, err
		}
		cfg.Auth.JWTSecret = secret
		_ = Save(cfg)
	}

	return cfg, nil
}

func Save(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func (c *Config) ListenAddr() string {
	return c.Server.Bind + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) JWTExpireDuration() time.Duration {
	d, err := time.ParseDuration(c.Auth.JWTExpire)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.Log.Mode, "debug")
}

// LiveStaleWindow falls back to 90s when unset or non-positive.
func (c *Config) LiveStaleWindow() time.Duration {
	if c.Telemetry.LiveStaleSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.Telemetry.LiveStaleSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("ZH_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("ZH_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("ZH_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ZH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ZH_JWT_EXPIRE"); v != "" {
		cfg.Auth.JWTExpire = v
	}
	if v := os.Getenv("ZH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ZH_DB_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("ZH_DB_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("ZH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ZH_LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
	if v := os.Getenv("ZH_LOG_FILE"); v != "" {
		cfg.Log.FilePath = v
	}
	if v := os.Getenv("ZH_LIVE_STALE_SECONDS"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.LiveStaleSeconds = p
		}
	}
	if v := os.Getenv("ZH_RECENT_ACTIVITY_LIMIT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.RecentActivityLimit = p
		}
	}
	if v := os.Getenv("ZH_NOTIFY_MIN_SEVERITY"); v != "" {
		cfg.Alerts.NotifyMinSeverity = strings.ToLower(v)
	}
	if v := os.Getenv("ZH_ALERT_LIST_LIMIT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Alerts.ListLimit = p
		}
	}
	if v := os.Getenv("ZH_LOCATION_HISTORY_LIMIT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Location.HistoryDefaultLimit = p
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
