package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/notify"
	"zyberhero/internal/output"
	"zyberhero/internal/webconfig"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

const (
	levelError   = "error"
	levelWarning = "warn"
	levelInfo    = "info"
)

func Doctor(args []string) int {
	fs := pflag.NewFlagSet("doctor", pflag.ContinueOnError)
	fix := fs.Bool("fix", false, "write a missing config file and create the schema")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		output.Printf("error: %s\n", err)
		return 2
	}

	cfg, err := webconfig.Load()
	if err != nil {
		output.Printf("error: failed to load config: %s\n", err)
		return 1
	}
	configPath := webconfig.ConfigPath()

	report := runDoctorChecks(cfg, configPath)
	output.Println(renderReport(report))

	if *fix {
		if err := runDoctorFixes(cfg, configPath); err != nil {
			output.Printf("\nfix failed: %s\n", err)
			return 1
		}
		output.Println("\nfixes applied.")
		report = runDoctorChecks(cfg, configPath)
		output.Println(renderReport(report))
	}

	if report.HasErrors {
		return 1
	}
	return 0
}

type doctorIssue struct {
	Level      string
	Message    string
	Suggestion string
}

type doctorReport struct {
	Issues    []doctorIssue
	HasErrors bool
}

func (r *doctorReport) add(level, message, suggestion string) {
	r.Issues = append(r.Issues, doctorIssue{Level: level, Message: message, Suggestion: suggestion})
	if level == levelError {
		r.HasErrors = true
	}
}

func runDoctorChecks(cfg webconfig.Config, configPath string) doctorReport {
	var report doctorReport

	checkConfigFile(&report, configPath)

	if len(cfg.Auth.JWTSecret) < 32 {
		report.add(levelWarning, "jwt_secret is shorter than 32 characters",
			"clear auth.jwt_secret to have a strong one generated")
	}
	if !cfg.Auth.Enabled && !isLoopbackBind(cfg.Server.Bind) {
		report.add(levelWarning, "auth is disabled on non-loopback address "+cfg.Server.Bind,
			"set auth.enabled or ZH_AUTH_ENABLED=true and issue tokens with `zyberhero token`")
	}
	if !knownSeverity(cfg.Alerts.NotifyMinSeverity) {
		report.add(levelError, "unknown alerts.notify_min_severity "+cfg.Alerts.NotifyMinSeverity,
			"use low, medium, high or critical")
	}

	checkLogDir(&report, cfg.Log)
	checkDatabase(&report, cfg)
	checkPort(&report, cfg.ListenAddr())

	return report
}

func checkConfigFile(report *doctorReport, path string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		report.add(levelInfo, "no config file at "+path+", defaults and environment in use",
			"run `zyberhero doctor --fix` to write one")
		return
	}
	if err != nil {
		report.add(levelError, "config file unreadable: "+err.Error(), "check file permissions")
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		report.add(levelError, "config file is not valid JSON: "+err.Error(), "fix or remove "+path)
	}
}

func checkLogDir(report *doctorReport, cfg webconfig.LogConfig) {
	if strings.EqualFold(cfg.Mode, "debug") || cfg.FilePath == "" {
		return
	}
	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		report.add(levelError, "log directory not writable: "+dir, "set log.file_path or ZH_LOG_FILE")
		return
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		report.add(levelError, "log directory not writable: "+dir, "set log.file_path or ZH_LOG_FILE")
		return
	}
	probe.Close()
	os.Remove(probe.Name())
}

func checkDatabase(report *doctorReport, cfg webconfig.Config) {
	db, err := database.Open(cfg.Database, false)
	if err != nil {
		report.add(levelError, "database unavailable: "+err.Error(), "check the database section of the config")
		return
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, model := range database.Models() {
		if !db.Migrator().HasTable(model) {
			report.add(levelWarning, "database schema incomplete", "run `zyberhero migrate`")
			return
		}
	}

	var devices int64
	if err := db.WithContext(ctx).Model(&database.Device{}).Count(&devices).Error; err != nil {
		report.add(levelError, "database query failed: "+err.Error(), "")
		return
	}
	report.add(levelInfo, fmt.Sprintf("%s database reachable, %d device(s) registered", cfg.Database.Driver, devices), "")

	checkNotify(ctx, report, db)
}

func checkNotify(ctx context.Context, report *doctorReport, db *gorm.DB) {
	m := notify.NewManager()
	if err := m.Reload(ctx, database.NewSettingRepo(db)); err != nil {
		report.add(levelWarning, "notification settings unreadable: "+err.Error(), "")
		return
	}
	if !m.HasChannels() {
		report.add(levelInfo, "no notification channels configured",
			"PUT /api/v1/notify/config to forward high severity alerts")
		return
	}
	report.add(levelInfo, "notification channels: "+strings.Join(m.ChannelNames(), ", "), "")
}

func checkPort(report *doctorReport, addr string) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		report.add(levelWarning, "address "+addr+" is in use", "stop the other process or start with --port")
		return
	}
	ln.Close()
}

func runDoctorFixes(cfg webconfig.Config, configPath string) error {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := webconfig.Save(cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		output.Printf("wrote %s\n", configPath)
	}

	db, err := database.Open(cfg.Database, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func renderReport(report doctorReport) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, output.Colorize("title", "Diagnostics"))
	fmt.Fprintln(b, output.Colorize("dim", "==========="))
	if len(report.Issues) == 0 {
		fmt.Fprintln(b, output.Colorize("success", "No problems found."))
		return b.String()
	}

	for _, issue := range report.Issues {
		fmt.Fprintf(b, "%s %s\n", colorDoctorLevel(issue.Level), issue.Message)
		if issue.Suggestion != "" {
			fmt.Fprintf(b, "  %s %s\n", output.Colorize("dim", "hint:"), issue.Suggestion)
		}
	}
	return b.String()
}

func colorDoctorLevel(level string) string {
	switch level {
	case levelError:
		return output.Colorize("danger", "[error]")
	case levelWarning:
		return output.Colorize("warning", "[warn]")
	case levelInfo:
		return output.Colorize("accent", "[info]")
	default:
		return "[" + level + "]"
	}
}

func knownSeverity(s string) bool {
	for _, v := range constants.AllSeverities {
		if v == s {
			return true
		}
	}
	return false
}

func isLoopbackBind(bind string) bool {
	normalized := strings.ToLower(strings.TrimSpace(bind))
	if normalized == "localhost" || normalized == "::1" {
		return true
	}
	return strings.HasPrefix(normalized, "127.")
}
