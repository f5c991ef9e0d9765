package commands

import (
	"errors"
	"fmt"
	"strings"

	"zyberhero/internal/output"
	"zyberhero/internal/webconfig"

	"github.com/spf13/pflag"
)

func SettingsShow(args []string) int {
	fs := pflag.NewFlagSet("settings show", pflag.ContinueOnError)
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
	output.Println(output.Colorize("title", "zyberhero config"))
	fmt.Printf("path:        %s\n", webconfig.ConfigPath())
	fmt.Printf("listen:      %s\n", cfg.ListenAddr())
	fmt.Printf("auth:        %t (tokens expire after %s)\n", cfg.Auth.Enabled, cfg.JWTExpireDuration())
	fmt.Printf("database:    %s\n", databaseTarget(cfg.Database))
	fmt.Printf("log:         %s/%s\n", cfg.Log.Mode, cfg.Log.Level)
	fmt.Printf("live stale:  %s\n", cfg.LiveStaleWindow())
	fmt.Printf("notify from: %s\n", cfg.Alerts.NotifyMinSeverity)
	return 0
}

func SettingsSetMode(args []string) int {
	fs := pflag.NewFlagSet("settings set-mode", pflag.ContinueOnError)
	mode := fs.String("mode", "production", "log mode: production or debug")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		output.Printf("error: %s\n", err)
		return 2
	}

	input := strings.ToLower(strings.TrimSpace(*mode))
	if input != "production" && input != "debug" {
		output.Println("error: mode must be production or debug")
		return 2
	}
	cfg, err := webconfig.Load()
	if err != nil {
		output.Printf("error: failed to load config: %s\n", err)
		return 1
	}
	cfg.Log.Mode = input
	if err := webconfig.Save(cfg); err != nil {
		output.Printf("error: failed to save config: %s\n", err)
		return 1
	}
	output.SetDebug(cfg.IsDebug())
	output.Printf("log mode set to %s\n", cfg.Log.Mode)
	return 0
}

// databaseTarget names the store without credentials.
func databaseTarget(cfg webconfig.DatabaseConfig) string {
	if strings.EqualFold(cfg.Driver, "postgres") {
		return "postgres"
	}
	return "sqlite " + cfg.SQLitePath
}
