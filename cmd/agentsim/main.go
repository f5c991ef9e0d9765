// Command agentsim plays a monitored device against a zyberhero server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"zyberhero/internal/logger"
	"zyberhero/internal/webconfig"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()

	hostname, _ := os.Hostname()
	fs := pflag.NewFlagSet("agentsim", pflag.ContinueOnError)
	server := fs.StringP("server", "s", envOr("ZH_SERVER_URL", "http://127.0.0.1:18800"), "server base URL")
	token := fs.String("token", os.Getenv("ZH_AGENT_TOKEN"), "optional bearer token")
	mac := fs.String("mac", "02:00:00:00:00:01", "MAC address to register")
	machine := fs.String("machine", hostname, "machine name")
	user := fs.String("user", "kid", "user name")
	interval := fs.DurationP("interval", "i", 30*time.Second, "reporting interval")
	count := fs.IntP("count", "n", 0, "cycles to run, 0 runs until interrupted")
	lat := fs.Float64("lat", 51.5007, "base latitude")
	lon := fs.Float64("lon", -0.1246, "base longitude")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	logger.Init(webconfig.LogConfig{Level: level, Mode: "debug"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := NewSimulator(NewClient(*server, *token, 10*time.Second), Options{
		MAC:         *mac,
		MachineName: *machine,
		UserName:    *user,
		OS:          runtime.GOOS,
		Latitude:    *lat,
		Longitude:   *lon,
		TickSeconds: int(interval.Seconds()),
	}, *seed)

	if err := sim.Register(ctx); err != nil {
		logger.Log.Error().Err(err).Str("server", *server).Msg("registration failed")
		return 1
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for n := 0; *count == 0 || n < *count; n++ {
		if err := sim.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			// the next cycle retries
			logger.Log.Warn().Err(err).Msg("report failed")
		}
		if *count != 0 && n == *count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
		}
	}
	return 0
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
