package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zyberhero/internal/alerts"
	"zyberhero/internal/children"
	"zyberhero/internal/control"
	"zyberhero/internal/database"
	"zyberhero/internal/handlers"
	"zyberhero/internal/identity"
	"zyberhero/internal/location"
	"zyberhero/internal/logger"
	"zyberhero/internal/notify"
	"zyberhero/internal/output"
	"zyberhero/internal/telemetry"
	"zyberhero/internal/version"
	"zyberhero/internal/web"
	"zyberhero/internal/webconfig"

	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func RunServe(args []string) int {
	cfg, err := webconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	port := fs.IntP("port", "p", cfg.Server.Port, "listen port")
	bind := fs.StringP("bind", "b", cfg.Server.Bind, "bind address")
	auth := fs.Bool("auth", cfg.Auth.Enabled, "require a bearer token on dashboard routes")
	debug := fs.Bool("debug", false, "debug logging to the console")
	save := fs.Bool("save", false, "persist --port, --bind and --auth to the config file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	cfg.Server.Port = *port
	cfg.Server.Bind = *bind
	cfg.Auth.Enabled = *auth
	if *debug {
		cfg.Log.Mode = "debug"
		cfg.Log.Level = "debug"
	}
	if *save {
		if err := webconfig.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
		} else {
			output.Printf("saved to %s\n", webconfig.ConfigPath())
		}
	}

	logger.Init(cfg.Log)
	logger.Log.Info().Str("version", version.Version).Msg("zyberhero starting")
	logger.Config.Info().
		Str("config", webconfig.ConfigPath()).
		Str("listen", cfg.ListenAddr()).
		Str("db_driver", cfg.Database.Driver).
		Bool("auth", cfg.Auth.Enabled).
		Str("notify_min_severity", cfg.Alerts.NotifyMinSeverity).
		Msg("configuration loaded")

	db, err := database.Open(cfg.Database, cfg.IsDebug())
	if err != nil {
		logger.Log.Error().Err(err).Msg("database init failed")
		return 1
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		logger.Log.Error().Err(err).Msg("database migration failed")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := web.NewWSHub(cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	settings := database.NewSettingRepo(db)
	notifier := notify.NewManager()
	if err := notifier.Reload(ctx, settings); err != nil {
		logger.Notify.Warn().Err(err).Msg("failed to load notification channels")
	}

	resolver := identity.NewResolver(db)
	router := web.NewRouter()
	handlers.Register(router, handlers.Services{
		Resolver: resolver,
		Telemetry: telemetry.NewService(db, resolver, hub, telemetry.Options{
			StaleWindow: cfg.LiveStaleWindow(),
			RecentLimit: cfg.Telemetry.RecentActivityLimit,
		}),
		Commands: control.NewQueue(db, resolver, hub),
		Alerts: alerts.NewStore(db, resolver, hub, notifier, alerts.Options{
			MinSeverity: cfg.Alerts.NotifyMinSeverity,
			ListLimit:   cfg.Alerts.ListLimit,
		}),
		Locations: location.NewTracker(db, resolver, hub, location.Options{
			HistoryLimit: cfg.Location.HistoryDefaultLimit,
		}),
		Children: children.NewService(db),
		Settings: settings,
		Notifier: notifier,
		Audit:    database.NewAuditLogRepo(db),
		Events:   hub,
	})
	router.GET(handlers.APIPrefix+"/ws", hub.HandleWS(cfg.Auth.JWTSecret, cfg.Auth.Enabled))

	// registration: 30 per IP per minute
	limiter := web.NewRateLimiter(30, time.Minute, ctx)

	middlewares := []func(http.Handler) http.Handler{
		web.RecoveryMiddleware,
		web.SecurityHeadersMiddleware,
		web.RequestIDMiddleware,
		web.RequestLogMiddleware,
		web.CORSMiddleware(cfg.Server.CORSOrigins),
		web.MaxBodySizeMiddleware(2 << 20), // 2 MB
		web.RateLimitMiddleware(limiter, []string{handlers.APIPrefix + "/devices/register"}),
		web.InputSanitizeMiddleware,
	}
	if cfg.Auth.Enabled {
		middlewares = append(middlewares, web.AuthMiddleware(cfg.Auth.JWTSecret, handlers.AgentPaths()))
	} else {
		logger.Log.Warn().Msg("auth disabled, dashboard routes are open")
	}

	addr := cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ncannot listen on %s: %v\nuse --port to pick another port\n\n", addr, err)
		logger.Log.Error().Err(err).Str("addr", addr).Msg("listen failed")
		return 1
	}

	srv := &http.Server{
		Handler:           web.Chain(router, middlewares...),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Log.Info().Str("addr", addr).Bool("auth", cfg.Auth.Enabled).Msg("http server listening")
	output.Printf("%s listening on http://%s\n", output.Colorize("success", "zyberhero "+version.Version), addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("http server stopped")
			return 1
		}
	}

	logger.Log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	return 0
}
