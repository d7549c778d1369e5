package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nyumbacal/internal/config"
	appLog "nyumbacal/internal/log"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   string
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-password":
			hashPassword(os.Args[2:])
			return
		case "import":
			os.Exit(importRecords(os.Args[2:]))
		}
	}

	flags := parseFlags()
	appLog.Info("nyumbacal starting", "version", version)

	conf, err := loadConfig(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"database", conf.Database.Driver,
		"redis", conf.Redis.URL != "",
		"feeds", len(conf.Feeds),
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, conf)
	if err != nil {
		appLog.Error("startup failed", err)
		os.Exit(1)
	}
	defer a.Close()

	switch {
	case flags.once:
		if err := a.runner.RunOnce(ctx); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
	case flags.snapshot != "":
		if err := a.snapshot(ctx, flags.snapshot); err != nil {
			appLog.Error("snapshot failed", err)
			os.Exit(1)
		}
	default:
		if err := a.serve(ctx); err != nil {
			appLog.Error("server failed", err)
			os.Exit(1)
		}
	}
	appLog.Info("nyumbacal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh feeds, write the export file and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render the current month grid to this PNG and exit")

	flag.Parse()
	return cfg
}

// loadConfig reads .env (if present), the YAML file and env overrides, then
// applies the log level.
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("could not read .env", "err", err)
	}
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	level, ok := appLog.ParseLevel(conf.LogLevel)
	if !ok {
		appLog.Warn("unknown log level, using info", "log_level", conf.LogLevel)
	}
	appLog.SetLevel(level)
	return conf, nil
}

// serve runs the HTTP server, scheduler and dependency probes until ctx is
// cancelled.
func (a *app) serve(ctx context.Context) error {
	c, err := a.runner.Schedule(ctx, a.conf.RefreshCron, a.conf.Location())
	if err != nil {
		return err
	}
	defer func() { <-c.Stop().Done() }()

	go a.monitor.Run(ctx, 30*time.Second)
	go func() {
		if err := a.runner.RunOnce(ctx); err != nil {
			appLog.Error("initial run failed", err)
		}
	}()

	srv := &http.Server{
		Addr:              a.conf.Listen,
		Handler:           a.web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("HTTP server listening", "addr", a.conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// snapshot serves the app on an ephemeral loopback port long enough to
// capture /calendar.
func (a *app) snapshot(ctx context.Context, out string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: a.web.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return a.capture(ctx, "http://"+ln.Addr().String(), out)
}
