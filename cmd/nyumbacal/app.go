package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"nyumbacal/internal/auth"
	"nyumbacal/internal/capture"
	"nyumbacal/internal/config"
	"nyumbacal/internal/feeds"
	"nyumbacal/internal/ics"
	"nyumbacal/internal/jobs"
	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/monitoring"
	"nyumbacal/internal/onboarding"
	"nyumbacal/internal/store"
	"nyumbacal/internal/web"
)

type app struct {
	conf    *config.Config
	store   *store.Store
	rdb     *redis.Client
	monitor *monitoring.Monitor
	runner  *jobs.Runner
	web     *web.Server
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	st, err := openStore(ctx, conf.Database)
	if err != nil {
		return nil, err
	}
	a := &app{conf: conf, store: st}

	probes := []monitoring.Probe{{Name: "database", Check: st.Ping}}

	var status onboarding.StatusStore = st.Onboarding()
	if conf.Redis.URL != "" {
		opt, err := redis.ParseURL(conf.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.rdb = redis.NewClient(opt)
		status = onboarding.NewCachedStore(status, a.rdb, conf.Redis.TTL)
		probes = append(probes, monitoring.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() },
		})
	}
	a.monitor = monitoring.NewMonitor(probes...)

	loc := conf.Location()
	importer := &feeds.Importer{
		Fetcher:  ics.NewFetcher(conf.FeedCacheDir, nil),
		Sink:     st,
		Tracker:  a.monitor,
		Location: loc,
		Horizon:  conf.Horizon(),
	}
	a.runner = &jobs.Runner{
		Refresher: importer,
		Sources:   feedSources(conf.Feeds),
		Exporter: &jobs.Exporter{
			Records:  st,
			Path:     conf.ExportPath,
			Name:     conf.CalendarName,
			Location: loc,
			Tracker:  a.monitor,
		},
	}

	var basic auth.BasicAuth
	if conf.BasicAuth != nil {
		basic = auth.BasicAuth{User: conf.BasicAuth.Username, Hash: conf.BasicAuth.PasswordHash}
	}
	a.web = web.NewServer(st, status, a.monitor, web.Options{
		Location:       loc,
		WeekStart:      conf.FirstWeekday(),
		CalendarName:   conf.CalendarName,
		ExportFileName: exportFileName(conf.ExportPath),
		Auth:           basic,
		PreviewPath:    conf.PreviewPath,
	})

	if conf.CaptureOnRefresh && conf.PreviewPath != "" {
		base := "http://" + loopback(conf.Listen)
		a.runner.Capture = func(ctx context.Context) error {
			return a.capture(ctx, base, conf.PreviewPath)
		}
	}
	return a, nil
}

func openStore(ctx context.Context, dbc config.DatabaseConfig) (*store.Store, error) {
	if dbc.Driver == "sqlite" {
		if dir := filepath.Dir(dbc.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, err
			}
		}
	}
	db, err := store.Open(dbc.Driver, dbc.DSN)
	if err != nil {
		return nil, err
	}
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	appLog.Info("database ready", "driver", dbc.Driver)
	return st, nil
}

func feedSources(fcs []config.FeedConfig) []feeds.Source {
	out := make([]feeds.Source, 0, len(fcs))
	for _, f := range fcs {
		out = append(out, feeds.Source{ID: f.ID, URL: f.URL, Landlord: f.Landlord, Property: f.Property})
	}
	return out
}

func exportFileName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// loopback turns a listen address such as ":8080" or "0.0.0.0:8080" into
// one a local browser can reach.
func loopback(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// capture renders base/calendar to out.
func (a *app) capture(ctx context.Context, base, out string) error {
	opts := capture.Options{URL: base + "/calendar", OutputPath: out}
	if a.conf.BasicAuth != nil {
		opts.User = a.conf.BasicAuth.Username
		opts.Password = os.Getenv("NYUMBA_SNAPSHOT_PASSWORD")
	}
	if err := capture.Snapshot(ctx, opts); err != nil {
		return err
	}
	appLog.Info("calendar snapshot written", "path", out)
	return nil
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			appLog.Warn("closing redis", "err", err)
		}
	}
	if err := a.store.Close(); err != nil {
		appLog.Warn("closing database", "err", err)
	}
}
