// Package jobs runs the periodic work: importing viewing feeds and
// regenerating the calendar export file.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nyumbacal/internal/events"
	"nyumbacal/internal/feeds"
	"nyumbacal/internal/ics"
	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/model"
)

// RecordSource loads records; an empty landlord means all of them.
type RecordSource interface {
	Records(ctx context.Context, landlord string) (model.Records, error)
}

// Tracker receives export outcomes.
type Tracker interface {
	TrackExport(target string, err error)
	TrackDerivation(errs []error)
}

// Exporter writes the full calendar to a file.
type Exporter struct {
	Records  RecordSource
	Path     string
	Name     string
	Location *time.Location
	Now      func() time.Time
	Tracker  Tracker
}

// Export derives every record's events and atomically replaces Path.
// Records that fail derivation are logged and left out.
func (e *Exporter) Export(ctx context.Context) error {
	recs, err := e.Records.Records(ctx, "")
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	d := &events.Deriver{Location: e.Location, Now: e.Now}
	evs, errs := d.All(recs)
	for _, err := range errs {
		appLog.Warn("skipping record", "err", err)
	}

	gen := &ics.Generator{Now: e.Now}
	body, err := gen.Calendar(evs, e.Name)
	if err == nil {
		err = ics.WriteFile(e.Path, body)
	}
	if e.Tracker != nil {
		e.Tracker.TrackDerivation(errs)
		e.Tracker.TrackExport("file", err)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", e.Path, err)
	}
	appLog.Info("calendar exported", "path", e.Path, "events", len(evs), "skipped", len(errs))
	return nil
}

// Refresher imports feeds.
type Refresher interface {
	Refresh(ctx context.Context, sources []feeds.Source) ([]feeds.Report, error)
}

// Runner performs one refresh-then-export cycle. Any step may be nil.
type Runner struct {
	Refresher Refresher
	Sources   []feeds.Source
	Exporter  *Exporter
	// Capture runs last, e.g. to re-render the preview image.
	Capture func(ctx context.Context) error

	mu sync.Mutex
}

// RunOnce refreshes feeds, exports, then captures. A failed step does not
// prevent the later ones; all errors are returned joined.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.Refresher != nil && len(r.Sources) > 0 {
		if _, err := r.Refresher.Refresh(ctx, r.Sources); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Exporter != nil && r.Exporter.Path != "" {
		if err := r.Exporter.Export(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Capture != nil {
		if err := r.Capture(ctx); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Schedule starts a cron that calls RunOnce on spec (standard five-field
// syntax) in loc. Overlapping runs are skipped. Stop the returned cron on
// shutdown.
func (r *Runner) Schedule(ctx context.Context, spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled run failed", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("scheduler started", "spec", spec, "timezone", loc.String())
	return c, nil
}

// cronLogger adapts appLog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
