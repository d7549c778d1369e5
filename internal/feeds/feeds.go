// Package feeds imports viewing bookings published as ICS feeds by external
// scheduling tools. Each occurrence in the refresh window becomes a Viewing.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nyumbacal/internal/ics"
	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/model"
)

// Source is a configured booking feed.
type Source struct {
	ID       string
	URL      string
	Landlord string
	// Property is used when an occurrence carries no LOCATION.
	Property string
}

// Fetcher retrieves one feed body.
type Fetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// ViewingSink stores imported viewings.
type ViewingSink interface {
	UpsertExternalViewing(ctx context.Context, v *model.Viewing) (bool, error)
	DeleteStaleViewings(ctx context.Context, source string, since time.Time, keep []string) (int64, error)
}

// Tracker receives refresh outcomes.
type Tracker interface {
	TrackFeedRefresh(source string, instances int, err error)
}

// Report summarizes one feed refresh.
type Report struct {
	Source    string
	Instances int
	Created   int
	Updated   int
	Removed   int64
	Skipped   int
	FromCache bool
	Truncated []string
}

// Importer turns feeds into stored viewings.
type Importer struct {
	Fetcher  Fetcher
	Sink     ViewingSink
	Tracker  Tracker
	Location *time.Location
	// Horizon is how far ahead occurrences are imported.
	Horizon time.Duration
	Now     func() time.Time
}

func (im *Importer) loc() *time.Location {
	if im.Location == nil {
		return time.Local
	}
	return im.Location
}

func (im *Importer) now() time.Time {
	if im.Now == nil {
		return time.Now()
	}
	return im.Now()
}

// Refresh imports every source. A failing source does not stop the others;
// all failures are returned joined.
func (im *Importer) Refresh(ctx context.Context, sources []Source) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := im.RefreshSource(ctx, src)
		if im.Tracker != nil {
			im.Tracker.TrackFeedRefresh(src.ID, rep.Instances, err)
		}
		if err != nil {
			appLog.Error("feed refresh failed", err, "source", src.ID)
			errs = append(errs, fmt.Errorf("feed %s: %w", src.ID, err))
			continue
		}
		appLog.Info("feed refreshed",
			"source", src.ID,
			"instances", rep.Instances,
			"created", rep.Created,
			"updated", rep.Updated,
			"removed", rep.Removed,
			"cached", rep.FromCache,
		)
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// RefreshSource fetches, expands and stores one feed. Viewings of this
// source inside the window that no longer appear in the feed are removed,
// unless expansion was truncated.
func (im *Importer) RefreshSource(ctx context.Context, src Source) (Report, error) {
	rep := Report{Source: src.ID}
	if src.ID == "" || src.URL == "" {
		return rep, &model.MissingFieldError{Record: "feed", Field: "id/url"}
	}

	res, err := im.Fetcher.Fetch(ctx, ics.Source{ID: src.ID, URL: src.URL})
	if err != nil {
		return rep, err
	}
	rep.FromCache = res.FromCache

	parsed, err := ics.ParseFeed(res.Source, res.Body, im.loc())
	if err != nil {
		return rep, err
	}

	now := im.now()
	from := now.Add(-24 * time.Hour)
	horizon := im.Horizon
	if horizon <= 0 {
		horizon = 90 * 24 * time.Hour
	}
	expanded, err := ics.Expand(parsed, ics.ExpandOptions{
		Location: im.loc(),
		From:     from,
		To:       now.Add(horizon),
	})
	if err != nil {
		return rep, err
	}
	rep.Truncated = expanded.Truncated

	keep := make([]string, 0, len(expanded.Instances))
	for _, in := range expanded.Instances {
		v, ok := im.viewingFrom(src, in)
		if !ok {
			rep.Skipped++
			continue
		}
		created, err := im.Sink.UpsertExternalViewing(ctx, &v)
		if err != nil {
			return rep, err
		}
		if created {
			rep.Created++
		} else {
			rep.Updated++
		}
		rep.Instances++
		keep = append(keep, v.ExternalUID)
	}

	if len(rep.Truncated) == 0 {
		since := dayStart(from, im.loc())
		if rep.Removed, err = im.Sink.DeleteStaleViewings(ctx, src.ID, since, keep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// viewingFrom maps an occurrence to a Viewing. Cancelled occurrences are
// skipped.
func (im *Importer) viewingFrom(src Source, in ics.Instance) (model.Viewing, bool) {
	if strings.EqualFold(in.Status, "CANCELLED") {
		return model.Viewing{}, false
	}

	start := in.Start.In(im.loc())
	v := model.Viewing{
		LandlordID:   src.Landlord,
		Property:     in.Location,
		ProspectName: ProspectName(in.Summary),
		Date:         dayStart(start, im.loc()),
		Status:       "pending",
		SourceID:     src.ID,
		ExternalUID:  in.ExternalID(),
	}
	if v.Property == "" {
		v.Property = src.Property
	}
	if !in.AllDay {
		v.Time = start.Format("15:04")
	}
	if strings.EqualFold(in.Status, "CONFIRMED") {
		v.Status = "confirmed"
	}
	return v, true
}

var summaryPrefixes = []string{"property viewing", "viewing", "booking"}

// ProspectName extracts the person from summaries such as
// "Viewing - Ali" or "Booking: Ali". Unrecognized summaries are returned
// trimmed; an empty summary yields "External booking".
func ProspectName(summary string) string {
	s := strings.TrimSpace(summary)
	lower := strings.ToLower(s)
	for _, p := range summaryPrefixes {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		rest := strings.TrimLeft(s[len(p):], " -:–")
		if rest != "" {
			s = rest
		}
		break
	}
	if s == "" {
		return "External booking"
	}
	return s
}
