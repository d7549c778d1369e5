package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "nyumbacal/internal/log"
)

const defaultMaxInstances = 500

// ExpandOptions bounds recurrence expansion.
type ExpandOptions struct {
	// Location is where instances are reported; nil means time.Local.
	Location *time.Location

	// From and To bound the window; instances overlapping it are kept.
	From time.Time
	To   time.Time

	// MaxInstances caps instances per series; zero means defaultMaxInstances.
	MaxInstances int
}

// Instance is one concrete occurrence of a feed event.
type Instance struct {
	SourceID string
	UID      string
	// Key identifies the occurrence within its series (RFC3339 start).
	Key string

	Summary     string
	Description string
	Location    string
	Status      string
	AllDay      bool

	Start time.Time
	End   time.Time
}

// ExternalID is a stable identifier for the instance across refreshes.
func (in Instance) ExternalID() string {
	return in.UID + "/" + in.Key
}

// ExpandResult carries the instances and the UIDs that hit the cap.
type ExpandResult struct {
	Instances []Instance
	Truncated []string
}

// Expand flattens feed events into concrete instances within the window,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. Output is sorted by
// start time.
func Expand(evs []FeedEvent, opts ExpandOptions) (ExpandResult, error) {
	var res ExpandResult

	if opts.To.Before(opts.From) {
		return res, errors.New("expand: window end is before start")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = defaultMaxInstances
	}

	series := make(map[string][]FeedEvent)
	overrides := make(map[string][]FeedEvent)
	var order []string
	for _, ev := range evs {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := series[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		series[ev.UID] = append(series[ev.UID], ev)
	}

	for _, uid := range order {
		for _, ev := range series[uid] {
			instances, capped := expandOne(ev, overrides[uid], opts)
			res.Instances = append(res.Instances, instances...)
			if capped {
				res.Truncated = append(res.Truncated, uid)
				appLog.Warn("expand: series truncated", "uid", uid, "cap", opts.MaxInstances)
			}
		}
	}

	sort.SliceStable(res.Instances, func(i, j int) bool {
		return res.Instances[i].Start.Before(res.Instances[j].Start)
	})
	return res, nil
}

func expandOne(ev FeedEvent, overrides []FeedEvent, opts ExpandOptions) ([]Instance, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, opts.From, opts.To) {
			return nil, false
		}
		return []Instance{instanceOf(ev, ev.Start, ev.End, overrides, opts.Location)}, false
	}

	rule, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	length := ev.End.Sub(ev.Start)
	from := opts.From.In(ev.Start.Location()).Add(-length)
	to := opts.To.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	capped := false
	if len(starts) > opts.MaxInstances {
		starts = starts[:opts.MaxInstances]
		capped = true
	}

	out := make([]Instance, 0, len(starts))
	for _, s := range starts {
		out = append(out, instanceOf(ev, s, s.Add(length), overrides, opts.Location))
	}
	return out, capped
}

// instanceOf builds the instance starting at start, substituting an override
// whose RECURRENCE-ID matches.
func instanceOf(ev FeedEvent, start, end time.Time, overrides []FeedEvent, loc *time.Location) Instance {
	key := start.UTC().Format(time.RFC3339)
	for _, ov := range overrides {
		if ov.RecurrenceID.Equal(start) {
			ev, start, end = ov, ov.Start, ov.End
			break
		}
	}
	return Instance{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		Key:         key,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		AllDay:      ev.AllDay,
		Start:       start.In(loc),
		End:         end.In(loc),
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
