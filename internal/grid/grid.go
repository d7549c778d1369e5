// Package grid decides which derived events land on which day cell of a
// displayed month. It recomputes from the records on every call.
package grid

import (
	"fmt"
	"strings"
	"time"

	"nyumbacal/internal/events"
	"nyumbacal/internal/model"
)

// Filter selects a single category, or all of them.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterRent        Filter = "rent"
	FilterMaintenance Filter = "maintenance"
	FilterLease       Filter = "lease"
)

// ParseFilter accepts "", "all", "rent", "maintenance" and "lease".
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterRent, FilterMaintenance, FilterLease:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// Visibility holds the per-category toggles.
type Visibility struct {
	Rent        bool
	Maintenance bool
	Lease       bool
}

// AllVisible shows every category.
var AllVisible = Visibility{Rent: true, Maintenance: true, Lease: true}

// Options gate which categories are included.
type Options struct {
	Filter  Filter
	Visible Visibility
}

func (o Options) includes(kind model.EventKind) bool {
	f := o.Filter
	if f == "" {
		f = FilterAll
	}
	if f != FilterAll && string(f) != string(kind) {
		return false
	}
	switch kind {
	case model.KindRent:
		return o.Visible.Rent
	case model.KindMaintenance:
		return o.Visible.Maintenance
	case model.KindLease:
		return o.Visible.Lease
	}
	return false
}

// View is the month being displayed.
type View struct {
	Year  int
	Month time.Month
	// Location is where calendar days are reckoned; nil means time.Local.
	Location *time.Location
}

func (v View) loc() *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

// Days returns the number of days in the displayed month.
func (v View) Days() int {
	return time.Date(v.Year, v.Month+1, 0, 0, 0, 0, 0, v.loc()).Day()
}

func (v View) isDay(t time.Time, day int) bool {
	t = t.In(v.loc())
	return t.Year() == v.Year && t.Month() == v.Month && t.Day() == day
}

// Entry is one event shown in a day cell.
type Entry struct {
	Kind     model.EventKind `json:"kind"`
	RecordID string          `json:"record_id"`
	Title    string          `json:"title"`
	Detail   string          `json:"detail,omitempty"`
	Status   string          `json:"status,omitempty"`
}

// EventsForDate lists the entries for one day of the displayed month:
// rent whose due day equals day (in any month; due days past the month's
// end land on its last day), maintenance scheduled on
// that date, and lease reminders (lease end minus 30 days) on that date.
// Tenants with an invalid due day are left out.
func EventsForDate(v View, recs model.Records, day int, opts Options) []Entry {
	if day < 1 || day > v.Days() {
		return nil
	}
	d := &events.Deriver{Location: v.loc()}
	var out []Entry

	if opts.includes(model.KindRent) {
		for _, t := range recs.Tenants {
			due, err := events.RentDueDay(t)
			if err != nil || min(due, v.Days()) != day {
				continue
			}
			out = append(out, Entry{
				Kind:     model.KindRent,
				RecordID: t.ID,
				Title:    "Rent Due - " + t.Name,
				Detail:   "KES " + t.Rent.StringFixed(2),
			})
		}
	}

	if opts.includes(model.KindMaintenance) {
		for _, r := range recs.Maintenance {
			if r.ScheduledDate.IsZero() || !v.isDay(r.ScheduledDate, day) {
				continue
			}
			out = append(out, Entry{
				Kind:     model.KindMaintenance,
				RecordID: r.ID,
				Title:    "Maintenance: " + r.Issue,
				Detail:   r.Property,
				Status:   r.Status,
			})
		}
	}

	if opts.includes(model.KindLease) {
		for _, t := range recs.Tenants {
			if t.LeaseEnd.IsZero() || !v.isDay(d.LeaseReminderDate(t.LeaseEnd), day) {
				continue
			}
			out = append(out, Entry{
				Kind:     model.KindLease,
				RecordID: t.ID,
				Title:    "Lease Expiry - " + t.Name,
				Detail:   "Ends " + t.LeaseEnd.In(v.loc()).Format("2 Jan 2006"),
			})
		}
	}

	return out
}
