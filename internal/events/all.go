package events

import (
	"fmt"
	"sort"

	"nyumbacal/internal/model"
)

// RecordError ties a derivation failure to the record that caused it.
type RecordError struct {
	Kind     model.EventKind
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// All derives every event the records produce: rent and lease reminders per
// tenant, one event per maintenance request and per viewing. Tenants without
// a lease end get no lease reminder. Records that fail derivation are
// reported in the error slice and skipped; the result is sorted by start.
func (d *Deriver) All(recs model.Records) ([]model.CalendarEvent, []error) {
	out := make([]model.CalendarEvent, 0, 2*len(recs.Tenants)+len(recs.Maintenance)+len(recs.Viewings))
	var errs []error

	add := func(kind model.EventKind, id string, ev model.CalendarEvent, err error) {
		if err != nil {
			errs = append(errs, &RecordError{Kind: kind, RecordID: id, Err: err})
			return
		}
		out = append(out, ev)
	}

	for _, t := range recs.Tenants {
		ev, err := d.RentDue(t)
		add(model.KindRent, t.ID, ev, err)

		if !t.LeaseEnd.IsZero() {
			ev, err = d.LeaseExpiry(t)
			add(model.KindLease, t.ID, ev, err)
		}
	}
	for _, r := range recs.Maintenance {
		ev, err := d.Maintenance(r)
		add(model.KindMaintenance, r.ID, ev, err)
	}
	for _, v := range recs.Viewings {
		ev, err := d.Viewing(v)
		add(model.KindViewing, v.ID, ev, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, errs
}

// One derives the single event of the given kind for the record with id.
func (d *Deriver) One(recs model.Records, kind model.EventKind, id string) (model.CalendarEvent, bool, error) {
	switch kind {
	case model.KindRent, model.KindLease:
		for _, t := range recs.Tenants {
			if t.ID != id {
				continue
			}
			if kind == model.KindRent {
				ev, err := d.RentDue(t)
				return ev, true, err
			}
			ev, err := d.LeaseExpiry(t)
			return ev, true, err
		}
	case model.KindMaintenance:
		for _, r := range recs.Maintenance {
			if r.ID == id {
				ev, err := d.Maintenance(r)
				return ev, true, err
			}
		}
	case model.KindViewing:
		for _, v := range recs.Viewings {
			if v.ID == id {
				ev, err := d.Viewing(v)
				return ev, true, err
			}
		}
	}
	return model.CalendarEvent{}, false, nil
}
