// Package events turns domain records into CalendarEvents.
//
// Every function here is pure: its only inputs are the record, the
// Deriver's clock and its display location. Wall-clock times (09:00 rent
// reminders, "HH:MM" viewing slots) are interpreted in the display location;
// the resulting instants can be serialized as UTC without further care.
package events

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nyumbacal/internal/model"
)

const (
	// DefaultRentDueDay applies when a tenant has no configured due day.
	DefaultRentDueDay = 5
	// LeaseReminderDays is how many calendar days ahead of lease end the
	// reminder fires.
	LeaseReminderDays = 30

	reminderHour             = 9
	defaultMaintenanceHours  = 2
	maxMaintenanceHours      = 24 * 366
	defaultViewingHour       = 10
	defaultViewingMinute     = 0
	defaultViewingTimeString = "10:00"
)

// leadingInt captures the integer prefix of free-text durations ("3 hours").
var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// Deriver converts domain records into calendar events.
type Deriver struct {
	// Location is the display timezone for wall-clock computations.
	// nil means time.Local.
	Location *time.Location
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// NewDeriver returns a Deriver bound to loc and the real clock.
func NewDeriver(loc *time.Location) *Deriver {
	return &Deriver{Location: loc, Now: time.Now}
}

func (d *Deriver) loc() *time.Location {
	if d == nil || d.Location == nil {
		return time.Local
	}
	return d.Location
}

func (d *Deriver) now() time.Time {
	if d == nil || d.Now == nil {
		return time.Now().In(d.loc())
	}
	return d.Now().In(d.loc())
}

// RentDueDay returns the tenant's due day, applying the default and
// rejecting impossible values.
func RentDueDay(t model.Tenant) (int, error) {
	if t.RentDueDay == nil {
		return DefaultRentDueDay, nil
	}
	day := *t.RentDueDay
	if day < 1 || day > 31 {
		return 0, &model.InvalidRecordError{
			Record: "tenant",
			Field:  "rent_due_day",
			Reason: fmt.Sprintf("day %d is outside 1..31", day),
		}
	}
	return day, nil
}

// RentDue produces a one-hour reminder at 09:00 on the next rent due date
// that is not before now. Due days past the end of a short month are
// clamped to the month's last day.
func (d *Deriver) RentDue(t model.Tenant) (model.CalendarEvent, error) {
	if strings.TrimSpace(t.Name) == "" {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "tenant", Field: "name"}
	}
	day, err := RentDueDay(t)
	if err != nil {
		return model.CalendarEvent{}, err
	}

	now := d.now()
	start := dueDateIn(now.Year(), now.Month(), day, d.loc())
	if start.Before(now) {
		next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, d.loc())
		start = dueDateIn(next.Year(), next.Month(), day, d.loc())
	}

	ev := model.CalendarEvent{
		Kind:        model.KindRent,
		RecordID:    t.ID,
		Title:       "Rent Due - " + t.Name,
		Description: rentDescription(t),
		Location:    t.Property,
		Start:       start,
		End:         start.Add(model.DefaultEventDuration),
		Status:      model.StatusConfirmed,
	}
	return ev, ev.Validate()
}

// dueDateIn returns 09:00 on the given day of month, clamped to the last day.
func dueDateIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysIn(year, month, loc); day > last {
		day = last
	}
	return time.Date(year, month, day, reminderHour, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// MaintenanceDuration parses the leading integer of a free-text estimate as
// a number of hours. "3 days" therefore yields 3h, not 72h. Missing,
// unparseable or non-positive estimates fall back to two hours; estimates
// are capped at maxMaintenanceHours.
func MaintenanceDuration(estimate string) time.Duration {
	m := leadingInt.FindStringSubmatch(estimate)
	if m == nil {
		return defaultMaintenanceHours * time.Hour
	}
	if len(m[1]) > 6 {
		return maxMaintenanceHours * time.Hour
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultMaintenanceHours * time.Hour
	}
	return time.Duration(min(n, maxMaintenanceHours)) * time.Hour
}

// Maintenance schedules a maintenance job at its scheduled date, or now if
// it has none.
func (d *Deriver) Maintenance(r model.MaintenanceRequest) (model.CalendarEvent, error) {
	if strings.TrimSpace(r.Issue) == "" {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "maintenance request", Field: "issue"}
	}

	start := r.ScheduledDate
	if start.IsZero() {
		start = d.now()
	}
	start = start.In(d.loc())

	status := model.StatusConfirmed
	if strings.EqualFold(r.Status, "completed") {
		status = model.StatusCompleted
	}

	var desc strings.Builder
	desc.WriteString(r.Description)
	if r.Priority != "" {
		fmt.Fprintf(&desc, "\nPriority: %s", r.Priority)
	}
	if r.AssignedTo != "" {
		fmt.Fprintf(&desc, "\nAssigned to: %s", r.AssignedTo)
	}
	if r.EstimatedCost.Valid {
		fmt.Fprintf(&desc, "\nEstimated cost: KES %s", r.EstimatedCost.Decimal.StringFixed(2))
	}

	ev := model.CalendarEvent{
		Kind:        model.KindMaintenance,
		RecordID:    r.ID,
		Title:       "Maintenance: " + r.Issue,
		Description: strings.TrimPrefix(desc.String(), "\n"),
		Location:    unitLabel(r.Property, r.Unit),
		Start:       start,
		End:         start.Add(MaintenanceDuration(r.EstimatedDuration)),
		Status:      status,
	}
	return ev, ev.Validate()
}

// ViewingClock parses an "HH:MM" string. Anything else, including partial
// values such as "14" or "14:", yields 10:00.
func ViewingClock(s string) (hour, minute int) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = defaultViewingTimeString
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return defaultViewingHour, defaultViewingMinute
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return defaultViewingHour, defaultViewingMinute
	}
	return h, m
}

// Viewing produces a one-hour event at the viewing's local date and time.
func (d *Deriver) Viewing(v model.Viewing) (model.CalendarEvent, error) {
	if strings.TrimSpace(v.ProspectName) == "" {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "viewing", Field: "prospect_name"}
	}
	if v.Date.IsZero() {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "viewing", Field: "date"}
	}

	day := v.Date.In(d.loc())
	h, m := ViewingClock(v.Time)
	start := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, d.loc())

	status := model.StatusTentative
	if strings.EqualFold(v.Status, "confirmed") {
		status = model.StatusConfirmed
	}

	desc := "Property viewing with " + v.ProspectName
	if v.ProspectPhone != "" {
		desc += " (" + v.ProspectPhone + ")"
	}

	ev := model.CalendarEvent{
		Kind:        model.KindViewing,
		RecordID:    v.ID,
		Title:       "Property Viewing - " + v.ProspectName,
		Description: desc,
		Location:    v.Property,
		Start:       start,
		End:         start.Add(model.DefaultEventDuration),
		Status:      status,
	}
	return ev, ev.Validate()
}

// LeaseReminderDate is 09:00 local on the day 30 days before lease end.
func (d *Deriver) LeaseReminderDate(leaseEnd time.Time) time.Time {
	r := leaseEnd.In(d.loc()).AddDate(0, 0, -LeaseReminderDays)
	return time.Date(r.Year(), r.Month(), r.Day(), reminderHour, 0, 0, 0, d.loc())
}

// LeaseExpiry produces a reminder 30 days before lease end. Reminders that
// already lie in the past are returned as-is.
func (d *Deriver) LeaseExpiry(t model.Tenant) (model.CalendarEvent, error) {
	if strings.TrimSpace(t.Name) == "" {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "tenant", Field: "name"}
	}
	if t.LeaseEnd.IsZero() {
		return model.CalendarEvent{}, &model.MissingFieldError{Record: "tenant", Field: "lease_end"}
	}

	start := d.LeaseReminderDate(t.LeaseEnd)
	ev := model.CalendarEvent{
		Kind:     model.KindLease,
		RecordID: t.ID,
		Title:    "Lease Expiry Reminder - " + t.Name,
		Description: fmt.Sprintf("Lease for %s expires on %s",
			unitLabel(t.Property, t.Unit), t.LeaseEnd.In(d.loc()).Format("2 January 2006")),
		Location: t.Property,
		Start:    start,
		End:      start.Add(model.DefaultEventDuration),
		Status:   model.StatusConfirmed,
	}
	return ev, ev.Validate()
}

func rentDescription(t model.Tenant) string {
	desc := "Monthly rent of KES " + t.Rent.StringFixed(2)
	if label := unitLabel(t.Property, t.Unit); label != "" {
		desc += " due for " + label
	}
	return desc
}

func unitLabel(property, unit string) string {
	switch {
	case property == "":
		return unit
	case unit == "":
		return property
	default:
		return property + " " + unit
	}
}
