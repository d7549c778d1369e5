package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "nyumbacal/internal/log"
)

// FeedEvent is a VEVENT read from an external feed, before recurrence
// expansion.
type FeedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string
	Status      string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
	// RecurrenceID is set on VEVENTs overriding one instance of a series.
	RecurrenceID *time.Time
}

// IsOverride reports whether ev replaces a single recurring instance.
func (ev FeedEvent) IsOverride() bool { return ev.RecurrenceID != nil }

// ParseFeed decodes an ICS payload. VEVENTs that cannot be read (no UID,
// no DTSTART) are logged and skipped; floating times are read in loc.
func ParseFeed(src Source, body []byte, loc *time.Location) ([]FeedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "feed", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	out := make([]FeedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := feedEventFrom(src, ve, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "feed", src.ID, "reason", perr.Error())
			continue
		}
		out = append(out, ev)
	}

	appLog.Debug("ics parse completed", "feed", src.ID, "event_count", len(out))
	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func feedEventFrom(src Source, ve *ical.VEvent, loc *time.Location) (FeedEvent, error) {
	ev := FeedEvent{
		Source:      src,
		UID:         propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     UnescapeText(propValue(ve, ical.ComponentPropertySummary)),
		Description: UnescapeText(propValue(ve, ical.ComponentPropertyDescription)),
		Location:    UnescapeText(propValue(ve, ical.ComponentPropertyLocation)),
		Status:      strings.ToUpper(propValue(ve, ical.ComponentPropertyStatus)),
		RawRRule:    propValue(ve, ical.ComponentPropertyRrule),
	}
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return ev, errors.New("missing DTSTART")
	}
	if vs := dtStart.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		ev.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		ev.AllDay = true
	}

	start, err := ve.GetStartAt()
	if err != nil {
		// Fall back to our own parser for floating or date-only values.
		start, err = parseICSTime(dtStart.Value, loc)
		if err != nil {
			return ev, err
		}
	}
	ev.Start = start

	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		if ev.AllDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}
	ev.End = end

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, err := parseICSTime(rid.Value, loc); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

// parseICSTime reads DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse(dateTimeFormat, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
