package ics

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nyumbacal/internal/model"
)

const (
	// ContentType is the MIME type of generated documents.
	ContentType = "text/calendar; charset=utf-8"

	ProductID = "-//Nyumbanii//Property Management//EN"
	// CalendarTimezone is advertised via X-WR-TIMEZONE on full calendars.
	CalendarTimezone = "Africa/Nairobi"
	UIDDomain        = "nyumbanii.com"

	// AlarmTrigger fires the display reminder 15 minutes before start.
	AlarmTrigger = "-PT15M"

	dateTimeFormat = "20060102T150405Z"
	lineBreak      = "\r\n"
)

// Generator renders CalendarEvents as iCalendar text. The zero value is
// ready to use; Now and NewUID exist so output can be pinned in tests.
type Generator struct {
	Now    func() time.Time
	NewUID func(now time.Time) string
}

func (g *Generator) now() time.Time {
	if g == nil || g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *Generator) uid(now time.Time) string {
	if g == nil || g.NewUID == nil {
		return NewUID(now)
	}
	return g.NewUID(now)
}

// NewUID returns "{unix millis}-{9 random chars}@nyumbanii.com". Uniqueness
// relies on the random suffix, not on cryptographic guarantees.
func NewUID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix + "@" + UIDDomain
}

// FormatDateTime renders t as a UTC basic-format timestamp (YYYYMMDDTHHMMSSZ).
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeFormat)
}

// EscapeText escapes a TEXT property value. Backslashes go first so the
// escapes added afterwards are not escaped again.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// UnescapeText reverses EscapeText. Unknown escapes keep the escaped rune.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// eventLines renders one VEVENT. Optional properties come back as empty
// strings and are dropped by joinLines.
func (g *Generator) eventLines(ev model.CalendarEvent, now time.Time) []string {
	status := ev.Status
	if status == "" {
		status = model.StatusConfirmed
	}

	var location, description string
	if ev.Location != "" {
		location = "LOCATION:" + EscapeText(ev.Location)
	}
	if ev.Description != "" {
		description = "DESCRIPTION:" + EscapeText(ev.Description)
	}

	return []string{
		"BEGIN:VEVENT",
		"UID:" + g.uid(now),
		"DTSTAMP:" + FormatDateTime(now),
		"DTSTART:" + FormatDateTime(ev.Start),
		"DTEND:" + FormatDateTime(ev.EndOrDefault()),
		"SUMMARY:" + EscapeText(ev.Title),
		description,
		location,
		"STATUS:" + string(status),
		"BEGIN:VALARM",
		"TRIGGER:" + AlarmTrigger,
		"ACTION:DISPLAY",
		"DESCRIPTION:" + EscapeText("Reminder: "+ev.Title),
		"END:VALARM",
		"END:VEVENT",
	}
}

func joinLines(lines []string) string {
	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, lineBreak) + lineBreak
}

// Event wraps a single event in a complete VCALENDAR document.
func (g *Generator) Event(ev model.CalendarEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	now := g.now()

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	lines = append(lines, g.eventLines(ev, now)...)
	lines = append(lines, "END:VCALENDAR")
	return joinLines(lines), nil
}

// Calendar wraps all events in one named VCALENDAR document. An empty slice
// yields a valid calendar without VEVENTs. The first invalid event aborts
// generation.
func (g *Generator) Calendar(evs []model.CalendarEvent, name string) (string, error) {
	for _, ev := range evs {
		if err := ev.Validate(); err != nil {
			return "", err
		}
	}
	now := g.now()

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + EscapeText(name),
		"X-WR-TIMEZONE:" + CalendarTimezone,
	}
	for _, ev := range evs {
		lines = append(lines, g.eventLines(ev, now)...)
	}
	lines = append(lines, "END:VCALENDAR")
	return joinLines(lines), nil
}
