// Package links builds "add to calendar" deep links for web calendar
// providers. The functions only build URLs; opening them is up to the caller.
package links

import (
	"net/url"
	"time"

	"nyumbacal/internal/model"
)

const (
	GoogleBaseURL  = "https://calendar.google.com/calendar/render"
	OutlookBaseURL = "https://outlook.live.com/calendar/0/deeplink/compose"

	googleDateFormat = "20060102T150405Z"
	// outlookDateFormat is ISO-8601 in UTC with milliseconds.
	outlookDateFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Set holds the links for one event.
type Set struct {
	Google  string `json:"google"`
	Outlook string `json:"outlook"`
}

// For builds both provider links for ev.
func For(ev model.CalendarEvent) (Set, error) {
	g, err := GoogleURL(ev)
	if err != nil {
		return Set{}, err
	}
	o, err := OutlookURL(ev)
	if err != nil {
		return Set{}, err
	}
	return Set{Google: g, Outlook: o}, nil
}

// GoogleURL returns a Google Calendar event template link.
func GoogleURL(ev model.CalendarEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	start := ev.Start.UTC().Format(googleDateFormat)
	end := ev.EndOrDefault().UTC().Format(googleDateFormat)

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", ev.Title)
	q.Set("details", ev.Description)
	q.Set("location", ev.Location)
	q.Set("dates", start+"/"+end)
	return GoogleBaseURL + "?" + q.Encode(), nil
}

// OutlookURL returns an Outlook.com compose deep link.
func OutlookURL(ev model.CalendarEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("path", "/calendar/action/compose")
	q.Set("rru", "addevent")
	q.Set("subject", ev.Title)
	q.Set("body", ev.Description)
	q.Set("location", ev.Location)
	q.Set("startdt", isoUTC(ev.Start))
	q.Set("enddt", isoUTC(ev.EndOrDefault()))
	return OutlookBaseURL + "?" + q.Encode(), nil
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(outlookDateFormat)
}
