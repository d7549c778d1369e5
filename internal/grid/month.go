package grid

import (
	"time"

	"nyumbacal/internal/model"
)

// Cell is one square of the month grid. Padding cells outside the month
// have Day == 0.
type Cell struct {
	Day     int     `json:"day"`
	Today   bool    `json:"today,omitempty"`
	Entries []Entry `json:"entries,omitempty"`
}

// Month is the laid-out grid for a View.
type Month struct {
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Title    string     `json:"title"`
	Weekdays []string   `json:"weekdays"`
	Weeks    [][]Cell   `json:"weeks"`
}

// Layout builds week rows for v. weekStart is time.Monday or time.Sunday;
// now marks today's cell when it falls within the month.
func Layout(v View, recs model.Records, opts Options, weekStart time.Weekday, now time.Time) Month {
	m := Month{
		Year:  v.Year,
		Month: v.Month,
		Title: time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, v.loc()).Format("January 2006"),
	}
	for i := 0; i < 7; i++ {
		m.Weekdays = append(m.Weekdays, time.Weekday((int(weekStart)+i)%7).String()[:3])
	}

	first := time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, v.loc())
	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	now = now.In(v.loc())

	week := make([]Cell, 0, 7)
	for i := 0; i < lead; i++ {
		week = append(week, Cell{})
	}
	for day := 1; day <= v.Days(); day++ {
		week = append(week, Cell{
			Day:     day,
			Today:   v.isDay(now, day),
			Entries: EventsForDate(v, recs, day, opts),
		})
		if len(week) == 7 {
			m.Weeks = append(m.Weeks, week)
			week = make([]Cell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, Cell{})
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m
}
