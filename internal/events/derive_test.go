package events

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyumbacal/internal/model"
)

var eat = time.FixedZone("EAT", 3*60*60)

func fixedDeriver(now time.Time) *Deriver {
	return &Deriver{Location: eat, Now: func() time.Time { return now }}
}

func intPtr(n int) *int { return &n }

func TestRentDue_RollsToNextMonth(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 1, 10, 12, 0, 0, 0, eat))
	tenant := model.Tenant{
		ID:         "t1",
		Name:       "Jane",
		RentDueDay: intPtr(5),
		Rent:       decimal.NewFromInt(15000),
		Property:   "Riverside",
	}

	ev, err := d.RentDue(tenant)
	require.NoError(t, err)

	assert.Equal(t, "Rent Due - Jane", ev.Title)
	assert.Equal(t, time.Date(2025, 2, 5, 9, 0, 0, 0, eat), ev.Start)
	assert.Equal(t, time.Date(2025, 2, 5, 10, 0, 0, 0, eat), ev.End)
	assert.Equal(t, "Riverside", ev.Location)
	assert.Equal(t, model.StatusConfirmed, ev.Status)
	assert.Contains(t, ev.Description, "15000.00")
}

func TestRentDue_SameMonthWhenNotYetDue(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 1, 3, 8, 0, 0, 0, eat))

	ev, err := d.RentDue(model.Tenant{Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 5, 9, 0, 0, 0, eat), ev.Start)
	assert.Contains(t, ev.Description, "KES 0.00")
}

func TestRentDue_DecemberRollsIntoNextYear(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 12, 20, 9, 0, 0, 0, eat))

	ev, err := d.RentDue(model.Tenant{Name: "Jane", RentDueDay: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 9, 0, 0, 0, eat), ev.Start)
}

func TestRentDue_DayMatchesAndNeverBeforeNow(t *testing.T) {
	nows := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, eat),
		time.Date(2025, 2, 14, 9, 0, 0, 0, eat),
		time.Date(2025, 2, 28, 23, 59, 0, 0, eat),
		time.Date(2024, 2, 29, 9, 30, 0, 0, eat),
		time.Date(2025, 12, 31, 18, 0, 0, 0, eat),
	}
	for _, now := range nows {
		d := fixedDeriver(now)
		for day := 1; day <= 28; day++ {
			ev, err := d.RentDue(model.Tenant{Name: "T", RentDueDay: intPtr(day)})
			require.NoError(t, err)
			assert.Equal(t, day, ev.Start.Day(), "now=%s day=%d", now, day)
			assert.False(t, ev.Start.Before(now), "now=%s day=%d start=%s", now, day, ev.Start)
			assert.True(t, ev.End.After(ev.Start))
		}
	}
}

func TestRentDue_ClampsToShortMonth(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 1, 31, 10, 0, 0, 0, eat))

	ev, err := d.RentDue(model.Tenant{Name: "T", RentDueDay: intPtr(31)})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, eat), ev.Start)
}

func TestRentDue_Errors(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 1, 1, 0, 0, 0, 0, eat))

	_, err := d.RentDue(model.Tenant{Name: "T", RentDueDay: intPtr(0)})
	assert.True(t, errors.Is(err, model.ErrInvalidRecord))

	_, err = d.RentDue(model.Tenant{Name: "T", RentDueDay: intPtr(-3)})
	assert.True(t, errors.Is(err, model.ErrInvalidRecord))

	_, err = d.RentDue(model.Tenant{Name: "T", RentDueDay: intPtr(32)})
	assert.True(t, errors.Is(err, model.ErrInvalidRecord))

	_, err = d.RentDue(model.Tenant{RentDueDay: intPtr(5)})
	var mfe *model.MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "name", mfe.Field)
}

func TestMaintenanceDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"3 hours":   3 * time.Hour,
		"3 days":    3 * time.Hour,
		" 5h":       5 * time.Hour,
		"":          2 * time.Hour,
		"a while":   2 * time.Hour,
		"0 hours":   2 * time.Hour,
		"about 4 h": 2 * time.Hour,

		"9999999 hours":            maxMaintenanceHours * time.Hour,
		"99999999999999999999999h": maxMaintenanceHours * time.Hour,
	}
	for in, want := range cases {
		assert.Equal(t, want, MaintenanceDuration(in), "input %q", in)
	}
}

func TestMaintenance(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, eat)
	d := fixedDeriver(now)
	scheduled := time.Date(2025, 3, 15, 11, 0, 0, 0, eat)

	ev, err := d.Maintenance(model.MaintenanceRequest{
		ID:                "m1",
		Issue:             "Leaking tap",
		Description:       "Kitchen sink",
		Priority:          "high",
		Property:          "Riverside",
		Unit:              "A2",
		ScheduledDate:     scheduled,
		EstimatedDuration: "3 days",
		EstimatedCost:     decimal.NewNullDecimal(decimal.NewFromInt(2500)),
	})
	require.NoError(t, err)

	assert.Equal(t, "Maintenance: Leaking tap", ev.Title)
	assert.True(t, scheduled.Equal(ev.Start))
	assert.Equal(t, 3*time.Hour, ev.End.Sub(ev.Start))
	assert.Equal(t, model.StatusConfirmed, ev.Status)
	assert.Equal(t, "Riverside A2", ev.Location)
	assert.Equal(t, "Kitchen sink\nPriority: high\nEstimated cost: KES 2500.00", ev.Description)
}

func TestMaintenance_DefaultsAndCompleted(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, eat)
	d := fixedDeriver(now)

	ev, err := d.Maintenance(model.MaintenanceRequest{Issue: "Paint", Status: "completed"})
	require.NoError(t, err)
	assert.True(t, now.Equal(ev.Start))
	assert.Equal(t, 2*time.Hour, ev.End.Sub(ev.Start))
	assert.Equal(t, model.StatusCompleted, ev.Status)
	assert.Empty(t, ev.Location)

	_, err = d.Maintenance(model.MaintenanceRequest{Status: "pending"})
	assert.True(t, errors.Is(err, model.ErrMissingField))
}

func TestViewingClock(t *testing.T) {
	cases := map[string][2]int{
		"14:30": {14, 30},
		"":      {10, 0},
		"14":    {10, 0},
		"14:":   {10, 0},
		":30":   {10, 0},
		"25:00": {10, 0},
		"ab:cd": {10, 0},
		"9:05":  {9, 5},
	}
	for in, want := range cases {
		h, m := ViewingClock(in)
		assert.Equal(t, want, [2]int{h, m}, "input %q", in)
	}
}

func TestViewing(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 3, 1, 8, 0, 0, 0, eat))
	date := time.Date(2025, 3, 20, 0, 0, 0, 0, eat)

	ev, err := d.Viewing(model.Viewing{ProspectName: "Ali", Property: "Riverside", Date: date, Time: "14:30", Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 20, 14, 30, 0, 0, eat), ev.Start)
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
	assert.Equal(t, model.StatusConfirmed, ev.Status)

	ev, err = d.Viewing(model.Viewing{ProspectName: "Ali", Date: date, Time: "2pm", Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 20, 10, 0, 0, 0, eat), ev.Start)
	assert.Equal(t, model.StatusTentative, ev.Status)

	_, err = d.Viewing(model.Viewing{ProspectName: "Ali"})
	assert.True(t, errors.Is(err, model.ErrMissingField))
}

func TestLeaseExpiry(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 1, 1, 8, 0, 0, 0, eat))
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, eat)

	ev, err := d.LeaseExpiry(model.Tenant{Name: "Jane", Property: "Riverside", LeaseEnd: end})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 31, 9, 0, 0, 0, eat), ev.Start)
	assert.Equal(t, time.Date(2025, 5, 31, 10, 0, 0, 0, eat), ev.End)
	assert.Equal(t, "Lease Expiry Reminder - Jane", ev.Title)
	assert.Contains(t, ev.Description, "30 June 2025")
}

func TestLeaseExpiry_CountsCalendarDaysAcrossDST(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	d := &Deriver{Location: london, Now: func() time.Time { return time.Date(2025, 1, 1, 8, 0, 0, 0, london) }}

	end := time.Date(2025, 4, 15, 0, 30, 0, 0, london)
	ev, err := d.LeaseExpiry(model.Tenant{Name: "Jane", LeaseEnd: end})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 16, 9, 0, 0, 0, london), ev.Start)
}

func TestLeaseExpiry_PastReminderIsKept(t *testing.T) {
	now := time.Date(2025, 6, 20, 8, 0, 0, 0, eat)
	d := fixedDeriver(now)

	ev, err := d.LeaseExpiry(model.Tenant{Name: "Jane", LeaseEnd: time.Date(2025, 7, 1, 0, 0, 0, 0, eat)})
	require.NoError(t, err)
	assert.True(t, ev.Start.Before(now))
}

func TestAll_CollectsErrorsAndSorts(t *testing.T) {
	d := fixedDeriver(time.Date(2025, 3, 1, 8, 0, 0, 0, eat))
	recs := model.Records{
		Tenants: []model.Tenant{
			{ID: "t1", Name: "Jane", LeaseEnd: time.Date(2025, 12, 31, 0, 0, 0, 0, eat)},
			{ID: "t2", Name: "Bad", RentDueDay: intPtr(-1)},
		},
		Maintenance: []model.MaintenanceRequest{
			{ID: "m1", Issue: "Roof", ScheduledDate: time.Date(2025, 3, 2, 9, 0, 0, 0, eat)},
		},
		Viewings: []model.Viewing{
			{ID: "v1", ProspectName: "Ali", Date: time.Date(2025, 3, 3, 0, 0, 0, 0, eat)},
		},
	}

	evs, errs := d.All(recs)
	require.Len(t, errs, 1)
	var re *RecordError
	require.True(t, errors.As(errs[0], &re))
	assert.Equal(t, "t2", re.RecordID)
	assert.True(t, errors.Is(errs[0], model.ErrInvalidRecord))

	require.Len(t, evs, 4)
	for i := 1; i < len(evs); i++ {
		assert.False(t, evs[i].Start.Before(evs[i-1].Start))
	}
	assert.Equal(t, model.KindMaintenance, evs[0].Kind)

	ev, ok, err := d.One(recs, model.KindViewing, "v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Property Viewing - Ali", ev.Title)

	_, ok, _ = d.One(recs, model.KindRent, "missing")
	assert.False(t, ok)
}
