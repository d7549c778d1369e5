package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDBTimestamp struct{ t time.Time }

func (f fakeDBTimestamp) ToDate() time.Time { return f.t }

func TestToInstant_Representations(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	want := time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC)
	local := time.Date(2025, 3, 15, 9, 0, 0, 0, nairobi)

	cases := map[string]any{
		"time.Time":        local,
		"pointer":          &local,
		"native timestamp": fakeDBTimestamp{t: local},
		"document struct":  DocumentTimestamp{Seconds: want.Unix()},
		"document map":     map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)},
		"admin map":        map[string]any{"_seconds": float64(want.Unix())},
		"rfc3339":          "2025-03-15T09:00:00+03:00",
		"naive string":     "2025-03-15T09:00:00",
		"millis float":     float64(want.UnixMilli()),
		"millis int64":     want.UnixMilli(),
		"json number":      json.Number("1742018400000"),
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ToInstant(in, nairobi)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestToInstant_DateOnlyUsesLocation(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)

	got, err := ToInstant("2025-03-15", nairobi)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC), got)
}

func TestToInstant_Invalid(t *testing.T) {
	for _, in := range []any{nil, "", "next tuesday", map[string]any{"foo": 1.0}, struct{}{}, (*time.Time)(nil)} {
		_, err := ToInstant(in, nil)
		require.Error(t, err, "input %#v", in)
		assert.True(t, errors.Is(err, ErrInvalidRecord))

		var ire *InvalidRecordError
		assert.True(t, errors.As(err, &ire))
	}
}

func TestCalendarEventValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	ev := CalendarEvent{Title: "x", Start: start}
	require.NoError(t, ev.Validate())
	assert.Equal(t, start.Add(time.Hour), ev.EndOrDefault())

	err := CalendarEvent{Start: start}.Validate()
	assert.True(t, errors.Is(err, ErrMissingField))

	err = CalendarEvent{Title: "x", Start: start, End: start.Add(-time.Minute)}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}
