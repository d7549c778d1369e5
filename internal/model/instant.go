package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Timestamp is implemented by database-native timestamp values that can
// convert themselves to a time.Time.
type Timestamp interface {
	ToDate() time.Time
}

// DocumentTimestamp is the JSON shape document databases use for native
// timestamps ({"seconds": ..., "nanoseconds": ...}).
type DocumentTimestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// ToDate implements Timestamp.
func (t DocumentTimestamp) ToDate() time.Time {
	return time.Unix(t.Seconds, t.Nanoseconds).UTC()
}

// Layouts accepted for string timestamps, most specific first.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToInstant normalizes every timestamp representation the data layer can
// hand over into a UTC time.Time. Naive strings (no offset) are interpreted
// in loc; a nil loc means UTC.
//
// Supported inputs: time.Time, *time.Time, Timestamp, DocumentTimestamp-like
// maps ("seconds"/"_seconds" keys), strings, json.Number and numbers holding
// unix milliseconds.
func ToInstant(v any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch x := v.(type) {
	case nil:
		return time.Time{}, invalidInstant(v, errors.New("value is empty"))
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, invalidInstant(v, errors.New("value is empty"))
		}
		return x.UTC(), nil
	case Timestamp:
		return x.ToDate().UTC(), nil
	case string:
		return parseInstantString(x, loc)
	case json.Number:
		ms, err := x.Float64()
		if err != nil {
			return time.Time{}, invalidInstant(v, err)
		}
		return fromUnixMillis(ms)
	case float64:
		return fromUnixMillis(x)
	case int64:
		return time.UnixMilli(x).UTC(), nil
	case int:
		return time.UnixMilli(int64(x)).UTC(), nil
	case map[string]any:
		return fromTimestampMap(x)
	default:
		return time.Time{}, invalidInstant(v, fmt.Errorf("unsupported type %T", v))
	}
}

func parseInstantString(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalidInstant(s, errors.New("value is empty"))
	}
	for _, layout := range instantLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalidInstant(s, errors.New("unrecognized date format"))
}

func fromUnixMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, invalidInstant(ms, errors.New("not a finite number"))
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

func fromTimestampMap(m map[string]any) (time.Time, error) {
	secs, ok := numberField(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, invalidInstant(m, errors.New("timestamp object has no seconds"))
	}
	nanos, _ := numberField(m, "nanoseconds", "_nanoseconds")
	return DocumentTimestamp{Seconds: int64(secs), Nanoseconds: int64(nanos)}.ToDate(), nil
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func invalidInstant(v any, err error) error {
	return &InvalidRecordError{
		Record: "timestamp",
		Field:  fmt.Sprintf("%v", v),
		Reason: "cannot convert to instant",
		Err:    err,
	}
}
