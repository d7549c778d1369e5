package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyumbacal/internal/auth"
	"nyumbacal/internal/ics"
	"nyumbacal/internal/links"
	"nyumbacal/internal/model"
	"nyumbacal/internal/onboarding"
)

var eat = time.FixedZone("EAT", 3*60*60)

type fakeRecords struct {
	recs     model.Records
	err      error
	landlord string
}

func (f *fakeRecords) Records(_ context.Context, landlord string) (model.Records, error) {
	f.landlord = landlord
	return f.recs, f.err
}

func intPtr(n int) *int { return &n }

func sampleRecords() model.Records {
	return model.Records{
		Tenants: []model.Tenant{{
			ID: "t1", Name: "Jane", Property: "Riverside", Unit: "A1",
			Rent: decimal.NewFromInt(15000), RentDueDay: intPtr(15),
			LeaseEnd: time.Date(2025, 4, 14, 0, 0, 0, 0, eat),
		}},
		Maintenance: []model.MaintenanceRequest{{
			ID: "m1", Issue: "Leaking tap", Property: "Riverside", Status: "completed",
			ScheduledDate:     time.Date(2025, 3, 15, 10, 0, 0, 0, eat),
			EstimatedDuration: "2 hours",
			EstimatedCost:     decimal.NewNullDecimal(decimal.NewFromInt(3000)),
			ActualCost:        decimal.NewNullDecimal(decimal.NewFromInt(3600)),
		}},
		Viewings: []model.Viewing{{
			ID: "v1", Property: "Riverside", ProspectName: "Ali",
			Date: time.Date(2025, 3, 5, 0, 0, 0, 0, eat), Time: "14:00", Status: "confirmed",
		}},
	}
}

func newTestServer(t *testing.T, src RecordSource, opts Options) *Server {
	t.Helper()
	opts.Location = eat
	opts.Now = func() time.Time { return time.Date(2025, 3, 2, 12, 0, 0, 0, eat) }
	return NewServer(src, onboarding.NewMemoryStore(), nil, opts)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCalendarICS(t *testing.T) {
	src := &fakeRecords{recs: sampleRecords()}
	srv := newTestServer(t, src, Options{})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/calendar.ics?landlord=ll1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ll1", src.landlord)
	assert.Equal(t, ics.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="nyumbanii-calendar.ics"`)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, body, "SUMMARY:Rent Due - Jane\r\n")
	assert.Contains(t, body, "SUMMARY:Property Viewing - Ali\r\n")
	assert.Equal(t, 4, strings.Count(body, "BEGIN:VEVENT"))
}

func TestCalendarICS_RecordSourceFailure(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{err: errors.New("db down")}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/calendar.ics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEventICS(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/events/rent/t1.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DTSTART:20250315T060000Z\r\n")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rent-t1.ics")

	for _, target := range []string{
		"/api/events/rent/nope.ics",
		"/api/events/party/t1.ics",
		"/api/events/rent/t1",
	} {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, target, "").Code, target)
	}
}

func TestEventICS_DerivationErrorIsBadRequest(t *testing.T) {
	recs := model.Records{Tenants: []model.Tenant{{ID: "t9", Name: "Zed", RentDueDay: intPtr(40)}}}
	srv := newTestServer(t, &fakeRecords{recs: recs}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/events/rent/t9.ics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventLinks(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/events/viewing/v1/links", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var set links.Set
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	assert.True(t, strings.HasPrefix(set.Google, links.GoogleBaseURL))
	assert.True(t, strings.HasPrefix(set.Outlook, links.OutlookBaseURL))
}

func TestDerive(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, Options{})
	body := `{"tenants":[
		{"id":"a","name":"Kim","rentDueDay":20,"rent":"9,500"},
		{"id":"b","name":""}
	]}`
	rec := do(t, srv.Handler(), http.MethodPost, "/api/events/derive", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []model.CalendarEvent `json:"events"`
		Errors []recordErrorDTO      `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Rent Due - Kim", resp.Events[0].Title)
	assert.True(t, resp.Events[0].Start.Equal(time.Date(2025, 3, 20, 9, 0, 0, 0, eat)))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, model.KindRent, resp.Errors[0].Kind)
	assert.Equal(t, "b", resp.Errors[0].RecordID)
}

func TestDerive_BadBody(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, Options{})
	rec := do(t, srv.Handler(), http.MethodPost, "/api/events/derive", `[1,2,3]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrid_Day(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/grid?year=2025&month=3&day=15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, "2025-03-15", day.Date)
	assert.Len(t, day.Entries, 3)

	rec = do(t, h, http.MethodGet, "/api/grid?year=2025&month=3&day=15&filter=rent", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day.Entries, 1)
	assert.Equal(t, model.KindRent, day.Entries[0].Kind)

	rec = do(t, h, http.MethodGet, "/api/grid?year=2025&month=3&day=15&maintenance=false&lease=0", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Len(t, day.Entries, 1)

	rec = do(t, h, http.MethodGet, "/api/grid?year=2025&month=3&day=16", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.NotNil(t, day.Entries)
	assert.Empty(t, day.Entries)
}

func TestGrid_Month(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{WeekStart: time.Monday})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/grid", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m struct {
		Title    string   `json:"title"`
		Weekdays []string `json:"weekdays"`
		Weeks    [][]struct {
			Day   int  `json:"day"`
			Today bool `json:"today"`
		} `json:"weeks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "March 2025", m.Title)
	assert.Equal(t, "Mon", m.Weekdays[0])
	// 1 March 2025 is a Saturday.
	assert.Equal(t, 0, m.Weeks[0][4].Day)
	assert.Equal(t, 1, m.Weeks[0][5].Day)
	assert.True(t, m.Weeks[0][6].Today)
}

func TestGrid_BadParams(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	h := srv.Handler()
	for _, target := range []string{
		"/api/grid?filter=viewing",
		"/api/grid?month=13",
		"/api/grid?year=2025&month=2&day=29",
	} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, target, "").Code, target)
	}
}

func TestBudget(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/api/maintenance/budget", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum struct {
		Requests  int    `json:"requests"`
		OverCount int    `json:"over_budget"`
		Variance  string `json:"variance_total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Requests)
	assert.Equal(t, 1, sum.OverCount)
	assert.Equal(t, "600", sum.Variance)
}

func TestOnboarding(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, Options{})
	h := srv.Handler()

	status := func(rec *httptest.ResponseRecorder) onboardingResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code)
		var resp onboardingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	assert.False(t, status(do(t, h, http.MethodGet, "/api/onboarding/u1", "")).Completed)
	assert.True(t, status(do(t, h, http.MethodPut, "/api/onboarding/u1", "")).Completed)
	got := status(do(t, h, http.MethodGet, "/api/onboarding/u1", ""))
	assert.Equal(t, "u1", got.User)
	assert.True(t, got.Completed)
	assert.False(t, status(do(t, h, http.MethodDelete, "/api/onboarding/u1", "")).Completed)
	assert.False(t, status(do(t, h, http.MethodGet, "/api/onboarding/u1", "")).Completed)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/api/onboarding/u1", "").Code)
}

func TestCalendarPage(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/calendar?year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "March 2025")
	assert.Contains(t, body, "Rent Due - Jane")
	assert.Contains(t, body, "ev-maintenance")
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/preview.png", "").Code)

	path := filepath.Join(t.TempDir(), "preview.png")
	srv = newTestServer(t, &fakeRecords{}, Options{PreviewPath: path})
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/preview.png", "").Code)

	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644))
	rec := do(t, srv.Handler(), http.MethodGet, "/preview.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestBasicAuthGuardsAllButHealth(t *testing.T) {
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	srv := newTestServer(t, &fakeRecords{recs: sampleRecords()}, Options{
		Auth: auth.BasicAuth{User: "admin", Hash: hash},
	})
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/grid", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/grid", nil)
	req.SetBasicAuth("admin", "pw")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
