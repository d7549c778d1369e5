package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nyumbacal/internal/auth"
	"nyumbacal/internal/events"
	"nyumbacal/internal/ics"
	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/model"
	"nyumbacal/internal/monitoring"
	"nyumbacal/internal/onboarding"
)

// RecordSource loads the records calendars are derived from. An empty
// landlord means every landlord.
type RecordSource interface {
	Records(ctx context.Context, landlord string) (model.Records, error)
}

// Options configures a Server.
type Options struct {
	// Location is the display timezone; nil means time.Local.
	Location     *time.Location
	WeekStart    time.Weekday
	CalendarName string
	// ExportFileName is offered in Content-Disposition for full calendars.
	ExportFileName string
	Auth           auth.BasicAuth
	// PreviewPath is the snapshot PNG served at /preview.png; empty disables it.
	PreviewPath string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Server provides the calendar API, the HTML month grid and metrics.
type Server struct {
	records    RecordSource
	onboarding onboarding.StatusStore
	monitor    *monitoring.Monitor
	opts       Options

	deriver *events.Deriver
	gen     *ics.Generator
	mux     *http.ServeMux
}

// NewServer constructs a Server. monitor may be nil.
func NewServer(records RecordSource, status onboarding.StatusStore, monitor *monitoring.Monitor, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CalendarName == "" {
		opts.CalendarName = "Nyumbanii Calendar"
	}
	if opts.ExportFileName == "" {
		opts.ExportFileName = "nyumbanii-calendar.ics"
	}
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}

	s := &Server{
		records:    records,
		onboarding: status,
		monitor:    monitor,
		opts:       opts,
		deriver:    &events.Deriver{Location: opts.Location, Now: opts.Now},
		gen:        &ics.Generator{Now: opts.Now},
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler with Basic Auth applied to every path
// except /health.
func (s *Server) Handler() http.Handler {
	if !s.opts.Auth.Enabled() {
		return s.mux
	}
	appLog.Info("HTTP basic auth enabled", "user", s.opts.Auth.User)
	guarded := s.opts.Auth.Wrap(s.mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			s.mux.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.monitor.Instrument(pattern, h))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.handle("GET /api/calendar.ics", s.handleCalendarICS)
	s.handle("GET /api/events/{kind}/{file}", s.handleEventICS)
	s.handle("GET /api/events/{kind}/{id}/links", s.handleEventLinks)
	s.handle("POST /api/events/derive", s.handleDerive)
	s.handle("GET /api/grid", s.handleGrid)
	s.handle("GET /api/maintenance/budget", s.handleBudget)
	s.handle("GET /api/onboarding/{user}", s.handleOnboardingGet)
	s.handle("PUT /api/onboarding/{user}", s.handleOnboardingPut)
	s.handle("DELETE /api/onboarding/{user}", s.handleOnboardingDelete)
	s.handle("GET /calendar", s.handleCalendarPage)
	s.handle("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// loadRecords fetches records for the landlord query parameter, writing a
// 500 on failure.
func (s *Server) loadRecords(w http.ResponseWriter, r *http.Request) (model.Records, bool) {
	landlord := strings.TrimSpace(r.URL.Query().Get("landlord"))
	recs, err := s.records.Records(r.Context(), landlord)
	if err != nil {
		appLog.Error("load records failed", err, "landlord", landlord)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return model.Records{}, false
	}
	return recs, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrMissingField), errors.Is(err, model.ErrInvalidRecord):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBoolDefault(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
