package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nyumbacal/internal/events"
	"nyumbacal/internal/grid"
	"nyumbacal/internal/ics"
	"nyumbacal/internal/links"
	"nyumbacal/internal/maintenance"
	"nyumbacal/internal/model"
	"nyumbacal/internal/store"
)

const maxDeriveBody = 1 << 20

func parseKind(s string) (model.EventKind, bool) {
	switch k := model.EventKind(strings.ToLower(s)); k {
	case model.KindRent, model.KindMaintenance, model.KindLease, model.KindViewing:
		return k, true
	}
	return "", false
}

func writeCalendar(w http.ResponseWriter, body, filename string) {
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// GET /api/calendar.ics?landlord=
func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.loadRecords(w, r)
	if !ok {
		return
	}
	evs, errs := s.deriver.All(recs)
	s.monitor.TrackDerivation(errs)

	body, err := s.gen.Calendar(evs, s.opts.CalendarName)
	s.monitor.TrackExport("http", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCalendar(w, body, s.opts.ExportFileName)
}

// lookupEvent derives the event named by the {kind} and id path values.
func (s *Server) lookupEvent(w http.ResponseWriter, r *http.Request, id string) (model.CalendarEvent, bool) {
	kind, ok := parseKind(r.PathValue("kind"))
	if !ok || id == "" {
		http.NotFound(w, r)
		return model.CalendarEvent{}, false
	}
	recs, ok := s.loadRecords(w, r)
	if !ok {
		return model.CalendarEvent{}, false
	}
	ev, found, err := s.deriver.One(recs, kind, id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s record %q", kind, id))
		return model.CalendarEvent{}, false
	}
	if err != nil {
		writeDomainError(w, err)
		return model.CalendarEvent{}, false
	}
	return ev, true
}

// GET /api/events/{kind}/{id}.ics
func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	id, isICS := strings.CutSuffix(file, ".ics")
	if !isICS {
		http.NotFound(w, r)
		return
	}
	ev, ok := s.lookupEvent(w, r, id)
	if !ok {
		return
	}
	body, err := s.gen.Event(ev)
	s.monitor.TrackExport("event", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCalendar(w, body, fmt.Sprintf("%s-%s.ics", ev.Kind, id))
}

// GET /api/events/{kind}/{id}/links
func (s *Server) handleEventLinks(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.lookupEvent(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	set, err := links.For(ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type recordErrorDTO struct {
	Kind     model.EventKind `json:"kind,omitempty"`
	RecordID string          `json:"record_id,omitempty"`
	Error    string          `json:"error"`
}

type deriveResponse struct {
	Events []model.CalendarEvent `json:"events"`
	Errors []recordErrorDTO      `json:"errors,omitempty"`
}

func recordErrors(errs []error) []recordErrorDTO {
	out := make([]recordErrorDTO, 0, len(errs))
	for _, err := range errs {
		dto := recordErrorDTO{Error: err.Error()}
		var re *events.RecordError
		if errors.As(err, &re) {
			dto.Kind, dto.RecordID, dto.Error = re.Kind, re.RecordID, re.Err.Error()
		}
		out = append(out, dto)
	}
	return out
}

// POST /api/events/derive
//
// The body holds raw records as exported from a document store; timestamps
// may be in any supported shape.
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	recs, err := store.DecodeDocuments(http.MaxBytesReader(w, r.Body, maxDeriveBody), s.opts.Location)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	evs, errs := s.deriver.All(recs)
	s.monitor.TrackDerivation(errs)
	writeJSON(w, http.StatusOK, deriveResponse{Events: evs, Errors: recordErrors(errs)})
}

type dayResponse struct {
	Date    string       `json:"date"`
	Entries []grid.Entry `json:"entries"`
}

// gridRequest reads the shared year/month/filter/visibility parameters.
func (s *Server) gridRequest(r *http.Request) (grid.View, grid.Options, error) {
	q := r.URL.Query()
	now := s.now()

	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 {
		return grid.View{}, grid.Options{}, &model.InvalidRecordError{Record: "request", Field: "month", Reason: "must be 1..12"}
	}

	filter, err := grid.ParseFilter(q.Get("filter"))
	if err != nil {
		return grid.View{}, grid.Options{}, &model.InvalidRecordError{Record: "request", Field: "filter", Reason: err.Error()}
	}

	view := grid.View{Year: year, Month: time.Month(month), Location: s.opts.Location}
	opts := grid.Options{
		Filter: filter,
		Visible: grid.Visibility{
			Rent:        parseBoolDefault(q.Get("rent"), true),
			Maintenance: parseBoolDefault(q.Get("maintenance"), true),
			Lease:       parseBoolDefault(q.Get("lease"), true),
		},
	}
	return view, opts, nil
}

// GET /api/grid?landlord=&year=&month=&day=&filter=&rent=&maintenance=&lease=
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	view, opts, err := s.gridRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	recs, ok := s.loadRecords(w, r)
	if !ok {
		return
	}

	if d := r.URL.Query().Get("day"); d != "" {
		day := parseIntDefault(d, 0)
		if day < 1 || day > view.Days() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("day must be 1..%d", view.Days()))
			return
		}
		entries := grid.EventsForDate(view, recs, day, opts)
		if entries == nil {
			entries = []grid.Entry{}
		}
		writeJSON(w, http.StatusOK, dayResponse{
			Date:    time.Date(view.Year, view.Month, day, 0, 0, 0, 0, s.opts.Location).Format("2006-01-02"),
			Entries: entries,
		})
		return
	}

	writeJSON(w, http.StatusOK, grid.Layout(view, recs, opts, s.opts.WeekStart, s.now()))
}

// GET /api/maintenance/budget?landlord=
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.loadRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, maintenance.Summarize(recs.Maintenance))
}

type onboardingResponse struct {
	User      string `json:"user"`
	Completed bool   `json:"completed"`
}

func (s *Server) handleOnboardingGet(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	done, err := s.onboarding.Completed(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{User: user, Completed: done})
}

func (s *Server) handleOnboardingPut(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	if err := s.onboarding.MarkCompleted(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{User: user, Completed: true})
}

func (s *Server) handleOnboardingDelete(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	if err := s.onboarding.Reset(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{User: user, Completed: false})
}
