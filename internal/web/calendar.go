package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	"nyumbacal/internal/grid"
	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var calendarTmpl = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"kindClass": func(k model.EventKind) string { return "ev-" + string(k) },
}).ParseFS(templateFS, "templates/calendar.html"))

type calendarPage struct {
	Name   string
	Month  grid.Month
	Filter grid.Filter
}

// GET /calendar?landlord=&year=&month=&filter=&rent=&maintenance=&lease=
//
// Renders the month grid as static HTML. The root element carries
// data-ready="true" once the document is complete so headless snapshots
// can wait on it.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	view, opts, err := s.gridRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	recs, ok := s.loadRecords(w, r)
	if !ok {
		return
	}

	page := calendarPage{
		Name:   s.opts.CalendarName,
		Month:  grid.Layout(view, recs, opts, s.opts.WeekStart, s.now()),
		Filter: opts.Filter,
	}
	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("render calendar page failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handlePreview serves the last snapshot PNG written by the capture job.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.opts.PreviewPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(s.opts.PreviewPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		appLog.Error("open preview failed", err, "path", s.opts.PreviewPath)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "preview.png", info.ModTime(), f)
}
