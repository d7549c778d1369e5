package monitoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nyumbacal/internal/events"
	appLog "nyumbacal/internal/log"
)

var (
	exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyumbacal_exports_total",
			Help: "Calendar documents produced, by target and result",
		},
		[]string{"target", "status"},
	)

	derivationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyumbacal_derivation_errors_total",
			Help: "Records that could not be turned into calendar events",
		},
		[]string{"kind"},
	)

	feedRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyumbacal_feed_refreshes_total",
			Help: "External viewing feed refreshes, by source and result",
		},
		[]string{"source", "status"},
	)

	feedInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nyumbacal_feed_instances",
			Help: "Viewings produced by the last refresh of each feed",
		},
		[]string{"source"},
	)

	dependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nyumbacal_dependency_up",
			Help: "1 when the last probe of a backing service succeeded",
		},
		[]string{"dependency"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyumbacal_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Probe checks one backing service.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type Monitor struct {
	probes []Probe
}

func NewMonitor(probes ...Probe) *Monitor {
	return &Monitor{probes: probes}
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if len(m.probes) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	for _, p := range m.probes {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			appLog.Warn("dependency probe failed", "dependency", p.Name, "err", err)
			dependencyUp.WithLabelValues(p.Name).Set(0)
			continue
		}
		dependencyUp.WithLabelValues(p.Name).Set(1)
	}
}

// TrackExport counts one produced calendar document.
func (m *Monitor) TrackExport(target string, err error) {
	exports.WithLabelValues(target, status(err)).Inc()
}

// TrackDerivation counts the per-record failures of a derivation run.
func (m *Monitor) TrackDerivation(errs []error) {
	for _, err := range errs {
		kind := "unknown"
		var re *events.RecordError
		if errors.As(err, &re) {
			kind = string(re.Kind)
		}
		derivationErrors.WithLabelValues(kind).Inc()
	}
}

// TrackFeedRefresh records the outcome of refreshing one feed.
func (m *Monitor) TrackFeedRefresh(source string, instances int, err error) {
	feedRefreshes.WithLabelValues(source, status(err)).Inc()
	if err == nil {
		feedInstances.WithLabelValues(source).Set(float64(instances))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps next, observing latency under the given route label.
func (m *Monitor) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(route, strconv.Itoa(rec.code)).Observe(time.Since(start).Seconds())
	})
}
