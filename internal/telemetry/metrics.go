package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rule kinds used as metric labels.
const (
	KindProgram  = "program"
	KindDocument = "document"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_evaluations_total",
			Help: "Rule set evaluations performed, by rule kind",
		},
		[]string{"kind"},
	)
	RuleFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_fetch_failures_total",
			Help: "Rule fetches that failed and fell back to the no-rules result",
		},
		[]string{"kind"},
	)
	RulesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rules_skipped_total",
			Help: "Persisted rule records skipped because they failed validation",
		},
		[]string{"kind"},
	)

	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_clients",
		Help: "Number of currently connected rule stream clients",
	})
	CachedRuleSets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cached_rule_sets",
		Help: "Number of organization rule sets held in the snapshot cache",
	})

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, Evaluations, RuleFetchFailures, RulesSkipped, SSEClients, CachedRuleSets)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// chi fills the pattern in while routing, so read it afterwards
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
