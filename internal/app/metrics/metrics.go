package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studytrack",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studytrack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studytrack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	openTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studytrack",
			Subsystem: "tasks",
			Name:      "open_total",
			Help:      "Number of tasks currently not completed.",
		},
	)

	overdueTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studytrack",
			Subsystem: "tasks",
			Name:      "overdue_total",
			Help:      "Number of open tasks past their due time.",
		},
	)

	taskCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studytrack",
			Subsystem: "tasks",
			Name:      "completions_total",
			Help:      "Total number of task completion transitions.",
		},
	)

	reminderSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studytrack",
			Subsystem: "reminders",
			Name:      "sweeps_total",
			Help:      "Total number of overdue-task sweeps.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		openTasks,
		overdueTasks,
		taskCompletions,
		reminderSweeps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// SetTaskCounts publishes the current open and overdue task counts.
func SetTaskCounts(open, overdue int) {
	openTasks.Set(float64(open))
	overdueTasks.Set(float64(overdue))
}

// RecordTaskCompletion counts a task transitioning to completed.
func RecordTaskCompletion() {
	taskCompletions.Inc()
}

// RecordReminderSweep counts one run of the overdue-task sweeper.
func RecordReminderSweep(success bool) {
	result := "false"
	if success {
		result = "true"
	}
	reminderSweeps.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses record IDs so the path label stays low-cardinality.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	switch parts[0] {
	case "students", "parents", "tasks":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		if len(parts) == 2 {
			return "/" + parts[0] + "/:id"
		}
		return "/" + parts[0] + "/:id/" + parts[2]
	default:
		return "/" + parts[0]
	}
}
