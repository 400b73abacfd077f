package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ReasonLotFull      = "lot_full"
	ReasonWindowBooked = "window_booked"
	ReasonLostRace     = "lost_race"
	ReasonInvalid      = "invalid_request"
	ReasonNotFound     = "lot_not_found"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_admitted_total",
			Help: "Bookings admitted by the engine",
		},
	)
	BookingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Booking requests rejected by the engine, by reason",
		},
		[]string{"reason"},
	)
	BookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Cancelled bookings, by whether the slot was released",
		},
		[]string{"released"},
	)
)

func ObserveCancellation(released bool) {
	BookingsCancelled.WithLabelValues(strconv.FormatBool(released)).Inc()
}

// NormalizePath keeps the resource segment only so ids do not explode the
// label cardinality: /api/v1/bookings/id/42 -> bookings.
func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, "api/v1/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := NormalizePath(r.URL.Path)
		RequestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
