package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	mutations  *prometheus.CounterVec
	coverBytes prometheus.Counter
	throttled  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route pattern, method and status",
			},
			[]string{"route", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_mutations_total",
				Help: "Successful todo mutations by kind",
			},
			[]string{"kind"},
		),
		coverBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "todo_cover_bytes_total",
				Help: "Bytes of cover images accepted",
			},
		),
		throttled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_throttled_total",
				Help: "Login and register attempts rejected by the throttle",
			},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.mutations, m.coverBytes, m.throttled)
	return m
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.metrics.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
