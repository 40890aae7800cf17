// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	logsIngested   *prometheus.CounterVec
	bulkBatchSize  prometheus.Histogram
	queryLatency   prometheus.Histogram
}

func newMetrics(registry prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),

		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logbook",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"}),

		logsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Subsystem: "ingest",
			Name:      "logs_total",
			Help:      "Logs stored, by ingestion mode",
		}, []string{"mode"}),

		bulkBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logbook",
			Subsystem: "ingest",
			Name:      "bulk_batch_size",
			Help:      "Logs per accepted bulk request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logbook",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Latency of filtered log queries",
			Buckets:   latencyBuckets,
		}),
	}

	collectors := []prometheus.Collector{m.requestTotal, m.requestLatency, m.logsIngested, m.bulkBatchSize, m.queryLatency}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("httpapi: registering metrics: %w", err)
		}
	}
	return m, nil
}

// instrument records request metrics and logs each request at debug
// level, labelled by chi route pattern rather than raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if routeContext := chi.RouteContext(r.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		s.metrics.requestTotal.With(labels).Inc()
		s.metrics.requestLatency.With(labels).Observe(elapsed.Seconds())

		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", wrapped.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
