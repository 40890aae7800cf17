// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// Store is the subset of *logstore.Store the API serves.
type Store interface {
	CreateProject(ctx context.Context, name, description string, config logs.ProjectConfig) (logs.Project, error)
	GetProject(ctx context.Context, id string) (logs.Project, error)
	GetProjectByName(ctx context.Context, name string) (logs.Project, error)
	ListProjects(ctx context.Context) ([]logs.Project, error)
	DeleteProject(ctx context.Context, id string) error
	SetTrackedMetadataKeys(ctx context.Context, id string, keys []string) (logs.Project, error)

	CreateLog(ctx context.Context, newLog logs.NewLog) (logs.Log, error)
	CreateBulkLog(ctx context.Context, batch []logs.NewLog) ([]logs.Log, error)
	GetLogByID(ctx context.Context, id string) (logs.Log, error)
	GetLogsWithFilters(ctx context.Context, filters logs.LogFilters) (logs.LogPage, error)
	ClearProjectLogs(ctx context.Context, projectID string) (int64, error)

	GetProjectMetrics(ctx context.Context, projectID string) (logs.ProjectMetrics, error)
	GetHistoricalLogCounts(ctx context.Context, projectID string, days int) ([]logs.DailyCount, error)
	GetUniqueMetadataKeysByProjectID(ctx context.Context, projectID string) ([]string, error)
	GetMetadataKeys(ctx context.Context, projectID string) ([]string, error)
}

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 16 << 20
	defaultHistoryDays    = 7
	maxHistoryDays        = 366
)

// Config configures a Server.
type Config struct {
	Store  Store
	Logger *slog.Logger

	// Registry receives the server's Prometheus collectors and backs
	// /metrics. Defaults to a fresh registry per Server.
	Registry *prometheus.Registry

	// RequestTimeout bounds each request's context. Defaults to 30s.
	RequestTimeout time.Duration

	// MaxBodyBytes bounds request bodies as received, before
	// decompression. Defaults to 16 MiB.
	MaxBodyBytes int64

	// Version is reported by /healthz.
	Version string
}

// Server routes HTTP requests to a Store.
type Server struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics
	registry     *prometheus.Registry
	maxBodyBytes int64
	version      string
	router       *chi.Mux
}

// New builds the router and registers metrics.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("httpapi: Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	serverMetrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      serverMetrics,
		registry:     cfg.Registry,
		maxBodyBytes: cfg.MaxBodyBytes,
		version:      cfg.Version,
		router:       chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.instrument)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(cfg.RequestTimeout))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.router.Route(logs.APIPrefix, func(r chi.Router) {
		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)

		r.Route("/projects/{project}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Delete("/", s.handleDeleteProject)
			r.Put("/tracked-keys", s.handleSetTrackedKeys)

			r.Get("/logs", s.handleQueryLogs)
			r.Post("/logs", s.handleCreateLog)
			r.Delete("/logs", s.handleClearLogs)
			r.Post("/logs/bulk", s.handleBulkLogs)

			r.Get("/metrics", s.handleProjectMetrics)
			r.Get("/history", s.handleHistory)
			r.Get("/metadata-keys", s.handleMetadataKeys)
		})

		r.Get("/logs/{id}", s.handleGetLog)
	})

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
