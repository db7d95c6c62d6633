// Package api exposes the registry over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/schema-registry/internal/metrics"
	"github.com/streamforge/schema-registry/internal/registry"
)

// Server serves the registry HTTP API.
type Server struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	http     *http.Server
}

// NewServer builds the router and binds it to addr.
func NewServer(addr string, reg *registry.Registry, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		metrics:  m,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/schemaregistry", func(r chi.Router) {
		r.Get("/schemaproviders", s.handleListProviders)

		r.Post("/schemas", s.handleAddMetadata)
		r.Get("/schemas", s.handleFindMetadata)
		r.Get("/schemas/{name}", s.handleGetMetadata)

		r.Post("/schemas/{name}/versions", s.handleAddVersion)
		r.Get("/schemas/{name}/versions", s.handleListVersions)
		r.Get("/schemas/{name}/versions/latest", s.handleLatestVersion)
		r.Get("/schemas/{name}/versions/{version}", s.handleGetVersion)
		r.Post("/schemas/{name}/versions/lookup", s.handleLookupVersion)
		r.Get("/schemaversions/{id}", s.handleGetVersionByID)

		r.Post("/schemas/{name}/compatibility", s.handleCheckCompatibility)
		r.Post("/schemas/{name}/versions/{version}/compatibility", s.handleCheckVersionCompatibility)

		r.Get("/search/fields", s.handleSearchFields)

		r.Post("/files", s.handleUploadFile)
		r.Get("/files/{fileId}", s.handleDownloadFile)
		r.Post("/serdes", s.handleAddSerDes)
		r.Get("/serdes/{id}", s.handleGetSerDes)
		r.Get("/serdes/{id}/download", s.handleDownloadSerDes)
		r.Post("/schemas/{name}/mapping/{serDesId}", s.handleMapSerDes)
		r.Get("/schemas/{name}/serdes", s.handleListSerDes)
		r.Get("/schemas/{name}/serializers", s.handleListSerializers)
		r.Get("/schemas/{name}/deserializers", s.handleListDeserializers)
	})

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// observe logs each request and feeds the duration histogram.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, fmt.Sprintf("%d", ww.Status()), elapsed.Seconds())
		s.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", elapsed)
	})
}
