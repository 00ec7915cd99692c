/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the streaming core's HTTP surface together: the chi
// router, middleware chain, the streaming endpoints' timeout exemption,
// and the supporting services (event bus, optional listener log).
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/config"
	"github.com/ripplehome/streamcore/internal/events"
	"github.com/ripplehome/streamcore/internal/listenerlog"
	"github.com/ripplehome/streamcore/internal/registry"
	"github.com/ripplehome/streamcore/internal/resolver"
	"github.com/ripplehome/streamcore/internal/streamhttp"
	"github.com/ripplehome/streamcore/internal/telemetry"
)

// Server bundles the HTTP listener and the services behind it.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	bus        *events.Bus
	registry   *registry.Registry
	controller *streamhttp.Controller
	resolver   *resolver.Resolver
	logDB      *gorm.DB
	logSvc     *listenerlog.Service

	metricsServer *http.Server

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs a Server bound to provider as the PCM/catalog
// collaborator. Callers register queues/players on the returned Server's
// Registry before traffic arrives.
func New(cfg *config.Config, provider audio.Provider, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	// Skip the request timeout for the streaming endpoints: these
	// connections are meant to run for the life of a track or longer.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStreamingPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		bus:      events.NewBus(),
		registry: registry.New(),
	}

	publishIP := cfg.PublishIP
	if publishIP == "" {
		detected, err := resolver.DetectPublishIP()
		if err != nil {
			return nil, fmt.Errorf("detect publish ip: %w", err)
		}
		publishIP = detected
	}
	srv.resolver = resolver.New(publishIP, cfg.PublishPort)

	srv.controller = streamhttp.New(srv.registry, provider, cfg, srv.bus, logger)

	if cfg.ListenerLogPath != "" {
		db, err := listenerlog.Connect(cfg.ListenerLogPath)
		if err != nil {
			return nil, fmt.Errorf("listener log: %w", err)
		}
		srv.logDB = db
		srv.DeferClose(func() error { return listenerlog.Close(db) })
		srv.logSvc = listenerlog.NewService(db, srv.bus, logger)
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.BindIP, cfg.BindPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// WriteTimeout intentionally 0: streaming handlers own their own
		// lifetime via request context cancellation.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// Registry exposes the in-memory queue/player directory so the process
// entrypoint can populate it before serving traffic.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Resolver exposes the URL resolver for callers that need to mint URLs
// outside the HTTP layer.
func (s *Server) Resolver() *resolver.Resolver {
	return s.resolver
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// DeferClose registers a cleanup hook run in reverse order by Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.logSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.logSvc.Run(ctx)
		}()
	}

	// A dedicated metrics listener, in addition to the /metrics route on the
	// streaming router.
	if s.cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		s.metricsServer = &http.Server{Addr: s.cfg.MetricsBind, Handler: mux}

		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics listener starting")
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics listener error")
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.metricsServer.Shutdown(ctx)
		cancel()
	}
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.controller.Mount(s.router)
}

// isStreamingPath reports whether path names one of the three streaming
// endpoints, which are exempt from the request timeout middleware.
func isStreamingPath(path string) bool {
	return strings.Contains(path, "/single/") ||
		strings.Contains(path, "/flow/") ||
		strings.Contains(path, "/multi/")
}

// Shutdown gracefully stops the HTTP listener, then releases server
// resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.Close()
}
