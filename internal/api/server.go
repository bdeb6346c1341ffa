// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api exposes the HTTP surface: stats, manual runs, downloader
// status, health probes and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/fl4pj4ck/jellytrailers/internal/api/handlers"
	"github.com/fl4pj4ck/jellytrailers/internal/buildinfo"
	"github.com/fl4pj4ck/jellytrailers/internal/config"
	"github.com/fl4pj4ck/jellytrailers/internal/metrics"
	"github.com/fl4pj4ck/jellytrailers/internal/services/trailers"
	"github.com/fl4pj4ck/jellytrailers/internal/stats"
	"github.com/fl4pj4ck/jellytrailers/internal/ytdlp"
)

// Dependencies holds the services the HTTP layer exposes.
type Dependencies struct {
	Config   *config.AppConfig
	Trailers *trailers.Service
	Stats    *stats.Store
	YtDlp    *ytdlp.Adapter
	Metrics  *metrics.Manager
}

// Server is the HTTP front end.
type Server struct {
	deps *Dependencies
	http *http.Server
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler()
	statsHandler := handlers.NewStatsHandler(s.deps.Stats)
	trailersHandler := handlers.NewTrailersHandler(s.deps.Trailers)
	ytDlpHandler := handlers.NewYtDlpHandler(s.deps.YtDlp)

	r.Route("/api", func(r chi.Router) {
		r.Route("/health", healthHandler.Routes)
		r.Route("/stats", statsHandler.Routes)
		r.Route("/ytdlp", ytDlpHandler.Routes)
		trailersHandler.Routes(r)

		r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
			body, err := buildinfo.JSON()
			if err != nil {
				handlers.RespondError(w, http.StatusInternalServerError, "Failed to encode version")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		})
	})

	r.Get("/healthz", healthHandler.HandleHealth)

	if s.deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves HTTP until ctx is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.deps.Config.Config.Host, fmt.Sprint(s.deps.Config.Config.Port))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
