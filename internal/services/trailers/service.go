// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package trailers composes the scanner, the downloader adapter, the stats
// store and the host's metadata lookup into the end-to-end trailer
// acquisition run.
package trailers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fl4pj4ck/jellytrailers/internal/domain"
	"github.com/fl4pj4ck/jellytrailers/internal/scanner"
)

// Downloader invokes the external downloader for a candidate.
type Downloader interface {
	DownloadOne(ctx context.Context, query, outputPath string) bool
	DownloadFromUrl(ctx context.Context, url, outputPath string) bool
}

// RescanRequester asks the host to re-index its catalog.
type RescanRequester interface {
	RequestRescan(ctx context.Context) error
}

// TrailerResolver looks up remote trailer URLs for a folder path.
type TrailerResolver interface {
	TrailerURLs(ctx context.Context, path string) ([]string, error)
}

// StatsRecorder receives run statistics.
type StatsRecorder interface {
	RecordFolderCounts(total, withTrailer int)
	RecordProgress(downloaded, failed int)
	RecordRun(downloaded, failed int)
}

// MetricsRecorder receives run outcomes for the metrics endpoint. Optional.
type MetricsRecorder interface {
	ObserveRun(duration time.Duration, downloaded, failed int)
	SetFolderCounts(total, withTrailer int)
}

// ProgressFunc reports fractional run progress after each item.
type ProgressFunc func(processed, total int)

// ErrRunInProgress is returned by TriggerRun when a pass already holds the
// run lock.
var ErrRunInProgress = errors.New("trailer run already in progress")

// Service drives the trailer acquisition pipeline.
type Service struct {
	cfg        domain.RunConfig
	scanner    *scanner.Scanner
	downloader Downloader
	stats      StatsRecorder
	resolver   TrailerResolver // nil disables the metadata fallback
	rescan     RescanRequester
	metrics    MetricsRecorder // nil disables metrics
	onProgress ProgressFunc    // nil disables progress callbacks

	// Single logical worker: one run at a time, downloads are sequential.
	runMu sync.Mutex

	sched gocron.Scheduler
	log   zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithMetadataFallback wires the host's trailer-metadata lookup.
func WithMetadataFallback(resolver TrailerResolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithMetrics wires the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProgress wires the fractional-progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) { s.onProgress = fn }
}

// NewService creates the orchestrator. All collaborators are passed in
// explicitly; the service holds no ambient global state.
func NewService(cfg domain.RunConfig, sc *scanner.Scanner, dl Downloader, stats StatsRecorder, rescan RescanRequester, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		scanner:    sc,
		downloader: dl,
		stats:      stats,
		rescan:     rescan,
		log:        log.With().Str("component", "trailers").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules periodic runs at the given interval and begins the
// scheduler. A non-positive interval leaves the scheduler off; runs can
// still be triggered through Run.
func (s *Service) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		s.log.Info().Msg("Scheduled runs disabled")
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Run(ctx); err != nil {
				s.log.Error().Err(err).Msg("Scheduled run failed")
			}
		}),
		gocron.WithName("trailer-run"),
	)
	if err != nil {
		return fmt.Errorf("schedule trailer run: %w", err)
	}

	sched.Start()
	s.sched = sched
	s.log.Info().Dur("interval", interval).Msg("Scheduler started")
	return nil
}

// TriggerRun starts a pipeline pass in the background. It reports
// ErrRunInProgress without blocking when a pass is already underway.
func (s *Service) TriggerRun(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer s.runMu.Unlock()
		if _, err := s.run(ctx); err != nil {
			s.log.Error().Err(err).Msg("Triggered run failed")
		}
	}()
	return nil
}

// Stop shuts the scheduler down and waits for a running job to finish.
func (s *Service) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			s.log.Warn().Err(err).Msg("Scheduler shutdown error")
		}
	}
	// Block until any in-flight run releases the lock.
	s.runMu.Lock()
	s.runMu.Unlock() //nolint:staticcheck // immediate unlock is the point
	s.log.Info().Msg("Scheduler stopped")
}

// trailerPathFor returns the expected output file for an entry.
func (s *Service) trailerPathFor(entry scanner.CandidateEntry) string {
	return filepath.Join(entry.Path, filepath.FromSlash(s.cfg.TrailerPath))
}
