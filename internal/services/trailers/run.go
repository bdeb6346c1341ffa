// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package trailers

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fl4pj4ck/jellytrailers/internal/scanner"
	"github.com/fl4pj4ck/jellytrailers/internal/titleparse"
)

// RunSummary is the outcome of one pipeline pass.
type RunSummary struct {
	TotalFolders       int
	FoldersWithTrailer int
	Attempted          int
	Downloaded         int
	Failed             int
	Cancelled          bool
}

// Run executes one full pipeline pass: discover roots, scan, filter, order,
// cap, download. Per-item failures never abort the run; only cancellation
// stops processing early, and even then the final stats write and the host
// rescan request still happen.
func (s *Service) Run(ctx context.Context) (RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary
	start := time.Now()

	roots := s.scanner.GetLibraryRoots(ctx, s.cfg.IncludeLibraries, s.cfg.ExcludeLibraries)
	if len(roots) == 0 {
		s.log.Info().Msg("No library roots to scan")
		return summary, nil
	}

	entries := s.scanner.ScanAndEnrich(roots, start)
	summary.TotalFolders = len(entries)

	needs := make([]scanner.CandidateEntry, 0, len(entries))
	for _, entry := range entries {
		if _, err := os.Stat(s.trailerPathFor(entry)); err == nil {
			summary.FoldersWithTrailer++
			continue
		}
		needs = append(needs, entry)
	}

	s.stats.RecordFolderCounts(summary.TotalFolders, summary.FoldersWithTrailer)
	if s.metrics != nil {
		s.metrics.SetFolderCounts(summary.TotalFolders, summary.FoldersWithTrailer)
	}

	needs = s.orderAndCap(needs)

	if len(needs) == 0 {
		s.log.Info().
			Int("folders", summary.TotalFolders).
			Int("withTrailer", summary.FoldersWithTrailer).
			Msg("Nothing to download")
		s.stats.RecordRun(0, 0)
		s.requestRescan(ctx)
		return summary, nil
	}

	s.log.Info().
		Int("folders", summary.TotalFolders).
		Int("withTrailer", summary.FoldersWithTrailer).
		Int("queued", len(needs)).
		Msg("Starting trailer run")

	// The cleanup must run on every exit path: a cancelled run still leaves
	// stats and the host rescan consistent with partial progress.
	defer func() {
		s.log.Info().
			Int("downloaded", summary.Downloaded).
			Int("failed", summary.Failed).
			Int("attempted", summary.Attempted).
			Bool("cancelled", summary.Cancelled).
			Dur("duration", time.Since(start)).
			Msg("Trailer run finished")
		s.stats.RecordRun(summary.Downloaded, summary.Failed)
		if s.metrics != nil {
			s.metrics.ObserveRun(time.Since(start), summary.Downloaded, summary.Failed)
		}
		s.requestRescan(context.WithoutCancel(ctx))
	}()

	for i, entry := range needs {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return summary, ctx.Err()
		}

		summary.Attempted++
		if s.processEntry(ctx, entry) {
			summary.Downloaded++
		} else {
			summary.Failed++
		}

		// Live progress so external observers see more than an end-of-run
		// summary.
		s.stats.RecordProgress(summary.Downloaded, summary.Failed)
		if s.onProgress != nil {
			s.onProgress(i+1, len(needs))
		}

		if i < len(needs)-1 {
			if !s.sleep(ctx, time.Duration(s.cfg.DelaySeconds)*time.Second) {
				summary.Cancelled = true
				return summary, ctx.Err()
			}
		}
	}

	return summary, nil
}

// orderAndCap sorts the pending entries newest-first by directory mtime and
// applies the per-run cap. The sort is stable so entries with equal mtimes
// keep the ascending-path order established by the scanner.
func (s *Service) orderAndCap(needs []scanner.CandidateEntry) []scanner.CandidateEntry {
	mtimes := make(map[string]time.Time, len(needs))
	for _, entry := range needs {
		if fi, err := os.Stat(entry.Path); err == nil {
			mtimes[entry.Path] = fi.ModTime()
		}
	}

	sort.SliceStable(needs, func(i, j int) bool {
		return mtimes[needs[i].Path].After(mtimes[needs[j].Path])
	})

	if s.cfg.MaxTrailersPerRun > 0 && len(needs) > s.cfg.MaxTrailersPerRun {
		needs = needs[:s.cfg.MaxTrailersPerRun]
	}
	return needs
}

// processEntry runs the download-with-retry-and-fallback sequence for one
// candidate: attempt, fallback, retry delay, attempt, fallback.
func (s *Service) processEntry(ctx context.Context, entry scanner.CandidateEntry) bool {
	outputPath := s.trailerPathFor(entry)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		s.log.Warn().Err(err).Str("path", entry.Path).Msg("Cannot create output directory")
		return false
	}

	query := titleparse.BuildSearchQuery(entry.ContentType, entry.Path, entry.Title, entry.Year, entry.Season)
	entryLog := s.log.With().Str("path", entry.Path).Str("query", query).Logger()

	if s.downloader.DownloadOne(ctx, query, outputPath) {
		return true
	}
	if s.tryFallback(ctx, entry, outputPath) {
		return true
	}

	if !s.sleep(ctx, time.Duration(s.cfg.RetryDelaySeconds)*time.Second) {
		return false
	}

	entryLog.Debug().Msg("Retrying download")
	if s.downloader.DownloadOne(ctx, query, outputPath) {
		return true
	}
	if s.tryFallback(ctx, entry, outputPath) {
		return true
	}

	entryLog.Warn().Msg("Trailer download failed")
	return false
}

// tryFallback attempts a download from the first trailer URL recorded in
// the host's catalog metadata. No metadata, no resolvable item, or a
// resolution error all mean "no fallback available", never a run error.
func (s *Service) tryFallback(ctx context.Context, entry scanner.CandidateEntry, outputPath string) bool {
	if !s.cfg.UseMetadataFallback || s.resolver == nil {
		return false
	}

	urls, err := s.resolver.TrailerURLs(ctx, entry.Path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", entry.Path).Msg("Metadata lookup failed, no fallback")
		return false
	}
	if len(urls) == 0 {
		return false
	}

	s.log.Debug().Str("path", entry.Path).Str("url", urls[0]).Msg("Trying metadata fallback URL")
	return s.downloader.DownloadFromUrl(ctx, urls[0], outputPath)
}

// requestRescan fires the host rescan trigger; failures are logged only.
func (s *Service) requestRescan(ctx context.Context) {
	if s.rescan == nil {
		return
	}
	if err := s.rescan.RequestRescan(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Library rescan request failed")
	}
}

// sleep waits for the given duration but wakes immediately on cancellation.
// Returns false when the context was cancelled.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
