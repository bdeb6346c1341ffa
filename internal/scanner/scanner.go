// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scanner walks the configured library roots and classifies media
// folders into trailer-download candidates. Output ordering is
// deterministic: entries are sorted ascending by path so repeated scans of
// an unchanged filesystem produce identical results.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fl4pj4ck/jellytrailers/internal/jellyfin"
	"github.com/fl4pj4ck/jellytrailers/internal/titleparse"
)

// LibraryRoot is one filesystem location to scan, with its content type.
type LibraryRoot struct {
	Path        string
	ContentType titleparse.ContentType
}

// CandidateEntry is one folder eligible for trailer acquisition. Path
// uniquely identifies the entry within a run.
type CandidateEntry struct {
	Path         string
	ContentType  titleparse.ContentType
	DiscoveredAt time.Time
	Title        string
	Year         int
	Season       int
}

// LibraryProvider supplies the host's configured libraries.
type LibraryProvider interface {
	GetVirtualFolders(ctx context.Context) ([]jellyfin.VirtualFolder, error)
}

// seasonDirPattern matches season-per-subfolder child directories (S1, s02).
var seasonDirPattern = regexp.MustCompile(`^[Ss]\d+$`)

// Scanner discovers candidate folders under the host's library roots.
type Scanner struct {
	provider LibraryProvider
	log      zerolog.Logger
}

// New creates a scanner backed by the given library provider.
func New(provider LibraryProvider) *Scanner {
	return &Scanner{
		provider: provider,
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// GetLibraryRoots returns the filtered, resolved library roots. Libraries
// with unrecognized content-type labels are dropped; the include set (when
// non-empty) acts as an allowlist by library name, the exclude set as a
// blocklist. Locations missing on disk are skipped with a log entry.
// Never returns an error: on failure the result is simply empty.
func (s *Scanner) GetLibraryRoots(ctx context.Context, include, exclude map[string]struct{}) []LibraryRoot {
	folders, err := s.provider.GetVirtualFolders(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to query library folders")
		return nil
	}

	var roots []LibraryRoot
	for _, folder := range folders {
		contentType, ok := contentTypeForLabel(folder.CollectionType)
		if !ok {
			continue
		}

		name := strings.ToLower(strings.TrimSpace(folder.Name))
		if len(include) > 0 {
			if _, ok := include[name]; !ok {
				continue
			}
		}
		if _, ok := exclude[name]; ok {
			continue
		}

		for _, loc := range folder.Locations {
			abs, err := filepath.Abs(loc)
			if err != nil {
				s.log.Warn().Err(err).Str("location", loc).Msg("Skipping unresolvable library location")
				continue
			}
			if _, err := os.Stat(abs); err != nil {
				// Partial root availability is expected (unmounted volumes).
				s.log.Info().Str("path", abs).Str("library", folder.Name).Msg("Library location not on disk, skipping")
				continue
			}
			roots = append(roots, LibraryRoot{Path: abs, ContentType: contentType})
		}
	}
	return roots
}

// contentTypeForLabel maps the host's collection-type label to a content
// type. Unknown labels are dropped by the caller.
func contentTypeForLabel(label string) (titleparse.ContentType, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "movies":
		return titleparse.ContentMovie, true
	case "tvshows":
		return titleparse.ContentTvShow, true
	default:
		return "", false
	}
}

// ScanAndEnrich builds the run's candidate list. Movie roots contribute one
// entry per immediate child directory; TV roots go through season-layout
// detection per show directory. Every entry is enriched with parsed
// title/year/season and the full list is sorted ascending by path.
func (s *Scanner) ScanAndEnrich(roots []LibraryRoot, discoveredAt time.Time) []CandidateEntry {
	var entries []CandidateEntry

	for _, root := range roots {
		children, err := sortedChildDirs(root.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Info().Str("path", root.Path).Msg("Library root vanished, skipping")
			} else {
				s.log.Warn().Err(err).Str("path", root.Path).Msg("Failed to read library root, skipping")
			}
			continue
		}

		for _, child := range children {
			childPath := filepath.Join(root.Path, child)
			switch root.ContentType {
			case titleparse.ContentTvShow:
				entries = append(entries, s.scanShowDir(childPath, discoveredAt)...)
			default:
				entries = append(entries, CandidateEntry{
					Path:         childPath,
					ContentType:  titleparse.ContentMovie,
					DiscoveredAt: discoveredAt,
				})
			}
		}
	}

	for i := range entries {
		s.enrich(&entries[i])
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// scanShowDir applies the two recognized TV layouts. A show directory with
// S<digits> child directories emits one entry per season subdirectory;
// otherwise the show directory itself is the entry.
func (s *Scanner) scanShowDir(showPath string, discoveredAt time.Time) []CandidateEntry {
	children, err := sortedChildDirs(showPath)
	if err != nil {
		s.log.Warn().Err(err).Str("path", showPath).Msg("Failed to read show directory, skipping")
		return nil
	}

	var seasons []CandidateEntry
	for _, child := range children {
		if !seasonDirPattern.MatchString(child) {
			continue
		}
		seasons = append(seasons, CandidateEntry{
			Path:         filepath.Join(showPath, child),
			ContentType:  titleparse.ContentTvShow,
			DiscoveredAt: discoveredAt,
		})
	}
	if len(seasons) > 0 {
		return seasons
	}

	return []CandidateEntry{{
		Path:         showPath,
		ContentType:  titleparse.ContentTvShow,
		DiscoveredAt: discoveredAt,
	}}
}

// enrich attaches parsed title metadata to an entry.
func (s *Scanner) enrich(entry *CandidateEntry) {
	if entry.ContentType == titleparse.ContentTvShow {
		entry.Title, entry.Season, entry.Year = titleparse.ParseTvShow(entry.Path)
		return
	}
	entry.Title, entry.Year = titleparse.ParseMovie(entry.Path)
}

// sortedChildDirs lists the immediate child directories of a path in
// alphabetical order.
func sortedChildDirs(path string) ([]string, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range dirents {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}
