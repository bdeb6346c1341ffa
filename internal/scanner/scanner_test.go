// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fl4pj4ck/jellytrailers/internal/jellyfin"
	"github.com/fl4pj4ck/jellytrailers/internal/titleparse"
)

// fakeProvider returns canned virtual folders.
type fakeProvider struct {
	folders []jellyfin.VirtualFolder
	err     error
}

func (f *fakeProvider) GetVirtualFolders(context.Context) ([]jellyfin.VirtualFolder, error) {
	return f.folders, f.err
}

func mkdirs(t *testing.T, base string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(base, d), 0o755))
	}
}

func TestGetLibraryRoots(t *testing.T) {
	moviesDir := t.TempDir()
	tvDir := t.TempDir()

	provider := &fakeProvider{folders: []jellyfin.VirtualFolder{
		{Name: "Movies", CollectionType: "movies", Locations: []string{moviesDir}},
		{Name: "TV Shows", CollectionType: "tvshows", Locations: []string{tvDir}},
		{Name: "Music", CollectionType: "music", Locations: []string{t.TempDir()}},
		{Name: "Offline", CollectionType: "movies", Locations: []string{"/definitely/not/mounted"}},
	}}

	s := New(provider)

	t.Run("unrecognized_labels_and_missing_paths_dropped", func(t *testing.T) {
		roots := s.GetLibraryRoots(context.Background(), nil, nil)
		require.Len(t, roots, 2)
		assert.Equal(t, titleparse.ContentMovie, roots[0].ContentType)
		assert.Equal(t, titleparse.ContentTvShow, roots[1].ContentType)
	})

	t.Run("include_filter_is_allowlist", func(t *testing.T) {
		include := map[string]struct{}{"movies": {}}
		roots := s.GetLibraryRoots(context.Background(), include, nil)
		require.Len(t, roots, 1)
		assert.Equal(t, moviesDir, roots[0].Path)
	})

	t.Run("exclude_filter_is_blocklist", func(t *testing.T) {
		exclude := map[string]struct{}{"tv shows": {}}
		roots := s.GetLibraryRoots(context.Background(), nil, exclude)
		require.Len(t, roots, 1)
		assert.Equal(t, moviesDir, roots[0].Path)
	})

	t.Run("provider_failure_yields_empty", func(t *testing.T) {
		failing := New(&fakeProvider{err: errors.New("server down")})
		assert.Empty(t, failing.GetLibraryRoots(context.Background(), nil, nil))
	})
}

func TestScanAndEnrichMovies(t *testing.T) {
	moviesDir := t.TempDir()
	mkdirs(t, moviesDir, "Inception.2010", "Heat.1995.1080p.BluRay")
	require.NoError(t, os.WriteFile(filepath.Join(moviesDir, "stray-file.mkv"), nil, 0o644))

	s := New(&fakeProvider{})
	now := time.Now()

	entries := s.ScanAndEnrich([]LibraryRoot{{Path: moviesDir, ContentType: titleparse.ContentMovie}}, now)
	require.Len(t, entries, 2, "loose files are not candidates")

	assert.Equal(t, "Heat", entries[0].Title)
	assert.Equal(t, 1995, entries[0].Year)
	assert.Equal(t, "Inception", entries[1].Title)
	assert.Equal(t, 2010, entries[1].Year)
	for _, e := range entries {
		assert.Equal(t, titleparse.ContentMovie, e.ContentType)
		assert.Equal(t, now, e.DiscoveredAt)
	}
}

func TestScanAndEnrichTvLayouts(t *testing.T) {
	tvDir := t.TempDir()
	// Layout A: season subdirectories.
	mkdirs(t, tvDir, "Breaking.Bad.2008/S01", "Breaking.Bad.2008/S02", "Breaking.Bad.2008/extras")
	// Layout B: flat release-style name.
	mkdirs(t, tvDir, "Baby.Bandito.S01.MULTi.1080p.NF.WEB-DL")
	// Layout B fallback: bare title.
	mkdirs(t, tvDir, "The.Leftovers")

	s := New(&fakeProvider{})
	entries := s.ScanAndEnrich([]LibraryRoot{{Path: tvDir, ContentType: titleparse.ContentTvShow}}, time.Now())
	require.Len(t, entries, 4)

	byPath := map[string]CandidateEntry{}
	for _, e := range entries {
		byPath[filepath.Base(e.Path)] = e
	}

	s1 := byPath["S01"]
	s2 := byPath["S02"]
	assert.Equal(t, "Breaking Bad", s1.Title)
	assert.Equal(t, 2008, s1.Year)
	assert.ElementsMatch(t, []int{1, 2}, []int{s1.Season, s2.Season})

	flat := byPath["Baby.Bandito.S01.MULTi.1080p.NF.WEB-DL"]
	assert.Equal(t, "Baby Bandito", flat.Title)
	assert.Equal(t, 1, flat.Season)

	bare := byPath["The.Leftovers"]
	assert.Equal(t, "The Leftovers", bare.Title)
	assert.Zero(t, bare.Season)
}

func TestScanIsIdempotent(t *testing.T) {
	moviesDir := t.TempDir()
	tvDir := t.TempDir()
	mkdirs(t, moviesDir, "Alpha.2020", "Beta.2021", "Gamma")
	mkdirs(t, tvDir, "Show.One/S01", "Show.Two.S02.720p")

	roots := []LibraryRoot{
		{Path: moviesDir, ContentType: titleparse.ContentMovie},
		{Path: tvDir, ContentType: titleparse.ContentTvShow},
	}

	s := New(&fakeProvider{})
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first := s.ScanAndEnrich(roots, at)
	second := s.ScanAndEnrich(roots, at)
	assert.Equal(t, first, second, "scanning an unchanged filesystem twice yields identical results")

	// Sorted ascending by path.
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Path, first[i].Path)
	}
}

func TestScanSkipsVanishedRoot(t *testing.T) {
	moviesDir := t.TempDir()
	mkdirs(t, moviesDir, "Only.Movie.2024")

	roots := []LibraryRoot{
		{Path: "/gone/away", ContentType: titleparse.ContentMovie},
		{Path: moviesDir, ContentType: titleparse.ContentMovie},
	}

	s := New(&fakeProvider{})
	entries := s.ScanAndEnrich(roots, time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, "Only Movie", entries[0].Title)
}
