// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ytdlp

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and simulates process outcomes.
type fakeRunner struct {
	exitCode   int
	stdout     string
	stderr     string
	err        error
	createFile bool // create the -o target to simulate a produced download

	calls [][]string
}

func (f *fakeRunner) run(_ context.Context, path string, args []string) (int, string, string, error) {
	f.calls = append(f.calls, append([]string{path}, args...))
	if f.err != nil {
		return -1, "", "", f.err
	}
	if f.createFile {
		for i, arg := range args {
			if arg == "-o" && i+1 < len(args) {
				_ = os.WriteFile(args[i+1], []byte("video"), 0o644)
			}
		}
	}
	return f.exitCode, f.stdout, f.stderr, nil
}

// fakeFetcher writes a stub binary at dest.
type fakeFetcher struct{ called bool }

func (f *fakeFetcher) Fetch(_ context.Context, dest string) error {
	f.called = true
	return os.WriteFile(dest, []byte("#!/bin/sh\n"), 0o755)
}

func newTestAdapter(t *testing.T, run runner) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	a := NewAdapter(Config{ConfiguredPath: exe, Quality: "720p"}, nil)
	a.run = run
	return a, dir
}

func TestDownloadOneRequiresOutputFile(t *testing.T) {
	t.Run("exit_zero_without_file_fails", func(t *testing.T) {
		run := &fakeRunner{exitCode: 0, createFile: false}
		a, dir := newTestAdapter(t, run)

		ok := a.DownloadOne(context.Background(), "Inception 2010 trailer", filepath.Join(dir, "trailer.mp4"))
		assert.False(t, ok, "exit code 0 alone must not count as success")
	})

	t.Run("exit_zero_with_file_succeeds", func(t *testing.T) {
		run := &fakeRunner{exitCode: 0, createFile: true}
		a, dir := newTestAdapter(t, run)

		ok := a.DownloadOne(context.Background(), "Inception 2010 trailer", filepath.Join(dir, "trailer.mp4"))
		assert.True(t, ok)
	})

	t.Run("nonzero_exit_fails", func(t *testing.T) {
		run := &fakeRunner{exitCode: 1, stderr: "ERROR: no results", createFile: true}
		a, dir := newTestAdapter(t, run)

		ok := a.DownloadOne(context.Background(), "whatever", filepath.Join(dir, "trailer.mp4"))
		assert.False(t, ok)
	})
}

func TestDownloadOneCommandShape(t *testing.T) {
	run := &fakeRunner{exitCode: 0, createFile: true}
	a, dir := newTestAdapter(t, run)
	out := filepath.Join(dir, "trailer.mp4")

	require.True(t, a.DownloadOne(context.Background(), "Show season 2 trailer", out))
	require.Len(t, run.calls, 1)

	args := run.calls[0]
	assert.Contains(t, args, "-o")
	assert.Contains(t, args, out)
	assert.Contains(t, args, "--merge-output-format")
	assert.Contains(t, args, "mp4")
	assert.Contains(t, args, "--no-warnings")
	assert.Contains(t, args, "--no-progress")
	assert.Contains(t, args, searchPrefix+"Show season 2 trailer")
}

func TestDownloadFromUrl(t *testing.T) {
	t.Run("empty_url_rejected_without_invocation", func(t *testing.T) {
		run := &fakeRunner{exitCode: 0, createFile: true}
		a, dir := newTestAdapter(t, run)

		assert.False(t, a.DownloadFromUrl(context.Background(), "   ", filepath.Join(dir, "t.mp4")))
		assert.Empty(t, run.calls)
	})

	t.Run("literal_url_passed_through", func(t *testing.T) {
		run := &fakeRunner{exitCode: 0, createFile: true}
		a, dir := newTestAdapter(t, run)

		require.True(t, a.DownloadFromUrl(context.Background(), "https://example.com/v/123", filepath.Join(dir, "t.mp4")))
		require.Len(t, run.calls, 1)
		assert.Contains(t, run.calls[0], "https://example.com/v/123")
	})
}

func TestOptionAllowlist(t *testing.T) {
	run := &fakeRunner{exitCode: 0, createFile: true}
	dir := t.TempDir()
	exe := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	a := NewAdapter(Config{
		ConfiguredPath: exe,
		Quality:        "best",
		ExtraOptions: map[string]string{
			"exec":    "rm -rf /",
			"format":  "bestaudio",
			"Retries": "3", // allowlist match is case-insensitive
		},
	}, nil)
	a.run = run

	require.True(t, a.DownloadOne(context.Background(), "q", filepath.Join(dir, "out.mp4")))
	require.Len(t, run.calls, 1)

	args := run.calls[0]
	assert.NotContains(t, args, "--exec")
	assert.NotContains(t, args, "rm -rf /")
	assert.Contains(t, args, "--format")
	assert.Contains(t, args, "bestaudio")
	assert.Contains(t, args, "--retries")
	assert.Contains(t, args, "3")
}

func TestFormatForQuality(t *testing.T) {
	assert.Equal(t, "best", formatForQuality("best"))
	assert.Contains(t, formatForQuality("1080p"), "height<=1080")
	assert.Contains(t, formatForQuality("720p"), "height<=720")
	assert.Contains(t, formatForQuality("480p"), "height<=480")
	assert.Contains(t, formatForQuality("something-else"), "height<=720", "unknown tier uses the 720p entry")
}

func TestResolveExecutable(t *testing.T) {
	t.Run("configured_path_wins", func(t *testing.T) {
		dir := t.TempDir()
		exe := filepath.Join(dir, "custom-yt-dlp")
		require.NoError(t, os.WriteFile(exe, nil, 0o755))

		a := NewAdapter(Config{ConfiguredPath: exe, ManagedPath: filepath.Join(dir, "managed")}, nil)
		got, err := a.ResolveExecutable(context.Background())
		require.NoError(t, err)
		assert.Equal(t, exe, got)
	})

	t.Run("missing_configured_path_falls_back_to_managed", func(t *testing.T) {
		dir := t.TempDir()
		managed := filepath.Join(dir, "yt-dlp")
		require.NoError(t, os.WriteFile(managed, nil, 0o755))

		a := NewAdapter(Config{ConfiguredPath: filepath.Join(dir, "nope"), ManagedPath: managed}, nil)
		got, err := a.ResolveExecutable(context.Background())
		require.NoError(t, err)
		assert.Equal(t, managed, got)
	})

	t.Run("absent_managed_copy_is_fetched", func(t *testing.T) {
		dir := t.TempDir()
		managed := filepath.Join(dir, "yt-dlp")
		fetcher := &fakeFetcher{}

		a := NewAdapter(Config{ManagedPath: managed}, fetcher)
		got, err := a.ResolveExecutable(context.Background())
		require.NoError(t, err)
		assert.True(t, fetcher.called)
		assert.Equal(t, managed, got)
	})

	t.Run("no_fetcher_is_an_error", func(t *testing.T) {
		a := NewAdapter(Config{ManagedPath: filepath.Join(t.TempDir(), "yt-dlp")}, nil)
		_, err := a.ResolveExecutable(context.Background())
		assert.Error(t, err)
	})
}

func TestCheckAvailableClassification(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		wantKind AvailabilityKind
	}{
		{
			name:     "version_query_ok",
			runner:   &fakeRunner{exitCode: 0, stdout: "2025.08.22\n"},
			wantKind: Available,
		},
		{
			name:     "missing_binary",
			runner:   &fakeRunner{err: exec.ErrNotFound},
			wantKind: NotFound,
		},
		{
			name:     "permission_denied",
			runner:   &fakeRunner{err: fs.ErrPermission},
			wantKind: NotExecutable,
		},
		{
			name:     "wrong_platform_binary",
			runner:   &fakeRunner{err: errors.New("fork/exec /x/yt-dlp: exec format error")},
			wantKind: NotExecutable,
		},
		{
			name:     "nonzero_version_exit",
			runner:   &fakeRunner{exitCode: 127, stderr: "python3: not found"},
			wantKind: RuntimeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdapter(t, tt.runner)
			got := a.CheckAvailable(context.Background())
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestCheckAvailableNormalizesVersion(t *testing.T) {
	a, _ := newTestAdapter(t, &fakeRunner{exitCode: 0, stdout: "2025.08.22\n"})
	got := a.CheckAvailable(context.Background())
	require.True(t, got.OK())
	assert.Contains(t, got.Message, "2025.8.22")
}
