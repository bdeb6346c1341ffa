// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ytdlp invokes the external yt-dlp executable to download trailers
// and interprets its outcome. A download only counts as successful when the
// process exits zero AND the output file exists afterwards; yt-dlp reports
// success for empty search results.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	shellquote "github.com/Hellseher/go-shellquote"
	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// searchPrefix turns a plain query into a single-result search pseudo-URL.
const searchPrefix = "ytsearch1:"

// maxDiagnosticLen bounds captured output in availability messages.
const maxDiagnosticLen = 512

// Availability classification for the executable. Expected conditions are
// values, not exceptions: callers branch on the kind instead of matching
// error strings.
type AvailabilityKind int

const (
	Available AvailabilityKind = iota
	NotFound
	NotExecutable
	RuntimeFailure
)

func (k AvailabilityKind) String() string {
	switch k {
	case Available:
		return "available"
	case NotFound:
		return "not_found"
	case NotExecutable:
		return "not_executable"
	case RuntimeFailure:
		return "runtime_failure"
	default:
		return "unknown"
	}
}

// Availability describes whether the downloader can run and why not.
type Availability struct {
	Kind    AvailabilityKind
	Message string
}

// OK reports whether the executable answered the version query.
func (a Availability) OK() bool { return a.Kind == Available }

// Fetcher bootstraps the managed yt-dlp copy when it is absent. The real
// implementation is a plain HTTP GET plus an executable bit.
type Fetcher interface {
	Fetch(ctx context.Context, dest string) error
}

// runner abstracts process invocation for tests.
type runner interface {
	run(ctx context.Context, path string, args []string) (exitCode int, stdout, stderr string, err error)
}

// Config holds the adapter settings derived from the validated run config.
type Config struct {
	// ConfiguredPath is the user-supplied executable path, may be empty.
	ConfiguredPath string
	// ManagedPath is where the plugin-managed copy lives.
	ManagedPath string
	// Quality tier for the format selector table.
	Quality string
	// ExtraOptions is the raw configured option map; only allowlisted names
	// are applied.
	ExtraOptions map[string]string
}

// Adapter resolves and invokes the yt-dlp executable.
type Adapter struct {
	cfg     Config
	fetcher Fetcher
	run     runner
	log     zerolog.Logger
}

// NewAdapter creates an adapter. fetcher may be nil, in which case a missing
// managed copy is an error instead of an auto-fetch.
func NewAdapter(cfg Config, fetcher Fetcher) *Adapter {
	return &Adapter{
		cfg:     cfg,
		fetcher: fetcher,
		run:     execRunner{},
		log:     log.With().Str("component", "ytdlp").Logger(),
	}
}

// ResolveExecutable returns the executable path to invoke. The configured
// path wins when it exists on disk; otherwise the managed copy is used,
// fetching it first when absent.
func (a *Adapter) ResolveExecutable(ctx context.Context) (string, error) {
	if a.cfg.ConfiguredPath != "" {
		if _, err := os.Stat(a.cfg.ConfiguredPath); err == nil {
			return a.cfg.ConfiguredPath, nil
		}
		a.log.Warn().Str("path", a.cfg.ConfiguredPath).Msg("Configured yt-dlp path does not exist, using managed copy")
	}

	if _, err := os.Stat(a.cfg.ManagedPath); err == nil {
		return a.cfg.ManagedPath, nil
	}

	if a.fetcher == nil {
		return "", fmt.Errorf("yt-dlp not found at %s and no fetcher configured", a.cfg.ManagedPath)
	}

	a.log.Info().Str("path", a.cfg.ManagedPath).Msg("Fetching managed yt-dlp copy")
	if err := a.fetcher.Fetch(ctx, a.cfg.ManagedPath); err != nil {
		return "", fmt.Errorf("fetch yt-dlp: %w", err)
	}
	return a.cfg.ManagedPath, nil
}

// CheckAvailable runs the executable with a version query and classifies the
// outcome. The classification is a diagnostic nicety; it must never panic on
// any OS-level invocation error.
func (a *Adapter) CheckAvailable(ctx context.Context) Availability {
	path, err := a.ResolveExecutable(ctx)
	if err != nil {
		return Availability{Kind: NotFound, Message: err.Error()}
	}

	exitCode, stdout, stderr, err := a.run.run(ctx, path, []string{"--version"})
	if err != nil {
		return classifyStartError(path, err)
	}
	if exitCode != 0 {
		return Availability{
			Kind:    RuntimeFailure,
			Message: fmt.Sprintf("yt-dlp exited with code %d: %s", exitCode, truncate(combineOutput(stdout, stderr))),
		}
	}

	reported := strings.TrimSpace(stdout)
	if v, verr := goversion.NewVersion(reported); verr == nil {
		reported = v.String()
	}
	return Availability{Kind: Available, Message: truncate("yt-dlp " + reported)}
}

// classifyStartError maps common invocation failures to distinct kinds.
func classifyStartError(path string, err error) Availability {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return Availability{Kind: NotFound, Message: fmt.Sprintf("executable not found: %s", path)}
	case errors.Is(err, fs.ErrPermission):
		return Availability{Kind: NotExecutable, Message: fmt.Sprintf("permission denied: %s", path)}
	case strings.Contains(err.Error(), "exec format error"):
		return Availability{Kind: NotExecutable, Message: fmt.Sprintf("not a runnable binary (wrong platform or broken interpreter): %s", path)}
	default:
		return Availability{Kind: RuntimeFailure, Message: truncate(err.Error())}
	}
}

// DownloadOne attempts a search-based trailer download for a candidate.
// Returns true only when the process exits zero and outputPath exists.
func (a *Adapter) DownloadOne(ctx context.Context, query, outputPath string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	return a.invoke(ctx, searchPrefix+query, outputPath)
}

// DownloadFromUrl downloads from a literal trailer URL, used by the
// metadata fallback path. Empty URLs are rejected without invoking anything.
func (a *Adapter) DownloadFromUrl(ctx context.Context, url, outputPath string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	return a.invoke(ctx, url, outputPath)
}

// invoke builds the yt-dlp command line and runs it synchronously.
func (a *Adapter) invoke(ctx context.Context, target, outputPath string) bool {
	path, err := a.ResolveExecutable(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("yt-dlp executable unavailable")
		return false
	}

	args := []string{
		"-o", outputPath,
		"--merge-output-format", "mp4",
		"-f", formatForQuality(a.cfg.Quality),
		"--no-warnings",
		"--no-progress",
		target,
	}
	args = append(args, buildExtraArgs(a.cfg.ExtraOptions)...)

	a.log.Debug().
		Str("command", shellquote.Join(append([]string{path}, args...)...)).
		Msg("Invoking yt-dlp")

	start := time.Now()
	exitCode, _, stderr, err := a.run.run(ctx, path, args)
	duration := time.Since(start)

	if err != nil {
		a.log.Warn().Err(err).Dur("duration", duration).Str("target", target).Msg("yt-dlp invocation failed")
		return false
	}
	if exitCode != 0 {
		a.log.Warn().
			Int("exitCode", exitCode).
			Dur("duration", duration).
			Str("target", target).
			Str("stderr", truncate(stderr)).
			Msg("yt-dlp exited with non-zero status")
		return false
	}

	// Exit code 0 alone is not success: empty search results still exit 0.
	if _, statErr := os.Stat(outputPath); statErr != nil {
		a.log.Warn().
			Dur("duration", duration).
			Str("output", outputPath).
			Msg("yt-dlp reported success but produced no output file")
		return false
	}

	a.log.Info().Dur("duration", duration).Str("output", outputPath).Msg("Trailer downloaded")
	return true
}

// execRunner invokes the real process.
type execRunner struct{}

func (execRunner) run(ctx context.Context, path string, args []string) (int, string, string, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return -1, "", "", err
	}

	waitErr := cmd.Wait()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Non-zero exit is an outcome, not an invocation error.
			return exitCode, stdout.String(), stderr.String(), nil
		}
		return exitCode, stdout.String(), stderr.String(), waitErr
	}

	return exitCode, stdout.String(), stderr.String(), nil
}

func combineOutput(stdout, stderr string) string {
	out := strings.TrimSpace(stdout)
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		if out != "" {
			out += " / "
		}
		out += errOut
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return s[:maxDiagnosticLen] + "..."
}
