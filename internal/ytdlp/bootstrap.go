// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ytdlp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
)

const releaseBaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"

// HTTPFetcher downloads the yt-dlp release binary for the current platform.
// This is deliberately dumb: one GET, write, set the executable bit.
type HTTPFetcher struct {
	// Client defaults to a client with a generous download timeout.
	Client *http.Client
	// BaseURL overrides the release URL, used by tests.
	BaseURL string
}

// assetName returns the release asset for the current platform.
func assetName() string {
	switch runtime.GOOS {
	case "windows":
		return "yt-dlp.exe"
	case "darwin":
		return "yt-dlp_macos"
	default:
		return "yt-dlp"
	}
}

// Fetch downloads the binary to dest, retrying transient failures. The file
// is written to a temp path and renamed so a half-finished download never
// lands at dest.
func (f *HTTPFetcher) Fetch(ctx context.Context, dest string) error {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	base := f.BaseURL
	if base == "" {
		base = releaseBaseURL
	}
	url := base + assetName()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory for yt-dlp: %w", err)
	}

	return retry.Do(
		func() error { return f.fetchOnce(ctx, client, url, dest) },
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("url", url).Msg("Retrying yt-dlp download")
		}),
	)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download yt-dlp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download yt-dlp: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".yt-dlp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write yt-dlp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close yt-dlp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod yt-dlp: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}

	log.Info().Str("path", dest).Msg("yt-dlp binary installed")
	return nil
}
