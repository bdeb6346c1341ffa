// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the validated application configuration and the
// normalization rules applied to raw settings at load time.
package domain

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// DefaultTrailerPath is used when the configured trailer path is unsafe or empty.
const DefaultTrailerPath = "trailer.mp4"

// Quality tiers accepted by the downloader format table.
const (
	QualityBest    = "best"
	Quality1080p   = "1080p"
	Quality720p    = "720p"
	Quality480p    = "480p"
	defaultQuality = Quality720p
)

// Config represents the application configuration as read from the config
// file and environment. Raw values are normalized once by Normalize; the
// pipeline only ever sees the validated result.
type Config struct {
	Version string

	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	// Host media server connection.
	JellyfinURL    string `toml:"jellyfinUrl" mapstructure:"jellyfinUrl"`
	JellyfinAPIKey string `toml:"jellyfinApiKey" mapstructure:"jellyfinApiKey"`

	// Trailer pipeline settings.
	YtDlpPath           string `toml:"ytDlpPath" mapstructure:"ytDlpPath"`
	TrailerPath         string `toml:"trailerPath" mapstructure:"trailerPath"`
	Quality             string `toml:"quality" mapstructure:"quality"`
	DelaySeconds        int    `toml:"delaySeconds" mapstructure:"delaySeconds"`
	RetryDelaySeconds   int    `toml:"retryDelaySeconds" mapstructure:"retryDelaySeconds"`
	MaxTrailersPerRun   int    `toml:"maxTrailersPerRun" mapstructure:"maxTrailersPerRun"`
	YtDlpOptionsJSON    string `toml:"ytDlpOptionsJson" mapstructure:"ytDlpOptionsJson"`
	UseMetadataFallback bool   `toml:"useMetadataFallback" mapstructure:"useMetadataFallback"`
	IncludeLibraryNames string `toml:"includeLibraryNames" mapstructure:"includeLibraryNames"`
	ExcludeLibraryNames string `toml:"excludeLibraryNames" mapstructure:"excludeLibraryNames"`
	ScanIntervalMinutes int    `toml:"scanIntervalMinutes" mapstructure:"scanIntervalMinutes"`
}

// RunConfig is the immutable, validated subset of Config that drives one
// pipeline run.
type RunConfig struct {
	YtDlpPath           string
	TrailerPath         string
	Quality             string
	DelaySeconds        int
	RetryDelaySeconds   int
	MaxTrailersPerRun   int
	ExtraOptions        map[string]string
	UseMetadataFallback bool
	IncludeLibraries    map[string]struct{}
	ExcludeLibraries    map[string]struct{}
}

// Normalize validates the raw trailer settings and produces the RunConfig
// used by the pipeline. Invalid values are replaced with safe defaults
// rather than reported as errors; the pipeline must always be runnable.
func (c *Config) Normalize() RunConfig {
	return RunConfig{
		YtDlpPath:           strings.TrimSpace(c.YtDlpPath),
		TrailerPath:         SanitizeTrailerPath(c.TrailerPath),
		Quality:             normalizeQuality(c.Quality),
		DelaySeconds:        max(c.DelaySeconds, 0),
		RetryDelaySeconds:   max(c.RetryDelaySeconds, 0),
		MaxTrailersPerRun:   max(c.MaxTrailersPerRun, 0),
		ExtraOptions:        ParseExtraOptions(c.YtDlpOptionsJSON),
		UseMetadataFallback: c.UseMetadataFallback,
		IncludeLibraries:    ParseLibraryNames(c.IncludeLibraryNames),
		ExcludeLibraries:    ParseLibraryNames(c.ExcludeLibraryNames),
	}
}

// SanitizeTrailerPath rejects trailer file names that escape the media
// folder. Absolute paths and paths containing ".." fall back to the default.
func SanitizeTrailerPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultTrailerPath
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return DefaultTrailerPath
	}
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return DefaultTrailerPath
		}
	}
	return p
}

func normalizeQuality(q string) string {
	switch strings.ToLower(strings.TrimSpace(q)) {
	case QualityBest:
		return QualityBest
	case Quality1080p:
		return Quality1080p
	case Quality720p:
		return Quality720p
	case Quality480p:
		return Quality480p
	default:
		return defaultQuality
	}
}

// ParseExtraOptions decodes the configured flat JSON map of extra downloader
// options. Malformed JSON means no extra options, never an error.
func ParseExtraOptions(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}
	}
	var opts map[string]string
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return map[string]string{}
	}
	if opts == nil {
		return map[string]string{}
	}
	return opts
}

// ParseLibraryNames parses a comma-separated library name filter into a
// case-insensitive lookup set. An empty string yields an empty set.
func ParseLibraryNames(csv string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, name := range strings.Split(csv, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
