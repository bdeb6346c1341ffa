// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fl4pj4ck/jellytrailers/internal/buildinfo"
	"github.com/fl4pj4ck/jellytrailers/internal/config"
	"github.com/fl4pj4ck/jellytrailers/internal/jellyfin"
	"github.com/fl4pj4ck/jellytrailers/internal/logger"
	"github.com/fl4pj4ck/jellytrailers/internal/metrics"
	"github.com/fl4pj4ck/jellytrailers/internal/scanner"
	"github.com/fl4pj4ck/jellytrailers/internal/services/trailers"
	"github.com/fl4pj4ck/jellytrailers/internal/stats"
	"github.com/fl4pj4ck/jellytrailers/internal/ytdlp"
)

// app holds the wired application components shared by the serve and run
// commands.
type app struct {
	cfg     *config.AppConfig
	stats   *stats.Store
	client  *jellyfin.Client
	adapter *ytdlp.Adapter
	service *trailers.Service
	metrics *metrics.Manager
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "jellytrailers")
	}
	return "."
}

func managedBinaryName() string {
	if runtime.GOOS == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}

func newApp(configPath string) (*app, error) {
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	cfg, err := config.New(configPath, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Setup(cfg.Config)

	dataDir := cfg.Config.DataDir
	if dataDir == "" {
		if filepath.Ext(configPath) == ".toml" {
			dataDir = filepath.Dir(configPath)
		} else {
			dataDir = configPath
		}
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	rc := cfg.RunConfig()

	client := jellyfin.NewClient(cfg.Config.JellyfinURL, cfg.Config.JellyfinAPIKey)

	adapter := ytdlp.NewAdapter(ytdlp.Config{
		ConfiguredPath: rc.YtDlpPath,
		ManagedPath:    filepath.Join(dataDir, managedBinaryName()),
		Quality:        rc.Quality,
		ExtraOptions:   rc.ExtraOptions,
	}, &ytdlp.HTTPFetcher{})

	statsStore := stats.NewStore(filepath.Join(dataDir, "stats.json"))

	metricsManager := metrics.NewManager()

	opts := []trailers.Option{
		trailers.WithMetrics(metricsManager),
	}
	if rc.UseMetadataFallback {
		opts = append(opts, trailers.WithMetadataFallback(client))
	}

	service := trailers.NewService(rc, scanner.New(client), adapter, statsStore, client, opts...)

	return &app{
		cfg:     cfg,
		stats:   statsStore,
		client:  client,
		adapter: adapter,
		service: service,
		metrics: metricsManager,
	}, nil
}
