// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fl4pj4ck/jellytrailers/internal/api"
	"github.com/fl4pj4ck/jellytrailers/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "jellytrailers",
		Short:        "Trailer acquisition service for Jellyfin libraries",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunRunCommand())
	rootCmd.AddCommand(RunYtDlpCommand())
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the run scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.cfg.DynamicReload()

			interval := time.Duration(app.cfg.Config.ScanIntervalMinutes) * time.Minute
			if err := app.service.Start(ctx, interval); err != nil {
				return err
			}
			defer app.service.Stop()

			server := api.NewServer(&api.Dependencies{
				Config:   app.cfg,
				Trailers: app.service,
				Stats:    app.stats,
				YtDlp:    app.adapter,
				Metrics:  app.metrics,
			})

			log.Info().Str("version", buildinfo.Version).Msg("Starting jellytrailers")

			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file or directory")
	return cmd
}

func RunRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one acquisition pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := app.service.Run(ctx)
			if err != nil {
				return err
			}

			cmd.Printf("Folders: %d (with trailer: %d)\n", summary.TotalFolders, summary.FoldersWithTrailer)
			cmd.Printf("Attempted: %d, downloaded: %d, failed: %d\n", summary.Attempted, summary.Downloaded, summary.Failed)
			if summary.Cancelled {
				cmd.Println("Run was cancelled before completing.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file or directory")
	return cmd
}

func RunYtDlpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ytdlp",
		Short: "Downloader operations",
	}

	cmd.AddCommand(runYtDlpCheckCommand())
	return cmd
}

func runYtDlpCheckCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the yt-dlp executable responds to a version query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			avail := app.adapter.CheckAvailable(ctx)
			if !avail.OK() {
				return fmt.Errorf("yt-dlp unavailable (%s): %s", avail.Kind, avail.Message)
			}

			cmd.Printf("yt-dlp available: %s\n", avail.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file or directory")
	return cmd
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(buildinfo.String())
		},
	}
}
