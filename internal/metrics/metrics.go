// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Manager struct {
	registry *prometheus.Registry

	downloadedTotal prometheus.Counter
	failedTotal     prometheus.Counter
	runDuration     prometheus.Histogram
	libraryFolders  prometheus.Gauge
	foldersTrailer  prometheus.Gauge
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		downloadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trailers_downloaded_total",
			Help: "Total number of trailers downloaded successfully",
		}),
		failedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trailers_failed_total",
			Help: "Total number of trailer downloads that failed after retries",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailers_run_duration_seconds",
			Help:    "Duration of acquisition runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		libraryFolders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_folders",
			Help: "Number of media folders found by the last scan",
		}),
		foldersTrailer: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_folders_with_trailer",
			Help: "Number of media folders that already have a trailer",
		}),
	}

	registry.MustRegister(m.downloadedTotal, m.failedTotal, m.runDuration, m.libraryFolders, m.foldersTrailer)

	log.Debug().Msg("Metrics registry initialized")

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) ObserveRun(duration time.Duration, downloaded, failed int) {
	m.runDuration.Observe(duration.Seconds())
	m.downloadedTotal.Add(float64(downloaded))
	m.failedTotal.Add(float64(failed))
}

func (m *Manager) SetFolderCounts(total, withTrailer int) {
	m.libraryFolders.Set(float64(total))
	m.foldersTrailer.Set(float64(withTrailer))
}
