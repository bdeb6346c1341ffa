// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fl4pj4ck/jellytrailers/internal/stats"
)

// StatsHandler serves the download statistics.
type StatsHandler struct {
	store *stats.Store
}

func NewStatsHandler(store *stats.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/reset", h.Reset)
}

// Get returns the aggregate download statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.store.GetStats())
}

// Reset clears the recorded run history.
func (h *StatsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	RespondJSON(w, http.StatusOK, h.store.GetStats())
}
