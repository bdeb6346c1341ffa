// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fl4pj4ck/jellytrailers/internal/services/trailers"
)

// TrailersHandler exposes manual control over the acquisition pipeline.
type TrailersHandler struct {
	service *trailers.Service
}

func NewTrailersHandler(service *trailers.Service) *TrailersHandler {
	return &TrailersHandler{service: service}
}

func (h *TrailersHandler) Routes(r chi.Router) {
	r.Post("/run", h.TriggerRun)
}

// TriggerRun starts a pipeline pass in the background. Returns 409 when a
// pass is already running.
func (h *TrailersHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	// Detached from the request context: the run outlives the response.
	if err := h.service.TriggerRun(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, trailers.ErrRunInProgress) {
			RespondError(w, http.StatusConflict, "A run is already in progress")
			return
		}
		log.Error().Err(err).Msg("Failed to trigger run")
		RespondError(w, http.StatusInternalServerError, "Failed to trigger run")
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
