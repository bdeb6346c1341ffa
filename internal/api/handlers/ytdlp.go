// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fl4pj4ck/jellytrailers/internal/ytdlp"
)

// YtDlpHandler reports downloader availability.
type YtDlpHandler struct {
	adapter *ytdlp.Adapter
}

func NewYtDlpHandler(adapter *ytdlp.Adapter) *YtDlpHandler {
	return &YtDlpHandler{adapter: adapter}
}

func (h *YtDlpHandler) Routes(r chi.Router) {
	r.Get("/status", h.Status)
}

type ytDlpStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Status probes the downloader executable with a version query.
func (h *YtDlpHandler) Status(w http.ResponseWriter, r *http.Request) {
	avail := h.adapter.CheckAvailable(r.Context())

	RespondJSON(w, http.StatusOK, ytDlpStatusResponse{
		Status:  avail.Kind.String(),
		Message: avail.Message,
	})
}
