/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ripplehome/streamcore/internal/audio"
)

// multiClientPCMSampleRate and multiClientPCMBitDepth fix the PCM bus
// format for multi-client fan-out at 48 kHz / 24-bit regardless of the
// subscribing players' own output formats.
const (
	multiClientPCMSampleRate = 48000
	multiClientPCMBitDepth   = 24
)

// createJobRequest is the body of a control-layer request to start
// multi-client streaming for a queue.
type createJobRequest struct {
	StartItemID   string  `json:"start_item_id"`
	SeekPositionS float64 `json:"seek_position_s"`
	FadeIn        bool    `json:"fade_in"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

// HandleCreateJob implements POST /{queue_id}/multi, the control-layer entry
// point that constructs (or replaces) the multi-client job
// for a queue.
func (c *Controller) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueID")

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.StartItemID == "" {
		http.Error(w, "start_item_id is required", http.StatusBadRequest)
		return
	}

	pcmFormat := audio.AudioFormat{
		ContentType:  audio.ContentPCM24,
		SampleRateHz: multiClientPCMSampleRate,
		BitDepth:     multiClientPCMBitDepth,
		Channels:     2,
	}

	job, err := c.CreateJob(r.Context(), queueID, req.StartItemID, req.SeekPositionS, req.FadeIn, pcmFormat)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			notFound(w, err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createJobResponse{JobID: job.JobID})
}
