/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ripplehome/streamcore/internal/negotiate"
)

// HandleMulti implements GET/HEAD
// /{queue_id}/multi/{job_id}/{player_id}/{queue_item_id}.{fmt}. It subscribes
// player_id to the queue's current MultiClientStreamJob and relays the
// fanned-out chunks through a transcoder; no ICY interleaving, since
// multi-client players receive metadata out of band, not in-stream.
func (c *Controller) HandleMulti(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueID")
	jobID := chi.URLParam(r, "jobID")
	playerID := chi.URLParam(r, "playerID")
	fmtStr := chi.URLParam(r, "fmt")

	job, ok := c.Job(queueID)
	if !ok {
		notFound(w, "no active multi-client job for queue "+queueID)
		return
	}
	if job.JobID != jobID {
		notFound(w, "job "+jobID+" is not the active job for queue "+queueID)
		return
	}

	player, err := c.registry.Player(playerID)
	if err != nil {
		notFound(w, err.Error())
		return
	}

	// The fan-out bus is fixed at 48 kHz / 24-bit; negotiating up from it
	// would only upsample, so the bus format seeds the defaults.
	outputFormat, err := negotiate.ResolveOutputFormat(fmtStr, player, job.PCMFormat.SampleRateHz, job.PCMFormat.BitDepth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	setCommonHeaders(w, fmtStr)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	subCh, err := job.Subscribe(playerID)
	if err != nil {
		notFound(w, err.Error())
		return
	}
	defer job.Unsubscribe(playerID)

	ctx := r.Context()
	chunks, errs := subscriberChunks(ctx, subCh)

	proc, err := newTranscoderProcess(c.cfg, player, job.PCMFormat, outputFormat, c.bus, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Msg("multi: build transcoder args")
		return
	}

	runTranscodedResponse(ctx, w, proc, chunks, errs, "multi", c.logger)
}

// subscriberChunks adapts a Job.Subscribe channel (nil slice signals EOF,
// never closed) into the (chunks, errs) pair the shared relay pipeline
// expects.
func subscriberChunks(ctx context.Context, sub <-chan []byte) (<-chan []byte, <-chan error) {
	out := make(chan []byte, 4)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for {
			select {
			case chunk, ok := <-sub:
				if !ok || chunk == nil {
					return
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}
