/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/flow"
	"github.com/ripplehome/streamcore/internal/negotiate"
)

// currentItemTracker is a mutex-guarded pointer to the queue item the flow
// generator is currently streaming, read by the ICY title callback from the
// stdout relay goroutine while the generator goroutine writes it via
// Generator.OnItemStart.
type currentItemTracker struct {
	mu   sync.Mutex
	item *audio.QueueItem
}

func (t *currentItemTracker) set(item *audio.QueueItem) {
	t.mu.Lock()
	t.item = item
	t.mu.Unlock()
}

func (t *currentItemTracker) title() string {
	t.mu.Lock()
	item := t.item
	t.mu.Unlock()
	if item == nil {
		return "Music Assistant"
	}
	return item.Title()
}

// HandleFlow implements GET/HEAD
// /{queue_id}/flow/{queue_item_id}.{fmt}[?seek_position=S&fade_in=1], with
// optional ICY metadata interleaving when the client sends
// "Icy-MetaData: 1".
func (c *Controller) HandleFlow(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueID")
	itemID := chi.URLParam(r, "itemID")
	fmtStr := chi.URLParam(r, "fmt")

	queue, err := c.registry.Queue(queueID)
	if err != nil {
		notFound(w, err.Error())
		return
	}
	startItem, err := c.registry.Item(queueID, itemID)
	if err != nil {
		notFound(w, err.Error())
		return
	}
	player, err := c.registry.PlayerForQueue(queueID)
	if err != nil {
		notFound(w, err.Error())
		return
	}

	outputFormat, err := negotiate.ResolveOutputFormat(fmtStr, player, negotiate.FlowDefaultSampleRateHz, negotiate.FlowDefaultBitDepth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seekPositionS, fadeIn := parseSeekAndFadeIn(r)
	wantsICY := r.Header.Get("Icy-MetaData") == "1"

	setCommonHeaders(w, fmtStr)
	if wantsICY {
		w.Header().Set("icy-metaint", strconv.Itoa(icyMetaIntFor(outputFormat)))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	ctx := r.Context()
	pcmFormat := audio.AudioFormat{
		ContentType:  audio.ContentPCM24,
		SampleRateHz: negotiate.FlowDefaultSampleRateHz,
		BitDepth:     negotiate.FlowDefaultBitDepth,
		Channels:     2,
	}

	tracker := &currentItemTracker{item: startItem}
	gen := flow.NewGenerator(queue, c.provider, pcmFormat, float64(seekPositionS), fadeIn, c.logger)
	gen.OnItemStart = tracker.set
	chunks, errs := gen.Run(ctx, startItem)

	proc, err := newTranscoderProcess(c.cfg, player, pcmFormat, outputFormat, c.bus, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Msg("flow: build transcoder args")
		return
	}

	if !wantsICY {
		runTranscodedResponse(ctx, w, proc, chunks, errs, "flow", c.logger)
		return
	}

	icy := newICYWriter(w, icyMetaIntFor(outputFormat), tracker.title)
	runTranscodedResponseTo(ctx, w, icy, proc, chunks, errs, "flow", c.logger)
}
