/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package streamhttp implements the three HTTP streaming endpoints:
// single-track, flow, and multi-subscriber. It owns the per-queue
// multi-client job registry (an explicitly-constructed object threaded
// through request handlers, not a global), negotiates output format,
// drives a transcoder per request, and interleaves ICY metadata on the
// flow route.
package streamhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/config"
	"github.com/ripplehome/streamcore/internal/events"
	"github.com/ripplehome/streamcore/internal/flow"
	"github.com/ripplehome/streamcore/internal/multiclient"
	"github.com/ripplehome/streamcore/internal/transcoder"
)

// ErrNotFound marks a missing queue or item in CreateJob's error, which wraps
// the Registry's lookup error; HandleCreateJob translates it to HTTP 404
// with the wrapped message as the reason. The streaming handlers answer any
// Registry lookup error with a 404 directly.
var ErrNotFound = errors.New("streamhttp: not found")

// Registry resolves the external entities this core reads but does not
// own: queues, items, and players.
// internal/registry provides an in-memory implementation satisfying this
// interface for tests and standalone operation.
type Registry interface {
	Queue(queueID string) (*audio.PlayerQueue, error)
	Item(queueID, itemID string) (*audio.QueueItem, error)
	// PlayerForQueue returns the player that owns queueID, used by the
	// single-track and flow endpoints (which carry no player_id path
	// segment) to negotiate output format.
	PlayerForQueue(queueID string) (audio.Player, error)
	Player(playerID string) (audio.Player, error)
}

// Controller wires the streaming endpoints together: format negotiation,
// the flow generator, the multi-client job registry, and the transcoder
// driver.
type Controller struct {
	registry Registry
	provider audio.Provider
	cfg      *config.Config
	bus      *events.Bus
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*multiclient.Job // queue_id -> job, at most one per queue
}

// New constructs a Controller.
func New(registry Registry, provider audio.Provider, cfg *config.Config, bus *events.Bus, logger zerolog.Logger) *Controller {
	return &Controller{
		registry: registry,
		provider: provider,
		cfg:      cfg,
		bus:      bus,
		logger:   logger.With().Str("component", "streamhttp").Logger(),
		jobs:     make(map[string]*multiclient.Job),
	}
}

// CreateJob constructs a new multi-client job for queueID, stopping and
// replacing any existing job for that queue, and starts its producer loop
// in the background.
func (c *Controller) CreateJob(ctx context.Context, queueID, startItemID string, seekPositionS float64, fadeIn bool, pcmFormat audio.AudioFormat) (*multiclient.Job, error) {
	queue, err := c.registry.Queue(queueID)
	if err != nil {
		return nil, fmt.Errorf("%w: queue %s: %v", ErrNotFound, queueID, err)
	}
	startItem, err := c.registry.Item(queueID, startItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s in queue %s: %v", ErrNotFound, startItemID, queueID, err)
	}

	job := multiclient.NewJob(queueID, startItemID, seekPositionS, fadeIn, pcmFormat, c.bus, c.logger)

	// The job outlives the control-layer request that created it; its
	// lifetime ends on source exhaustion, Stop, or the last-subscriber
	// grace window, never on the creating request's disconnect. The
	// generator shares the job's cancellable context so a stopped job
	// tears its source down with it.
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	if old, exists := c.jobs[queueID]; exists {
		c.logger.Info().Str("queue_id", queueID).Str("old_job_id", old.JobID).Str("new_job_id", job.JobID).Msg("replacing existing multi-client job for queue")
		old.Stop()
	}
	c.jobs[queueID] = job
	c.mu.Unlock()

	gen := flow.NewGenerator(queue, c.provider, pcmFormat, seekPositionS, fadeIn, c.logger)
	chunks, errs := gen.Run(jobCtx, startItem)

	go func() {
		defer jobCancel()
		if err := job.Run(jobCtx, multiclient.Source{Chunks: chunks, Errs: errs}); err != nil {
			c.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("multi-client job ended")
		}
		c.mu.Lock()
		if c.jobs[queueID] == job {
			delete(c.jobs, queueID)
		}
		c.mu.Unlock()
	}()

	return job, nil
}

// Job returns the current job for queueID, if any.
func (c *Controller) Job(queueID string) (*multiclient.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[queueID]
	return j, ok
}

// notFound writes a 404 with a human-readable reason.
func notFound(w http.ResponseWriter, reason string) {
	http.Error(w, reason, http.StatusNotFound)
}

// transcoderCodec extracts a short label for metrics/events from an
// AudioFormat's content type.
func transcoderCodec(f audio.AudioFormat) string {
	return string(f.ContentType)
}

// newTranscoderProcess builds argv and constructs a supervised Process for
// one request, given the player's config and the negotiated in/out
// formats.
func newTranscoderProcess(cfg *config.Config, player audio.Player, in, out audio.AudioFormat, bus *events.Bus, logger zerolog.Logger) (*transcoder.Process, error) {
	args, err := transcoder.BuildArgs(player, in, out)
	if err != nil {
		return nil, fmt.Errorf("transcoder: build args: %w", err)
	}
	return transcoder.New(transcoder.DefaultBinary(cfg), transcoderCodec(out), args, bus, logger), nil
}
