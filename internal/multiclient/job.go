/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package multiclient implements the multi-client stream job: a transient
// fan-out controller that broadcasts one flow stream's chunks to N
// subscribing players with backpressure, late-join accounting, and a
// monotonic Pending/Running/Finished lifecycle.
//
// The fan-out send to each subscriber blocks rather than drops: players in
// a synchronized group must all hear the same byte sequence, and a dropped
// chunk is an audible glitch. The slowest client dictates pace; the 2-slot
// channel absorbs normal jitter.
package multiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/events"
	"github.com/ripplehome/streamcore/internal/telemetry"
)

// subscriberChannelCapacity bounds each subscriber's delivery channel:
// large enough to absorb normal jitter, small enough that a slow client
// visibly slows the producer.
const subscriberChannelCapacity = 2

// allConnectedTimeout is how long the producer waits, after its first
// chunk, for every expected player to have subscribed.
const allConnectedTimeout = 10 * time.Second

// lastSubscriberGrace is how long the job waits after its last subscriber
// disconnects before cancelling the producer.
const lastSubscriberGrace = 2 * time.Second

// JobState is the job lifecycle state machine (monotonic transitions:
// Pending -> Running -> Finished).
type JobState int

const (
	StatePending JobState = iota
	StateRunning
	StateFinished
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ErrJobFinished is returned by Subscribe once the job has finished.
var ErrJobFinished = errors.New("multiclient: job finished")

// Source is the flow (or single-track) byte producer a job fans out. It is
// the channel pair returned by flow.Generator.Run.
type Source struct {
	Chunks <-chan []byte
	Errs   <-chan error
}

// subscriber is one registered player's delivery channel.
type subscriber struct {
	ch chan []byte
}

// Job is a transient fan-out controller for one queue_id.
type Job struct {
	JobID         string
	QueueID       string
	StartItem     string
	SeekPositionS float64
	FadeIn        bool
	PCMFormat     audio.AudioFormat // fixed at 48kHz/24-bit/stereo by convention; caller sets it

	logger zerolog.Logger
	bus    *events.Bus

	mu                   sync.Mutex
	expectedPlayers      map[string]struct{}
	subscribers          map[string]*subscriber
	clientSecondsSkipped map[string]float64
	state                JobState
	bytesStreamed        int64

	allConnectedOnce sync.Once
	allConnected     chan struct{}

	cancel context.CancelFunc

	graceTimer *time.Timer
}

// NewJob constructs a job in the Pending state. Call Run to start the
// producer loop.
func NewJob(queueID, startItem string, seekPositionS float64, fadeIn bool, pcmFormat audio.AudioFormat, bus *events.Bus, logger zerolog.Logger) *Job {
	jobID := uuid.NewString()
	telemetry.MultiClientJobsActive.Inc()
	return &Job{
		JobID:                jobID,
		QueueID:              queueID,
		StartItem:            startItem,
		SeekPositionS:        seekPositionS,
		FadeIn:               fadeIn,
		PCMFormat:            pcmFormat,
		logger:               logger.With().Str("component", "multiclient").Str("job_id", jobID).Str("queue_id", queueID).Logger(),
		bus:                  bus,
		expectedPlayers:      make(map[string]struct{}),
		subscribers:          make(map[string]*subscriber),
		clientSecondsSkipped: make(map[string]float64),
		allConnected:         make(chan struct{}),
	}
}

// ResolveStreamURLTarget registers playerID as an expected subscriber. It
// does not build the URL; internal/resolver's MultiClientURL builds that
// from JobID/QueueID/playerID/itemID/format.
func (j *Job) ResolveStreamURLTarget(playerID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.expectedPlayers[playerID] = struct{}{}
}

// State returns the job's current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// BytesStreamed returns the monotonic byte counter.
func (j *Job) BytesStreamed() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytesStreamed
}

// Subscribe registers playerID and returns a channel yielding chunks until
// EOF. A nil chunk signals EOF; the channel itself is never closed by this
// package, so a late reader cannot race a closed-channel send. A duplicate
// registration logs a warning naming the misbehaving device and replaces
// the previous channel, which is orphaned: devices reconnecting over a
// half-open socket must be able to resubscribe.
func (j *Job) Subscribe(playerID string) (<-chan []byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == StateFinished {
		return nil, ErrJobFinished
	}

	if _, exists := j.subscribers[playerID]; exists {
		j.logger.Warn().Str("player_id", playerID).Msg("duplicate subscription for player; replacing channel")
	} else {
		telemetry.MultiClientSubscribersActive.Inc()
	}

	ch := make(chan []byte, subscriberChannelCapacity)
	j.subscribers[playerID] = &subscriber{ch: ch}

	if j.graceTimer != nil {
		j.graceTimer.Stop()
		j.graceTimer = nil
	}

	if _, expected := j.expectedPlayers[playerID]; !expected {
		j.expectedPlayers[playerID] = struct{}{}
	}

	if j.state == StateRunning {
		// Late join: this subscriber only sees chunks from here forward.
		j.clientSecondsSkipped[playerID] = float64(j.bytesStreamed) / float64(j.PCMFormat.SampleSize())
		telemetry.SubscriberLateJoinsTotal.Inc()
		j.bus.Publish(events.EventSubscriberLate, events.Payload{"job_id": j.JobID, "player_id": playerID})
	}

	j.maybeSignalAllConnected()
	j.bus.Publish(events.EventSubscriberJoined, events.Payload{"job_id": j.JobID, "player_id": playerID})

	return ch, nil
}

// Unsubscribe deregisters player_id. If it was the last subscriber and the
// job hasn't finished, a grace timer starts; if it's still empty when the
// timer fires, the producer is cancelled.
func (j *Job) Unsubscribe(playerID string) {
	j.mu.Lock()
	if _, ok := j.subscribers[playerID]; ok {
		delete(j.subscribers, playerID)
		telemetry.MultiClientSubscribersActive.Dec()
	}
	empty := len(j.subscribers) == 0
	finished := j.state == StateFinished
	if empty && !finished {
		j.graceTimer = time.AfterFunc(lastSubscriberGrace, j.onGraceExpired)
	}
	j.mu.Unlock()

	j.bus.Publish(events.EventSubscriberLeft, events.Payload{"job_id": j.JobID, "player_id": playerID})
}

func (j *Job) onGraceExpired() {
	j.mu.Lock()
	stillEmpty := len(j.subscribers) == 0
	finished := j.state == StateFinished
	cancel := j.cancel
	j.mu.Unlock()

	if stillEmpty && !finished && cancel != nil {
		j.logger.Info().Msg("last subscriber grace expired with no reconnect, cancelling producer")
		cancel()
	}
}

// ClientSecondsSkipped returns the recorded skip offset for a late-joining
// player, if any.
func (j *Job) ClientSecondsSkipped(playerID string) (float64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.clientSecondsSkipped[playerID]
	return v, ok
}

// snapshotSubscribers returns a point-in-time copy of the subscriber map
// so the producer can iterate without holding the lock during blocking
// sends; subscribe/unsubscribe may mutate the map mid-broadcast.
func (j *Job) snapshotSubscribers() map[string]*subscriber {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := make(map[string]*subscriber, len(j.subscribers))
	for k, v := range j.subscribers {
		snap[k] = v
	}
	return snap
}

func (j *Job) maybeSignalAllConnected() {
	// caller holds j.mu
	if len(j.expectedPlayers) == 0 {
		return
	}
	for p := range j.expectedPlayers {
		if _, ok := j.subscribers[p]; !ok {
			return
		}
	}
	j.allConnectedOnce.Do(func() { close(j.allConnected) })
}

// Stop marks the job finished, cancels the producer, and pushes an empty
// EOF chunk to each subscriber (non-blocking, since a stopped job must not
// hang waiting on a possibly-dead consumer).
func (j *Job) Stop() {
	j.mu.Lock()
	if j.state == StateFinished {
		j.mu.Unlock()
		return
	}
	j.state = StateFinished
	telemetry.MultiClientJobsActive.Dec()
	cancel := j.cancel
	subs := make([]*subscriber, 0, len(j.subscribers))
	for _, s := range j.subscribers {
		subs = append(subs, s)
	}
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range subs {
		select {
		case s.ch <- nil:
		default:
		}
	}
	j.bus.Publish(events.EventJobFinished, events.Payload{"job_id": j.JobID, "queue_id": j.QueueID})
}

// Run starts the producer loop against source and blocks until the job
// finishes (source exhaustion, Stop, grace-timer cancellation, or a
// producer error). It is meant to be invoked from a goroutine owned by the
// job's creator; a job is an explicitly-constructed object, not a
// background daemon that outlives its creator.
func (j *Job) Run(ctx context.Context, source Source) error {
	ctx, cancel := context.WithCancel(ctx)
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
	defer cancel()

	j.bus.Publish(events.EventJobCreated, events.Payload{"job_id": j.JobID, "queue_id": j.QueueID})

	first := true
	errs := source.Errs

	for {
		select {
		case <-ctx.Done():
			j.Stop()
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				// Closed alongside Chunks; stop selecting on it so the
				// remaining chunks drain without spinning.
				errs = nil
				continue
			}
			if err != nil {
				j.Stop()
				return fmt.Errorf("multiclient: producer source error: %w", err)
			}
		case chunk, ok := <-source.Chunks:
			if !ok {
				// Source exhausted: deliver the EOF marker as a blocking
				// broadcast so even a backlogged subscriber observes it,
				// then finish.
				j.broadcast(ctx, nil)
				j.Stop()
				return nil
			}
			if first {
				first = false
				j.mu.Lock()
				j.state = StateRunning
				j.mu.Unlock()
				j.bus.Publish(events.EventJobRunning, events.Payload{"job_id": j.JobID})
				if !j.awaitInitialConnect(ctx) {
					j.Stop()
					return errors.New("multiclient: aborted, zero subscribers connected within deadline")
				}
			}
			j.broadcast(ctx, chunk)
			j.mu.Lock()
			j.bytesStreamed += int64(len(chunk))
			j.mu.Unlock()
		}
	}
}

// awaitInitialConnect waits up to allConnectedTimeout for all_connected. On
// timeout, it returns true (proceed) if at least one subscriber is
// connected, false (abort) if zero are.
func (j *Job) awaitInitialConnect(ctx context.Context) bool {
	timer := time.NewTimer(allConnectedTimeout)
	defer timer.Stop()
	select {
	case <-j.allConnected:
		return true
	case <-timer.C:
		j.mu.Lock()
		n := len(j.subscribers)
		j.mu.Unlock()
		if n == 0 {
			return false
		}
		j.logger.Warn().Int("connected", n).Msg("all_connected deadline passed with partial subscriber set, proceeding")
		return true
	case <-ctx.Done():
		return false
	}
}

// broadcast sends chunk to every current subscriber concurrently, each as a
// blocking enqueue: the producer waits for a slow client rather than drop.
func (j *Job) broadcast(ctx context.Context, chunk []byte) {
	subs := j.snapshotSubscribers()
	if len(subs) == 0 {
		return
	}

	var g errgroup.Group
	for _, s := range subs {
		s := s
		g.Go(func() error {
			select {
			case s.ch <- chunk:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
}
