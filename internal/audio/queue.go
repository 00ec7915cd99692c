/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueEmpty is returned by PlayerQueue.PreloadNext when there is no
// further item to play; it is a normal termination signal for the flow
// generator, not an application error.
var ErrQueueEmpty = errors.New("audio: queue empty")

// ErrMediaNotFound is returned by a Provider when the underlying media for a
// QueueItem cannot be located; the flow generator logs and skips the track
// rather than surfacing this to the HTTP client.
var ErrMediaNotFound = errors.New("audio: media not found")

// StreamDetails is supplied by the provider layer and mutated in place by
// the flow generator to record accurate durations as a track streams.
type StreamDetails struct {
	URI             string
	Format          AudioFormat
	SecondsSkipped  float64
	SecondsStreamed float64
	StreamTitle     string // optional; falls back to QueueItem.Name
}

// QueueItem is one playable unit referenced by an opaque id. StreamDetails
// is resolved on demand and then owned by whichever flow generator run is
// currently streaming this item.
type QueueItem struct {
	ID   string
	Name string

	mu      sync.Mutex
	details *StreamDetails
}

// Details returns the current StreamDetails, or nil if none has been
// resolved yet.
func (q *QueueItem) Details() *StreamDetails {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.details
}

// SetDetails installs the StreamDetails resolved for this item. The flow
// generator writes this for the track it is currently streaming, and the
// single-track endpoint for the item it serves.
func (q *QueueItem) SetDetails(d *StreamDetails) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.details = d
}

// Title returns the display title for ICY metadata: stream_title if the
// provider supplied one, else the queue item's display name.
func (q *QueueItem) Title() string {
	if d := q.Details(); d != nil && d.StreamTitle != "" {
		return d.StreamTitle
	}
	if q.Name != "" {
		return q.Name
	}
	return "Music Assistant"
}

// PlayerQueue owns an ordered sequence of QueueItems for one queue_id.
type PlayerQueue struct {
	QueueID            string
	CrossfadeEnabled   bool
	CrossfadeDurationS int

	mu    sync.Mutex
	items []*QueueItem
	pos   int
}

// NewPlayerQueue constructs a queue with the default crossfade duration
// (8s) unless overridden by the caller. items[0] is assumed to be
// the item the caller is about to stream as the flow generator's
// start_item; PreloadNext's cursor begins one position past it, so the
// first PreloadNext call returns items[0] as prev and items[1] as next.
func NewPlayerQueue(queueID string, items []*QueueItem, crossfadeEnabled bool) *PlayerQueue {
	return &PlayerQueue{
		QueueID:            queueID,
		CrossfadeEnabled:   crossfadeEnabled,
		CrossfadeDurationS: 8,
		items:              items,
		pos:                1,
	}
}

// Items returns a snapshot of the queue's current item list, used by
// registries to resolve an item id without exposing the cursor.
func (q *PlayerQueue) Items() []*QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// PreloadNext advances the cursor and returns the previous item, the next
// item, and whether a crossfade should be applied between them. It returns
// ErrQueueEmpty once the sequence is exhausted.
func (q *PlayerQueue) PreloadNext(_ context.Context) (prev, next *QueueItem, useCrossfade bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pos >= len(q.items) {
		return nil, nil, false, ErrQueueEmpty
	}
	prev = q.items[q.pos-1]
	next = q.items[q.pos]
	q.pos++
	return prev, next, q.CrossfadeEnabled, nil
}

// Provider resolves StreamDetails for a QueueItem and supplies the raw PCM
// byte stream consumed by the flow generator. Implementations live outside
// this core; it only depends on the interface.
type Provider interface {
	GetStreamDetails(ctx context.Context, item *QueueItem) (*StreamDetails, error)

	// GetMediaStream returns a lazy PCM byte reader. stripSilenceBegin asks
	// the provider to trim leading silence, used when a carried fadeout is
	// about to be crossfaded against this track's head.
	GetMediaStream(ctx context.Context, details *StreamDetails, pcmFormat AudioFormat, seekPositionS float64, fadeIn bool, stripSilenceBegin bool) (PCMStream, error)
}

// PCMStream is a closeable source of raw PCM bytes.
type PCMStream interface {
	Read(p []byte) (int, error)
	Close() error
}

// Player describes a playback device's capabilities and per-player output
// configuration.
type Player struct {
	ID              string
	MaxSampleRateHz int
	Supports24Bit   bool
	DisplayName     string

	OutputCodec    string
	OutputChannels OutputChannelsMode
	EQBassDB       float64
	EQMidDB        float64
	EQTrebleDB     float64
}

// OutputChannelsMode mirrors config.OutputChannels without importing the
// config package from the domain layer.
type OutputChannelsMode string

const (
	ChannelsStereo OutputChannelsMode = "stereo"
	ChannelsLeft   OutputChannelsMode = "left"
	ChannelsRight  OutputChannelsMode = "right"
	ChannelsMono   OutputChannelsMode = "mono"
)
