/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package flow

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ripplehome/streamcore/internal/audio"
)

// outChanCapacity bounds the generator's output channel. The consumer
// (the transcoder driver's stdin writer) applies backpressure by blocking;
// a deep buffer here would hide that backpressure instead of propagating
// it up to the provider pull.
const outChanCapacity = 4

// readChunkSize is the size of each read from a provider's PCM stream.
const readChunkSize = 32 * 1024

// Generator produces a continuous PCM byte stream across an unbounded
// sequence of queue items, crossfading at track boundaries. A Generator is
// single-use: call Run once.
type Generator struct {
	queue         *audio.PlayerQueue
	provider      audio.Provider
	pcmFormat     audio.AudioFormat
	seekPositionS float64
	fadeIn        bool
	logger        zerolog.Logger

	// OnItemStart, if set, is called with each track as the generator
	// begins streaming it, letting an HTTP handler track "the current
	// item" for ICY metadata titles without reaching into pump's private
	// state.
	OnItemStart func(*audio.QueueItem)
}

// NewGenerator constructs a flow generator. pcmFormat.ContentType must be a
// PCM variant; Run asserts this.
func NewGenerator(queue *audio.PlayerQueue, provider audio.Provider, pcmFormat audio.AudioFormat, seekPositionS float64, fadeIn bool, logger zerolog.Logger) *Generator {
	return &Generator{
		queue:         queue,
		provider:      provider,
		pcmFormat:     pcmFormat,
		seekPositionS: seekPositionS,
		fadeIn:        fadeIn,
		logger:        logger.With().Str("component", "flow").Str("queue_id", queue.QueueID).Logger(),
	}
}

// Run starts the generator as a channel producer task. The returned chunks
// channel is closed when the sequence ends (QueueEmpty) or a terminal error
// occurs; in the latter case the error is sent on errs before chunks
// closes. A producer-level I/O error (anything other than a skipped
// missing-media track) is terminal and ends the flow.
func (g *Generator) Run(ctx context.Context, startItem *audio.QueueItem) (chunks <-chan []byte, errs <-chan error) {
	out := make(chan []byte, outChanCapacity)
	errCh := make(chan error, 1)

	if !g.pcmFormat.ContentType.IsPCM() {
		errCh <- fmt.Errorf("flow: pcm_format content type %q is not PCM", g.pcmFormat.ContentType)
		close(out)
		close(errCh)
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)
		g.pump(ctx, startItem, out, errCh)
	}()

	return out, errCh
}

// pump runs the per-track loop. carryFadeout is the tail of the previous
// track, held back at its end to be crossfaded against the head of the
// current one once enough of it has buffered.
func (g *Generator) pump(ctx context.Context, startItem *audio.QueueItem, out chan<- []byte, errCh chan<- error) {
	sampleSize := g.pcmFormat.SampleSize()

	item := startItem
	seek := g.seekPositionS
	fadeIn := g.fadeIn
	var carryFadeout []byte

	for {
		details, err := g.provider.GetStreamDetails(ctx, item)
		if errors.Is(err, audio.ErrMediaNotFound) {
			g.logger.Warn().Str("item_id", item.ID).Msg("media not found, skipping track")
			next, ok := g.preloadNext(ctx, errCh)
			if !ok {
				g.flushCarry(ctx, out, carryFadeout)
				return
			}
			item = next
			continue
		}
		if err != nil {
			errCh <- err
			return
		}
		item.SetDetails(details)
		details.SecondsSkipped = seek
		if g.OnItemStart != nil {
			g.OnItemStart(item)
		}

		crossfadeSize := sampleSize * g.queue.CrossfadeDurationS
		bufferSize := crossfadeSize
		if !g.queue.CrossfadeEnabled {
			bufferSize = sampleSize * 2
		}

		stream, err := g.provider.GetMediaStream(ctx, details, g.pcmFormat, seek, fadeIn, carryFadeout != nil)
		if err != nil {
			errCh <- err
			return
		}

		bytesWritten, emitted, nextCarry, serr := g.streamOneTrack(ctx, stream, out, carryFadeout, crossfadeSize, bufferSize)
		_ = stream.Close()
		if serr != nil {
			errCh <- serr
			return
		}
		if !emitted {
			g.logger.Warn().Str("item_id", item.ID).Msg("stream produced no bytes")
			details.SecondsStreamed = 0
		} else {
			details.SecondsStreamed = float64(bytesWritten) / float64(sampleSize)
		}
		carryFadeout = nextCarry

		// Seek and fade-in only apply to the first item in the sequence.
		seek = 0
		fadeIn = false

		next, ok := g.preloadNext(ctx, errCh)
		if !ok {
			// No further track to fade into: the held-back tail is the end
			// of the stream, not a fade window.
			g.flushCarry(ctx, out, carryFadeout)
			return
		}
		if !g.queue.CrossfadeEnabled {
			carryFadeout = nil
		}
		item = next
	}
}

// flushCarry emits a carried fadeout that has no successor track to blend
// with, so the last track plays out to its true end.
func (g *Generator) flushCarry(ctx context.Context, out chan<- []byte, carry []byte) {
	if len(carry) == 0 {
		return
	}
	sendChunk(ctx, out, carry)
}

// preloadNext calls PreloadNext and folds the result into the (item,
// continue) contract pump expects; on ErrQueueEmpty or another error it
// signals pump to stop.
func (g *Generator) preloadNext(ctx context.Context, errCh chan<- error) (*audio.QueueItem, bool) {
	_, next, _, err := g.queue.PreloadNext(ctx)
	if errors.Is(err, audio.ErrQueueEmpty) {
		return nil, false
	}
	if err != nil {
		errCh <- err
		return nil, false
	}
	return next, true
}

// streamOneTrack drains stream, emitting crossfaded and steady-state chunks
// to out, and returns the fadeout tail to carry into the next track (nil
// if crossfade is disabled or the track ended with nothing left to carry).
func (g *Generator) streamOneTrack(ctx context.Context, stream audio.PCMStream, out chan<- []byte, carryFadeout []byte, crossfadeSize, bufferSize int) (bytesWritten int, emitted bool, nextCarry []byte, err error) {
	buffer := make([]byte, 0, bufferSize*2)
	chunkBuf := make([]byte, readChunkSize)

	for {
		n, rerr := stream.Read(chunkBuf)
		if n > 0 {
			chunk := append([]byte(nil), chunkBuf[:n]...)

			switch {
			case carryFadeout != nil && len(buffer)+len(chunk) >= bufferSize:
				// Copied, not sliced: buffer's backing array is reused
				// below while these chunks may still sit in the out queue.
				first := make([]byte, 0, len(buffer)+len(chunk))
				first = append(first, buffer...)
				first = append(first, chunk...)
				fadein := first[:crossfadeSize]
				tail := append([]byte(nil), first[crossfadeSize:]...)
				crossfaded, cerr := equalPowerCrossfade(fadein, carryFadeout, g.pcmFormat.BitDepth, g.pcmFormat.Channels)
				if cerr != nil {
					return bytesWritten, emitted, nil, cerr
				}
				if !sendChunk(ctx, out, crossfaded) {
					return bytesWritten, emitted, nil, ctx.Err()
				}
				if len(tail) > 0 && !sendChunk(ctx, out, tail) {
					return bytesWritten, emitted, nil, ctx.Err()
				}
				bytesWritten += len(crossfaded) + len(tail)
				emitted = true
				carryFadeout = nil
				buffer = buffer[:0]

			case len(buffer) >= 2*bufferSize:
				if !sendChunk(ctx, out, append([]byte(nil), buffer[:bufferSize]...)) {
					return bytesWritten, emitted, nil, ctx.Err()
				}
				bytesWritten += bufferSize
				emitted = true
				rest := append([]byte(nil), buffer[bufferSize:]...)
				buffer = append(rest, chunk...)

			default:
				buffer = append(buffer, chunk...)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return bytesWritten, emitted, nil, rerr
		}
	}

	// End of track. If the carried fadeout was never consumed
	// (this track ended before the fill threshold), it survives into the
	// next track instead of being dropped.
	if len(buffer) == 0 {
		return bytesWritten, emitted, carryFadeout, nil
	}
	if g.queue.CrossfadeEnabled && len(buffer) > crossfadeSize {
		head := buffer[:len(buffer)-crossfadeSize]
		tail := append([]byte(nil), buffer[len(buffer)-crossfadeSize:]...)
		if len(head) > 0 {
			if !sendChunk(ctx, out, append([]byte(nil), head...)) {
				return bytesWritten, emitted, nil, ctx.Err()
			}
			bytesWritten += len(head)
			emitted = true
		}
		return bytesWritten, emitted, tail, nil
	}

	if !sendChunk(ctx, out, append([]byte(nil), buffer...)) {
		return bytesWritten, emitted, nil, ctx.Err()
	}
	bytesWritten += len(buffer)
	emitted = true
	return bytesWritten, emitted, carryFadeout, nil
}

// sendChunk performs a blocking send that also respects context
// cancellation, reporting false if ctx was cancelled first.
func sendChunk(ctx context.Context, out chan<- []byte, data []byte) bool {
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
