/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/negotiate"
)

// HandleSingle implements GET/HEAD
// /{queue_id}/single/{queue_item_id}.{fmt}[?seek_position=S&fade_in=1].
func (c *Controller) HandleSingle(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueID")
	itemID := chi.URLParam(r, "itemID")
	fmtStr := chi.URLParam(r, "fmt")

	item, err := c.registry.Item(queueID, itemID)
	if err != nil {
		notFound(w, err.Error())
		return
	}
	player, err := c.registry.PlayerForQueue(queueID)
	if err != nil {
		notFound(w, err.Error())
		return
	}

	// Stream details come first: the not-found path must still be able to
	// 404, and the source track's native format seeds the negotiation so a
	// 44.1 kHz track is not upsampled just because the player could take
	// more.
	ctx := r.Context()
	details, err := c.provider.GetStreamDetails(ctx, item)
	if errors.Is(err, audio.ErrMediaNotFound) {
		notFound(w, "no media found for item "+itemID)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	item.SetDetails(details)

	outputFormat, err := negotiate.ResolveOutputFormat(fmtStr, player, details.Format.SampleRateHz, details.Format.BitDepth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seekPositionS, fadeIn := parseSeekAndFadeIn(r)

	setCommonHeaders(w, fmtStr)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	pcmFormat := pcmInputFormat(outputFormat)
	source, err := c.provider.GetMediaStream(ctx, details, pcmFormat, float64(seekPositionS), fadeIn, false)
	if err != nil {
		c.logger.Warn().Err(err).Str("item_id", itemID).Msg("single-track: source error")
		return
	}
	defer source.Close()

	proc, err := newTranscoderProcess(c.cfg, player, pcmFormat, outputFormat, c.bus, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Msg("single-track: build transcoder args")
		return
	}
	chunks, errs := readerChunks(ctx, source)
	runTranscodedResponse(ctx, w, proc, chunks, errs, "single", c.logger)
}

// pcmInputFormat derives the PCM format the provider stream and transcoder
// stdin agree on from the negotiated output: identity when the output is
// itself PCM, otherwise raw PCM at the output's negotiated rate, depth, and
// channel count.
func pcmInputFormat(output audio.AudioFormat) audio.AudioFormat {
	if output.ContentType.IsPCM() {
		return output
	}
	contentType, err := audio.PCMContentTypeForBitDepth(output.BitDepth)
	if err != nil {
		contentType = audio.ContentPCM24
	}
	return audio.AudioFormat{
		ContentType:  contentType,
		SampleRateHz: output.SampleRateHz,
		BitDepth:     output.BitDepth,
		Channels:     output.Channels,
	}
}

// parseSeekAndFadeIn reads the single/flow endpoints' shared query params.
func parseSeekAndFadeIn(r *http.Request) (seekPositionS int, fadeIn bool) {
	if v := r.URL.Query().Get("seek_position"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			seekPositionS = parsed
		}
	}
	fadeIn = r.URL.Query().Get("fade_in") == "1"
	return seekPositionS, fadeIn
}

// readerChunks adapts a PCMStream into the (chunks, errs) channel pair the
// rest of this package's pipeline plumbing expects, so the single-track
// source and the flow/multi-client generator share one relay path.
func readerChunks(ctx context.Context, source audio.PCMStream) (<-chan []byte, <-chan error) {
	out := make(chan []byte, 4)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		buf := make([]byte, 32*1024)
		for {
			n, err := source.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
		}
	}()
	return out, errs
}
