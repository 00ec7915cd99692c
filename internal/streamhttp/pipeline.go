/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ripplehome/streamcore/internal/telemetry"
	"github.com/ripplehome/streamcore/internal/transcoder"
)

// responseRelay is the subset of http.ResponseWriter this package's relay
// loop needs: Write plus an optional Flush (a *icyWriter satisfies Write
// without Flush, so flushing is done by the caller after each Write).
type responseRelay interface {
	Write([]byte) (int, error)
}

// runTranscodedResponse launches a transcoder, pumps chunks/errs into its
// stdin, and relays its stdout to out (flushing the underlying
// http.ResponseWriter after each write), tearing everything down on
// context cancellation, source exhaustion, or a broken pipe. kind labels
// the streamcore_bytes_streamed_total metric ("single", "flow", "multi").
func runTranscodedResponse(ctx context.Context, w http.ResponseWriter, proc *transcoder.Process, chunks <-chan []byte, errs <-chan error, kind string, logger zerolog.Logger) {
	runTranscodedResponseTo(ctx, w, w, proc, chunks, errs, kind, logger)
}

// runTranscodedResponseTo is runTranscodedResponse with an explicit output
// writer distinct from the flushed http.ResponseWriter, used by the flow
// endpoint to interpose an icyWriter between the transcoder and the wire.
func runTranscodedResponseTo(ctx context.Context, flushTarget http.ResponseWriter, out responseRelay, proc *transcoder.Process, chunks <-chan []byte, errs <-chan error, kind string, logger zerolog.Logger) {
	stdin, stdout, err := proc.Start(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start transcoder")
		return
	}
	defer proc.Stop()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := transcoder.PumpStdin(ctx, stdin, chunks, errs); err != nil {
			logger.Warn().Err(err).Msg("transcoder stdin pump ended with error")
		}
	}()

	flusher, _ := flushTarget.(http.Flusher)
	bytesTotal := 0
	relayErr := transcoder.RelayStdout(stdout, func(b []byte) error {
		n, err := out.Write(b)
		bytesTotal += n
		if err == nil && flusher != nil {
			flusher.Flush()
		}
		return err
	})
	if relayErr != nil && !transcoder.IsBrokenPipe(relayErr) {
		logger.Warn().Err(relayErr).Msg("transcoder stdout relay ended with error")
	}
	telemetry.BytesStreamedTotal.WithLabelValues(kind).Add(float64(bytesTotal))

	<-pumpDone
	_ = proc.Wait()
}
