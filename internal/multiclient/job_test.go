/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package multiclient

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/events"
)

var testPCMFormat = audio.AudioFormat{
	ContentType:  audio.ContentPCM24,
	SampleRateHz: 48000,
	BitDepth:     24,
	Channels:     2,
}

func newTestJob(t *testing.T) *Job {
	t.Helper()
	return NewJob("q1", "item1", 0, false, testPCMFormat, events.NewBus(), zerolog.Nop())
}

// runJob starts the producer and returns the source channels plus a done
// channel carrying Run's result.
func runJob(ctx context.Context, j *Job) (chan []byte, chan error, chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		done <- j.Run(ctx, Source{Chunks: chunks, Errs: errs})
	}()
	return chunks, errs, done
}

func waitForBytes(t *testing.T, j *Job, want int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for j.BytesStreamed() < want {
		select {
		case <-deadline:
			t.Fatalf("bytes_streamed stuck at %d, want %d", j.BytesStreamed(), want)
		case <-time.After(time.Millisecond):
		}
	}
}

func recvChunk(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func TestJobBroadcastsSameSuffixToAllSubscribers(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")
	j.ResolveStreamURLTarget("B")

	chA, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	chB, err := j.Subscribe("B")
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)

	payloads := [][]byte{{1, 2, 3}, {4, 5}, {6}}
	go func() {
		for _, p := range payloads {
			chunks <- p
		}
		close(chunks)
	}()

	var gotA, gotB []byte
	for i := 0; i < len(payloads); i++ {
		gotA = append(gotA, recvChunk(t, chA)...)
		gotB = append(gotB, recvChunk(t, chB)...)
	}

	if !bytes.Equal(gotA, gotB) {
		t.Fatalf("subscribers diverged: A=%v B=%v", gotA, gotB)
	}

	// Source exhaustion: both must observe the empty EOF marker (I4).
	if eof := recvChunk(t, chA); len(eof) != 0 {
		t.Fatalf("A expected EOF marker, got %v", eof)
	}
	if eof := recvChunk(t, chB); len(eof) != 0 {
		t.Fatalf("B expected EOF marker, got %v", eof)
	}

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.State() != StateFinished {
		t.Fatalf("expected Finished, got %s", j.State())
	}
}

func TestJobLateJoinSkipAccounting(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")
	chA, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)

	chunk := make([]byte, testPCMFormat.SampleSize()) // exactly one second
	const early = 3
	for i := 0; i < early; i++ {
		chunks <- chunk
		recvChunk(t, chA)
	}
	waitForBytes(t, j, int64(early*len(chunk)))

	chB, err := j.Subscribe("B")
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	skipped, ok := j.ClientSecondsSkipped("B")
	if !ok {
		t.Fatal("expected late-join skip accounting for B")
	}
	if skipped != float64(early) {
		t.Fatalf("expected %d seconds skipped, got %v", early, skipped)
	}

	// B only sees chunks produced after it joined.
	chunks <- []byte{9, 9}
	recvChunk(t, chA)
	if got := recvChunk(t, chB); !bytes.Equal(got, []byte{9, 9}) {
		t.Fatalf("late joiner received unexpected chunk %v", got)
	}

	close(chunks)
	recvChunk(t, chA)
	recvChunk(t, chB)
	<-done
}

func TestJobStopUnblocksSubscribers(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")
	chA, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)
	chunks <- []byte{1}
	recvChunk(t, chA)

	j.Stop()

	if eof := recvChunk(t, chA); len(eof) != 0 {
		t.Fatalf("expected EOF marker after Stop, got %v", eof)
	}
	if j.State() != StateFinished {
		t.Fatalf("expected Finished after Stop, got %s", j.State())
	}
	<-done
}

func TestJobSubscribeAfterFinishedFails(t *testing.T) {
	j := newTestJob(t)
	j.Stop()
	if _, err := j.Subscribe("A"); err == nil {
		t.Fatal("expected error subscribing to a finished job")
	}
}

func TestJobDuplicateSubscriptionReplacesChannel(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")

	first, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("duplicate subscribe: %v", err)
	}
	if first == second {
		t.Fatal("duplicate subscription should replace the channel, not reuse it")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)

	chunks <- []byte{7}
	if got := recvChunk(t, second); !bytes.Equal(got, []byte{7}) {
		t.Fatalf("replacement channel got %v", got)
	}
	select {
	case got := <-first:
		t.Fatalf("orphaned channel unexpectedly received %v", got)
	default:
	}

	close(chunks)
	recvChunk(t, second)
	<-done
}

func TestJobLastSubscriberGraceCancelsProducer(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")
	chA, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)
	chunks <- []byte{1}
	recvChunk(t, chA)

	j.Unsubscribe("A")

	select {
	case <-done:
	case <-time.After(lastSubscriberGrace + 2*time.Second):
		t.Fatal("producer not cancelled after last-subscriber grace window")
	}
	if j.State() != StateFinished {
		t.Fatalf("expected Finished after grace cancellation, got %s", j.State())
	}
}

func TestJobResubscribeWithinGraceKeepsJobAlive(t *testing.T) {
	j := newTestJob(t)
	j.ResolveStreamURLTarget("A")
	chA, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks, _, done := runJob(ctx, j)
	chunks <- []byte{1}
	recvChunk(t, chA)

	j.Unsubscribe("A")
	chA2, err := j.Subscribe("A")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}

	time.Sleep(lastSubscriberGrace + 500*time.Millisecond)
	if j.State() == StateFinished {
		t.Fatal("job finished despite a subscriber reconnecting within the grace window")
	}

	chunks <- []byte{2}
	if got := recvChunk(t, chA2); !bytes.Equal(got, []byte{2}) {
		t.Fatalf("reconnected subscriber got %v", got)
	}

	close(chunks)
	recvChunk(t, chA2)
	<-done
}
