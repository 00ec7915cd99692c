/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobCreated)

	bus.Publish(EventJobCreated, Payload{"job_id": "j1"})

	select {
	case payload := <-sub:
		if payload["job_id"] != "j1" {
			t.Fatalf("unexpected payload %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestBusPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobFinished)

	// Fill the subscriber's buffer and keep publishing; Publish must drop
	// rather than stall the streaming hot path.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(sub)*4; i++ {
			bus.Publish(EventJobFinished, Payload{"n": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an undrained subscriber")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSubscriberJoined)
	bus.Unsubscribe(EventSubscriberJoined, sub)

	if _, ok := <-sub; ok {
		t.Fatal("unsubscribed channel should be closed and drained")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventSubscriberJoined, Payload{})
}
