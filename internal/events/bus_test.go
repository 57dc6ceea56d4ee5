/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"testing"
)

func TestBusDeliversToSubscribersOfType(t *testing.T) {
	bus := NewBus()
	created := bus.Subscribe(EventBookingCreated)
	cancelled := bus.Subscribe(EventBookingCancelled)

	bus.Publish(EventBookingCreated, Payload{"booking_id": "b1"})

	select {
	case p := <-created:
		if p["booking_id"] != "b1" {
			t.Fatalf("unexpected payload %v", p)
		}
	default:
		t.Fatal("expected created subscriber to receive payload")
	}

	select {
	case p := <-cancelled:
		t.Fatalf("cancelled subscriber should not receive %v", p)
	default:
	}
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSlotsGenerated)
	for i := 0; i < cap(sub)+4; i++ {
		bus.Publish(EventSlotsGenerated, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("buffered = %d, want %d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBatchCompleted)
	bus.Unsubscribe(EventBatchCompleted, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed subscriber channel")
	}
	bus.Publish(EventBatchCompleted, Payload{})
}

func TestBusUnsubscribeTwiceIsNoop(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventBookingCreated)
	bus.Unsubscribe(EventBookingCreated, sub)
	bus.Unsubscribe(EventBookingCreated, sub)
}

func TestBusConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	for round := 0; round < 50; round++ {
		subs := make([]Subscriber, 4)
		for i := range subs {
			subs[i] = bus.Subscribe(EventBatchCompleted)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				bus.Publish(EventBatchCompleted, Payload{"n": i})
			}
		}()
		go func() {
			defer wg.Done()
			for _, sub := range subs {
				bus.Unsubscribe(EventBatchCompleted, sub)
			}
		}()
		wg.Wait()

		for _, sub := range subs {
			for range sub {
			}
		}
	}
}
