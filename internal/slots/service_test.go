/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
)

func TestGormStoreRejectsDuplicateStart(t *testing.T) {
	database := newTestDB(t)
	business := newBusiness(t, database, "salon", weekHours())
	store := NewGormStore(database)
	ctx := context.Background()

	candidates, err := Candidates(business, monday)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	first := candidates[0]
	first.ID = uuid.NewString()
	if err := store.InsertSlots(ctx, candidates[:0]); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	if err := store.InsertSlots(ctx, []models.Slot{first}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := candidates[0]
	dup.ID = uuid.NewString()
	err = store.InsertSlots(ctx, []models.Slot{dup})
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Fatalf("expected ErrDuplicateSlot, got %v", err)
	}
}

func TestServiceGenerateUnknownBusiness(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(NewGormStore(database), nil, 7, zerolog.Nop())

	_, err := svc.Generate(context.Background(), uuid.NewString(), monday)
	if !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("expected ErrBusinessNotFound, got %v", err)
	}
}

func TestServiceGeneratePublishesEvent(t *testing.T) {
	database := newTestDB(t)
	business := newBusiness(t, database, "salon", weekHours())
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventSlotsGenerated)
	svc := NewService(NewGormStore(database), bus, 7, zerolog.Nop())

	res, err := svc.Generate(context.Background(), business.ID, monday)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Created != 4 {
		t.Fatalf("created = %d, want 4", res.Created)
	}

	select {
	case payload := <-sub:
		if payload["business_id"] != business.ID || payload["created"] != 4 {
			t.Fatalf("unexpected payload %v", payload)
		}
	default:
		t.Fatal("expected slots.generated event")
	}

	// Nothing new on the second run, so nothing is announced.
	if _, err := svc.Generate(context.Background(), business.ID, monday); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(sub) != 0 {
		t.Fatal("expected no event for an idempotent rerun")
	}
}

func TestServiceGenerateRangeUsesDefaultHorizon(t *testing.T) {
	database := newTestDB(t)
	business := newBusiness(t, database, "salon", weekHours())
	svc := NewService(NewGormStore(database), nil, 14, zerolog.Nop())

	res, err := svc.GenerateRange(context.Background(), business.ID, monday, 0)
	if err != nil {
		t.Fatalf("generate range: %v", err)
	}
	if res.Created != 14 {
		t.Fatalf("created = %d, want 14 over two weeks", res.Created)
	}

	slots, err := svc.Slots(context.Background(), business.ID, monday.AddDate(0, 0, 8))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("second tuesday has %d slots, want 3", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].StartTime.Before(slots[i].StartTime) {
			t.Fatal("slots not ordered by start time")
		}
	}
}
