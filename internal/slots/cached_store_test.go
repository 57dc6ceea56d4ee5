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

	"github.com/friendsincode/slotbook/internal/models"
)

type memoryBusinessCache struct {
	entries map[string]models.Business
	hits    int
	sets    int
}

func newMemoryBusinessCache() *memoryBusinessCache {
	return &memoryBusinessCache{entries: make(map[string]models.Business)}
}

func (c *memoryBusinessCache) GetBusiness(_ context.Context, businessID string) (*models.Business, bool) {
	business, ok := c.entries[businessID]
	if !ok {
		return nil, false
	}
	c.hits++
	return &business, true
}

func (c *memoryBusinessCache) SetBusiness(_ context.Context, business *models.Business) error {
	c.sets++
	c.entries[business.ID] = *business
	return nil
}

func TestCachedStoreReadsThrough(t *testing.T) {
	database := newTestDB(t)
	business := newBusiness(t, database, "salon", weekHours())
	mem := newMemoryBusinessCache()
	store := NewCachedStore(NewGormStore(database), mem)
	ctx := context.Background()

	first, err := store.GetBusiness(ctx, business.ID)
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if mem.sets != 1 || mem.hits != 0 {
		t.Fatalf("after miss: sets=%d hits=%d, want 1/0", mem.sets, mem.hits)
	}

	// A cached record is served even after the row changes underneath it.
	if err := database.Model(&models.Business{}).Where("id = ?", business.ID).Update("capacity", 9).Error; err != nil {
		t.Fatalf("update business: %v", err)
	}
	second, err := store.GetBusiness(ctx, business.ID)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if mem.hits != 1 || second.Capacity != first.Capacity {
		t.Fatalf("expected cache hit with capacity %d, got hits=%d capacity=%d", first.Capacity, mem.hits, second.Capacity)
	}

	if _, err := store.GetBusiness(ctx, uuid.NewString()); !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("expected ErrBusinessNotFound, got %v", err)
	}
	if mem.sets != 1 {
		t.Fatalf("unknown business was cached: sets=%d", mem.sets)
	}
}

func TestServiceGeneratesThroughCachedStore(t *testing.T) {
	database := newTestDB(t)
	business := newBusiness(t, database, "salon", weekHours())
	mem := newMemoryBusinessCache()
	svc := NewService(NewCachedStore(NewGormStore(database), mem), nil, 7, zerolog.Nop())
	ctx := context.Background()

	res, err := svc.Generate(ctx, business.ID, monday)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Created != 4 {
		t.Fatalf("created = %d, want 4", res.Created)
	}
	if _, err := svc.Slots(ctx, business.ID, monday); err != nil {
		t.Fatalf("slots: %v", err)
	}
	if mem.sets != 1 || mem.hits != 1 {
		t.Fatalf("sets=%d hits=%d, want one load then one hit", mem.sets, mem.hits)
	}
}
