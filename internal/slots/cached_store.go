/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"context"

	"github.com/friendsincode/slotbook/internal/models"
)

// BusinessCache holds business records between lookups.
type BusinessCache interface {
	GetBusiness(ctx context.Context, businessID string) (*models.Business, bool)
	SetBusiness(ctx context.Context, business *models.Business) error
}

// CachedStore reads businesses through cache and delegates everything else.
// Entries are dropped by the business-updated invalidation listener.
type CachedStore struct {
	Store
	cache BusinessCache
}

// NewCachedStore wraps store with a read-through business cache.
func NewCachedStore(store Store, cache BusinessCache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

// GetBusiness returns the cached record or loads and caches it. Unknown ids
// are not cached.
func (s *CachedStore) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	if business, ok := s.cache.GetBusiness(ctx, businessID); ok {
		return business, nil
	}
	business, err := s.Store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetBusiness(ctx, business)
	return business, nil
}
