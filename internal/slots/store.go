/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/models"
)

// ErrDuplicateSlot reports a store-level rejection of a (business, start) pair.
var ErrDuplicateSlot = errors.New("duplicate slot start time")

// Store persists slot rows. Implementations must reject a second row with the
// same business and start time with ErrDuplicateSlot.
type Store interface {
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)
	ExistingStartTimes(ctx context.Context, businessID, date string) (map[int64]struct{}, error)
	InsertSlots(ctx context.Context, slots []models.Slot) error
	ListForDate(ctx context.Context, businessID, date string) ([]models.Slot, error)
}

// GormStore is the database-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle.
func NewGormStore(database *gorm.DB) *GormStore {
	return &GormStore{db: database}
}

// GetBusiness loads a business by id.
func (s *GormStore) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	var business models.Business
	if err := s.db.WithContext(ctx).First(&business, "id = ?", businessID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("load business: %w", err)
	}
	return &business, nil
}

// ExistingStartTimes returns the start times already stored for the business
// on date, keyed by unix seconds.
func (s *GormStore) ExistingStartTimes(ctx context.Context, businessID, date string) (map[int64]struct{}, error) {
	var starts []time.Time
	err := s.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("business_id = ? AND date = ?", businessID, date).
		Pluck("start_time", &starts).Error
	if err != nil {
		return nil, fmt.Errorf("load existing start times: %w", err)
	}

	existing := make(map[int64]struct{}, len(starts))
	for _, start := range starts {
		existing[start.Unix()] = struct{}{}
	}
	return existing, nil
}

// InsertSlots writes all rows in one transaction.
func (s *GormStore) InsertSlots(ctx context.Context, slots []models.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(slots, 100).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateSlot, err)
		}
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

// ListForDate returns the business's slots on date ordered by start time.
func (s *GormStore) ListForDate(ctx context.Context, businessID, date string) ([]models.Slot, error) {
	var slots []models.Slot
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND date = ?", businessID, date).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}
