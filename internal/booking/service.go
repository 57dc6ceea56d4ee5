/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/availability"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

var (
	// ErrSlotUnavailable means the window changed since it was offered.
	// Callers should re-query availability.
	ErrSlotUnavailable = errors.New("slot unavailable")

	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrInvalidDuration  = errors.New("booking duration must be positive")
)

// Request asks for a run of slots starting at StartTime. ServiceIDs, when
// set, take precedence over DurationMinutes.
type Request struct {
	BusinessID      string
	StartTime       time.Time
	DurationMinutes int
	ServiceIDs      []string
	CustomerRef     string
}

// Service reserves and releases slot capacity.
type Service struct {
	db     *gorm.DB
	calc   *availability.Calculator
	bus    events.Publisher
	logger zerolog.Logger
}

// NewService constructs the booking service.
func NewService(db *gorm.DB, calc *availability.Calculator, bus events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		calc:   calc,
		bus:    bus,
		logger: logger.With().Str("component", "booking").Logger(),
	}
}

// Reserve takes one unit of capacity from every slot of the window in a
// single transaction. Either every slot is decremented and linked or none is.
func (s *Service) Reserve(ctx context.Context, req Request) (*models.Booking, error) {
	duration := req.DurationMinutes
	if len(req.ServiceIDs) > 0 {
		total, err := s.calc.RequireServiceDuration(ctx, req.BusinessID, req.ServiceIDs)
		if err != nil {
			return nil, err
		}
		duration = total
	}
	needed := availability.SlotsNeeded(duration)
	if needed == 0 {
		return nil, ErrInvalidDuration
	}

	start := req.StartTime.UTC()
	booking := &models.Booking{
		ID:            uuid.NewString(),
		BusinessID:    req.BusinessID,
		StartTime:     start,
		SlotsConsumed: needed,
		Status:        models.BookingConfirmed,
		CustomerRef:   req.CustomerRef,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var window []models.Slot
		err := tx.Where("business_id = ? AND start_time >= ?", req.BusinessID, start).
			Order("start_time ASC").
			Limit(needed).
			Find(&window).Error
		if err != nil {
			return fmt.Errorf("load window: %w", err)
		}
		if len(window) != needed || !window[0].StartTime.Equal(start) {
			return ErrSlotUnavailable
		}
		if len(availability.FindWindows(window, needed)) != 1 {
			return ErrSlotUnavailable
		}

		for _, slot := range window {
			res := tx.Model(&models.Slot{}).
				Where("id = ? AND capacity > 0", slot.ID).
				Update("capacity", gorm.Expr("capacity - 1"))
			if res.Error != nil {
				return fmt.Errorf("decrement capacity: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return ErrSlotUnavailable
			}
		}

		booking.EndTime = window[len(window)-1].EndTime
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		links := make([]models.BookingSlot, len(window))
		for i, slot := range window {
			links[i] = models.BookingSlot{ID: uuid.NewString(), BookingID: booking.ID, SlotID: slot.ID}
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("link slots: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			telemetry.BookingsTotal.WithLabelValues("conflict").Inc()
			s.logger.Info().
				Str("business_id", req.BusinessID).
				Time("start", start).
				Int("slots_needed", needed).
				Msg("booking window no longer available")
		} else {
			telemetry.BookingsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	telemetry.BookingsTotal.WithLabelValues("created").Inc()
	s.publish(events.EventBookingCreated, booking)
	return booking, nil
}

// Cancel returns the booking's capacity to its slots and marks it cancelled.
func (s *Service) Cancel(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("load booking: %w", err)
		}
		if booking.Status == models.BookingCancelled {
			return ErrAlreadyCancelled
		}

		var slotIDs []string
		if err := tx.Model(&models.BookingSlot{}).Where("booking_id = ?", booking.ID).Pluck("slot_id", &slotIDs).Error; err != nil {
			return fmt.Errorf("load links: %w", err)
		}
		if len(slotIDs) > 0 {
			err := tx.Model(&models.Slot{}).
				Where("id IN ? AND capacity < original_capacity", slotIDs).
				Update("capacity", gorm.Expr("capacity + 1")).Error
			if err != nil {
				return fmt.Errorf("restore capacity: %w", err)
			}
			if err := tx.Where("booking_id = ?", booking.ID).Delete(&models.BookingSlot{}).Error; err != nil {
				return fmt.Errorf("delete links: %w", err)
			}
		}

		now := time.Now().UTC()
		booking.Status = models.BookingCancelled
		booking.CancelledAt = &now
		return tx.Model(&booking).Updates(map[string]any{
			"status":       booking.Status,
			"cancelled_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	telemetry.BookingsTotal.WithLabelValues("cancelled").Inc()
	s.publish(events.EventBookingCancelled, &booking)
	return &booking, nil
}

// Get loads a booking by id.
func (s *Service) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (s *Service) publish(eventType events.EventType, b *models.Booking) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, events.Payload{
		"booking_id":  b.ID,
		"business_id": b.BusinessID,
		"start_time":  b.StartTime.Format(time.RFC3339),
		"slots":       b.SlotsConsumed,
	})
}
