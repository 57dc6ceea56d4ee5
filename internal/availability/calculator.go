/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package availability finds start times that can host a requested duration.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/slots"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

const tracerName = "slotbook/availability"

var (
	// ErrUnknownService is returned by RequireServiceDuration when a requested
	// service does not belong to the business.
	ErrUnknownService = errors.New("unknown service")

	// ErrNegativeDuration is returned for durations below zero.
	ErrNegativeDuration = errors.New("duration must not be negative")
)

// SlotsNeeded is ceil(minutes / 15).
func SlotsNeeded(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	step := int(models.SlotDuration / time.Minute)
	return (minutes + step - 1) / step
}

// Query asks for start times on one date. ServiceIDs, when set, replace
// DurationMinutes with the sum of the services' durations.
type Query struct {
	BusinessID      string
	Date            time.Time
	DurationMinutes int
	ServiceIDs      []string
}

// Result is the answer to a Query.
type Result struct {
	DurationMinutes int         `json:"duration_minutes"`
	SlotsNeeded     int         `json:"slots_needed"`
	StartTimes      []time.Time `json:"start_times"`
}

// SlotLister reads a business's slots for one date ordered by start time.
type SlotLister interface {
	ListForDate(ctx context.Context, businessID, date string) ([]models.Slot, error)
}

// Calculator reads stored slots. It never writes.
type Calculator struct {
	db     *gorm.DB
	slots  SlotLister
	logger zerolog.Logger
}

// NewCalculator constructs a calculator reading slots through the slot store.
func NewCalculator(db *gorm.DB, logger zerolog.Logger) *Calculator {
	return &Calculator{
		db:     db,
		slots:  slots.NewGormStore(db),
		logger: logger.With().Str("component", "availability").Logger(),
	}
}

// Availability resolves the query's duration and returns qualifying start
// times in ascending order.
func (c *Calculator) Availability(ctx context.Context, q Query) (Result, error) {
	duration := q.DurationMinutes
	if len(q.ServiceIDs) > 0 {
		total, err := c.ServiceDuration(ctx, q.BusinessID, q.ServiceIDs)
		if err != nil {
			telemetry.AvailabilityQueriesTotal.WithLabelValues("error").Inc()
			return Result{}, err
		}
		duration = total
	}
	starts, err := c.FindAvailableStartTimes(ctx, q.BusinessID, q.Date, duration)
	if err != nil {
		return Result{}, err
	}
	return Result{
		DurationMinutes: duration,
		SlotsNeeded:     SlotsNeeded(duration),
		StartTimes:      starts,
	}, nil
}

// ServiceDuration sums the durations of the requested services that belong to
// the business. Unknown ids contribute nothing and each id counts once.
func (c *Calculator) ServiceDuration(ctx context.Context, businessID string, serviceIDs []string) (int, error) {
	durations, err := c.serviceDurations(ctx, businessID, serviceIDs)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, minutes := range durations {
		total += minutes
	}
	return total, nil
}

// RequireServiceDuration is ServiceDuration for writes: every requested id
// must name one of the business's services.
func (c *Calculator) RequireServiceDuration(ctx context.Context, businessID string, serviceIDs []string) (int, error) {
	durations, err := c.serviceDurations(ctx, businessID, serviceIDs)
	if err != nil {
		return 0, err
	}
	for _, id := range serviceIDs {
		if _, ok := durations[id]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownService, id)
		}
	}
	total := 0
	for _, minutes := range durations {
		total += minutes
	}
	return total, nil
}

func (c *Calculator) serviceDurations(ctx context.Context, businessID string, serviceIDs []string) (map[string]int, error) {
	var services []models.Service
	err := c.db.WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessID, serviceIDs).
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}

	byID := make(map[string]int, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc.DurationMinutes
	}
	return byID, nil
}

// FindAvailableStartTimes returns the start of every run of consecutive,
// unexhausted slots on date long enough for durationMinutes.
func (c *Calculator) FindAvailableStartTimes(ctx context.Context, businessID string, date time.Time, durationMinutes int) ([]time.Time, error) {
	if durationMinutes < 0 {
		return nil, ErrNegativeDuration
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "availability.find")
	defer span.End()

	dateKey := date.Format(models.DateLayout)
	needed := SlotsNeeded(durationMinutes)
	telemetry.AddSpanAttributes(span, map[string]any{
		"business_id":  businessID,
		"date":         dateKey,
		"slots_needed": needed,
	})

	stored, err := c.slots.ListForDate(ctx, businessID, dateKey)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.AvailabilityQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	starts := FindWindows(stored, needed)
	outcome := "available"
	if len(starts) == 0 {
		outcome = "empty"
	}
	telemetry.AvailabilityQueriesTotal.WithLabelValues(outcome).Inc()

	c.logger.Debug().
		Str("business_id", businessID).
		Str("date", dateKey).
		Int("slots_needed", needed).
		Int("starts", len(starts)).
		Msg("availability computed")

	return starts, nil
}

// FindWindows slides a window of needed rows over rows, which must be sorted
// by start time, and returns the first start of every window whose slots all
// have capacity and touch end to start. needed <= 0 yields nothing.
func FindWindows(rows []models.Slot, needed int) []time.Time {
	starts := []time.Time{}
	if needed <= 0 || len(rows) < needed {
		return starts
	}

	for i := 0; i+needed <= len(rows); i++ {
		if windowQualifies(rows[i : i+needed]) {
			starts = append(starts, rows[i].StartTime)
		}
	}
	return starts
}

func windowQualifies(window []models.Slot) bool {
	for j, slot := range window {
		if !slot.Available() {
			return false
		}
		if j > 0 && !window[j-1].Touches(slot) {
			return false
		}
	}
	return true
}
