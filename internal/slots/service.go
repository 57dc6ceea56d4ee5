/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

const tracerName = "slotbook/slots"

// Service exposes generation by business id.
type Service struct {
	store     Store
	generator *Generator
	bus       events.Publisher
	daysAhead int
	logger    zerolog.Logger
}

// NewService constructs the slot service. daysAhead is the range used when a
// caller passes a non-positive horizon.
func NewService(store Store, bus events.Publisher, daysAhead int, logger zerolog.Logger) *Service {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	return &Service{
		store:     store,
		generator: NewGenerator(store, logger),
		bus:       bus,
		daysAhead: daysAhead,
		logger:    logger.With().Str("component", "slots").Logger(),
	}
}

// Generate creates missing slots for one business and date.
func (s *Service) Generate(ctx context.Context, businessID string, date time.Time) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "slots.generate")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"business_id": businessID,
		"date":        date.Format(models.DateLayout),
	})

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, err
	}

	res, err := s.generator.GenerateForDate(ctx, business, date)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.GenerationErrorsTotal.WithLabelValues(businessID, "generate").Inc()
		return res, err
	}
	s.record(businessID, date, 1, res)
	return res, nil
}

// GenerateNextDay generates the calendar day after reference as seen in the
// business's time zone.
func (s *Service) GenerateNextDay(ctx context.Context, businessID string, reference time.Time) (Result, error) {
	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return Result{}, err
	}
	next := reference.In(business.Location()).AddDate(0, 0, 1)
	return s.Generate(ctx, businessID, next)
}

// GenerateRange creates missing slots for daysAhead dates starting at start.
func (s *Service) GenerateRange(ctx context.Context, businessID string, start time.Time, daysAhead int) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "slots.generate_range")
	defer span.End()

	if daysAhead <= 0 {
		daysAhead = s.daysAhead
	}
	telemetry.AddSpanAttributes(span, map[string]any{
		"business_id": businessID,
		"start_date":  start.Format(models.DateLayout),
		"days_ahead":  daysAhead,
	})

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, err
	}

	res, err := s.generator.GenerateForRange(ctx, business, start, daysAhead)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.GenerationErrorsTotal.WithLabelValues(businessID, "generate_range").Inc()
		s.record(businessID, start, daysAhead, res)
		return res, err
	}
	s.record(businessID, start, daysAhead, res)
	return res, nil
}

// Slots lists stored slots for a business on a calendar date.
func (s *Service) Slots(ctx context.Context, businessID string, date time.Time) ([]models.Slot, error) {
	if _, err := s.store.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	return s.store.ListForDate(ctx, businessID, date.Format(models.DateLayout))
}

func (s *Service) record(businessID string, date time.Time, days int, res Result) {
	if res.Created == 0 {
		return
	}
	telemetry.SlotsGeneratedTotal.WithLabelValues(businessID).Add(float64(res.Created))
	s.logger.Info().
		Str("business_id", businessID).
		Str("date", date.Format(models.DateLayout)).
		Int("days", days).
		Int("created", res.Created).
		Msg("slots generated")
	if s.bus != nil {
		s.bus.Publish(events.EventSlotsGenerated, events.Payload{
			"business_id": businessID,
			"date":        date.Format(models.DateLayout),
			"days":        days,
			"created":     res.Created,
		})
	}
}
