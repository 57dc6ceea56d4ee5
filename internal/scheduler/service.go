/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/cache"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/slots"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

const tracerName = "slotbook/scheduler"

// Generator creates slots for the day after a reference instant.
type Generator interface {
	GenerateNextDay(ctx context.Context, businessID string, reference time.Time) (slots.Result, error)
}

// Failure records one business that could not be generated.
type Failure struct {
	BusinessID string `json:"business_id"`
	Message    string `json:"message"`
}

// Report aggregates one batch run.
type Report struct {
	Reference  time.Time `json:"reference"`
	Businesses int       `json:"businesses"`
	Created    int       `json:"created_count"`
	Failures   []Failure `json:"failures"`
}

// Service drives daily slot generation for every business.
type Service struct {
	db        *gorm.DB
	generator Generator
	cache     *cache.Cache
	bus       events.Publisher
	batchHour int
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs the batch driver. batchHour is the UTC hour Run fires at.
func New(db *gorm.DB, generator Generator, batchHour int, logger zerolog.Logger) *Service {
	if batchHour < 0 || batchHour > 23 {
		batchHour = 0
	}
	return &Service{
		db:        db,
		generator: generator,
		batchHour: batchHour,
		logger:    logger.With().Str("component", "batch").Logger(),
		now:       time.Now,
	}
}

// SetCache sets the cache instance for the scheduler.
func (s *Service) SetCache(c *cache.Cache) {
	s.cache = c
}

// SetBus sets where batch completion is announced.
func (s *Service) SetBus(bus events.Publisher) {
	s.bus = bus
}

// Run fires RunOnce daily at the batch hour until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().Int("batch_hour", s.batchHour).Msg("batch loop started")
	for {
		wait := time.Until(nextRun(s.now(), s.batchHour))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("batch loop stopped")
			return ctx.Err()
		case <-timer.C:
			s.RunOnce(ctx, s.now())
		}
	}
}

// nextRun returns the first instant strictly after now at hour:00 UTC.
func nextRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce generates the day after reference for every business. A failing
// business is recorded in the report and the loop moves on; nothing is
// retried.
func (s *Service) RunOnce(ctx context.Context, reference time.Time) Report {
	start := time.Now()
	telemetry.BatchRunsTotal.Inc()
	defer func() { telemetry.BatchDuration.Observe(time.Since(start).Seconds()) }()

	report := Report{Reference: reference, Failures: []Failure{}}

	businessIDs, err := s.getBusinessIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("batch failed to load businesses")
		report.Failures = append(report.Failures, Failure{Message: err.Error()})
		telemetry.BatchFailuresTotal.Inc()
		return report
	}
	report.Businesses = len(businessIDs)

	for _, businessID := range businessIDs {
		if ctx.Err() != nil {
			report.Failures = append(report.Failures, Failure{BusinessID: businessID, Message: ctx.Err().Error()})
			continue
		}

		res, err := s.generateOne(ctx, businessID, reference)
		if err != nil {
			s.logger.Warn().Err(err).Str("business_id", businessID).Msg("business slot generation failed")
			telemetry.BatchFailuresTotal.Inc()
			report.Failures = append(report.Failures, Failure{BusinessID: businessID, Message: err.Error()})
			continue
		}
		report.Created += res.Created
	}

	s.logger.Info().
		Time("reference", reference).
		Int("businesses", report.Businesses).
		Int("created", report.Created).
		Int("failures", len(report.Failures)).
		Msg("batch run complete")

	if s.bus != nil {
		s.bus.Publish(events.EventBatchCompleted, events.Payload{
			"reference":  reference.Format(time.RFC3339),
			"businesses": report.Businesses,
			"created":    report.Created,
			"failures":   len(report.Failures),
		})
	}
	return report
}

// generateOne isolates one business, converting a panic into an error.
func (s *Service) generateOne(ctx context.Context, businessID string, reference time.Time) (res slots.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "batch.generate_business")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"business_id": businessID})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		telemetry.RecordError(span, err)
	}()

	return s.generator.GenerateNextDay(ctx, businessID, reference)
}

// getBusinessIDs retrieves business IDs, using cache when available.
func (s *Service) getBusinessIDs(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		if ids, ok := s.cache.GetBusinessList(ctx); ok {
			return ids, nil
		}
	}

	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Business{}).Order("name ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetBusinessList(ctx, ids); err != nil {
			s.logger.Debug().Err(err).Msg("failed to cache business list")
		}
	}
	return ids, nil
}
