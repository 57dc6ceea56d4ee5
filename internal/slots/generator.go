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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

var (
	// ErrIntegrity is returned when the store rejects generated rows that a
	// re-read cannot account for.
	ErrIntegrity = errors.New("slot integrity violation")

	// ErrBusinessNotFound is returned for unknown business ids.
	ErrBusinessNotFound = errors.New("business not found")
)

// Result summarises one generation call.
type Result struct {
	Created int    `json:"created_count"`
	Message string `json:"message"`
}

// Generator turns operating hours into stored slot rows.
type Generator struct {
	store  Store
	logger zerolog.Logger
}

// NewGenerator constructs a generator over store.
func NewGenerator(store Store, logger zerolog.Logger) *Generator {
	return &Generator{
		store:  store,
		logger: logger.With().Str("component", "slot_generator").Logger(),
	}
}

// Candidates builds the slots the business's hours allow on date. Only the
// calendar fields of date are used; they are read in the business time zone.
// A nil slice with a nil error means the business is closed that day; an
// open day too short for one slot yields an empty, non-nil slice.
func Candidates(business *models.Business, date time.Time) ([]models.Slot, error) {
	loc := business.Location()
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	hours, ok := business.HoursFor(day.Weekday())
	if !ok || !hours.IsOpen() {
		return nil, nil
	}

	open, closing, err := hours.Bounds(day, loc)
	if err != nil {
		return nil, fmt.Errorf("resolve hours for %s: %w", models.FormatDate(day), err)
	}

	dateKey := models.FormatDate(day)
	out := []models.Slot{}
	for start := open; !start.Add(models.SlotDuration).After(closing); start = start.Add(models.SlotDuration) {
		out = append(out, models.Slot{
			BusinessID:       business.ID,
			StartTime:        start.UTC(),
			EndTime:          start.Add(models.SlotDuration).UTC(),
			Date:             dateKey,
			Capacity:         business.Capacity,
			OriginalCapacity: business.Capacity,
		})
	}
	return out, nil
}

// GenerateForDate creates the missing slots for business on date. Repeated
// calls are idempotent.
func (g *Generator) GenerateForDate(ctx context.Context, business *models.Business, date time.Time) (Result, error) {
	candidates, err := Candidates(business, date)
	if err != nil {
		return Result{}, err
	}

	y, m, d := date.Date()
	dateKey := models.FormatDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	if candidates == nil {
		return Result{Message: fmt.Sprintf("business is closed on %s", dateKey)}, nil
	}
	if len(candidates) == 0 {
		return Result{Message: fmt.Sprintf("0 slots created for %s", dateKey)}, nil
	}

	existing, err := g.store.ExistingStartTimes(ctx, business.ID, dateKey)
	if err != nil {
		return Result{}, err
	}
	pending := withoutExisting(candidates, existing)
	if len(pending) == 0 {
		return Result{Message: fmt.Sprintf("0 slots created for %s", dateKey)}, nil
	}

	for i := range pending {
		pending[i].ID = uuid.NewString()
	}

	if err := g.store.InsertSlots(ctx, pending); err != nil {
		if !errors.Is(err, ErrDuplicateSlot) {
			return Result{}, err
		}
		return g.resolveDuplicate(ctx, business.ID, dateKey, pending, err)
	}

	g.logger.Debug().
		Str("business_id", business.ID).
		Str("date", dateKey).
		Int("created", len(pending)).
		Msg("slots generated")

	return Result{
		Created: len(pending),
		Message: fmt.Sprintf("%d slots created for %s", len(pending), dateKey),
	}, nil
}

// resolveDuplicate decides whether a rejected insert lost a race to a
// concurrent generator for the same day. The insert ran in one transaction,
// so either another writer stored every pending start or the rejection is
// a real integrity failure.
func (g *Generator) resolveDuplicate(ctx context.Context, businessID, dateKey string, pending []models.Slot, insertErr error) (Result, error) {
	existing, err := g.store.ExistingStartTimes(ctx, businessID, dateKey)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v (re-read failed: %v)", ErrIntegrity, insertErr, err)
	}
	if missing := withoutExisting(pending, existing); len(missing) > 0 {
		telemetry.GenerationErrorsTotal.WithLabelValues(businessID, "integrity").Inc()
		return Result{}, fmt.Errorf("%w: %d of %d slots on %s not stored: %v",
			ErrIntegrity, len(missing), len(pending), dateKey, insertErr)
	}

	telemetry.GenerationDuplicatesTotal.Inc()
	g.logger.Info().
		Str("business_id", businessID).
		Str("date", dateKey).
		Msg("slots already generated by a concurrent run")
	return Result{Message: fmt.Sprintf("slots already generated for %s", dateKey)}, nil
}

// GenerateForRange runs GenerateForDate for daysAhead consecutive dates from
// start. The first failing date stops the loop; the partial result is
// returned alongside the error.
func (g *Generator) GenerateForRange(ctx context.Context, business *models.Business, start time.Time, daysAhead int) (Result, error) {
	total := 0
	for i := 0; i < daysAhead; i++ {
		res, err := g.GenerateForDate(ctx, business, start.AddDate(0, 0, i))
		if err != nil {
			return Result{Created: total}, err
		}
		total += res.Created
	}
	return Result{
		Created: total,
		Message: fmt.Sprintf("%d slots created for next %d days", total, daysAhead),
	}, nil
}

func withoutExisting(slots []models.Slot, existing map[int64]struct{}) []models.Slot {
	out := make([]models.Slot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := existing[slot.StartTime.Unix()]; ok {
			continue
		}
		out = append(out, slot)
	}
	return out
}
