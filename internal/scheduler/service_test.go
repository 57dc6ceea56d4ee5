/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/config"
	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/slots"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.Connect(&config.Config{DBBackend: config.DatabaseSQLite, DBDSN: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	return database
}

func createBusiness(t *testing.T, database *gorm.DB, name string) *models.Business {
	t.Helper()
	b := &models.Business{
		ID:       uuid.NewString(),
		Name:     name,
		Timezone: "UTC",
		Capacity: 1,
		OperatingHours: models.OperatingHours{
			models.Tuesday: {Open: "09:00", Close: "10:00"},
		},
	}
	if err := database.Create(b).Error; err != nil {
		t.Fatalf("create business: %v", err)
	}
	return b
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	results map[string]slots.Result
	errs    map[string]error
	panics  map[string]bool
}

func (f *fakeGenerator) GenerateNextDay(_ context.Context, businessID string, _ time.Time) (slots.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, businessID)
	f.mu.Unlock()

	if f.panics[businessID] {
		panic("corrupt hours")
	}
	if err := f.errs[businessID]; err != nil {
		return slots.Result{}, err
	}
	return f.results[businessID], nil
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	database := newTestDB(t)
	a := createBusiness(t, database, "a")
	b := createBusiness(t, database, "b")
	c := createBusiness(t, database, "c")
	d := createBusiness(t, database, "d")

	gen := &fakeGenerator{
		results: map[string]slots.Result{a.ID: {Created: 4}, d.ID: {Created: 2}},
		errs:    map[string]error{b.ID: errors.New("database is locked")},
		panics:  map[string]bool{c.ID: true},
	}
	bus := events.NewBus()
	done := bus.Subscribe(events.EventBatchCompleted)

	svc := New(database, gen, 0, zerolog.Nop())
	svc.SetBus(bus)

	report := svc.RunOnce(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	if len(gen.calls) != 4 {
		t.Fatalf("generator called %d times, want 4 (no business skipped, no retries)", len(gen.calls))
	}
	if report.Businesses != 4 || report.Created != 6 {
		t.Fatalf("unexpected report totals %+v", report)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("failures = %d, want 2: %+v", len(report.Failures), report.Failures)
	}

	byID := map[string]string{}
	for _, f := range report.Failures {
		byID[f.BusinessID] = f.Message
	}
	if byID[b.ID] != "database is locked" {
		t.Fatalf("failure for b = %q", byID[b.ID])
	}
	if !strings.Contains(byID[c.ID], "panic") {
		t.Fatalf("failure for c = %q, want panic detail", byID[c.ID])
	}

	select {
	case payload := <-done:
		if payload["failures"] != 2 {
			t.Fatalf("unexpected batch payload %v", payload)
		}
	default:
		t.Fatal("expected batch.completed event")
	}
}

func TestRunOnceGeneratesNextDay(t *testing.T) {
	database := newTestDB(t)
	biz := createBusiness(t, database, "salon")
	other := createBusiness(t, database, "closed tuesday")
	other.OperatingHours = models.OperatingHours{models.Monday: {Open: "09:00", Close: "10:00"}}
	if err := database.Save(other).Error; err != nil {
		t.Fatalf("update business: %v", err)
	}

	slotSvc := slots.NewService(slots.NewGormStore(database), nil, 7, zerolog.Nop())
	svc := New(database, slotSvc, 0, zerolog.Nop())

	// Monday evening; the batch targets Tuesday 2026-03-03.
	reference := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	report := svc.RunOnce(context.Background(), reference)
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}
	if report.Created != 4 {
		t.Fatalf("created = %d, want 4", report.Created)
	}

	var count int64
	database.Model(&models.Slot{}).Where("business_id = ? AND date = ?", biz.ID, "2026-03-03").Count(&count)
	if count != 4 {
		t.Fatalf("stored %d tuesday slots, want 4", count)
	}

	// A second run on the same day is a no-op.
	again := svc.RunOnce(context.Background(), reference)
	if again.Created != 0 || len(again.Failures) != 0 {
		t.Fatalf("rerun report %+v", again)
	}
}

func TestRunOnceWithNoBusinesses(t *testing.T) {
	svc := New(newTestDB(t), &fakeGenerator{}, 0, zerolog.Nop())
	report := svc.RunOnce(context.Background(), time.Now())
	if report.Businesses != 0 || len(report.Failures) != 0 || report.Failures == nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC),
			hour: 3,
			want: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "already passed",
			now:  time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC),
			hour: 3,
			want: time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the hour fires tomorrow",
			now:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			hour: 0,
			want: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non utc input",
			now:  time.Date(2026, 3, 2, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			hour: 0,
			want: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextRun(tt.now, tt.hour); !got.Equal(tt.want) {
				t.Fatalf("nextRun = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewClampsBatchHour(t *testing.T) {
	if svc := New(nil, &fakeGenerator{}, 42, zerolog.Nop()); svc.batchHour != 0 {
		t.Fatalf("batch hour = %d, want 0", svc.batchHour)
	}
	if svc := New(nil, &fakeGenerator{}, 6, zerolog.Nop()); svc.batchHour != 6 {
		t.Fatalf("batch hour = %d, want 6", svc.batchHour)
	}
}
