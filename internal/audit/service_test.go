/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/config"
	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
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

func TestLogAuditEntryExtractsFields(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, events.NewBus(), zerolog.Nop())

	svc.logAuditEntry(context.Background(), models.AuditActionBookingCreate, events.Payload{
		"business_id": "biz-1",
		"booking_id":  "bk-1",
		"user_id":     "user-9",
		"slots":       3,
	})

	var entry models.AuditLog
	if err := database.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.BusinessID == nil || *entry.BusinessID != "biz-1" {
		t.Fatalf("business_id = %v", entry.BusinessID)
	}
	if entry.ActorID == nil || *entry.ActorID != "user-9" {
		t.Fatalf("actor_id = %v", entry.ActorID)
	}
	if entry.ResourceType != "booking" || entry.ResourceID != "bk-1" {
		t.Fatalf("resource = %s/%s", entry.ResourceType, entry.ResourceID)
	}
	if _, ok := entry.Details["business_id"]; ok {
		t.Fatalf("extracted field leaked into details: %v", entry.Details)
	}
	if got, ok := entry.Details["slots"].(float64); !ok || got != 3 {
		t.Fatalf("details[slots] = %v", entry.Details["slots"])
	}
}

func TestQueryFilters(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	biz := "biz-1"
	other := "biz-2"
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seed := []models.AuditLog{
		{Action: models.AuditActionSlotsGenerated, BusinessID: &biz, Timestamp: base},
		{Action: models.AuditActionBookingCreate, BusinessID: &biz, Timestamp: base.Add(time.Minute)},
		{Action: models.AuditActionBookingCreate, BusinessID: &other, Timestamp: base.Add(2 * time.Minute)},
		{Action: models.AuditActionBatchCompleted, Timestamp: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		if err := svc.Log(ctx, &seed[i]); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	create := models.AuditActionBookingCreate
	after := base.Add(90 * time.Second)
	tests := []struct {
		name    string
		filters QueryFilters
		total   int64
		first   models.AuditAction
	}{
		{"all newest first", QueryFilters{}, 4, models.AuditActionBatchCompleted},
		{"by business", QueryFilters{BusinessID: &biz}, 2, models.AuditActionBookingCreate},
		{"by action", QueryFilters{Action: &create}, 2, models.AuditActionBookingCreate},
		{"since", QueryFilters{StartTime: &after}, 2, models.AuditActionBatchCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, total, err := svc.Query(ctx, tt.filters)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if total != tt.total || int64(len(logs)) != tt.total {
				t.Fatalf("total = %d, rows = %d, want %d", total, len(logs), tt.total)
			}
			if logs[0].Action != tt.first {
				t.Fatalf("first action = %s, want %s", logs[0].Action, tt.first)
			}
		})
	}

	logs, total, err := svc.Query(ctx, QueryFilters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged query: %v", err)
	}
	if total != 4 || len(logs) != 1 || logs[0].Action != models.AuditActionBookingCreate {
		t.Fatalf("paged = %d rows of %d: %+v", len(logs), total, logs)
	}
}

func TestRunRecordsBusEvents(t *testing.T) {
	database := newTestDB(t)
	bus := events.NewBus()
	svc := NewService(database, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	subs := svc.subscribe()
	go func() {
		defer close(stopped)
		svc.run(ctx, subs)
	}()

	bus.Publish(events.EventBookingCancelled, events.Payload{"business_id": "biz-1", "booking_id": "bk-1"})

	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		database.Model(&models.AuditLog{}).Where("action = ?", models.AuditActionBookingCancel).Count(&count)
		if count > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-stopped

	if count != 1 {
		t.Fatalf("cancel entries = %d, want 1", count)
	}
}
