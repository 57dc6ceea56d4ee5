/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/config"
	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
)

const sample = `
businesses:
  - name: Corner Barber
    timezone: Europe/Berlin
    capacity: 2
    hours:
      mon: {open: "09:00", close: "17:00", breaks: [{start: "12:00", end: "12:30"}]}
      tuesday: {open: "09:00", close: "12:00"}
      sun: {closed: true}
    services:
      - name: Cut
        duration_minutes: 30
      - name: Beard trim
        duration_minutes: 15
        active: false
  - name: Quiet Clinic
    capacity: 1
    hours:
      friday: {open: "08:00", close: "08:45"}
`

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

func TestLoadSample(t *testing.T) {
	cat, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Businesses) != 2 {
		t.Fatalf("businesses = %d, want 2", len(cat.Businesses))
	}
	b, err := cat.Businesses[0].toBusiness()
	if err != nil {
		t.Fatalf("to business: %v", err)
	}
	if _, ok := b.OperatingHours[models.Monday]; !ok {
		t.Fatal("expected mon to normalise to monday")
	}
	if !b.OperatingHours[models.Sunday].Closed {
		t.Fatal("expected sunday closed")
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: "businesses:\n  - name: A\n    capacity: 1\n    colour: red\n"},
		{name: "unknown weekday", doc: "businesses:\n  - name: A\n    capacity: 1\n    hours:\n      funday: {open: \"09:00\", close: \"10:00\"}\n"},
		{name: "close before open", doc: "businesses:\n  - name: A\n    capacity: 1\n    hours:\n      monday: {open: \"10:00\", close: \"09:00\"}\n"},
		{name: "bad clock", doc: "businesses:\n  - name: A\n    capacity: 1\n    hours:\n      monday: {open: \"9am\", close: \"10:00\"}\n"},
		{name: "break outside hours", doc: "businesses:\n  - name: A\n    capacity: 1\n    hours:\n      monday: {open: \"09:00\", close: \"10:00\", breaks: [{start: \"11:00\", end: \"11:30\"}]}\n"},
		{name: "day listed twice", doc: "businesses:\n  - name: A\n    capacity: 1\n    hours:\n      mon: {closed: true}\n      monday: {closed: true}\n"},
		{name: "negative capacity", doc: "businesses:\n  - name: A\n    capacity: -1\n"},
		{name: "bad timezone", doc: "businesses:\n  - name: A\n    capacity: 1\n    timezone: Nowhere/City\n"},
		{name: "duplicate business", doc: "businesses:\n  - name: A\n    capacity: 1\n  - name: a\n    capacity: 1\n"},
		{name: "missing name", doc: "businesses:\n  - capacity: 1\n"},
		{name: "zero duration service", doc: "businesses:\n  - name: A\n    capacity: 1\n    services:\n      - name: X\n        duration_minutes: 0\n"},
		{name: "duplicate service", doc: "businesses:\n  - name: A\n    capacity: 1\n    services:\n      - {name: X, duration_minutes: 15}\n      - {name: x, duration_minutes: 30}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.doc)); err == nil {
				t.Fatal("expected catalog to be rejected")
			}
		})
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	cat, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Businesses) != 0 {
		t.Fatalf("businesses = %d", len(cat.Businesses))
	}
}

func TestApplyUpsertsByName(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	bus := events.NewBus()
	updates := bus.Subscribe(events.EventBusinessUpdated)

	cat, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	first, err := Apply(ctx, database, cat, bus)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if first.BusinessesCreated != 2 || first.BusinessesUpdated != 0 || first.Services != 2 {
		t.Fatalf("first summary %+v", first)
	}
	if len(updates) != 2 {
		t.Fatalf("events = %d, want 2", len(updates))
	}

	cat.Businesses[0].Capacity = 5
	cat.Businesses[0].Services = cat.Businesses[0].Services[1:]
	second, err := Apply(ctx, database, cat, nil)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.BusinessesCreated != 0 || second.BusinessesUpdated != 2 {
		t.Fatalf("second summary %+v", second)
	}
	if second.BusinessIDs[0] != first.BusinessIDs[0] {
		t.Fatal("expected business id to be preserved across upserts")
	}

	var barber models.Business
	if err := database.First(&barber, "id = ?", first.BusinessIDs[0]).Error; err != nil {
		t.Fatalf("load barber: %v", err)
	}
	if barber.Capacity != 5 || barber.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected barber %+v", barber)
	}
	if hours, ok := barber.OperatingHours[models.Monday]; !ok || hours.Open != "09:00" || len(hours.Breaks) != 1 {
		t.Fatalf("operating hours not persisted: %+v", barber.OperatingHours)
	}

	var services []models.Service
	database.Where("business_id = ?", barber.ID).Order("name").Find(&services)
	if len(services) != 2 {
		t.Fatalf("services = %d, want 2 (apply never deletes)", len(services))
	}
	for _, svc := range services {
		if svc.Name == "Beard trim" && (svc.Position != 0 || svc.Active) {
			t.Fatalf("beard trim not renumbered or lost active=false: %+v", svc)
		}
	}

	var clinic models.Business
	database.First(&clinic, "name = ?", "Quiet Clinic")
	if clinic.Timezone != "UTC" {
		t.Fatalf("clinic timezone = %q, want UTC default", clinic.Timezone)
	}
}

func TestApplyDefaultTimezone(t *testing.T) {
	cat, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cat.ApplyDefaultTimezone("America/Chicago")

	if got := cat.Businesses[0].Timezone; got != "Europe/Berlin" {
		t.Fatalf("explicit timezone overwritten: %q", got)
	}
	if got := cat.Businesses[1].Timezone; got != "America/Chicago" {
		t.Fatalf("default timezone = %q, want America/Chicago", got)
	}
}
