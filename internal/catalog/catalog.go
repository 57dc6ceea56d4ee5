/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog loads businesses and their services from a YAML file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
)

// Catalog is the root of a seed file.
type Catalog struct {
	Businesses []BusinessSpec `yaml:"businesses"`
}

// BusinessSpec describes one business. Hours keys are weekday names, full or
// three-letter.
type BusinessSpec struct {
	Name     string                     `yaml:"name"`
	Timezone string                     `yaml:"timezone"`
	Capacity int                        `yaml:"capacity"`
	Hours    map[string]models.DayHours `yaml:"hours"`
	Services []ServiceSpec              `yaml:"services"`
}

// ServiceSpec describes one bookable service. Active defaults to true.
type ServiceSpec struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Active          *bool  `yaml:"active"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return &cat, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks every business the way a configuration write would.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Businesses))
	for i, spec := range c.Businesses {
		name := strings.TrimSpace(spec.Name)
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("business %d: duplicate name %q", i, name)
		}
		seen[key] = struct{}{}

		business, err := spec.toBusiness()
		if err != nil {
			return fmt.Errorf("business %q: %w", name, err)
		}
		if err := business.Validate(); err != nil {
			return fmt.Errorf("business %q: %w", name, err)
		}

		services := make(map[string]struct{}, len(spec.Services))
		for _, svc := range spec.Services {
			svcName := strings.TrimSpace(svc.Name)
			if svcName == "" {
				return fmt.Errorf("business %q: service name is required", name)
			}
			if svc.DurationMinutes <= 0 {
				return fmt.Errorf("business %q: service %q duration must be positive", name, svcName)
			}
			if _, dup := services[strings.ToLower(svcName)]; dup {
				return fmt.Errorf("business %q: duplicate service %q", name, svcName)
			}
			services[strings.ToLower(svcName)] = struct{}{}
		}
	}
	return nil
}

// ApplyDefaultTimezone sets tz on every business that names none.
func (c *Catalog) ApplyDefaultTimezone(tz string) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return
	}
	for i := range c.Businesses {
		if strings.TrimSpace(c.Businesses[i].Timezone) == "" {
			c.Businesses[i].Timezone = tz
		}
	}
}

func (s BusinessSpec) toBusiness() (*models.Business, error) {
	hours := make(models.OperatingHours, len(s.Hours))
	for key, day := range s.Hours {
		weekday, err := models.ParseWeekday(key)
		if err != nil {
			return nil, err
		}
		if _, dup := hours[weekday]; dup {
			return nil, fmt.Errorf("weekday %s listed twice", weekday)
		}
		hours[weekday] = day
	}

	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	return &models.Business{
		Name:           strings.TrimSpace(s.Name),
		Timezone:       tz,
		Capacity:       s.Capacity,
		OperatingHours: hours,
	}, nil
}

// Summary counts what Apply wrote.
type Summary struct {
	BusinessesCreated int      `json:"businesses_created"`
	BusinessesUpdated int      `json:"businesses_updated"`
	Services          int      `json:"services"`
	BusinessIDs       []string `json:"business_ids"`
}

// Apply upserts the catalog by business name in one transaction. Services are
// matched by name within their business and renumbered in file order.
func Apply(ctx context.Context, db *gorm.DB, cat *Catalog, bus events.Publisher) (Summary, error) {
	var summary Summary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, spec := range cat.Businesses {
			desired, err := spec.toBusiness()
			if err != nil {
				return fmt.Errorf("business %q: %w", spec.Name, err)
			}

			var existing models.Business
			err = tx.Where("name = ?", desired.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				desired.ID = uuid.NewString()
				if err := tx.Create(desired).Error; err != nil {
					return fmt.Errorf("create business %q: %w", desired.Name, err)
				}
				summary.BusinessesCreated++
			case err != nil:
				return fmt.Errorf("load business %q: %w", desired.Name, err)
			default:
				desired.ID = existing.ID
				desired.CreatedAt = existing.CreatedAt
				if err := tx.Save(desired).Error; err != nil {
					return fmt.Errorf("update business %q: %w", desired.Name, err)
				}
				summary.BusinessesUpdated++
			}

			n, err := applyServices(tx, desired.ID, spec.Services)
			if err != nil {
				return fmt.Errorf("business %q: %w", desired.Name, err)
			}
			summary.Services += n
			summary.BusinessIDs = append(summary.BusinessIDs, desired.ID)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if bus != nil {
		for _, id := range summary.BusinessIDs {
			bus.Publish(events.EventBusinessUpdated, events.Payload{"business_id": id})
		}
	}
	return summary, nil
}

func applyServices(tx *gorm.DB, businessID string, specs []ServiceSpec) (int, error) {
	var existing []models.Service
	if err := tx.Where("business_id = ?", businessID).Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("load services: %w", err)
	}
	byName := make(map[string]models.Service, len(existing))
	for _, svc := range existing {
		byName[strings.ToLower(svc.Name)] = svc
	}

	for i, spec := range specs {
		active := true
		if spec.Active != nil {
			active = *spec.Active
		}
		svc, ok := byName[strings.ToLower(strings.TrimSpace(spec.Name))]
		svc.Name = strings.TrimSpace(spec.Name)
		svc.DurationMinutes = spec.DurationMinutes
		svc.Active = active
		svc.Position = i

		var err error
		if ok {
			err = tx.Save(&svc).Error
		} else {
			svc.ID = uuid.NewString()
			svc.BusinessID = businessID
			err = tx.Create(&svc).Error
		}
		if err != nil {
			return 0, fmt.Errorf("save service %q: %w", svc.Name, err)
		}
	}
	return len(specs), nil
}
