/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Weekday names a day in the weekly operating-hours template.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the template days in calendar order starting Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf maps a time.Weekday onto the template enum.
func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseWeekday accepts full or three-letter day names, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if s == string(d) || (len(s) == 3 && strings.HasPrefix(string(d), s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// ClockLayout is the time-of-day format used by operating hours.
const ClockLayout = "15:04"

// Break is a pause inside the open period of a day.
type Break struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// DayHours holds the open and close time-of-day for one weekday.
type DayHours struct {
	Open   string  `json:"open,omitempty" yaml:"open,omitempty"`
	Close  string  `json:"close,omitempty" yaml:"close,omitempty"`
	Closed bool    `json:"closed,omitempty" yaml:"closed,omitempty"`
	Breaks []Break `json:"breaks,omitempty" yaml:"breaks,omitempty"`
}

// IsOpen reports whether the day yields bookable time. Blank open or close
// times count as closed even when Closed is not set.
func (h DayHours) IsOpen() bool {
	if h.Closed {
		return false
	}
	return strings.TrimSpace(h.Open) != "" && strings.TrimSpace(h.Close) != ""
}

// Bounds resolves the open and close instants of the day on date in loc.
func (h DayHours) Bounds(date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	open, err := ClockOn(date, h.Open, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("open time: %w", err)
	}
	closing, err := ClockOn(date, h.Close, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("close time: %w", err)
	}
	return open, closing, nil
}

// ClockOn places an HH:MM time-of-day on the calendar date in loc.
func ClockOn(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}

// Validate checks the day is well formed. Closed days are always valid.
func (h DayHours) Validate() error {
	if h.Closed {
		return nil
	}
	if strings.TrimSpace(h.Open) == "" && strings.TrimSpace(h.Close) == "" {
		return nil
	}
	open, err := time.Parse(ClockLayout, strings.TrimSpace(h.Open))
	if err != nil {
		return fmt.Errorf("invalid open time %q", h.Open)
	}
	closing, err := time.Parse(ClockLayout, strings.TrimSpace(h.Close))
	if err != nil {
		return fmt.Errorf("invalid close time %q", h.Close)
	}
	if !open.Before(closing) {
		return fmt.Errorf("open time %s must be before close time %s", h.Open, h.Close)
	}
	for _, b := range h.Breaks {
		start, err := time.Parse(ClockLayout, strings.TrimSpace(b.Start))
		if err != nil {
			return fmt.Errorf("invalid break start %q", b.Start)
		}
		end, err := time.Parse(ClockLayout, strings.TrimSpace(b.End))
		if err != nil {
			return fmt.Errorf("invalid break end %q", b.End)
		}
		if !start.Before(end) || start.Before(open) || end.After(closing) {
			return fmt.Errorf("break %s-%s must fall inside %s-%s", b.Start, b.End, h.Open, h.Close)
		}
	}
	return nil
}

// OperatingHours is the weekly template. Missing days are closed.
type OperatingHours map[Weekday]DayHours

// Validate checks every configured day.
func (oh OperatingHours) Validate() error {
	for day, hours := range oh {
		if parsed, err := ParseWeekday(string(day)); err != nil || parsed != day {
			return fmt.Errorf("unknown weekday key %q", day)
		}
		if err := hours.Validate(); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

// Business owns the operating-hours template and per-slot capacity.
type Business struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string         `gorm:"uniqueIndex;not null" json:"name"`
	Timezone       string         `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Capacity       int            `gorm:"not null" json:"capacity"`
	OperatingHours OperatingHours `gorm:"type:text;serializer:json" json:"operating_hours"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HoursFor resolves the template for a weekday. The boolean is false when the
// template has no entry, which callers treat the same as closed.
func (b *Business) HoursFor(day time.Weekday) (DayHours, bool) {
	if b.OperatingHours == nil {
		return DayHours{}, false
	}
	h, ok := b.OperatingHours[WeekdayOf(day)]
	return h, ok
}

// Location returns the business time zone, falling back to UTC.
func (b *Business) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate runs configuration-time checks.
func (b *Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("business name is required")
	}
	if b.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0, got %d", b.Capacity)
	}
	if b.Timezone != "" {
		if _, err := time.LoadLocation(b.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", b.Timezone, err)
		}
	}
	return b.OperatingHours.Validate()
}

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID      string    `gorm:"type:uuid;not null;index:idx_services_business_position,priority:1" json:"business_id"`
	Name            string    `gorm:"type:varchar(100);not null" json:"name"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	Active          bool      `gorm:"not null" json:"active"`
	Position        int       `gorm:"not null;default:0;index:idx_services_business_position,priority:2" json:"position"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
