/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// SlotDuration is the fixed width of every generated slot.
const SlotDuration = 15 * time.Minute

// DateLayout is the calendar-date format stored on slots.
const DateLayout = "2006-01-02"

// Slot is one fixed-width bookable bucket for a business on a calendar date.
// Capacity is the remaining room; OriginalCapacity is the ceiling set at
// creation.
type Slot struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_slots_business_start,priority:1;index:idx_slots_business_date,priority:1" json:"business_id"`
	StartTime        time.Time `gorm:"not null;uniqueIndex:idx_slots_business_start,priority:2" json:"start_time"`
	EndTime          time.Time `gorm:"not null" json:"end_time"`
	Date             string    `gorm:"type:varchar(10);not null;index:idx_slots_business_date,priority:2" json:"date"`
	Capacity         int       `gorm:"not null;check:chk_slots_capacity,capacity >= 0" json:"capacity"`
	OriginalCapacity int       `gorm:"not null" json:"original_capacity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Slot) TableName() string {
	return "slots"
}

// Touches reports whether next starts exactly where s ends.
func (s Slot) Touches(next Slot) bool {
	return s.EndTime.Equal(next.StartTime)
}

// Available reports whether the slot can take one more booking.
func (s Slot) Available() bool {
	return s.Capacity > 0
}

// FormatDate renders the calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}
