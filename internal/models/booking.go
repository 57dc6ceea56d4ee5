/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking reserves a run of consecutive slots for one customer.
type Booking struct {
	ID            string        `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID    string        `gorm:"type:uuid;not null;index" json:"business_id"`
	StartTime     time.Time     `gorm:"not null" json:"start_time"`
	EndTime       time.Time     `gorm:"not null" json:"end_time"`
	SlotsConsumed int           `gorm:"not null" json:"slots_consumed"`
	Status        BookingStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CustomerRef   string        `gorm:"type:varchar(255)" json:"customer_ref,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BookingSlot links a booking to one consumed slot.
type BookingSlot struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID string    `gorm:"type:uuid;not null;uniqueIndex:idx_booking_slots_pair,priority:1" json:"booking_id"`
	SlotID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_booking_slots_pair,priority:2;index" json:"slot_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (BookingSlot) TableName() string {
	return "booking_slots"
}
