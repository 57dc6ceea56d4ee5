/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionSlotsGenerated AuditAction = "slots.generated"
	AuditActionBookingCreate  AuditAction = "booking.create"
	AuditActionBookingCancel  AuditAction = "booking.cancel"
	AuditActionBatchCompleted AuditAction = "batch.completed"
	AuditActionBusinessUpdate AuditAction = "business.update"
)

// AuditLog records state changes to slots and bookings.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	BusinessID   *string        `gorm:"type:uuid;index:idx_audit_business" json:"business_id,omitempty"` // NULL for platform-wide actions
	ActorID      *string        `gorm:"type:varchar(255)" json:"actor_id,omitempty"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type,omitempty"`
	ResourceID   string         `gorm:"type:varchar(64)" json:"resource_id,omitempty"`
	Details      map[string]any `gorm:"type:text;serializer:json" json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
