/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
)

// actions maps bus events onto audit actions.
var actions = map[events.EventType]models.AuditAction{
	events.EventSlotsGenerated:   models.AuditActionSlotsGenerated,
	events.EventBookingCreated:   models.AuditActionBookingCreate,
	events.EventBookingCancelled: models.AuditActionBookingCancel,
	events.EventBatchCompleted:   models.AuditActionBatchCompleted,
	events.EventBusinessUpdated:  models.AuditActionBusinessUpdate,
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

type subscription struct {
	eventType events.EventType
	ch        events.Subscriber
}

type auditEvent struct {
	action  models.AuditAction
	payload events.Payload
}

// Start subscribes to slot and booking events and records them until ctx ends.
func (s *Service) Start(ctx context.Context) {
	s.run(ctx, s.subscribe())
}

func (s *Service) subscribe() []subscription {
	subs := make([]subscription, 0, len(actions))
	for eventType := range actions {
		subs = append(subs, subscription{eventType: eventType, ch: s.bus.Subscribe(eventType)})
	}
	return subs
}

func (s *Service) run(ctx context.Context, subs []subscription) {
	defer func() {
		for _, sub := range subs {
			s.bus.Unsubscribe(sub.eventType, sub.ch)
		}
	}()

	// Fan in so a single goroutine owns the database writes.
	merged := make(chan auditEvent, 32)
	done := make(chan struct{})
	defer close(done)
	for _, sub := range subs {
		go func(action models.AuditAction, ch events.Subscriber) {
			for {
				select {
				case <-done:
					return
				case payload := <-ch:
					select {
					case merged <- auditEvent{action: action, payload: payload}:
					case <-done:
						return
					}
				}
			}
		}(actions[sub.eventType], sub.ch)
	}

	s.logger.Info().Int("events", len(subs)).Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case ev := <-merged:
			s.logAuditEntry(ctx, ev.action, ev.payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any),
	}

	if businessID, ok := payload["business_id"].(string); ok && businessID != "" {
		entry.BusinessID = &businessID
	}
	if actorID, ok := payload["user_id"].(string); ok && actorID != "" {
		entry.ActorID = &actorID
	}
	if bookingID, ok := payload["booking_id"].(string); ok && bookingID != "" {
		entry.ResourceType = "booking"
		entry.ResourceID = bookingID
	}

	for k, v := range payload {
		switch k {
		case "business_id", "user_id", "booking_id":
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")
	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	BusinessID *string
	Action     *models.AuditAction
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs, newest first, with the total matching count.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.BusinessID != nil {
		query = query.Where("business_id = ?", *filters.BusinessID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
