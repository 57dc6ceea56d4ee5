/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/telemetry"
)

const _startTime = "telemetry:start_time"

// RegisterCallbacks registers telemetry callbacks for GORM operations.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{
			operation: "query",
			before:    cb.Query().Before("gorm:query").Register,
			after:     cb.Query().After("gorm:query").Register,
		},
		{
			operation: "create",
			before:    cb.Create().Before("gorm:create").Register,
			after:     cb.Create().After("gorm:create").Register,
		},
		{
			operation: "update",
			before:    cb.Update().Before("gorm:update").Register,
			after:     cb.Update().After("gorm:update").Register,
		},
		{
			operation: "delete",
			before:    cb.Delete().Before("gorm:delete").Register,
			after:     cb.Delete().After("gorm:delete").Register,
		},
		{
			operation: "raw",
			before:    cb.Raw().Before("gorm:raw").Register,
			after:     cb.Raw().After("gorm:raw").Register,
		},
	}

	for _, h := range hooks {
		if err := h.before("telemetry:before_"+h.operation, beforeCallback); err != nil {
			return err
		}
		if err := h.after("telemetry:after_"+h.operation, afterCallback(h.operation)); err != nil {
			return err
		}
	}
	return nil
}

func beforeCallback(db *gorm.DB) {
	db.InstanceSet(_startTime, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		value, ok := db.InstanceGet(_startTime)
		if !ok {
			return
		}
		started, ok := value.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, table).Inc()
		}
	}
}

// UpdateConnectionMetrics refreshes connection pool gauges.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsOpen.Set(float64(sqlDB.Stats().OpenConnections))
}
