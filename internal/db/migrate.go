/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Business{},
		&models.Service{},
		&models.Slot{},
		&models.Booking{},
		&models.BookingSlot{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Upper bound references a sibling column, which the field tag cannot express portably.
	if database.Dialector.Name() == "postgres" {
		if err := database.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint WHERE conname = 'chk_slots_capacity_ceiling'
				) THEN
					ALTER TABLE slots ADD CONSTRAINT chk_slots_capacity_ceiling
						CHECK (capacity <= original_capacity);
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("add capacity ceiling constraint: %w", err)
		}
	}

	return nil
}
