package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addDeliveryAttemptsOutcomeIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_delivery_attempts_outcome_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_outcome ON delivery_attempts (outcome, environment) WHERE outcome <> 'SENT'`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_delivery_attempts_outcome`).Error
		},
	}
}
