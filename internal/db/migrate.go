package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/giftvault/giftvault/internal/models"
)

// Migrate creates or updates the schema for all entities.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Merchant{},
		&models.GiftCard{},
		&models.LedgerEntry{},
		&models.Reward{},
		&models.Notification{},
		&models.IdempotencyKey{},
		&models.Setting{},
	)
}
