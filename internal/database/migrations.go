package database

import (
	"gorm.io/gorm"

	"github.com/nvasquez/accounthub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Parents migrate before children so foreign keys resolve.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.LoginHistory{},
		&models.Account{},
		&models.AccountMember{},
		&models.Invitation{},
		&models.Session{},
		&models.AuditLog{},
	)
}
