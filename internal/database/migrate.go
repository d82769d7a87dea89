package database

import (
	"marketsim/internal/models"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.Position{},
		&models.Order{},
	)
}
