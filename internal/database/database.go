package database

import (
	"fmt"

	"github.com/stp-platform/tokend/internal/config"
	"github.com/stp-platform/tokend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema. Shared with the tests, which run
// it against in-memory sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Token{},
		&models.AuditRecord{},
		&models.ArchiveCursor{},
	)
}
