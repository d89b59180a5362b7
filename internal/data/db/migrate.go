package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&agreement.Record{},
		&agreement.Transition{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
