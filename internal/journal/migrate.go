package journal

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/agenthud/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every journal table model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.AgentRecord{},
		&models.MessageRecord{},
		&models.RequestRecord{},
		&models.ResponseRecord{},
		&models.ContentRecord{},
	}
}

// AutoMigrate creates or updates all journal tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("journal: auto-migrate: %w", err)
	}
	return nil
}

// marshalJSON marshals a value to a JSON string, returning empty string for nil.
func marshalJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
