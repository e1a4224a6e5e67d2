package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmutisya/shuledesk/internal/models"
)

// Sync persists registered capabilities to the backing database so custom-role
// grants reference real rows.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("capability: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	caps := GetAll()
	if len(caps) == 0 {
		return nil
	}

	tx := db.WithContext(ctx)
	for _, def := range caps {
		dependsJSON, err := json.Marshal(def.DependsOn)
		if err != nil {
			return fmt.Errorf("capability: marshal depends_on for %s: %w", def.ID, err)
		}
		impliesJSON, err := json.Marshal(def.Implies)
		if err != nil {
			return fmt.Errorf("capability: marshal implies for %s: %w", def.ID, err)
		}

		record := models.Capability{
			BaseModel:   models.BaseModel{ID: def.ID},
			Module:      def.Module,
			Description: def.Description,
			DependsOn:   string(dependsJSON),
			Implies:     string(impliesJSON),
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"module", "description", "depends_on", "implies"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("capability: sync %s: %w", def.ID, err)
		}
	}

	return nil
}
