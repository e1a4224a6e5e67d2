package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/permissions"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrgUnit{},
		&models.Audience{},
		&models.Role{},
		&models.Capability{},
		&models.Membership{},
		&models.Invite{},
		&models.InviteBatch{},
		&models.InviteBatchItem{},
		&models.AttendanceSession{},
		&models.AttendanceRecord{},
		&models.AuditLog{},
	)
}

// SeedData syncs the capability registry into the database so role grants
// reference real rows. Safe to run on every boot.
func SeedData(db *gorm.DB) error {
	return permissions.Sync(context.Background(), db)
}
