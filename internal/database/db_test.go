package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
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
	}
	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateAndSeedSyncsCapabilities(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.Capability{}).Count(&count).Error)
	require.NotZero(t, count)

	var view models.Capability
	require.NoError(t, db.First(&view, "id = ?", "org.view").Error)
	require.Equal(t, "org", view.Module)

	// Seeding twice is an upsert, not a duplicate.
	require.NoError(t, AutoMigrateAndSeed(db))
	var again int64
	require.NoError(t, db.Model(&models.Capability{}).Count(&again).Error)
	require.Equal(t, count, again)
}
