package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/mmutisya/shuledesk/internal/database/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
)

func TestCleanupInvites(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

	org := models.Organization{Name: "Cleanup Primary", Type: models.OrgTypeSchool}
	require.NoError(t, db.Create(&org).Error)

	accepted := now.Add(-2 * time.Hour)
	invites := []models.Invite{
		{OrgID: org.ID, Email: "expired@example.com", TokenHash: "hash-expired", ExpiresAt: now.Add(-time.Hour)},
		{OrgID: org.ID, Email: "active@example.com", TokenHash: "hash-active", ExpiresAt: now.Add(time.Hour)},
		{OrgID: org.ID, Email: "redeemed@example.com", TokenHash: "hash-redeemed", ExpiresAt: now.Add(-time.Hour), AcceptedAt: &accepted},
	}
	for i := range invites {
		require.NoError(t, db.Create(&invites[i]).Error)
	}

	removed, err := CleanupInvites(context.Background(), db, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining []models.Invite
	require.NoError(t, db.Order("email").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	require.Equal(t, "active@example.com", remaining[0].Email)
	require.Equal(t, "redeemed@example.com", remaining[1].Email)
}

func TestCleanupBatches(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -30)

	org := models.Organization{Name: "Cleanup Batches", Type: models.OrgTypeSchool}
	require.NoError(t, db.Create(&org).Error)

	oldDone := models.InviteBatch{OrgID: org.ID, Mode: models.BatchModeCommit, Status: models.BatchStatusDone}
	recentDone := models.InviteBatch{OrgID: org.ID, Mode: models.BatchModeCommit, Status: models.BatchStatusDone}
	oldRunning := models.InviteBatch{OrgID: org.ID, Mode: models.BatchModeCommit, Status: models.BatchStatusRunning}
	require.NoError(t, db.Create(&oldDone).Error)
	require.NoError(t, db.Create(&recentDone).Error)
	require.NoError(t, db.Create(&oldRunning).Error)

	stale := cutoff.AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.InviteBatch{}).
		Where("id IN ?", []string{oldDone.ID, oldRunning.ID}).
		Update("created_at", stale).Error)

	item := models.InviteBatchItem{BatchID: oldDone.ID, Email: "item@example.com", Outcome: models.ItemOutcomeSent}
	require.NoError(t, db.Create(&item).Error)

	removed, err := CleanupBatches(context.Background(), db, cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var batches []models.InviteBatch
	require.NoError(t, db.Find(&batches).Error)
	require.Len(t, batches, 2)
	for _, b := range batches {
		require.NotEqual(t, oldDone.ID, b.ID)
	}

	var itemCount int64
	require.NoError(t, db.Model(&models.InviteBatchItem{}).Count(&itemCount).Error)
	require.Equal(t, int64(0), itemCount)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	org := models.Organization{Name: "Cleaner Run Once", Type: models.OrgTypeSchool}
	require.NoError(t, db.Create(&org).Error)

	require.NoError(t, db.Create(&models.Invite{
		OrgID:     org.ID,
		Email:     "stale@example.com",
		TokenHash: "stale-hash",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "test.action",
		Result: "success",
	}))
	var auditLog models.AuditLog
	require.NoError(t, db.First(&auditLog).Error)
	require.NoError(t, db.Model(&auditLog).Update("created_at", now.AddDate(0, 0, -10)).Error)

	c := NewCleaner(db, auditSvc,
		WithNow(clock),
		WithAuditRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	var inviteCount int64
	require.NoError(t, db.Model(&models.Invite{}).Count(&inviteCount).Error)
	require.Equal(t, int64(0), inviteCount)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.Equal(t, int64(0), auditCount)
}
