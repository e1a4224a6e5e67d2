package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
)

func newInviteFixture(t *testing.T) (*gorm.DB, *InviteService, *models.Organization) {
	t.Helper()

	db := openServiceTestDB(t)
	svc, err := NewInviteService(db, nil, nil, "https://desk.example.com")
	require.NoError(t, err)
	return db, svc, seedOrg(t, db, "Invite Fixture School")
}

// waitForBatch polls until the batch worker leaves the queued/running states.
func waitForBatch(t *testing.T, svc *InviteService, orgID, batchID string) *models.InviteBatch {
	t.Helper()

	var batch *models.InviteBatch
	require.Eventually(t, func() bool {
		var err error
		batch, err = svc.GetBatch(context.Background(), orgID, batchID)
		if err != nil {
			return false
		}
		return batch.Status == models.BatchStatusDone || batch.Status == models.BatchStatusError
	}, 5*time.Second, 20*time.Millisecond)
	return batch
}

func TestInviteCreateAndAccept(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	inviter := seedUser(t, db, "head@example.com")
	audience := seedAudience(t, db, org, "Grade 5", models.AudienceAcademic, false)

	created, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:        "NewStudent@Example.com",
		BaseRole:     baseRolePtr(models.RoleStudent),
		AudienceID:   &audience.ID,
		WithJoinCode: true,
	})
	require.NoError(t, err)
	require.Equal(t, "newstudent@example.com", created.Invite.Email)
	require.NotEmpty(t, created.Token)
	require.NotEmpty(t, created.JoinCode)
	// Secrets are stored hashed only.
	require.NotEqual(t, created.Token, created.Invite.TokenHash)

	joiner := seedUser(t, db, "newstudent@example.com")
	membership, err := svc.Accept(ctx, created.Token, joiner.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, membership.BaseRole)
	require.Equal(t, org.ID, membership.OrgID)

	var rosterCount int64
	require.NoError(t, db.Table("audience_members").Where("audience_id = ? AND membership_id = ?", audience.ID, membership.ID).Count(&rosterCount).Error)
	require.EqualValues(t, 1, rosterCount)

	// Accepting again with the same user returns the existing membership.
	again, err := svc.Accept(ctx, created.Token, joiner.ID)
	require.NoError(t, err)
	require.Equal(t, membership.ID, again.ID)

	// A different user hits a conflict.
	other := seedUser(t, db, "other@example.com")
	_, err = svc.Accept(ctx, created.Token, other.ID)
	require.ErrorIs(t, err, ErrInviteClaimed)
}

func TestInviteAcceptByCodeIsCaseInsensitive(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	inviter := seedUser(t, db, "codes@example.com")
	created, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:        "coded@example.com",
		BaseRole:     baseRolePtr(models.RoleParent),
		WithJoinCode: true,
	})
	require.NoError(t, err)

	joiner := seedUser(t, db, "coded@example.com")
	membership, err := svc.AcceptByCode(ctx, "  "+strings.ToLower(created.JoinCode)+" ", joiner.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleParent, membership.BaseRole)
}

func TestInviteAcceptExpired(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	inviter := seedUser(t, db, "expiry@example.com")
	created, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "late@example.com",
		BaseRole: baseRolePtr(models.RoleStudent),
	})
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(created.Invite).Update("expires_at", stale).Error)

	joiner := seedUser(t, db, "late@example.com")
	_, err = svc.Accept(ctx, created.Token, joiner.ID)
	require.ErrorIs(t, err, ErrInviteExpired)

	_, err = svc.Accept(ctx, "not-a-token", joiner.ID)
	require.ErrorIs(t, err, ErrInviteNotFound)
}

func TestInviteValidation(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	inviter := seedUser(t, db, "validator@example.com")

	// Neither role set.
	_, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{Email: "x@example.com"})
	require.Error(t, err)

	// Both roles set.
	_, err = svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "x@example.com",
		BaseRole: baseRolePtr(models.RoleStaff),
		RoleID:   strPtr("some-role"),
	})
	require.Error(t, err)

	// Existing members cannot be re-invited.
	member := seedUser(t, db, "already@example.com")
	seedMember(t, db, org, member, models.RoleStaff)
	_, err = svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "already@example.com",
		BaseRole: baseRolePtr(models.RoleStaff),
	})
	require.Error(t, err)

	// A second pending invite for the same email conflicts.
	_, err = svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "pending@example.com",
		BaseRole: baseRolePtr(models.RoleStudent),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "pending@example.com",
		BaseRole: baseRolePtr(models.RoleStudent),
	})
	require.Error(t, err)
}

func TestInviteRevoke(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	inviter := seedUser(t, db, "revoker@example.com")
	created, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "revoked@example.com",
		BaseRole: baseRolePtr(models.RoleStudent),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, org.ID, created.Invite.ID))
	require.ErrorIs(t, svc.Revoke(ctx, org.ID, created.Invite.ID), ErrInviteNotFound)

	// Accepted invites cannot be revoked.
	accepted, err := svc.Create(ctx, org.ID, inviter.ID, CreateInviteInput{
		Email:    "stayed@example.com",
		BaseRole: baseRolePtr(models.RoleStudent),
	})
	require.NoError(t, err)
	joiner := seedUser(t, db, "stayed@example.com")
	_, err = svc.Accept(ctx, accepted.Token, joiner.ID)
	require.NoError(t, err)
	require.Error(t, svc.Revoke(ctx, org.ID, accepted.Invite.ID))
}

func TestInviteBatchDryRunCreatesNothing(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	submitter := seedUser(t, db, "bulk-dry@example.com")

	batch, err := svc.CreateBatch(ctx, org.ID, submitter.ID, models.BatchModeDryRun, []BatchItemInput{
		{Email: "one@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
		{Email: "two@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
	})
	require.NoError(t, err)

	done := waitForBatch(t, svc, org.ID, batch.ID)
	require.Equal(t, models.BatchStatusDone, done.Status)
	require.Equal(t, 2, done.SentCount)
	require.Zero(t, done.FailedCount)
	require.Zero(t, done.SkippedCount)
	for _, item := range done.Items {
		require.Equal(t, models.ItemOutcomeSent, item.Outcome)
		require.Nil(t, item.InviteID)
	}

	var inviteCount int64
	require.NoError(t, db.Model(&models.Invite{}).Where("org_id = ?", org.ID).Count(&inviteCount).Error)
	require.Zero(t, inviteCount)
}

func TestInviteBatchCommitOutcomes(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	submitter := seedUser(t, db, "bulk-commit@example.com")
	member := seedUser(t, db, "existing@example.com")
	seedMember(t, db, org, member, models.RoleStaff)

	batch, err := svc.CreateBatch(ctx, org.ID, submitter.ID, models.BatchModeCommit, []BatchItemInput{
		{Email: "fresh@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
		{Email: "Fresh@Example.com", BaseRole: baseRolePtr(models.RoleStudent)},
		{Email: "existing@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
		{Email: "not-an-email", BaseRole: baseRolePtr(models.RoleStudent)},
	})
	require.NoError(t, err)

	done := waitForBatch(t, svc, org.ID, batch.ID)
	require.Equal(t, models.BatchStatusDone, done.Status)
	require.Equal(t, 1, done.SentCount)
	require.Equal(t, 1, done.FailedCount)
	require.Equal(t, 2, done.SkippedCount)

	require.Len(t, done.Items, 4)
	outcomes := map[models.ItemOutcome]int{}
	for _, item := range done.Items {
		outcomes[item.Outcome]++
		if item.Outcome == models.ItemOutcomeSent {
			require.Equal(t, "fresh@example.com", item.Email)
			require.NotNil(t, item.InviteID)
		}
	}
	require.Equal(t, map[models.ItemOutcome]int{
		models.ItemOutcomeSent:    1,
		models.ItemOutcomeSkipped: 2,
		models.ItemOutcomeFailed:  1,
	}, outcomes)

	var invite models.Invite
	require.NoError(t, db.First(&invite, "org_id = ? AND email = ?", org.ID, "fresh@example.com").Error)
	require.NotNil(t, invite.BatchID)
	require.Equal(t, batch.ID, *invite.BatchID)
}

func TestInviteBatchStatusReadsAreSideEffectFree(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	ctx := context.Background()
	submitter := seedUser(t, db, "bulk-poll@example.com")

	batch, err := svc.CreateBatch(ctx, org.ID, submitter.ID, models.BatchModeCommit, []BatchItemInput{
		{Email: "polled@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
	})
	require.NoError(t, err)
	waitForBatch(t, svc, org.ID, batch.ID)

	var before int64
	require.NoError(t, db.Model(&models.Invite{}).Where("org_id = ?", org.ID).Count(&before).Error)

	for i := 0; i < 3; i++ {
		_, err := svc.GetBatch(ctx, org.ID, batch.ID)
		require.NoError(t, err)
	}

	var after int64
	require.NoError(t, db.Model(&models.Invite{}).Where("org_id = ?", org.ID).Count(&after).Error)
	require.Equal(t, before, after)

	_, err = svc.GetBatch(ctx, "wrong-org", batch.ID)
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestInviteBatchRejectsBadSubmissions(t *testing.T) {
	db, svc, org := newInviteFixture(t)

	submitter := seedUser(t, db, "bulk-bad@example.com")

	_, err := svc.CreateBatch(context.Background(), org.ID, submitter.ID, models.BatchMode("preview"), []BatchItemInput{
		{Email: "a@example.com", BaseRole: baseRolePtr(models.RoleStudent)},
	})
	require.Error(t, err)

	_, err = svc.CreateBatch(context.Background(), org.ID, submitter.ID, models.BatchModeCommit, nil)
	require.Error(t, err)
}
