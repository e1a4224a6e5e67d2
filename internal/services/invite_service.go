package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/pkg/crypto"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/logger"
	"github.com/mmutisya/shuledesk/pkg/mail"
	"github.com/mmutisya/shuledesk/pkg/metrics"
)

var (
	// ErrInviteNotFound covers unknown tokens and join codes alike.
	ErrInviteNotFound = apperrors.New("INVITE_NOT_FOUND", "Invite not found", http.StatusNotFound)
	// ErrInviteExpired indicates the invite's validity window has passed.
	ErrInviteExpired = apperrors.New("INVITE_EXPIRED", "Invite has expired", http.StatusGone)
	// ErrInviteClaimed signals an invite already accepted by a different user.
	ErrInviteClaimed = apperrors.New("INVITE_CLAIMED", "Invite was already accepted by another user", http.StatusConflict)
	// ErrBatchNotFound indicates the requested invite batch does not exist.
	ErrBatchNotFound = apperrors.New("BATCH_NOT_FOUND", "Invite batch not found", http.StatusNotFound)
)

const (
	defaultInviteTTL = 14 * 24 * time.Hour
	inviteTokenBytes = 32
	joinCodeLength   = 8
	maxBatchItems    = 500
)

// CreateInviteInput describes a single invite. Exactly one of BaseRole or
// RoleID must be set.
type CreateInviteInput struct {
	Email        string
	BaseRole     *models.BaseRole
	RoleID       *string
	AudienceID   *string
	WithJoinCode bool
}

// CreatedInvite pairs the stored invite with its one-time plaintext secrets.
// The token and join code are never recoverable after this response.
type CreatedInvite struct {
	Invite   *models.Invite
	Token    string
	JoinCode string
}

// BatchItemInput is one row of a bulk invite submission.
type BatchItemInput struct {
	Email      string
	BaseRole   *models.BaseRole
	RoleID     *string
	AudienceID *string
}

// InviteService manages single invites, acceptance, and bulk invite batches.
// Batches run on an in-process worker goroutine; status reads never
// re-trigger work.
type InviteService struct {
	db           *gorm.DB
	auditService *AuditService
	mailer       mail.Mailer
	inviteTTL    time.Duration
	baseURL      string
	log          *zap.Logger
}

// NewInviteService constructs an InviteService. The mailer may be nil, in
// which case invites are created without delivery.
func NewInviteService(db *gorm.DB, auditService *AuditService, mailer mail.Mailer, baseURL string) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	return &InviteService{
		db:           db,
		auditService: auditService,
		mailer:       mailer,
		inviteTTL:    defaultInviteTTL,
		baseURL:      strings.TrimRight(baseURL, "/"),
		log:          logger.WithModule("invites"),
	}, nil
}

// Create issues a single invite and delivers it when a mailer is configured.
func (s *InviteService) Create(ctx context.Context, orgID, invitedBy string, input CreateInviteInput) (*CreatedInvite, error) {
	ctx = ensureContext(ctx)

	if err := s.validateItem(ctx, orgID, input.Email, input.BaseRole, input.RoleID, input.AudienceID); err != nil {
		return nil, err
	}

	created, err := s.mintInvite(ctx, s.db, orgID, invitedBy, input)
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, created); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("invite delivery failed",
			zap.String("invite_id", created.Invite.ID),
			zap.Error(err))
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "invite.create",
		Resource: created.Invite.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID, "email": created.Invite.Email},
	})

	return created, nil
}

// List returns an organisation's invites, newest first.
func (s *InviteService) List(ctx context.Context, orgID string) ([]models.Invite, error) {
	ctx = ensureContext(ctx)

	var invites []models.Invite
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("invite service: list invites: %w", err)
	}
	return invites, nil
}

// Revoke deletes a pending invite. Accepted invites are immutable.
func (s *InviteService) Revoke(ctx context.Context, orgID, id string) error {
	ctx = ensureContext(ctx)

	var invite models.Invite
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&invite, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInviteNotFound
	}
	if err != nil {
		return fmt.Errorf("invite service: load invite: %w", err)
	}
	if invite.AcceptedAt != nil {
		return apperrors.NewConflict("invite has already been accepted")
	}

	if err := s.db.WithContext(ctx).Delete(&invite).Error; err != nil {
		return fmt.Errorf("invite service: revoke invite: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "invite.revoke",
		Resource: invite.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return nil
}

// Accept redeems an invite token for the given user. Accepting an invite the
// same user already redeemed returns the existing membership unchanged.
func (s *InviteService) Accept(ctx context.Context, token, userID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	invite, err := s.findByHash(ctx, "token_hash", hashSecret(token))
	if err != nil {
		return nil, err
	}
	return s.redeem(ctx, invite, userID)
}

// AcceptByCode redeems an invite via its join code. Join codes are matched
// case-insensitively.
func (s *InviteService) AcceptByCode(ctx context.Context, code, userID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	invite, err := s.findByHash(ctx, "join_code_hash", hashSecret(strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		return nil, err
	}
	return s.redeem(ctx, invite, userID)
}

// CreateBatch submits a bulk invite job and starts its worker. Dry-run
// batches evaluate every item without creating invites or sending mail;
// their outcomes report what a commit would have done.
func (s *InviteService) CreateBatch(ctx context.Context, orgID, submittedBy string, mode models.BatchMode, items []BatchItemInput) (*models.InviteBatch, error) {
	ctx = ensureContext(ctx)

	if mode != models.BatchModeDryRun && mode != models.BatchModeCommit {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown batch mode %q", mode))
	}
	if len(items) == 0 {
		return nil, apperrors.NewBadRequest("batch has no items")
	}
	if len(items) > maxBatchItems {
		return nil, apperrors.NewValidation(fmt.Sprintf("batch exceeds %d items", maxBatchItems))
	}

	batch := &models.InviteBatch{
		OrgID:       orgID,
		Mode:        mode,
		SubmittedBy: submittedBy,
		Status:      models.BatchStatusQueued,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		for _, item := range items {
			row := models.InviteBatchItem{
				BatchID:    batch.ID,
				Email:      strings.TrimSpace(strings.ToLower(item.Email)),
				BaseRole:   item.BaseRole,
				RoleID:     item.RoleID,
				AudienceID: item.AudienceID,
				Outcome:    models.ItemOutcomePending,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invite service: create batch: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "invite.batch.create",
		Resource: batch.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id": orgID,
			"mode":   string(mode),
			"items":  len(items),
		},
	})

	go s.runBatch(batch.ID)

	return s.GetBatch(ctx, orgID, batch.ID)
}

// GetBatch returns a batch with its items. Reading status has no side
// effects; polling a done batch never re-sends anything.
func (s *InviteService) GetBatch(ctx context.Context, orgID, id string) (*models.InviteBatch, error) {
	ctx = ensureContext(ctx)

	var batch models.InviteBatch
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("org_id = ?", orgID).
		First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: get batch: %w", err)
	}
	return &batch, nil
}

// runBatch executes a queued batch on its own goroutine. Each item is
// processed in isolation: one failure never aborts the rest.
func (s *InviteService) runBatch(batchID string) {
	ctx := context.Background()

	var batch models.InviteBatch
	err := s.db.WithContext(ctx).
		Where("status = ?", models.BatchStatusQueued).
		First(&batch, "id = ?", batchID).Error
	if err != nil {
		// Already claimed or gone; nothing to do.
		return
	}

	if err := s.db.WithContext(ctx).Model(&batch).Update("status", models.BatchStatusRunning).Error; err != nil {
		s.log.Error("batch claim failed", zap.String("batch_id", batchID), zap.Error(err))
		return
	}

	var items []models.InviteBatchItem
	if err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("created_at ASC").Find(&items).Error; err != nil {
		s.failBatch(ctx, &batch, fmt.Errorf("load items: %w", err))
		return
	}

	var (
		sent, failed, skipped int
		itemErrs              error
		seen                  = map[string]bool{}
	)

	for i := range items {
		item := &items[i]
		outcome, reason, inviteID := s.processItem(ctx, &batch, item, seen)

		updates := map[string]any{"outcome": outcome, "reason": reason}
		if inviteID != "" {
			updates["invite_id"] = inviteID
		}
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			itemErrs = multierr.Append(itemErrs, fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}

		metrics.InviteBatchItems.WithLabelValues(string(outcome)).Inc()
		switch outcome {
		case models.ItemOutcomeSent:
			sent++
		case models.ItemOutcomeFailed:
			failed++
		case models.ItemOutcomeSkipped:
			skipped++
		}
	}

	if itemErrs != nil {
		s.failBatch(ctx, &batch, itemErrs)
		return
	}

	err = s.db.WithContext(ctx).Model(&batch).Updates(map[string]any{
		"status":        models.BatchStatusDone,
		"sent_count":    sent,
		"failed_count":  failed,
		"skipped_count": skipped,
	}).Error
	if err != nil {
		s.log.Error("batch finalise failed", zap.String("batch_id", batchID), zap.Error(err))
		return
	}

	s.log.Info("invite batch finished",
		zap.String("batch_id", batchID),
		zap.String("mode", string(batch.Mode)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))
}

// processItem decides a single item's fate. Duplicate emails within the
// batch, existing members, and emails with a pending invite are skipped.
func (s *InviteService) processItem(ctx context.Context, batch *models.InviteBatch, item *models.InviteBatchItem, seen map[string]bool) (models.ItemOutcome, string, string) {
	if seen[item.Email] {
		return models.ItemOutcomeSkipped, "duplicate email in batch", ""
	}
	seen[item.Email] = true

	if err := s.validateItem(ctx, batch.OrgID, item.Email, item.BaseRole, item.RoleID, item.AudienceID); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode == http.StatusConflict {
			return models.ItemOutcomeSkipped, appErr.Message, ""
		}
		return models.ItemOutcomeFailed, err.Error(), ""
	}

	if batch.Mode == models.BatchModeDryRun {
		return models.ItemOutcomeSent, "dry run: invite would be sent", ""
	}

	created, err := s.mintInvite(ctx, s.db, batch.OrgID, batch.SubmittedBy, CreateInviteInput{
		Email:      item.Email,
		BaseRole:   item.BaseRole,
		RoleID:     item.RoleID,
		AudienceID: item.AudienceID,
	})
	if err != nil {
		return models.ItemOutcomeFailed, err.Error(), ""
	}
	created.Invite.BatchID = &batch.ID
	if err := s.db.WithContext(ctx).Model(created.Invite).Update("batch_id", batch.ID).Error; err != nil {
		return models.ItemOutcomeFailed, err.Error(), created.Invite.ID
	}

	if err := s.deliver(ctx, created); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		return models.ItemOutcomeFailed, fmt.Sprintf("delivery failed: %v", err), created.Invite.ID
	}

	return models.ItemOutcomeSent, "", created.Invite.ID
}

func (s *InviteService) failBatch(ctx context.Context, batch *models.InviteBatch, cause error) {
	s.log.Error("invite batch failed", zap.String("batch_id", batch.ID), zap.Error(cause))
	err := s.db.WithContext(ctx).Model(batch).Updates(map[string]any{
		"status": models.BatchStatusError,
		"error":  cause.Error(),
	}).Error
	if err != nil {
		s.log.Error("batch error update failed", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}

// validateItem applies invite preconditions: well-formed email, exactly one
// of base/custom role, role and audience resolvable in the org, recipient not
// already a member or invited.
func (s *InviteService) validateItem(ctx context.Context, orgID, email string, baseRole *models.BaseRole, roleID, audienceID *string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.NewValidation("a valid email is required")
	}

	if (baseRole == nil) == (roleID == nil) {
		return apperrors.NewValidation("exactly one of base_role or role_id must be set")
	}
	if baseRole != nil && !baseRole.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("unknown base role %q", *baseRole))
	}
	if roleID != nil {
		var role models.Role
		err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&role, "id = ?", *roleID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		if err != nil {
			return fmt.Errorf("invite service: load role: %w", err)
		}
	}
	if audienceID != nil {
		var audience models.Audience
		err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&audience, "id = ?", *audienceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAudienceNotFound
		}
		if err != nil {
			return fmt.Errorf("invite service: load audience: %w", err)
		}
	}

	var memberCount int64
	err := s.db.WithContext(ctx).
		Model(&models.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.org_id = ? AND users.email = ?", orgID, email).
		Count(&memberCount).Error
	if err != nil {
		return fmt.Errorf("invite service: check membership: %w", err)
	}
	if memberCount > 0 {
		return apperrors.NewConflict("user is already a member of this organisation")
	}

	var pendingCount int64
	err = s.db.WithContext(ctx).
		Model(&models.Invite{}).
		Where("org_id = ? AND email = ? AND accepted_at IS NULL AND expires_at > ?", orgID, email, time.Now().UTC()).
		Count(&pendingCount).Error
	if err != nil {
		return fmt.Errorf("invite service: check pending invites: %w", err)
	}
	if pendingCount > 0 {
		return apperrors.NewConflict("a pending invite already exists for this email")
	}

	return nil
}

// mintInvite persists the invite with hashed secrets and returns the
// plaintext token and join code exactly once.
func (s *InviteService) mintInvite(ctx context.Context, db *gorm.DB, orgID, invitedBy string, input CreateInviteInput) (*CreatedInvite, error) {
	token, err := crypto.GenerateToken(inviteTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate token: %w", err)
	}

	invite := &models.Invite{
		OrgID:      orgID,
		Email:      strings.TrimSpace(strings.ToLower(input.Email)),
		BaseRole:   input.BaseRole,
		RoleID:     input.RoleID,
		AudienceID: input.AudienceID,
		TokenHash:  hashSecret(token),
		InvitedBy:  invitedBy,
		ExpiresAt:  time.Now().UTC().Add(s.inviteTTL),
	}

	joinCode := ""
	if input.WithJoinCode {
		joinCode, err = crypto.GenerateJoinCode(joinCodeLength)
		if err != nil {
			return nil, fmt.Errorf("invite service: generate join code: %w", err)
		}
		hash := hashSecret(joinCode)
		invite.JoinCodeHash = &hash
	}

	if err := db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, fmt.Errorf("invite service: create invite: %w", err)
	}

	return &CreatedInvite{Invite: invite, Token: token, JoinCode: joinCode}, nil
}

func (s *InviteService) deliver(ctx context.Context, created *CreatedInvite) error {
	if s.mailer == nil {
		return nil
	}

	body := fmt.Sprintf("You have been invited to join an organisation.\n\nAccept your invite: %s/invites/accept?token=%s\n", s.baseURL, created.Token)
	if created.JoinCode != "" {
		body += fmt.Sprintf("\nOr use join code: %s\n", created.JoinCode)
	}

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{created.Invite.Email},
		Subject: "You're invited",
		Body:    body,
	})
}

func (s *InviteService) findByHash(ctx context.Context, column, hash string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.WithContext(ctx).Where(column+" = ?", hash).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: lookup invite: %w", err)
	}
	return &invite, nil
}

// redeem converts an invite into a membership. Redeeming twice with the same
// user returns the membership created the first time.
func (s *InviteService) redeem(ctx context.Context, invite *models.Invite, userID string) (*models.Membership, error) {
	if invite.AcceptedAt != nil {
		if invite.AcceptedBy != nil && *invite.AcceptedBy == userID {
			var membership models.Membership
			err := s.db.WithContext(ctx).
				Where("org_id = ? AND user_id = ?", invite.OrgID, userID).
				First(&membership).Error
			if err != nil {
				return nil, fmt.Errorf("invite service: load membership: %w", err)
			}
			return &membership, nil
		}
		return nil, ErrInviteClaimed
	}

	if time.Now().UTC().After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	baseRole := models.RoleStudent
	if invite.BaseRole != nil {
		baseRole = *invite.BaseRole
	} else if invite.RoleID != nil {
		var role models.Role
		if err := s.db.WithContext(ctx).First(&role, "id = ?", *invite.RoleID).Error; err != nil {
			return nil, fmt.Errorf("invite service: load role: %w", err)
		}
		baseRole = role.ParentRole
	}

	membership := &models.Membership{
		UserID:   userID,
		OrgID:    invite.OrgID,
		BaseRole: baseRole,
		RoleID:   invite.RoleID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(membership).Error; err != nil {
			return err
		}
		if invite.AudienceID != nil {
			if err := tx.Exec(
				"INSERT INTO audience_members (audience_id, membership_id) VALUES (?, ?)",
				*invite.AudienceID, membership.ID,
			).Error; err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		return tx.Model(invite).Updates(map[string]any{
			"accepted_at": now,
			"accepted_by": userID,
		}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("user is already a member of this organisation")
		}
		return nil, fmt.Errorf("invite service: accept invite: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "invite.accept",
		Resource: invite.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":  invite.OrgID,
			"user_id": userID,
		},
	})

	return membership, nil
}

func hashSecret(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
