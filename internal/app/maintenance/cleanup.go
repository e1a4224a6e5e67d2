package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultBatchRetentionDays = 30
	defaultInviteSpec         = "@daily"
	defaultAuditSpec          = "@daily"
	defaultBatchSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks such as purging expired
// invites, pruning stale audit logs, and removing finished invite batches.
type Cleaner struct {
	db             *gorm.DB
	audit          *services.AuditService
	cron           *cron.Cron
	now            func() time.Time
	log            *zap.Logger
	enabled        bool
	auditRetention int
	batchRetention int

	inviteSchedule string
	auditSchedule  string
	batchSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetention = days
		}
	}
}

// WithBatchRetentionDays adjusts how long finished invite batches are retained.
func WithBatchRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.batchRetention = days
		}
	}
}

// WithInviteSchedule overrides the cron specification for expired invite cleanup.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithBatchSchedule overrides the cron specification for finished batch cleanup.
func WithBatchSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.batchSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:             db,
		audit:          audit,
		now:            time.Now,
		auditRetention: defaultAuditRetentionDays,
		batchRetention: defaultBatchRetentionDays,
		inviteSchedule: defaultInviteSpec,
		auditSchedule:  defaultAuditSpec,
		batchSchedule:  defaultBatchSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.audit != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupInvites(ctx, c.db, c.now()); err != nil {
				c.log.Warn("invite cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}

		if _, err := c.cron.AddFunc(c.batchSchedule, func() {
			ctx := context.Background()
			cutoff := c.now().AddDate(0, 0, -c.batchRetention)
			if _, err := CleanupBatches(ctx, c.db, cutoff); err != nil {
				c.log.Warn("batch cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.auditRetention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.auditRetention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil {
		if _, err := CleanupInvites(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
		cutoff := c.now().AddDate(0, 0, -c.batchRetention)
		if _, err := CleanupBatches(ctx, c.db, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.auditRetention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.auditRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupInvites removes invites that expired without being accepted. Accepted
// invites are kept as the record of how a membership came to exist.
func CleanupInvites(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup invites: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("expires_at < ? AND accepted_at IS NULL", now).
		Delete(&models.Invite{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup invites: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupBatches removes finished invite batches (done or error) created before
// the cutoff, along with their item records.
func CleanupBatches(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup batches: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var removed int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.InviteBatch{}).
			Where("status IN ? AND created_at < ?", []models.BatchStatus{models.BatchStatusDone, models.BatchStatusError}, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("batch_id IN ?", ids).Delete(&models.InviteBatchItem{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&models.InviteBatch{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup batches: %w", err)
	}
	return removed, nil
}
