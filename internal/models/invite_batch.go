package models

// BatchMode distinguishes validation-only runs from committed sends.
type BatchMode string

const (
	BatchModeDryRun BatchMode = "dry_run"
	BatchModeCommit BatchMode = "commit"
)

// BatchStatus tracks the lifecycle of a submitted bulk invite job.
type BatchStatus string

const (
	BatchStatusQueued  BatchStatus = "queued"
	BatchStatusRunning BatchStatus = "running"
	BatchStatusDone    BatchStatus = "done"
	BatchStatusError   BatchStatus = "error"
)

// ItemOutcome records the fate of one bulk invite item.
type ItemOutcome string

const (
	ItemOutcomePending ItemOutcome = "pending"
	ItemOutcomeSent    ItemOutcome = "sent"
	ItemOutcomeFailed  ItemOutcome = "failed"
	ItemOutcomeSkipped ItemOutcome = "skipped"
)

// InviteBatch is a submitted bulk invite job. Status reads are side-effect
// free: polling never re-triggers sends.
type InviteBatch struct {
	BaseModel

	OrgID       string    `gorm:"type:uuid;not null;index" json:"org_id"`
	Mode        BatchMode `gorm:"not null" json:"mode"`
	SubmittedBy string    `gorm:"type:uuid" json:"submitted_by"`

	Status BatchStatus `gorm:"not null;default:queued;index" json:"status"`
	Error  string      `json:"error,omitempty"`

	SentCount    int `gorm:"default:0" json:"sent_count"`
	FailedCount  int `gorm:"default:0" json:"failed_count"`
	SkippedCount int `gorm:"default:0" json:"skipped_count"`

	Items []InviteBatchItem `gorm:"foreignKey:BatchID" json:"items,omitempty"`
}

// InviteBatchItem is the per-email outcome record inside a batch.
type InviteBatchItem struct {
	BaseModel

	BatchID string `gorm:"type:uuid;not null;index" json:"batch_id"`
	Email   string `gorm:"not null" json:"email"`

	BaseRole *BaseRole `json:"base_role,omitempty"`
	RoleID   *string   `gorm:"type:uuid" json:"role_id,omitempty"`

	AudienceID *string `gorm:"type:uuid" json:"audience_id,omitempty"`

	Outcome ItemOutcome `gorm:"not null;default:pending" json:"outcome"`
	Reason  string      `json:"reason,omitempty"`

	InviteID *string `gorm:"type:uuid" json:"invite_id,omitempty"`
}
