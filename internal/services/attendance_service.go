package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

var (
	// ErrSessionNotFound indicates the attendance session does not exist.
	ErrSessionNotFound = apperrors.New("SESSION_NOT_FOUND", "Attendance session not found", http.StatusNotFound)
	// ErrRecordNotFound indicates the attendance record does not exist.
	ErrRecordNotFound = apperrors.New("RECORD_NOT_FOUND", "Attendance record not found", http.StatusNotFound)
)

// RecordMarkInput is one member's mark in a session submission.
type RecordMarkInput struct {
	MembershipID string
	Status       models.AttendanceStatus
	Note         string
}

// AttendanceService records per-audience roll calls.
type AttendanceService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(db *gorm.DB, auditService *AuditService) (*AttendanceService, error) {
	if db == nil {
		return nil, errors.New("attendance service: db is required")
	}
	return &AttendanceService{db: db, auditService: auditService}, nil
}

// RecordSession creates a session for the audience with one record per mark.
// Every mark must reference a member of the audience's roster.
func (s *AttendanceService) RecordSession(ctx context.Context, orgID, audienceID, recordedBy string, date time.Time, marks []RecordMarkInput) (*models.AttendanceSession, error) {
	ctx = ensureContext(ctx)

	if len(marks) == 0 {
		return nil, apperrors.NewBadRequest("session has no records")
	}

	var audience models.Audience
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&audience, "id = ?", audienceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAudienceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendance service: load audience: %w", err)
	}

	roster, err := s.rosterIDs(ctx, audienceID)
	if err != nil {
		return nil, err
	}

	for _, mark := range marks {
		if !mark.Status.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown attendance status %q", mark.Status))
		}
		if !roster[mark.MembershipID] {
			return nil, apperrors.NewValidation(fmt.Sprintf("membership %s is not on the audience roster", mark.MembershipID))
		}
	}

	session := &models.AttendanceSession{
		OrgID:      orgID,
		AudienceID: audienceID,
		Date:       date.UTC().Truncate(24 * time.Hour),
		RecordedBy: recordedBy,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		for _, mark := range marks {
			record := models.AttendanceRecord{
				SessionID:    session.ID,
				MembershipID: mark.MembershipID,
				Status:       mark.Status,
				Note:         mark.Note,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attendance service: record session: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "attendance.record",
		Resource: session.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":      orgID,
			"audience_id": audienceID,
			"records":     len(marks),
		},
	})

	return s.GetSession(ctx, orgID, session.ID)
}

// GetSession loads a session with its records.
func (s *AttendanceService) GetSession(ctx context.Context, orgID, id string) (*models.AttendanceSession, error) {
	ctx = ensureContext(ctx)

	var session models.AttendanceSession
	err := s.db.WithContext(ctx).
		Preload("Records").
		Where("org_id = ?", orgID).
		First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendance service: get session: %w", err)
	}
	return &session, nil
}

// ListSessions returns an audience's sessions, newest first.
func (s *AttendanceService) ListSessions(ctx context.Context, orgID, audienceID string) ([]models.AttendanceSession, error) {
	ctx = ensureContext(ctx)

	var sessions []models.AttendanceSession
	err := s.db.WithContext(ctx).
		Preload("Records").
		Where("org_id = ? AND audience_id = ?", orgID, audienceID).
		Order("date DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("attendance service: list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateRecord corrects a single mark after the fact.
func (s *AttendanceService) UpdateRecord(ctx context.Context, orgID, recordID string, status models.AttendanceStatus, note *string) (*models.AttendanceRecord, error) {
	ctx = ensureContext(ctx)

	if !status.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown attendance status %q", status))
	}

	var record models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN attendance_sessions ON attendance_sessions.id = attendance_records.session_id").
		Where("attendance_sessions.org_id = ?", orgID).
		First(&record, "attendance_records.id = ?", recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendance service: load record: %w", err)
	}

	updates := map[string]any{"status": status}
	if note != nil {
		updates["note"] = *note
	}

	if err := s.db.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("attendance service: update record: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "attendance.correct",
		Resource: record.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return &record, nil
}

func (s *AttendanceService) rosterIDs(ctx context.Context, audienceID string) (map[string]bool, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Table("audience_members").
		Where("audience_id = ?", audienceID).
		Pluck("membership_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("attendance service: load roster: %w", err)
	}

	roster := make(map[string]bool, len(ids))
	for _, id := range ids {
		roster[id] = true
	}
	return roster, nil
}
