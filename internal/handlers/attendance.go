package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type AttendanceHandler struct {
	svc *services.AttendanceService
}

func NewAttendanceHandler(db *gorm.DB) (*AttendanceHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewAttendanceService(db, audit)
	if err != nil {
		return nil, err
	}
	return &AttendanceHandler{svc: svc}, nil
}

type attendanceMarkRequest struct {
	MembershipID string `json:"membership_id" validate:"required,uuid4"`
	Status       string `json:"status" validate:"required,oneof=present absent late excused"`
	Note         string `json:"note" validate:"omitempty,max=512"`
}

type recordSessionRequest struct {
	Date  string                  `json:"date" validate:"required"`
	Marks []attendanceMarkRequest `json:"marks" validate:"required,min=1,dive"`
}

type updateRecordRequest struct {
	Status string  `json:"status" validate:"required,oneof=present absent late excused"`
	Note   *string `json:"note" validate:"omitempty,max=512"`
}

// POST /api/orgs/:id/audiences/:audienceID/attendance
func (h *AttendanceHandler) Record(c *gin.Context) {
	var body recordSessionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		response.Error(c, errors.NewBadRequest("date must be formatted YYYY-MM-DD"))
		return
	}

	marks := make([]services.RecordMarkInput, 0, len(body.Marks))
	for _, mark := range body.Marks {
		marks = append(marks, services.RecordMarkInput{
			MembershipID: mark.MembershipID,
			Status:       models.AttendanceStatus(mark.Status),
			Note:         mark.Note,
		})
	}

	session, err := h.svc.RecordSession(requestContext(c), c.Param("id"), c.Param("audienceID"), currentUserID(c), date, marks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// GET /api/orgs/:id/audiences/:audienceID/attendance
func (h *AttendanceHandler) List(c *gin.Context) {
	sessions, err := h.svc.ListSessions(requestContext(c), c.Param("id"), c.Param("audienceID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// PATCH /api/orgs/:id/attendance/records/:recordID
func (h *AttendanceHandler) UpdateRecord(c *gin.Context) {
	var body updateRecordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	record, err := h.svc.UpdateRecord(requestContext(c), c.Param("id"), c.Param("recordID"), models.AttendanceStatus(body.Status), body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}
