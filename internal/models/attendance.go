package models

import "time"

// AttendanceStatus enumerates per-member attendance marks.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether the status is a known attendance mark.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// AttendanceSession captures one roll call for an audience on a given date.
type AttendanceSession struct {
	BaseModel

	OrgID      string    `gorm:"type:uuid;not null;index" json:"org_id"`
	AudienceID string    `gorm:"type:uuid;not null;index" json:"audience_id"`
	Date       time.Time `gorm:"not null;index" json:"date"`
	RecordedBy string    `gorm:"type:uuid" json:"recorded_by"`

	Records []AttendanceRecord `gorm:"foreignKey:SessionID" json:"records,omitempty"`
}

// AttendanceRecord is one member's mark within a session. Records are
// PATCHable after the fact for corrections.
type AttendanceRecord struct {
	BaseModel

	SessionID    string           `gorm:"type:uuid;not null;index" json:"session_id"`
	MembershipID string           `gorm:"type:uuid;not null;index" json:"membership_id"`
	Status       AttendanceStatus `gorm:"not null" json:"status"`
	Note         string           `json:"note,omitempty"`
}
