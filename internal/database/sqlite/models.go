package sqlite

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// identityModel corresponds to the 'identities' table.
type identityModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"not null"`
	Code           string `gorm:"not null;uniqueIndex"`
	Embedding      []byte `gorm:"column:embedding"`
	EmbeddingModel string `gorm:"not null;default:''"`
	EnrolledAt     *time.Time
	CreatedAt      time.Time
}

func (identityModel) TableName() string {
	return "identities"
}

func (m *identityModel) toIdentity() database.Identity {
	return database.Identity{
		ID:             m.ID,
		Name:           m.Name,
		Code:           m.Code,
		Embedding:      m.Embedding,
		EmbeddingModel: m.EmbeddingModel,
		EnrolledAt:     m.EnrolledAt,
		CreatedAt:      m.CreatedAt,
	}
}

// attendanceModel corresponds to the 'attendance_records' table.
// One row per identity and day.
type attendanceModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	IdentityID     int64     `gorm:"not null;uniqueIndex:idx_attendance_identity_day,priority:1"`
	Day            string    `gorm:"not null;size:10;index;uniqueIndex:idx_attendance_identity_day,priority:2"`
	CheckIn        time.Time `gorm:"not null"`
	CheckOut       *time.Time
	Status         string `gorm:"not null;check:status IN ('present','late','absent')"`
	Source         string `gorm:"not null;default:'face'"`
	SessionID      string `gorm:"not null;default:''"`
	DetectionScore *float64
	MatchDistance  *float64
}

func (attendanceModel) TableName() string {
	return "attendance_records"
}

func fromRecord(rec *database.AttendanceRecord) attendanceModel {
	return attendanceModel{
		IdentityID:     rec.IdentityID,
		Day:            rec.Day.String(),
		CheckIn:        rec.CheckIn,
		CheckOut:       rec.CheckOut,
		Status:         string(rec.Status),
		Source:         rec.Source,
		SessionID:      rec.SessionID,
		DetectionScore: rec.DetectionScore,
		MatchDistance:  rec.MatchDistance,
	}
}

func (m *attendanceModel) toRecord() database.AttendanceRecord {
	return database.AttendanceRecord{
		ID:             m.ID,
		IdentityID:     m.IdentityID,
		Day:            database.Day(m.Day),
		CheckIn:        m.CheckIn,
		CheckOut:       m.CheckOut,
		Status:         database.AttendanceStatus(m.Status),
		Source:         m.Source,
		SessionID:      m.SessionID,
		DetectionScore: m.DetectionScore,
		MatchDistance:  m.MatchDistance,
	}
}
