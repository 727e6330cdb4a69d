package database

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format used for attendance keys.
const DayLayout = "2006-01-02"

// Day is a calendar date in DayLayout form. Attendance records are keyed by (identity, Day).
type Day string

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: expected YYYY-MM-DD", s)
	}
	return DayOf(t), nil
}

func (d Day) String() string {
	return string(d)
}

// AttendanceStatus is the status decided when a record is created.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
)

// Record sources
const (
	SourceFace  = "face"
	SourceSweep = "sweep"
)

// Identity is a registry entry. Embedding is the opaque blob written by EncodeEmbedding,
// nil until the face has been enrolled.
type Identity struct {
	ID             int64
	Name           string
	Code           string // external roll/reference code, unique
	Embedding      []byte
	EmbeddingModel string
	EnrolledAt     *time.Time
	CreatedAt      time.Time
}

// Enrolled reports whether the identity has a stored face embedding.
func (i *Identity) Enrolled() bool {
	return len(i.Embedding) > 0
}

// EnrolledFace is an identity with its decoded embedding, as loaded for matching.
type EnrolledFace struct {
	IdentityID int64
	Name       string
	Code       string
	Embedding  []float32
}

// AttendanceRecord is the single attendance row for an identity on a day.
type AttendanceRecord struct {
	ID         int64
	IdentityID int64
	Day        Day
	CheckIn    time.Time
	CheckOut   *time.Time
	Status     AttendanceStatus
	Source     string
	SessionID  string

	// Optional quality scores captured with a face check-in
	DetectionScore *float64
	MatchDistance  *float64
}

// CheckedOut reports whether the record already carries a check-out time.
func (r *AttendanceRecord) CheckedOut() bool {
	return r.CheckOut != nil
}

// AttendanceEntry is a record joined with the identity it belongs to.
type AttendanceEntry struct {
	AttendanceRecord
	Name string
	Code string
}

// Neighbour is an enrolled identity with its cosine distance to a query embedding.
type Neighbour struct {
	IdentityID int64   `json:"identity_id"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	Distance   float64 `json:"distance"`
}

// DaySummary aggregates one day of attendance.
type DaySummary struct {
	Day             Day `json:"day"`
	TotalIdentities int `json:"total_identities"`
	Records         int `json:"records"`
	Present         int `json:"present"` // present + late
	Late            int `json:"late"`
	Absent          int `json:"absent"`
	CheckedOut      int `json:"checked_out"`
	NotRecorded     int `json:"not_recorded"`
}

// IdentityAttendance is the per-identity report over a date range.
type IdentityAttendance struct {
	IdentityID        int64   `json:"identity_id"`
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	DaysRecorded      int     `json:"days_recorded"`
	DaysAttended      int     `json:"days_attended"`
	DaysLate          int     `json:"days_late"`
	AttendancePercent float64 `json:"attendance_percent"`
	AvgMatchDistance  float64 `json:"avg_match_distance"`
	AvgDetectionScore float64 `json:"avg_detection_score"`
}
