// Package attendance decides per-day attendance transitions and finalizes absentees.
package attendance

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// LatePolicy marks check-ins strictly after a daily wall-clock cutoff as late.
type LatePolicy struct {
	Hour, Minute, Second int
}

// DefaultLatePolicy is the 09:00:00 cutoff.
var DefaultLatePolicy = LatePolicy{Hour: 9}

// LatePolicyFromConfig parses the configured cutoff.
func LatePolicyFromConfig(cfg *config.PolicyConfig) (LatePolicy, error) {
	h, m, s, err := cfg.Cutoff()
	if err != nil {
		return LatePolicy{}, err
	}
	return LatePolicy{Hour: h, Minute: m, Second: s}, nil
}

// CutoffOn returns the cutoff instant on t's calendar day in t's location.
func (p LatePolicy) CutoffOn(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, p.Hour, p.Minute, p.Second, 0, t.Location())
}

// IsLate reports whether t is strictly after the cutoff; the cutoff itself is on time.
func (p LatePolicy) IsLate(t time.Time) bool {
	return t.After(p.CutoffOn(t))
}

// StatusAt returns the status a check-in at t is created with.
func (p LatePolicy) StatusAt(t time.Time) database.AttendanceStatus {
	if p.IsLate(t) {
		return database.StatusLate
	}
	return database.StatusPresent
}
