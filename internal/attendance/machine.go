package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Outcome is the transition applied by a recognition event.
type Outcome string

const (
	OutcomeCheckedIn       Outcome = "checked_in"
	OutcomeCheckedOut      Outcome = "checked_out"
	OutcomeAlreadyComplete Outcome = "already_complete"
)

// maxCommitAttempts bounds the re-read loop when a conditional write loses a race.
const maxCommitAttempts = 3

var errCommitContention = errors.New("attendance record changed concurrently")

// Evidence is the optional quality data recorded with a face check-in.
type Evidence struct {
	SessionID      string
	DetectionScore *float64
	MatchDistance  *float64
}

// Result is the transition taken and the record as it stands afterwards.
type Result struct {
	Outcome Outcome
	Record  database.AttendanceRecord
}

// StateMachine drives NoRecord -> CheckedIn -> CheckedOut per (identity, day).
// Every decision is taken on freshly read persisted state.
type StateMachine struct {
	records database.AttendanceWriter
	policy  LatePolicy
	locks   *KeyedMutex
}

// NewStateMachine creates a state machine. locks may be shared with a Sweeper; nil creates a private one.
func NewStateMachine(records database.AttendanceWriter, policy LatePolicy, locks *KeyedMutex) *StateMachine {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &StateMachine{records: records, policy: policy, locks: locks}
}

// Policy returns the late policy in use.
func (m *StateMachine) Policy() LatePolicy {
	return m.policy
}

// OnRecognition applies a recognition of identityID at time at.
func (m *StateMachine) OnRecognition(ctx context.Context, identityID int64, at time.Time, ev Evidence) (*Result, error) {
	day := database.DayOf(at)
	unlock := m.locks.Lock(identityID, day)
	defer unlock()

	for range maxCommitAttempts {
		res, err := m.apply(ctx, identityID, day, at, ev)
		if errors.Is(err, errCommitContention) {
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("identity %d on %s: %w", identityID, day, errCommitContention)
}

func (m *StateMachine) apply(ctx context.Context, identityID int64, day database.Day, at time.Time, ev Evidence) (*Result, error) {
	rec, err := m.records.GetRecord(ctx, identityID, day)
	if err != nil {
		return nil, fmt.Errorf("read attendance record: %w", err)
	}

	switch {
	case rec == nil:
		created := database.AttendanceRecord{
			IdentityID:     identityID,
			Day:            day,
			CheckIn:        at,
			Status:         m.policy.StatusAt(at),
			Source:         database.SourceFace,
			SessionID:      ev.SessionID,
			DetectionScore: ev.DetectionScore,
			MatchDistance:  ev.MatchDistance,
		}
		inserted, err := m.records.InsertRecordIfAbsent(ctx, &created)
		if err != nil {
			return nil, fmt.Errorf("insert check-in: %w", err)
		}
		if !inserted {
			return nil, errCommitContention
		}
		return &Result{Outcome: OutcomeCheckedIn, Record: created}, nil

	// Absent records are terminal, like a completed day.
	case rec.CheckedOut() || rec.Status == database.StatusAbsent:
		return &Result{Outcome: OutcomeAlreadyComplete, Record: *rec}, nil

	default:
		updated, err := m.records.SetCheckOutIfEmpty(ctx, rec.ID, at)
		if err != nil {
			return nil, fmt.Errorf("set check-out: %w", err)
		}
		if !updated {
			return nil, errCommitContention
		}
		rec.CheckOut = &at
		return &Result{Outcome: OutcomeCheckedOut, Record: *rec}, nil
	}
}
