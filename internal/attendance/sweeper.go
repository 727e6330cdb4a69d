package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Sweeper creates absent records for enrolled identities never seen on a day.
type Sweeper struct {
	identities database.IdentityReader
	records    database.AttendanceWriter
	locks      *KeyedMutex
}

// NewSweeper creates a sweeper. Pass the state machine's locks when both run in one process.
func NewSweeper(identities database.IdentityReader, records database.AttendanceWriter, locks *KeyedMutex) *Sweeper {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Sweeper{identities: identities, records: records, locks: locks}
}

// FinalizeDay creates one absent record, stamped at, for every enrolled identity with
// no record on day, and returns how many were created. The difference set is derived
// from storage on every call, so repeated calls never duplicate records.
func (s *Sweeper) FinalizeDay(ctx context.Context, day database.Day, at time.Time) (int, error) {
	enrolled, err := s.identities.ListEnrolled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enrolled identities: %w", err)
	}
	recorded, err := s.records.RecordedIdentityIDs(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list recorded identities: %w", err)
	}

	seen := make(map[int64]bool, len(recorded))
	for _, id := range recorded {
		seen[id] = true
	}

	created := 0
	for _, identity := range enrolled {
		if seen[identity.ID] {
			continue
		}
		inserted, err := s.markAbsent(ctx, identity.ID, day, at)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

func (s *Sweeper) markAbsent(ctx context.Context, identityID int64, day database.Day, at time.Time) (bool, error) {
	unlock := s.locks.Lock(identityID, day)
	defer unlock()

	rec := database.AttendanceRecord{
		IdentityID: identityID,
		Day:        day,
		CheckIn:    at,
		Status:     database.StatusAbsent,
		Source:     database.SourceSweep,
	}
	inserted, err := s.records.InsertRecordIfAbsent(ctx, &rec)
	if err != nil {
		return false, fmt.Errorf("insert absent record for identity %d: %w", identityID, err)
	}
	return inserted, nil
}
