package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrIdentityExists is returned when creating an identity whose code is already registered.
	ErrIdentityExists = errors.New("identity with this code already exists")
	// ErrSchemaMismatch is returned by ValidateSchema when report columns are missing.
	ErrSchemaMismatch = errors.New("attendance schema mismatch")
)

// IdentityReader provides read-only access to the identity registry
type IdentityReader interface {
	// GetIdentityByCode retrieves an identity by its external code, returns nil if not found
	GetIdentityByCode(ctx context.Context, code string) (*Identity, error)
	// ListIdentities returns every identity ordered by ID
	ListIdentities(ctx context.Context) ([]Identity, error)
	// ListEnrolled returns identities that have an embedding, ordered by ID.
	// The order is the load order used for tie-breaking during recognition.
	ListEnrolled(ctx context.Context) ([]Identity, error)
	// CountIdentities returns the total number of identities
	CountIdentities(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to the identity registry
type IdentityWriter interface {
	IdentityReader

	// CreateIdentity adds a person record, returns ErrIdentityExists for a duplicate code
	CreateIdentity(ctx context.Context, name, code string) (*Identity, error)
	// SetEmbedding stores (or overwrites) the enrolled embedding blob for an identity
	SetEmbedding(ctx context.Context, identityID int64, blob []byte, modelTag string) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// GetRecord retrieves the record for (identity, day), returns nil if none exists
	GetRecord(ctx context.Context, identityID int64, day Day) (*AttendanceRecord, error)
	// ListRecordsByDay returns the day's records joined with identities, newest check-in first
	ListRecordsByDay(ctx context.Context, day Day) ([]AttendanceEntry, error)
	// ListRecordsBetween returns records for days in [from, to], ordered by day then identity
	ListRecordsBetween(ctx context.Context, from, to Day) ([]AttendanceRecord, error)
	// RecordedIdentityIDs returns the distinct identities having any record on day
	RecordedIdentityIDs(ctx context.Context, day Day) ([]int64, error)
}

// AttendanceWriter provides the conditional mutations the state machine relies on.
// Both operations are atomic with respect to other writers of the same (identity, day) key.
type AttendanceWriter interface {
	AttendanceReader

	// InsertRecordIfAbsent inserts rec only if no record exists for (rec.IdentityID, rec.Day).
	// Returns false without error when a record already exists. Sets rec.ID on insert.
	InsertRecordIfAbsent(ctx context.Context, rec *AttendanceRecord) (bool, error)
	// SetCheckOutIfEmpty sets the check-out time only if it is still empty.
	// Returns false without error when the record was already checked out.
	SetCheckOutIfEmpty(ctx context.Context, recordID int64, at time.Time) (bool, error)
}

// SchemaValidator is implemented by stores that can verify the attendance columns
// reports depend on before running them.
type SchemaValidator interface {
	ValidateSchema(ctx context.Context) error
}

// NeighbourFinder is implemented by stores that can rank enrolled identities
// by cosine distance server-side.
type NeighbourFinder interface {
	NearestIdentities(ctx context.Context, embedding []float32, modelTag string, limit int) ([]Neighbour, error)
}

// ReportColumns are the attendance columns reports read. Reports are keyed on
// check_in; there is no separate timestamp column.
var ReportColumns = []string{"day", "check_in", "check_out", "status"}

// MissingColumnsError returns ErrSchemaMismatch naming every ReportColumns entry absent from found.
func MissingColumnsError(found map[string]bool) error {
	var missing []string
	for _, c := range ReportColumns {
		if !found[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: attendance table lacks %s", ErrSchemaMismatch, strings.Join(missing, ", "))
}
