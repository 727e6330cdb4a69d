// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockIdentityRepository is a mock implementation of database.IdentityWriter
type MockIdentityRepository struct {
	mu         sync.RWMutex
	identities map[int64]*database.Identity
	nextID     int64

	// Error injection
	GetError         error
	ListError        error
	ListEnrolledErr  error
	CountError       error
	CreateError      error
	SetEmbeddingErr  error
	SetEmbeddingCall int
}

// NewMockIdentityRepository creates a new mock identity repository
func NewMockIdentityRepository() *MockIdentityRepository {
	return &MockIdentityRepository{
		identities: make(map[int64]*database.Identity),
	}
}

// AddIdentity adds an identity to the mock store, assigning an ID when it has none
func (m *MockIdentityRepository) AddIdentity(identity database.Identity) database.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.ID == 0 {
		m.nextID++
		identity.ID = m.nextID
	} else if identity.ID > m.nextID {
		m.nextID = identity.ID
	}
	m.identities[identity.ID] = &identity
	return identity
}

// Identity returns a copy of the stored identity, or nil
func (m *MockIdentityRepository) Identity(id int64) *database.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if identity, ok := m.identities[id]; ok {
		cp := *identity
		return &cp
	}
	return nil
}

// GetIdentityByCode retrieves an identity by code
func (m *MockIdentityRepository) GetIdentityByCode(ctx context.Context, code string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, identity := range m.identities {
		if identity.Code == code {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockIdentityRepository) sorted(enrolledOnly bool) []database.Identity {
	result := make([]database.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		if enrolledOnly && !identity.Enrolled() {
			continue
		}
		result = append(result, *identity)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ListIdentities returns all identities ordered by ID
func (m *MockIdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(false), nil
}

// ListEnrolled returns identities with an embedding ordered by ID
func (m *MockIdentityRepository) ListEnrolled(ctx context.Context) ([]database.Identity, error) {
	if m.ListEnrolledErr != nil {
		return nil, m.ListEnrolledErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(true), nil
}

// CountIdentities returns the number of identities
func (m *MockIdentityRepository) CountIdentities(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// CreateIdentity adds a new identity
func (m *MockIdentityRepository) CreateIdentity(ctx context.Context, name, code string) (*database.Identity, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Code == code {
			return nil, database.ErrIdentityExists
		}
	}
	m.nextID++
	identity := &database.Identity{ID: m.nextID, Name: name, Code: code, CreatedAt: time.Now()}
	m.identities[identity.ID] = identity
	cp := *identity
	return &cp, nil
}

// SetEmbedding stores the embedding blob for an identity
func (m *MockIdentityRepository) SetEmbedding(ctx context.Context, identityID int64, blob []byte, modelTag string) error {
	if m.SetEmbeddingErr != nil {
		return m.SetEmbeddingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetEmbeddingCall++
	identity, ok := m.identities[identityID]
	if !ok {
		return nil
	}
	now := time.Now()
	identity.Embedding = blob
	identity.EmbeddingModel = modelTag
	identity.EnrolledAt = &now
	return nil
}

// MockAttendanceRepository is a mock implementation of database.AttendanceWriter.
// Conditional writes behave like the SQL stores: one record per (identity, day).
type MockAttendanceRepository struct {
	mu      sync.RWMutex
	records map[int64]*database.AttendanceRecord
	names   map[int64][2]string
	nextID  int64

	// Error injection
	GetError      error
	ListError     error
	RecordedError error
	InsertError   error
	CheckOutError error
	InsertCalls   int
	CheckOutCalls int
}

// NewMockAttendanceRepository creates a new mock attendance repository
func NewMockAttendanceRepository() *MockAttendanceRepository {
	return &MockAttendanceRepository{
		records: make(map[int64]*database.AttendanceRecord),
		names:   make(map[int64][2]string),
	}
}

// SetIdentityName registers the name and code used when listing joined entries
func (m *MockAttendanceRepository) SetIdentityName(identityID int64, name, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[identityID] = [2]string{name, code}
}

// AddRecord inserts a record unconditionally
func (m *MockAttendanceRepository) AddRecord(rec database.AttendanceRecord) database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.records[rec.ID] = &rec
	return rec
}

// Records returns a copy of all records ordered by ID
func (m *MockAttendanceRepository) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.AttendanceRecord, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockAttendanceRepository) find(identityID int64, day database.Day) *database.AttendanceRecord {
	for _, rec := range m.records {
		if rec.IdentityID == identityID && rec.Day == day {
			return rec
		}
	}
	return nil
}

// GetRecord retrieves the record for (identity, day)
func (m *MockAttendanceRepository) GetRecord(ctx context.Context, identityID int64, day database.Day) (*database.AttendanceRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.find(identityID, day); rec != nil {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

// ListRecordsByDay returns the day's entries, newest check-in first
func (m *MockAttendanceRepository) ListRecordsByDay(ctx context.Context, day database.Day) ([]database.AttendanceEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.AttendanceEntry
	for _, rec := range m.records {
		if rec.Day != day {
			continue
		}
		names := m.names[rec.IdentityID]
		result = append(result, database.AttendanceEntry{AttendanceRecord: *rec, Name: names[0], Code: names[1]})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CheckIn.After(result[j].CheckIn) })
	return result, nil
}

// ListRecordsBetween returns records with from <= day <= to
func (m *MockAttendanceRepository) ListRecordsBetween(ctx context.Context, from, to database.Day) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.AttendanceRecord
	for _, rec := range m.records {
		if rec.Day >= from && rec.Day <= to {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return result[i].Day < result[j].Day
		}
		return result[i].IdentityID < result[j].IdentityID
	})
	return result, nil
}

// RecordedIdentityIDs returns identities having any record on day
func (m *MockAttendanceRepository) RecordedIdentityIDs(ctx context.Context, day database.Day) ([]int64, error) {
	if m.RecordedError != nil {
		return nil, m.RecordedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, rec := range m.records {
		if rec.Day == day && !seen[rec.IdentityID] {
			seen[rec.IdentityID] = true
			ids = append(ids, rec.IdentityID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// InsertRecordIfAbsent inserts only when no record exists for the key
func (m *MockAttendanceRepository) InsertRecordIfAbsent(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	if m.InsertError != nil {
		return false, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.find(rec.IdentityID, rec.Day) != nil {
		return false, nil
	}
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.records[cp.ID] = &cp
	return true, nil
}

// SetCheckOutIfEmpty sets the check-out only when still empty
func (m *MockAttendanceRepository) SetCheckOutIfEmpty(ctx context.Context, recordID int64, at time.Time) (bool, error) {
	if m.CheckOutError != nil {
		return false, m.CheckOutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckOutCalls++
	rec, ok := m.records[recordID]
	if !ok || rec.CheckOut != nil {
		return false, nil
	}
	rec.CheckOut = &at
	return true, nil
}
