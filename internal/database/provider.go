package database

import (
	"context"
	"errors"
	"sync"
)

var (
	backendMu          sync.RWMutex
	backendName        string
	backendIdentities  func() IdentityWriter
	backendAttendance  func() AttendanceWriter
	backendInitialized bool
)

// RegisterBackend registers the repository constructors of the active storage backend.
// This is called by the postgres and sqlite packages to avoid import cycles.
func RegisterBackend(name string, identities func() IdentityWriter, attendance func() AttendanceWriter) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	backendIdentities = identities
	backendAttendance = attendance
	backendInitialized = true
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendInitialized
}

// BackendName returns the name of the registered backend ("postgres", "sqlite").
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

var errNotInitialized = errors.New("storage backend not initialized: set DATABASE_URL or DATABASE_PATH")

// GetIdentityWriter returns the identity repository of the registered backend
func GetIdentityWriter(ctx context.Context) (IdentityWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if !backendInitialized {
		return nil, errNotInitialized
	}
	if backendIdentities == nil {
		return nil, errors.New("identity repository not registered")
	}
	return backendIdentities(), nil
}

// GetAttendanceWriter returns the attendance repository of the registered backend
func GetAttendanceWriter(ctx context.Context) (AttendanceWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if !backendInitialized {
		return nil, errNotInitialized
	}
	if backendAttendance == nil {
		return nil, errors.New("attendance repository not registered")
	}
	return backendAttendance(), nil
}
