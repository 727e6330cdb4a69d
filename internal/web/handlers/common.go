package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Services are the collaborators the API handlers operate on.
type Services struct {
	Identities database.IdentityWriter
	Records    database.AttendanceWriter
	Analyzer   vision.Analyzer
	Enroller   *facematch.Enroller
	Reporter   *attendance.Reporter
	Sweeper    *attendance.Sweeper
	Now        func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// dayParam reads ?day=YYYY-MM-DD, defaulting to today.
func (s *Services) dayParam(r *http.Request, name string) (database.Day, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return database.DayOf(s.now()), nil
	}
	return database.ParseDay(raw)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": database.BackendName(),
	})
}
