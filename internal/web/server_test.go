package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func newTestServer(t *testing.T) (*Server, *mock.MockAttendanceRepository) {
	t.Helper()
	identities := mock.NewMockIdentityRepository()
	records := mock.NewMockAttendanceRepository()
	blob, err := database.EncodeEmbedding([]float32{1, 0, 0}, "VGG-Face+opencv")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	identities.AddIdentity(database.Identity{Name: "Alice", Code: "R001", Embedding: blob, EmbeddingModel: "VGG-Face+opencv"})
	identities.AddIdentity(database.Identity{Name: "Bob", Code: "R002"})

	store := facematch.NewStore(identities, "VGG-Face+opencv")
	guard := facematch.NewGuard(store, facematch.NewMatcher(0.7, 0.4))
	svc := &handlers.Services{
		Identities: identities,
		Records:    records,
		Enroller:   facematch.NewEnroller(identities, guard, "VGG-Face+opencv"),
		Reporter:   attendance.NewReporter(identities, records),
		Sweeper:    attendance.NewSweeper(identities, records, attendance.NewKeyedMutex()),
		Now:        func() time.Time { return time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC) },
	}
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 8080}}
	return NewServer(cfg, svc), records
}

func TestRoutes(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/identities", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance?day=2024-03-04", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance/summary?day=2024-03-04", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance?day=yesterday", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/identities", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAbsenteesRoute(t *testing.T) {
	server, records := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/absentees?day=2024-03-04", strings.NewReader(""))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Marked int `json:"marked"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Marked != 1 || len(records.Records()) != 1 {
		t.Errorf("expected one absentee, got marked=%d records=%d", body.Marked, len(records.Records()))
	}
}

func TestSecurityHeaders(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff header, got %q", rec.Header().Get("X-Content-Type-Options"))
	}
}
