package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

func TestIdentitiesHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.identities.AddIdentity(database.Identity{Name: "Jan Novák", Code: "R10"})
	env.identities.AddIdentity(database.Identity{Name: "Eva Svobodová", Code: "R2"})
	env.enroll(t, "Petr Dvořák", "R1", []float32{1, 0, 0})
	handler := NewIdentitiesHandler(env.svc)

	t.Run("natural code order", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

		assertStatusCode(t, recorder, http.StatusOK)
		var result []IdentityResponse
		parseJSONResponse(t, recorder, &result)
		if len(result) != 3 {
			t.Fatalf("expected 3 identities, got %d", len(result))
		}
		got := []string{result[0].Code, result[1].Code, result[2].Code}
		if got[0] != "R1" || got[1] != "R2" || got[2] != "R10" {
			t.Errorf("expected R1, R2, R10, got %v", got)
		}
		if !result[0].Enrolled || result[1].Enrolled {
			t.Errorf("unexpected enrolled flags %+v", result)
		}
	})

	t.Run("diacritic insensitive search", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities?search=novak", nil))

		var result []IdentityResponse
		parseJSONResponse(t, recorder, &result)
		if len(result) != 1 || result[0].Code != "R10" {
			t.Errorf("expected only Jan Novák, got %+v", result)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		env.identities.ListError = errors.New("db down")
		defer func() { env.identities.ListError = nil }()

		recorder := httptest.NewRecorder()
		handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))
		assertStatusCode(t, recorder, http.StatusInternalServerError)
	})
}

func TestIdentitiesHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	handler := NewIdentitiesHandler(env.svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"created", `{"name":"Alice","code":"R001"}`, http.StatusCreated},
		{"duplicate code", `{"name":"Someone","code":"R001"}`, http.StatusConflict},
		{"missing code", `{"name":"Bob"}`, http.StatusBadRequest},
		{"invalid json", `{"name":`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/identities", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()
			handler.Create(recorder, req)
			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}

	if n, _ := env.identities.CountIdentities(t.Context()); n != 1 {
		t.Errorf("expected exactly one identity, got %d", n)
	}
}

func TestIdentitiesHandler_RegisterFace(t *testing.T) {
	t.Run("enrolls", func(t *testing.T) {
		env := newTestEnv(t)
		env.identities.AddIdentity(database.Identity{Name: "Alice", Code: "R001"})
		handler := NewIdentitiesHandler(env.svc)

		req := requestWithChiParams(photoUpload(t, "/api/v1/identities/R001/face"), map[string]string{"code": "R001"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		var result IdentityResponse
		parseJSONResponse(t, recorder, &result)
		if !result.Enrolled || result.EmbeddingModel != testModel {
			t.Errorf("expected enrolled identity, got %+v", result)
		}
		if env.identities.SetEmbeddingCall != 1 {
			t.Errorf("expected one embedding write, got %d", env.identities.SetEmbeddingCall)
		}
	})

	t.Run("duplicate face names the conflict", func(t *testing.T) {
		env := newTestEnv(t)
		env.enroll(t, "Alice", "R001", []float32{1, 0, 0})
		env.identities.AddIdentity(database.Identity{Name: "Bob", Code: "R002"})
		handler := NewIdentitiesHandler(env.svc)

		req := requestWithChiParams(photoUpload(t, "/api/v1/identities/R002/face"), map[string]string{"code": "R002"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusConflict)
		var result DuplicateFaceResponse
		parseJSONResponse(t, recorder, &result)
		if result.ConflictName != "Alice" || result.ConflictCode != "R001" {
			t.Errorf("expected conflict with Alice, got %+v", result)
		}
		if env.identities.SetEmbeddingCall != 0 {
			t.Error("nothing must be written for a duplicate")
		}
	})

	t.Run("re-enrolling the same identity is allowed", func(t *testing.T) {
		env := newTestEnv(t)
		env.enroll(t, "Alice", "R001", []float32{1, 0, 0})
		handler := NewIdentitiesHandler(env.svc)

		req := requestWithChiParams(photoUpload(t, "/api/v1/identities/R001/face"), map[string]string{"code": "R001"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)
		assertStatusCode(t, recorder, http.StatusOK)
	})

	t.Run("no face", func(t *testing.T) {
		env := newTestEnv(t)
		env.identities.AddIdentity(database.Identity{Name: "Alice", Code: "R001"})
		env.analyzer.err = vision.ErrNoFaceDetected
		handler := NewIdentitiesHandler(env.svc)

		req := requestWithChiParams(photoUpload(t, "/api/v1/identities/R001/face"), map[string]string{"code": "R001"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)

		assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
		assertJSONError(t, recorder, "no face detected")
	})

	t.Run("unknown identity", func(t *testing.T) {
		env := newTestEnv(t)
		handler := NewIdentitiesHandler(env.svc)

		req := requestWithChiParams(photoUpload(t, "/api/v1/identities/R404/face"), map[string]string{"code": "R404"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)
		assertStatusCode(t, recorder, http.StatusNotFound)
	})

	t.Run("missing photo", func(t *testing.T) {
		env := newTestEnv(t)
		handler := NewIdentitiesHandler(env.svc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/identities/R001/face", bytes.NewReader(nil))
		req = requestWithChiParams(req, map[string]string{"code": "R001"})
		recorder := httptest.NewRecorder()
		handler.RegisterFace(recorder, req)
		assertStatusCode(t, recorder, http.StatusBadRequest)
	})
}
