package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

const testModel = "VGG-Face+opencv"

// stubAnalyzer returns one face with a fixed embedding, or err
type stubAnalyzer struct {
	embedding []float32
	err       error
}

func (a *stubAnalyzer) Detect(ctx context.Context, frame image.Image) ([]vision.Face, error) {
	if a.err != nil {
		return nil, a.err
	}
	return []vision.Face{{Box: image.Rect(5, 5, 25, 25), Score: 0.9}}, nil
}

func (a *stubAnalyzer) Embed(ctx context.Context, face vision.Face) ([]float32, error) {
	return a.embedding, nil
}

func (a *stubAnalyzer) ModelTag() string { return testModel }

// testEnv wires handlers to in-memory mocks
type testEnv struct {
	identities *mock.MockIdentityRepository
	records    *mock.MockAttendanceRepository
	analyzer   *stubAnalyzer
	svc        *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		identities: mock.NewMockIdentityRepository(),
		records:    mock.NewMockAttendanceRepository(),
		analyzer:   &stubAnalyzer{embedding: []float32{1, 0, 0}},
	}
	store := facematch.NewStore(env.identities, testModel)
	guard := facematch.NewGuard(store, facematch.NewMatcher(0.7, 0.4))
	locks := attendance.NewKeyedMutex()
	env.svc = &Services{
		Identities: env.identities,
		Records:    env.records,
		Analyzer:   env.analyzer,
		Enroller:   facematch.NewEnroller(env.identities, guard, testModel),
		Reporter:   attendance.NewReporter(env.identities, env.records),
		Sweeper:    attendance.NewSweeper(env.identities, env.records, locks),
		Now:        func() time.Time { return time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC) },
	}
	return env
}

// enroll adds an identity with a stored embedding
func (env *testEnv) enroll(t *testing.T, name, code string, vec []float32) database.Identity {
	t.Helper()
	blob, err := database.EncodeEmbedding(vec, testModel)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	identity := env.identities.AddIdentity(database.Identity{Name: name, Code: code, Embedding: blob, EmbeddingModel: testModel})
	env.records.SetIdentityName(identity.ID, name, code)
	return identity
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// photoUpload builds a multipart request carrying a small JPEG in the "photo" field
func photoUpload(t *testing.T, path string) *http.Request {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for x := 0; x < 40; x++ {
		for y := 0; y < 40; y++ {
			img.Set(x, y, color.RGBA{200, 150, 120, 255})
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "face.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if err := jpeg.Encode(part, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
