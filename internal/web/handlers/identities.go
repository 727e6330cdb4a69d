package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// IdentitiesHandler handles identity registry and face enrollment endpoints
type IdentitiesHandler struct {
	svc *Services
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(svc *Services) *IdentitiesHandler {
	return &IdentitiesHandler{svc: svc}
}

// IdentityResponse is the API view of an identity
type IdentityResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Code           string     `json:"code"`
	Enrolled       bool       `json:"enrolled"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
	EnrolledAt     *time.Time `json:"enrolled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toIdentityResponse(i *database.Identity) IdentityResponse {
	return IdentityResponse{
		ID:             i.ID,
		Name:           i.Name,
		Code:           i.Code,
		Enrolled:       i.Enrolled(),
		EmbeddingModel: i.EmbeddingModel,
		EnrolledAt:     i.EnrolledAt,
		CreatedAt:      i.CreatedAt,
	}
}

// List returns all identities in natural code order, optionally filtered by ?search=
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.svc.Identities.ListIdentities(r.Context())
	if err != nil {
		log.Printf("web: list identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	search := facematch.NormalizePersonName(r.URL.Query().Get("search"))
	result := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		if search != "" && !strings.Contains(facematch.NormalizePersonName(identities[i].Name), search) {
			continue
		}
		result = append(result, toIdentityResponse(&identities[i]))
	}
	sort.SliceStable(result, func(i, j int) bool { return natsort.Compare(result[i].Code, result[j].Code) })

	respondJSON(w, http.StatusOK, result)
}

// CreateIdentityRequest is the body of POST /identities
type CreateIdentityRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Create registers a new identity without a face
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if req.Name == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "name and code are required")
		return
	}

	identity, err := h.svc.Identities.CreateIdentity(r.Context(), req.Name, req.Code)
	if errors.Is(err, database.ErrIdentityExists) {
		respondError(w, http.StatusConflict, "identity code already exists")
		return
	}
	if err != nil {
		log.Printf("web: create identity %s: %v", sanitizeForLog(req.Code), err)
		respondError(w, http.StatusInternalServerError, "failed to create identity")
		return
	}

	respondJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// DuplicateFaceResponse is returned with 409 when the face belongs to someone else
type DuplicateFaceResponse struct {
	Error        string  `json:"error"`
	ConflictName string  `json:"conflict_name"`
	ConflictCode string  `json:"conflict_code"`
	Distance     float64 `json:"distance"`
}

// enrollPhoto embeds the largest face in img and registers it for code.
func (h *IdentitiesHandler) enrollPhoto(ctx context.Context, code string, img image.Image) (*database.Identity, error) {
	embedding, err := vision.EmbedLargest(ctx, h.svc.Analyzer, img)
	if err != nil {
		return nil, err
	}
	return h.svc.Enroller.RegisterFace(ctx, code, embedding)
}

// RegisterFace enrolls the largest face of an uploaded photo (multipart field "photo")
func (h *IdentitiesHandler) RegisterFace(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxPhotoUploadSize)
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo could not be decoded")
		return
	}

	identity, err := h.enrollPhoto(ctx, code, img)
	if err == nil {
		log.Printf("web: enrolled face for %s", sanitizeForLog(code))
		respondJSON(w, http.StatusOK, toIdentityResponse(identity))
		return
	}

	var dup *facematch.DuplicateFaceError
	switch {
	case errors.As(err, &dup):
		respondJSON(w, http.StatusConflict, DuplicateFaceResponse{
			Error:        "face already registered",
			ConflictName: dup.Conflict.Name,
			ConflictCode: dup.Conflict.Code,
			Distance:     dup.Distance,
		})
	case errors.Is(err, vision.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected")
	case errors.Is(err, facematch.ErrIdentityNotFound):
		respondError(w, http.StatusNotFound, "identity not found")
	default:
		log.Printf("web: enroll face for %s: %v", sanitizeForLog(code), err)
		respondError(w, http.StatusInternalServerError, "failed to enroll face")
	}
}
