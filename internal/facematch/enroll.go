package facematch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	// ErrDuplicateFace is matched by *DuplicateFaceError.
	ErrDuplicateFace = errors.New("face already registered to another identity")
	// ErrIdentityNotFound is returned when enrolling an unknown identity code.
	ErrIdentityNotFound = errors.New("identity not found")
)

// DuplicateFaceError names the identity whose stored face is too close to the new one.
type DuplicateFaceError struct {
	Conflict database.EnrolledFace
	Distance float64
}

func (e *DuplicateFaceError) Error() string {
	return fmt.Sprintf("face already registered to %s (%s), distance %.2f", e.Conflict.Name, e.Conflict.Code, e.Distance)
}

func (e *DuplicateFaceError) Is(target error) bool {
	return target == ErrDuplicateFace
}

// Guard rejects embeddings that collide with another enrolled identity.
type Guard struct {
	store   *Store
	matcher *Matcher
}

// NewGuard creates a duplicate guard.
func NewGuard(store *Store, matcher *Matcher) *Guard {
	return &Guard{store: store, matcher: matcher}
}

// CheckDuplicate returns the first enrolled identity, other than excludeCode,
// whose embedding is within the duplicate threshold. It returns nil when there is none.
func (g *Guard) CheckDuplicate(ctx context.Context, embedding []float32, excludeCode string) (*DuplicateFaceError, error) {
	faces, err := g.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, face := range faces {
		if face.Code == excludeCode {
			continue
		}
		if g.matcher.IsDuplicate(embedding, face.Embedding) {
			return &DuplicateFaceError{
				Conflict: face,
				Distance: database.EuclideanDistance(embedding, face.Embedding),
			}, nil
		}
	}
	return nil, nil
}

// Enroller stores a face for an identity once the guard has accepted it.
type Enroller struct {
	identities database.IdentityWriter
	guard      *Guard
	modelTag   string
}

// NewEnroller creates an enroller writing blobs tagged with modelTag.
func NewEnroller(identities database.IdentityWriter, guard *Guard, modelTag string) *Enroller {
	return &Enroller{identities: identities, guard: guard, modelTag: modelTag}
}

// RegisterFace enrolls embedding for the identity with code. Re-enrollment overwrites
// the previous embedding. Nothing is written when a duplicate is found.
func (e *Enroller) RegisterFace(ctx context.Context, code string, embedding []float32) (*database.Identity, error) {
	identity, err := e.identities.GetIdentityByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, code)
	}

	if err := database.CheckFinite(embedding); err != nil {
		return nil, err
	}

	conflict, err := e.guard.CheckDuplicate(ctx, embedding, code)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if conflict != nil {
		return nil, conflict
	}

	blob, err := database.EncodeEmbedding(embedding, e.modelTag)
	if err != nil {
		return nil, err
	}
	if err := e.identities.SetEmbedding(ctx, identity.ID, blob, e.modelTag); err != nil {
		return nil, fmt.Errorf("store embedding: %w", err)
	}

	identity.Embedding = blob
	identity.EmbeddingModel = e.modelTag
	return identity, nil
}
