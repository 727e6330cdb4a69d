// Package facematch loads enrolled embeddings and matches live faces against them.
package facematch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ErrStoreEmpty is returned when recognition is requested with no enrolled faces.
var ErrStoreEmpty = errors.New("no enrolled faces: register at least one face before starting a session")

// Store loads the enrolled embeddings of one model configuration.
type Store struct {
	identities database.IdentityReader
	modelTag   string
}

// NewStore creates a store reading identities produced with modelTag.
func NewStore(identities database.IdentityReader, modelTag string) *Store {
	return &Store{identities: identities, modelTag: modelTag}
}

// ModelTag returns the model configuration the store accepts.
func (s *Store) ModelTag() string {
	return s.modelTag
}

// LoadAll returns every enrolled face in registry order. Identities without an
// embedding are skipped. Blobs that fail to decode, or were produced by another
// model configuration, are logged and skipped without failing the batch.
func (s *Store) LoadAll(ctx context.Context) ([]database.EnrolledFace, error) {
	identities, err := s.identities.ListEnrolled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrolled identities: %w", err)
	}

	faces := make([]database.EnrolledFace, 0, len(identities))
	for _, identity := range identities {
		if !identity.Enrolled() {
			continue
		}
		vec, err := database.DecodeEmbeddingFor(identity.Embedding, s.modelTag)
		if err != nil {
			log.Printf("facematch: skipping %s (%s): %v", identity.Code, identity.Name, err)
			continue
		}
		faces = append(faces, database.EnrolledFace{
			IdentityID: identity.ID,
			Name:       identity.Name,
			Code:       identity.Code,
			Embedding:  vec,
		})
	}
	return faces, nil
}

// LoadForRecognition is LoadAll but fails with ErrStoreEmpty when nothing usable is enrolled.
func (s *Store) LoadForRecognition(ctx context.Context) ([]database.EnrolledFace, error) {
	faces, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrStoreEmpty
	}
	return faces, nil
}
