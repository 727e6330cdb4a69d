package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityRepository provides SQLite-backed identity storage
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new SQLite identity repository
func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func toIdentities(models []identityModel) []database.Identity {
	identities := make([]database.Identity, 0, len(models))
	for i := range models {
		identities = append(identities, models[i].toIdentity())
	}
	return identities
}

// GetIdentityByCode retrieves an identity by code, returns nil if not found
func (r *IdentityRepository) GetIdentityByCode(ctx context.Context, code string) (*database.Identity, error) {
	var m identityModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", code, err)
	}
	identity := m.toIdentity()
	return &identity, nil
}

// ListIdentities returns all identities ordered by ID
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	var models []identityModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return toIdentities(models), nil
}

// ListEnrolled returns identities that have an embedding, ordered by ID
func (r *IdentityRepository) ListEnrolled(ctx context.Context) ([]database.Identity, error) {
	var models []identityModel
	err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL AND length(embedding) > 0").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list enrolled identities: %w", err)
	}
	return toIdentities(models), nil
}

// CountIdentities returns the total number of identities
func (r *IdentityRepository) CountIdentities(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&identityModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return int(count), nil
}

// CreateIdentity inserts a new identity, returns database.ErrIdentityExists for a taken code
func (r *IdentityRepository) CreateIdentity(ctx context.Context, name, code string) (*database.Identity, error) {
	m := identityModel{Name: name, Code: code}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&m)
	if result.Error != nil {
		return nil, fmt.Errorf("insert identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, database.ErrIdentityExists
	}
	identity := m.toIdentity()
	return &identity, nil
}

// SetEmbedding stores (or overwrites) the enrolled embedding blob
func (r *IdentityRepository) SetEmbedding(ctx context.Context, identityID int64, blob []byte, modelTag string) error {
	err := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("id = ?", identityID).
		Updates(map[string]any{
			"embedding":       blob,
			"embedding_model": modelTag,
			"enrolled_at":     time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("update embedding for identity %d: %w", identityID, err)
	}
	return nil
}
