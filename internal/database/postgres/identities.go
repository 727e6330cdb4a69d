package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository provides PostgreSQL-backed identity storage
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

var identityColumns = []string{"id", "name", "code", "embedding", "embedding_model", "enrolled_at", "created_at"}

func scanIdentity(scanner interface{ Scan(dest ...any) error }) (database.Identity, error) {
	var identity database.Identity
	var enrolledAt sql.NullTime
	err := scanner.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Code,
		&identity.Embedding,
		&identity.EmbeddingModel,
		&enrolledAt,
		&identity.CreatedAt,
	)
	if err != nil {
		return identity, err
	}
	if enrolledAt.Valid {
		identity.EnrolledAt = &enrolledAt.Time
	}
	return identity, nil
}

func (r *IdentityRepository) listWhere(ctx context.Context, where sq.Sqlizer) ([]database.Identity, error) {
	builder := psql.Select(identityColumns...).From("identities").OrderBy("id ASC")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// GetIdentityByCode retrieves an identity by code, returns nil if not found
func (r *IdentityRepository) GetIdentityByCode(ctx context.Context, code string) (*database.Identity, error) {
	query, args, err := psql.Select(identityColumns...).
		From("identities").
		Where(sq.Eq{"code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity query: %w", err)
	}

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", code, err)
	}
	return &identity, nil
}

// ListIdentities returns all identities ordered by ID
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	return r.listWhere(ctx, nil)
}

// ListEnrolled returns identities that have an embedding, ordered by ID
func (r *IdentityRepository) ListEnrolled(ctx context.Context) ([]database.Identity, error) {
	return r.listWhere(ctx, sq.NotEq{"embedding": nil})
}

// CountIdentities returns the total number of identities
func (r *IdentityRepository) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// CreateIdentity inserts a new identity, returns database.ErrIdentityExists for a taken code
func (r *IdentityRepository) CreateIdentity(ctx context.Context, name, code string) (*database.Identity, error) {
	query, args, err := psql.Insert("identities").
		Columns("name", "code").
		Values(name, code).
		Suffix("ON CONFLICT (code) DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert identity: %w", err)
	}

	identity := database.Identity{Name: name, Code: code}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&identity.ID, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrIdentityExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return &identity, nil
}

// SetEmbedding stores the enrolled blob and refreshes the decoded vector column
func (r *IdentityRepository) SetEmbedding(ctx context.Context, identityID int64, blob []byte, modelTag string) error {
	update := psql.Update("identities").
		Set("embedding", blob).
		Set("embedding_model", modelTag).
		Set("enrolled_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": identityID})

	if vec, _, err := database.DecodeEmbedding(blob); err == nil {
		update = update.Set("embedding_vec", pgvector.NewVector(vec))
	} else {
		log.Printf("identity %d: stored blob is not decodable, neighbour search disabled for it: %v", identityID, err)
		update = update.Set("embedding_vec", nil)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update embedding: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update embedding for identity %d: %w", identityID, err)
	}
	return nil
}

// NearestIdentities ranks enrolled identities of the same model by cosine distance using pgvector
func (r *IdentityRepository) NearestIdentities(ctx context.Context, embedding []float32, modelTag string, limit int) ([]database.Neighbour, error) {
	query := `
		SELECT id, name, code, embedding_vec <=> $1::vector AS distance
		FROM identities
		WHERE embedding_vec IS NOT NULL AND embedding_model = $2
		ORDER BY distance, id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), modelTag, limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest identities: %w", err)
	}
	defer rows.Close()

	var neighbours []database.Neighbour
	for rows.Next() {
		var n database.Neighbour
		if err := rows.Scan(&n.IdentityID, &n.Name, &n.Code, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbour: %w", err)
		}
		neighbours = append(neighbours, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbours: %w", err)
	}
	return neighbours, nil
}
