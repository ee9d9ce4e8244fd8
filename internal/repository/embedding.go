package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository stores one pgvector row per (bookmark, model key).
type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

// UpsertEmbedding writes e, replacing any vector stored for the same bookmark and model.
func (r *EmbeddingRepository) UpsertEmbedding(ctx context.Context, e *domain.Embedding) error {
	if err := domain.ValidateEmbedding(e); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid embedding", err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO bookmark_embeddings (bookmark_id, model_key, embedding, dimensions, checksum, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (bookmark_id, model_key) DO UPDATE SET
		     embedding = EXCLUDED.embedding,
		     dimensions = EXCLUDED.dimensions,
		     checksum = EXCLUDED.checksum,
		     created_at = EXCLUDED.created_at`,
		e.BookmarkID, e.ModelKey, pgvector.NewVector(e.Vector), e.Dimensions, e.Checksum, e.CreatedAt,
	)
	return err
}

// TouchEmbedding moves the stored vector's timestamp to at without
// changing the vector.
func (r *EmbeddingRepository) TouchEmbedding(ctx context.Context, bookmarkID, modelKey string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE bookmark_embeddings SET created_at = $3
		 WHERE bookmark_id = $1 AND model_key = $2 AND created_at < $3`,
		bookmarkID, modelKey, at,
	)
	return err
}

// GetEmbedding returns nil, nil when the bookmark has no vector for modelKey.
func (r *EmbeddingRepository) GetEmbedding(ctx context.Context, bookmarkID, modelKey string) (*domain.Embedding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT bookmark_id, model_key, embedding, dimensions, checksum, created_at
		 FROM bookmark_embeddings
		 WHERE bookmark_id = $1 AND model_key = $2`,
		bookmarkID, modelKey,
	)
	e, err := scanEmbedding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// GetEmbeddingsByModel returns every vector stored for live bookmarks under modelKey.
func (r *EmbeddingRepository) GetEmbeddingsByModel(ctx context.Context, modelKey string) ([]*domain.Embedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT e.bookmark_id, e.model_key, e.embedding, e.dimensions, e.checksum, e.created_at
		 FROM bookmark_embeddings e
		 JOIN bookmarks b ON b.id = e.bookmark_id
		 WHERE e.model_key = $1 AND NOT b.deleted
		 ORDER BY e.bookmark_id`,
		modelKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	embeddings := make([]*domain.Embedding, 0)
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, rows.Err()
}

// DeleteByModel drops all vectors of a retired model and reports how many were removed.
func (r *EmbeddingRepository) DeleteByModel(ctx context.Context, modelKey string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM bookmark_embeddings WHERE model_key = $1`, modelKey)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func scanEmbedding(row pgx.Row) (*domain.Embedding, error) {
	var e domain.Embedding
	var vec pgvector.Vector
	if err := row.Scan(&e.BookmarkID, &e.ModelKey, &vec, &e.Dimensions, &e.Checksum, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Vector = vec.Slice()
	return &e, nil
}
