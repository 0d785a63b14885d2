package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oak-labs/corpora/internal/domain"
)

const baseColumns = `id, name, model_id, dimensions, item_count, threshold, chunk_count, chunk_size, chunk_overlap, created_at, updated_at`

// BaseRepository handles persistence of knowledge bases.
type BaseRepository struct {
	db dbtx
}

func NewBaseRepository(pool *pgxpool.Pool) *BaseRepository {
	return &BaseRepository{db: pool}
}

func NewBaseRepositoryWithTx(tx dbtx) *BaseRepository {
	return &BaseRepository{db: tx}
}

func (r *BaseRepository) Create(ctx context.Context, b *domain.KnowledgeBase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_bases (`+baseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.Name, b.ModelID, b.Dimensions, b.ItemCount, b.Threshold, b.ChunkCount, b.ChunkSize, b.ChunkOverlap, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *BaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var b domain.KnowledgeBase
	err := r.db.QueryRow(ctx,
		`SELECT `+baseColumns+` FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.ModelID, &b.Dimensions, &b.ItemCount, &b.Threshold, &b.ChunkCount, &b.ChunkSize, &b.ChunkOverlap, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBaseNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BaseRepository) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+baseColumns+` FROM knowledge_bases ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBaseRows(rows)
}

// Update persists mutable base settings and restamps updated_at.
func (r *BaseRepository) Update(ctx context.Context, b *domain.KnowledgeBase) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases
		 SET name = $1, threshold = $2, chunk_count = $3, chunk_size = $4, chunk_overlap = $5, updated_at = $6
		 WHERE id = $7`,
		b.Name, b.Threshold, b.ChunkCount, b.ChunkSize, b.ChunkOverlap, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBaseNotFound
	}
	return nil
}

func (r *BaseRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBaseNotFound
	}
	return nil
}

// AdjustItemCount shifts the base's top-level item counter by delta and
// restamps updated_at.
func (r *BaseRepository) AdjustItemCount(ctx context.Context, id string, delta int, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases
		 SET item_count = GREATEST(item_count + $1, 0), updated_at = $2
		 WHERE id = $3`,
		delta, now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBaseNotFound
	}
	return nil
}

// Touch restamps the base's updated_at, used when an owned item changes
// state.
func (r *BaseRepository) Touch(ctx context.Context, id string, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases SET updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBaseNotFound
	}
	return nil
}

func scanBaseRows(rows pgx.Rows) ([]*domain.KnowledgeBase, error) {
	var results []*domain.KnowledgeBase
	for rows.Next() {
		var b domain.KnowledgeBase
		if err := rows.Scan(&b.ID, &b.Name, &b.ModelID, &b.Dimensions, &b.ItemCount, &b.Threshold, &b.ChunkCount, &b.ChunkSize, &b.ChunkOverlap, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, &b)
	}
	return results, rows.Err()
}
