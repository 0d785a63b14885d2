package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/pagination"
	"github.com/oak-labs/corpora/internal/service"
)

const itemColumns = `id, base_id, parent_id, type, name, title, content, source_url, embedding, chunked, chunk_index, status, error, degraded, storage_key, created_at, updated_at`

// ItemRepository handles persistence of knowledge items and their chunk
// children.
type ItemRepository struct {
	db dbtx
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: pool}
}

func NewItemRepositoryWithTx(tx dbtx) *ItemRepository {
	return &ItemRepository{db: tx}
}

func (r *ItemRepository) Create(ctx context.Context, i *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		i.ID, i.BaseID, nullableString(i.ParentID), i.Type, nullableString(i.Name), nullableString(i.Title),
		nullableString(i.Content), nullableString(i.SourceURL), vectorOrNil(i.Embedding), i.Chunked, i.ChunkIndex,
		i.Status, nullableString(i.Error), i.Degraded, nullableString(i.StorageKey), i.CreatedAt, i.UpdatedAt,
	)
	return err
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = $1`, id,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListCompletedByBase returns every completed item of a base that
// carries an embedding, parents and chunk children alike. This is the
// candidate set of the retrieval scan.
func (r *ItemRepository) ListCompletedByBase(ctx context.Context, baseID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items
		 WHERE base_id = $1 AND status = $2 AND embedding IS NOT NULL
		 ORDER BY created_at, id`,
		baseID, domain.ItemStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// ListChildren returns the chunk children of a parent in chunk order.
func (r *ItemRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items
		 WHERE parent_id = $1 ORDER BY chunk_index`,
		parentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// ListPageByBase returns a base's top-level items newest first with
// cursor pagination over (created_at, id).
func (r *ItemRepository) ListPageByBase(ctx context.Context, baseID string, cursor *pagination.Cursor, limit int) (*service.ItemPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+itemColumns+` FROM knowledge_items
			 WHERE base_id = $1 AND parent_id IS NULL AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			baseID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+itemColumns+` FROM knowledge_items
			 WHERE base_id = $1 AND parent_id IS NULL
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			baseID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.ItemPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// ListStorageKeysByBase returns the archive object keys of a base's
// items, for cleanup before a cascading delete.
func (r *ItemRepository) ListStorageKeysByBase(ctx context.Context, baseID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT storage_key FROM knowledge_items
		 WHERE base_id = $1 AND storage_key IS NOT NULL`,
		baseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpdateStatus moves an item to the next life-cycle state, recording
// the error message for error transitions and restamping updated_at.
// Returns ErrItemNotFound when the item no longer exists (a late write
// to a deleted item) and ErrInvalidTransition when the step is illegal.
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, next domain.ItemStatus, errMsg string, now time.Time) error {
	var current domain.ItemStatus
	err := r.db.QueryRow(ctx,
		`SELECT status FROM knowledge_items WHERE id = $1`, id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrItemNotFound
		}
		return err
	}

	if !domain.CanTransition(current, next) {
		return domain.ErrInvalidTransition
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		next, nullableString(errMsg), now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// Complete stores the extraction result and embedding on an item and
// moves it to completed.
func (r *ItemRepository) Complete(ctx context.Context, id, title, content string, embedding []float32, degraded bool, now time.Time) error {
	if err := r.UpdateStatus(ctx, id, domain.ItemStatusCompleted, "", now); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET title = $1, content = $2, embedding = $3, degraded = $4, updated_at = $5
		 WHERE id = $6`,
		nullableString(title), nullableString(content), vectorOrNil(embedding), degraded, now, id,
	)
	return err
}

// MarkChunked moves a parent to chunking, recording its title and the
// representative embedding while its content is superseded by children.
func (r *ItemRepository) MarkChunked(ctx context.Context, id, title string, embedding []float32, degraded bool, now time.Time) error {
	if err := r.UpdateStatus(ctx, id, domain.ItemStatusChunking, "", now); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET title = $1, content = NULL, embedding = $2, chunked = TRUE, degraded = $3, updated_at = $4
		 WHERE id = $5`,
		nullableString(title), vectorOrNil(embedding), degraded, now, id,
	)
	return err
}

// ResetForRetry returns a stranded item to pending so the recovery
// sweep can re-run its pipeline from scratch.
func (r *ItemRepository) ResetForRetry(ctx context.Context, id string, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET status = $1, error = NULL, chunked = FALSE, embedding = NULL, updated_at = $2
		 WHERE id = $3`,
		domain.ItemStatusPending, now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// SetStorageKey records the archive object key of the original bytes.
func (r *ItemRepository) SetStorageKey(ctx context.Context, id, key string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET storage_key = $1 WHERE id = $2`,
		nullableString(key), id,
	)
	return err
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// DeleteChildren removes every chunk child of a parent.
func (r *ItemRepository) DeleteChildren(ctx context.Context, parentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM knowledge_items WHERE parent_id = $1`, parentID)
	return err
}

// ListStranded returns top-level items stuck in a non-terminal state
// since before the cutoff, oldest first. Used by the recovery sweep.
func (r *ItemRepository) ListStranded(ctx context.Context, cutoff time.Time, limit int) ([]*domain.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items
		 WHERE parent_id IS NULL AND status IN ($1, $2, $3) AND updated_at < $4
		 ORDER BY updated_at
		 LIMIT $5`,
		domain.ItemStatusPending, domain.ItemStatusProcessing, domain.ItemStatusChunking, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItemRows(rows)
}

func scanItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var i domain.KnowledgeItem
	var parentID, name, title, content, sourceURL, errMsg, storageKey *string
	var embedding *pgvector.Vector
	if err := row.Scan(&i.ID, &i.BaseID, &parentID, &i.Type, &name, &title, &content, &sourceURL,
		&embedding, &i.Chunked, &i.ChunkIndex, &i.Status, &errMsg, &i.Degraded, &storageKey,
		&i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	if parentID != nil {
		i.ParentID = *parentID
	}
	if name != nil {
		i.Name = *name
	}
	if title != nil {
		i.Title = *title
	}
	if content != nil {
		i.Content = *content
	}
	if sourceURL != nil {
		i.SourceURL = *sourceURL
	}
	if errMsg != nil {
		i.Error = *errMsg
	}
	if storageKey != nil {
		i.StorageKey = *storageKey
	}
	if embedding != nil {
		i.Embedding = embedding.Slice()
	}
	return &i, nil
}

func scanItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func vectorOrNil(embedding []float32) *pgvector.Vector {
	if embedding == nil {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}
