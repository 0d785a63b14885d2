package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/embedding"
	"github.com/oak-labs/corpora/internal/extract"
	"github.com/oak-labs/corpora/internal/pagination"
)

// seqUUIDGen hands out predictable ids for assertions.
type seqUUIDGen struct {
	mu   sync.Mutex
	next int
}

func (g *seqUUIDGen) NewString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "id-" + string(rune('0'+g.next/10)) + string(rune('0'+g.next%10))
}

// fakeBaseRepo is an in-memory BaseRepositoryInterface.
type fakeBaseRepo struct {
	mu    sync.Mutex
	bases map[string]*domain.KnowledgeBase
}

func newFakeBaseRepo() *fakeBaseRepo {
	return &fakeBaseRepo{bases: make(map[string]*domain.KnowledgeBase)}
}

func (r *fakeBaseRepo) Create(_ context.Context, b *domain.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *b
	r.bases[b.ID] = &clone
	return nil
}

func (r *fakeBaseRepo) GetByID(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bases[id]
	if !ok {
		return nil, domain.ErrBaseNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *fakeBaseRepo) List(_ context.Context) ([]*domain.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.KnowledgeBase
	for _, b := range r.bases {
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeBaseRepo) Update(_ context.Context, b *domain.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bases[b.ID]; !ok {
		return domain.ErrBaseNotFound
	}
	clone := *b
	r.bases[b.ID] = &clone
	return nil
}

func (r *fakeBaseRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bases[id]; !ok {
		return domain.ErrBaseNotFound
	}
	delete(r.bases, id)
	return nil
}

func (r *fakeBaseRepo) AdjustItemCount(_ context.Context, id string, delta int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bases[id]
	if !ok {
		return domain.ErrBaseNotFound
	}
	b.ItemCount += delta
	if b.ItemCount < 0 {
		b.ItemCount = 0
	}
	b.UpdatedAt = now
	return nil
}

func (r *fakeBaseRepo) Touch(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bases[id]
	if !ok {
		return domain.ErrBaseNotFound
	}
	b.UpdatedAt = now
	return nil
}

// fakeItemRepo is an in-memory ItemRepositoryInterface enforcing the
// same transition rules as the real one.
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[string]*domain.KnowledgeItem
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[string]*domain.KnowledgeItem)}
}

func (r *fakeItemRepo) Create(_ context.Context, i *domain.KnowledgeItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *i
	r.items[i.ID] = &clone
	return nil
}

func (r *fakeItemRepo) GetByID(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	clone := *i
	return &clone, nil
}

func (r *fakeItemRepo) ListCompletedByBase(_ context.Context, baseID string) ([]*domain.KnowledgeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.KnowledgeItem
	for _, i := range r.items {
		if i.BaseID == baseID && i.Status == domain.ItemStatusCompleted && i.Embedding != nil {
			clone := *i
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (r *fakeItemRepo) ListChildren(_ context.Context, parentID string) ([]*domain.KnowledgeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.KnowledgeItem
	for _, i := range r.items {
		if i.ParentID == parentID {
			clone := *i
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ChunkIndex < out[b].ChunkIndex })
	return out, nil
}

func (r *fakeItemRepo) ListPageByBase(_ context.Context, baseID string, _ *pagination.Cursor, limit int) (*ItemPageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.KnowledgeItem
	for _, i := range r.items {
		if i.BaseID == baseID && i.ParentID == "" {
			clone := *i
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return &ItemPageResult{Items: out}, nil
}

func (r *fakeItemRepo) ListStorageKeysByBase(_ context.Context, baseID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, i := range r.items {
		if i.BaseID == baseID && i.StorageKey != "" {
			keys = append(keys, i.StorageKey)
		}
	}
	return keys, nil
}

func (r *fakeItemRepo) UpdateStatus(_ context.Context, id string, next domain.ItemStatus, errMsg string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	if !domain.CanTransition(i.Status, next) {
		return domain.ErrInvalidTransition
	}
	i.Status = next
	i.Error = errMsg
	i.UpdatedAt = now
	return nil
}

func (r *fakeItemRepo) Complete(ctx context.Context, id, title, content string, emb []float32, degraded bool, now time.Time) error {
	if err := r.UpdateStatus(ctx, id, domain.ItemStatusCompleted, "", now); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.items[id]
	i.Title = title
	i.Content = content
	i.Embedding = emb
	i.Degraded = degraded
	i.UpdatedAt = now
	return nil
}

func (r *fakeItemRepo) MarkChunked(ctx context.Context, id, title string, emb []float32, degraded bool, now time.Time) error {
	if err := r.UpdateStatus(ctx, id, domain.ItemStatusChunking, "", now); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.items[id]
	i.Title = title
	i.Content = ""
	i.Embedding = emb
	i.Chunked = true
	i.Degraded = degraded
	i.UpdatedAt = now
	return nil
}

func (r *fakeItemRepo) SetStorageKey(_ context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	i.StorageKey = key
	return nil
}

func (r *fakeItemRepo) ResetForRetry(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	i.Status = domain.ItemStatusPending
	i.Error = ""
	i.Chunked = false
	i.Embedding = nil
	i.UpdatedAt = now
	return nil
}

func (r *fakeItemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(r.items, id)
	for childID, child := range r.items {
		if child.ParentID == id {
			delete(r.items, childID)
		}
	}
	return nil
}

func (r *fakeItemRepo) DeleteChildren(_ context.Context, parentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, i := range r.items {
		if i.ParentID == parentID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeItemRepo) ListStranded(_ context.Context, cutoff time.Time, limit int) ([]*domain.KnowledgeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.KnowledgeItem
	for _, i := range r.items {
		if i.ParentID == "" && !i.Status.IsTerminal() && i.UpdatedAt.Before(cutoff) {
			clone := *i
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UpdatedAt.Before(out[b].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fixedResolver returns a constant vector, optionally degraded.
type fixedResolver struct {
	vector   []float32
	degraded bool
}

func (r *fixedResolver) Embed(context.Context, domain.EmbeddingModel, string) embedding.Result {
	return embedding.Result{Vector: r.vector, Degraded: r.degraded}
}

// hookedExtractor delegates to fixed extractions and lets tests run a
// hook mid-extraction to exercise races.
type hookedExtractor struct {
	extraction extract.Extraction
	err        error
	hook       func()
}

func (e *hookedExtractor) result() (extract.Extraction, error) {
	if e.hook != nil {
		e.hook()
	}
	if e.err != nil {
		return extract.Extraction{}, e.err
	}
	return e.extraction, nil
}

func (e *hookedExtractor) FromBytes(string, []byte) (extract.Extraction, error) {
	return e.result()
}

func (e *hookedExtractor) FromPath(string) (extract.Extraction, error) {
	return e.result()
}

func (e *hookedExtractor) FromURL(context.Context, string) (extract.Extraction, error) {
	return e.result()
}

func (e *hookedExtractor) FromSitemap(context.Context, string) (extract.Extraction, []string, error) {
	ex, err := e.result()
	return ex, nil, err
}

func (e *hookedExtractor) FromDirectory(path string) extract.Extraction {
	return extract.Extraction{Title: path, Content: "Directory: " + path}
}
