package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/events"
	"github.com/oak-labs/corpora/internal/pagination"
)

// BaseRepositoryInterface defines the repository interface for
// knowledge base persistence
type BaseRepositoryInterface interface {
	Create(ctx context.Context, b *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Update(ctx context.Context, b *domain.KnowledgeBase) error
	Delete(ctx context.Context, id string) error
	AdjustItemCount(ctx context.Context, id string, delta int, now time.Time) error
	Touch(ctx context.Context, id string, now time.Time) error
}

// ItemRepositoryInterface defines the repository interface for
// knowledge item persistence
type ItemRepositoryInterface interface {
	Create(ctx context.Context, i *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListCompletedByBase(ctx context.Context, baseID string) ([]*domain.KnowledgeItem, error)
	ListChildren(ctx context.Context, parentID string) ([]*domain.KnowledgeItem, error)
	ListPageByBase(ctx context.Context, baseID string, cursor *pagination.Cursor, limit int) (*ItemPageResult, error)
	ListStorageKeysByBase(ctx context.Context, baseID string) ([]string, error)
	UpdateStatus(ctx context.Context, id string, next domain.ItemStatus, errMsg string, now time.Time) error
	Complete(ctx context.Context, id, title, content string, embedding []float32, degraded bool, now time.Time) error
	MarkChunked(ctx context.Context, id, title string, embedding []float32, degraded bool, now time.Time) error
	SetStorageKey(ctx context.Context, id, key string) error
	ResetForRetry(ctx context.Context, id string, now time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteChildren(ctx context.Context, parentID string) error
	ListStranded(ctx context.Context, cutoff time.Time, limit int) ([]*domain.KnowledgeItem, error)
}

// ItemPageResult is one page of a base's top-level items.
type ItemPageResult struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// ArchiveStore stores original source bytes alongside the extracted
// text. Optional; a nil store disables archival.
type ArchiveStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

var _ UUIDGenerator = (*DefaultUUIDGenerator)(nil)

// KnowledgeService handles base and item management.
type KnowledgeService struct {
	baseRepo BaseRepositoryInterface
	itemRepo ItemRepositoryInterface
	archive  ArchiveStore
	emitter  *events.Emitter
	uuidGen  UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance. The
// archive store may be nil.
func NewKnowledgeService(
	baseRepo BaseRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	archive ArchiveStore,
	emitter *events.Emitter,
) *KnowledgeService {
	return &KnowledgeService{
		baseRepo: baseRepo,
		itemRepo: itemRepo,
		archive:  archive,
		emitter:  emitter,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a KnowledgeService with a
// custom UUID generator (for testing).
func NewKnowledgeServiceWithUUIDGen(
	baseRepo BaseRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	archive ArchiveStore,
	emitter *events.Emitter,
	uuidGen UUIDGenerator,
) *KnowledgeService {
	svc := NewKnowledgeService(baseRepo, itemRepo, archive, emitter)
	svc.uuidGen = uuidGen
	return svc
}

// CreateBaseInput represents the input for creating a knowledge base
type CreateBaseInput struct {
	Name         string
	ModelID      string
	Threshold    float64
	ChunkCount   int
	ChunkSize    int
	ChunkOverlap int
}

// CreateBase creates a knowledge base bound to a catalog model.
func (s *KnowledgeService) CreateBase(ctx context.Context, input CreateBaseInput) (*domain.KnowledgeBase, error) {
	if input.Name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "base name is required")
	}
	model, ok := domain.LookupModel(input.ModelID)
	if !ok {
		return nil, domain.ErrUnknownModel
	}

	now := time.Now().UTC()
	base := domain.NewKnowledgeBase(s.uuidGen.NewString(), input.Name, model.ID, model.Dimensions, now)
	if input.Threshold > 0 {
		base.Threshold = input.Threshold
	}
	base.ChunkCount = input.ChunkCount
	base.ChunkSize = input.ChunkSize
	base.ChunkOverlap = input.ChunkOverlap

	if err := domain.ValidateKnowledgeBase(base); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid base", err)
	}
	if err := s.baseRepo.Create(ctx, base); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to create base", err)
	}
	return base, nil
}

// GetBase returns a base by id.
func (s *KnowledgeService) GetBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return s.baseRepo.GetByID(ctx, id)
}

// ListBases returns all bases, most recently updated first.
func (s *KnowledgeService) ListBases(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	return s.baseRepo.List(ctx)
}

// UpdateBaseInput carries optional settings updates; nil fields are
// left untouched.
type UpdateBaseInput struct {
	Name         *string
	Threshold    *float64
	ChunkCount   *int
	ChunkSize    *int
	ChunkOverlap *int
}

// UpdateBase applies a settings update to a base.
func (s *KnowledgeService) UpdateBase(ctx context.Context, id string, input UpdateBaseInput) (*domain.KnowledgeBase, error) {
	base, err := s.baseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		base.Name = *input.Name
	}
	if input.Threshold != nil {
		base.Threshold = *input.Threshold
	}
	if input.ChunkCount != nil {
		base.ChunkCount = *input.ChunkCount
	}
	if input.ChunkSize != nil {
		base.ChunkSize = *input.ChunkSize
	}
	if input.ChunkOverlap != nil {
		base.ChunkOverlap = *input.ChunkOverlap
	}
	base.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateKnowledgeBase(base); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid base settings", err)
	}
	if err := s.baseRepo.Update(ctx, base); err != nil {
		return nil, err
	}
	return base, nil
}

// DeleteBase removes a base, its items, and their archived source
// objects. Item rows cascade in the database.
func (s *KnowledgeService) DeleteBase(ctx context.Context, id string) error {
	if s.archive != nil {
		keys, err := s.itemRepo.ListStorageKeysByBase(ctx, id)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := s.archive.DeleteObject(ctx, key); err != nil {
				log.Printf("knowledge: failed to delete archived object %s: %v", key, err)
			}
		}
	}
	return s.baseRepo.Delete(ctx, id)
}

// GetItem returns an item by id for status polling.
func (s *KnowledgeService) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// ListItems returns one page of a base's top-level items.
func (s *KnowledgeService) ListItems(ctx context.Context, baseID, cursorStr string, limit int) (*ItemPageResult, error) {
	if _, err := s.baseRepo.GetByID(ctx, baseID); err != nil {
		return nil, err
	}
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	return s.itemRepo.ListPageByBase(ctx, baseID, cursor, limit)
}

// ListChildren returns the chunk children of a parent item in order.
func (s *KnowledgeService) ListChildren(ctx context.Context, parentID string) ([]*domain.KnowledgeItem, error) {
	return s.itemRepo.ListChildren(ctx, parentID)
}

// RemoveItem deletes an item and everything derived from it: chunk
// children cascade in the database, the archived source object is
// deleted, and the base counter is decremented for top-level units. An
// in-flight ingestion for the item turns into a no-op on its next
// status write.
func (s *KnowledgeService) RemoveItem(ctx context.Context, id string) error {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if !item.IsChunk() {
		if err := s.baseRepo.AdjustItemCount(ctx, item.BaseID, -1, now); err != nil {
			log.Printf("knowledge: failed to adjust item count for base %s: %v", item.BaseID, err)
		}
	} else {
		if err := s.baseRepo.Touch(ctx, item.BaseID, now); err != nil {
			log.Printf("knowledge: failed to touch base %s: %v", item.BaseID, err)
		}
	}

	if s.archive != nil && item.StorageKey != "" {
		if err := s.archive.DeleteObject(ctx, item.StorageKey); err != nil {
			log.Printf("knowledge: failed to delete archived object %s: %v", item.StorageKey, err)
		}
	}
	return nil
}
