package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/embedding"
	"github.com/oak-labs/corpora/internal/events"
	"github.com/oak-labs/corpora/internal/extract"
)

// TextExtractor normalizes source units into text plus a title.
type TextExtractor interface {
	FromBytes(name string, data []byte) (extract.Extraction, error)
	FromPath(path string) (extract.Extraction, error)
	FromURL(ctx context.Context, url string) (extract.Extraction, error)
	FromSitemap(ctx context.Context, url string) (extract.Extraction, []string, error)
	FromDirectory(path string) extract.Extraction
}

// EmbeddingResolver produces a vector for text under a catalog model.
// Resolution never fails; it degrades to a deterministic fallback.
type EmbeddingResolver interface {
	Embed(ctx context.Context, model domain.EmbeddingModel, text string) embedding.Result
}

// Ingestor coordinates the asynchronous extract → chunk → embed →
// persist pipeline. The synchronous part of Ingest validates input,
// creates the pending item, and bumps the base counter; everything
// else happens on a background goroutine.
type Ingestor struct {
	baseRepo  BaseRepositoryInterface
	itemRepo  ItemRepositoryInterface
	extractor TextExtractor
	resolver  EmbeddingResolver
	archive   ArchiveStore
	emitter   *events.Emitter
	uuidGen   UUIDGenerator

	wg sync.WaitGroup
}

// NewIngestor creates an Ingestor. The archive store may be nil.
func NewIngestor(
	baseRepo BaseRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	extractor TextExtractor,
	resolver EmbeddingResolver,
	archive ArchiveStore,
	emitter *events.Emitter,
) *Ingestor {
	return &Ingestor{
		baseRepo:  baseRepo,
		itemRepo:  itemRepo,
		extractor: extractor,
		resolver:  resolver,
		archive:   archive,
		emitter:   emitter,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewIngestorWithUUIDGen creates an Ingestor with a custom UUID
// generator (for testing).
func NewIngestorWithUUIDGen(
	baseRepo BaseRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	extractor TextExtractor,
	resolver EmbeddingResolver,
	archive ArchiveStore,
	emitter *events.Emitter,
	uuidGen UUIDGenerator,
) *Ingestor {
	ing := NewIngestor(baseRepo, itemRepo, extractor, resolver, archive, emitter)
	ing.uuidGen = uuidGen
	return ing
}

// IngestInput describes one source unit to ingest.
type IngestInput struct {
	BaseID  string
	Type    domain.ItemType
	Name    string
	Content string // inline file bytes or note text
	URL     string // url and sitemap units
	Path    string // file and directory units readable by the daemon
}

func validateIngestInput(input IngestInput) error {
	switch input.Type {
	case domain.ItemTypeNote:
		if strings.TrimSpace(input.Content) == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "note content is required")
		}
	case domain.ItemTypeFile:
		if input.Content == "" && input.Path == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "file content or path is required")
		}
	case domain.ItemTypeURL, domain.ItemTypeSitemap:
		if input.URL == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "url is required")
		}
	case domain.ItemTypeDirectory:
		if input.Path == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "directory path is required")
		}
	default:
		return domain.ErrInvalidItemType
	}
	return nil
}

// Ingest validates the input, creates the pending item, and schedules
// processing. The returned item is in pending state.
func (s *Ingestor) Ingest(ctx context.Context, input IngestInput) (*domain.KnowledgeItem, error) {
	base, err := s.baseRepo.GetByID(ctx, input.BaseID)
	if err != nil {
		return nil, err
	}
	if err := validateIngestInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := domain.NewKnowledgeItem(s.uuidGen.NewString(), base.ID, input.Type, input.Name, now)
	item.Content = input.Content
	if input.URL != "" {
		item.SourceURL = input.URL
	} else if input.Path != "" {
		item.SourceURL = input.Path
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to create item", err)
	}
	if err := s.baseRepo.AdjustItemCount(ctx, base.ID, 1, now); err != nil {
		log.Printf("ingest: failed to adjust item count for base %s: %v", base.ID, err)
	}
	s.publish(item, domain.ItemStatusPending, "")

	if s.archive != nil && input.Type == domain.ItemTypeFile && input.Content != "" {
		key := fmt.Sprintf("sources/%s/%s", base.ID, item.ID)
		if err := s.archive.PutObject(ctx, key, []byte(input.Content), "text/plain; charset=utf-8"); err != nil {
			log.Printf("ingest: failed to archive source for item %s: %v", item.ID, err)
		} else if err := s.itemRepo.SetStorageKey(ctx, item.ID, key); err != nil {
			log.Printf("ingest: failed to record storage key for item %s: %v", item.ID, err)
		} else {
			item.StorageKey = key
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Detached from the request context: the caller's HTTP request
		// completes while processing continues.
		s.process(context.Background(), base, item, input)
	}()

	return item, nil
}

// Wait blocks until every scheduled ingestion has finished. Used on
// shutdown and in tests.
func (s *Ingestor) Wait() {
	s.wg.Wait()
}

// Resume re-runs processing for an item stranded in a non-terminal
// state, e.g. after a daemon restart. Partial chunk children are
// discarded first.
func (s *Ingestor) Resume(ctx context.Context, item *domain.KnowledgeItem) error {
	base, err := s.baseRepo.GetByID(ctx, item.BaseID)
	if err != nil {
		return err
	}

	if err := s.itemRepo.DeleteChildren(ctx, item.ID); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.itemRepo.ResetForRetry(ctx, item.ID, now); err != nil {
		return err
	}

	input := IngestInput{
		BaseID:  item.BaseID,
		Type:    item.Type,
		Name:    item.Name,
		Content: item.Content,
	}
	switch item.Type {
	case domain.ItemTypeURL, domain.ItemTypeSitemap:
		input.URL = item.SourceURL
	case domain.ItemTypeDirectory:
		input.Path = item.SourceURL
	case domain.ItemTypeFile:
		if input.Content == "" && item.StorageKey != "" && s.archive != nil {
			data, err := s.archive.GetObject(ctx, item.StorageKey)
			if err != nil {
				return fmt.Errorf("failed to restore archived source: %w", err)
			}
			input.Content = string(data)
		}
		if input.Content == "" {
			input.Path = item.SourceURL
		}
	}

	item.Status = domain.ItemStatusPending
	s.process(ctx, base, item, input)
	return nil
}

// process runs the pipeline for one unit. Any status write that finds
// the item deleted aborts silently: removal mid-flight is a no-op, not
// an error.
func (s *Ingestor) process(ctx context.Context, base *domain.KnowledgeBase, item *domain.KnowledgeItem, input IngestInput) {
	if ok := s.transition(ctx, item, domain.ItemStatusProcessing, ""); !ok {
		return
	}

	extraction, err := s.extract(ctx, input)
	if err != nil {
		s.fail(ctx, item, err)
		return
	}
	if strings.TrimSpace(extraction.Content) == "" {
		s.fail(ctx, item, domain.ErrEmptyExtraction)
		return
	}

	title := extraction.Title
	if title == "" {
		title = input.Name
	}

	opts := ChunkOptions{
		ChunkSize:    base.EffectiveChunkSize(),
		ChunkOverlap: base.EffectiveChunkOverlap(),
	}
	if base.ChunkCount > 1 {
		opts.TargetCount = base.ChunkCount
	}
	segments := Chunk(extraction.Content, opts)

	model := s.model(base)
	now := func() time.Time { return time.Now().UTC() }

	if len(segments) <= 1 {
		result := s.resolver.Embed(ctx, model, extraction.Content)
		if err := s.itemRepo.Complete(ctx, item.ID, title, extraction.Content, result.Vector, result.Degraded, now()); err != nil {
			s.handleWriteError(ctx, item, err)
			return
		}
		s.touchBase(ctx, base.ID)
		s.publish(item, domain.ItemStatusCompleted, "")
		return
	}

	first := s.resolver.Embed(ctx, model, segments[0])
	if err := s.itemRepo.MarkChunked(ctx, item.ID, title, first.Vector, first.Degraded, now()); err != nil {
		s.handleWriteError(ctx, item, err)
		return
	}
	s.touchBase(ctx, base.ID)
	s.publish(item, domain.ItemStatusChunking, "")

	for idx, segment := range segments {
		child := domain.NewChunkItem(s.uuidGen.NewString(), base.ID, item.ID, idx, segment, now())
		child.Title = fmt.Sprintf("%s (%d/%d)", title, idx+1, len(segments))
		if err := s.itemRepo.Create(ctx, child); err != nil {
			// The parent may have been deleted, cascading away the
			// chunk target. Stop quietly in that case.
			if _, gone := s.itemRepo.GetByID(ctx, item.ID); gone != nil {
				return
			}
			log.Printf("ingest: failed to create chunk %d of item %s: %v", idx, item.ID, err)
			continue
		}
		s.publish(child, domain.ItemStatusPending, "")

		if ok := s.transition(ctx, child, domain.ItemStatusProcessing, ""); !ok {
			continue
		}
		result := s.resolver.Embed(ctx, model, segment)
		if err := s.itemRepo.Complete(ctx, child.ID, child.Title, segment, result.Vector, result.Degraded, now()); err != nil {
			// Chunk failures are isolated; the sibling chunks and the
			// parent proceed.
			s.failChild(ctx, child, err)
			continue
		}
		s.touchBase(ctx, base.ID)
		s.publish(child, domain.ItemStatusCompleted, "")
	}

	if ok := s.transition(ctx, item, domain.ItemStatusCompleted, ""); !ok {
		return
	}
}

func (s *Ingestor) extract(ctx context.Context, input IngestInput) (extract.Extraction, error) {
	switch input.Type {
	case domain.ItemTypeNote:
		title := input.Name
		if title == "" {
			title = "Note"
		}
		return extract.Extraction{Title: title, Content: input.Content}, nil
	case domain.ItemTypeFile:
		if input.Content != "" {
			return s.extractor.FromBytes(input.Name, []byte(input.Content))
		}
		return s.extractor.FromPath(input.Path)
	case domain.ItemTypeURL:
		return s.extractor.FromURL(ctx, input.URL)
	case domain.ItemTypeSitemap:
		extraction, _, err := s.extractor.FromSitemap(ctx, input.URL)
		return extraction, err
	case domain.ItemTypeDirectory:
		return s.extractor.FromDirectory(input.Path), nil
	default:
		return extract.Extraction{}, domain.ErrInvalidItemType
	}
}

// model returns the catalog entry for the base's model. An id that has
// left the catalog maps to an unknown provider, which the resolver
// serves with the deterministic fallback.
func (s *Ingestor) model(base *domain.KnowledgeBase) domain.EmbeddingModel {
	if model, ok := domain.LookupModel(base.ModelID); ok {
		return model
	}
	return domain.EmbeddingModel{
		ID:             base.ModelID,
		Provider:       domain.ProviderName("unknown"),
		Dimensions:     base.Dimensions,
		MaxInputTokens: 8191,
	}
}

// transition moves an item to the next state, touching the owning base
// and publishing the change. Returns false when the item is gone.
func (s *Ingestor) transition(ctx context.Context, item *domain.KnowledgeItem, next domain.ItemStatus, errMsg string) bool {
	err := s.itemRepo.UpdateStatus(ctx, item.ID, next, errMsg, time.Now().UTC())
	if err != nil {
		if err == domain.ErrItemNotFound {
			return false
		}
		log.Printf("ingest: failed to move item %s to %s: %v", item.ID, next, err)
		return false
	}
	item.Status = next
	s.touchBase(ctx, item.BaseID)
	s.publish(item, next, errMsg)
	return true
}

func (s *Ingestor) fail(ctx context.Context, item *domain.KnowledgeItem, cause error) {
	log.Printf("ingest: item %s failed: %v", item.ID, cause)
	s.transition(ctx, item, domain.ItemStatusError, cause.Error())
}

func (s *Ingestor) failChild(ctx context.Context, child *domain.KnowledgeItem, cause error) {
	log.Printf("ingest: chunk %s failed: %v", child.ID, cause)
	s.transition(ctx, child, domain.ItemStatusError, cause.Error())
}

func (s *Ingestor) handleWriteError(ctx context.Context, item *domain.KnowledgeItem, err error) {
	if err == domain.ErrItemNotFound {
		return
	}
	s.fail(ctx, item, err)
}

func (s *Ingestor) touchBase(ctx context.Context, baseID string) {
	if err := s.baseRepo.Touch(ctx, baseID, time.Now().UTC()); err != nil && err != domain.ErrBaseNotFound {
		log.Printf("ingest: failed to touch base %s: %v", baseID, err)
	}
}

func (s *Ingestor) publish(item *domain.KnowledgeItem, status domain.ItemStatus, errMsg string) {
	if s.emitter == nil {
		return
	}
	s.emitter.Publish(events.ItemEvent{
		BaseID:   item.BaseID,
		ItemID:   item.ID,
		ParentID: item.ParentID,
		Status:   status,
		Error:    errMsg,
	})
}
