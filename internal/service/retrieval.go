package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/oak-labs/corpora/internal/domain"
)

// DefaultQueryLimit caps result counts when the caller does not.
const DefaultQueryLimit = 6

// RetrievalService answers similarity queries across knowledge bases.
type RetrievalService struct {
	baseRepo BaseRepositoryInterface
	itemRepo ItemRepositoryInterface
	resolver EmbeddingResolver
}

// NewRetrievalService creates a RetrievalService.
func NewRetrievalService(
	baseRepo BaseRepositoryInterface,
	itemRepo ItemRepositoryInterface,
	resolver EmbeddingResolver,
) *RetrievalService {
	return &RetrievalService{
		baseRepo: baseRepo,
		itemRepo: itemRepo,
		resolver: resolver,
	}
}

// QueryInput is one retrieval request.
type QueryInput struct {
	BaseIDs []string
	Text    string
	Limit   int
}

// Query embeds the text once per base, scans each base's completed
// items with cosine similarity, filters by the base threshold, merges
// and stably sorts candidates across bases, deduplicates by content
// signature, and returns at most Limit references.
func (s *RetrievalService) Query(ctx context.Context, input QueryInput) ([]domain.Reference, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query text is required")
	}
	if len(input.BaseIDs) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "at least one base id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var candidates []domain.Reference
	for _, baseID := range input.BaseIDs {
		base, err := s.baseRepo.GetByID(ctx, baseID)
		if err != nil {
			if err == domain.ErrBaseNotFound {
				log.Printf("retrieval: skipping unknown base %s", baseID)
				continue
			}
			return nil, err
		}

		refs, err := s.scanBase(ctx, base, input.Text)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, refs...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	seen := make(map[string]bool, len(candidates))
	results := make([]domain.Reference, 0, limit)
	for _, ref := range candidates {
		// A chunked parent whose first chunk is gone surfaces with no
		// content; an empty signature says nothing about duplication.
		if sig := domain.ContentSignature(ref.Content); sig != "" {
			if seen[sig] {
				continue
			}
			seen[sig] = true
		}
		results = append(results, ref)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// scanBase embeds the query under the base's model and scores every
// completed item: non-chunked leaves directly, chunked parents through
// their representative embedding, and each chunk child on its own.
func (s *RetrievalService) scanBase(ctx context.Context, base *domain.KnowledgeBase, text string) ([]domain.Reference, error) {
	model, ok := domain.LookupModel(base.ModelID)
	if !ok {
		model = domain.EmbeddingModel{
			ID:         base.ModelID,
			Provider:   domain.ProviderName("unknown"),
			Dimensions: base.Dimensions,
		}
	}
	queryVec := s.resolver.Embed(ctx, model, text).Vector

	items, err := s.itemRepo.ListCompletedByBase(ctx, base.ID)
	if err != nil {
		return nil, err
	}

	// Chunked parents carry no content of their own; their reference
	// borrows the first chunk's text so dedup can collapse the pair.
	firstChunk := make(map[string]string)
	for _, item := range items {
		if item.IsChunk() && item.ChunkIndex == 0 {
			firstChunk[item.ParentID] = item.Content
		}
	}

	threshold := base.EffectiveThreshold()
	var refs []domain.Reference
	for _, item := range items {
		similarity, ok := cosineSimilarity(queryVec, item.Embedding)
		if !ok || similarity < threshold {
			continue
		}

		content := item.Content
		if content == "" && item.Chunked {
			content = firstChunk[item.ID]
		}
		title := item.Title
		if title == "" {
			title = item.Name
		}
		refs = append(refs, domain.Reference{
			ItemID:     item.ID,
			BaseID:     base.ID,
			Title:      title,
			Content:    content,
			Similarity: similarity,
			Source:     fmt.Sprintf("%s / %s", base.Name, title),
			Type:       item.Type,
		})
	}
	return refs, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or false when the vectors are unusable (mismatched width or zero
// magnitude).
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
