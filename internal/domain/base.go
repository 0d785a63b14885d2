package domain

import (
	"fmt"
	"time"
)

// Default retrieval and chunking parameters applied when a base does not
// override them.
const (
	DefaultThreshold    = 0.1
	DefaultChunkSize    = 8000
	DefaultChunkOverlap = 200
)

// KnowledgeBase groups ingested items under a single embedding model and
// a shared set of retrieval settings.
type KnowledgeBase struct {
	ID           string
	Name         string
	ModelID      string
	Dimensions   int
	ItemCount    int
	Threshold    float64
	ChunkCount   int // >1 requests even slicing into exactly this many segments
	ChunkSize    int
	ChunkOverlap int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewKnowledgeBase creates a new KnowledgeBase instance with default
// retrieval settings.
func NewKnowledgeBase(id, name, modelID string, dimensions int, now time.Time) *KnowledgeBase {
	return &KnowledgeBase{
		ID:         id,
		Name:       name,
		ModelID:    modelID,
		Dimensions: dimensions,
		ItemCount:  0,
		Threshold:  DefaultThreshold,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EffectiveThreshold returns the base threshold, falling back to the
// default when unset or out of range.
func (b *KnowledgeBase) EffectiveThreshold() float64 {
	if b.Threshold <= 0 || b.Threshold > 1 {
		return DefaultThreshold
	}
	return b.Threshold
}

// EffectiveChunkSize returns the configured chunk budget or the default.
func (b *KnowledgeBase) EffectiveChunkSize() int {
	if b.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return b.ChunkSize
}

// EffectiveChunkOverlap returns the configured overlap or the default.
func (b *KnowledgeBase) EffectiveChunkOverlap() int {
	if b.ChunkOverlap < 0 {
		return DefaultChunkOverlap
	}
	if b.ChunkOverlap == 0 {
		return DefaultChunkOverlap
	}
	return b.ChunkOverlap
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(b *KnowledgeBase) error {
	if b == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}
	if b.ID == "" {
		return fmt.Errorf("knowledge base ID is required")
	}
	if b.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}
	if b.ModelID == "" {
		return fmt.Errorf("knowledge base ModelID is required")
	}
	if b.Threshold < 0 || b.Threshold > 1 {
		return fmt.Errorf("knowledge base Threshold must be within [0, 1]: %f", b.Threshold)
	}
	if b.ChunkOverlap < 0 {
		return fmt.Errorf("knowledge base ChunkOverlap cannot be negative")
	}
	if b.ChunkSize < 0 {
		return fmt.Errorf("knowledge base ChunkSize cannot be negative")
	}
	return nil
}
