package domain

import (
	"fmt"
	"time"
)

// ItemType represents the kind of source unit an item was ingested from
type ItemType string

const (
	ItemTypeFile      ItemType = "file"
	ItemTypeURL       ItemType = "url"
	ItemTypeNote      ItemType = "note"
	ItemTypeDirectory ItemType = "directory"
	ItemTypeSitemap   ItemType = "sitemap"
	ItemTypeChunk     ItemType = "chunk"
)

// ItemStatus represents the processing status of a knowledge item
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusChunking   ItemStatus = "chunking"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusError      ItemStatus = "error"
)

// KnowledgeItem represents one ingested source unit, or one chunk child
// of a unit whose text exceeded the chunk budget.
type KnowledgeItem struct {
	ID         string
	BaseID     string
	ParentID   string // empty for top-level units
	Type       ItemType
	Name       string
	Title      string
	Content    string
	SourceURL  string
	Embedding  []float32 // nil until embedded
	Chunked    bool      // true on parents whose content lives in children
	ChunkIndex int       // position among siblings, chunks only
	Status     ItemStatus
	Error      string
	Degraded   bool // vector came from the deterministic fallback
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewKnowledgeItem creates a pending top-level item for ingestion.
func NewKnowledgeItem(id, baseID string, itemType ItemType, name string, now time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:        id,
		BaseID:    baseID,
		Type:      itemType,
		Name:      name,
		Status:    ItemStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewChunkItem creates a pending chunk child of a parent item.
func NewChunkItem(id, baseID, parentID string, index int, content string, now time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:         id,
		BaseID:     baseID,
		ParentID:   parentID,
		Type:       ItemTypeChunk,
		Content:    content,
		ChunkIndex: index,
		Status:     ItemStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsChunk reports whether the item is a chunk child.
func (i *KnowledgeItem) IsChunk() bool {
	return i.ParentID != ""
}

// IsTerminal reports whether the status admits no further transitions.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusError
}

// CanTransition reports whether moving from s to next is a legal step of
// the item life cycle. Error is reachable from any non-terminal state.
func CanTransition(s, next ItemStatus) bool {
	if next == ItemStatusError {
		return !s.IsTerminal()
	}
	switch s {
	case ItemStatusPending:
		return next == ItemStatusProcessing
	case ItemStatusProcessing:
		return next == ItemStatusCompleted || next == ItemStatusChunking
	case ItemStatusChunking:
		return next == ItemStatusCompleted
	default:
		return false
	}
}

func isValidItemType(t ItemType) bool {
	switch t {
	case ItemTypeFile, ItemTypeURL, ItemTypeNote, ItemTypeDirectory, ItemTypeSitemap, ItemTypeChunk:
		return true
	}
	return false
}

func isValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusChunking, ItemStatusCompleted, ItemStatusError:
		return true
	}
	return false
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(i *KnowledgeItem) error {
	if i == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}
	if i.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}
	if i.BaseID == "" {
		return fmt.Errorf("knowledge item BaseID is required")
	}
	if !isValidItemType(i.Type) {
		return fmt.Errorf("knowledge item Type is invalid: %s", i.Type)
	}
	if !isValidItemStatus(i.Status) {
		return fmt.Errorf("knowledge item Status is invalid: %s", i.Status)
	}
	if i.Type == ItemTypeChunk && i.ParentID == "" {
		return fmt.Errorf("chunk items require a ParentID")
	}
	if i.Type != ItemTypeChunk && i.ParentID != "" {
		return fmt.Errorf("only chunk items may carry a ParentID")
	}
	if i.ChunkIndex < 0 {
		return fmt.Errorf("knowledge item ChunkIndex cannot be negative")
	}
	return nil
}
