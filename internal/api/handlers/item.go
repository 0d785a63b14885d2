package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oak-labs/corpora/internal/api"
	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type ItemService interface {
	GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListItems(ctx context.Context, baseID, cursor string, limit int) (*service.ItemPageResult, error)
	ListChildren(ctx context.Context, parentID string) ([]*domain.KnowledgeItem, error)
	RemoveItem(ctx context.Context, id string) error
}

type ItemIngestor interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.KnowledgeItem, error)
}

type ItemHandler struct {
	svc      ItemService
	ingestor ItemIngestor
}

func NewItemHandler(svc ItemService, ingestor ItemIngestor) *ItemHandler {
	return &ItemHandler{svc: svc, ingestor: ingestor}
}

type AddItemRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
}

type ItemResponse struct {
	ID         string `json:"id"`
	BaseID     string `json:"base_id"`
	ParentID   string `json:"parent_id,omitempty"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	Chunked    bool   `json:"chunked"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func itemToResponse(i *domain.KnowledgeItem) *ItemResponse {
	return &ItemResponse{
		ID:         i.ID,
		BaseID:     i.BaseID,
		ParentID:   i.ParentID,
		Type:       string(i.Type),
		Name:       i.Name,
		Title:      i.Title,
		Content:    i.Content,
		SourceURL:  i.SourceURL,
		Chunked:    i.Chunked,
		ChunkIndex: i.ChunkIndex,
		Status:     string(i.Status),
		Error:      i.Error,
		Degraded:   i.Degraded,
		CreatedAt:  i.CreatedAt.Format(timeFormat),
		UpdatedAt:  i.UpdatedAt.Format(timeFormat),
	}
}

func (h *ItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	baseID := chi.URLParam(r, "id")
	if baseID == "" {
		api.Error(w, http.StatusBadRequest, "base id is required")
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" {
		api.Error(w, http.StatusBadRequest, "type is required")
		return
	}

	input := service.IngestInput{
		BaseID:  baseID,
		Type:    domain.ItemType(req.Type),
		Name:    req.Name,
		Content: req.Content,
		URL:     req.URL,
		Path:    req.Path,
	}

	item, err := h.ingestor.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// 202: extraction and embedding continue in the background; poll the
	// item for its terminal status.
	api.Success(w, http.StatusAccepted, itemToResponse(item))
}

type ItemListResponse struct {
	Items   []*ItemResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	baseID := chi.URLParam(r, "id")
	if baseID == "" {
		api.Error(w, http.StatusBadRequest, "base id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.ListItems(r.Context(), baseID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ItemResponse, len(page.Items))
	for i, item := range page.Items {
		responses[i] = itemToResponse(item)
	}

	api.Success(w, http.StatusOK, ItemListResponse{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

func (h *ItemHandler) Children(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	children, err := h.svc.ListChildren(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ItemResponse, len(children))
	for i, child := range children {
		responses[i] = itemToResponse(child)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.RemoveItem(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
