package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oak-labs/corpora/internal/api"
	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type BaseService interface {
	CreateBase(ctx context.Context, input service.CreateBaseInput) (*domain.KnowledgeBase, error)
	GetBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	ListBases(ctx context.Context) ([]*domain.KnowledgeBase, error)
	UpdateBase(ctx context.Context, id string, input service.UpdateBaseInput) (*domain.KnowledgeBase, error)
	DeleteBase(ctx context.Context, id string) error
}

type BaseHandler struct {
	svc BaseService
}

func NewBaseHandler(svc BaseService) *BaseHandler {
	return &BaseHandler{svc: svc}
}

type CreateBaseRequest struct {
	Name         string  `json:"name"`
	ModelID      string  `json:"model_id"`
	Threshold    float64 `json:"threshold,omitempty"`
	ChunkCount   int     `json:"chunk_count,omitempty"`
	ChunkSize    int     `json:"chunk_size,omitempty"`
	ChunkOverlap int     `json:"chunk_overlap,omitempty"`
}

type UpdateBaseRequest struct {
	Name         *string  `json:"name"`
	Threshold    *float64 `json:"threshold"`
	ChunkCount   *int     `json:"chunk_count"`
	ChunkSize    *int     `json:"chunk_size"`
	ChunkOverlap *int     `json:"chunk_overlap"`
}

type BaseResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ModelID      string  `json:"model_id"`
	Dimensions   int     `json:"dimensions"`
	ItemCount    int     `json:"item_count"`
	Threshold    float64 `json:"threshold"`
	ChunkCount   int     `json:"chunk_count"`
	ChunkSize    int     `json:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

const timeFormat = "2006-01-02T15:04:05Z"

func baseToResponse(b *domain.KnowledgeBase) *BaseResponse {
	return &BaseResponse{
		ID:           b.ID,
		Name:         b.Name,
		ModelID:      b.ModelID,
		Dimensions:   b.Dimensions,
		ItemCount:    b.ItemCount,
		Threshold:    b.Threshold,
		ChunkCount:   b.ChunkCount,
		ChunkSize:    b.ChunkSize,
		ChunkOverlap: b.ChunkOverlap,
		CreatedAt:    b.CreatedAt.Format(timeFormat),
		UpdatedAt:    b.UpdatedAt.Format(timeFormat),
	}
}

func (h *BaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ModelID == "" {
		api.Error(w, http.StatusBadRequest, "model_id is required")
		return
	}

	input := service.CreateBaseInput{
		Name:         req.Name,
		ModelID:      req.ModelID,
		Threshold:    req.Threshold,
		ChunkCount:   req.ChunkCount,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	}

	base, err := h.svc.CreateBase(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, baseToResponse(base))
}

func (h *BaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	base, err := h.svc.GetBase(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, baseToResponse(base))
}

func (h *BaseHandler) List(w http.ResponseWriter, r *http.Request) {
	bases, err := h.svc.ListBases(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*BaseResponse, len(bases))
	for i, b := range bases {
		responses[i] = baseToResponse(b)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *BaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateBaseInput{
		Name:         req.Name,
		Threshold:    req.Threshold,
		ChunkCount:   req.ChunkCount,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	}

	base, err := h.svc.UpdateBase(r.Context(), id, input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, baseToResponse(base))
}

func (h *BaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteBase(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
