package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oak-labs/corpora/internal/api"
	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type QueryService interface {
	Query(ctx context.Context, input service.QueryInput) ([]domain.Reference, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	BaseIDs []string `json:"base_ids"`
	Text    string   `json:"text"`
	Limit   int      `json:"limit,omitempty"`
}

type QueryResponse struct {
	References []domain.Reference `json:"references"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	refs, err := h.svc.Query(r.Context(), service.QueryInput{
		BaseIDs: req.BaseIDs,
		Text:    req.Text,
		Limit:   req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if refs == nil {
		refs = []domain.Reference{}
	}
	api.Success(w, http.StatusOK, QueryResponse{References: refs})
}
