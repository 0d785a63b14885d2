package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Query(ctx context.Context, input service.QueryInput) ([]domain.Reference, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reference), args.Error(1)
}

func TestQueryHandler_Query_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	refs := []domain.Reference{{
		ItemID:     "i-1",
		BaseID:     "b-1",
		Title:      "doc",
		Content:    "matched text",
		Similarity: 0.92,
		Source:     "docs / doc",
		Type:       domain.ItemTypeNote,
	}}
	mockSvc.On("Query", mock.Anything, mock.MatchedBy(func(input service.QueryInput) bool {
		return input.Text == "how to deploy" && len(input.BaseIDs) == 1 && input.Limit == 3
	})).Return(refs, nil)

	body := `{"base_ids":["b-1"],"text":"how to deploy","limit":3}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data QueryResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.References, 1)
	assert.Equal(t, "i-1", resp.Data.References[0].ItemID)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Query_EmptyResultIsArray(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Query", mock.Anything, mock.Anything).Return([]domain.Reference(nil), nil)

	body := `{"base_ids":["b-1"],"text":"nothing matches"}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"references":[]`)
}

func TestQueryHandler_Query_ValidationError(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Query", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "query text is required"))

	body := `{"base_ids":["b-1"],"text":""}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_Query_InvalidBody(t *testing.T) {
	handler := NewQueryHandler(new(MockQueryService))

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
