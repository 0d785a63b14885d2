package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type MockItemService struct {
	mock.Mock
}

func (m *MockItemService) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockItemService) ListItems(ctx context.Context, baseID, cursor string, limit int) (*service.ItemPageResult, error) {
	args := m.Called(ctx, baseID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ItemPageResult), args.Error(1)
}

func (m *MockItemService) ListChildren(ctx context.Context, parentID string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockItemService) RemoveItem(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockItemIngestor struct {
	mock.Mock
}

func (m *MockItemIngestor) Ingest(ctx context.Context, input service.IngestInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func newTestItem() *domain.KnowledgeItem {
	now := time.Now().UTC()
	return &domain.KnowledgeItem{
		ID:        "i-123",
		BaseID:    "b-123",
		Type:      domain.ItemTypeNote,
		Name:      "note",
		Status:    domain.ItemStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestItemHandler_Add_Accepted(t *testing.T) {
	mockIng := new(MockItemIngestor)
	handler := NewItemHandler(new(MockItemService), mockIng)

	mockIng.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.BaseID == "b-123" && input.Type == domain.ItemTypeNote && input.Content == "hello"
	})).Return(newTestItem(), nil)

	body := `{"type":"note","name":"note","content":"hello"}`
	req := requestWithID(http.MethodPost, "/bases/b-123/items", "b-123", []byte(body))
	w := httptest.NewRecorder()

	handler.Add(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data ItemResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "pending", resp.Data.Status)
	mockIng.AssertExpectations(t)
}

func TestItemHandler_Add_MissingType(t *testing.T) {
	handler := NewItemHandler(new(MockItemService), new(MockItemIngestor))

	body := `{"content":"hello"}`
	req := requestWithID(http.MethodPost, "/bases/b-123/items", "b-123", []byte(body))
	w := httptest.NewRecorder()

	handler.Add(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandler_Add_UnknownBase(t *testing.T) {
	mockIng := new(MockItemIngestor)
	handler := NewItemHandler(new(MockItemService), mockIng)

	mockIng.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrBaseNotFound)

	body := `{"type":"note","content":"hello"}`
	req := requestWithID(http.MethodPost, "/bases/b-999/items", "b-999", []byte(body))
	w := httptest.NewRecorder()

	handler.Add(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemHandler_List_Success(t *testing.T) {
	mockSvc := new(MockItemService)
	handler := NewItemHandler(mockSvc, new(MockItemIngestor))

	page := &service.ItemPageResult{
		Items:      []*domain.KnowledgeItem{newTestItem()},
		NextCursor: "next",
		HasMore:    true,
	}
	mockSvc.On("ListItems", mock.Anything, "b-123", "", 5).Return(page, nil)

	req := requestWithID(http.MethodGet, "/bases/b-123/items?limit=5", "b-123", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ItemListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.True(t, resp.Data.HasMore)
	assert.Equal(t, "next", resp.Data.Cursor)
}

func TestItemHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockItemService)
	handler := NewItemHandler(mockSvc, new(MockItemIngestor))

	mockSvc.On("GetItem", mock.Anything, "i-999").Return(nil, domain.ErrItemNotFound)

	req := requestWithID(http.MethodGet, "/items/i-999", "i-999", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemHandler_Children_Success(t *testing.T) {
	mockSvc := new(MockItemService)
	handler := NewItemHandler(mockSvc, new(MockItemIngestor))

	child := newTestItem()
	child.ID = "c-1"
	child.ParentID = "i-123"
	child.Type = domain.ItemTypeChunk
	mockSvc.On("ListChildren", mock.Anything, "i-123").Return([]*domain.KnowledgeItem{child}, nil)

	req := requestWithID(http.MethodGet, "/items/i-123/children", "i-123", nil)
	w := httptest.NewRecorder()

	handler.Children(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []*ItemResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "chunk", resp.Data[0].Type)
}

func TestItemHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockItemService)
	handler := NewItemHandler(mockSvc, new(MockItemIngestor))

	mockSvc.On("RemoveItem", mock.Anything, "i-123").Return(nil)

	req := requestWithID(http.MethodDelete, "/items/i-123", "i-123", nil)
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestItemHandler_Add_InvalidBody(t *testing.T) {
	handler := NewItemHandler(new(MockItemService), new(MockItemIngestor))

	req := requestWithID(http.MethodPost, "/bases/b-123/items", "b-123", []byte("{not json"))
	w := httptest.NewRecorder()

	handler.Add(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
