package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oak-labs/corpora/internal/domain"
	"github.com/oak-labs/corpora/internal/service"
)

type MockBaseService struct {
	mock.Mock
}

func (m *MockBaseService) CreateBase(ctx context.Context, input service.CreateBaseInput) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockBaseService) GetBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockBaseService) ListBases(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockBaseService) UpdateBase(ctx context.Context, id string, input service.UpdateBaseInput) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockBaseService) DeleteBase(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestBase() *domain.KnowledgeBase {
	now := time.Now().UTC()
	return &domain.KnowledgeBase{
		ID:         "b-123",
		Name:       "docs",
		ModelID:    "BAAI/bge-m3",
		Dimensions: 1024,
		Threshold:  0.1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func requestWithID(method, url, id string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestBaseHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	expected := newTestBase()
	mockSvc.On("CreateBase", mock.Anything, mock.MatchedBy(func(input service.CreateBaseInput) bool {
		return input.Name == "docs" && input.ModelID == "BAAI/bge-m3"
	})).Return(expected, nil)

	body := `{"name":"docs","model_id":"BAAI/bge-m3"}`
	req := httptest.NewRequest(http.MethodPost, "/bases", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data BaseResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "b-123", resp.Data.ID)
	assert.Equal(t, 1024, resp.Data.Dimensions)
	mockSvc.AssertExpectations(t)
}

func TestBaseHandler_Create_MissingName(t *testing.T) {
	handler := NewBaseHandler(new(MockBaseService))

	body := `{"model_id":"BAAI/bge-m3"}`
	req := httptest.NewRequest(http.MethodPost, "/bases", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBaseHandler_Create_UnknownModel(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	mockSvc.On("CreateBase", mock.Anything, mock.Anything).Return(nil, domain.ErrUnknownModel)

	body := `{"name":"docs","model_id":"made-up"}`
	req := httptest.NewRequest(http.MethodPost, "/bases", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBaseHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	mockSvc.On("GetBase", mock.Anything, "b-123").Return(newTestBase(), nil)

	req := requestWithID(http.MethodGet, "/bases/b-123", "b-123", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBaseHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	mockSvc.On("GetBase", mock.Anything, "b-999").Return(nil, domain.ErrBaseNotFound)

	req := requestWithID(http.MethodGet, "/bases/b-999", "b-999", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBaseHandler_List_Success(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	mockSvc.On("ListBases", mock.Anything).Return([]*domain.KnowledgeBase{newTestBase()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/bases", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []*BaseResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
}

func TestBaseHandler_Update_Success(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	updated := newTestBase()
	updated.Threshold = 0.4
	mockSvc.On("UpdateBase", mock.Anything, "b-123", mock.MatchedBy(func(input service.UpdateBaseInput) bool {
		return input.Threshold != nil && *input.Threshold == 0.4 && input.Name == nil
	})).Return(updated, nil)

	body := `{"threshold":0.4}`
	req := requestWithID(http.MethodPatch, "/bases/b-123", "b-123", []byte(body))
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestBaseHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockBaseService)
	handler := NewBaseHandler(mockSvc)

	mockSvc.On("DeleteBase", mock.Anything, "b-123").Return(nil)

	req := requestWithID(http.MethodDelete, "/bases/b-123", "b-123", nil)
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
