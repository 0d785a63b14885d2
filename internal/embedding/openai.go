package embedding

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oak-labs/corpora/internal/domain"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoEmbeddingData is returned when the API responds without vectors
	ErrNoEmbeddingData = errors.New("no embedding data returned")
)

// OpenAIProvider serves the OpenAI embedding model family.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider against api.openai.com. Returns
// nil when no API key is configured so the resolver falls back.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: embedTimeout}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() domain.ProviderName {
	return domain.ProviderOpenAI
}

// Embed calls the OpenAI embeddings API for a single input.
func (p *OpenAIProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return createEmbedding(ctx, p.client, model, text)
}

// SiliconFlowProvider serves the SiliconFlow model family through its
// OpenAI-compatible embeddings endpoint.
type SiliconFlowProvider struct {
	client *openai.Client
}

// DefaultSiliconFlowBaseURL is SiliconFlow's OpenAI-compatible API root.
const DefaultSiliconFlowBaseURL = "https://api.siliconflow.cn/v1"

// NewSiliconFlowProvider creates a provider against the SiliconFlow
// API. Returns nil when no API key is configured.
func NewSiliconFlowProvider(apiKey, baseURL string) *SiliconFlowProvider {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultSiliconFlowBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: embedTimeout}
	return &SiliconFlowProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *SiliconFlowProvider) Name() domain.ProviderName {
	return domain.ProviderSiliconFlow
}

// Embed calls the SiliconFlow embeddings API for a single input.
func (p *SiliconFlowProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return createEmbedding(ctx, p.client, model, text)
}

func createEmbedding(ctx context.Context, client *openai.Client, model string, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}
	return resp.Data[0].Embedding, nil
}
