package domain

// DefaultMockDimensions is the vector width of the deterministic
// fallback when no catalog entry supplies one.
const DefaultMockDimensions = 1536

// ProviderName identifies an embedding provider
type ProviderName string

const (
	ProviderOpenAI      ProviderName = "openai"
	ProviderSiliconFlow ProviderName = "siliconflow"
	ProviderMock        ProviderName = "mock"
)

// EmbeddingModel describes one entry of the built-in model catalog.
type EmbeddingModel struct {
	ID             string
	Provider       ProviderName
	Dimensions     int
	MaxInputTokens int
}

// ApproxMaxInputChars returns a conservative character budget for the
// model's token limit (roughly four characters per token).
func (m EmbeddingModel) ApproxMaxInputChars() int {
	return m.MaxInputTokens * 4
}

var modelCatalog = []EmbeddingModel{
	{ID: "BAAI/bge-m3", Provider: ProviderSiliconFlow, Dimensions: 1024, MaxInputTokens: 8191},
	{ID: "Pro/BAAI/bge-m3", Provider: ProviderSiliconFlow, Dimensions: 1024, MaxInputTokens: 8191},
	{ID: "BAAI/bge-large-zh-v1.5", Provider: ProviderSiliconFlow, Dimensions: 1024, MaxInputTokens: 512},
	{ID: "BAAI/bge-large-en-v1.5", Provider: ProviderSiliconFlow, Dimensions: 1024, MaxInputTokens: 512},
	{ID: "netease-youdao/bce-embedding-base_v1", Provider: ProviderSiliconFlow, Dimensions: 768, MaxInputTokens: 512},
	{ID: "text-embedding-3-small", Provider: ProviderOpenAI, Dimensions: 1536, MaxInputTokens: 8191},
	{ID: "text-embedding-3-large", Provider: ProviderOpenAI, Dimensions: 3072, MaxInputTokens: 8191},
	{ID: "text-embedding-ada-002", Provider: ProviderOpenAI, Dimensions: 1536, MaxInputTokens: 8191},
	{ID: "mock-embedding", Provider: ProviderMock, Dimensions: 1536, MaxInputTokens: 8191},
}

// ModelCatalog returns the built-in embedding model catalog.
func ModelCatalog() []EmbeddingModel {
	out := make([]EmbeddingModel, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// LookupModel finds a catalog entry by id.
func LookupModel(id string) (EmbeddingModel, bool) {
	for _, m := range modelCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return EmbeddingModel{}, false
}
