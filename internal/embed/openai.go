package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI embedder. BaseURL is optional and
// points the client at a compatible endpoint.
type OpenAIConfig struct {
	APIKey     string `yaml:"-"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
}

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// defaultOpenAIDimensions is the native size of text-embedding-3-small.
const defaultOpenAIDimensions = 1536

// OpenAI embeds text through the embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
	logger *slog.Logger
}

// NewOpenAI builds an embedder. An empty API key is an error so callers
// can fall back to a local embedder.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: openai api key not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultOpenAIDimensions
	}
	logger.Info("initializing openai embedder", "model", model, "dimensions", dims)
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		dims:   dims,
		logger: logger.With("component", "embed.openai"),
	}, nil
}

// Dimensions implements Embedder.
func (o *OpenAI) Dimensions() int { return o.dims }

// Name implements Embedder.
func (o *OpenAI) Name() string { return "openai:" + o.model }

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dims != defaultOpenAIDimensions {
		req.Dimensions = o.dims
	}
	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		o.logger.Warn("embedding request failed", "error", err)
		return nil, fmt.Errorf("embed: openai: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: openai returned no embedding")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != o.dims {
		return nil, fmt.Errorf("embed: openai returned %d dimensions, want %d", len(vec), o.dims)
	}
	return vec, nil
}
