package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"portfoliogo/internal/config"
)

const defaultEmbeddingModel = "gemini-embedding-001"

// Embeddings wraps the genai embedding endpoint. A nil *Embeddings is a
// valid "no provider" value; Embed then fails with ErrProviderUnavailable.
type Embeddings struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewEmbeddings creates the embedding client from config.
func NewEmbeddings(ctx context.Context, cfg config.EmbeddingConfig) (*Embeddings, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no embedding api key", ErrProviderUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultEmbeddingModel
	}
	return &Embeddings{
		client:     client,
		model:      modelName,
		dimensions: int32(cfg.Dimensions),
	}, nil
}

// Embed returns a fixed-length vector for text.
func (e *Embeddings) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil || e.client == nil {
		return nil, ErrProviderUnavailable
	}
	var embedCfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dims := e.dimensions
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), embedCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: embed content: %v", ErrProviderUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrProviderUnavailable)
	}
	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}
