package ai

import (
	"context"
	"errors"
	"testing"

	"portfoliogo/internal/config"
)

func TestNewEmbeddingsWithoutKey(t *testing.T) {
	_, err := NewEmbeddings(context.Background(), config.EmbeddingConfig{})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNilEmbeddingsEmbed(t *testing.T) {
	var e *Embeddings
	if _, err := e.Embed(context.Background(), "text"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable from nil receiver, got %v", err)
	}
}

func TestNewChatModelWithoutKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), "openai", config.ProviderConfig{})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), "mystery", config.ProviderConfig{APIKey: "k"})
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
