package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Embedder turns texts into fixed-dimension vectors. Identical input yields
// identical output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Summarizer answers a question using only the supplied context.
type Summarizer interface {
	Summarize(ctx context.Context, contextText, question string) (string, error)
}

// Client provides both embedding and summarization capabilities
type Client interface {
	Embedder
	Summarizer
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderOllama   Provider = "ollama"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	Provider        Provider
	SummaryProvider Provider // defaults to Provider
	APIKey          string
	EmbedModel      string
	SummaryModel    string
	Dim             int
	ProjectID       string
	Location        string
	BaseURL         string // OpenAI-compatible endpoint override
	OllamaURL       string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// NewClient creates a new AI client based on configuration. When
// SummaryProvider differs from Provider, embeddings and summaries are served
// by separate backends.
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	// Copy before the embedding provider fills in its own model defaults.
	sc := *config
	sc.EmbedModel = ""

	embed, err := newProvider(ctx, config.Provider, config)
	if err != nil {
		return nil, err
	}
	if config.SummaryProvider == "" || config.SummaryProvider == config.Provider {
		return embed, nil
	}

	summ, err := newProvider(ctx, config.SummaryProvider, &sc)
	if err != nil {
		return nil, fmt.Errorf("summary provider: %w", err)
	}
	return &split{Embedder: embed, Summarizer: summ}, nil
}

func newProvider(ctx context.Context, p Provider, config *ClientConfig) (Client, error) {
	switch p {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderOllama:
		return NewOllamaClient(config), nil
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(p))
	}
}

// split pairs an embedding backend with a different summarization backend.
type split struct {
	Embedder
	Summarizer
}
