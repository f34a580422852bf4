package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Test configuration validation and defaults in NewVertexAIClient
func TestNewVertexAIClient_Configuration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name                 string
		config               *ClientConfig
		expectError          bool
		errorMsg             string
		expectedEmbedModel   string
		expectedSummaryModel string
		expectedDim          int
	}{
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
			errorMsg:    "config cannot be nil",
		},
		{
			name: "with all models specified",
			config: &ClientConfig{
				APIKey:       "test-api-key",
				EmbedModel:   "custom-embed-model",
				SummaryModel: "custom-summary-model",
				Dim:          1024,
			},
			expectedEmbedModel:   "custom-embed-model",
			expectedSummaryModel: "custom-summary-model",
			expectedDim:          1024,
		},
		{
			name: "with default models",
			config: &ClientConfig{
				APIKey: "test-api-key",
			},
			expectedEmbedModel:   "text-embedding-005",
			expectedSummaryModel: "gemini-2.0-flash",
			expectedDim:          768,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewVertexAIClient(ctx, tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error %q does not contain %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.config.EmbedModel != tt.expectedEmbedModel {
				t.Errorf("EmbedModel = %q, want %q", client.config.EmbedModel, tt.expectedEmbedModel)
			}
			if client.config.SummaryModel != tt.expectedSummaryModel {
				t.Errorf("SummaryModel = %q, want %q", client.config.SummaryModel, tt.expectedSummaryModel)
			}
			if client.Dim() != tt.expectedDim {
				t.Errorf("Dim() = %d, want %d", client.Dim(), tt.expectedDim)
			}
		})
	}
}

func TestVertexAIClient_LocationDefault(t *testing.T) {
	cfg := &ClientConfig{APIKey: "k"}
	if _, err := NewVertexAIClient(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location != "" {
		t.Errorf("API key clients should not get a default location, got %q", cfg.Location)
	}
}

func TestVertexAIClient_NilClient(t *testing.T) {
	c := &VertexAIClient{config: &ClientConfig{Dim: 768}}
	ctx := context.Background()

	if _, err := c.Embed(ctx, []string{"a"}); err == nil {
		t.Error("expected error from uninitialized client")
	}
	if _, err := c.Summarize(ctx, legalContext, "q"); err == nil {
		t.Error("expected error from uninitialized client")
	}
}

func TestVertexAIClient_ShortCircuits(t *testing.T) {
	c, err := NewVertexAIClient(context.Background(), &ClientConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewVertexAIClient: %v", err)
	}

	vecs, err := c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v", vecs, err)
	}
	if _, err := c.Summarize(context.Background(), "tiny", "q"); !errors.Is(err, ErrInsufficientContext) {
		t.Errorf("expected ErrInsufficientContext, got %v", err)
	}
}

func TestVertexAIClient_InterfaceCompliance(t *testing.T) {
	var _ Client = (*VertexAIClient)(nil)
}
