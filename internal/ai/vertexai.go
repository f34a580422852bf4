package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type VertexAIClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewVertexAIClient creates a new client for the Google Gemini API.
func NewVertexAIClient(ctx context.Context, config *ClientConfig) (*VertexAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.SummaryModel == "" {
		config.SummaryModel = "gemini-2.0-flash"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}
	if config.HTTPClient != nil {
		cc.HTTPClient = config.HTTPClient
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &VertexAIClient{
		config: config,
		client: client,
	}, nil
}

// Embed embeds all texts in a single request.
func (c *VertexAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.client == nil {
		return nil, errors.New("vertexai client not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	cfg := genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, contents, &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, errors.New("embedding count does not match input")
	}

	out := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Summarize answers question from contextText using the Gemini API
func (c *VertexAIClient) Summarize(ctx context.Context, contextText, question string) (string, error) {
	if c.client == nil {
		return "", errors.New("vertexai client not initialized")
	}

	prompt, err := BuildPrompt(contextText, question)
	if err != nil {
		return "", err
	}

	temp := float32(0.2)
	topP := float32(0.9)
	topK := float32(40)
	cfg := genai.GenerateContentConfig{
		Temperature: &temp,
		TopP:        &topP,
		TopK:        &topK,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.SummaryModel, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptySummary
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return cleanSummary(b.String())
}

func (c *VertexAIClient) Dim() int {
	return c.config.Dim
}
