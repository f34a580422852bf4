package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultOllamaURL is the address of a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	config *ClientConfig
	http   *http.Client
}

func NewOllamaClient(config *ClientConfig) *OllamaClient {
	if config.OllamaURL == "" {
		config.OllamaURL = DefaultOllamaURL
	}
	config.OllamaURL = strings.TrimRight(config.OllamaURL, "/")
	if config.EmbedModel == "" {
		config.EmbedModel = "nomic-embed-text"
	}
	if config.SummaryModel == "" {
		config.SummaryModel = "mistral"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &OllamaClient{config: config, http: httpClient}
}

// Embed implements the embedding functionality via /api/embed
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"model": c.config.EmbedModel,
		"input": texts,
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/api/embed", payload, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Summarize implements the summarization functionality via /api/generate
func (c *OllamaClient) Summarize(ctx context.Context, contextText, question string) (string, error) {
	prompt, err := BuildPrompt(contextText, question)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model":  c.config.SummaryModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.2,
			"top_k":       40,
			"top_p":       0.9,
		},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", payload, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return cleanSummary(out.Response)
}

func (c *OllamaClient) Dim() int {
	return c.config.Dim
}

func (c *OllamaClient) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.OllamaURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return errors.New(e.Error)
		}
		return errors.New(resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
