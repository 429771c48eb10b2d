package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hans1329/whoomi-memory/internal/breaker"
)

// DefaultDimension is the vector length of text-embedding-3-small.
const DefaultDimension = 1536

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

const (
	maxAttempts  = 3
	retryDelay   = 2 * time.Second
	defaultBase  = "https://api.openai.com"
	defaultHTTPT = 30 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI embedding client.
type OpenAIConfig struct {
	APIKey    string
	Model     string        // default: text-embedding-3-small
	Dimension int           // default: 1536
	BaseURL   string        // default: https://api.openai.com
	Timeout   time.Duration // per-request timeout, default: 30s
}

// OpenAIGenerator implements Generator against the OpenAI embeddings API.
// Calls are wrapped in a circuit breaker; each Embed retries transient
// failures up to maxAttempts with a fixed retryDelay between attempts before
// reporting ErrUnavailable.
type OpenAIGenerator struct {
	cfg     OpenAIConfig
	client  *http.Client
	breaker *breaker.Breaker
}

// NewOpenAIGenerator creates a new OpenAI embedding client.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPT
	}
	return &OpenAIGenerator{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("openai-embeddings"),
	}
}

// embeddingsRequest is the request body for POST /v1/embeddings.
type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for text, retrying transient provider
// failures before giving up with ErrUnavailable.
func (g *OpenAIGenerator) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := g.breaker.Execute(ctx, func() (interface{}, error) {
			return g.embed(ctx, text)
		})
		if err == nil {
			return result.([]float64), nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		log.Printf("embedding: attempt %d/%d failed: %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// embed performs a single embeddings API call.
func (g *OpenAIGenerator) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingsRequest{Model: g.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	vector := parsed.Data[0].Embedding
	if len(vector) != g.cfg.Dimension {
		return nil, fmt.Errorf("%w: model %s returned %d values, expected %d",
			ErrDimensionMismatch, g.cfg.Model, len(vector), g.cfg.Dimension)
	}
	return vector, nil
}

// Model returns the configured embedding model name.
func (g *OpenAIGenerator) Model() string { return g.cfg.Model }

// Dimension returns the configured vector length.
func (g *OpenAIGenerator) Dimension() int { return g.cfg.Dimension }

var _ Generator = (*OpenAIGenerator)(nil)
