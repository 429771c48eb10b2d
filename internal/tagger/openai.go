package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hans1329/whoomi-memory/internal/breaker"
)

// OpenAIConfig holds configuration for the LLM-backed annotator.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // default: gpt-4o-mini
	BaseURL string        // default: https://api.openai.com
	Timeout time.Duration // default: 30s
}

// OpenAIAnnotator tags text through the chat completions API. Any failure
// falls back to the heuristic annotator so tagging never blocks memory
// creation.
type OpenAIAnnotator struct {
	cfg      OpenAIConfig
	vocab    Vocabulary
	client   *http.Client
	breaker  *breaker.Breaker
	fallback Annotator
}

// NewOpenAIAnnotator creates an LLM annotator with a heuristic fallback over
// the same vocabulary.
func NewOpenAIAnnotator(cfg OpenAIConfig, vocab Vocabulary, fallback Annotator) *OpenAIAnnotator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if fallback == nil {
		fallback = NewHeuristicAnnotator(vocab, time.Now().UnixNano())
	}
	return &OpenAIAnnotator{
		cfg:      cfg,
		vocab:    vocab,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker.New("openai-tagger"),
		fallback: fallback,
	}
}

// Mock returns the heuristic fallback, letting callers tag without touching
// the API on a per-request basis.
func (o *OpenAIAnnotator) Mock() Annotator { return o.fallback }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Tag annotates text via the LLM, falling back to the heuristic on any error.
func (o *OpenAIAnnotator) Tag(ctx context.Context, text string) (Annotation, error) {
	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.tag(ctx, text)
	})
	if err != nil {
		log.Printf("tagger: LLM tagging failed, using heuristic fallback: %v", err)
		return o.fallback.Tag(ctx, text)
	}
	return result.(Annotation), nil
}

func (o *OpenAIAnnotator) tag(ctx context.Context, text string) (Annotation, error) {
	prompt := fmt.Sprintf(`Analyze the following text and identify:
1. Emotions expressed or evoked (limit to 1-2)
2. Topics discussed (limit to 1-3)
3. Personality traits reflected (limit to 1-2)
4. Importance level (1-10 scale, where 10 is extremely important)

Only select from the following predefined categories:
- Emotions: %s
- Topics: %s
- Traits: %s

Format your response as a JSON object with keys "emotions", "topics", "traits", and "importance".

Text to analyze: %q`,
		strings.Join(o.vocab.Emotions, ", "),
		strings.Join(o.vocab.Topics, ", "),
		strings.Join(o.vocab.Traits, ", "),
		text)

	body, err := json.Marshal(chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that analyzes text and extracts structured information."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return Annotation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Annotation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Annotation{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Annotation{}, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Annotation{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Annotation{}, fmt.Errorf("openai returned no choices")
	}

	a, err := parseAnnotation(parsed.Choices[0].Message.Content)
	if err != nil {
		return Annotation{}, err
	}
	return sanitize(a, o.vocab), nil
}

// parseAnnotation extracts the JSON annotation from an LLM response, which
// may be wrapped in markdown code fences.
func parseAnnotation(content string) (Annotation, error) {
	jsonStr := strings.TrimSpace(content)
	if idx := strings.Index(jsonStr, "```json"); idx >= 0 {
		jsonStr = jsonStr[idx+len("```json"):]
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	} else if idx := strings.Index(jsonStr, "```"); idx >= 0 {
		jsonStr = jsonStr[idx+3:]
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	}
	jsonStr = strings.TrimSpace(jsonStr)

	// Importance may come back as a number or a quoted string; accept both.
	var raw struct {
		Emotions   []string        `json:"emotions"`
		Topics     []string        `json:"topics"`
		Traits     []string        `json:"traits"`
		Importance json.RawMessage `json:"importance"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return Annotation{}, fmt.Errorf("parse annotation JSON: %w", err)
	}

	a := Annotation{Emotions: raw.Emotions, Topics: raw.Topics, Traits: raw.Traits}
	if len(raw.Importance) > 0 {
		var n int
		if err := json.Unmarshal(raw.Importance, &n); err == nil {
			a.Importance = n
		} else {
			var s string
			if err := json.Unmarshal(raw.Importance, &s); err == nil {
				fmt.Sscanf(s, "%d", &a.Importance)
			}
		}
	}
	return a, nil
}

var _ Annotator = (*OpenAIAnnotator)(nil)
