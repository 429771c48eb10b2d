package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hans1329/whoomi-memory/internal/config"
	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/engine"
	"github.com/hans1329/whoomi-memory/internal/storage/sqlite"
	"github.com/hans1329/whoomi-memory/internal/tagger"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

const testDimension = 16

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()

	annotator := tagger.NewHeuristicAnnotator(tagger.Vocabulary{
		Emotions: []string{"happy", "sad"},
		Topics:   []string{"family", "work"},
		Traits:   []string{"curious"},
	}, 1)
	return newTestServerWithAnnotator(t, annotator, mutate...)
}

func newTestServerWithAnnotator(t *testing.T, annotator tagger.Annotator, mutate ...func(*config.Config)) *httptest.Server {
	t.Helper()

	store, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedVocabularies(context.Background()))

	generator := embedding.NewMockGenerator(testDimension, 1)

	memories, err := engine.NewMemoryEngine(store, generator, annotator)
	require.NoError(t, err)
	search, err := engine.NewSearchEngine(store, generator)
	require.NoError(t, err)
	stats, err := engine.NewStatsEngine(store)
	require.NoError(t, err)

	cfg, err := config.LoadConfigFile("")
	require.NoError(t, err)
	cfg.Server.RateLimit = 1000
	cfg.Server.RateBurst = 1000
	for _, fn := range mutate {
		fn(cfg)
	}

	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	handlers := NewHandlers(memories, search, stats, annotator, hub)
	srv := httptest.NewServer(NewMux(cfg, handlers, hub))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func storeMemory(t *testing.T, srv *httptest.Server, req map[string]interface{}) storeResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/memory/store", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out storeResponse
	decode(t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestStoreAndGet(t *testing.T) {
	srv := newTestServer(t)

	stored := storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "I love my family",
		"role":      "user",
		"emotions":  []string{"happy"},
	})
	require.NotEmpty(t, stored.Memory.ID)
	assert.True(t, stored.Embedded)
	assert.Equal(t, []string{"happy"}, stored.Memory.Emotions)

	resp, err := http.Get(srv.URL + "/api/memory/get/" + stored.Memory.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Memory
	decode(t, resp, &got)
	assert.Equal(t, "I love my family", got.Text)
	assert.Equal(t, types.RoleUser, got.Role)
}

func TestStoreValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	cases := []map[string]interface{}{
		{"dopple_id": "d", "user_id": "u", "role": "user"},                              // missing text
		{"dopple_id": "d", "user_id": "u", "text": "x", "role": "robot"},                // bad role
		{"dopple_id": "d", "user_id": "u", "text": "x", "role": "user", "importance": 99}, // importance out of range
	}
	for _, body := range cases {
		resp := postJSON(t, srv.URL+"/api/memory/store", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGetNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/memory/get/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEmbedConflict(t *testing.T) {
	srv := newTestServer(t)

	stored := storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "already embedded",
		"role":      "user",
	})
	require.True(t, stored.Embedded)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/memory/embed/"+stored.Memory.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	srv := newTestServer(t)

	stored := storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "short lived",
		"role":      "user",
	})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/memory/delete/"+stored.Memory.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchSimilar(t *testing.T) {
	srv := newTestServer(t)

	// Threshold -1 admits any similarity; the single embedded memory is the
	// whole result set regardless of the query seed.
	stored := storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "I love my family",
		"role":      "user",
	})
	require.True(t, stored.Embedded)

	resp := postJSON(t, srv.URL+"/api/memory/search/similar", map[string]interface{}{
		"query":     "family",
		"dopple_id": "dopple-1",
		"top_k":     5,
		"threshold": -1,
		"use_mock":  true,
		"mock_seed": 99,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out similarSearchResponse
	decode(t, resp, &out)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, stored.Memory.ID, out.Results[0].Memory.ID)
}

func TestSearchSimilarValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/memory/search/similar", map[string]interface{}{
		"query": "", "top_k": 5,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/memory/search/similar", map[string]interface{}{
		"query": "x", "threshold": 2.0,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchMetadata(t *testing.T) {
	srv := newTestServer(t)

	storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1", "user_id": "user-1",
		"text": "happy family moment", "role": "user",
		"emotions": []string{"happy"}, "topics": []string{"family"},
	})
	storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1", "user_id": "user-1",
		"text": "rough day at work", "role": "user",
		"emotions": []string{"sad"}, "topics": []string{"work"},
	})

	resp := postJSON(t, srv.URL+"/api/memory/search/metadata", map[string]interface{}{
		"dopple_id": "dopple-1",
		"emotions":  []string{"happy"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out metadataSearchResponse
	decode(t, resp, &out)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "happy family moment", out.Results[0].Text)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		storeMemory(t, srv, map[string]interface{}{
			"dopple_id": "dopple-1", "user_id": "user-1",
			"text": fmt.Sprintf("memory %d", i), "role": "user",
			"emotions": []string{"happy"},
		})
	}

	resp, err := http.Get(srv.URL + "/api/memory/stats/dopple-1?user_id=user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats types.MemoryStats
	decode(t, resp, &stats)
	assert.Equal(t, 3, stats.TotalMemories)
	assert.Equal(t, 3, stats.UserMemories)
	require.NotEmpty(t, stats.TopEmotions)
	assert.Equal(t, types.TagCount{Name: "happy", Count: 3}, stats.TopEmotions[0])
}

func TestTagEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/memory/tag", map[string]interface{}{
		"text": "thinking about family and work",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var annotation tagger.Annotation
	decode(t, resp, &annotation)
	assert.GreaterOrEqual(t, annotation.Importance, types.MinImportance)
	assert.LessOrEqual(t, annotation.Importance, types.MaxImportance)

	resp = postJSON(t, srv.URL+"/api/memory/tag", map[string]interface{}{"text": "  "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// fixedTagAnnotator always returns the same annotation.
type fixedTagAnnotator struct {
	annotation tagger.Annotation
}

func (a fixedTagAnnotator) Tag(context.Context, string) (tagger.Annotation, error) {
	return a.annotation, nil
}

// routedAnnotator exposes a distinguishable local variant so tests can tell
// which annotator a request was routed to.
type routedAnnotator struct {
	fixedTagAnnotator
	local tagger.Annotator
}

func (a routedAnnotator) Mock() tagger.Annotator { return a.local }

func newRoutedAnnotator() routedAnnotator {
	return routedAnnotator{
		fixedTagAnnotator: fixedTagAnnotator{annotation: tagger.Annotation{Emotions: []string{"happy"}, Importance: 7}},
		local:             fixedTagAnnotator{annotation: tagger.Annotation{Emotions: []string{"sad"}, Importance: 4}},
	}
}

func TestTagEndpointUseMock(t *testing.T) {
	srv := newTestServerWithAnnotator(t, newRoutedAnnotator())

	resp := postJSON(t, srv.URL+"/api/memory/tag", map[string]interface{}{
		"text": "a memory worth tagging",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var annotation tagger.Annotation
	decode(t, resp, &annotation)
	assert.Equal(t, []string{"happy"}, annotation.Emotions)

	resp = postJSON(t, srv.URL+"/api/memory/tag", map[string]interface{}{
		"text":     "a memory worth tagging",
		"use_mock": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &annotation)
	assert.Equal(t, []string{"sad"}, annotation.Emotions)
}

func TestStoreMockTag(t *testing.T) {
	srv := newTestServerWithAnnotator(t, newRoutedAnnotator())

	stored := storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "something happened today",
		"role":      "user",
		"auto_tag":  true,
		"mock_tag":  true,
	})
	assert.Equal(t, []string{"sad"}, stored.Memory.Emotions)
	assert.Equal(t, 4, stored.Memory.Importance)

	stored = storeMemory(t, srv, map[string]interface{}{
		"dopple_id": "dopple-1",
		"user_id":   "user-1",
		"text":      "something else happened",
		"role":      "user",
		"auto_tag":  true,
	})
	assert.Equal(t, []string{"happy"}, stored.Memory.Emotions)
	assert.Equal(t, 7, stored.Memory.Importance)
}

func TestAnalyzeConversationEndpoint(t *testing.T) {
	srv := newTestServerWithAnnotator(t, newRoutedAnnotator())

	resp := postJSON(t, srv.URL+"/api/memory/analyze-conversation", map[string]interface{}{
		"conversation": []map[string]string{
			{"text": "hello there", "role": "user"},
			{"text": "good to see you", "role": "dopple"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analysis tagger.ConversationAnalysis
	decode(t, resp, &analysis)
	assert.Equal(t, 2, analysis.MessageCount)
	// Analysis always routes through the local annotator.
	require.Len(t, analysis.TopEmotions, 1)
	assert.Equal(t, "sad", analysis.TopEmotions[0].Name)
	assert.Equal(t, 2, analysis.TopEmotions[0].Count)
}

func TestProductionAuth(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.Mode = "production"
		cfg.Security.APIToken = "secret-token"
	})

	// No token.
	resp, err := http.Get(srv.URL + "/api/memory/get/some-id")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong token.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/memory/get/some-id", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct token reaches the handler (404 for the fake ID).
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Health stays open.
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 1
		cfg.Server.RateBurst = 2
	})

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst exhaustion must produce 429s")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/memory/store")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/memory/store", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
