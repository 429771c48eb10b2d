// Package server exposes the memory engine over HTTP and a WebSocket
// activity feed.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/engine"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/internal/tagger"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

// Handlers bundles the API handlers with their collaborators.
type Handlers struct {
	memories  *engine.MemoryEngine
	search    *engine.SearchEngine
	stats     *engine.StatsEngine
	annotator tagger.Annotator
	hub       *Hub
}

// NewHandlers creates the API handler set. The annotator may be nil, which
// disables the /api/memory/tag endpoint. The hub may be nil, which disables
// activity broadcasts.
func NewHandlers(memories *engine.MemoryEngine, search *engine.SearchEngine, stats *engine.StatsEngine, annotator tagger.Annotator, hub *Hub) *Handlers {
	h := &Handlers{
		memories:  memories,
		search:    search,
		stats:     stats,
		annotator: annotator,
		hub:       hub,
	}
	if hub != nil {
		memories.OnMemoryCreated(func(result engine.RememberResult) {
			hub.Broadcast(ActivityEvent{
				Type:       "memory_created",
				MemoryID:   result.Memory.ID,
				DoppleID:   result.Memory.DoppleID,
				UserID:     result.Memory.UserID,
				Role:       string(result.Memory.Role),
				Importance: result.Memory.Importance,
				Embedded:   result.Embedded,
				Timestamp:  result.Memory.Timestamp.Format(time.RFC3339),
			})
		})
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain sentinels onto HTTP status codes. Anything
// unmapped is a 500 with a generic body; the detail goes to the log only.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicateEmbedding):
		writeError(w, http.StatusConflict, "memory already has an embedding")
	case errors.Is(err, embedding.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "embedding provider unavailable")
	default:
		log.Printf("server: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleInit applies the schema seed catalogs. Idempotent.
func (h *Handlers) HandleInit(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.Initialize(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

type storeRequest struct {
	DoppleID      string                 `json:"dopple_id"`
	UserID        string                 `json:"user_id"`
	Text          string                 `json:"text"`
	Role          string                 `json:"role"`
	Importance    int                    `json:"importance"`
	Metadata      map[string]interface{} `json:"metadata"`
	Emotions      []string               `json:"emotions"`
	Topics        []string               `json:"topics"`
	Traits        []string               `json:"traits"`
	AutoTag       bool                   `json:"auto_tag"`
	MockTag       bool                   `json:"mock_tag"`
	SkipEmbedding bool                   `json:"skip_embedding"`
}

type storeResponse struct {
	Memory   *types.Memory `json:"memory"`
	Embedded bool          `json:"embedded"`
}

// HandleStore creates a memory.
func (h *Handlers) HandleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.memories.Remember(r.Context(), engine.RememberRequest{
		DoppleID:      req.DoppleID,
		UserID:        req.UserID,
		Text:          req.Text,
		Role:          types.Role(req.Role),
		Importance:    req.Importance,
		Metadata:      req.Metadata,
		Emotions:      req.Emotions,
		Topics:        req.Topics,
		Traits:        req.Traits,
		AutoTag:       req.AutoTag,
		MockTag:       req.MockTag,
		SkipEmbedding: req.SkipEmbedding,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, storeResponse{Memory: result.Memory, Embedded: result.Embedded})
}

// HandleGet fetches one memory by ID from the path suffix.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/memory/get/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "memory ID is required")
		return
	}

	memory, err := h.memories.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

// HandleDelete removes one memory by ID from the path suffix.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/memory/delete/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "memory ID is required")
		return
	}

	if err := h.memories.Forget(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// HandleEmbed retries embedding for a memory stored without a vector.
func (h *Handlers) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/memory/embed/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "memory ID is required")
		return
	}

	if err := h.memories.Embed(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "embedded", "id": id})
}

type similarSearchRequest struct {
	Query     string  `json:"query"`
	DoppleID  string  `json:"dopple_id"`
	UserID    string  `json:"user_id"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
	UseMock   bool    `json:"use_mock"`
	MockSeed  int64   `json:"mock_seed"`
}

type similarSearchResponse struct {
	Results []types.ScoredMemory `json:"results"`
	Count   int                  `json:"count"`
}

// HandleSearchSimilar runs a cosine-similarity search.
func (h *Handlers) HandleSearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	results, err := h.search.Search(r.Context(), engine.SearchRequest{
		QueryText: req.Query,
		Scope:     storage.ScopeFilter{DoppleID: req.DoppleID, UserID: req.UserID},
		TopK:      req.TopK,
		Threshold: req.Threshold,
		UseMock:   req.UseMock,
		MockSeed:  req.MockSeed,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarSearchResponse{Results: results, Count: len(results)})
}

type metadataSearchRequest struct {
	DoppleID      string     `json:"dopple_id"`
	UserID        string     `json:"user_id"`
	Emotions      []string   `json:"emotions"`
	Topics        []string   `json:"topics"`
	Traits        []string   `json:"traits"`
	MinImportance int        `json:"min_importance"`
	Start         *time.Time `json:"start"`
	End           *time.Time `json:"end"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
}

type metadataSearchResponse struct {
	Results []types.Memory `json:"results"`
	Count   int            `json:"count"`
}

// HandleSearchMetadata filters memories by tags, importance, and time range.
func (h *Handlers) HandleSearchMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	filter := storage.MetadataFilter{
		Scope:         storage.ScopeFilter{DoppleID: req.DoppleID, UserID: req.UserID},
		Emotions:      req.Emotions,
		Topics:        req.Topics,
		Traits:        req.Traits,
		MinImportance: req.MinImportance,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	if req.Start != nil {
		filter.Start = *req.Start
	}
	if req.End != nil {
		filter.End = *req.End
	}

	results, err := h.memories.FilterByMetadata(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if results == nil {
		results = []types.Memory{}
	}
	writeJSON(w, http.StatusOK, metadataSearchResponse{Results: results, Count: len(results)})
}

// HandleStats returns aggregate counts for a dopple, optionally narrowed to
// one user with the user_id query parameter.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	doppleID := strings.TrimPrefix(r.URL.Path, "/api/memory/stats/")
	if doppleID == "" || strings.Contains(doppleID, "/") {
		writeError(w, http.StatusBadRequest, "dopple ID is required")
		return
	}

	stats, err := h.stats.Stats(r.Context(), doppleID, r.URL.Query().Get("user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type tagRequest struct {
	Text    string `json:"text"`
	UseMock bool   `json:"use_mock"`
}

// HandleTag runs the annotator over a piece of text without storing
// anything.
func (h *Handlers) HandleTag(w http.ResponseWriter, r *http.Request) {
	if h.annotator == nil {
		writeError(w, http.StatusNotImplemented, "tagging is not configured")
		return
	}

	var req tagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	annotator := h.annotator
	if req.UseMock {
		annotator = tagger.MockOf(annotator)
	}
	annotation, err := annotator.Tag(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotation)
}

type conversationAnalysisRequest struct {
	Conversation []tagger.ConversationMessage `json:"conversation"`
}

// HandleAnalyzeConversation tags every message in a conversation and reports
// the dominant emotions, topics, and traits. Per-message tagging always runs
// the local annotator variant so a long conversation never fans out into one
// remote call per message.
func (h *Handlers) HandleAnalyzeConversation(w http.ResponseWriter, r *http.Request) {
	if h.annotator == nil {
		writeError(w, http.StatusNotImplemented, "tagging is not configured")
		return
	}

	var req conversationAnalysisRequest
	if !decodeBody(w, r, &req) {
		return
	}

	analysis := tagger.AnalyzeConversation(r.Context(), tagger.MockOf(h.annotator), req.Conversation)
	writeJSON(w, http.StatusOK, analysis)
}
