package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/hans1329/whoomi-memory/internal/config"
	"github.com/hans1329/whoomi-memory/internal/engine"
	"github.com/hans1329/whoomi-memory/internal/tagger"
)

// methodHandler rejects requests whose method differs from want.
func methodHandler(want string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != want {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// NewMux builds the full route table with middleware applied.
func NewMux(cfg *config.Config, handlers *Handlers, hub *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodHandler(http.MethodGet, handlers.HandleHealth))

	api := http.NewServeMux()
	api.HandleFunc("/api/memory/init", methodHandler(http.MethodPost, handlers.HandleInit))
	api.HandleFunc("/api/memory/store", methodHandler(http.MethodPost, handlers.HandleStore))
	api.HandleFunc("/api/memory/get/", methodHandler(http.MethodGet, handlers.HandleGet))
	api.HandleFunc("/api/memory/delete/", methodHandler(http.MethodDelete, handlers.HandleDelete))
	api.HandleFunc("/api/memory/embed/", methodHandler(http.MethodPost, handlers.HandleEmbed))
	api.HandleFunc("/api/memory/search/similar", methodHandler(http.MethodPost, handlers.HandleSearchSimilar))
	api.HandleFunc("/api/memory/search/metadata", methodHandler(http.MethodPost, handlers.HandleSearchMetadata))
	api.HandleFunc("/api/memory/stats/", methodHandler(http.MethodGet, handlers.HandleStats))
	api.HandleFunc("/api/memory/tag", methodHandler(http.MethodPost, handlers.HandleTag))
	api.HandleFunc("/api/memory/analyze-conversation", methodHandler(http.MethodPost, handlers.HandleAnalyzeConversation))
	mux.Handle("/api/", requireAuth(api, cfg))

	if hub != nil {
		mux.Handle("/ws/activity", hub)
	}

	rateLimiter := NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rateLimiter)
	handler = securityHeadersMiddleware(handler)
	handler = requestLogMiddleware(handler)
	return handler
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully. Returns the address actually listened on, useful with port 0
// in tests.
func Start(ctx context.Context, cfg *config.Config, memories *engine.MemoryEngine, search *engine.SearchEngine, stats *engine.StatsEngine, annotator tagger.Annotator) (string, error) {
	hub := NewHub()
	go hub.Run()

	handlers := NewHandlers(memories, search, stats, annotator, hub)
	handler := NewMux(cfg, handlers, hub)

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		hub.Stop()
		return "", fmt.Errorf("server: failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		hub.Stop()
	}()

	go func() {
		log.Printf("server: listening on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	return listener.Addr().String(), nil
}
