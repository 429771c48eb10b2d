// Command memory-web serves the dopple memory API over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hans1329/whoomi-memory/internal/config"
	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/engine"
	"github.com/hans1329/whoomi-memory/internal/server"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/internal/storage/postgres"
	"github.com/hans1329/whoomi-memory/internal/storage/sqlite"
	"github.com/hans1329/whoomi-memory/internal/tagger"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (overrides WHOOMI_CONFIG_FILE)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.SeedVocabularies(ctx); err != nil {
		log.Fatalf("Failed to seed vocabularies: %v", err)
	}

	generator := buildGenerator(cfg)
	annotator, err := buildAnnotator(ctx, cfg, store)
	if err != nil {
		log.Fatalf("Failed to build annotator: %v", err)
	}

	memories, err := engine.NewMemoryEngine(store, generator, annotator)
	if err != nil {
		log.Fatalf("Failed to initialize memory engine: %v", err)
	}
	search, err := engine.NewSearchEngine(store, generator)
	if err != nil {
		log.Fatalf("Failed to initialize search engine: %v", err)
	}
	stats, err := engine.NewStatsEngine(store)
	if err != nil {
		log.Fatalf("Failed to initialize stats engine: %v", err)
	}

	addr, err := server.Start(ctx, cfg, memories, search, stats, annotator)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Memory API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second)
}

func openStore(cfg *config.Config) (storage.MemoryStore, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.NewMemoryStore(cfg.Storage.PostgresDSN)
	default:
		if dir := filepath.Dir(cfg.Storage.DataPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		return sqlite.NewMemoryStore(cfg.Storage.DataPath)
	}
}

func buildGenerator(cfg *config.Config) embedding.Generator {
	if cfg.Embedding.UseMock {
		log.Printf("Using mock embeddings (%d dims)", cfg.Embedding.Dimension)
		return embedding.NewMockGenerator(cfg.Embedding.Dimension, time.Now().UnixNano())
	}
	return embedding.NewOpenAIGenerator(embedding.OpenAIConfig{
		APIKey:    cfg.Embedding.OpenAIAPIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
}

func buildAnnotator(ctx context.Context, cfg *config.Config, store storage.MemoryStore) (tagger.Annotator, error) {
	vocab, err := loadVocabulary(ctx, store)
	if err != nil {
		return nil, err
	}
	heuristic := tagger.NewHeuristicAnnotator(vocab, time.Now().UnixNano())
	if cfg.Tagging.UseHeuristic {
		log.Printf("Using heuristic tagger")
		return heuristic, nil
	}
	return tagger.NewOpenAIAnnotator(tagger.OpenAIConfig{
		APIKey: cfg.Embedding.OpenAIAPIKey,
		Model:  cfg.Tagging.Model,
	}, vocab, heuristic), nil
}

func loadVocabulary(ctx context.Context, store storage.MemoryStore) (tagger.Vocabulary, error) {
	var vocab tagger.Vocabulary
	var err error
	if vocab.Emotions, err = store.VocabularyNames(ctx, types.TagEmotion); err != nil {
		return vocab, err
	}
	if vocab.Topics, err = store.VocabularyNames(ctx, types.TagTopic); err != nil {
		return vocab, err
	}
	if vocab.Traits, err = store.VocabularyNames(ctx, types.TagTrait); err != nil {
		return vocab, err
	}
	return vocab, nil
}
