// Command memory-setup initializes the memory database: creates the schema
// and seeds the tag vocabularies. Safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hans1329/whoomi-memory/internal/config"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/internal/storage/postgres"
	"github.com/hans1329/whoomi-memory/internal/storage/sqlite"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (overrides WHOOMI_CONFIG_FILE)")
	verify := flag.Bool("verify", false, "Check an existing database instead of initializing")
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
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if *verify {
		runVerify(ctx, store, cfg)
		return
	}

	if err := store.SeedVocabularies(ctx); err != nil {
		log.Fatalf("Failed to seed vocabularies: %v", err)
	}

	fmt.Printf("Initialized %s storage.\n", cfg.Storage.Engine)
	printVocabularies(ctx, store)
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

// runVerify reports vocabulary completeness against the seed catalogs.
func runVerify(ctx context.Context, store storage.MemoryStore, cfg *config.Config) {
	fmt.Printf("Verifying %s storage...\n\n", cfg.Storage.Engine)

	ok := true
	for _, kind := range []types.TagKind{types.TagEmotion, types.TagTopic, types.TagTrait} {
		names, err := store.VocabularyNames(ctx, kind)
		if err != nil {
			fmt.Printf("  [FAIL] %s vocabulary: %v\n", kind, err)
			ok = false
			continue
		}
		want := len(storage.SeedCatalog(kind))
		if len(names) < want {
			fmt.Printf("  [FAIL] %s vocabulary: %d of %d entries (run memory-setup to seed)\n", kind, len(names), want)
			ok = false
		} else {
			fmt.Printf("  [ OK ] %s vocabulary: %d entries\n", kind, len(names))
		}
	}

	counts, err := store.CountByRole(ctx, storage.ScopeFilter{})
	if err != nil {
		fmt.Printf("  [FAIL] memory counts: %v\n", err)
		ok = false
	} else {
		fmt.Printf("  [ OK ] %d memories stored (%d user, %d dopple)\n", counts.Total, counts.User, counts.Dopple)
	}

	if !ok {
		os.Exit(1)
	}
}

func printVocabularies(ctx context.Context, store storage.MemoryStore) {
	for _, kind := range []types.TagKind{types.TagEmotion, types.TagTopic, types.TagTrait} {
		names, err := store.VocabularyNames(ctx, kind)
		if err != nil {
			log.Printf("Failed to list %s vocabulary: %v", kind, err)
			continue
		}
		fmt.Printf("  %s (%d): %v\n", kind, len(names), names)
	}
}
