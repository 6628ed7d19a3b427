package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/dejaview/internal/config"
	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

// loadConfig reads the config file and applies flag overrides. Validation
// happens later, once the store is open and persisted overrides are visible.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(config.Dir(), "config.yaml"))
	if err != nil {
		return nil, err
	}
	if providerType != "" {
		cfg.Provider = providerType
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	return cfg, nil
}

// validateConfig backfills the endpoint from `config set openai.endpoint`
// when neither file nor flag provided one, then lints the result.
func validateConfig(cfg *config.Config, s store.Storage) error {
	if cfg.Provider == "openai" && cfg.Endpoint == "" && s != nil {
		cfg.Endpoint, _ = s.GetConfig("openai.endpoint")
	}

	validation := cfg.Validate()
	if !validation.Valid {
		return fmt.Errorf("invalid config: %v", validation.Errors)
	}
	return nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(
		filepath.Join(config.Dir(), "memories.db"),
		cfg.RetentionPolicy(),
	)
}

func newClient(cfg *config.Config) (infer.Client, error) {
	switch cfg.Provider {
	case "ollama":
		return infer.NewOllamaClient(cfg.Model)
	case "openai":
		return infer.NewOpenAIClient(cfg.Endpoint, cfg.Model)
	case "stub":
		return infer.NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func getStore() *store.SQLiteStore {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	s, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Failed to init store: %v\n", err)
		os.Exit(1)
	}
	return s
}
