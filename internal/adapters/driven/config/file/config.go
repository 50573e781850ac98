package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// appDir is the per-user directory under $HOME.
const appDir = ".sercha-ask"

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// DefaultDir returns ~/.sercha-ask.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, appDir), nil
}

// DefaultPath returns ~/.sercha-ask/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration from path, applies provider keys from the
// environment and validates the result. An empty path means DefaultPath,
// which may be absent; an explicit path must exist. Every failure wraps
// domain.ErrConfiguration.
func Load(path string) (domain.Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, env LookupEnv) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", domain.ErrConfiguration, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file yet - defaults apply
	default:
		return cfg, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	ApplyEnv(&cfg, env)

	if err := fillPaths(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode rejects keys the config does not define, so typos fail loudly.
func decode(data []byte, cfg *domain.Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return nil
}

// ApplyEnv fills provider credentials the file left empty.
func ApplyEnv(cfg *domain.Config, env LookupEnv) {
	set := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := env(key); ok {
			*dst = v
		}
	}

	if cfg.Embedding.Provider == domain.AIProviderOpenAI {
		set(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	}
	switch cfg.LLM.Provider {
	case domain.AIProviderOpenAI:
		set(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	case domain.AIProviderAnthropic:
		set(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	}
	if cfg.Rerank.Provider == domain.RerankProviderCohere {
		set(&cfg.Rerank.APIKey, "COHERE_API_KEY")
	}

	set(&cfg.WebSearch.TavilyAPIKey, "TAVILY_API_KEY")
	set(&cfg.WebSearch.SerperAPIKey, "SERPER_API_KEY")
	set(&cfg.WebSearch.GoogleAPIKey, "GOOGLE_CSE_KEY")
	set(&cfg.WebSearch.GoogleEngineID, "GOOGLE_CSE_ID")
	set(&cfg.WebSearch.GeminiAPIKey, "GEMINI_API_KEY")
}

func fillPaths(cfg *domain.Config) error {
	if cfg.Storage.DataDir != "" && cfg.Prompts.Dir != "" {
		return nil
	}
	dir, err := DefaultDir()
	if err != nil {
		return err
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filepath.Join(dir, "data")
	}
	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = filepath.Join(dir, "prompts")
	}
	return nil
}

// WriteDefault writes the default configuration to path unless a file is
// already there. Keys are never written.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, domain.ErrAlreadyExists)
	}

	data, err := toml.Marshal(domain.DefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(path, data, 0600)
}
