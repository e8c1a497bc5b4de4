package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds connection details shared by the OpenAI-compatible
// embedding and completion clients.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding capability.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	Dimension int           `yaml:"dimension"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// ModelConfig selects and configures the language-model capability.
// Type "none" disables it; every synthesis stage then takes its fallback.
type ModelConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how document text is split into chunks.
type ChunkerConfig struct {
	Size int `yaml:"size"`
}

// QdrantConfig contains connection details for the approximate index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects the approximate vector index backend. Type "none"
// means every search uses the exact cosine fallback.
type IndexConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path,omitempty"`
}

// PipelineConfig tunes the synthesis orchestration.
type PipelineConfig struct {
	WindowSize  int `yaml:"window_size"`
	ContextTopK int `yaml:"context_top_k"`
	Workers     int `yaml:"workers"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder EmbedderConfig `yaml:"embedder"`
	Model    ModelConfig    `yaml:"model"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Index    IndexConfig    `yaml:"index"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	LogMode  string         `yaml:"log_mode"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/eduscribe/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "eduscribe", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder: EmbedderConfig{Type: "hash", Dimension: 384},
		Model:    ModelConfig{Type: "none"},
		Chunker:  ChunkerConfig{Size: 300},
		Index:    IndexConfig{Type: "none"},
		Store:    StoreConfig{Type: "memory"},
		Pipeline: PipelineConfig{WindowSize: 5, ContextTopK: 5, Workers: 4},
		LogMode:  "dev",
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hash"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Model.Type == "" {
		cfg.Model.Type = "none"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 300
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "none"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Pipeline.WindowSize == 0 {
		cfg.Pipeline.WindowSize = 5
	}
	if cfg.Pipeline.ContextTopK == 0 {
		cfg.Pipeline.ContextTopK = 5
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	if cfg.Model.Type == "openai" && cfg.Model.OpenAI != nil {
		applyOpenAIDefaults(cfg.Model.OpenAI, "gpt-4o-mini")
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "eduscribe"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
}

func applyOpenAIDefaults(cfg *OpenAIConfig, model string) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 30
	}
}
