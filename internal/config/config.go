// Package config provides configuration loading and structs for the Knowling notebook.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogLevel   string           `yaml:"log_level"` // debug, info, warn or error; debug forces "debug"
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Notes      NotesConfig      `yaml:"notes"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the relational database and the vector index directory.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	// Provider is "onnx" or "hash". When "onnx" cannot be loaded the hash embedder is used.
	// The ONNX path tokenizes with hashed term IDs, not the model's own vocabulary.
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// OutputName is the ONNX output tensor; Pooling is "mean" for token-level outputs or "none".
	OutputName string `yaml:"output_name"`
	Pooling    string `yaml:"pooling"`
}

// VectorConfig selects the vector engine.
type VectorConfig struct {
	// IndexType is "sqlite" (default) or "memory".
	IndexType string `yaml:"index_type"`
}

// SimilarityConfig holds the defaults for similar-note queries.
type SimilarityConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	DefaultThreshold float32 `yaml:"default_threshold"`
}

// NotesConfig holds import/export file settings.
type NotesConfig struct {
	ImportPattern   string `yaml:"import_pattern"`
	ExportExtension string `yaml:"export_extension"`
}

// WatchConfig holds inbox directories whose new note files are imported automatically.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   bool     `yaml:"recursive"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.ExpandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with all defaults applied and paths expanded relative to the home directory.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.ExpandPaths("")
	return cfg
}

// ExpandPaths makes every configured path absolute. See expandPath.
func (c *Config) ExpandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.VectorIndexPath = expandPath(c.Storage.VectorIndexPath, configDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
