package config

// Vector engine identifiers accepted in vector.index_type.
const (
	IndexTypeSQLite = "sqlite"
	IndexTypeMemory = "memory"
)

// Embedding providers accepted in embedding.provider.
const (
	ProviderONNX = "onnx"
	ProviderHash = "hash"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".knowling/db/notes.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = ".knowling/vectors"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".knowling/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "last_hidden_state"
	}
	if cfg.Embedding.Pooling == "" {
		cfg.Embedding.Pooling = "mean"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = IndexTypeSQLite
	}
	if cfg.Similarity.DefaultLimit == 0 {
		cfg.Similarity.DefaultLimit = 3
	}
	if cfg.Similarity.DefaultThreshold == 0 {
		cfg.Similarity.DefaultThreshold = 0.01
	}
	if cfg.Notes.ImportPattern == "" {
		cfg.Notes.ImportPattern = "*.md"
	}
	if cfg.Notes.ExportExtension == "" {
		cfg.Notes.ExportExtension = ".md"
	}
}
