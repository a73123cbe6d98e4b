package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/cli"
	"github.com/hyperjump/knowling/internal/client"
	"github.com/hyperjump/knowling/internal/config"
	"github.com/hyperjump/knowling/internal/embedding"
	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/notebook"
	"github.com/hyperjump/knowling/internal/storage"
	"github.com/hyperjump/knowling/internal/vector"
	"github.com/hyperjump/knowling/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/knowling/config.yaml"

var (
	configPath   string
	debug        bool
	outputFormat string
	serverURL    string
)

var rootCmd = &cobra.Command{
	Use:   "knowling",
	Short: "A local notebook that finds related notes",
	Long: `Knowling stores plain-text notes with categories and keeps an embedding
of every note so that notes with similar content can be found.

While "knowling server" runs it holds the notebook; pass --server to send
commands to it instead of opening the stores directly.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL, e.g. http://localhost:8080 (empty = open the stores directly)")
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func format() cli.OutputFormat {
	return cli.ParseOutputFormat(outputFormat)
}

// Components holds initialized services.
type Components struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
	Storage    storage.Storage
	Embedder   embedding.Embedder
	Index      *vector.Index
	Notebook   *notebook.Notebook

	lock *storage.DirLock
}

// Close releases every store and then the notebook lock. Safe to call on partially built components.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.lock != nil {
		_ = c.lock.Unlock()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// openNotebook loads config, builds the logger, and opens both stores.
func openNotebook() (*Components, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode), zap.String("log_level", cfg.LogLevel))

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	c.ConfigPath = resolved
	return c, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	if db := cfg.Storage.DatabasePath; db != "" && db != ":memory:" {
		lock, err := storage.LockDir(filepath.Dir(db))
		if errors.Is(err, storage.ErrLocked) {
			return nil, fmt.Errorf("%w; is \"knowling server\" running? use --server to talk to it", err)
		}
		if err != nil {
			return nil, err
		}
		c.lock = lock
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder = newEmbedder(cfg, logger)

	engine, err := vector.NewEngine(cfg.Vector.IndexType, cfg.Storage.VectorIndexPath, cfg.Embedding.Dimensions)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector engine: %w", err)
	}
	index, err := vector.NewIndex(engine, c.Embedder, cfg.Embedding.Dimensions, vector.WithLogger(logger))
	if err != nil {
		_ = engine.Close()
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.Index = index
	logger.Debug("vector index initialized",
		zap.String("type", cfg.Vector.IndexType),
		zap.String("path", cfg.Storage.VectorIndexPath),
		zap.Int("dimensions", cfg.Embedding.Dimensions))

	c.Notebook = notebook.New(store, index,
		notebook.WithLogger(logger),
		notebook.WithDefaultLimit(cfg.Similarity.DefaultLimit),
		notebook.WithDefaultThreshold(cfg.Similarity.DefaultThreshold),
		notebook.WithImportPattern(cfg.Notes.ImportPattern),
		notebook.WithExportExtension(cfg.Notes.ExportExtension),
	)
	return c, nil
}

// newEmbedder prefers the ONNX model and falls back to the hash embedder when the
// model or runtime is unavailable.
func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	var inner embedding.Embedder
	if cfg.Embedding.Provider == config.ProviderONNX {
		onnx, err := embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens,
			embedding.WithOutputName(cfg.Embedding.OutputName), embedding.WithPooling(cfg.Embedding.Pooling))
		if err != nil {
			logger.Warn("onnx embedder unavailable, using hash embedder",
				zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		} else {
			inner = onnx
		}
	}
	if inner == nil {
		inner = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
}

// withNotebook opens the notebook, runs fn, and closes everything afterwards.
func withNotebook(fn func(c *Components) error) error {
	c, err := openNotebook()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// noteService is the part of the notebook the note commands use. A local Notebook and a
// server Client both provide it.
type noteService interface {
	Upsert(ctx context.Context, id, text string) (*models.Note, error)
	GetNotes(ctx context.Context) ([]*models.Note, error)
	GetNoteByID(ctx context.Context, id string) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	AddCategoryToNote(ctx context.Context, noteID, label string) (*models.Note, error)
	RemoveCategoryFromNote(ctx context.Context, noteID, categoryID string) (*models.Note, error)
	GetSimilarNotesByID(ctx context.Context, id string, opts ...notebook.SimilarOption) ([]models.SimilarNote, error)
	ImportNotes(ctx context.Context, dir string) (int, error)
	ExportNotes(ctx context.Context, dir string) (int, string, error)
	Reset(ctx context.Context) error
	Status(ctx context.Context) (*models.Status, error)
}

// withNotes runs fn against the server given by --server, or against a locally opened
// notebook. c is nil in the server case.
func withNotes(fn func(notes noteService, c *Components) error) error {
	if serverURL != "" {
		return fn(client.New(serverURL), nil)
	}
	return withNotebook(func(c *Components) error {
		return fn(c.Notebook, c)
	})
}
