// Package config loads and validates a ProjectIndex's configuration
// document: the immutable record every other component receives a
// borrowed reference to. Configuration is read once, at initialize time, from config.json
// with an environment-variable overlay for embedder provider selection,
// following internal/embedder/factory.go's CODEINTEL_EMBEDDING_PROVIDER
// convention rather than pulling in a third-party config library.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// AutoIndex configures the optional file-watcher-driven reindex loop.
// codeintel itself never starts a watcher; this is only the config
// surface an external scheduler adapter reads.
type AutoIndex struct {
	Enabled       bool `json:"enabled"`
	CheckInterval int  `json:"check_interval_seconds"`
}

// Weights are the Search Engine's re-rank coefficients. They are
// suggested defaults per the governing formula, not constants, so they
// live on Config rather than being hardcoded in internal/searcher.
type Weights struct {
	Vector      float64 `json:"w_v"`
	Quality     float64 `json:"w_q"`
	Structural  float64 `json:"w_s"`
	Boilerplate float64 `json:"w_b"`
}

// DefaultWeights are the recommended re-rank weights.
var DefaultWeights = Weights{Vector: 0.7, Quality: 0.15, Structural: 0.1, Boilerplate: 0.25}

// Config is the ProjectIndex's immutable configuration record.
// Once written by Initialize it is read-only for the life of the
// index; changing EmbeddingModel or EmbeddingNormalised requires a full
// reindex. Neither this package nor the Indexer detects such a change.
type Config struct {
	FileExtensions      []string  `json:"file_extensions"`
	ExcludePatterns     []string  `json:"exclude_patterns"`
	RespectGitignore    bool      `json:"respect_gitignore"`
	SkipDotfiles        bool      `json:"skip_dotfiles"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingNormalised bool      `json:"embedding_normalised"`
	BatchSize           int       `json:"batch_size"`
	ChunkSize           int       `json:"chunk_size"`
	ChunkOverlap        int       `json:"chunk_overlap"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
	MaxChunkSize        int       `json:"max_chunk_size"`
	PoolSize            int       `json:"pool_size"`
	ReadConcurrency     int       `json:"read_concurrency"`
	AutoIndex           AutoIndex `json:"auto_index"`
	Weights             Weights   `json:"weights"`
}

// DefaultConfig returns the recommended starting point for a new
// ProjectIndex. Callers building a config for Initialize should start
// from this and mutate only the fields they care about, since Config's
// bool fields have no "unset" representation distinct from false.
func DefaultConfig() Config {
	return defaults()
}

// defaults fills in the full set of recognised configuration keys.
func defaults() Config {
	return Config{
		FileExtensions:      []string{".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".md", ".dart", ".php", ".rb", ".html"},
		ExcludePatterns:     []string{"vendor/", "node_modules/", ".git/"},
		RespectGitignore:    true,
		SkipDotfiles:        true,
		EmbeddingModel:      "local",
		EmbeddingNormalised: false,
		BatchSize:           32,
		ChunkSize:           1500,
		ChunkOverlap:        200,
		SimilarityThreshold: 0.5,
		MaxChunkSize:        8000,
		PoolSize:            4,
		ReadConcurrency:     4,
		AutoIndex:           AutoIndex{Enabled: false, CheckInterval: 300},
		Weights:             DefaultWeights,
	}
}

// Paths is the on-disk layout beneath a project's state directory.
type Paths struct {
	Root              string
	ConfigFile        string
	MetadataFile      string
	VectorsDir        string
	RelationshipsDB   string
	EmbeddingCacheDir string
}

// NewPaths derives the fixed on-disk layout rooted at stateDir.
func NewPaths(stateDir string) Paths {
	return Paths{
		Root:              stateDir,
		ConfigFile:        filepath.Join(stateDir, "config.json"),
		MetadataFile:      filepath.Join(stateDir, "metadata.json"),
		VectorsDir:        filepath.Join(stateDir, "vectors"),
		RelationshipsDB:   filepath.Join(stateDir, "relationships.db"),
		EmbeddingCacheDir: filepath.Join(stateDir, "cache", "embeddings"),
	}
}

// Initialize writes cfg to config.json at paths.ConfigFile and creates
// the directories the rest of the on-disk layout expects. Callers
// wanting the recommended defaults should pass DefaultConfig(),
// mutated as needed. Returns ConfigError if cfg fails validation.
func Initialize(paths Paths, cfg Config) (Config, error) {
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return Config{}, fmt.Errorf("%w: create state dir %s: %v", types.ErrIO, paths.Root, err)
	}
	if err := os.MkdirAll(paths.VectorsDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("%w: create vectors dir: %v", types.ErrIO, err)
	}
	if err := os.MkdirAll(paths.EmbeddingCacheDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("%w: create embedding cache dir: %v", types.ErrIO, err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return Config{}, fmt.Errorf("%w: encode config: %v", types.ErrIntegrity, err)
	}
	if err := os.WriteFile(paths.ConfigFile, raw, 0o644); err != nil {
		return Config{}, fmt.Errorf("%w: write config.json: %v", types.ErrIO, err)
	}
	return cfg, nil
}

// Load reads and validates the config.json at paths.ConfigFile. An
// absent file or one that fails validation is a ConfigError — the
// caller must run Initialize first.
func Load(paths Paths) (Config, error) {
	raw, err := os.ReadFile(paths.ConfigFile)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", types.ErrConfig, paths.ConfigFile, err)
	}

	cfg := defaults()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode %s: %v", types.ErrConfig, paths.ConfigFile, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the positivity/range constraints the configuration
// keys imply but do not spell out as a schema.
func Validate(cfg Config) error {
	if len(cfg.FileExtensions) == 0 {
		return fmt.Errorf("%w: file_extensions must be non-empty", types.ErrConfig)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", types.ErrConfig)
	}
	if cfg.PoolSize <= 0 {
		return fmt.Errorf("%w: pool_size must be positive", types.ErrConfig)
	}
	if cfg.ReadConcurrency <= 0 {
		return fmt.Errorf("%w: read_concurrency must be positive", types.ErrConfig)
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0,1]", types.ErrConfig)
	}
	if cfg.ChunkOverlap < 0 || (cfg.ChunkSize > 0 && cfg.ChunkOverlap >= cfg.ChunkSize) {
		return fmt.Errorf("%w: chunk_overlap must be smaller than chunk_size", types.ErrConfig)
	}
	if cfg.MaxChunkSize > 0 && cfg.ChunkSize > cfg.MaxChunkSize {
		return fmt.Errorf("%w: chunk_size must not exceed max_chunk_size", types.ErrConfig)
	}
	return nil
}

// EmbeddingProviderFromEnv resolves the embedder provider the way
// internal/embedder/factory.go's NewFromEnv does, so the CLI and the
// MCP adapter can both report what provider a search/index run will
// actually use without duplicating the precedence rule.
func EmbeddingProviderFromEnv() string {
	if p := os.Getenv("CODEINTEL_EMBEDDING_PROVIDER"); p != "" {
		return strings.ToLower(p)
	}
	if os.Getenv("JINA_API_KEY") != "" {
		return "jina"
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "openai"
	}
	return "local"
}

