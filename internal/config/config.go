// Package config provides configuration loading and structs for transmatch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
// JSON tags follow the option names accepted by the pipeline start endpoint.
type Config struct {
	Debug        bool               `yaml:"debug" json:"debug,omitempty"`
	Server       ServerConfig       `yaml:"server" json:"-"`
	Storage      StorageConfig      `yaml:"storage" json:"-"`
	SourceCorpus SourceCorpusConfig `yaml:"source_corpus" json:"sourceCorpus"`
	TargetCorpus TargetCorpusConfig `yaml:"target_corpus" json:"targetCorpus"`
	AI           AIConfig           `yaml:"ai" json:"ai"`
	Matching     MatchingConfig     `yaml:"matching" json:"matching"`
	Watch        WatchConfig        `yaml:"watch" json:"-"`
	LogMirror    LogMirrorConfig    `yaml:"log_mirror" json:"-"`
	Export       ExportConfig       `yaml:"export" json:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, the corpus index and the run lock.
type StorageConfig struct {
	DataDir        string `yaml:"data_dir"`
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	LockPath       string `yaml:"lock_path"`
}

// SourceCorpusConfig locates the candidate-source documents.
type SourceCorpusConfig struct {
	PDFFolder  string   `yaml:"pdf_folder" json:"pdfFolder"`
	Extensions []string `yaml:"extensions" json:"extensions,omitempty"`
}

// TargetCorpusConfig locates the target documents and their manifest.
type TargetCorpusConfig struct {
	PDFFolder    string        `yaml:"pdf_folder" json:"pdfFolder"`
	ManifestPath string        `yaml:"manifest_path" json:"manifestPath"`
	Sheets       []SheetConfig `yaml:"sheets" json:"sheets"`
	Extensions   []string      `yaml:"extensions" json:"extensions,omitempty"`
}

// SheetConfig selects a manifest sheet and names the column holding file references.
type SheetConfig struct {
	Name           string `yaml:"name" json:"name"`
	FilenameColumn string `yaml:"filename_column" json:"filenameColumn"`
	Selected       bool   `yaml:"selected" json:"selected"`
}

// AIConfig configures the oracle backend and the model used for each task family.
type AIConfig struct {
	Provider          string  `yaml:"provider" json:"provider,omitempty"`
	BaseURL           string  `yaml:"base_url" json:"baseUrl,omitempty"`
	APIKey            string  `yaml:"api_key" json:"apiKey,omitempty"`
	IndexingModel     string  `yaml:"indexing_model" json:"indexingModel"`
	MatchingModel     string  `yaml:"matching_model" json:"matchingModel"`
	VerificationModel string  `yaml:"verification_model" json:"verificationModel"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeoutSeconds,omitempty"`
	RetryAttempts     int     `yaml:"retry_attempts" json:"retryAttempts,omitempty"`
	RatePerSecond     float64 `yaml:"rate_per_second" json:"ratePerSecond,omitempty"`
	Burst             int     `yaml:"burst" json:"burst,omitempty"`
	IndexDocuments    bool    `yaml:"index_documents" json:"indexDocuments,omitempty"`
}

// MatchingConfig holds candidate filtering and verification thresholds.
type MatchingConfig struct {
	SnippetThreshold float64 `yaml:"snippet_threshold" json:"snippetThreshold,omitempty"`
	TopCandidates    int     `yaml:"top_candidates" json:"topCandidates,omitempty"`
	MaxSnippets      int     `yaml:"max_snippets" json:"maxSnippets,omitempty"`
	MinConfidence    float64 `yaml:"min_confidence" json:"minConfidence,omitempty"`
	FallbackRatio    float64 `yaml:"fallback_ratio" json:"fallbackRatio,omitempty"`
	ArticleTextLimit int     `yaml:"article_text_limit" json:"articleTextLimit,omitempty"`
	VerifyTextLimit  int     `yaml:"verify_text_limit" json:"verifyTextLimit,omitempty"`
	Citations        *bool   `yaml:"citations" json:"citations,omitempty"`
}

// CitationsEnabled returns whether the citation pass runs; defaults to true when unset.
func (m *MatchingConfig) CitationsEnabled() bool {
	if m.Citations != nil {
		return *m.Citations
	}
	return true
}

// WatchConfig controls cache pre-warming for new corpus files.
type WatchConfig struct {
	Enabled   bool  `yaml:"enabled"`
	Recursive *bool `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// LogMirrorConfig optionally republishes pipeline log events on a Redis channel.
type LogMirrorConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Channel       string `yaml:"channel"`
}

// Enabled reports whether a Redis address is configured.
func (l *LogMirrorConfig) Enabled() bool {
	return l.RedisAddr != ""
}

// ExportConfig holds settings for s3:// export destinations.
type ExportConfig struct {
	S3Region       string `yaml:"s3_region"`
	S3Profile      string `yaml:"s3_profile"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A .env file next to the config (or in the working directory) is loaded first so
// API keys can stay out of the YAML.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	LoadEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.LockPath = expandPath(cfg.Storage.LockPath, configDir)
	cfg.SourceCorpus.PDFFolder = expandPath(cfg.SourceCorpus.PDFFolder, configDir)
	cfg.TargetCorpus.PDFFolder = expandPath(cfg.TargetCorpus.PDFFolder, configDir)
	cfg.TargetCorpus.ManifestPath = expandPath(cfg.TargetCorpus.ManifestPath, configDir)

	return &cfg, nil
}

// LoadEnv loads the first readable .env file among paths. Existing variables win.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
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

// Clone returns a deep copy so request-scoped overrides never touch the loaded config.
func (c *Config) Clone() *Config {
	out := *c
	out.SourceCorpus.Extensions = append([]string(nil), c.SourceCorpus.Extensions...)
	out.TargetCorpus.Extensions = append([]string(nil), c.TargetCorpus.Extensions...)
	out.TargetCorpus.Sheets = append([]SheetConfig(nil), c.TargetCorpus.Sheets...)
	if c.Matching.Citations != nil {
		v := *c.Matching.Citations
		out.Matching.Citations = &v
	}
	if c.Watch.Recursive != nil {
		v := *c.Watch.Recursive
		out.Watch.Recursive = &v
	}
	return &out
}

// ValidateRun checks the options a pipeline run cannot do without.
func (c *Config) ValidateRun() error {
	var errs []error
	if c.SourceCorpus.PDFFolder == "" {
		errs = append(errs, errors.New("sourceCorpus.pdfFolder is required"))
	}
	if c.TargetCorpus.PDFFolder == "" {
		errs = append(errs, errors.New("targetCorpus.pdfFolder is required"))
	}
	if c.TargetCorpus.ManifestPath == "" {
		errs = append(errs, errors.New("targetCorpus.manifestPath is required"))
	}
	for i, s := range c.TargetCorpus.Sheets {
		if s.Selected && s.FilenameColumn == "" {
			errs = append(errs, fmt.Errorf("targetCorpus.sheets[%d] (%s): filenameColumn is required", i, s.Name))
		}
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderCohere:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", c.AI.Provider))
	}
	return errors.Join(errs...)
}

// ResolveAPIKey returns the configured API key, falling back to the environment.
func (a *AIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(a.APIKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv("TRANSMATCH_API_KEY")); key != "" {
		return key
	}
	switch a.Provider {
	case ProviderCohere:
		return strings.TrimSpace(os.Getenv("COHERE_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
