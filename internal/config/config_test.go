package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "/tmp/test.db"
target_corpus:
  pdf_folder: "/corpus/target"
  manifest_path: "/corpus/manifest.xlsx"
  sheets:
    - name: "1833"
      filename_column: "File"
      selected: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != "/tmp/test.db" {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
	if len(cfg.TargetCorpus.Sheets) != 1 || cfg.TargetCorpus.Sheets[0].FilenameColumn != "File" || !cfg.TargetCorpus.Sheets[0].Selected {
		t.Errorf("unexpected sheets: %+v", cfg.TargetCorpus.Sheets)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  data_dir: "./data"
source_corpus:
  pdf_folder: "./corpus/source"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "transmatch.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantSrc := filepath.Join(dir, "corpus", "source")
	if cfg.SourceCorpus.PDFFolder != wantSrc {
		t.Errorf("source folder = %s, want %s", cfg.SourceCorpus.PDFFolder, wantSrc)
	}
}

func TestLoad_readsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  provider: cohere\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("COHERE_API_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRANSMATCH_API_KEY", "")
	t.Setenv("COHERE_API_KEY", "")
	os.Unsetenv("COHERE_API_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.AI.ResolveAPIKey(); got != "from-dotenv" {
		t.Errorf("ResolveAPIKey() = %q, want from-dotenv", got)
	}
	if cfg.AI.IndexingModel != "command-r-plus" {
		t.Errorf("cohere default model: got %s", cfg.AI.IndexingModel)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Errorf("default provider: got %s", cfg.AI.Provider)
	}
	if cfg.Matching.SnippetThreshold != 0.4 {
		t.Errorf("snippet threshold: got %f, want 0.4", cfg.Matching.SnippetThreshold)
	}
	if cfg.Matching.TopCandidates != 3 {
		t.Errorf("top candidates: got %d, want 3", cfg.Matching.TopCandidates)
	}
	if cfg.Matching.MinConfidence != 0.5 {
		t.Errorf("min confidence: got %f, want 0.5", cfg.Matching.MinConfidence)
	}
	if !cfg.Matching.CitationsEnabled() {
		t.Error("citations should default to enabled")
	}
	if len(cfg.SourceCorpus.Extensions) != len(DefaultExtensions) || cfg.SourceCorpus.Extensions[0] != ".pdf" {
		t.Errorf("source extensions: got %v", cfg.SourceCorpus.Extensions)
	}
	if !strings.HasSuffix(cfg.Storage.LockPath, "run.lock") {
		t.Errorf("lock path: got %s", cfg.Storage.LockPath)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestValidateRun(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := cfg.ValidateRun()
	if err == nil {
		t.Fatal("expected error for empty corpus settings")
	}
	for _, want := range []string{"sourceCorpus.pdfFolder", "targetCorpus.pdfFolder", "targetCorpus.manifestPath"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}

	cfg.SourceCorpus.PDFFolder = "/src"
	cfg.TargetCorpus.PDFFolder = "/tgt"
	cfg.TargetCorpus.ManifestPath = "/m.xlsx"
	cfg.TargetCorpus.Sheets = []SheetConfig{{Name: "A", Selected: true}}
	if err := cfg.ValidateRun(); err == nil || !strings.Contains(err.Error(), "filenameColumn") {
		t.Errorf("selected sheet without column should fail, got %v", err)
	}

	cfg.TargetCorpus.Sheets[0].FilenameColumn = "File"
	if err := cfg.ValidateRun(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestClone_isDeep(t *testing.T) {
	on := true
	cfg := &Config{
		TargetCorpus: TargetCorpusConfig{Sheets: []SheetConfig{{Name: "A"}}},
		Matching:     MatchingConfig{Citations: &on},
	}
	c := cfg.Clone()
	c.TargetCorpus.Sheets[0].Name = "B"
	*c.Matching.Citations = false
	if cfg.TargetCorpus.Sheets[0].Name != "A" {
		t.Error("clone shares sheet slice")
	}
	if !*cfg.Matching.Citations {
		t.Error("clone shares citations flag")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
