package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "paperpipe.yaml"

// defaultOllamaEndpoint replaces the chat-completions default for the ollama backend.
const defaultOllamaEndpoint = "http://localhost:11434"

// PathsConfig locates the filesystem roles used by the pipeline.
type PathsConfig struct {
	SourceDir     string `yaml:"source_dir"`
	MarkupDir     string `yaml:"markup_dir"`
	NormalizedDir string `yaml:"normalized_dir"`
	ProcessedDir  string `yaml:"processed_dir"`
	QuarantineDir string `yaml:"quarantine_dir"`
	LedgerPath    string `yaml:"ledger_path"`
}

// GrobidConfig configures the document-analysis service client.
type GrobidConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	PingTimeoutSecs int    `yaml:"ping_timeout_secs"`
	Preflight       bool   `yaml:"preflight"`
}

// LLMConfig selects and configures the enrichment backend.
type LLMConfig struct {
	Backend     string  `yaml:"backend"`
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ChunkerConfig configures how enriched text is split into chunks.
type ChunkerConfig struct {
	Method  string `yaml:"method"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// PipelineConfig holds batch behavior switches.
type PipelineConfig struct {
	ForceReprocess bool `yaml:"force_reprocess"`
	PacingMillis   int  `yaml:"pacing_millis"`
	Workers        int  `yaml:"workers"`
}

// LoggingConfig configures the log stream.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Paths    PathsConfig    `yaml:"paths"`
	Grobid   GrobidConfig   `yaml:"grobid"`
	LLM      LLMConfig      `yaml:"llm"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault reads ./paperpipe.yaml when present and falls back to defaults.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(DefaultFile); err == nil {
		cfg, err := Load(DefaultFile)
		return cfg, DefaultFile, err
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg, "", nil
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

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Paths: PathsConfig{
			SourceDir:     "data/pdfs",
			MarkupDir:     "data/tei",
			NormalizedDir: "data/markdown",
			ProcessedDir:  "data/processed",
			QuarantineDir: "data/quarantined",
			LedgerPath:    "data/ledger.db",
		},
		Grobid: GrobidConfig{
			BaseURL:         "http://localhost:8070",
			TimeoutSecs:     120,
			PingTimeoutSecs: 10,
			Preflight:       true,
		},
		LLM: LLMConfig{
			Backend:     "openai",
			Endpoint:    "http://localhost:1234/v1/chat/completions",
			Model:       "local-model",
			APIKeyEnv:   "LLM_API_KEY",
			TimeoutSecs: 300,
			MaxTokens:   2048,
			Temperature: 0.1,
		},
		Chunker:  ChunkerConfig{Method: "sentences", Size: 512, Overlap: 100},
		Pipeline: PipelineConfig{PacingMillis: 1000, Workers: 1},
		Logging:  LoggingConfig{Verbose: true, File: "logs/ingestion.log"},
	}
}

// applyConfigDefaults fills zero values left by a partial YAML file.
func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Grobid.BaseURL == "" {
		cfg.Grobid.BaseURL = def.Grobid.BaseURL
	}
	if cfg.Grobid.TimeoutSecs == 0 {
		cfg.Grobid.TimeoutSecs = def.Grobid.TimeoutSecs
	}
	if cfg.Grobid.PingTimeoutSecs == 0 {
		cfg.Grobid.PingTimeoutSecs = def.Grobid.PingTimeoutSecs
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = def.LLM.Backend
	}
	switch {
	case cfg.LLM.Backend == "ollama" && (cfg.LLM.Endpoint == "" || cfg.LLM.Endpoint == def.LLM.Endpoint):
		cfg.LLM.Endpoint = defaultOllamaEndpoint
	case cfg.LLM.Endpoint == "":
		cfg.LLM.Endpoint = def.LLM.Endpoint
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.Chunker.Method == "" {
		cfg.Chunker.Method = def.Chunker.Method
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = def.Pipeline.Workers
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = def.Logging.File
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PAPERPIPE_GROBID_URL"); v != "" {
		cfg.Grobid.BaseURL = v
	}
	if v := os.Getenv("PAPERPIPE_LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("PAPERPIPE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PAPERPIPE_FORCE_REPROCESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Pipeline.ForceReprocess = b
		}
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
}

// Validate reports settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, size), got %d", c.Chunker.Overlap))
	}
	switch c.Chunker.Method {
	case "sentences", "words", "characters", "paragraphs", "sections":
	default:
		errs = append(errs, fmt.Errorf("unknown chunker.method %q", c.Chunker.Method))
	}
	switch c.LLM.Backend {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.backend %q", c.LLM.Backend))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers))
	}
	if c.Grobid.BaseURL == "" {
		errs = append(errs, errors.New("grobid.base_url is required"))
	}
	for name, dir := range map[string]string{
		"paths.source_dir":     c.Paths.SourceDir,
		"paths.markup_dir":     c.Paths.MarkupDir,
		"paths.normalized_dir": c.Paths.NormalizedDir,
		"paths.processed_dir":  c.Paths.ProcessedDir,
		"paths.quarantine_dir": c.Paths.QuarantineDir,
	} {
		if dir == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	return errors.Join(errs...)
}

// GrobidTimeout is the upload timeout.
func (c *AppConfig) GrobidTimeout() time.Duration {
	return time.Duration(c.Grobid.TimeoutSecs) * time.Second
}

// GrobidPingTimeout is the liveness probe timeout.
func (c *AppConfig) GrobidPingTimeout() time.Duration {
	return time.Duration(c.Grobid.PingTimeoutSecs) * time.Second
}

// LLMTimeout is the enrichment request timeout.
func (c *AppConfig) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// Pacing is the minimum interval between two documents.
func (c *AppConfig) Pacing() time.Duration {
	return time.Duration(c.Pipeline.PacingMillis) * time.Millisecond
}
