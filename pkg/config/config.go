// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads kairos-legal settings from defaults, an optional YAML
// file with profile overlay, an optional .env file, the environment and
// command-line overrides, in that order of precedence (last wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys:
// KAIROS_LEGAL_AGENTS_API_KEY -> agents.api_key.
const EnvPrefix = "KAIROS_LEGAL_"

// Retrieval modes.
const (
	RetrievalNone  = "none"
	RetrievalFile  = "file"
	RetrievalIndex = "index"
)

// Ledger drivers. The memory ledger only lives as long as the process.
const (
	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
)

// Embedder providers.
const (
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
)

// embedderDefaults holds the base URL, model and vector size used when a
// provider is selected without them.
var embedderDefaults = map[string]struct {
	baseURL    string
	model      string
	vectorSize uint64
}{
	EmbedderOllama: {baseURL: "http://localhost:11434", model: "nomic-embed-text", vectorSize: 768},
	EmbedderOpenAI: {model: "text-embedding-3-small", vectorSize: 1536},
}

// legacyEnv maps unprefixed variable names found in existing .env files onto
// config keys.
var legacyEnv = map[string]string{
	"PROJECT_ENDPOINT":      "agents.endpoint",
	"MODEL_DEPLOYMENT_NAME": "agents.model",
	"AZURE_SEARCH_ENDPOINT": "search.endpoint",
	"AZURE_SEARCH_INDEX":    "search.index",
}

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Agents    AgentsConfig    `koanf:"agents"`
	Review    ReviewConfig    `koanf:"review"`
	Search    SearchConfig    `koanf:"search"`
	Ledger    LedgerConfig    `koanf:"ledger"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text, discard
}

type TelemetryConfig struct {
	Exporter     string        `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string        `koanf:"otlp_endpoint"`
	OTLPInsecure bool          `koanf:"otlp_insecure"`
	OTLPTimeout  time.Duration `koanf:"otlp_timeout"`
}

// AgentsConfig points at the remote agent-hosting service.
type AgentsConfig struct {
	Endpoint     string        `koanf:"endpoint"`
	Model        string        `koanf:"model"`
	APIKey       string        `koanf:"api_key"`
	Token        string        `koanf:"token"`
	APIVersion   string        `koanf:"api_version"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// ReviewConfig tunes a single review workflow execution.
type ReviewConfig struct {
	Retrieval      string        `koanf:"retrieval"` // none, file, index
	ReferencesFile string        `koanf:"references_file"`
	RunTimeout     time.Duration `koanf:"run_timeout"`
	CleanupTimeout time.Duration `koanf:"cleanup_timeout"`
	BlockInjection bool          `koanf:"block_injection"`
	MaskPII        bool          `koanf:"mask_pii"`
}

// SearchConfig configures the Qdrant-backed reference index and the
// embedder used to turn queries into vectors.
type SearchConfig struct {
	Endpoint         string  `koanf:"endpoint"`
	Index            string  `koanf:"index"`
	TopK             int     `koanf:"top_k"`
	ScoreThreshold   float32 `koanf:"score_threshold"`
	VectorSize       uint64  `koanf:"vector_size"`
	EmbedderProvider string  `koanf:"embedder_provider"` // ollama, openai
	EmbedderBaseURL  string  `koanf:"embedder_base_url"`
	EmbedderModel    string  `koanf:"embedder_model"`
	EmbedderAPIKey   string  `koanf:"embedder_api_key"`
}

type LedgerConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite
	DSN    string `koanf:"dsn"`
}

// Options selects the sources Load reads on top of the defaults.
type Options struct {
	Path      string
	Profile   string
	EnvFile   string
	Overrides []string // key=value
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_timeout", 10*time.Second)

	k.Set("agents.poll_interval", time.Second)

	k.Set("review.retrieval", RetrievalNone)
	k.Set("review.run_timeout", 10*time.Minute)
	k.Set("review.cleanup_timeout", 30*time.Second)
	k.Set("review.block_injection", true)
	k.Set("review.mask_pii", false)

	k.Set("search.top_k", 5)
	k.Set("search.embedder_provider", EmbedderOllama)

	k.Set("ledger.driver", LedgerSQLite)
	k.Set("ledger.dsn", "kairos-legal.db")
}

// Load reads configuration from path (optional) plus the environment.
func Load(path string) (*Config, error) {
	return LoadWithOptions(Options{Path: path})
}

// LoadWithProfile loads path and overlays config.<profile>.yaml from the same
// directory when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWithOptions(Options{Path: path, Profile: profile})
}

// LoadWithOptions builds a Config from every configured source.
func LoadWithOptions(opts Options) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfig, "failed to load config file", err).
				WithContext("path", opts.Path)
		}
		if opts.Profile != "" {
			profilePath := profileFile(opts.Path, opts.Profile)
			if _, err := os.Stat(profilePath); err == nil {
				if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
					return nil, errors.New(errors.CodeConfig, "failed to load profile config", err).
						WithContext("path", profilePath)
				}
			}
		}
	}

	if opts.EnvFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfig, "failed to load env file", err).
				WithContext("path", opts.EnvFile)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to read environment", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKey(s)
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to read environment", err)
	}

	for _, kv := range opts.Overrides {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("invalid override %q, want key=value", kv), nil)
		}
		if err := k.Set(key, strings.TrimSpace(value)); err != nil {
			return nil, errors.New(errors.CodeConfig, "failed to apply override", err).
				WithContext("key", key)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to decode config", err)
	}
	cfg.Search.resolveEmbedder()
	return &cfg, nil
}

// LoadWithCLI parses the global configuration flags (--config, --profile,
// --env-file, --set) and loads the resulting configuration.
func LoadWithCLI(args []string) (*Config, error) {
	opts, err := ParseCLIArgs(args)
	if err != nil {
		return nil, err
	}
	return LoadWithOptions(opts)
}

// ParseCLIArgs extracts config flags from args. Both "--flag value" and
// "--flag=value" forms are accepted; --env is an alias of --profile.
func ParseCLIArgs(args []string) (Options, error) {
	opts := Options{EnvFile: ".env"}
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "--profile", "--env", "--env-file", "--set":
		default:
			return opts, errors.New(errors.CodeConfig, fmt.Sprintf("unknown config flag %q", args[i]), nil)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, errors.New(errors.CodeConfig, "missing value for "+name, nil)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--config":
			opts.Path = value
		case "--profile", "--env":
			opts.Profile = value
		case "--env-file":
			opts.EnvFile = value
		case "--set":
			opts.Overrides = append(opts.Overrides, value)
		}
	}
	return opts, nil
}

// Validate checks that the values required to run a review are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agents.Endpoint) == "" {
		return errors.New(errors.CodeConfig, "agent service endpoint is required", nil).
			WithContext("key", "agents.endpoint").
			WithContext("env", "PROJECT_ENDPOINT")
	}
	if strings.TrimSpace(c.Agents.Model) == "" {
		return errors.New(errors.CodeConfig, "model deployment name is required", nil).
			WithContext("key", "agents.model").
			WithContext("env", "MODEL_DEPLOYMENT_NAME")
	}
	switch c.Review.Retrieval {
	case "", RetrievalNone:
	case RetrievalFile:
		if c.Review.ReferencesFile == "" {
			return errors.New(errors.CodeConfig, "file retrieval requires a references file", nil).
				WithContext("key", "review.references_file")
		}
	case RetrievalIndex:
		if err := c.Search.Validate(); err != nil {
			return err
		}
	default:
		return errors.New(errors.CodeConfig, fmt.Sprintf("unknown retrieval mode %q", c.Review.Retrieval), nil).
			WithContext("key", "review.retrieval")
	}
	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerSQLite:
		if c.Ledger.DSN == "" {
			return errors.New(errors.CodeConfig, "sqlite ledger requires a dsn", nil).
				WithContext("key", "ledger.dsn")
		}
	default:
		return errors.New(errors.CodeConfig, fmt.Sprintf("unknown ledger driver %q", c.Ledger.Driver), nil).
			WithContext("key", "ledger.driver")
	}
	return nil
}

// Validate checks the settings needed to reach the reference index.
func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return errors.New(errors.CodeConfig, "search endpoint is required", nil).
			WithContext("key", "search.endpoint").
			WithContext("env", "AZURE_SEARCH_ENDPOINT")
	}
	if strings.TrimSpace(s.Index) == "" {
		return errors.New(errors.CodeConfig, "search index name is required", nil).
			WithContext("key", "search.index").
			WithContext("env", "AZURE_SEARCH_INDEX")
	}
	if s.TopK <= 0 {
		return errors.New(errors.CodeConfig, "search.top_k must be positive", nil)
	}
	switch s.EmbedderProvider {
	case EmbedderOllama, EmbedderOpenAI:
	default:
		return errors.New(errors.CodeConfig, fmt.Sprintf("unknown embedder provider %q", s.EmbedderProvider), nil).
			WithContext("key", "search.embedder_provider")
	}
	return nil
}

// resolveEmbedder fills the embedder settings left empty with the defaults of
// the selected provider. An empty base URL for openai means the SDK default.
func (s *SearchConfig) resolveEmbedder() {
	d, ok := embedderDefaults[s.EmbedderProvider]
	if !ok {
		return
	}
	if s.EmbedderBaseURL == "" {
		s.EmbedderBaseURL = d.baseURL
	}
	if s.EmbedderModel == "" {
		s.EmbedderModel = d.model
	}
	if s.VectorSize == 0 {
		s.VectorSize = d.vectorSize
	}
}

// envKey maps KAIROS_LEGAL_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func profileFile(path, profile string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	if ext == "" {
		ext = ".yaml"
	}
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.%s%s", base, profile, ext))
}
