package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rfprag/internal/domain"
)

// Config holds all configuration for rfprag.
type Config struct {
	Sources   SourcesConfig   `yaml:"sources"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retry     RetryConfig     `yaml:"retry"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Draft     DraftConfig     `yaml:"draft"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourcesConfig locates project documents. Each project lives in
// <root>/<project id>/.
type SourcesConfig struct {
	Root     string   `yaml:"root"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // "openai", "ollama", "compatible", "hash"
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Dimension         int           `yaml:"dimension"`
	BatchSize         int           `yaml:"batch_size"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	Candidates  int           `yaml:"candidates"`
	TokenBudget int           `yaml:"token_budget"`
	MinScore    float64       `yaml:"min_score"` // 0 disables the filter
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"` // "openai", "echo"
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type DraftConfig struct {
	SummaryTokens int                        `yaml:"summary_tokens"`
	OutputDir     string                     `yaml:"output_dir"`
	Sections      []domain.SectionDefinition `yaml:"sections"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultSections is the RFP response outline used when none is configured.
func DefaultSections() []domain.SectionDefinition {
	return []domain.SectionDefinition{
		{
			Name:         "Executive Summary",
			Query:        "project goals, client background and the key outcomes requested",
			Instructions: "Summarise the client's needs and why our response meets them in two or three paragraphs.",
		},
		{
			Name:         "Understanding of Requirements",
			Query:        "functional and technical requirements, scope of work, deliverables",
			Instructions: "Restate the requirements in our own words and call out any constraints or assumptions.",
		},
		{
			Name:         "Proposed Solution",
			Query:        "technical approach, architecture, technologies and integrations required",
			Instructions: "Describe the solution we propose and map it to the stated requirements.",
		},
		{
			Name:         "Implementation Plan",
			Query:        "timeline, milestones, phases, due dates and delivery schedule",
			Instructions: "Lay out phases and milestones with realistic durations.",
		},
		{
			Name:         "Team and Qualifications",
			Query:        "required experience, certifications, staffing and past performance",
			Instructions: "Describe the team structure and relevant qualifications.",
		},
		{
			Name:         "Risk Management",
			Query:        "risks, dependencies, compliance, security and service levels",
			Instructions: "List the main risks with a mitigation for each.",
		},
		{
			Name:         "Pricing Approach",
			Query:        "budget, pricing model, payment terms and cost constraints",
			Instructions: "Explain the pricing model without inventing figures not present in the context.",
		},
	}
}

// DefaultConfig returns the default configuration. It runs fully offline:
// the hash embedder and echo model need no credentials.
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Root:     "projects",
			Includes: []string{"**/*.txt", "**/*.md", "**/*.markdown", "**/*.docx", "**/*.pdf", "**/*.html", "**/*.htm", "**/*.csv"},
			Excludes: []string{"**/.git/**", "**/.rfprag/**", "**/~$*", "**/.DS_Store"},
		},
		Chunking: ChunkingConfig{
			MaxTokens:     256,
			OverlapTokens: 48,
		},
		Embedding: EmbeddingConfig{
			Provider:          "hash",
			Model:             "hash",
			APIKeyEnv:         "OPENAI_API_KEY",
			Dimension:         256,
			BatchSize:         64,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
		},
		Retrieve: RetrieveConfig{
			Candidates:  20,
			TokenBudget: 1500,
			CacheSize:   256,
			CacheTTL:    10 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:          "echo",
			Model:             "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			Timeout:           60 * time.Second,
			Temperature:       0.2,
			MaxTokens:         800,
			RequestsPerSecond: 2,
		},
		Draft: DraftConfig{
			SummaryTokens: 300,
			OutputDir:     "output",
			Sections:      DefaultSections(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// A configured outline replaces the default one instead of merging into it.
	cfg.Draft.Sections = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Draft.Sections) == 0 {
		cfg.Draft.Sections = DefaultSections()
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rfprag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "rfprag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".rfprag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".rfprag", "index.db")
}

// EnsureDir ensures the .rfprag directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".rfprag"), 0755)
}

// Resolve makes a path from the config relative to the project directory.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
