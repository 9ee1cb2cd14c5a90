package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server    Server    `yaml:"server"`
	Ingest    Ingest    `yaml:"ingest"`
	Assistant Assistant `yaml:"assistant"`
	Report    Report    `yaml:"report"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Ingest struct {
	HashtagDelimiter    string `yaml:"hashtag_delimiter"`
	MaxUploadMB         int    `yaml:"max_upload_mb"`
	FetchContent        bool   `yaml:"fetch_content"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
}

type Assistant struct {
	Provider       string `yaml:"provider"`
	LangflowURL    string `yaml:"langflow_url"`
	LangflowID     string `yaml:"langflow_id"`
	FlowID         string `yaml:"flow_id"`
	TokenEnv       string `yaml:"token_env"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OpenAIModel    string `yaml:"openai_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
	IncludeStats   bool   `yaml:"include_stats"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Report struct {
	TopPosts int `yaml:"top_posts"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for quantify.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "quantify")
}

// DataDir returns the XDG data directory for quantify.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "quantify")
}

// ErrNoConfig is returned by ResolveConfigPath when no file was found in
// any of the searched locations.
var ErrNoConfig = errors.New("no config file found")

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/quantify/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"%w; searched:\n  %s\n  ./config.yaml\n\nRun 'quantify init' to create a default config",
		ErrNoConfig, xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	log.Printf("Loaded environment from %s", path)
	return nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{Port: 8000},
		Ingest: Ingest{
			HashtagDelimiter:    ";",
			MaxUploadMB:         10,
			FetchTimeoutSeconds: 15,
		},
		Assistant: Assistant{
			Provider:       "langflow",
			LangflowURL:    "https://api.langflow.astra.datastax.com",
			TokenEnv:       "LANGFLOW_TOKEN",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			OpenAIModel:    "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			MaxTokens:      512,
			IncludeStats:   true,
			TimeoutSeconds: 60,
		},
		Report:  Report{TopPosts: 5},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Ingest.HashtagDelimiter == "" {
		cfg.Ingest.HashtagDelimiter = ";"
	}
	if cfg.Ingest.MaxUploadMB <= 0 {
		cfg.Ingest.MaxUploadMB = 10
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite archive location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "quantify.db")
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMB) << 20
}

// FetchTimeout returns the per-page timeout for content enrichment.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Ingest.FetchTimeoutSeconds) * time.Second
}

// AssistantTimeout returns the HTTP timeout for assistant calls.
func (c *Config) AssistantTimeout() time.Duration {
	return time.Duration(c.Assistant.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
