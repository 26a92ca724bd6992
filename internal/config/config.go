package config

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Loop     LoopConfig     `yaml:"loop"`
	Report   ReportConfig   `yaml:"report"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LLMConfig struct {
	// Provider selects the backend: "dashscope" or "ollama".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	// Ollama settings, used when provider is "ollama".
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
}

type SearchConfig struct {
	TavilyAPIKey        string   `yaml:"tavily_api_key"`
	BraveAPIKey         string   `yaml:"brave_api_key"`
	FeedURLs            []string `yaml:"feed_urls"`
	EnableArxiv         bool     `yaml:"enable_arxiv"`
	MaxResultsPerQuery  int      `yaml:"max_results_per_query"`
	Workers             int      `yaml:"workers"`
	QueryTimeoutSeconds int      `yaml:"query_timeout_seconds"`
}

type LoopConfig struct {
	MaxIterations   int     `yaml:"max_iterations"`
	MinQualityScore float64 `yaml:"min_quality_score"`
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "dashscope",
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions",
			Model:       "qwen-plus",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "qwen2.5",
		},
		Search: SearchConfig{
			MaxResultsPerQuery:  5,
			Workers:             4,
			QueryTimeoutSeconds: 30,
		},
		Loop: LoopConfig{
			MaxIterations:   3,
			MinQualityScore: 7.0,
		},
		Report: ReportConfig{
			OutputDir: "./reports",
		},
		Database: DatabaseConfig{
			Path: "./reportgen.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file and merges it over defaults.
// If the file does not exist, defaults are returned without error.
// API keys left empty in the file fall back to environment variables.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No config file found, using defaults", "path", path)
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if c.Search.TavilyAPIKey == "" {
		c.Search.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	}
	if c.Search.BraveAPIKey == "" {
		c.Search.BraveAPIKey = os.Getenv("BRAVE_SEARCH_API_KEY")
	}
}
