package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultMaxIterations is the research budget used when none is configured.
// It caps gather→act rounds per run, not total model calls.
const DefaultMaxIterations = 3

// Config holds all configuration for the research agent service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	AuthEnabled bool   `mapstructure:"auth_enabled"`
	JWTSecret   string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if s.AuthEnabled && strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret required when auth is enabled")
	}
	return nil
}

// AgentConfig controls the research loop.
type AgentConfig struct {
	Mode           string  `mapstructure:"mode"` // offline or online
	MaxIterations  int     `mapstructure:"max_iterations"`
	RelevanceFloor float64 `mapstructure:"relevance_floor"`
	MaxResults     int     `mapstructure:"max_results"`
}

func (a AgentConfig) Validate() error {
	if a.Mode != "offline" && a.Mode != "online" {
		return fmt.Errorf("agent.mode must be offline or online, got %q", a.Mode)
	}
	if a.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be > 0")
	}
	if a.RelevanceFloor < 0 || a.RelevanceFloor > 1 {
		return fmt.Errorf("agent.relevance_floor must be in [0,1]")
	}
	if a.MaxResults <= 0 {
		return fmt.Errorf("agent.max_results must be > 0")
	}
	return nil
}

// Online reports whether live web search is enabled.
func (a AgentConfig) Online() bool { return a.Mode == "online" }

// LLMConfig contains the model provider settings.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	return nil
}

// ToolsConfig configures the retrieval backends behind the gateway.
type ToolsConfig struct {
	Index     IndexConfig     `mapstructure:"index"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

// IndexConfig locates the documentation index.
type IndexConfig struct {
	Path string `mapstructure:"path"`
}

// WebSearchConfig selects and configures the web search provider.
type WebSearchConfig struct {
	Provider string      `mapstructure:"provider"` // tavily, brave, serper
	APIKey   string      `mapstructure:"api_key"`
	Cache    CacheConfig `mapstructure:"cache"`
}

// CacheConfig configures the optional redis result cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (c CacheConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("tools.web_search.cache.addr required when cache is enabled")
	}
	return nil
}

// IngestConfig controls documentation acquisition.
type IngestConfig struct {
	DocsDir     string   `mapstructure:"docs_dir"`
	URLs        []string `mapstructure:"urls"`
	Render      bool     `mapstructure:"render"`
	ReindexCron string   `mapstructure:"reindex_cron"`
}

// TelemetryConfig toggles metrics collection.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from a JSON file plus SLEUTH_* environment
// variables. It panics on malformed config; a missing file is tolerated
// when no explicit path was given (defaults and env carry the run).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("server.auth_enabled", false)
	viper.SetDefault("agent.mode", "offline")
	viper.SetDefault("agent.max_iterations", DefaultMaxIterations)
	viper.SetDefault("agent.relevance_floor", 0.3)
	viper.SetDefault("agent.max_results", 5)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("tools.index.path", "./data/index.bleve")
	viper.SetDefault("tools.web_search.provider", "tavily")
	viper.SetDefault("tools.web_search.cache.enabled", false)
	viper.SetDefault("tools.web_search.cache.ttl", "1h")
	viper.SetDefault("ingest.docs_dir", "./docs")
	viper.SetDefault("ingest.render", false)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SLEUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.Agent.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Tools.WebSearch.Cache.Validate(); err != nil {
		panic(err)
	}
	return &config
}
