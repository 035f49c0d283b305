package provider

import (
	"errors"
	"time"

	core "github.com/pooriaast/sleuth/internal/agent/core"
	openai_provider "github.com/pooriaast/sleuth/provider/openai"
)

// Client represents different LLM providers.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Options carries provider construction settings.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewModelHandle creates the model handle for the configured provider.
func NewModelHandle(client Client, opts Options) (core.ModelHandle, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		if opts.Timeout <= 0 {
			opts.Timeout = 120 * time.Second
		}
		return openai_provider.NewClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Temperature, opts.MaxTokens, opts.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
