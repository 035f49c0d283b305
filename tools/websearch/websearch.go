package websearch

import (
	"context"
	"errors"

	core "github.com/pooriaast/sleuth/internal/agent/core"
	"github.com/pooriaast/sleuth/tools/websearch/brave"
	"github.com/pooriaast/sleuth/tools/websearch/models"
	"github.com/pooriaast/sleuth/tools/websearch/serper"
	"github.com/pooriaast/sleuth/tools/websearch/tavily"
)

// Searcher is a live web-search backend.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

// NewSearcher builds the configured provider client.
func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case TavilyProvider:
		return tavily.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// Tool adapts a Searcher to the gateway's evidence contract. Providers that
// do not score results get a flat default so the relevance floor keeps them.
type Tool struct {
	Searcher Searcher
}

const defaultScore = 0.7

var _ core.Searcher = Tool{}

func (t Tool) Search(ctx context.Context, q string, k int) ([]core.Evidence, error) {
	results, err := t.Searcher.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	out := make([]core.Evidence, 0, len(results))
	for _, r := range results {
		score := r.Score
		if score == 0 {
			score = defaultScore
		}
		out = append(out, core.Evidence{
			URL:            r.URL,
			Title:          r.Title,
			Snippet:        r.Snippet,
			RelevanceScore: score,
		})
	}
	return out, nil
}
