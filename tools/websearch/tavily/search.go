package tavily

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pooriaast/sleuth/tools/websearch/models"
)

// Endpoint is a var so tests can point the client at a local server.
var Endpoint = "https://api.tavily.com/search"

const (
	maxAttempts    = 4
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

type Search struct {
	ApiKey string
}

// Search queries Tavily. Rate-limit responses are retried with a doubling
// backoff capped at maxBackoff.
func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://docs.tavily.com/
	payload := map[string]any{"api_key": s.ApiKey, "query": q, "max_results": k}
	body, _ := json.Marshal(payload)

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", Endpoint, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
		}

		var raw struct {
			Results []struct {
				Title   string  `json:"title"`
				URL     string  `json:"url"`
				Content string  `json:"content"`
				Score   float64 `json:"score"`
			} `json:"results"`
		}
		err = json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		var out []models.Result
		for i, r := range raw.Results {
			if i >= k {
				break
			}
			out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
		}
		return out, nil
	}
}
