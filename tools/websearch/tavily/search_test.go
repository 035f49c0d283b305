package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withEndpoint(t *testing.T, url string) {
	t.Helper()
	prev := Endpoint
	Endpoint = url
	t.Cleanup(func() { Endpoint = prev })
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["api_key"] != "test-key" || req["query"] != "go streams" {
			t.Errorf("unexpected request payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Streams", "url": "https://example.com/streams", "content": "about streams", "score": 0.91},
				{"title": "More", "url": "https://example.com/more", "content": "more", "score": 0.5},
				{"title": "Extra", "url": "https://example.com/extra", "content": "extra", "score": 0.4},
			},
		})
	}))
	defer srv.Close()
	withEndpoint(t, srv.URL)

	results, err := Search{ApiKey: "test-key"}.Search(context.Background(), "go streams", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results truncated to k, got %d", len(results))
	}
	if results[0].Title != "Streams" || results[0].URL != "https://example.com/streams" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[0].Snippet != "about streams" || results[0].Score != 0.91 {
		t.Fatalf("content/score lost in mapping: %+v", results[0])
	}
}

func TestSearchRetriesRateLimit(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "OK", "url": "https://example.com", "content": "x", "score": 0.8},
			},
		})
	}))
	defer srv.Close()
	withEndpoint(t, srv.URL)

	results, err := Search{ApiKey: "k"}.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after 429, got %d attempts", attempts)
	}
	if len(results) != 1 || results[0].Title != "OK" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	withEndpoint(t, srv.URL)

	if _, err := (Search{ApiKey: "k"}).Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestSearchRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	withEndpoint(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Search{ApiKey: "k"}).Search(ctx, "q", 5); err == nil {
		t.Fatal("expected a context error during backoff")
	}
}
