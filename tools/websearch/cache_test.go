package websearch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pooriaast/sleuth/tools/websearch/models"
)

// countingSearcher serves canned results and counts provider calls.
type countingSearcher struct {
	results []models.Result
	err     error
	calls   int
}

var _ Searcher = (*countingSearcher)(nil)

func (s *countingSearcher) Search(_ context.Context, _ string, _ int) ([]models.Result, error) {
	s.calls++
	return s.results, s.err
}

func startRedis(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return c, fmt.Sprintf("%s:%s", host, port.Port())
}

func TestCacheHitSkipsProvider(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	c, addr := startRedis(t, ctx)
	defer func() { _ = c.Terminate(ctx) }()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	inner := &countingSearcher{results: []models.Result{
		{Title: "Go streams", URL: "https://example.com/streams", Snippet: "about streams", Score: 0.8},
	}}
	cache := NewCache(inner, rdb, time.Minute)

	first, err := cache.Search(ctx, "go streams", 5)
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	second, err := cache.Search(ctx, "go streams", 5)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one provider call, got %d", inner.calls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].URL != first[0].URL {
		t.Fatalf("cached results differ: %+v vs %+v", first, second)
	}

	// Different k is a different cache key.
	if _, err := cache.Search(ctx, "go streams", 3); err != nil {
		t.Fatalf("third search: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a provider call for a new k, got %d calls", inner.calls)
	}
}

func TestCacheProviderErrorNotCached(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	c, addr := startRedis(t, ctx)
	defer func() { _ = c.Terminate(ctx) }()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	inner := &countingSearcher{err: errors.New("provider down")}
	cache := NewCache(inner, rdb, time.Minute)

	if _, err := cache.Search(ctx, "q", 5); err == nil {
		t.Fatal("expected provider error to surface")
	}

	inner.err = nil
	inner.results = []models.Result{{Title: "recovered", URL: "https://example.com"}}
	results, err := cache.Search(ctx, "q", 5)
	if err != nil {
		t.Fatalf("search after recovery: %v", err)
	}
	if len(results) != 1 || results[0].Title != "recovered" {
		t.Fatalf("failure must not be cached, got %+v", results)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", inner.calls)
	}
}

func TestCacheFaultDegradesToProvider(t *testing.T) {
	// Unreachable redis: reads and writes fail, searches still work.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer func() { _ = rdb.Close() }()

	inner := &countingSearcher{results: []models.Result{{Title: "direct", URL: "https://example.com"}}}
	cache := NewCache(inner, rdb, time.Minute)

	results, err := cache.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("search must degrade, got error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "direct" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one provider call, got %d", inner.calls)
	}
}
