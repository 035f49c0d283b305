package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxFetchedChars     = 200000
)

// Fetcher loads documentation pages from the live web. Render switches to
// a headless browser for pages that need JavaScript to produce content.
type Fetcher struct {
	Render  bool
	Timeout time.Duration
}

// Fetch retrieves rawURL and extracts its readable text.
func (f Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Document{}, errors.New("empty url")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var html string
	var err error
	if f.Render {
		html, err = renderHTML(ctx, rawURL)
	} else {
		html, err = fetchHTML(ctx, rawURL)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return Document{}, fmt.Errorf("failed to extract %s: %w", rawURL, err)
	}
	text := article.TextContent
	if len(text) > maxFetchedChars {
		text = text[:maxFetchedChars]
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = rawURL
	}
	return Document{Source: rawURL, URL: rawURL, Title: title, Content: strings.TrimSpace(text)}, nil
}

func fetchHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "sleuth/1.0 (documentation indexer)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// renderHTML drives a headless browser so JS-heavy documentation sites
// still yield content.
func renderHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("sleuth/1.0 (documentation indexer)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
