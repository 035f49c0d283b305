package ingest

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
)

var loadableExtensions = map[string]struct{}{
	".md":   {},
	".mdx":  {},
	".txt":  {},
	".html": {},
}

// LoadDir walks dir and loads every markdown, text and HTML file into a
// Document. HTML files go through readability extraction first.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := loadableExtensions[ext]; !ok {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := string(raw)
		title := ""

		if ext == ".html" {
			article, err := readability.FromReader(strings.NewReader(content), &url.URL{})
			if err != nil {
				return nil // unparseable page, skip
			}
			content = article.TextContent
			title = strings.TrimSpace(article.Title)
		}
		if title == "" {
			title = firstHeading(content)
		}
		if title == "" {
			title = strings.TrimSuffix(d.Name(), ext)
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		docs = append(docs, Document{Source: rel, Title: title, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}
