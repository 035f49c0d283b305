package docindex

import (
	"context"
	"fmt"
	"log"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/mapping"

	core "github.com/pooriaast/sleuth/internal/agent/core"
)

// Chunk is one indexed unit of documentation.
type Chunk struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Section  string `json:"section"`
	ParentID string `json:"parent_id"`
}

// Index is a bleve-backed full-text index over documentation chunks. It is
// the backend of the gateway's search_docs tool.
type Index struct {
	idx    bleve.Index
	logger *log.Logger
}

var _ core.Searcher = (*Index)(nil)

// Open opens the on-disk index at path, creating it when absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return &Index{idx: idx, logger: log.New(log.Writer(), "[INDEX] ", log.LstdFlags)}, nil
}

// OpenMem creates a memory-only index, used in tests and one-shot runs.
func OpenMem() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Index{idx: idx, logger: log.New(log.Writer(), "[INDEX] ", log.LstdFlags)}, nil
}

func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true
	for _, field := range []string{"content", "source", "url", "title", "section", "parent_id"} {
		doc.AddFieldMappingsAt(field, text)
	}
	m.AddDocumentMapping("_default", doc)
	return m
}

// Add indexes chunks in one batch.
func (x *Index) Add(chunks []Chunk) error {
	batch := x.idx.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, c); err != nil {
			return fmt.Errorf("failed to batch chunk %s: %w", c.ID, err)
		}
	}
	if err := x.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (x *Index) Count() (uint64, error) {
	return x.idx.DocCount()
}

// Close releases the underlying index.
func (x *Index) Close() error {
	return x.idx.Close()
}

// Search runs a query-string search and returns the top k chunks as
// evidence. Scores are normalised against the best hit so the gateway's
// relevance floor applies uniformly.
func (x *Index) Search(ctx context.Context, query string, k int) ([]core.Evidence, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"content", "source", "url", "title", "section"}

	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]core.Evidence, 0, len(res.Hits))
	for _, hit := range res.Hits {
		score := 0.0
		if res.MaxScore > 0 {
			score = hit.Score / res.MaxScore
		}
		out = append(out, core.Evidence{
			Content:        str(hit.Fields["content"]),
			Source:         str(hit.Fields["source"]),
			URL:            str(hit.Fields["url"]),
			Title:          str(hit.Fields["title"]),
			Section:        str(hit.Fields["section"]),
			RelevanceScore: round4(score),
		})
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}
