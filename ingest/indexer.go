package ingest

import (
	"context"
	"log"

	"github.com/pooriaast/sleuth/tools/docindex"
)

// Stats reports what one indexing pass produced.
type Stats struct {
	Documents int
	Parents   int
	Children  int
}

// BuildIndex chunks docs and writes the child chunks into idx. Children are
// the retrieval unit: they are small enough to match precisely and each one
// carries its section heading and source for context. Parent chunks are
// produced for the hierarchy but only counted here.
func BuildIndex(ctx context.Context, idx *docindex.Index, docs []Document, logger *log.Logger) (Stats, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}

	var stats Stats
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		parents, children := ChunkDocument(doc)
		if err := idx.Add(children); err != nil {
			return stats, err
		}
		stats.Documents++
		stats.Parents += len(parents)
		stats.Children += len(children)
	}

	logger.Printf("indexed %d documents: %d parents, %d children", stats.Documents, stats.Parents, stats.Children)
	return stats, nil
}
