package ingest

import (
	"fmt"
	"strings"

	"github.com/pooriaast/sleuth/tools/docindex"
)

// Document is one loaded source document before chunking.
type Document struct {
	Source  string // path or canonical identifier
	URL     string
	Title   string
	Content string
}

const (
	parentSize    = 2000
	parentOverlap = 200
	childSize     = 500
	childOverlap  = 50
)

// ChunkDocument splits a document into a parent/child hierarchy: the text
// is cut at H1/H2 headings into sections, long sections are windowed into
// parents of at most parentSize runes, and each parent is windowed again
// into retrieval-sized children. Children reference their parent via
// ParentID and carry the section heading for context.
func ChunkDocument(doc Document) (parents, children []docindex.Chunk) {
	for _, sec := range splitSections(doc.Content) {
		for _, parentText := range window(sec.text, parentSize, parentOverlap) {
			parentIdx := len(parents)
			parentID := fmt.Sprintf("%s_parent_%d", doc.Source, parentIdx)
			parents = append(parents, docindex.Chunk{
				ID:      parentID,
				Content: parentText,
				Source:  doc.Source,
				URL:     doc.URL,
				Title:   doc.Title,
				Section: sec.heading,
			})
			for childIdx, childText := range window(parentText, childSize, childOverlap) {
				children = append(children, docindex.Chunk{
					ID:       fmt.Sprintf("%s_child_%d", parentID, childIdx),
					Content:  childText,
					Source:   doc.Source,
					URL:      doc.URL,
					Title:    doc.Title,
					Section:  sec.heading,
					ParentID: parentID,
				})
			}
		}
	}
	return parents, children
}

type section struct {
	heading string
	text    string
}

// splitSections cuts content at H1/H2 headings. Text before the first
// heading becomes a heading-less section.
func splitSections(content string) []section {
	var out []section
	var heading string
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			out = append(out, section{heading: heading, text: text})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
			buf = append(buf, line)
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// window slices text into rune windows of at most size, overlapping by
// overlap runes. Windows break at the nearest whitespace before the cut
// when one exists in the second half of the window.
func window(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := end
		for i := end; i > start+size/2; i-- {
			if runes[i-1] == ' ' || runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[start:cut])))
		start = cut - overlap
		if start < 0 {
			start = 0
		}
	}

	kept := out[:0]
	for _, w := range out {
		if w != "" {
			kept = append(kept, w)
		}
	}
	return kept
}
