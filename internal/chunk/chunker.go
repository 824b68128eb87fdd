// Package chunk splits note bodies into overlapping, heading-scoped
// segments for indexing.
package chunk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/openclaw/vaultbridge/internal/models"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// HeadingSeparator joins the enclosing heading titles for display,
// outermost first ("Project > Design > Storage").
const HeadingSeparator = " > "

// Chunker splits long notes into semantically coherent chunks.
// Chunking identical content always reproduces identical boundaries
// and ids; upserts keyed by chunk id are therefore idempotent.
type Chunker struct {
	size    int // max characters per chunk
	overlap int // tail characters repeated when splitting mid-section
}

// New creates a Chunker with the given size and overlap.
func New(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

type section struct {
	headingPath string
	text        string
}

// Chunk splits content into chunks for indexing. A document with no
// headings produces fixed-size chunks with an empty heading path.
func (c *Chunker) Chunk(notePath, content string) []models.Chunk {
	var chunks []models.Chunk

	emit := func(headingPath, text string) {
		chunks = append(chunks, models.Chunk{
			ID:          fmt.Sprintf("%s#chunk%d", notePath, len(chunks)),
			NotePath:    notePath,
			Content:     text,
			Index:       len(chunks),
			HeadingPath: headingPath,
		})
	}

	for _, sec := range splitByHeadings(content) {
		text := strings.TrimSpace(sec.text)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) <= c.size {
			emit(sec.headingPath, text)
			continue
		}
		for _, sub := range c.splitFixedSize(text) {
			emit(sec.headingPath, sub)
		}
	}

	return chunks
}

// splitByHeadings walks the document line by line maintaining a
// level-indexed heading stack: a heading sets its level and clears all
// deeper levels, so the path at any point is the chain of enclosing
// headings. Each heading transition flushes the accumulated section.
// A heading with no body still establishes its stack entry for later
// sections.
func splitByHeadings(content string) []section {
	byLevel := make(map[int]string)
	var sections []section
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, section{
			headingPath: headingPath(byLevel),
			text:        strings.Join(current, "\n"),
		})
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			current = append(current, line)
			continue
		}

		flush()

		level := len(m[1])
		byLevel[level] = strings.TrimSpace(m[2])
		for deeper := range byLevel {
			if deeper > level {
				delete(byLevel, deeper)
			}
		}
	}
	flush()

	return sections
}

// headingPath joins the active heading stack outermost-first.
func headingPath(byLevel map[int]string) string {
	if len(byLevel) == 0 {
		return ""
	}
	levels := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	parts := make([]string, len(levels))
	for i, lvl := range levels {
		parts[i] = byLevel[lvl]
	}
	return strings.Join(parts, HeadingSeparator)
}

// splitFixedSize splits long text into size-bounded pieces, each new
// piece starting overlap characters before the previous piece ended.
// Size and overlap count runes, not bytes, so a multibyte rune is
// never cut in half.
func (c *Chunker) splitFixedSize(text string) []string {
	runes := []rune(text)
	var out []string
	step := c.size - c.overlap
	if step < 1 {
		step = 1
	}
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
