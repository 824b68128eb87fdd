// Package parser extracts frontmatter, wikilinks, and tags from
// Markdown content. Link resolution is not done here: the parser
// returns raw link text and the orchestrator resolves it against the
// vault file map.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/vaultbridge/internal/apperr"
)

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	tagRe        = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	fencedRe     = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string // raw link text, deduplicated, in authored order
	Tags        []string
	Title       string
	PlainText   string // formatting stripped, for the embedding input
	WordCount   int
}

// Parse extracts structured data from raw Markdown bytes. notePath is
// used only for the filename-stem title fallback.
func Parse(notePath string, data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", apperr.ErrParseFailure, notePath)
	}

	fm, body := splitFrontmatter(data)

	// Code spans never contribute links or tags.
	prose := fencedRe.ReplaceAllString(body, "")
	prose = inlineCodeRe.ReplaceAllString(prose, "")

	plain := StripFormatting(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(prose),
		Tags:        extractTags(prose, fm),
		Title:       deriveTitle(notePath, fm, body),
		PlainText:   plain,
		WordCount:   len(strings.Fields(plain)),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found, or the YAML is
// malformed, the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(prose string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(prose, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// Handle aliases: [[Target|Alias]] → Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects #tags from prose and from the frontmatter
// "tags" field (list or scalar), deduplicated in discovery order.
func extractTags(prose string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			add(v)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(prose, -1) {
		add(m[1])
	}

	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise the filename stem.
func deriveTitle(notePath string, fm map[string]any, body string) string {
	if fm != nil {
		if t, ok := fm["title"].(string); ok && t != "" {
			return t
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return TitleFromPath(notePath)
}

// TitleFromPath derives a display title from a note path's stem.
func TitleFromPath(notePath string) string {
	base := path.Base(notePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// StripFormatting removes code spans and inline markers while keeping
// structural headings intact, producing the text fed to the embedder.
func StripFormatting(body string) string {
	text := fencedRe.ReplaceAllString(body, "")
	text = inlineCodeRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = wikilinkRe.ReplaceAllString(text, "$1")
	return text
}
