package extract

import (
	"strings"
)

// Markdown extracts .md files, stripping YAML front matter so that purely
// cosmetic metadata edits do not change the chunk ids of the body.
type Markdown struct{}

// NewMarkdown creates the markdown extractor.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

// Extensions returns the extensions handled by this extractor.
func (m *Markdown) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Extract returns the markdown body with front matter removed.
func (m *Markdown) Extract(data []byte) (string, error) {
	return stripFrontMatter(string(data)), nil
}

// stripFrontMatter removes a leading YAML front matter block delimited by
// "---" lines. Content without a complete block is returned unchanged.
func stripFrontMatter(content string) string {
	const delim = "---"

	trimmed := strings.TrimLeft(content, "\n\r")
	if !strings.HasPrefix(trimmed, delim) {
		return content
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return content
	}

	after := rest[idx+1+len(delim):]
	// Drop the remainder of the closing delimiter line.
	if nl := strings.Index(after, "\n"); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = ""
	}
	return strings.TrimLeft(after, "\n\r")
}
