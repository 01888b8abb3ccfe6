// Package extract provides the text extraction collaborator: turning source
// files into plain text for chunking. Binary formats (PDF, OCR) are outside
// the engine; extractors for them plug in through the same interface.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vecsync/vecsync/pkg/types"
)

// Extractor converts a single file into plain text.
type Extractor interface {
	// Extract turns raw file bytes into text. Errors are per-file: the
	// caller logs them and continues the run.
	Extract(data []byte) (string, error)

	// Extensions lists the file extensions (with leading dot, lower case)
	// this extractor handles.
	Extensions() []string
}

// Registry dispatches files to extractors by extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates a registry with the built-in plaintext and markdown
// extractors registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(NewPlaintext())
	r.Register(NewMarkdown())
	return r
}

// Register adds an extractor for all of its declared extensions, replacing
// any previous registration.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Supported reports whether any extractor handles the file's extension.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the set of registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// Extract dispatches to the extractor registered for the file's extension.
// The path selects the extractor; data is the file content, already read by
// the caller during hashing.
func (r *Registry) Extract(path string, data []byte) (string, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: no extractor for %s", types.ErrExtraction, filepath.Ext(path))
	}
	text, err := e.Extract(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrExtraction, path, err)
	}
	return text, nil
}
