package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecsync/vecsync/pkg/types"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()

	got, err := r.Extract("note.txt", []byte("plain content"))
	require.NoError(t, err)
	assert.Equal(t, "plain content", got)

	got, err = r.Extract("note.md", []byte("# Title\n\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nbody", got)
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract("/tmp/image.png", []byte{0x89, 0x50})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrExtraction))
	assert.False(t, r.Supported("image.png"))
	assert.True(t, r.Supported("doc.md"))
}

func TestMarkdownStripsFrontMatter(t *testing.T) {
	data := []byte("---\ntitle: Test\ntags: [a, b]\n---\n\n# Heading\n\nbody text\n")

	got, err := NewMarkdown().Extract(data)
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nbody text\n", got)
}

func TestMarkdownWithoutFrontMatter(t *testing.T) {
	got, err := NewMarkdown().Extract([]byte("just a body\n"))
	require.NoError(t, err)
	assert.Equal(t, "just a body\n", got)
}

func TestMarkdownUnclosedFrontMatter(t *testing.T) {
	content := "---\ntitle: broken\nno closing delimiter\n"

	got, err := NewMarkdown().Extract([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, content, got, "content without a complete block is returned unchanged")
}

func TestCaseInsensitiveExtension(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Supported("NOTES.TXT"))
	assert.True(t, r.Supported("README.MD"))
}
