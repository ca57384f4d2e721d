package docstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minidefi/localrag/pkg/models"
)

const longBody = "This body is comfortably longer than the fifty character minimum for a section."

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadBuiltinOnly(t *testing.T) {
	chunks := Load(filepath.Join(t.TempDir(), "missing"))

	require.Len(t, chunks, len(KnowledgeBase))
	for i, c := range chunks {
		assert.Equal(t, KnowledgeBase[i].Title, c.Title)
		assert.Equal(t, models.SourceBuiltin, c.Source)
		assert.Equal(t, KnowledgeBase[i].Title+"\n"+KnowledgeBase[i].Content, c.Text)
	}
}

func TestLoadMarkdownSections(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guide.md", "## First Section\n"+longBody+"\n## Second Section\n"+longBody+" More text.\n")

	chunks := Load(dir)
	require.Len(t, chunks, len(KnowledgeBase)+2)

	first := chunks[len(KnowledgeBase)]
	assert.Equal(t, "First Section", first.Title)
	assert.Equal(t, models.SourceDocs, first.Source)
	assert.Equal(t, "First Section\n"+longBody, first.Text)

	second := chunks[len(KnowledgeBase)+1]
	assert.Equal(t, "Second Section", second.Title)
	assert.Equal(t, "Second Section\n"+longBody+" More text.", second.Text)
}

func TestLoadFiltersShortSections(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "short.md", "## Short\nok\n")

	chunks := Load(dir)
	assert.Len(t, chunks, len(KnowledgeBase))
}

func TestLoadPreambleTitledByFileStem(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "intro.md", longBody+"\n## Later\n"+longBody+"\n")

	chunks := Load(dir)
	require.Len(t, chunks, len(KnowledgeBase)+2)
	assert.Equal(t, "intro", chunks[len(KnowledgeBase)].Title)
	assert.Equal(t, "Later", chunks[len(KnowledgeBase)+1].Title)
}

func TestLoadFileOrderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.md", "## From B\n"+longBody+"\n")
	writeDoc(t, dir, "a.md", "## From A\n"+longBody+"\n")

	chunks := Load(dir)
	require.Len(t, chunks, len(KnowledgeBase)+2)
	assert.Equal(t, "From A", chunks[len(KnowledgeBase)].Title)
	assert.Equal(t, "From B", chunks[len(KnowledgeBase)+1].Title)
}

func TestLoadIgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "notes.txt", "## Not Markdown\n"+longBody+"\n")

	chunks := Load(dir)
	assert.Len(t, chunks, len(KnowledgeBase))
}

type failingReader struct {
	fail string
}

func (r failingReader) ReadFile(filename string) ([]byte, error) {
	if strings.HasSuffix(filename, r.fail) {
		return nil, errors.New("read error")
	}
	return os.ReadFile(filename)
}

func TestLoadSkipsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "bad.md", "## Bad\n"+longBody+"\n")
	writeDoc(t, dir, "good.md", "## Good\n"+longBody+"\n")

	chunks := load(dir, failingReader{fail: "bad.md"})
	require.Len(t, chunks, len(KnowledgeBase)+1)
	assert.Equal(t, "Good", chunks[len(KnowledgeBase)].Title)
}

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Doc
	}{
		{
			name:    "no headings yields single stem-titled section",
			content: "just a body\nwith two lines",
			want:    []Doc{{Title: "stem", Content: "just a body\nwith two lines"}},
		},
		{
			name:    "heading flushes previous section",
			content: "preamble\n## One\nbody one\n## Two\nbody two",
			want: []Doc{
				{Title: "stem", Content: "preamble"},
				{Title: "One", Content: "body one"},
				{Title: "Two", Content: "body two"},
			},
		},
		{
			name:    "third-level headings stay in the body",
			content: "## One\n### sub\ntext",
			want:    []Doc{{Title: "One", Content: "### sub\ntext"}},
		},
		{
			name:    "heading title is trimmed",
			content: "## Spaced Title   \nbody",
			want:    []Doc{{Title: "Spaced Title", Content: "body"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSections("stem", tt.content))
		})
	}
}
