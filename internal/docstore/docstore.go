// Package docstore builds the ordered chunk list the vector index is built
// over: builtin knowledge-base entries first, then sections extracted from
// markdown files in the docs directory.
package docstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/minidefi/localrag/pkg/models"
)

// Sections whose trimmed body is this short carry no retrievable signal.
const minSectionLen = 50

// FileReader reads file contents; swapped out in tests.
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

type osFileReader struct{}

func (osFileReader) ReadFile(filename string) ([]byte, error) { return os.ReadFile(filename) }

// Load builds the chunk list. Chunk order is deterministic: knowledge-base
// entries in their fixed order, then per-file sections in filename order,
// in within-file order. The docs directory is optional.
func Load(docsDir string) []models.Chunk {
	return load(docsDir, osFileReader{})
}

func load(docsDir string, reader FileReader) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(KnowledgeBase))
	for _, doc := range KnowledgeBase {
		chunks = append(chunks, models.Chunk{
			Text:   doc.Title + "\n" + doc.Content,
			Title:  doc.Title,
			Source: models.SourceBuiltin,
		})
	}

	for _, doc := range loadMarkdownDocs(docsDir, reader) {
		content := strings.TrimSpace(doc.Content)
		if len(content) <= minSectionLen {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Text:   doc.Title + "\n" + content,
			Title:  doc.Title,
			Source: models.SourceDocs,
		})
	}

	return chunks
}

// loadMarkdownDocs reads every *.md file under docsDir and splits each into
// sections on second-level headings. A file that cannot be read is skipped
// with a warning; a missing directory contributes nothing.
func loadMarkdownDocs(docsDir string, reader FileReader) []Doc {
	if docsDir == "" {
		return nil
	}
	if fi, err := os.Stat(docsDir); err != nil || !fi.IsDir() {
		return nil
	}

	var paths []string
	err := godirwalk.Walk(docsDir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(path, ".md") {
				return nil
			}
			paths = append(paths, path)
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		log.Warn().Err(err).Str("dir", docsDir).Msg("failed to walk docs directory")
		return nil
	}
	sort.Strings(paths)

	var docs []Doc
	for _, path := range paths {
		content, err := reader.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("failed to load markdown file")
			continue
		}
		sections := splitSections(fileStem(path), string(content))
		docs = append(docs, sections...)
		log.Info().Int("sections", len(sections)).Str("file", filepath.Base(path)).Msg("loaded markdown file")
	}
	return docs
}

// splitSections scans lines: a "## " line flushes the accumulated section and
// starts a new one titled by the heading text; the trailing section flushes
// at end of file. The first section is titled by the file stem.
func splitSections(stem, content string) []Doc {
	var sections []Doc
	title := stem
	var body []string

	flush := func() {
		if len(body) > 0 {
			sections = append(sections, Doc{Title: title, Content: strings.Join(body, "\n")})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			title = strings.TrimSpace(line[3:])
			body = nil
		} else {
			body = append(body, line)
		}
	}
	flush()

	return sections
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
