package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

func TestMarkdownParserEmitsOneChunkPerHeading(t *testing.T) {
	body := "# Title\n" + strings.Repeat("intro text. ", 20) + "\n\n" +
		"## Usage\n" + strings.Repeat("usage text. ", 20) + "\n\n" +
		"## API\n" + strings.Repeat("api text. ", 20) + "\n"

	p := NewMarkdownParser()
	chunks, err := p.EmitChunks("doc.md", []byte(body))
	require.NoError(t, err)

	var sections, roots int
	var names []string
	for _, c := range chunks {
		switch c.Kind {
		case types.KindSection:
			sections++
			names = append(names, c.Name)
		case types.KindFileChunk:
			roots++
		}
	}
	assert.Equal(t, 3, sections)
	assert.Equal(t, 1, roots, "markdown always also emits the implicit root chunk")
	assert.Equal(t, []string{"Title", "Usage", "API"}, names)
}

func TestMarkdownParserMergesShortSections(t *testing.T) {
	body := "# Title\n" + strings.Repeat("intro text. ", 20) + "\n\n" +
		"## Tiny\nx\n\n" +
		"## API\n" + strings.Repeat("api text. ", 20) + "\n"

	p := NewMarkdownParser()
	chunks, err := p.EmitChunks("doc.md", []byte(body))
	require.NoError(t, err)

	var sectionNames []string
	for _, c := range chunks {
		if c.Kind == types.KindSection {
			sectionNames = append(sectionNames, c.Name)
			assert.GreaterOrEqual(t, len(c.Content), DefaultMinSectionChars, "merged section should clear the threshold")
		}
	}
	assert.Equal(t, []string{"Title", "API"}, sectionNames, "the tiny section merges into its neighbour")
}

func TestPlainTextParserSplitsOnParagraphs(t *testing.T) {
	body := "first paragraph line one\nfirst paragraph line two\n\nsecond paragraph\n"
	p := NewPlainTextParser()
	chunks, err := p.EmitChunks("notes.txt", []byte(body))
	require.NoError(t, err)

	var paragraphs int
	for _, c := range chunks {
		if c.Kind == types.KindParagraph {
			paragraphs++
		}
	}
	assert.Equal(t, 1, paragraphs, "both short paragraphs merge below the threshold")
}
