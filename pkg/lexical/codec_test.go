package lexical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecParseHeadingAndParagraph(t *testing.T) {
	codec := NewCodec()

	blocks, err := codec.Parse("## Title\npara one")
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, TypeHeading, blocks[0].Type)
	assert.Equal(t, 2, blocks[0].HeadingLevel())
	assert.Equal(t, "Title", PlainText(blocks[0].Children))
	assert.Equal(t, TypeParagraph, blocks[1].Type)
	assert.Equal(t, "para one", PlainText(blocks[1].Children))

	assert.Equal(t, "## Title\n\npara one", codec.Render(blocks))
}

func TestCodecCanonicalRoundTrip(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name     string
		markdown string
	}{
		{"inline formats", "# Heading\n\nSome **bold** and *italic* and ~~gone~~ and `code`."},
		{"nested bullets", "- one\n- two\n  - nested"},
		{"numbered", "1. first\n2. second"},
		{"numbered with start", "3. third\n4. fourth"},
		{"checklist", "- [x] done\n- [ ] todo"},
		{"fenced code", "```go\nfmt.Println(\"hi\")\n```"},
		{"code with fence inside", "````\n```\ninner\n```\n````"},
		{"image", "![diagram](https://example.com/a.png)"},
		{"quote", "> quoted text"},
		{"rule", "para\n\n---\n\nafter"},
		{"link", "See [docs](https://example.com/docs) now"},
		{"hard line inside paragraph", "first line\nsecond line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := codec.Normalize(tt.markdown)
			require.NoError(t, err)
			assert.Equal(t, tt.markdown, once)

			twice, err := codec.Normalize(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestCodecEscapesLiteralPunctuation(t *testing.T) {
	codec := NewCodec()

	literal := "*not emphasis* and 1. item"
	rendered := codec.Render([]*Node{NewParagraph(NewText(literal, 0))})
	assert.Equal(t, `\*not emphasis\* and 1. item`, rendered)

	blocks, err := codec.Parse(rendered)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, literal, PlainText(blocks))

	// A line that would otherwise parse as a heading or list marker.
	for _, text := range []string{"# not a heading", "- not a list", "1. not a list"} {
		rendered := codec.Render([]*Node{NewParagraph(NewText(text, 0))})
		blocks, err := codec.Parse(rendered)
		require.NoError(t, err)
		require.Len(t, blocks, 1, text)
		assert.Equal(t, TypeParagraph, blocks[0].Type, text)
		assert.Equal(t, text, PlainText(blocks), text)
	}
}

func TestCodecSanitizesMarkdown(t *testing.T) {
	codec := NewCodec()

	t.Run("html block keeps only text", func(t *testing.T) {
		blocks, err := codec.Parse(`<div onclick="x()">hi</div>`)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, TypeParagraph, blocks[0].Type)
		assert.Equal(t, "hi", PlainText(blocks))
	})

	t.Run("inline tags are stripped", func(t *testing.T) {
		blocks, err := codec.Parse("hello <b onmouseover=\"x()\">there</b> world")
		require.NoError(t, err)
		out := codec.Render(blocks)
		assert.NotContains(t, out, "<b")
		assert.NotContains(t, out, "onmouseover")
		assert.Contains(t, PlainText(blocks), "there")
	})

	t.Run("unsafe link scheme is dropped", func(t *testing.T) {
		blocks, err := codec.Parse("[x](javascript:alert(1))")
		require.NoError(t, err)
		assert.Equal(t, "x", codec.Render(blocks))
	})

	t.Run("data url only for images", func(t *testing.T) {
		s := NewSanitizer()
		_, ok := s.URL("data:text/html;base64,PHNjcmlwdD4=")
		assert.False(t, ok)
		_, ok = s.URL("data:image/png;base64,iVBORw0KGgo=")
		assert.True(t, ok)
		_, ok = s.URL("vbscript:msgbox")
		assert.False(t, ok)
		_, ok = s.URL("notes/page.md")
		assert.True(t, ok)
	})
}

func TestCodecParseHTML(t *testing.T) {
	codec := NewCodec()

	t.Run("structure and formats", func(t *testing.T) {
		blocks, err := codec.ParseHTML(`<p>Hello <b>world</b></p><ul><li>a</li><li>b</li></ul><script>evil()</script>`)
		require.NoError(t, err)
		assert.Equal(t, "Hello **world**\n\n- a\n- b", codec.Render(blocks))
	})

	t.Run("never yields cell boundaries", func(t *testing.T) {
		blocks, err := codec.ParseHTML(`<div data-cell-id="c1"><p>a</p></div><div data-cell-id="c2"><h2>b</h2></div>`)
		require.NoError(t, err)
		for _, b := range blocks {
			assert.NotEqual(t, TypeCell, b.Type)
			assert.True(t, b.IsBlock())
		}
		assert.Equal(t, "a\n\n## b", codec.Render(blocks))
	})

	t.Run("code and whitespace", func(t *testing.T) {
		blocks, err := codec.ParseHTML("<pre><code class=\"language-go\">x := 1\n</code></pre><p>  spaced \n  out  </p>")
		require.NoError(t, err)
		assert.Equal(t, "```go\nx := 1\n```\n\nspaced out", codec.Render(blocks))
	})

	t.Run("empty input", func(t *testing.T) {
		blocks, err := codec.ParseHTML("")
		require.NoError(t, err)
		assert.Empty(t, blocks)
	})
}

func TestCodecParseLexicalState(t *testing.T) {
	codec := NewCodec()
	state := `{"root":{"type":"root","children":[` +
		`{"type":"heading","tag":"h1","children":[{"type":"text","text":"Hi","format":0}]},` +
		`{"type":"paragraph","children":[{"type":"text","text":"bold","format":1},{"type":"text","text":" rest","format":8}]},` +
		`{"type":"cell","children":[{"type":"paragraph","children":[{"type":"text","text":"inner"}]}]}` +
		`]}}`

	blocks, err := codec.Parse(state)
	require.NoError(t, err)
	assert.Equal(t, "# Hi\n\n**bold** rest\n\ninner", codec.Render(blocks))

	_, err = codec.ParseLexical([]byte(`{"root":`))
	assert.Error(t, err)
}

func TestSplitPolicySections(t *testing.T) {
	codec := NewCodec()
	blocks, err := codec.Parse("## Title\n\npara one\n\n## Second\n\nmore")
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	tests := []struct {
		name   string
		policy SplitPolicy
		want   []string
	}{
		{"none", SplitPolicy{Mode: SplitNone}, []string{"## Title\n\npara one\n\n## Second\n\nmore"}},
		{"zero value", SplitPolicy{}, []string{"## Title\n\npara one\n\n## Second\n\nmore"}},
		{"headings", SplitPolicy{Mode: SplitAtHeadings, MaxLevel: 2}, []string{"## Title\n\npara one", "## Second\n\nmore"}},
		{"headings above max level", SplitPolicy{Mode: SplitAtHeadings, MaxLevel: 1}, []string{"## Title\n\npara one\n\n## Second\n\nmore"}},
		{"each block", SplitPolicy{Mode: SplitEachBlock}, []string{"## Title", "para one", "## Second", "more"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, section := range tt.policy.Sections(blocks) {
				got = append(got, codec.Render(section))
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty input yields one section", func(t *testing.T) {
		sections := SplitPolicy{Mode: SplitAtHeadings, MaxLevel: 2}.Sections(nil)
		assert.Len(t, sections, 1)
		assert.Empty(t, sections[0])
	})
}

func TestParseSplitPolicy(t *testing.T) {
	p, err := ParseSplitPolicy("Headings", 0)
	require.NoError(t, err)
	assert.Equal(t, SplitPolicy{Mode: SplitAtHeadings, MaxLevel: 2}, p)

	p, err = ParseSplitPolicy("", 3)
	require.NoError(t, err)
	assert.Equal(t, SplitNone, p.Mode)

	_, err = ParseSplitPolicy("paragraphs", 0)
	assert.Error(t, err)
}

func TestStyleMapFormat(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"font-weight: 700", FormatBold},
		{"FONT-WEIGHT: Bold; font-style: italic", FormatBold | FormatItalic},
		{"font-weight: 400", 0},
		{"text-decoration: underline line-through", FormatStrikethrough},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStyle(tt.style).Format())
		})
	}
}

func TestPlainTextSeparatesBlocks(t *testing.T) {
	blocks := []*Node{
		NewHeading(1, NewText("Title", 0)),
		NewList(ListBullet, 0, NewListItem(NewText("a", 0)), NewListItem(NewText("b", 0))),
	}
	assert.Equal(t, "Title\na\nb", PlainText(blocks))
	assert.False(t, strings.Contains(PlainText(nil), "\n"))
}

func TestCodecKeepsEdgeWhitespace(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name string
		text string
	}{
		{"indented line", "    indented"},
		{"tab indent", "\tindented"},
		{"trailing double space", "a  \nb"},
		{"indented continuation", "a\n   b"},
		{"trailing space at end", "end  "},
		{"literal reference", "&#32; stays &amp; literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered := codec.Render([]*Node{NewParagraph(NewText(tt.text, 0))})
			blocks, err := codec.Parse(rendered)
			require.NoError(t, err)
			require.Len(t, blocks, 1, rendered)
			assert.Equal(t, TypeParagraph, blocks[0].Type, rendered)
			assert.Equal(t, tt.text, PlainText(blocks), rendered)

			again, err := codec.Normalize(rendered)
			require.NoError(t, err)
			assert.Equal(t, rendered, again)
		})
	}

	t.Run("formatted run at line edges", func(t *testing.T) {
		rendered := codec.Render([]*Node{NewParagraph(NewText("  bold  \nnext", FormatBold))})
		blocks, err := codec.Parse(rendered)
		require.NoError(t, err)
		assert.Equal(t, "  bold  \nnext", PlainText(blocks), rendered)
	})
}

func TestCodecReadsLookalikeStateAsMarkdown(t *testing.T) {
	codec := NewCodec()

	for _, text := range []string{`{"root": 1}`, `{"root":{"children":[]}}`, `{"root":`} {
		rendered := codec.Render([]*Node{NewParagraph(NewText(text, 0))})
		assert.True(t, strings.HasPrefix(rendered, `\{`), rendered)

		blocks, err := codec.Parse(rendered)
		require.NoError(t, err, text)
		require.Len(t, blocks, 1, text)
		assert.Equal(t, text, PlainText(blocks))
	}

	// Unescaped content that fails to decode falls back to markdown.
	blocks, err := codec.Parse(`{"root": 1}`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, `{"root": 1}`, PlainText(blocks))
}

func TestNormalizeBlocksDropsEmptyContainers(t *testing.T) {
	codec := NewCodec()

	blocks, err := codec.ParseLexical([]byte(`{"root":{"children":[` +
		`{"type":"list","listType":"bullet","children":[]},` +
		`{"type":"quote","children":[]},` +
		`{"type":"paragraph","children":[{"type":"text","text":"kept"}]}]}}`))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "kept", PlainText(blocks))
}
