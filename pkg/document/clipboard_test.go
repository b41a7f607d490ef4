package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
)

func TestCopyAcrossCellsCarriesBoundaries(t *testing.T) {
	d := newDoc(t,
		cell("a", notebook.KindUserText, "hello"),
		cell("b", notebook.KindAIResponse, "world\n\nmore"),
	)
	require.NoError(t, d.SetSelection(Position{CellID: "a", Offset: 2}, Position{CellID: "b", Offset: 3}))

	f := d.Copy()
	require.Equal(t, 2, f.Boundaries())
	assert.Equal(t, "a", f.Nodes[0].Cell.ID)
	assert.Equal(t, notebook.KindAIResponse, f.Nodes[1].Cell.Kind)

	codec := lexical.NewCodec()
	assert.Equal(t, "llo", codec.Render(f.Nodes[0].Children))
	assert.Equal(t, "wor", codec.Render(f.Nodes[1].Children))

	// The source document is untouched.
	assert.Equal(t, []string{"hello", "world\n\nmore"}, contents(d))
}

func TestCopyWithinCell(t *testing.T) {
	d := newDoc(t, cell("a", notebook.KindUserText, "# Title\n\n- one\n- two\n\ntail"))
	require.NoError(t, d.SetSelection(Position{CellID: "a", Offset: 2}, Position{CellID: "a", Leaf: 2, Offset: 2}))

	f := d.Copy()
	assert.Equal(t, 0, f.Boundaries())
	assert.Equal(t, "# tle\n\n- one\n- tw", lexical.NewCodec().Render(f.Nodes))

	require.NoError(t, d.SetCursor(Position{CellID: "a"}))
	assert.True(t, d.Copy().Empty())
}

func TestPasteMintsFreshIDs(t *testing.T) {
	for n := 1; n <= 3; n++ {
		d := newDoc(t, cell("a", notebook.KindUserText, "one"), cell("b", notebook.KindUserText, "two"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 3}))

		var nodes []*lexical.Node
		for i := 0; i < n; i++ {
			// Same ids as cells already in the session, as after duplicate-and-edit.
			meta := notebook.Cell{ID: "a", Kind: notebook.KindAIResponse, OriginalPrompt: "q"}
			nodes = append(nodes, lexical.NewCell(meta, lexical.NewParagraph(lexical.NewText("copy", 0))))
		}

		ids, err := d.Paste(Fragment{Nodes: nodes})
		require.NoError(t, err)
		require.Len(t, ids, n)

		seen := map[string]bool{"a": true, "b": true}
		for _, id := range ids {
			assert.False(t, seen[id], "id %s collides", id)
			seen[id] = true
		}
		assert.Equal(t, 2+n, d.Len())
		assert.Equal(t, "a", d.CellIDs()[0])
		assert.Equal(t, ids, d.CellIDs()[1:1+n], "pasted after the caret's cell")

		pasted, _ := d.Cell(ids[0])
		assert.Equal(t, "copy", pasted.Content)
		assert.Equal(t, "q", pasted.OriginalPrompt)
	}
}

func TestPasteCopiedRangeRoundTrip(t *testing.T) {
	d := newDoc(t, cell("a", notebook.KindUserText, "hello"), cell("b", notebook.KindUserText, "world"))
	require.NoError(t, d.SetSelection(Position{CellID: "a"}, Position{CellID: "b", Offset: 5}))
	f := d.Copy()

	require.NoError(t, d.SetCursor(Position{CellID: "b", Offset: 5}))
	ids, err := d.Paste(f)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, []string{"hello", "world", "hello", "world"}, contents(d))
	assert.Equal(t, d.endOf(3), d.Cursor())
}

func TestPasteBlocksIntoCaretCell(t *testing.T) {
	t.Run("inline paragraph at caret", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "ab"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 1}))

		ids, err := d.PasteMarkdown("**X**")
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, []string{"a**X**b"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Offset: 2}, d.Cursor())
	})

	t.Run("html blocks after caret block", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "intro"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 5}))

		ids, err := d.PasteHTML(`<div data-cell-id="a"><h2>Title</h2><p>body <script>x()</script></p></div>`)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 1, d.Len())
		assert.Equal(t, []string{"intro\n\n## Title\n\nbody"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Leaf: 2, Offset: 4}, d.Cursor())
	})

	t.Run("blocks replace an empty cell", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, ""))
		require.NoError(t, d.SetCursor(Position{CellID: "a"}))

		_, err := d.PasteMarkdown("- x\n- y")
		require.NoError(t, err)
		assert.Equal(t, []string{"- x\n- y"}, contents(d))
	})

	t.Run("empty document gets a new cell", func(t *testing.T) {
		d := newDoc(t)
		ids, err := d.PasteMarkdown("# Hi\n\nthere")
		require.NoError(t, err)
		assert.Equal(t, []string{"id-1"}, ids)
		assert.Equal(t, []string{"# Hi\n\nthere"}, contents(d))
	})

	t.Run("replaces selection", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "hello world"))
		require.NoError(t, d.SetSelection(Position{CellID: "a", Offset: 6}, Position{CellID: "a", Offset: 11}))

		_, err := d.PasteMarkdown("there")
		require.NoError(t, err)
		assert.Equal(t, []string{"hello there"}, contents(d))
	})
}

func TestPasteLexicalPayload(t *testing.T) {
	d := newDoc(t, cell("a", notebook.KindUserText, "start"))
	require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 5}))

	payload := `{"namespace":"editor","nodes":[{"type":"paragraph","children":[{"type":"text","text":" more","format":2}]}]}`
	_, err := d.PasteLexical([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []string{"start *more*"}, contents(d))
}

func TestPasteDropsBlockName(t *testing.T) {
	d := newDoc(t, notebook.Cell{ID: "a", Kind: notebook.KindUserText, Content: "source",
		ProcessingConfig: &notebook.ProcessingConfig{Trigger: notebook.TriggerManual, BlockName: "Block Name"}})
	require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 6}))

	copied := notebook.Cell{Kind: notebook.KindAIResponse, OriginalPrompt: "q",
		ProcessingConfig: &notebook.ProcessingConfig{Trigger: notebook.TriggerManual, BlockName: "Block Name", References: []string{"x"}}}
	f := Fragment{Nodes: []*lexical.Node{lexical.NewCell(copied, lexical.NewParagraph(lexical.NewText("dup", 0)))}}

	ids, err := d.Paste(f)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	pasted, ok := d.Cell(ids[0])
	require.True(t, ok)
	require.NotNil(t, pasted.ProcessingConfig)
	assert.Empty(t, pasted.ProcessingConfig.BlockName)
	assert.Equal(t, []string{"x"}, pasted.ProcessingConfig.References)

	original, _ := d.Cell("a")
	assert.Equal(t, "Block Name", original.ProcessingConfig.BlockName)
}
