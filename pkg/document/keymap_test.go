package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-notebook-be/pkg/notebook"
)

func TestEnterAtCellEndCreatesCell(t *testing.T) {
	d := newDoc(t, cell("a", notebook.KindAIResponse, "hi"), cell("b", notebook.KindUserText, "next"))
	require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 2}))
	assert.Equal(t, CaretCellEnd, d.CaretState())

	assert.True(t, d.HandleKey(Key{Name: KeyEnter}))
	assert.Equal(t, []string{"a", "id-1", "b"}, d.CellIDs())
	assert.Equal(t, Position{CellID: "id-1"}, d.Cursor())
	assert.Equal(t, CaretEmptyCell, d.CaretState())

	c, _ := d.Cell("id-1")
	assert.Equal(t, notebook.KindUserText, c.Kind)
	assert.Equal(t, "", c.Content)
}

func TestEnterSplitsBlocks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		cursor  Position
		want    string
		caret   Position
	}{
		{"paragraph", "helloworld", Position{CellID: "a", Offset: 5}, "hello\n\nworld", Position{CellID: "a", Leaf: 1}},
		{"heading middle", "## Headline", Position{CellID: "a", Offset: 4}, "## Head\n\n## line", Position{CellID: "a", Leaf: 1}},
		{"heading end", "## Head\n\nbody", Position{CellID: "a", Offset: 4}, "## Head\n\nbody", Position{CellID: "a", Leaf: 1}},
		{"list item", "- ab", Position{CellID: "a", Offset: 1}, "- a\n- b", Position{CellID: "a", Leaf: 1}},
		{"code", "```\nab\n```", Position{CellID: "a", Offset: 1}, "```\na\nb\n```", Position{CellID: "a", Offset: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDoc(t, cell("a", notebook.KindUserText, tt.content))
			require.NoError(t, d.SetCursor(tt.cursor))
			assert.True(t, d.HandleKey(Key{Name: KeyEnter}))
			assert.Equal(t, []string{tt.want}, contents(d))
			assert.Equal(t, tt.caret, d.Cursor())
			assert.Equal(t, 1, d.Len())
		})
	}
}

func TestBackspace(t *testing.T) {
	t.Run("empty cell is deleted", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "hi"), cell("b", notebook.KindUserText, ""))
		changes := recordChanges(d)
		require.NoError(t, d.SetCursor(Position{CellID: "b"}))

		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"a"}, d.CellIDs())
		assert.Equal(t, Position{CellID: "a", Offset: 2}, d.Cursor())
		require.Len(t, *changes, 1)
	})

	t.Run("non-empty cell merges into previous", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "one"), cell("b", notebook.KindAIResponse, "two"))
		require.NoError(t, d.SetCursor(Position{CellID: "b"}))

		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"a"}, d.CellIDs())
		assert.Equal(t, []string{"one\n\ntwo"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Leaf: 1}, d.Cursor())
	})

	t.Run("first cell start is left alone", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "one"))
		require.NoError(t, d.SetCursor(Position{CellID: "a"}))
		assert.False(t, d.HandleKey(Key{Name: KeyBackspace}))
	})

	t.Run("deletes previous rune", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "héllo"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 2}))
		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"hllo"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Offset: 1}, d.Cursor())
	})

	t.Run("joins leaves", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "one\n\ntwo"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Leaf: 1}))
		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"onetwo"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Offset: 3}, d.Cursor())
	})

	t.Run("removes image before caret", func(t *testing.T) {
		d := newDoc(t, cell("a", notebook.KindUserText, "![x](https://example.com/x.png)\n\ntext"))
		require.NoError(t, d.SetCursor(Position{CellID: "a", Leaf: 1}))
		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"text"}, contents(d))
		assert.Equal(t, Position{CellID: "a"}, d.Cursor())
	})

	t.Run("selection across cells", func(t *testing.T) {
		d := newDoc(t,
			cell("a", notebook.KindUserText, "hello"),
			cell("b", notebook.KindUserText, "middle"),
			cell("c", notebook.KindUserText, "world"),
		)
		require.NoError(t, d.SetSelection(Position{CellID: "c", Offset: 3}, Position{CellID: "a", Offset: 2}))

		assert.True(t, d.HandleKey(Key{Name: KeyBackspace}))
		assert.Equal(t, []string{"a"}, d.CellIDs())
		assert.Equal(t, []string{"held"}, contents(d))
		assert.Equal(t, Position{CellID: "a", Offset: 2}, d.Cursor())
	})
}

func TestArrowNavigation(t *testing.T) {
	d := newDoc(t,
		cell("a", notebook.KindUserText, "hello"),
		cell("b", notebook.KindUserText, "hi\n\nsecond"),
	)

	require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 4}))
	assert.True(t, d.HandleKey(Key{Name: KeyArrowDown}))
	assert.Equal(t, Position{CellID: "b", Offset: 2}, d.Cursor())

	require.NoError(t, d.SetCursor(Position{CellID: "b", Offset: 1}))
	assert.False(t, d.HandleKey(Key{Name: KeyArrowDown}), "not in the last leaf")
	assert.True(t, d.HandleKey(Key{Name: KeyArrowUp}))
	assert.Equal(t, Position{CellID: "a", Offset: 1}, d.Cursor())

	assert.False(t, d.HandleKey(Key{Name: KeyArrowUp}), "no cell above")

	require.NoError(t, d.SetCursor(Position{CellID: "b", Leaf: 1, Offset: 3}))
	assert.False(t, d.HandleKey(Key{Name: KeyArrowDown}), "no cell below")
	assert.False(t, d.HandleKey(Key{Name: KeyArrowUp}), "not in the first leaf")
}

func TestKeymapLeavesRangeSelectionAlone(t *testing.T) {
	d := newDoc(t, cell("a", notebook.KindUserText, "hello"), cell("b", notebook.KindUserText, "world"))
	changes := recordChanges(d)

	require.NoError(t, d.SetCursor(Position{CellID: "a", Offset: 5}))
	for _, name := range []string{KeyArrowDown, KeyArrowUp, KeyEnter, KeyBackspace} {
		assert.False(t, d.HandleKey(Key{Name: name, Shift: true}), name)
	}

	require.NoError(t, d.SetSelection(Position{CellID: "a", Offset: 1}, Position{CellID: "b", Offset: 2}))
	assert.False(t, d.HandleKey(Key{Name: KeyArrowDown}))
	assert.False(t, d.HandleKey(Key{Name: KeyArrowUp}))
	assert.Equal(t, "ello\n\nwo", d.SelectedText())

	assert.Empty(t, *changes)
	assert.Equal(t, []string{"hello", "world"}, contents(d))
}
