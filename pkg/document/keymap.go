package document

import (
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
)

// Key names understood by HandleKey.
const (
	KeyEnter     = "Enter"
	KeyBackspace = "Backspace"
	KeyArrowUp   = "ArrowUp"
	KeyArrowDown = "ArrowDown"
)

type Key struct {
	Name  string `json:"name"`
	Shift bool   `json:"shift"`
}

// HandleKey applies the boundary keymap. It returns false when the key is
// left to the client's native behaviour. Shift-modified keys are never
// intercepted, and arrows never act on a non-collapsed selection, so range
// selection across cells keeps working.
func (d *Document) HandleKey(k Key) bool {
	if k.Shift || d.Len() == 0 {
		return false
	}

	if !d.sel.Collapsed() {
		switch k.Name {
		case KeyBackspace:
			return d.DeleteSelection()
		case KeyEnter:
			ids := d.deleteSelection()
			if !d.enter() {
				d.emit(OriginUser, ids...)
			}
			return true
		default:
			return false
		}
	}

	switch k.Name {
	case KeyEnter:
		return d.enter()
	case KeyBackspace:
		return d.backspace()
	case KeyArrowUp:
		return d.arrowUp()
	case KeyArrowDown:
		return d.arrowDown()
	default:
		return false
	}
}

func (d *Document) caret() (int, *lexical.Node, []*lexical.Node, bool) {
	p := d.sel.Head
	ci := d.indexOf(p.CellID)
	if ci < 0 {
		return -1, nil, nil, false
	}
	b := d.root.Children[ci]
	ls := leaves(b.Children)
	if p.Leaf < 0 || p.Leaf >= len(ls) {
		return -1, nil, nil, false
	}
	return ci, b, ls, true
}

// enter at the end of a cell opens a new empty user-text cell after it;
// anywhere else it splits the current block.
func (d *Document) enter() bool {
	ci, b, ls, ok := d.caret()
	if !ok {
		return false
	}
	p := d.sel.Head
	leaf := ls[p.Leaf]
	size := leafLen(leaf)

	if p.Leaf == len(ls)-1 && p.Offset == size {
		ids, err := d.insertCells(OriginUser, b.Cell.ID, []notebook.Cell{{Kind: notebook.KindUserText}})
		if err != nil {
			return false
		}
		d.sel = collapsed(d.startOf(d.indexOf(ids[0])))
		return true
	}

	next := Position{CellID: b.Cell.ID, Leaf: p.Leaf + 1}
	switch leaf.Type {
	case lexical.TypeCode:
		setSpans(leaf, insertAt(getSpans(leaf), p.Offset, "\n"))
		next = Position{CellID: b.Cell.ID, Leaf: p.Leaf, Offset: p.Offset + 1}

	case lexical.TypeImage, lexical.TypeHorizontalRule:
		b.Children, _ = insertAfterLeaf(b.Children, leaf, lexical.NewParagraph())

	case lexical.TypeListItem:
		left, right := cut(getSpans(leaf), p.Offset)
		nested := nestedLists(leaf)
		leaf.Children = rebuild(left)
		item := lexical.NewListItem(append(rebuild(right), nested...)...)
		b.Children, _ = insertAfterLeaf(b.Children, leaf, item)

	case lexical.TypeHeading:
		left, right := cut(getSpans(leaf), p.Offset)
		setSpans(leaf, left)
		var block *lexical.Node
		if len(right) == 0 {
			block = lexical.NewParagraph()
		} else {
			block = lexical.NewHeading(leaf.HeadingLevel(), rebuild(right)...)
		}
		b.Children, _ = insertAfterLeaf(b.Children, leaf, block)

	default:
		left, right := cut(getSpans(leaf), p.Offset)
		setSpans(leaf, left)
		b.Children, _ = insertAfterLeaf(b.Children, leaf, lexical.NewParagraph(rebuild(right)...))
	}

	d.sel = collapsed(next)
	d.touch(b)
	d.fixSelection(ci)
	d.emit(OriginUser, b.Cell.ID)
	return true
}

// backspace at the start of an empty cell deletes it; at the start of a
// non-empty cell it merges the cell into the previous one. Inside a cell it
// deletes the previous rune or joins the leaf with the previous leaf.
func (d *Document) backspace() bool {
	ci, b, ls, ok := d.caret()
	if !ok {
		return false
	}
	p := d.sel.Head
	leaf := ls[p.Leaf]

	if p.Leaf == 0 && p.Offset == 0 {
		if ci == 0 {
			return false
		}
		prev := d.root.Children[ci-1]
		if d.cellEmpty(ci) {
			d.removeRange(ci, ci+1)
			d.sel = collapsed(d.endOf(ci - 1))
			d.emit(OriginStructure, b.Cell.ID)
			return true
		}
		at := len(leaves(prev.Children))
		prev.Children = append(prev.Children, b.Children...)
		d.removeRange(ci, ci+1)
		d.sel = collapsed(Position{CellID: prev.Cell.ID, Leaf: at})
		d.touch(prev)
		d.emit(OriginUser, prev.Cell.ID, b.Cell.ID)
		return true
	}

	switch {
	case p.Offset > 0:
		setSpans(leaf, deleteRange(getSpans(leaf), p.Offset-1, p.Offset))
		p.Offset--

	case !isTextLeaf(leaf):
		prevLeaf := ls[p.Leaf-1]
		b.Children = removeLeaf(b.Children, leaf)
		p = Position{CellID: p.CellID, Leaf: p.Leaf - 1, Offset: leafLen(prevLeaf)}

	case !isTextLeaf(ls[p.Leaf-1]):
		b.Children = removeLeaf(b.Children, ls[p.Leaf-1])
		p.Leaf--

	default:
		prevLeaf := ls[p.Leaf-1]
		size := leafLen(prevLeaf)
		setSpans(prevLeaf, append(getSpans(prevLeaf), getSpans(leaf)...))
		b.Children = removeLeaf(b.Children, leaf)
		p = Position{CellID: p.CellID, Leaf: p.Leaf - 1, Offset: size}
	}

	b.Children = ensureBlocks(b.Children)
	d.sel = collapsed(p)
	d.touch(b)
	d.fixSelection(ci)
	d.emit(OriginUser, b.Cell.ID)
	return true
}

// arrowUp from the first leaf moves into the previous cell's last leaf,
// keeping the column where possible.
func (d *Document) arrowUp() bool {
	ci, _, _, ok := d.caret()
	p := d.sel.Head
	if !ok || p.Leaf != 0 || ci == 0 {
		return false
	}
	target := d.endOf(ci - 1)
	target.Offset = clamp(p.Offset, 0, target.Offset)
	d.sel = collapsed(target)
	return true
}

// arrowDown from the last leaf moves into the next cell's first leaf.
func (d *Document) arrowDown() bool {
	ci, _, ls, ok := d.caret()
	p := d.sel.Head
	if !ok || p.Leaf != len(ls)-1 || ci == d.Len()-1 {
		return false
	}
	next := d.root.Children[ci+1]
	first := leaves(next.Children)[0]
	d.sel = collapsed(Position{CellID: next.Cell.ID, Offset: clamp(p.Offset, 0, leafLen(first))})
	return true
}
