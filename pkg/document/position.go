package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
)

// Position addresses a caret location: a leaf of a cell and a rune offset
// inside the leaf's text. Images and rules only accept offset zero.
type Position struct {
	CellID string `json:"cellId"`
	Leaf   int    `json:"leaf"`
	Offset int    `json:"offset"`
}

// Selection is an anchor and a head; it may span several cells.
type Selection struct {
	Anchor Position `json:"anchor"`
	Head   Position `json:"head"`
}

func (s Selection) Collapsed() bool {
	return s.Anchor == s.Head
}

func collapsed(p Position) Selection {
	return Selection{Anchor: p, Head: p}
}

// CaretState classifies a collapsed caret relative to its cell.
type CaretState int

const (
	CaretInterior CaretState = iota
	CaretCellStart
	CaretCellEnd
	// CaretEmptyCell is a caret in a cell without content, which is both
	// start and end.
	CaretEmptyCell
)

func (d *Document) Selection() Selection {
	return d.sel
}

// Cursor returns the selection head.
func (d *Document) Cursor() Position {
	return d.sel.Head
}

func (d *Document) SetCursor(p Position) error {
	if err := d.validate(p); err != nil {
		return err
	}
	d.sel = collapsed(p)
	return nil
}

func (d *Document) SetSelection(anchor, head Position) error {
	if err := d.validate(anchor); err != nil {
		return err
	}
	if err := d.validate(head); err != nil {
		return err
	}
	d.sel = Selection{Anchor: anchor, Head: head}
	return nil
}

// CaretState reports where the caret sits. A non-collapsed selection is
// always CaretInterior.
func (d *Document) CaretState() CaretState {
	if !d.sel.Collapsed() || d.Len() == 0 {
		return CaretInterior
	}
	p := d.sel.Head
	ci := d.indexOf(p.CellID)
	if ci < 0 {
		return CaretInterior
	}
	if d.cellEmpty(ci) {
		return CaretEmptyCell
	}
	ls := leaves(d.root.Children[ci].Children)
	switch {
	case p.Leaf == 0 && p.Offset == 0:
		return CaretCellStart
	case p.Leaf == len(ls)-1 && p.Offset == leafLen(ls[p.Leaf]):
		return CaretCellEnd
	default:
		return CaretInterior
	}
}

func (d *Document) validate(p Position) error {
	ci := d.indexOf(p.CellID)
	if ci < 0 {
		return fmt.Errorf("%w: unknown cell %s", ErrInvalidPosition, p.CellID)
	}
	ls := leaves(d.root.Children[ci].Children)
	if p.Leaf < 0 || p.Leaf >= len(ls) {
		return fmt.Errorf("%w: leaf %d of %d", ErrInvalidPosition, p.Leaf, len(ls))
	}
	if p.Offset < 0 || p.Offset > leafLen(ls[p.Leaf]) {
		return fmt.Errorf("%w: offset %d", ErrInvalidPosition, p.Offset)
	}
	return nil
}

func (d *Document) compare(a, b Position) int {
	ai, bi := d.indexOf(a.CellID), d.indexOf(b.CellID)
	switch {
	case ai != bi:
		return ai - bi
	case a.Leaf != b.Leaf:
		return a.Leaf - b.Leaf
	default:
		return a.Offset - b.Offset
	}
}

func (d *Document) ordered() (Position, Position) {
	if d.compare(d.sel.Anchor, d.sel.Head) <= 0 {
		return d.sel.Anchor, d.sel.Head
	}
	return d.sel.Head, d.sel.Anchor
}

func (d *Document) startOf(ci int) Position {
	return Position{CellID: d.root.Children[ci].Cell.ID}
}

func (d *Document) endOf(ci int) Position {
	b := d.root.Children[ci]
	ls := leaves(b.Children)
	last := len(ls) - 1
	return Position{CellID: b.Cell.ID, Leaf: last, Offset: leafLen(ls[last])}
}

// fixSelection clamps the selection after a mutation. Positions in removed
// cells move to the end of the cell at fallback.
func (d *Document) fixSelection(fallback int) {
	if d.Len() == 0 {
		d.sel = Selection{}
		return
	}
	fix := func(p Position) Position {
		ci := d.indexOf(p.CellID)
		if ci < 0 {
			return d.endOf(clamp(fallback, 0, d.Len()-1))
		}
		ls := leaves(d.root.Children[ci].Children)
		p.Leaf = clamp(p.Leaf, 0, len(ls)-1)
		p.Offset = clamp(p.Offset, 0, leafLen(ls[p.Leaf]))
		return p
	}
	d.sel = Selection{Anchor: fix(d.sel.Anchor), Head: fix(d.sel.Head)}
}

func (d *Document) cellEmpty(ci int) bool {
	for _, l := range leaves(d.root.Children[ci].Children) {
		if !isTextLeaf(l) || leafLen(l) > 0 {
			return false
		}
	}
	return true
}

// SelectedText returns the plain text of the selection. Leaves are joined
// by a newline and cells by a blank line.
func (d *Document) SelectedText() string {
	if d.sel.Collapsed() || d.Len() == 0 {
		return ""
	}
	start, end := d.ordered()
	si, ei := d.indexOf(start.CellID), d.indexOf(end.CellID)

	var cells []string
	for ci := si; ci <= ei; ci++ {
		from, to := d.startOf(ci), d.endOf(ci)
		if ci == si {
			from = start
		}
		if ci == ei {
			to = end
		}
		ls := leaves(d.root.Children[ci].Children)
		var parts []string
		for li := from.Leaf; li <= to.Leaf; li++ {
			spans := getSpans(ls[li])
			lo, hi := 0, spansLen(spans)
			if li == from.Leaf {
				lo = from.Offset
			}
			if li == to.Leaf {
				hi = to.Offset
			}
			if !isTextLeaf(ls[li]) {
				parts = append(parts, ls[li].AltText)
				continue
			}
			parts = append(parts, spansText(slice(spans, lo, hi)))
		}
		cells = append(cells, strings.Join(parts, "\n"))
	}
	return strings.Join(cells, "\n\n")
}

// InsertText types text at the caret, replacing a non-collapsed selection.
// Typing into an empty document creates a user-text cell first.
func (d *Document) InsertText(text string) error {
	if text == "" {
		return nil
	}
	if d.Len() == 0 {
		if _, err := d.insertCells(OriginUser, "", []notebook.Cell{{Kind: notebook.KindUserText}}); err != nil {
			return err
		}
		d.sel = collapsed(d.startOf(0))
	}
	if !d.sel.Collapsed() {
		d.deleteSelection()
	}

	p := d.sel.Head
	ci := d.indexOf(p.CellID)
	if ci < 0 {
		return fmt.Errorf("%w: unknown cell %s", ErrInvalidPosition, p.CellID)
	}
	b := d.root.Children[ci]
	leaf := leaves(b.Children)[p.Leaf]

	if isTextLeaf(leaf) {
		setSpans(leaf, insertAt(getSpans(leaf), p.Offset, text))
		p.Offset += utf8.RuneCountInString(text)
	} else {
		para := lexical.NewParagraph(lexical.NewText(text, 0))
		b.Children, _ = insertAfterLeaf(b.Children, leaf, para)
		p = Position{CellID: p.CellID, Leaf: p.Leaf + 1, Offset: utf8.RuneCountInString(text)}
	}
	d.sel = collapsed(p)
	d.touch(b)
	d.emit(OriginUser, b.Cell.ID)
	return nil
}

// DeleteSelection removes the selected range. A range across cells merges
// the first and last cell and removes the cells in between.
func (d *Document) DeleteSelection() bool {
	if d.sel.Collapsed() || d.Len() == 0 {
		return false
	}
	ids := d.deleteSelection()
	d.emit(OriginUser, ids...)
	return true
}

func (d *Document) deleteSelection() []string {
	start, end := d.ordered()
	si, ei := d.indexOf(start.CellID), d.indexOf(end.CellID)
	first := d.root.Children[si]
	ids := []string{first.Cell.ID}

	endLeaf := end.Leaf
	if ei != si {
		endLeaf += len(leaves(first.Children))
		for ci := si + 1; ci < ei; ci++ {
			endLeaf += len(leaves(d.root.Children[ci].Children))
		}
		for ci := si + 1; ci <= ei; ci++ {
			b := d.root.Children[ci]
			first.Children = append(first.Children, b.Children...)
			ids = append(ids, b.Cell.ID)
		}
		d.removeRange(si+1, ei+1)
	}

	ls := leaves(first.Children)
	sl, el := ls[start.Leaf], ls[endLeaf]
	if sl == el {
		setSpans(sl, deleteRange(getSpans(sl), start.Offset, end.Offset))
	} else {
		head, _ := cut(getSpans(sl), start.Offset)
		_, tail := cut(getSpans(el), end.Offset)
		for k := endLeaf - 1; k > start.Leaf; k-- {
			first.Children = removeLeaf(first.Children, ls[k])
		}
		switch {
		case isTextLeaf(sl) && isTextLeaf(el):
			setSpans(sl, append(head, tail...))
			first.Children = removeLeaf(first.Children, el)
		case isTextLeaf(sl):
			setSpans(sl, head)
		case isTextLeaf(el):
			first.Children = removeLeaf(first.Children, sl)
			setSpans(el, tail)
		default:
			first.Children = removeLeaf(first.Children, sl)
		}
	}

	first.Children = ensureBlocks(first.Children)
	d.touch(first)
	d.sel = collapsed(start)
	d.fixSelection(si)
	return ids
}
