package document

import (
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
)

// Fragment is clipboard content. A fragment copied across several cells
// holds one cell boundary node per cell; otherwise it holds plain blocks.
type Fragment struct {
	Nodes []*lexical.Node `json:"nodes"`
}

// Boundaries counts the cell boundary nodes at the top of the fragment.
func (f Fragment) Boundaries() int {
	n := 0
	for _, node := range f.Nodes {
		if node != nil && node.Type == lexical.TypeCell {
			n++
		}
	}
	return n
}

func (f Fragment) Empty() bool {
	return len(f.Nodes) == 0
}

// Copy returns the selected range. A single-cell range yields blocks; a
// range across cells yields one boundary per touched cell.
func (d *Document) Copy() Fragment {
	if d.sel.Collapsed() || d.Len() == 0 {
		return Fragment{}
	}
	start, end := d.ordered()
	si, ei := d.indexOf(start.CellID), d.indexOf(end.CellID)

	if si == ei {
		return Fragment{Nodes: rangeBlocks(d.root.Children[si].Children, start, end)}
	}

	var nodes []*lexical.Node
	for ci := si; ci <= ei; ci++ {
		b := d.root.Children[ci]
		from, to := d.startOf(ci), d.endOf(ci)
		if ci == si {
			from = start
		}
		if ci == ei {
			to = end
		}
		nodes = append(nodes, lexical.NewCell(*b.Cell, rangeBlocks(b.Children, from, to)...))
	}
	return Fragment{Nodes: nodes}
}

// rangeBlocks returns a trimmed copy of blocks between two positions of the
// same cell.
func rangeBlocks(blocks []*lexical.Node, from, to Position) []*lexical.Node {
	clone := lexical.CloneAll(blocks)
	ls := leaves(clone)

	first, last := ls[from.Leaf], ls[to.Leaf]
	if first == last {
		setSpans(first, slice(getSpans(first), from.Offset, to.Offset))
	} else {
		head, _ := cut(getSpans(last), to.Offset)
		setSpans(last, head)
		_, tail := cut(getSpans(first), from.Offset)
		setSpans(first, tail)
	}

	lastKept := to.Leaf
	if !isTextLeaf(last) && to.Offset == 0 && to.Leaf > from.Leaf {
		lastKept--
	}
	for k := len(ls) - 1; k > lastKept; k-- {
		clone = removeLeaf(clone, ls[k])
	}
	for k := from.Leaf - 1; k >= 0; k-- {
		clone = removeLeaf(clone, ls[k])
	}
	return clone
}

// Paste inserts a fragment at the caret. Every cell boundary in the
// fragment becomes a new cell with a freshly minted id, inserted after the
// caret's cell; the new ids are returned. Plain blocks are inserted into the
// caret's cell and no ids are returned.
func (d *Document) Paste(f Fragment) ([]string, error) {
	if f.Empty() {
		return []string{}, nil
	}
	if !d.sel.Collapsed() && d.Len() > 0 {
		d.deleteSelection()
	}

	if f.Boundaries() > 0 {
		return d.pasteCells(f.Nodes)
	}

	blocks := d.codec.NormalizeBlocks(f.Nodes)
	if len(blocks) == 0 {
		return []string{}, nil
	}
	if d.Len() == 0 {
		cell := notebook.Cell{Kind: notebook.KindUserText, Content: d.codec.Render(blocks)}
		return d.insertCells(OriginUser, "", []notebook.Cell{cell})
	}
	d.pasteBlocks(blocks)
	return []string{}, nil
}

// PasteHTML inserts foreign rich content. It is read inside a disposable
// single-cell wrapper, so only its blocks can reach the document.
func (d *Document) PasteHTML(raw string) ([]string, error) {
	blocks, err := d.codec.ParseHTML(raw)
	if err != nil {
		return nil, err
	}
	return d.Paste(Fragment{Nodes: blocks})
}

func (d *Document) PasteMarkdown(md string) ([]string, error) {
	blocks, err := d.codec.Parse(md)
	if err != nil {
		return nil, err
	}
	return d.Paste(Fragment{Nodes: blocks})
}

// PasteLexical inserts an editor clipboard payload.
func (d *Document) PasteLexical(data []byte) ([]string, error) {
	blocks, err := d.codec.ParseLexical(data)
	if err != nil {
		return nil, err
	}
	return d.Paste(Fragment{Nodes: blocks})
}

func (d *Document) pasteCells(nodes []*lexical.Node) ([]string, error) {
	var cells []notebook.Cell
	var loose []*lexical.Node
	flushLoose := func() {
		if blocks := d.codec.NormalizeBlocks(loose); len(blocks) > 0 {
			cells = append(cells, notebook.Cell{Kind: notebook.KindUserText, Content: d.codec.Render(blocks)})
		}
		loose = nil
	}

	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Type != lexical.TypeCell {
			loose = append(loose, n)
			continue
		}
		flushLoose()
		meta := notebook.Cell{Kind: notebook.KindUserText}
		if n.Cell != nil {
			meta = n.Cell.Clone()
		}
		if !meta.Kind.Valid() {
			meta.Kind = notebook.KindUserText
		}
		// Identity never survives a paste, and neither does the block name
		// other cells reference it by.
		if meta.ProcessingConfig != nil {
			meta.ProcessingConfig.BlockName = ""
		}
		meta.ID = d.mintID()
		for d.pendingID(cells, meta.ID) {
			meta.ID = d.mintID()
		}
		meta.CreatedAt = d.now()
		meta.Content = d.codec.Render(d.codec.NormalizeBlocks(n.Children))
		cells = append(cells, meta)
	}
	flushLoose()

	after := ""
	if ci := d.indexOf(d.sel.Head.CellID); ci >= 0 {
		after = d.root.Children[ci].Cell.ID
	}
	ids, err := d.insertCells(OriginUser, after, cells)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		d.sel = collapsed(d.endOf(d.indexOf(ids[len(ids)-1])))
	}
	return ids, nil
}

func (d *Document) pendingID(cells []notebook.Cell, id string) bool {
	for _, c := range cells {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (d *Document) pasteBlocks(blocks []*lexical.Node) {
	ci, b, ls, ok := d.caret()
	if !ok {
		ci = 0
		b = d.root.Children[0]
		ls = leaves(b.Children)
		d.sel = collapsed(d.startOf(0))
	}
	p := d.sel.Head
	leaf := ls[p.Leaf]

	if len(blocks) == 1 && blocks[0].Type == lexical.TypeParagraph && isTextLeaf(leaf) {
		inline := flatten(blocks[0].Children)
		left, right := cut(getSpans(leaf), p.Offset)
		setSpans(leaf, append(append(left, inline...), right...))
		p.Offset += spansLen(inline)
	} else {
		if d.cellEmpty(ci) {
			b.Children = blocks
		} else {
			top := topLevelIndex(b.Children, leaf)
			b.Children = insertNodes(b.Children, top+1, blocks...)
		}
		p = d.endOf(ci)
		if pasted := leaves(blocks); len(pasted) > 0 {
			lastLeaf := pasted[len(pasted)-1]
			for i, l := range leaves(b.Children) {
				if l == lastLeaf {
					p = Position{CellID: b.Cell.ID, Leaf: i, Offset: leafLen(l)}
				}
			}
		}
	}

	d.sel = collapsed(p)
	d.touch(b)
	d.fixSelection(ci)
	d.emit(OriginUser, b.Cell.ID)
}
