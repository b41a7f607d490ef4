package document

import (
	"ai-notebook-be/pkg/lexical"
)

// leaves returns the text-bearing blocks of a cell in document order:
// paragraphs, headings, code blocks, images, rules and every list item.
// Quotes and lists are containers and never leaves themselves.
func leaves(blocks []*lexical.Node) []*lexical.Node {
	var out []*lexical.Node
	var walk func(nodes []*lexical.Node)
	walk = func(nodes []*lexical.Node) {
		for _, n := range nodes {
			switch n.Type {
			case lexical.TypeQuote:
				walk(n.Children)
			case lexical.TypeList:
				for _, item := range n.Children {
					if item.Type != lexical.TypeListItem {
						continue
					}
					out = append(out, item)
					walk(nestedLists(item))
				}
			default:
				if n.IsBlock() {
					out = append(out, n)
				}
			}
		}
	}
	walk(blocks)
	return out
}

func nestedLists(item *lexical.Node) []*lexical.Node {
	var out []*lexical.Node
	for _, c := range item.Children {
		if c.Type == lexical.TypeList {
			out = append(out, c)
		}
	}
	return out
}

// isTextLeaf reports whether the caret can sit inside the leaf's text.
func isTextLeaf(n *lexical.Node) bool {
	return n.Type != lexical.TypeImage && n.Type != lexical.TypeHorizontalRule
}

func getSpans(n *lexical.Node) []span {
	switch n.Type {
	case lexical.TypeCode:
		return compact([]span{{text: lexical.PlainText(n.Children)}})
	case lexical.TypeImage, lexical.TypeHorizontalRule:
		return nil
	case lexical.TypeListItem:
		var inline []*lexical.Node
		for _, c := range n.Children {
			if c.Type != lexical.TypeList {
				inline = append(inline, c)
			}
		}
		return flatten(inline)
	default:
		return flatten(n.Children)
	}
}

func setSpans(n *lexical.Node, spans []span) {
	switch n.Type {
	case lexical.TypeCode:
		text := spansText(spans)
		n.Children = nil
		if text != "" {
			n.Children = []*lexical.Node{lexical.NewText(text, 0)}
		}
	case lexical.TypeImage, lexical.TypeHorizontalRule:
	case lexical.TypeListItem:
		n.Children = append(rebuild(spans), nestedLists(n)...)
	default:
		n.Children = rebuild(spans)
	}
}

func leafLen(n *lexical.Node) int {
	return spansLen(getSpans(n))
}

// removeLeaf detaches a leaf from the block list. A removed list item hands
// its nested items up to the parent list; lists and quotes left empty are
// dropped.
func removeLeaf(blocks []*lexical.Node, target *lexical.Node) []*lexical.Node {
	out := make([]*lexical.Node, 0, len(blocks))
	for _, n := range blocks {
		if n == target {
			continue
		}
		switch n.Type {
		case lexical.TypeQuote:
			n.Children = removeLeaf(n.Children, target)
			if len(n.Children) == 0 {
				continue
			}
		case lexical.TypeList:
			removeItem(n, target)
			if len(n.Children) == 0 {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func removeItem(list *lexical.Node, target *lexical.Node) {
	items := make([]*lexical.Node, 0, len(list.Children))
	for _, item := range list.Children {
		if item == target {
			for _, nested := range nestedLists(item) {
				items = append(items, nested.Children...)
			}
			continue
		}
		kept := item.Children[:0]
		for _, c := range item.Children {
			if c.Type == lexical.TypeList {
				removeItem(c, target)
				if len(c.Children) == 0 {
					continue
				}
			}
			kept = append(kept, c)
		}
		item.Children = kept
		items = append(items, item)
	}
	list.Children = items
}

// insertAfterLeaf places block right after the top-level position holding
// leaf. Inside a list the block must be a list item and becomes a sibling.
func insertAfterLeaf(blocks []*lexical.Node, leaf, block *lexical.Node) ([]*lexical.Node, bool) {
	for i, n := range blocks {
		if n == leaf {
			return insertNodes(blocks, i+1, block), true
		}
		switch n.Type {
		case lexical.TypeQuote:
			if children, ok := insertAfterLeaf(n.Children, leaf, block); ok {
				n.Children = children
				return blocks, true
			}
		case lexical.TypeList:
			if block.Type == lexical.TypeListItem && insertItemAfter(n, leaf, block) {
				return blocks, true
			}
			if containsNode(n, leaf) {
				return insertNodes(blocks, i+1, block), true
			}
		}
	}
	return blocks, false
}

func insertItemAfter(list, leaf, item *lexical.Node) bool {
	for i, it := range list.Children {
		if it == leaf {
			list.Children = insertNodes(list.Children, i+1, item)
			return true
		}
		for _, nested := range nestedLists(it) {
			if insertItemAfter(nested, leaf, item) {
				return true
			}
		}
	}
	return false
}

// topLevelIndex returns the index of the block in blocks containing leaf.
func topLevelIndex(blocks []*lexical.Node, leaf *lexical.Node) int {
	for i, n := range blocks {
		if containsNode(n, leaf) {
			return i
		}
	}
	return -1
}

func containsNode(root, target *lexical.Node) bool {
	if root == target {
		return true
	}
	for _, c := range root.Children {
		if containsNode(c, target) {
			return true
		}
	}
	return false
}

func insertNodes(nodes []*lexical.Node, i int, n ...*lexical.Node) []*lexical.Node {
	out := make([]*lexical.Node, 0, len(nodes)+len(n))
	out = append(out, nodes[:i]...)
	out = append(out, n...)
	return append(out, nodes[i:]...)
}

// ensureBlocks keeps a cell from ever being without a caret position.
func ensureBlocks(blocks []*lexical.Node) []*lexical.Node {
	if len(leaves(blocks)) == 0 {
		return []*lexical.Node{lexical.NewParagraph()}
	}
	return blocks
}
