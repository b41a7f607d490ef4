package lexical

import (
	"strings"

	"ai-notebook-be/pkg/notebook"
)

// Node types. Blocks live directly under a cell boundary; inline nodes live
// under paragraphs, headings, list items and links.
const (
	TypeRoot           = "root"
	TypeCell           = "cell"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeList           = "list"
	TypeListItem       = "listitem"
	TypeCode           = "code"
	TypeImage          = "image"
	TypeQuote          = "quote"
	TypeHorizontalRule = "horizontalrule"
	TypeText           = "text"
	TypeLink           = "link"
)

// List types
const (
	ListBullet = "bullet"
	ListNumber = "number"
	ListCheck  = "check"
)

// Constants for Text Format Bitmask
const (
	FormatBold          = 1
	FormatItalic        = 2
	FormatStrikethrough = 4
	FormatCode          = 16
)

// LexicalRoot represents the top-level structure
type LexicalRoot struct {
	Root *Node `json:"root"`
}

// Node represents any node in the document tree.
type Node struct {
	Type     string  `json:"type"`
	Version  int     `json:"version"`
	Children []*Node `json:"children,omitempty"`

	// Text specific
	Text   string `json:"text,omitempty"`
	Format int    `json:"format,omitempty"`

	// Heading specific (h1..h6)
	Tag string `json:"tag,omitempty"`

	// Link specific
	URL string `json:"url,omitempty"`

	// List specific
	ListType string `json:"listType,omitempty"`
	Start    int    `json:"start,omitempty"`

	// ListItem specific
	Checked bool `json:"checked,omitempty"`

	// Code specific
	Language string `json:"language,omitempty"`

	// Image specific
	Src     string `json:"src,omitempty"`
	AltText string `json:"altText,omitempty"`

	// Cell boundary attributes. Content is always empty here; the body is
	// the boundary's children.
	Cell *notebook.Cell `json:"cell,omitempty"`
}

func NewText(text string, format int) *Node {
	return &Node{Type: TypeText, Version: 1, Text: text, Format: format}
}

func NewParagraph(children ...*Node) *Node {
	return &Node{Type: TypeParagraph, Version: 1, Children: children}
}

// NewHeading builds a heading node; level is clamped to 1..6.
func NewHeading(level int, children ...*Node) *Node {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return &Node{Type: TypeHeading, Version: 1, Tag: "h" + string(rune('0'+level)), Children: children}
}

func NewList(listType string, start int, items ...*Node) *Node {
	return &Node{Type: TypeList, Version: 1, ListType: listType, Start: start, Children: items}
}

func NewListItem(children ...*Node) *Node {
	return &Node{Type: TypeListItem, Version: 1, Children: children}
}

func NewCode(language, code string) *Node {
	n := &Node{Type: TypeCode, Version: 1, Language: language}
	if code != "" {
		n.Children = []*Node{NewText(code, 0)}
	}
	return n
}

func NewImage(src, alt string) *Node {
	return &Node{Type: TypeImage, Version: 1, Src: src, AltText: alt}
}

func NewLink(url string, children ...*Node) *Node {
	return &Node{Type: TypeLink, Version: 1, URL: url, Children: children}
}

// NewCell wraps blocks in a cell boundary carrying meta (content cleared).
func NewCell(meta notebook.Cell, blocks ...*Node) *Node {
	meta = meta.Clone()
	meta.Content = ""
	return &Node{Type: TypeCell, Version: 1, Cell: &meta, Children: blocks}
}

// HeadingLevel returns the numeric level of a heading node, 0 otherwise.
func (n *Node) HeadingLevel() int {
	if n.Type != TypeHeading || len(n.Tag) != 2 {
		return 0
	}
	l := int(n.Tag[1] - '0')
	if l < 1 || l > 6 {
		return 0
	}
	return l
}

// IsBlock reports whether the node may appear directly under a cell boundary.
func (n *Node) IsBlock() bool {
	switch n.Type {
	case TypeParagraph, TypeHeading, TypeList, TypeCode, TypeImage, TypeQuote, TypeHorizontalRule:
		return true
	default:
		return false
	}
}

// IsInline reports whether the node is inline content.
func (n *Node) IsInline() bool {
	return n.Type == TypeText || n.Type == TypeLink
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Cell != nil {
		c := n.Cell.Clone()
		out.Cell = &c
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// CloneAll deep-copies a node slice.
func CloneAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// PlainText concatenates the text of the subtree. Blocks are separated by
// newlines.
func PlainText(nodes []*Node) string {
	var sb strings.Builder
	for i, n := range nodes {
		if i > 0 && n.IsBlock() {
			sb.WriteString("\n")
		}
		writePlain(n, &sb)
	}
	return sb.String()
}

func writePlain(n *Node, sb *strings.Builder) {
	switch n.Type {
	case TypeText:
		sb.WriteString(n.Text)
	case TypeImage:
		sb.WriteString(n.AltText)
	case TypeList:
		for i, item := range n.Children {
			if i > 0 {
				sb.WriteString("\n")
			}
			writePlain(item, sb)
		}
	default:
		for i, c := range n.Children {
			if i > 0 && c.IsBlock() {
				sb.WriteString("\n")
			}
			writePlain(c, sb)
		}
	}
}
