// Package lexical converts between portable markdown and the block tree
// used inside the document.
package lexical

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-notebook-be/pkg/notebook"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Codec is the single entry point for content conversion. It is safe for
// concurrent use.
type Codec struct {
	parser    *Parser
	writer    writer
	sanitizer *Sanitizer
}

func NewCodec() *Codec {
	sanitizer := NewSanitizer()
	return &Codec{
		parser:    NewParser(sanitizer),
		sanitizer: sanitizer,
	}
}

// Parse converts portable content into blocks. Content stored as a Lexical
// editor state is decoded instead of being read as markdown. Text that only
// looks like one is read as markdown.
func (c *Codec) Parse(content string) ([]*Node, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, `{"root":`) {
		if blocks, err := c.ParseLexical([]byte(trimmed)); err == nil {
			return blocks, nil
		}
	}
	return c.parser.Parse(content), nil
}

// Render converts blocks into canonical markdown.
func (c *Codec) Render(blocks []*Node) string {
	return c.writer.render(blocks)
}

// Normalize returns the canonical form of content.
func (c *Codec) Normalize(content string) (string, error) {
	blocks, err := c.Parse(content)
	if err != nil {
		return "", err
	}
	return c.Render(blocks), nil
}

// PlainText returns the text projection of blocks.
func (c *Codec) PlainText(blocks []*Node) string {
	return PlainText(blocks)
}

// ParseHTML converts foreign clipboard HTML into blocks. The content is
// read inside a disposable single-cell wrapper and only the wrapper's inner
// blocks are returned, so the input can never contribute a cell boundary.
func (c *Codec) ParseHTML(raw string) ([]*Node, error) {
	clean := c.sanitizer.Clipboard(raw)
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(clean), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clipboard html: %w", err)
	}

	reader := &htmlReader{sanitizer: c.sanitizer}
	for _, n := range nodes {
		reader.walkBlock(n)
	}
	reader.flush()

	wrapper := NewCell(scratchCell(), reader.blocks...)
	return innerBlocks(wrapper), nil
}

// ParseLexical decodes a Lexical editor state ({"root": ...}) or a Lexical
// clipboard payload ({"nodes": [...]}) into blocks. Unknown node types are
// flattened into their children; nested cell boundaries are dropped.
func (c *Codec) ParseLexical(data []byte) ([]*Node, error) {
	var payload struct {
		Root  *Node   `json:"root"`
		Nodes []*Node `json:"nodes"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse lexical json: %w", err)
	}

	var nodes []*Node
	switch {
	case payload.Root != nil:
		nodes = payload.Root.Children
	default:
		nodes = payload.Nodes
	}

	wrapper := NewCell(scratchCell(), c.NormalizeBlocks(nodes)...)
	return innerBlocks(wrapper), nil
}

// NormalizeBlocks rebuilds an untrusted node list into valid blocks: inline
// runs are wrapped in paragraphs, unknown containers are flattened and URLs
// are re-validated. Lists without items and empty quotes are dropped.
func (c *Codec) NormalizeBlocks(nodes []*Node) []*Node {
	var out []*Node
	var pending []*Node
	flush := func() {
		if run := mergeText(pending); len(run) > 0 {
			out = append(out, NewParagraph(run...))
		}
		pending = nil
	}

	for _, n := range nodes {
		if n == nil {
			continue
		}
		switch {
		case n.Type == TypeCell || n.Type == TypeRoot:
			flush()
			out = append(out, c.NormalizeBlocks(n.Children)...)
		case n.IsBlock():
			flush()
			if b := c.normalizeBlock(n); b != nil {
				out = append(out, b)
			}
		case n.IsInline():
			pending = append(pending, c.normalizeInlines([]*Node{n})...)
		default:
			flush()
			out = append(out, c.NormalizeBlocks(n.Children)...)
		}
	}
	flush()
	return out
}

// normalizeBlock returns nil for a container that holds nothing.
func (c *Codec) normalizeBlock(n *Node) *Node {
	switch n.Type {
	case TypeHeading:
		return NewHeading(n.HeadingLevel(), c.normalizeInlines(n.Children)...)
	case TypeList:
		list := NewList(n.ListType, n.Start)
		if list.ListType != ListNumber && list.ListType != ListCheck {
			list.ListType = ListBullet
		}
		for _, item := range n.Children {
			if item.Type != TypeListItem {
				continue
			}
			li := NewListItem()
			li.Checked = item.Checked
			for _, ch := range item.Children {
				if ch.Type == TypeList {
					if nested := c.normalizeBlock(ch); nested != nil {
						li.Children = append(li.Children, nested)
					}
				} else {
					li.Children = append(li.Children, c.normalizeInlines([]*Node{ch})...)
				}
			}
			li.Children = mergeText(li.Children)
			list.Children = append(list.Children, li)
		}
		if len(list.Children) == 0 {
			return nil
		}
		return list
	case TypeCode:
		return NewCode(n.Language, PlainText(n.Children))
	case TypeImage:
		src, ok := c.sanitizer.URL(n.Src)
		if !ok {
			return NewParagraph(NewText(n.AltText, 0))
		}
		return NewImage(src, n.AltText)
	case TypeQuote:
		children := c.NormalizeBlocks(n.Children)
		if len(children) == 0 {
			return nil
		}
		return &Node{Type: TypeQuote, Version: 1, Children: children}
	case TypeHorizontalRule:
		return &Node{Type: TypeHorizontalRule, Version: 1}
	default:
		return NewParagraph(c.normalizeInlines(n.Children)...)
	}
}

func (c *Codec) normalizeInlines(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		switch n.Type {
		case TypeText:
			mask := FormatBold | FormatItalic | FormatStrikethrough | FormatCode
			out = append(out, NewText(n.Text, n.Format&mask))
		case TypeLink:
			children := c.normalizeInlines(n.Children)
			if url, ok := c.sanitizer.URL(n.URL); ok {
				out = append(out, NewLink(url, mergeText(children)...))
			} else {
				out = append(out, children...)
			}
		case "linebreak":
			out = append(out, NewText("\n", 0))
		default:
			out = append(out, c.normalizeInlines(n.Children)...)
		}
	}
	return mergeText(out)
}

func scratchCell() notebook.Cell {
	return notebook.Cell{Kind: notebook.KindUserText}
}

func innerBlocks(wrapper *Node) []*Node {
	if len(wrapper.Children) == 0 {
		return nil
	}
	return wrapper.Children
}
