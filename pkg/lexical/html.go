package lexical

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlReader converts sanitized clipboard HTML into blocks. Text at block
// level is gathered into paragraphs.
type htmlReader struct {
	sanitizer *Sanitizer
	blocks    []*Node
	pending   []*Node
}

func (r *htmlReader) flush() {
	run := splitImages(collapse(r.pending))
	r.blocks = append(r.blocks, run...)
	r.pending = nil
}

func (r *htmlReader) walkBlock(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.pending = append(r.pending, NewText(n.Data, 0))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			r.walkBlock(c)
		}
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		r.flush()
		level := int(n.Data[1] - '0')
		inlines := collapse(r.walkInlines(n, 0))
		if len(inlines) > 0 {
			r.blocks = append(r.blocks, NewHeading(level, inlines...))
		}

	case atom.Ul, atom.Ol:
		r.flush()
		if list := r.handleList(n); len(list.Children) > 0 {
			r.blocks = append(r.blocks, list)
		}

	case atom.Pre:
		r.flush()
		r.blocks = append(r.blocks, NewCode(codeLanguage(n), strings.TrimRight(textContent(n), "\n")))

	case atom.Blockquote:
		r.flush()
		inner := &htmlReader{sanitizer: r.sanitizer}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inner.walkBlock(c)
		}
		inner.flush()
		if len(inner.blocks) > 0 {
			r.blocks = append(r.blocks, &Node{Type: TypeQuote, Version: 1, Children: inner.blocks})
		}

	case atom.Hr:
		r.flush()
		r.blocks = append(r.blocks, &Node{Type: TypeHorizontalRule, Version: 1})

	case atom.Br:
		r.pending = append(r.pending, NewText("\n", 0))

	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main,
		atom.Table, atom.Tr, atom.Li, atom.Dl, atom.Dt, atom.Dd:
		r.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			r.walkBlock(c)
		}
		r.flush()

	default:
		r.pending = append(r.pending, r.walkInline(n, 0)...)
	}
}

func (r *htmlReader) handleList(n *html.Node) *Node {
	list := NewList(ListBullet, 0)
	if n.DataAtom == atom.Ol {
		list.ListType = ListNumber
		if s, err := strconv.Atoi(attr(n, "start")); err == nil && s > 1 {
			list.Start = s
		}
	}

	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		item := NewListItem()
		var inlines []*Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				item.Children = append(item.Children, collapse(inlines)...)
				inlines = nil
				if nested := r.handleList(c); len(nested.Children) > 0 {
					item.Children = append(item.Children, nested)
				}
				continue
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Input && attr(c, "type") == "checkbox" {
				list.ListType = ListCheck
				_, item.Checked = attrOK(c, "checked")
				continue
			}
			inlines = append(inlines, r.walkInline(c, 0)...)
		}
		item.Children = append(item.Children, collapse(inlines)...)
		list.Children = append(list.Children, item)
	}
	return list
}

func (r *htmlReader) walkInlines(n *html.Node, format int) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, r.walkInline(c, format)...)
	}
	return out
}

func (r *htmlReader) walkInline(n *html.Node, format int) []*Node {
	if n.Type == html.TextNode {
		return []*Node{NewText(n.Data, format)}
	}
	if n.Type != html.ElementNode {
		return r.walkInlines(n, format)
	}

	switch n.DataAtom {
	case atom.B, atom.Strong:
		return r.walkInlines(n, format|FormatBold)
	case atom.I, atom.Em:
		return r.walkInlines(n, format|FormatItalic)
	case atom.S, atom.Del, atom.Strike:
		return r.walkInlines(n, format|FormatStrikethrough)
	case atom.Code:
		return []*Node{NewText(textContent(n), format|FormatCode)}
	case atom.Br:
		return []*Node{NewText("\n", format)}
	case atom.A:
		children := r.walkInlines(n, format)
		if url, ok := r.sanitizer.URL(attr(n, "href")); ok {
			return []*Node{NewLink(url, mergeText(children)...)}
		}
		return children
	case atom.Img:
		if src, ok := r.sanitizer.URL(attr(n, "src")); ok {
			return []*Node{NewImage(src, attr(n, "alt"))}
		}
		return nil
	case atom.Span, atom.P, atom.Div:
		return r.walkInlines(n, format|ParseStyle(attr(n, "style")).Format())
	default:
		return r.walkInlines(n, format)
	}
}

// collapse folds HTML whitespace the way a browser would render it and trims
// the edges of the run.
func collapse(nodes []*Node) []*Node {
	var out []*Node
	prevSpace := true
	for _, n := range nodes {
		if n.Type != TypeText || n.Format&FormatCode != 0 {
			out = append(out, n)
			prevSpace = false
			continue
		}
		var sb strings.Builder
		for _, r := range n.Text {
			switch {
			case r == '\n' && n.Text == "\n":
				sb.WriteRune('\n')
				prevSpace = true
			case r == ' ' || r == '\t' || r == '\n' || r == '\r':
				if !prevSpace {
					sb.WriteRune(' ')
				}
				prevSpace = true
			default:
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if sb.Len() > 0 {
			out = append(out, NewText(sb.String(), n.Format))
		}
	}
	out = mergeText(out)
	if k := len(out); k > 0 && out[k-1].Type == TypeText {
		out[k-1].Text = strings.TrimRight(out[k-1].Text, " ")
	}
	if len(out) > 0 && out[0].Type == TypeText {
		out[0].Text = strings.TrimLeft(out[0].Text, " ")
	}
	return mergeText(out)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func codeLanguage(pre *html.Node) string {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			return strings.TrimPrefix(attr(c, "class"), "language-")
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
