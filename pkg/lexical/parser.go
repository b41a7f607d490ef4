package lexical

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Parser handles Markdown to block tree conversion
type Parser struct {
	md        goldmark.Markdown
	sanitizer *Sanitizer
}

// NewParser creates a new parser instance
func NewParser(sanitizer *Sanitizer) *Parser {
	return &Parser{
		md:        goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.TaskList)),
		sanitizer: sanitizer,
	}
}

// Parse converts markdown into a list of blocks.
func (p *Parser) Parse(markdown string) []*Node {
	source := []byte(markdown)
	doc := p.md.Parser().Parse(text.NewReader(source))

	var blocks []*Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = append(blocks, p.walkBlock(n, source)...)
	}
	return blocks
}

func (p *Parser) walkBlock(node ast.Node, source []byte) []*Node {
	switch n := node.(type) {
	case *ast.Heading:
		return []*Node{NewHeading(n.Level, p.walkInlines(n, source, 0)...)}

	case *ast.Paragraph, *ast.TextBlock:
		return splitImages(p.walkInlines(n, source, 0))

	case *ast.List:
		return []*Node{p.handleList(n, source)}

	case *ast.FencedCodeBlock:
		return []*Node{NewCode(string(n.Language(source)), linesText(n.Lines(), source))}

	case *ast.CodeBlock:
		return []*Node{NewCode("", linesText(n.Lines(), source))}

	case *ast.Blockquote:
		quote := &Node{Type: TypeQuote, Version: 1}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			quote.Children = append(quote.Children, p.walkBlock(c, source)...)
		}
		if len(quote.Children) == 0 {
			return nil
		}
		return []*Node{quote}

	case *ast.ThematicBreak:
		return []*Node{{Type: TypeHorizontalRule, Version: 1}}

	case *ast.HTMLBlock:
		raw := linesText(n.Lines(), source)
		if n.HasClosure() {
			raw += string(n.ClosureLine.Value(source))
		}
		// Raw HTML never becomes markup; only its text survives.
		plain := strings.TrimSpace(p.sanitizer.StripTags(raw))
		if plain == "" {
			return nil
		}
		return []*Node{NewParagraph(NewText(plain, 0))}

	default:
		var out []*Node
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, p.walkBlock(c, source)...)
		}
		return out
	}
}

func (p *Parser) handleList(list *ast.List, source []byte) *Node {
	listType := ListBullet
	start := 0
	if list.IsOrdered() {
		listType = ListNumber
		start = list.Start
		if start == 1 {
			start = 0
		}
	}
	out := NewList(listType, start)

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		li := NewListItem()
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch child := c.(type) {
			case *ast.List:
				li.Children = append(li.Children, p.handleList(child, source))
			case *ast.Paragraph, *ast.TextBlock:
				if box, ok := child.FirstChild().(*east.TaskCheckBox); ok {
					out.ListType = ListCheck
					li.Checked = box.IsChecked
				}
				inlines := p.walkInlines(child, source, 0)
				if len(li.Children) > 0 && len(inlines) > 0 {
					li.Children = append(li.Children, NewText("\n", 0))
				}
				li.Children = append(li.Children, inlines...)
			default:
				// Other blocks inside an item are flattened to their text.
				plain := PlainText(p.walkBlock(child, source))
				if plain != "" {
					li.Children = append(li.Children, NewText(plain, 0))
				}
			}
		}
		if out.ListType == ListCheck && len(li.Children) > 0 && li.Children[0].Type == TypeText {
			li.Children[0].Text = strings.TrimLeft(li.Children[0].Text, " ")
		}
		li.Children = mergeText(li.Children)
		out.Children = append(out.Children, li)
	}
	return out
}

func (p *Parser) walkInlines(parent ast.Node, source []byte, format int) []*Node {
	var out []*Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, p.walkInline(c, source, format)...)
	}
	return mergeText(out)
}

func (p *Parser) walkInline(node ast.Node, source []byte, format int) []*Node {
	switch n := node.(type) {
	case *ast.Text:
		out := []*Node{NewText(unescape(string(n.Segment.Value(source))), format)}
		if n.SoftLineBreak() || n.HardLineBreak() {
			out = append(out, NewText("\n", format))
		}
		return out

	case *ast.String:
		return []*Node{NewText(string(n.Value), format)}

	case *ast.Emphasis:
		bit := FormatItalic
		if n.Level >= 2 {
			bit = FormatBold
		}
		return p.walkInlines(n, source, format|bit)

	case *east.Strikethrough:
		return p.walkInlines(n, source, format|FormatStrikethrough)

	case *ast.CodeSpan:
		var sb strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(source))
			case *ast.String:
				sb.Write(t.Value)
			}
		}
		return []*Node{NewText(sb.String(), format|FormatCode)}

	case *ast.Link:
		children := p.walkInlines(n, source, format)
		url, ok := p.sanitizer.URL(string(n.Destination))
		if !ok {
			return children
		}
		return []*Node{NewLink(url, children...)}

	case *ast.AutoLink:
		label := string(n.Label(source))
		url, ok := p.sanitizer.URL(string(n.URL(source)))
		if !ok {
			return []*Node{NewText(label, format)}
		}
		return []*Node{NewLink(url, NewText(label, format))}

	case *ast.Image:
		alt := PlainText(p.walkInlines(n, source, 0))
		src, ok := p.sanitizer.URL(string(n.Destination))
		if !ok {
			return []*Node{NewText(alt, format)}
		}
		return []*Node{NewImage(src, alt)}

	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			sb.Write(seg.Value(source))
		}
		return []*Node{NewText(p.sanitizer.StripTags(sb.String()), format)}

	case *east.TaskCheckBox:
		return nil

	default:
		return p.walkInlines(node, source, format)
	}
}

// splitImages turns a run of inline nodes into paragraphs, lifting images to
// their own blocks.
func splitImages(inlines []*Node) []*Node {
	var blocks []*Node
	var run []*Node
	flush := func() {
		run = trimRun(run)
		if len(run) > 0 {
			blocks = append(blocks, NewParagraph(run...))
		}
		run = nil
	}
	for _, n := range inlines {
		if n.Type == TypeImage {
			flush()
			blocks = append(blocks, n)
			continue
		}
		run = append(run, n)
	}
	flush()
	return blocks
}

// trimRun drops surrounding newlines left behind when images are lifted out.
func trimRun(run []*Node) []*Node {
	run = mergeText(run)
	if len(run) > 0 && run[0].Type == TypeText {
		run[0].Text = strings.TrimLeft(run[0].Text, "\n")
	}
	if k := len(run); k > 0 && run[k-1].Type == TypeText {
		run[k-1].Text = strings.TrimRight(run[k-1].Text, "\n")
	}
	return mergeText(run)
}

func linesText(lines *text.Segments, source []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// unescape removes markdown backslash escapes in front of ASCII punctuation
// and resolves character references that were not escaped.
func unescape(s string) string {
	if !strings.ContainsAny(s, `\&`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && isASCIIPunct(s[i+1]):
			i++
		case s[i] == '&':
			if ref, n := entityAt(s[i:]); n > 0 {
				sb.WriteString(ref)
				i += n - 1
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// entityAt decodes a character reference at the start of s and reports how
// many bytes it spans. Zero means s does not start with one.
func entityAt(s string) (string, int) {
	end := strings.IndexByte(s, ';')
	if end < 2 || end > 32 {
		return "", 0
	}
	ref := s[:end+1]
	if strings.ContainsAny(ref[1:end], " &\n") {
		return "", 0
	}
	decoded := html.UnescapeString(ref)
	if decoded == ref {
		return "", 0
	}
	return decoded, len(ref)
}

func isASCIIPunct(b byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", b) >= 0
}
