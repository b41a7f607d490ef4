package lexical

import (
	"fmt"
	"strings"
)

// writer renders a block tree as canonical markdown: blocks separated by one
// blank line, tight lists, fenced code, no trailing newline.
type writer struct{}

func (w writer) render(blocks []*Node) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		s := w.block(b)
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

func (w writer) block(node *Node) string {
	switch node.Type {
	case TypeParagraph:
		return w.inline(node.Children)

	case TypeHeading:
		text := strings.ReplaceAll(w.inline(node.Children), "\n", " ")
		if text == "" {
			return ""
		}
		return strings.Repeat("#", node.HeadingLevel()) + " " + text

	case TypeList:
		var sb strings.Builder
		w.list(node, &sb, "")
		return strings.TrimRight(sb.String(), "\n")

	case TypeCode:
		return w.code(node)

	case TypeImage:
		return w.image(node)

	case TypeQuote:
		inner := w.render(node.Children)
		if inner == "" {
			return ""
		}
		lines := strings.Split(inner, "\n")
		for i, l := range lines {
			if l == "" {
				lines[i] = ">"
			} else {
				lines[i] = "> " + l
			}
		}
		return strings.Join(lines, "\n")

	case TypeHorizontalRule:
		return "---"

	case TypeCell:
		return w.render(node.Children)

	default:
		// Inline content that slipped to block level renders as a paragraph.
		if node.IsInline() {
			return w.inline([]*Node{node})
		}
		return w.render(node.Children)
	}
}

func (w writer) list(node *Node, sb *strings.Builder, indent string) {
	index := 1
	if node.Start > 0 {
		index = node.Start
	}

	for _, item := range node.Children {
		if item.Type != TypeListItem {
			continue
		}

		var marker, pad string
		switch node.ListType {
		case ListNumber:
			marker = fmt.Sprintf("%d. ", index)
			pad = strings.Repeat(" ", len(marker))
			index++
		case ListCheck:
			if item.Checked {
				marker = "- [x] "
			} else {
				marker = "- [ ] "
			}
			pad = "  "
		default:
			marker = "- "
			pad = "  "
		}

		var inlines []*Node
		var nested []*Node
		for _, c := range item.Children {
			if c.Type == TypeList {
				nested = append(nested, c)
			} else {
				inlines = append(inlines, c)
			}
		}

		text := w.inline(inlines)
		sb.WriteString(indent)
		sb.WriteString(marker)
		sb.WriteString(strings.ReplaceAll(text, "\n", "\n"+indent+pad))
		sb.WriteString("\n")

		for _, n := range nested {
			w.list(n, sb, indent+pad)
		}
	}
}

func (w writer) code(node *Node) string {
	code := PlainText(node.Children)
	fence := "```"
	if run := longestRun(code, '`'); run >= 3 {
		fence = strings.Repeat("`", run+1)
	}
	return fence + node.Language + "\n" + code + "\n" + fence
}

func (w writer) image(node *Node) string {
	return "![" + escapeText(node.AltText, false) + "](" + destination(node.Src) + ")"
}

// inline renders text and link runs. Formatting markers are kept off the
// surrounding whitespace so the output re-parses to the same runs.
func (w writer) inline(nodes []*Node) string {
	var sb strings.Builder
	lineStart := true
	for _, n := range mergeText(nodes) {
		switch n.Type {
		case TypeText:
			w.text(n, &sb, lineStart)
		case TypeLink:
			sb.WriteString("[")
			for _, c := range n.Children {
				if c.Type == TypeText {
					w.text(c, &sb, false)
				}
			}
			sb.WriteString("](" + destination(n.URL) + ")")
		case TypeImage:
			sb.WriteString(w.image(n))
		}
		s := sb.String()
		lineStart = len(s) == 0 || s[len(s)-1] == '\n'
	}
	return guardTrail(sb.String())
}

func (w writer) text(node *Node, sb *strings.Builder, lineStart bool) {
	if node.Text == "" {
		return
	}
	if node.Format == 0 {
		sb.WriteString(escapeText(node.Text, lineStart))
		return
	}

	// Format runs are rendered per line; markers never span a newline.
	lines := strings.Split(node.Text, "\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
			lineStart = true
		}
		core := strings.TrimSpace(line)
		if core == "" {
			sb.WriteString(line)
			continue
		}
		lead := line[:strings.Index(line, core)]
		trail := line[len(lead)+len(core):]

		var open, closing string
		if node.Format&FormatStrikethrough != 0 {
			open += "~~"
			closing = "~~" + closing
		}
		if node.Format&FormatBold != 0 {
			open += "**"
			closing = "**" + closing
		}
		if node.Format&FormatItalic != 0 {
			open += "*"
			closing = "*" + closing
		}

		if lineStart {
			lead = guardLead(lead)
		}
		if i < len(lines)-1 {
			trail = guardTrail(trail)
		}
		sb.WriteString(lead)
		sb.WriteString(open)
		if node.Format&FormatCode != 0 {
			sb.WriteString(codeSpan(core))
		} else {
			sb.WriteString(escapeText(core, lineStart && lead == "" && open == ""))
		}
		sb.WriteString(closing)
		sb.WriteString(trail)
	}
}

func codeSpan(s string) string {
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}
	ticks := strings.Repeat("`", longestRun(s, '`')+1)
	return ticks + " " + s + " " + ticks
}

func destination(url string) string {
	if strings.ContainsAny(url, " ()<>") {
		return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(url) + ">"
	}
	return url
}

// escapeText backslash-escapes markdown punctuation so the text re-parses as
// the same characters. Whitespace that block parsing would strip at either
// end of a line is written as a character reference.
func escapeText(s string, lineStart bool) string {
	var sb strings.Builder
	atStart := lineStart
	runes := []rune(s)
	for i, r := range runes {
		switch r {
		case '\\', '*', '_', '`', '[', ']', '<', '~', '&':
			sb.WriteRune('\\')
		case '#', '>', '-', '+', '=', '{':
			if atStart {
				sb.WriteRune('\\')
			}
		case '.', ')':
			if i > 0 && isDigitPrefix(runes[:i], atLineBegin(runes, i, lineStart)) {
				sb.WriteRune('\\')
			}
		case ' ', '\t':
			lineBegin := (i == 0 && lineStart) || (i > 0 && runes[i-1] == '\n')
			lineEnd := i+1 < len(runes) && runes[i+1] == '\n'
			if lineBegin || lineEnd {
				sb.WriteString(spaceRef(byte(r)))
				continue
			}
		}
		sb.WriteRune(r)
		if r == '\n' {
			atStart = true
		} else if r != ' ' || !atStart {
			atStart = false
		}
	}
	return sb.String()
}

func spaceRef(b byte) string {
	if b == '\t' {
		return "&#9;"
	}
	return "&#32;"
}

// guardLead and guardTrail protect the outer space of a run that sits at
// the edge of a line.
func guardLead(s string) string {
	if s == "" || (s[0] != ' ' && s[0] != '\t') {
		return s
	}
	return spaceRef(s[0]) + s[1:]
}

func guardTrail(s string) string {
	n := len(s) - 1
	if n < 0 || (s[n] != ' ' && s[n] != '\t') {
		return s
	}
	return s[:n] + spaceRef(s[n])
}

// atLineBegin reports whether the digit run ending at i starts a line.
func atLineBegin(runes []rune, i int, lineStart bool) bool {
	j := i - 1
	for j >= 0 && runes[j] >= '0' && runes[j] <= '9' {
		j--
	}
	for j >= 0 && runes[j] == ' ' {
		j--
	}
	if j < 0 {
		return lineStart
	}
	return runes[j] == '\n'
}

func isDigitPrefix(prefix []rune, atBegin bool) bool {
	if !atBegin {
		return false
	}
	last := prefix[len(prefix)-1]
	return last >= '0' && last <= '9'
}

func longestRun(s string, ch byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == ch {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// mergeText joins adjacent text runs with identical formatting and drops
// empty runs.
func mergeText(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == TypeText {
			if n.Text == "" {
				continue
			}
			if k := len(out); k > 0 && out[k-1].Type == TypeText && out[k-1].Format == n.Format {
				merged := *out[k-1]
				merged.Text += n.Text
				out[k-1] = &merged
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
