package document

import (
	"unicode/utf8"

	"ai-notebook-be/pkg/lexical"
)

// span is one run of leaf text with uniform formatting. Links are carried as
// an attribute so edits never have to walk into link nodes.
type span struct {
	text   string
	format int
	url    string
}

func flatten(nodes []*lexical.Node) []span {
	var out []span
	for _, n := range nodes {
		switch n.Type {
		case lexical.TypeText:
			out = append(out, span{text: n.Text, format: n.Format})
		case lexical.TypeLink:
			for _, s := range flatten(n.Children) {
				s.url = n.URL
				out = append(out, s)
			}
		}
	}
	return compact(out)
}

func rebuild(spans []span) []*lexical.Node {
	var out []*lexical.Node
	var link *lexical.Node
	for _, s := range compact(spans) {
		text := lexical.NewText(s.text, s.format)
		if s.url == "" {
			link = nil
			out = append(out, text)
			continue
		}
		if link == nil || link.URL != s.url {
			link = lexical.NewLink(s.url)
			out = append(out, link)
		}
		link.Children = append(link.Children, text)
	}
	return out
}

// compact drops empty spans and joins neighbours with identical attributes.
func compact(spans []span) []span {
	out := make([]span, 0, len(spans))
	for _, s := range spans {
		if s.text == "" {
			continue
		}
		if k := len(out); k > 0 && out[k-1].format == s.format && out[k-1].url == s.url {
			out[k-1].text += s.text
			continue
		}
		out = append(out, s)
	}
	return out
}

func spansLen(spans []span) int {
	n := 0
	for _, s := range spans {
		n += utf8.RuneCountInString(s.text)
	}
	return n
}

func spansText(spans []span) string {
	var out string
	for _, s := range spans {
		out += s.text
	}
	return out
}

// cut splits spans at a rune offset.
func cut(spans []span, offset int) (left, right []span) {
	for i, s := range spans {
		n := utf8.RuneCountInString(s.text)
		if offset >= n {
			left = append(left, s)
			offset -= n
			continue
		}
		if offset > 0 {
			runes := []rune(s.text)
			l, r := s, s
			l.text = string(runes[:offset])
			r.text = string(runes[offset:])
			left = append(left, l)
			right = append(right, r)
		} else {
			right = append(right, s)
		}
		right = append(right, spans[i+1:]...)
		return compact(left), compact(right)
	}
	return compact(left), nil
}

// slice returns the runes in [from, to).
func slice(spans []span, from, to int) []span {
	_, tail := cut(spans, from)
	mid, _ := cut(tail, to-from)
	return mid
}

// insertAt inserts text at offset, taking the attributes of the run before
// the caret (or after it at offset zero).
func insertAt(spans []span, offset int, text string) []span {
	left, right := cut(spans, offset)
	s := span{text: text}
	switch {
	case len(left) > 0:
		s.format, s.url = left[len(left)-1].format, left[len(left)-1].url
	case len(right) > 0:
		s.format, s.url = right[0].format, right[0].url
	}
	out := append(left, s)
	return compact(append(out, right...))
}

func deleteRange(spans []span, from, to int) []span {
	left, _ := cut(spans, from)
	_, right := cut(spans, to)
	return compact(append(left, right...))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
