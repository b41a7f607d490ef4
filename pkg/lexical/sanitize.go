package lexical

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Sanitizer removes unsafe markup from content entering the document.
type Sanitizer struct {
	strict    *bluemonday.Policy
	clipboard *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	clipboard := bluemonday.UGCPolicy()
	clipboard.AllowStyles("font-weight", "font-style", "text-decoration", "text-decoration-line").OnElements("span", "p", "div")
	clipboard.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#-]+$`)).OnElements("code")
	clipboard.AllowAttrs("type", "checked").OnElements("input")

	return &Sanitizer{
		strict:    bluemonday.StrictPolicy(),
		clipboard: clipboard,
	}
}

// StripTags removes every tag and returns the remaining text unescaped.
func (s *Sanitizer) StripTags(raw string) string {
	return html.UnescapeString(s.strict.Sanitize(raw))
}

// Clipboard sanitizes foreign HTML while keeping structural and formatting
// elements.
func (s *Sanitizer) Clipboard(raw string) string {
	return s.clipboard.Sanitize(raw)
}

var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"file":   true,
}

// URL validates a link or image destination. Relative references are kept;
// data URLs are only accepted for images.
func (s *Sanitizer) URL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(raw), "data:") {
		if strings.HasPrefix(strings.ToLower(raw), "data:image/") {
			return raw, true
		}
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" {
		return raw, true
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "", false
	}
	return raw, true
}
