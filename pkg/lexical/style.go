package lexical

import (
	"strconv"
	"strings"
)

// StyleMap represents parsed CSS styles
type StyleMap map[string]string

// ParseStyle parses a CSS style string into a map
// Example: "font-weight: 700; font-style: italic;"
func ParseStyle(styleStr string) StyleMap {
	styles := make(StyleMap)
	if styleStr == "" {
		return styles
	}

	parts := strings.Split(styleStr, ";")
	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) == 2 {
			k := strings.ToLower(strings.TrimSpace(kv[0]))
			v := strings.ToLower(strings.TrimSpace(kv[1]))
			if k != "" && v != "" {
				styles[k] = v
			}
		}
	}
	return styles
}

// Format maps the inline styles rich editors put on spans to format bits.
func (s StyleMap) Format() int {
	format := 0

	switch w := s["font-weight"]; w {
	case "bold", "bolder":
		format |= FormatBold
	default:
		if n, err := strconv.Atoi(w); err == nil && n >= 600 {
			format |= FormatBold
		}
	}

	if st := s["font-style"]; st == "italic" || st == "oblique" {
		format |= FormatItalic
	}

	for _, k := range []string{"text-decoration", "text-decoration-line"} {
		if strings.Contains(s[k], "line-through") {
			format |= FormatStrikethrough
		}
	}
	return format
}
