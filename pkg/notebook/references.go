package notebook

import (
	"regexp"
	"sort"
	"strings"
)

// MaxPromptReferences is the most cells a single prompt may reference.
const MaxPromptReferences = 5

// Reference patterns:
//
//	@cell:"Block Name"  quoted block name
//	@cell:<id>          cell id or block name without spaces
//	[[Block Name]]      wiki-style block name
var (
	atCellQuotedPattern = regexp.MustCompile(`@cell:"([^"]+)"`)
	atCellPlainPattern  = regexp.MustCompile(`@cell:(\S+)`)
	wikiLinkPattern     = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// PromptReferences is the result of scanning a prompt for cell references.
type PromptReferences struct {
	// References holds cell ids or block names, deduplicated, in prompt order.
	References  []string
	CleanPrompt string
}

// ParsePromptReferences extracts cell references from a prompt. The values
// resolve the same way ProcessingConfig.References do: by id, then by
// block name.
func ParsePromptReferences(prompt string) (PromptReferences, error) {
	type match struct {
		at    int
		raw   string
		value string
	}
	var matches []match

	// Quoted and wiki forms are removed first so the plain pattern never
	// sees their bodies.
	rest := prompt
	for _, re := range []*regexp.Regexp{atCellQuotedPattern, wikiLinkPattern} {
		for _, loc := range re.FindAllStringSubmatchIndex(rest, -1) {
			matches = append(matches, match{at: loc[0], raw: rest[loc[0]:loc[1]], value: rest[loc[2]:loc[3]]})
		}
		rest = re.ReplaceAllStringFunc(rest, func(s string) string { return strings.Repeat(" ", len(s)) })
	}
	for _, loc := range atCellPlainPattern.FindAllStringSubmatchIndex(rest, -1) {
		matches = append(matches, match{at: loc[0], raw: rest[loc[0]:loc[1]], value: rest[loc[2]:loc[3]]})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].at < matches[j].at })

	out := PromptReferences{CleanPrompt: prompt}
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		out.CleanPrompt = strings.Replace(out.CleanPrompt, m.raw, "", 1)
		v := strings.TrimSpace(m.value)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out.References = append(out.References, v)
	}
	out.CleanPrompt = strings.TrimSpace(whitespacePattern.ReplaceAllString(out.CleanPrompt, " "))

	if len(out.References) > MaxPromptReferences {
		return out, ErrTooManyReferences
	}
	return out, nil
}
