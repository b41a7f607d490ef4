package lexical

import (
	"fmt"
	"strings"
)

// SplitMode selects how a completed response is divided into cells.
type SplitMode string

const (
	// SplitNone keeps a completed response in one cell.
	SplitNone SplitMode = "none"
	// SplitAtHeadings starts a new section at every top-level heading of
	// level <= MaxLevel that is not the first block.
	SplitAtHeadings SplitMode = "headings"
	// SplitEachBlock makes every top-level block its own section.
	SplitEachBlock SplitMode = "blocks"
)

// SplitPolicy is the configured split rule. The zero value is SplitNone.
type SplitPolicy struct {
	Mode     SplitMode
	MaxLevel int
}

// ParseSplitPolicy reads a policy from configuration values.
func ParseSplitPolicy(mode string, maxLevel int) (SplitPolicy, error) {
	switch m := SplitMode(strings.ToLower(strings.TrimSpace(mode))); m {
	case "", SplitNone:
		return SplitPolicy{Mode: SplitNone}, nil
	case SplitAtHeadings:
		if maxLevel < 1 || maxLevel > 6 {
			maxLevel = 2
		}
		return SplitPolicy{Mode: m, MaxLevel: maxLevel}, nil
	case SplitEachBlock:
		return SplitPolicy{Mode: m}, nil
	default:
		return SplitPolicy{}, fmt.Errorf("unknown split mode %q", mode)
	}
}

// Sections divides blocks according to the policy. It always returns at
// least one section; an empty input yields one empty section.
func (p SplitPolicy) Sections(blocks []*Node) [][]*Node {
	if len(blocks) == 0 {
		return [][]*Node{nil}
	}

	switch p.Mode {
	case SplitAtHeadings:
		max := p.MaxLevel
		if max == 0 {
			max = 2
		}
		var out [][]*Node
		var cur []*Node
		for i, b := range blocks {
			if i > 0 && b.Type == TypeHeading && b.HeadingLevel() <= max {
				out = append(out, cur)
				cur = nil
			}
			cur = append(cur, b)
		}
		return append(out, cur)

	case SplitEachBlock:
		out := make([][]*Node, len(blocks))
		for i, b := range blocks {
			out[i] = []*Node{b}
		}
		return out

	default:
		return [][]*Node{blocks}
	}
}

func (p SplitPolicy) String() string {
	if p.Mode == SplitAtHeadings {
		return fmt.Sprintf("%s(h%d)", p.Mode, p.MaxLevel)
	}
	if p.Mode == "" {
		return string(SplitNone)
	}
	return string(p.Mode)
}
