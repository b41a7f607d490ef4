package notebook

import (
	"fmt"
	"time"
)

// Kind is the closed set of cell variants.
type Kind string

const (
	KindUserText      Kind = "user-text"
	KindAIResponse    Kind = "ai-response"
	KindQuotedExcerpt Kind = "quoted-excerpt"
)

// Valid reports whether k is one of the known cell kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUserText, KindAIResponse, KindQuotedExcerpt:
		return true
	default:
		return false
	}
}

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Trigger selects when a live-refresh cell is recomputed.
type Trigger string

const (
	TriggerOnOpen             Trigger = "on-open"
	TriggerOnDependencyChange Trigger = "on-dependency-change"
	TriggerManual             Trigger = "manual"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerOnOpen, TriggerOnDependencyChange, TriggerManual:
		return true
	default:
		return false
	}
}

// ProcessingConfig is the live-refresh configuration of a cell.
type ProcessingConfig struct {
	Trigger    Trigger  `json:"trigger"`
	BlockName  string   `json:"blockName,omitempty"`
	References []string `json:"references,omitempty"`
}

// Modifier records one transformation applied to a cell.
type Modifier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VersionID string    `json:"versionId"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Version is a content snapshot produced by a modifier.
type Version struct {
	ID         string    `json:"id"`
	ModifierID string    `json:"modifierId,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Cell is the atomic addressable unit of a session. Content is the portable
// markdown serialization produced by the codec.
type Cell struct {
	ID               string            `json:"id"`
	Kind             Kind              `json:"kind"`
	Content          string            `json:"content"`
	Order            int               `json:"order"`
	OriginalPrompt   string            `json:"originalPrompt,omitempty"`
	Restatement      string            `json:"restatement,omitempty"`
	Modifiers        []Modifier        `json:"modifiers,omitempty"`
	Versions         []Version         `json:"versions,omitempty"`
	ActiveVersionID  string            `json:"activeVersionId,omitempty"`
	ProcessingConfig *ProcessingConfig `json:"processingConfig,omitempty"`
	SourceApp        string            `json:"sourceApp,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// IsContinuation reports whether the cell is an ai-response produced by
// splitting an earlier response rather than by its own prompt.
func (c Cell) IsContinuation() bool {
	return c.Kind == KindAIResponse && c.OriginalPrompt == ""
}

// ActiveVersion returns the version selected by ActiveVersionID.
func (c Cell) ActiveVersion() (Version, bool) {
	for _, v := range c.Versions {
		if v.ID == c.ActiveVersionID {
			return v, true
		}
	}
	return Version{}, false
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	out := c
	if c.Modifiers != nil {
		out.Modifiers = append([]Modifier(nil), c.Modifiers...)
	}
	if c.Versions != nil {
		out.Versions = append([]Version(nil), c.Versions...)
	}
	if c.ProcessingConfig != nil {
		pc := *c.ProcessingConfig
		pc.References = append([]string(nil), c.ProcessingConfig.References...)
		out.ProcessingConfig = &pc
	}
	return out
}

// Equal compares two cells field by field, ignoring timestamps.
func (c Cell) Equal(o Cell) bool {
	if c.ID != o.ID || c.Kind != o.Kind || c.Content != o.Content || c.Order != o.Order ||
		c.OriginalPrompt != o.OriginalPrompt || c.Restatement != o.Restatement ||
		c.ActiveVersionID != o.ActiveVersionID || c.SourceApp != o.SourceApp {
		return false
	}
	if len(c.Modifiers) != len(o.Modifiers) || len(c.Versions) != len(o.Versions) {
		return false
	}
	for i := range c.Modifiers {
		a, b := c.Modifiers[i], o.Modifiers[i]
		if a.ID != b.ID || a.Name != b.Name || a.VersionID != b.VersionID {
			return false
		}
	}
	for i := range c.Versions {
		a, b := c.Versions[i], o.Versions[i]
		if a.ID != b.ID || a.ModifierID != b.ModifierID || a.Content != b.Content {
			return false
		}
	}
	return processingConfigEqual(c.ProcessingConfig, o.ProcessingConfig)
}

func processingConfigEqual(a, b *ProcessingConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Trigger != b.Trigger || a.BlockName != b.BlockName || len(a.References) != len(b.References) {
		return false
	}
	for i := range a.References {
		if a.References[i] != b.References[i] {
			return false
		}
	}
	return true
}

// Renumber assigns dense zero-based Order values following slice order.
func Renumber(cells []Cell) {
	for i := range cells {
		cells[i].Order = i
	}
}
