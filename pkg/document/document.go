package document

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
)

// Origin tells change listeners who caused a mutation.
type Origin int

const (
	// OriginUser is interactive editing: typing, keymap and paste.
	OriginUser Origin = iota
	// OriginExternal is a programmatic content write such as an AI completion.
	OriginExternal
	// OriginStructure is an insert, delete, split or reorder of whole cells.
	OriginStructure
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginExternal:
		return "external"
	case OriginStructure:
		return "structure"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Change is delivered to listeners after every mutation except Load.
type Change struct {
	Origin  Origin
	CellIDs []string
}

// Fingerprint identifies a cell's serialized content.
type Fingerprint uint64

// ReplaceOptions guards ReplaceCellContent. Since is the fingerprint
// captured when the writing operation started.
type ReplaceOptions struct {
	Force bool
	Since Fingerprint
}

type ReplaceResult struct {
	Applied     bool
	Fingerprint Fingerprint
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator replaces uuid-based cell id minting.
func WithIDGenerator(gen func() string) Option {
	return func(d *Document) { d.newID = gen }
}

// WithClock replaces time.Now for cell timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// Document is the single editable tree of a session.
type Document struct {
	codec     *lexical.Codec
	root      *lexical.Node
	index     map[string]*lexical.Node
	listeners []func(Change)
	sel       Selection
	newID     func() string
	now       func() time.Time
}

func New(codec *lexical.Codec, opts ...Option) *Document {
	d := &Document{
		codec: codec,
		root:  &lexical.Node{Type: lexical.TypeRoot, Version: 1},
		index: make(map[string]*lexical.Node),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnChange registers a listener for mutations.
func (d *Document) OnChange(fn func(Change)) {
	d.listeners = append(d.listeners, fn)
}

func (d *Document) emit(origin Origin, ids ...string) {
	change := Change{Origin: origin, CellIDs: ids}
	for _, fn := range d.listeners {
		fn(change)
	}
}

// Load replaces the whole tree. It is the only way to write the document
// from stored cells and emits no change.
func (d *Document) Load(cells []notebook.Cell) error {
	sorted := make([]notebook.Cell, len(cells))
	copy(sorted, cells)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	boundaries := make([]*lexical.Node, 0, len(sorted))
	index := make(map[string]*lexical.Node, len(sorted))
	for _, c := range sorted {
		if c.ID == "" || index[c.ID] != nil {
			c.ID = d.newID()
		}
		if !c.Kind.Valid() {
			return fmt.Errorf("cell %s: %w", c.ID, notebook.ErrInvalidKind)
		}
		blocks, err := d.codec.Parse(c.Content)
		if err != nil {
			return fmt.Errorf("cell %s: %w", c.ID, err)
		}
		b := lexical.NewCell(c, ensureBlocks(blocks)...)
		boundaries = append(boundaries, b)
		index[c.ID] = b
	}

	d.root.Children = boundaries
	d.index = index
	d.sel = Selection{}
	if len(boundaries) > 0 {
		d.sel = collapsed(Position{CellID: boundaries[0].Cell.ID})
	}
	return nil
}

// ExtractCells serializes every boundary in order. Order is the index.
func (d *Document) ExtractCells() []notebook.Cell {
	out := make([]notebook.Cell, len(d.root.Children))
	for i, b := range d.root.Children {
		out[i] = d.extract(b, i)
	}
	return out
}

func (d *Document) extract(b *lexical.Node, order int) notebook.Cell {
	c := b.Cell.Clone()
	c.Content = d.codec.Render(b.Children)
	c.Order = order
	return c
}

// Cell returns the extracted form of one cell.
func (d *Document) Cell(id string) (notebook.Cell, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return notebook.Cell{}, false
	}
	return d.extract(d.root.Children[i], i), true
}

// Blocks returns a copy of a cell's blocks.
func (d *Document) Blocks(id string) ([]*lexical.Node, bool) {
	b, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return lexical.CloneAll(b.Children), true
}

func (d *Document) CellIDs() []string {
	ids := make([]string, len(d.root.Children))
	for i, b := range d.root.Children {
		ids[i] = b.Cell.ID
	}
	return ids
}

func (d *Document) Len() int {
	return len(d.root.Children)
}

func (d *Document) Has(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Fingerprint hashes the cell's serialized content.
func (d *Document) Fingerprint(id string) (Fingerprint, error) {
	b, ok := d.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	return fingerprintOf(d.codec.Render(b.Children)), nil
}

func fingerprintOf(content string) Fingerprint {
	return Fingerprint(xxhash.Sum64String(content))
}

// ReplaceCellContent is the guarded programmatic replace used by external
// writers. When the cell changed after opts.Since was captured and
// opts.Force is unset, nothing is written and Applied is false.
func (d *Document) ReplaceCellContent(id, content string, opts ReplaceOptions) (ReplaceResult, error) {
	b, ok := d.index[id]
	if !ok {
		return ReplaceResult{}, fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	current := fingerprintOf(d.codec.Render(b.Children))
	if !opts.Force && current != opts.Since {
		return ReplaceResult{Applied: false, Fingerprint: current}, nil
	}

	blocks, err := d.codec.Parse(content)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("replace cell %s: %w", id, err)
	}
	b.Children = ensureBlocks(blocks)
	d.touch(b)
	d.fixSelection(d.indexOf(id))
	d.emit(OriginExternal, id)

	return ReplaceResult{Applied: true, Fingerprint: fingerprintOf(d.codec.Render(b.Children))}, nil
}

// UpdateMeta changes a cell's attributes through fn. Identity, kind and
// content cannot be changed this way.
func (d *Document) UpdateMeta(id string, fn func(*notebook.Cell)) error {
	b, ok := d.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	meta := b.Cell.Clone()
	fn(&meta)
	meta.ID, meta.Kind, meta.Content = b.Cell.ID, b.Cell.Kind, ""
	b.Cell = &meta
	d.touch(b)
	d.emit(OriginExternal, id)
	return nil
}

// SplitCellInto writes content into id, dividing it into sections by
// policy. The first section stays in id; every further section becomes a
// new ai-response continuation cell inserted right after, in order. The
// returned ids are the newly minted ones.
func (d *Document) SplitCellInto(id, content string, policy lexical.SplitPolicy) ([]string, error) {
	i := d.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	blocks, err := d.codec.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("split cell %s: %w", id, err)
	}

	sections := policy.Sections(blocks)
	b := d.root.Children[i]
	b.Children = ensureBlocks(sections[0])
	d.touch(b)

	minted := make([]string, 0, len(sections)-1)
	boundaries := make([]*lexical.Node, 0, len(sections)-1)
	for _, section := range sections[1:] {
		now := d.now()
		meta := notebook.Cell{
			ID:        d.mintID(),
			Kind:      notebook.KindAIResponse,
			CreatedAt: now,
			UpdatedAt: now,
		}
		nb := lexical.NewCell(meta, ensureBlocks(section)...)
		d.index[meta.ID] = nb
		boundaries = append(boundaries, nb)
		minted = append(minted, meta.ID)
	}
	d.root.Children = insertNodes(d.root.Children, i+1, boundaries...)
	d.fixSelection(i)

	d.emit(OriginStructure, append([]string{id}, minted...)...)
	return minted, nil
}

// InsertCellsAfter inserts cells after afterID, or at the end when afterID
// is empty. Missing or colliding ids are replaced by fresh ones; the ids
// actually used are returned in order.
func (d *Document) InsertCellsAfter(afterID string, cells []notebook.Cell) ([]string, error) {
	return d.insertCells(OriginExternal, afterID, cells)
}

func (d *Document) insertCells(origin Origin, afterID string, cells []notebook.Cell) ([]string, error) {
	at := len(d.root.Children)
	if afterID != "" {
		i := d.indexOf(afterID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCell, afterID)
		}
		at = i + 1
	}

	boundaries := make([]*lexical.Node, 0, len(cells))
	ids := make([]string, 0, len(cells))
	taken := make(map[string]bool, len(cells))
	for _, c := range cells {
		if c.Kind == "" {
			c.Kind = notebook.KindUserText
		}
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("insert cell: %w: %q", notebook.ErrInvalidKind, c.Kind)
		}
		blocks, err := d.codec.Parse(c.Content)
		if err != nil {
			return nil, fmt.Errorf("insert cell: %w", err)
		}
		if c.ID == "" || d.Has(c.ID) || taken[c.ID] {
			c.ID = d.mintID()
		}
		taken[c.ID] = true
		now := d.now()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		boundaries = append(boundaries, lexical.NewCell(c, ensureBlocks(blocks)...))
		ids = append(ids, c.ID)
	}
	if len(boundaries) == 0 {
		return ids, nil
	}

	for _, b := range boundaries {
		d.index[b.Cell.ID] = b
	}
	d.root.Children = insertNodes(d.root.Children, at, boundaries...)
	d.fixSelection(at)
	d.emit(origin, ids...)
	return ids, nil
}

// DeleteContinuationCells removes the consecutive ai-response cells without
// their own prompt that directly follow rootID.
func (d *Document) DeleteContinuationCells(rootID string) ([]string, error) {
	i := d.indexOf(rootID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, rootID)
	}
	var deleted []string
	j := i + 1
	for ; j < len(d.root.Children); j++ {
		meta := d.root.Children[j].Cell
		if !meta.IsContinuation() {
			break
		}
		deleted = append(deleted, meta.ID)
	}
	if len(deleted) == 0 {
		return []string{}, nil
	}

	d.removeRange(i+1, j)
	d.fixSelection(i)
	d.emit(OriginStructure, deleted...)
	return deleted, nil
}

// DeleteCell removes one cell.
func (d *Document) DeleteCell(id string) error {
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	d.removeRange(i, i+1)
	d.fixSelection(i - 1)
	d.emit(OriginStructure, id)
	return nil
}

// Reorder applies a new cell order. orderedIDs must be a permutation of the
// current ids. An identity permutation changes nothing and emits nothing.
func (d *Document) Reorder(orderedIDs []string) (bool, error) {
	if len(orderedIDs) != len(d.root.Children) {
		return false, ErrInvalidOrder
	}
	next := make([]*lexical.Node, len(orderedIDs))
	seen := make(map[string]bool, len(orderedIDs))
	changed := false
	for i, id := range orderedIDs {
		b, ok := d.index[id]
		if !ok || seen[id] {
			return false, fmt.Errorf("%w: %s", ErrInvalidOrder, id)
		}
		seen[id] = true
		next[i] = b
		if d.root.Children[i] != b {
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	d.root.Children = next
	d.emit(OriginStructure, orderedIDs...)
	return true, nil
}

func (d *Document) removeRange(from, to int) {
	for _, b := range d.root.Children[from:to] {
		delete(d.index, b.Cell.ID)
	}
	rest := make([]*lexical.Node, 0, len(d.root.Children)-(to-from))
	rest = append(rest, d.root.Children[:from]...)
	d.root.Children = append(rest, d.root.Children[to:]...)
}

func (d *Document) indexOf(id string) int {
	if _, ok := d.index[id]; !ok {
		return -1
	}
	for i, b := range d.root.Children {
		if b.Cell.ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) boundary(i int) *lexical.Node {
	if i < 0 || i >= len(d.root.Children) {
		return nil
	}
	return d.root.Children[i]
}

func (d *Document) touch(b *lexical.Node) {
	b.Cell.UpdatedAt = d.now()
}

// mintID returns an id not used by any cell in the document.
func (d *Document) mintID() string {
	for {
		id := d.newID()
		if !d.Has(id) {
			return id
		}
	}
}
