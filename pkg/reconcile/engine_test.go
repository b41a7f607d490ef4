package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-notebook-be/pkg/document"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/persistence"
	"ai-notebook-be/pkg/registry"
)

// manualClock never fires on its own; debounced writes only leave the
// bridge through a flush or a forced save.
type manualClock struct{}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func (manualClock) AfterFunc(time.Duration, func()) persistence.Stopper {
	return manualTimer{}
}

type storeBatch struct {
	sessionID string
	saved     []notebook.Cell
	deleted   []string
}

// memStore applies each batch atomically.
type memStore struct {
	mu      sync.Mutex
	cells   map[string]map[string]notebook.Cell
	batches []storeBatch
}

func newMemStore() *memStore {
	return &memStore{cells: make(map[string]map[string]notebook.Cell)}
}

func (s *memStore) SaveCells(_ context.Context, sessionID string, cells []notebook.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cells[sessionID] == nil {
		s.cells[sessionID] = make(map[string]notebook.Cell)
	}
	for _, c := range cells {
		s.cells[sessionID][c.ID] = c
	}
	s.batches = append(s.batches, storeBatch{sessionID: sessionID, saved: cells})
	return nil
}

func (s *memStore) DeleteCells(_ context.Context, sessionID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.cells[sessionID], id)
	}
	s.batches = append(s.batches, storeBatch{sessionID: sessionID, deleted: ids})
	return nil
}

func (s *memStore) order(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cells := make([]notebook.Cell, 0, len(s.cells[sessionID]))
	for _, c := range s.cells[sessionID] {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Order < cells[j].Order })
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}
	return ids
}

func (s *memStore) content(sessionID, id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells[sessionID][id].Content
}

func (s *memStore) writes() []storeBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeBatch(nil), s.batches...)
}

type recorder struct {
	changed   int
	errors    []string
	refreshes [][]string
}

func (r *recorder) CellsChanged(string, []notebook.Cell) { r.changed++ }

func (r *recorder) ErrorRaised(_, cellID, message string) {
	r.errors = append(r.errors, cellID+": "+message)
}

func (r *recorder) RefreshRequested(_ string, ids []string) {
	r.refreshes = append(r.refreshes, ids)
}

type harness struct {
	engine *Engine
	store  *memStore
	bridge *persistence.Bridge
	out    *recorder
	codec  *lexical.Codec
}

func newHarness(t *testing.T, split lexical.SplitPolicy) *harness {
	t.Helper()
	h := &harness{store: newMemStore(), out: &recorder{}, codec: lexical.NewCodec()}
	h.bridge = persistence.NewBridge(h.store, persistence.Config{Clock: manualClock{}})
	n := 0
	h.engine = New(Config{
		Codec:  h.codec,
		Bridge: h.bridge,
		Split:  split,
		Outbox: h.out,
		DocumentOptions: []document.Option{document.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		})},
	})
	t.Cleanup(func() { _ = h.engine.Close(context.Background()) })
	return h
}

func (h *harness) load(t *testing.T, sessionID string, cells ...notebook.Cell) {
	t.Helper()
	for i := range cells {
		cells[i].Order = i
	}
	res := h.engine.Handle(context.Background(), LoadSession{SessionID: sessionID, Cells: cells})
	require.True(t, res.Applied, "load: %v", res.Reason)
}

func (h *harness) handle(msg Message) Result {
	return h.engine.Handle(context.Background(), msg)
}

func (h *harness) content(t *testing.T, id string) string {
	t.Helper()
	c, ok := h.engine.Document().Cell(id)
	require.True(t, ok, "cell %s", id)
	return c.Content
}

func (h *harness) normalized(t *testing.T, content string) string {
	t.Helper()
	out, err := h.codec.Normalize(content)
	require.NoError(t, err)
	return out
}

func prompt(id, content string) notebook.Cell {
	return notebook.Cell{ID: id, Kind: notebook.KindAIResponse, Content: content, OriginalPrompt: "explain"}
}

func text(id, content string) notebook.Cell {
	return notebook.Cell{ID: id, Kind: notebook.KindUserText, Content: content}
}

func typeAt(sessionID, cellID, s string) UserInput {
	return UserInput{SessionID: sessionID, Cursor: &document.Position{CellID: cellID}, Text: s}
}

func TestEventsBeforeLoadAreDropped(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	res := h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "x"})
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrNoSession)
}

func TestStreamCompleteEqualsParsedChunks(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", ""))

	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "a"}).Applied)
	chunks := []string{"# Ti", "tle\n\nBody **bo", "ld** and\n\n- one\n- tw", "o"}
	for _, c := range chunks {
		require.True(t, h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: c}).Applied)
	}
	assert.Equal(t, "", h.content(t, "a"), "document untouched while streaming")

	res := h.handle(StreamComplete{SessionID: "s1", CellID: "a"})
	require.True(t, res.Applied)
	assert.NoError(t, res.Reason)

	want := h.normalized(t, "# Title\n\nBody **bold** and\n\n- one\n- two")
	assert.Equal(t, want, h.content(t, "a"))
	assert.Equal(t, want, h.store.content("s1", "a"), "completion is written immediately")
	assert.Equal(t, 0, h.bridge.Pending("s1"))

	_, open := h.engine.Registry().Active("a")
	assert.False(t, open)
}

func TestStreamCompleteUsesFinalText(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", ""))

	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "partial"})
	final := "complete answer"
	require.True(t, h.handle(StreamComplete{SessionID: "s1", CellID: "a", FinalText: &final}).Applied)
	assert.Equal(t, "complete answer", h.content(t, "a"))
}

func TestStreamCompleteIsStaleAfterUserEdit(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", "old"))

	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "new"})
	require.True(t, h.handle(typeAt("s1", "a", "x")).Applied)

	res := h.handle(StreamComplete{SessionID: "s1", CellID: "a"})
	assert.False(t, res.Applied)
	assert.False(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrStaleOperation)
	assert.Equal(t, "xold", h.content(t, "a"), "user edit wins")

	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "new"})
	h.handle(typeAt("s1", "a", "y"))
	res = h.handle(StreamComplete{SessionID: "s1", CellID: "a", Force: true})
	assert.True(t, res.Applied)
	assert.Equal(t, "new", h.content(t, "a"))
}

func TestLateChunksAreDropped(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", ""))

	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "done"})
	require.True(t, h.handle(StreamComplete{SessionID: "s1", CellID: "a"}).Applied)

	res := h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: " late"})
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrUnknownCellTarget)

	res = h.handle(StreamComplete{SessionID: "s1", CellID: "a"})
	assert.True(t, res.Dropped, "second completion has no accumulator")
	assert.Equal(t, "done", h.content(t, "a"))
}

func TestStreamStartRejectsBusyAndUnknownCells(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", ""))

	res := h.handle(StreamStart{SessionID: "s1", CellID: "missing"})
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrUnknownCellTarget)

	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "a"}).Applied)
	res = h.handle(StreamStart{SessionID: "s1", CellID: "a", Kind: registry.Refreshing})
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, registry.ErrAccumulatorBusy)
}

func TestStreamErrorRaisedOnce(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", "kept"))

	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "half"})

	res := h.handle(StreamError{SessionID: "s1", CellID: "a", Error: "model unavailable"})
	require.True(t, res.Applied)
	var failure *StreamFailure
	require.ErrorAs(t, res.Reason, &failure)
	assert.Equal(t, "a", failure.CellID)

	res = h.handle(StreamError{SessionID: "s1", CellID: "a", Error: "model unavailable"})
	assert.True(t, res.Dropped)

	assert.Equal(t, []string{"a: model unavailable"}, h.out.errors)
	assert.Equal(t, "kept", h.content(t, "a"))
	msg, ok := h.engine.Registry().Error("a")
	assert.True(t, ok)
	assert.Equal(t, "model unavailable", msg)

	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "a"}).Applied)
	_, ok = h.engine.Registry().Error("a")
	assert.False(t, ok, "a new stream clears the error")
}

func TestHeadingResponseUnderSplitPolicies(t *testing.T) {
	response := "# Overview\n\nintro\n\n## Details\n\nmore\n\n### Deep\n\nstays"

	t.Run("none keeps one cell", func(t *testing.T) {
		h := newHarness(t, lexical.SplitPolicy{Mode: lexical.SplitNone})
		h.load(t, "s1", prompt("a", ""), text("b", "after"))

		h.handle(StreamStart{SessionID: "s1", CellID: "a"})
		h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: response})
		res := h.handle(StreamComplete{SessionID: "s1", CellID: "a"})
		require.True(t, res.Applied)
		assert.Equal(t, []string{"a"}, res.CellIDs)
		assert.Equal(t, []string{"a", "b"}, h.engine.Document().CellIDs())
		assert.Equal(t, h.normalized(t, response), h.content(t, "a"))
	})

	t.Run("headings split into continuations", func(t *testing.T) {
		h := newHarness(t, lexical.SplitPolicy{Mode: lexical.SplitAtHeadings, MaxLevel: 2})
		h.load(t, "s1", prompt("a", ""), text("b", "after"))

		h.handle(StreamStart{SessionID: "s1", CellID: "a"})
		h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: response})
		res := h.handle(StreamComplete{SessionID: "s1", CellID: "a"})
		require.True(t, res.Applied)
		assert.Equal(t, []string{"a", "id-1"}, res.CellIDs)
		assert.Equal(t, []string{"a", "id-1", "b"}, h.engine.Document().CellIDs())

		assert.Equal(t, h.normalized(t, "# Overview\n\nintro"), h.content(t, "a"))
		assert.Equal(t, h.normalized(t, "## Details\n\nmore\n\n### Deep\n\nstays"), h.content(t, "id-1"))

		cont, _ := h.engine.Document().Cell("id-1")
		assert.True(t, cont.IsContinuation())
		assert.Equal(t, h.content(t, "id-1"), h.store.content("s1", "id-1"), "continuations are written with the root")

		res = h.handle(StreamStart{SessionID: "s1", CellID: "a", Regenerate: true})
		require.True(t, res.Applied)
		assert.Equal(t, []string{"a", "id-1"}, res.CellIDs)
		assert.Equal(t, []string{"a", "b"}, h.engine.Document().CellIDs())
	})
}

func TestIdentityReorderWritesNothing(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "A"), text("b", "B"))

	res := h.handle(ReorderConfirm{SessionID: "s1", OrderedIDs: []string{"a", "b"}})
	assert.False(t, res.Applied)
	assert.False(t, res.Dropped)
	assert.Empty(t, h.store.writes())
	assert.Equal(t, 0, h.bridge.Pending("s1"))
}

func TestReorderWritesOneBatch(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "A"), text("b", "B"), text("c", "C"))

	res := h.handle(ReorderConfirm{SessionID: "s1", OrderedIDs: []string{"c", "a", "b"}})
	require.True(t, res.Applied)

	writes := h.store.writes()
	require.Len(t, writes, 1)
	assert.Len(t, writes[0].saved, 3)
	assert.Equal(t, []string{"c", "a", "b"}, h.store.order("s1"))
	assert.Equal(t, 0, h.bridge.Pending("s1"))

	res = h.handle(ReorderConfirm{SessionID: "s1", OrderedIDs: []string{"c", "a"}})
	assert.ErrorIs(t, res.Reason, document.ErrInvalidOrder)
}

func TestReorderThenSwitchKeepsWholeOrder(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "A"), text("b", "B"), text("c", "C"))
	h.handle(typeAt("s1", "b", "edit "))

	h.handle(ReorderConfirm{SessionID: "s1", OrderedIDs: []string{"b", "c", "a"}})
	h.load(t, "s2", text("z", "Z"))

	for _, w := range h.store.writes() {
		if w.sessionID == "s1" && len(w.saved) > 1 {
			assert.Len(t, w.saved, 3, "an order change is never split across batches")
		}
	}
	assert.Equal(t, []string{"b", "c", "a"}, h.store.order("s1"))
	assert.Equal(t, "edit B", h.store.content("s1", "b"))
}

func TestSessionSwitchLeavesNoPendingWrites(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "one"), prompt("p", ""))
	old := h.engine.Registry()

	h.handle(typeAt("s1", "a", "x"))
	h.handle(StreamStart{SessionID: "s1", CellID: "p"})
	assert.Equal(t, 1, h.bridge.Pending("s1"))

	h.load(t, "s2", text("b", "two"))

	assert.Equal(t, 0, h.bridge.Pending("s1"))
	assert.Equal(t, 0, h.bridge.Pending("s2"), "loading schedules nothing")
	assert.Equal(t, "xone", h.store.content("s1", "a"), "edits are flushed before the switch")
	assert.True(t, old.TornDown())
	assert.Equal(t, "s2", h.engine.Registry().SessionID())
	assert.Equal(t, []string{"b"}, h.engine.Document().CellIDs())

	res := h.handle(StreamChunk{SessionID: "s1", CellID: "p", Text: "late"})
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrSessionMismatch)

	res = h.handle(StreamComplete{SessionID: "s1", CellID: "p"})
	assert.True(t, res.Dropped)
	for _, w := range h.store.writes() {
		for _, c := range w.saved {
			assert.NotEqual(t, "p", c.ID)
		}
	}
}

func TestReloadSameSessionClearsTransientState(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", prompt("a", ""))
	reg := h.engine.Registry()
	h.handle(StreamStart{SessionID: "s1", CellID: "a"})
	h.handle(FocusCell{SessionID: "s1", CellID: "a", Overlay: registry.OverlayModifierMenu})

	h.load(t, "s1", prompt("a", "stored"))
	assert.Same(t, reg, h.engine.Registry())
	assert.Empty(t, reg.Accumulators())
	assert.Equal(t, "", reg.Focus())
	assert.Equal(t, "stored", h.content(t, "a"))
}

func TestUserEditsFlowToMirrorAndPersistence(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "hello"))
	before := h.out.changed

	res := h.handle(UserInput{SessionID: "s1", Cursor: &document.Position{CellID: "a", Offset: 5}, Key: &document.Key{Name: document.KeyEnter}})
	require.True(t, res.Handled)
	ids := h.engine.Document().CellIDs()
	require.Len(t, ids, 2)

	h.handle(UserInput{SessionID: "s1", Text: "world"})
	mirrored, ok := h.engine.Registry().Cell(ids[1])
	require.True(t, ok)
	assert.Equal(t, "world", mirrored.Content)
	assert.Greater(t, h.out.changed, before)
	assert.Equal(t, 1, h.bridge.Pending("s1"), "only the new cell differs from the store")

	require.True(t, h.handle(UserDeleteCell{SessionID: "s1", CellID: ids[1]}).Applied)
	require.NoError(t, h.bridge.FlushAll(context.Background()))
	writes := h.store.writes()
	require.Len(t, writes, 1, "the delete supersedes the queued save")
	assert.Equal(t, []string{ids[1]}, writes[0].deleted)
}

func TestPasteFlavours(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", ""))

	res := h.handle(UserPaste{SessionID: "s1", HTML: "<h2>Title</h2><p>body <b>bold</b></p>"})
	require.True(t, res.Applied)
	assert.Equal(t, "## Title\n\nbody **bold**", h.content(t, "a"))

	frag := h.engine.Document().Copy()
	res = h.handle(UserPaste{SessionID: "s1", Fragment: &frag})
	require.True(t, res.Applied)

	res = h.handle(UserPaste{SessionID: "s1"})
	assert.False(t, res.Applied)
}

func TestExternalInsert(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "A"), text("b", "B"))

	res := h.handle(ExternalInsert{SessionID: "s1", AfterID: "a", Cells: []notebook.Cell{
		{ID: "q", Kind: notebook.KindQuotedExcerpt, Content: "> captured", SourceApp: "Safari"},
	}})
	require.True(t, res.Applied)
	assert.Equal(t, []string{"q"}, res.CellIDs)
	assert.Equal(t, []string{"a", "q", "b"}, h.engine.Document().CellIDs())

	res = h.handle(ExternalInsert{SessionID: "s1", AfterID: "gone", Cells: []notebook.Cell{text("", "x")}})
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Reason, ErrUnknownCellTarget)
}

func TestDependencyRefresh(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	dependent := prompt("b", "derived")
	dependent.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerOnDependencyChange, References: []string{"src"}}
	manual := prompt("c", "manual")
	manual.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerManual, References: []string{"a"}}
	source := text("a", "input")
	source.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerManual, BlockName: "src"}
	h.load(t, "s1", source, dependent, manual)
	assert.Empty(t, h.out.refreshes)

	h.handle(typeAt("s1", "a", "typed "))
	assert.Empty(t, h.out.refreshes, "keystrokes do not trigger refreshes")

	require.True(t, h.handle(UserEditCell{SessionID: "s1", CellID: "a", Content: "replaced"}).Applied)
	assert.Equal(t, [][]string{{"b"}}, h.out.refreshes)

	res := h.handle(UserConfigureCell{SessionID: "s1", CellID: "a", ProcessingConfig: &notebook.ProcessingConfig{
		Trigger: notebook.TriggerManual, BlockName: "src", References: []string{"b"},
	}})
	assert.False(t, res.Applied)
	assert.ErrorIs(t, res.Reason, notebook.ErrDependencyCycle)
	c, _ := h.engine.Document().Cell("a")
	assert.Empty(t, c.ProcessingConfig.References, "rejected config is not applied")
}

func TestDependencyRefreshCascadesOneHopAtATime(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	mid := prompt("b", "mid")
	mid.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerOnDependencyChange, References: []string{"a"}}
	tail := prompt("c", "tail")
	tail.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerOnDependencyChange, References: []string{"b", "a"}}
	h.load(t, "s1", text("a", "input"), mid, tail)

	require.True(t, h.handle(UserEditCell{SessionID: "s1", CellID: "a", Content: "changed"}).Applied)
	assert.Equal(t, [][]string{{"b", "c"}}, h.out.refreshes)

	// c is refreshing; b landing does not ask for it again.
	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "c", Kind: registry.Refreshing}).Applied)
	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "b", Kind: registry.Refreshing}).Applied)
	h.handle(StreamChunk{SessionID: "s1", CellID: "b", Text: "mid again"})
	require.True(t, h.handle(StreamComplete{SessionID: "s1", CellID: "b"}).Applied)
	assert.Equal(t, [][]string{{"b", "c"}}, h.out.refreshes)

	h.handle(StreamChunk{SessionID: "s1", CellID: "c", Text: "tail again"})
	require.True(t, h.handle(StreamComplete{SessionID: "s1", CellID: "c"}).Applied)

	// Without a refresh in flight, b landing reaches c exactly once.
	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "b", Kind: registry.Refreshing}).Applied)
	h.handle(StreamChunk{SessionID: "s1", CellID: "b", Text: "mid third"})
	require.True(t, h.handle(StreamComplete{SessionID: "s1", CellID: "b"}).Applied)
	assert.Equal(t, [][]string{{"b", "c"}, {"c"}}, h.out.refreshes)
}

func TestOnOpenRefresh(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	live := prompt("a", "stale")
	live.ProcessingConfig = &notebook.ProcessingConfig{Trigger: notebook.TriggerOnOpen}
	h.load(t, "s1", live, text("b", "B"))
	assert.Equal(t, [][]string{{"a"}}, h.out.refreshes)
}

func TestModifierCompletionRecordsVersion(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{Mode: lexical.SplitAtHeadings})
	h.load(t, "s1", prompt("a", "a long answer"))

	require.True(t, h.handle(StreamStart{SessionID: "s1", CellID: "a", Kind: registry.Modifying}).Applied)
	h.handle(StreamChunk{SessionID: "s1", CellID: "a", Text: "# Short\n\nanswer\n\n## Not split"})
	res := h.handle(StreamComplete{SessionID: "s1", CellID: "a", Modifier: "shorten"})
	require.True(t, res.Applied)
	assert.Equal(t, []string{"a"}, res.CellIDs, "modifier output never splits")

	c, _ := h.engine.Document().Cell("a")
	require.Len(t, c.Versions, 1)
	require.Len(t, c.Modifiers, 1)
	assert.Equal(t, "shorten", c.Modifiers[0].Name)
	assert.Equal(t, c.Versions[0].ID, c.ActiveVersionID)
	assert.Equal(t, c.Content, c.Versions[0].Content)
	assert.Equal(t, c.Modifiers[0].ID, c.Versions[0].ModifierID)
}

func TestFocusCellOnlyTouchesRegistry(t *testing.T) {
	h := newHarness(t, lexical.SplitPolicy{})
	h.load(t, "s1", text("a", "A"))
	changed := h.out.changed

	require.True(t, h.handle(FocusCell{SessionID: "s1", CellID: "a", Overlay: registry.OverlayVersionPicker}).Applied)
	assert.Equal(t, "a", h.engine.Registry().Focus())
	assert.Equal(t, registry.OverlayVersionPicker, h.engine.Registry().Overlay("a"))
	assert.Equal(t, changed, h.out.changed)
	assert.Equal(t, 0, h.bridge.Pending("s1"))
}
