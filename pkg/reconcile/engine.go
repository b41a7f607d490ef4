package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-notebook-be/pkg/document"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/persistence"
	"ai-notebook-be/pkg/registry"
)

const module = "ReconcileEngine"

// Logger is the subset of the application logger the engine writes to.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

type nopOutbox struct{}

func (nopOutbox) CellsChanged(string, []notebook.Cell) {}
func (nopOutbox) ErrorRaised(string, string, string)   {}
func (nopOutbox) RefreshRequested(string, []string)    {}

// Config wires an Engine. Codec and Bridge are required.
type Config struct {
	Codec  *lexical.Codec
	Bridge *persistence.Bridge
	Split  lexical.SplitPolicy
	Outbox Outbox
	Logger Logger

	// DocumentOptions are passed to the document, mostly for ids and clocks
	// in tests.
	DocumentOptions []document.Option
	Now             func() time.Time
}

// Engine owns the document, the registry and the persistence bridge of one
// connection and routes every event to the stores it may write.
type Engine struct {
	doc    *document.Document
	reg    *registry.Registry
	bridge *persistence.Bridge
	split  lexical.SplitPolicy
	out    Outbox
	log    Logger
	now    func() time.Time

	sessionID string
}

func New(cfg Config) *Engine {
	e := &Engine{
		bridge: cfg.Bridge,
		split:  cfg.Split,
		out:    cfg.Outbox,
		log:    cfg.Logger,
		now:    cfg.Now,
		reg:    registry.New(""),
	}
	if e.out == nil {
		e.out = nopOutbox{}
	}
	if e.log == nil {
		e.log = nopLogger{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.doc = document.New(cfg.Codec, cfg.DocumentOptions...)
	e.doc.OnChange(e.onChange)
	return e
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

// Document exposes the tree for reads. Writes must go through Handle.
func (e *Engine) Document() *document.Document {
	return e.doc
}

func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Handle applies one inbound event.
func (e *Engine) Handle(ctx context.Context, msg Message) Result {
	if load, ok := msg.(LoadSession); ok {
		return e.loadSession(ctx, load)
	}
	if e.sessionID == "" {
		return e.drop(msg, ErrNoSession)
	}
	if msg.Session() != e.sessionID {
		return e.drop(msg, ErrSessionMismatch)
	}

	switch m := msg.(type) {
	case StreamStart:
		return e.streamStart(m)
	case StreamChunk:
		if !e.reg.Append(m.CellID, m.Text) {
			return e.drop(msg, ErrUnknownCellTarget)
		}
		return Result{Applied: true, CellIDs: []string{m.CellID}}
	case StreamComplete:
		return e.streamComplete(ctx, m)
	case StreamError:
		return e.streamError(m)
	case ExternalInsert:
		ids, err := e.doc.InsertCellsAfter(m.AfterID, m.Cells)
		if err != nil {
			return e.reject(msg, err)
		}
		return Result{Applied: true, CellIDs: ids}
	case ReorderConfirm:
		return e.reorder(ctx, m)
	case UserInput:
		return e.userInput(m)
	case UserPaste:
		return e.userPaste(m)
	case UserEditCell:
		if _, err := e.doc.ReplaceCellContent(m.CellID, m.Content, document.ReplaceOptions{Force: true}); err != nil {
			return e.reject(msg, err)
		}
		return Result{Applied: true, CellIDs: []string{m.CellID}}
	case UserDeleteCell:
		if err := e.doc.DeleteCell(m.CellID); err != nil {
			return e.reject(msg, err)
		}
		return Result{Applied: true, CellIDs: []string{m.CellID}}
	case UserConfigureCell:
		return e.configure(m)
	case FocusCell:
		if !e.doc.Has(m.CellID) {
			return e.drop(msg, ErrUnknownCellTarget)
		}
		e.reg.SetFocus(m.CellID)
		e.reg.SetOverlay(m.CellID, m.Overlay)
		return Result{Applied: true, CellIDs: []string{m.CellID}}
	default:
		return e.drop(msg, fmt.Errorf("unsupported message %T", msg))
	}
}

// Close flushes pending writes and tears the registry down.
func (e *Engine) Close(ctx context.Context) error {
	err := e.bridge.Close(ctx)
	e.reg.Teardown()
	return err
}

// onChange is the only path from the document to the mirror and to
// persistence.
func (e *Engine) onChange(change document.Change) {
	if e.sessionID == "" {
		return
	}
	before := make(map[string]string, len(change.CellIDs))
	for _, id := range change.CellIDs {
		if c, ok := e.reg.Cell(id); ok {
			before[id] = c.Content
		}
	}

	cells := e.doc.ExtractCells()
	diff, err := e.reg.Mirror(cells)
	if err != nil {
		e.log.Error(module, "Failed to mirror document", map[string]interface{}{
			"session_id": e.sessionID,
			"error":      err.Error(),
		})
		return
	}
	if diff.Empty() {
		return
	}
	for _, c := range diff.Changed {
		e.bridge.ScheduleSave(e.sessionID, c)
	}
	for _, id := range diff.Removed {
		e.bridge.ScheduleDelete(e.sessionID, id)
	}
	e.out.CellsChanged(e.sessionID, cells)

	if change.Origin == document.OriginUser {
		return
	}
	var sources []string
	for _, c := range diff.Changed {
		if prev, ok := before[c.ID]; ok && prev != c.Content {
			sources = append(sources, c.ID)
		}
	}
	e.refreshDependents(cells, sources)
}

// refreshDependents asks for a refresh of the on-dependency-change cells
// that reference sources directly. Cells further downstream follow when the
// refreshed content lands. Cells on a cycle are flagged and never refreshed.
func (e *Engine) refreshDependents(cells []notebook.Cell, sources []string) {
	if len(sources) == 0 {
		return
	}
	graph := notebook.BuildGraph(cells)
	triggers := make(map[string]notebook.Trigger, len(cells))
	for _, c := range cells {
		if c.ProcessingConfig != nil {
			triggers[c.ID] = c.ProcessingConfig.Trigger
		}
	}

	seen := make(map[string]bool)
	var ids []string
	for _, src := range sources {
		if _, err := graph.RefreshOrder(src); err != nil {
			e.reg.SetError(src, err.Error())
			e.log.Warn(module, "Skipped dependency refresh", map[string]interface{}{
				"session_id": e.sessionID,
				"cell_id":    src,
				"error":      err.Error(),
			})
			continue
		}
		for _, id := range graph.Dependents(src) {
			if seen[id] || triggers[id] != notebook.TriggerOnDependencyChange {
				continue
			}
			if _, busy := e.reg.Active(id); busy {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		e.out.RefreshRequested(e.sessionID, ids)
	}
}

// loadSession flushes the previous session, loads the new cells and
// reseeds the mirror. The load itself schedules no writes.
func (e *Engine) loadSession(ctx context.Context, m LoadSession) Result {
	if m.SessionID == "" {
		return e.drop(m, errors.New("empty session id"))
	}
	if err := e.bridge.FlushAll(ctx); err != nil {
		e.log.Error(module, "Failed to flush before session switch", map[string]interface{}{
			"session_id": e.sessionID,
			"error":      err.Error(),
		})
	}
	if err := e.doc.Load(m.Cells); err != nil {
		return e.reject(m, err)
	}

	if m.SessionID != e.sessionID {
		e.reg.Teardown()
		e.reg = registry.New(m.SessionID)
	} else {
		e.reg.Clear()
	}
	previous := e.sessionID
	e.sessionID = m.SessionID
	e.bridge.SetActiveSession(m.SessionID)

	cells := e.doc.ExtractCells()
	if _, err := e.reg.Mirror(cells); err != nil {
		return e.reject(m, err)
	}
	e.out.CellsChanged(e.sessionID, cells)

	e.log.Info(module, "Session loaded", map[string]interface{}{
		"session_id": m.SessionID,
		"previous":   previous,
		"cells":      len(cells),
	})

	e.refreshOnOpen(cells)
	return Result{Applied: true, CellIDs: e.doc.CellIDs()}
}

func (e *Engine) refreshOnOpen(cells []notebook.Cell) {
	graph := notebook.BuildGraph(cells)
	if cycle, ok := graph.Cycle(); ok {
		for _, id := range cycle {
			e.reg.SetError(id, notebook.ErrDependencyCycle.Error())
		}
		e.log.Warn(module, "Dependency cycle, on-open refresh skipped", map[string]interface{}{
			"session_id": e.sessionID,
			"cycle":      cycle,
		})
		return
	}
	var ids []string
	for _, c := range cells {
		if c.ProcessingConfig != nil && c.ProcessingConfig.Trigger == notebook.TriggerOnOpen {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) > 0 {
		e.out.RefreshRequested(e.sessionID, ids)
	}
}

func (e *Engine) streamStart(m StreamStart) Result {
	if !e.doc.Has(m.CellID) {
		return e.drop(m, ErrUnknownCellTarget)
	}
	kind := m.Kind
	if kind == "" {
		kind = registry.Streaming
	}
	if _, busy := e.reg.Active(m.CellID); busy {
		return e.reject(m, fmt.Errorf("%w: %s", registry.ErrAccumulatorBusy, m.CellID))
	}
	var removed []string
	if m.Regenerate {
		ids, err := e.doc.DeleteContinuationCells(m.CellID)
		if err != nil {
			return e.reject(m, err)
		}
		removed = ids
	}
	fp, err := e.doc.Fingerprint(m.CellID)
	if err != nil {
		return e.reject(m, err)
	}
	if err := e.reg.Start(m.CellID, kind, uint64(fp)); err != nil {
		return e.reject(m, err)
	}
	e.log.Debug(module, "Stream started", map[string]interface{}{
		"session_id": e.sessionID,
		"cell_id":    m.CellID,
		"kind":       string(kind),
		"removed":    len(removed),
	})
	return Result{Applied: true, CellIDs: append([]string{m.CellID}, removed...)}
}

// streamComplete commits an accumulator. The write is guarded against user
// edits made while the stream was open, and is persisted immediately.
func (e *Engine) streamComplete(ctx context.Context, m StreamComplete) Result {
	acc, ok := e.reg.Finish(m.CellID)
	if !ok {
		return e.drop(m, ErrUnknownCellTarget)
	}
	if !e.doc.Has(m.CellID) {
		return e.drop(m, ErrUnknownCellTarget)
	}
	text := acc.Text
	if m.FinalText != nil {
		text = *m.FinalText
	}

	current, err := e.doc.Fingerprint(m.CellID)
	if err != nil {
		return e.reject(m, err)
	}
	if !m.Force && uint64(current) != acc.Base {
		e.log.Info(module, "Stream result discarded, cell edited meanwhile", map[string]interface{}{
			"session_id": e.sessionID,
			"cell_id":    m.CellID,
			"kind":       string(acc.Kind),
		})
		return Result{Applied: false, Reason: ErrStaleOperation, CellIDs: []string{m.CellID}}
	}

	affected := []string{m.CellID}
	if acc.Kind == registry.Streaming {
		minted, err := e.doc.SplitCellInto(m.CellID, text, e.split)
		if err != nil {
			return e.reject(m, err)
		}
		affected = append(affected, minted...)
	} else {
		res, err := e.doc.ReplaceCellContent(m.CellID, text, document.ReplaceOptions{Force: true})
		if err != nil {
			return e.reject(m, err)
		}
		if !res.Applied {
			return Result{Applied: false, Reason: ErrStaleOperation, CellIDs: affected}
		}
		if acc.Kind == registry.Modifying && m.Modifier != "" {
			if err := e.recordVersion(m.CellID, m.Modifier); err != nil {
				return e.reject(m, err)
			}
		}
	}

	result := Result{Applied: true, CellIDs: affected}
	cells := make([]notebook.Cell, 0, len(affected))
	for _, id := range affected {
		if c, ok := e.doc.Cell(id); ok {
			cells = append(cells, c)
		}
	}
	if err := e.bridge.ForceSave(ctx, e.sessionID, cells...); err != nil {
		result.Reason = &PersistenceWriteFailure{SessionID: e.sessionID, Err: err}
	}
	return result
}

// recordVersion snapshots the cell's current content as the active version
// produced by modifier.
func (e *Engine) recordVersion(cellID, modifier string) error {
	c, ok := e.doc.Cell(cellID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCellTarget, cellID)
	}
	now := e.now()
	mod := notebook.Modifier{ID: uuid.NewString(), Name: modifier, AppliedAt: now}
	ver := notebook.Version{ID: uuid.NewString(), ModifierID: mod.ID, Content: c.Content, CreatedAt: now}
	mod.VersionID = ver.ID
	return e.doc.UpdateMeta(cellID, func(meta *notebook.Cell) {
		meta.Modifiers = append(meta.Modifiers, mod)
		meta.Versions = append(meta.Versions, ver)
		meta.ActiveVersionID = ver.ID
	})
}

// streamError discards the accumulator and raises the error once. The
// document was never written during the stream, so nothing is rolled back.
func (e *Engine) streamError(m StreamError) Result {
	if !e.reg.Discard(m.CellID) {
		return e.drop(m, ErrUnknownCellTarget)
	}
	failure := &StreamFailure{CellID: m.CellID, Message: m.Error}
	e.reg.SetError(m.CellID, m.Error)
	e.out.ErrorRaised(e.sessionID, m.CellID, m.Error)
	e.log.Warn(module, "Stream failed", map[string]interface{}{
		"session_id": e.sessionID,
		"cell_id":    m.CellID,
		"error":      m.Error,
	})
	return Result{Applied: true, Reason: failure, CellIDs: []string{m.CellID}}
}

// reorder applies a confirmed order and persists every cell as one batch so
// stored orders never mix.
func (e *Engine) reorder(ctx context.Context, m ReorderConfirm) Result {
	changed, err := e.doc.Reorder(m.OrderedIDs)
	if err != nil {
		return e.reject(m, err)
	}
	if !changed {
		return Result{Applied: false}
	}
	result := Result{Applied: true, CellIDs: e.doc.CellIDs()}
	if err := e.bridge.ForceSave(ctx, e.sessionID, e.doc.ExtractCells()...); err != nil {
		result.Reason = &PersistenceWriteFailure{SessionID: e.sessionID, Err: err}
	}
	return result
}

func (e *Engine) userInput(m UserInput) Result {
	if m.Selection != nil {
		if err := e.doc.SetSelection(m.Selection.Anchor, m.Selection.Head); err != nil {
			return e.reject(m, err)
		}
	} else if m.Cursor != nil {
		if err := e.doc.SetCursor(*m.Cursor); err != nil {
			return e.reject(m, err)
		}
	}
	result := Result{Applied: true}
	if m.Key != nil {
		result.Handled = e.doc.HandleKey(*m.Key)
	}
	if m.Text != "" {
		if err := e.doc.InsertText(m.Text); err != nil {
			return e.reject(m, err)
		}
	}
	result.CellIDs = []string{e.doc.Cursor().CellID}
	return result
}

func (e *Engine) userPaste(m UserPaste) Result {
	var (
		ids []string
		err error
	)
	switch {
	case m.Fragment != nil:
		ids, err = e.doc.Paste(*m.Fragment)
	case m.HTML != "":
		ids, err = e.doc.PasteHTML(m.HTML)
	case m.Markdown != "":
		ids, err = e.doc.PasteMarkdown(m.Markdown)
	case len(m.Lexical) > 0:
		ids, err = e.doc.PasteLexical(m.Lexical)
	default:
		return Result{Applied: false}
	}
	if err != nil {
		return e.reject(m, err)
	}
	return Result{Applied: true, CellIDs: ids}
}

// configure replaces a cell's processing config. A config that would close
// a reference cycle is refused.
func (e *Engine) configure(m UserConfigureCell) Result {
	cells := e.doc.ExtractCells()
	found := false
	for i := range cells {
		if cells[i].ID == m.CellID {
			cells[i].ProcessingConfig = m.ProcessingConfig
			found = true
		}
	}
	if !found {
		return e.drop(m, ErrUnknownCellTarget)
	}
	if m.ProcessingConfig != nil && !m.ProcessingConfig.Trigger.Valid() {
		return e.reject(m, fmt.Errorf("invalid trigger %q", m.ProcessingConfig.Trigger))
	}
	if cycle, ok := notebook.BuildGraph(cells).Cycle(); ok {
		return e.reject(m, fmt.Errorf("%w: %v", notebook.ErrDependencyCycle, cycle))
	}
	err := e.doc.UpdateMeta(m.CellID, func(c *notebook.Cell) {
		c.ProcessingConfig = m.ProcessingConfig
	})
	if err != nil {
		return e.reject(m, err)
	}
	e.reg.ClearError(m.CellID)
	return Result{Applied: true, CellIDs: []string{m.CellID}}
}

// drop ignores an event that no longer has a valid target.
func (e *Engine) drop(msg Message, reason error) Result {
	e.log.Debug(module, "Dropped event", map[string]interface{}{
		"session_id": e.sessionID,
		"event":      fmt.Sprintf("%T", msg),
		"target":     msg.Session(),
		"reason":     reason.Error(),
	})
	return Result{Dropped: true, Reason: reason}
}

// reject reports an event that was invalid for the current state.
func (e *Engine) reject(msg Message, err error) Result {
	if errors.Is(err, document.ErrUnknownCell) {
		return e.drop(msg, fmt.Errorf("%w: %v", ErrUnknownCellTarget, err))
	}
	e.log.Warn(module, "Rejected event", map[string]interface{}{
		"session_id": e.sessionID,
		"event":      fmt.Sprintf("%T", msg),
		"error":      err.Error(),
	})
	return Result{Reason: err}
}
