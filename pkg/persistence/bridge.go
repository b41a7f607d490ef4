// Package persistence implements the debounced, session-guarded channel
// between the document engine and the persistence collaborator.
package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ai-notebook-be/pkg/notebook"
)

// ErrClosed indicates a write through a closed bridge.
var ErrClosed = errors.New("persistence bridge closed")

// Sink is the persistence collaborator. A call is one batch; a sink is
// expected to apply a batch atomically.
type Sink interface {
	SaveCells(ctx context.Context, sessionID string, cells []notebook.Cell) error
	DeleteCells(ctx context.Context, sessionID string, ids []string) error
}

// Stopper cancels a scheduled function.
type Stopper interface {
	Stop() bool
}

// Clock schedules the debounce timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Logger is the subset of the application logger the bridge writes to.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

const module = "PersistenceBridge"

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type write struct {
	sessionID string
	op        opKind
	cell      notebook.Cell
}

// Config tunes a Bridge. Zero values take defaults.
type Config struct {
	Interval     time.Duration
	WriteTimeout time.Duration
	Clock        Clock
	Logger       Logger
	// OnError is called after a failed write. The document is never rolled
	// back; retrying is up to the sink.
	OnError func(sessionID string, err error)
}

// Bridge coalesces writes per cell id and delivers them after a quiet
// interval. Deliveries are serialized, so a sink never sees an older
// snapshot of a cell after a newer one.
type Bridge struct {
	sink     Sink
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	log      Logger
	onError  func(string, error)

	deliver sync.Mutex

	mu      sync.Mutex
	active  string
	pending map[string]write
	timer   Stopper
	gen     uint64
	closed  bool
}

func NewBridge(sink Sink, cfg Config) *Bridge {
	b := &Bridge{
		sink:     sink,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		timeout:  cfg.WriteTimeout,
		log:      cfg.Logger,
		onError:  cfg.OnError,
		pending:  make(map[string]write),
	}
	if b.clock == nil {
		b.clock = realClock{}
	}
	if b.interval <= 0 {
		b.interval = 750 * time.Millisecond
	}
	if b.timeout <= 0 {
		b.timeout = 10 * time.Second
	}
	if b.log == nil {
		b.log = nopLogger{}
	}
	return b
}

// SetActiveSession changes the session writes are accepted for. Pending
// writes of any other session are discarded.
func (b *Bridge) SetActiveSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = id
	for cellID, w := range b.pending {
		if w.sessionID != id {
			delete(b.pending, cellID)
			b.log.Debug(module, "Discarded pending write of inactive session", map[string]interface{}{
				"session_id": w.sessionID,
				"cell_id":    cellID,
			})
		}
	}
	if len(b.pending) == 0 {
		b.stopTimerLocked()
	}
}

func (b *Bridge) ActiveSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// ScheduleSave queues a debounced save. A later snapshot of the same cell
// replaces an earlier one.
func (b *Bridge) ScheduleSave(sessionID string, cell notebook.Cell) {
	b.schedule(write{sessionID: sessionID, op: opSave, cell: cell.Clone()})
}

// ScheduleDelete queues a debounced delete.
func (b *Bridge) ScheduleDelete(sessionID, cellID string) {
	b.schedule(write{sessionID: sessionID, op: opDelete, cell: notebook.Cell{ID: cellID}})
}

func (b *Bridge) schedule(w write) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || w.sessionID != b.active {
		b.log.Debug(module, "Dropped write for inactive session", map[string]interface{}{
			"session_id": w.sessionID,
			"active":     b.active,
			"cell_id":    w.cell.ID,
		})
		return
	}
	b.pending[w.cell.ID] = w

	b.stopTimerLocked()
	gen := b.gen
	b.timer = b.clock.AfterFunc(b.interval, func() { b.fire(gen) })
}

func (b *Bridge) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (b *Bridge) fire(gen uint64) {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	batch := b.drainLocked()
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	_ = b.write(ctx, batch)
}

// FlushAll cancels the timer and synchronously delivers every pending
// write.
func (b *Bridge) FlushAll(ctx context.Context) error {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	b.stopTimerLocked()
	batch := b.drainLocked()
	b.mu.Unlock()

	return b.write(ctx, batch)
}

// ForceSave delivers cells immediately as one batch, bypassing the
// debounce. Pending writes for the same cells are superseded.
func (b *Bridge) ForceSave(ctx context.Context, sessionID string, cells ...notebook.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	batch := make([]write, 0, len(cells))
	for _, c := range cells {
		delete(b.pending, c.ID)
		batch = append(batch, write{sessionID: sessionID, op: opSave, cell: c.Clone()})
	}
	if len(b.pending) == 0 {
		b.stopTimerLocked()
	}
	b.mu.Unlock()

	return b.write(ctx, batch)
}

// Pending counts queued writes for a session.
func (b *Bridge) Pending(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, w := range b.pending {
		if w.sessionID == sessionID {
			n++
		}
	}
	return n
}

// Close flushes and stops accepting writes.
func (b *Bridge) Close(ctx context.Context) error {
	err := b.FlushAll(ctx)
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return err
}

func (b *Bridge) drainLocked() []write {
	batch := make([]write, 0, len(b.pending))
	for _, w := range b.pending {
		batch = append(batch, w)
	}
	b.pending = make(map[string]write)
	return batch
}

// write delivers a batch. Entries whose session is no longer active are
// discarded; saves go out ordered by cell order, deletes after them.
func (b *Bridge) write(ctx context.Context, batch []write) error {
	if len(batch) == 0 {
		return nil
	}
	active := b.ActiveSession()

	sessions := make(map[string][]write)
	var order []string
	for _, w := range batch {
		if w.sessionID != active {
			b.log.Debug(module, "Discarded write for inactive session", map[string]interface{}{
				"session_id": w.sessionID,
				"cell_id":    w.cell.ID,
			})
			continue
		}
		if _, ok := sessions[w.sessionID]; !ok {
			order = append(order, w.sessionID)
		}
		sessions[w.sessionID] = append(sessions[w.sessionID], w)
	}

	var firstErr error
	for _, sessionID := range order {
		var saves []notebook.Cell
		var deletes []string
		for _, w := range sessions[sessionID] {
			if w.op == opDelete {
				deletes = append(deletes, w.cell.ID)
			} else {
				saves = append(saves, w.cell)
			}
		}
		sort.SliceStable(saves, func(i, j int) bool { return saves[i].Order < saves[j].Order })
		sort.Strings(deletes)

		if len(saves) > 0 {
			if err := b.sink.SaveCells(ctx, sessionID, saves); err != nil {
				b.fail(sessionID, "Failed to save cells", err, len(saves))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if len(deletes) > 0 {
			if err := b.sink.DeleteCells(ctx, sessionID, deletes); err != nil {
				b.fail(sessionID, "Failed to delete cells", err, len(deletes))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

func (b *Bridge) fail(sessionID, message string, err error, count int) {
	b.log.Error(module, message, map[string]interface{}{
		"session_id": sessionID,
		"count":      count,
		"error":      err.Error(),
	})
	if b.onError != nil {
		b.onError(sessionID, err)
	}
}
