package service

import (
	"context"
	"sort"
	"sync"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/repository/contract"
	"ai-notebook-be/internal/repository/specification"
	"ai-notebook-be/internal/repository/unitofwork"
	"ai-notebook-be/pkg/events"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/persistence"

	"github.com/google/uuid"
)

// memStore backs the in-memory repositories. Transactions are not
// isolated; tests only need the final state.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session
	cells    map[string]*entity.Cell
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*entity.Session),
		cells:    make(map[string]*entity.Cell),
	}
}

func (m *memStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUow{store: m}
}

func (m *memStore) session(id uuid.UUID) *entity.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	cp.CellIds = append([]string(nil), s.CellIds...)
	return &cp
}

func (m *memStore) cell(id string) *entity.Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cells[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

type memUow struct {
	store *memStore
}

func (u *memUow) Begin(ctx context.Context) error { return nil }
func (u *memUow) Commit() error                   { return nil }
func (u *memUow) Rollback() error                 { return nil }

func (u *memUow) SessionRepository() contract.SessionRepository {
	return &memSessionRepo{store: u.store}
}

func (u *memUow) CellRepository() contract.CellRepository {
	return &memCellRepo{store: u.store}
}

func findID(specs []specification.Specification) (uuid.UUID, bool) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByID); ok {
			return byID.ID, true
		}
	}
	return uuid.Nil, false
}

type memSessionRepo struct {
	store *memStore
}

func (r *memSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *session
	r.store.sessions[session.Id] = &cp
	return nil
}

func (r *memSessionRepo) Update(ctx context.Context, session *entity.Session) error {
	return r.Create(ctx, session)
}

func (r *memSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.sessions, id)
	return nil
}

func (r *memSessionRepo) UpdateCellIds(ctx context.Context, id uuid.UUID, cellIds []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[id]; ok {
		s.CellIds = append([]string(nil), cellIds...)
	}
	return nil
}

func (r *memSessionRepo) AddSource(ctx context.Context, source *entity.SessionSource) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[source.SessionId]; ok {
		cp := *source
		s.Sources = append(s.Sources, &cp)
	}
	return nil
}

func (r *memSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	id, ok := findID(specs)
	if !ok {
		return nil, nil
	}
	return r.store.session(id), nil
}

func (r *memSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*entity.Session, 0, len(r.store.sessions))
	for _, s := range r.store.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *memSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.sessions)), nil
}

type memCellRepo struct {
	store *memStore
}

func (r *memCellRepo) UpsertBulk(ctx context.Context, cells []*entity.Cell) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range cells {
		cp := *c
		r.store.cells[c.Id] = &cp
	}
	return nil
}

func (r *memCellRepo) DeleteByIds(ctx context.Context, sessionId uuid.UUID, ids []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range ids {
		if c, ok := r.store.cells[id]; ok && c.SessionId == sessionId {
			delete(r.store.cells, id)
		}
	}
	return nil
}

func (r *memCellRepo) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.cells {
		if c.SessionId == sessionId {
			delete(r.store.cells, id)
		}
	}
	return nil
}

func (r *memCellRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Cell, error) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByCellID); ok {
			return r.store.cell(byID.ID), nil
		}
	}
	return nil, nil
}

func (r *memCellRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Cell, error) {
	var sessionId uuid.UUID
	for _, s := range specs {
		if bs, ok := s.(specification.BySessionID); ok {
			sessionId = bs.SessionID
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Cell
	for _, c := range r.store.cells {
		if c.SessionId == sessionId {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memCellRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	cells, err := r.FindAll(ctx, specs...)
	return int64(len(cells)), err
}

// recordingDelivery collects outbound messages per workspace.
type recordingDelivery struct {
	mu   sync.Mutex
	msgs []dto.OutboundMessage
}

func (d *recordingDelivery) Send(workspaceId string, msg dto.OutboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *recordingDelivery) ofType(typ string) []dto.OutboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dto.OutboundMessage
	for _, m := range d.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// recordingSink is a persistence service that keeps the last saved
// version of every cell.
type recordingSink struct {
	mu      sync.Mutex
	saved   map[string]notebook.Cell
	deleted []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saved: make(map[string]notebook.Cell)}
}

func (k *recordingSink) Sink(workspaceId string) persistence.Sink { return k }
func (k *recordingSink) Start(ctx context.Context) error       { return nil }

func (k *recordingSink) SaveCells(ctx context.Context, sessionId string, cells []notebook.Cell) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range cells {
		k.saved[c.ID] = c
	}
	return nil
}

func (k *recordingSink) DeleteCells(ctx context.Context, sessionId string, ids []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deleted = append(k.deleted, ids...)
	return nil
}

func (k *recordingSink) savedCell(id string) (notebook.Cell, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.saved[id]
	return c, ok
}
