package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-notebook-be/internal/config"
	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/internal/repository/memory"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/persistence"
	"ai-notebook-be/pkg/reconcile"

	"github.com/google/uuid"
)

// OutboundPersistenceFailed tells a workspace that a write did not reach
// the database. The document keeps its content.
const OutboundPersistenceFailed = "persistenceFailed"

// persistenceCloseTimeout bounds the final flush of a closing workspace
// when no write timeout is configured.
const persistenceCloseTimeout = 10 * time.Second

type ISyncService interface {
	// Open loads a session into a workspace, creating the workspace on
	// first use, and returns the resulting state.
	Open(ctx context.Context, workspaceId, sessionId string) (*dto.SyncSnapshotResponse, error)
	Dispatch(ctx context.Context, workspaceId string, env *dto.SyncEnvelope) (*dto.SyncResultResponse, error)
	Handle(ctx context.Context, workspaceId string, msg reconcile.Message) (reconcile.Result, error)
	// Read runs fn against the engine of an open workspace, serialized
	// with every other message of that workspace.
	Read(ctx context.Context, workspaceId string, fn func(*reconcile.Engine)) error
	Snapshot(ctx context.Context, workspaceId string) (*dto.SyncSnapshotResponse, error)
	// Close flushes pending writes and drops the workspace.
	Close(ctx context.Context, workspaceId string) error
	Workspaces() []string
	Shutdown()
	SetRefresher(r Refresher)
}

type syncService struct {
	repo           *memory.WorkspaceRepository
	sessionService ISessionService
	persistence    IPersistenceService
	delivery       NotificationDelivery
	publisher      EventPublisher
	codec          *lexical.Codec
	split          lexical.SplitPolicy
	cfg            config.SyncConfig
	logger         logger.ILogger

	mu        sync.RWMutex
	refresher Refresher
}

func NewSyncService(
	repo *memory.WorkspaceRepository,
	sessionService ISessionService,
	persistenceService IPersistenceService,
	delivery NotificationDelivery,
	publisher EventPublisher,
	codec *lexical.Codec,
	split lexical.SplitPolicy,
	cfg config.SyncConfig,
	log logger.ILogger,
) ISyncService {
	return &syncService{
		repo:           repo,
		sessionService: sessionService,
		persistence:    persistenceService,
		delivery:       delivery,
		publisher:      publisher,
		codec:          codec,
		split:          split,
		cfg:            cfg,
		logger:         log,
	}
}

func (s *syncService) SetRefresher(r Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresher = r
}

func (s *syncService) currentRefresher() Refresher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresher
}

func (s *syncService) Open(ctx context.Context, workspaceId, sessionId string) (*dto.SyncSnapshotResponse, error) {
	id, err := uuid.Parse(sessionId)
	if err != nil {
		return nil, invalidMessage("session id %q is not a uuid", sessionId)
	}

	session, cells, err := s.sessionService.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	w := s.getOrCreate(workspaceId)
	r, err := w.handle(ctx, reconcile.LoadSession{SessionID: session.ID, Cells: cells})
	if err != nil {
		return nil, err
	}
	if !r.Applied {
		return nil, serverutils.NewBadRequestError("Session could not be loaded", r.Reason)
	}

	s.logger.Info("SyncService", "Session loaded", map[string]interface{}{
		"workspace_id": workspaceId,
		"session_id":   session.ID,
		"cells":        len(cells),
	})
	return s.snapshot(ctx, w)
}

func (s *syncService) Dispatch(ctx context.Context, workspaceId string, env *dto.SyncEnvelope) (*dto.SyncResultResponse, error) {
	if env != nil && env.Type == dto.MessageLoadSession {
		snap, err := s.Open(ctx, workspaceId, env.SessionId)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(snap.Cells))
		for i, c := range snap.Cells {
			ids[i] = c.ID
		}
		return &dto.SyncResultResponse{Applied: true, CellIds: ids}, nil
	}

	msg, err := DecodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	r, err := s.Handle(ctx, workspaceId, msg)
	if err != nil {
		return nil, err
	}
	return toResultResponse(r), nil
}

func (s *syncService) Handle(ctx context.Context, workspaceId string, msg reconcile.Message) (reconcile.Result, error) {
	w, err := s.lookup(workspaceId)
	if err != nil {
		return reconcile.Result{}, err
	}
	r, err := w.handle(ctx, msg)
	if err != nil {
		return r, err
	}
	if r.Dropped {
		s.logger.Debug("SyncService", "Message dropped", map[string]interface{}{
			"workspace_id": workspaceId,
			"type":         messageType(msg),
			"reason":       reasonString(r.Reason),
		})
	}
	return r, nil
}

func (s *syncService) Read(ctx context.Context, workspaceId string, fn func(*reconcile.Engine)) error {
	w, err := s.lookup(workspaceId)
	if err != nil {
		return err
	}
	return w.read(ctx, fn)
}

func (s *syncService) Snapshot(ctx context.Context, workspaceId string) (*dto.SyncSnapshotResponse, error) {
	w, err := s.lookup(workspaceId)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, w)
}

func (s *syncService) snapshot(ctx context.Context, w *syncWorker) (*dto.SyncSnapshotResponse, error) {
	snap := &dto.SyncSnapshotResponse{WorkspaceId: w.workspaceID}
	err := w.read(ctx, func(e *reconcile.Engine) {
		snap.SessionId = e.SessionID()
		snap.Cells = e.Document().ExtractCells()
		snap.Focus = e.Registry().Focus()
		if snap.Focus != "" {
			snap.Overlay = e.Registry().Overlay(snap.Focus)
		}
		snap.Accumulators = e.Registry().Accumulators()
		for _, c := range e.Registry().Cells() {
			if msg, ok := e.Registry().Error(c.ID); ok {
				if snap.Errors == nil {
					snap.Errors = make(map[string]string)
				}
				snap.Errors[c.ID] = msg
			}
		}
		snap.Pending = w.bridge.Pending(snap.SessionId)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *syncService) Close(ctx context.Context, workspaceId string) error {
	w, err := s.lookup(workspaceId)
	if err != nil {
		return err
	}
	s.repo.Delete(workspaceId)

	done := make(chan error, 1)
	go func() { done <- w.err() }()
	select {
	case err := <-done:
		s.logger.Info("SyncService", "Workspace closed", map[string]interface{}{"workspace_id": workspaceId})
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *syncService) Workspaces() []string {
	return s.repo.IDs()
}

// Shutdown flushes and stops every workspace.
func (s *syncService) Shutdown() {
	s.repo.Clear()
}

func (s *syncService) lookup(workspaceId string) (*syncWorker, error) {
	w, ok := s.repo.Get(workspaceId)
	if !ok {
		return nil, ErrWorkspaceNotOpen
	}
	return w.(*syncWorker), nil
}

// getOrCreate returns the workspace's worker. Concurrent creators race
// through the repository; the losing worker is stopped unused.
func (s *syncService) getOrCreate(workspaceId string) *syncWorker {
	if w, err := s.lookup(workspaceId); err == nil {
		return w
	}

	w := s.newWorker(workspaceId)
	if s.repo.Add(workspaceId, w) {
		s.logger.Info("SyncService", "Workspace opened", map[string]interface{}{"workspace_id": workspaceId})
		return w
	}
	w.Stop()

	if existing, err := s.lookup(workspaceId); err == nil {
		return existing
	}
	// The winner was evicted in between; take the slot again.
	return s.getOrCreate(workspaceId)
}

func (s *syncService) newWorker(workspaceId string) *syncWorker {
	bridge := persistence.NewBridge(s.persistence.Sink(workspaceId), persistence.Config{
		Interval:     s.cfg.SaveInterval,
		WriteTimeout: s.cfg.WriteTimeout,
		Logger:       s.logger,
		OnError: func(sessionId string, err error) {
			s.delivery.Send(workspaceId, dto.OutboundMessage{
				Type:        OutboundPersistenceFailed,
				WorkspaceId: workspaceId,
				SessionId:   sessionId,
				Payload:     dto.ErrorRaisedPayload{Message: err.Error()},
			})
		},
	})

	engine := reconcile.New(reconcile.Config{
		Codec:  s.codec,
		Bridge: bridge,
		Split:  s.split,
		Outbox: &workspaceOutbox{
			workspaceId: workspaceId,
			delivery:    s.delivery,
			publisher:   s.publisher,
			refresher:   s.currentRefresher,
			logger:      s.logger,
		},
		Logger: s.logger,
	})

	closeTimeout := s.cfg.WriteTimeout
	if closeTimeout <= 0 {
		closeTimeout = persistenceCloseTimeout
	}
	return newSyncWorker(workspaceId, engine, bridge, s.cfg.WorkerQueueSize, closeTimeout)
}

func toResultResponse(r reconcile.Result) *dto.SyncResultResponse {
	return &dto.SyncResultResponse{
		Applied: r.Applied,
		Dropped: r.Dropped,
		Handled: r.Handled,
		Reason:  reasonString(r.Reason),
		CellIds: r.CellIDs,
	}
}

func reasonString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func messageType(msg reconcile.Message) string {
	return fmt.Sprintf("%T", msg)
}
