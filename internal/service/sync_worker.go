package service

import (
	"context"
	"sync"
	"time"

	"ai-notebook-be/pkg/persistence"
	"ai-notebook-be/pkg/reconcile"
)

type syncJob struct {
	ctx   context.Context
	msg   reconcile.Message
	read  func(*reconcile.Engine)
	reply chan reconcile.Result
}

// syncWorker owns one engine. Every message and read runs on its goroutine,
// so the engine never sees concurrent calls.
type syncWorker struct {
	workspaceID string
	engine      *reconcile.Engine
	bridge      *persistence.Bridge

	inbox chan syncJob
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	closeTimeout time.Duration
	closeErr     error
}

func newSyncWorker(workspaceID string, engine *reconcile.Engine, bridge *persistence.Bridge, queueSize int, closeTimeout time.Duration) *syncWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &syncWorker{
		workspaceID:  workspaceID,
		engine:       engine,
		bridge:       bridge,
		inbox:        make(chan syncJob, queueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		closeTimeout: closeTimeout,
	}
	go w.run()
	return w
}

func (w *syncWorker) run() {
	defer close(w.done)
	for {
		select {
		case j := <-w.inbox:
			w.process(j)
		case <-w.quit:
			ctx, cancel := context.WithTimeout(context.Background(), w.closeTimeout)
			w.closeErr = w.engine.Close(ctx)
			cancel()
			return
		}
	}
}

func (w *syncWorker) process(j syncJob) {
	if err := j.ctx.Err(); err != nil {
		j.reply <- reconcile.Result{Dropped: true, Reason: err}
		return
	}
	if j.read != nil {
		j.read(w.engine)
		j.reply <- reconcile.Result{Handled: true}
		return
	}
	j.reply <- w.engine.Handle(j.ctx, j.msg)
}

func (w *syncWorker) submit(ctx context.Context, j syncJob) (reconcile.Result, error) {
	select {
	case w.inbox <- j:
	case <-w.quit:
		return reconcile.Result{}, ErrWorkspaceClosed
	case <-ctx.Done():
		return reconcile.Result{}, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r, nil
	case <-w.done:
		select {
		case r := <-j.reply:
			return r, nil
		default:
			return reconcile.Result{}, ErrWorkspaceClosed
		}
	case <-ctx.Done():
		return reconcile.Result{}, ctx.Err()
	}
}

func (w *syncWorker) handle(ctx context.Context, msg reconcile.Message) (reconcile.Result, error) {
	return w.submit(ctx, syncJob{ctx: ctx, msg: msg, reply: make(chan reconcile.Result, 1)})
}

// read runs fn on the worker goroutine.
func (w *syncWorker) read(ctx context.Context, fn func(*reconcile.Engine)) error {
	r, err := w.submit(ctx, syncJob{ctx: ctx, read: fn, reply: make(chan reconcile.Result, 1)})
	if err != nil {
		return err
	}
	if !r.Handled {
		return r.Reason
	}
	return nil
}

// Stop flushes and tears the engine down. It blocks until the worker has
// exited and is safe to call more than once.
func (w *syncWorker) Stop() {
	w.once.Do(func() { close(w.quit) })
	<-w.done
}

func (w *syncWorker) err() error {
	<-w.done
	return w.closeErr
}
