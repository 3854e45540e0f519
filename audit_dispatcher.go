package rsvp

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves audit events off the request path and into a sink
// that may do I/O, such as the user_activity insert. Shutdown is bounded by
// the caller's context; events still queued when it expires are counted as
// dropped.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	queue      chan AuditEvent

	// stopping is closed by Close; the worker drains the queue and exits.
	stopping chan struct{}
	exited   chan struct{}

	// sinkCtx is handed to the sink and cancelled when Close gives up.
	sinkCtx    context.Context
	cancelSink context.CancelFunc

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stopping:   make(chan struct{}),
		exited:     make(chan struct{}),
		sinkCtx:    sinkCtx,
		cancelSink: cancel,
	}
	go d.work()
	return d
}

func (d *auditDispatcher) work() {
	defer close(d.exited)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(d.sinkCtx, event)
		case <-d.stopping:
			d.drain()
			return
		}
	}
}

// drain delivers what is left in the queue until the sink context is
// cancelled, then discards the rest.
func (d *auditDispatcher) drain() {
	for {
		if d.sinkCtx.Err() != nil {
			d.discard()
			return
		}
		select {
		case event := <-d.queue:
			d.sink.Emit(d.sinkCtx, event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) discard() {
	for {
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
			return
		}
	}
}

// Emit queues event. With dropIfFull a full queue loses the event;
// otherwise Emit waits for space, ctx or Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stopping:
	}
}

// Close stops accepting events and delivers the queued ones until ctx is
// done. On expiry the sink context is cancelled, the remaining events are
// counted as dropped and ctx.Err() is returned. Later calls return the
// first result.
func (d *auditDispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stopping)

		select {
		case <-d.exited:
			d.cancelSink()
		case <-ctx.Done():
			d.cancelSink()
			d.discard()
			d.closeErr = ctx.Err()
		}
	})
	return d.closeErr
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
