package eventreg

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultQueueSize = 32

// Loop is an in-process EventAPI: a bounded FIFO of posted occurrences,
// drained in order and delivered to every matching handler.
//
// By default a Loop owns one dispatch goroutine. With WithManualDispatch the
// caller drives delivery by calling Run, which mirrors a user-run event loop.
type Loop struct {
	id     string
	name   string
	manual bool
	logger *Logger
	queue  chan posted

	nextInst atomic.Uint64
	runMu    sync.Mutex // serializes Run in manual mode

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	handlers []*handlerEntry

	wg sync.WaitGroup
}

type posted struct {
	key  EventKey
	data []byte
}

type handlerEntry struct {
	inst    HandlerInstance
	key     EventKey
	fn      Handler
	removed atomic.Bool
}

// NewLoop creates a Loop and, unless WithManualDispatch is given, starts its
// dispatch goroutine.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg := loopOptions{queueSize: defaultQueueSize, name: "event_loop"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.queueSize <= 0 {
		return nil, &ArgumentError{Op: "new loop", Arg: "queue size", Reason: fmt.Sprintf("must be positive, got %d", cfg.queueSize)}
	}

	l := &Loop{
		id:     uuid.NewString(),
		name:   cfg.name,
		manual: cfg.manual,
		logger: cfg.logger,
		queue:  make(chan posted, cfg.queueSize),
		done:   make(chan struct{}),
	}
	if !l.manual {
		l.wg.Add(1)
		go l.dispatchLoop()
	}
	l.logger.Debug().
		Str("category", categoryLoop).
		Str("loop", l.id).
		Str("name", l.name).
		Int("queue_size", cfg.queueSize).
		Bool("manual", l.manual).
		Log("loop created")
	return l, nil
}

// ID returns the unique identifier of this Loop instance.
func (l *Loop) ID() string {
	return l.id
}

// Name returns the name given by WithLoopName.
func (l *Loop) Name() string {
	return l.name
}

// RegisterHandler implements EventAPI.
func (l *Loop) RegisterHandler(key EventKey, h Handler) (HandlerInstance, error) {
	if h == nil || !validRegistrationKey(key) {
		return 0, CodeInvalidArg
	}
	e := &handlerEntry{
		inst: HandlerInstance(l.nextInst.Add(1)),
		key:  key,
		fn:   h,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, CodeInvalidState
	}
	l.handlers = append(l.handlers, e)
	return e.inst, nil
}

// UnregisterHandler implements EventAPI. A handler removed while an
// occurrence is being delivered is skipped if it has not been reached yet.
func (l *Loop) UnregisterHandler(key EventKey, inst HandlerInstance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return CodeInvalidState
	}
	for i, e := range l.handlers {
		if e.inst == inst && e.key == key {
			e.removed.Store(true)
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return nil
		}
	}
	return CodeNotFound
}

// Post implements EventAPI. It blocks while the queue is full, until ctx is
// done, in which case it fails with CodeTimeout.
func (l *Loop) Post(ctx context.Context, key EventKey, data []byte) error {
	if key.IsWildcard() {
		return CodeInvalidArg
	}
	p := posted{key: key}
	if data != nil {
		p.data = make([]byte, len(data))
		copy(p.data, data)
	}

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case l.queue <- p:
		return nil
	default:
	}
	select {
	case l.queue <- p:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: post %s: %w", CodeTimeout, key, ctx.Err())
	}
}

// Run dispatches queued occurrences for up to d, or until ctx is done.
// It is only valid for a Loop created with WithManualDispatch.
func (l *Loop) Run(ctx context.Context, d time.Duration) error {
	if !l.manual {
		return fmt.Errorf("%w: run on a loop with its own dispatch goroutine", CodeInvalidState)
	}
	l.runMu.Lock()
	defer l.runMu.Unlock()

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case p := <-l.queue:
			l.dispatch(p)
		case <-timer.C:
			return nil
		case <-l.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops dispatching. Queued occurrences are dropped, and every later
// call fails with CodeInvalidState. Close waits for the dispatch goroutine,
// or for a Run in progress on a manual loop, so it must not be called from
// a handler.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.handlers = nil
	l.mu.Unlock()

	l.wg.Wait()
	if l.manual {
		l.runMu.Lock()
		l.runMu.Unlock()
	}
	l.logger.Debug().
		Str("category", categoryLoop).
		Str("loop", l.id).
		Int("dropped", len(l.queue)).
		Log("loop closed")
	return nil
}

func (l *Loop) dispatchLoop() {
	defer l.wg.Done()
	for {
		select {
		case p := <-l.queue:
			l.dispatch(p)
		case <-l.done:
			return
		}
	}
}

// dispatch delivers p to a snapshot of the matching handlers, without
// holding the lock, so handlers may register and unregister freely.
func (l *Loop) dispatch(p posted) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return
	}
	var matched []*handlerEntry
	for _, e := range l.handlers {
		if e.key.Matches(p.key) {
			matched = append(matched, e)
		}
	}
	l.mu.RUnlock()

	for _, e := range matched {
		if e.removed.Load() {
			continue
		}
		l.invoke(e, p)
	}
}

func (l *Loop) invoke(e *handlerEntry, p posted) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Str("category", categoryLoop).
				Str("loop", l.id).
				Stringer("key", p.key).
				Uint64("instance", uint64(e.inst)).
				Any("panic", r).
				Str("stack", string(debug.Stack())).
				Log("handler panicked")
		}
	}()
	e.fn(p.key, p.data)
}
