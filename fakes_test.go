package eventreg

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// fakeAPI is a synchronous EventAPI: Post and deliver call matching
// handlers on the calling goroutine.
type fakeAPI struct {
	mu         sync.Mutex
	next       HandlerInstance
	handlers   map[HandlerInstance]fakeHandler
	registered int
	removed    int

	registerErr   error
	unregisterErr error
	// onRegister runs inside RegisterHandler, before it returns.
	onRegister func(h Handler)
}

type fakeHandler struct {
	key EventKey
	fn  Handler
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{handlers: make(map[HandlerInstance]fakeHandler)}
}

func (a *fakeAPI) RegisterHandler(key EventKey, h Handler) (HandlerInstance, error) {
	a.mu.Lock()
	if a.registerErr != nil {
		err := a.registerErr
		a.mu.Unlock()
		return 0, err
	}
	a.next++
	inst := a.next
	a.handlers[inst] = fakeHandler{key: key, fn: h}
	a.registered++
	hook := a.onRegister
	a.mu.Unlock()
	if hook != nil {
		hook(h)
	}
	return inst, nil
}

func (a *fakeAPI) UnregisterHandler(key EventKey, inst HandlerInstance) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed++
	if a.unregisterErr != nil {
		return a.unregisterErr
	}
	if _, ok := a.handlers[inst]; !ok {
		return CodeNotFound
	}
	delete(a.handlers, inst)
	return nil
}

func (a *fakeAPI) Post(_ context.Context, key EventKey, data []byte) error {
	a.deliver(key, data)
	return nil
}

func (a *fakeAPI) deliver(key EventKey, data []byte) {
	a.mu.Lock()
	var fns []Handler
	for _, h := range a.handlers {
		if h.key.Matches(key) {
			fns = append(fns, h.fn)
		}
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(key, data)
	}
}

func (a *fakeAPI) active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handlers)
}

func (a *fakeAPI) unregisterCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removed
}

// fakeTimers hands out fakeTimers which only fire when told to.
type fakeTimers struct {
	mu        sync.Mutex
	timers    []*fakeTimer
	createErr error
	startErr  error
	// fireOnStart makes StartOnce fire the timer before returning.
	fireOnStart bool
}

func (f *fakeTimers) CreateTimer(name string, fn func()) (TimerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	t := &fakeTimer{name: name, fn: fn, startErr: f.startErr, fireOnStart: f.fireOnStart}
	f.timers = append(f.timers, t)
	return t, nil
}

func (f *fakeTimers) last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

type fakeTimer struct {
	name        string
	fn          func()
	startErr    error
	fireOnStart bool

	mu      sync.Mutex
	running bool
	started time.Duration
	stops   int
	deleted bool
}

func (t *fakeTimer) StartOnce(d time.Duration) error {
	t.mu.Lock()
	if t.startErr != nil {
		t.mu.Unlock()
		return t.startErr
	}
	if t.running || t.deleted {
		t.mu.Unlock()
		return CodeInvalidState
	}
	t.running = true
	t.started = d
	t.mu.Unlock()
	if t.fireOnStart {
		t.fire()
	}
	return nil
}

func (t *fakeTimer) StartPeriodic(d time.Duration) error {
	return CodeNotFound
}

func (t *fakeTimer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	if !t.running || t.deleted {
		return CodeInvalidState
	}
	t.running = false
	return nil
}

func (t *fakeTimer) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.deleted {
		return CodeInvalidState
	}
	t.deleted = true
	return nil
}

// fire plays the deadline elapsing. It calls the trampoline even if the
// timer was stopped, as a real timer racing Stop may.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	t.fn()
}

func (t *fakeTimer) isDeleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted
}

func (t *fakeTimer) stopCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// syncBuffer is a bytes.Buffer safe for a logger shared across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*Logger, *syncBuffer) {
	var buf syncBuffer
	return NewLogger(&buf, logiface.LevelDebug), &buf
}

// counter records callback invocations.
type counter struct {
	mu     sync.Mutex
	events int
	times  int
	data   [][]byte
}

func (c *counter) onEvent(_ EventKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events++
	c.data = append(c.data, append([]byte(nil), data...))
}

func (c *counter) onTimeout(EventKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times++
}

func (c *counter) counts() (events, timeouts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events, c.times
}
