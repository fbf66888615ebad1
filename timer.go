package eventreg

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// TimerService is an in-process TimerAPI built on time.AfterFunc.
// Each timer callback runs on its own goroutine.
type TimerService struct {
	logger *Logger

	mu     sync.Mutex
	closed bool
	live   map[*Timer]struct{}
}

// NewTimerService creates an empty TimerService.
func NewTimerService(opts ...TimerOption) *TimerService {
	s := &TimerService{live: make(map[*Timer]struct{})}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Timer is a one-shot or periodic timer owned by a TimerService.
//
// A successful Stop guarantees that the callback will not start afterwards.
// Delete additionally waits for a callback that is already running, so it
// must never be called from the timer's own callback.
type Timer struct {
	svc  *TimerService
	name string
	fn   func()

	mu      sync.Mutex
	t       *time.Timer
	gen     uint64
	period  time.Duration
	running bool
	deleted bool

	inflight sync.WaitGroup
}

// CreateTimer implements TimerAPI.
func (s *TimerService) CreateTimer(name string, fn func()) (TimerHandle, error) {
	t, err := s.NewTimer(name, fn)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewTimer is CreateTimer returning the concrete type.
func (s *TimerService) NewTimer(name string, fn func()) (*Timer, error) {
	if fn == nil {
		return nil, &ArgumentError{Op: "create timer", Arg: "callback", Reason: "must not be nil"}
	}
	t := &Timer{svc: s, name: name, fn: fn}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.live[t] = struct{}{}
	return t, nil
}

// Name returns the timer's name.
func (t *Timer) Name() string {
	return t.name
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// StartOnce arms the timer to fire once after d.
func (t *Timer) StartOnce(d time.Duration) error {
	return t.start(d, 0)
}

// StartPeriodic arms the timer to fire every period until stopped.
func (t *Timer) StartPeriodic(period time.Duration) error {
	return t.start(period, period)
}

func (t *Timer) start(d, period time.Duration) error {
	if d <= 0 {
		return CodeInvalidArg
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deleted || t.running {
		return CodeInvalidState
	}
	t.gen++
	t.running = true
	t.period = period
	t.arm(d)
	return nil
}

// arm must be called with t.mu held.
func (t *Timer) arm(d time.Duration) {
	gen := t.gen
	t.t = time.AfterFunc(d, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if t.deleted || !t.running || t.gen != gen {
		t.mu.Unlock()
		return
	}
	if t.period > 0 {
		t.arm(t.period)
	} else {
		t.running = false
	}
	t.inflight.Add(1)
	t.mu.Unlock()

	defer t.inflight.Done()
	t.fn()
}

// Stop disarms the timer. It fails with CodeInvalidState if the timer is not
// running.
func (t *Timer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deleted || !t.running {
		return CodeInvalidState
	}
	t.running = false
	t.gen++
	t.t.Stop()
	return nil
}

// Delete releases the timer, waiting for any callback already in progress.
// It fails with CodeInvalidState if the timer is running or already deleted.
func (t *Timer) Delete() error {
	t.mu.Lock()
	if t.deleted || t.running {
		t.mu.Unlock()
		return CodeInvalidState
	}
	t.deleted = true
	t.mu.Unlock()

	t.svc.remove(t)
	t.inflight.Wait()
	return nil
}

func (s *TimerService) remove(t *Timer) {
	s.mu.Lock()
	delete(s.live, t)
	s.mu.Unlock()
}

// Len returns the number of timers that have not been deleted.
func (s *TimerService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Dump writes one line per live timer: name, state and period.
func (s *TimerService) Dump(w io.Writer) error {
	s.mu.Lock()
	timers := make([]*Timer, 0, len(s.live))
	for t := range s.live {
		timers = append(timers, t)
	}
	s.mu.Unlock()

	sort.Slice(timers, func(i, j int) bool { return timers[i].name < timers[j].name })
	for _, t := range timers {
		t.mu.Lock()
		state := "idle"
		if t.running {
			state = "running"
		}
		period := t.period
		t.mu.Unlock()
		if _, err := fmt.Fprintf(w, "%-16s %-8s period=%s\n", t.name, state, period); err != nil {
			return err
		}
	}
	return nil
}

// Close stops and deletes every live timer, then rejects new timers.
func (s *TimerService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timers := make([]*Timer, 0, len(s.live))
	for t := range s.live {
		timers = append(timers, t)
	}
	s.mu.Unlock()

	var result *multierror.Error
	for _, t := range timers {
		_ = t.Stop()
		if err := t.Delete(); err != nil {
			result = multierror.Append(result, fmt.Errorf("timer %q: %w", t.name, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		s.logger.Warning().
			Str("category", categoryTimer).
			Err(err).
			Log("timer service closed with errors")
		return err
	}
	return nil
}
