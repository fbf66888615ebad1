package eventreg

import (
	"context"
	"sync"
	"time"
)

// Bus is the front for one event service. It owns the defaults that
// registrations made through it share: the timer service for deadlines,
// the payload codec, the logger and the error handler.
type Bus struct {
	api          EventAPI
	timers       TimerAPI
	ownedTimers  *TimerService
	codec        Codec
	errorHandler ErrorHandler
	logger       *Logger
	postTimeout  time.Duration

	mu     sync.RWMutex
	closed bool
}

// New creates a Bus over api. Without WithTimers the Bus creates and owns a
// TimerService, which Close releases.
func New(api EventAPI, opts ...Option) (*Bus, error) {
	if api == nil {
		return nil, &ArgumentError{Op: "new bus", Arg: "api", Reason: "must not be nil"}
	}
	b := &Bus{
		api:   api,
		codec: JSONCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.postTimeout < 0 {
		return nil, &ArgumentError{Op: "new bus", Arg: "post timeout", Reason: "must not be negative"}
	}
	if b.codec == nil {
		return nil, &ArgumentError{Op: "new bus", Arg: "codec", Reason: "must not be nil"}
	}
	if b.timers == nil {
		b.ownedTimers = NewTimerService(WithTimerLogger(b.logger))
		b.timers = b.ownedTimers
	}
	return b, nil
}

// API returns the event service the Bus posts to.
func (b *Bus) API() EventAPI {
	return b.api
}

// Timers returns the timer service used for deadlines.
func (b *Bus) Timers() TimerAPI {
	return b.timers
}

// Codec returns the payload codec.
func (b *Bus) Codec() Codec {
	return b.codec
}

// Register subscribes cb to key. See Register.
func (b *Bus) Register(key EventKey, cb Callback, opts ...RegisterOption) (*Registration, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return Register(b.api, key, cb, b.registerOptions(opts)...)
}

// RegisterTimed subscribes cb to key with a deadline. See RegisterTimed.
func (b *Bus) RegisterTimed(key EventKey, cb Callback, timeout time.Duration, onTimeout TimeoutCallback, opts ...RegisterOption) (*TimedRegistration, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return RegisterTimed(b.api, b.timers, key, cb, timeout, onTimeout, b.registerOptions(opts)...)
}

// Post posts an occurrence of key without data.
func (b *Bus) Post(ctx context.Context, key EventKey) error {
	return b.PostBytes(ctx, key, nil)
}

// PostBytes posts an occurrence of key carrying a copy of data. If ctx has
// no deadline, the wait for queue space is bounded by WithPostTimeout.
func (b *Bus) PostBytes(ctx context.Context, key EventKey, data []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok && b.postTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.postTimeout)
		defer cancel()
	}
	return b.api.Post(ctx, key, data)
}

// Close rejects further use of the Bus and releases the timer service it
// created. Registrations made through the Bus are not closed. A timed
// registration still armed loses its deadline timer: it stays StateArmed,
// never times out, and keeps its subscription until closed. Close such
// registrations first.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.ownedTimers != nil {
		return b.ownedTimers.Close()
	}
	return nil
}

func (b *Bus) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// registerOptions prepends the bus logger so per-call options win.
func (b *Bus) registerOptions(opts []RegisterOption) []RegisterOption {
	if b.logger == nil {
		return opts
	}
	return append([]RegisterOption{WithRegistrationLogger(b.logger)}, opts...)
}

// reportError calls the configured ErrorHandler, if any, and logs err.
func (b *Bus) reportError(err error) {
	b.logger.Err().
		Str("category", categoryRegistration).
		Err(err).
		Log("asynchronous error")
	if b.errorHandler != nil {
		b.errorHandler(err)
	}
}
