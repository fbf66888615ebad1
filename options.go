package eventreg

import "time"

// ErrorHandler is called when an asynchronous operation encounters an error.
type ErrorHandler func(err error)

// Option configures a Bus.
type Option func(*Bus)

// WithTimers sets the timer service used for timed registrations. Without
// it the Bus creates and owns a TimerService.
func WithTimers(t TimerAPI) Option {
	return func(b *Bus) { b.timers = t }
}

// WithCodec sets the codec used for PostData and RegisterData payloads.
func WithCodec(c Codec) Option {
	return func(b *Bus) { b.codec = c }
}

// WithErrorHandler sets the callback for asynchronous errors, such as a
// payload that RegisterData cannot decode.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Bus) { b.errorHandler = h }
}

// WithLogger sets the logger used by the Bus and the registrations it makes.
func WithLogger(l *Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithPostTimeout bounds how long a post waits for queue space when the
// caller's context has no deadline. Zero, the default, waits indefinitely.
func WithPostTimeout(d time.Duration) Option {
	return func(b *Bus) { b.postTimeout = d }
}

// LoopOption configures a Loop.
type LoopOption func(*loopOptions)

type loopOptions struct {
	name      string
	queueSize int
	manual    bool
	logger    *Logger
}

// WithQueueSize sets the capacity of the posted-event queue. Default is 32.
func WithQueueSize(n int) LoopOption {
	return func(o *loopOptions) { o.queueSize = n }
}

// WithLoopName names the loop, for logs.
func WithLoopName(name string) LoopOption {
	return func(o *loopOptions) { o.name = name }
}

// WithManualDispatch disables the dispatch goroutine; events are delivered
// only while Loop.Run is executing.
func WithManualDispatch() LoopOption {
	return func(o *loopOptions) { o.manual = true }
}

// WithLoopLogger sets the loop's logger.
func WithLoopLogger(l *Logger) LoopOption {
	return func(o *loopOptions) { o.logger = l }
}

// TimerOption configures a TimerService.
type TimerOption func(*TimerService)

// WithTimerLogger sets the timer service's logger.
func WithTimerLogger(l *Logger) TimerOption {
	return func(s *TimerService) { s.logger = l }
}

// RegisterOption configures a Registration or TimedRegistration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	logger    *Logger
	timerName string
	once      bool
}

// WithRegistrationLogger sets the logger used for teardown diagnostics.
func WithRegistrationLogger(l *Logger) RegisterOption {
	return func(o *registerOptions) { o.logger = l }
}

// WithTimerName names the deadline timer of a timed registration.
// Default is "event".
func WithTimerName(name string) RegisterOption {
	return func(o *registerOptions) { o.timerName = name }
}

// WithOnce makes a timed registration drop its subscription after the first
// delivered event, so the event callback runs at most once.
func WithOnce() RegisterOption {
	return func(o *registerOptions) { o.once = true }
}

func resolveRegisterOptions(opts []RegisterOption) registerOptions {
	o := registerOptions{timerName: "event"}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
