package eventreg

import (
	"context"
	"time"
)

// Handler is the trampoline an EventAPI invokes for each matching
// occurrence, on the service's own dispatch goroutine. The data slice is
// owned by the service and is only valid for the duration of the call.
type Handler func(key EventKey, data []byte)

// HandlerInstance identifies one handler registration within an EventAPI.
type HandlerInstance uint64

// EventAPI abstracts the event subsystem a registration subscribes to.
type EventAPI interface {
	// RegisterHandler subscribes h to occurrences matching key.
	RegisterHandler(key EventKey, h Handler) (HandlerInstance, error)
	// UnregisterHandler removes a subscription made by RegisterHandler.
	UnregisterHandler(key EventKey, inst HandlerInstance) error
	// Post queues an occurrence of key; data is copied.
	Post(ctx context.Context, key EventKey, data []byte) error
}

// TimerAPI abstracts the timer subsystem used for registration deadlines.
type TimerAPI interface {
	// CreateTimer creates an idle timer which calls fn each time it fires.
	CreateTimer(name string, fn func()) (TimerHandle, error)
}

// TimerHandle controls a single timer created by a TimerAPI.
type TimerHandle interface {
	StartOnce(d time.Duration) error
	StartPeriodic(period time.Duration) error
	// Stop disarms a running timer. It fails with CodeInvalidState if the
	// timer is not running, e.g. because a one-shot already fired.
	Stop() error
	// Delete releases the timer. The timer must not be running.
	Delete() error
}
