package eventreg

import (
	"fmt"
	"time"
)

// MinTimeout is the shortest deadline a TimedRegistration accepts. Shorter
// deadlines can expire before the timer could be stopped reliably.
const MinTimeout = 200 * time.Microsecond

// TimeoutCallback is called once if the awaited event does not arrive in time.
type TimeoutCallback func(key EventKey)

// TimedRegistration is a Registration with a deadline.
//
// If an event matching the key arrives before the deadline, the event
// callback runs and the deadline is cancelled. Otherwise the timeout callback
// runs once and the subscription is dropped. Exactly one of the two kinds of
// callback can ever run, even when the event and the deadline race.
//
// After the event wins the subscription stays active and later occurrences
// keep reaching the event callback, unless WithOnce was given.
type TimedRegistration struct {
	reg       Registration
	onTimeout TimeoutCallback
	timeout   time.Duration
	once      bool
	gate      gate

	// written during construction before the gate opens, then only by the
	// winning trampoline or by Close
	timer TimerHandle
	armed bool
}

// RegisterTimed subscribes cb to key on api and arms a deadline of timeout
// on timers, calling onTimeout if no event arrives first.
//
// Arguments are validated before anything is registered. If creating or
// arming the timer fails, everything done so far is undone and a
// *RegisterError is returned.
func RegisterTimed(api EventAPI, timers TimerAPI, key EventKey, cb Callback, timeout time.Duration, onTimeout TimeoutCallback, opts ...RegisterOption) (*TimedRegistration, error) {
	const op = "register timed"
	switch {
	case cb == nil:
		return nil, &ArgumentError{Op: op, Arg: "callback", Reason: "must not be nil"}
	case onTimeout == nil:
		return nil, &ArgumentError{Op: op, Arg: "timeout callback", Reason: "must not be nil"}
	case api == nil:
		return nil, &ArgumentError{Op: op, Arg: "api", Reason: "must not be nil"}
	case timers == nil:
		return nil, &ArgumentError{Op: op, Arg: "timers", Reason: "must not be nil"}
	case timeout < MinTimeout:
		return nil, &ArgumentError{Op: op, Arg: "timeout", Reason: fmt.Sprintf("%s is below the minimum of %s", timeout, MinTimeout)}
	}

	o := resolveRegisterOptions(opts)
	tr := &TimedRegistration{
		onTimeout: onTimeout,
		timeout:   timeout,
		once:      o.once,
	}
	tr.reg.init(api, key, cb, o)

	// Events are dropped until the deadline is armed. The deadline itself
	// may fire before the registration leaves the pending state.
	tr.gate.state.Store(int32(statePending))

	if err := tr.reg.subscribe(tr.dispatchEvent); err != nil {
		tr.gate.state.Store(int32(StateTornDown))
		return nil, err
	}

	h, err := timers.CreateTimer(o.timerName, tr.dispatchTimeout)
	if err != nil {
		tr.gate.state.Store(int32(StateTornDown))
		tr.reg.unregister()
		return nil, &RegisterError{Op: "create timer", Key: key, Code: codeOf(err)}
	}

	tr.timer = h
	tr.armed = true
	if err := h.StartOnce(timeout); err != nil {
		tr.gate.state.Store(int32(StateTornDown))
		tr.timer = nil
		tr.armed = false
		if derr := h.Delete(); derr != nil {
			logTeardown(tr.reg.logger, categoryRegistration, &TeardownError{Op: "delete timer", Key: key, Err: derr})
		}
		tr.reg.unregister()
		return nil, &RegisterError{Op: "start timer", Key: key, Code: codeOf(err)}
	}
	tr.gate.advance(statePending, StateArmed)
	return tr, nil
}

// Key returns the key the registration was made with.
func (tr *TimedRegistration) Key() EventKey {
	return tr.reg.key
}

// Timeout returns the deadline the registration was armed with.
func (tr *TimedRegistration) Timeout() time.Duration {
	return tr.timeout
}

// State reports which side, if any, has won.
func (tr *TimedRegistration) State() State {
	return tr.gate.load()
}

func (tr *TimedRegistration) dispatchEvent(key EventKey, data []byte) {
	if !tr.gate.enter() {
		return
	}
	defer tr.gate.leave()

	if tr.gate.win(StateEventWon) {
		tr.stopTimer()
		if tr.once {
			defer tr.reg.unregister()
		}
	} else if tr.once || tr.gate.load() != StateEventWon {
		return
	}
	tr.reg.cb(key, data)
}

func (tr *TimedRegistration) dispatchTimeout() {
	if !tr.gate.enter() {
		return
	}
	defer tr.gate.leave()

	if !tr.gate.win(StateTimeoutWon) && !tr.gate.advance(statePending, StateTimeoutWon) {
		return
	}
	tr.armed = false
	tr.onTimeout(tr.reg.key)
	tr.reg.unregister()
}

// stopTimer disarms the deadline. A timer that already fired is tolerated:
// its trampoline loses at the gate.
func (tr *TimedRegistration) stopTimer() {
	if tr.timer == nil || !tr.armed {
		return
	}
	tr.armed = false
	if err := tr.timer.Stop(); err != nil {
		tr.reg.logger.Debug().
			Str("category", categoryRegistration).
			Stringer("key", tr.reg.key).
			Err(err).
			Log("deadline already elapsed")
	}
}

// Close cancels the deadline and the subscription. Neither callback can
// start once Close returns. If a callback is running, Close waits for it, so
// Close must not be called from the registration's own callbacks.
func (tr *TimedRegistration) Close() {
	if tr == nil {
		return
	}
	if prev := tr.gate.close(); prev != StateTornDown {
		if tr.timer != nil {
			if tr.armed {
				_ = tr.timer.Stop()
				tr.armed = false
			}
			if err := tr.timer.Delete(); err != nil {
				logTeardown(tr.reg.logger, categoryRegistration, &TeardownError{Op: "delete timer", Key: tr.reg.key, Err: err})
			}
			tr.timer = nil
		}
	}
	tr.gate.release()
	tr.reg.unregister()
}
