package eventreg

import "sync"

// Callback receives each delivered occurrence. data is owned by the event
// service and must not be retained after the call returns.
type Callback func(key EventKey, data []byte)

// Registration binds one Callback to one EventKey until Close is called.
type Registration struct {
	api    EventAPI
	key    EventKey
	cb     Callback
	logger *Logger

	mu           sync.Mutex
	inst         HandlerInstance
	subscribed   bool
	unregistered bool
	pending      bool // unregister requested before subscribe returned
}

// Register subscribes cb to occurrences of key on api.
//
// On failure no subscription exists. A rejection by api is reported as a
// *RegisterError carrying key.
func Register(api EventAPI, key EventKey, cb Callback, opts ...RegisterOption) (*Registration, error) {
	if cb == nil {
		return nil, &ArgumentError{Op: "register", Arg: "callback", Reason: "must not be nil"}
	}
	if api == nil {
		return nil, &ArgumentError{Op: "register", Arg: "api", Reason: "must not be nil"}
	}
	r := &Registration{}
	r.init(api, key, cb, resolveRegisterOptions(opts))
	if err := r.subscribe(r.dispatch); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registration) init(api EventAPI, key EventKey, cb Callback, o registerOptions) {
	r.api = api
	r.key = key
	r.cb = cb
	r.logger = o.logger
}

// subscribe hands the trampoline h to the event service.
func (r *Registration) subscribe(h Handler) error {
	inst, err := r.api.RegisterHandler(r.key, h)
	if err != nil {
		return &RegisterError{Op: "register", Key: r.key, Code: codeOf(err)}
	}
	r.mu.Lock()
	r.inst = inst
	r.subscribed = true
	pending := r.pending
	r.mu.Unlock()
	if pending {
		r.unregister()
	}
	return nil
}

func (r *Registration) dispatch(key EventKey, data []byte) {
	r.cb(key, data)
}

// Key returns the key the registration was made with.
func (r *Registration) Key() EventKey {
	return r.key
}

// Close unregisters the callback. It is safe to call more than once, and
// from within the callback itself. A failure to unregister is logged, never
// returned.
func (r *Registration) Close() {
	if r == nil {
		return
	}
	r.unregister()
}

// unregister issues the single unregister call for this registration. If
// the handler instance is not known yet, the call is deferred to subscribe.
func (r *Registration) unregister() {
	r.mu.Lock()
	if r.unregistered {
		r.mu.Unlock()
		return
	}
	if !r.subscribed {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.unregistered = true
	inst := r.inst
	r.mu.Unlock()

	if err := r.api.UnregisterHandler(r.key, inst); err != nil {
		logTeardown(r.logger, categoryRegistration, &TeardownError{Op: "unregister", Key: r.key, Err: err})
	}
}
