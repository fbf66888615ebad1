package eventreg

import (
	"context"
	"fmt"
	"time"
)

// PostData encodes v with the bus codec and posts it as the occurrence's data.
func PostData[T any](ctx context.Context, bus *Bus, key EventKey, v T) error {
	data, err := bus.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("eventreg: encode %s: %w", key, err)
	}
	return bus.PostBytes(ctx, key, data)
}

// RegisterData subscribes handler to key, decoding each occurrence's data
// into a T. An occurrence that cannot be decoded is reported to the bus
// error handler and not delivered.
func RegisterData[T any](bus *Bus, key EventKey, handler func(key EventKey, v T), opts ...RegisterOption) (*Registration, error) {
	if handler == nil {
		return nil, &ArgumentError{Op: "register data", Arg: "handler", Reason: "must not be nil"}
	}
	return bus.Register(key, decoding(bus, handler), opts...)
}

// RegisterTimedData is RegisterData with a deadline. A payload that fails to
// decode still counts as the event winning.
func RegisterTimedData[T any](bus *Bus, key EventKey, handler func(key EventKey, v T), timeout time.Duration, onTimeout TimeoutCallback, opts ...RegisterOption) (*TimedRegistration, error) {
	if handler == nil {
		return nil, &ArgumentError{Op: "register data", Arg: "handler", Reason: "must not be nil"}
	}
	return bus.RegisterTimed(key, decoding(bus, handler), timeout, onTimeout, opts...)
}

func decoding[T any](bus *Bus, handler func(key EventKey, v T)) Callback {
	return func(key EventKey, data []byte) {
		var v T
		if err := bus.codec.Unmarshal(data, &v); err != nil {
			bus.reportError(fmt.Errorf("eventreg: decode %s: %w", key, err))
			return
		}
		handler(key, v)
	}
}
