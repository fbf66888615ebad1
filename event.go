package eventreg

import (
	"fmt"
)

// EventBase names an event source, e.g. "WIFI_EVENT".
type EventBase string

// EventID identifies an event within its base.
type EventID int32

const (
	// AnyBase matches every event base when used in a registration key.
	AnyBase EventBase = ""

	// AnyID matches every event ID when used in a registration key.
	AnyID EventID = -1
)

// EventKey bundles an event base and an event ID.
// It is the routing key for registrations and posts.
type EventKey struct {
	Base EventBase
	ID   EventID
}

// Key is shorthand for EventKey{Base: base, ID: id}.
func Key(base EventBase, id EventID) EventKey {
	return EventKey{Base: base, ID: id}
}

// Matches reports whether an occurrence posted with key posted should be
// delivered to a registration made with k.
func (k EventKey) Matches(posted EventKey) bool {
	return (k.Base == AnyBase || k.Base == posted.Base) &&
		(k.ID == AnyID || k.ID == posted.ID)
}

// IsWildcard reports whether either component of k is a wildcard.
func (k EventKey) IsWildcard() bool {
	return k.Base == AnyBase || k.ID == AnyID
}

func (k EventKey) String() string {
	base := string(k.Base)
	if k.Base == AnyBase {
		base = "*"
	}
	if k.ID == AnyID {
		return base + "/*"
	}
	return fmt.Sprintf("%s/%d", base, k.ID)
}

// validRegistrationKey rejects a specific ID under the wildcard base, which
// cannot be routed.
func validRegistrationKey(k EventKey) bool {
	return k.Base != AnyBase || k.ID == AnyID
}
