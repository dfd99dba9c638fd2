package xloop

import (
	"reflect"
	"time"
)

// envelope is the unit traveling the async queue: a type-erased payload plus
// its dispatch attributes. Sync envelopes never enter the queue; they are
// dispatched inline at the publish site.
type envelope struct {
	// ID is a unique envelope identifier for telemetry (assigned when
	// envelope IDs are enabled).
	id string
	// etype is the registry lookup token: the payload's runtime type.
	etype reflect.Type
	// payload is the user value, downcast again inside each subscription shim.
	payload any

	priority Priority
	mode     DeliveryMode
	// producedAt is the publication timestamp (from the injected clock).
	producedAt time.Time
}
