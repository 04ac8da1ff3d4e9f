// Package util holds the pure, stateless primitives shared by the tracker,
// its collectors, and the transport pipeline: id generation, a bounded
// queue, sampling, throttle/debounce, and defensive JSON serialization.
package util

import "github.com/hazyhaar/utrack/idgen"

// EventID produces a time-sortable UUIDv7 for an event or batch.
var EventID = idgen.UUIDv7()

// ShortID produces a short base-36 id. The tracker does not call it:
// session and page ids come from idgen.Default (UUIDv7).
func ShortID(length int) string {
	return idgen.NanoID(length)()
}
