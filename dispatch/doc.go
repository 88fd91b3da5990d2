// Package dispatch unifies the two command transports behind one
// logical invoke surface and collapses concurrent identical read-only
// invocations into a single in-flight transport call.
//
// The in-flight map is guarded by a single mutex and mutated only
// inside Invoke; entries are removed unconditionally when the
// underlying call settles, so nothing is ever cached across requests.
package dispatch
