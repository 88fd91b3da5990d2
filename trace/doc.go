// Package trace defines the wire types carried on the backend's push
// stream: data records (trace spans) and lag notices, discriminated by
// the "type" field of each JSON payload.
package trace
