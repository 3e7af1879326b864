// Package codec moves columnar batches across the host/guest boundary.
//
// A batch is an arrow.Record encoded as a single Arrow IPC stream: the schema
// message, one record batch message and the end-of-stream marker. The stream
// carries its own schema, so host and guest, compiled independently, need no
// shared type metadata.
//
// The package is stateless and used by both sides of the boundary. Decode
// failures are returned as codec errors (errors.KindInvalidData) and are never
// confused with failures reported by the guest function itself.
package codec
