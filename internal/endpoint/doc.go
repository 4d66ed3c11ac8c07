// Package endpoint owns the byte-stream primitives under the protocol
// layer.
//
// Ownership boundary:
// - channel abstraction over net.Conn
// - server accept loop with per-byte delivery callbacks
// - pluggable outbound connection factory
package endpoint
