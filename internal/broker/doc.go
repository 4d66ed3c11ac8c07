// Package broker owns the connection/role orchestration for the
// middleware simulator.
//
// Ownership boundary:
// - inbound listening endpoint and queue pair
// - handshake-derived outbound target and envelope builder
// - per-connection protocol controllers
//
// The broker holds the only mutable state shared between the long-lived
// inbound controller and the fresh outbound controller each send
// creates; that state is mutex-guarded here and nowhere else.
package broker
