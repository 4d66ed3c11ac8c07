// Package wire owns the envelope contract between the simulator and a
// peer translator process.
//
// Ownership boundary:
// - Message/Segment data model
// - mnemonic classification grammar
// - URL text codec
// - canned envelope builder
package wire
