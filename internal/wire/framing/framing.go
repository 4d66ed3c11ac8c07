// Package framing accumulates stream bytes into one envelope at a time.
// Exactly one complete envelope's worth of bytes fits between resets;
// the owner must Reset after handling a complete buffer.
package framing

import "errors"

// Terminator closes one envelope on the wire. It is not part of the
// accumulated text.
const Terminator byte = '\n'

var (
	ErrEnvelopeTooLarge = errors.New("framing: envelope exceeds limit")
	ErrBufferComplete   = errors.New("framing: write into complete buffer")
)

// Limits constrains accumulation memory use.
type Limits struct {
	MaxEnvelopeBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxEnvelopeBytes: 64 * 1024}
}

// Buffer accumulates bytes until a terminator arrives. A peer that never
// terminates leaves the buffer accumulating up to the configured limit;
// there is no flush.
type Buffer struct {
	limits   Limits
	data     []byte
	complete bool
}

func NewBuffer(limits Limits) *Buffer {
	if limits.MaxEnvelopeBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Buffer{limits: limits}
}

// WriteByte appends one stream byte. Writing into a complete, un-reset
// buffer fails.
func (b *Buffer) WriteByte(c byte) error {
	if b.complete {
		return ErrBufferComplete
	}
	if c == Terminator {
		b.complete = true
		return nil
	}
	if len(b.data) >= b.limits.MaxEnvelopeBytes {
		return ErrEnvelopeTooLarge
	}
	b.data = append(b.data, c)
	return nil
}

// Complete reports whether one full envelope has accumulated.
func (b *Buffer) Complete() bool {
	return b.complete
}

// Text returns the accumulated envelope text without the terminator.
func (b *Buffer) Text() string {
	return string(b.data)
}

// Reset prepares the buffer for the next envelope.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.complete = false
}
