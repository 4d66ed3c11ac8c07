package wire

import (
	"fmt"
	"strings"
)

// Segment is one ordered field group inside a Message. Field contents
// are opaque to the simulator; only order is significant.
type Segment struct {
	Fields []string
}

// NewSegment builds a segment from its ordered fields.
func NewSegment(fields ...string) Segment {
	return Segment{Fields: append([]string(nil), fields...)}
}

// Message is one protocol exchange: an ordered segment sequence plus the
// identities the envelope carries. Treat it as immutable once built;
// ownership transfers to the caller when a queue pops it.
type Message struct {
	Kind      Kind
	Sender    string
	Target    string
	App       string
	Version   string
	Host      string
	Port      int
	TimeoutMS int
	Segments  []Segment
}

func (m *Message) Validate() error {
	if m == nil {
		return ErrInvalidEnvelope
	}
	if strings.TrimSpace(m.Sender) == "" {
		return ErrMissingSender
	}
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", ErrInvalidEnvelope, m.Port)
	}
	return nil
}

// CloneSegments returns a defensive copy of the segment sequence in order.
func (m *Message) CloneSegments() []Segment {
	if m == nil || len(m.Segments) == 0 {
		return nil
	}
	out := make([]Segment, 0, len(m.Segments))
	for _, seg := range m.Segments {
		out = append(out, NewSegment(seg.Fields...))
	}
	return out
}

// NewConvertMessage builds a Convert-kind message from raw segments using
// the given sender identity. This is the queue push build path.
func NewConvertMessage(sender string, segments []Segment) (*Message, error) {
	if strings.TrimSpace(sender) == "" {
		return nil, ErrMissingSender
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty segment sequence", ErrInvalidEnvelope)
	}
	m := &Message{
		Kind:   KindConvert,
		Sender: sender,
	}
	for _, seg := range segments {
		m.Segments = append(m.Segments, NewSegment(seg.Fields...))
	}
	return m, nil
}
