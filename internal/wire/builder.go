package wire

// Interface describes an externally reachable middleware interface the
// simulator announces after a handshake.
type Interface struct {
	Host      string
	Port      int
	TimeoutMS int
}

// Builder produces canned envelopes bound to one handshake context:
// the simulator's sender identity, the peer target identity, and the
// application identity the envelopes advertise. A fresh builder is
// constructed for every successful Register exchange.
type Builder struct {
	sender  string
	target  string
	app     string
	version string
}

func NewBuilder(sender, target, app, version string) *Builder {
	return &Builder{
		sender:  sender,
		target:  target,
		app:     app,
		version: version,
	}
}

func (b *Builder) base(kind Kind) *Message {
	return &Message{
		Kind:    kind,
		Sender:  b.sender,
		Target:  b.target,
		App:     b.app,
		Version: b.version,
	}
}

// AcceptMessage is the reply to Register, Connected, Unregister and Idle
// envelopes.
func (b *Builder) AcceptMessage() *Message {
	return b.base(KindAccept)
}

// StopMessage is the shutdown envelope sent on the outbound path.
func (b *Builder) StopMessage() *Message {
	return b.base(KindStop)
}

// SegmentedMessage wraps a popped outbound message into the Convert reply
// envelope, preserving segment order.
func (b *Builder) SegmentedMessage(m *Message) *Message {
	out := b.base(KindSegmented)
	out.Segments = m.CloneSegments()
	return out
}

// InterfaceMessage is the post-handshake announcement. A nil ext yields
// the internal-interface variant; otherwise the external variant names
// the configured interface address.
func (b *Builder) InterfaceMessage(ext *Interface) *Message {
	out := b.base(KindInterface)
	if ext != nil {
		out.Host = ext.Host
		out.Port = ext.Port
		out.TimeoutMS = ext.TimeoutMS
	}
	return out
}
