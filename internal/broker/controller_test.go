package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/simctl/internal/endpoint"
	"github.com/danmuck/simctl/internal/queue"
	"github.com/danmuck/simctl/internal/testutil/testlog"
	"github.com/danmuck/simctl/internal/wire"
	"github.com/danmuck/simctl/internal/wire/framing"
	"github.com/rs/zerolog"
)

type fakeChannel struct {
	id string

	mu     sync.Mutex
	writes []string
	closed bool
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, strings.TrimSuffix(string(p), string(framing.Terminator)))
	return len(p), nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) RemoteAddr() string { return "fake" }

func (f *fakeChannel) envelopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

type fakeDialer struct {
	mu       sync.Mutex
	addrs    []string
	channels []*fakeChannel
}

func (d *fakeDialer) Dial(_ context.Context, addr string, _ endpoint.Handler) (endpoint.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := &fakeChannel{id: fmt.Sprintf("out-%d", len(d.channels))}
	d.addrs = append(d.addrs, addr)
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addrs)
}

func newTestBroker(t *testing.T, logger zerolog.Logger, external *wire.Interface) (*Broker, *fakeDialer) {
	t.Helper()
	fd := &fakeDialer{}
	cfg := Config{
		ListenPort: 0,
		Sender:     "middleware.local",
		AppName:    "simctl",
		AppVersion: "0.0.1",
		External:   external,
		Dialer:     fd,
	}
	b, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("new broker: %v", err)
	}
	return b, fd
}

func feedEnvelope(t *testing.T, c *Controller, ch endpoint.Channel, m *wire.Message) {
	t.Helper()
	text, err := wire.MessageToURL(m)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	feedText(c, ch, text)
}

func feedText(c *Controller, ch endpoint.Channel, text string) {
	for i := 0; i < len(text); i++ {
		c.HandleByte(ch, text[i])
	}
	c.HandleByte(ch, framing.Terminator)
}

func decodeReply(t *testing.T, text string) *wire.Message {
	t.Helper()
	m, err := wire.URLToMessage(text)
	if err != nil {
		t.Fatalf("decode reply %q: %v", text, err)
	}
	return m
}

func TestRegisterExchange(t *testing.T) {
	logger := testlog.Start(t)
	b, fd := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedEnvelope(t, c, ch, &wire.Message{
		Kind:   wire.KindRegister,
		Sender: "translator.alpha",
		Host:   "127.0.0.1",
		Port:   7020,
	})

	replies := ch.envelopes()
	if len(replies) != 1 {
		t.Fatalf("expected exactly one reply, got %d: %v", len(replies), replies)
	}
	if m := decodeReply(t, replies[0]); m.Kind != wire.KindAccept {
		t.Fatalf("reply kind = %v, want Accept", m.Kind)
	}

	snap := b.Snapshot()
	if !snap.Handshaked || snap.Target != "translator.alpha" {
		t.Fatalf("handshake context not stored: %+v", snap)
	}
	if snap.OutgoingHost != "127.0.0.1" || snap.OutgoingPort != 7020 {
		t.Fatalf("advertised interface not stored: %+v", snap)
	}

	// the registration flag fires exactly one announcement on the
	// outbound path, after the dispatch cycle
	if fd.dials() != 1 {
		t.Fatalf("expected one outbound dial, got %d", fd.dials())
	}
	if fd.addrs[0] != "127.0.0.1:7020" {
		t.Fatalf("announced to wrong address: %q", fd.addrs[0])
	}
	outWrites := fd.channels[0].envelopes()
	if len(outWrites) != 1 {
		t.Fatalf("expected one announcement envelope, got %d", len(outWrites))
	}
	ann := decodeReply(t, outWrites[0])
	if ann.Kind != wire.KindInterface || ann.Host != "" || ann.Port != 0 {
		t.Fatalf("expected internal-interface variant, got %+v", ann)
	}

	// the flag clears: an Idle envelope answers Accept without another
	// announcement
	feedEnvelope(t, c, ch, &wire.Message{Kind: wire.KindIdle, Sender: "translator.alpha"})
	if fd.dials() != 1 {
		t.Fatalf("idle dispatch re-announced: dials=%d", fd.dials())
	}
	if len(ch.envelopes()) != 2 {
		t.Fatalf("idle dispatch reply count = %d, want 2", len(ch.envelopes()))
	}
}

func TestRegisterAnnouncesExternalInterface(t *testing.T) {
	logger := testlog.Start(t)
	ext := &wire.Interface{Host: "10.1.2.3", Port: 7500, TimeoutMS: 3000}
	b, fd := newTestBroker(t, logger, ext)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedEnvelope(t, c, ch, &wire.Message{
		Kind:   wire.KindRegister,
		Sender: "translator.alpha",
		Host:   "127.0.0.1",
		Port:   7020,
	})

	if fd.dials() != 1 {
		t.Fatalf("expected one announcement dial, got %d", fd.dials())
	}
	ann := decodeReply(t, fd.channels[0].envelopes()[0])
	if ann.Kind != wire.KindInterface || ann.Host != "10.1.2.3" || ann.Port != 7500 || ann.TimeoutMS != 3000 {
		t.Fatalf("expected external-interface variant, got %+v", ann)
	}
}

// Unregister classifies through the Register probe, but without an
// advertised interface there are no handshake side effects.
func TestUnregisterAnswersAcceptWithoutHandshake(t *testing.T) {
	logger := testlog.Start(t)
	b, fd := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedEnvelope(t, c, ch, &wire.Message{Kind: wire.KindUnregister, Sender: "translator.alpha"})

	replies := ch.envelopes()
	if len(replies) != 1 {
		t.Fatalf("expected one Accept, got %d", len(replies))
	}
	if m := decodeReply(t, replies[0]); m.Kind != wire.KindAccept {
		t.Fatalf("reply kind = %v, want Accept", m.Kind)
	}
	if b.Snapshot().Handshaked {
		t.Fatal("unregister must not complete a handshake")
	}
	if fd.dials() != 0 {
		t.Fatalf("unregister must not announce: dials=%d", fd.dials())
	}
}

func TestConnectedAndIdleAnswerAccept(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	for _, kind := range []wire.Kind{wire.KindConnected, wire.KindIdle} {
		feedEnvelope(t, c, ch, &wire.Message{Kind: kind, Sender: "translator.alpha"})
	}
	replies := ch.envelopes()
	if len(replies) != 2 {
		t.Fatalf("expected two Accept replies, got %d", len(replies))
	}
	for i, raw := range replies {
		if m := decodeReply(t, raw); m.Kind != wire.KindAccept {
			t.Fatalf("reply %d kind = %v, want Accept", i, m.Kind)
		}
	}
}

func TestConvertExchange(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	queued := []wire.Segment{wire.NewSegment("OBR", "1"), wire.NewSegment("OBX", "2")}
	if err := b.Outgoing.Push(queue.SegmentsElement(queued)); err != nil {
		t.Fatalf("queue outbound work: %v", err)
	}

	feedEnvelope(t, c, ch, &wire.Message{
		Kind:   wire.KindConvert,
		Sender: "translator.alpha",
		Segments: []wire.Segment{
			wire.NewSegment("H", "result"),
			wire.NewSegment("R", "42"),
		},
	})

	// (a) decoded inbound message recorded in order
	in := b.Incoming.Pop()
	if in == nil {
		t.Fatal("incoming queue empty after convert")
	}
	if len(in.Segments) != 2 || in.Segments[0].Fields[0] != "H" || in.Segments[1].Fields[0] != "R" {
		t.Fatalf("inbound segment order lost: %+v", in.Segments)
	}

	// (b) exactly the queued message removed
	if !b.Outgoing.Empty() {
		t.Fatalf("outgoing queue depth = %d, want 0", b.Outgoing.Len())
	}

	// (c) one Segmented reply wrapping the popped message
	replies := ch.envelopes()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	reply := decodeReply(t, replies[0])
	if reply.Kind != wire.KindSegmented {
		t.Fatalf("reply kind = %v, want Segmented", reply.Kind)
	}
	if len(reply.Segments) != 2 || reply.Segments[0].Fields[0] != "OBR" || reply.Segments[1].Fields[0] != "OBX" {
		t.Fatalf("reply does not wrap queued message: %+v", reply.Segments)
	}
}

func TestConvertWithEmptyOutboundQueue(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedEnvelope(t, c, ch, &wire.Message{
		Kind:     wire.KindConvert,
		Sender:   "translator.alpha",
		Segments: []wire.Segment{wire.NewSegment("H")},
	})

	if len(ch.envelopes()) != 0 {
		t.Fatalf("convert on empty outbound queue must not reply: %v", ch.envelopes())
	}
	if !b.Incoming.Empty() {
		t.Fatal("inbound queue must stay untouched on aborted convert")
	}
}

func TestUnrecognizedMnemonicIsConsumedSilently(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedText(c, ch, "lab://middleware.local/Heartbeat?sender=translator.alpha")
	if len(ch.envelopes()) != 0 {
		t.Fatalf("unknown marker produced a reply: %v", ch.envelopes())
	}

	// buffer was reset: the next envelope still dispatches
	feedEnvelope(t, c, ch, &wire.Message{Kind: wire.KindIdle, Sender: "translator.alpha"})
	replies := ch.envelopes()
	if len(replies) != 1 {
		t.Fatalf("buffer not ready after unknown envelope: %v", replies)
	}
	if m := decodeReply(t, replies[0]); m.Kind != wire.KindAccept {
		t.Fatalf("reply kind = %v, want Accept", m.Kind)
	}
}

func TestInboundAcceptAndStopProduceNoReply(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	feedEnvelope(t, c, ch, &wire.Message{Kind: wire.KindAccept, Sender: "translator.alpha"})
	feedEnvelope(t, c, ch, &wire.Message{Kind: wire.KindStop, Sender: "translator.alpha"})
	if len(ch.envelopes()) != 0 {
		t.Fatalf("accept/stop must not be answered: %v", ch.envelopes())
	}
}

func TestHandleErrorDoesNotDisturbFraming(t *testing.T) {
	logger := testlog.Start(t)
	b, _ := newTestBroker(t, logger, nil)
	c := newController(b, logger)
	ch := &fakeChannel{id: "in-0"}

	c.HandleByte(ch, 'l')
	c.HandleError(ch, endpoint.Error{Code: endpoint.CodeReadFailure, Message: "reset by peer", Source: "server"})

	// the fault is logged only; accumulation continues
	feedText(c, ch, "ab://middleware.local/Idle?sender=translator.alpha")
	replies := ch.envelopes()
	if len(replies) != 1 {
		t.Fatalf("expected one Accept after fault, got %d", len(replies))
	}
}
