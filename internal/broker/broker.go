package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/simctl/internal/endpoint"
	"github.com/danmuck/simctl/internal/queue"
	"github.com/danmuck/simctl/internal/wire"
	"github.com/danmuck/simctl/internal/wire/framing"
	"github.com/rs/zerolog"
)

// Config is the broker construction surface. Supplying External selects
// the listen+announce role; leaving it nil selects listen-only.
type Config struct {
	ListenPort  int
	Sender      string
	AppName     string
	AppVersion  string
	External    *wire.Interface
	Dialer      endpoint.Dialer
	DialTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenPort:  6020,
		Sender:      "simctl",
		AppName:     "simctl",
		AppVersion:  "0.0.1",
		DialTimeout: 5 * time.Second,
	}
}

// Broker owns the inbound listening endpoint, the queue pair, and the
// handshake context a Register exchange populates. One broker lives per
// test session.
type Broker struct {
	cfg    Config
	logger zerolog.Logger

	// Incoming collects decoded Convert results; Outgoing holds work a
	// test script queues for the next Convert exchange. Both live for
	// the broker's lifetime and are cleared only by the caller.
	Incoming *queue.MessageQueue
	Outgoing *queue.MessageQueue

	server *endpoint.Server
	dialer endpoint.Dialer

	mu       sync.Mutex
	target   string
	outHost  string
	outPort  int
	builder  *wire.Builder
	outbound endpoint.Channel
}

func New(cfg Config, logger zerolog.Logger) (*Broker, error) {
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, ErrSenderRequired
	}
	if cfg.ListenPort < 0 || cfg.ListenPort > 65535 {
		return nil, fmt.Errorf("broker: listen port out of range: %d", cfg.ListenPort)
	}
	b := &Broker{
		cfg:      cfg,
		logger:   logger,
		Incoming: queue.New("incoming", cfg.Sender, logger),
		Outgoing: queue.New("outgoing", cfg.Sender, logger),
		dialer:   cfg.Dialer,
	}
	if b.dialer == nil {
		b.dialer = endpoint.NetDialer{Timeout: cfg.DialTimeout, Logger: logger}
	}
	addr := ":" + strconv.Itoa(cfg.ListenPort)
	b.server = endpoint.NewServer(addr, b.acceptChannel, logger)
	return b, nil
}

// acceptChannel hands every inbound connection a fresh controller.
func (b *Broker) acceptChannel(ch endpoint.Channel) endpoint.Handler {
	return newController(b, b.logger.With().Str("channel", ch.ID()).Logger())
}

// Start binds the listen socket and returns once established;
// connections are handled asynchronously until ctx is done.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.server.Listen(); err != nil {
		return err
	}
	go func() {
		if err := b.server.Serve(ctx); err != nil {
			b.logger.Error().Err(err).Msg("broker serve terminated")
		}
	}()
	b.logger.Info().
		Str("role", b.Role()).
		Str("sender", b.cfg.Sender).
		Msg("broker started")
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (b *Broker) Addr() net.Addr {
	return b.server.Addr()
}

// Stop sends a Stop envelope on the outbound path, then disconnects the
// inbound endpoint, then the outbound channel, in that order. It fails
// with ErrHandshakeRequired when no Register exchange ever completed;
// no partial shutdown is performed in that case.
func (b *Broker) Stop(ctx context.Context) error {
	b.mu.Lock()
	builder := b.builder
	b.mu.Unlock()
	if builder == nil {
		return ErrHandshakeRequired
	}
	if err := b.Send(ctx, builder.StopMessage()); err != nil {
		return err
	}
	if err := b.server.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("inbound endpoint close")
	}
	b.mu.Lock()
	outbound := b.outbound
	b.outbound = nil
	b.mu.Unlock()
	if outbound != nil {
		_ = outbound.Close()
	}
	b.logger.Info().Msg("broker stopped")
	return nil
}

// Send writes one envelope on a brand-new outbound connection. The
// outgoing address must already be known from a prior handshake;
// otherwise it fails with ErrMissingOutgoingAddress before any I/O.
// Connections are not reused across calls.
func (b *Broker) Send(ctx context.Context, m *wire.Message) error {
	b.mu.Lock()
	host, port := b.outHost, b.outPort
	b.mu.Unlock()
	if host == "" || port == 0 {
		return ErrMissingOutgoingAddress
	}

	text, err := wire.MessageToURL(m)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ctrl := newController(b, b.logger.With().Str("direction", "outbound").Logger())
	ch, err := b.dialer.Dial(ctx, addr, ctrl)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.outbound = ch
	b.mu.Unlock()

	if _, err := ch.Write(append([]byte(text), framing.Terminator)); err != nil {
		return err
	}
	b.logger.Debug().
		Stringer("kind", m.Kind).
		Str("addr", addr).
		Str("channel", ch.ID()).
		Msg("envelope sent")
	return nil
}

// NextOutgoingMessage pops the outbound queue. Callers must pre-populate
// the queue before triggering a Convert exchange; there is no blocking.
func (b *Broker) NextOutgoingMessage() (*wire.Message, error) {
	m := b.Outgoing.Pop()
	if m == nil {
		return nil, queue.ErrNoMessageQueued
	}
	return m, nil
}

// BuildInterfaceMessage returns the internal-interface announcement, or
// the external variant when an external interface is configured.
func (b *Broker) BuildInterfaceMessage() (*wire.Message, error) {
	b.mu.Lock()
	builder := b.builder
	b.mu.Unlock()
	if builder == nil {
		return nil, ErrHandshakeRequired
	}
	return builder.InterfaceMessage(b.cfg.External), nil
}

// Role reports the behaviorally binary connection role.
func (b *Broker) Role() string {
	if b.cfg.External != nil {
		return "listen-announce"
	}
	return "listen-only"
}

// Snapshot is the status surface consumed by the harness front end.
type Snapshot struct {
	Role          string `json:"role"`
	Handshaked    bool   `json:"handshaked"`
	Target        string `json:"target,omitempty"`
	OutgoingHost  string `json:"outgoing_host,omitempty"`
	OutgoingPort  int    `json:"outgoing_port,omitempty"`
	IncomingDepth int    `json:"incoming_depth"`
	OutgoingDepth int    `json:"outgoing_depth"`
}

func (b *Broker) Snapshot() Snapshot {
	b.mu.Lock()
	snap := Snapshot{
		Role:         b.Role(),
		Handshaked:   b.builder != nil,
		Target:       b.target,
		OutgoingHost: b.outHost,
		OutgoingPort: b.outPort,
	}
	b.mu.Unlock()
	snap.IncomingDepth = b.Incoming.Len()
	snap.OutgoingDepth = b.Outgoing.Len()
	return snap
}

// completeHandshake stores the peer's advertised interface and binds a
// fresh envelope builder. Called once per successful Register exchange;
// a later Register replaces the context wholesale.
func (b *Broker) completeHandshake(target, host string, port int) {
	b.mu.Lock()
	b.target = target
	b.outHost = host
	b.outPort = port
	b.builder = wire.NewBuilder(b.cfg.Sender, target, b.cfg.AppName, b.cfg.AppVersion)
	b.mu.Unlock()
	b.logger.Info().
		Str("target", target).
		Str("host", host).
		Int("port", port).
		Msg("handshake complete")
}

// replyBuilder is the builder controllers answer with. Before any
// handshake the target identity is simply unknown; replies still go out.
func (b *Broker) replyBuilder() *wire.Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.builder != nil {
		return b.builder
	}
	return wire.NewBuilder(b.cfg.Sender, "", b.cfg.AppName, b.cfg.AppVersion)
}

// announceInterface sends the post-Register interface announcement via
// the outbound path.
func (b *Broker) announceInterface(ctx context.Context) error {
	m, err := b.BuildInterfaceMessage()
	if err != nil {
		return err
	}
	return b.Send(ctx, m)
}
