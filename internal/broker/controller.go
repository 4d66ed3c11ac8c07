package broker

import (
	"context"

	"github.com/danmuck/simctl/internal/endpoint"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/queue"
	"github.com/danmuck/simctl/internal/wire"
	"github.com/danmuck/simctl/internal/wire/framing"
	"github.com/rs/zerolog"
)

// Controller is the per-connection protocol state machine. It
// accumulates the channel's bytes into one envelope at a time,
// classifies the completed envelope by mnemonic, and drives the
// handshake and convert exchanges against the owning broker.
//
// The inbound listener holds one controller for the broker's lifetime;
// every outbound send creates another scoped to that connection.
// Handshake-derived state lives on the broker, not here.
type Controller struct {
	broker *Broker
	logger zerolog.Logger
	buf    *framing.Buffer

	// registered is set between a successful Register dispatch and the
	// interface announcement that follows it, then cleared.
	registered bool
}

func newController(b *Broker, logger zerolog.Logger) *Controller {
	return &Controller{
		broker: b,
		logger: logger,
		buf:    framing.NewBuffer(framing.DefaultLimits()),
	}
}

// HandleByte consumes one stream byte. On envelope completion the
// controller dispatches, resets the buffer unconditionally, and fires a
// pending interface announcement.
func (c *Controller) HandleByte(ch endpoint.Channel, b byte) {
	if err := c.buf.WriteByte(b); err != nil {
		c.logger.Warn().Err(err).Msg("framing fault, discarding partial envelope")
		c.buf.Reset()
		return
	}
	if !c.buf.Complete() {
		return
	}
	text := c.buf.Text()
	c.dispatch(ch, text)
	c.buf.Reset()

	if c.registered {
		c.registered = false
		if err := c.broker.announceInterface(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("interface announcement failed")
		}
	}
}

// HandleError is the endpoint fault sink: logged, not retried, terminal
// for this connection only.
func (c *Controller) HandleError(ch endpoint.Channel, e endpoint.Error) {
	c.ReportError(e.Code, e.Message, e.Source, ch.ID())
}

func (c *Controller) ReportError(code int, message, source, channelID string) {
	observability.RecordEndpointError(source)
	c.logger.Warn().
		Int("code", code).
		Str("source", source).
		Str("channel", channelID).
		Str("message", message).
		Msg("endpoint error")
}

// dispatch classifies one completed envelope and responds on the
// originating channel. Unrecognized markers are consumed without a
// response; that tolerance mirrors the peer's heartbeat-like traffic.
func (c *Controller) dispatch(ch endpoint.Channel, text string) {
	kind := wire.Classify(text)
	observability.RecordEnvelope(kind.String())
	c.logger.Debug().Stringer("kind", kind).Int("bytes", len(text)).Msg("envelope dispatch")

	switch kind {
	case wire.KindRegister:
		c.handleRegister(ch, text)
	case wire.KindConnected, wire.KindUnregister, wire.KindIdle:
		c.writeEnvelope(ch, c.broker.replyBuilder().AcceptMessage())
	case wire.KindConvert:
		c.handleConvert(ch, text)
	default:
		// Accept, Stop and unknown markers produce no response.
	}
}

// handleRegister answers with one Accept. When the envelope advertises
// the peer's interface address, the broker's handshake context is
// replaced and the next dispatch cycle announces our interface.
func (c *Controller) handleRegister(ch endpoint.Channel, text string) {
	m, err := wire.URLToMessage(text)
	if err == nil && m.Host != "" && m.Port != 0 {
		c.broker.completeHandshake(m.Sender, m.Host, m.Port)
		c.registered = true
	} else if err != nil {
		c.logger.Warn().Err(err).Msg("register envelope parse failed")
	}
	c.writeEnvelope(ch, c.broker.replyBuilder().AcceptMessage())
}

// handleConvert runs one convert exchange: pop outbound work, record the
// decoded inbound result, reply with a Segmented envelope wrapping the
// popped message. An empty outbound queue aborts the exchange before
// the inbound queue is touched.
func (c *Controller) handleConvert(ch endpoint.Channel, text string) {
	inbound, err := wire.URLToMessage(text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("convert envelope parse failed")
		return
	}
	out, err := c.broker.NextOutgoingMessage()
	if err != nil {
		c.logger.Warn().Err(err).Msg("convert exchange aborted")
		return
	}
	if err := c.broker.Incoming.Push(queue.MessageElement(inbound)); err != nil {
		c.logger.Error().Err(err).Msg("inbound queue push failed")
		return
	}
	c.writeEnvelope(ch, c.broker.replyBuilder().SegmentedMessage(out))
}

func (c *Controller) writeEnvelope(ch endpoint.Channel, m *wire.Message) {
	text, err := wire.MessageToURL(m)
	if err != nil {
		c.logger.Error().Err(err).Stringer("kind", m.Kind).Msg("envelope encode failed")
		return
	}
	if _, err := ch.Write(append([]byte(text), framing.Terminator)); err != nil {
		c.ReportError(endpoint.CodeWriteFailure, err.Error(), "reply", ch.ID())
	}
}
