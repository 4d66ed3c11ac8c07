package endpoint

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Dialer opens one outbound channel per call and attaches a handler for
// whatever the peer writes back. The lifecycle is a factory concern;
// the default implementation opens a fresh connection per call and
// never pools.
type Dialer interface {
	Dial(ctx context.Context, addr string, h Handler) (Channel, error)
}

// NetDialer is the open-per-call TCP factory.
type NetDialer struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

func (d NetDialer) Dial(ctx context.Context, addr string, h Handler) (Channel, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	ch := newConnChannel(conn)
	d.Logger.Debug().Str("channel", ch.ID()).Str("addr", addr).Msg("outbound channel open")
	go pump(conn, ch, h, "client")
	return ch, nil
}
