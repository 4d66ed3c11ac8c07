package broker

import "errors"

var (
	ErrMissingOutgoingAddress = errors.New("broker: outgoing address unknown")
	ErrHandshakeRequired      = errors.New("broker: handshake has not completed")
	ErrSenderRequired         = errors.New("broker: sender identity required")
)
