package wire

import "errors"

var (
	ErrInvalidEnvelope = errors.New("wire: invalid envelope")
	ErrInvalidScheme   = errors.New("wire: invalid envelope scheme")
	ErrMissingSender   = errors.New("wire: missing sender identity")
)
