package session

import "errors"

var (
	ErrMissingRecord  = errors.New("handshake carried no node record")
	ErrNonceExhausted = errors.New("session message counter exhausted")
	ErrSessionClosed  = errors.New("session closed")
)
