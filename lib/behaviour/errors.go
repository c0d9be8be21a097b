package behaviour

import "errors"

var (
	ErrInvalidScript  = errors.New("invalid behaviour script")
	ErrUnknownRequest = errors.New("unknown request kind")
)
