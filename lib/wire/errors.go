package wire

import "errors"

var (
	ErrMalformedPacket   = errors.New("malformed discv5 packet")
	ErrUnknownPacketKind = errors.New("unknown discv5 packet kind")
	ErrMalformedMessage  = errors.New("malformed discv5 message")
	ErrUnknownMessage    = errors.New("unknown discv5 message type")
)
