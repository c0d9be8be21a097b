package wire

import (
	"fmt"

	"github.com/ethereum/go-ethereum/p2p/discover/v5wire"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/samber/oops"
)

// MessageType is the first byte of a decrypted message.
type MessageType byte

const (
	PingMsg         = MessageType(v5wire.PingMsg)
	PongMsg         = MessageType(v5wire.PongMsg)
	FindNodeMsg     = MessageType(v5wire.FindnodeMsg)
	NodesMsg        = MessageType(v5wire.NodesMsg)
	TalkRequestMsg  = MessageType(v5wire.TalkRequestMsg)
	TalkResponseMsg = MessageType(v5wire.TalkResponseMsg)
)

// MaxRequestIDSize is the protocol limit on request id length.
const MaxRequestIDSize = 8

func (t MessageType) String() string {
	switch t {
	case PingMsg:
		return "PING"
	case PongMsg:
		return "PONG"
	case FindNodeMsg:
		return "FINDNODE"
	case NodesMsg:
		return "NODES"
	case TalkRequestMsg:
		return "TALKREQ"
	case TalkResponseMsg:
		return "TALKRESP"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", byte(t))
	}
}

// IsRequest reports whether messages of this type expect a response.
func (t MessageType) IsRequest() bool {
	return t == PingMsg || t == FindNodeMsg || t == TalkRequestMsg
}

// Message is an RPC message body.
type Message = v5wire.Packet

// RPC bodies are go-ethereum's discv5 message types.
type (
	Ping         = v5wire.Ping
	Pong         = v5wire.Pong
	FindNode     = v5wire.Findnode
	Nodes        = v5wire.Nodes
	TalkRequest  = v5wire.TalkRequest
	TalkResponse = v5wire.TalkResponse
)

// TypeOf is the message type byte of m.
func TypeOf(m Message) MessageType {
	return MessageType(m.Kind())
}

func knownType(t MessageType) bool {
	return t >= PingMsg && t <= TalkResponseMsg
}

// EncodeMessage returns type || rlp(message).
func EncodeMessage(m Message) ([]byte, error) {
	t := TypeOf(m)
	if !knownType(t) {
		return nil, oops.Wrapf(ErrUnknownMessage, "cannot encode %s", m.Name())
	}
	if len(m.RequestID()) > MaxRequestIDSize {
		return nil, oops.Wrapf(ErrMalformedMessage, "request id too long: %d bytes", len(m.RequestID()))
	}
	body, err := rlp.EncodeToBytes(m)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to encode %s", t)
	}
	return append([]byte{byte(t)}, body...), nil
}

// DecodeMessage parses a decrypted message body.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) < 1 {
		return nil, oops.Wrapf(ErrMalformedMessage, "empty message")
	}
	t := MessageType(b[0])
	if !knownType(t) {
		return nil, oops.Wrapf(ErrUnknownMessage, "type %#x", b[0])
	}
	m, err := v5wire.DecodeMessage(b[0], b[1:])
	if err != nil {
		return nil, oops.Wrapf(ErrMalformedMessage, "invalid %s: %v", t, err)
	}
	if len(m.RequestID()) > MaxRequestIDSize {
		return nil, oops.Wrapf(ErrMalformedMessage, "request id too long: %d bytes", len(m.RequestID()))
	}
	return m, nil
}

// CopyMessage returns a deep copy of m.
func CopyMessage(m Message) (Message, error) {
	b, err := EncodeMessage(m)
	if err != nil {
		return nil, err
	}
	return DecodeMessage(b)
}
