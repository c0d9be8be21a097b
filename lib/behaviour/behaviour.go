package behaviour

import (
	"fmt"
	"strings"

	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/samber/oops"
)

// Class is the handler's classification of an inbound packet.
type Class int

const (
	ClassWhoAreYou Class = iota
	ClassMessageWithoutSession
	ClassHandshake
	ClassMessage
)

func (c Class) String() string {
	switch c {
	case ClassWhoAreYou:
		return "whoareyou"
	case ClassMessageWithoutSession:
		return "message_without_session"
	case ClassHandshake:
		return "handshake"
	case ClassMessage:
		return "message"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Request is a request kind the mock can be told to expect.
type Request int

const (
	RequestPing Request = iota + 1
	RequestFindNode
	RequestTalkRequest
)

// ParseRequest maps a script name to a Request.
func ParseRequest(s string) (Request, error) {
	switch strings.ToLower(s) {
	case "ping":
		return RequestPing, nil
	case "findnode":
		return RequestFindNode, nil
	case "talkrequest", "talkreq":
		return RequestTalkRequest, nil
	default:
		return 0, oops.Wrapf(ErrUnknownRequest, "%q", s)
	}
}

// MessageType is the wire type of the request.
func (r Request) MessageType() wire.MessageType {
	switch r {
	case RequestPing:
		return wire.PingMsg
	case RequestFindNode:
		return wire.FindNodeMsg
	case RequestTalkRequest:
		return wire.TalkRequestMsg
	default:
		return 0
	}
}

// Matches reports whether m is a request of this kind.
func (r Request) Matches(m wire.Message) bool {
	return m != nil && wire.TypeOf(m) == r.MessageType()
}

func (r Request) String() string {
	return r.MessageType().String()
}

// Expect names the packet that must arrive next.
// It is implemented by ExpectWhoAreYou, ExpectMessageWithoutSession,
// ExpectHandshake and ExpectMessage.
type Expect interface {
	Class() Class
	String() string
}

type (
	ExpectWhoAreYou             struct{}
	ExpectMessageWithoutSession struct{}
	ExpectHandshake             struct{ Request Request }
	ExpectMessage               struct{ Request Request }
)

func (ExpectWhoAreYou) Class() Class             { return ClassWhoAreYou }
func (ExpectMessageWithoutSession) Class() Class { return ClassMessageWithoutSession }
func (ExpectHandshake) Class() Class             { return ClassHandshake }
func (ExpectMessage) Class() Class               { return ClassMessage }

func (ExpectWhoAreYou) String() string             { return "WHOAREYOU" }
func (ExpectMessageWithoutSession) String() string { return "message without session" }
func (e ExpectHandshake) String() string           { return "handshake(" + e.Request.String() + ")" }
func (e ExpectMessage) String() string             { return "message(" + e.Request.String() + ")" }

// Action is a step the handler executes in response to a packet.
// It is implemented by Ignore, SendWhoAreYou, EstablishSession,
// CaptureRequest and SendResponse.
type Action interface {
	String() string
	action()
}

type (
	// Ignore drops the packet. Reason is only logged.
	Ignore struct{ Reason string }
	// SendWhoAreYou challenges the sender.
	SendWhoAreYou struct{}
	// EstablishSession completes a handshake with the challenge issued earlier.
	EstablishSession struct{}
	// CaptureRequest records the decrypted request for later custom responses.
	CaptureRequest struct{}
	// SendResponse answers the request in the current packet.
	SendResponse struct{ Response Response }
)

func (Ignore) action()           {}
func (SendWhoAreYou) action()    {}
func (EstablishSession) action() {}
func (CaptureRequest) action()   {}
func (SendResponse) action()     {}

func (a Ignore) String() string {
	if a.Reason == "" {
		return "ignore"
	}
	return "ignore(" + a.Reason + ")"
}
func (SendWhoAreYou) String() string    { return "send_whoareyou" }
func (EstablishSession) String() string { return "establish_session" }
func (CaptureRequest) String() string   { return "capture_request" }
func (a SendResponse) String() string {
	if a.Response == nil {
		return "send_response(default)"
	}
	return "send_response(" + a.Response.String() + ")"
}

// Response selects what SendResponse sends.
// It is implemented by DefaultResponse and CustomResponses.
type Response interface {
	String() string
	response()
}

// DefaultResponse answers PING with PONG, FINDNODE with NODES and
// TALKREQ with an empty TALKRESP.
type DefaultResponse struct{}

// CustomResponses sends each body in order.
type CustomResponses []CustomResponse

func (DefaultResponse) response() {}
func (CustomResponses) response() {}

func (DefaultResponse) String() string { return "default" }
func (c CustomResponses) String() string {
	return fmt.Sprintf("custom x%d", len(c))
}

// CustomResponse is one scripted message. Its request id is replaced by ID
// before sending.
type CustomResponse struct {
	ID   RequestID
	Body wire.Message
}

// RequestID picks the request id of a custom response.
// It is implemented by CapturedRequestID and ExplicitRequestID.
type RequestID interface {
	requestID()
}

// CapturedRequestID echoes the id of the i-th captured request.
type CapturedRequestID int

// ExplicitRequestID is used verbatim.
type ExplicitRequestID []byte

func (CapturedRequestID) requestID() {}
func (ExplicitRequestID) requestID() {}

// Behaviour is one entry of a sequential script.
type Behaviour struct {
	Expect  Expect
	Actions []Action
}

func (b Behaviour) String() string {
	names := make([]string, len(b.Actions))
	for i, a := range b.Actions {
		names[i] = a.String()
	}
	return b.Expect.String() + " -> [" + strings.Join(names, ", ") + "]"
}
