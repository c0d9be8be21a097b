package handler

import (
	"context"

	"github.com/discv5-testground/mockpeer/lib/behaviour"
	"github.com/discv5-testground/mockpeer/lib/transport"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// exchange is the processing state of one inbound packet.
type exchange struct {
	in     transport.InboundPacket
	class  behaviour.Class
	addr   NodeAddress
	expect behaviour.Expect // nil for declarative scripts

	// request is the decrypted message, set on first use.
	request wire.Message
}

func (h *Handler) handlePacket(ctx context.Context, in transport.InboundPacket) error {
	ex := h.classify(in)
	l := log.WithFields(logger.Fields{
		"at":    "(Handler) handlePacket",
		"class": ex.class.String(),
		"from":  ex.addr.String(),
	})
	l.Debug("packet_received")

	actions, err := h.selectBehaviour(ex)
	if err != nil {
		return err
	}
	if err := h.checkExpect(ex); err != nil {
		return err
	}
	for _, a := range actions {
		l.WithField("action", a.String()).Debug("executing_action")
		if err := h.execute(ctx, ex, a); err != nil {
			return oops.Wrapf(err, "%s on %s from %s", a, ex.class, ex.addr)
		}
	}
	return nil
}

// classify resolves the sender and the packet class. A WHOAREYOU carries no
// source id, so the node id comes from the random packet it answers, provided
// it arrives from that packet's destination.
func (h *Handler) classify(in transport.InboundPacket) *exchange {
	ex := &exchange{in: in}
	switch kind := in.Packet.Header.Kind.(type) {
	case *wire.WhoAreYouKind:
		ex.class = behaviour.ClassWhoAreYou
		ex.addr = NodeAddress{Addr: in.Src}
		if dest, ok := h.pendingRandom[in.Packet.Header.Nonce]; ok && dest.Addr == in.Src {
			ex.addr.NodeID = dest.NodeID
			delete(h.pendingRandom, in.Packet.Header.Nonce)
		}
	case *wire.HandshakeKind:
		ex.class = behaviour.ClassHandshake
		ex.addr = NodeAddress{NodeID: kind.SrcID, Addr: in.Src}
	case *wire.MessageKind:
		ex.addr = NodeAddress{NodeID: kind.SrcID, Addr: in.Src}
		if _, ok := h.sessions[ex.addr]; ok {
			ex.class = behaviour.ClassMessage
		} else {
			ex.class = behaviour.ClassMessageWithoutSession
		}
	}
	return ex
}

// selectBehaviour returns the actions for the packet. A sequential script
// consumes its head entry, whose Expect must match the packet class.
func (h *Handler) selectBehaviour(ex *exchange) ([]behaviour.Action, error) {
	switch s := h.script.(type) {
	case *behaviour.Sequential:
		b, ok := s.Next()
		if !ok {
			return nil, oops.Wrapf(ErrScriptExhausted, "received %s from %s", ex.class, ex.addr)
		}
		ex.expect = b.Expect
		if b.Expect.Class() != ex.class {
			if b.Expect.Class() == behaviour.ClassMessage && ex.class == behaviour.ClassMessageWithoutSession {
				return nil, oops.Wrapf(ErrMissingSession, "expected %s from %s", b.Expect, ex.addr)
			}
			return nil, oops.Wrapf(ErrUnexpectedPacket, "expected %s, received %s from %s", b.Expect, ex.class, ex.addr)
		}
		return b.Actions, nil
	case *behaviour.Declarative:
		return s.Actions(ex.class), nil
	default:
		return nil, oops.Errorf("unsupported script type %T", h.script)
	}
}

// checkExpect validates what can be validated before any action runs. The
// request inside a handshake is checked after EstablishSession.
func (h *Handler) checkExpect(ex *exchange) error {
	e, ok := ex.expect.(behaviour.ExpectMessage)
	if !ok {
		return nil
	}
	req, err := h.requestFor(ex)
	if err != nil {
		return err
	}
	if !e.Request.Matches(req) {
		return oops.Wrapf(ErrUnexpectedRequest, "expected %s, received %s from %s", e.Request, wire.TypeOf(req), ex.addr)
	}
	return nil
}

// requestFor decrypts and decodes the packet's message with the session of
// the sender. The result is cached on the exchange.
func (h *Handler) requestFor(ex *exchange) (wire.Message, error) {
	if ex.request != nil {
		return ex.request, nil
	}
	s, ok := h.sessions[ex.addr]
	if !ok {
		return nil, oops.Wrapf(ErrMissingSession, "cannot decrypt message from %s", ex.addr)
	}
	pt, err := s.Decrypt(ex.in.Packet.Header.Nonce, ex.in.Packet.Message, ex.in.AuthData)
	if err != nil {
		return nil, oops.Wrapf(err, "message from %s", ex.addr)
	}
	msg, err := wire.DecodeMessage(pt)
	if err != nil {
		return nil, err
	}
	if !wire.TypeOf(msg).IsRequest() {
		return nil, oops.Wrapf(ErrUnexpectedRequest, "received %s from %s", wire.TypeOf(msg), ex.addr)
	}
	log.WithFields(logger.Fields{
		"at":      "(Handler) requestFor",
		"from":    ex.addr.String(),
		"request": wire.TypeOf(msg).String(),
	}).Debug("request_decrypted")
	ex.request = msg
	return msg, nil
}
