package handler

import (
	"context"
	"slices"

	"github.com/discv5-testground/mockpeer/lib/behaviour"
	"github.com/discv5-testground/mockpeer/lib/crypto"
	"github.com/discv5-testground/mockpeer/lib/session"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

func (h *Handler) execute(ctx context.Context, ex *exchange, a behaviour.Action) error {
	if ex.class == behaviour.ClassWhoAreYou {
		if _, ok := a.(behaviour.Ignore); !ok {
			return oops.Wrapf(ErrInvalidAction, "only ignore applies to WHOAREYOU")
		}
	}
	switch a := a.(type) {
	case behaviour.Ignore:
		log.WithFields(logger.Fields{
			"at":     "(Handler) execute",
			"class":  ex.class.String(),
			"from":   ex.addr.String(),
			"reason": a.Reason,
		}).Info("ignoring_packet")
		return nil
	case behaviour.SendWhoAreYou:
		return h.sendChallenge(ctx, ex)
	case behaviour.EstablishSession:
		return h.establishSession(ex)
	case behaviour.CaptureRequest:
		return h.captureRequest(ex)
	case behaviour.SendResponse:
		return h.sendResponse(ctx, ex, a.Response)
	default:
		return oops.Wrapf(ErrInvalidAction, "unknown action %T", a)
	}
}

func (h *Handler) sendChallenge(ctx context.Context, ex *exchange) error {
	if ex.class != behaviour.ClassMessage && ex.class != behaviour.ClassMessageWithoutSession {
		return oops.Wrapf(ErrInvalidAction, "WHOAREYOU only answers message packets")
	}
	if _, ok := h.activeChallenges[ex.addr]; ok {
		return oops.Wrapf(ErrChallengeExists, "peer %s", ex.addr)
	}

	idNonce, err := wire.RandomIDNonce()
	if err != nil {
		return err
	}
	// Record seq 0 asks the peer to include its record in the handshake,
	// unless we already hold one.
	var seq uint64
	known := h.knownRecords[ex.addr.NodeID]
	if known != nil {
		seq = known.Seq()
	}
	pkt, err := wire.NewWhoAreYou(ex.in.Packet.Header.Nonce, idNonce, seq)
	if err != nil {
		return err
	}
	data, err := pkt.AuthenticatedData()
	if err != nil {
		return err
	}
	if err := h.send(ctx, ex.addr, pkt); err != nil {
		return err
	}
	h.activeChallenges[ex.addr] = &Challenge{Data: data, RemoteRecord: known}
	log.WithFields(logger.Fields{
		"at":         "(Handler) sendChallenge",
		"to":         ex.addr.String(),
		"record_seq": seq,
	}).Info("whoareyou_sent")
	return nil
}

func (h *Handler) establishSession(ex *exchange) error {
	kind, ok := ex.in.Packet.Header.Kind.(*wire.HandshakeKind)
	if !ok {
		return oops.Wrapf(ErrInvalidAction, "sessions are only established from handshakes")
	}
	challenge, ok := h.activeChallenges[ex.addr]
	if !ok {
		return oops.Wrapf(ErrMissingChallenge, "handshake from %s", ex.addr)
	}
	// A challenge is consumed by the first handshake that answers it.
	delete(h.activeChallenges, ex.addr)

	record := kind.Record
	if record == nil {
		record = challenge.RemoteRecord
	}
	if record != nil {
		if err := h.checkRecord(ex, kind, challenge, record); err != nil {
			return err
		}
	}

	s, _, err := session.EstablishFromChallenge(h.key, h.localID, ex.addr.NodeID, challenge.Data, kind.EphemeralKey, record)
	if err != nil {
		return err
	}
	if old, ok := h.sessions[ex.addr]; ok {
		old.Close()
	}
	h.sessions[ex.addr] = s
	h.knownRecords[ex.addr.NodeID] = record
	log.WithFields(logger.Fields{
		"at":   "(Handler) establishSession",
		"peer": ex.addr.String(),
	}).Info("session_established")

	if e, ok := ex.expect.(behaviour.ExpectHandshake); ok {
		req, err := h.requestFor(ex)
		if err != nil {
			return err
		}
		if !e.Request.Matches(req) {
			return oops.Wrapf(ErrUnexpectedRequest, "expected %s in handshake, received %s from %s", e.Request, wire.TypeOf(req), ex.addr)
		}
	}
	return nil
}

// checkRecord validates the initiator's record and, when enabled, its
// id-signature over the challenge.
func (h *Handler) checkRecord(ex *exchange, kind *wire.HandshakeKind, challenge *Challenge, record *enr.Record) error {
	node, err := enode.New(enode.ValidSchemes, record)
	if err != nil {
		return oops.Wrapf(ErrRecordMismatch, "invalid record from %s: %v", ex.addr, err)
	}
	if node.ID() != ex.addr.NodeID {
		return oops.Wrapf(ErrRecordMismatch, "record id %s, sender %s", node.ID().TerminalString(), ex.addr)
	}
	if !h.verifySig {
		return nil
	}
	return crypto.VerifyIDSignature(node.Pubkey(), kind.IDSignature, challenge.Data, kind.EphemeralKey, h.localID)
}

func (h *Handler) captureRequest(ex *exchange) error {
	req, err := h.requestFor(ex)
	if err != nil {
		return err
	}
	h.captured = append(h.captured, CapturedRequest{From: ex.addr, Request: req})
	log.WithFields(logger.Fields{
		"at":      "(Handler) captureRequest",
		"from":    ex.addr.String(),
		"request": wire.TypeOf(req).String(),
		"index":   len(h.captured) - 1,
	}).Info("request_captured")
	return nil
}

func (h *Handler) sendResponse(ctx context.Context, ex *exchange, resp behaviour.Response) error {
	s, ok := h.sessions[ex.addr]
	if !ok {
		return oops.Wrapf(ErrMissingSession, "cannot respond to %s", ex.addr)
	}

	var msgs []wire.Message
	switch r := resp.(type) {
	case nil, behaviour.DefaultResponse:
		req, err := h.requestFor(ex)
		if err != nil {
			return err
		}
		msgs = []wire.Message{h.defaultResponse(ex, req)}
	case behaviour.CustomResponses:
		for _, c := range r {
			id, err := h.resolveRequestID(c.ID)
			if err != nil {
				return err
			}
			// Script bodies may be shared between entries and packets.
			body, err := wire.CopyMessage(c.Body)
			if err != nil {
				return err
			}
			body.SetRequestID(id)
			msgs = append(msgs, body)
		}
	default:
		return oops.Wrapf(ErrInvalidAction, "unknown response %T", resp)
	}

	for _, m := range msgs {
		pt, err := wire.EncodeMessage(m)
		if err != nil {
			return err
		}
		pkt, err := s.Encrypt(h.localID, pt)
		if err != nil {
			return err
		}
		if err := h.send(ctx, ex.addr, pkt); err != nil {
			return err
		}
		log.WithFields(logger.Fields{
			"at":       "(Handler) sendResponse",
			"to":       ex.addr.String(),
			"response": wire.TypeOf(m).String(),
		}).Info("response_sent")
	}
	return nil
}

func (h *Handler) resolveRequestID(id behaviour.RequestID) ([]byte, error) {
	switch id := id.(type) {
	case behaviour.CapturedRequestID:
		if int(id) < 0 || int(id) >= len(h.captured) {
			return nil, oops.Wrapf(ErrCapturedRequestNotFound, "index %d, %d captured", int(id), len(h.captured))
		}
		return h.captured[id].Request.RequestID(), nil
	case behaviour.ExplicitRequestID:
		return []byte(id), nil
	default:
		return nil, oops.Wrapf(ErrInvalidAction, "unknown request id %T", id)
	}
}

func (h *Handler) defaultResponse(ex *exchange, req wire.Message) wire.Message {
	switch req := req.(type) {
	case *wire.Ping:
		return &wire.Pong{
			ReqID:  req.ReqID,
			ENRSeq: h.localNode.Seq(),
			ToIP:   ex.in.Src.Addr().AsSlice(),
			ToPort: ex.in.Src.Port(),
		}
	case *wire.FindNode:
		nodes := &wire.Nodes{ReqID: req.ReqID, RespCount: 1, Nodes: []*enr.Record{}}
		if slices.Contains(req.Distances, 0) {
			nodes.Nodes = append(nodes.Nodes, h.localNode.Record())
		}
		return nodes
	default:
		return &wire.TalkResponse{ReqID: req.RequestID()}
	}
}
