// Package handler is the mock peer's packet state machine. It owns the
// active challenges, the sessions and the captured requests, and executes
// the behaviour script against every inbound packet.
package handler

import (
	"context"
	"crypto/ecdsa"

	"github.com/discv5-testground/mockpeer/lib/behaviour"
	"github.com/discv5-testground/mockpeer/lib/session"
	"github.com/discv5-testground/mockpeer/lib/transport"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// commandQueueSize bounds pending embedder commands.
const commandQueueSize = 30

// NodeAddress identifies a peer by node id and UDP endpoint.
type NodeAddress = transport.NodeAddress

// Challenge is a WHOAREYOU we sent and have not yet seen answered.
type Challenge struct {
	// Data is IV || header of the WHOAREYOU packet.
	Data []byte
	// RemoteRecord is the peer's record when we knew it before challenging.
	RemoteRecord *enr.Record
}

// CapturedRequest is a decrypted request kept for later custom responses.
type CapturedRequest struct {
	From    NodeAddress
	Request wire.Message
}

// Sender queues outbound packets. *transport.Transport satisfies it.
type Sender interface {
	Send(ctx context.Context, pkt transport.OutboundPacket) error
}

// Config is everything the handler needs besides its queues.
type Config struct {
	LocalKey  *ecdsa.PrivateKey
	LocalNode *enode.Node
	Script    behaviour.Script
	// VerifyIDSignature checks the handshake id-signature against the
	// initiator's record before a session is stored.
	VerifyIDSignature bool
}

type randomPacketCommand struct {
	dest   NodeAddress
	record *enr.Record
}

type Handler struct {
	key       *ecdsa.PrivateKey
	localNode *enode.Node
	localID   enode.ID
	script    behaviour.Script
	verifySig bool

	inbound  <-chan transport.InboundPacket
	out      Sender
	commands chan randomPacketCommand
	done     chan struct{}

	activeChallenges map[NodeAddress]*Challenge
	sessions         map[NodeAddress]*session.Session
	pendingRandom    map[wire.Nonce]NodeAddress
	knownRecords     map[enode.ID]*enr.Record
	captured         []CapturedRequest
}

// New returns a handler reading from inbound and writing through out.
func New(cfg Config, inbound <-chan transport.InboundPacket, out Sender) (*Handler, error) {
	if cfg.LocalKey == nil || cfg.LocalNode == nil {
		return nil, oops.Errorf("handler needs a local key and record")
	}
	if cfg.Script == nil {
		return nil, oops.Errorf("handler needs a behaviour script")
	}
	return &Handler{
		key:              cfg.LocalKey,
		localNode:        cfg.LocalNode,
		localID:          cfg.LocalNode.ID(),
		script:           cfg.Script,
		verifySig:        cfg.VerifyIDSignature,
		inbound:          inbound,
		out:              out,
		commands:         make(chan randomPacketCommand, commandQueueSize),
		done:             make(chan struct{}),
		activeChallenges: make(map[NodeAddress]*Challenge),
		sessions:         make(map[NodeAddress]*session.Session),
		pendingRandom:    make(map[wire.Nonce]NodeAddress),
		knownRecords:     make(map[enode.ID]*enr.Record),
	}, nil
}

// Run processes commands and packets until ctx is done, the inbound queue
// closes or a packet violates the script. Only the last case returns an
// error. All session keys are wiped before Run returns.
func (h *Handler) Run(ctx context.Context) (err error) {
	defer close(h.done)
	defer h.closeSessions()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-h.commands:
			err = h.sendRandomPacket(ctx, cmd)
		case in, ok := <-h.inbound:
			if !ok {
				log.WithField("at", "(Handler) Run").Debug("inbound_queue_closed")
				return nil
			}
			err = h.handlePacket(ctx, in)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithFields(logger.Fields{
				"at": "(Handler) Run",
			}).WithError(err).Error("handler_failed")
			return err
		}
	}
}

// Done is closed when Run has returned.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// SendRandomPacket asks the handler to send a random message packet to the
// node described by rec. A peer without a session answers it with WHOAREYOU.
func (h *Handler) SendRandomPacket(ctx context.Context, rec *enr.Record) error {
	node, err := enode.New(enode.ValidSchemes, rec)
	if err != nil {
		return oops.Wrapf(err, "invalid destination record")
	}
	addr, err := transport.NodeAddressOf(node)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHandlerStopped
	default:
	}
	select {
	case h.commands <- randomPacketCommand{dest: addr, record: rec}:
		return nil
	case <-h.done:
		return ErrHandlerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Captured returns the requests captured so far. It must not be called while
// Run is executing.
func (h *Handler) Captured() []CapturedRequest {
	return append([]CapturedRequest(nil), h.captured...)
}

func (h *Handler) sendRandomPacket(ctx context.Context, cmd randomPacketCommand) error {
	pkt, err := wire.NewRandom(h.localID)
	if err != nil {
		return err
	}
	// One random packet per destination is awaited at a time.
	for nonce, dest := range h.pendingRandom {
		if dest == cmd.dest {
			delete(h.pendingRandom, nonce)
		}
	}
	h.pendingRandom[pkt.Header.Nonce] = cmd.dest
	h.knownRecords[cmd.dest.NodeID] = cmd.record
	log.WithFields(logger.Fields{
		"at":   "(Handler) sendRandomPacket",
		"dest": cmd.dest.String(),
	}).Info("sending_random_packet")
	return h.send(ctx, cmd.dest, pkt)
}

func (h *Handler) send(ctx context.Context, dest NodeAddress, pkt *wire.Packet) error {
	return h.out.Send(ctx, transport.OutboundPacket{Dest: dest, Packet: pkt})
}

func (h *Handler) closeSessions() {
	for _, s := range h.sessions {
		s.Close()
	}
}
