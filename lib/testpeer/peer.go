// Package testpeer is a minimal discv5 initiator for driving the mock peer in
// tests. It builds the packets a real node would send (random messages,
// handshakes, session messages) and can run them over UDP.
package testpeer

import (
	"crypto/ecdsa"
	"net"

	"github.com/discv5-testground/mockpeer/lib/crypto"
	"github.com/discv5-testground/mockpeer/lib/keys"
	"github.com/discv5-testground/mockpeer/lib/session"
	"github.com/discv5-testground/mockpeer/lib/wire"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/samber/oops"
)

// Peer is a node identity that can produce discv5 packets.
type Peer struct {
	Key  *ecdsa.PrivateKey
	Node *enode.Node
}

// NewPeer generates a fresh identity whose record advertises ip:port.
func NewPeer(ip net.IP, port int) (*Peer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to generate key")
	}
	return NewPeerFromKey(key, ip, port)
}

// NewPeerFromKey builds a signed record with sequence number 1 for key. A nil
// ip or zero port is left out of the record.
func NewPeerFromKey(key *ecdsa.PrivateKey, ip net.IP, port int) (*Peer, error) {
	node, err := keys.LocalNode(key, 1, ip, port)
	if err != nil {
		return nil, err
	}
	return &Peer{Key: key, Node: node}, nil
}

// ID is the peer's node id.
func (p *Peer) ID() enode.ID {
	return p.Node.ID()
}

// Record is the peer's signed record.
func (p *Peer) Record() *enr.Record {
	return p.Node.Record()
}

// RandomPacket is a message packet that cannot be decrypted by anyone. It
// starts a handshake with a node that has no session with us.
func (p *Peer) RandomPacket() (*wire.Packet, error) {
	return wire.NewRandom(p.ID())
}

// HandshakeOptions tweak a handshake packet.
type HandshakeOptions struct {
	// OmitRecord leaves the record out of the authdata.
	OmitRecord bool
	// CorruptSignature flips a bit of the id-signature.
	CorruptSignature bool
}

// Handshake answers a WHOAREYOU whose challenge data is challengeData,
// received from remote. It returns the handshake packet carrying req and
// the initiator side of the new session.
func (p *Peer) Handshake(remote *enode.Node, challengeData []byte, req wire.Message, opts HandshakeOptions) (*wire.Packet, *session.Session, error) {
	eph, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, oops.Wrapf(err, "failed to generate ephemeral key")
	}
	ephPub := ethcrypto.CompressPubkey(&eph.PublicKey)

	sig, err := crypto.SignIDNonce(p.Key, challengeData, ephPub, remote.ID())
	if err != nil {
		return nil, nil, err
	}
	if opts.CorruptSignature {
		sig[0] ^= 0x01
	}
	enc, dec, err := crypto.DeriveInitiatorKeys(eph, remote.Pubkey(), p.ID(), remote.ID(), challengeData)
	if err != nil {
		return nil, nil, err
	}

	kind := &wire.HandshakeKind{SrcID: p.ID(), IDSignature: sig, EphemeralKey: ephPub}
	if !opts.OmitRecord {
		kind.Record = p.Record()
	}
	nonce, err := wire.RandomNonce()
	if err != nil {
		return nil, nil, err
	}
	iv, err := wire.RandomIV()
	if err != nil {
		return nil, nil, err
	}
	pkt := &wire.Packet{IV: iv, Header: wire.Header{Nonce: nonce, Kind: kind}}
	ad, err := pkt.AuthenticatedData()
	if err != nil {
		return nil, nil, err
	}
	pt, err := wire.EncodeMessage(req)
	if err != nil {
		return nil, nil, err
	}
	if pkt.Message, err = crypto.Encrypt(enc, nonce, pt, ad); err != nil {
		return nil, nil, err
	}
	return pkt, session.New(enc, dec), nil
}

// Message seals req into a message packet on an established session.
func (p *Peer) Message(s *session.Session, req wire.Message) (*wire.Packet, error) {
	pt, err := wire.EncodeMessage(req)
	if err != nil {
		return nil, err
	}
	return s.Encrypt(p.ID(), pt)
}

// Open decrypts and decodes a message packet received on s. ad is the
// authenticated data returned by the decoder.
func Open(s *session.Session, pkt *wire.Packet, ad []byte) (wire.Message, error) {
	if pkt.Header.Kind.Flag() != wire.FlagMessage {
		return nil, oops.Errorf("expected message packet, got %s", pkt.Header.Kind.Flag())
	}
	pt, err := s.Decrypt(pkt.Header.Nonce, pkt.Message, ad)
	if err != nil {
		return nil, err
	}
	return wire.DecodeMessage(pt)
}
