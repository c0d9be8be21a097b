package testpeer

import (
	"context"
	"net/netip"
	"time"

	"github.com/discv5-testground/mockpeer/lib/session"
	"github.com/discv5-testground/mockpeer/lib/transport"
	"github.com/discv5-testground/mockpeer/lib/wire"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/samber/oops"
)

// ErrTimeout is returned when no packet arrives in time.
var ErrTimeout = oops.Errorf("timed out waiting for packet")

// Conn runs a Peer over a UDP socket, talking to one remote node.
type Conn struct {
	*Peer
	Remote *enode.Node

	tr   *transport.Transport
	dest transport.NodeAddress
}

// Dial binds a loopback socket and builds a peer whose record advertises it.
func Dial(remote *enode.Node) (*Conn, error) {
	dest, err := transport.NodeAddressOf(remote)
	if err != nil {
		return nil, err
	}
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to generate key")
	}
	tr, err := transport.Listen(netip.MustParseAddrPort("127.0.0.1:0"), enode.PubkeyToIDV4(&key.PublicKey), transport.DefaultConfig())
	if err != nil {
		return nil, err
	}
	local := tr.LocalAddr()
	peer, err := NewPeerFromKey(key, local.Addr().AsSlice(), int(local.Port()))
	if err != nil {
		tr.Close()
		return nil, err
	}
	tr.Start()
	return &Conn{Peer: peer, Remote: remote, tr: tr, dest: dest}, nil
}

// LocalAddr is the bound endpoint.
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.tr.LocalAddr()
}

// Write sends pkt to the remote.
func (c *Conn) Write(ctx context.Context, pkt *wire.Packet) error {
	return c.tr.Send(ctx, transport.OutboundPacket{Dest: c.dest, Packet: pkt})
}

// Read waits up to timeout for the next packet.
func (c *Conn) Read(timeout time.Duration) (transport.InboundPacket, error) {
	select {
	case in, ok := <-c.tr.Inbound():
		if !ok {
			return transport.InboundPacket{}, transport.ErrTransportClosed
		}
		return in, nil
	case <-time.After(timeout):
		return transport.InboundPacket{}, ErrTimeout
	}
}

// ReadWhoAreYou waits for a WHOAREYOU and returns its challenge data.
func (c *Conn) ReadWhoAreYou(timeout time.Duration) (*wire.WhoAreYouKind, []byte, error) {
	in, err := c.Read(timeout)
	if err != nil {
		return nil, nil, err
	}
	kind, ok := in.Packet.Header.Kind.(*wire.WhoAreYouKind)
	if !ok {
		return nil, nil, oops.Errorf("expected WHOAREYOU, got %s", in.Packet.Header.Kind.Flag())
	}
	return kind, in.AuthData, nil
}

// ReadMessage waits for a message packet and decrypts it on s.
func (c *Conn) ReadMessage(s *session.Session, timeout time.Duration) (wire.Message, error) {
	in, err := c.Read(timeout)
	if err != nil {
		return nil, err
	}
	return Open(s, in.Packet, in.AuthData)
}

// Establish runs message-without-session, WHOAREYOU and handshake. The
// handshake carries req. It returns the initiator session.
func (c *Conn) Establish(ctx context.Context, req wire.Message, timeout time.Duration) (*session.Session, error) {
	random, err := c.RandomPacket()
	if err != nil {
		return nil, err
	}
	if err := c.Write(ctx, random); err != nil {
		return nil, err
	}
	_, challenge, err := c.ReadWhoAreYou(timeout)
	if err != nil {
		return nil, err
	}
	hs, s, err := c.Handshake(c.Remote, challenge, req, HandshakeOptions{})
	if err != nil {
		return nil, err
	}
	if err := c.Write(ctx, hs); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the socket.
func (c *Conn) Close() error {
	return c.tr.Close()
}
