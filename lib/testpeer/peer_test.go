package testpeer

import (
	"net"
	"testing"

	"github.com/discv5-testground/mockpeer/lib/session"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeer_HandshakeOpensOnResponder(t *testing.T) {
	initiator, err := NewPeer(net.IPv4(127, 0, 0, 1), 30303)
	require.NoError(t, err)
	responder, err := NewPeer(net.IPv4(127, 0, 0, 1), 30304)
	require.NoError(t, err)

	idNonce, err := wire.RandomIDNonce()
	require.NoError(t, err)
	random, err := initiator.RandomPacket()
	require.NoError(t, err)
	whoareyou, err := wire.NewWhoAreYou(random.Header.Nonce, idNonce, 0)
	require.NoError(t, err)
	cdata, err := whoareyou.AuthenticatedData()
	require.NoError(t, err)

	req := &wire.FindNode{ReqID: []byte{9}, Distances: []uint{0}}
	hs, initSession, err := initiator.Handshake(responder.Node, cdata, req, HandshakeOptions{})
	require.NoError(t, err)
	kind, ok := hs.Header.Kind.(*wire.HandshakeKind)
	require.True(t, ok)
	require.NotNil(t, kind.Record)
	assert.Equal(t, initiator.ID(), kind.SrcID)

	respSession, rec, err := session.EstablishFromChallenge(responder.Key, responder.ID(), initiator.ID(), cdata, kind.EphemeralKey, kind.Record)
	require.NoError(t, err)
	assert.Equal(t, initiator.Record().Seq(), rec.Seq())

	ad, err := hs.AuthenticatedData()
	require.NoError(t, err)
	pt, err := respSession.Decrypt(hs.Header.Nonce, hs.Message, ad)
	require.NoError(t, err)
	got, err := wire.DecodeMessage(pt)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got.RequestID())

	// Responses flow back on the initiator session.
	body, err := wire.EncodeMessage(&wire.Nodes{ReqID: []byte{9}, RespCount: 1})
	require.NoError(t, err)
	pkt, err := respSession.Encrypt(responder.ID(), body)
	require.NoError(t, err)
	pad, err := pkt.AuthenticatedData()
	require.NoError(t, err)
	msg, err := Open(initSession, pkt, pad)
	require.NoError(t, err)
	assert.Equal(t, wire.NodesMsg, wire.TypeOf(msg))
}

func TestPeer_HandshakeOptions(t *testing.T) {
	initiator, err := NewPeer(nil, 0)
	require.NoError(t, err)
	responder, err := NewPeer(net.IPv4(127, 0, 0, 1), 30304)
	require.NoError(t, err)

	hs, _, err := initiator.Handshake(responder.Node, []byte("challenge"), &wire.Ping{ReqID: []byte{1}}, HandshakeOptions{OmitRecord: true})
	require.NoError(t, err)
	kind := hs.Header.Kind.(*wire.HandshakeKind)
	assert.Nil(t, kind.Record)
}

func TestOpen_RejectsNonMessage(t *testing.T) {
	idNonce, err := wire.RandomIDNonce()
	require.NoError(t, err)
	pkt, err := wire.NewWhoAreYou(wire.Nonce{}, idNonce, 0)
	require.NoError(t, err)
	_, err = Open(session.New([16]byte{}, [16]byte{}), pkt, nil)
	assert.Error(t, err)
}
