package wire

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomID(t *testing.T) enode.ID {
	t.Helper()
	var id enode.ID
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

func signedRecord(t *testing.T) *enr.Record {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	var r enr.Record
	r.Set(enr.IPv4(net.IP{127, 0, 0, 1}))
	r.Set(enr.UDP(9000))
	require.NoError(t, enode.SignV4(&r, key))
	return &r
}

type bogusKind struct{}

func (bogusKind) Flag() Flag                { return Flag(7) }
func (bogusKind) authData() ([]byte, error) { return make([]byte, 24), nil }

func TestPacket_MessageRoundTrip(t *testing.T) {
	dest, src := randomID(t), randomID(t)
	nonce, err := RandomNonce()
	require.NoError(t, err)
	iv, err := RandomIV()
	require.NoError(t, err)

	p := &Packet{
		IV:      iv,
		Header:  Header{Nonce: nonce, Kind: &MessageKind{SrcID: src}},
		Message: []byte("opaque ciphertext bytes"),
	}
	raw, err := Encode(p, dest)
	require.NoError(t, err)

	decoded, ad, err := Decode(raw, dest)
	require.NoError(t, err)
	assert.Equal(t, p.IV, decoded.IV)
	assert.Equal(t, nonce, decoded.Header.Nonce)
	require.IsType(t, &MessageKind{}, decoded.Header.Kind)
	assert.Equal(t, src, decoded.Header.Kind.(*MessageKind).SrcID)
	assert.Equal(t, p.Message, decoded.Message)

	want, err := p.AuthenticatedData()
	require.NoError(t, err)
	assert.Equal(t, want, ad, "authenticated data must be iv || unmasked header")
}

func TestPacket_EncodeIsDeterministic(t *testing.T) {
	dest, src := randomID(t), randomID(t)
	p, err := NewRandom(src)
	require.NoError(t, err)

	a, err := Encode(p, dest)
	require.NoError(t, err)
	b, err := Encode(p, dest)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPacket_WhoAreYouChallengeData(t *testing.T) {
	dest := randomID(t)
	nonce, err := RandomNonce()
	require.NoError(t, err)
	idNonce, err := RandomIDNonce()
	require.NoError(t, err)

	p, err := NewWhoAreYou(nonce, idNonce, 5)
	require.NoError(t, err)
	challenge, err := p.AuthenticatedData()
	require.NoError(t, err)
	assert.Len(t, challenge, ChallengeDataSize)

	raw, err := Encode(p, dest)
	require.NoError(t, err)
	assert.Len(t, raw, MinPacketSize)

	decoded, ad, err := Decode(raw, dest)
	require.NoError(t, err)
	assert.Equal(t, challenge, ad)
	assert.Equal(t, nonce, decoded.Header.Nonce, "whoareyou echoes the request nonce")
	kind := decoded.Header.Kind.(*WhoAreYouKind)
	assert.Equal(t, idNonce, kind.IDNonce)
	assert.Equal(t, uint64(5), kind.RecordSeq)
}

func TestPacket_HandshakeWithRecord(t *testing.T) {
	dest, src := randomID(t), randomID(t)
	rec := signedRecord(t)
	eph, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig := make([]byte, 64)
	_, err = rand.Read(sig)
	require.NoError(t, err)

	p := &Packet{
		Header: Header{Kind: &HandshakeKind{
			SrcID:        src,
			IDSignature:  sig,
			EphemeralKey: crypto.CompressPubkey(&eph.PublicKey),
			Record:       rec,
		}},
		Message: make([]byte, 32),
	}
	raw, err := Encode(p, dest)
	require.NoError(t, err)

	decoded, _, err := Decode(raw, dest)
	require.NoError(t, err)
	kind := decoded.Header.Kind.(*HandshakeKind)
	assert.Equal(t, src, kind.SrcID)
	assert.Equal(t, sig, kind.IDSignature)
	assert.Equal(t, crypto.CompressPubkey(&eph.PublicKey), kind.EphemeralKey)
	require.NotNil(t, kind.Record)
	assert.Equal(t, rec.Seq(), kind.Record.Seq())

	node, err := enode.New(enode.ValidSchemes, kind.Record)
	require.NoError(t, err, "record signature must survive the round trip")
	assert.Equal(t, 9000, node.UDP())
}

func TestPacket_HandshakeWithoutRecord(t *testing.T) {
	dest := randomID(t)
	p := &Packet{
		Header: Header{Kind: &HandshakeKind{
			SrcID:        randomID(t),
			IDSignature:  make([]byte, 64),
			EphemeralKey: make([]byte, 33),
		}},
		Message: make([]byte, 16),
	}
	raw, err := Encode(p, dest)
	require.NoError(t, err)

	decoded, _, err := Decode(raw, dest)
	require.NoError(t, err)
	assert.Nil(t, decoded.Header.Kind.(*HandshakeKind).Record)
}

func TestDecode_TooShort(t *testing.T) {
	_, _, err := Decode(make([]byte, MinPacketSize-1), randomID(t))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecode_TooLarge(t *testing.T) {
	_, _, err := Decode(make([]byte, MaxPacketSize+1), randomID(t))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecode_WrongRecipient(t *testing.T) {
	p, err := NewRandom(randomID(t))
	require.NoError(t, err)
	raw, err := Encode(p, randomID(t))
	require.NoError(t, err)

	_, _, err = Decode(raw, randomID(t))
	assert.ErrorIs(t, err, ErrMalformedPacket, "unmasking with another id yields a garbage protocol id")
}

func TestDecode_UnknownFlag(t *testing.T) {
	dest := randomID(t)
	p := &Packet{Header: Header{Kind: bogusKind{}}}
	raw, err := Encode(p, dest)
	require.NoError(t, err)

	_, _, err = Decode(raw, dest)
	assert.ErrorIs(t, err, ErrUnknownPacketKind)
}

func TestDecode_TruncatedAuthData(t *testing.T) {
	dest := randomID(t)
	p, err := NewRandom(randomID(t))
	require.NoError(t, err)
	p.Message = nil
	raw, err := Encode(p, dest)
	require.NoError(t, err)

	_, _, err = Decode(raw[:len(raw)-1], dest)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestEncode_WhoAreYouWithBody(t *testing.T) {
	p, err := NewWhoAreYou(Nonce{}, IDNonce{}, 0)
	require.NoError(t, err)
	p.Message = []byte{1}
	_, err = Encode(p, randomID(t))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}
