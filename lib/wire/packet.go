package wire

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/samber/oops"
)

// Field widths of the discv5 v5.1 wire format.
const (
	MaskingIVSize    = 16
	NonceSize        = 12
	IDNonceSize      = 16
	StaticHeaderSize = 23
	NodeIDSize       = 32

	whoAreYouAuthSize     = IDNonceSize + 8
	handshakeAuthHeadSize = NodeIDSize + 2
	messageAuthSize       = NodeIDSize

	// MinPacketSize is the size of the smallest valid packet, a WHOAREYOU.
	MinPacketSize = MaskingIVSize + StaticHeaderSize + whoAreYouAuthSize
	MaxPacketSize = 1280

	// ChallengeDataSize is the size of IV || header of a WHOAREYOU packet.
	ChallengeDataSize = MinPacketSize

	randomPacketMessageSize = 44
)

const protocolVersion uint16 = 1

var protocolID = [6]byte{'d', 'i', 's', 'c', 'v', '5'}

// Flag is the packet kind discriminant carried in the static header.
type Flag byte

const (
	FlagMessage   Flag = 0
	FlagWhoAreYou Flag = 1
	FlagHandshake Flag = 2
)

func (f Flag) String() string {
	switch f {
	case FlagMessage:
		return "message"
	case FlagWhoAreYou:
		return "whoareyou"
	case FlagHandshake:
		return "handshake"
	default:
		return fmt.Sprintf("unknown(%d)", byte(f))
	}
}

type (
	Nonce   [NonceSize]byte
	IDNonce [IDNonceSize]byte
)

// Kind holds the flag-specific part of a packet header.
// It is implemented by *MessageKind, *WhoAreYouKind and *HandshakeKind.
type Kind interface {
	Flag() Flag
	authData() ([]byte, error)
}

// MessageKind marks an ordinary (encrypted, or random pre-session) message.
type MessageKind struct {
	SrcID enode.ID
}

// WhoAreYouKind is the challenge sent to a sender without a session.
type WhoAreYouKind struct {
	IDNonce   IDNonce
	RecordSeq uint64
}

// HandshakeKind answers a WHOAREYOU and carries the initiator's proof of identity.
type HandshakeKind struct {
	SrcID        enode.ID
	IDSignature  []byte
	EphemeralKey []byte
	Record       *enr.Record // nil when the recipient already knows the record
}

func (k *MessageKind) Flag() Flag   { return FlagMessage }
func (k *WhoAreYouKind) Flag() Flag { return FlagWhoAreYou }
func (k *HandshakeKind) Flag() Flag { return FlagHandshake }

func (k *MessageKind) authData() ([]byte, error) {
	return append([]byte(nil), k.SrcID[:]...), nil
}

func (k *WhoAreYouKind) authData() ([]byte, error) {
	b := make([]byte, whoAreYouAuthSize)
	copy(b, k.IDNonce[:])
	binary.BigEndian.PutUint64(b[IDNonceSize:], k.RecordSeq)
	return b, nil
}

func (k *HandshakeKind) authData() ([]byte, error) {
	if len(k.IDSignature) > 255 || len(k.EphemeralKey) > 255 {
		return nil, oops.Wrapf(ErrMalformedPacket, "handshake field too large: sig=%d key=%d", len(k.IDSignature), len(k.EphemeralKey))
	}
	b := make([]byte, 0, handshakeAuthHeadSize+len(k.IDSignature)+len(k.EphemeralKey))
	b = append(b, k.SrcID[:]...)
	b = append(b, byte(len(k.IDSignature)), byte(len(k.EphemeralKey)))
	b = append(b, k.IDSignature...)
	b = append(b, k.EphemeralKey...)
	if k.Record != nil {
		rec, err := rlp.EncodeToBytes(k.Record)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to encode handshake record")
		}
		b = append(b, rec...)
	}
	return b, nil
}

// Header is the unmasked packet header.
type Header struct {
	Nonce Nonce
	Kind  Kind
}

// Encode returns static-header || authdata.
func (h *Header) Encode() ([]byte, error) {
	if h.Kind == nil {
		return nil, oops.Wrapf(ErrMalformedPacket, "header has no kind")
	}
	auth, err := h.Kind.authData()
	if err != nil {
		return nil, err
	}
	if len(auth) > 0xffff {
		return nil, oops.Wrapf(ErrMalformedPacket, "authdata too large: %d bytes", len(auth))
	}
	b := make([]byte, StaticHeaderSize, StaticHeaderSize+len(auth))
	copy(b, protocolID[:])
	binary.BigEndian.PutUint16(b[6:8], protocolVersion)
	b[8] = byte(h.Kind.Flag())
	copy(b[9:21], h.Nonce[:])
	binary.BigEndian.PutUint16(b[21:23], uint16(len(auth)))
	return append(b, auth...), nil
}

// Packet is one datagram.
type Packet struct {
	IV      [MaskingIVSize]byte
	Header  Header
	Message []byte
}

// AuthenticatedData returns IV || header. For a WHOAREYOU packet this is the
// challenge data.
func (p *Packet) AuthenticatedData() ([]byte, error) {
	hdr, err := p.Header.Encode()
	if err != nil {
		return nil, err
	}
	ad := make([]byte, 0, MaskingIVSize+len(hdr))
	ad = append(ad, p.IV[:]...)
	return append(ad, hdr...), nil
}

// Encode serializes p for the node destID. The output only depends on p and
// destID.
func Encode(p *Packet, destID enode.ID) ([]byte, error) {
	hdr, err := p.Header.Encode()
	if err != nil {
		return nil, err
	}
	if p.Header.Kind.Flag() == FlagWhoAreYou && len(p.Message) != 0 {
		return nil, oops.Wrapf(ErrMalformedPacket, "whoareyou packet with %d message bytes", len(p.Message))
	}
	size := MaskingIVSize + len(hdr) + len(p.Message)
	if size > MaxPacketSize {
		return nil, oops.Wrapf(ErrMalformedPacket, "packet too large: %d bytes", size)
	}

	out := make([]byte, size)
	copy(out, p.IV[:])
	stream, err := maskingStream(destID, p.IV)
	if err != nil {
		return nil, err
	}
	stream.XORKeyStream(out[MaskingIVSize:], hdr)
	copy(out[MaskingIVSize+len(hdr):], p.Message)
	return out, nil
}

// Decode parses a datagram addressed to localID. The returned authenticated
// data is IV || unmasked header and must be passed unmodified to the AEAD step.
func Decode(raw []byte, localID enode.ID) (*Packet, []byte, error) {
	if len(raw) < MinPacketSize {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "packet too short: %d bytes", len(raw))
	}
	if len(raw) > MaxPacketSize {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "packet too large: %d bytes", len(raw))
	}

	p := new(Packet)
	copy(p.IV[:], raw[:MaskingIVSize])
	stream, err := maskingStream(localID, p.IV)
	if err != nil {
		return nil, nil, err
	}

	static := make([]byte, StaticHeaderSize)
	stream.XORKeyStream(static, raw[MaskingIVSize:MaskingIVSize+StaticHeaderSize])
	if !bytes.Equal(static[:6], protocolID[:]) {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "invalid protocol id")
	}
	if v := binary.BigEndian.Uint16(static[6:8]); v != protocolVersion {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "unsupported protocol version %d", v)
	}
	flag := Flag(static[8])
	copy(p.Header.Nonce[:], static[9:21])
	authSize := int(binary.BigEndian.Uint16(static[21:23]))

	headerEnd := MaskingIVSize + StaticHeaderSize + authSize
	if len(raw) < headerEnd {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "truncated authdata: want %d bytes, have %d", authSize, len(raw)-MaskingIVSize-StaticHeaderSize)
	}
	auth := make([]byte, authSize)
	stream.XORKeyStream(auth, raw[MaskingIVSize+StaticHeaderSize:headerEnd])

	kind, err := decodeKind(flag, auth)
	if err != nil {
		return nil, nil, err
	}
	p.Header.Kind = kind
	p.Message = append([]byte(nil), raw[headerEnd:]...)
	if flag == FlagWhoAreYou && len(p.Message) != 0 {
		return nil, nil, oops.Wrapf(ErrMalformedPacket, "whoareyou packet with %d message bytes", len(p.Message))
	}

	ad := make([]byte, 0, headerEnd)
	ad = append(ad, p.IV[:]...)
	ad = append(ad, static...)
	ad = append(ad, auth...)
	return p, ad, nil
}

func decodeKind(flag Flag, auth []byte) (Kind, error) {
	switch flag {
	case FlagMessage:
		if len(auth) != messageAuthSize {
			return nil, oops.Wrapf(ErrMalformedPacket, "message authdata size %d", len(auth))
		}
		k := new(MessageKind)
		copy(k.SrcID[:], auth)
		return k, nil

	case FlagWhoAreYou:
		if len(auth) != whoAreYouAuthSize {
			return nil, oops.Wrapf(ErrMalformedPacket, "whoareyou authdata size %d", len(auth))
		}
		k := new(WhoAreYouKind)
		copy(k.IDNonce[:], auth[:IDNonceSize])
		k.RecordSeq = binary.BigEndian.Uint64(auth[IDNonceSize:])
		return k, nil

	case FlagHandshake:
		if len(auth) < handshakeAuthHeadSize {
			return nil, oops.Wrapf(ErrMalformedPacket, "handshake authdata size %d", len(auth))
		}
		k := new(HandshakeKind)
		copy(k.SrcID[:], auth[:NodeIDSize])
		sigSize, keySize := int(auth[NodeIDSize]), int(auth[NodeIDSize+1])
		rest := auth[handshakeAuthHeadSize:]
		if len(rest) < sigSize+keySize {
			return nil, oops.Wrapf(ErrMalformedPacket, "truncated handshake authdata")
		}
		k.IDSignature = append([]byte(nil), rest[:sigSize]...)
		k.EphemeralKey = append([]byte(nil), rest[sigSize:sigSize+keySize]...)
		if rec := rest[sigSize+keySize:]; len(rec) > 0 {
			k.Record = new(enr.Record)
			if err := rlp.DecodeBytes(rec, k.Record); err != nil {
				return nil, oops.Wrapf(ErrMalformedPacket, "invalid handshake record: %v", err)
			}
		}
		return k, nil

	default:
		return nil, oops.Wrapf(ErrUnknownPacketKind, "flag %d", byte(flag))
	}
}

func maskingStream(id enode.ID, iv [MaskingIVSize]byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(id[:16])
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create masking cipher")
	}
	return cipher.NewCTR(block, iv[:]), nil
}

// RandomNonce returns a fresh random message nonce.
func RandomNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, oops.Wrapf(err, "failed to generate nonce")
	}
	return n, nil
}

// RandomIDNonce returns a fresh random WHOAREYOU id-nonce.
func RandomIDNonce() (IDNonce, error) {
	var n IDNonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, oops.Wrapf(err, "failed to generate id nonce")
	}
	return n, nil
}

// RandomIV returns a fresh random masking IV.
func RandomIV() ([MaskingIVSize]byte, error) {
	var iv [MaskingIVSize]byte
	if _, err := rand.Read(iv[:]); err != nil {
		return iv, oops.Wrapf(err, "failed to generate masking iv")
	}
	return iv, nil
}

// NewWhoAreYou builds a challenge answering the packet with nonce requestNonce.
// enrSeq is the record sequence the sender believes the recipient has; zero
// asks the recipient to include its record in the handshake.
func NewWhoAreYou(requestNonce Nonce, idNonce IDNonce, enrSeq uint64) (*Packet, error) {
	iv, err := RandomIV()
	if err != nil {
		return nil, err
	}
	return &Packet{
		IV: iv,
		Header: Header{
			Nonce: requestNonce,
			Kind:  &WhoAreYouKind{IDNonce: idNonce, RecordSeq: enrSeq},
		},
	}, nil
}

// NewRandom builds a message packet with a random nonce and random body. A
// peer without a session to srcID answers it with WHOAREYOU.
func NewRandom(srcID enode.ID) (*Packet, error) {
	iv, err := RandomIV()
	if err != nil {
		return nil, err
	}
	nonce, err := RandomNonce()
	if err != nil {
		return nil, err
	}
	body := make([]byte, randomPacketMessageSize)
	if _, err := rand.Read(body); err != nil {
		return nil, oops.Wrapf(err, "failed to generate random message")
	}
	return &Packet{
		IV:      iv,
		Header:  Header{Nonce: nonce, Kind: &MessageKind{SrcID: srcID}},
		Message: body,
	}, nil
}
