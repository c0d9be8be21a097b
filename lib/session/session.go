// Package session holds the symmetric state shared with one peer after a
// completed discv5 handshake.
package session

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/discv5-testground/mockpeer/lib/crypto"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Session is the pair of keys and the outbound message counter for one peer.
// It is owned by a single goroutine.
type Session struct {
	encryptionKey crypto.Key
	decryptionKey crypto.Key
	counter       uint32
	closed        bool
}

// New returns a session with the given keys. The counter starts at zero.
func New(encryptionKey, decryptionKey crypto.Key) *Session {
	return &Session{
		encryptionKey: encryptionKey,
		decryptionKey: decryptionKey,
	}
}

// EstablishFromChallenge derives a session from a challenge we issued and the
// handshake that answered it. remoteRecord must be the record carried in the
// handshake; it is returned so the caller can keep it with the session.
func EstablishFromChallenge(localKey *ecdsa.PrivateKey, localID, remoteID enode.ID, challengeData, ephemeralKey []byte, remoteRecord *enr.Record) (*Session, *enr.Record, error) {
	if remoteRecord == nil {
		return nil, nil, oops.Wrapf(ErrMissingRecord, "remote %s", remoteID.TerminalString())
	}
	dec, enc, err := crypto.DeriveSessionKeys(localKey, localID, remoteID, challengeData, ephemeralKey)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logger.Fields{
		"at":        "session.EstablishFromChallenge",
		"remote_id": remoteID.TerminalString(),
		"seq":       remoteRecord.Seq(),
	}).Debug("session_established")
	return adopt(&enc, &dec), remoteRecord, nil
}

// adopt builds a session from freshly derived keys and wipes the caller's
// copies.
func adopt(enc, dec *crypto.Key) *Session {
	s := New(*enc, *dec)
	enc.Zero()
	dec.Zero()
	return s
}

// Counter returns the number of messages encrypted so far.
func (s *Session) Counter() uint32 {
	return s.counter
}

func (s *Session) nextNonce() (wire.Nonce, error) {
	var n wire.Nonce
	if s.counter == math.MaxUint32 {
		return n, ErrNonceExhausted
	}
	s.counter++
	binary.BigEndian.PutUint32(n[:4], s.counter)
	if _, err := rand.Read(n[4:]); err != nil {
		return n, oops.Wrapf(err, "failed to generate nonce")
	}
	return n, nil
}

// Encrypt seals plaintext into a Message packet sent from srcID.
func (s *Session) Encrypt(srcID enode.ID, plaintext []byte) (*wire.Packet, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	nonce, err := s.nextNonce()
	if err != nil {
		return nil, err
	}
	iv, err := wire.RandomIV()
	if err != nil {
		return nil, err
	}
	p := &wire.Packet{
		IV:     iv,
		Header: wire.Header{Nonce: nonce, Kind: &wire.MessageKind{SrcID: srcID}},
	}
	ad, err := p.AuthenticatedData()
	if err != nil {
		return nil, err
	}
	p.Message, err = crypto.Encrypt(s.encryptionKey, nonce, plaintext, ad)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Decrypt opens a message sealed by the peer. The counter is not touched.
func (s *Session) Decrypt(nonce wire.Nonce, ciphertext, ad []byte) ([]byte, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	return crypto.Decrypt(s.decryptionKey, nonce, ciphertext, ad)
}

// Close wipes both keys. Further use fails with ErrSessionClosed.
func (s *Session) Close() {
	s.encryptionKey.Zero()
	s.decryptionKey.Zero()
	s.closed = true
}
