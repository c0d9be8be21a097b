package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"io"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-128 session key size.
const KeySize = 16

const keyAgreementInfo = "discovery v5 key agreement"

// Key is one direction of a session.
type Key [KeySize]byte

// Zero overwrites the key with zeros.
func (k *Key) Zero() {
	zero(k[:])
}

// DeriveKeys expands a shared secret into the initiator and recipient keys.
// firstID is the handshake initiator, secondID the recipient. The challenge
// data is the HKDF salt.
func DeriveKeys(secret []byte, firstID, secondID enode.ID, challengeData []byte) (initiatorKey, recipientKey Key, err error) {
	info := make([]byte, 0, len(keyAgreementInfo)+2*len(firstID))
	info = append(info, keyAgreementInfo...)
	info = append(info, firstID[:]...)
	info = append(info, secondID[:]...)

	var okm [2 * KeySize]byte
	kdf := hkdf.New(sha256.New, secret, challengeData, info)
	if _, err := io.ReadFull(kdf, okm[:]); err != nil {
		return Key{}, Key{}, oops.Wrapf(ErrKeyDerivationFailed, "%v", err)
	}
	copy(initiatorKey[:], okm[:KeySize])
	copy(recipientKey[:], okm[KeySize:])
	for i := range okm {
		okm[i] = 0
	}
	return initiatorKey, recipientKey, nil
}

// DeriveSessionKeys derives the keys of the challenge sender (the handshake
// recipient). The remote is the initiator, so its id comes first in the
// expansion info. Only secp256k1 local keys are supported.
func DeriveSessionKeys(localKey *ecdsa.PrivateKey, localID, remoteID enode.ID, challengeData, remoteEphemeralKey []byte) (decryptionKey, encryptionKey Key, err error) {
	if err := checkCurve(localKey); err != nil {
		return Key{}, Key{}, err
	}
	remotePub, err := DecodePublicKey(remoteEphemeralKey)
	if err != nil {
		return Key{}, Key{}, err
	}
	secret, err := ECDH(localKey, remotePub)
	if err != nil {
		return Key{}, Key{}, err
	}
	defer zero(secret)

	decryptionKey, encryptionKey, err = DeriveKeys(secret, remoteID, localID, challengeData)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":        "crypto.DeriveSessionKeys",
			"remote_id": remoteID.TerminalString(),
		}).WithError(err).Error("session_key_derivation_failed")
		return Key{}, Key{}, err
	}
	return decryptionKey, encryptionKey, nil
}

// DeriveInitiatorKeys derives the keys of the handshake initiator from its
// ephemeral key and the recipient's static public key.
func DeriveInitiatorKeys(ephemeralKey *ecdsa.PrivateKey, remoteStatic *ecdsa.PublicKey, localID, remoteID enode.ID, challengeData []byte) (encryptionKey, decryptionKey Key, err error) {
	secret, err := ECDH(ephemeralKey, remoteStatic)
	if err != nil {
		return Key{}, Key{}, err
	}
	defer zero(secret)
	return DeriveKeys(secret, localID, remoteID, challengeData)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
