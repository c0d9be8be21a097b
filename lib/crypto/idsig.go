package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/samber/oops"
)

const idSignatureText = "discovery v5 identity proof"

// IDSignatureSize is the size of a handshake id-signature (r || s).
const IDSignatureSize = 64

// IDNonceHash is the digest signed by a handshake initiator.
func IDNonceHash(challengeData, ephemeralKey []byte, destID enode.ID) []byte {
	h := sha256.New()
	h.Write([]byte(idSignatureText))
	h.Write(challengeData)
	h.Write(ephemeralKey)
	h.Write(destID[:])
	return h.Sum(nil)
}

// SignIDNonce produces the id-signature proving ownership of key.
func SignIDNonce(key *ecdsa.PrivateKey, challengeData, ephemeralKey []byte, destID enode.ID) ([]byte, error) {
	if err := checkCurve(key); err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(IDNonceHash(challengeData, ephemeralKey, destID), key)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to sign id nonce")
	}
	return sig[:IDSignatureSize], nil
}

// VerifyIDSignature checks a handshake id-signature against the initiator's
// static public key.
func VerifyIDSignature(pub *ecdsa.PublicKey, sig, challengeData, ephemeralKey []byte, destID enode.ID) error {
	if pub == nil {
		return oops.Wrapf(ErrInvalidSignature, "no public key")
	}
	if len(sig) != IDSignatureSize {
		return oops.Wrapf(ErrInvalidSignature, "unexpected signature size %d", len(sig))
	}
	hash := IDNonceHash(challengeData, ephemeralKey, destID)
	if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(pub), hash, sig) {
		return ErrInvalidSignature
	}
	return nil
}
