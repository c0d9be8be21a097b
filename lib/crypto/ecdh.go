package crypto

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/oops"
)

// SharedSecretSize is the size of a compressed secp256k1 point.
const SharedSecretSize = 33

// ECDH returns the compressed point pub * priv. Both keys must be on secp256k1.
func ECDH(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	if err := checkCurve(priv); err != nil {
		return nil, err
	}
	if pub == nil || pub.X == nil || !ethcrypto.S256().IsOnCurve(pub.X, pub.Y) {
		return nil, oops.Wrapf(ErrInvalidRemotePublicKey, "point is not on secp256k1")
	}
	x, y := ethcrypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	if x == nil {
		return nil, oops.Wrapf(ErrInvalidRemotePublicKey, "scalar multiplication produced no point")
	}
	secret := make([]byte, SharedSecretSize)
	secret[0] = 0x02 | byte(y.Bit(0))
	x.FillBytes(secret[1:])
	return secret, nil
}

// DecodePublicKey parses a compressed or uncompressed secp256k1 public key.
func DecodePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(b) {
	case SharedSecretSize:
		pub, err = ethcrypto.DecompressPubkey(b)
	case 65:
		pub, err = ethcrypto.UnmarshalPubkey(b)
	default:
		return nil, oops.Wrapf(ErrInvalidRemotePublicKey, "unexpected public key size %d", len(b))
	}
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidRemotePublicKey, "%v", err)
	}
	return pub, nil
}

func checkCurve(key *ecdsa.PrivateKey) error {
	if key == nil {
		return oops.Wrapf(ErrUnsupportedKeyType, "no local key")
	}
	if key.Curve != ethcrypto.S256() {
		return oops.Wrapf(ErrUnsupportedKeyType, "local key curve %s", key.Curve.Params().Name)
	}
	return nil
}
