package crypto

import "errors"

var (
	ErrInvalidRemotePublicKey = errors.New("invalid remote public key")
	ErrKeyDerivationFailed    = errors.New("session key derivation failed")
	ErrAuthenticationFailed   = errors.New("message authentication failed")
	ErrUnsupportedKeyType     = errors.New("unsupported key type")
	ErrInvalidKey             = errors.New("invalid symmetric key")
	ErrInvalidSignature       = errors.New("invalid id signature")
)
