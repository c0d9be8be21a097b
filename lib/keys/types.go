package keys

import (
	"crypto/ecdsa"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// KeyStore is an interface for storing and retrieving node keys
type KeyStore interface {
	KeyID() string
	// GetKey returns the node's static secp256k1 key
	GetKey() (*ecdsa.PrivateKey, error)
	// StoreKeys stores the keys
	StoreKeys() error
}
