package keys

import (
	"crypto/ecdsa"
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/discv5-testground/mockpeer/lib/util"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// ErrNoKey is returned when a keystore has no key loaded.
var ErrNoKey = errors.New("keystore holds no key")

// NodeKeystore keeps the node's secp256k1 key as a hex file.
type NodeKeystore struct {
	dir        string
	name       string
	privateKey *ecdsa.PrivateKey
}

var _ KeyStore = &NodeKeystore{}

// NewNodeKeystore loads the key stored under dir/name, generating and
// storing a new one if none exists.
func NewNodeKeystore(dir, name string) (*NodeKeystore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Wrapf(err, "failed to create key directory %s", dir)
	}
	ks := &NodeKeystore{dir: dir, name: name}
	fullPath := ks.path()
	if !util.CheckFileExists(fullPath) {
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, oops.Wrapf(err, "failed to generate node key")
		}
		ks.privateKey = key
		if err := ks.StoreKeys(); err != nil {
			return nil, err
		}
		log.WithFields(logger.Fields{
			"at":      "NewNodeKeystore",
			"path":    fullPath,
			"node_id": ks.KeyID(),
		}).Info("generated_node_key")
		return ks, nil
	}

	key, err := ethcrypto.LoadECDSA(fullPath)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load node key %s", fullPath)
	}
	ks.privateKey = key
	log.WithFields(logger.Fields{
		"at":      "NewNodeKeystore",
		"path":    fullPath,
		"node_id": ks.KeyID(),
	}).Debug("loaded_node_key")
	return ks, nil
}

// NewNodeKeystoreFromKey wraps an existing key.
func NewNodeKeystoreFromKey(dir, name string, key *ecdsa.PrivateKey) *NodeKeystore {
	return &NodeKeystore{dir: dir, name: name, privateKey: key}
}

func (ks *NodeKeystore) path() string {
	return filepath.Join(ks.dir, ks.name)
}

func (ks *NodeKeystore) GetKey() (*ecdsa.PrivateKey, error) {
	if ks.privateKey == nil {
		return nil, ErrNoKey
	}
	return ks.privateKey, nil
}

// StoreKeys writes the key with owner-only permissions.
func (ks *NodeKeystore) StoreKeys() error {
	if ks.privateKey == nil {
		return ErrNoKey
	}
	if err := os.MkdirAll(ks.dir, 0o700); err != nil {
		return oops.Wrapf(err, "failed to create key directory %s", ks.dir)
	}
	if err := ethcrypto.SaveECDSA(ks.path(), ks.privateKey); err != nil {
		return oops.Wrapf(err, "failed to store node key")
	}
	return nil
}

// KeyID is the abbreviated node id of the key.
func (ks *NodeKeystore) KeyID() string {
	if ks.privateKey == nil {
		if ks.name != "" {
			return ks.name
		}
		return "unknown"
	}
	return enode.PubkeyToIDV4(&ks.privateKey.PublicKey).TerminalString()
}

// ConstructNode signs a record for the key advertising ip and udpPort.
func (ks *NodeKeystore) ConstructNode(seq uint64, ip net.IP, udpPort int) (*enode.Node, error) {
	key, err := ks.GetKey()
	if err != nil {
		return nil, err
	}
	return LocalNode(key, seq, ip, udpPort)
}

// LocalNode signs a v4 record with sequence number seq. A nil ip or zero
// port is left out of the record.
func LocalNode(key *ecdsa.PrivateKey, seq uint64, ip net.IP, udpPort int) (*enode.Node, error) {
	var rec enr.Record
	rec.SetSeq(seq)
	if ip4 := ip.To4(); ip4 != nil {
		rec.Set(enr.IPv4(ip4))
	} else if ip != nil {
		rec.Set(enr.IPv6(ip))
	}
	if udpPort > 0 {
		rec.Set(enr.UDP(udpPort))
	}
	if err := enode.SignV4(&rec, key); err != nil {
		return nil, oops.Wrapf(err, "failed to sign local record")
	}
	node, err := enode.New(enode.ValidSchemes, &rec)
	if err != nil {
		return nil, oops.Wrapf(err, "invalid local record")
	}
	return node, nil
}
