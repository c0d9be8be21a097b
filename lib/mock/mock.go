// Package mock runs a scripted discv5 peer on a UDP socket. It is the entry
// point for tests and tools that embed the mock.
package mock

import (
	"context"
	"crypto/ecdsa"
	"net"
	"net/netip"
	"sync"

	"github.com/discv5-testground/mockpeer/lib/behaviour"
	"github.com/discv5-testground/mockpeer/lib/handler"
	"github.com/discv5-testground/mockpeer/lib/keys"
	"github.com/discv5-testground/mockpeer/lib/transport"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Config describes one mock peer.
type Config struct {
	// ListenAddr is the UDP endpoint to bind. Port 0 picks a free port.
	ListenAddr netip.AddrPort
	// AdvertiseIP is the ip put in the local record. Defaults to the listen
	// ip, or loopback when listening on the unspecified address.
	AdvertiseIP net.IP
	// Key is the node's static key. A fresh key is generated when nil.
	Key *ecdsa.PrivateKey
	// RecordSeq is the local record sequence number. 0 means 1.
	RecordSeq uint64

	Script            behaviour.Script
	Transport         transport.Config
	VerifyIDSignature bool
}

// Mock is a running mock peer.
type Mock struct {
	node *enode.Node
	tr   *transport.Transport
	h    *handler.Handler

	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	closeOnce sync.Once
	closeErr  error
}

// Start binds the socket and starts the transport and handler goroutines.
// The mock runs until ctx is done, Close is called or the script fails.
func Start(ctx context.Context, cfg Config) (*Mock, error) {
	if cfg.Script == nil {
		return nil, oops.Errorf("mock needs a behaviour script")
	}
	key := cfg.Key
	if key == nil {
		var err error
		if key, err = ethcrypto.GenerateKey(); err != nil {
			return nil, oops.Wrapf(err, "failed to generate node key")
		}
	}
	id := enode.PubkeyToIDV4(&key.PublicKey)

	tr, err := transport.Listen(cfg.ListenAddr, id, cfg.Transport)
	if err != nil {
		return nil, err
	}
	local := tr.LocalAddr()
	seq := cfg.RecordSeq
	if seq == 0 {
		seq = 1
	}
	node, err := keys.LocalNode(key, seq, ResolveAdvertiseIP(cfg.AdvertiseIP, local), int(local.Port()))
	if err != nil {
		tr.Close()
		return nil, err
	}

	h, err := handler.New(handler.Config{
		LocalKey:          key,
		LocalNode:         node,
		Script:            cfg.Script,
		VerifyIDSignature: cfg.VerifyIDSignature,
	}, tr.Inbound(), tr)
	if err != nil {
		tr.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Mock{
		node:   node,
		tr:     tr,
		h:      h,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	tr.Start()
	go m.run(ctx)

	log.WithFields(logger.Fields{
		"at":      "mock.Start",
		"node_id": id.TerminalString(),
		"addr":    local.String(),
	}).Info("mock_started")
	return m, nil
}

func (m *Mock) run(ctx context.Context) {
	defer close(m.done)
	m.err = m.h.Run(ctx)
	m.closeErr = m.tr.Close()
	if m.err != nil {
		log.WithField("at", "(Mock) run").WithError(m.err).Error("mock_failed")
	}
}

// SendRandomPacket sends a random message packet to the node of rec. A
// discv5 node without a session with us answers with WHOAREYOU.
func (m *Mock) SendRandomPacket(rec *enr.Record) error {
	return m.h.SendRandomPacket(context.Background(), rec)
}

// Wait blocks until the mock stops and returns the error that stopped it,
// or nil after a clean shutdown.
func (m *Mock) Wait() error {
	<-m.done
	return m.err
}

// Done is closed once the mock has stopped.
func (m *Mock) Done() <-chan struct{} {
	return m.done
}

// Close stops the mock and releases the socket.
func (m *Mock) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
	})
	return m.closeErr
}

// LocalNode is the mock's signed node record.
func (m *Mock) LocalNode() *enode.Node {
	return m.node
}

// LocalRecord is the mock's signed record.
func (m *Mock) LocalRecord() *enr.Record {
	return m.node.Record()
}

// LocalAddr is the bound UDP endpoint.
func (m *Mock) LocalAddr() netip.AddrPort {
	return m.tr.LocalAddr()
}

// Captured returns the captured requests. It is empty until the mock has
// stopped.
func (m *Mock) Captured() []handler.CapturedRequest {
	select {
	case <-m.done:
		return m.h.Captured()
	default:
		return nil
	}
}

// ResolveAdvertiseIP picks the ip a record advertises for an endpoint bound
// at local.
func ResolveAdvertiseIP(configured net.IP, local netip.AddrPort) net.IP {
	if configured != nil {
		return configured
	}
	if local.Addr().IsUnspecified() {
		return net.IPv4(127, 0, 0, 1)
	}
	return local.Addr().AsSlice()
}
