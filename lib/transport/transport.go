package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var log = logger.GetGoI2PLogger()

// DefaultQueueSize is the capacity of the inbound and outbound queues.
const DefaultQueueSize = 30

// UDPConn is the socket a Transport runs on. *net.UDPConn satisfies it.
type UDPConn interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	LocalAddr() net.Addr
	Close() error
}

// Config tunes the queues and the send pacing.
type Config struct {
	// QueueSize is the capacity of each queue. 0 means DefaultQueueSize.
	QueueSize int
	// SendRate limits writes to this many packets per second. 0 disables pacing.
	SendRate float64
}

func DefaultConfig() Config {
	return Config{QueueSize: DefaultQueueSize}
}

// InboundPacket is a decoded datagram and the endpoint it came from.
// AuthData is IV || unmasked header, the AEAD associated data.
type InboundPacket struct {
	Src      netip.AddrPort
	Packet   *wire.Packet
	AuthData []byte
}

// OutboundPacket is a packet waiting to be encoded for Dest.
type OutboundPacket struct {
	Dest   NodeAddress
	Packet *wire.Packet
}

type Transport struct {
	conn    UDPConn
	localID enode.ID

	inbound  chan InboundPacket
	outbound chan OutboundPacket
	limiter  *rate.Limiter

	// Lifecycle management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	logger *logrus.Entry
}

// New wraps an already bound socket. Call Start to run the loops.
func New(conn UDPConn, localID enode.ID, cfg Config) *Transport {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:     conn,
		localID:  localID,
		inbound:  make(chan InboundPacket, cfg.QueueSize),
		outbound: make(chan OutboundPacket, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logrus.WithField("component", "discv5-udp"),
	}
	if cfg.SendRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	}
	log.WithFields(logger.Fields{
		"at":         "transport.New",
		"local_addr": conn.LocalAddr().String(),
		"queue_size": cfg.QueueSize,
		"send_rate":  cfg.SendRate,
	}).Debug("transport_created")
	return t
}

// Listen binds an IPv4 UDP socket on addr.
func Listen(addr netip.AddrPort, localID enode.ID, cfg Config) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, oops.Wrapf(err, "failed to bind udp socket on %s", addr)
	}
	return New(conn, localID, cfg), nil
}

// Start launches the receive and send loops. It is safe to call more than once.
func (t *Transport) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(2)
		go t.receiveLoop()
		go t.sendLoop()
	})
}

// Inbound yields decoded packets. It is closed when the receive loop exits.
func (t *Transport) Inbound() <-chan InboundPacket {
	return t.inbound
}

// LocalAddr returns the bound endpoint.
func (t *Transport) LocalAddr() netip.AddrPort {
	if ua, ok := t.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// Send queues pkt. It blocks while the queue is full and returns once the
// packet is queued, ctx is done or the transport is closed.
func (t *Transport) Send(ctx context.Context, pkt OutboundPacket) error {
	if t.ctx.Err() != nil {
		return ErrTransportClosed
	}
	select {
	case t.outbound <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrTransportClosed
	}
}

// Close stops both loops and closes the socket.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.closeErr = t.conn.Close()
		t.wg.Wait()
		t.logger.Debug("transport closed")
	})
	return t.closeErr
}

func (t *Transport) receiveLoop() {
	defer t.wg.Done()
	defer close(t.inbound)

	// Larger than MaxPacketSize so oversized datagrams reach the decoder intact.
	buf := make([]byte, 2*wire.MaxPacketSize)
	for {
		n, src, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.WithError(err).Warn("udp read failed")
			continue
		}
		src = netip.AddrPortFrom(src.Addr().Unmap(), src.Port())

		pkt, ad, err := wire.Decode(buf[:n], t.localID)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":   "(Transport) receiveLoop",
				"from": src.String(),
				"size": n,
			}).WithError(err).Warn("dropping_undecodable_packet")
			continue
		}

		select {
		case t.inbound <- InboundPacket{Src: src, Packet: pkt, AuthData: ad}:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) sendLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		case out := <-t.outbound:
			if t.limiter != nil {
				if err := t.limiter.Wait(t.ctx); err != nil {
					return
				}
			}
			t.write(out)
		}
	}
}

func (t *Transport) write(out OutboundPacket) {
	raw, err := wire.Encode(out.Packet, out.Dest.NodeID)
	if err != nil {
		t.logger.WithError(err).WithField("dest", out.Dest.String()).Warn("failed to encode packet")
		return
	}
	if _, err := t.conn.WriteToUDPAddrPort(raw, out.Dest.Addr); err != nil {
		if t.ctx.Err() != nil {
			return
		}
		t.logger.WithError(err).WithField("dest", out.Dest.String()).Warn("udp write failed")
		return
	}
	log.WithFields(logger.Fields{
		"at":   "(Transport) write",
		"dest": out.Dest.String(),
		"kind": out.Packet.Header.Kind.Flag().String(),
		"size": len(raw),
	}).Debug("packet_sent")
}
