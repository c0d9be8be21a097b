package transport

import (
	"fmt"
	"net/netip"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/samber/oops"
)

// NodeAddress identifies a peer by node id and UDP endpoint. It is comparable
// and used as a map key.
type NodeAddress struct {
	NodeID enode.ID
	Addr   netip.AddrPort
}

func (a NodeAddress) String() string {
	return fmt.Sprintf("%s@%s", a.NodeID.TerminalString(), a.Addr)
}

// NodeAddressOf returns the address advertised in a node's record.
func NodeAddressOf(n *enode.Node) (NodeAddress, error) {
	ip := n.IP()
	if ip == nil || n.UDP() == 0 {
		return NodeAddress{}, oops.Errorf("record of %s has no udp endpoint", n.ID().TerminalString())
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return NodeAddress{}, oops.Errorf("record of %s has invalid ip %v", n.ID().TerminalString(), ip)
	}
	return NodeAddress{
		NodeID: n.ID(),
		Addr:   netip.AddrPortFrom(addr.Unmap(), uint16(n.UDP())),
	}, nil
}
