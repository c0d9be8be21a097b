// Package transport moves discv5 packets between one UDP socket and the
// packet handler.
//
// # Overview
//
// A Transport owns a bound socket and runs two goroutines over it:
//   - the receive loop reads datagrams, decodes them with lib/wire and
//     queues them on Inbound()
//   - the send loop drains the outbound queue, encodes each packet for its
//     destination node id and writes it to the socket
//
// Both queues are bounded. Send blocks while the outbound queue is full.
// Datagrams that fail to decode are logged and dropped; they never reach the
// handler.
//
// # Pacing
//
// With a non-zero Config.SendRate the send loop waits on a token bucket
// (golang.org/x/time/rate) before every write. This slows handshakes down
// without putting timers in the handler.
//
// # Usage Example
//
//	t, err := transport.Listen(netip.MustParseAddrPort("127.0.0.1:9000"), localID, transport.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//	t.Start()
//
//	for in := range t.Inbound() {
//	    // handle in.Packet
//	}
package transport
