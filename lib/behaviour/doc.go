// Package behaviour describes how the mock peer reacts to inbound packets.
//
// A script is either Sequential, an ordered list of Behaviour entries where
// every inbound packet consumes exactly one entry, or Declarative, a fixed
// table mapping each packet class to a list of actions.
//
// Each Behaviour pairs an Expect, the class of packet (and for encrypted
// packets the request kind) that must arrive next, with the Actions the
// handler executes for it.
//
// Scripts are usually built in Go by test code. Load and Parse read the same
// structure from YAML for the command line tool:
//
//	sequential:
//	  - expect: {kind: message_without_session}
//	    actions:
//	      - type: send_whoareyou
//	  - expect: {kind: handshake, request: findnode}
//	    actions:
//	      - type: establish_session
//	      - type: capture_request
//	      - type: send_response
//	        custom:
//	          - captured: 0
//	            message: {type: nodes, total: 2}
package behaviour
