// Package wire implements the discv5 v5.1 packet codec used by the mock peer.
//
// # Packet Layout
//
//	packet        = masking-iv || masked-header || message
//	masked-header = aesctr(dest-id[:16], masking-iv, header)
//	header        = static-header || authdata
//	static-header = "discv5" || version || flag || nonce || authdata-size
//
// Three packet kinds are distinguished by the flag byte:
//   - MessageKind (0): authdata is the sender node id, message is AES-GCM ciphertext
//   - WhoAreYouKind (1): authdata is id-nonce || enr-seq, message is empty
//   - HandshakeKind (2): sender id, id-signature, ephemeral key and optional record
//
// # Authenticated Data
//
// Decode returns the masking IV concatenated with the unmasked header. That
// byte string is the associated data of the AEAD step and, for a WHOAREYOU
// packet, the challenge data fed into key derivation.
//
// # RPC Messages
//
// Decrypted message bodies are a type byte followed by an RLP list. See
// messages.go for the request/response set (PING/PONG, FINDNODE/NODES,
// TALKREQ/TALKRESP).
package wire
