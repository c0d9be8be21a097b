package wire

import (
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_PongCarriesEndpoint(t *testing.T) {
	in := &Pong{ReqID: []byte{1, 2}, ENRSeq: 3, ToIP: net.IP{10, 0, 0, 7}.To4(), ToPort: 9000}
	b, err := EncodeMessage(in)
	require.NoError(t, err)
	assert.Equal(t, byte(PongMsg), b[0])

	out, err := DecodeMessage(b)
	require.NoError(t, err)
	pong, ok := out.(*Pong)
	require.True(t, ok)
	assert.Equal(t, in.ReqID, pong.ReqID)
	assert.Equal(t, uint64(3), pong.ENRSeq)
	assert.True(t, pong.ToIP.Equal(net.IP{10, 0, 0, 7}))
	assert.Equal(t, uint16(9000), pong.ToPort)
}

func TestMessage_NodesCarriesRecords(t *testing.T) {
	rec := signedRecord(t)
	b, err := EncodeMessage(&Nodes{ReqID: []byte("id"), RespCount: 2, Nodes: []*enr.Record{rec}})
	require.NoError(t, err)

	out, err := DecodeMessage(b)
	require.NoError(t, err)
	nodes := out.(*Nodes)
	assert.Equal(t, uint8(2), nodes.RespCount)
	require.Len(t, nodes.Nodes, 1)
	assert.Equal(t, rec.Seq(), nodes.Nodes[0].Seq())
}

func TestMessage_RequestKinds(t *testing.T) {
	tests := []struct {
		msg     Message
		request bool
	}{
		{&Ping{ReqID: []byte{1}}, true},
		{&FindNode{ReqID: []byte{1}, Distances: []uint{256, 255}}, true},
		{&TalkRequest{ReqID: []byte{1}, Protocol: "test", Message: []byte("hi")}, true},
		{&Pong{ReqID: []byte{1}, ToIP: net.IP{127, 0, 0, 1}}, false},
		{&TalkResponse{ReqID: []byte{1}}, false},
	}
	for _, tt := range tests {
		t.Run(TypeOf(tt.msg).String(), func(t *testing.T) {
			b, err := EncodeMessage(tt.msg)
			require.NoError(t, err)
			out, err := DecodeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, TypeOf(tt.msg), TypeOf(out))
			assert.Equal(t, tt.request, TypeOf(out).IsRequest())
			assert.Equal(t, tt.msg.RequestID(), out.RequestID())
		})
	}
}

func TestDecodeMessage_Errors(t *testing.T) {
	_, err := DecodeMessage(nil)
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = DecodeMessage([]byte{0x7f, 0xc0})
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeMessage([]byte{byte(PingMsg), 0xff})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEncodeMessage_RequestIDTooLong(t *testing.T) {
	_, err := EncodeMessage(&Ping{ReqID: make([]byte, MaxRequestIDSize+1)})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestCopyMessage_Independent(t *testing.T) {
	orig := &Nodes{ReqID: []byte{1}, RespCount: 3}
	cp, err := CopyMessage(orig)
	require.NoError(t, err)
	cp.SetRequestID([]byte{2})

	assert.Equal(t, []byte{1}, orig.ReqID)
	assert.Equal(t, []byte{2}, cp.RequestID())
	assert.Equal(t, uint8(3), cp.(*Nodes).RespCount)
}
