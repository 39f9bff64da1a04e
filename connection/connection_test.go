// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/transport"
)

// fakeTransport is a transport.Transport test double driven directly by
// the test: deliver() feeds bytes as if they arrived from the peer,
// written() drains whatever the connection wrote.
type fakeTransport struct {
	state   transport.State
	onData  func([]byte)
	onState func(old, new transport.State)
	out     []byte
	closed  bool
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.state = transport.Open
	return nil
}
func (f *fakeTransport) Close() error { f.closed = true; return nil }
func (f *fakeTransport) Write(p []byte) (int, error) {
	f.out = append(f.out, p...)
	return len(p), nil
}
func (f *fakeTransport) DoWork() error                                        { return nil }
func (f *fakeTransport) State() transport.State                               { return f.state }
func (f *fakeTransport) SetOnData(cb func([]byte))                            { f.onData = cb }
func (f *fakeTransport) SetOnStateChanged(cb func(old, new transport.State))  { f.onState = cb }

func (f *fakeTransport) deliver(b []byte) { f.onData(b) }

func (f *fakeTransport) written() []byte {
	out := f.out
	f.out = nil
	return out
}

func openPeerOpen(t *testing.T) []byte {
	t.Helper()
	body := amqpvalue.ListOf()
	peerContainer, _ := amqpvalue.String("peer")
	body.AppendListItem(peerContainer)
	body.AppendListItem(amqpvalue.Null())
	body.AppendListItem(amqpvalue.Uint(65536))
	body.AppendListItem(amqpvalue.Ushort(65535))
	perf := amqpvalue.Described(amqpvalue.Ulong(descOpen), body)

	var buf []byte
	bw := &testWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, 0, perf, nil))
	return buf
}

type testWriter struct{ buf *[]byte }

func (w *testWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// TestHandshakeReachesOpened covers P6 (byte-exact header) end to end.
func TestHandshakeReachesOpened(t *testing.T) {
	tp := &fakeTransport{}
	conn := New(tp, Options{ContainerID: "client"})
	require.NoError(t, conn.Open(context.Background()))
	assert.Equal(t, StateHdrSent, conn.State())

	sentHeader := tp.written()
	assert.Equal(t, amqpHeader, sentHeader)

	// Peer echoes the header then immediately its own OPEN in one chunk.
	tp.deliver(append(append([]byte{}, amqpHeader...), openPeerOpen(t)...))

	assert.Equal(t, StateOpened, conn.State())

	// The local header already went out in Open (checked above), so what
	// the connection writes now starts with its local OPEN frame.
	localSent := tp.written()
	var code uint64
	dec := amqpframe.NewDecoder(0)
	dec.OnAMQPFrame = func(f amqpframe.AMQPFrame) error {
		descriptor, _ := f.Performative.Descriptor()
		code, _ = descriptor.Ulong()
		return nil
	}
	_, err := dec.Write(localSent)
	require.NoError(t, err)
	assert.Equal(t, uint64(descOpen), code, "local OPEN must follow the local header")
}

// TestCloseSendsBeforeTransportClose covers the redesigned CLOSE behavior:
// the connection must send its own CLOSE before tearing down the
// transport, never the reverse.
func TestCloseSendsBeforeTransportClose(t *testing.T) {
	tp := &fakeTransport{}
	conn := New(tp, Options{ContainerID: "client"})
	require.NoError(t, conn.Open(context.Background()))
	tp.written()
	tp.deliver(append(append([]byte{}, amqpHeader...), openPeerOpen(t)...))
	tp.written()
	require.Equal(t, StateOpened, conn.State())

	closeFrame := encodeClose(t, nil)
	tp.deliver(closeFrame)

	out := tp.written()
	require.NotEmpty(t, out, "must send our own CLOSE before closing the transport")
	assert.True(t, tp.closed)
	assert.Equal(t, StateEnd, conn.State())
}

func encodeClose(t *testing.T, cond *string) []byte {
	t.Helper()
	body := amqpvalue.ListOf()
	perf := amqpvalue.Described(amqpvalue.Ulong(descClose), body)
	var buf []byte
	bw := &testWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, 0, perf, nil))
	return buf
}

func encodeCloseOnChannel(t *testing.T, channel uint16) []byte {
	t.Helper()
	body := amqpvalue.ListOf()
	perf := amqpvalue.Described(amqpvalue.Ulong(descClose), body)
	var buf []byte
	bw := &testWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, channel, perf, nil))
	return buf
}

// decodeCloseCondition decodes a single AMQP frame out of b and returns the
// condition symbol carried by its CLOSE performative's error field.
func decodeCloseCondition(t *testing.T, b []byte) string {
	t.Helper()
	var cond string
	dec := amqpframe.NewDecoder(0)
	dec.OnAMQPFrame = func(f amqpframe.AMQPFrame) error {
		body, _ := f.Performative.Body()
		errVal, ok := body.ListItem(0)
		require.True(t, ok, "CLOSE must carry an error")
		errBody, _ := errVal.Body()
		condVal, ok := errBody.ListItem(0)
		require.True(t, ok)
		sym, ok := condVal.Symbol()
		require.True(t, ok)
		cond = sym
		return nil
	}
	_, err := dec.Write(b)
	require.NoError(t, err)
	return cond
}

// TestChannelBeyondChannelMaxSendsCloseAndDiscards covers spec.md §8
// scenario 5: a CLOSE on a channel beyond channel-max is rejected with
// amqp:invalid-field and the connection passes through DISCARDING on its
// way to END.
func TestChannelBeyondChannelMaxSendsCloseAndDiscards(t *testing.T) {
	tp := &fakeTransport{}
	conn := New(tp, Options{ContainerID: "client", ChannelMax: 5})
	require.NoError(t, conn.Open(context.Background()))
	tp.written()
	tp.deliver(append(append([]byte{}, amqpHeader...), openPeerOpen(t)...))
	tp.written()
	require.Equal(t, StateOpened, conn.State())

	var states []State
	conn.OnStateChanged(func(old, new State) { states = append(states, new) })

	tp.deliver(encodeCloseOnChannel(t, 7))

	assert.Contains(t, states, StateDiscarding, "must pass through DISCARDING, not jump straight to END")
	assert.Equal(t, StateEnd, conn.State())
	assert.True(t, tp.closed)

	out := tp.written()
	require.NotEmpty(t, out, "must send CLOSE(error) before closing the transport")
	assert.Equal(t, errs.CondInvalidField, decodeCloseCondition(t, out))
}

// TestChannelReuseLowestFirst covers invariant P7.
func TestChannelReuseLowestFirst(t *testing.T) {
	tp := &fakeTransport{}
	conn := New(tp, Options{ContainerID: "client"})

	ep1 := &stubEndpoint{}
	ep2 := &stubEndpoint{}
	ep3 := &stubEndpoint{}

	ch1, err := conn.CreateEndpoint(ep1)
	require.NoError(t, err)
	ch2, err := conn.CreateEndpoint(ep2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), ch1)
	assert.Equal(t, uint16(1), ch2)

	conn.DestroyEndpoint(ch1)
	ch3, err := conn.CreateEndpoint(ep3)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), ch3, "the freed lowest channel must be reused first")
}

type stubEndpoint struct{}

func (s *stubEndpoint) HandleFrame(amqpvalue.Value, []byte) error        { return nil }
func (s *stubEndpoint) HandleConnectionStateChanged(old, new State) {}
