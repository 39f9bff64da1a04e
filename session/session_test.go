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

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/transport"
)

type fakeTransport struct {
	state   transport.State
	onData  func([]byte)
	onState func(old, new transport.State)
	out     []byte
}

func (f *fakeTransport) Open(ctx context.Context) error { f.state = transport.Open; return nil }
func (f *fakeTransport) Close() error                   { return nil }
func (f *fakeTransport) Write(p []byte) (int, error)    { f.out = append(f.out, p...); return len(p), nil }
func (f *fakeTransport) DoWork() error                  { return nil }
func (f *fakeTransport) State() transport.State         { return f.state }
func (f *fakeTransport) SetOnData(cb func([]byte))      { f.onData = cb }
func (f *fakeTransport) SetOnStateChanged(cb func(old, new transport.State)) { f.onState = cb }
func (f *fakeTransport) deliver(b []byte)               { f.onData(b) }
func (f *fakeTransport) written() []byte {
	out := f.out
	f.out = nil
	return out
}

type bufWriter struct{ buf *[]byte }

func (w *bufWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func openedConnection(t *testing.T) (*connection.Connection, *fakeTransport) {
	t.Helper()
	tp := &fakeTransport{}
	conn := connection.New(tp, connection.Options{ContainerID: "client"})
	require.NoError(t, conn.Open(context.Background()))
	tp.written()

	body := amqvalueOpenBody(t)
	var buf []byte
	bw := &bufWriter{&buf}
	perf := amqpvalue.Described(amqpvalue.Ulong(0x10), body)
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, 0, perf, nil))

	header := []byte{'A', 'M', 'Q', 'P', 0, 1, 0, 0}
	tp.deliver(append(append([]byte{}, header...), buf...))
	tp.written()
	require.Equal(t, connection.StateOpened, conn.State())
	return conn, tp
}

func amqvalueOpenBody(t *testing.T) amqpvalue.Value {
	t.Helper()
	body := amqpvalue.ListOf()
	peerContainer, _ := amqpvalue.String("peer")
	body.AppendListItem(peerContainer)
	body.AppendListItem(amqpvalue.Null())
	body.AppendListItem(amqpvalue.Uint(65536))
	body.AppendListItem(amqpvalue.Ushort(65535))
	return body
}

func deliverBegin(t *testing.T, tp *fakeTransport, channel uint16, remoteChannel uint16) {
	t.Helper()
	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Ushort(remoteChannel))
	body.AppendListItem(amqpvalue.Uint(0))
	body.AppendListItem(amqpvalue.Uint(DefaultWindow))
	body.AppendListItem(amqpvalue.Uint(DefaultWindow))
	body.AppendListItem(amqpvalue.Uint(DefaultHandleMax))
	perf := amqpvalue.Described(amqpvalue.Ulong(descBegin), body)
	var buf []byte
	bw := &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, channel, perf, nil))
	tp.deliver(buf)
}

func TestBeginReachesMapped(t *testing.T) {
	conn, tp := openedConnection(t)
	s := New(conn, Options{})

	require.NoError(t, s.Begin())
	assert.Equal(t, StateBeginSent, s.State())
	sent := tp.written()
	assert.NotEmpty(t, sent)

	deliverBegin(t, tp, s.Channel(), s.Channel())
	assert.Equal(t, StateMapped, s.State())
}

func TestLinkHandleReuseLowestFirst(t *testing.T) {
	conn, _ := openedConnection(t)
	s := New(conn, Options{})
	require.NoError(t, s.Begin())

	l1 := &stubLink{}
	l2 := &stubLink{}
	l3 := &stubLink{}

	h1, err := s.CreateLink("l1", l1)
	require.NoError(t, err)
	h2, err := s.CreateLink("l2", l2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h1)
	assert.Equal(t, uint32(1), h2)

	s.DestroyLink(h1)
	h3, err := s.CreateLink("l3", l3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h3)
}

func TestCreateLinkRejectsDuplicateName(t *testing.T) {
	conn, _ := openedConnection(t)
	s := New(conn, Options{})
	require.NoError(t, s.Begin())

	_, err := s.CreateLink("dup", &stubLink{})
	require.NoError(t, err)
	_, err = s.CreateLink("dup", &stubLink{})
	require.Error(t, err)
}

func TestDispositionBroadcastsToAllLinks(t *testing.T) {
	conn, _ := openedConnection(t)
	s := New(conn, Options{})
	require.NoError(t, s.Begin())

	l1 := &stubLink{}
	l2 := &stubLink{}
	_, err := s.CreateLink("l1", l1)
	require.NoError(t, err)
	_, err = s.CreateLink("l2", l2)
	require.NoError(t, err)

	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Bool(true))
	body.AppendListItem(amqpvalue.Uint(3))
	body.AppendListItem(amqpvalue.Uint(5))
	body.AppendListItem(amqpvalue.Bool(true))

	require.NoError(t, s.handleDisposition(body))
	assert.True(t, l1.gotDisposition)
	assert.True(t, l2.gotDisposition)
}

type stubLink struct {
	gotDisposition bool
}

func (l *stubLink) HandleFrame(amqpvalue.Value, []byte) error       { return nil }
func (l *stubLink) HandleSessionStateChanged(old, new State)        {}
func (l *stubLink) HandleDisposition(first, last uint32, settled bool, state amqpvalue.Value) {
	l.gotDisposition = true
}
