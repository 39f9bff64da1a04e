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

package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/session"
	"github.com/packetd/amqp10/transport"
)

type fakeTransport struct {
	state  transport.State
	onData func([]byte)
	out    []byte
}

func (f *fakeTransport) Open(ctx context.Context) error { f.state = transport.Open; return nil }
func (f *fakeTransport) Close() error                   { return nil }
func (f *fakeTransport) Write(p []byte) (int, error)    { f.out = append(f.out, p...); return len(p), nil }
func (f *fakeTransport) DoWork() error                  { return nil }
func (f *fakeTransport) State() transport.State         { return f.state }
func (f *fakeTransport) SetOnData(cb func([]byte))      { f.onData = cb }
func (f *fakeTransport) SetOnStateChanged(cb func(old, new transport.State)) {}
func (f *fakeTransport) deliver(b []byte)                                   { f.onData(b) }
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

func mappedSession(t *testing.T) (*session.Session, *fakeTransport) {
	t.Helper()
	tp := &fakeTransport{}
	conn := connection.New(tp, connection.Options{ContainerID: "client"})
	require.NoError(t, conn.Open(context.Background()))
	tp.written()

	openBody := amqpvalue.ListOf()
	peer, _ := amqpvalue.String("peer")
	openBody.AppendListItem(peer)
	openBody.AppendListItem(amqpvalue.Null())
	openBody.AppendListItem(amqpvalue.Uint(65536))
	openBody.AppendListItem(amqpvalue.Ushort(65535))
	var buf []byte
	bw := &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, 0, amqpvalue.Described(amqpvalue.Ulong(0x10), openBody), nil))
	header := []byte{'A', 'M', 'Q', 'P', 0, 1, 0, 0}
	tp.deliver(append(append([]byte{}, header...), buf...))
	tp.written()
	require.Equal(t, connection.StateOpened, conn.State())

	s := session.New(conn, session.Options{})
	require.NoError(t, s.Begin())
	tp.written()

	beginBody := amqpvalue.ListOf()
	beginBody.AppendListItem(amqpvalue.Ushort(s.Channel()))
	beginBody.AppendListItem(amqpvalue.Uint(0))
	beginBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	beginBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	beginBody.AppendListItem(amqpvalue.Uint(session.DefaultHandleMax))
	buf = nil
	bw = &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, s.Channel(), amqpvalue.Described(amqpvalue.Ulong(0x11), beginBody), nil))
	tp.deliver(buf)
	require.Equal(t, session.StateMapped, s.State())
	return s, tp
}

func TestAttachReachesAttached(t *testing.T) {
	s, tp := mappedSession(t)
	l := New(s, Options{Name: "snd-link", Role: RoleSender})
	require.NoError(t, l.Attach())
	assert.Equal(t, StateHalfAttached, l.State())
	tp.written()

	attachBody := amqpvalue.ListOf()
	name, _ := amqpvalue.String("snd-link")
	attachBody.AppendListItem(name)
	attachBody.AppendListItem(amqpvalue.Uint(l.Handle()))
	attachBody.AppendListItem(amqpvalue.Bool(true))
	attachBody.AppendListItem(amqpvalue.Ubyte(0))
	attachBody.AppendListItem(amqpvalue.Ubyte(0))
	attachBody.AppendListItem(amqpvalue.Null())
	attachBody.AppendListItem(amqpvalue.Null())
	attachBody.AppendListItem(amqpvalue.Null())
	attachBody.AppendListItem(amqpvalue.Bool(false))
	attachBody.AppendListItem(amqpvalue.Uint(0))
	var buf []byte
	bw := &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, s.Channel(), amqpvalue.Described(amqpvalue.Ulong(descAttach), attachBody), nil))
	tp.deliver(buf)
	assert.Equal(t, StateAttached, l.State())
}

func TestFlowGrantsCreditThenTransferConsumesIt(t *testing.T) {
	s, tp := mappedSession(t)
	l := New(s, Options{Name: "snd-link", Role: RoleSender})
	require.NoError(t, l.Attach())
	tp.written()

	flowBody := amqpvalue.ListOf()
	flowBody.AppendListItem(amqpvalue.Uint(0))
	flowBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	flowBody.AppendListItem(amqpvalue.Uint(0))
	flowBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	flowBody.AppendListItem(amqpvalue.Uint(l.Handle()))
	flowBody.AppendListItem(amqpvalue.Uint(0)) // remote's view of our delivery-count
	flowBody.AppendListItem(amqpvalue.Uint(5)) // link-credit
	var buf []byte
	bw := &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, s.Channel(), amqpvalue.Described(amqpvalue.Ulong(descFlow), flowBody), nil))
	tp.deliver(buf)

	assert.Equal(t, uint32(5), l.linkCredit)
	require.NoError(t, l.SendTransfer(0, []byte("tag"), []byte("payload"), false))
	assert.Equal(t, uint32(4), l.linkCredit)
	assert.NotEmpty(t, tp.written())
}

func TestSendTransferFailsWithoutCredit(t *testing.T) {
	s, _ := mappedSession(t)
	l := New(s, Options{Name: "snd-link", Role: RoleSender})
	require.NoError(t, l.Attach())
	err := l.SendTransfer(0, []byte("tag"), []byte("payload"), false)
	assert.Error(t, err)
}

func TestHandleTransferInvokesCallback(t *testing.T) {
	s, _ := mappedSession(t)
	l := New(s, Options{Name: "rcv-link", Role: RoleReceiver})
	require.NoError(t, l.Attach())

	var gotPayload []byte
	l.OnTransferReceived(func(deliveryID uint32, tag []byte, settled bool, payload []byte) {
		gotPayload = payload
	})

	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Uint(l.Handle()))
	body.AppendListItem(amqpvalue.Uint(1))
	body.AppendListItem(amqpvalue.Binary([]byte("tag")))
	body.AppendListItem(amqpvalue.Uint(0))
	body.AppendListItem(amqpvalue.Bool(true))
	perf := amqpvalue.Described(amqpvalue.Ulong(descTransfer), body)
	require.NoError(t, l.HandleFrame(perf, []byte("hello")))
	assert.Equal(t, []byte("hello"), gotPayload)
}
