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

package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/link"
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

func attachedSenderLink(t *testing.T) (*session.Session, *link.Link, *fakeTransport) {
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

	l := link.New(s, link.Options{Name: "snd", Role: link.RoleSender, Source: CreateSource("q"), Target: CreateTarget("q")})
	require.NoError(t, l.Attach())
	tp.written()

	attachBody := amqpvalue.ListOf()
	name, _ := amqpvalue.String("snd")
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
	buf = nil
	bw = &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, s.Channel(), amqpvalue.Described(amqpvalue.Ulong(0x12), attachBody), nil))
	tp.deliver(buf)
	require.Equal(t, link.StateAttached, l.State())

	flowBody := amqpvalue.ListOf()
	flowBody.AppendListItem(amqpvalue.Uint(0))
	flowBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	flowBody.AppendListItem(amqpvalue.Uint(0))
	flowBody.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	flowBody.AppendListItem(amqpvalue.Uint(l.Handle()))
	flowBody.AppendListItem(amqpvalue.Uint(0))
	flowBody.AppendListItem(amqpvalue.Uint(10))
	buf = nil
	bw = &bufWriter{&buf}
	require.NoError(t, amqpframe.EncodeAMQPFrame(bw, s.Channel(), amqpvalue.Described(amqpvalue.Ulong(0x13), flowBody), nil))
	tp.deliver(buf)

	return s, l, tp
}

// TestSendQueuesUntilConnectedThenFlushesInOrder exercises the ordinary
// multi-message send path.
func TestSendQueuesUntilConnectedThenFlushesInOrder(t *testing.T) {
	s, l, tp := attachedSenderLink(t)
	sender := NewSender(s, l)

	var results []SendResult
	sender.Send([]byte("one"), func(r SendResult) { results = append(results, r) })
	sender.Send([]byte("two"), func(r SendResult) { results = append(results, r) })

	assert.Equal(t, 2, sender.Pending())
	assert.NotEmpty(t, tp.written())
}

// TestRemoveMatchingDoesNotClearOtherPending is the direct regression
// test for the list_remove_matching_item head-clearing bug: settling one
// delivery must not discard every other pending message.
func TestRemoveMatchingDoesNotClearOtherPending(t *testing.T) {
	s, l, _ := attachedSenderLink(t)
	sender := NewSender(s, l)

	var completed []string
	sender.Send([]byte("a"), func(r SendResult) { completed = append(completed, "a") })
	sender.Send([]byte("b"), func(r SendResult) { completed = append(completed, "b") })
	sender.Send([]byte("c"), func(r SendResult) { completed = append(completed, "c") })
	require.Equal(t, 3, sender.Pending())

	// Settle the middle delivery (delivery-id 1, since ids are assigned
	// 0,1,2 in send order).
	sender.onDeliverySettled(1)

	assert.Equal(t, []string{"b"}, completed)
	assert.Equal(t, 2, sender.Pending(), "settling one delivery must leave the other two pending messages intact")
}

func TestReceiverAcceptsUnsettledTransfer(t *testing.T) {
	s, _, tp := attachedSenderLink(t)
	_ = s
	rl := link.New(s, link.Options{Name: "rcv", Role: link.RoleReceiver, Source: CreateSource("q"), Target: CreateTarget("q")})
	require.NoError(t, rl.Attach())
	tp.written()

	recv := NewReceiver(rl)
	var got []byte
	require.NoError(t, recv.Subscribe(0, func(payload []byte) { got = payload }))
	tp.written()

	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Uint(rl.Handle()))
	body.AppendListItem(amqpvalue.Uint(7))
	body.AppendListItem(amqpvalue.Binary([]byte("tag")))
	body.AppendListItem(amqpvalue.Uint(0))
	body.AppendListItem(amqpvalue.Bool(false))
	perf := amqpvalue.Described(amqpvalue.Ulong(0x14), body)
	require.NoError(t, rl.HandleFrame(perf, []byte("payload")))

	assert.Equal(t, []byte("payload"), got)
	assert.NotEmpty(t, tp.written(), "an unsettled transfer must be answered with a DISPOSITION")
}
