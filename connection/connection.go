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
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/framecodec"
	"github.com/packetd/amqp10/internal/metrics"
	"github.com/packetd/amqp10/transport"
)

// Performative descriptor codes (AMQP §2.7).
const (
	descOpen        = 0x10
	descBegin       = 0x11
	descAttach      = 0x12
	descFlow        = 0x13
	descTransfer    = 0x14
	descDisposition = 0x15
	descDetach      = 0x16
	descEnd         = 0x17
	descClose       = 0x18
	descError       = 0x1d
)

var amqpHeader = []byte{'A', 'M', 'Q', 'P', 0, 1, 0, 0}

const (
	// DefaultMaxFrameSize is what this engine advertises before the peer
	// negotiates something smaller (AMQP §2.4.1 default: unbounded).
	DefaultMaxFrameSize = framecodec.DefaultMaxFrameSize
	// DefaultChannelMax is the largest channel number offered locally.
	DefaultChannelMax = 65535
)

// Options configures a new Connection (c/src/connection.c's
// connection_set_max_frame_size/connection_set_channel_max/
// connection_set_idle_timeout, all settable only before Open per that
// source — mirrored here as construction-time options instead of
// post-construction setters, since Go has no direct equivalent of "settable
// only in START state" short of refusing late calls).
type Options struct {
	ContainerID  string `config:"containerID"`
	Hostname     string `config:"hostname"`
	MaxFrameSize uint32 `config:"maxFrameSize"`
	ChannelMax   uint16 `config:"channelMax"`
	IdleTimeout  uint32 `config:"idleTimeoutMs"` // milliseconds; 0 means none advertised
}

// Connection is one AMQP 1.0 connection engine instance, driving exactly
// one Transport from a single-threaded dowork loop (spec.md §4.6). No
// method here is safe to call concurrently with DoWork; callers own their
// own serialization, matching the cooperative single-threaded model the
// whole engine assumes.
type Connection struct {
	tp   transport.Transport
	opts Options

	state State
	dec   *amqpframe.Decoder

	remoteMaxFrameSize uint32
	remoteChannelMax   uint16

	hdrBuf        []byte
	localOpenSent bool

	// outgoing maps a locally-assigned channel number to its endpoint,
	// kept sorted the way c/src/connection.c keeps its endpoints array so
	// the lowest free channel is always found first (spec.md P7).
	outgoingChannels []uint16
	outgoing         map[uint16]Endpoint
	incoming         map[uint16]Endpoint

	onStateChanged []func(old, new State)
	closeErr       error
}

// New builds a Connection that will drive tp once Open is called.
func New(tp transport.Transport, opts Options) *Connection {
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.ChannelMax == 0 {
		opts.ChannelMax = DefaultChannelMax
	}
	if opts.ContainerID == "" {
		opts.ContainerID = uuid.NewString()
	}
	c := &Connection{
		tp:               tp,
		opts:             opts,
		state:            StateStart,
		remoteMaxFrameSize: DefaultMaxFrameSize,
		remoteChannelMax:   DefaultChannelMax,
		outgoing:         make(map[uint16]Endpoint),
		incoming:         make(map[uint16]Endpoint),
	}
	c.dec = amqpframe.NewDecoder(0)
	c.dec.OnAMQPFrame = c.onAMQPFrame
	c.dec.OnHeartbeat = func() error { return nil }
	tp.SetOnData(c.onData)
	tp.SetOnStateChanged(c.onTransportStateChanged)
	c.OnStateChanged(func(old, new State) {
		switch {
		case new == StateOpened:
			metrics.ConnectionsOpen.Inc()
		case old == StateOpened:
			metrics.ConnectionsOpen.Dec()
		}
	})
	return c
}

// OnStateChanged registers a callback invoked on every state transition.
func (c *Connection) OnStateChanged(f func(old, new State)) {
	c.onStateChanged = append(c.onStateChanged, f)
}

func (c *Connection) setState(s State) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	for _, f := range c.onStateChanged {
		f(old, s)
	}
	for _, ep := range c.incoming {
		ep.HandleConnectionStateChanged(old, s)
	}
}

// State reports the current connection state.
func (c *Connection) State() State { return c.state }

// Open dials the transport and sends the local protocol header. It does
// not block for the remote header or OPEN; call DoWork until State is
// StateOpened (or an error surfaces via the transport's state callback).
func (c *Connection) Open(ctx context.Context) error {
	if c.state != StateStart {
		return errs.New(errs.InProgress, "connection: already open")
	}
	if err := c.tp.Open(ctx); err != nil {
		return err
	}
	return c.sendHeader()
}

func (c *Connection) sendHeader() error {
	if _, err := c.tp.Write(amqpHeader); err != nil {
		return err
	}
	c.setState(StateHdrSent)
	return nil
}

// DoWork pumps the transport once. It is the only entry point that may
// cross the connection's internal boundary into the transport; every
// callback registered on this Connection must only queue work, never call
// back into DoWork itself (spec.md's single-threaded cooperative rule).
func (c *Connection) DoWork() error {
	if c.state == StateEnd {
		return nil
	}
	return c.tp.DoWork()
}

func (c *Connection) onTransportStateChanged(old, newSt transport.State) {
	if newSt == transport.Error {
		c.setState(StateEnd)
	}
}

// onData is invoked synchronously from within tp.DoWork with newly
// arrived bytes. Header bytes are consumed directly; once the local OPEN
// has actually been sent, remaining/subsequent bytes are handed to the
// frame decoder. This engine deliberately does NOT forward frame bytes to
// the decoder merely upon reaching HDR_EXCH before send_open_frame's
// equivalent has completed — the reference client's connection_byte_
// received does, and spec.md documents that as a bug this implementation
// must not reproduce.
func (c *Connection) onData(b []byte) {
	for len(b) > 0 && !c.state.terminal() {
		if !c.localOpenSent {
			n := c.consumeHeaderBytes(b)
			b = b[n:]
			if n == 0 {
				// consumeHeaderBytes always consumes at least one byte here;
				// a header mismatch instead moves the connection to END via
				// fail, which ends this loop.
				return
			}
			continue
		}
		if _, err := c.dec.Write(b); err != nil {
			c.fail(err)
		}
		return
	}
}

// consumeHeaderBytes handles the protocol header handshake (AMQP §2.2,
// spec.md P6) and, once both sides have exchanged headers, sends the
// local OPEN. It returns how many bytes of b it consumed; those bytes are
// never frame bytes.
func (c *Connection) consumeHeaderBytes(b []byte) int {
	need := 8 - len(c.hdrBuf)
	n := len(b)
	if n > need {
		n = need
	}
	c.hdrBuf = append(c.hdrBuf, b[:n]...)
	if len(c.hdrBuf) < 8 {
		return n
	}

	for i, want := range amqpHeader {
		if c.hdrBuf[i] != want {
			c.fail(errs.Protocol(errs.CondInvalidField, "connection: protocol header mismatch"))
			return n
		}
	}
	c.hdrBuf = nil

	switch c.state {
	case StateStart:
		c.setState(StateHdrRcvd)
		if err := c.sendHeader(); err != nil {
			c.fail(err)
			return n
		}
		fallthrough
	case StateHdrSent:
		c.setState(StateHdrExch)
		if err := c.sendOpen(); err != nil {
			c.fail(err)
			return n
		}
	}
	return n
}

func (c *Connection) sendOpen() error {
	body := amqpvalue.ListOf()
	containerID, _ := amqpvalue.String(c.opts.ContainerID)
	body.AppendListItem(containerID)
	if c.opts.Hostname != "" {
		host, _ := amqpvalue.String(c.opts.Hostname)
		body.AppendListItem(host)
	} else {
		body.AppendListItem(amqpvalue.Null())
	}
	body.AppendListItem(amqpvalue.Uint(c.opts.MaxFrameSize))
	body.AppendListItem(amqpvalue.Ushort(c.opts.ChannelMax))
	if c.opts.IdleTimeout > 0 {
		body.AppendListItem(amqpvalue.Uint(c.opts.IdleTimeout))
	}

	perf := amqpvalue.Described(amqpvalue.Ulong(descOpen), body)
	if err := amqpframe.EncodeAMQPFrame(writerFunc(c.tp.Write), 0, perf, nil); err != nil {
		return err
	}
	c.localOpenSent = true
	if c.state == StateHdrExch {
		c.setState(StateOpenSent)
	}
	return nil
}

type writerFunc func([]byte) (int, error)

func (w writerFunc) Write(p []byte) (int, error) { return w(p) }

// fail tears the connection down after a protocol violation or unrecoverable
// local error (spec.md §4.6's "any | protocol violation | send CLOSE(error)
// → DISCARDING" row, §7 item 3). It sends a CLOSE carrying the violation's
// <condition, description> before touching the transport, so the peer learns
// why — closing the socket first, as in the early-close behavior spec.md's
// Open Question rejects, would drop those bytes.
func (c *Connection) fail(err error) {
	c.closeErr = err

	ce := &errs.Error{Code: errs.ProtocolViolation, Condition: errs.CondInternalError, Description: err.Error()}
	var pe *errs.Error
	if errors.As(err, &pe) {
		ce.Description = pe.Description
		if pe.Condition != "" {
			ce.Condition = pe.Condition
		}
	}

	c.setState(StateDiscarding)
	_ = c.sendClose(ce)
	c.setState(StateEnd)
	_ = c.tp.Close()
}

func (c *Connection) onAMQPFrame(f amqpframe.AMQPFrame) error {
	descriptor, ok := f.Performative.Descriptor()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "connection: performative missing descriptor")
	}
	code, ok := descriptor.Ulong()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "connection: performative descriptor not a ulong")
	}

	if code == descOpen {
		return c.handleOpen(f)
	}
	if code == descClose {
		return c.handleClose(f)
	}
	if code == descBegin {
		return c.handleBegin(f)
	}
	return c.dispatch(f)
}

func (c *Connection) handleOpen(f amqpframe.AMQPFrame) error {
	if f.Channel != 0 {
		return errs.Protocol(errs.CondNotAllowed, "connection: OPEN on non-zero channel")
	}
	if c.state == StateOpened {
		return errs.Protocol(errs.CondIllegalState, "connection: duplicate OPEN")
	}

	body, _ := f.Performative.Body()
	if n, ok := body.ListItem(2); ok {
		if mfs, ok := n.Uint(); ok {
			if mfs < framecodec.MinMaxFrameSize {
				return errs.Protocol(errs.CondInvalidField, "connection: remote max-frame-size too small")
			}
			c.remoteMaxFrameSize = mfs
			c.dec.SetMaxFrameSize(mfs)
		}
	}
	if n, ok := body.ListItem(3); ok {
		if cm, ok := n.Ushort(); ok {
			c.remoteChannelMax = cm
		}
	}

	switch c.state {
	case StateOpenSent:
		c.setState(StateOpened)
	case StateHdrExch:
		c.setState(StateOpenRcvd)
	default:
		c.setState(StateOpened)
	}
	return nil
}

func (c *Connection) handleClose(f amqpframe.AMQPFrame) error {
	if f.Channel > c.opts.ChannelMax {
		return errs.Protocol(errs.CondInvalidField, "connection: CLOSE on channel beyond channel-max")
	}
	switch c.state {
	case StateCloseSent:
		c.setState(StateEnd)
		return c.tp.Close()
	default:
		c.setState(StateCloseRcvd)
		// AMQP §2.4.6: a peer that receives CLOSE must send its own
		// CLOSE before closing the transport. Closing the socket first
		// (as the reference client's close_connection_with_error path
		// can do in some branches) drops bytes the peer may still be
		// reading and is the early-close behavior spec.md's Open
		// Question says not to replicate.
		if err := c.sendClose(nil); err != nil {
			return err
		}
		c.setState(StateEnd)
		return c.tp.Close()
	}
}

func (c *Connection) sendClose(closeErr *errs.Error) error {
	body := amqpvalue.ListOf()
	if closeErr != nil {
		errBody := amqpvalue.ListOf()
		cond, _ := amqpvalue.Symbol(closeErr.Condition)
		errBody.AppendListItem(cond)
		desc, _ := amqpvalue.String(closeErr.Description)
		errBody.AppendListItem(desc)
		body.AppendListItem(amqpvalue.Described(amqpvalue.Ulong(descError), errBody))
	}
	perf := amqpvalue.Described(amqpvalue.Ulong(descClose), body)
	return amqpframe.EncodeAMQPFrame(writerFunc(c.tp.Write), 0, perf, nil)
}

// Close initiates a graceful shutdown: sends CLOSE and waits (via DoWork)
// for the peer's CLOSE before the transport is torn down. condition may
// be empty for a normal close.
func (c *Connection) Close(condition, description string) error {
	switch c.state {
	case StateEnd, StateDiscarding:
		return nil
	}
	var ce *errs.Error
	if condition != "" {
		ce = errs.Protocol(condition, description)
	}
	if err := c.sendClose(ce); err != nil {
		return err
	}
	if c.state == StateCloseRcvd {
		c.setState(StateEnd)
		return c.tp.Close()
	}
	c.setState(StateCloseSent)
	return nil
}

// CreateEndpoint assigns ep the lowest unused outgoing channel number
// (spec.md P7, c/src/connection.c's connection_create_endpoint) and
// registers it. It fails once every channel up to ChannelMax is in use.
func (c *Connection) CreateEndpoint(ep Endpoint) (uint16, error) {
	ch, err := c.lowestFreeChannel()
	if err != nil {
		return 0, err
	}
	c.insertOutgoingChannel(ch)
	c.outgoing[ch] = ep
	return ch, nil
}

func (c *Connection) lowestFreeChannel() (uint16, error) {
	var want uint16
	for _, ch := range c.outgoingChannels {
		if ch != want {
			break
		}
		want++
		if want == 0 {
			break
		}
	}
	if uint32(want) > uint32(c.opts.ChannelMax) {
		return 0, errs.New(errs.ArgRange, "connection: channel-max exceeded")
	}
	return want, nil
}

func (c *Connection) insertOutgoingChannel(ch uint16) {
	i := sort.Search(len(c.outgoingChannels), func(i int) bool { return c.outgoingChannels[i] >= ch })
	c.outgoingChannels = append(c.outgoingChannels, 0)
	copy(c.outgoingChannels[i+1:], c.outgoingChannels[i:])
	c.outgoingChannels[i] = ch
}

// DestroyEndpoint releases a channel previously returned by
// CreateEndpoint, making it eligible for reuse by the next CreateEndpoint
// call (spec.md P7).
func (c *Connection) DestroyEndpoint(ch uint16) {
	ep, had := c.outgoing[ch]
	delete(c.outgoing, ch)
	if had {
		for incoming, incEp := range c.incoming {
			if incEp == ep {
				delete(c.incoming, incoming)
			}
		}
	}
	i := sort.Search(len(c.outgoingChannels), func(i int) bool { return c.outgoingChannels[i] >= ch })
	if i < len(c.outgoingChannels) && c.outgoingChannels[i] == ch {
		c.outgoingChannels = append(c.outgoingChannels[:i], c.outgoingChannels[i+1:]...)
	}
}

func (c *Connection) handleBegin(f amqpframe.AMQPFrame) error {
	body, _ := f.Performative.Body()
	if remoteCh, ok := body.ListItem(0); ok {
		if rc, ok := remoteCh.Ushort(); ok {
			if ep, ok := c.outgoing[rc]; ok {
				c.incoming[f.Channel] = ep
				return ep.HandleFrame(f.Performative, f.Payload)
			}
		}
	}
	return errs.Protocol(errs.CondNotAllowed, "connection: BEGIN does not correlate to a known session")
}

func (c *Connection) dispatch(f amqpframe.AMQPFrame) error {
	ep, ok := c.incoming[f.Channel]
	if !ok {
		return errs.Protocol(errs.CondNotAllowed, "connection: frame on unknown channel")
	}
	return ep.HandleFrame(f.Performative, f.Payload)
}

// SendFrame encodes and writes performative (with optional payload) on
// channel. It fails unless the connection is OPENED (c/src/connection.c's
// connection_encode_frame requires CONNECTION_STATE_OPENED).
func (c *Connection) SendFrame(channel uint16, performative amqpvalue.Value, payload []byte) error {
	if c.state != StateOpened {
		return errs.New(errs.NotOpen, "connection: not opened")
	}
	return amqpframe.EncodeAMQPFrame(writerFunc(c.tp.Write), channel, performative, payload)
}

// RemoteMaxFrameSize reports the peer's negotiated max-frame-size.
func (c *Connection) RemoteMaxFrameSize() uint32 { return c.remoteMaxFrameSize }

// RemoteChannelMax reports the peer's negotiated channel-max.
func (c *Connection) RemoteChannelMax() uint16 { return c.remoteChannelMax }

// Err reports the error that ended the connection, if it ended
// abnormally.
func (c *Connection) Err() error { return c.closeErr }
