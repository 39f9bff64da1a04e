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
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/internal/metrics"
)

// Performative descriptor codes this package dispatches on (AMQP §2.7).
const (
	descBegin       = 0x11
	descAttach      = 0x12
	descFlow        = 0x13
	descTransfer    = 0x14
	descDisposition = 0x15
	descDetach      = 0x16
	descEnd         = 0x17
)

// DefaultHandleMax is the largest link handle this engine offers locally,
// matching AMQP §2.7.1's default when a BEGIN omits handle-max.
const DefaultHandleMax = 4294967295

// DefaultWindow is the default incoming/outgoing transfer-count window
// this engine advertises; callers with flow-control needs set it via
// Options.
const DefaultWindow = 2147483647

// Options configures a new Session.
type Options struct {
	IncomingWindow uint32
	OutgoingWindow uint32
	HandleMax      uint32
}

// Session is one AMQP 1.0 session (spec.md §4.7): it owns one connection
// channel, tracks the transfer-id/window state the session-level flow
// control needs, and dispatches handle-scoped performatives to the links
// attached to it. It implements connection.Endpoint.
type Session struct {
	conn *connection.Connection
	opts Options

	state   State
	channel uint16

	nextOutgoingID uint32
	incomingWindow uint32
	outgoingWindow uint32
	handleMax      uint32

	remoteNextIncomingID uint32
	remoteIncomingWindow uint32
	remoteOutgoingWindow uint32

	outgoingHandles []uint32
	links           map[uint32]Endpoint
	linkNameHashes  map[uint32]uint64
	namesInUse      map[uint64]struct{}

	onStateChanged []func(old, new State)
	endErr         error
}

// New creates a Session bound to conn. Call Begin to send BEGIN and start
// the handshake; SendFrame fails until State reports StateMapped, while
// CreateLink does not check the session state.
func New(conn *connection.Connection, opts Options) *Session {
	if opts.IncomingWindow == 0 {
		opts.IncomingWindow = DefaultWindow
	}
	if opts.OutgoingWindow == 0 {
		opts.OutgoingWindow = DefaultWindow
	}
	if opts.HandleMax == 0 {
		opts.HandleMax = DefaultHandleMax
	}
	s := &Session{
		conn:           conn,
		opts:           opts,
		state:          StateUnmapped,
		incomingWindow: opts.IncomingWindow,
		outgoingWindow: opts.OutgoingWindow,
		handleMax:      opts.HandleMax,
		links:          make(map[uint32]Endpoint),
		linkNameHashes: make(map[uint32]uint64),
		namesInUse:     make(map[uint64]struct{}),
	}
	s.OnStateChanged(func(old, new State) {
		switch {
		case new == StateMapped:
			metrics.SessionsActive.Inc()
		case old == StateMapped:
			metrics.SessionsActive.Dec()
		}
	})
	return s
}

// OnStateChanged registers a callback invoked on every state transition.
func (s *Session) OnStateChanged(f func(old, new State)) {
	s.onStateChanged = append(s.onStateChanged, f)
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	old := s.state
	s.state = st
	for _, f := range s.onStateChanged {
		f(old, st)
	}
	for _, ep := range s.links {
		ep.HandleSessionStateChanged(old, st)
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Channel reports the locally-assigned outgoing channel number.
func (s *Session) Channel() uint16 { return s.channel }

// Begin registers the session with the connection and sends BEGIN.
func (s *Session) Begin() error {
	ch, err := s.conn.CreateEndpoint(s)
	if err != nil {
		return err
	}
	s.channel = ch
	if err := s.sendBegin(); err != nil {
		return err
	}
	s.setState(StateBeginSent)
	return nil
}

func (s *Session) sendBegin() error {
	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Null()) // remote-channel: unset until we respond to a peer BEGIN
	body.AppendListItem(amqpvalue.Uint(s.nextOutgoingID))
	body.AppendListItem(amqpvalue.Uint(s.incomingWindow))
	body.AppendListItem(amqpvalue.Uint(s.outgoingWindow))
	body.AppendListItem(amqpvalue.Uint(s.handleMax))
	perf := amqpvalue.Described(amqpvalue.Ulong(descBegin), body)
	return s.conn.SendFrame(s.channel, perf, nil)
}

// HandleConnectionStateChanged implements connection.Endpoint.
func (s *Session) HandleConnectionStateChanged(old, new connection.State) {
	if new == connection.StateEnd {
		s.setState(StateUnmapped)
	}
}

// HandleFrame implements connection.Endpoint: it dispatches by descriptor,
// handling BEGIN/END itself, broadcasting DISPOSITION to every registered
// link, and routing ATTACH/FLOW/TRANSFER/DETACH to the link registered for
// the performative's handle field.
func (s *Session) HandleFrame(performative amqpvalue.Value, payload []byte) error {
	descriptor, ok := performative.Descriptor()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "session: performative missing descriptor")
	}
	code, ok := descriptor.Ulong()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "session: performative descriptor not a ulong")
	}
	body, _ := performative.Body()

	switch code {
	case descBegin:
		return s.handleBegin(body)
	case descEnd:
		return s.handleEnd(body)
	case descDisposition:
		return s.handleDisposition(body)
	default:
		return s.dispatchToLink(code, body, performative, payload)
	}
}

func (s *Session) handleBegin(body amqpvalue.Value) error {
	if id, ok := listUint(body, 1); ok {
		s.remoteNextIncomingID = id
	}
	if w, ok := listUint(body, 2); ok {
		s.remoteIncomingWindow = w
	}
	if w, ok := listUint(body, 3); ok {
		s.remoteOutgoingWindow = w
	}
	switch s.state {
	case StateBeginSent:
		s.setState(StateMapped)
	case StateUnmapped:
		// Peer-initiated session: respond with our own BEGIN carrying
		// their channel as our remote-channel.
		s.setState(StateBeginRcvd)
		if err := s.sendBegin(); err != nil {
			return err
		}
		s.setState(StateMapped)
	}
	return nil
}

func (s *Session) handleEnd(body amqpvalue.Value) error {
	switch s.state {
	case StateEndSent:
		s.setState(StateUnmapped)
		s.conn.DestroyEndpoint(s.channel)
		return nil
	default:
		s.setState(StateEndRcvd)
		if err := s.sendEnd(nil); err != nil {
			return err
		}
		s.setState(StateUnmapped)
		s.conn.DestroyEndpoint(s.channel)
		return nil
	}
}

func (s *Session) sendEnd(endErr *errs.Error) error {
	body := amqpvalue.ListOf()
	if endErr != nil {
		errBody := amqpvalue.ListOf()
		cond, _ := amqpvalue.Symbol(endErr.Condition)
		errBody.AppendListItem(cond)
		desc, _ := amqpvalue.String(endErr.Description)
		errBody.AppendListItem(desc)
		body.AppendListItem(amqpvalue.Described(amqpvalue.Ulong(0x1d), errBody))
	}
	perf := amqpvalue.Described(amqpvalue.Ulong(descEnd), body)
	return s.conn.SendFrame(s.channel, perf, nil)
}

// End initiates a graceful session shutdown: sends END and transitions to
// StateEndSent, or immediately to StateUnmapped if the peer's END already
// arrived (mirroring Connection.Close's symmetric handling).
func (s *Session) End(condition, description string) error {
	switch s.state {
	case StateUnmapped, StateDiscarding:
		return nil
	}
	var ee *errs.Error
	if condition != "" {
		ee = errs.Protocol(condition, description)
	}
	if err := s.sendEnd(ee); err != nil {
		return err
	}
	if s.state == StateEndRcvd {
		s.setState(StateUnmapped)
		s.conn.DestroyEndpoint(s.channel)
		return nil
	}
	s.setState(StateEndSent)
	return nil
}

func (s *Session) handleDisposition(body amqpvalue.Value) error {
	first, _ := listUint(body, 1)
	last, ok := listUint(body, 2)
	if !ok {
		last = first
	}
	settled := false
	if sv, ok := body.ListItem(3); ok {
		settled, _ = sv.Bool()
	}
	var state amqpvalue.Value
	if sv, ok := body.ListItem(4); ok {
		state = sv
	}
	for _, ep := range s.links {
		ep.HandleDisposition(first, last, settled, state)
	}
	return nil
}

func (s *Session) dispatchToLink(code uint64, body, performative amqpvalue.Value, payload []byte) error {
	// TRANSFER and DETACH carry the handle in field 0, ATTACH in field 1
	// (after name) and FLOW in field 4.
	idx := 0
	switch code {
	case descAttach:
		idx = 1
	case descFlow:
		idx = 4
	}
	handle, ok := listUint(body, idx)
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "session: performative missing handle")
	}
	ep, ok := s.links[handle]
	if !ok {
		return errs.Protocol(errs.CondNotAllowed, "session: frame for unknown handle")
	}
	return ep.HandleFrame(performative, payload)
}

// CreateLink assigns ep the lowest unused link handle (mirroring
// connection.Connection.CreateEndpoint's channel allocation), after
// rejecting name as a duplicate of any link currently attached on this
// session (AMQP §2.6.3: link names must be unique within a session).
// Name collisions are checked via an xxhash digest rather than the raw
// string, the way the teacher's diagnostics keyed per-flow state off a
// hash of the flow tuple instead of the tuple itself.
func (s *Session) CreateLink(name string, ep Endpoint) (uint32, error) {
	nameHash := xxhash.Sum64String(name)
	if _, dup := s.namesInUse[nameHash]; dup {
		return 0, errs.New(errs.ArgRange, "session: link name %q already attached", name)
	}
	h, err := s.lowestFreeHandle()
	if err != nil {
		return 0, err
	}
	s.insertOutgoingHandle(h)
	s.links[h] = ep
	s.linkNameHashes[h] = nameHash
	s.namesInUse[nameHash] = struct{}{}
	return h, nil
}

func (s *Session) lowestFreeHandle() (uint32, error) {
	var want uint32
	for _, h := range s.outgoingHandles {
		if h != want {
			break
		}
		want++
	}
	if uint64(want) > uint64(s.handleMax) {
		return 0, errs.New(errs.ArgRange, "session: handle-max exceeded")
	}
	return want, nil
}

func (s *Session) insertOutgoingHandle(h uint32) {
	i := sort.Search(len(s.outgoingHandles), func(i int) bool { return s.outgoingHandles[i] >= h })
	s.outgoingHandles = append(s.outgoingHandles, 0)
	copy(s.outgoingHandles[i+1:], s.outgoingHandles[i:])
	s.outgoingHandles[i] = h
}

// DestroyLink releases a handle previously returned by CreateLink, and
// frees its link name for reuse.
func (s *Session) DestroyLink(h uint32) {
	delete(s.links, h)
	if nameHash, ok := s.linkNameHashes[h]; ok {
		delete(s.namesInUse, nameHash)
		delete(s.linkNameHashes, h)
	}
	i := sort.Search(len(s.outgoingHandles), func(i int) bool { return s.outgoingHandles[i] >= h })
	if i < len(s.outgoingHandles) && s.outgoingHandles[i] == h {
		s.outgoingHandles = append(s.outgoingHandles[:i], s.outgoingHandles[i+1:]...)
	}
}

// SendFrame encodes and writes performative (with optional payload) on
// this session's channel. It fails unless the session is mapped.
func (s *Session) SendFrame(performative amqpvalue.Value, payload []byte) error {
	if s.state != StateMapped {
		return errs.New(errs.NotOpen, "session: not mapped")
	}
	return s.conn.SendFrame(s.channel, performative, payload)
}

// NextDeliveryID returns the session's next-outgoing-id and advances it,
// for use as a TRANSFER's delivery-id (AMQP §2.5.6).
func (s *Session) NextDeliveryID() uint32 {
	id := s.nextOutgoingID
	s.nextOutgoingID++
	return id
}

// Err reports the error that ended the session, if it ended abnormally.
func (s *Session) Err() error { return s.endErr }

func listUint(v amqpvalue.Value, idx int) (uint32, bool) {
	item, ok := v.ListItem(idx)
	if !ok {
		return 0, false
	}
	return item.Uint()
}
