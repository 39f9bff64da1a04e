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
	"github.com/google/uuid"

	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/internal/metrics"
	"github.com/packetd/amqp10/session"
)

// Performative descriptor codes this package dispatches on (AMQP §2.7).
const (
	descAttach      = 0x12
	descFlow        = 0x13
	descTransfer    = 0x14
	descDisposition = 0x15
	descDetach      = 0x16
)

// Options configures a new Link (inc/link.h's link_create parameters,
// generalized from a single callback to the richer AMQP ATTACH fields a
// real negotiation needs).
type Options struct {
	Name                 string
	Role                 Role
	Source               amqpvalue.Value
	Target               amqpvalue.Value
	InitialDeliveryCount uint32
}

// Link is one AMQP 1.0 link (spec.md §4.8), attached to a session handle.
// It implements session.Endpoint.
type Link struct {
	sess *session.Session
	opts Options

	handle uint32
	state  State

	deliveryCount uint32
	linkCredit    uint32

	onTransferReceived func(deliveryID uint32, deliveryTag []byte, settled bool, payload []byte)
	onDeliverySettled  func(deliveryID uint32)
	onStateChanged     []func(old, new State)

	detachErr error
}

// New creates a Link bound to sess. Call Attach to register the handle
// and send ATTACH.
func New(sess *session.Session, opts Options) *Link {
	if opts.Name == "" {
		opts.Name = uuid.NewString()
	}
	l := &Link{
		sess:          sess,
		opts:          opts,
		state:         StateDetached,
		deliveryCount: opts.InitialDeliveryCount,
	}
	l.OnStateChanged(func(old, new State) {
		wasActive := old == StateAttached || old == StateHalfAttached
		isActive := new == StateAttached || new == StateHalfAttached
		switch {
		case isActive && !wasActive:
			metrics.LinksActive.Inc()
		case wasActive && !isActive:
			metrics.LinksActive.Dec()
		}
	})
	return l
}

// Handle reports the locally-assigned link handle.
func (l *Link) Handle() uint32 { return l.handle }

// State reports the link's current lifecycle state.
func (l *Link) State() State { return l.state }

// OnTransferReceived registers the callback invoked for every TRANSFER
// this link receives (inc/link.h's ON_TRANSFER_RECEIVED).
func (l *Link) OnTransferReceived(f func(deliveryID uint32, deliveryTag []byte, settled bool, payload []byte)) {
	l.onTransferReceived = f
}

// OnDeliverySettled registers the callback invoked when a DISPOSITION
// covering one of this link's outgoing deliveries arrives settled
// (inc/link.h's ON_DELIVERY_SETTLED).
func (l *Link) OnDeliverySettled(f func(deliveryID uint32)) {
	l.onDeliverySettled = f
}

// OnStateChanged registers a callback invoked on every state transition.
func (l *Link) OnStateChanged(f func(old, new State)) {
	l.onStateChanged = append(l.onStateChanged, f)
}

func (l *Link) setState(st State) {
	if l.state == st {
		return
	}
	old := l.state
	l.state = st
	for _, f := range l.onStateChanged {
		f(old, st)
	}
}

// Attach registers the link with the session and sends ATTACH.
func (l *Link) Attach() error {
	h, err := l.sess.CreateLink(l.opts.Name, l)
	if err != nil {
		return err
	}
	l.handle = h
	if err := l.sendAttach(); err != nil {
		return err
	}
	l.setState(StateHalfAttached)
	return nil
}

func (l *Link) sendAttach() error {
	body := amqpvalue.ListOf()
	name, _ := amqpvalue.String(l.opts.Name)
	body.AppendListItem(name)
	body.AppendListItem(amqpvalue.Uint(l.handle))
	body.AppendListItem(amqpvalue.Bool(bool(l.opts.Role)))
	body.AppendListItem(amqpvalue.Ubyte(0)) // snd-settle-mode: unsettled
	body.AppendListItem(amqpvalue.Ubyte(0)) // rcv-settle-mode: first
	body.AppendListItem(l.opts.Source)
	body.AppendListItem(l.opts.Target)
	body.AppendListItem(amqpvalue.Null()) // unsettled
	body.AppendListItem(amqpvalue.Bool(false))
	body.AppendListItem(amqpvalue.Uint(l.deliveryCount))
	perf := amqpvalue.Described(amqpvalue.Ulong(descAttach), body)
	return l.sess.SendFrame(perf, nil)
}

// HandleSessionStateChanged implements session.Endpoint.
func (l *Link) HandleSessionStateChanged(old, new session.State) {
	if new == session.StateUnmapped {
		l.setState(StateDetached)
	}
}

// HandleDisposition implements session.Endpoint.
func (l *Link) HandleDisposition(first, last uint32, settled bool, state amqpvalue.Value) {
	if !settled || l.onDeliverySettled == nil {
		return
	}
	for id := first; id <= last; id++ {
		l.onDeliverySettled(id)
	}
}

// HandleFrame implements session.Endpoint.
func (l *Link) HandleFrame(performative amqpvalue.Value, payload []byte) error {
	descriptor, ok := performative.Descriptor()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "link: performative missing descriptor")
	}
	code, ok := descriptor.Ulong()
	if !ok {
		return errs.Protocol(errs.CondInvalidField, "link: performative descriptor not a ulong")
	}
	body, _ := performative.Body()

	switch code {
	case descAttach:
		return l.handleAttach(body)
	case descFlow:
		return l.handleFlow(body)
	case descTransfer:
		return l.handleTransfer(body, payload)
	case descDetach:
		return l.handleDetach(body)
	default:
		return nil
	}
}

func (l *Link) handleAttach(body amqpvalue.Value) error {
	if dc, ok := listUint(body, 9); ok && l.opts.Role == RoleReceiver {
		l.deliveryCount = dc
	}
	switch l.state {
	case StateHalfAttached:
		l.setState(StateAttached)
	case StateDetached:
		l.setState(StateHalfAttached)
		if err := l.sendAttach(); err != nil {
			return err
		}
		l.setState(StateAttached)
	}
	return nil
}

func (l *Link) handleFlow(body amqpvalue.Value) error {
	remoteDeliveryCount, _ := listUint(body, 5)
	remoteLinkCredit, ok := listUint(body, 6)
	if !ok {
		return nil
	}
	if l.opts.Role == RoleSender {
		l.linkCredit = remoteDeliveryCount + remoteLinkCredit - l.deliveryCount
	}
	return nil
}

func (l *Link) handleTransfer(body amqpvalue.Value, payload []byte) error {
	deliveryID, _ := listUint(body, 1)
	var tag []byte
	if tv, ok := body.ListItem(2); ok {
		tag, _ = tv.Binary()
	}
	settled := false
	if sv, ok := body.ListItem(4); ok {
		settled, _ = sv.Bool()
	}
	l.deliveryCount++
	if l.onTransferReceived != nil {
		l.onTransferReceived(deliveryID, tag, settled, payload)
	}
	return nil
}

func (l *Link) handleDetach(body amqpvalue.Value) error {
	if l.state == StateDetached {
		return nil
	}
	l.setState(StateDetached)
	return l.sendDetach(nil)
}

func (l *Link) sendDetach(detachErr *errs.Error) error {
	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Uint(l.handle))
	body.AppendListItem(amqpvalue.Bool(true))
	if detachErr != nil {
		errBody := amqpvalue.ListOf()
		cond, _ := amqpvalue.Symbol(detachErr.Condition)
		errBody.AppendListItem(cond)
		desc, _ := amqpvalue.String(detachErr.Description)
		errBody.AppendListItem(desc)
		body.AppendListItem(amqpvalue.Described(amqpvalue.Ulong(0x1d), errBody))
	} else {
		body.AppendListItem(amqpvalue.Null())
	}
	perf := amqpvalue.Described(amqpvalue.Ulong(descDetach), body)
	return l.sess.SendFrame(perf, nil)
}

// Detach initiates a graceful link teardown: sends DETACH(closed=true).
func (l *Link) Detach(condition, description string) error {
	if l.state == StateDetached {
		return nil
	}
	var de *errs.Error
	if condition != "" {
		de = errs.Protocol(condition, description)
	}
	if err := l.sendDetach(de); err != nil {
		return err
	}
	l.setState(StateDetached)
	l.sess.DestroyLink(l.handle)
	return nil
}

// SendTransfer sends one TRANSFER carrying payload. It fails if the
// sender has no remaining link-credit (AMQP §2.6.7).
func (l *Link) SendTransfer(deliveryID uint32, deliveryTag []byte, payload []byte, settled bool) error {
	if l.opts.Role != RoleSender {
		return errs.New(errs.ArgRange, "link: SendTransfer called on a receiver link")
	}
	if l.state != StateAttached && l.state != StateHalfAttached {
		return errs.New(errs.NotOpen, "link: not attached")
	}
	if l.linkCredit == 0 {
		return errs.New(errs.InProgress, "link: no link-credit available")
	}

	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Uint(l.handle))
	body.AppendListItem(amqpvalue.Uint(deliveryID))
	body.AppendListItem(amqpvalue.Binary(deliveryTag))
	body.AppendListItem(amqpvalue.Uint(0)) // message-format
	body.AppendListItem(amqpvalue.Bool(settled))
	body.AppendListItem(amqpvalue.Bool(false)) // more

	perf := amqpvalue.Described(amqpvalue.Ulong(descTransfer), body)
	if err := l.sess.SendFrame(perf, payload); err != nil {
		return err
	}
	l.deliveryCount++
	l.linkCredit--
	return nil
}

// SendFlow advertises credit to the peer (sent by a receiver link to
// grant the sender permission to transfer).
func (l *Link) SendFlow(credit uint32) error {
	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Uint(0)) // next-incoming-id: unused at link scope
	body.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	body.AppendListItem(amqpvalue.Uint(0))
	body.AppendListItem(amqpvalue.Uint(session.DefaultWindow))
	body.AppendListItem(amqpvalue.Uint(l.handle))
	body.AppendListItem(amqpvalue.Uint(l.deliveryCount))
	body.AppendListItem(amqpvalue.Uint(credit))
	l.linkCredit = credit
	perf := amqpvalue.Described(amqpvalue.Ulong(descFlow), body)
	return l.sess.SendFrame(perf, nil)
}

// SendDisposition reports the outcome of deliveries first..last on this
// link's session (AMQP §2.7.6). state carries the delivery-state value
// (e.g. an "accepted" or "rejected" described value); it may be the zero
// Value to omit it.
func (l *Link) SendDisposition(first, last uint32, settled bool, state amqpvalue.Value) error {
	body := amqpvalue.ListOf()
	body.AppendListItem(amqpvalue.Bool(bool(l.opts.Role)))
	body.AppendListItem(amqpvalue.Uint(first))
	body.AppendListItem(amqpvalue.Uint(last))
	body.AppendListItem(amqpvalue.Bool(settled))
	body.AppendListItem(state)
	perf := amqpvalue.Described(amqpvalue.Ulong(descDisposition), body)
	return l.sess.SendFrame(perf, nil)
}

func listUint(v amqpvalue.Value, idx int) (uint32, bool) {
	item, ok := v.ListItem(idx)
	if !ok {
		return 0, false
	}
	return item.Uint()
}
