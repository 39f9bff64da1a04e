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
	"github.com/google/uuid"

	"github.com/packetd/amqp10/link"
	"github.com/packetd/amqp10/session"
)

// SendResult reports how a queued send completed (message_sender.h's
// MESSAGE_SEND_RESULT).
type SendResult int

const (
	SendOK SendResult = iota
	SendError
)

type sendState int

const (
	sendNotSent sendState = iota
	sendPending
)

type pendingMessage struct {
	payload    []byte
	tag        []byte
	onComplete func(SendResult)
	state      sendState
}

// Sender queues messages for one sending link and flushes them once the
// link reaches HALF_ATTACHED/ATTACHED (message_sender.c's
// MESSAGE_SENDER_INSTANCE), retrying the flush on every later attach too
// so a link that detaches and re-attaches keeps delivering queued sends.
type Sender struct {
	sess *session.Session
	link *link.Link

	connected bool
	pending   []*pendingMessage
	byDeliveryID map[uint64]*pendingMessage
}

// NewSender wraps l, which must be a RoleSender link already created on
// sess (but not necessarily attached yet).
func NewSender(sess *session.Session, l *link.Link) *Sender {
	s := &Sender{
		sess:  sess,
		link:  l,
		byDeliveryID: make(map[uint64]*pendingMessage),
	}
	if st := l.State(); st == link.StateHalfAttached || st == link.StateAttached {
		s.connected = true
	}
	l.OnStateChanged(s.onLinkStateChanged)
	l.OnDeliverySettled(s.onDeliverySettled)
	return s
}

func (s *Sender) onLinkStateChanged(old, new link.State) {
	switch new {
	case link.StateHalfAttached, link.StateAttached:
		s.connected = true
		s.flushPending()
	default:
		s.connected = false
	}
}

// Send queues payload for delivery; onComplete fires once the peer
// settles the corresponding delivery (or immediately with SendError if
// the transfer itself could not be issued). tag overrides the delivery-tag
// this message is sent with; when omitted a fresh one is minted from
// uuid.NewRandom the way inc/messaging.h leaves delivery-tag generation to
// the caller and c/samples default it when unset.
func (s *Sender) Send(payload []byte, onComplete func(SendResult), tag ...[]byte) {
	pm := &pendingMessage{payload: payload, onComplete: onComplete, state: sendNotSent}
	if len(tag) > 0 && len(tag[0]) > 0 {
		pm.tag = tag[0]
	}
	s.pending = append(s.pending, pm)
	if s.connected {
		s.flushPending()
	}
}

// flushPending sends every not-yet-sent message in order. This is the
// corrected counterpart of message_sender.c's send_all_pending_messages:
// that function marks the just-sent slot PENDING by indexing
// messages[message_count] — one past the loop index i, and out of the
// backing array's bounds — instead of messages[i]. Here the slot that is
// actually transitioned is s.pending[i], the one just sent.
func (s *Sender) flushPending() {
	for i := 0; i < len(s.pending); i++ {
		pm := s.pending[i]
		if pm.state != sendNotSent {
			continue
		}

		if len(pm.tag) == 0 {
			pm.tag = newDeliveryTag()
		}
		deliveryID := s.sess.NextDeliveryID()
		if err := s.link.SendTransfer(deliveryID, pm.tag, pm.payload, false); err != nil {
			complete := pm.onComplete
			s.removeMatching(func(p *pendingMessage) bool { return p == pm })
			i--
			if complete != nil {
				complete(SendError)
			}
			continue
		}
		pm.state = sendPending
		s.byDeliveryID[deliveryID] = pm
	}
}

func (s *Sender) onDeliverySettled(deliveryID uint32) {
	pm, ok := s.byDeliveryID[uint64(deliveryID)]
	if !ok {
		return
	}
	delete(s.byDeliveryID, uint64(deliveryID))
	s.removeMatching(func(p *pendingMessage) bool { return p == pm })
	if pm.onComplete != nil {
		pm.onComplete(SendOK)
	}
}

// removeMatching removes exactly the first pending message satisfying
// match, preserving every other element. This is the corrected
// counterpart of list.c's list_remove_matching_item, whose `previous`
// pointer is never advanced while walking the list: every match falls
// into the head==nil branch and executes `list->head = NULL`, discarding
// the rest of the list regardless of which item matched. A slice splice
// has no equivalent failure mode — it relocates only the elements after
// the matched index.
func (s *Sender) removeMatching(match func(*pendingMessage) bool) bool {
	for i, pm := range s.pending {
		if match(pm) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// newDeliveryTag mints a fresh delivery-tag for a message the caller left
// untagged.
func newDeliveryTag() []byte {
	id := uuid.New()
	return id[:]
}

// Pending reports how many messages are queued but not yet settled.
func (s *Sender) Pending() int { return len(s.pending) }
