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

import "github.com/packetd/amqp10/link"

// DefaultCredit is the link-credit a Receiver grants on Subscribe when
// the caller doesn't ask for a specific value.
const DefaultCredit = 100

// Receiver delivers incoming messages from one receiving link
// (inc/message_receiver.h's MESSAGE_RECEIVER_HANDLE) and accepts each one
// once the subscriber has seen it.
type Receiver struct {
	link      *link.Link
	onMessage func(payload []byte)
}

// NewReceiver wraps l, which must be a RoleReceiver link.
func NewReceiver(l *link.Link) *Receiver {
	r := &Receiver{link: l}
	l.OnTransferReceived(r.onTransfer)
	return r
}

// Subscribe registers the callback invoked for every message this
// receiver gets, and grants credit so the peer can start sending
// (message_receiver.c's messagereceiver_subscribe).
func (r *Receiver) Subscribe(credit uint32, onMessage func(payload []byte)) error {
	r.onMessage = onMessage
	if credit == 0 {
		credit = DefaultCredit
	}
	return r.link.SendFlow(credit)
}

func (r *Receiver) onTransfer(deliveryID uint32, tag []byte, settled bool, payload []byte) {
	if r.onMessage != nil {
		r.onMessage(payload)
	}
	if !settled {
		_ = r.link.SendDisposition(deliveryID, deliveryID, true, Accepted())
	}
}
