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

// Package messaging implements the send/receive façade over a link
// (inc/message_sender.h, inc/message_receiver.h, inc/messaging.h):
// Sender queues outgoing messages until the underlying link is attached,
// Receiver surfaces incoming TRANSFERs and settles them, and
// CreateSource/CreateTarget build the address-only source/target values
// most callers need.
package messaging

import "github.com/packetd/amqp10/amqpvalue"

// descriptor codes for the delivery-state outcomes (AMQP §3.4).
const (
	descAccepted = 0x24
	descRejected = 0x25
	descReleased = 0x26
)

// CreateSource builds a minimal source value carrying only an address
// (messaging.c's messaging_create_source).
func CreateSource(address string) amqpvalue.Value {
	body := amqpvalue.ListOf()
	addr, _ := amqpvalue.String(address)
	body.AppendListItem(addr)
	return amqpvalue.Described(amqpvalue.Ulong(0x28), body)
}

// CreateTarget builds a minimal target value carrying only an address
// (messaging.c's messaging_create_target).
func CreateTarget(address string) amqpvalue.Value {
	body := amqpvalue.ListOf()
	addr, _ := amqpvalue.String(address)
	body.AppendListItem(addr)
	return amqpvalue.Described(amqpvalue.Ulong(0x29), body)
}

// Accepted builds the "accepted" delivery-state outcome.
func Accepted() amqpvalue.Value {
	return amqpvalue.Described(amqpvalue.Ulong(descAccepted), amqpvalue.ListOf())
}

// Released builds the "released" delivery-state outcome.
func Released() amqpvalue.Value {
	return amqpvalue.Described(amqpvalue.Ulong(descReleased), amqpvalue.ListOf())
}
