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

import "github.com/packetd/amqp10/amqpvalue"

// Endpoint is the link-level object a Session dispatches handle-scoped
// traffic to (inc/link.h's LINK_HANDLE, generalized the same way
// connection.Endpoint generalizes ENDPOINT_INSTANCE).
type Endpoint interface {
	// HandleFrame delivers one performative (and, for TRANSFER, its
	// payload) received for this endpoint's handle.
	HandleFrame(performative amqpvalue.Value, payload []byte) error

	// HandleSessionStateChanged notifies the link that the owning session
	// itself changed state.
	HandleSessionStateChanged(old, new State)

	// HandleDisposition is invoked for every DISPOSITION performative on
	// the session, regardless of handle — DISPOSITION refers to a
	// delivery-id range, not a handle, so every attached link must see it
	// and decide for itself whether any of its own deliveries are
	// covered.
	HandleDisposition(first, last uint32, settled bool, state amqpvalue.Value)
}
