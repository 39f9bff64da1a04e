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

import "github.com/packetd/amqp10/amqpvalue"

// Endpoint is the session-level object a Connection dispatches channel
// traffic to (c/src/connection.c's ENDPOINT_INSTANCE, generalized: the
// reference client keeps the session's callback pointers inline on the
// endpoint struct, this engine expresses the same relationship as an
// interface so session.Session never has to live in this package).
type Endpoint interface {
	// HandleFrame delivers one performative (and, for TRANSFER, its
	// payload) received on this endpoint's incoming channel.
	HandleFrame(performative amqpvalue.Value, payload []byte) error

	// HandleConnectionStateChanged notifies the endpoint that the
	// connection itself changed state, so sessions can unwind cleanly
	// when the connection ends out from under them.
	HandleConnectionStateChanged(old, new State)
}
