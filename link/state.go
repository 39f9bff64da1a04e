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

// Package link implements the AMQP 1.0 link layer (spec.md §4.8):
// ATTACH/DETACH, TRANSFER send and receive, and link-credit flow control,
// scoped to one handle within a session.
package link

// State mirrors inc/link.h's LINK_STATE enum.
type State int

const (
	StateDetached State = iota
	StateHalfAttached
	StateAttached
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "DETACHED"
	case StateHalfAttached:
		return "HALF_ATTACHED"
	case StateAttached:
		return "ATTACHED"
	default:
		return "UNKNOWN"
	}
}

// Role is the link's role within the handshake (AMQP §2.6.2): a sender
// has Role false, a receiver Role true — the performative wire encoding
// this mirrors directly.
type Role bool

const (
	RoleSender   Role = false
	RoleReceiver Role = true
)
