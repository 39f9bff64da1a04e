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

// Package session implements the AMQP 1.0 session engine (spec.md §4.7):
// BEGIN/END, delivery-id and transfer-window tracking, and link-handle
// allocation for the links attached to it.
package session

// State is the session's lifecycle state (AMQP §2.5.5).
type State int

const (
	StateUnmapped State = iota
	StateBeginSent
	StateBeginRcvd
	StateMapped
	StateEndSent
	StateEndRcvd
	StateDiscarding
)

func (s State) String() string {
	switch s {
	case StateUnmapped:
		return "UNMAPPED"
	case StateBeginSent:
		return "BEGIN_SENT"
	case StateBeginRcvd:
		return "BEGIN_RCVD"
	case StateMapped:
		return "MAPPED"
	case StateEndSent:
		return "END_SENT"
	case StateEndRcvd:
		return "END_RCVD"
	case StateDiscarding:
		return "DISCARDING"
	default:
		return "UNKNOWN"
	}
}
