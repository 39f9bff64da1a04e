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

// Package connection implements the AMQP 1.0 connection engine (spec.md
// §4.6): the protocol header handshake, the OPEN/CLOSE performative
// exchange, and the per-channel dispatch that hands BEGIN/FLOW/TRANSFER/
// DISPOSITION/ATTACH/DETACH/END performatives off to session endpoints.
package connection

// State is the connection's lifecycle state (AMQP §2.4.7,
// c/src/connection.c's CONNECTION_STATE). This engine never enters the
// OPEN_PIPE/OC_PIPE pipelined-optimistic-send states the reference client
// supports: those exist purely to let a client start sending before the
// header round trip completes, an optimization orthogonal to protocol
// correctness, and every amqp10 caller goes through the ordinary
// START→HDR_EXCH path instead (documented in DESIGN.md).
type State int

const (
	StateStart State = iota
	StateHdrSent
	StateHdrRcvd
	StateHdrExch
	StateOpenRcvd
	StateOpenSent
	StateOpened
	StateCloseRcvd
	StateCloseSent
	StateDiscarding
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateHdrSent:
		return "HDR_SENT"
	case StateHdrRcvd:
		return "HDR_RCVD"
	case StateHdrExch:
		return "HDR_EXCH"
	case StateOpenRcvd:
		return "OPEN_RCVD"
	case StateOpenSent:
		return "OPEN_SENT"
	case StateOpened:
		return "OPENED"
	case StateCloseRcvd:
		return "CLOSE_RCVD"
	case StateCloseSent:
		return "CLOSE_SENT"
	case StateDiscarding:
		return "DISCARDING"
	case StateEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// terminal reports whether no further state transition is possible
// (spec.md invariant P8: state only ever advances, never regresses, and
// END is a sink).
func (s State) terminal() bool { return s == StateEnd }
