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

// Package transport defines the byte-pump abstraction the connection
// engine drives from its single dowork loop (spec.md §4.4): open/close a
// stream, push bytes out, and poll it once per dowork for whatever bytes
// arrived since the last poll. tcpio, tlsio and saslio are concrete
// implementations; connection.go only ever depends on the Transport
// interface.
package transport

import "context"

// State is the transport's lifecycle state (spec.md §4.4's IO_STATE
// analogue).
type State int

const (
	NotOpen State = iota
	Opening
	Open
	Error
)

func (s State) String() string {
	switch s {
	case NotOpen:
		return "not-open"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Transport is the capability set the connection engine needs from
// whatever byte stream carries the protocol. Open performs the blocking
// part of establishing the stream (TCP dial, TLS handshake, SASL
// negotiation); once it returns nil the transport is Open and DoWork/
// Write/Close take over. Callbacks set via SetOnData/SetOnStateChanged
// are invoked synchronously on the caller's goroutine (data callbacks from
// within DoWork, state-change callbacks from Open, Close or DoWork), never
// from another goroutine, preserving the single-threaded cooperative model
// dowork requires.
type Transport interface {
	// Open blocks until the stream is ready to carry AMQP bytes (or
	// fails). Implementations that need their own handshake (tlsio,
	// saslio) perform it here before returning.
	Open(ctx context.Context) error

	// Close tears the stream down. Idempotent.
	Close() error

	// Write sends p. It may block; the connection engine only calls it
	// from dowork, never concurrently with DoWork.
	Write(p []byte) (int, error)

	// DoWork polls for newly arrived bytes without blocking and, for
	// each chunk read, invokes the OnData callback before returning.
	// It returns promptly whether or not data was available.
	DoWork() error

	// State reports the current lifecycle state.
	State() State

	// SetOnData registers the callback DoWork invokes with each chunk of
	// bytes read from the stream.
	SetOnData(func([]byte))

	// SetOnStateChanged registers the callback invoked whenever State
	// transitions, including into Error.
	SetOnStateChanged(func(old, new State))
}
