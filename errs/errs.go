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

// Package errs defines the error taxonomy shared by every layer of the
// AMQP 1.0 engine: argument violations, allocation failures, protocol
// violations (which carry an AMQP <condition, description> pair), transport
// errors and decoder poisoning.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies an engine error. Argument and allocation errors are
// returned to the immediate caller. Protocol violations found while
// decoding inbound frames are surfaced as state-machine transitions and
// callbacks, not as dowork return values; transport read errors are
// returned from Connection.DoWork.
type Code int

const (
	ArgNull Code = iota
	ArgRange
	AllocFailed
	ProtocolViolation
	TransportError
	DecoderPoisoned
	InProgress
	NotOpen
)

func (c Code) String() string {
	switch c {
	case ArgNull:
		return "arg-null"
	case ArgRange:
		return "arg-range"
	case AllocFailed:
		return "alloc-failed"
	case ProtocolViolation:
		return "protocol-violation"
	case TransportError:
		return "transport-error"
	case DecoderPoisoned:
		return "decoder-poisoned"
	case InProgress:
		return "in-progress"
	case NotOpen:
		return "not-open"
	default:
		return "unknown"
	}
}

// Condition strings as defined by AMQP 1.0 §2.8.14 / connection error map
// (spec.md §4.6, §7).
const (
	CondNotAllowed     = "amqp:not-allowed"
	CondIllegalState   = "amqp:illegal-state"
	CondInvalidField   = "amqp:invalid-field"
	CondInternalError  = "amqp:internal-error"
	CondFrameSizeTooSm = "amqp:frame-size-too-small"
)

// Error is the concrete error type returned by this module. For
// ProtocolViolation it carries the condition/description pair that must be
// stamped on the outgoing CLOSE or DETACH performative.
type Error struct {
	Code        Code
	Condition   string
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.Condition != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Condition, e.Description)
	}
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a plain taxonomy error whose Description is the formatted
// message text.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Description: errors.Errorf(format, args...).Error()}
}

// Wrap attaches a taxonomy code to an existing error, preserving it as the
// cause for errors.Is/As through Unwrap.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Description: errors.Wrapf(cause, format, args...).Error(), cause: cause}
}

// Protocol builds a ProtocolViolation error carrying the condition that
// must be stamped on the CLOSE/DETACH performative sent to the peer.
func Protocol(condition, description string) *Error {
	return &Error{Code: ProtocolViolation, Condition: condition, Description: description}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
