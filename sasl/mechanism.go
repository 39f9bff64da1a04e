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

// Package sasl defines the SASL mechanism plug point used during the
// connection-establishment handshake (spec.md §4.5). Concrete mechanisms
// (sasl/plain, ...) implement Mechanism; saslio drives whichever one the
// caller selects.
package sasl

// Mechanism is one SASL mechanism, grounded on inc/sasl_mechanism.h's
// create/get_init_bytes/get_mechanism_name/challenge vtable.
type Mechanism interface {
	// Name is the mechanism name advertised in sasl-init (e.g. "PLAIN").
	Name() string

	// InitBytes returns the initial response to send with sasl-init, or
	// nil if this mechanism sends none.
	InitBytes() []byte

	// Challenge computes the response to a sasl-challenge. Mechanisms
	// that never receive a challenge (PLAIN) can return an error.
	Challenge(challenge []byte) (response []byte, err error)
}
