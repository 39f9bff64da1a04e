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

package sasl

import "sync"

// Factory builds a Mechanism instance on demand (c/src/sasl_mechanism.c's
// SASL_MECHANISM_INTERFACE_DESCRIPTION, generalized from a single
// compiled-in vtable to a name-keyed registry so mechanisms beyond PLAIN
// can register themselves from an init func without saslio knowing their
// package).
type Factory func() Mechanism

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a mechanism available under name for later Lookup.
// Calling Register twice for the same name replaces the earlier factory,
// matching sasl_mechanism.c's last-registration-wins semantics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Lookup builds a Mechanism for name, or reports ok=false if nothing has
// registered under that name.
func Lookup(name string) (Mechanism, bool) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}
