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

package amqpvalue

import "math"

// Pair is one key/value entry of a Map value. Map equality and encoding are
// order-sensitive (AMQP §1.6.23, spec.md invariant and P4): a Pair slice is
// never re-sorted by this package.
type Pair struct {
	Key   Value
	Value Value
}

// Value is the tagged AMQP value described by spec.md §3. The zero Value is
// a valid null. Each owned byte slice (bytes, list, pairs) is private to
// its creator until Clone is used to obtain an independent copy.
type Value struct {
	kind Kind

	// bits stores the scalar payload for every fixed-width primitive:
	// bool (0/1), the unsigned/signed integer families (two's complement
	// bit pattern), float32/float64 (math.Float*bits), char (rune cast to
	// uint64) and timestamp (milliseconds since epoch, cast to uint64).
	bits uint64

	uuid [16]byte
	bin  []byte // binary, string and symbol storage (owned)

	list  []Value // list and array element storage (owned)
	pairs []Pair  // map storage, insertion order preserved (owned)

	descriptor *Value // described: the descriptor value
	body       *Value // described: the body value
}

// Kind reports the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) int64Bits() int64     { return int64(v.bits) }
func (v Value) float64Bits() float64 { return math.Float64frombits(v.bits) }

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
