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

import "bytes"

// Equal reports whether a and b carry the same tag and payload. Equality is
// tag-sensitive: a ulong and a uint holding the same number are never equal
// (spec.md invariant (f)). Map comparison is insertion-order sensitive
// (invariant P4): {a:1,b:2} and {b:2,a:1} are distinct.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool, KindUbyte, KindUshort, KindUint, KindUlong,
		KindByte, KindShort, KindInt, KindLong,
		KindFloat, KindDouble, KindChar, KindTimestamp:
		return a.bits == b.bits
	case KindUUID:
		return a.uuid == b.uuid
	case KindBinary, KindString, KindSymbol:
		return bytes.Equal(a.bin, b.bin)
	case KindList:
		return equalList(a.list, b.list)
	case KindArray:
		if a.bits != b.bits {
			return false
		}
		return equalList(a.list, b.list)
	case KindMap:
		return equalPairs(a.pairs, b.pairs)
	case KindDescribed:
		return Equal(*a.descriptor, *b.descriptor) && Equal(*a.body, *b.body)
	default:
		return false
	}
}

func equalList(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalPairs(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i].Key, b[i].Key) || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}
