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

import (
	"math"
	"unicode/utf8"
)

// maxCodePoint is the highest Unicode scalar value AMQP's char type may
// carry (spec.md invariant (d), P5).
const maxCodePoint = 0x10FFFF

// Null returns the null value. It is also the zero Value.
func Null() Value { return Value{kind: KindNull} }

// Bool constructs a bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.bits = 1
	}
	return v
}

// Ubyte constructs a ubyte (uint8) value.
func Ubyte(n uint8) Value { return Value{kind: KindUbyte, bits: uint64(n)} }

// Ushort constructs a ushort (uint16) value.
func Ushort(n uint16) Value { return Value{kind: KindUshort, bits: uint64(n)} }

// Uint constructs a uint (uint32) value.
func Uint(n uint32) Value { return Value{kind: KindUint, bits: uint64(n)} }

// Ulong constructs a ulong (uint64) value.
func Ulong(n uint64) Value { return Value{kind: KindUlong, bits: n} }

// Byte constructs a byte (int8) value.
func Byte(n int8) Value { return Value{kind: KindByte, bits: uint64(uint8(n))} }

// Short constructs a short (int16) value.
func Short(n int16) Value { return Value{kind: KindShort, bits: uint64(uint16(n))} }

// Int constructs an int (int32) value.
func Int(n int32) Value { return Value{kind: KindInt, bits: uint64(uint32(n))} }

// Long constructs a long (int64) value.
func Long(n int64) Value { return Value{kind: KindLong, bits: uint64(n)} }

// Float32 constructs a float (IEEE-754 binary32) value.
func Float32(f float32) Value {
	return Value{kind: KindFloat, bits: uint64(math.Float32bits(f))}
}

// Float64 constructs a double (IEEE-754 binary64) value.
func Float64(f float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(f)}
}

// Char constructs a char value from a Unicode scalar. It fails (ok=false)
// for code points above 0x10FFFF (spec.md invariant (d), P5).
func Char(codePoint rune) (v Value, ok bool) {
	if codePoint < 0 || codePoint > maxCodePoint {
		return Value{}, false
	}
	return Value{kind: KindChar, bits: uint64(uint32(codePoint))}, true
}

// Timestamp constructs a timestamp value from milliseconds since the Unix
// epoch.
func Timestamp(ms int64) Value { return Value{kind: KindTimestamp, bits: uint64(ms)} }

// UUID constructs a uuid value from 16 raw bytes.
func UUID(b [16]byte) Value { return Value{kind: KindUUID, uuid: b} }

// Binary constructs a binary value, copying b so the Value owns its storage.
func Binary(b []byte) Value {
	return Value{kind: KindBinary, bin: append([]byte(nil), b...)}
}

// String constructs a string value. It fails (ok=false) when s is not
// valid UTF-8 (spec.md invariant (c)).
func String(s string) (v Value, ok bool) {
	if !utf8.ValidString(s) {
		return Value{}, false
	}
	return Value{kind: KindString, bin: []byte(s)}, true
}

// Symbol constructs a symbol value. AMQP symbols are restricted to the
// ASCII subset of UTF-8; this is checked rather than merely assumed.
func Symbol(s string) (v Value, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return Value{}, false
		}
	}
	return Value{kind: KindSymbol, bin: []byte(s)}, true
}

// List constructs an empty list. Use SetListItem to populate it.
func List() Value { return Value{kind: KindList} }

// ListOf constructs a list from the given items, copying the slice so the
// Value owns independent storage.
func ListOf(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Map constructs an empty map. Use SetMapValue to populate it; pair order
// is the insertion order and is significant for equality (AMQP §1.6.23).
func Map() Value { return Value{kind: KindMap} }

// Array constructs an empty array of the given element kind. All items
// later added via SetListItem must share this element kind.
func Array(elemKind Kind) Value {
	return Value{kind: KindArray, bits: uint64(elemKind)}
}

// Described constructs a described value pairing a descriptor (conventionally
// a symbol or ulong) with a body value.
func Described(descriptor, body Value) Value {
	d, b := descriptor, body
	return Value{kind: KindDescribed, descriptor: &d, body: &b}
}
