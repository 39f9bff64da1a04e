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

// Bool reports v's payload and whether v is actually a bool.
func (v Value) Bool() (b, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bits != 0, true
}

// Ubyte reports v's payload and whether v is actually a ubyte.
func (v Value) Ubyte() (n uint8, ok bool) {
	if v.kind != KindUbyte {
		return 0, false
	}
	return uint8(v.bits), true
}

// Ushort reports v's payload and whether v is actually a ushort.
func (v Value) Ushort() (n uint16, ok bool) {
	if v.kind != KindUshort {
		return 0, false
	}
	return uint16(v.bits), true
}

// Uint reports v's payload and whether v is actually a uint.
func (v Value) Uint() (n uint32, ok bool) {
	if v.kind != KindUint {
		return 0, false
	}
	return uint32(v.bits), true
}

// Ulong reports v's payload and whether v is actually a ulong.
func (v Value) Ulong() (n uint64, ok bool) {
	if v.kind != KindUlong {
		return 0, false
	}
	return v.bits, true
}

// Byte reports v's payload and whether v is actually a byte.
func (v Value) Byte() (n int8, ok bool) {
	if v.kind != KindByte {
		return 0, false
	}
	return int8(v.bits), true
}

// Short reports v's payload and whether v is actually a short.
func (v Value) Short() (n int16, ok bool) {
	if v.kind != KindShort {
		return 0, false
	}
	return int16(v.bits), true
}

// Int reports v's payload and whether v is actually an int.
func (v Value) Int() (n int32, ok bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return int32(v.bits), true
}

// Long reports v's payload and whether v is actually a long.
func (v Value) Long() (n int64, ok bool) {
	if v.kind != KindLong {
		return 0, false
	}
	return v.int64Bits(), true
}

// Float32 reports v's payload and whether v is actually a float.
func (v Value) Float32() (f float32, ok bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return math.Float32frombits(uint32(v.bits)), true
}

// Float64 reports v's payload and whether v is actually a double.
func (v Value) Float64() (f float64, ok bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.float64Bits(), true
}

// Char reports v's payload and whether v is actually a char.
func (v Value) Char() (r rune, ok bool) {
	if v.kind != KindChar {
		return 0, false
	}
	return rune(uint32(v.bits)), true
}

// Timestamp reports v's payload (milliseconds since the Unix epoch) and
// whether v is actually a timestamp.
func (v Value) Timestamp() (ms int64, ok bool) {
	if v.kind != KindTimestamp {
		return 0, false
	}
	return v.int64Bits(), true
}

// UUID reports v's payload and whether v is actually a uuid.
func (v Value) UUID() (b [16]byte, ok bool) {
	if v.kind != KindUUID {
		return [16]byte{}, false
	}
	return v.uuid, true
}

// Binary reports v's payload and whether v is actually binary. The returned
// slice aliases v's storage and must not be mutated by the caller.
func (v Value) Binary() (b []byte, ok bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return v.bin, true
}

// String reports v's payload and whether v is actually a string.
func (v Value) String() (s string, ok bool) {
	if v.kind != KindString {
		return "", false
	}
	return string(v.bin), true
}

// Symbol reports v's payload and whether v is actually a symbol.
func (v Value) Symbol() (s string, ok bool) {
	if v.kind != KindSymbol {
		return "", false
	}
	return string(v.bin), true
}

// ArrayElemKind reports the declared element kind of v and whether v is
// actually an array.
func (v Value) ArrayElemKind() (k Kind, ok bool) {
	if v.kind != KindArray {
		return 0, false
	}
	return Kind(v.bits), true
}

// Descriptor reports the descriptor of a described value and whether v is
// actually described.
func (v Value) Descriptor() (d Value, ok bool) {
	if v.kind != KindDescribed {
		return Value{}, false
	}
	return *v.descriptor, true
}

// Body reports the body of a described value and whether v is actually
// described.
func (v Value) Body() (b Value, ok bool) {
	if v.kind != KindDescribed {
		return Value{}, false
	}
	return *v.body, true
}
