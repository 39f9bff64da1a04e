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

// Package amqpvalue implements the AMQP 1.0 type system (spec.md §3, §4.1):
// a tagged Value over the primitive and composite types defined by AMQP
// §1.6, with construction, equality, deep cloning, and a streaming
// encoder/decoder pair that is bit-exact with the wire constructor table.
package amqpvalue

// Kind tags the concrete type carried by a Value. Two values of differing
// Kind are never equal, even when numerically comparable (spec.md
// invariant (f)).
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindUbyte
	KindUshort
	KindUint
	KindUlong
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindChar
	KindTimestamp
	KindUUID
	KindBinary
	KindString
	KindSymbol
	KindList
	KindMap
	KindArray
	KindDescribed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindUbyte:
		return "ubyte"
	case KindUshort:
		return "ushort"
	case KindUint:
		return "uint"
	case KindUlong:
		return "ulong"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindChar:
		return "char"
	case KindTimestamp:
		return "timestamp"
	case KindUUID:
		return "uuid"
	case KindBinary:
		return "binary"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	case KindDescribed:
		return "described"
	default:
		return "unknown"
	}
}
