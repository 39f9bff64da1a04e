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
	"encoding/binary"
	"io"
	"math"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/amqp10/errs"
)

// Wire constructor codes, AMQP 1.0 §1.6.
const (
	ctorNull       = 0x40
	ctorBoolTrue   = 0x41
	ctorBoolFalse  = 0x42
	ctorUint0      = 0x43
	ctorUlong0     = 0x44
	ctorList0      = 0x45
	ctorUbyte      = 0x50
	ctorByte       = 0x51
	ctorSmallUint  = 0x52
	ctorSmallUlong = 0x53
	ctorSmallInt   = 0x54
	ctorSmallLong  = 0x55
	ctorBool       = 0x56
	ctorUshort     = 0x60
	ctorShort      = 0x61
	ctorUint       = 0x70
	ctorInt        = 0x71
	ctorFloat      = 0x72
	ctorChar       = 0x73
	ctorUlong      = 0x80
	ctorLong       = 0x81
	ctorDouble     = 0x82
	ctorTimestamp  = 0x83
	ctorUUID       = 0x98
	ctorVbin8      = 0xA0
	ctorStr8       = 0xA1
	ctorSym8       = 0xA3
	ctorVbin32     = 0xB0
	ctorStr32      = 0xB1
	ctorSym32      = 0xB3
	ctorList8      = 0xC0
	ctorMap8       = 0xC1
	ctorList32     = 0xD0
	ctorMap32      = 0xD1
	ctorArray8     = 0xE0
	ctorArray32    = 0xF0
	ctorDescribed  = 0x00
)

// Encode writes v's minimal wire encoding to w (spec.md invariant P3: the
// narrowest valid representation is always chosen).
func Encode(w io.Writer, v Value) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var err error
	buf.B, err = appendValue(buf.B[:0], v)
	if err != nil {
		return err
	}
	_, err = w.Write(buf.B)
	if err != nil {
		return errs.Wrap(errs.TransportError, err, "amqpvalue: write encoded value")
	}
	return nil
}

// EncodedSize reports the number of bytes Encode would write for v.
func EncodedSize(v Value) (int, error) {
	b, err := appendValue(nil, v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func appendValue(b []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(b, ctorNull), nil
	case KindBool:
		if v.bits != 0 {
			return append(b, ctorBoolTrue), nil
		}
		return append(b, ctorBoolFalse), nil
	case KindUbyte:
		return append(b, ctorUbyte, byte(v.bits)), nil
	case KindUshort:
		b = append(b, ctorUshort)
		return appendUint16(b, uint16(v.bits)), nil
	case KindUint:
		n := uint32(v.bits)
		switch {
		case n == 0:
			return append(b, ctorUint0), nil
		case n <= 0xFF:
			return append(b, ctorSmallUint, byte(n)), nil
		default:
			b = append(b, ctorUint)
			return appendUint32(b, n), nil
		}
	case KindUlong:
		n := v.bits
		switch {
		case n == 0:
			return append(b, ctorUlong0), nil
		case n <= 0xFF:
			return append(b, ctorSmallUlong, byte(n)), nil
		default:
			b = append(b, ctorUlong)
			return appendUint64(b, n), nil
		}
	case KindByte:
		return append(b, ctorByte, byte(v.bits)), nil
	case KindShort:
		b = append(b, ctorShort)
		return appendUint16(b, uint16(v.bits)), nil
	case KindInt:
		n := int32(uint32(v.bits))
		if n >= -128 && n <= 127 {
			return append(b, ctorSmallInt, byte(int8(n))), nil
		}
		b = append(b, ctorInt)
		return appendUint32(b, uint32(n)), nil
	case KindLong:
		n := v.int64Bits()
		if n >= -128 && n <= 127 {
			return append(b, ctorSmallLong, byte(int8(n))), nil
		}
		b = append(b, ctorLong)
		return appendUint64(b, uint64(n)), nil
	case KindFloat:
		b = append(b, ctorFloat)
		return appendUint32(b, uint32(v.bits)), nil
	case KindDouble:
		b = append(b, ctorDouble)
		return appendUint64(b, v.bits), nil
	case KindChar:
		b = append(b, ctorChar)
		return appendUint32(b, uint32(v.bits)), nil
	case KindTimestamp:
		b = append(b, ctorTimestamp)
		return appendUint64(b, v.bits), nil
	case KindUUID:
		b = append(b, ctorUUID)
		return append(b, v.uuid[:]...), nil
	case KindBinary:
		return appendOctets(b, ctorVbin8, ctorVbin32, v.bin), nil
	case KindString:
		return appendOctets(b, ctorStr8, ctorStr32, v.bin), nil
	case KindSymbol:
		return appendOctets(b, ctorSym8, ctorSym32, v.bin), nil
	case KindList:
		return appendList(b, v.list)
	case KindMap:
		return appendMap(b, v.pairs)
	case KindArray:
		elemKind, _ := v.ArrayElemKind()
		return appendArray(b, elemKind, v.list)
	case KindDescribed:
		b = append(b, ctorDescribed)
		var err error
		b, err = appendValue(b, *v.descriptor)
		if err != nil {
			return nil, err
		}
		return appendValue(b, *v.body)
	default:
		return nil, errs.New(errs.ArgRange, "amqpvalue: encode: unknown kind %v", v.kind)
	}
}

func appendUint16(b []byte, n uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], n)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, n uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	return append(b, tmp[:]...)
}

func appendOctets(b []byte, ctor8, ctor32 byte, data []byte) []byte {
	if len(data) <= 0xFF {
		b = append(b, ctor8, byte(len(data)))
		return append(b, data...)
	}
	b = append(b, ctor32)
	b = appendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func appendList(b []byte, items []Value) ([]byte, error) {
	if len(items) == 0 {
		return append(b, ctorList0), nil
	}
	var body []byte
	for _, item := range items {
		var err error
		body, err = appendValue(body, item)
		if err != nil {
			return nil, err
		}
	}
	return appendCompound(b, ctorList8, ctorList32, len(items), body), nil
}

func appendMap(b []byte, pairs []Pair) ([]byte, error) {
	var body []byte
	for _, p := range pairs {
		var err error
		body, err = appendValue(body, p.Key)
		if err != nil {
			return nil, err
		}
		body, err = appendValue(body, p.Value)
		if err != nil {
			return nil, err
		}
	}
	return appendCompound(b, ctorMap8, ctorMap32, len(pairs)*2, body), nil
}

// appendCompound writes the shared list/map tail: constructor, size, count,
// body. size is chosen as the narrower of the 8/32 variants that fits both
// the body length and the element count (spec.md P3).
func appendCompound(b []byte, ctor8, ctor32 byte, count int, body []byte) []byte {
	// size excludes itself but includes the count field.
	size8 := 1 + len(body)
	if count <= 0xFF && size8 <= 0xFF {
		b = append(b, ctor8, byte(size8), byte(count))
		return append(b, body...)
	}
	size32 := 4 + len(body)
	b = append(b, ctor32)
	b = appendUint32(b, uint32(size32))
	b = appendUint32(b, uint32(count))
	return append(b, body...)
}

// arrayElemCtor reports the single constructor code AMQP requires every
// element of an array to share. For variable-width kinds (ulong/long/uint/
// int and the octet-string families) the widest representation needed by
// any element is chosen so all elements encode uniformly. Arrays of list,
// map, array or described values are not supported: nesting a variable
// shared-constructor composite inside another breaks the one-constructor-
// per-array rule, and no component in this engine needs it.
func arrayElemCtor(elemKind Kind, items []Value) (ctor byte, wide bool) {
	switch elemKind {
	case KindUint:
		for _, it := range items {
			if n, _ := it.Uint(); n > 0xFF {
				return ctorUint, true
			}
		}
		return ctorSmallUint, false
	case KindUlong:
		for _, it := range items {
			if n, _ := it.Ulong(); n > 0xFF {
				return ctorUlong, true
			}
		}
		return ctorSmallUlong, false
	case KindInt:
		for _, it := range items {
			if n, _ := it.Int(); n < -128 || n > 127 {
				return ctorInt, true
			}
		}
		return ctorSmallInt, false
	case KindLong:
		for _, it := range items {
			if n, _ := it.Long(); n < -128 || n > 127 {
				return ctorLong, true
			}
		}
		return ctorSmallLong, false
	case KindBinary:
		return arrayOctetCtor(ctorVbin8, ctorVbin32, items, func(it Value) []byte { b, _ := it.Binary(); return b })
	case KindString:
		return arrayOctetCtor(ctorStr8, ctorStr32, items, func(it Value) []byte { s, _ := it.String(); return []byte(s) })
	case KindSymbol:
		return arrayOctetCtor(ctorSym8, ctorSym32, items, func(it Value) []byte { s, _ := it.Symbol(); return []byte(s) })
	case KindBool:
		return ctorBool, true
	case KindNull:
		return ctorNull, false
	case KindUbyte:
		return ctorUbyte, false
	case KindUshort:
		return ctorUshort, false
	case KindByte:
		return ctorByte, false
	case KindShort:
		return ctorShort, false
	case KindFloat:
		return ctorFloat, false
	case KindDouble:
		return ctorDouble, false
	case KindChar:
		return ctorChar, false
	case KindTimestamp:
		return ctorTimestamp, false
	case KindUUID:
		return ctorUUID, false
	default:
		return 0, true
	}
}

func arrayOctetCtor(ctor8, ctor32 byte, items []Value, extract func(Value) []byte) (byte, bool) {
	for _, it := range items {
		if len(extract(it)) > 0xFF {
			return ctor32, true
		}
	}
	return ctor8, false
}

func appendArray(b []byte, elemKind Kind, items []Value) ([]byte, error) {
	ctor, _ := arrayElemCtor(elemKind, items)
	if ctor == 0 {
		return nil, errs.New(errs.ArgRange, "amqpvalue: array of %v is not supported", elemKind)
	}
	var body []byte
	body = append(body, ctor)
	for _, it := range items {
		var err error
		body, err = appendArrayElem(body, ctor, it)
		if err != nil {
			return nil, err
		}
	}
	return appendCompound(b, ctorArray8, ctorArray32, len(items), body), nil
}

// appendArrayElem writes one array element's payload using the array's
// shared constructor rather than recomputing a minimal one per element.
func appendArrayElem(b []byte, ctor byte, v Value) ([]byte, error) {
	switch ctor {
	case ctorBool:
		val, _ := v.Bool()
		if val {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case ctorUbyte:
		n, _ := v.Ubyte()
		return append(b, n), nil
	case ctorByte:
		n, _ := v.Byte()
		return append(b, byte(n)), nil
	case ctorUshort:
		n, _ := v.Ushort()
		return appendUint16(b, n), nil
	case ctorShort:
		n, _ := v.Short()
		return appendUint16(b, uint16(n)), nil
	case ctorSmallUint:
		n, _ := v.Uint()
		return append(b, byte(n)), nil
	case ctorUint:
		n, _ := v.Uint()
		return appendUint32(b, n), nil
	case ctorSmallUlong:
		n, _ := v.Ulong()
		return append(b, byte(n)), nil
	case ctorUlong:
		n, _ := v.Ulong()
		return appendUint64(b, n), nil
	case ctorSmallInt:
		n, _ := v.Int()
		return append(b, byte(int8(n))), nil
	case ctorInt:
		n, _ := v.Int()
		return appendUint32(b, uint32(n)), nil
	case ctorSmallLong:
		n, _ := v.Long()
		return append(b, byte(int8(n))), nil
	case ctorLong:
		n, _ := v.Long()
		return appendUint64(b, uint64(n)), nil
	case ctorFloat:
		n, _ := v.Float32()
		return appendUint32(b, math.Float32bits(n)), nil
	case ctorDouble:
		n, _ := v.Float64()
		return appendUint64(b, math.Float64bits(n)), nil
	case ctorChar:
		n, _ := v.Char()
		return appendUint32(b, uint32(n)), nil
	case ctorTimestamp:
		n, _ := v.Timestamp()
		return appendUint64(b, uint64(n)), nil
	case ctorUUID:
		n, _ := v.UUID()
		return append(b, n[:]...), nil
	case ctorVbin8, ctorStr8, ctorSym8:
		data := octetData(v)
		return append(append(b, byte(len(data))), data...), nil
	case ctorVbin32, ctorStr32, ctorSym32:
		data := octetData(v)
		b = appendUint32(b, uint32(len(data)))
		return append(b, data...), nil
	case ctorNull:
		return b, nil
	default:
		return nil, errs.New(errs.ArgRange, "amqpvalue: unsupported array element constructor 0x%02x", ctor)
	}
}

func octetData(v Value) []byte {
	switch v.kind {
	case KindBinary:
		d, _ := v.Binary()
		return d
	case KindString:
		s, _ := v.String()
		return []byte(s)
	case KindSymbol:
		s, _ := v.Symbol()
		return []byte(s)
	default:
		return nil
	}
}
