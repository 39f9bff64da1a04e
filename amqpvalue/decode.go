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
	"unicode/utf8"

	"github.com/packetd/amqp10/errs"
)

// maxDescribedDepth bounds the recursion scanValue/buildValue use to walk
// nested described values. AMQP §1.6 encodes every composite's total byte
// length up front except the described wrapper (descriptor+body, each
// independently length-prefixed), so recursion here stands in for the
// explicit stack a length-prefixed format would otherwise need only for
// that one case.
const maxDescribedDepth = 64

// Decoder turns a byte stream into a sequence of complete AMQP values,
// tolerating arbitrary chunking of the input (spec.md P9: the sequence of
// values produced is independent of how Write's argument is split). Once
// any documented error condition is observed the decoder is poisoned and
// every subsequent Write returns the same error (spec.md §4.1, §7.5).
type Decoder struct {
	// OnValue is invoked once for every complete top-level value decoded
	// from the stream, in order. It must not be nil before the first
	// Write.
	OnValue func(Value) error

	// MaxSize bounds the encoded byte length of a single top-level value.
	// Zero means unbounded.
	MaxSize int

	buf      []byte
	poisoned error
}

// Poisoned reports the error that disabled the decoder, or nil.
func (d *Decoder) Poisoned() error { return d.poisoned }

func (d *Decoder) poison(err error) error {
	if d.poisoned == nil {
		d.poisoned = err
	}
	return d.poisoned
}

// Write feeds more wire bytes to the decoder. It returns len(p) and nil on
// success even when p ends mid-value; the partial tail is buffered for the
// next call. A non-nil error poisons the decoder permanently.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.poisoned != nil {
		return 0, d.poisoned
	}
	d.buf = append(d.buf, p...)

	for len(d.buf) > 0 {
		n, complete, err := scanValue(d.buf, 0)
		if err != nil {
			return len(p), d.poison(err)
		}
		if !complete {
			break
		}
		if d.MaxSize > 0 && n > d.MaxSize {
			return len(p), d.poison(errs.New(errs.DecoderPoisoned,
				"amqpvalue: value of %d bytes exceeds budget %d", n, d.MaxSize))
		}
		v, consumed, err := buildValue(d.buf[:n], 0)
		if err != nil {
			return len(p), d.poison(err)
		}
		if consumed != n {
			return len(p), d.poison(errs.New(errs.DecoderPoisoned,
				"amqpvalue: internal inconsistency: scan=%d build=%d", n, consumed))
		}
		d.buf = d.buf[n:]
		if d.OnValue != nil {
			if err := d.OnValue(v); err != nil {
				return len(p), d.poison(err)
			}
		}
	}
	return len(p), nil
}

// DecodeValue parses exactly one complete value from b and reports how many
// bytes it consumed. It does not poison any state; callers needing the
// streaming/poisoning behavior should use Decoder.
func DecodeValue(b []byte) (Value, int, error) {
	n, complete, err := scanValue(b, 0)
	if err != nil {
		return Value{}, 0, err
	}
	if !complete {
		return Value{}, 0, errs.New(errs.ArgRange, "amqpvalue: truncated value")
	}
	return buildValue(b[:n], 0)
}

// scanValue reports the total byte length of the value beginning at buf[0],
// or complete=false when buf does not yet hold the whole value.
func scanValue(buf []byte, depth int) (n int, complete bool, err error) {
	if len(buf) == 0 {
		return 0, false, nil
	}
	ctor := buf[0]
	switch ctor {
	case ctorNull, ctorBoolTrue, ctorBoolFalse, ctorUint0, ctorUlong0, ctorList0:
		return 1, true, nil
	case ctorUbyte, ctorByte, ctorSmallUint, ctorSmallUlong, ctorSmallInt, ctorSmallLong, ctorBool:
		return need(buf, 2)
	case ctorUshort, ctorShort:
		return need(buf, 3)
	case ctorUint, ctorInt, ctorFloat, ctorChar:
		return need(buf, 5)
	case ctorUlong, ctorLong, ctorDouble, ctorTimestamp:
		return need(buf, 9)
	case ctorUUID:
		return need(buf, 17)
	case ctorVbin8, ctorStr8, ctorSym8:
		if len(buf) < 2 {
			return 0, false, nil
		}
		return need(buf, 2+int(buf[1]))
	case ctorVbin32, ctorStr32, ctorSym32:
		if len(buf) < 5 {
			return 0, false, nil
		}
		size := binary.BigEndian.Uint32(buf[1:5])
		return need(buf, 5+int(size))
	case ctorList8, ctorMap8, ctorArray8:
		if len(buf) < 2 {
			return 0, false, nil
		}
		return need(buf, 2+int(buf[1]))
	case ctorList32, ctorMap32, ctorArray32:
		if len(buf) < 5 {
			return 0, false, nil
		}
		size := binary.BigEndian.Uint32(buf[1:5])
		return need(buf, 5+int(size))
	case ctorDescribed:
		if depth >= maxDescribedDepth {
			return 0, false, errs.New(errs.DecoderPoisoned, "amqpvalue: described value nesting exceeds %d", maxDescribedDepth)
		}
		descN, ok, err := scanValue(buf[1:], depth+1)
		if err != nil || !ok {
			return 0, ok, err
		}
		bodyN, ok, err := scanValue(buf[1+descN:], depth+1)
		if err != nil || !ok {
			return 0, ok, err
		}
		return 1 + descN + bodyN, true, nil
	default:
		return 0, false, errs.New(errs.DecoderPoisoned, "amqpvalue: unknown constructor 0x%02x", ctor)
	}
}

func need(buf []byte, total int) (int, bool, error) {
	if len(buf) < total {
		return 0, false, nil
	}
	return total, true, nil
}

// buildValue parses the complete value occupying buf (len(buf) must equal
// the length scanValue reported) and returns it along with the number of
// bytes consumed, which always equals len(buf) on success.
func buildValue(buf []byte, depth int) (Value, int, error) {
	ctor := buf[0]
	switch ctor {
	case ctorNull:
		return Value{kind: KindNull}, 1, nil
	case ctorBoolTrue:
		return Bool(true), 1, nil
	case ctorBoolFalse:
		return Bool(false), 1, nil
	case ctorBool:
		switch buf[1] {
		case 0:
			return Bool(false), 2, nil
		case 1:
			return Bool(true), 2, nil
		default:
			return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: invalid bool payload 0x%02x", buf[1])
		}
	case ctorUbyte:
		return Ubyte(buf[1]), 2, nil
	case ctorByte:
		return Byte(int8(buf[1])), 2, nil
	case ctorUint0:
		return Uint(0), 1, nil
	case ctorSmallUint:
		return Uint(uint32(buf[1])), 2, nil
	case ctorUlong0:
		return Ulong(0), 1, nil
	case ctorSmallUlong:
		return Ulong(uint64(buf[1])), 2, nil
	case ctorSmallInt:
		return Int(int32(int8(buf[1]))), 2, nil
	case ctorSmallLong:
		return Long(int64(int8(buf[1]))), 2, nil
	case ctorUshort:
		return Ushort(binary.BigEndian.Uint16(buf[1:3])), 3, nil
	case ctorShort:
		return Short(int16(binary.BigEndian.Uint16(buf[1:3]))), 3, nil
	case ctorUint:
		return Uint(binary.BigEndian.Uint32(buf[1:5])), 5, nil
	case ctorInt:
		return Int(int32(binary.BigEndian.Uint32(buf[1:5]))), 5, nil
	case ctorFloat:
		bits := binary.BigEndian.Uint32(buf[1:5])
		return Float32(float32FromBits(bits)), 5, nil
	case ctorChar:
		cp := binary.BigEndian.Uint32(buf[1:5])
		v, ok := Char(rune(cp))
		if !ok {
			return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: char code point 0x%x out of range", cp)
		}
		return v, 5, nil
	case ctorUlong:
		return Ulong(binary.BigEndian.Uint64(buf[1:9])), 9, nil
	case ctorLong:
		return Long(int64(binary.BigEndian.Uint64(buf[1:9]))), 9, nil
	case ctorDouble:
		bits := binary.BigEndian.Uint64(buf[1:9])
		return Float64(float64FromBits(bits)), 9, nil
	case ctorTimestamp:
		return Timestamp(int64(binary.BigEndian.Uint64(buf[1:9]))), 9, nil
	case ctorUUID:
		var id [16]byte
		copy(id[:], buf[1:17])
		return UUID(id), 17, nil
	case ctorVbin8:
		n := int(buf[1])
		return Binary(buf[2 : 2+n]), 2 + n, nil
	case ctorVbin32:
		n := int(binary.BigEndian.Uint32(buf[1:5]))
		return Binary(buf[5 : 5+n]), 5 + n, nil
	case ctorStr8, ctorStr32:
		return buildOctetString(buf, ctor == ctorStr32, false)
	case ctorSym8, ctorSym32:
		return buildOctetString(buf, ctor == ctorSym32, true)
	case ctorList0:
		return ListOf(), 1, nil
	case ctorList8, ctorList32:
		return buildList(buf, ctor == ctorList32, depth)
	case ctorMap8, ctorMap32:
		return buildMap(buf, ctor == ctorMap32, depth)
	case ctorArray8, ctorArray32:
		return buildArray(buf, ctor == ctorArray32, depth)
	case ctorDescribed:
		if depth >= maxDescribedDepth {
			return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: described value nesting exceeds %d", maxDescribedDepth)
		}
		descN, _, err := scanValue(buf[1:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		desc, _, err := buildValue(buf[1:1+descN], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		rest := buf[1+descN:]
		bodyN, _, err := scanValue(rest, depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		body, _, err := buildValue(rest[:bodyN], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		return Described(desc, body), 1 + descN + bodyN, nil
	default:
		return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: unknown constructor 0x%02x", ctor)
	}
}

func buildOctetString(buf []byte, wide, symbol bool) (Value, int, error) {
	var data []byte
	var total int
	if wide {
		n := int(binary.BigEndian.Uint32(buf[1:5]))
		data, total = buf[5:5+n], 5+n
	} else {
		n := int(buf[1])
		data, total = buf[2:2+n], 2+n
	}
	if symbol {
		v, ok := Symbol(string(data))
		if !ok {
			return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: symbol contains non-ASCII byte")
		}
		return v, total, nil
	}
	if !utf8.Valid(data) {
		return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: string is not valid UTF-8")
	}
	v, _ := String(string(data))
	return v, total, nil
}

// compoundHeader splits a list/map/array header into its size field, count
// field and the remaining body bytes.
func compoundHeader(buf []byte, wide bool) (count int, body []byte, headerLen int) {
	if wide {
		count = int(binary.BigEndian.Uint32(buf[5:9]))
		return count, buf[9:], 9
	}
	count = int(buf[2])
	return count, buf[3:], 3
}

func buildList(buf []byte, wide bool, depth int) (Value, int, error) {
	total := len(buf)
	count, body, _ := compoundHeader(buf, wide)
	items := make([]Value, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		n, _, err := scanValue(body[off:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		v, _, err := buildValue(body[off:off+n], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		items = append(items, v)
		off += n
	}
	return ListOf(items...), total, nil
}

func buildArray(buf []byte, wide bool, depth int) (Value, int, error) {
	total := len(buf)
	count, body, _ := compoundHeader(buf, wide)
	if len(body) == 0 {
		return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: array missing element constructor")
	}
	elemKind, elemWidth, err := peekArrayElemKind(body[0])
	if err != nil {
		return Value{}, 0, err
	}
	items := make([]Value, 0, count)
	off := 1
	for i := 0; i < count; i++ {
		n, err := elemWidth(body[off:])
		if err != nil {
			return Value{}, 0, err
		}
		elemBuf := append([]byte{body[0]}, body[off:off+n]...)
		v, _, err := buildValue(elemBuf, depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		items = append(items, v)
		off += n
	}
	arr := Array(elemKind)
	arr.list = items
	return arr, total, nil
}

// peekArrayElemKind maps an array's shared element constructor byte to the
// Kind it produces and a function reporting how many payload bytes (after
// the constructor) one element occupies.
func peekArrayElemKind(ctor byte) (Kind, func([]byte) (int, error), error) {
	fixed := func(n int) func([]byte) (int, error) {
		return func(b []byte) (int, error) {
			if len(b) < n {
				return 0, errs.New(errs.DecoderPoisoned, "amqpvalue: truncated array element")
			}
			return n, nil
		}
	}
	variable := func(wide bool) func([]byte) (int, error) {
		return func(b []byte) (int, error) {
			if wide {
				if len(b) < 4 {
					return 0, errs.New(errs.DecoderPoisoned, "amqpvalue: truncated array element size")
				}
				return 4 + int(binary.BigEndian.Uint32(b[:4])), nil
			}
			if len(b) < 1 {
				return 0, errs.New(errs.DecoderPoisoned, "amqpvalue: truncated array element size")
			}
			return 1 + int(b[0]), nil
		}
	}
	switch ctor {
	case ctorNull:
		return KindNull, fixed(0), nil
	case ctorBool:
		return KindBool, fixed(1), nil
	case ctorUbyte:
		return KindUbyte, fixed(1), nil
	case ctorByte:
		return KindByte, fixed(1), nil
	case ctorUshort:
		return KindUshort, fixed(2), nil
	case ctorShort:
		return KindShort, fixed(2), nil
	case ctorSmallUint:
		return KindUint, fixed(1), nil
	case ctorUint:
		return KindUint, fixed(4), nil
	case ctorSmallUlong:
		return KindUlong, fixed(1), nil
	case ctorUlong:
		return KindUlong, fixed(8), nil
	case ctorSmallInt:
		return KindInt, fixed(1), nil
	case ctorInt:
		return KindInt, fixed(4), nil
	case ctorSmallLong:
		return KindLong, fixed(1), nil
	case ctorLong:
		return KindLong, fixed(8), nil
	case ctorFloat:
		return KindFloat, fixed(4), nil
	case ctorDouble:
		return KindDouble, fixed(8), nil
	case ctorChar:
		return KindChar, fixed(4), nil
	case ctorTimestamp:
		return KindTimestamp, fixed(8), nil
	case ctorUUID:
		return KindUUID, fixed(16), nil
	case ctorVbin8:
		return KindBinary, variable(false), nil
	case ctorVbin32:
		return KindBinary, variable(true), nil
	case ctorStr8:
		return KindString, variable(false), nil
	case ctorStr32:
		return KindString, variable(true), nil
	case ctorSym8:
		return KindSymbol, variable(false), nil
	case ctorSym32:
		return KindSymbol, variable(true), nil
	default:
		return 0, nil, errs.New(errs.DecoderPoisoned, "amqpvalue: unsupported array element constructor 0x%02x", ctor)
	}
}

func buildMap(buf []byte, wide bool, depth int) (Value, int, error) {
	total := len(buf)
	count, body, _ := compoundHeader(buf, wide)
	if count%2 != 0 {
		return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: map has odd element count %d", count)
	}
	m := Map()
	off := 0
	for i := 0; i < count/2; i++ {
		kn, _, err := scanValue(body[off:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		key, _, err := buildValue(body[off:off+kn], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		off += kn
		vn, _, err := scanValue(body[off:], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		val, _, err := buildValue(body[off:off+vn], depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		off += vn
		for _, p := range m.pairs {
			if Equal(p.Key, key) {
				return Value{}, 0, errs.New(errs.DecoderPoisoned, "amqpvalue: duplicate map key")
			}
		}
		m.pairs = append(m.pairs, Pair{Key: key, Value: val})
	}
	return m, total, nil
}
