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

// Package framecodec implements the AMQP 1.0 frame layer (spec.md §5): the
// 8-byte frame header shared by every frame type, streaming decode that
// tolerates arbitrary chunking of the underlying transport, and an encoder
// that packs a type-specific extended header and body into one frame.
package framecodec

import (
	"encoding/binary"

	"github.com/packetd/amqp10/errs"
)

const (
	// HeaderLength is the fixed size of the frame header proper: SIZE (4),
	// DOFF (1), TYPE (1), TYPE-SPECIFIC (2).
	HeaderLength = 8

	// MinDOFF is the smallest legal data offset: the header occupies
	// exactly 2 four-byte words with no extended header.
	MinDOFF = 2

	// DefaultMaxFrameSize is used before a connection negotiates a
	// smaller value (AMQP §2.4.1: the protocol default is unbounded,
	// represented here as the same sentinel connection.go uses).
	DefaultMaxFrameSize = 4294967295

	// MinMaxFrameSize is the smallest max-frame-size a peer may declare
	// (AMQP §2.4.1).
	MinMaxFrameSize = 512
)

// Frame type codes (AMQP §2.3).
const (
	TypeAMQP = 0x00
	TypeSASL = 0x01
)

// Frame is one decoded AMQP frame: the 8-byte header plus whatever
// extended header and body bytes DOFF and SIZE describe. ExtHeader and
// Body alias the decoder's internal buffer and are only valid until the
// next call into the decoder.
type Frame struct {
	Size      uint32
	DOFF      uint8
	Type      uint8
	Channel   uint16 // type-specific field; channel number for TypeAMQP
	ExtHeader []byte
	Body      []byte
}

// IsEmpty reports whether the frame carries no body — an AMQP heartbeat
// (an 8-byte frame with DOFF==2 and no payload) when Type is TypeAMQP.
func (f Frame) IsEmpty() bool { return len(f.Body) == 0 && len(f.ExtHeader) == 0 }

// ParseHeader reads the fixed 8-byte header from b, which must be at least
// HeaderLength bytes. It does not validate DOFF/Size against a max frame
// size; callers needing that enforce it themselves (Decoder checks its
// MaxFrameSize field, which is updated once the connection negotiates a
// value).
func ParseHeader(b []byte) (size uint32, doff, typ uint8, typeSpecific uint16, err error) {
	if len(b) < HeaderLength {
		return 0, 0, 0, 0, errs.New(errs.ArgRange, "framecodec: header requires %d bytes, got %d", HeaderLength, len(b))
	}
	size = binary.BigEndian.Uint32(b[0:4])
	doff = b[4]
	typ = b[5]
	typeSpecific = binary.BigEndian.Uint16(b[6:8])
	if doff < MinDOFF {
		return 0, 0, 0, 0, errs.Protocol(errs.CondInvalidField, "framecodec: doff below minimum")
	}
	if uint32(doff)*4 > size {
		return 0, 0, 0, 0, errs.Protocol(errs.CondInvalidField, "framecodec: doff exceeds frame size")
	}
	return size, doff, typ, typeSpecific, nil
}
