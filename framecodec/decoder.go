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

package framecodec

import (
	"github.com/packetd/amqp10/errs"
)

// Decoder turns a byte stream into a sequence of Frames, carrying a
// partially-received frame's bytes across Write calls the way
// protocol/pamqp's channel decoder carries partial AMQP 0-9-1 frames: a
// pending byte tail plus a "bytes still lacking" counter, rather than
// requiring the whole frame to arrive in one Write.
type Decoder struct {
	// OnFrame is invoked once per complete frame, in arrival order.
	OnFrame func(Frame) error

	// MaxFrameSize bounds a single frame's declared Size. Zero means
	// unbounded; connection.go sets this once negotiated.
	MaxFrameSize uint32

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

// Write feeds more transport bytes to the decoder.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.poisoned != nil {
		return 0, d.poisoned
	}
	d.buf = append(d.buf, p...)

	for {
		if len(d.buf) < HeaderLength {
			break
		}
		size, doff, typ, typeSpecific, err := ParseHeader(d.buf)
		if err != nil {
			return len(p), d.poison(err)
		}
		if d.MaxFrameSize > 0 && size > d.MaxFrameSize {
			return len(p), d.poison(errs.Protocol(errs.CondFrameSizeTooSm,
				"framecodec: frame of size declares larger than negotiated max"))
		}
		if uint32(len(d.buf)) < size {
			break // wait for the rest of the frame
		}

		extHeaderLen := int(doff)*4 - HeaderLength
		frame := Frame{
			Size:      size,
			DOFF:      doff,
			Type:      typ,
			Channel:   typeSpecific,
			ExtHeader: d.buf[HeaderLength : HeaderLength+extHeaderLen],
			Body:      d.buf[int(doff)*4 : size],
		}
		d.buf = d.buf[size:]

		if d.OnFrame != nil {
			if err := d.OnFrame(frame); err != nil {
				return len(p), d.poison(err)
			}
		}
	}
	return len(p), nil
}
