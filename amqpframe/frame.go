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

// Package amqpframe layers the AMQP value codec over frame boundaries: an
// AMQP frame's body is a described-list performative optionally followed
// by an opaque payload (TRANSFER is the only performative that carries
// one), and a SASL frame's body is a single described-list value with no
// payload (spec.md §5, §4.5).
package amqpframe

import (
	"io"

	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/framecodec"
)

// AMQPFrame is one decoded AMQP-type (TYPE==0x00) frame: a performative
// value plus whatever payload bytes followed it on the wire. Payload
// aliases the underlying framecodec.Decoder buffer, matching that
// package's "valid until the next call" rule.
type AMQPFrame struct {
	Channel      uint16
	Performative amqpvalue.Value
	Payload      []byte
}

// SASLFrame is one decoded SASL-type (TYPE==0x01) frame: a single
// described-list performative with no payload (AMQP §5.3).
type SASLFrame struct {
	Performative amqpvalue.Value
}

// Decoder decodes a framecodec byte stream into AMQP and SASL frames, plus
// empty AMQP frames surfaced as heartbeats.
type Decoder struct {
	// OnAMQPFrame is invoked for each non-empty AMQP-type frame.
	OnAMQPFrame func(AMQPFrame) error
	// OnSASLFrame is invoked for each SASL-type frame.
	OnSASLFrame func(SASLFrame) error
	// OnHeartbeat is invoked for each empty AMQP-type frame.
	OnHeartbeat func() error

	frames *framecodec.Decoder
}

// NewDecoder builds a Decoder enforcing maxFrameSize (0 means unbounded;
// connection.go updates this once OPEN negotiates a value).
func NewDecoder(maxFrameSize uint32) *Decoder {
	d := &Decoder{}
	d.frames = &framecodec.Decoder{MaxFrameSize: maxFrameSize, OnFrame: d.onFrame}
	return d
}

// SetMaxFrameSize updates the enforced frame size bound.
func (d *Decoder) SetMaxFrameSize(n uint32) { d.frames.MaxFrameSize = n }

// Write feeds more transport bytes to the decoder.
func (d *Decoder) Write(p []byte) (int, error) { return d.frames.Write(p) }

// Poisoned reports the error that disabled the decoder, or nil.
func (d *Decoder) Poisoned() error { return d.frames.Poisoned() }

func (d *Decoder) onFrame(f framecodec.Frame) error {
	switch f.Type {
	case framecodec.TypeAMQP:
		if f.IsEmpty() {
			if d.OnHeartbeat != nil {
				return d.OnHeartbeat()
			}
			return nil
		}
		perf, n, err := amqpvalue.DecodeValue(f.Body)
		if err != nil {
			return errs.Wrap(errs.ProtocolViolation, err, "amqpframe: decode performative")
		}
		if d.OnAMQPFrame != nil {
			return d.OnAMQPFrame(AMQPFrame{
				Channel:      f.Channel,
				Performative: perf,
				Payload:      f.Body[n:],
			})
		}
		return nil
	case framecodec.TypeSASL:
		perf, _, err := amqpvalue.DecodeValue(f.Body)
		if err != nil {
			return errs.Wrap(errs.ProtocolViolation, err, "amqpframe: decode sasl performative")
		}
		if d.OnSASLFrame != nil {
			return d.OnSASLFrame(SASLFrame{Performative: perf})
		}
		return nil
	default:
		return errs.Protocol(errs.CondInvalidField, "amqpframe: unknown frame type")
	}
}

// EncodeAMQPFrame writes an AMQP-type frame carrying performative and an
// optional payload on channel.
func EncodeAMQPFrame(w io.Writer, channel uint16, performative amqpvalue.Value, payload []byte) error {
	body, err := amqpvalue.EncodedSize(performative)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, body+len(payload))
	buf, err = appendEncoded(buf, performative)
	if err != nil {
		return err
	}
	buf = append(buf, payload...)
	return framecodec.EncodeFrame(w, framecodec.TypeAMQP, channel, nil, buf)
}

// EncodeSASLFrame writes a SASL-type frame carrying performative.
func EncodeSASLFrame(w io.Writer, performative amqpvalue.Value) error {
	buf, err := appendEncoded(nil, performative)
	if err != nil {
		return err
	}
	return framecodec.EncodeFrame(w, framecodec.TypeSASL, 0, nil, buf)
}

func appendEncoded(buf []byte, v amqpvalue.Value) ([]byte, error) {
	bw := &byteSliceWriter{buf: buf}
	if err := amqpvalue.Encode(bw, v); err != nil {
		return nil, err
	}
	return bw.buf, nil
}

// byteSliceWriter adapts a growable []byte to io.Writer without going
// through bytes.Buffer, since amqpframe already owns the slice it wants
// filled.
type byteSliceWriter struct{ buf []byte }

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
