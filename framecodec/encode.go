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
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/amqp10/errs"
)

// EncodeFrame writes one complete frame to w: the 8-byte header, extHeader,
// then body. extHeader is written verbatim and is not padded: one whose
// length is not a multiple of 4 bytes is rejected with ArgRange.
func EncodeFrame(w io.Writer, typ uint8, typeSpecific uint16, extHeader, body []byte) error {
	if len(extHeader)%4 != 0 {
		return errs.New(errs.ArgRange, "framecodec: extHeader must be 4-byte aligned, got %d bytes", len(extHeader))
	}
	doff := MinDOFF + len(extHeader)/4
	size := uint32(HeaderLength + len(extHeader) + len(body))

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], size)
	hdr[4] = byte(doff)
	hdr[5] = typ
	binary.BigEndian.PutUint16(hdr[6:8], typeSpecific)

	buf.B = append(buf.B[:0], hdr[:]...)
	buf.B = append(buf.B, extHeader...)
	buf.B = append(buf.B, body...)

	if _, err := w.Write(buf.B); err != nil {
		return errs.Wrap(errs.TransportError, err, "framecodec: write frame")
	}
	return nil
}

// EncodeHeartbeat writes the empty AMQP frame used as a keep-alive
// (AMQP §2.4.4): an 8-byte frame with no extended header and no body.
func EncodeHeartbeat(w io.Writer) error {
	return EncodeFrame(w, TypeAMQP, 0, nil, nil)
}
