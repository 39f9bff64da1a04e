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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeartbeatIsEightBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeHeartbeat(&buf))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("performative-body")
	require.NoError(t, EncodeFrame(&buf, TypeAMQP, 3, nil, body))

	var got Frame
	dec := &Decoder{OnFrame: func(f Frame) error {
		got = Frame{Size: f.Size, DOFF: f.DOFF, Type: f.Type, Channel: f.Channel,
			Body: append([]byte(nil), f.Body...)}
		return nil
	}}
	_, err := dec.Write(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint8(TypeAMQP), got.Type)
	assert.Equal(t, uint16(3), got.Channel)
	assert.Equal(t, body, got.Body)
}

func TestDecoderHandlesArbitraryChunking(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeFrame(&buf, TypeAMQP, 1, nil, []byte("hello world")))
	data := buf.Bytes()

	var frames []Frame
	dec := &Decoder{OnFrame: func(f Frame) error {
		frames = append(frames, Frame{Body: append([]byte(nil), f.Body...)})
		return nil
	}}
	for _, b := range data {
		_, err := dec.Write([]byte{b})
		require.NoError(t, err)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, "hello world", string(frames[0].Body))
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeFrame(&buf, TypeAMQP, 0, nil, make([]byte, 1024)))

	dec := &Decoder{MaxFrameSize: 512, OnFrame: func(Frame) error { return nil }}
	_, err := dec.Write(buf.Bytes())
	require.Error(t, err)
}

func TestEncodeFrameRejectsUnalignedExtHeader(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeFrame(&buf, TypeAMQP, 0, []byte{1, 2, 3}, nil)
	require.Error(t, err)
}
