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

package sasl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMechanism struct{ name string }

func (s *stubMechanism) Name() string                             { return s.name }
func (s *stubMechanism) InitBytes() []byte                        { return nil }
func (s *stubMechanism) Challenge(challenge []byte) ([]byte, error) { return nil, nil }

func TestRegisterAndLookup(t *testing.T) {
	Register("ANONYMOUS-TEST", func() Mechanism { return &stubMechanism{name: "ANONYMOUS-TEST"} })

	m, ok := Lookup("ANONYMOUS-TEST")
	require.True(t, ok)
	assert.Equal(t, "ANONYMOUS-TEST", m.Name())
}

func TestLookupUnknownMechanism(t *testing.T) {
	_, ok := Lookup("NOT-REGISTERED")
	assert.False(t, ok)
}
