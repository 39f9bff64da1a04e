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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharRejectsOutOfRange(t *testing.T) {
	_, ok := Char(0x10FFFF)
	assert.True(t, ok)

	_, ok = Char(0x110000)
	assert.False(t, ok, "code points above 0x10FFFF must be rejected")
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	_, ok := String(string([]byte{0xff, 0xfe}))
	assert.False(t, ok)

	v, ok := String("hello")
	require.True(t, ok)
	s, ok := v.String()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestSymbolRejectsNonASCII(t *testing.T) {
	_, ok := Symbol("café")
	assert.False(t, ok)

	v, ok := Symbol("amqp:accepted")
	require.True(t, ok)
	s, _ := v.Symbol()
	assert.Equal(t, "amqp:accepted", s)
}

// TestEqualTagSensitive covers invariant (f): equal numeric payloads with
// different tags are never equal.
func TestEqualTagSensitive(t *testing.T) {
	assert.False(t, Equal(Uint(5), Ulong(5)))
	assert.False(t, Equal(Int(5), Long(5)))
	assert.True(t, Equal(Uint(5), Uint(5)))
}

// TestEqualMapOrderSensitive covers invariant P4.
func TestEqualMapOrderSensitive(t *testing.T) {
	a, _ := String("a")
	b, _ := String("b")
	one := Uint(1)
	two := Uint(2)

	m1 := Map()
	m1.SetMapValue(a, one)
	m1.SetMapValue(b, two)

	m2 := Map()
	m2.SetMapValue(b, two)
	m2.SetMapValue(a, one)

	assert.False(t, Equal(m1, m2), "maps with the same pairs in different insertion order must differ")

	m3 := Map()
	m3.SetMapValue(a, one)
	m3.SetMapValue(b, two)
	assert.True(t, Equal(m1, m3))
}

func TestSetMapValueOverwritesInPlace(t *testing.T) {
	a, _ := String("a")
	b, _ := String("b")
	m := Map()
	m.SetMapValue(a, Uint(1))
	m.SetMapValue(b, Uint(2))
	m.SetMapValue(a, Uint(99))

	require.Equal(t, 2, m.MapLen())
	p0, _ := m.MapPair(0)
	n, _ := p0.Value.Uint()
	assert.Equal(t, uint32(99), n, "overwrite must keep original position")
}

func TestSetListItemGrowsWithNull(t *testing.T) {
	l := List()
	l.SetListItem(2, Uint(7))
	require.Equal(t, 3, l.ListLen())

	item0, _ := l.ListItem(0)
	assert.True(t, item0.IsNull())
	item1, _ := l.ListItem(1)
	assert.True(t, item1.IsNull())
	item2, _ := l.ListItem(2)
	n, _ := item2.Uint()
	assert.Equal(t, uint32(7), n)
}

func TestCloneIsIndependent(t *testing.T) {
	l := ListOf(Uint(1), Uint(2))
	clone := l.Clone()
	clone.SetListItem(0, Uint(99))

	orig0, _ := l.ListItem(0)
	n, _ := orig0.Uint()
	assert.Equal(t, uint32(1), n, "mutating a clone must not affect the original")
}

func TestArrayRejectsElementKindMismatch(t *testing.T) {
	arr := Array(KindUint)
	ok := arr.AppendListItem(Uint(1))
	assert.True(t, ok)
	ok = arr.AppendListItem(Ulong(2))
	assert.False(t, ok, "array elements must share the declared kind")
}
