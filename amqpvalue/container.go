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

// ListLen reports the number of elements in a list or array value, or 0
// for any other kind.
func (v Value) ListLen() int {
	if v.kind != KindList && v.kind != KindArray {
		return 0
	}
	return len(v.list)
}

// ListItem returns the element at index i of a list or array value.
func (v Value) ListItem(i int) (item Value, ok bool) {
	if (v.kind != KindList && v.kind != KindArray) || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// SetListItem sets the element at index i of a list or array value,
// growing the backing vector with null elements (list) to reach i when
// necessary, mirroring the reference implementation's fill-with-null
// growth. For array values item's kind must equal the array's declared
// element kind; a mismatch returns ok=false and leaves v unchanged.
func (v *Value) SetListItem(i int, item Value) (ok bool) {
	if v.kind != KindList && v.kind != KindArray {
		return false
	}
	if i < 0 {
		return false
	}
	if v.kind == KindArray {
		if elemKind, _ := v.ArrayElemKind(); item.kind != elemKind {
			return false
		}
	}
	for len(v.list) <= i {
		v.list = append(v.list, Value{kind: KindNull})
	}
	v.list[i] = item
	return true
}

// AppendListItem appends item to a list or array value. For arrays, item's
// kind must equal the array's declared element kind.
func (v *Value) AppendListItem(item Value) (ok bool) {
	if v.kind != KindList && v.kind != KindArray {
		return false
	}
	if v.kind == KindArray {
		if elemKind, _ := v.ArrayElemKind(); item.kind != elemKind {
			return false
		}
	}
	v.list = append(v.list, item)
	return true
}

// MapLen reports the number of key/value pairs in a map value, or 0 for
// any other kind.
func (v Value) MapLen() int {
	if v.kind != KindMap {
		return 0
	}
	return len(v.pairs)
}

// MapPair returns the i'th key/value pair of a map value in insertion
// order.
func (v Value) MapPair(i int) (p Pair, ok bool) {
	if v.kind != KindMap || i < 0 || i >= len(v.pairs) {
		return Pair{}, false
	}
	return v.pairs[i], true
}

// MapValue looks up key by Equal comparison and returns its associated
// value, in first-match order.
func (v Value) MapValue(key Value) (val Value, ok bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, p := range v.pairs {
		if Equal(p.Key, key) {
			return p.Value, true
		}
	}
	return Value{}, false
}

// SetMapValue sets key's associated value. An existing pair with an equal
// key (by Equal) has its value overwritten in place, preserving its
// original position; otherwise the pair is appended at the end. Map
// ordering is significant (AMQP §1.6.23) so overwriting never reorders.
func (v *Value) SetMapValue(key, val Value) (ok bool) {
	if v.kind != KindMap {
		return false
	}
	for i := range v.pairs {
		if Equal(v.pairs[i].Key, key) {
			v.pairs[i].Value = val
			return true
		}
	}
	v.pairs = append(v.pairs, Pair{Key: key, Value: val})
	return true
}
