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

// Clone returns a deep copy of v: owned byte slices, list elements and map
// pairs are all independently allocated, so mutating the clone through
// SetListItem/SetMapValue never affects v.
func (v Value) Clone() Value {
	out := v
	if v.bin != nil {
		out.bin = append([]byte(nil), v.bin...)
	}
	if v.list != nil {
		out.list = make([]Value, len(v.list))
		for i, e := range v.list {
			out.list[i] = e.Clone()
		}
	}
	if v.pairs != nil {
		out.pairs = make([]Pair, len(v.pairs))
		for i, p := range v.pairs {
			out.pairs[i] = Pair{Key: p.Key.Clone(), Value: p.Value.Clone()}
		}
	}
	if v.descriptor != nil {
		d := v.descriptor.Clone()
		out.descriptor = &d
	}
	if v.body != nil {
		b := v.body.Clone()
		out.body = &b
	}
	return out
}
