// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package addrmap

import "sort"

// rangeSet is an ordered map from OriginalAddress to a list of
// monotonicRange indices, kept as parallel sorted slices. It backs both the
// transient "active" set used by the sweep in buildSweep and the final
// immutable index. Batch sizes here are bounded by the number of monotonic
// ranges in a module's debug info, so a sorted slice with binary-searched
// access is a good match for the access pattern (built once by a single
// sweep, then queried read-only many times).
type rangeSet struct {
	keys []OriginalAddress
	vals [][]int
}

// search returns the index of key in ks, and whether it was found exactly.
// When not found, the index is the position key would be inserted at to
// keep ks sorted.
func search(keys []OriginalAddress, key OriginalAddress) (int, bool) {
	i := sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
	if i < len(keys) && keys[i] == key {
		return i, true
	}
	return i, false
}

func (s *rangeSet) get(key OriginalAddress) ([]int, bool) {
	i, ok := search(s.keys, key)
	if !ok {
		return nil, false
	}
	return s.vals[i], true
}

// set inserts or overwrites the list stored at key.
func (s *rangeSet) set(key OriginalAddress, val []int) {
	i, ok := search(s.keys, key)
	if ok {
		s.vals[i] = val
		return
	}
	s.keys = append(s.keys, 0)
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key

	s.vals = append(s.vals, nil)
	copy(s.vals[i+1:], s.vals[i:])
	s.vals[i] = val
}

// appendRange adds idx to the list stored at every key in [first, last].
func (s *rangeSet) appendRange(first, last OriginalAddress, idx int) {
	i, _ := search(s.keys, first)
	for ; i < len(s.keys) && s.keys[i] <= last; i++ {
		s.vals[i] = append(s.vals[i], idx)
	}
}

// floorStrict returns the entry with the greatest key strictly less than
// key, if any.
func (s *rangeSet) floorStrict(key OriginalAddress) ([]int, bool) {
	i, _ := search(s.keys, key)
	if i == 0 {
		return nil, false
	}
	return s.vals[i-1], true
}

// floorEqual returns the entry with the greatest key less than or equal to
// key, if any.
func (s *rangeSet) floorEqual(key OriginalAddress) ([]int, bool) {
	i, ok := s.floorIndex(key)
	if !ok {
		return nil, false
	}
	return s.vals[i], true
}

// floorIndex returns the index of the greatest key less than or equal to
// key, if any.
func (s *rangeSet) floorIndex(key OriginalAddress) (int, bool) {
	i, ok := search(s.keys, key)
	if ok {
		return i, true
	}
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// drainLessThan removes every entry whose key is strictly less than key and
// returns them, in ascending key order.
func (s *rangeSet) drainLessThan(key OriginalAddress) ([]OriginalAddress, [][]int) {
	i, _ := search(s.keys, key)
	if i == 0 {
		return nil, nil
	}

	dk := append([]OriginalAddress(nil), s.keys[:i]...)
	dv := append([][]int(nil), s.vals[:i]...)

	s.keys = s.keys[i:]
	s.vals = s.vals[i:]

	return dk, dv
}

func cloneInts(v []int) []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v))
	copy(out, v)
	return out
}
