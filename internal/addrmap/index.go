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

// FunctionRange is a half-open [Begin, End) target-address interval
// corresponding to a function that survived the code-section transform.
type FunctionRange struct {
	Begin TargetAddress
	End   TargetAddress
}

func (f FunctionRange) contains(addr TargetAddress) bool {
	return f.Begin <= addr && addr < f.End
}

// Index is a precomputed, immutable view over an AddressMap plus a sorted
// table of target-side function ranges. It answers point, range, and
// enclosing-function lookups in O(log n + k).
type Index struct {
	m             *AddressMap
	byOriginal    rangeSet
	functionRanges []FunctionRange
}

// BuildIndex constructs an Index from m and the supplied (possibly
// unsorted, possibly empty) function ranges.
func BuildIndex(m *AddressMap, functionRanges []FunctionRange) *Index {
	fr := append([]FunctionRange(nil), functionRanges...)
	sort.Slice(fr, func(i, j int) bool { return fr[i].Begin < fr[j].Begin })

	return &Index{
		m:              m,
		byOriginal:     buildSweep(m),
		functionRanges: fr,
	}
}

// buildSweep implements the sweep-line construction of §4.2: ranges are
// visited in order of their first keypoint's original address, and the set
// of ranges "active" at a given original address is recorded every time it
// changes.
func buildSweep(m *AddressMap) rangeSet {
	if len(m.ranges) == 0 {
		return rangeSet{}
	}

	order := make([]int, len(m.ranges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return m.ranges[order[i]].first() < m.ranges[order[j]].first()
	})

	var active rangeSet
	var result rangeSet

	for _, idx := range order {
		r := &m.ranges[idx]
		first := r.first()
		last := r.lastOriginal()

		// publish everything we've swept past
		dk, dv := active.drainLessThan(first)
		for i, k := range dk {
			result.set(k, dv[i])
		}

		if _, ok := active.get(first); !ok {
			seed, _ := active.floorStrict(first)
			active.set(first, cloneInts(seed))
		}
		if _, ok := active.get(last); !ok {
			seed, _ := active.floorStrict(last)
			active.set(last, cloneInts(seed))
		}

		active.appendRange(first, last, idx)
	}

	// flush whatever is still open
	for i, k := range active.keys {
		result.set(k, active.vals[i])
	}

	return result
}

// LookupAddress returns, in range-encounter order, the target addresses
// that original maps to. The returned slice may be empty if original is not
// covered by any range.
func (ix *Index) LookupAddress(original OriginalAddress) []TargetAddress {
	rangeIdx, ok := ix.byOriginal.floorEqual(original)
	if !ok {
		return nil
	}

	out := make([]TargetAddress, 0, len(rangeIdx))
	for _, i := range rangeIdx {
		out = append(out, ix.translateWithinRange(&ix.m.ranges[i], original))
	}
	return out
}

// translateWithinRange implements the shared tie-break policy: an exact
// keypoint hit returns its target; otherwise the keypoint at the insertion
// position is used; past the end of the range, its last target is used.
func (ix *Index) translateWithinRange(r *monotonicRange, original OriginalAddress) TargetAddress {
	i := sort.Search(len(r.keypoints), func(i int) bool { return r.keypoints[i].Original >= original })
	if i < len(r.keypoints) {
		return r.keypoints[i].Target
	}
	return r.last
}

// keypointIndex returns the position of original within r's keypoints using
// the same binary search as translateWithinRange, plus whether it was an
// exact hit.
func keypointIndex(r *monotonicRange, original OriginalAddress) (int, bool) {
	i := sort.Search(len(r.keypoints), func(i int) bool { return r.keypoints[i].Original >= original })
	if i < len(r.keypoints) && r.keypoints[i].Original == original {
		return i, true
	}
	return i, false
}

// TargetInterval is a disjoint half-open interval in the translated address
// space, as produced by LookupRange.
type TargetInterval struct {
	Start TargetAddress
	End   TargetAddress
}

// LookupRange returns the disjoint target-address intervals that [start,
// end) maps to. Degenerate intervals (start >= end after translation) are
// dropped.
func (ix *Index) LookupRange(start, end OriginalAddress) []TargetInterval {
	lo, ok := ix.byOriginal.floorIndex(start)
	if !ok {
		// no floor key: start scanning from the very beginning
		lo = 0
	}

	seen := make(map[int]bool)
	for i := lo; i < len(ix.byOriginal.keys) && ix.byOriginal.keys[i] <= end; i++ {
		for _, r := range ix.byOriginal.vals[i] {
			seen[r] = true
		}
	}

	ordered := make([]int, 0, len(seen))
	for r := range seen {
		ordered = append(ordered, r)
	}
	sort.Ints(ordered)

	out := make([]TargetInterval, 0, len(ordered))
	for _, r := range ordered {
		rng := &ix.m.ranges[r]
		s := ix.translateWithinRange(rng, start)
		e := ix.translateWithinRange(rng, end)
		if s < e {
			out = append(out, TargetInterval{Start: s, End: e})
		}
	}
	return out
}

// lookupFunctionRangeByTarget finds the function range (if any) enclosing
// addr, via binary search over the sorted function-range table.
func (ix *Index) lookupFunctionRangeByTarget(addr TargetAddress) (FunctionRange, bool) {
	i := sort.Search(len(ix.functionRanges), func(i int) bool { return ix.functionRanges[i].Begin >= addr })
	if i < len(ix.functionRanges) && ix.functionRanges[i].Begin == addr {
		return ix.functionRanges[i], true
	}
	if i > 0 && ix.functionRanges[i-1].contains(addr) {
		return ix.functionRanges[i-1], true
	}
	return FunctionRange{}, false
}

// LookupFunctionRange returns the single target-side function range that
// encloses any of the supplied original addresses, preferring the first
// original address that yields a hit. For an inexact keypoint match the
// right-neighbour keypoint's function range is preferred; the left
// neighbour is used when there is no right neighbour or when the right
// neighbour's target lies in no function range.
func (ix *Index) LookupFunctionRange(originals []OriginalAddress) (FunctionRange, bool) {
	for _, addr := range originals {
		rangeIdx, ok := ix.byOriginal.floorEqual(addr)
		if !ok {
			continue
		}

		for _, ri := range rangeIdx {
			r := &ix.m.ranges[ri]
			i, exact := keypointIndex(r, addr)

			if exact {
				if fr, ok := ix.lookupFunctionRangeByTarget(r.keypoints[i].Target); ok {
					return fr, true
				}
				continue
			}

			if i == 0 {
				// no left neighbour; fall back to the next keypoint
				if fr, ok := ix.lookupFunctionRangeByTarget(r.keypoints[i].Target); ok {
					return fr, true
				}
				continue
			}

			leftFr, leftOK := ix.lookupFunctionRangeByTarget(r.keypoints[i-1].Target)
			if i >= len(r.keypoints) {
				if leftOK {
					return leftFr, true
				}
				continue
			}

			if rightFr, ok := ix.lookupFunctionRangeByTarget(r.keypoints[i].Target); ok {
				return rightFr, true
			}
			if leftOK {
				return leftFr, true
			}
		}
	}
	return FunctionRange{}, false
}
