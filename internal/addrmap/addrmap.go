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

// Package addrmap builds and queries the piecewise-monotonic mapping from
// original (pre-transform) code offsets to target (post-transform) code
// offsets. The mapping arrives as a stream of keypoints in target order, as
// produced by a source-map-like VLQ stream: original-order jumps within that
// stream delimit the semantic functions of the reordered code section.
package addrmap

import "fmt"

// OriginalAddress is a byte offset into the original (pre-transform) code
// section. It is a distinct type from TargetAddress so the two cannot be
// mixed up by accident; converting between them always goes through the
// address translator.
type OriginalAddress uint64

// TargetAddress is a byte offset into the target (post-transform) code
// section.
type TargetAddress uint64

// keypoint asserts that the instruction boundary at Original is now at
// Target.
type keypoint struct {
	Original OriginalAddress
	Target   TargetAddress
}

// monotonicRange is a maximal run of keypoints whose Original and Target
// coordinates are both non-decreasing. last is the target address that
// covers the tail of the range, beyond its final keypoint.
type monotonicRange struct {
	keypoints []keypoint
	last      TargetAddress
}

func (r *monotonicRange) first() OriginalAddress {
	return r.keypoints[0].Original
}

func (r *monotonicRange) lastOriginal() OriginalAddress {
	return r.keypoints[len(r.keypoints)-1].Original
}

// AddressMap is an ordered sequence of monotonicRanges, built by streaming
// Insert() calls in target order.
type AddressMap struct {
	ranges []monotonicRange
}

// New creates an empty AddressMap.
func New() *AddressMap {
	return &AddressMap{}
}

// Insert records that the instruction at original is now at target. Calls
// must be made in non-decreasing target order; that invariant is assumed,
// not checked, because it comes for free from the source-map stream the
// caller is decoding.
//
// If no range is currently open, a new one is started holding just this
// keypoint. Otherwise, if original does not precede the range's most
// recently inserted original address, the keypoint extends the open range.
// Otherwise the open range is closed (leaving its last field as is, the
// target address reached by its own final keypoint) and a new range is
// started with this keypoint. No sorting happens here: the segmentation on
// non-monotonic jumps is the whole point, since it is how semantic function
// boundaries survive reordering.
func (m *AddressMap) Insert(target TargetAddress, original OriginalAddress) {
	if len(m.ranges) == 0 {
		m.startRange(target, original)
		return
	}

	open := &m.ranges[len(m.ranges)-1]
	if open.lastOriginal() <= original {
		open.keypoints = append(open.keypoints, keypoint{Original: original, Target: target})
		open.last = target
		return
	}

	m.startRange(target, original)
}

func (m *AddressMap) startRange(target TargetAddress, original OriginalAddress) {
	m.ranges = append(m.ranges, monotonicRange{
		keypoints: []keypoint{{Original: original, Target: target}},
		last:      target,
	})
}

// NumRanges returns the number of MonotonicRanges currently in the map.
// Exposed mainly for tests and for the AddressMapIndex construction.
func (m *AddressMap) NumRanges() int {
	return len(m.ranges)
}

func (m *AddressMap) String() string {
	return fmt.Sprintf("addrmap.AddressMap{%d ranges}", len(m.ranges))
}
