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

package translate

import "github.com/wasmdwarf/wasmdwarf/internal/addrmap"

// Transform is the translator used when the code section was reordered,
// trimmed, or relocated: it is backed by an addrmap.Index built from the
// decoded address-remapping table and the post-transform function ranges.
type Transform struct {
	index *addrmap.Index
}

var _ Translator = (*Transform)(nil)

// NewTransform wraps idx as a Translator.
func NewTransform(idx *addrmap.Index) *Transform {
	return &Transform{index: idx}
}

func (t *Transform) TranslateAddress(original uint64) []Address {
	if original == 0 {
		return nil
	}

	targets := t.index.LookupAddress(addrmap.OriginalAddress(original))
	if len(targets) == 0 {
		return nil
	}

	out := make([]Address, len(targets))
	for i, tgt := range targets {
		out[i] = NewConstant(uint64(tgt))
	}
	return out
}

func (t *Transform) TranslateRange(original uint64, length uint64) []Range {
	if original == 0 {
		return nil
	}

	intervals := t.index.LookupRange(addrmap.OriginalAddress(original), addrmap.OriginalAddress(original+length))
	if len(intervals) == 0 {
		return nil
	}

	// merge adjacent intervals (end of current == start of next)
	merged := make([]addrmap.TargetInterval, 0, len(intervals))
	current := intervals[0]
	for _, next := range intervals[1:] {
		if current.End == next.Start {
			current.End = next.End
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	out := make([]Range, len(merged))
	for i, iv := range merged {
		out[i] = Range{Addr: NewConstant(uint64(iv.Start)), Length: uint64(iv.End - iv.Start)}
	}
	return out
}

func (t *Transform) TranslateFunctionRange(original uint64, length uint64) (Range, bool) {
	var addrs []addrmap.OriginalAddress
	if length == 0 {
		addrs = []addrmap.OriginalAddress{addrmap.OriginalAddress(original)}
	} else {
		addrs = []addrmap.OriginalAddress{
			addrmap.OriginalAddress(original),
			addrmap.OriginalAddress(original + length - 1),
		}
	}

	fr, ok := t.index.LookupFunctionRange(addrs)
	if !ok {
		return Range{}, false
	}
	return Range{Addr: NewConstant(uint64(fr.Begin)), Length: uint64(fr.End - fr.Begin)}, true
}
