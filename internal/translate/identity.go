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

// Identity is the no-op translator used when no address-remapping table was
// supplied: the code section did not move. FilterZero controls whether
// address (and range-start) 0 is treated as a sentinel for "no address" -
// WebAssembly DWARF generators commonly emit 0 for undefined locations, so
// a caller that wants genuine zero addresses preserved must set FilterZero
// to false.
type Identity struct {
	FilterZero bool
}

var _ Translator = Identity{}

func (id Identity) TranslateAddress(original uint64) []Address {
	if original == 0 && id.FilterZero {
		return nil
	}
	return []Address{NewConstant(original)}
}

func (id Identity) TranslateRange(original uint64, length uint64) []Range {
	if original == 0 && id.FilterZero {
		return nil
	}
	return []Range{{Addr: NewConstant(original), Length: length}}
}

func (id Identity) TranslateFunctionRange(original uint64, length uint64) (Range, bool) {
	if original == 0 && id.FilterZero {
		return Range{}, false
	}
	return Range{Addr: NewConstant(original), Length: length}, true
}
