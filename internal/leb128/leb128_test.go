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

package leb128_test

import (
	"testing"

	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
	"github.com/wasmdwarf/wasmdwarf/test"
)

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0x7f, 0x80, 0x81, 624485, 1 << 35, ^uint64(0)}
	for _, v := range values {
		enc := leb128.EncodeULEB128(nil, v)
		got, n := leb128.DecodeULEB128(enc)
		test.ExpectEquality(t, got, v)
		test.ExpectEquality(t, n, len(enc))
	}
}

func TestSLEB128RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 64, -65, 624485, -624485}
	for _, v := range values {
		enc := leb128.EncodeSLEB128(nil, v)
		got, n := leb128.DecodeSLEB128(enc)
		test.ExpectEquality(t, got, v)
		test.ExpectEquality(t, n, len(enc))
	}
}

func TestULEB128KnownEncoding(t *testing.T) {
	// 624485 from figure 46 of the DWARF4 standard
	test.ExpectEquality(t, leb128.EncodeULEB128(nil, 624485), []uint8{0xe5, 0x8e, 0x26})
}

func TestSLEB128KnownEncoding(t *testing.T) {
	// -624485 from figure 47 of the DWARF4 standard
	test.ExpectEquality(t, leb128.EncodeSLEB128(nil, -624485), []uint8{0x9b, 0xf1, 0x59})
}
