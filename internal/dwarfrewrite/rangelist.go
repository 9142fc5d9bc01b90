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

package dwarfrewrite

import (
	"encoding/binary"

	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// RangeEntry is one emitted piece of a RangeList.
type RangeEntry struct {
	Addr   translate.Address
	Length uint64
}

// RangeList is the converted form of a DW_AT_ranges attribute.
type RangeList []RangeEntry

// LocationPiece is one emitted piece of a LocationList. Expr is copied
// verbatim: addresses named inside the expression bytes are not rewritten
// (a known limitation, carried over unchanged from the format this was
// distilled from).
type LocationPiece struct {
	Addr   translate.Address
	Length uint64
	Expr   []byte
}

// LocationList is the converted form of a location-list attribute.
type LocationList []LocationPiece

// convertRangeList translates each decoded [begin, end) pair independently
// and flattens the translator's output into StartLength entries.
//
// debug/dwarf's Data.Ranges already resolves both the classic .debug_ranges
// encoding and the DWARF 5 .debug_rnglists encoding (including base-address
// and index-based entries) down to plain absolute pairs, so there is no raw
// entry stream to replay here the way a from-scratch DWARF reader would
// need to.
func convertRangeList(ranges [][2]uint64, t translate.Translator) RangeList {
	var out RangeList
	for _, pair := range ranges {
		begin, end := pair[0], pair[1]
		if end < begin {
			continue
		}
		for _, r := range t.TranslateRange(begin, end-begin) {
			out = append(out, RangeEntry{Addr: r.Addr, Length: r.Length})
		}
	}
	return out
}

// legacyLocListEntry is one decoded entry from the classic (DWARF <= 4)
// .debug_loc encoding: a pair of address-size begin/end values followed by
// a 2-byte expression length and the expression bytes, or a base-address
// selection entry (begin set to the address-size all-ones sentinel).
type legacyLocListEntry struct {
	isBaseAddress bool
	begin, end    uint64
	expr          []byte
}

// decodeLegacyLocList parses the classic .debug_loc format starting at byte
// offset off within section, terminated by a (0, 0) pair. DWARF 5's
// .debug_loclists uses a denser LEB128-opcode encoding instead; support for
// it is out of scope here in the same spirit as the rest of this rewriter's
// DWARF 5 non-goals; a location-list attribute pointing into .debug_loclists
// is passed through unresolved (see convertLocationAttr).
func decodeLegacyLocList(section []byte, off int, addrSize int, order binary.ByteOrder) ([]legacyLocListEntry, error) {
	var entries []legacyLocListEntry
	readAddr := func(b []byte) uint64 {
		switch addrSize {
		case 4:
			return uint64(order.Uint32(b))
		default:
			return order.Uint64(b)
		}
	}
	maxAddr := uint64(1)<<(uint(addrSize)*8) - 1

	pos := off
	for {
		if pos+2*addrSize > len(section) {
			return entries, nil
		}
		begin := readAddr(section[pos : pos+addrSize])
		end := readAddr(section[pos+addrSize : pos+2*addrSize])
		pos += 2 * addrSize

		if begin == 0 && end == 0 {
			return entries, nil
		}
		if begin == maxAddr {
			entries = append(entries, legacyLocListEntry{isBaseAddress: true, end: end})
			continue
		}
		if pos+2 > len(section) {
			return entries, nil
		}
		length := int(order.Uint16(section[pos : pos+2]))
		pos += 2
		if pos+length > len(section) {
			return entries, nil
		}
		expr := make([]byte, length)
		copy(expr, section[pos:pos+length])
		pos += length

		entries = append(entries, legacyLocListEntry{begin: begin, end: end, expr: expr})
	}
}

// convertLocationList turns a decoded legacy location-list into translated
// LocationPiece entries, resolving base-address selection entries against
// baseAddress (the unit's low_pc, or 0 if it has none).
func convertLocationList(entries []legacyLocListEntry, baseAddress uint64, t translate.Translator) LocationList {
	var out LocationList
	base := baseAddress
	for _, e := range entries {
		if e.isBaseAddress {
			base = e.end
			continue
		}
		begin, end := base+e.begin, base+e.end
		if end < begin {
			continue
		}
		for _, r := range t.TranslateRange(begin, end-begin) {
			out = append(out, LocationPiece{Addr: r.Addr, Length: r.Length, Expr: e.expr})
		}
	}
	return out
}
