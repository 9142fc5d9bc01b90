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
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/wasmdwarf/wasmdwarf/errors"
	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// dwarfVersion is the version this package always emits, regardless of the
// input module's version. Rewriting a DWARF5 input down to DWARF4 output
// sidesteps DWARF5's .debug_str_offsets/.debug_addr indirection layers,
// which buy nothing here since every string and address is already fully
// resolved in memory by the time Encode runs.
const dwarfVersion = 4

// Sections is the full set of section bytes Encode produces.
type Sections struct {
	Info   []byte
	Abbrev []byte
	Str    []byte
	Line   []byte
	Ranges []byte
	Loc    []byte
}

type abbrevAttr struct {
	attr dwarf.Attr
	form byte
}

type abbrevDecl struct {
	tag      dwarf.Tag
	children bool
	attrs    []abbrevAttr
}

// encoder holds the working state of a single Encode call: the abbreviation
// table built once up front, the section buffers being appended to, and the
// offset tables that let later sections (and forward DIE references) point
// back into earlier ones.
type encoder struct {
	dwarf *Dwarf

	abbrevKeyCode map[string]int
	abbrevDecls   []abbrevDecl // index 0 unused

	entryCode  [][]int          // [unit][entry]
	entryAttrs [][][]abbrevAttr // [unit][entry], sibling attr prepended when present

	unitRelOffset    [][]int // [unit][entry], relative to the first byte after the unit header
	subtreeEnd       [][]int // [unit][entry], unitRelOffset of the byte past this entry's subtree
	globalOffset     [][]int // [unit][entry], absolute offset into the Info buffer
	entriesStreamLen []int   // [unit], total bytes of that unit's entry stream

	strOffset          []int
	lineProgramOffset  []int
	rangeListOffset    [][]int
	locationListOffset [][]int

	info, abbrev, str, line, ranges, loc bytes.Buffer
}

// Encode serializes d into DWARF4 section bytes.
func Encode(d *Dwarf) (*Sections, error) {
	e := &encoder{dwarf: d}

	if err := e.buildAbbrevTable(); err != nil {
		return nil, err
	}
	e.encodeStrings()
	if err := e.encodeLinePrograms(); err != nil {
		return nil, err
	}
	e.encodeRangesAndLocations()
	if err := e.layoutInfo(); err != nil {
		return nil, err
	}
	e.encodeAbbrevTable()
	if err := e.encodeInfo(); err != nil {
		return nil, err
	}

	return &Sections{
		Info:   e.info.Bytes(),
		Abbrev: e.abbrev.Bytes(),
		Str:    e.str.Bytes(),
		Line:   e.line.Bytes(),
		Ranges: e.ranges.Bytes(),
		Loc:    e.loc.Bytes(),
	}, nil
}

// buildAbbrevTable assigns every distinct (tag, has-children, attr/form
// signature) combination across the whole module a single shared
// abbreviation code. Sharing the table across units rather than building one
// per unit (as gimli's writer does) is valid DWARF - nothing requires a
// compilation unit to own a private slice of .debug_abbrev - and it means
// the code and the encoded form for an entry's attributes are available
// from this one pass onward.
func (e *encoder) buildAbbrevTable() error {
	e.abbrevKeyCode = make(map[string]int)
	e.abbrevDecls = []abbrevDecl{{}}
	e.entryCode = make([][]int, len(e.dwarf.Units))
	e.entryAttrs = make([][][]abbrevAttr, len(e.dwarf.Units))

	for ui := range e.dwarf.Units {
		unit := &e.dwarf.Units[ui]
		e.entryCode[ui] = make([]int, len(unit.Entries))
		e.entryAttrs[ui] = make([][]abbrevAttr, len(unit.Entries))

		for ei := range unit.Entries {
			entry := &unit.Entries[ei]
			hasChildren := len(entry.Children) > 0

			var attrs []abbrevAttr
			if entry.HasSibling && hasChildren {
				attrs = append(attrs, abbrevAttr{attr: dwarf.AttrSibling, form: dwFormRef4})
			}
			for _, a := range entry.Attrs {
				form, err := formFor(a.Value)
				if err != nil {
					return err
				}
				attrs = append(attrs, abbrevAttr{attr: a.Name, form: form})
			}
			e.entryAttrs[ui][ei] = attrs

			key := abbrevKey(entry.Tag, hasChildren, attrs)
			code, ok := e.abbrevKeyCode[key]
			if !ok {
				code = len(e.abbrevDecls)
				e.abbrevDecls = append(e.abbrevDecls, abbrevDecl{tag: entry.Tag, children: hasChildren, attrs: attrs})
				e.abbrevKeyCode[key] = code
			}
			e.entryCode[ui][ei] = code
		}
	}
	return nil
}

func abbrevKey(tag dwarf.Tag, children bool, attrs []abbrevAttr) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%v", tag, children)
	for _, a := range attrs {
		fmt.Fprintf(&b, "|%d:%d", a.attr, a.form)
	}
	return b.String()
}

func (e *encoder) encodeAbbrevTable() {
	for code := 1; code < len(e.abbrevDecls); code++ {
		decl := e.abbrevDecls[code]
		e.abbrev.Write(leb128.EncodeULEB128(nil, uint64(code)))
		e.abbrev.Write(leb128.EncodeULEB128(nil, uint64(decl.tag)))
		if decl.children {
			e.abbrev.WriteByte(1)
		} else {
			e.abbrev.WriteByte(0)
		}
		for _, a := range decl.attrs {
			e.abbrev.Write(leb128.EncodeULEB128(nil, uint64(a.attr)))
			e.abbrev.Write(leb128.EncodeULEB128(nil, uint64(a.form)))
		}
		e.abbrev.Write(leb128.EncodeULEB128(nil, 0))
		e.abbrev.Write(leb128.EncodeULEB128(nil, 0))
	}
	e.abbrev.Write(leb128.EncodeULEB128(nil, 0))
}

func (e *encoder) encodeStrings() {
	for _, s := range e.dwarf.Strings.Strings() {
		e.strOffset = append(e.strOffset, e.str.Len())
		e.str.WriteString(s)
		e.str.WriteByte(0)
	}
}

func (e *encoder) encodeLinePrograms() error {
	e.lineProgramOffset = make([]int, len(e.dwarf.Units))
	for ui := range e.dwarf.Units {
		unit := &e.dwarf.Units[ui]
		e.lineProgramOffset[ui] = e.line.Len()
		if unit.LineProgram == nil {
			continue
		}
		addrSize := addressSize(unit)
		e.line.Write(encodeLineProgram(unit.LineProgram, addrSize))
	}
	return nil
}

func (e *encoder) encodeRangesAndLocations() {
	e.rangeListOffset = make([][]int, len(e.dwarf.Units))
	e.locationListOffset = make([][]int, len(e.dwarf.Units))

	for ui := range e.dwarf.Units {
		unit := &e.dwarf.Units[ui]
		addrSize := addressSize(unit)

		e.rangeListOffset[ui] = make([]int, len(unit.Ranges))
		for ri, list := range unit.Ranges {
			e.rangeListOffset[ui][ri] = e.ranges.Len()
			for _, entry := range list {
				if entry.Addr.Kind != translate.Constant {
					continue
				}
				writeSectionAddr(&e.ranges, entry.Addr.Value, addrSize)
				writeSectionAddr(&e.ranges, entry.Addr.Value+entry.Length, addrSize)
			}
			writeSectionAddr(&e.ranges, 0, addrSize)
			writeSectionAddr(&e.ranges, 0, addrSize)
		}

		e.locationListOffset[ui] = make([]int, len(unit.Locations))
		for li, list := range unit.Locations {
			e.locationListOffset[ui][li] = e.loc.Len()
			for _, piece := range list {
				if piece.Addr.Kind != translate.Constant {
					continue
				}
				writeSectionAddr(&e.loc, piece.Addr.Value, addrSize)
				writeSectionAddr(&e.loc, piece.Addr.Value+piece.Length, addrSize)
				var lenBuf [2]byte
				binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(piece.Expr)))
				e.loc.Write(lenBuf[:])
				e.loc.Write(piece.Expr)
			}
			writeSectionAddr(&e.loc, 0, addrSize)
			writeSectionAddr(&e.loc, 0, addrSize)
		}
	}
}

func writeSectionAddr(buf *bytes.Buffer, v uint64, size int) {
	b := make([]byte, size)
	if size == 4 {
		binary.LittleEndian.PutUint32(b, uint32(v))
	} else {
		binary.LittleEndian.PutUint64(b, v)
	}
	buf.Write(b)
}

func addressSize(u *Unit) int {
	if u.AddressSize == 0 {
		return 4
	}
	return int(u.AddressSize)
}

// layoutInfo computes, for every entry in every unit, its unit-relative byte
// offset and the offset one past its whole subtree (used for DW_AT_sibling
// values), plus each unit's absolute placement in the combined Info buffer.
// Every attribute form chosen in buildAbbrevTable has a size that depends
// only on the value itself, never on where anything else ends up, so this
// runs as a single forward walk rather than needing an iterate-to-fixpoint
// pass.
func (e *encoder) layoutInfo() error {
	e.unitRelOffset = make([][]int, len(e.dwarf.Units))
	e.subtreeEnd = make([][]int, len(e.dwarf.Units))
	e.globalOffset = make([][]int, len(e.dwarf.Units))
	e.entriesStreamLen = make([]int, len(e.dwarf.Units))

	cursor := 0
	for ui := range e.dwarf.Units {
		unit := &e.dwarf.Units[ui]
		e.unitRelOffset[ui] = make([]int, len(unit.Entries))
		e.subtreeEnd[ui] = make([]int, len(unit.Entries))

		streamLen, err := e.layoutEntry(ui, 0, 0)
		if err != nil {
			return err
		}
		e.entriesStreamLen[ui] = streamLen

		// debug/dwarf measures references (ref1/ref2/ref4/ref8/ref_udata and,
		// by extension, the absolute offsets reference-holding forms resolve
		// to) from the first byte of the compilation unit header - that is,
		// from the unit_length field itself, not from the end of the header
		// where unitRelOffset is counted from. See debug/dwarf's unit.go, where
		// u.base is captured before the unit_length field is read and then
		// added back in when decoding every reference form.
		e.globalOffset[ui] = make([]int, len(unit.Entries))
		for eid, rel := range e.unitRelOffset[ui] {
			e.globalOffset[ui][eid] = cursor + unitHeaderSize + rel
		}

		cursor += unitHeaderSize + streamLen
	}
	return nil
}

// unitHeaderSize is unit_length(4) + version(2) + abbrev_offset(4) +
// address_size(1).
const unitHeaderSize = 11

func (e *encoder) layoutEntry(ui, eid, offset int) (int, error) {
	unit := &e.dwarf.Units[ui]
	entry := &unit.Entries[eid]
	e.unitRelOffset[ui][eid] = offset

	size, err := e.entrySize(ui, eid)
	if err != nil {
		return 0, err
	}
	offset += size

	for _, childID := range entry.Children {
		offset, err = e.layoutEntry(ui, int(childID), offset)
		if err != nil {
			return 0, err
		}
	}
	if len(entry.Children) > 0 {
		offset++ // null entry terminating the children list
	}

	e.subtreeEnd[ui][eid] = offset
	return offset, nil
}

func (e *encoder) entrySize(ui, eid int) (int, error) {
	unit := &e.dwarf.Units[ui]
	entry := &unit.Entries[eid]
	addrSize := addressSize(unit)

	size := len(leb128.EncodeULEB128(nil, uint64(e.entryCode[ui][eid])))
	if entry.HasSibling && len(entry.Children) > 0 {
		size += 4
	}
	for _, a := range entry.Attrs {
		sz, err := valueSize(a.Value, addrSize)
		if err != nil {
			return 0, err
		}
		size += sz
	}
	return size, nil
}

func valueSize(v Value, addrSize int) (int, error) {
	switch v.Kind {
	case VAddress:
		if v.Addr.Kind != translate.Constant {
			return 0, errors.Errorf(errors.WriteError, "cannot encode a symbolic address")
		}
		return addrSize, nil
	case VConst:
		switch v.Width {
		case 1:
			return 1, nil
		case 2:
			return 2, nil
		case 4:
			return 4, nil
		case 8:
			return 8, nil
		default:
			return len(leb128.EncodeULEB128(nil, v.U)), nil
		}
	case VSConst:
		return len(leb128.EncodeSLEB128(nil, v.S)), nil
	case VFlag:
		return 1, nil
	case VBlock:
		return len(leb128.EncodeULEB128(nil, uint64(len(v.Bytes)))) + len(v.Bytes), nil
	case VStringRef, VLineProgramRef, VRangeListRef, VLocationListRef, VThisUnitRef, VCrossUnitRef:
		return 4, nil
	case VFileIndex:
		n := uint64(v.Index)
		if v.Index < 0 {
			n = 0
		}
		return len(leb128.EncodeULEB128(nil, n)), nil
	default:
		return 0, errors.Errorf(errors.UnencodableValue, v.Kind)
	}
}

func (e *encoder) encodeInfo() error {
	for ui := range e.dwarf.Units {
		unit := &e.dwarf.Units[ui]
		unitLength := uint32(unitHeaderSize - 4 + e.entriesStreamLen[ui])

		var header [11]byte
		binary.LittleEndian.PutUint32(header[0:4], unitLength)
		binary.LittleEndian.PutUint16(header[4:6], uint16(dwarfVersion))
		binary.LittleEndian.PutUint32(header[6:10], 0)
		header[10] = unit.AddressSize
		e.info.Write(header[:])

		if err := e.writeEntry(ui, 0); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeEntry(ui, eid int) error {
	unit := &e.dwarf.Units[ui]
	entry := &unit.Entries[eid]

	e.info.Write(leb128.EncodeULEB128(nil, uint64(e.entryCode[ui][eid])))

	if entry.HasSibling && len(entry.Children) > 0 {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(unitHeaderSize+e.subtreeEnd[ui][eid]))
		e.info.Write(b[:])
	}
	for _, a := range entry.Attrs {
		if err := e.writeValue(ui, a.Value); err != nil {
			return err
		}
	}

	for _, childID := range entry.Children {
		if err := e.writeEntry(ui, int(childID)); err != nil {
			return err
		}
	}
	if len(entry.Children) > 0 {
		e.info.WriteByte(0)
	}
	return nil
}

func (e *encoder) writeValue(ui int, v Value) error {
	switch v.Kind {
	case VAddress:
		if v.Addr.Kind != translate.Constant {
			return errors.Errorf(errors.WriteError, "cannot encode a symbolic address")
		}
		writeSectionAddr(&e.info, v.Addr.Value, addressSize(&e.dwarf.Units[ui]))

	case VConst:
		switch v.Width {
		case 1:
			e.info.WriteByte(byte(v.U))
		case 2:
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(v.U))
			e.info.Write(b[:])
		case 4:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v.U))
			e.info.Write(b[:])
		case 8:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], v.U)
			e.info.Write(b[:])
		default:
			e.info.Write(leb128.EncodeULEB128(nil, v.U))
		}

	case VSConst:
		e.info.Write(leb128.EncodeSLEB128(nil, v.S))

	case VFlag:
		if v.Flag {
			e.info.WriteByte(1)
		} else {
			e.info.WriteByte(0)
		}

	case VBlock:
		e.info.Write(leb128.EncodeULEB128(nil, uint64(len(v.Bytes))))
		e.info.Write(v.Bytes)

	case VStringRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.strOffset[v.Index]))
		e.info.Write(b[:])

	case VLineProgramRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.lineProgramOffset[ui]))
		e.info.Write(b[:])

	case VRangeListRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.rangeListOffset[ui][v.Index]))
		e.info.Write(b[:])

	case VLocationListRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.locationListOffset[ui][v.Index]))
		e.info.Write(b[:])

	case VFileIndex:
		n := uint64(v.Index)
		if v.Index < 0 {
			n = 0
		}
		e.info.Write(leb128.EncodeULEB128(nil, n))

	case VThisUnitRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(unitHeaderSize+e.unitRelOffset[ui][v.Entry]))
		e.info.Write(b[:])

	case VCrossUnitRef:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.globalOffset[v.Unit][v.Entry]))
		e.info.Write(b[:])

	default:
		return errors.Errorf(errors.UnencodableValue, v.Kind)
	}
	return nil
}
