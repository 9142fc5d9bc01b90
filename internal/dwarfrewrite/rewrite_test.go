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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// findOffset walks dd looking for the entry named name, returning its offset.
func findOffset(t *testing.T, dd *dwarf.Data, name string) dwarf.Offset {
	t.Helper()
	r := dd.Reader()
	for {
		e, err := r.Next()
		require.NoError(t, err)
		if e == nil {
			t.Fatalf("entry %q not found", name)
		}
		if n, _ := e.Val(dwarf.AttrName).(string); n == name {
			return e.Offset
		}
	}
}

// findEntry returns the id of unit's entry whose DW_AT_name resolves (through
// strings) to name.
func findEntry(t *testing.T, unit *Unit, strings *StringTable, name string) EntryID {
	t.Helper()
	for id := range unit.Entries {
		for _, a := range unit.Entries[id].Attrs {
			if a.Name != dwarf.AttrName || a.Value.Kind != VStringRef {
				continue
			}
			if strings.Strings()[a.Value.Index] == name {
				return EntryID(id)
			}
		}
	}
	t.Fatalf("no entry named %q in output unit", name)
	return 0
}

func attr(e *Entry, name dwarf.Attr) (Value, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// buildRewriteFixture assembles a raw two-unit DWARF byte image exercising
// the string, constant, address, flag and block attribute-conversion
// classes, a this-unit reference, a cross-unit reference and an entry no
// root keeps a path to.
func buildRewriteFixture(t *testing.T) *dwarf.Data {
	t.Helper()

	d := &Dwarf{Strings: NewStringTable()}

	unit0 := Unit{AddressSize: 4}
	root0 := unit0.Add(dwarf.TagCompileUnit)
	unit0.Get(root0).Attrs = append(unit0.Get(root0).Attrs, Attribute{
		Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("unit0.c")},
	})

	baseType := unit0.Add(dwarf.TagBaseType)
	unit0.Get(root0).Children = append(unit0.Get(root0).Children, baseType)
	unit0.Get(baseType).Attrs = append(unit0.Get(baseType).Attrs,
		Attribute{Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("int")}},
		Attribute{Name: dwarf.AttrByteSize, Value: Value{Kind: VConst, Width: 1, U: 4}},
	)

	sub := unit0.Add(dwarf.TagSubprogram)
	unit0.Get(root0).Children = append(unit0.Get(root0).Children, sub)
	unit0.Get(sub).Attrs = append(unit0.Get(sub).Attrs,
		Attribute{Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("foo")}},
		Attribute{Name: dwarf.AttrLowpc, Value: Value{Kind: VAddress, Addr: translate.NewConstant(0x2000)}},
		Attribute{Name: dwarf.AttrExternal, Value: Value{Kind: VFlag, Flag: true}},
		Attribute{Name: dwarf.AttrLocation, Value: Value{Kind: VBlock, Bytes: []byte{0x03, 0x00, 0x20, 0x00, 0x00}}},
		Attribute{Name: dwarf.AttrType, Value: Value{Kind: VThisUnitRef, Entry: baseType}},
	)

	deadVar := unit0.Add(dwarf.TagVariable)
	unit0.Get(root0).Children = append(unit0.Get(root0).Children, deadVar)
	unit0.Get(deadVar).Attrs = append(unit0.Get(deadVar).Attrs, Attribute{
		Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("deadvar")},
	})

	unit1 := Unit{AddressSize: 4}
	root1 := unit1.Add(dwarf.TagCompileUnit)
	unit1.Get(root1).Attrs = append(unit1.Get(root1).Attrs, Attribute{
		Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("unit1.c")},
	})

	bar := unit1.Add(dwarf.TagSubprogram)
	unit1.Get(root1).Children = append(unit1.Get(root1).Children, bar)
	unit1.Get(bar).Attrs = append(unit1.Get(bar).Attrs,
		Attribute{Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("bar")}},
		Attribute{Name: dwarf.AttrType, Value: Value{Kind: VCrossUnitRef, Unit: 0, Entry: baseType}},
	)

	d.Units = append(d.Units, unit0, unit1)

	sections, err := Encode(d)
	require.NoError(t, err)

	dd, err := dwarf.New(sections.Abbrev, nil, nil, sections.Info, nil, nil, sections.Ranges, sections.Str)
	require.NoError(t, err)
	return dd
}

// TestRewriteConvertsDIEsAttributesAndCrossReferences exercises Rewrite
// directly: the attribute-conversion table for the string, constant,
// address, flag, block and reference classes, DIE recursion pruned by
// keep(), and the two-pass
// cross-reference fixup for both a same-unit and a cross-unit reference. The
// Identity translator also means every translated address must come back
// unchanged, the round-trip property the rest of the package relies on.
func TestRewriteConvertsDIEsAttributesAndCrossReferences(t *testing.T) {
	dd := buildRewriteFixture(t)
	deadOffset := findOffset(t, dd, "deadvar")

	keep := func(o dwarf.Offset) bool { return o != deadOffset }

	out, err := Rewrite(dd, translate.Identity{}, keep, nil, nil)
	require.NoError(t, err)
	require.Len(t, out.Units, 2)

	unit0 := &out.Units[0]
	for _, e := range unit0.Entries {
		for _, a := range e.Attrs {
			if a.Name == dwarf.AttrName && a.Value.Kind == VStringRef {
				require.NotEqual(t, "deadvar", out.Strings.Strings()[a.Value.Index])
			}
		}
	}

	intID := findEntry(t, unit0, out.Strings, "int")
	fooID := findEntry(t, unit0, out.Strings, "foo")

	byteSize, ok := attr(unit0.Get(intID), dwarf.AttrByteSize)
	require.True(t, ok)
	require.Equal(t, Value{Kind: VSConst, S: 4}, byteSize)

	lowpc, ok := attr(unit0.Get(fooID), dwarf.AttrLowpc)
	require.True(t, ok)
	require.Equal(t, Value{Kind: VAddress, Addr: translate.NewConstant(0x2000)}, lowpc)

	external, ok := attr(unit0.Get(fooID), dwarf.AttrExternal)
	require.True(t, ok)
	require.Equal(t, Value{Kind: VFlag, Flag: true}, external)

	location, ok := attr(unit0.Get(fooID), dwarf.AttrLocation)
	require.True(t, ok)
	require.Equal(t, VBlock, location.Kind)
	require.Equal(t, []byte{0x03, 0x00, 0x20, 0x00, 0x00}, location.Bytes)

	fooType, ok := attr(unit0.Get(fooID), dwarf.AttrType)
	require.True(t, ok)
	require.Equal(t, Value{Kind: VThisUnitRef, Entry: intID}, fooType)

	unit1 := &out.Units[1]
	barID := findEntry(t, unit1, out.Strings, "bar")
	barType, ok := attr(unit1.Get(barID), dwarf.AttrType)
	require.True(t, ok)
	require.Equal(t, Value{Kind: VCrossUnitRef, Unit: 0, Entry: intID}, barType)
}

// reorderingTranslator maps a fixed set of original addresses to target
// addresses chosen so the rows they label no longer sort in their original
// order, exercising the line-program sequence's address-order resort.
type reorderingTranslator map[uint64]uint64

func (m reorderingTranslator) TranslateAddress(original uint64) []translate.Address {
	target, ok := m[original]
	if !ok {
		return nil
	}
	return []translate.Address{translate.NewConstant(target)}
}

func (m reorderingTranslator) TranslateRange(original, length uint64) []translate.Range {
	target, ok := m[original]
	if !ok {
		return nil
	}
	return []translate.Range{{Addr: translate.NewConstant(target), Length: length}}
}

func (m reorderingTranslator) TranslateFunctionRange(original, length uint64) (translate.Range, bool) {
	target, ok := m[original]
	if !ok {
		return translate.Range{}, false
	}
	return translate.Range{Addr: translate.NewConstant(target), Length: length}, true
}

// buildLineSectionFixture hand-assembles a classic DWARF4 .debug_line unit
// with a single compilation unit whose three rows advance via ordinary
// advance_pc/advance_line/copy opcodes, the way a real compiler emits them,
// rather than through this package's own repeated-set_address encoder (see
// encodeLineSequence): decodeLineInstructions rejects a second
// DW_LNE_set_address inside one sequence, so an input fixture has to look
// like compiler output, not like this package's own output.
func buildLineSectionFixture(t *testing.T) []byte {
	t.Helper()

	var header bytes.Buffer
	header.WriteByte(1) // minimum_instruction_length
	header.WriteByte(1) // maximum_operations_per_instruction
	header.WriteByte(1) // default_is_stmt
	header.WriteByte(byte(int8(-5)))
	header.WriteByte(lineRange)
	header.WriteByte(opcodeBase)
	header.Write(standardOpcodeLengths)
	header.WriteByte(0) // include_directories terminator: none

	header.WriteString("main.c")
	header.WriteByte(0)
	header.Write(leb128.EncodeULEB128(nil, 0)) // directory index
	header.Write(leb128.EncodeULEB128(nil, 0)) // mtime
	header.Write(leb128.EncodeULEB128(nil, 0)) // length
	header.WriteByte(0)                        // file_names terminator

	var program bytes.Buffer
	writeExt := func(opcode byte, operand []byte) {
		program.WriteByte(0)
		program.Write(leb128.EncodeULEB128(nil, uint64(1+len(operand))))
		program.WriteByte(opcode)
		program.Write(operand)
	}
	addr4 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}

	writeExt(lneSetAddress, addr4(0x100))
	program.WriteByte(lnsAdvanceLine)
	program.Write(leb128.EncodeSLEB128(nil, 9)) // line 1 -> 10
	program.WriteByte(lnsCopy)

	program.WriteByte(lnsAdvancePC)
	program.Write(leb128.EncodeULEB128(nil, 8)) // 0x100 -> 0x108
	program.WriteByte(lnsAdvanceLine)
	program.Write(leb128.EncodeSLEB128(nil, 1)) // line 10 -> 11
	program.WriteByte(lnsCopy)

	program.WriteByte(lnsAdvancePC)
	program.Write(leb128.EncodeULEB128(nil, 8)) // 0x108 -> 0x110
	program.WriteByte(lnsAdvanceLine)
	program.Write(leb128.EncodeSLEB128(nil, 1)) // line 11 -> 12
	program.WriteByte(lnsCopy)

	program.WriteByte(lnsAdvancePC)
	program.Write(leb128.EncodeULEB128(nil, 0x10)) // 0x110 -> 0x120
	writeExt(lneEndSequence, nil)

	unitLength := 2 + 4 + header.Len() + program.Len()

	var section bytes.Buffer
	var lengthField [4]byte
	binary.LittleEndian.PutUint32(lengthField[:], uint32(unitLength))
	section.Write(lengthField[:])
	var versionAndHeaderLen [6]byte
	binary.LittleEndian.PutUint16(versionAndHeaderLen[0:2], uint16(dwarfVersion))
	binary.LittleEndian.PutUint32(versionAndHeaderLen[2:6], uint32(header.Len()))
	section.Write(versionAndHeaderLen[:])
	section.Write(header.Bytes())
	section.Write(program.Bytes())

	return section.Bytes()
}

// TestRewriteTranslatesAndReordersLineProgram feeds a raw, compiler-shaped
// .debug_line section through Rewrite and checks that rows translated
// out of their original address order come back sorted by target address,
// and that the sequence's closing address is translated independently of
// its rows.
func TestRewriteTranslatesAndReordersLineProgram(t *testing.T) {
	d := &Dwarf{Strings: NewStringTable()}
	unit := Unit{AddressSize: 4}
	root := unit.Add(dwarf.TagCompileUnit)
	unit.Get(root).Attrs = append(unit.Get(root).Attrs,
		Attribute{Name: dwarf.AttrName, Value: Value{Kind: VStringRef, Index: d.Strings.Add("main.c")}},
		Attribute{Name: dwarf.AttrCompDir, Value: Value{Kind: VStringRef, Index: d.Strings.Add("/src")}},
		Attribute{Name: dwarf.AttrStmtList, Value: Value{Kind: VLineProgramRef}},
	)
	d.Units = append(d.Units, unit)

	sections, err := Encode(d)
	require.NoError(t, err)
	dd, err := dwarf.New(sections.Abbrev, nil, nil, sections.Info, nil, nil, sections.Ranges, sections.Str)
	require.NoError(t, err)

	lineSection := buildLineSectionFixture(t)

	translator := reorderingTranslator{
		0x100: 0x100,
		0x108: 0x130,
		0x110: 0x120,
		0x120: 0x140,
	}

	out, err := Rewrite(dd, translator, func(dwarf.Offset) bool { return true }, nil, lineSection)
	require.NoError(t, err)
	require.Len(t, out.Units, 1)

	prog := out.Units[0].LineProgram
	require.NotNil(t, prog)
	require.Len(t, prog.Sequences, 1)

	seq := prog.Sequences[0]
	require.Len(t, seq.Rows, 3)
	require.Equal(t, uint64(0x100), seq.Rows[0].Address)
	require.Equal(t, 10, seq.Rows[0].Line)
	require.Equal(t, uint64(0x120), seq.Rows[1].Address)
	require.Equal(t, 12, seq.Rows[1].Line)
	require.Equal(t, uint64(0x130), seq.Rows[2].Address)
	require.Equal(t, 11, seq.Rows[2].Line)
	require.Equal(t, uint64(0x140), seq.EndAddress)
}
