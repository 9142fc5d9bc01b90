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

package dwarfrewrite_test

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmdwarf/wasmdwarf/internal/dwarfrewrite"
	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// buildSimpleDwarf constructs a two-unit model: unit 0 has a root compile
// unit with one subprogram child carrying a translated low_pc and a range
// list, plus a cross-unit reference to unit 1's root.
func buildSimpleDwarf(t *testing.T) *dwarfrewrite.Dwarf {
	t.Helper()

	d := &dwarfrewrite.Dwarf{Strings: dwarfrewrite.NewStringTable()}

	unit0 := dwarfrewrite.Unit{AddressSize: 4}
	root0 := unit0.Add(dwarf.TagCompileUnit)
	require.Equal(t, dwarfrewrite.EntryID(0), root0)
	nameID := d.Strings.Add("unit0.c")
	unit0.Get(root0).Attrs = append(unit0.Get(root0).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrName,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VStringRef, Index: nameID},
	})

	child := unit0.Add(dwarf.TagSubprogram)
	unit0.Get(root0).Children = append(unit0.Get(root0).Children, child)
	unit0.Get(child).Attrs = append(unit0.Get(child).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrLowpc,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VAddress, Addr: translate.NewConstant(0x1000)},
	})
	rangeIdx := unit0.AddRangeList(dwarfrewrite.RangeList{
		{Addr: translate.NewConstant(0x1000), Length: 0x20},
		{Addr: translate.NewConstant(0x2000), Length: 0x10},
	})
	unit0.Get(child).Attrs = append(unit0.Get(child).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrRanges,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VRangeListRef, Index: rangeIdx},
	})
	unit0.Get(child).Attrs = append(unit0.Get(child).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrType,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VCrossUnitRef, Unit: 1, Entry: 0},
	})

	unit1 := dwarfrewrite.Unit{AddressSize: 4}
	root1 := unit1.Add(dwarf.TagBaseType)
	unit1.Get(root1).Attrs = append(unit1.Get(root1).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrByteSize,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VConst, Width: 1, U: 4},
	})

	d.Units = append(d.Units, unit0, unit1)
	return d
}

func TestEncodeProducesWellFormedUnitHeaders(t *testing.T) {
	d := buildSimpleDwarf(t)
	sections, err := dwarfrewrite.Encode(d)
	require.NoError(t, err)
	require.NotEmpty(t, sections.Info)

	firstLen := binary.LittleEndian.Uint32(sections.Info[0:4])
	require.Less(t, int(firstLen)+4, len(sections.Info))

	version := binary.LittleEndian.Uint16(sections.Info[4:6])
	require.EqualValues(t, 4, version)

	secondUnitStart := 4 + firstLen
	secondLen := binary.LittleEndian.Uint32(sections.Info[secondUnitStart : secondUnitStart+4])
	require.EqualValues(t, secondUnitStart+4+secondLen, len(sections.Info))
}

func TestEncodeDeduplicatesAbbreviations(t *testing.T) {
	d := &dwarfrewrite.Dwarf{Strings: dwarfrewrite.NewStringTable()}
	unit := dwarfrewrite.Unit{AddressSize: 4}
	root := unit.Add(dwarf.TagCompileUnit)
	for i := 0; i < 3; i++ {
		child := unit.Add(dwarf.TagVariable)
		unit.Get(root).Children = append(unit.Get(root).Children, child)
		unit.Get(child).Attrs = append(unit.Get(child).Attrs, dwarfrewrite.Attribute{
			Name:  dwarf.AttrByteSize,
			Value: dwarfrewrite.Value{Kind: dwarfrewrite.VConst, Width: 1, U: uint64(i)},
		})
	}
	d.Units = append(d.Units, unit)

	sections, err := dwarfrewrite.Encode(d)
	require.NoError(t, err)

	// three structurally identical children plus the root: exactly two
	// distinct abbreviation declarations should appear in the table, each
	// terminated by a (0,0) pair, followed by the table's own terminator.
	zeroPairs := 0
	for i := 0; i+1 < len(sections.Abbrev); i++ {
		if sections.Abbrev[i] == 0 && sections.Abbrev[i+1] == 0 {
			zeroPairs++
			i++
		}
	}
	require.Equal(t, 2, zeroPairs)
}

func TestEncodeStringTableOffsetsAreNulTerminated(t *testing.T) {
	d := &dwarfrewrite.Dwarf{Strings: dwarfrewrite.NewStringTable()}
	d.Strings.Add("alpha")
	d.Strings.Add("beta")
	unit := dwarfrewrite.Unit{AddressSize: 4}
	unit.Add(dwarf.TagCompileUnit)
	d.Units = append(d.Units, unit)

	sections, err := dwarfrewrite.Encode(d)
	require.NoError(t, err)
	require.Equal(t, "alpha\x00beta\x00", string(sections.Str))
}

func TestEncodeLineProgramEmitsEndSequence(t *testing.T) {
	d := &dwarfrewrite.Dwarf{Strings: dwarfrewrite.NewStringTable()}
	unit := dwarfrewrite.Unit{AddressSize: 4}
	unit.Add(dwarf.TagCompileUnit)
	unit.LineProgram = &dwarfrewrite.LineProgram{
		CompDir:     "/src",
		CompName:    "main.c",
		Directories: []string{""},
		LineBase:    -5,
		Files:       []dwarfrewrite.LineFile{{Name: "main.c", DirIndex: 0}},
		Sequences: []dwarfrewrite.LineSequence{
			{
				Rows: []dwarfrewrite.LineRow{
					{Address: 0x100, File: 1, Line: 10, IsStmt: true},
					{Address: 0x108, File: 1, Line: 11, IsStmt: true},
				},
				EndAddress: 0x110,
			},
		},
	}
	d.Units = append(d.Units, unit)

	sections, err := dwarfrewrite.Encode(d)
	require.NoError(t, err)
	require.NotEmpty(t, sections.Line)
	// the last three bytes of any sequence are the extended end-of-sequence
	// opcode: 0x00 (extended prefix), 0x01 (length), 0x01 (DW_LNE_end_sequence)
	tail := sections.Line[len(sections.Line)-3:]
	require.Equal(t, []byte{0x00, 0x01, 0x01}, tail)
}

func TestEncodeRoundTripsThroughDebugDwarf(t *testing.T) {
	d := buildSimpleDwarf(t)
	sections, err := dwarfrewrite.Encode(d)
	require.NoError(t, err)

	dd, err := dwarf.New(sections.Abbrev, nil, nil, sections.Info, nil, nil, sections.Ranges, sections.Str)
	require.NoError(t, err)

	r := dd.Reader()
	cu, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, dwarf.TagCompileUnit, cu.Tag)
	require.Equal(t, "unit0.c", cu.Val(dwarf.AttrName))

	sub, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, dwarf.TagSubprogram, sub.Tag)
	require.EqualValues(t, 0x1000, sub.Val(dwarf.AttrLowpc))

	ranges, err := dd.Ranges(sub)
	require.NoError(t, err)
	require.Equal(t, [][2]uint64{{0x1000, 0x1020}, {0x2000, 0x2010}}, ranges)

	typeRef, ok := sub.Val(dwarf.AttrType).(dwarf.Offset)
	require.True(t, ok)

	r.Seek(0)
	for {
		e, err := r.Next()
		require.NoError(t, err)
		require.NotNil(t, e)
		if e.Tag == dwarf.TagBaseType {
			require.Equal(t, typeRef, e.Offset)
			require.EqualValues(t, 4, e.Val(dwarf.AttrByteSize))
			break
		}
	}
}

func TestEncodeRejectsSymbolicAddress(t *testing.T) {
	d := &dwarfrewrite.Dwarf{Strings: dwarfrewrite.NewStringTable()}
	unit := dwarfrewrite.Unit{AddressSize: 4}
	root := unit.Add(dwarf.TagSubprogram)
	unit.Get(root).Attrs = append(unit.Get(root).Attrs, dwarfrewrite.Attribute{
		Name:  dwarf.AttrLowpc,
		Value: dwarfrewrite.Value{Kind: dwarfrewrite.VAddress, Addr: translate.NewSymbol(1, 0)},
	})
	d.Units = append(d.Units, unit)

	_, err := dwarfrewrite.Encode(d)
	require.Error(t, err)
}
