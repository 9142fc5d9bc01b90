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

// Package dwarfrewrite performs the structural copy of an input DWARF
// debugging-information tree into a new one whose code-address-bearing
// fields have been pushed through an address translator, with entries the
// translator can't place anywhere dropped by reachability filtering.
package dwarfrewrite

import (
	"debug/dwarf"

	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// UnitID indexes Dwarf.Units.
type UnitID int

// EntryID indexes Unit.Entries within a single unit. 0 is always the root.
type EntryID int

// ValueKind discriminates the forms an output attribute value can take.
// Every input attribute class from debug/dwarf collapses into one of these.
type ValueKind int

const (
	// VConst is an unsigned constant; Width picks the output form (1, 2, 4
	// or 8 for Data1..Data8, 0 for Udata/ULEB128).
	VConst ValueKind = iota
	// VSConst is a signed LEB128 constant (Sdata).
	VSConst
	VFlag
	// VBlock holds raw bytes for Block and Exprloc forms alike.
	VBlock
	// VStringRef indexes into the output string table.
	VStringRef
	// VAddress carries a translated code address.
	VAddress
	// VSectionRef is a not-yet-resolved cross-DIE reference, recorded
	// during the unit pass and resolved in the fixup pass.
	VSectionRef
	// VThisUnitRef is a resolved reference to an entry in the same unit.
	VThisUnitRef
	// VCrossUnitRef is a resolved reference to an entry in another unit.
	VCrossUnitRef
	// VLineProgramRef is the sentinel for DW_AT_stmt_list.
	VLineProgramRef
	// VRangeListRef indexes into the owning unit's range-list table.
	VRangeListRef
	// VLocationListRef indexes into the owning unit's location-list table.
	VLocationListRef
	// VFileIndex names a file in the owning unit's line-program file table;
	// Index == -1 means "not specified".
	VFileIndex
)

// Value is an output attribute value. Only the fields relevant to Kind are
// meaningful; the rest are zero.
type Value struct {
	Kind  ValueKind
	U     uint64
	Width int
	S     int64
	Flag  bool
	Bytes []byte
	Addr  translate.Address
	Ref   dwarf.Offset // raw input offset, meaningful for VSectionRef only
	Unit  UnitID
	Entry EntryID
	Index int
}

// Attribute is a single name/value pair on an output entry.
type Attribute struct {
	Name  dwarf.Attr
	Value Value
}

// Entry is an output DIE.
type Entry struct {
	Tag        dwarf.Tag
	Attrs      []Attribute
	Children   []EntryID
	HasSibling bool
}

// LineFile is one entry of an output line-program file table, carrying the
// directory/timestamp/size metadata copied from the input header rather than
// synthesized, per the line-program header-setup rules.
type LineFile struct {
	Name     string
	DirIndex int // index into LineProgram.Directories; 0 is the implicit compilation directory
	Mtime    uint64
	Length   uint64
}

// Unit is an output compilation unit.
type Unit struct {
	Version     uint8
	AddressSize uint8
	Entries     []Entry // index 0 is the root
	Ranges      []RangeList
	Locations   []LocationList
	LineProgram *LineProgram
}

// Root returns the unit's root entry id.
func (u *Unit) Root() EntryID { return 0 }

// Add appends a new entry and returns its id.
func (u *Unit) Add(tag dwarf.Tag) EntryID {
	id := EntryID(len(u.Entries))
	u.Entries = append(u.Entries, Entry{Tag: tag})
	return id
}

func (u *Unit) Get(id EntryID) *Entry { return &u.Entries[id] }

// AddRangeList stores list and returns its index.
func (u *Unit) AddRangeList(list RangeList) int {
	u.Ranges = append(u.Ranges, list)
	return len(u.Ranges) - 1
}

// AddLocationList stores list and returns its index.
func (u *Unit) AddLocationList(list LocationList) int {
	u.Locations = append(u.Locations, list)
	return len(u.Locations) - 1
}

// StringTable interns byte strings, de-duplicating by content; offsets into
// the encoded section are assigned at write time.
type StringTable struct {
	index map[string]int
	order []string
}

// NewStringTable returns an empty table.
func NewStringTable() *StringTable {
	return &StringTable{index: make(map[string]int)}
}

// Add interns s and returns its id.
func (t *StringTable) Add(s string) int {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := len(t.order)
	t.index[s] = id
	t.order = append(t.order, s)
	return id
}

// Strings returns the interned strings in id order.
func (t *StringTable) Strings() []string { return t.order }

// Dwarf is the complete rewritten debugging-information tree, ready for
// encoding.
type Dwarf struct {
	Units   []Unit
	Strings *StringTable
}
