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
	"encoding/binary"

	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
)

// DWARF4 standard opcodes, figure 39.
const (
	lnsCopy             = 0x01
	lnsAdvancePC        = 0x02
	lnsAdvanceLine      = 0x03
	lnsSetFile          = 0x04
	lnsSetColumn        = 0x05
	lnsNegateStmt       = 0x06
	lnsSetBasicBlock    = 0x07
	lnsConstAddPC       = 0x08
	lnsFixedAdvancePC   = 0x09
	lnsSetPrologueEnd   = 0x0a
	lnsSetEpilogueBegin = 0x0b
	lnsSetISA           = 0x0c

	lneEndSequence      = 0x01
	lneSetAddress       = 0x02
	lneSetDiscriminator = 0x04

	opcodeBase = 13
	lineRange  = 14
)

// standardOpcodeLengths is the number of ULEB128 operands taken by each
// standard opcode 1..opcodeBase-1, per the DWARF4 line program header.
var standardOpcodeLengths = []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}

// encodeLineProgram serializes one compilation unit's rewritten line table
// into a standalone DWARF4 .debug_line unit, always using DW_LNE_set_address
// to place every row rather than the special-opcode address/line matrix: the
// rewritten rows no longer keep the tight address locality that makes that
// compression worthwhile, since the whole point of translation is that
// addresses move around.
func encodeLineProgram(prog *LineProgram, addressSize int) []byte {
	var headerSuffix bytes.Buffer
	headerSuffix.WriteByte(1) // minimum_instruction_length
	headerSuffix.WriteByte(1) // maximum_operations_per_instruction
	headerSuffix.WriteByte(1) // default_is_stmt
	headerSuffix.WriteByte(byte(prog.LineBase))
	headerSuffix.WriteByte(lineRange)
	headerSuffix.WriteByte(opcodeBase)
	headerSuffix.Write(standardOpcodeLengths)

	// directory k (k >= 1) of prog.Directories; index 0 is the implicit
	// compilation directory and is never written to the physical table.
	if len(prog.Directories) > 1 {
		for _, dir := range prog.Directories[1:] {
			headerSuffix.WriteString(dir)
			headerSuffix.WriteByte(0)
		}
	}
	headerSuffix.WriteByte(0) // include_directories terminator

	for _, f := range prog.Files {
		headerSuffix.WriteString(f.Name)
		headerSuffix.WriteByte(0)
		headerSuffix.Write(leb128.EncodeULEB128(nil, uint64(f.DirIndex)))
		headerSuffix.Write(leb128.EncodeULEB128(nil, f.Mtime))
		headerSuffix.Write(leb128.EncodeULEB128(nil, f.Length))
	}
	headerSuffix.WriteByte(0) // file_names terminator

	var program bytes.Buffer
	for _, seq := range prog.Sequences {
		encodeLineSequence(&program, seq, addressSize)
	}

	unitLength := 2 + 4 + headerSuffix.Len() + program.Len()

	var unit bytes.Buffer
	var lengthField [4]byte
	binary.LittleEndian.PutUint32(lengthField[:], uint32(unitLength))
	unit.Write(lengthField[:])

	var versionAndHeaderLen [6]byte
	binary.LittleEndian.PutUint16(versionAndHeaderLen[0:2], uint16(dwarfVersion))
	binary.LittleEndian.PutUint32(versionAndHeaderLen[2:6], uint32(headerSuffix.Len()))
	unit.Write(versionAndHeaderLen[:])

	unit.Write(headerSuffix.Bytes())
	unit.Write(program.Bytes())

	return unit.Bytes()
}

func encodeLineSequence(buf *bytes.Buffer, seq LineSequence, addressSize int) {
	file, line, column := 1, 1, 0
	isStmt := true

	emitSetAddress := func(addr uint64) {
		buf.WriteByte(0)
		buf.Write(leb128.EncodeULEB128(nil, uint64(1+addressSize)))
		buf.WriteByte(lneSetAddress)
		writeSectionAddr(buf, addr, addressSize)
	}

	for _, row := range seq.Rows {
		emitSetAddress(row.Address)

		if row.File != 0 && row.File != file {
			buf.WriteByte(lnsSetFile)
			buf.Write(leb128.EncodeULEB128(nil, uint64(row.File)))
			file = row.File
		}
		if row.Line != line {
			buf.WriteByte(lnsAdvanceLine)
			buf.Write(leb128.EncodeSLEB128(nil, int64(row.Line-line)))
			line = row.Line
		}
		if row.Column != column {
			buf.WriteByte(lnsSetColumn)
			buf.Write(leb128.EncodeULEB128(nil, uint64(row.Column)))
			column = row.Column
		}
		if row.IsStmt != isStmt {
			buf.WriteByte(lnsNegateStmt)
			isStmt = row.IsStmt
		}
		if row.PrologueEnd {
			buf.WriteByte(lnsSetPrologueEnd)
		}
		if row.EpilogueBegin {
			buf.WriteByte(lnsSetEpilogueBegin)
		}
		if row.Discriminator != 0 {
			disc := leb128.EncodeULEB128(nil, uint64(row.Discriminator))
			buf.WriteByte(0)
			buf.Write(leb128.EncodeULEB128(nil, uint64(1+len(disc))))
			buf.WriteByte(lneSetDiscriminator)
			buf.Write(disc)
		}

		buf.WriteByte(lnsCopy)
	}

	if len(seq.Rows) == 0 {
		return
	}
	emitSetAddress(seq.EndAddress)
	buf.WriteByte(0)
	buf.Write(leb128.EncodeULEB128(nil, 1))
	buf.WriteByte(lneEndSequence)
}
