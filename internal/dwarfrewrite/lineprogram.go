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
	"debug/dwarf"
	"encoding/binary"
	"sort"

	"github.com/wasmdwarf/wasmdwarf/errors"
	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// LineRow is one emitted row of an output line-number program.
type LineRow struct {
	Address       uint64
	File          int // 1-based index into LineProgram.Files, 0 = unknown
	Line          int
	Column        int
	IsStmt        bool
	BasicBlock    bool
	PrologueEnd   bool
	EpilogueBegin bool
	Discriminator int
	ISA           int
}

// LineSequence is a maximal run of contiguous instructions, terminated by
// an end-of-sequence address one past its last row.
type LineSequence struct {
	Rows       []LineRow
	EndAddress uint64
}

// LineProgram is the rewritten, not-yet-encoded line-number program for one
// compilation unit.
type LineProgram struct {
	CompDir     string
	CompName    string
	Directories []string // index 0 unused (implicit CompDir); directory k is Directories[k]
	Files       []LineFile
	LineBase    int8
	Sequences   []LineSequence
}

// standard DWARF <= 4 line-number program opcodes, figure 39 of the DWARF4
// standard. define_file (0x03) is intentionally absent from a "standard
// opcode" role here: it's an extended opcode, handled below.
const (
	lneDefineFile = 0x03
)

// lineProgramHeader is the decoded form of a classic (DWARF <= 4) line
// program header, the only form this tool reads: DWARF5's directory/file
// entry format tables are a non-goal, consistent with the rest of the
// package's DWARF5 pass-through-only stance.
type lineProgramHeader struct {
	version           uint16
	minInstLen        uint8
	defaultIsStmt     bool
	lineBase          int8
	lineRange         uint8
	opcodeBase        uint8
	stdOpcodeLengths  []uint8
	directories       []string
	files             []LineFile
	programStart      int
	programEnd        int
}

// parseLineProgramHeader decodes the classic line-program header located at
// offset within section. unitLength bounds the program body.
func parseLineProgramHeader(section []byte, offset int64) (*lineProgramHeader, error) {
	pos := int(offset)
	unitLength := binary.LittleEndian.Uint32(section[pos : pos+4])
	programEnd := pos + 4 + int(unitLength)
	pos += 4

	h := &lineProgramHeader{}
	h.version = binary.LittleEndian.Uint16(section[pos : pos+2])
	pos += 2

	headerLength := binary.LittleEndian.Uint32(section[pos : pos+4])
	pos += 4
	headerStart := pos
	h.programStart = headerStart + int(headerLength)
	h.programEnd = programEnd

	h.minInstLen = section[pos]
	pos++
	if h.version >= 4 {
		pos++ // maximum_operations_per_instruction, VLIW only: unused
	}
	h.defaultIsStmt = section[pos] != 0
	pos++
	h.lineBase = int8(section[pos])
	pos++
	h.lineRange = section[pos]
	pos++
	h.opcodeBase = section[pos]
	pos++
	h.stdOpcodeLengths = section[pos : pos+int(h.opcodeBase)-1]
	pos += int(h.opcodeBase) - 1

	if h.lineBase > 0 {
		return nil, errors.Errorf(errors.InvalidLineBase, h.lineBase)
	}

	for {
		name, n := readCString(section[pos:])
		pos += n
		if name == "" {
			break
		}
		h.directories = append(h.directories, name)
	}

	for {
		name, n := readCString(section[pos:])
		pos += n
		if name == "" {
			break
		}
		dirIndex, n := leb128.DecodeULEB128(section[pos:])
		pos += n
		mtime, n := leb128.DecodeULEB128(section[pos:])
		pos += n
		length, n := leb128.DecodeULEB128(section[pos:])
		pos += n
		h.files = append(h.files, LineFile{Name: name, DirIndex: int(dirIndex), Mtime: mtime, Length: length})
	}

	if len(h.files) > 0 && h.files[0].DirIndex != 0 {
		return nil, errors.Errorf(errors.InvalidDirectoryIndex, h.files[0].DirIndex)
	}
	for _, f := range h.files {
		if f.DirIndex < 0 || f.DirIndex > len(h.directories) {
			return nil, errors.Errorf(errors.InvalidDirectoryIndex, f.DirIndex)
		}
	}

	return h, nil
}

func readCString(b []byte) (string, int) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), i + 1
		}
	}
	return string(b), len(b)
}

// rawRow is the line-number-program state machine's row register, tracked
// exactly as the DWARF line-number program defines it: addresses here are
// in the original (untranslated) address space until the owning sequence
// closes and its rows are translated as a batch.
type rawRow struct {
	address       uint64
	file          uint64
	line          int64
	column        uint64
	isStmt        bool
	basicBlock    bool
	prologueEnd   bool
	epilogueBegin bool
	discriminator uint64
	isa           uint64
	endSequence   bool
}

func (h *lineProgramHeader) initialRow() rawRow {
	return rawRow{file: 1, line: 1, isStmt: h.defaultIsStmt}
}

// convertLineProgram reads the input unit's line-number program directly
// from the raw .debug_line bytes, intercepting DW_LNE_set_address so the
// original-address context is preserved for translation and rejecting
// DW_LNE_define_file and a second DW_LNE_set_address within the same
// sequence, per the line-program rewrite's instruction-handling rules.
// lineSection is the raw .debug_line section payload; stmtListOffset is the
// CU's DW_AT_stmt_list value into it.
//
// It additionally returns the raw, file-register-aligned file name table
// (index k holds the name for DWARF file register k+1, so a decl_file
// value of idx indexes it at idx-1) and the name->output-index mapping used
// to renumber DW_AT_decl_file references against the freshly built Files
// table.
func convertLineProgram(lineSection []byte, stmtListOffset int64, cu *dwarf.Entry, addressSize int, t translate.Translator) (*LineProgram, []string, map[string]int, error) {
	if lineSection == nil {
		return nil, nil, nil, nil
	}

	h, err := parseLineProgramHeader(lineSection, stmtListOffset)
	if err != nil {
		return nil, nil, nil, err
	}

	compDir, ok := cu.Val(dwarf.AttrCompDir).(string)
	if !ok || compDir == "" {
		return nil, nil, nil, errors.Errorf(errors.MissingCompilationDirectory)
	}
	compName, ok := cu.Val(dwarf.AttrName).(string)
	if !ok || compName == "" {
		return nil, nil, nil, errors.Errorf(errors.MissingCompilationFile)
	}

	prog := &LineProgram{
		CompDir:     compDir,
		CompName:    compName,
		Directories: append([]string{""}, h.directories...),
		LineBase:    h.lineBase,
	}

	rawNames := make([]string, len(h.files))
	fileIndex := make(map[string]int)
	for i, f := range h.files {
		rawNames[i] = f.Name
		if _, ok := fileIndex[f.Name]; ok {
			continue
		}
		prog.Files = append(prog.Files, f)
		fileIndex[f.Name] = len(prog.Files)
	}

	seqs, err := decodeLineInstructions(lineSection, h, addressSize, t, rawNames, fileIndex)
	if err != nil {
		return nil, nil, nil, err
	}
	prog.Sequences = seqs

	return prog, rawNames, fileIndex, nil
}

// decodeLineInstructions walks the raw instruction stream from h.programStart
// to h.programEnd, accumulating one pending sequence at a time and handing
// each closed sequence to convertPendingSequence for translation.
func decodeLineInstructions(section []byte, h *lineProgramHeader, addressSize int, t translate.Translator, rawNames []string, fileIndex map[string]int) ([]LineSequence, error) {
	var out []LineSequence

	row := h.initialRow()
	var pending []rawRow
	inSequence := false

	pos := h.programStart
	for pos < h.programEnd {
		opcode := section[pos]
		pos++

		switch {
		case opcode == 0:
			length, n := leb128.DecodeULEB128(section[pos:])
			pos += n
			opEnd := pos + int(length)
			sub := section[pos]
			operand := section[pos+1 : opEnd]
			pos = opEnd

			switch sub {
			case lneEndSequence:
				row.endSequence = true
				pending = append(pending, row)
				seq := convertPendingSequence(pending, t, rawNames, fileIndex)
				if seq != nil {
					out = append(out, *seq)
				}
				pending = nil
				inSequence = false
				row = h.initialRow()

			case lneSetAddress:
				if inSequence {
					return nil, errors.Errorf(errors.UnsupportedLineInstruction, "DW_LNE_set_address")
				}
				row.address = decodeAddress(operand, addressSize)

			case lneDefineFile:
				return nil, errors.Errorf(errors.UnsupportedLineInstruction, "DW_LNE_define_file")

			case lneSetDiscriminator:
				v, _ := leb128.DecodeULEB128(operand)
				row.discriminator = v

			default:
				// vendor extension: operand already consumed above
			}

		case opcode < h.opcodeBase:
			switch opcode {
			case lnsCopy:
				pending = append(pending, row)
				inSequence = true
				row.basicBlock = false
				row.prologueEnd = false
				row.epilogueBegin = false
				row.discriminator = 0

			case lnsAdvancePC:
				v, n := leb128.DecodeULEB128(section[pos:])
				pos += n
				row.address += uint64(h.minInstLen) * v

			case lnsAdvanceLine:
				v, n := leb128.DecodeSLEB128(section[pos:])
				pos += n
				row.line += v

			case lnsSetFile:
				v, n := leb128.DecodeULEB128(section[pos:])
				pos += n
				row.file = v

			case lnsSetColumn:
				v, n := leb128.DecodeULEB128(section[pos:])
				pos += n
				row.column = v

			case lnsNegateStmt:
				row.isStmt = !row.isStmt

			case lnsSetBasicBlock:
				row.basicBlock = true

			case lnsConstAddPC:
				adjusted := 255 - uint64(h.opcodeBase)
				row.address += uint64(h.minInstLen) * (adjusted / uint64(h.lineRange))

			case lnsFixedAdvancePC:
				row.address += uint64(binary.LittleEndian.Uint16(section[pos : pos+2]))
				pos += 2

			case lnsSetPrologueEnd:
				row.prologueEnd = true

			case lnsSetEpilogueBegin:
				row.epilogueBegin = true

			case lnsSetISA:
				v, n := leb128.DecodeULEB128(section[pos:])
				pos += n
				row.isa = v

			default:
				// opcode_base declared an opcode number this package doesn't
				// assign meaning to; skip its declared ULEB128 operands.
				for i := uint8(0); i < h.stdOpcodeLengths[opcode-1]; i++ {
					_, n := leb128.DecodeULEB128(section[pos:])
					pos += n
				}
			}

		default:
			adjusted := uint64(opcode) - uint64(h.opcodeBase)
			row.address += uint64(h.minInstLen) * (adjusted / uint64(h.lineRange))
			row.line += int64(h.lineBase) + int64(adjusted%uint64(h.lineRange))
			pending = append(pending, row)
			inSequence = true
			row.basicBlock = false
			row.prologueEnd = false
			row.epilogueBegin = false
			row.discriminator = 0
		}
	}

	return out, nil
}

func decodeAddress(b []byte, addressSize int) uint64 {
	switch addressSize {
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		var v uint64
		for i := 0; i < len(b) && i < 4; i++ {
			v |= uint64(b[i]) << (8 * uint(i))
		}
		return v
	}
}

type targetRow struct {
	address uint64
	row     rawRow
}

// convertPendingSequence translates one closed sequence's rows as a batch:
// the sequence's base address (the first row's original address) is
// translated once, every row's offset from that base is translated
// relative to it (possibly fanning out to several target rows per input
// row), the results are sorted into target-address order, and the
// sequence's closing address is translated independently since it may land
// past every row's target.
func convertPendingSequence(pending []rawRow, t translate.Translator, rawNames []string, fileIndex map[string]int) *LineSequence {
	if len(pending) == 0 {
		return nil
	}

	outputFile := func(raw uint64) int {
		if raw == 0 || int(raw)-1 < 0 || int(raw)-1 >= len(rawNames) {
			return 0
		}
		return fileIndex[rawNames[raw-1]]
	}

	base := pending[0].address
	translatedBase, ok := translate.TranslateBaseAddress(t, base)
	if !ok || translatedBase.Kind != translate.Constant || translatedBase.Value == 0 {
		return nil
	}

	var targets []targetRow
	for _, row := range pending {
		if row.endSequence {
			continue
		}
		for _, off := range translate.TranslateOffset(t, base, row.address-base) {
			targets = append(targets, targetRow{address: translatedBase.Value + off, row: row})
		}
	}
	if len(targets) == 0 {
		return nil
	}

	sort.SliceStable(targets, func(i, j int) bool { return targets[i].address < targets[j].address })

	seq := &LineSequence{}
	for _, tr := range targets {
		seq.Rows = append(seq.Rows, LineRow{
			Address:       tr.address,
			File:          outputFile(tr.row.file),
			Line:          int(tr.row.line),
			Column:        int(tr.row.column),
			IsStmt:        tr.row.isStmt,
			BasicBlock:    tr.row.basicBlock,
			PrologueEnd:   tr.row.prologueEnd,
			EpilogueBegin: tr.row.epilogueBegin,
			Discriminator: int(tr.row.discriminator),
			ISA:           int(tr.row.isa),
		})
	}

	end := pending[len(pending)-1]
	endAddr := seq.Rows[len(seq.Rows)-1].Address + 1
	if endTranslated, ok := translate.TranslateBaseAddress(t, end.address); ok && endTranslated.Kind == translate.Constant && endTranslated.Value > seq.Rows[len(seq.Rows)-1].Address {
		endAddr = endTranslated.Value
	}
	seq.EndAddress = endAddr

	return seq
}
