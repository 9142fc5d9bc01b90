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

// Package wasmmod parses and reframes the WebAssembly module container: the
// 8-byte header, the LEB128-framed section stream, extraction of the custom
// debug sections a rewrite consumes, and re-framing of the sections a
// rewrite produces.
package wasmmod

import (
	"bytes"
	"strings"

	"github.com/wasmdwarf/wasmdwarf/errors"
	"github.com/wasmdwarf/wasmdwarf/internal/leb128"
)

// Header is the fixed 8-byte WebAssembly module preamble: magic number
// followed by version, both little-endian.
var Header = [8]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

const (
	secCustom = 0
	secCode   = 10
)

// Section is one top-level section of a parsed module: its id, the raw
// payload bytes (not including the id byte or the length prefix), and for
// custom sections, the decoded name.
type Section struct {
	ID      byte
	Name    string // only meaningful when ID == secCustom
	Payload []byte
}

// Module is a parsed WebAssembly container: the original header bytes and
// its sections in file order.
type Module struct {
	Header   [8]byte
	Sections []Section
}

// Parse splits a module's bytes into its header and section stream.
func Parse(data []byte) (*Module, error) {
	if len(data) < 8 {
		return nil, errors.Errorf(errors.WasmError, "module too short for header")
	}

	var hdr [8]byte
	copy(hdr[:], data[:8])
	if hdr != Header {
		return nil, errors.Errorf(errors.WasmError, "not a WebAssembly module (bad magic/version)")
	}

	m := &Module{Header: hdr}
	rest := data[8:]
	for len(rest) > 0 {
		id := rest[0]
		rest = rest[1:]

		length, n := leb128.DecodeULEB128(rest)
		if n == 0 || n > len(rest) {
			return nil, errors.Errorf(errors.WasmError, "truncated section length")
		}
		rest = rest[n:]

		if uint64(len(rest)) < length {
			return nil, errors.Errorf(errors.WasmError, "truncated section payload")
		}
		payload := rest[:length]
		rest = rest[length:]

		sec := Section{ID: id, Payload: payload}
		if id == secCustom {
			name, body, err := splitCustomName(payload)
			if err != nil {
				return nil, err
			}
			sec.Name = name
			sec.Payload = body
		}
		m.Sections = append(m.Sections, sec)
	}

	return m, nil
}

func splitCustomName(payload []byte) (string, []byte, error) {
	nameLen, n := leb128.DecodeULEB128(payload)
	if n == 0 || uint64(n)+nameLen > uint64(len(payload)) {
		return "", nil, errors.Errorf(errors.WasmError, "truncated custom section name")
	}
	name := string(payload[n : n+int(nameLen)])
	return name, payload[n+int(nameLen):], nil
}

// isDebugSection reports whether a custom section name is one of the
// standard DWARF-for-WebAssembly names this tool rewrites: the .debug_* set
// plus the .eh_frame* exception-unwinding sections that travel alongside it.
func isDebugSection(name string) bool {
	return strings.HasPrefix(name, ".debug_") || strings.HasPrefix(name, ".eh_frame")
}

// DebugSections returns the module's custom sections whose name matches the
// debug-section set, in file order.
func (m *Module) DebugSections() []Section {
	var out []Section
	for _, s := range m.Sections {
		if s.ID == secCustom && isDebugSection(s.Name) {
			out = append(out, s)
		}
	}
	return out
}

// NonDebugBytes returns the module re-serialized with every debug custom
// section omitted: every other section (including non-debug custom
// sections) is kept verbatim in its original framing.
func (m *Module) NonDebugBytes() []byte {
	var buf bytes.Buffer
	buf.Write(m.Header[:])
	for _, s := range m.Sections {
		if s.ID == secCustom && isDebugSection(s.Name) {
			continue
		}
		writeSectionVerbatim(&buf, s)
	}
	return buf.Bytes()
}

func writeSectionVerbatim(buf *bytes.Buffer, s Section) {
	var body bytes.Buffer
	if s.ID == secCustom {
		body.Write(leb128.EncodeULEB128(nil, uint64(len(s.Name))))
		body.WriteString(s.Name)
	}
	body.Write(s.Payload)

	buf.WriteByte(s.ID)
	buf.Write(leb128.EncodeULEB128(nil, uint64(body.Len())))
	buf.Write(body.Bytes())
}

// CodeRanges enumerates the half-open byte ranges of each function body
// within the code section's payload, relative to the start of that payload
// (i.e. the same coordinate space the source map's generated-column field is
// expressed in once the caller's code-section offset has been subtracted).
// It does not decode function bodies, only the length-prefixed framing that
// separates them, since that is all a rewrite needs to build the
// "surviving functions" table.
func (m *Module) CodeRanges() ([][2]uint64, error) {
	for _, s := range m.Sections {
		if s.ID != secCode {
			continue
		}
		return decodeCodeRanges(s.Payload)
	}
	return nil, nil
}

func decodeCodeRanges(payload []byte) ([][2]uint64, error) {
	count, n := leb128.DecodeULEB128(payload)
	if n == 0 {
		return nil, errors.Errorf(errors.WasmError, "truncated code section function count")
	}
	pos := uint64(n)

	ranges := make([][2]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		if pos >= uint64(len(payload)) {
			return nil, errors.Errorf(errors.WasmError, "truncated code section entry")
		}
		bodyLen, ln := leb128.DecodeULEB128(payload[pos:])
		if ln == 0 {
			return nil, errors.Errorf(errors.WasmError, "truncated function body length")
		}
		pos += uint64(ln)
		begin := pos
		end := begin + bodyLen
		if end > uint64(len(payload)) {
			return nil, errors.Errorf(errors.WasmError, "function body overruns code section")
		}
		ranges = append(ranges, [2]uint64{begin, end})
		pos = end
	}
	return ranges, nil
}

// EncodeDebugSection frames a rewritten DWARF section as a WebAssembly
// custom section: a section id of 0, a LEB128 body length, a LEB128 name
// length, the name bytes, then the DWARF section bytes verbatim.
func EncodeDebugSection(name string, dwarfBytes []byte) []byte {
	var body bytes.Buffer
	body.Write(leb128.EncodeULEB128(nil, uint64(len(name))))
	body.WriteString(name)
	body.Write(dwarfBytes)

	var out bytes.Buffer
	out.WriteByte(secCustom)
	out.Write(leb128.EncodeULEB128(nil, uint64(body.Len())))
	out.Write(body.Bytes())
	return out.Bytes()
}
