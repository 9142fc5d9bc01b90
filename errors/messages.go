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

package errors

// error messages used throughout the rewrite pipeline. each is meant to be
// used with Errorf() so that a causal chain can be built up without
// duplicating the tag at every level.
const (
	// line-number program header
	MissingCompilationDirectory = "line program: missing compilation directory"
	MissingCompilationFile      = "line program: missing compilation file"
	InvalidDirectoryIndex       = "line program: invalid directory index (%d)"
	InvalidFileIndex            = "line program: invalid file index (%d)"
	InvalidLineBase             = "line program: unsupported line_base (%d)"

	// line-number program instructions
	UnsupportedLineInstruction = "line program: unsupported instruction (%v)"
	UnsupportedLineStringForm  = "line program: unsupported line string form (%v)"

	// attribute conversion
	InvalidAttributeValue  = "attribute conversion: invalid value for %v (%v)"
	InvalidLineRef         = "attribute conversion: DW_AT_stmt_list does not match unit line program"
	InvalidDebugInfoOffset = "attribute conversion: reference does not resolve to an emitted entry (%#x)"

	// range and location lists
	InvalidRangeRelativeAddress = "range list: base address selection entry produced a non-constant address"

	// encoding
	UnencodableValue = "encode: value kind %v has no wire form"

	// address translation
	IncompatibleAddresses = "address translation: incompatible address kinds (%v, %v)"

	// driver / I/O
	ReadError      = "read error: %v"
	WriteError     = "write error: %v"
	WasmError      = "wasm module error: %v"
	SourceMapError = "source map error: %v"
)
