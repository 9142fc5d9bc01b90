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

// Package leb128 implements the Variable Length Data encoding method used
// throughout DWARF and the WebAssembly binary format.
//
// Details of the method can be found in the DWARF4 Standard on page 161, "7.6
// Variable Length Data". The WebAssembly framing of custom sections (module
// and section body lengths, name lengths) uses the same unsigned encoding,
// capped at five bytes for the 32-bit values involved.
package leb128
