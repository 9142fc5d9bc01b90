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

import "github.com/wasmdwarf/wasmdwarf/errors"

// DWARF attribute-value form codes (DWARF4 figure 20). debug/dwarf doesn't
// export these since it only ever reads them; the encoder has to choose
// and emit them itself, so they're declared here instead.
const (
	dwFormAddr       = 0x01
	dwFormBlock2     = 0x03
	dwFormBlock4     = 0x04
	dwFormData2      = 0x05
	dwFormData4      = 0x06
	dwFormData8      = 0x07
	dwFormString     = 0x08
	dwFormBlock      = 0x09
	dwFormBlock1     = 0x0a
	dwFormData1      = 0x0b
	dwFormFlag       = 0x0c
	dwFormSdata      = 0x0d
	dwFormStrp       = 0x0e
	dwFormUdata      = 0x0f
	dwFormRefAddr    = 0x10
	dwFormRef1       = 0x11
	dwFormRef2       = 0x12
	dwFormRef4       = 0x13
	dwFormRef8       = 0x14
	dwFormRefUdata   = 0x15
	dwFormIndirect   = 0x16
	dwFormSecOffset  = 0x17
	dwFormExprloc    = 0x18
	dwFormFlagPresent = 0x19
	dwFormRefSig8    = 0x20
)

// formFor returns the wire form this rewriter uses to encode v. The choice
// depends only on the ValueKind and, for VConst, on Width: it never depends
// on the specific value, which is what lets size computation run as a
// single forward pass (see encode.go).
func formFor(v Value) (byte, error) {
	switch v.Kind {
	case VAddress:
		return dwFormAddr, nil
	case VConst:
		switch v.Width {
		case 1:
			return dwFormData1, nil
		case 2:
			return dwFormData2, nil
		case 4:
			return dwFormData4, nil
		case 8:
			return dwFormData8, nil
		default:
			return dwFormUdata, nil
		}
	case VSConst:
		return dwFormSdata, nil
	case VFlag:
		return dwFormFlag, nil
	case VBlock:
		return dwFormExprloc, nil
	case VStringRef:
		return dwFormStrp, nil
	case VLineProgramRef, VRangeListRef, VLocationListRef:
		return dwFormSecOffset, nil
	case VFileIndex:
		return dwFormUdata, nil
	case VThisUnitRef:
		return dwFormRef4, nil
	case VCrossUnitRef:
		return dwFormRefAddr, nil
	default:
		return 0, errors.Errorf(errors.UnencodableValue, v.Kind)
	}
}
