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

package sourcemap

import (
	"fmt"
	"strings"

	"github.com/wasmdwarf/wasmdwarf/errors"
	"github.com/wasmdwarf/wasmdwarf/internal/addrmap"
)

// base64 VLQ alphabet, as used by every source-map implementation.
const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var vlqDigit [256]int8

func init() {
	for i := range vlqDigit {
		vlqDigit[i] = -1
	}
	for i := 0; i < len(vlqAlphabet); i++ {
		vlqDigit[vlqAlphabet[i]] = int8(i)
	}
}

const (
	vlqContinuationBit = 0x20
	vlqValueMask       = 0x1f
	vlqShift           = 5
)

// decodeVLQSegment reads one base64-VLQ encoded signed integer starting at
// s[pos], the same continuation/sign-bit shape as the ULEB128/SLEB128 family
// this module already decodes for DWARF, just a 5-bit-per-digit base64
// alphabet instead of a raw byte stream. Returns the value and the position
// just past the consumed digits.
func decodeVLQSegment(s string, pos int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if pos >= len(s) {
			return 0, pos, errors.Errorf(errors.SourceMapError, "truncated VLQ value")
		}
		d := vlqDigit[s[pos]]
		pos++
		if d < 0 {
			return 0, pos, errors.Errorf(errors.SourceMapError, fmt.Sprintf("invalid VLQ digit %q", s[pos-1]))
		}
		result |= int64(d&vlqValueMask) << shift
		shift += vlqShift
		if d&vlqContinuationBit == 0 {
			break
		}
	}

	negative := result&1 != 0
	result >>= 1
	if negative {
		result = -result
	}
	return result, pos, nil
}

// decodeMappings decodes the comma-separated run of VLQ quintuples into
// keypoints in encounter order. Each segment carries five fields; per the
// external-interface description only fields 1 (generated/target column) and
// 4 (original column) are meaningful here, but all five are decoded because
// each is an independent running delta and skipping one would desynchronize
// the accumulators for the fields that follow it.
func decodeMappings(mappings string, codeSectionOffset uint64) ([]Keypoint, error) {
	if mappings == "" {
		return nil, nil
	}

	var accum [5]int64
	var keypoints []Keypoint

	for _, segment := range strings.Split(mappings, ",") {
		if segment == "" {
			continue
		}

		pos := 0
		for field := 0; field < 5; field++ {
			if pos >= len(segment) {
				return nil, errors.Errorf(errors.SourceMapError, fmt.Sprintf("segment %q has fewer than 5 fields", segment))
			}
			delta, next, err := decodeVLQSegment(segment, pos)
			if err != nil {
				return nil, err
			}
			accum[field] += delta
			pos = next
		}
		if pos != len(segment) {
			return nil, errors.Errorf(errors.SourceMapError, fmt.Sprintf("segment %q has trailing data", segment))
		}

		target := accum[1] - int64(codeSectionOffset)
		if target < 0 {
			return nil, errors.Errorf(errors.SourceMapError, fmt.Sprintf("generated column %d precedes code section offset %d", accum[1], codeSectionOffset))
		}
		original := accum[4]
		if original < 0 {
			return nil, errors.Errorf(errors.SourceMapError, fmt.Sprintf("negative original column %d", original))
		}

		keypoints = append(keypoints, Keypoint{
			Target:   addrmap.TargetAddress(target),
			Original: addrmap.OriginalAddress(original),
		})
	}

	return keypoints, nil
}
