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

package sourcemap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmdwarf/wasmdwarf/internal/addrmap"
	"github.com/wasmdwarf/wasmdwarf/internal/sourcemap"
)

func TestParseRejectsNonVersion3(t *testing.T) {
	_, err := sourcemap.Parse([]byte(`{"version":2,"mappings":""}`), 0)
	require.Error(t, err)
}

func TestParseRejectsLineSeparators(t *testing.T) {
	_, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"AAAA;AAAA"}`), 0)
	require.Error(t, err)
}

func TestParseDecodesSingleSegment(t *testing.T) {
	// "AEAAI": field0="A" (0, placeholder), field1="E" (target delta +2),
	// field2="A", field3="A" (both 0, ignored), field4="I" (original delta +4).
	m, err := sourcemap.Parse([]byte(`{"version":3,"sources":["a.c"],"mappings":"AEAAI"}`), 0)
	require.NoError(t, err)
	require.Len(t, m.Keypoints, 1)
	require.EqualValues(t, 2, m.Keypoints[0].Target)
	require.EqualValues(t, 4, m.Keypoints[0].Original)
}

func TestParseSubtractsCodeSectionOffset(t *testing.T) {
	m, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"AEAAI"}`), 2)
	require.NoError(t, err)
	require.EqualValues(t, 0, m.Keypoints[0].Target)
}

func TestParseAccumulatesAcrossSegments(t *testing.T) {
	// two segments, each advancing the target field by 1 ("C"): targets
	// should be 1 and 2 since every field is an independent running delta.
	m, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"ACAAA,ACAAA"}`), 0)
	require.NoError(t, err)
	require.Len(t, m.Keypoints, 2)
	require.EqualValues(t, 1, m.Keypoints[0].Target)
	require.EqualValues(t, 2, m.Keypoints[1].Target)
}

func TestParseRejectsInvalidDigit(t *testing.T) {
	_, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"!AAAA"}`), 0)
	require.Error(t, err)
}

func TestParseRejectsShortSegment(t *testing.T) {
	_, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"AAAA"}`), 0)
	require.Error(t, err)
}

func TestBuildFeedsAddressMap(t *testing.T) {
	m, err := sourcemap.Parse([]byte(`{"version":3,"mappings":"AEAAI"}`), 0)
	require.NoError(t, err)
	am := m.Build()
	require.Equal(t, 1, am.NumRanges())
	_ = addrmap.TargetAddress(0)
}
