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

// Package sourcemap decodes the source-map-like JSON format that supplies the
// address-translation table for a rewrite: a version-3 envelope whose
// mappings string is a single run of comma-separated VLQ quintuples, with no
// line separators.
package sourcemap

import (
	"encoding/json"
	"fmt"

	"github.com/wasmdwarf/wasmdwarf/errors"
	"github.com/wasmdwarf/wasmdwarf/internal/addrmap"
)

// document is the on-disk JSON shape. Only the fields this tool consumes are
// declared; sourcesContent and similar extensions are ignored by omission.
type document struct {
	Version  int      `json:"version"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Map is a decoded source map: the address-translation keypoints, in the
// target order they appeared in the mappings string, plus the sources/names
// tables carried through for reference.
type Map struct {
	Sources []string
	Names   []string

	// Keypoints are (target, original) pairs in the order they were
	// encountered in the mappings string, i.e. target-ascending, ready to
	// feed directly to AddressMap.Insert.
	Keypoints []Keypoint
}

// Keypoint is one decoded (target, original) address correspondence, after
// the code-section base offset has been subtracted from the target side.
type Keypoint struct {
	Target   addrmap.TargetAddress
	Original addrmap.OriginalAddress
}

// Parse decodes a source map document and its mappings string. codeSectionOffset
// is subtracted from every decoded generated-column value to turn it into a
// target code-section-relative offset, per the external interface description.
func Parse(data []byte, codeSectionOffset uint64) (*Map, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Errorf(errors.SourceMapError, err)
	}
	if doc.Version != 3 {
		return nil, errors.Errorf(errors.SourceMapError, fmt.Sprintf("unsupported version (want 3, got %d)", doc.Version))
	}
	if containsSemicolon(doc.Mappings) {
		return nil, errors.Errorf(errors.SourceMapError, "mappings must not contain line separators")
	}

	keypoints, err := decodeMappings(doc.Mappings, codeSectionOffset)
	if err != nil {
		return nil, err
	}

	return &Map{
		Sources:   doc.Sources,
		Names:     doc.Names,
		Keypoints: keypoints,
	}, nil
}

func containsSemicolon(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			return true
		}
	}
	return false
}

// Build constructs an AddressMap from the decoded keypoints, inserting them
// in the order they were parsed (already target order, per the format's own
// streaming convention).
func (m *Map) Build() *addrmap.AddressMap {
	am := addrmap.New()
	for _, k := range m.Keypoints {
		am.Insert(k.Target, k.Original)
	}
	return am
}
