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

package depgraph

import (
	"debug/dwarf"

	"github.com/wasmdwarf/wasmdwarf/internal/translate"
)

// DWARF doesn't define tags for these two in the stdlib const table, but
// their numeric values are fixed by the standard (figure 3, DWARF4 s2.3).
const (
	tagCatchBlock dwarf.Tag = 0x25
	tagTryBlock   dwarf.Tag = 0x32
)

// structural tags get a parent->child edge in addition to the universal
// child->parent one: keeping the parent keeps these children too, since
// they're not independently meaningful without it.
var structuralChildTags = map[dwarf.Tag]bool{
	dwarf.TagVariable:             true,
	dwarf.TagConstant:             true,
	dwarf.TagInlinedSubroutine:    true,
	dwarf.TagLexDwarfBlock:        true,
	dwarf.TagLabel:                true,
	dwarf.TagWithStmt:             true,
	tagTryBlock:                   true,
	tagCatchBlock:                 true,
	dwarf.TagTemplateTypeParameter: true,
	dwarf.TagMember:               true,
	dwarf.TagFormalParameter:      true,
}

// Build walks every compilation unit in d in pre-order and returns the
// dependency graph describing which DIEs may be pruned once translated
// code addresses are known through at.
func Build(d *dwarf.Data, at translate.Translator) (*Graph, error) {
	g := New()

	r := d.Reader()
	var parents []Offset

	for {
		entry, err := r.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}

		if entry.Tag == 0 {
			// null entry: terminates the current sibling list
			if len(parents) > 0 {
				parents = parents[:len(parents)-1]
			}
			continue
		}

		if len(parents) > 0 {
			parent := parents[len(parents)-1]
			g.AddEdge(entry.Offset, parent)
			if structuralChildTags[entry.Tag] {
				g.AddEdge(parent, entry.Offset)
			}
		}

		for _, f := range entry.Field {
			switch f.Class {
			case dwarf.ClassReference:
				if ref, ok := f.Val.(dwarf.Offset); ok {
					g.AddEdge(entry.Offset, ref)
				}
			case dwarf.ClassAddress:
				if f.Attr == dwarf.AttrLowpc && entry.Tag == dwarf.TagSubprogram {
					if addr, ok := f.Val.(uint64); ok && translate.CanTranslateAddress(at, addr) {
						g.AddRoot(entry.Offset)
					}
				}
			}
		}

		if entry.Tag == dwarf.TagSubprogram {
			if entry.AttrField(dwarf.AttrRanges) != nil {
				// range contents aren't inspected; kept conservatively
				g.AddRoot(entry.Offset)
			}
		}

		if entry.Children {
			parents = append(parents, entry.Offset)
		}
	}

	return g, nil
}
