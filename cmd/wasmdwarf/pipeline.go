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

package main

import (
	"debug/dwarf"
	"fmt"
	"os"

	"github.com/bradleyjkemp/memviz"
	"github.com/fatih/color"

	"github.com/wasmdwarf/wasmdwarf/internal/addrmap"
	"github.com/wasmdwarf/wasmdwarf/internal/depgraph"
	"github.com/wasmdwarf/wasmdwarf/internal/dwarfrewrite"
	"github.com/wasmdwarf/wasmdwarf/internal/sourcemap"
	"github.com/wasmdwarf/wasmdwarf/internal/translate"
	"github.com/wasmdwarf/wasmdwarf/internal/wasmmod"
	"github.com/wasmdwarf/wasmdwarf/logger"
)

// debugSectionNames lists the standard section names this tool round-trips,
// in the order they're re-emitted into the output module.
var debugSectionNames = []string{
	".debug_info", ".debug_abbrev", ".debug_str", ".debug_line", ".debug_ranges", ".debug_loc",
}

func runPipeline(opt options) error {
	srcBytes, err := os.ReadFile(opt.source)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	srcMod, err := wasmmod.Parse(srcBytes)
	if err != nil {
		return fmt.Errorf("parse source module: %w", err)
	}

	sections := debugSectionMap(srcMod)
	d, err := dwarf.New(sections[".debug_abbrev"], nil, nil, sections[".debug_info"], sections[".debug_line"], nil, sections[".debug_ranges"], sections[".debug_str"])
	if err != nil {
		return fmt.Errorf("parse DWARF: %w", err)
	}

	translator, err := buildTranslator(opt, srcMod)
	if err != nil {
		return err
	}

	graph, err := depgraph.Build(d, translator)
	if err != nil {
		return fmt.Errorf("build dependency graph: %w", err)
	}
	if opt.dumpGraph != "" {
		if err := dumpGraph(opt.dumpGraph, graph); err != nil {
			return fmt.Errorf("dump graph: %w", err)
		}
	}

	cuRoots, err := collectCURoots(d)
	if err != nil {
		return fmt.Errorf("walk compilation units: %w", err)
	}
	reachable := graph.GetReachable()
	keep := func(o dwarf.Offset) bool {
		if cuRoots[o] || graph.IsRoot(o) {
			return true
		}
		_, ok := reachable[o]
		return ok
	}

	rewritten, err := dwarfrewrite.Rewrite(d, translator, keep, sections[".debug_loc"], sections[".debug_line"])
	if err != nil {
		return fmt.Errorf("rewrite DWARF: %w", err)
	}

	encoded, err := dwarfrewrite.Encode(rewritten)
	if err != nil {
		return fmt.Errorf("encode DWARF: %w", err)
	}

	base := srcMod.NonDebugBytes()
	if opt.splice != "" {
		spliceBytes, err := os.ReadFile(opt.splice)
		if err != nil {
			return fmt.Errorf("read splice module: %w", err)
		}
		spliceMod, err := wasmmod.Parse(spliceBytes)
		if err != nil {
			return fmt.Errorf("parse splice module: %w", err)
		}
		base = spliceMod.NonDebugBytes()
	}

	out := append([]byte(nil), base...)
	sectionPayloads := map[string][]byte{
		".debug_info":   encoded.Info,
		".debug_abbrev": encoded.Abbrev,
		".debug_str":    encoded.Str,
		".debug_line":   encoded.Line,
		".debug_ranges": encoded.Ranges,
		".debug_loc":    encoded.Loc,
	}
	// iterate the fixed name order, not the map, so output bytes are
	// deterministic across runs of identical input.
	for _, name := range debugSectionNames {
		payload := sectionPayloads[name]
		if len(payload) == 0 {
			continue
		}
		out = append(out, wasmmod.EncodeDebugSection(name, payload)...)
	}

	if err := os.WriteFile(opt.output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	color.New(color.FgGreen).Fprintf(os.Stdout, "wasmdwarf: wrote %s (%d bytes, %d DIEs retained)\n", opt.output, len(out), len(reachable)+len(cuRoots))
	return nil
}

func debugSectionMap(m *wasmmod.Module) map[string][]byte {
	out := make(map[string][]byte)
	for _, s := range m.DebugSections() {
		out[s.Name] = s.Payload
	}
	return out
}

// buildTranslator resolves the Identity/Transform choice from §4.4: no
// source map means the code section didn't move.
func buildTranslator(opt options, srcMod *wasmmod.Module) (translate.Translator, error) {
	if opt.sourceMap == "" {
		return translate.Identity{FilterZero: true}, nil
	}

	data, err := os.ReadFile(opt.sourceMap)
	if err != nil {
		return nil, fmt.Errorf("read source map: %w", err)
	}

	var functionRanges []addrmap.FunctionRange
	functionMod := srcMod
	if opt.splice != "" {
		spliceBytes, err := os.ReadFile(opt.splice)
		if err != nil {
			return nil, fmt.Errorf("read splice module: %w", err)
		}
		spliceMod, err := wasmmod.Parse(spliceBytes)
		if err != nil {
			return nil, fmt.Errorf("parse splice module: %w", err)
		}
		functionMod = spliceMod
	}
	ranges, err := functionMod.CodeRanges()
	if err != nil {
		return nil, fmt.Errorf("enumerate function ranges: %w", err)
	}
	for _, r := range ranges {
		functionRanges = append(functionRanges, addrmap.FunctionRange{
			Begin: addrmap.TargetAddress(r[0]),
			End:   addrmap.TargetAddress(r[1]),
		})
	}

	sm, err := sourcemap.Parse(data, 0)
	if err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}

	idx := addrmap.BuildIndex(sm.Build(), functionRanges)
	return translate.NewTransform(idx), nil
}

// collectCURoots returns the offset of every compilation unit's root DIE:
// the rewrite's unit pass always retains these regardless of what the
// dependency graph says, per §4.5's closing note.
func collectCURoots(d *dwarf.Data) (map[dwarf.Offset]bool, error) {
	roots := make(map[dwarf.Offset]bool)
	r := d.Reader()
	depth := 0
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			depth--
			continue
		}
		if depth == 0 {
			roots[entry.Offset] = true
		}
		if entry.Children {
			depth++
		}
	}
	return roots, nil
}

func dumpGraph(path string, g *depgraph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	logger.Logf(logger.Allow, "graph", "dumping dependency graph to %s", path)
	memviz.Map(f, g)
	return nil
}
