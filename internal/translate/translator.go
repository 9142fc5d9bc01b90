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

package translate

import (
	"github.com/wasmdwarf/wasmdwarf/logger"
)

// Range is a (Address, length) pair: a translated target-address interval.
type Range struct {
	Addr   Address
	Length uint64
}

// Translator is the polymorphic façade consumed by the rewrite pass. It has
// two concrete implementations: Identity (no code movement) and Transform
// (backed by an addrmap.Index). The rewriter and the graph builder call
// every translation, range and line translation included, through this
// interface.
type Translator interface {
	// TranslateAddress returns every target address that original maps to.
	TranslateAddress(original uint64) []Address

	// TranslateRange returns the target-address intervals that
	// [original, original+length) maps to.
	TranslateRange(original uint64, length uint64) []Range

	// TranslateFunctionRange returns the single target-side function range
	// enclosing [original, original+length), if any.
	TranslateFunctionRange(original uint64, length uint64) (Range, bool)
}

// TranslateBaseAddress returns the translation of original with the
// smallest target coordinate, used to anchor DW_AT_low_pc-style base
// addresses. Comparing addresses of different kinds is a program error and
// is logged rather than silently swallowed, since it means the translator
// produced inconsistent output.
func TranslateBaseAddress(t Translator, original uint64) (Address, bool) {
	addrs := t.TranslateAddress(original)
	if len(addrs) == 0 {
		return Address{}, false
	}

	best := addrs[0]
	for _, a := range addrs[1:] {
		c, err := compare(best, a)
		if err != nil {
			logger.Logf(logger.Allow, "translate", "%v", err)
			continue
		}
		if c > 0 {
			best = a
		}
	}
	return best, true
}

// TranslateOffset translates base+offset relative to the translated base
// address, dropping any result that would precede the translated base (the
// out-of-order case called out in §4.4 of the design).
func TranslateOffset(t Translator, base uint64, off uint64) []uint64 {
	translatedBase, ok := TranslateBaseAddress(t, base)
	if !ok {
		return nil
	}

	var out []uint64
	for _, a := range t.TranslateAddress(base + off) {
		c, err := compare(translatedBase, a)
		if err != nil {
			logger.Logf(logger.Allow, "translate", "%v", err)
			continue
		}
		if c > 0 {
			// translated target precedes translated base: out of order, drop
			continue
		}
		o, err := offset(translatedBase, a)
		if err != nil {
			logger.Logf(logger.Allow, "translate", "%v", err)
			continue
		}
		out = append(out, o)
	}
	return out
}

// CanTranslateAddress reports whether original translates to at least one
// target address.
func CanTranslateAddress(t Translator, original uint64) bool {
	return len(t.TranslateAddress(original)) > 0
}
