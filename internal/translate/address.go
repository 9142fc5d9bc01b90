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

// Package translate provides the AddressTranslator façade consumed by the
// rewrite pass: a small polymorphic interface, with an identity variant for
// "no code movement occurred" and a transform variant backed by an
// addrmap.Index.
package translate

import (
	"fmt"

	"github.com/wasmdwarf/wasmdwarf/errors"
)

// AddressKind distinguishes the two forms a translated address can take.
type AddressKind int

const (
	// Constant is a plain absolute offset.
	Constant AddressKind = iota
	// Symbol is a relocatable offset expressed as an addend against a named
	// symbol. Pass-through preservation only: this implementation never
	// manufactures Symbol addresses itself, but downstream DWARF forms that
	// carry them are represented faithfully.
	Symbol
)

// Address is either a Constant(value) or a Symbol{ID, Addend}. Arithmetic
// and comparison are defined only within a single variant; mixing them is a
// program error, signalled via errors.Errorf rather than a panic, since it
// always indicates a translator bug rather than bad input.
type Address struct {
	Kind   AddressKind
	Value  uint64 // meaningful when Kind == Constant
	Symbol uint64 // symbol id, meaningful when Kind == Symbol
	Addend int64  // meaningful when Kind == Symbol
}

// NewConstant builds a Constant address.
func NewConstant(v uint64) Address {
	return Address{Kind: Constant, Value: v}
}

// NewSymbol builds a Symbol address.
func NewSymbol(symbol uint64, addend int64) Address {
	return Address{Kind: Symbol, Symbol: symbol, Addend: addend}
}

func (a Address) String() string {
	switch a.Kind {
	case Constant:
		return fmt.Sprintf("Constant(%#x)", a.Value)
	case Symbol:
		return fmt.Sprintf("Symbol{%d,%+d}", a.Symbol, a.Addend)
	default:
		return "Address(?)"
	}
}

// compare orders two addresses of the same kind. Mixed kinds, or Symbol
// addresses with differing symbol ids, are a program error.
func compare(a, b Address) (int, error) {
	if a.Kind != b.Kind {
		return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
	}
	switch a.Kind {
	case Constant:
		switch {
		case a.Value < b.Value:
			return -1, nil
		case a.Value > b.Value:
			return 1, nil
		default:
			return 0, nil
		}
	case Symbol:
		if a.Symbol != b.Symbol {
			return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
		}
		switch {
		case a.Addend < b.Addend:
			return -1, nil
		case a.Addend > b.Addend:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
	}
}

// offset computes b - a for two addresses of the same kind.
func offset(a, b Address) (uint64, error) {
	if a.Kind != b.Kind {
		return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
	}
	switch a.Kind {
	case Constant:
		return b.Value - a.Value, nil
	case Symbol:
		if a.Symbol != b.Symbol {
			return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
		}
		return uint64(b.Addend - a.Addend), nil
	default:
		return 0, errors.Errorf(errors.IncompatibleAddresses, a, b)
	}
}
