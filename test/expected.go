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

// Package test provides small helper functions shared by tests across the
// module. It is not meant for use outside of _test.go files.
package test

import (
	"math"
	"reflect"
	"testing"
)

// ExpectSuccess fails the test unless v indicates success. An error value
// must be nil. A bool value must be true. Anything else is compared against
// its zero value.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()

	switch v := v.(type) {
	case nil:
		return
	case error:
		if v != nil {
			t.Errorf("unexpected error: %v", v)
		}
	case bool:
		if !v {
			t.Errorf("expected success, got failure")
		}
	default:
		if reflect.ValueOf(v).IsZero() {
			t.Errorf("expected success, got zero value")
		}
	}
}

// ExpectFailure fails the test unless v indicates failure. The inverse of
// ExpectSuccess.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()

	switch v := v.(type) {
	case nil:
		t.Errorf("expected failure, got nil")
	case error:
		if v == nil {
			t.Errorf("expected failure, got nil error")
		}
	case bool:
		if v {
			t.Errorf("expected failure, got success")
		}
	default:
		if !reflect.ValueOf(v).IsZero() {
			t.Errorf("expected failure, got non-zero value")
		}
	}
}

// ExpectEquality fails the test unless a and b are deeply equal.
func ExpectEquality(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected equality: %#v != %#v", a, b)
	}
}

// ExpectInequality fails the test if a and b are deeply equal.
func ExpectInequality(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if reflect.DeepEqual(a, b) {
		t.Errorf("expected inequality: %#v == %#v", a, b)
	}
}

// ExpectApproximate fails the test unless a and b are within tolerance of
// one another.
func ExpectApproximate(t *testing.T, a float64, b float64, tolerance float64) {
	t.Helper()
	if math.Abs(a-b) > tolerance {
		t.Errorf("expected %f to be within %f of %f", a, tolerance, b)
	}
}
