/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package lisp

// Eq is identity.
func Eq(a, b Value) bool {
	return a == b
}

// Eql is Eq plus value equality of numbers and characters of the same type.
func Eql(a, b Value) bool {
	if a == b {
		return true
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TBigInteger:
		return a.BigInt().Cmp(b.BigInt()) == 0
	case TReal:
		return a.Real() == b.Real()
	}
	return false
}

// Equal compares conses and strings structurally, everything else by Eql.
func Equal(a, b Value) bool {
	for {
		if Eql(a, b) {
			return true
		}
		if a.typ != b.typ {
			return false
		}
		switch a.typ {
		case TString:
			x, y := a.StringObject().Runes, b.StringObject().Runes
			if len(x) != len(y) {
				return false
			}
			for i := range x {
				if x[i] != y[i] {
					return false
				}
			}
			return true
		case TCons:
			if !Equal(a.Car(), b.Car()) {
				return false
			}
			a, b = a.Cdr(), b.Cdr()
		default:
			return false
		}
	}
}
