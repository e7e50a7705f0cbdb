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

import "sync/atomic"

// Symbol is an interned (or uninterned) name with its value, function and
// property cells.
type Symbol struct {
	Name     string
	Package  *Package // nil for uninterned symbols
	Value    Value    // global value cell, Unbound when empty
	Function Value    // function cell, Unbound when empty
	Plist    Value

	special  bool
	constant bool
	// number of live dynamic bindings across all machines; the bound
	// values themselves live in each machine's B register
	depth atomic.Int32
}

// NewSymbol creates an uninterned symbol.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, Value: Unbound, Function: Unbound}
}

func (s *Symbol) IsKeyword() bool {
	return s.Package != nil && s.Package.keyword
}

func (s *Symbol) IsSpecial() bool  { return s.special }
func (s *Symbol) IsConstant() bool { return s.constant }

// Proclaim marks s as a special (dynamically scoped) variable.
func (s *Symbol) Proclaim() { s.special = true }

// MakeConstant sets the value cell and forbids further assignment.
func (s *Symbol) MakeConstant(v Value) {
	s.Value = v
	s.constant = true
	s.special = true
}

func (s *Symbol) BindingDepth() int32 { return s.depth.Load() }

// EnterBinding and LeaveBinding adjust the dynamic binding counter.
func (s *Symbol) EnterBinding() { s.depth.Add(1) }
func (s *Symbol) LeaveBinding() { s.depth.Add(-1) }

func (s *Symbol) Boundp() bool  { return !s.Value.IsUnbound() }
func (s *Symbol) Fboundp() bool { return !s.Function.IsUnbound() }

// Get reads a property from the plist.
func (s *Symbol) Get(indicator Value) Value {
	for p := s.Plist; p.IsCons(); p = p.Cddr() {
		if p.Car() == indicator {
			return p.Cadr()
		}
	}
	return Nil
}

// Put sets a property on the plist.
func (s *Symbol) Put(indicator, v Value) {
	for p := s.Plist; p.IsCons(); p = p.Cddr() {
		if p.Car() == indicator {
			Rplaca(p.Cdr(), v)
			return
		}
	}
	s.Plist = ListStar(s.Plist, indicator, v)
}

func (s *Symbol) String() string {
	return (&Printer{Escape: true}).Sprint(NewSymbolValue(s))
}
