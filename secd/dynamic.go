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
package secd

import "github.com/launix-de/secdlisp/lisp"

// SymbolValue reads sym through this machine's dynamic bindings, falling
// back to the global value cell.
func (m *Machine) SymbolValue(sym *lisp.Symbol) (lisp.Value, bool) {
	if sym.BindingDepth() > 0 {
		if stack := m.B[sym]; len(stack) > 0 {
			return stack[len(stack)-1], true
		}
	}
	v := sym.Value
	return v, !v.IsUnbound()
}

// SetSymbolValue assigns the innermost dynamic binding of sym, or its
// global cell when it is not dynamically bound here.
func (m *Machine) SetSymbolValue(sym *lisp.Symbol, v lisp.Value) error {
	if sym.IsConstant() {
		return lisp.WithSymbol(m.fault("cannot assign constant %s", sym.Name), sym)
	}
	if sym.BindingDepth() > 0 {
		if stack := m.B[sym]; len(stack) > 0 {
			stack[len(stack)-1] = v
			return nil
		}
	}
	sym.Value = v
	return nil
}

// binding is one entry of the trail; serial numbers grow with every bind.
type binding struct {
	sym    *lisp.Symbol
	serial uint64
}

type lostBinding struct {
	binding
	value lisp.Value
}

// Bind pushes a dynamic binding of sym.
func (m *Machine) Bind(sym *lisp.Symbol, v lisp.Value) {
	m.serial++
	m.B[sym] = append(m.B[sym], v)
	m.trail = append(m.trail, binding{sym, m.serial})
	sym.EnterBinding()
}

// Unbind pops the innermost dynamic binding of sym.
func (m *Machine) Unbind(sym *lisp.Symbol) error {
	stack := m.B[sym]
	if len(stack) == 0 {
		return lisp.WithSymbol(m.fault("%s is not dynamically bound", sym.Name), sym)
	}
	for i := len(m.trail) - 1; i >= 0; i-- {
		if m.trail[i].sym == sym {
			if m.running && m.trail[i].serial <= m.mark {
				m.lost = append(m.lost, lostBinding{m.trail[i], stack[len(stack)-1]})
			}
			m.trail = append(m.trail[:i], m.trail[i+1:]...)
			break
		}
	}
	m.popBinding(sym)
	return nil
}

func (m *Machine) popBinding(sym *lisp.Symbol) {
	stack := m.B[sym]
	if len(stack) == 1 {
		delete(m.B, sym)
	} else {
		m.B[sym] = stack[:len(stack)-1]
	}
	sym.LeaveBinding()
}

// unwindTo undoes the bindings made after serial mark.
func (m *Machine) unwindTo(mark uint64) {
	for len(m.trail) > 0 && m.trail[len(m.trail)-1].serial > mark {
		last := len(m.trail) - 1
		m.popBinding(m.trail[last].sym)
		m.trail = m.trail[:last]
	}
}

// restoreLost puts back the older bindings a failed run unbound, newest
// removal first, each at its place in the trail.
func (m *Machine) restoreLost() {
	for i := len(m.lost) - 1; i >= 0; i-- {
		l := m.lost[i]
		m.B[l.sym] = append(m.B[l.sym], l.value)
		l.sym.EnterBinding()
		at := len(m.trail)
		for at > 0 && m.trail[at-1].serial > l.serial {
			at--
		}
		m.trail = append(m.trail, binding{})
		copy(m.trail[at+1:], m.trail[at:])
		m.trail[at] = l.binding
	}
	m.lost = m.lost[:0]
}

// BindingDepth is the number of live dynamic bindings on this machine.
func (m *Machine) BindingDepth() int { return len(m.trail) }

// Reset drops every dynamic binding of the machine.
func (m *Machine) Reset() {
	m.unwindTo(0)
	m.lost = m.lost[:0]
}
