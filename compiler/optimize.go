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
package compiler

import "github.com/launix-de/secdlisp/lisp"

// constantValue returns the value of a form that needs no evaluation.
func (c *Compiler) constantValue(form lisp.Value) (lisp.Value, bool) {
	switch {
	case form.IsSymbol():
		if form.Symbol().IsKeyword() {
			return form, true
		}
		return lisp.Nil, false
	case form.IsCons():
		if isMarker(form, c.s.Quote) {
			return form.Cadr(), true
		}
		return lisp.Nil, false
	}
	return form, true
}

// compilePrimitiveCall validates the argument count of a call to a
// primitive and folds it into a constant when the primitive is pure and
// every argument is constant. It returns false when the call still has to
// be emitted.
func (c *Compiler) compilePrimitiveCall(p *lisp.Primitive, form lisp.Value, sc *scope, tail bool, e *emitter) bool {
	n := form.Length() - 1
	if !p.AcceptsArity(n) {
		if p.Max < 0 {
			c.malformed(form, "%s expects at least %d arguments, got %d", p.Name, p.Min, n)
		}
		c.malformed(form, "%s expects %d to %d arguments, got %d", p.Name, p.Min, p.Max, n)
	}
	if !c.Fold || !p.Foldable {
		return false
	}
	args := make([]lisp.Value, 0, n)
	for a := form.Cdr(); a.IsCons(); a = a.Cdr() {
		v, ok := c.constantValue(a.Car())
		if !ok {
			return false
		}
		args = append(args, v)
	}
	result, ok := fold(p, args)
	if !ok {
		return false
	}
	e.op(lisp.LDC, result)
	c.ret(tail, e)
	return true
}

// fold runs p at compile time; failures are left for run time so the error
// is reported when the code actually executes.
func fold(p *lisp.Primitive, args []lisp.Value) (result lisp.Value, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	v, err := p.Fn(nil, args)
	if err != nil {
		return lisp.Nil, false
	}
	return v, true
}
