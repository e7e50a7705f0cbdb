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

func isMarker(x lisp.Value, marker *lisp.Symbol) bool {
	return x.IsCons() && x.Car() == lisp.NewSymbolValue(marker) && x.Cdr().IsCons() && x.Cddr().IsNil()
}

// backquote rewrites the template x into list-building code. depth counts
// the enclosing backquotes; commas belong to the innermost one and only
// unquote at depth 1.
func (c *Compiler) backquote(form, x lisp.Value, depth int) lisp.Value {
	s := c.s
	if !x.IsCons() {
		if x.IsSymbol() && !x.Symbol().IsKeyword() {
			return c.quoted(x)
		}
		return x
	}
	switch {
	case isMarker(x, s.Comma):
		if depth == 1 {
			return x.Cadr()
		}
		return lisp.List(c.sym("list"), c.quoted(x.Car()), c.backquote(form, x.Cadr(), depth-1))
	case isMarker(x, s.CommaAt):
		if depth == 1 {
			c.malformed(form, ",@ outside of a list")
		}
		return lisp.List(c.sym("list"), c.quoted(x.Car()), c.backquote(form, x.Cadr(), depth-1))
	case isMarker(x, s.Backquote):
		return lisp.List(c.sym("list"), c.quoted(x.Car()), c.backquote(form, x.Cadr(), depth+1))
	}

	var segments, pending []lisp.Value
	flush := func() {
		if len(pending) > 0 {
			segments = append(segments, lisp.ListStar(lisp.List(pending...), c.sym("list")))
			pending = nil
		}
	}
	tail := lisp.Nil
	for first := true; x.IsCons(); first = false {
		// (a . ,b) reads as (a comma b)
		if !first && (isMarker(x, s.Comma) || isMarker(x, s.CommaAt) || isMarker(x, s.Backquote)) {
			if isMarker(x, s.CommaAt) && depth == 1 {
				c.malformed(form, ",@ after dot")
			}
			tail = c.backquote(form, x, depth)
			x = lisp.Nil
			break
		}
		el := x.Car()
		if isMarker(el, s.CommaAt) && depth == 1 {
			flush()
			segments = append(segments, el.Cadr())
		} else {
			pending = append(pending, c.backquote(form, el, depth))
		}
		x = x.Cdr()
	}
	if !x.IsNil() {
		tail = c.backquote(form, x, depth)
	}

	if !tail.IsNil() && len(segments) == 0 {
		// only plain elements and a dotted tail
		return lisp.ListStar(lisp.List(append(pending, tail)...), c.sym("list*"))
	}
	flush()
	if !tail.IsNil() {
		segments = append(segments, tail)
	}
	if len(segments) == 1 {
		return segments[0]
	}
	return lisp.ListStar(lisp.List(segments...), c.sym("append"))
}
