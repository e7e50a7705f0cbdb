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

import "unsafe"

// Cons is a mutable pair. Cells are shared by pointer, so rplaca/rplacd
// and cyclic structures work on the cell behind the handle.
type Cons struct {
	Car Value
	Cdr Value
}

func NewCons(car, cdr Value) Value {
	return Value{ptr: unsafe.Pointer(&Cons{Car: car, Cdr: cdr}), typ: TCons}
}

// Car of NIL is NIL; Car of any other atom is NIL as well.
func (v Value) Car() Value {
	if v.typ != TCons {
		return Nil
	}
	return (*Cons)(v.ptr).Car
}

func (v Value) Cdr() Value {
	if v.typ != TCons {
		return Nil
	}
	return (*Cons)(v.ptr).Cdr
}

func (v Value) Cadr() Value  { return v.Cdr().Car() }
func (v Value) Cddr() Value  { return v.Cdr().Cdr() }
func (v Value) Caddr() Value { return v.Cddr().Car() }

// List builds a proper list.
func List(items ...Value) Value {
	result := Nil
	for i := len(items) - 1; i >= 0; i-- {
		result = NewCons(items[i], result)
	}
	return result
}

// ListStar builds a list whose last cdr is tail.
func ListStar(tail Value, items ...Value) Value {
	result := tail
	for i := len(items) - 1; i >= 0; i-- {
		result = NewCons(items[i], result)
	}
	return result
}

// Slice converts a proper list into a slice. ok is false for dotted or
// circular lists.
func (v Value) Slice() (result []Value, ok bool) {
	slow := v
	for i := 0; v.typ == TCons; i++ {
		c := (*Cons)(v.ptr)
		result = append(result, c.Car)
		v = c.Cdr
		if i&1 == 1 {
			slow = slow.Cdr()
			if slow == v && v.typ == TCons {
				return result, false
			}
		}
	}
	return result, v.typ == TNil
}

// Length returns the number of cells of a proper list and -1 otherwise.
func (v Value) Length() int {
	n := 0
	slow := v
	for v.typ == TCons {
		v = (*Cons)(v.ptr).Cdr
		n++
		if n&1 == 0 {
			slow = slow.Cdr()
			if slow == v && v.typ == TCons {
				return -1
			}
		}
	}
	if v.typ != TNil {
		return -1
	}
	return n
}

// Nth returns the element at 0-based position i or NIL.
func (v Value) Nth(i int) Value {
	for ; i > 0 && v.typ == TCons; i-- {
		v = (*Cons)(v.ptr).Cdr
	}
	return v.Car()
}

// NthCell returns the cell at 0-based position i, or NIL when the list is shorter.
func (v Value) NthCell(i int) Value {
	for ; i > 0 && v.typ == TCons; i-- {
		v = (*Cons)(v.ptr).Cdr
	}
	return v
}

// CopyList returns a list with a fresh spine holding the same elements;
// a dotted tail is kept. v must not be circular.
func CopyList(v Value) Value {
	if v.typ != TCons {
		return v
	}
	head := NewCons(v.Car(), Nil)
	last := head
	for v = v.Cdr(); v.typ == TCons; v = v.Cdr() {
		cell := NewCons(v.Car(), Nil)
		Rplacd(last, cell)
		last = cell
	}
	Rplacd(last, v)
	return head
}

// Reverse returns a fresh reversed copy of a proper list.
func Reverse(v Value) Value {
	result := Nil
	for ; v.typ == TCons; v = (*Cons)(v.ptr).Cdr {
		result = NewCons((*Cons)(v.ptr).Car, result)
	}
	return result
}

// Append concatenates lists; all but the last are copied.
func Append(lists ...Value) Value {
	if len(lists) == 0 {
		return Nil
	}
	result := lists[len(lists)-1]
	for i := len(lists) - 2; i >= 0; i-- {
		items, _ := lists[i].Slice()
		result = ListStar(result, items...)
	}
	return result
}

// Rplaca replaces the car of a cons in place.
func Rplaca(cell, v Value) bool {
	if cell.typ != TCons {
		return false
	}
	(*Cons)(cell.ptr).Car = v
	return true
}

// Rplacd replaces the cdr of a cons in place.
func Rplacd(cell, v Value) bool {
	if cell.typ != TCons {
		return false
	}
	(*Cons)(cell.ptr).Cdr = v
	return true
}
