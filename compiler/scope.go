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

// entry is one slot of a compile-time frame; it mirrors the run-time frame
// slot with the same index.
type entry struct {
	sym     *lisp.Symbol
	fn      bool // flet/labels function binding
	rest    bool // &rest tail of a simple frame, read with LDR
	special bool // dynamically bound, referenced through LD_GLOBAL
}

type block struct {
	name   lisp.Value
	id     int64
	frames int   // frames in scope at the block
	used   *bool // set when a return-from targets the block
}

// scope is the lexical environment at one point of compilation. frames
// are innermost last; scopes are never mutated after creation.
type scope struct {
	frames [][]entry
	blocks []block
}

func (s *scope) withFrame(f []entry) *scope {
	frames := make([][]entry, len(s.frames)+1)
	copy(frames, s.frames)
	frames[len(s.frames)] = f
	return &scope{frames: frames, blocks: s.blocks}
}

func (s *scope) withBlock(name lisp.Value, id int64, used *bool) *scope {
	blocks := make([]block, len(s.blocks)+1)
	copy(blocks, s.blocks)
	blocks[len(s.blocks)] = block{name: name, id: id, frames: len(s.frames), used: used}
	return &scope{frames: s.frames, blocks: blocks}
}

// lookup resolves sym in the variable (fn=false) or function (fn=true)
// namespace to a lexical address.
func (s *scope) lookup(sym *lisp.Symbol, fn bool) (depth, index int, e entry, ok bool) {
	for d := 0; d < len(s.frames); d++ {
		frame := s.frames[len(s.frames)-1-d]
		for i := len(frame) - 1; i >= 0; i-- {
			if frame[i].sym == sym && frame[i].fn == fn {
				if frame[i].special {
					return 0, 0, frame[i], false
				}
				return d, i + 1, frame[i], true
			}
		}
	}
	return 0, 0, entry{}, false
}

// findBlock returns the id of the named block and how many frames were
// entered since it.
func (s *scope) findBlock(name lisp.Value) (id int64, depth int, ok bool) {
	for i := len(s.blocks) - 1; i >= 0; i-- {
		if b := s.blocks[i]; b.name == name {
			*b.used = true
			return b.id, len(s.frames) - b.frames, true
		}
	}
	return 0, 0, false
}

// scopeFromNames converts a list of frames (each a list of symbols,
// innermost first) into a scope.
func scopeFromNames(names lisp.Value) *scope {
	frames, _ := names.Slice()
	s := &scope{}
	for i := len(frames) - 1; i >= 0; i-- {
		syms, _ := frames[i].Slice()
		f := make([]entry, len(syms))
		for j, sym := range syms {
			if sym.IsSymbol() {
				f[j] = entry{sym: sym.Symbol(), special: sym.Symbol().IsSpecial()}
			}
		}
		s = s.withFrame(f)
	}
	return s
}

// emitter collects a flat bytecode list.
type emitter struct {
	items []lisp.Value
}

func (e *emitter) op(op lisp.Opcode, operands ...lisp.Value) {
	e.items = append(e.items, lisp.NewOpcode(op))
	e.items = append(e.items, operands...)
}

func (e *emitter) code() lisp.Value {
	return lisp.List(e.items...)
}
