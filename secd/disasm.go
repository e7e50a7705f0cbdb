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

import (
	"bytes"
	"strings"

	"github.com/launix-de/secdlisp/lisp"
)

// Disassemble renders a bytecode list one instruction per line, with
// branches and function bodies indented below their instruction.
func Disassemble(code lisp.Value) string {
	var b bytes.Buffer
	disassemble(&b, code, 0)
	return b.String()
}

func disassemble(b *bytes.Buffer, code lisp.Value, indent int) {
	pad := strings.Repeat("  ", indent)
	for code.IsCons() {
		insn := code.Car()
		code = code.Cdr()
		b.WriteString(pad)
		if insn.Type() != lisp.TOpcode {
			b.WriteString(lisp.Sprint(insn))
			b.WriteByte('\n')
			continue
		}
		op := insn.Opcode()
		b.WriteString(op.String())
		var nested []lisp.Value
		for i := 0; i < op.Operands() && code.IsCons(); i++ {
			arg := code.Car()
			code = code.Cdr()
			switch {
			case arg.Type() == lisp.TTemplate:
				b.WriteString(" ")
				b.WriteString(lisp.Sprint(arg))
				nested = append(nested, arg.Template().Code)
			case arg.IsCons() && arg.Car().Type() == lisp.TOpcode:
				nested = append(nested, arg)
			default:
				b.WriteString(" ")
				b.WriteString(lisp.Sprint(arg))
			}
		}
		b.WriteByte('\n')
		for _, n := range nested {
			disassemble(b, n, indent+1)
		}
	}
}
