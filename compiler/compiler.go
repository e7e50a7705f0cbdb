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

import (
	"github.com/joomcode/errorx"
	"github.com/launix-de/secdlisp/lisp"
)

// Expander runs a macro expander on the argument forms of a macro call.
type Expander interface {
	Expand(m *lisp.Macro, form lisp.Value) (lisp.Value, error)
}

// Compiler lowers forms into bytecode for the secd machine.
type Compiler struct {
	u        *lisp.Universe
	s        *lisp.Syms
	Expander Expander
	// Fold enables constant folding of pure primitive calls.
	Fold bool

	declare   lisp.Value
	nextBlock int64
	special   map[*lisp.Symbol]func(c *Compiler, form lisp.Value, sc *scope, tail bool, e *emitter)
	// names currently compiled by defun; calls to them are not undefined
	defining map[*lisp.Symbol]int
}

func New(u *lisp.Universe, exp Expander) *Compiler {
	c := &Compiler{
		u:        u,
		s:        u.Syms,
		Expander: exp,
		Fold:     true,
		defining: make(map[*lisp.Symbol]int),
	}
	c.declare = lisp.NewSymbolValue(u.Builtin("declare"))
	c.special = c.specialForms()
	return c
}

// IsSpecialForm reports whether sym names a form the compiler handles itself.
func (c *Compiler) IsSpecialForm(sym *lisp.Symbol) bool {
	_, ok := c.special[sym]
	return ok
}

func (c *Compiler) newBlockID() int64 {
	c.nextBlock++
	return c.nextBlock
}

// Compile lowers form into a program ending in STOP. lexicalNames is a list
// of frames, innermost first, each a list of the symbols bound in the
// corresponding frame of the environment the program will run in.
func (c *Compiler) Compile(form lisp.Value, lexicalNames lisp.Value) (code lisp.Value, err error) {
	defer c.recoverError(&err)
	e := &emitter{}
	c.compile(form, scopeFromNames(lexicalNames), false, e)
	e.op(lisp.STOP)
	return e.code(), nil
}

// CompileBody lowers form into code that ends by returning to the caller,
// as needed by the eval primitive.
func (c *Compiler) CompileBody(form lisp.Value) (code lisp.Value, err error) {
	defer c.recoverError(&err)
	e := &emitter{}
	c.compile(form, &scope{}, true, e)
	return e.code(), nil
}

func (c *Compiler) recoverError(err *error) {
	r := recover()
	if r == nil {
		return
	}
	e, ok := errorx.ErrorFromPanic(r)
	if !ok {
		panic(r)
	}
	if isLispError(e) {
		*err = e
	} else {
		*err = lisp.CompileError.Wrap(e, "compilation failed")
	}
}

func isLispError(err error) bool {
	return errorx.IsOfType(err, lisp.CompileError) || errorx.IsOfType(err, lisp.BindingError) ||
		errorx.IsOfType(err, lisp.ReadError) || errorx.IsOfType(err, lisp.MachineFault)
}

func (c *Compiler) malformed(form lisp.Value, format string, args ...any) {
	errorx.Panic(lisp.WithForm(lisp.MalformedForm.New(format, args...), form))
}

// compile appends the code for form. In tail position the emitted code
// ends by returning from the enclosing function.
func (c *Compiler) compile(form lisp.Value, sc *scope, tail bool, e *emitter) {
	switch form.Type() {
	case lisp.TSymbol:
		c.compileVariable(form.Symbol(), sc, e)
	case lisp.TCons:
		c.compileCompound(form, sc, tail, e)
		return
	default:
		e.op(lisp.LDC, form)
	}
	if tail {
		e.op(lisp.RTN)
	}
}

func (c *Compiler) compileVariable(sym *lisp.Symbol, sc *scope, e *emitter) {
	if sym.IsKeyword() {
		e.op(lisp.LDC, lisp.NewSymbolValue(sym))
		return
	}
	if d, i, ent, ok := sc.lookup(sym, false); ok {
		if ent.rest {
			e.op(lisp.LDR, lisp.NewAddress(d, i))
		} else {
			e.op(lisp.LD, lisp.NewAddress(d, i))
		}
		return
	}
	e.op(lisp.LD_GLOBAL, lisp.NewSymbolValue(sym))
}

func (c *Compiler) compileCompound(form lisp.Value, sc *scope, tail bool, e *emitter) {
	if form.Length() < 0 {
		c.malformed(form, "dotted form")
	}
	op := form.Car()
	if op.IsSymbol() {
		sym := op.Symbol()
		// lexical functions shadow special forms, macros and globals
		if d, i, _, ok := sc.lookup(sym, true); ok {
			e.op(lisp.LD, lisp.NewAddress(d, i))
			c.compileCall(form, sc, tail, e)
			return
		}
		if handler, ok := c.special[sym]; ok {
			handler(c, form, sc, tail, e)
			return
		}
		if sym.Function.Type() == lisp.TMacro {
			c.compile(c.expand(sym.Function.Macro(), form), sc, tail, e)
			return
		}
		if sym.Function.Type() == lisp.TPrimitive {
			if c.compilePrimitiveCall(sym.Function.Primitive(), form, sc, tail, e) {
				return
			}
		}
		if !sym.Fboundp() && c.defining[sym] == 0 {
			errorx.Panic(lisp.WithSymbol(lisp.WithForm(lisp.UndefinedOperator.New("undefined operator %s", sym.Name), form), sym))
		}
		e.op(lisp.LDFC, op)
		c.compileCall(form, sc, tail, e)
		return
	}
	if op.IsCons() && op.Car() == lisp.NewSymbolValue(c.s.Lambda) {
		c.compileLambda(op, lisp.Nil, sc, e)
		c.compileCall(form, sc, tail, e)
		return
	}
	c.malformed(form, "illegal function call")
}

// compileCall emits the arguments and the application; the operator is
// already on the stack.
func (c *Compiler) compileCall(form lisp.Value, sc *scope, tail bool, e *emitter) {
	n := 0
	for args := form.Cdr(); args.IsCons(); args = args.Cdr() {
		c.compile(args.Car(), sc, false, e)
		n++
	}
	e.op(lisp.LIS, lisp.NewInteger(int64(n)))
	if tail {
		e.op(lisp.DAP)
	} else {
		e.op(lisp.AP)
	}
}

func (c *Compiler) expand(m *lisp.Macro, form lisp.Value) lisp.Value {
	if c.Expander == nil {
		c.malformed(form, "macro %s cannot be expanded here", m.Name.Name)
	}
	expansion, err := c.Expander.Expand(m, form)
	if err != nil {
		errorx.Panic(errorx.Decorate(err, "while expanding %s", lisp.Sprint(form)))
	}
	return expansion
}

// MacroExpand1 expands form once if it is a macro call.
func (c *Compiler) MacroExpand1(form lisp.Value) (result lisp.Value, expanded bool, err error) {
	if !form.IsCons() || !form.Car().IsSymbol() {
		return form, false, nil
	}
	fn := form.Car().Symbol().Function
	if fn.Type() != lisp.TMacro || c.Expander == nil {
		return form, false, nil
	}
	result, err = c.Expander.Expand(fn.Macro(), form)
	return result, err == nil, err
}
