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
	"github.com/launix-de/secdlisp/lambdalist"
	"github.com/launix-de/secdlisp/lisp"
)

type formHandler = func(c *Compiler, form lisp.Value, sc *scope, tail bool, e *emitter)

func (c *Compiler) specialForms() map[*lisp.Symbol]formHandler {
	s := c.s
	return map[*lisp.Symbol]formHandler{
		s.Quote:        (*Compiler).compileQuote,
		s.Function:     (*Compiler).compileFunction,
		s.If:           (*Compiler).compileIf,
		s.Lambda:       (*Compiler).compileLambdaForm,
		s.Progn:        (*Compiler).compileProgn,
		s.Let:          (*Compiler).compileLet,
		s.LetStar:      (*Compiler).compileLetStar,
		s.Setq:         (*Compiler).compileSetq,
		s.And:          (*Compiler).compileAnd,
		s.Or:           (*Compiler).compileOr,
		s.Cond:         (*Compiler).compileCond,
		s.Block:        (*Compiler).compileBlock,
		s.ReturnFrom:   (*Compiler).compileReturnFrom,
		s.Return:       (*Compiler).compileReturn,
		s.SpBind:       (*Compiler).compileSpBind,
		s.SpUnbind:     (*Compiler).compileSpUnbind,
		s.GetSpecial:   (*Compiler).compileGetSpecial,
		s.Defvar:       (*Compiler).compileDefvar,
		s.Defparameter: (*Compiler).compileDefparameter,
		s.Defconstant:  (*Compiler).compileDefconstant,
		s.Defun:        (*Compiler).compileDefun,
		s.Defmacro:     (*Compiler).compileDefmacro,
		s.Flet:         (*Compiler).compileFlet,
		s.Labels:       (*Compiler).compileLabels,
		s.Backquote:    (*Compiler).compileBackquote,
		s.Comma:        (*Compiler).compileStrayComma,
		s.CommaAt:      (*Compiler).compileStrayComma,
	}
}

func (c *Compiler) sym(name string) lisp.Value {
	return lisp.NewSymbolValue(c.u.Builtin(name))
}

func (c *Compiler) quoted(v lisp.Value) lisp.Value {
	return lisp.List(lisp.NewSymbolValue(c.s.Quote), v)
}

func (c *Compiler) ret(tail bool, e *emitter) {
	if tail {
		e.op(lisp.RTN)
	}
}

func (c *Compiler) argCount(form lisp.Value, min, max int) {
	n := form.Length() - 1
	if n < min || (max >= 0 && n > max) {
		c.malformed(form, "wrong number of arguments to %s", form.Car().Symbol().Name)
	}
}

func (c *Compiler) variableName(form, v lisp.Value) *lisp.Symbol {
	if !v.IsSymbol() || v.Symbol().IsKeyword() {
		c.malformed(form, "%s is not a variable", v)
	}
	if v.Symbol().IsConstant() {
		c.malformed(form, "cannot assign constant %s", v)
	}
	return v.Symbol()
}

func (c *Compiler) compileQuote(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 1)
	e.op(lisp.LDC, form.Cadr())
	c.ret(tail, e)
}

func (c *Compiler) compileFunction(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 1)
	fn := form.Cadr()
	switch {
	case fn.IsSymbol():
		sym := fn.Symbol()
		if d, i, _, ok := sc.lookup(sym, true); ok {
			e.op(lisp.LD, lisp.NewAddress(d, i))
			break
		}
		if c.IsSpecialForm(sym) || sym.Function.Type() == lisp.TMacro {
			c.malformed(form, "%s does not name a function", sym.Name)
		}
		if !sym.Fboundp() && c.defining[sym] == 0 {
			errorx.Panic(lisp.WithSymbol(lisp.WithForm(lisp.UndefinedOperator.New("undefined function %s", sym.Name), form), sym))
		}
		e.op(lisp.LDFC, fn)
	case fn.IsCons() && fn.Car() == lisp.NewSymbolValue(c.s.Lambda):
		c.compileLambda(fn, lisp.Nil, sc, e)
	default:
		c.malformed(form, "%s is not a function name", fn)
	}
	c.ret(tail, e)
}

func (c *Compiler) compileIf(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 2, 3)
	c.compile(form.Cadr(), sc, false, e)
	then, els := &emitter{}, &emitter{}
	c.compile(form.Caddr(), sc, tail, then)
	c.compile(form.NthCell(3).Car(), sc, tail, els)
	if tail {
		e.op(lisp.TEST, then.code())
		e.items = append(e.items, els.items...)
		return
	}
	then.op(lisp.JOIN)
	els.op(lisp.JOIN)
	e.op(lisp.SEL, then.code(), els.code())
}

func (c *Compiler) compileLambdaForm(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.compileLambda(form, lisp.Nil, sc, e)
	c.ret(tail, e)
}

func (c *Compiler) compileProgn(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.compileBody(form.Cdr(), sc, tail, e)
}

// compileBody compiles forms in sequence; the value is the last one's.
func (c *Compiler) compileBody(body lisp.Value, sc *scope, tail bool, e *emitter) {
	forms, _ := body.Slice()
	for len(forms) > 0 && forms[0].IsCons() && forms[0].Car() == c.declare {
		forms = forms[1:]
	}
	if len(forms) == 0 {
		e.op(lisp.LDC, lisp.Nil)
		c.ret(tail, e)
		return
	}
	for i, f := range forms {
		last := i == len(forms)-1
		c.compile(f, sc, tail && last, e)
		if !last {
			e.op(lisp.POP)
		}
	}
}

// parseBindings splits let bindings into variables and init forms.
func (c *Compiler) parseBindings(form, bindings lisp.Value) (vars, inits []lisp.Value) {
	items, ok := bindings.Slice()
	if !ok {
		c.malformed(form, "bad binding list")
	}
	for _, b := range items {
		switch {
		case b.IsSymbol():
			vars = append(vars, b)
			inits = append(inits, lisp.Nil)
		case b.IsCons() && b.Length() >= 1 && b.Length() <= 2:
			vars = append(vars, b.Car())
			inits = append(inits, b.Cadr())
		default:
			c.malformed(form, "bad binding %s", b)
		}
		c.variableName(form, vars[len(vars)-1])
	}
	return vars, inits
}

// let is the application of a lambda to the init forms.
func (c *Compiler) compileLet(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, -1)
	vars, inits := c.parseBindings(form, form.Cadr())
	lambda := lisp.ListStar(form.Cddr(), lisp.NewSymbolValue(c.s.Lambda), lisp.List(vars...))
	c.compileLambda(lambda, lisp.Nil, sc, e)
	call := lisp.ListStar(lisp.List(inits...), lisp.Nil)
	c.compileCall(call, sc, tail, e)
}

func (c *Compiler) compileLetStar(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, -1)
	bindings := form.Cadr()
	if !bindings.IsCons() {
		c.compileLet(form, sc, tail, e)
		return
	}
	inner := lisp.ListStar(form.Cddr(), lisp.NewSymbolValue(c.s.LetStar), bindings.Cdr())
	outer := lisp.List(lisp.NewSymbolValue(c.s.Let), lisp.List(bindings.Car()), inner)
	c.compileLet(outer, sc, tail, e)
}

func (c *Compiler) compileSetq(form lisp.Value, sc *scope, tail bool, e *emitter) {
	args, _ := form.Cdr().Slice()
	if len(args)%2 != 0 {
		c.malformed(form, "odd number of arguments to setq")
	}
	if len(args) == 0 {
		e.op(lisp.LDC, lisp.Nil)
	}
	for i := 0; i < len(args); i += 2 {
		if i > 0 {
			e.op(lisp.POP)
		}
		sym := c.variableName(form, args[i])
		c.compile(args[i+1], sc, false, e)
		if d, idx, ent, ok := sc.lookup(sym, false); ok {
			if ent.rest {
				e.op(lisp.STR, lisp.NewAddress(d, idx))
			} else {
				e.op(lisp.ST, lisp.NewAddress(d, idx))
			}
		} else {
			e.op(lisp.SET_GLOBAL, args[i])
		}
	}
	c.ret(tail, e)
}

// thunk compiles body as a function of no arguments and calls it, so the
// body can use the conditional return opcodes outside tail position.
func (c *Compiler) thunk(sc *scope, e *emitter, body func(sc *scope, e *emitter)) {
	inner := &emitter{}
	body(sc.withFrame(nil), inner)
	e.op(lisp.LDF, lisp.NewTemplate(&lisp.Template{Name: lisp.Nil, Code: inner.code()}))
	e.op(lisp.LIS, lisp.NewInteger(0))
	e.op(lisp.AP)
}

func (c *Compiler) compileAnd(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.compileShortCircuit(form, sc, tail, e, lisp.True, lisp.RTN_IF)
}

func (c *Compiler) compileOr(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.compileShortCircuit(form, sc, tail, e, lisp.Nil, lisp.RTN_IT)
}

// and/or in tail position return early through RTN_IF/RTN_IT.
func (c *Compiler) compileShortCircuit(form lisp.Value, sc *scope, tail bool, e *emitter, empty lisp.Value, early lisp.Opcode) {
	args, _ := form.Cdr().Slice()
	switch {
	case len(args) == 0:
		e.op(lisp.LDC, empty)
		c.ret(tail, e)
	case len(args) == 1:
		c.compile(args[0], sc, tail, e)
	case !tail:
		c.thunk(sc, e, func(sc *scope, e *emitter) {
			c.compileShortCircuit(form, sc, true, e, empty, early)
		})
	default:
		for _, a := range args[:len(args)-1] {
			c.compile(a, sc, false, e)
			e.op(early)
			e.op(lisp.POP)
		}
		c.compile(args[len(args)-1], sc, true, e)
	}
}

func (c *Compiler) compileCond(form lisp.Value, sc *scope, tail bool, e *emitter) {
	clauses := form.Cdr()
	if clauses.IsNil() {
		e.op(lisp.LDC, lisp.Nil)
		c.ret(tail, e)
		return
	}
	clause := clauses.Car()
	if !clause.IsCons() || clause.Length() < 0 {
		c.malformed(form, "bad cond clause %s", clause)
	}
	rest := lisp.ListStar(clauses.Cdr(), lisp.NewSymbolValue(c.s.Cond))
	var rewritten lisp.Value
	if clause.Cdr().IsNil() {
		rewritten = lisp.List(lisp.NewSymbolValue(c.s.Or), clause.Car(), rest)
	} else {
		body := lisp.ListStar(clause.Cdr(), lisp.NewSymbolValue(c.s.Progn))
		rewritten = lisp.List(lisp.NewSymbolValue(c.s.If), clause.Car(), body, rest)
	}
	c.compile(rewritten, sc, tail, e)
}

func (c *Compiler) compileBlock(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, -1)
	name := form.Cadr()
	if !name.IsSymbol() && !name.IsNil() {
		c.malformed(form, "block name %s is not a symbol", name)
	}
	id := lisp.NewInteger(c.newBlockID())
	// a block nobody returns from compiles to its bare body
	used := false
	plain := &emitter{}
	c.compileBody(form.Cddr(), sc.withBlock(name, id.Int(), &used), tail, plain)
	if !used {
		e.items = append(e.items, plain.items...)
		return
	}
	e.op(lisp.TAG_B, id)
	c.compileBody(form.Cddr(), sc.withBlock(name, id.Int(), &used), false, e)
	e.op(lisp.TAG_E)
	e.op(lisp.BLK, id)
	c.ret(tail, e)
}

func (c *Compiler) returnFrom(form, name, value lisp.Value, sc *scope, e *emitter) {
	id, depth, ok := sc.findBlock(name)
	if !ok {
		c.malformed(form, "no block named %s", name)
	}
	c.compile(value, sc, false, e)
	e.op(lisp.RTN_FROM, lisp.NewInteger(id), lisp.NewInteger(int64(depth)))
}

func (c *Compiler) compileReturnFrom(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 2)
	c.returnFrom(form, form.Cadr(), form.Caddr(), sc, e)
}

func (c *Compiler) compileReturn(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 0, 1)
	c.returnFrom(form, lisp.Nil, form.Cadr(), sc, e)
}

func (c *Compiler) compileSpBind(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 2, 2)
	sym := c.variableName(form, form.Cadr())
	c.compile(form.Caddr(), sc, false, e)
	e.op(lisp.SP_BIND, lisp.NewSymbolValue(sym))
	e.op(lisp.LD_GLOBAL, lisp.NewSymbolValue(sym))
	c.ret(tail, e)
}

func (c *Compiler) compileSpUnbind(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 1)
	sym := c.variableName(form, form.Cadr())
	e.op(lisp.SP_UNBIND, lisp.NewSymbolValue(sym))
	e.op(lisp.LDC, lisp.NewSymbolValue(sym))
	c.ret(tail, e)
}

func (c *Compiler) compileGetSpecial(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 1)
	if !form.Cadr().IsSymbol() {
		c.malformed(form, "%s is not a symbol", form.Cadr())
	}
	e.op(lisp.LD_GLOBAL, form.Cadr())
	c.ret(tail, e)
}

// (defvar x init) assigns only when x is unbound
func (c *Compiler) compileDefvar(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 3)
	sym := c.variableName(form, form.Cadr())
	sym.Proclaim()
	name := c.quoted(form.Cadr())
	if form.Cddr().IsNil() {
		c.compile(name, sc, tail, e)
		return
	}
	assign := lisp.List(lisp.NewSymbolValue(c.s.Progn), lisp.List(lisp.NewSymbolValue(c.s.Setq), form.Cadr(), form.Caddr()), name)
	c.compile(lisp.List(lisp.NewSymbolValue(c.s.If), lisp.List(c.sym("boundp"), name), name, assign), sc, tail, e)
}

func (c *Compiler) compileDefparameter(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 2, 3)
	sym := c.variableName(form, form.Cadr())
	sym.Proclaim()
	c.compile(lisp.List(lisp.NewSymbolValue(c.s.Progn),
		lisp.List(lisp.NewSymbolValue(c.s.Setq), form.Cadr(), form.Caddr()),
		c.quoted(form.Cadr())), sc, tail, e)
}

func (c *Compiler) compileDefconstant(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 2, 3)
	name := form.Cadr()
	if !name.IsSymbol() || name.Symbol().IsKeyword() {
		c.malformed(form, "%s is not a variable", name)
	}
	// redefinition with an eql value is allowed; %defconstant checks
	name.Symbol().Proclaim()
	c.compile(lisp.List(c.sym("%defconstant"), c.quoted(form.Cadr()), form.Caddr()), sc, tail, e)
}

// definition compiles (%def 'name (lambda ll (block name body...))).
func (c *Compiler) definition(form lisp.Value, sc *scope, tail bool, e *emitter, definer string) {
	c.argCount(form, 2, -1)
	name := form.Cadr()
	if !name.IsSymbol() || name.Symbol().IsKeyword() {
		c.malformed(form, "%s is not a function name", name)
	}
	sym := name.Symbol()
	body := form.NthCell(3)
	if body.Car().IsString() && body.Cdr().IsCons() {
		body = body.Cdr()
	}
	lambda := lisp.List(lisp.NewSymbolValue(c.s.Lambda), form.Caddr(),
		lisp.ListStar(body, lisp.NewSymbolValue(c.s.Block), name))

	c.defining[sym]++
	defer func() { c.defining[sym]-- }()
	e.op(lisp.LDFC, c.sym(definer))
	e.op(lisp.LDC, name)
	c.compileLambda(lambda, name, sc, e)
	e.op(lisp.LIS, lisp.NewInteger(2))
	if tail {
		e.op(lisp.DAP)
	} else {
		e.op(lisp.AP)
	}
}

func (c *Compiler) compileDefun(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.definition(form, sc, tail, e, "%defun")
}

func (c *Compiler) compileDefmacro(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.definition(form, sc, tail, e, "%defmacro")
}

type localFunction struct {
	name   lisp.Value
	lambda lisp.Value
}

func (c *Compiler) localFunctions(form lisp.Value) ([]localFunction, []entry) {
	c.argCount(form, 1, -1)
	defs, ok := form.Cadr().Slice()
	if !ok {
		c.malformed(form, "bad function list")
	}
	fns := make([]localFunction, len(defs))
	entries := make([]entry, len(defs))
	for i, d := range defs {
		if d.Length() < 2 || !d.Car().IsSymbol() {
			c.malformed(form, "bad local function %s", d)
		}
		lambda := lisp.List(lisp.NewSymbolValue(c.s.Lambda), d.Cadr(),
			lisp.ListStar(d.Cddr(), lisp.NewSymbolValue(c.s.Block), d.Car()))
		fns[i] = localFunction{name: d.Car(), lambda: lambda}
		entries[i] = entry{sym: d.Car().Symbol(), fn: true}
	}
	return fns, entries
}

// (flet ((f ll body...)) forms...) calls a body function whose frame holds
// the closures, each closed over the outer environment.
func (c *Compiler) compileFlet(form lisp.Value, sc *scope, tail bool, e *emitter) {
	fns, entries := c.localFunctions(form)
	body := &emitter{}
	c.compileBody(form.Cddr(), sc.withFrame(entries), true, body)
	e.op(lisp.LDF, lisp.NewTemplate(&lisp.Template{Name: lisp.Nil, Code: body.code(), Required: len(fns)}))
	for _, f := range fns {
		c.compileLambda(f.lambda, f.name, sc, e)
	}
	e.op(lisp.LIS, lisp.NewInteger(int64(len(fns))))
	if tail {
		e.op(lisp.DAP)
	} else {
		e.op(lisp.AP)
	}
}

// labels reserves a placeholder frame with DUM, closes the functions and
// the body over it, and RAP fills it in place so the closures see
// themselves.
func (c *Compiler) compileLabels(form lisp.Value, sc *scope, tail bool, e *emitter) {
	fns, entries := c.localFunctions(form)
	inner := sc.withFrame(entries)
	body := &emitter{}
	c.compileBody(form.Cddr(), inner, true, body)
	e.op(lisp.DUM)
	e.op(lisp.LDF, lisp.NewTemplate(&lisp.Template{Name: lisp.Nil, Code: body.code(), Required: len(fns)}))
	for _, f := range fns {
		c.compileLambda(f.lambda, f.name, inner, e)
	}
	e.op(lisp.LIS, lisp.NewInteger(int64(len(fns))))
	e.op(lisp.RAP)
	c.ret(tail, e)
}

func (c *Compiler) compileBackquote(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.argCount(form, 1, 1)
	c.compile(c.backquote(form, form.Cadr(), 1), sc, tail, e)
}

func (c *Compiler) compileStrayComma(form lisp.Value, sc *scope, tail bool, e *emitter) {
	c.malformed(form, "comma outside of backquote")
}

// compileLambda emits LDF for (lambda ll body...).
func (c *Compiler) compileLambda(form lisp.Value, name lisp.Value, sc *scope, e *emitter) {
	if form.Length() < 2 {
		c.malformed(form, "lambda without lambda list")
	}
	ll, err := lambdalist.Parse(form.Cadr(), c.u)
	if err != nil {
		errorx.Panic(err)
	}
	vars := ll.Vars()
	simple := ll.Simple()
	entries := make([]entry, len(vars))
	for i, v := range vars {
		entries[i] = entry{sym: v, special: v.IsSpecial(), rest: simple && v == ll.Rest}
	}

	b := &emitter{}
	defaults := map[int]lisp.Value{}
	if !simple {
		defaults = ll.Defaults()
	}
	var specials []*lisp.Symbol
	for i, v := range vars {
		addr := lisp.NewAddress(0, i+1)
		if init, ok := defaults[i]; ok {
			fill := &emitter{}
			c.compile(init, sc.withFrame(entries[:i]), false, fill)
			fill.op(lisp.ST, addr)
			fill.op(lisp.POP)
			fill.op(lisp.JOIN)
			b.op(lisp.DEF, addr, fill.code())
		}
		if entries[i].special {
			if entries[i].rest {
				b.op(lisp.LDR, addr)
			} else {
				b.op(lisp.LD, addr)
			}
			b.op(lisp.SP_BIND, lisp.NewSymbolValue(v))
			specials = append(specials, v)
		}
	}

	inner := sc.withFrame(entries)
	if len(specials) == 0 {
		c.compileBody(form.Cddr(), inner, true, b)
	} else {
		c.compileBody(form.Cddr(), inner, false, b)
		for i := len(specials) - 1; i >= 0; i-- {
			b.op(lisp.SP_UNBIND, lisp.NewSymbolValue(specials[i]))
		}
		b.op(lisp.RTN)
	}

	t := &lisp.Template{
		Name:     name,
		Code:     b.code(),
		Required: len(ll.Required),
		Rest:     ll.Rest != nil,
	}
	if !simple {
		t.Params = ll
	}
	e.op(lisp.LDF, lisp.NewTemplate(t))
}
