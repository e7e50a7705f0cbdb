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
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/reader"
)

type constantExpander struct {
	result lisp.Value
	seen   []lisp.Value
}

func (x *constantExpander) Expand(m *lisp.Macro, form lisp.Value) (lisp.Value, error) {
	x.seen = append(x.seen, form)
	return x.result, nil
}

func setup() (*lisp.Universe, *Compiler) {
	u := lisp.NewUniverse(lisp.Upcase)
	u.Builtin("f").Function = lisp.NewPrimitive(&lisp.Primitive{Name: "F", Min: 0, Max: -1})
	u.Builtin("add").Function = lisp.NewPrimitive(&lisp.Primitive{
		Name: "ADD", Min: 2, Max: 2, Foldable: true,
		Fn: func(ctx lisp.Context, args []lisp.Value) (lisp.Value, error) { return lisp.Add(args[0], args[1]) },
	})
	return u, New(u, nil)
}

func read(t *testing.T, u *lisp.Universe, src string) lisp.Value {
	t.Helper()
	form, err := reader.ReadString(src, u, u.User)
	require.NoError(t, err)
	return form
}

func compileString(t *testing.T, u *lisp.Universe, c *Compiler, src string) string {
	t.Helper()
	code, err := c.Compile(read(t, u, src), lisp.Nil)
	require.NoError(t, err, "compiling %s", src)
	return lisp.Sprint(code)
}

func bodyString(t *testing.T, u *lisp.Universe, c *Compiler, src string) string {
	t.Helper()
	code, err := c.CompileBody(read(t, u, src))
	require.NoError(t, err, "compiling %s", src)
	return lisp.Sprint(code)
}

// templateCode returns the code of the first template loaded by code.
func templateCode(t *testing.T, u *lisp.Universe, c *Compiler, src string) (*lisp.Template, string) {
	t.Helper()
	code, err := c.Compile(read(t, u, src), lisp.Nil)
	require.NoError(t, err)
	require.Equal(t, lisp.LDF, code.Car().Opcode())
	tmpl := code.Cadr().Template()
	return tmpl, lisp.Sprint(tmpl.Code)
}

func TestCodeShapes(t *testing.T) {
	u, c := setup()
	assert.Equal(t, "(LDC 1 STOP)", compileString(t, u, c, "1"))
	assert.Equal(t, "(LDC :K STOP)", compileString(t, u, c, ":k"))
	assert.Equal(t, "(LD_GLOBAL A STOP)", compileString(t, u, c, "a"))
	assert.Equal(t, "(LDC (A B) STOP)", compileString(t, u, c, "'(a b)"))
	assert.Equal(t, "(LDFC F LDC 1 LIS 1 AP STOP)", compileString(t, u, c, "(f 1)"))
	assert.Equal(t, "(LDFC F LDC 1 LIS 1 DAP)", bodyString(t, u, c, "(f 1)"))
	assert.Equal(t, "(LD_GLOBAL A SEL (LDC 1 JOIN) (LDC 2 JOIN) STOP)", compileString(t, u, c, "(if a 1 2)"))
	assert.Equal(t, "(LD_GLOBAL A TEST (LDC 1 RTN) LDC 2 RTN)", bodyString(t, u, c, "(if a 1 2)"))
	assert.Equal(t, "(LD_GLOBAL A RTN_IF POP LD_GLOBAL B RTN)", bodyString(t, u, c, "(and a b)"))
	assert.Equal(t, "(LD_GLOBAL A RTN_IT POP LD_GLOBAL B RTN)", bodyString(t, u, c, "(or a b)"))
	assert.Equal(t, "(LDC T STOP)", compileString(t, u, c, "(and)"))
	assert.Equal(t, "(LDC 1 SP_BIND X LD_GLOBAL X STOP)", compileString(t, u, c, "(sp-bind x 1)"))
	assert.Equal(t, "(SP_UNBIND X LDC X STOP)", compileString(t, u, c, "(sp-unbind x)"))
	assert.Equal(t, "(LDC 1 SET_GLOBAL X STOP)", compileString(t, u, c, "(setq x 1)"))
	assert.Equal(t, "(TAG_B 1 LDC 1 RTN_FROM 1 0 TAG_E BLK 1 STOP)", compileString(t, u, c, "(block b (return-from b 1))"))
	// blocks nobody returns from keep their body in tail position
	assert.Equal(t, "(LDFC F LDC 1 LIS 1 DAP)", bodyString(t, u, c, "(block b (f 1))"))
	assert.Equal(t, "(LDC 1 POP LDC 2 STOP)", compileString(t, u, c, "(block b 1 2)"))
	assert.Equal(t, "(LDC 1 POP LDC 2 STOP)", compileString(t, u, c, "(progn 1 2)"))
	assert.Equal(t, "(LDC NIL STOP)", compileString(t, u, c, "(progn)"))
}

func TestLambdaShapes(t *testing.T) {
	u, c := setup()
	tmpl, code := templateCode(t, u, c, "(lambda (x y) (f y x))")
	assert.Nil(t, tmpl.Params)
	assert.Equal(t, 2, tmpl.Required)
	assert.Equal(t, "(LDFC F LD (0 . 2) LD (0 . 1) LIS 2 DAP)", code)

	_, code = templateCode(t, u, c, "(lambda (x) (lambda (y) x))")
	assert.Equal(t, "(LDF #<TEMPLATE NIL> RTN)", code)

	tmpl, code = templateCode(t, u, c, "(lambda (a &rest r) (setq r a) r)")
	assert.Nil(t, tmpl.Params)
	assert.True(t, tmpl.Rest)
	assert.Equal(t, "(LD (0 . 1) STR (0 . 2) POP LDR (0 . 2) RTN)", code)

	tmpl, code = templateCode(t, u, c, "(lambda (&optional (a 1)) a)")
	assert.NotNil(t, tmpl.Params)
	assert.Equal(t, "(DEF (0 . 1) (LDC 1 ST (0 . 1) POP JOIN) LD (0 . 1) RTN)", code)

	u.User.Intern("*P*").Proclaim()
	_, code = templateCode(t, u, c, "(lambda (*p*) *p*)")
	assert.Equal(t, "(LD (0 . 1) SP_BIND *P* LD_GLOBAL *P* SP_UNBIND *P* RTN)", code)
}

func TestBlockExits(t *testing.T) {
	u, c := setup()
	code, err := c.Compile(read(t, u, "(block b (lambda () (return-from b 2)))"), lisp.Nil)
	require.NoError(t, err)
	assert.Equal(t, lisp.TAG_B, code.Car().Opcode())
	tmpl := code.Nth(3).Template()
	assert.Equal(t, "(LDC 2 RTN_FROM 1 1)", lisp.Sprint(tmpl.Code))

	_, code2 := templateCode(t, u, c, "(lambda (n) (block nil (if n (f n) (f))))")
	assert.Equal(t, "(LD (0 . 1) TEST (LDFC F LD (0 . 1) LIS 1 DAP) LDFC F LIS 0 DAP)", code2)
}

func TestLexicalNames(t *testing.T) {
	u, c := setup()
	a, b := u.User.Intern("A"), u.User.Intern("B")
	names := lisp.List(lisp.List(lisp.NewSymbolValue(b)), lisp.List(lisp.NewSymbolValue(a)))
	code, err := c.Compile(read(t, u, "(f a b)"), names)
	require.NoError(t, err)
	assert.Equal(t, "(LDFC F LD (1 . 1) LD (0 . 1) LIS 2 AP STOP)", lisp.Sprint(code))
}

func TestLabelsShape(t *testing.T) {
	u, c := setup()
	code := compileString(t, u, c, "(labels ((g (n) (g n))) (g 1))")
	assert.Contains(t, code, "DUM LDF")
	assert.Contains(t, code, "LIS 1 RAP STOP")
}

func TestUndefinedOperator(t *testing.T) {
	u, c := setup()
	_, err := c.Compile(read(t, u, "(nope 1)"), lisp.Nil)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, lisp.UndefinedOperator))
	assert.True(t, lisp.IsRecoverable(err))
	sym, ok := errorx.ExtractProperty(err, lisp.PropertySymbol)
	require.True(t, ok)
	assert.Contains(t, sym, "NOPE")
	form, ok := lisp.FormOf(err)
	require.True(t, ok)
	assert.Equal(t, "(NOPE 1)", form)

	_, err = c.Compile(read(t, u, "#'nope"), lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.UndefinedOperator))

	// a function may call itself before it is defined
	_, err = c.Compile(read(t, u, "(defun spin (n) (spin n))"), lisp.Nil)
	assert.NoError(t, err)
	_, err = c.Compile(read(t, u, "(spin 1)"), lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.UndefinedOperator))
}

func TestMalformedForms(t *testing.T) {
	u, c := setup()
	for _, src := range []string{
		"(if)",
		"(if 1 2 3 4)",
		"(quote)",
		"(setq a)",
		"(setq :k 1)",
		"(setq t 1)",
		"(lambda)",
		"(lambda (a a) a)",
		"(let ((1 2)) 1)",
		"(block 1)",
		"(return-from nope 1)",
		"(return 1)",
		"(1 2)",
		"(add 1)",
		"(f . 1)",
		"#'if",
		"`,@a",
		"`(a . ,@b)",
	} {
		_, err := c.Compile(read(t, u, src), lisp.Nil)
		assert.True(t, errorx.IsOfType(err, lisp.MalformedForm), "%s: %v", src, err)
	}
	stray := lisp.List(lisp.NewSymbolValue(u.Syms.Comma), lisp.NewInteger(1))
	_, err := c.Compile(stray, lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.MalformedForm))
}

func TestBackquote(t *testing.T) {
	u, c := setup()
	expand := func(src string) string {
		form := read(t, u, src)
		return lisp.Sprint(c.backquote(form, form.Cadr(), 1))
	}
	assert.Equal(t, "'A", expand("`a"))
	assert.Equal(t, "1", expand("`1"))
	assert.Equal(t, ":K", expand("`:k"))
	assert.Equal(t, "B", expand("`,b"))
	assert.Equal(t, "(LIST 'A B)", expand("`(a ,b)"))
	assert.Equal(t, "(APPEND (LIST 'A) B (LIST 'C))", expand("`(a ,@b c)"))
	assert.Equal(t, "B", expand("`(,@b)"))
	assert.Equal(t, "(LIST* 'A B)", expand("`(a . ,b)"))
	assert.Equal(t, "(LIST* 'A 'B)", expand("`(a . b)"))
	assert.Equal(t, "(LIST (LIST 'X) Y)", expand("`((x) ,y)"))
}

func TestConstantFolding(t *testing.T) {
	u, c := setup()
	assert.Equal(t, "(LDC 3 STOP)", compileString(t, u, c, "(add 1 2)"))
	assert.Equal(t, "(LDFC ADD LDC 1 LD_GLOBAL X LIS 2 AP STOP)", compileString(t, u, c, "(add 1 x)"))
	// failing folds are left for run time
	assert.Equal(t, "(LDFC ADD LDC 1 LDC A LIS 2 AP STOP)", compileString(t, u, c, "(add 1 'a)"))
	c.Fold = false
	assert.Equal(t, "(LDFC ADD LDC 1 LDC 2 LIS 2 AP STOP)", compileString(t, u, c, "(add 1 2)"))
}

func TestMacroExpansion(t *testing.T) {
	u, c := setup()
	m := u.User.Intern("M")
	m.Function = lisp.NewMacro(&lisp.Macro{Name: m})

	_, err := c.Compile(read(t, u, "(m 1)"), lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.MalformedForm))

	exp := &constantExpander{result: lisp.NewInteger(42)}
	c.Expander = exp
	assert.Equal(t, "(LDC 42 STOP)", compileString(t, u, c, "(m 1)"))
	require.Len(t, exp.seen, 1)
	assert.Equal(t, "(M 1)", lisp.Sprint(exp.seen[0]))

	result, expanded, err := c.MacroExpand1(read(t, u, "(m 2)"))
	require.NoError(t, err)
	assert.True(t, expanded)
	assert.Equal(t, lisp.NewInteger(42), result)

	result, expanded, err = c.MacroExpand1(read(t, u, "(f 2)"))
	require.NoError(t, err)
	assert.False(t, expanded)
	assert.Equal(t, "(F 2)", lisp.Sprint(result))

	// lexical functions shadow macros
	code := compileString(t, u, c, "(flet ((m () 1)) (m))")
	assert.NotContains(t, code, "42")
}
