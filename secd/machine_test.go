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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joomcode/errorx"
	"github.com/launix-de/secdlisp/compiler"
	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/reader"
)

type fixture struct {
	u *lisp.Universe
	c *compiler.Compiler
	m *Machine
}

func newFixture() *fixture {
	u := lisp.NewUniverse(lisp.Upcase)
	def := func(name string, min, max int, kind lisp.PrimitiveKind, fn func(args []lisp.Value) (lisp.Value, error)) {
		u.Builtin(name).Function = lisp.NewPrimitive(&lisp.Primitive{
			Name: name, Min: min, Max: max, Kind: kind,
			Fn: func(ctx lisp.Context, args []lisp.Value) (lisp.Value, error) { return fn(args) },
		})
	}
	def("list", 0, -1, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) { return lisp.List(a...), nil })
	def("+", 2, 2, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) { return lisp.Add(a[0], a[1]) })
	def("-", 2, 2, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) { return lisp.Sub(a[0], a[1]) })
	def("*", 2, 2, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) { return lisp.Mul(a[0], a[1]) })
	def("=", 2, 2, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) {
		c, err := lisp.Compare(a[0], a[1])
		return lisp.Bool(c == 0), err
	})
	def("car", 1, 1, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) { return a[0].Car(), nil })
	def("funcall", 1, -1, lisp.PrimFuncall, nil)
	def("apply", 2, -1, lisp.PrimApply, nil)
	def("eval", 1, 1, lisp.PrimEval, nil)
	def("%defun", 2, 2, lisp.PrimPlain, func(a []lisp.Value) (lisp.Value, error) {
		a[0].Symbol().Function = a[1]
		return a[0], nil
	})
	c := compiler.New(u, nil)
	return &fixture{u: u, c: c, m: New(c)}
}

func (f *fixture) compile(t *testing.T, src string) lisp.Value {
	t.Helper()
	form, err := reader.ReadString(src, f.u, f.u.User)
	require.NoError(t, err)
	code, err := f.c.Compile(form, lisp.Nil)
	require.NoError(t, err, "compiling %s", src)
	return code
}

func (f *fixture) run(t *testing.T, src string) (lisp.Value, error) {
	t.Helper()
	return f.m.Execute(f.compile(t, src), lisp.Nil)
}

func (f *fixture) eval(t *testing.T, src string) string {
	t.Helper()
	v, err := f.run(t, src)
	require.NoError(t, err, "evaluating %s", src)
	assert.Empty(t, f.m.D, "dump must be empty after STOP")
	return (&lisp.Printer{Package: f.u.User, Case: f.u.Case, Escape: true}).Sprint(v)
}

func TestLexicalAddressing(t *testing.T) {
	f := newFixture()
	outer, err := f.run(t, "(lambda (a b) (lambda (c) (list a c)))")
	require.NoError(t, err)
	inner, err := f.m.Apply(outer, lisp.List(lisp.NewInteger(1), lisp.NewInteger(2)))
	require.NoError(t, err)
	result, err := f.m.Apply(inner, lisp.List(lisp.NewInteger(3)))
	require.NoError(t, err)
	assert.Equal(t, "(1 3)", lisp.Sprint(result))
	assert.Empty(t, f.m.D)

	assert.Equal(t, "(1 3)", f.eval(t, "(funcall ((lambda (a b) (lambda (c) (list a c))) 1 2) 3)"))
}

func TestDynamicBinding(t *testing.T) {
	f := newFixture()
	x := f.u.User.Intern("X")
	x.Value = lisp.NewInteger(10)
	assert.Equal(t, "20", f.eval(t, "(progn (sp-bind x 20) (get-special x))"))
	assert.Equal(t, int32(1), x.BindingDepth())
	assert.Equal(t, "20", f.eval(t, "x"))
	f.eval(t, "(sp-unbind x)")
	assert.Equal(t, int32(0), x.BindingDepth())
	assert.Equal(t, "10", f.eval(t, "x"))
	assert.Equal(t, lisp.NewInteger(10), x.Value)
}

func TestSpecialSetOnlyTouchesTopBinding(t *testing.T) {
	f := newFixture()
	x := f.u.User.Intern("X")
	x.Proclaim()
	x.Value = lisp.NewInteger(1)
	assert.Equal(t, "(2 3 1)", f.eval(t, `(list (let ((x 2)) x)
	                                          (let ((x 2)) (setq x 3) x)
	                                          x)`))
	assert.Equal(t, lisp.NewInteger(1), x.Value)

	f.eval(t, "(%defun 'get-x (lambda () x))")
	assert.Equal(t, "(5 1)", f.eval(t, "(list (let ((x 5)) (get-x)) (get-x))"))
}

func TestRecursiveClosure(t *testing.T) {
	f := newFixture()
	src := `(labels ((fact (n) (if (= n 0) 1 (* n (fact (- n 1))))))
	          (fact 5))`
	assert.Equal(t, "120", f.eval(t, src))

	src = `(labels ((even (n) (if (= n 0) t (odd (- n 1))))
	                (odd (n) (if (= n 0) nil (even (- n 1)))))
	          (list (even 10) (odd 7) (even 3)))`
	assert.Equal(t, "(T T NIL)", f.eval(t, src))
}

func TestTailCallsDoNotGrowDump(t *testing.T) {
	f := newFixture()
	src := `(labels ((loop (n acc) (if (= n 0) acc (loop (- n 1) (+ acc 1)))))
	          (loop 100000 0))`
	assert.Equal(t, "100000", f.eval(t, src))
	assert.Less(t, f.m.Stats.MaxDump, 10)

	f.eval(t, "(defun count-down (n) (if (= n 0) 'done (count-down (- n 1))))")
	assert.Equal(t, "DONE", f.eval(t, "(count-down 100000)"))
	assert.Less(t, f.m.Stats.MaxDump, 10)
}

func TestDefunRecursion(t *testing.T) {
	f := newFixture()
	f.eval(t, "(defun fib (n) (if (= n 0) 0 (if (= n 1) 1 (+ (fib (- n 1)) (fib (- n 2))))))")
	assert.Equal(t, "55", f.eval(t, "(fib 10)"))
}

func TestOptionalKeyAndRest(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "(1 2 NIL)", f.eval(t, "((lambda (a &optional (b 2) (c nil c-p)) (list a b c-p)) 1)"))
	assert.Equal(t, "(1 5 T)", f.eval(t, "((lambda (a &optional (b 2) (c nil c-p)) (list a b c-p)) 1 5 6)"))
	assert.Equal(t, "(1 1)", f.eval(t, "((lambda (a &optional (b a)) (list a b)) 1)"))
	assert.Equal(t, "(1 5 T)", f.eval(t, "((lambda (&key (a 1) (b 2 b-supplied)) (list a b b-supplied)) :b 5)"))
	assert.Equal(t, "(1 2 NIL)", f.eval(t, "((lambda (&key (a 1) (b 2 b-supplied)) (list a b b-supplied)))"))
	assert.Equal(t, "(1 (2 3))", f.eval(t, "((lambda (a &rest r) (list a r)) 1 2 3)"))
	assert.Equal(t, "(1 NIL)", f.eval(t, "((lambda (a &rest r) (list a r)) 1)"))
	assert.Equal(t, "(9)", f.eval(t, "((lambda (&rest r) (setq r (list 9)) r) 1 2)"))
	assert.Equal(t, "(1 9)", f.eval(t, "((lambda (a &rest r) (setq r 9) (list a r)) 1 2)"))
	assert.Equal(t, "(3 4)", f.eval(t, "((lambda (x &aux (y (+ x 1))) (list x y)) 3)"))

	_, err := f.run(t, "((lambda (&key a) a) :b 1)")
	assert.True(t, errorx.IsOfType(err, lisp.BindingError))
	_, err = f.run(t, "((lambda (a) a))")
	assert.True(t, errorx.IsOfType(err, lisp.BindingError))
}

func TestConditionals(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "(1 NIL 3 NIL 2 T)", f.eval(t, `(list (and 1 1) (and 1 nil 3) (and 1 2 3)
	                                                  (or) (or nil 2) (or nil nil t))`))
	assert.Equal(t, "(B C)", f.eval(t, `(list (cond (nil 'a) (t 'b)) (cond ((= 1 2) 'x) ('c)))`))
	assert.Equal(t, "(YES NO NIL)", f.eval(t, `(list (if 1 'yes 'no) (if nil 'yes 'no) (if nil 'yes))`))
	assert.Equal(t, "3", f.eval(t, "((lambda (x) (and x (or nil (+ x 1)))) 2)"))
	assert.Equal(t, "NIL", f.eval(t, "((lambda (x) (and x (+ x 1))) nil)"))
}

func TestBlocks(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "2", f.eval(t, "(block b 1 (return-from b 2) 3)"))
	assert.Equal(t, "3", f.eval(t, "(block b 1 2 3)"))
	assert.Equal(t, "(INNER 4)", f.eval(t, "(list (block nil (return 'inner) 'no) (+ 2 2))"))
	// return through a closure call
	assert.Equal(t, "7", f.eval(t, "(block out ((lambda (k) (funcall k)) (lambda () (return-from out 7))) 9)"))
	// defun bodies are blocks named after the function
	f.eval(t, "(defun early (x) (if (= x 0) (return-from early 'zero)) 'other)")
	assert.Equal(t, "(ZERO OTHER)", f.eval(t, "(list (early 0) (early 1))"))
}

func TestReturnFromExitsItsOwnActivation(t *testing.T) {
	f := newFixture()
	// the closure made by the outermost call exits that call's block even
	// when it runs inside deeper activations of the same block
	src := `(labels ((f (n k)
	                   (list n (block b
	                             (if (= n 0)
	                                 (funcall k)
	                                 (f (- n 1) (if k k (lambda () (return-from b 'out)))))))))
	          (f 2 nil))`
	assert.Equal(t, "(2 OUT)", f.eval(t, src))
}

func TestReturnFromUnwindsDynamicBindings(t *testing.T) {
	f := newFixture()
	x := f.u.User.Intern("X")
	x.Proclaim()
	x.Value = lisp.NewInteger(1)
	assert.Equal(t, "(5 1)", f.eval(t, "(list (block b (let ((x 5)) (return-from b x))) x)"))
	assert.Equal(t, int32(0), x.BindingDepth())
}

func TestFunctionPrimitives(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "3", f.eval(t, "(funcall #'+ 1 2)"))
	assert.Equal(t, "(1 2 3)", f.eval(t, "(apply #'list 1 '(2 3))"))
	assert.Equal(t, "6", f.eval(t, "(eval '(+ 1 (* 1 5)))"))
	assert.Equal(t, "(A 6)", f.eval(t, "(flet ((six () 6)) (list 'a (six)))"))
	assert.Equal(t, "10", f.eval(t, "((lambda (f) (funcall f 5)) (lambda (n) (* n 2)))"))
}

func TestMachineFaults(t *testing.T) {
	f := newFixture()
	_, err := f.m.Execute(lisp.Program(lisp.POP, lisp.STOP), lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.MachineFault))

	_, err = f.m.Execute(lisp.Program(lisp.LDC, lisp.NewInteger(1), lisp.LIS, 0, lisp.AP, lisp.STOP), lisp.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")

	// a SEL without JOIN leaves its dump entry behind
	_, err = f.m.Execute(lisp.Program(lisp.LDC, lisp.True, lisp.SEL, lisp.Program(lisp.LDC, lisp.NewInteger(1)), lisp.Program(), lisp.STOP), lisp.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump")

	_, err = f.run(t, "undefined-variable")
	assert.True(t, errorx.IsOfType(err, lisp.MachineFault))
	sym, ok := errorx.ExtractProperty(err, lisp.PropertySymbol)
	require.True(t, ok)
	assert.Contains(t, sym, "UNDEFINED-VARIABLE")

	_, err = f.run(t, "(+ 1 'a)")
	assert.True(t, errorx.IsOfType(err, lisp.MachineFault))

	// the machine stays usable
	assert.Equal(t, "3", f.eval(t, "(+ 1 2)"))
}

func TestFaultUnwindsBindings(t *testing.T) {
	f := newFixture()
	x := f.u.User.Intern("X")
	x.Value = lisp.NewInteger(1)
	_, err := f.run(t, "(progn (sp-bind x 2) (+ x 'oops))")
	require.Error(t, err)
	assert.Equal(t, int32(0), x.BindingDepth())
	assert.Equal(t, "1", f.eval(t, "x"))
}

func TestFaultKeepsOlderBindings(t *testing.T) {
	f := newFixture()
	x := f.u.User.Intern("X")
	y := f.u.User.Intern("Y")
	x.Value = lisp.NewInteger(1)
	y.Value = lisp.NewInteger(1)
	f.eval(t, "(sp-bind x 2)")

	_, err := f.run(t, "(progn (sp-unbind x) (sp-bind y 5) (+ y 'oops))")
	require.Error(t, err)
	assert.Equal(t, int32(0), y.BindingDepth())
	assert.Equal(t, "1", f.eval(t, "y"))
	// the unbind of the older binding is undone as well
	assert.Equal(t, int32(1), x.BindingDepth())
	assert.Equal(t, "2", f.eval(t, "x"))
	assert.Equal(t, 1, f.m.BindingDepth())

	f.eval(t, "(sp-unbind x)")
	assert.Equal(t, "1", f.eval(t, "x"))
	assert.Equal(t, 0, f.m.BindingDepth())
}

func TestApplyCopiesArguments(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "(99 (1 2))", f.eval(t, "(let ((l (list 1 2))) (list (apply (lambda (a b) (setq a 99) a) l) l))"))
	assert.Equal(t, "(1 2 3)", f.eval(t, "(let ((l (list 1 2 3))) (apply (lambda (a &rest r) (setq r 0) r) l) l)"))
	assert.Equal(t, "(0 (2))", f.eval(t, "(let ((l (list 2))) (list (apply (lambda (a b) (setq b 0) b) 1 l) l))"))

	fn, err := f.run(t, "(lambda (a b) (setq a 7) (list a b))")
	require.NoError(t, err)
	args := lisp.List(lisp.NewInteger(1), lisp.NewInteger(2))
	v, err := f.m.Apply(fn, args)
	require.NoError(t, err)
	assert.Equal(t, "(7 2)", lisp.Sprint(v))
	assert.Equal(t, "(1 2)", lisp.Sprint(args))
}

func TestCancellation(t *testing.T) {
	f := newFixture()
	code := f.compile(t, "(labels ((spin () (spin))) (spin))")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.m.ExecuteContext(ctx, code, lisp.Nil)
	assert.True(t, errorx.IsOfType(err, lisp.MachineFault))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestInitialEnvironment(t *testing.T) {
	f := newFixture()
	a := f.u.User.Intern("A")
	form, err := reader.ReadString("(list a a)", f.u, f.u.User)
	require.NoError(t, err)
	code, err := f.c.Compile(form, lisp.List(lisp.List(lisp.NewSymbolValue(a))))
	require.NoError(t, err)
	v, err := f.m.Execute(code, lisp.List(lisp.List(lisp.NewInteger(4))))
	require.NoError(t, err)
	assert.Equal(t, "(4 4)", lisp.Sprint(v))
}

func TestDisassemble(t *testing.T) {
	f := newFixture()
	text := Disassemble(f.compile(t, "(if x 1 2)"))
	assert.Contains(t, text, "LD_GLOBAL X")
	assert.Contains(t, text, "SEL")
	assert.Contains(t, text, "  LDC 1")
	assert.Contains(t, text, "STOP")
}
