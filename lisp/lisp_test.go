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

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquality(t *testing.T) {
	a := NewString("abc")
	b := NewString("abc")
	assert.False(t, Eq(a, b))
	assert.False(t, Eql(a, b))
	assert.True(t, Equal(a, b))

	assert.True(t, Eq(NewInteger(3), NewInteger(3)))
	assert.True(t, Eql(NewReal(1.5), NewReal(1.5)))
	assert.False(t, Eql(NewInteger(1), NewReal(1)))

	big1, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	big2, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.False(t, Eq(NewBigInteger(big1), NewBigInteger(big2)))
	assert.True(t, Eql(NewBigInteger(big1), NewBigInteger(big2)))

	l1 := List(NewInteger(1), List(NewString("x")), NewCharacter('c'))
	l2 := List(NewInteger(1), List(NewString("x")), NewCharacter('c'))
	assert.True(t, Equal(l1, l2))
	assert.False(t, Equal(l1, List(NewInteger(1))))
}

func TestListHelpers(t *testing.T) {
	l := List(NewInteger(1), NewInteger(2), NewInteger(3))
	assert.Equal(t, 3, l.Length())
	assert.Equal(t, NewInteger(2), l.Nth(1))
	assert.Equal(t, "(3 2 1)", Sprint(Reverse(l)))
	assert.Equal(t, "(1 2 3 1 2 3)", Sprint(Append(l, l)))

	dotted := ListStar(NewInteger(3), NewInteger(1), NewInteger(2))
	assert.Equal(t, -1, dotted.Length())
	_, ok := dotted.Slice()
	assert.False(t, ok)
	assert.Equal(t, "(1 2 . 3)", Sprint(dotted))

	c := CopyList(dotted)
	assert.Equal(t, "(1 2 . 3)", Sprint(c))
	Rplaca(c, NewInteger(9))
	assert.Equal(t, "(1 2 . 3)", Sprint(dotted))
	assert.Equal(t, Nil, CopyList(Nil))

	// a circular list is neither proper nor endless for Length
	cyc := List(NewInteger(1), NewInteger(2))
	Rplacd(cyc.Cdr(), cyc)
	assert.Equal(t, -1, cyc.Length())
	_, ok = cyc.Slice()
	assert.False(t, ok)
}

func TestArithmeticPromotion(t *testing.T) {
	v, err := Add(NewInteger(math.MaxInt64), NewInteger(1))
	require.NoError(t, err)
	assert.Equal(t, TBigInteger, v.Type())
	assert.Equal(t, "9223372036854775808", Sprint(v))

	v, err = Sub(v, NewInteger(1))
	require.NoError(t, err)
	assert.Equal(t, NewInteger(math.MaxInt64), v)

	v, err = Mul(NewInteger(1<<40), NewInteger(1<<40))
	require.NoError(t, err)
	assert.Equal(t, "1208925819614629174706176", Sprint(v))

	v, err = Div(NewInteger(6), NewInteger(3))
	require.NoError(t, err)
	assert.Equal(t, NewInteger(2), v)
	v, err = Div(NewInteger(1), NewInteger(2))
	require.NoError(t, err)
	assert.Equal(t, NewReal(0.5), v)

	_, err = Div(NewInteger(1), NewInteger(0))
	assert.True(t, err != nil)

	v, err = Mod(NewInteger(-5), NewInteger(3))
	require.NoError(t, err)
	assert.Equal(t, NewInteger(1), v)

	_, err = Add(NewString("x"), NewInteger(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber("-42")
	require.True(t, ok)
	assert.Equal(t, NewInteger(-42), v)
	v, ok = ParseNumber("99999999999999999999")
	require.True(t, ok)
	assert.Equal(t, TBigInteger, v.Type())
	v, ok = ParseNumber("1.5e3")
	require.True(t, ok)
	assert.Equal(t, NewReal(1500), v)
	_, ok = ParseNumber("1e3")
	assert.False(t, ok)
	_, ok = ParseNumber("abc")
	assert.False(t, ok)

	assert.Equal(t, "1.0", FormatReal(1))
	assert.Equal(t, "1.0e+21", FormatReal(1e21))
	assert.Equal(t, "0.25", FormatReal(0.25))
}

func TestPackages(t *testing.T) {
	u := NewUniverse(Upcase)
	assert.Same(t, u.Lisp, u.Registry.FindPackage("lisp"))
	assert.Same(t, u.Lisp, u.Registry.FindPackage("cl"))
	assert.Same(t, u.User, u.Registry.FindPackage("CL-USER"))
	assert.Nil(t, u.Registry.FindPackage("nope"))

	foo := u.User.Intern("FOO")
	assert.Same(t, foo, u.User.Intern("FOO"))
	assert.Same(t, u.Syms.Lambda, u.User.Intern("LAMBDA"))
	assert.Nil(t, u.Lisp.FindExternal("FOO"))

	kw := u.Keyword.Intern("test")
	assert.Equal(t, "TEST", kw.Name)
	assert.True(t, kw.IsKeyword())
	assert.True(t, kw.IsConstant())
	assert.Equal(t, NewSymbolValue(kw), kw.Value)

	other := u.Registry.MakePackage("OTHER")
	internal := other.Intern("SECRET")
	assert.Nil(t, u.User.FindSymbol("SECRET"))
	u.User.Use(other)
	assert.Nil(t, u.User.FindSymbol("SECRET"))
	u.Registry.Export(internal)
	assert.Same(t, internal, u.User.FindSymbol("SECRET"))

	syms := u.Registry.Apropos("secr")
	require.Len(t, syms, 1)
	assert.Same(t, internal, syms[0])
}

func TestPackageSymbolsSorted(t *testing.T) {
	u := NewUniverse(Upcase)
	p := u.Registry.MakePackage("SORTED")
	for _, n := range []string{"C", "A", "B"} {
		p.Intern(n)
	}
	var names []string
	for _, s := range p.Symbols() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestPrinter(t *testing.T) {
	u := NewUniverse(Upcase)
	pr := &Printer{Package: u.User, Escape: true}
	q := List(NewSymbolValue(u.Syms.Quote), NewSymbolValue(u.User.Intern("X")))
	assert.Equal(t, "'X", pr.Sprint(q))
	assert.Equal(t, ":KEY", pr.Sprint(NewSymbolValue(u.Keyword.Intern("key"))))
	assert.Equal(t, "|foo|", pr.Sprint(NewSymbolValue(u.User.Intern("foo"))))
	assert.Equal(t, "#:G1", pr.Sprint(NewSymbolValue(NewSymbol("G1"))))
	assert.Equal(t, `"a\"b"`, pr.Sprint(NewString(`a"b`)))
	assert.Equal(t, `#\Space`, pr.Sprint(NewCharacter(' ')))
	assert.Equal(t, `#\a`, pr.Sprint(NewCharacter('a')))
	assert.Equal(t, "NIL", pr.Sprint(Nil))
	assert.Equal(t, "T", pr.Sprint(True))

	other := u.Registry.MakePackage("OTHER")
	hidden := other.Intern("HIDDEN")
	assert.Equal(t, "OTHER::HIDDEN", pr.Sprint(NewSymbolValue(hidden)))
	u.Registry.Export(hidden)
	assert.Equal(t, "OTHER:HIDDEN", pr.Sprint(NewSymbolValue(hidden)))

	princ := &Printer{}
	assert.Equal(t, `a"b`, princ.Sprint(NewString(`a"b`)))
	assert.Equal(t, "a", princ.Sprint(NewCharacter('a')))
}

func TestPrinterCycleGuard(t *testing.T) {
	cyc := List(NewInteger(1))
	Rplacd(cyc, cyc)
	s := (&Printer{Escape: true, MaxLength: 5}).Sprint(cyc)
	assert.Equal(t, "(1 1 1 1 1 ...)", s)
}

func TestHashTable(t *testing.T) {
	h := NewHashTable(HashEqual)
	h.Put(NewString("k"), NewInteger(1))
	v, ok := h.Get(NewString("k"))
	require.True(t, ok)
	assert.Equal(t, NewInteger(1), v)

	e := NewHashTable(HashEq)
	e.Put(NewString("k"), NewInteger(1))
	_, ok = e.Get(NewString("k"))
	assert.False(t, ok)

	b1, _ := new(big.Int).SetString("100000000000000000000", 10)
	b2, _ := new(big.Int).SetString("100000000000000000000", 10)
	l := NewHashTable(HashEql)
	l.Put(NewBigInteger(b1), True)
	_, ok = l.Get(NewBigInteger(b2))
	assert.True(t, ok)
	assert.True(t, l.Remove(NewBigInteger(b2)))
	assert.Equal(t, 0, l.Count())
}

func TestSymbolPlist(t *testing.T) {
	s := NewSymbol("S")
	k := NewSymbolValue(NewSymbol("K"))
	assert.Equal(t, Nil, s.Get(k))
	s.Put(k, NewInteger(1))
	s.Put(k, NewInteger(2))
	assert.Equal(t, NewInteger(2), s.Get(k))
	assert.Equal(t, 2, s.Plist.Length())
}

func TestCasePolicy(t *testing.T) {
	c, err := ParseCasePolicy("downcase")
	require.NoError(t, err)
	assert.Equal(t, "foo", c.Fold("FoO"))
	assert.Equal(t, "FOO", Upcase.Fold("FoO"))
	assert.Equal(t, "FoO", Preserve.Fold("FoO"))
	_, err = ParseCasePolicy("sideways")
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	err := WithForm(Incomplete.New("unterminated list"), List(NewInteger(1)))
	assert.True(t, IsRecoverable(err))
	form, ok := FormOf(err)
	require.True(t, ok)
	assert.Equal(t, "(1)", form)
	assert.False(t, IsRecoverable(Fault("boom")))
}
