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
package lambdalist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joomcode/errorx"
	"github.com/launix-de/secdlisp/lisp"
)

type fixture struct {
	u *lisp.Universe
}

func newFixture() *fixture {
	return &fixture{u: lisp.NewUniverse(lisp.Upcase)}
}

func (f *fixture) sym(name string) lisp.Value {
	return lisp.NewSymbolValue(f.u.User.Intern(name))
}

func (f *fixture) key(name string) lisp.Value {
	return lisp.NewSymbolValue(f.u.KeywordSymbol(name))
}

func (f *fixture) list(items ...any) lisp.Value {
	vals := make([]lisp.Value, len(items))
	for i, it := range items {
		switch x := it.(type) {
		case string:
			vals[i] = f.sym(x)
		case int:
			vals[i] = lisp.NewInteger(int64(x))
		case lisp.Value:
			vals[i] = x
		}
	}
	return lisp.List(vals...)
}

// evaluates literals and variables bound earlier
func literalEval(form lisp.Value, bound []Binding) (lisp.Value, error) {
	if form.IsSymbol() {
		for i := len(bound) - 1; i >= 0; i-- {
			if bound[i].Var == form.Symbol() {
				return bound[i].Value, nil
			}
		}
	}
	return form, nil
}

func lookup(t *testing.T, bs []Binding, name string) lisp.Value {
	t.Helper()
	for _, b := range bs {
		if b.Var.Name == name {
			return b.Value
		}
	}
	t.Fatalf("no binding for %s", name)
	return lisp.Nil
}

func TestKeywordDefaults(t *testing.T) {
	f := newFixture()
	spec := f.list("&KEY", f.list("A", 1), f.list("B", 2, "B-SUPPLIED"))
	ll, err := Parse(spec, f.u)
	require.NoError(t, err)

	bs, err := ll.Bind(f.list(f.key("B"), 5), literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(1), lookup(t, bs, "A"))
	assert.Equal(t, lisp.NewInteger(5), lookup(t, bs, "B"))
	assert.Equal(t, lisp.True, lookup(t, bs, "B-SUPPLIED"))

	bs, err = ll.Bind(lisp.Nil, literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(1), lookup(t, bs, "A"))
	assert.Equal(t, lisp.NewInteger(2), lookup(t, bs, "B"))
	assert.Equal(t, lisp.Nil, lookup(t, bs, "B-SUPPLIED"))
}

func TestFrameLayout(t *testing.T) {
	f := newFixture()
	spec := f.list("X", "&OPTIONAL", f.list("Y", 0, "Y-P"), "&REST", "R", "&KEY", "K", "&AUX", f.list("Z", 9))
	ll, err := Parse(spec, f.u)
	require.NoError(t, err)

	var names []string
	for _, v := range ll.Vars() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"X", "Y", "Y-P", "R", "K", "Z"}, names)
	assert.False(t, ll.Simple())

	// Y swallows :K, which leaves an odd keyword list
	_, err = ll.BindFrame(f.list(1, f.key("K"), 3))
	assert.True(t, errorx.IsOfType(err, lisp.BindingError))

	frame, err := ll.BindFrame(f.list(1, 2, f.key("K"), 3))
	require.NoError(t, err)
	items, ok := frame.Slice()
	require.True(t, ok)
	require.Len(t, items, 6)
	assert.Equal(t, lisp.NewInteger(1), items[0])
	assert.Equal(t, lisp.NewInteger(2), items[1])
	assert.Equal(t, lisp.True, items[2])
	assert.Equal(t, "(:K 3)", lisp.Sprint(items[3]))
	assert.Equal(t, lisp.NewInteger(3), items[4])
	assert.True(t, items[5].IsUnbound())

	defaults := ll.Defaults()
	assert.Equal(t, lisp.NewInteger(0), defaults[1])
	assert.Equal(t, lisp.NewInteger(9), defaults[5])
	_, required := defaults[0]
	assert.False(t, required)
}

func TestDefaultsSeeEarlierParameters(t *testing.T) {
	f := newFixture()
	spec := f.list("A", "&OPTIONAL", f.list("B", "A"), "&AUX", f.list("C", "B"))
	ll, err := Parse(spec, f.u)
	require.NoError(t, err)
	bs, err := ll.Bind(f.list(7), literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(7), lookup(t, bs, "B"))
	assert.Equal(t, lisp.NewInteger(7), lookup(t, bs, "C"))
}

func TestBindingErrors(t *testing.T) {
	f := newFixture()
	ll, err := Parse(f.list("A", "&KEY", "B"), f.u)
	require.NoError(t, err)

	_, err = ll.Bind(lisp.Nil, literalEval)
	assert.True(t, errorx.IsOfType(err, lisp.BindingError))

	_, err = ll.Bind(f.list(1, f.key("B")), literalEval)
	assert.True(t, errorx.IsOfType(err, lisp.BindingError))

	_, err = ll.Bind(f.list(1, f.key("C"), 2), literalEval)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keyword")

	// :allow-other-keys t in the call permits unknown keys
	bs, err := ll.Bind(f.list(1, f.key("C"), 2, f.key("ALLOW-OTHER-KEYS"), lisp.True), literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, lookup(t, bs, "B"))

	fixed, err := Parse(f.list("A"), f.u)
	require.NoError(t, err)
	_, err = fixed.Bind(f.list(1, 2), literalEval)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many")
}

func TestAllowOtherKeysDeclared(t *testing.T) {
	f := newFixture()
	ll, err := Parse(f.list("&KEY", "A", "&ALLOW-OTHER-KEYS"), f.u)
	require.NoError(t, err)
	bs, err := ll.Bind(f.list(f.key("Z"), 1, f.key("A"), 2, f.key("A"), 3), literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(2), lookup(t, bs, "A"))
}

func TestExplicitKeywordName(t *testing.T) {
	f := newFixture()
	ll, err := Parse(f.list("&KEY", f.list(f.list(f.key("OUTER"), "INNER"), 4)), f.u)
	require.NoError(t, err)
	bs, err := ll.Bind(f.list(f.key("OUTER"), 1), literalEval)
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(1), lookup(t, bs, "INNER"))
}

func TestDottedRest(t *testing.T) {
	f := newFixture()
	ll, err := Parse(lisp.ListStar(f.sym("R"), f.sym("A")), f.u)
	require.NoError(t, err)
	assert.True(t, ll.Simple())
	assert.Equal(t, "R", ll.Rest.Name)
}

func TestParseErrors(t *testing.T) {
	f := newFixture()
	for _, spec := range []lisp.Value{
		f.list("A", "A"),
		f.list("&REST"),
		f.list("&REST", "A", "B"),
		f.list(f.key("X")),
		f.list("&ALLOW-OTHER-KEYS"),
		f.list("&OPTIONAL", f.list("A", 1, "B", "C")),
		lisp.NewInteger(3),
	} {
		_, err := Parse(spec, f.u)
		assert.True(t, errorx.IsOfType(err, lisp.MalformedForm), "spec %s", spec)
	}
}
