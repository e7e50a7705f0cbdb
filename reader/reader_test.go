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
package reader

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joomcode/errorx"
	"github.com/launix-de/secdlisp/lisp"
)

func newUniverse() *lisp.Universe {
	return lisp.NewUniverse(lisp.Upcase)
}

func readOne(t *testing.T, u *lisp.Universe, src string) lisp.Value {
	t.Helper()
	v, err := ReadString(src, u, u.User)
	require.NoError(t, err, "reading %q", src)
	return v
}

func TestRoundTrip(t *testing.T) {
	u := newUniverse()
	pr := &lisp.Printer{Package: u.User, Escape: true}
	for _, src := range []string{
		"42",
		"-7",
		"123456789012345678901234567890",
		"1.5",
		"0.001",
		"1.0e+21",
		`"hello \"world\""`,
		`#\a`,
		`#\Space`,
		"FOO",
		"|mixed Case|",
		":KEY",
		"(1 2 (3 4) \"x\")",
		"(A . B)",
		"'X",
		"#'CAR",
		"`(A ,B ,@C)",
		"()",
		"T",
		"LISP::|internal|",
	} {
		v := readOne(t, u, src)
		printed := pr.Sprint(v)
		again := readOne(t, u, printed)
		assert.True(t, lisp.Equal(v, again), "%q printed as %q", src, printed)
	}
}

func TestAtoms(t *testing.T) {
	u := newUniverse()
	assert.Equal(t, lisp.True, readOne(t, u, "t"))
	assert.Equal(t, lisp.Nil, readOne(t, u, "nil"))
	assert.Equal(t, lisp.Nil, readOne(t, u, "()"))
	assert.Equal(t, lisp.NewInteger(12), readOne(t, u, "+12"))
	assert.Equal(t, lisp.TBigInteger, readOne(t, u, "99999999999999999999").Type())
	assert.Equal(t, lisp.NewReal(0.5), readOne(t, u, ".5"))
	assert.Equal(t, lisp.NewCharacter('\n'), readOne(t, u, `#\newline`))

	foo := readOne(t, u, "foo")
	require.True(t, foo.IsSymbol())
	assert.Equal(t, "FOO", foo.Symbol().Name)
	assert.Same(t, foo.Symbol(), readOne(t, u, "FOO").Symbol())

	bar := readOne(t, u, "|foo|bar")
	assert.Equal(t, "fooBAR", bar.Symbol().Name)

	kw := readOne(t, u, ":test")
	assert.Same(t, u.KeywordSymbol("TEST"), kw.Symbol())

	unint := readOne(t, u, "#:g")
	assert.Nil(t, unint.Symbol().Package)
	assert.NotSame(t, unint.Symbol(), readOne(t, u, "#:g").Symbol())
}

func TestCasePolicies(t *testing.T) {
	down := lisp.NewUniverse(lisp.Downcase)
	assert.Equal(t, "foo", readOne(t, down, "FoO").Symbol().Name)
	assert.Same(t, down.Syms.Lambda, readOne(t, down, "LAMBDA").Symbol())

	keep := lisp.NewUniverse(lisp.Preserve)
	assert.Equal(t, "FoO", readOne(t, keep, "FoO").Symbol().Name)
	assert.Same(t, keep.Syms.Lambda, readOne(t, keep, "lambda").Symbol())
}

func TestQuoteForms(t *testing.T) {
	u := newUniverse()
	s := u.Syms
	q := readOne(t, u, "'x")
	assert.Same(t, s.Quote, q.Car().Symbol())
	f := readOne(t, u, "#'x")
	assert.Same(t, s.Function, f.Car().Symbol())

	bq := readOne(t, u, "`(a ,b ,@c)")
	assert.Same(t, s.Backquote, bq.Car().Symbol())
	body := bq.Cadr()
	assert.Same(t, s.Comma, body.Nth(1).Car().Symbol())
	assert.Same(t, s.CommaAt, body.Nth(2).Car().Symbol())

	_, err := ReadString(",x", u, u.User)
	assert.True(t, errorx.IsOfType(err, lisp.Malformed))
	_, err = ReadString("`(a ,,b)", u, u.User)
	assert.True(t, errorx.IsOfType(err, lisp.Malformed))
	_, err = ReadString("``(a ,,b)", u, u.User)
	assert.NoError(t, err)
}

func TestIncompleteInput(t *testing.T) {
	u := newUniverse()
	for _, src := range []string{"(a b", `"abc`, "'", "(a . ", "#|", "|abc"} {
		_, err := ReadString(src, u, u.User)
		assert.True(t, errorx.IsOfType(err, lisp.Incomplete), "%q: %v", src, err)
		assert.True(t, errorx.IsOfType(err, lisp.ReadError))
	}
}

func TestStrayCloseParen(t *testing.T) {
	u := newUniverse()
	var logs bytes.Buffer
	r := New(strings.NewReader(")"), u, u.User, slog.New(slog.NewTextHandler(&logs, nil)))
	v, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)
	assert.Contains(t, logs.String(), "unexpected )")
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestDottedLists(t *testing.T) {
	u := newUniverse()
	v := readOne(t, u, "(1 2 . 3)")
	assert.Equal(t, "(1 2 . 3)", lisp.Sprint(v))
	assert.Equal(t, lisp.NewInteger(1), readOne(t, u, "(.5 . 1)").Cdr())

	var logs bytes.Buffer
	r := New(strings.NewReader("(1 . 2 . 3) 4"), u, u.User, slog.New(slog.NewTextHandler(&logs, nil)))
	v, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)
	assert.Contains(t, logs.String(), "malformed dotted list")
	v, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, lisp.NewInteger(4), v)
}

func TestComments(t *testing.T) {
	u := newUniverse()
	forms, err := ReadAll("; line\n1 #| block | still |# 2 (3 ; inner\n #| x |# 4)", u, u.User)
	require.NoError(t, err)
	require.Len(t, forms, 3)
	assert.Equal(t, "(3 4)", lisp.Sprint(forms[2]))
}

func TestUnreadableObject(t *testing.T) {
	u := newUniverse()
	var logs bytes.Buffer
	r := New(strings.NewReader("#<FOO 12>"), u, u.User, slog.New(slog.NewTextHandler(&logs, nil)))
	v, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)
	assert.Contains(t, logs.String(), "unreadable object")
}

func TestPackageQualifiers(t *testing.T) {
	u := newUniverse()
	assert.Same(t, u.Syms.Lambda, readOne(t, u, "lisp:lambda").Symbol())
	assert.Same(t, u.Syms.Lambda, readOne(t, u, "cl::lambda").Symbol())

	other := u.Registry.MakePackage("OTHER")
	secret := other.Intern("SECRET")
	assert.Same(t, secret, readOne(t, u, "other::secret").Symbol())

	var logs bytes.Buffer
	r := New(strings.NewReader("other:secret"), u, u.User, slog.New(slog.NewTextHandler(&logs, nil)))
	v, err := r.Read()
	require.NoError(t, err)
	assert.Same(t, u.User, v.Symbol().Package)
	assert.Contains(t, logs.String(), "not external")

	_, err = ReadString("nowhere:x", u, u.User)
	assert.True(t, errorx.IsOfType(err, lisp.Malformed))
}

func TestRestartableSequence(t *testing.T) {
	u := newUniverse()
	r := New(strings.NewReader("1 (2) \"3\""), u, u.User, nil)
	var got []string
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, lisp.Sprint(v))
	}
	assert.Equal(t, []string{"1", "(2)", `"3"`}, got)
}
