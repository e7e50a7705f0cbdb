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
	"strings"
	"unicode"

	"github.com/launix-de/secdlisp/lisp"
)

func isWhitespace(c rune) bool {
	return unicode.IsSpace(c)
}

func isDelimiter(c rune) bool {
	return isWhitespace(c) || strings.ContainsRune("()\"';`,", c)
}

// token is a symbol or number token. Runes read inside |...| or after a
// backslash are escaped: they keep their case and never act as colons.
type token struct {
	runes   []rune
	escaped []bool
	anyEsc  bool
}

func (t *token) add(c rune, esc bool) {
	t.runes = append(t.runes, c)
	t.escaped = append(t.escaped, esc)
	t.anyEsc = t.anyEsc || esc
}

// foldRange applies the case policy to the unescaped runs of t[from:to].
func (t *token) foldRange(policy lisp.CasePolicy, from, to int) string {
	var sb strings.Builder
	start := from
	for i := from; i <= to; i++ {
		if i == to || t.escaped[i] != t.escaped[start] {
			part := string(t.runes[start:i])
			if !t.escaped[start] {
				part = policy.Fold(part)
			}
			sb.WriteString(part)
			start = i
		}
	}
	return sb.String()
}

func (t *token) fold(policy lisp.CasePolicy) string {
	if len(t.runes) == 0 {
		return ""
	}
	return t.foldRange(policy, 0, len(t.runes))
}

func (r *Reader) scanToken() (*token, error) {
	t := &token{}
	for {
		c, err := r.next()
		if err != nil {
			return t, nil
		}
		switch {
		case c == '|':
			for {
				if c, err = r.next(); err != nil {
					return nil, r.incomplete("|symbol|")
				}
				if c == '|' {
					break
				}
				if c == '\\' {
					if c, err = r.next(); err != nil {
						return nil, r.incomplete("|symbol|")
					}
				}
				t.add(c, true)
			}
			// |...| with nothing inside still names a symbol
			t.anyEsc = true
		case c == '\\':
			if c, err = r.next(); err != nil {
				return nil, r.incomplete("symbol")
			}
			t.add(c, true)
		case isDelimiter(c):
			r.unread(c)
			return t, nil
		default:
			t.add(c, false)
		}
	}
}

// readToken classifies a token: T and NIL, integer, real, else symbol.
func (r *Reader) readToken() (lisp.Value, error) {
	t, err := r.scanToken()
	if err != nil {
		return lisp.Nil, err
	}
	if !t.anyEsc {
		text := string(t.runes)
		switch {
		case strings.EqualFold(text, "t"):
			return lisp.True, nil
		case strings.EqualFold(text, "nil"):
			return lisp.Nil, nil
		}
		if v, ok := lisp.ParseNumber(text); ok {
			return v, nil
		}
	}
	return r.symbol(t)
}

func (r *Reader) symbol(t *token) (lisp.Value, error) {
	colon, double := -1, false
	for i, c := range t.runes {
		if c == ':' && !t.escaped[i] {
			colon = i
			double = i+1 < len(t.runes) && t.runes[i+1] == ':' && !t.escaped[i+1]
			break
		}
	}
	policy := r.u.Case
	if colon < 0 {
		return lisp.NewSymbolValue(r.Package.Intern(t.fold(policy))), nil
	}
	nameFrom := colon + 1
	if double {
		nameFrom++
	}
	name := ""
	if nameFrom < len(t.runes) {
		name = t.foldRange(policy, nameFrom, len(t.runes))
	}
	if colon == 0 {
		return lisp.NewSymbolValue(r.u.Keyword.Intern(name)), nil
	}

	pkgName := t.foldRange(policy, 0, colon)
	pkg := r.u.Registry.FindPackage(pkgName)
	if pkg == nil {
		return lisp.Nil, r.malformed("package %s not found", pkgName)
	}
	if double || pkg.IsKeyword() {
		return lisp.NewSymbolValue(pkg.Intern(name)), nil
	}
	if sym := pkg.FindExternal(name); sym != nil {
		return lisp.NewSymbolValue(sym), nil
	}
	r.warn("symbol is not external", "package", pkg.Name, "symbol", name)
	return lisp.NewSymbolValue(r.Package.Intern(name)), nil
}
