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
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/launix-de/secdlisp/lisp"
)

// Reader turns a character stream into forms, one external representation
// per Read call.
type Reader struct {
	Package *lisp.Package // where unqualified symbols are interned
	Log     *slog.Logger

	in       io.RuneReader
	u        *lisp.Universe
	pushback []rune
	line     int
	// number of enclosing backquotes; comma is legal only while positive
	backquote int
}

// New creates a reader interning into pkg. A nil logger discards warnings.
func New(in io.Reader, u *lisp.Universe, pkg *lisp.Package, log *slog.Logger) *Reader {
	rr, ok := in.(io.RuneReader)
	if !ok {
		rr = bufio.NewReader(in)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{Package: pkg, Log: log, in: rr, u: u, line: 1}
}

// ReadString reads the first form of s.
func ReadString(s string, u *lisp.Universe, pkg *lisp.Package) (lisp.Value, error) {
	return New(strings.NewReader(s), u, pkg, nil).Read()
}

// ReadAll reads every form of s.
func ReadAll(s string, u *lisp.Universe, pkg *lisp.Package) ([]lisp.Value, error) {
	r := New(strings.NewReader(s), u, pkg, nil)
	var result []lisp.Value
	for {
		v, err := r.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return result, err
		}
		result = append(result, v)
	}
}

// Line is the current line of the input, starting at 1.
func (r *Reader) Line() int { return r.line }

// Read returns the next form. At a clean end of input it returns io.EOF;
// input ending inside a form yields a lisp.Incomplete error.
func (r *Reader) Read() (lisp.Value, error) {
	r.backquote = 0
	if err := r.skipBlank(); err != nil {
		if err == io.EOF {
			return lisp.Nil, io.EOF
		}
		return lisp.Nil, err
	}
	return r.read()
}

func (r *Reader) next() (rune, error) {
	if n := len(r.pushback); n > 0 {
		c := r.pushback[n-1]
		r.pushback = r.pushback[:n-1]
		if c == '\n' {
			r.line++
		}
		return c, nil
	}
	c, _, err := r.in.ReadRune()
	if err != nil {
		return 0, err
	}
	if c == '\n' {
		r.line++
	}
	return c, nil
}

func (r *Reader) unread(c rune) {
	if c == '\n' {
		r.line--
	}
	r.pushback = append(r.pushback, c)
}

func (r *Reader) peek() (rune, error) {
	c, err := r.next()
	if err == nil {
		r.unread(c)
	}
	return c, err
}

func (r *Reader) incomplete(what string) error {
	return lisp.Incomplete.New("unexpected end of input in %s (line %d)", what, r.line)
}

func (r *Reader) malformed(format string, args ...any) error {
	return lisp.Malformed.New(format+" (line %d)", append(args, r.line)...)
}

func (r *Reader) warn(msg string, args ...any) {
	r.Log.Warn(msg, append(args, "line", r.line)...)
}

// skipBlank consumes whitespace, line comments and #| |# block comments.
func (r *Reader) skipBlank() error {
	for {
		c, err := r.next()
		if err != nil {
			return err
		}
		switch {
		case isWhitespace(c):
		case c == ';':
			for c != '\n' {
				if c, err = r.next(); err != nil {
					return err
				}
			}
		case c == '#':
			d, err := r.next()
			if err != nil {
				r.unread(c)
				return nil
			}
			if d != '|' {
				r.unread(d)
				r.unread(c)
				return nil
			}
			if err := r.skipBlockComment(); err != nil {
				return err
			}
		default:
			r.unread(c)
			return nil
		}
	}
}

// the first |# ends the comment
func (r *Reader) skipBlockComment() error {
	prev := rune(0)
	for {
		c, err := r.next()
		if err != nil {
			return r.incomplete("#| comment")
		}
		if prev == '|' && c == '#' {
			return nil
		}
		prev = c
	}
}

// readNested reads a form that must exist because an enclosing construct
// is still open.
func (r *Reader) readNested(what string) (lisp.Value, error) {
	if err := r.skipBlank(); err != nil {
		if err == io.EOF {
			return lisp.Nil, r.incomplete(what)
		}
		return lisp.Nil, err
	}
	return r.read()
}

func (r *Reader) read() (lisp.Value, error) {
	c, err := r.next()
	if err != nil {
		return lisp.Nil, r.incomplete("form")
	}
	s := r.u.Syms
	switch c {
	case '(':
		return r.readList()
	case ')':
		r.warn("ignoring unexpected )")
		return lisp.Nil, nil
	case '\'':
		return r.wrap(s.Quote, "quote")
	case '`':
		r.backquote++
		v, err := r.wrap(s.Backquote, "backquote")
		r.backquote--
		return v, err
	case ',':
		if r.backquote == 0 {
			return lisp.Nil, r.malformed("comma outside of backquote")
		}
		marker := s.Comma
		if d, err := r.peek(); err == nil && d == '@' {
			r.next()
			marker = s.CommaAt
		}
		r.backquote--
		v, err := r.wrap(marker, "comma")
		r.backquote++
		return v, err
	case '"':
		return r.readString()
	case '#':
		return r.readDispatch()
	}
	r.unread(c)
	return r.readToken()
}

func (r *Reader) wrap(marker *lisp.Symbol, what string) (lisp.Value, error) {
	v, err := r.readNested(what)
	if err != nil {
		return lisp.Nil, err
	}
	return lisp.List(lisp.NewSymbolValue(marker), v), nil
}

func (r *Reader) readList() (lisp.Value, error) {
	var items []lisp.Value
	tail := lisp.Nil
	dotted, broken := false, false
	afterDot := 0
	for {
		if err := r.skipBlank(); err != nil {
			if err == io.EOF {
				return lisp.Nil, r.incomplete("list")
			}
			return lisp.Nil, err
		}
		c, _ := r.next()
		if c == ')' {
			break
		}
		if c == '.' {
			d, err := r.peek()
			if err != nil {
				return lisp.Nil, r.incomplete("list")
			}
			if isDelimiter(d) {
				if dotted || len(items) == 0 {
					r.warn("malformed dotted list")
					broken = true
				}
				dotted = true
				continue
			}
		}
		r.unread(c)
		v, err := r.read()
		if err != nil {
			return lisp.Nil, err
		}
		if dotted {
			tail = v
			afterDot++
			continue
		}
		items = append(items, v)
	}
	if dotted && afterDot != 1 {
		if !broken {
			r.warn("malformed dotted list")
		}
		broken = true
	}
	if broken {
		return lisp.Nil, nil
	}
	return lisp.ListStar(tail, items...), nil
}

func (r *Reader) readString() (lisp.Value, error) {
	var sb strings.Builder
	for {
		c, err := r.next()
		if err != nil {
			return lisp.Nil, r.incomplete("string")
		}
		switch c {
		case '"':
			return lisp.NewString(sb.String()), nil
		case '\\':
			if c, err = r.next(); err != nil {
				return lisp.Nil, r.incomplete("string")
			}
		}
		sb.WriteRune(c)
	}
}

func (r *Reader) readDispatch() (lisp.Value, error) {
	c, err := r.next()
	if err != nil {
		return lisp.Nil, r.incomplete("# syntax")
	}
	switch c {
	case '\'':
		return r.wrap(r.u.Syms.Function, "#'")
	case ':':
		tok, err := r.scanToken()
		if err != nil {
			return lisp.Nil, err
		}
		return lisp.NewSymbolValue(lisp.NewSymbol(tok.fold(r.u.Case))), nil
	case '\\':
		return r.readCharacter()
	case '<':
		var sb strings.Builder
		for c != '>' {
			if c, err = r.next(); err != nil {
				return lisp.Nil, r.incomplete("#<")
			}
			sb.WriteRune(c)
		}
		r.warn("unreadable object", "syntax", "#<"+sb.String())
		return lisp.Nil, nil
	}
	return lisp.Nil, r.malformed("unknown dispatch macro #%c", c)
}

func (r *Reader) readCharacter() (lisp.Value, error) {
	c, err := r.next()
	if err != nil {
		return lisp.Nil, r.incomplete("character")
	}
	name := []rune{c}
	for {
		d, err := r.next()
		if err != nil {
			break
		}
		if isDelimiter(d) {
			r.unread(d)
			break
		}
		name = append(name, d)
	}
	if len(name) == 1 {
		return lisp.NewCharacter(c), nil
	}
	if ch, ok := lisp.CharByName(string(name)); ok {
		return lisp.NewCharacter(ch), nil
	}
	return lisp.Nil, r.malformed("unknown character name %s", string(name))
}
