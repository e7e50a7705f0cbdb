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
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// Printer renders Values as text. With Escape set the output reads back
// as an equal Value (prin1), otherwise strings and characters are printed
// raw (princ).
type Printer struct {
	Package   *Package // symbols accessible here print unqualified
	Case      CasePolicy
	Escape    bool
	MaxDepth  int // nesting limit, 0 means 256
	MaxLength int // list length limit, 0 means 100000
}

// Sprint prints v readably without package context.
func Sprint(v Value) string {
	return (&Printer{Escape: true}).Sprint(v)
}

func (v Value) String() string {
	return Sprint(v)
}

func (p *Printer) Sprint(v Value) string {
	var b bytes.Buffer
	p.Print(&b, v)
	return b.String()
}

func (p *Printer) Print(b *bytes.Buffer, v Value) {
	p.print(b, v, 0)
}

func (p *Printer) maxDepth() int {
	if p.MaxDepth > 0 {
		return p.MaxDepth
	}
	return 256
}

func (p *Printer) maxLength() int {
	if p.MaxLength > 0 {
		return p.MaxLength
	}
	return 100000
}

func (p *Printer) print(b *bytes.Buffer, v Value, depth int) {
	switch v.typ {
	case TNil:
		b.WriteString(p.literal("NIL"))
	case TTrue:
		b.WriteString(p.literal("T"))
	case TInteger:
		fmt.Fprint(b, v.Int())
	case TBigInteger:
		b.WriteString(v.BigInt().String())
	case TReal:
		b.WriteString(FormatReal(v.Real()))
	case TCharacter:
		p.printChar(b, v.Char())
	case TString:
		if !p.Escape {
			b.WriteString(string(v.StringObject().Runes))
			return
		}
		b.WriteByte('"')
		for _, r := range v.StringObject().Runes {
			if r == '"' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	case TSymbol:
		p.printSymbol(b, v.Symbol())
	case TCons:
		p.printList(b, v, depth)
	case TPackage:
		fmt.Fprintf(b, "#<PACKAGE %s>", v.Package().Name)
	case TClosure:
		name := v.Closure().Template.Name
		if name.IsNil() {
			b.WriteString("#<FUNCTION (LAMBDA)>")
		} else {
			b.WriteString("#<FUNCTION ")
			p.print(b, name, depth+1)
			b.WriteByte('>')
		}
	case TPrimitive:
		fmt.Fprintf(b, "#<FUNCTION %s>", v.Primitive().Name)
	case TMacro:
		fmt.Fprintf(b, "#<MACRO %s>", v.Macro().Name.Name)
	case THashTable:
		h := v.HashTable()
		fmt.Fprintf(b, "#<HASH-TABLE :TEST %s :COUNT %d>", h.Test, h.Count())
	case TOpcode:
		b.WriteString(v.Opcode().String())
	case TAddress:
		d, i := v.Address()
		fmt.Fprintf(b, "(%d . %d)", d, i)
	case TTemplate:
		b.WriteString("#<TEMPLATE ")
		p.print(b, v.Template().Name, depth+1)
		b.WriteByte('>')
	case TUnbound:
		b.WriteString("#<UNBOUND>")
	default:
		fmt.Fprintf(b, "#<value %d>", v.typ)
	}
}

func (p *Printer) literal(s string) string {
	if p.Case == Upcase {
		return s
	}
	return strings.ToLower(s)
}

func (p *Printer) printChar(b *bytes.Buffer, r rune) {
	if !p.Escape {
		b.WriteRune(r)
		return
	}
	b.WriteString(`#\`)
	if name, ok := CharName(r); ok {
		b.WriteString(name)
		return
	}
	b.WriteRune(r)
}

// reader abbreviations for (quote x) and friends
var abbreviations = map[string]string{
	"QUOTE":     "'",
	"FUNCTION":  "#'",
	"BACKQUOTE": "`",
	"COMMA":     ",",
	"COMMA-AT":  ",@",
}

func abbreviation(v Value) (string, bool) {
	if !v.Car().IsSymbol() || !v.Cdr().IsCons() || !v.Cddr().IsNil() {
		return "", false
	}
	s := v.Car().Symbol()
	if s.Package == nil || s.Package.Name != "LISP" {
		return "", false
	}
	prefix, ok := abbreviations[strings.ToUpper(s.Name)]
	return prefix, ok
}

func (p *Printer) printList(b *bytes.Buffer, v Value, depth int) {
	if depth >= p.maxDepth() {
		b.WriteByte('#')
		return
	}
	if prefix, ok := abbreviation(v); ok {
		b.WriteString(prefix)
		p.print(b, v.Cadr(), depth+1)
		return
	}
	b.WriteByte('(')
	n := 0
	for {
		p.print(b, v.Car(), depth+1)
		v = v.Cdr()
		n++
		if v.IsNil() {
			break
		}
		if !v.IsCons() {
			b.WriteString(" . ")
			p.print(b, v, depth+1)
			break
		}
		if n >= p.maxLength() {
			b.WriteString(" ...")
			break
		}
		b.WriteByte(' ')
	}
	b.WriteByte(')')
}

func (p *Printer) printSymbol(b *bytes.Buffer, s *Symbol) {
	if !p.Escape {
		b.WriteString(s.Name)
		return
	}
	switch {
	case s.Package == nil:
		b.WriteString("#:")
	case s.Package.keyword:
		b.WriteByte(':')
	case p.Package != nil && p.Package.FindSymbol(s.Name) != s:
		p.writeName(b, s.Package.Name)
		if s.Package.IsExported(s) {
			b.WriteByte(':')
		} else {
			b.WriteString("::")
		}
	}
	p.writeName(b, s.Name)
}

const symbolDelimiters = " \t\n\r\f()'\"`,;|#\\:"

// needsBars reports whether the reader would not read name back verbatim.
func (p *Printer) needsBars(name string) bool {
	if name == "" || name == "." {
		return true
	}
	if _, isNumber := ParseNumber(name); isNumber {
		return true
	}
	if strings.EqualFold(name, "t") || strings.EqualFold(name, "nil") {
		return true
	}
	for _, r := range name {
		if strings.ContainsRune(symbolDelimiters, r) || unicode.IsSpace(r) {
			return true
		}
		if p.Case == Upcase && unicode.IsLower(r) || p.Case == Downcase && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func (p *Printer) writeName(b *bytes.Buffer, name string) {
	if !p.needsBars(name) {
		b.WriteString(name)
		return
	}
	b.WriteByte('|')
	for _, r := range name {
		if r == '|' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('|')
}
