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
package engine

import (
	"fmt"
	"runtime"
	"strings"

	units "github.com/docker/go-units"

	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/secd"
)

// format implements the directives ~a ~s ~d ~% and ~~.
func (e *Engine) format(control string, args []lisp.Value) (string, error) {
	var b strings.Builder
	runes := []rune(control)
	next := 0
	arg := func(directive rune) (lisp.Value, error) {
		if next >= len(args) {
			return lisp.Nil, fault("format", "missing argument for ~%c", directive)
		}
		next++
		return args[next-1], nil
	}
	for i := 0; i < len(runes); i++ {
		if runes[i] != '~' {
			b.WriteRune(runes[i])
			continue
		}
		i++
		if i == len(runes) {
			return "", fault("format", "control string ends in ~")
		}
		switch d := runes[i]; d {
		case '%':
			b.WriteByte('\n')
		case '~':
			b.WriteByte('~')
		case 'a', 'A':
			v, err := arg(d)
			if err != nil {
				return "", err
			}
			b.WriteString(e.printer(false).Sprint(v))
		case 's', 'S':
			v, err := arg(d)
			if err != nil {
				return "", err
			}
			b.WriteString(e.printer(true).Sprint(v))
		case 'd', 'D':
			v, err := arg(d)
			if err != nil {
				return "", err
			}
			if !v.IsInteger() {
				return "", fault("format", "~d expects an integer, got %s", v)
			}
			b.WriteString(e.printer(false).Sprint(v))
		default:
			return "", fault("format", "unknown directive ~%c", d)
		}
	}
	return b.String(), nil
}

func stringArg(name string, v lisp.Value) (*lisp.String, error) {
	if !v.IsString() {
		return nil, fault(name, "%s is not a string", v)
	}
	return v.StringObject(), nil
}

func characterArg(name string, v lisp.Value) (rune, error) {
	if v.Type() != lisp.TCharacter {
		return 0, fault(name, "%s is not a character", v)
	}
	return v.Char(), nil
}

// bounds checks start and the optional end against a sequence length.
func bounds(name string, n int, a []lisp.Value) (start, end int, err error) {
	if start, err = indexArg(name, a[0]); err != nil {
		return
	}
	end = n
	if len(a) > 1 && a[1].IsTrue() {
		if end, err = indexArg(name, a[1]); err != nil {
			return
		}
	}
	if start > end || end > n {
		err = fault(name, "bad bounds %d..%d for length %d", start, end, n)
	}
	return
}

func (e *Engine) declareStrings() {
	e.DeclareTitle("Strings and characters")
	str := []DeclarationParameter{{"string", "string|symbol", "string designator"}}
	e.Declare(&Declaration{
		Name: "string", Desc: "converts a string designator (string, symbol, character) to a string",
		MinParameter: 1, MaxParameter: 1, Params: str, Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if a[0].IsString() {
				return a[0], nil
			}
			s, err := e.designator("string", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewString(s), nil
		},
	})
	e.Declare(&Declaration{
		Name: "string-upcase", Desc: "uppercase copy of a string",
		MinParameter: 1, MaxParameter: 1, Params: str, Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			s, err := e.designator("string-upcase", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewString(lisp.UpperCase(s)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "string-downcase", Desc: "lowercase copy of a string",
		MinParameter: 1, MaxParameter: 1, Params: str, Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			s, err := e.designator("string-downcase", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewString(lisp.LowerCase(s)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "string=", Desc: "true if both strings have the same characters",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"a", "string|symbol", "string designator"},
			{"b", "string|symbol", "string designator"},
		}, Returns: "bool", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			x, err := e.designator("string=", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			y, err := e.designator("string=", a[1])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.Bool(x == y), nil
		},
	})
	e.Declare(&Declaration{
		Name: "concatenate", Desc: "joins sequences into a new one; (concatenate 'string \"a\" \"b\") or (concatenate 'list ...)",
		MinParameter: 1, MaxParameter: -1,
		Params: []DeclarationParameter{
			{"type", "symbol", "string or list"},
			{"sequence...", "string|list", "sequences to join"},
		}, Returns: "string|list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			var items []lisp.Value
			for _, seq := range a[1:] {
				if seq.IsString() {
					for _, r := range seq.StringObject().Runes {
						items = append(items, lisp.NewCharacter(r))
					}
					continue
				}
				elems, err := listArg("concatenate", seq)
				if err != nil {
					return lisp.Nil, err
				}
				items = append(items, elems...)
			}
			kind, _ := e.designator("concatenate", a[0])
			switch lisp.UpperCase(kind) {
			case "LIST":
				return lisp.List(items...), nil
			case "STRING":
				runes := make([]rune, len(items))
				for i, c := range items {
					r, err := characterArg("concatenate", c)
					if err != nil {
						return lisp.Nil, err
					}
					runes[i] = r
				}
				return lisp.NewString(string(runes)), nil
			}
			return lisp.Nil, fault("concatenate", "unsupported result type %s", a[0])
		},
	})
	e.Declare(&Declaration{
		Name: "char", Desc: "character at a 0-based position of a string",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"string", "string", "a string"},
			{"index", "int", "position"},
		}, Returns: "char",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			s, err := stringArg("char", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			i, err := indexArg("char", a[1])
			if err != nil {
				return lisp.Nil, err
			}
			if i >= len(s.Runes) {
				return lisp.Nil, fault("char", "index %d out of range for length %d", i, len(s.Runes))
			}
			return lisp.NewCharacter(s.Runes[i]), nil
		},
	})
	e.Declare(&Declaration{
		Name: "char-code", Desc: "code point of a character",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"char", "char", "a character"}},
		Returns: "int", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			r, err := characterArg("char-code", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewInteger(int64(r)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "code-char", Desc: "character of a code point",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"code", "int", "a code point"}},
		Returns: "char", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			code, err := indexArg("code-char", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewCharacter(rune(code)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "subseq", Desc: "copy of a part of a string or list",
		MinParameter: 2, MaxParameter: 3,
		Params: []DeclarationParameter{
			{"sequence", "string|list", "a string or list"},
			{"start", "int", "first position"},
			{"end", "int", "position after the last, default the length"},
		}, Returns: "string|list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if a[0].IsString() {
				runes := a[0].StringObject().Runes
				start, end, err := bounds("subseq", len(runes), a[1:])
				if err != nil {
					return lisp.Nil, err
				}
				return lisp.NewString(string(runes[start:end])), nil
			}
			items, err := listArg("subseq", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			start, end, err := bounds("subseq", len(items), a[1:])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.List(items[start:end]...), nil
		},
	})
	e.Declare(&Declaration{
		Name: "parse-integer", Desc: "reads an integer from a string",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"string", "string", "decimal digits with optional sign"}},
		Returns: "int",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			s, err := stringArg("parse-integer", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			text := strings.TrimSpace(string(s.Runes))
			if v, ok := lisp.ParseNumber(text); ok && v.IsInteger() {
				return v, nil
			}
			return lisp.Nil, fault("parse-integer", "%q is not an integer", text)
		},
	})
	e.Declare(&Declaration{
		Name: "prin1-to-string", Desc: "readable printed representation",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"object", "any", "value to print"}},
		Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return lisp.NewString(e.printer(true).Sprint(a[0])), nil
		},
	})
	e.Declare(&Declaration{
		Name: "princ-to-string", Desc: "printed representation without escapes",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"object", "any", "value to print"}},
		Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return lisp.NewString(e.printer(false).Sprint(a[0])), nil
		},
	})
}

func (e *Engine) declarePrinting() {
	e.DeclareTitle("Printing")
	object := []DeclarationParameter{{"object", "any", "value to print"}}
	write := func(s string) error {
		_, err := fmt.Fprint(e.Out, s)
		return err
	}
	e.Declare(&Declaration{
		Name: "print", Desc: "prints a newline, the object readably and a space",
		MinParameter: 1, MaxParameter: 1, Params: object, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return a[0], write("\n" + e.printer(true).Sprint(a[0]) + " ")
		},
	})
	e.Declare(&Declaration{
		Name: "prin1", Desc: "prints the object readably",
		MinParameter: 1, MaxParameter: 1, Params: object, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return a[0], write(e.printer(true).Sprint(a[0]))
		},
	})
	e.Declare(&Declaration{
		Name: "princ", Desc: "prints the object without escapes",
		MinParameter: 1, MaxParameter: 1, Params: object, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return a[0], write(e.printer(false).Sprint(a[0]))
		},
	})
	e.Declare(&Declaration{
		Name: "terpri", Desc: "prints a newline",
		MinParameter: 0, MaxParameter: 0, Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return lisp.Nil, write("\n")
		},
	})
	e.Declare(&Declaration{
		Name: "format", Desc: "formats arguments with ~a ~s ~d ~% ~~; destination nil returns a string, t prints",
		MinParameter: 2, MaxParameter: -1,
		Params: []DeclarationParameter{
			{"destination", "bool", "nil or t"},
			{"control", "string", "control string"},
			{"arg...", "any", "arguments consumed by the directives"},
		}, Returns: "string|nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			control, err := stringArg("format", a[1])
			if err != nil {
				return lisp.Nil, err
			}
			s, err := e.format(string(control.Runes), a[2:])
			if err != nil {
				return lisp.Nil, err
			}
			if a[0].IsNil() {
				return lisp.NewString(s), nil
			}
			return lisp.Nil, write(s)
		},
	})
}

func (e *Engine) declareSystem() {
	e.DeclareTitle("System")
	e.Declare(&Declaration{
		Name: "room", Desc: "prints memory usage and the counters of the running machine",
		MinParameter: 0, MaxParameter: 0, Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			fmt.Fprintf(e.Out, "heap in use:     %s\n", units.HumanSize(float64(ms.HeapInuse)))
			fmt.Fprintf(e.Out, "total allocated: %s\n", units.HumanSize(float64(ms.TotalAlloc)))
			fmt.Fprintf(e.Out, "live objects:    %d\n", ms.HeapObjects)
			fmt.Fprintf(e.Out, "gc cycles:       %d\n", ms.NumGC)
			if m, ok := ctx.(*secd.Machine); ok {
				if _, err := m.Stats.FormatStatistics(e.Out); err != nil {
					return lisp.Nil, err
				}
				fmt.Fprintln(e.Out)
			}
			return lisp.Nil, nil
		},
	})
	e.Declare(&Declaration{
		Name: "help", Desc: "lists all functions or describes one",
		MinParameter: 0, MaxParameter: 1,
		Params:  []DeclarationParameter{{"topic", "string|symbol", "function name"}},
		Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			topic := ""
			if len(a) > 0 {
				var err error
				if topic, err = e.designator("help", a[0]); err != nil {
					return lisp.Nil, err
				}
			}
			return lisp.Nil, e.Help(e.Out, topic)
		},
	})
	e.Declare(&Declaration{
		Name: "load", Desc: "evaluates all forms of a source file; .gz, .xz and .lz4 files are decompressed",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"path", "string", "file name"}},
		Returns: "bool",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			path, err := stringArg("load", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if err := e.loadNested(string(path.Runes)); err != nil {
				return lisp.Nil, err
			}
			return lisp.True, nil
		},
	})
}
