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
	"github.com/launix-de/secdlisp/lisp"
)

func (e *Engine) declareBuiltins() {
	e.declareArithmetic()
	e.declareLists()
	e.declarePredicates()
	e.declareControl()
	e.declareSymbols()
	e.declareHashTables()
	e.declareStrings()
	e.declarePrinting()
	e.declareSystem()
}

func fault(name, format string, args ...any) error {
	return lisp.Fault(name+": "+format, args...)
}

func integerArg(name string, v lisp.Value) (int, error) {
	if v.Type() != lisp.TInteger {
		return 0, fault(name, "%s is not a fixnum", v)
	}
	return int(v.Int()), nil
}

func indexArg(name string, v lisp.Value) (int, error) {
	i, err := integerArg(name, v)
	if err == nil && i < 0 {
		return 0, fault(name, "negative index %d", i)
	}
	return i, err
}

func listArg(name string, v lisp.Value) ([]lisp.Value, error) {
	items, ok := v.Slice()
	if !ok {
		return nil, fault(name, "%s is not a proper list", v)
	}
	return items, nil
}

func consArg(name string, v lisp.Value) (lisp.Value, error) {
	if !v.IsCons() {
		return lisp.Nil, fault(name, "%s is not a cons", v)
	}
	return v, nil
}

func foldNumbers(init lisp.Value, args []lisp.Value, op func(a, b lisp.Value) (lisp.Value, error)) (lisp.Value, error) {
	acc := init
	for _, v := range args {
		var err error
		if acc, err = op(acc, v); err != nil {
			return lisp.Nil, err
		}
	}
	return acc, nil
}

func compareChain(name string, args []lisp.Value, holds func(c int) bool) (lisp.Value, error) {
	if len(args) == 1 && !args[0].IsNumber() {
		return lisp.Nil, fault(name, "%s is not a number", args[0])
	}
	for i := 0; i+1 < len(args); i++ {
		c, err := lisp.Compare(args[i], args[i+1])
		if err != nil {
			return lisp.Nil, err
		}
		if !holds(c) {
			return lisp.Nil, nil
		}
	}
	return lisp.True, nil
}

var numbers = []DeclarationParameter{{"number...", "number", "operands"}}

func (e *Engine) declareArithmetic() {
	e.DeclareTitle("Arithmetic")
	e.Declare(&Declaration{
		Name: "+", Desc: "adds numbers; fixnums overflow into bignums",
		MinParameter: 0, MaxParameter: -1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return foldNumbers(lisp.NewInteger(0), a, lisp.Add)
		},
	})
	e.Declare(&Declaration{
		Name: "-", Desc: "subtracts the other numbers from the first, or negates a single number",
		MinParameter: 1, MaxParameter: -1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if len(a) == 1 {
				return lisp.Sub(lisp.NewInteger(0), a[0])
			}
			return foldNumbers(a[0], a[1:], lisp.Sub)
		},
	})
	e.Declare(&Declaration{
		Name: "*", Desc: "multiplies numbers",
		MinParameter: 0, MaxParameter: -1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return foldNumbers(lisp.NewInteger(1), a, lisp.Mul)
		},
	})
	e.Declare(&Declaration{
		Name: "/", Desc: "divides the first number by the others; exact integer quotients stay integers",
		MinParameter: 1, MaxParameter: -1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if len(a) == 1 {
				return lisp.Div(lisp.NewInteger(1), a[0])
			}
			return foldNumbers(a[0], a[1:], lisp.Div)
		},
	})
	e.Declare(&Declaration{
		Name: "mod", Desc: "floored modulus",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"number", "int", "dividend"},
			{"divisor", "int", "divisor"},
		}, Returns: "int", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.Mod(a[0], a[1]) },
	})
	e.Declare(&Declaration{
		Name: "1+", Desc: "adds one",
		MinParameter: 1, MaxParameter: 1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.Add(a[0], lisp.NewInteger(1)) },
	})
	e.Declare(&Declaration{
		Name: "1-", Desc: "subtracts one",
		MinParameter: 1, MaxParameter: 1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.Sub(a[0], lisp.NewInteger(1)) },
	})
	e.Declare(&Declaration{
		Name: "abs", Desc: "absolute value",
		MinParameter: 1, MaxParameter: 1, Params: numbers, Returns: "number", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			c, err := lisp.Compare(a[0], lisp.NewInteger(0))
			if err != nil || c >= 0 {
				return a[0], err
			}
			return lisp.Sub(lisp.NewInteger(0), a[0])
		},
	})
	for _, cmp := range []struct {
		name, desc string
		holds      func(int) bool
	}{
		{"=", "true if all numbers are equal", func(c int) bool { return c == 0 }},
		{"<", "true if the numbers are strictly increasing", func(c int) bool { return c < 0 }},
		{">", "true if the numbers are strictly decreasing", func(c int) bool { return c > 0 }},
		{"<=", "true if the numbers are not decreasing", func(c int) bool { return c <= 0 }},
		{">=", "true if the numbers are not increasing", func(c int) bool { return c >= 0 }},
	} {
		cmp := cmp
		e.Declare(&Declaration{
			Name: cmp.name, Desc: cmp.desc,
			MinParameter: 1, MaxParameter: -1, Params: numbers, Returns: "bool", Foldable: true,
			Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
				return compareChain(cmp.name, a, cmp.holds)
			},
		})
	}
	for _, ext := range []struct {
		name, desc string
		pick       int
	}{
		{"min", "smallest of the numbers", -1},
		{"max", "largest of the numbers", 1},
	} {
		ext := ext
		e.Declare(&Declaration{
			Name: ext.name, Desc: ext.desc,
			MinParameter: 1, MaxParameter: -1, Params: numbers, Returns: "number", Foldable: true,
			Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
				if !a[0].IsNumber() {
					return lisp.Nil, fault(ext.name, "%s is not a number", a[0])
				}
				best := a[0]
				for _, v := range a[1:] {
					c, err := lisp.Compare(v, best)
					if err != nil {
						return lisp.Nil, err
					}
					if c == ext.pick {
						best = v
					}
				}
				return best, nil
			},
		})
	}
}

func (e *Engine) declareLists() {
	e.DeclareTitle("Lists")
	list := []DeclarationParameter{{"list", "list", "a list"}}
	e.Declare(&Declaration{
		Name: "car", Desc: "first element of a list; (car nil) is nil",
		MinParameter: 1, MaxParameter: 1, Params: list, Returns: "any", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if !a[0].IsList() {
				return lisp.Nil, fault("car", "%s is not a list", a[0])
			}
			return a[0].Car(), nil
		},
	})
	e.Declare(&Declaration{
		Name: "cdr", Desc: "rest of a list; (cdr nil) is nil",
		MinParameter: 1, MaxParameter: 1, Params: list, Returns: "any", Foldable: true,
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if !a[0].IsList() {
				return lisp.Nil, fault("cdr", "%s is not a list", a[0])
			}
			return a[0].Cdr(), nil
		},
	})
	e.Declare(&Declaration{
		Name: "cons", Desc: "creates a fresh cons cell",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"car", "any", "first part"},
			{"cdr", "any", "second part"},
		}, Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.NewCons(a[0], a[1]), nil },
	})
	e.Declare(&Declaration{
		Name: "list", Desc: "creates a fresh list of its arguments",
		MinParameter: 0, MaxParameter: -1,
		Params:  []DeclarationParameter{{"value...", "any", "elements"}},
		Returns: "list",
		Fn:      func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.List(a...), nil },
	})
	e.Declare(&Declaration{
		Name: "list*", Desc: "like list, but the last argument becomes the tail",
		MinParameter: 1, MaxParameter: -1,
		Params:  []DeclarationParameter{{"value...", "any", "elements followed by the tail"}},
		Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			return lisp.ListStar(a[len(a)-1], a[:len(a)-1]...), nil
		},
	})
	e.Declare(&Declaration{
		Name: "append", Desc: "concatenates lists; all but the last one are copied",
		MinParameter: 0, MaxParameter: -1,
		Params:  []DeclarationParameter{{"list...", "list", "lists to join"}},
		Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			for i := 0; i+1 < len(a); i++ {
				if _, err := listArg("append", a[i]); err != nil {
					return lisp.Nil, err
				}
			}
			return lisp.Append(a...), nil
		},
	})
	e.Declare(&Declaration{
		Name: "reverse", Desc: "reversed copy of a list or string",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"sequence", "list|string", "list or string"}},
		Returns: "list|string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if a[0].IsString() {
				runes := a[0].StringObject().Runes
				out := make([]rune, len(runes))
				for i, r := range runes {
					out[len(runes)-1-i] = r
				}
				return lisp.NewString(string(out)), nil
			}
			if _, err := listArg("reverse", a[0]); err != nil {
				return lisp.Nil, err
			}
			return lisp.Reverse(a[0]), nil
		},
	})
	e.Declare(&Declaration{
		Name: "length", Desc: "number of elements of a proper list or string",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"sequence", "list|string", "list or string"}},
		Returns: "int",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			if a[0].IsString() {
				return lisp.NewInteger(int64(len(a[0].StringObject().Runes))), nil
			}
			n := a[0].Length()
			if n < 0 || !a[0].IsList() {
				return lisp.Nil, fault("length", "%s is not a proper list", a[0])
			}
			return lisp.NewInteger(int64(n)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "nth", Desc: "element at a 0-based position, nil past the end",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"index", "int", "position"},
			{"list", "list", "a list"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			i, err := indexArg("nth", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return a[1].Nth(i), nil
		},
	})
	e.Declare(&Declaration{
		Name: "nthcdr", Desc: "the list after dropping n elements",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"n", "int", "number of elements to drop"},
			{"list", "list", "a list"},
		}, Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			i, err := indexArg("nthcdr", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return a[1].NthCell(i), nil
		},
	})
	e.Declare(&Declaration{
		Name: "last", Desc: "the last cons of a list",
		MinParameter: 1, MaxParameter: 1, Params: list, Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			n := a[0].Length()
			if n < 0 {
				return lisp.Nil, fault("last", "%s is not a proper list", a[0])
			}
			if n == 0 {
				return lisp.Nil, nil
			}
			return a[0].NthCell(n - 1), nil
		},
	})
	for _, set := range []struct {
		name, desc string
		fn         func(cell, v lisp.Value) bool
	}{
		{"rplaca", "replaces the car of a cons in place", lisp.Rplaca},
		{"rplacd", "replaces the cdr of a cons in place", lisp.Rplacd},
	} {
		set := set
		e.Declare(&Declaration{
			Name: set.name, Desc: set.desc,
			MinParameter: 2, MaxParameter: 2,
			Params: []DeclarationParameter{
				{"cons", "list", "cell to modify"},
				{"value", "any", "new value"},
			}, Returns: "list",
			Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
				cell, err := consArg(set.name, a[0])
				if err != nil {
					return lisp.Nil, err
				}
				set.fn(cell, a[1])
				return cell, nil
			},
		})
	}
}

func (e *Engine) declarePredicates() {
	e.DeclareTitle("Predicates")
	value := []DeclarationParameter{{"value", "any", "value to test"}}
	for _, pred := range []struct {
		name, desc string
		test       func(v lisp.Value) bool
	}{
		{"null", "true for nil", lisp.Value.IsNil},
		{"atom", "true for everything but conses", lisp.Value.IsAtom},
		{"consp", "true for conses", lisp.Value.IsCons},
		{"listp", "true for conses and nil", lisp.Value.IsList},
		{"symbolp", "true for symbols, including nil and t", func(v lisp.Value) bool {
			return v.IsSymbol() || v.IsNil() || v.Type() == lisp.TTrue
		}},
		{"keywordp", "true for keywords", func(v lisp.Value) bool { return v.IsSymbol() && v.Symbol().IsKeyword() }},
		{"stringp", "true for strings", lisp.Value.IsString},
		{"characterp", "true for characters", func(v lisp.Value) bool { return v.Type() == lisp.TCharacter }},
		{"numberp", "true for numbers", lisp.Value.IsNumber},
		{"integerp", "true for fixnums and bignums", lisp.Value.IsInteger},
		{"floatp", "true for reals", func(v lisp.Value) bool { return v.Type() == lisp.TReal }},
		{"functionp", "true for closures and primitives", lisp.Value.IsFunction},
		{"hash-table-p", "true for hash tables", func(v lisp.Value) bool { return v.Type() == lisp.THashTable }},
		{"packagep", "true for packages", func(v lisp.Value) bool { return v.Type() == lisp.TPackage }},
	} {
		pred := pred
		e.Declare(&Declaration{
			Name: pred.name, Desc: pred.desc,
			MinParameter: 1, MaxParameter: 1, Params: value, Returns: "bool", Foldable: true,
			Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.Bool(pred.test(a[0])), nil },
		})
	}
	two := []DeclarationParameter{
		{"a", "any", "first value"},
		{"b", "any", "second value"},
	}
	for _, eq := range []struct {
		name, desc string
		test       func(a, b lisp.Value) bool
	}{
		{"eq", "identity", lisp.Eq},
		{"eql", "identity, or same number or character", lisp.Eql},
		{"equal", "structural equality of conses and strings", lisp.Equal},
	} {
		eq := eq
		e.Declare(&Declaration{
			Name: eq.name, Desc: eq.desc,
			MinParameter: 2, MaxParameter: 2, Params: two, Returns: "bool", Foldable: true,
			Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) { return lisp.Bool(eq.test(a[0], a[1])), nil },
		})
	}
}
