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
	"bytes"
	"fmt"

	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/secd"
)

// symbolArg accepts symbols including nil and t.
func (e *Engine) symbolArg(name string, v lisp.Value) (*lisp.Symbol, error) {
	switch v.Type() {
	case lisp.TSymbol:
		return v.Symbol(), nil
	case lisp.TNil:
		return e.Universe.Syms.NIL, nil
	case lisp.TTrue:
		return e.Universe.Syms.T, nil
	}
	return nil, fault(name, "%s is not a symbol", v)
}

// designator accepts strings, symbols and characters as names.
func (e *Engine) designator(name string, v lisp.Value) (string, error) {
	switch v.Type() {
	case lisp.TString:
		return v.Str(), nil
	case lisp.TCharacter:
		return string(v.Char()), nil
	}
	sym, err := e.symbolArg(name, v)
	if err != nil {
		return "", fault(name, "%s is not a string designator", v)
	}
	return sym.Name, nil
}

func (e *Engine) packageArg(name string, v lisp.Value) (*lisp.Package, error) {
	if v.Type() == lisp.TPackage {
		return v.Package(), nil
	}
	pkgName, err := e.designator(name, v)
	if err != nil {
		return nil, err
	}
	p := e.Universe.Registry.FindPackage(pkgName)
	if p == nil {
		return nil, fault(name, "no package named %s", pkgName)
	}
	return p, nil
}

func (e *Engine) declareControl() {
	e.DeclareTitle("Control")
	e.Declare(&Declaration{
		Name: "funcall", Desc: "calls a function with the given arguments",
		MinParameter: 1, MaxParameter: -1, Kind: lisp.PrimFuncall,
		Params: []DeclarationParameter{
			{"function", "func", "function to call"},
			{"arg...", "any", "arguments"},
		}, Returns: "any",
	})
	e.Declare(&Declaration{
		Name: "apply", Desc: "calls a function; the last argument is a list of further arguments",
		MinParameter: 2, MaxParameter: -1, Kind: lisp.PrimApply,
		Params: []DeclarationParameter{
			{"function", "func", "function to call"},
			{"arg...", "any", "arguments, the last one a list"},
		}, Returns: "any",
	})
	e.Declare(&Declaration{
		Name: "eval", Desc: "evaluates a form in the global environment",
		MinParameter: 1, MaxParameter: 1, Kind: lisp.PrimEval,
		Params:  []DeclarationParameter{{"form", "any", "form to evaluate"}},
		Returns: "any",
	})
	e.Declare(&Declaration{
		Name: "error", Desc: "signals a user error; the message is built like format",
		MinParameter: 1, MaxParameter: -1,
		Params: []DeclarationParameter{
			{"control", "string", "format control string"},
			{"arg...", "any", "format arguments"},
		}, Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			control, err := e.designator("error", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			msg, err := e.format(control, a[1:])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.Nil, lisp.UserError.New("%s", msg)
		},
	})
	e.Declare(&Declaration{
		Name: "%defun", Desc: "stores a function in the function cell of a symbol (used by defun)",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"name", "symbol", "function name"},
			{"function", "func", "the function"},
		}, Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.definable("%defun", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if !a[1].IsFunction() {
				return lisp.Nil, fault("%defun", "%s is not a function", a[1])
			}
			sym.Function = a[1]
			return lisp.NewSymbolValue(sym), nil
		},
	})
	e.Declare(&Declaration{
		Name: "%defmacro", Desc: "stores a macro expander in the function cell of a symbol (used by defmacro)",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"name", "symbol", "macro name"},
			{"expander", "func", "function from the argument forms to the expansion"},
		}, Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.definable("%defmacro", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if !a[1].IsFunction() {
				return lisp.Nil, fault("%defmacro", "%s is not a function", a[1])
			}
			sym.Function = lisp.NewMacro(&lisp.Macro{Name: sym, Expander: a[1]})
			return lisp.NewSymbolValue(sym), nil
		},
	})
	e.Declare(&Declaration{
		Name: "%defconstant", Desc: "makes a symbol a constant (used by defconstant)",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"name", "symbol", "constant name"},
			{"value", "any", "its value"},
		}, Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("%defconstant", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if sym.IsConstant() && !lisp.Eql(sym.Value, a[1]) {
				return lisp.Nil, fault("%defconstant", "%s is already a constant with a different value", sym.Name)
			}
			sym.MakeConstant(a[1])
			return lisp.NewSymbolValue(sym), nil
		},
	})
	e.Declare(&Declaration{
		Name: "macroexpand-1", Desc: "expands a macro call once; other forms are returned unchanged",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"form", "any", "form to expand"}},
		Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			result, _, err := e.Compiler.MacroExpand1(a[0])
			return result, err
		},
	})
	e.Declare(&Declaration{
		Name: "disassemble", Desc: "prints the bytecode of a compiled function",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"function", "func|symbol", "function or function name"}},
		Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			fn := a[0]
			if fn.IsSymbol() {
				fn = fn.Symbol().Function
			}
			switch fn.Type() {
			case lisp.TClosure:
				fmt.Fprint(e.Out, secd.Disassemble(fn.Closure().Template.Code))
			case lisp.TMacro:
				if exp := fn.Macro().Expander; exp.Type() == lisp.TClosure {
					fmt.Fprint(e.Out, secd.Disassemble(exp.Closure().Template.Code))
				}
			case lisp.TPrimitive:
				fmt.Fprintf(e.Out, "%s is a primitive\n", e.Sprint(fn))
			default:
				return lisp.Nil, fault("disassemble", "%s is not a function", a[0])
			}
			return lisp.Nil, nil
		},
	})
}

// definable rejects names the compiler handles itself.
func (e *Engine) definable(name string, v lisp.Value) (*lisp.Symbol, error) {
	sym, err := e.symbolArg(name, v)
	if err != nil {
		return nil, err
	}
	if e.Compiler.IsSpecialForm(sym) || sym.IsKeyword() {
		return nil, fault(name, "cannot redefine %s", sym.Name)
	}
	return sym, nil
}

func (e *Engine) declareSymbols() {
	e.DeclareTitle("Symbols and packages")
	symbol := []DeclarationParameter{{"symbol", "symbol", "a symbol"}}
	e.Declare(&Declaration{
		Name: "symbol-name", Desc: "name of a symbol",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("symbol-name", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewString(sym.Name), nil
		},
	})
	e.Declare(&Declaration{
		Name: "symbol-package", Desc: "home package of a symbol, nil if uninterned",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("symbol-package", a[0])
			if err != nil || sym.Package == nil {
				return lisp.Nil, err
			}
			return lisp.NewPackageValue(sym.Package), nil
		},
	})
	e.Declare(&Declaration{
		Name: "symbol-value", Desc: "current dynamic or global value of a symbol",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("symbol-value", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			v, ok := ctx.SymbolValue(sym)
			if !ok {
				return lisp.Nil, fault("symbol-value", "%s is unbound", sym.Name)
			}
			return v, nil
		},
	})
	e.Declare(&Declaration{
		Name: "set", Desc: "assigns the current dynamic or global value of a symbol",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"symbol", "symbol", "variable"},
			{"value", "any", "new value"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("set", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return a[1], ctx.SetSymbolValue(sym, a[1])
		},
	})
	e.Declare(&Declaration{
		Name: "boundp", Desc: "true if the symbol has a value",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "bool",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("boundp", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			_, ok := ctx.SymbolValue(sym)
			return lisp.Bool(ok), nil
		},
	})
	e.Declare(&Declaration{
		Name: "fboundp", Desc: "true if the symbol names a function or macro",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "bool",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("fboundp", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.Bool(sym.Fboundp()), nil
		},
	})
	e.Declare(&Declaration{
		Name: "symbol-function", Desc: "content of the function cell",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "func",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("symbol-function", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if !sym.Fboundp() {
				return lisp.Nil, fault("symbol-function", "%s has no function", sym.Name)
			}
			return sym.Function, nil
		},
	})
	e.Declare(&Declaration{
		Name: "symbol-plist", Desc: "property list of a symbol",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("symbol-plist", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return sym.Plist, nil
		},
	})
	e.Declare(&Declaration{
		Name: "get", Desc: "reads a property of a symbol",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"symbol", "symbol", "a symbol"},
			{"indicator", "any", "property name"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("get", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return sym.Get(a[1]), nil
		},
	})
	e.Declare(&Declaration{
		Name: "put", Desc: "sets a property of a symbol",
		MinParameter: 3, MaxParameter: 3,
		Params: []DeclarationParameter{
			{"symbol", "symbol", "a symbol"},
			{"indicator", "any", "property name"},
			{"value", "any", "property value"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("put", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			sym.Put(a[1], a[2])
			return a[2], nil
		},
	})
	e.Declare(&Declaration{
		Name: "make-symbol", Desc: "creates an uninterned symbol",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"name", "string", "symbol name"}},
		Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			name, err := e.designator("make-symbol", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewSymbolValue(lisp.NewSymbol(name)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "gensym", Desc: "creates a fresh uninterned symbol",
		MinParameter: 0, MaxParameter: 1,
		Params:  []DeclarationParameter{{"prefix", "string", "name prefix, default G"}},
		Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			prefix := "G"
			if len(a) > 0 {
				var err error
				if prefix, err = e.designator("gensym", a[0]); err != nil {
					return lisp.Nil, err
				}
			}
			e.gensym++
			return lisp.NewSymbolValue(lisp.NewSymbol(fmt.Sprintf("%s%d", prefix, e.gensym))), nil
		},
	})
	e.Declare(&Declaration{
		Name: "intern", Desc: "returns the symbol of that name, creating it if needed",
		MinParameter: 1, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"name", "string", "exact symbol name"},
			{"package", "any", "package or package name, default the current package"},
		}, Returns: "symbol",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			name, err := e.designator("intern", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			p := e.Package
			if len(a) > 1 {
				if p, err = e.packageArg("intern", a[1]); err != nil {
					return lisp.Nil, err
				}
			}
			return lisp.NewSymbolValue(p.Intern(name)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "find-package", Desc: "finds a package by name or nickname",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"name", "string", "package name"}},
		Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			name, err := e.designator("find-package", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			if p := e.Universe.Registry.FindPackage(name); p != nil {
				return lisp.NewPackageValue(p), nil
			}
			return lisp.Nil, nil
		},
	})
	e.Declare(&Declaration{
		Name: "package-name", Desc: "name of a package",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"package", "any", "package or package name"}},
		Returns: "string",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			p, err := e.packageArg("package-name", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewString(p.Name), nil
		},
	})
	e.Declare(&Declaration{
		Name: "package-symbols", Desc: "the symbols present in a package, ordered by name",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"package", "any", "package or package name"}},
		Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			p, err := e.packageArg("package-symbols", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			syms := p.Symbols()
			items := make([]lisp.Value, len(syms))
			for i, s := range syms {
				items[i] = lisp.NewSymbolValue(s)
			}
			return lisp.List(items...), nil
		},
	})
	e.Declare(&Declaration{
		Name: "export", Desc: "makes a symbol external in its home package",
		MinParameter: 1, MaxParameter: 1, Params: symbol, Returns: "bool",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			sym, err := e.symbolArg("export", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			e.Universe.Registry.Export(sym)
			return lisp.True, nil
		},
	})
	e.Declare(&Declaration{
		Name: "apropos", Desc: "prints all symbols whose name contains the string",
		MinParameter: 1, MaxParameter: 1,
		Params:  []DeclarationParameter{{"part", "string", "part of the name"}},
		Returns: "nil",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			part, err := e.designator("apropos", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			var b bytes.Buffer
			for _, s := range e.Universe.Registry.Apropos(part) {
				b.WriteString(e.Sprint(lisp.NewSymbolValue(s)))
				if s.Fboundp() {
					b.WriteString(" (fbound)")
				}
				if s.Boundp() {
					b.WriteString(" (bound)")
				}
				b.WriteByte('\n')
			}
			_, err = e.Out.Write(b.Bytes())
			return lisp.Nil, err
		},
	})
}

func (e *Engine) hashTest(v lisp.Value) (lisp.HashTest, error) {
	name := ""
	switch v.Type() {
	case lisp.TSymbol:
		name = v.Symbol().Name
	case lisp.TPrimitive:
		name = v.Primitive().Name
	}
	switch lisp.UpperCase(name) {
	case "EQ":
		return lisp.HashEq, nil
	case "EQL":
		return lisp.HashEql, nil
	case "EQUAL":
		return lisp.HashEqual, nil
	}
	return lisp.HashEql, fault("make-hash-table", "unsupported test %s", v)
}

func hashTableArg(name string, v lisp.Value) (*lisp.HashTable, error) {
	if v.Type() != lisp.THashTable {
		return nil, fault(name, "%s is not a hash table", v)
	}
	return v.HashTable(), nil
}

func (e *Engine) declareHashTables() {
	e.DeclareTitle("Hash tables")
	table := []DeclarationParameter{{"table", "hashtable", "a hash table"}}
	e.Declare(&Declaration{
		Name: "make-hash-table", Desc: "creates a hash table; (make-hash-table :test 'equal)",
		MinParameter: 0, MaxParameter: 2,
		Params:  []DeclarationParameter{{":test", "symbol|func", "eq, eql (default) or equal"}},
		Returns: "hashtable",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			test := lisp.HashEql
			if len(a) == 1 {
				return lisp.Nil, fault("make-hash-table", "odd number of keyword arguments")
			}
			if len(a) == 2 {
				if a[0] != lisp.NewSymbolValue(e.Universe.KeywordSymbol("test")) {
					return lisp.Nil, fault("make-hash-table", "unknown keyword %s", a[0])
				}
				var err error
				if test, err = e.hashTest(a[1]); err != nil {
					return lisp.Nil, err
				}
			}
			return lisp.NewHashTableValue(lisp.NewHashTable(test)), nil
		},
	})
	e.Declare(&Declaration{
		Name: "gethash", Desc: "value stored under key, or the default",
		MinParameter: 2, MaxParameter: 3,
		Params: []DeclarationParameter{
			{"key", "any", "key"},
			{"table", "hashtable", "a hash table"},
			{"default", "any", "returned when the key is missing"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			h, err := hashTableArg("gethash", a[1])
			if err != nil {
				return lisp.Nil, err
			}
			if v, ok := h.Get(a[0]); ok {
				return v, nil
			}
			if len(a) > 2 {
				return a[2], nil
			}
			return lisp.Nil, nil
		},
	})
	e.Declare(&Declaration{
		Name: "puthash", Desc: "stores value under key",
		MinParameter: 3, MaxParameter: 3,
		Params: []DeclarationParameter{
			{"key", "any", "key"},
			{"value", "any", "value"},
			{"table", "hashtable", "a hash table"},
		}, Returns: "any",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			h, err := hashTableArg("puthash", a[2])
			if err != nil {
				return lisp.Nil, err
			}
			h.Put(a[0], a[1])
			return a[1], nil
		},
	})
	e.Declare(&Declaration{
		Name: "remhash", Desc: "removes a key; true if it was present",
		MinParameter: 2, MaxParameter: 2,
		Params: []DeclarationParameter{
			{"key", "any", "key"},
			{"table", "hashtable", "a hash table"},
		}, Returns: "bool",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			h, err := hashTableArg("remhash", a[1])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.Bool(h.Remove(a[0])), nil
		},
	})
	e.Declare(&Declaration{
		Name: "hash-table-count", Desc: "number of entries",
		MinParameter: 1, MaxParameter: 1, Params: table, Returns: "int",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			h, err := hashTableArg("hash-table-count", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			return lisp.NewInteger(int64(h.Count())), nil
		},
	})
	e.Declare(&Declaration{
		Name: "hash-table-keys", Desc: "list of all keys in no particular order",
		MinParameter: 1, MaxParameter: 1, Params: table, Returns: "list",
		Fn: func(ctx lisp.Context, a []lisp.Value) (lisp.Value, error) {
			h, err := hashTableArg("hash-table-keys", a[0])
			if err != nil {
				return lisp.Nil, err
			}
			keys := make([]lisp.Value, 0, h.Count())
			h.Each(func(k, v lisp.Value) bool {
				keys = append(keys, k)
				return true
			})
			return lisp.List(keys...), nil
		},
	})
}
