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

import "github.com/launix-de/secdlisp/lisp"

// Param is an optional or aux parameter: the variable, the form computing
// its default and the optional supplied-p variable.
type Param struct {
	Var  *lisp.Symbol
	Init lisp.Value
	SVar *lisp.Symbol
}

// KeyParam is a keyword parameter together with the keyword token that
// names it in a call.
type KeyParam struct {
	Param
	Keyword *lisp.Symbol
}

// List is a parsed ordinary lambda list.
type List struct {
	Required       []*lisp.Symbol
	Optional       []Param
	Rest           *lisp.Symbol
	HasKey         bool
	Keys           []KeyParam
	AllowOtherKeys bool
	Aux            []Param

	spec              lisp.Value
	allowOtherKeysKey *lisp.Symbol
	// one entry per frame slot
	slotVars  []*lisp.Symbol
	slotInits []lisp.Value
	slotKinds []slotKind
}

type slotKind uint8

const (
	slotRequired slotKind = iota
	slotOptional
	slotSupplied
	slotRest
	slotKey
	slotAux
)

// Parse reads a lambda list such as (a &optional (b 1 b-p) &rest r &key c &aux d).
func Parse(spec lisp.Value, u *lisp.Universe) (*List, error) {
	s := u.Syms
	l := &List{spec: spec, allowOtherKeysKey: s.KeyAllowOtherKeys}
	phase := slotRequired
	seen := map[*lisp.Symbol]bool{}

	malformed := func(format string, args ...any) error {
		return lisp.WithForm(lisp.MalformedForm.New("lambda list: "+format, args...), spec)
	}
	variable := func(v lisp.Value) (*lisp.Symbol, error) {
		if !v.IsSymbol() || v.Symbol().IsKeyword() || v.Symbol().IsConstant() {
			return nil, malformed("%s is not a variable name", v)
		}
		sym := v.Symbol()
		if s.IsLambdaListKeyword(sym) {
			return nil, malformed("misplaced %s", sym.Name)
		}
		if seen[sym] {
			return nil, malformed("duplicate variable %s", sym.Name)
		}
		seen[sym] = true
		return sym, nil
	}
	// var | (var [init [svar]])
	param := func(v lisp.Value, withSVar bool) (Param, error) {
		if !v.IsCons() {
			sym, err := variable(v)
			return Param{Var: sym, Init: lisp.Nil}, err
		}
		n := v.Length()
		if n < 1 || n > 3 || (!withSVar && n > 2) {
			return Param{}, malformed("bad parameter spec %s", v)
		}
		sym, err := variable(v.Car())
		if err != nil {
			return Param{}, err
		}
		p := Param{Var: sym, Init: v.Cadr()}
		if n == 3 {
			if p.SVar, err = variable(v.Caddr()); err != nil {
				return Param{}, err
			}
		}
		return p, nil
	}

	items, ok := spec.Slice()
	if !ok {
		// (a b . rest) is shorthand for (a b &rest rest)
		tail := spec
		items = nil
		for tail.IsCons() {
			items = append(items, tail.Car())
			tail = tail.Cdr()
		}
		if !tail.IsSymbol() {
			return nil, malformed("%s is not a list", spec)
		}
		items = append(items, lisp.NewSymbolValue(s.Rest), tail)
	}

	for i := 0; i < len(items); i++ {
		item := items[i]
		if item.IsSymbol() && s.IsLambdaListKeyword(item.Symbol()) {
			marker := item.Symbol()
			switch marker {
			case s.Optional:
				if phase >= slotOptional {
					return nil, malformed("misplaced &optional")
				}
				phase = slotOptional
			case s.Rest, s.Body:
				if phase >= slotRest || i+1 >= len(items) {
					return nil, malformed("misplaced %s", marker.Name)
				}
				sym, err := variable(items[i+1])
				if err != nil {
					return nil, err
				}
				l.Rest = sym
				phase = slotRest
				i++
			case s.Key:
				if phase >= slotKey {
					return nil, malformed("misplaced &key")
				}
				l.HasKey = true
				phase = slotKey
			case s.AllowOtherKeys:
				if phase != slotKey || l.AllowOtherKeys {
					return nil, malformed("&allow-other-keys outside &key")
				}
				l.AllowOtherKeys = true
			case s.Aux:
				if phase >= slotAux {
					return nil, malformed("misplaced &aux")
				}
				phase = slotAux
			}
			continue
		}
		switch phase {
		case slotRequired:
			sym, err := variable(item)
			if err != nil {
				return nil, err
			}
			l.Required = append(l.Required, sym)
		case slotOptional:
			p, err := param(item, true)
			if err != nil {
				return nil, err
			}
			l.Optional = append(l.Optional, p)
		case slotRest:
			return nil, malformed("extra variable after &rest")
		case slotKey:
			kp, err := keyParam(item, u, param, malformed)
			if err != nil {
				return nil, err
			}
			l.Keys = append(l.Keys, kp)
		case slotAux:
			p, err := param(item, false)
			if err != nil {
				return nil, err
			}
			l.Aux = append(l.Aux, p)
		}
	}
	l.layout()
	return l, nil
}

// ((keyword var) [init [svar]]) | (var [init [svar]]) | var
func keyParam(item lisp.Value, u *lisp.Universe, param func(lisp.Value, bool) (Param, error), malformed func(string, ...any) error) (KeyParam, error) {
	if item.IsCons() && item.Car().IsCons() {
		kv := item.Car()
		if kv.Length() != 2 || !kv.Car().IsSymbol() {
			return KeyParam{}, malformed("bad keyword spec %s", kv)
		}
		p, err := param(lisp.ListStar(item.Cdr(), kv.Cadr()), true)
		if err != nil {
			return KeyParam{}, err
		}
		return KeyParam{Param: p, Keyword: kv.Car().Symbol()}, nil
	}
	p, err := param(item, true)
	if err != nil {
		return KeyParam{}, err
	}
	return KeyParam{Param: p, Keyword: u.KeywordSymbol(p.Var.Name)}, nil
}

func (l *List) addSlot(sym *lisp.Symbol, init lisp.Value, kind slotKind) {
	l.slotVars = append(l.slotVars, sym)
	l.slotInits = append(l.slotInits, init)
	l.slotKinds = append(l.slotKinds, kind)
}

// layout fixes the frame slot order: required, optional [supplied-p],
// rest, key [supplied-p], aux.
func (l *List) layout() {
	for _, r := range l.Required {
		l.addSlot(r, lisp.Nil, slotRequired)
	}
	for _, o := range l.Optional {
		l.addSlot(o.Var, o.Init, slotOptional)
		if o.SVar != nil {
			l.addSlot(o.SVar, lisp.Nil, slotSupplied)
		}
	}
	if l.Rest != nil {
		l.addSlot(l.Rest, lisp.Nil, slotRest)
	}
	for _, k := range l.Keys {
		l.addSlot(k.Var, k.Init, slotKey)
		if k.SVar != nil {
			l.addSlot(k.SVar, lisp.Nil, slotSupplied)
		}
	}
	for _, a := range l.Aux {
		l.addSlot(a.Var, a.Init, slotAux)
	}
}

// Vars lists the variables in frame slot order.
func (l *List) Vars() []*lisp.Symbol { return l.slotVars }

// Simple reports whether the list only has required parameters and an
// optional rest parameter, so the argument list itself can serve as frame.
func (l *List) Simple() bool {
	return len(l.Optional) == 0 && !l.HasKey && len(l.Aux) == 0
}

// Defaults returns, per 0-based slot, the form that fills the slot when it
// is left unbound by the binder. Slots that are always bound are omitted.
func (l *List) Defaults() map[int]lisp.Value {
	result := map[int]lisp.Value{}
	for i, k := range l.slotKinds {
		switch k {
		case slotOptional, slotKey, slotAux:
			result[i] = l.slotInits[i]
		}
	}
	return result
}

func (l *List) String() string {
	return lisp.Sprint(l.spec)
}
