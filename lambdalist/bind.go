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

// Binding is one variable of a bound lambda list.
type Binding struct {
	Var   *lisp.Symbol
	Value lisp.Value
}

// Evaluator computes a default or aux init form in an environment that
// holds the bindings accumulated so far.
type Evaluator func(form lisp.Value, bound []Binding) (lisp.Value, error)

func (l *List) bindingError(format string, args ...any) error {
	return lisp.WithForm(lisp.BindingError.New(format, args...), l.spec)
}

// walk fills the frame slots from args in four phases: required, optional,
// rest-or-keyword, aux. Slots whose default has to be computed hold the
// Unbound marker; supplied-p slots hold T or NIL.
func (l *List) walk(args lisp.Value) ([]lisp.Value, error) {
	slots := make([]lisp.Value, 0, len(l.slotVars))

	// required
	for range l.Required {
		if !args.IsCons() {
			return nil, l.bindingError("too few arguments: %d required", len(l.Required))
		}
		slots = append(slots, args.Car())
		args = args.Cdr()
	}

	// optional
	for _, o := range l.Optional {
		supplied := args.IsCons()
		if supplied {
			slots = append(slots, args.Car())
			args = args.Cdr()
		} else {
			slots = append(slots, lisp.Unbound)
		}
		if o.SVar != nil {
			slots = append(slots, lisp.Bool(supplied))
		}
	}

	// rest or keyword
	if l.Rest != nil {
		slots = append(slots, args)
	}
	if l.HasKey {
		keySlots, err := l.bindKeys(args)
		if err != nil {
			return nil, err
		}
		slots = append(slots, keySlots...)
	} else if l.Rest == nil && !args.IsNil() {
		return nil, l.bindingError("too many arguments: at most %d accepted", len(l.Required)+len(l.Optional))
	}

	// aux
	for range l.Aux {
		slots = append(slots, lisp.Unbound)
	}
	return slots, nil
}

func (l *List) bindKeys(args lisp.Value) ([]lisp.Value, error) {
	pairs, ok := args.Slice()
	if !ok || len(pairs)%2 != 0 {
		return nil, l.bindingError("keyword argument without value in %s", args)
	}
	allowOthers := l.AllowOtherKeys
	if !allowOthers {
		for i := 0; i < len(pairs); i += 2 {
			if pairs[i].IsSymbol() && pairs[i].Symbol() == l.allowOtherKeysKey && pairs[i+1].IsTrue() {
				allowOthers = true
				break
			}
		}
	}

	values := make([]lisp.Value, len(l.Keys))
	supplied := make([]bool, len(l.Keys))
	for i := 0; i < len(pairs); i += 2 {
		if !pairs[i].IsSymbol() {
			return nil, l.bindingError("%s is not a keyword", pairs[i])
		}
		key := pairs[i].Symbol()
		found := false
		for k := range l.Keys {
			if l.Keys[k].Keyword == key {
				found = true
				if !supplied[k] { // leftmost occurrence wins
					values[k] = pairs[i+1]
					supplied[k] = true
				}
				break
			}
		}
		if !found && !allowOthers && key != l.allowOtherKeysKey {
			return nil, l.bindingError("unknown keyword argument %s", pairs[i])
		}
	}

	slots := make([]lisp.Value, 0, 2*len(l.Keys))
	for k, kp := range l.Keys {
		if supplied[k] {
			slots = append(slots, values[k])
		} else {
			slots = append(slots, lisp.Unbound)
		}
		if kp.SVar != nil {
			slots = append(slots, lisp.Bool(supplied[k]))
		}
	}
	return slots, nil
}

// BindFrame builds the environment frame for a call. Defaulted slots are
// left Unbound for the function prologue to fill in.
func (l *List) BindFrame(args lisp.Value) (lisp.Value, error) {
	slots, err := l.walk(args)
	if err != nil {
		return lisp.Nil, err
	}
	return lisp.List(slots...), nil
}

// Bind maps the lambda list onto args and evaluates the missing defaults
// and aux inits in slot order, each seeing the bindings before it.
func (l *List) Bind(args lisp.Value, eval Evaluator) ([]Binding, error) {
	slots, err := l.walk(args)
	if err != nil {
		return nil, err
	}
	bindings := make([]Binding, 0, len(slots))
	for i, v := range slots {
		if v.IsUnbound() {
			if v, err = eval(l.slotInits[i], bindings); err != nil {
				return nil, err
			}
		}
		bindings = append(bindings, Binding{Var: l.slotVars[i], Value: v})
	}
	return bindings, nil
}
