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
	"context"
	_ "embed"
	"strings"

	"github.com/launix-de/secdlisp/lisp"
)

//go:embed boot.lisp
var bootSource string

// loadBoot evaluates the boot library in the LISP package and exports
// what it defines. The history variables are left untouched.
func (e *Engine) loadBoot() error {
	saved := e.Package
	e.Package = e.Universe.Lisp
	defer func() { e.Package = saved }()

	_, err := e.evalAll("boot.lisp", strings.NewReader(bootSource), func(form lisp.Value) (lisp.Value, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.evaluate(context.Background(), e.machine, form)
	})
	if err != nil {
		return err
	}
	for _, s := range e.Universe.Lisp.Symbols() {
		if s.Fboundp() {
			e.Universe.Registry.Export(s)
		}
	}
	return nil
}
