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

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("lisp")

	// Recoverable errors leave the engine state intact; the driver reports
	// them and continues with the next top-level form.
	Recoverable = errorx.RegisterTrait("recoverable")

	ReadError  = Errors.NewType("read_error", Recoverable)
	Incomplete = ReadError.NewSubtype("incomplete")
	Malformed  = ReadError.NewSubtype("malformed")

	CompileError      = Errors.NewType("compile_error", Recoverable)
	UndefinedOperator = CompileError.NewSubtype("undefined_operator")
	MalformedForm     = CompileError.NewSubtype("malformed_form")

	BindingError = Errors.NewType("binding_error", Recoverable)

	MachineFault = Errors.NewType("machine_fault")
	TypeMismatch = MachineFault.NewSubtype("type_mismatch")
	UserError    = MachineFault.NewSubtype("user_error")

	PropertyForm   = errorx.RegisterPrintableProperty("form")
	PropertySymbol = errorx.RegisterPrintableProperty("symbol")
)

// WithForm attaches the printed offending form to err.
func WithForm(err *errorx.Error, form Value) *errorx.Error {
	return err.WithProperty(PropertyForm, Sprint(form))
}

// WithSymbol attaches the offending symbol name to err.
func WithSymbol(err *errorx.Error, sym *Symbol) *errorx.Error {
	return err.WithProperty(PropertySymbol, sym.String())
}

// FormOf extracts the form property of an error, if any.
func FormOf(err error) (string, bool) {
	v, ok := errorx.ExtractProperty(err, PropertyForm)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsRecoverable reports whether err leaves the engine usable without reset.
func IsRecoverable(err error) bool {
	return errorx.HasTrait(err, Recoverable)
}

// Fault builds a MachineFault for a type mismatch in a primitive.
func Fault(format string, args ...any) *errorx.Error {
	return TypeMismatch.New(format, args...)
}
