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

// Syms holds the built-in symbols the reader, compiler and machine
// recognize by identity.
type Syms struct {
	T, NIL *Symbol

	Quote, Function, Backquote, Comma, CommaAt *Symbol

	Lambda, If, Let, LetStar, Setq, Progn, And, Or, Cond             *Symbol
	Block, ReturnFrom, Return, SpBind, SpUnbind, GetSpecial          *Symbol
	Defvar, Defparameter, Defconstant, Defun, Defmacro, Flet, Labels *Symbol

	Optional, Rest, Body, Key, AllowOtherKeys, Aux *Symbol

	List, ListStar, Append, Cons *Symbol

	History1, History2, History3 *Symbol

	// :allow-other-keys in a call
	KeyAllowOtherKeys *Symbol
}

// Universe is the set of packages and built-in symbols shared by the reader,
// the compiler and the machines of one engine.
type Universe struct {
	Registry *Registry
	Lisp     *Package
	Keyword  *Package
	User     *Package
	Case     CasePolicy
	Syms     *Syms
}

// NewUniverse creates the LISP, KEYWORD and USER packages, interns the
// built-in symbols in their canonical case and exports them from LISP.
func NewUniverse(policy CasePolicy) *Universe {
	r := NewRegistry()
	u := &Universe{
		Registry: r,
		Lisp:     r.MakePackage("LISP", "CL", "COMMON-LISP"),
		Keyword:  r.MakeKeywordPackage("KEYWORD"),
		User:     r.MakePackage("USER", "CL-USER"),
		Case:     policy,
	}
	u.User.Use(u.Lisp)

	s := &Syms{}
	intern := u.Builtin
	s.T = intern("t")
	s.NIL = intern("nil")
	s.T.MakeConstant(True)
	s.NIL.MakeConstant(Nil)

	s.Quote = intern("quote")
	s.Function = intern("function")
	s.Backquote = intern("backquote")
	s.Comma = intern("comma")
	s.CommaAt = intern("comma-at")

	s.Lambda = intern("lambda")
	s.If = intern("if")
	s.Let = intern("let")
	s.LetStar = intern("let*")
	s.Setq = intern("setq")
	s.Progn = intern("progn")
	s.And = intern("and")
	s.Or = intern("or")
	s.Cond = intern("cond")
	s.Block = intern("block")
	s.ReturnFrom = intern("return-from")
	s.Return = intern("return")
	s.SpBind = intern("sp-bind")
	s.SpUnbind = intern("sp-unbind")
	s.GetSpecial = intern("get-special")
	s.Defvar = intern("defvar")
	s.Defparameter = intern("defparameter")
	s.Defconstant = intern("defconstant")
	s.Defun = intern("defun")
	s.Defmacro = intern("defmacro")
	s.Flet = intern("flet")
	s.Labels = intern("labels")

	s.Optional = intern("&optional")
	s.Rest = intern("&rest")
	s.Body = intern("&body")
	s.Key = intern("&key")
	s.AllowOtherKeys = intern("&allow-other-keys")
	s.Aux = intern("&aux")

	s.List = intern("list")
	s.ListStar = intern("list*")
	s.Append = intern("append")
	s.Cons = intern("cons")

	s.History1 = intern("*")
	s.History2 = intern("**")
	s.History3 = intern("***")
	for _, h := range []*Symbol{s.History1, s.History2, s.History3} {
		h.Proclaim()
		h.Value = Nil
	}

	s.KeyAllowOtherKeys = u.KeywordSymbol("allow-other-keys")
	u.Syms = s
	return u
}

// Builtin interns name in the LISP package in the canonical case of the
// policy and exports it.
func (u *Universe) Builtin(name string) *Symbol {
	s := u.Lisp.Intern(u.Case.canonical(name))
	u.Registry.Export(s)
	return s
}

// KeywordSymbol returns the keyword with the given name. Keyword names are
// always upcased.
func (u *Universe) KeywordSymbol(name string) *Symbol {
	return u.Keyword.Intern(name)
}

// IsLambdaListKeyword reports whether s is one of the & markers.
func (s *Syms) IsLambdaListKeyword(sym *Symbol) bool {
	switch sym {
	case s.Optional, s.Rest, s.Body, s.Key, s.AllowOtherKeys, s.Aux:
		return true
	}
	return false
}
