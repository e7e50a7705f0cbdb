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
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CasePolicy decides how the reader folds unescaped symbol names.
type CasePolicy uint8

const (
	Upcase CasePolicy = iota
	Downcase
	Preserve
)

func (c CasePolicy) String() string {
	switch c {
	case Upcase:
		return "upcase"
	case Downcase:
		return "downcase"
	}
	return "preserve"
}

// ParseCasePolicy accepts upcase, downcase and preserve.
func ParseCasePolicy(s string) (CasePolicy, error) {
	switch strings.ToLower(s) {
	case "upcase", "up", "upper":
		return Upcase, nil
	case "downcase", "down", "lower":
		return Downcase, nil
	case "preserve", "none":
		return Preserve, nil
	}
	return Upcase, fmt.Errorf("unknown case policy %q", s)
}

// Fold applies the policy to a symbol name.
func (c CasePolicy) Fold(name string) string {
	switch c {
	case Upcase:
		return UpperCase(name)
	case Downcase:
		return LowerCase(name)
	}
	return name
}

// canonical is the case in which built-in names are interned. Under the
// preserve policy, built-ins are spelled in lowercase.
func (c CasePolicy) canonical(name string) string {
	if c == Upcase {
		return UpperCase(name)
	}
	return LowerCase(name)
}

func UpperCase(s string) string { return cases.Upper(language.Und).String(s) }
func LowerCase(s string) string { return cases.Lower(language.Und).String(s) }
