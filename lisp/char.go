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

import "strings"

// named characters, shared by the reader (#\Space) and the printer
var charNames = []struct {
	name string
	r    rune
}{
	{"Space", ' '},
	{"Newline", '\n'},
	{"Tab", '\t'},
	{"Return", '\r'},
	{"Linefeed", '\n'},
	{"Page", '\f'},
	{"Backspace", '\b'},
	{"Rubout", 0x7f},
	{"Null", 0},
	{"Escape", 0x1b},
	{"Bell", 0x07},
}

// CharByName resolves a character name case-insensitively.
func CharByName(name string) (rune, bool) {
	for _, c := range charNames {
		if strings.EqualFold(c.name, name) {
			return c.r, true
		}
	}
	return 0, false
}

// CharName returns the printed name of r, if it has one.
func CharName(r rune) (string, bool) {
	for _, c := range charNames {
		if c.r == r {
			return c.name, true
		}
	}
	return "", false
}
