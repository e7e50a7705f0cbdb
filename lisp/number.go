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
	"math"
	"math/big"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

// ToFloat converts any number to float64.
func ToFloat(v Value) (float64, bool) {
	switch v.typ {
	case TInteger:
		return float64(v.Int()), true
	case TBigInteger:
		f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
		return f, true
	case TReal:
		return v.Real(), true
	}
	return 0, false
}

func checkNumbers(op string, a, b Value) error {
	if !a.IsNumber() {
		return Fault("%s: %s is not a number", op, Sprint(a))
	}
	if !b.IsNumber() {
		return Fault("%s: %s is not a number", op, Sprint(b))
	}
	return nil
}

func realOp(a, b Value, f func(x, y float64) float64) Value {
	x, _ := ToFloat(a)
	y, _ := ToFloat(b)
	return NewReal(f(x, y))
}

// Add adds two numbers, promoting to bignum on overflow.
func Add(a, b Value) (Value, error) {
	if err := checkNumbers("+", a, b); err != nil {
		return Nil, err
	}
	if a.typ == TReal || b.typ == TReal {
		return realOp(a, b, func(x, y float64) float64 { return x + y }), nil
	}
	if a.typ == TInteger && b.typ == TInteger {
		x, y := a.Int(), b.Int()
		s := x + y
		if (s > x) == (y > 0) {
			return NewInteger(s), nil
		}
	}
	return NewBigInteger(new(big.Int).Add(a.BigInt(), b.BigInt())), nil
}

// Sub subtracts b from a.
func Sub(a, b Value) (Value, error) {
	if err := checkNumbers("-", a, b); err != nil {
		return Nil, err
	}
	if a.typ == TReal || b.typ == TReal {
		return realOp(a, b, func(x, y float64) float64 { return x - y }), nil
	}
	if a.typ == TInteger && b.typ == TInteger {
		x, y := a.Int(), b.Int()
		s := x - y
		if (s < x) == (y > 0) {
			return NewInteger(s), nil
		}
	}
	return NewBigInteger(new(big.Int).Sub(a.BigInt(), b.BigInt())), nil
}

// Mul multiplies two numbers.
func Mul(a, b Value) (Value, error) {
	if err := checkNumbers("*", a, b); err != nil {
		return Nil, err
	}
	if a.typ == TReal || b.typ == TReal {
		return realOp(a, b, func(x, y float64) float64 { return x * y }), nil
	}
	if a.typ == TInteger && b.typ == TInteger {
		x, y := a.Int(), b.Int()
		if fitsMul(x, y) {
			return NewInteger(x * y), nil
		}
	}
	return NewBigInteger(new(big.Int).Mul(a.BigInt(), b.BigInt())), nil
}

func fitsMul(x, y int64) bool {
	if x == 0 || y == 0 {
		return true
	}
	if x == math.MinInt64 || y == math.MinInt64 {
		return false
	}
	ax, ay := x, y
	if ax < 0 {
		ax = -ax
	}
	if ay < 0 {
		ay = -ay
	}
	hi, lo := bits.Mul64(uint64(ax), uint64(ay))
	return hi == 0 && lo <= math.MaxInt64
}

// Div divides; exact integer quotients stay integers, everything else
// becomes a real.
func Div(a, b Value) (Value, error) {
	if err := checkNumbers("/", a, b); err != nil {
		return Nil, err
	}
	if b.IsInteger() && b.BigInt().Sign() == 0 {
		return Nil, Fault("/: division by zero")
	}
	if a.IsInteger() && b.IsInteger() {
		q, m := new(big.Int).QuoRem(a.BigInt(), b.BigInt(), new(big.Int))
		if m.Sign() == 0 {
			return NewBigInteger(q), nil
		}
	}
	return realOp(a, b, func(x, y float64) float64 { return x / y }), nil
}

// Mod is the floored modulus of two integers.
func Mod(a, b Value) (Value, error) {
	if !a.IsInteger() || !b.IsInteger() {
		return Nil, Fault("mod: integers expected, got %s and %s", Sprint(a), Sprint(b))
	}
	if b.BigInt().Sign() == 0 {
		return Nil, Fault("mod: division by zero")
	}
	m := new(big.Int).Mod(a.BigInt(), b.BigInt()) // euclidean, non-negative
	if m.Sign() != 0 && b.BigInt().Sign() < 0 {
		m.Add(m, b.BigInt())
	}
	return NewBigInteger(m), nil
}

// Compare returns -1, 0 or 1.
func Compare(a, b Value) (int, error) {
	if err := checkNumbers("compare", a, b); err != nil {
		return 0, err
	}
	if a.typ == TInteger && b.typ == TInteger {
		x, y := a.Int(), b.Int()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	if a.IsInteger() && b.IsInteger() {
		return a.BigInt().Cmp(b.BigInt()), nil
	}
	x, _ := ToFloat(a)
	y, _ := ToFloat(b)
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

var (
	integerToken = regexp.MustCompile(`^[+-]?[0-9]+$`)
	realToken    = regexp.MustCompile(`^[+-]?([0-9]*\.[0-9]+|[0-9]+\.[0-9]*)([eE][+-]?[0-9]+)?$`)
)

// ParseNumber classifies a token as integer (promoting to bignum on
// overflow) or real. Reals require a decimal point.
func ParseNumber(token string) (Value, bool) {
	if integerToken.MatchString(token) {
		if i, err := strconv.ParseInt(token, 10, 64); err == nil {
			return NewInteger(i), true
		}
		b, ok := new(big.Int).SetString(strings.TrimPrefix(token, "+"), 10)
		if !ok {
			return Nil, false
		}
		return NewBigInteger(b), true
	}
	if realToken.MatchString(token) {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Nil, false
		}
		return NewReal(f), true
	}
	return Nil, false
}

// FormatReal prints f so that ParseNumber reads it back as a real.
func FormatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".nN") { // NaN and Inf stay as they are
		return s
	}
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}
