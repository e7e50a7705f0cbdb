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
	"unsafe"
)

// Value is the tagged container for every runtime datum. Immediate payloads
// (integers, float bits, characters, opcodes, lexical addresses) live in imm,
// heap payloads are referenced through ptr. Two Values are eq iff they are ==.
type Value struct {
	ptr unsafe.Pointer
	imm uint64
	typ Type
}

// Type is the variant tag of a Value.
type Type uint8

const (
	TNil Type = iota
	TTrue
	TInteger
	TBigInteger
	TReal
	TCharacter
	TString
	TSymbol
	TCons
	TPackage
	TClosure
	TPrimitive
	TMacro
	THashTable
	// machine internals; they only appear inside bytecode and registers
	TOpcode
	TAddress
	TTemplate
	TUnbound
)

var typeNames = [...]string{
	TNil:        "NULL",
	TTrue:       "BOOLEAN",
	TInteger:    "FIXNUM",
	TBigInteger: "BIGNUM",
	TReal:       "DOUBLE-FLOAT",
	TCharacter:  "CHARACTER",
	TString:     "STRING",
	TSymbol:     "SYMBOL",
	TCons:       "CONS",
	TPackage:    "PACKAGE",
	TClosure:    "FUNCTION",
	TPrimitive:  "FUNCTION",
	TMacro:      "MACRO",
	THashTable:  "HASH-TABLE",
	TOpcode:     "OPCODE",
	TAddress:    "ADDRESS",
	TTemplate:   "TEMPLATE",
	TUnbound:    "UNBOUND",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// Nil is the empty list and the false value.
var Nil = Value{}

// True is the self-evaluating true constant.
var True = Value{typ: TTrue}

// Unbound marks an empty symbol cell or a lambda-list slot whose default
// has not been computed yet.
var Unbound = Value{typ: TUnbound}

// Bool maps a Go bool onto T / NIL.
func Bool(b bool) Value {
	if b {
		return True
	}
	return Nil
}

//
// Constructors
//

func NewInteger(i int64) Value { return Value{imm: uint64(i), typ: TInteger} }

// NewBigInteger normalizes: values that fit into 64 bits become Integers.
func NewBigInteger(b *big.Int) Value {
	if b.IsInt64() {
		return NewInteger(b.Int64())
	}
	return Value{ptr: unsafe.Pointer(b), typ: TBigInteger}
}

func NewReal(f float64) Value { return Value{imm: math.Float64bits(f), typ: TReal} }

func NewCharacter(r rune) Value { return Value{imm: uint64(r), typ: TCharacter} }

func NewString(s string) Value {
	return Value{ptr: unsafe.Pointer(&String{Runes: []rune(s)}), typ: TString}
}

func NewSymbolValue(s *Symbol) Value {
	if s == nil {
		return Nil
	}
	return Value{ptr: unsafe.Pointer(s), typ: TSymbol}
}

func NewPackageValue(p *Package) Value { return Value{ptr: unsafe.Pointer(p), typ: TPackage} }

func NewClosure(t *Template, env Value) Value {
	return Value{ptr: unsafe.Pointer(&Closure{Template: t, Env: env}), typ: TClosure}
}

func NewPrimitive(p *Primitive) Value { return Value{ptr: unsafe.Pointer(p), typ: TPrimitive} }

func NewMacro(m *Macro) Value { return Value{ptr: unsafe.Pointer(m), typ: TMacro} }

func NewHashTableValue(h *HashTable) Value { return Value{ptr: unsafe.Pointer(h), typ: THashTable} }

func NewOpcode(op Opcode) Value { return Value{imm: uint64(op), typ: TOpcode} }

// NewAddress encodes the lexical address (depth, index); index is 1-based.
func NewAddress(depth, index int) Value {
	return Value{imm: uint64(uint32(depth))<<32 | uint64(uint32(index)), typ: TAddress}
}

func NewTemplate(t *Template) Value { return Value{ptr: unsafe.Pointer(t), typ: TTemplate} }

//
// Predicates
//

func (v Value) Type() Type       { return v.typ }
func (v Value) IsNil() bool      { return v.typ == TNil }
func (v Value) IsTrue() bool     { return v.typ != TNil }
func (v Value) IsCons() bool     { return v.typ == TCons }
func (v Value) IsList() bool     { return v.typ == TCons || v.typ == TNil }
func (v Value) IsAtom() bool     { return v.typ != TCons }
func (v Value) IsSymbol() bool   { return v.typ == TSymbol }
func (v Value) IsString() bool   { return v.typ == TString }
func (v Value) IsInteger() bool  { return v.typ == TInteger || v.typ == TBigInteger }
func (v Value) IsNumber() bool   { return v.typ == TInteger || v.typ == TBigInteger || v.typ == TReal }
func (v Value) IsUnbound() bool  { return v.typ == TUnbound }
func (v Value) IsFunction() bool { return v.typ == TClosure || v.typ == TPrimitive }

// IsSelfEvaluating reports whether the compiler may emit v as a literal.
func (v Value) IsSelfEvaluating() bool {
	switch v.typ {
	case TSymbol:
		return v.Symbol().IsKeyword()
	case TCons:
		return false
	}
	return true
}

//
// Accessors; they panic on a type mismatch like the memcp Scmer accessors.
// Callers are expected to check the Type first.
//

func (v Value) Int() int64 {
	if v.typ != TInteger {
		panic("not an integer")
	}
	return int64(v.imm)
}

func (v Value) BigInt() *big.Int {
	switch v.typ {
	case TBigInteger:
		return (*big.Int)(v.ptr)
	case TInteger:
		return big.NewInt(int64(v.imm))
	}
	panic("not an integer")
}

func (v Value) Real() float64 {
	if v.typ != TReal {
		panic("not a real")
	}
	return math.Float64frombits(v.imm)
}

func (v Value) Char() rune {
	if v.typ != TCharacter {
		panic("not a character")
	}
	return rune(v.imm)
}

func (v Value) StringObject() *String {
	if v.typ != TString {
		panic("not a string")
	}
	return (*String)(v.ptr)
}

// Str returns the text of a string value.
func (v Value) Str() string { return string(v.StringObject().Runes) }

func (v Value) Symbol() *Symbol {
	if v.typ != TSymbol {
		panic("not a symbol")
	}
	return (*Symbol)(v.ptr)
}

func (v Value) Cons() *Cons {
	if v.typ != TCons {
		panic("not a cons")
	}
	return (*Cons)(v.ptr)
}

func (v Value) Package() *Package {
	if v.typ != TPackage {
		panic("not a package")
	}
	return (*Package)(v.ptr)
}

func (v Value) Closure() *Closure {
	if v.typ != TClosure {
		panic("not a closure")
	}
	return (*Closure)(v.ptr)
}

func (v Value) Primitive() *Primitive {
	if v.typ != TPrimitive {
		panic("not a primitive")
	}
	return (*Primitive)(v.ptr)
}

func (v Value) Macro() *Macro {
	if v.typ != TMacro {
		panic("not a macro")
	}
	return (*Macro)(v.ptr)
}

func (v Value) HashTable() *HashTable {
	if v.typ != THashTable {
		panic("not a hash table")
	}
	return (*HashTable)(v.ptr)
}

func (v Value) Opcode() Opcode {
	if v.typ != TOpcode {
		panic("not an opcode")
	}
	return Opcode(v.imm)
}

func (v Value) Address() (depth, index int) {
	if v.typ != TAddress {
		panic("not an address")
	}
	return int(uint32(v.imm >> 32)), int(uint32(v.imm))
}

func (v Value) Template() *Template {
	if v.typ != TTemplate {
		panic("not a template")
	}
	return (*Template)(v.ptr)
}

// String is a mutable character vector.
type String struct {
	Runes []rune
}

// Closure pairs compiled code with the environment captured by LDF.
type Closure struct {
	Template *Template
	Env      Value
}

// Template is the compiled, environment-free part of a function literal.
type Template struct {
	Name Value // symbol or NIL for anonymous lambdas
	Code Value
	// Params binds complex lambda lists (optional, key, aux). When nil the
	// frame is the argument list itself: Required arguments, and when Rest
	// is set any further arguments stay in the frame tail and are read by LDR.
	Params   FrameBinder
	Required int
	Rest     bool
}

// FrameBinder turns a call's argument list into an environment frame.
type FrameBinder interface {
	BindFrame(args Value) (Value, error)
	String() string
}

// Macro wraps an expander function stored in a symbol's function cell.
type Macro struct {
	Name     *Symbol
	Expander Value
}

// PrimitiveKind marks primitives that the machine has to dispatch itself
// because they transfer control.
type PrimitiveKind uint8

const (
	PrimPlain PrimitiveKind = iota
	PrimFuncall
	PrimApply
	PrimEval
)

// Context is what a primitive may see of the machine that calls it.
type Context interface {
	SymbolValue(sym *Symbol) (Value, bool)
	SetSymbolValue(sym *Symbol, v Value) error
}

// Primitive is a built-in operation implemented in Go.
type Primitive struct {
	Name     string
	Min, Max int // Max < 0 means variadic
	Kind     PrimitiveKind
	Foldable bool // safe to constant-fold when all args are literals
	Fn       func(ctx Context, args []Value) (Value, error)
}

// AcceptsArity reports whether n arguments are within Min..Max.
func (p *Primitive) AcceptsArity(n int) bool {
	return n >= p.Min && (p.Max < 0 || n <= p.Max)
}
