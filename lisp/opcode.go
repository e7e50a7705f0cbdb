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

// Opcode is one instruction of the abstract machine. Opcodes appear inline
// in a bytecode list, followed by their operands.
type Opcode uint8

const (
	LDC Opcode = iota + 1
	LD
	LDR
	LD_GLOBAL
	LDF
	LDFC
	AP
	DAP
	DUM
	RAP
	RTN
	RTN_IF
	RTN_IT
	SEL
	TEST
	JOIN
	LIS
	SP_BIND
	SP_UNBIND
	TAG_B
	TAG_E
	BLK
	STOP
	POP
	ST
	STR
	SET_GLOBAL
	DEF
	RTN_FROM
	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	LDC:        "LDC",
	LD:         "LD",
	LDR:        "LDR",
	LD_GLOBAL:  "LD_GLOBAL",
	LDF:        "LDF",
	LDFC:       "LDFC",
	AP:         "AP",
	DAP:        "DAP",
	DUM:        "DUM",
	RAP:        "RAP",
	RTN:        "RTN",
	RTN_IF:     "RTN_IF",
	RTN_IT:     "RTN_IT",
	SEL:        "SEL",
	TEST:       "TEST",
	JOIN:       "JOIN",
	LIS:        "LIS",
	SP_BIND:    "SP_BIND",
	SP_UNBIND:  "SP_UNBIND",
	TAG_B:      "TAG_B",
	TAG_E:      "TAG_E",
	BLK:        "BLK",
	STOP:       "STOP",
	POP:        "POP",
	ST:         "ST",
	STR:        "STR",
	SET_GLOBAL: "SET_GLOBAL",
	DEF:        "DEF",
	RTN_FROM:   "RTN_FROM",
}

// operand counts, used by the disassembler and by the block exit scan
var opcodeOperands = [opcodeCount]uint8{
	LDC: 1, LD: 1, LDR: 1, LD_GLOBAL: 1, LDF: 1, LDFC: 1,
	SEL: 2, TEST: 1, LIS: 1, SP_BIND: 1, SP_UNBIND: 1,
	TAG_B: 1, BLK: 1, ST: 1, STR: 1, SET_GLOBAL: 1, DEF: 2, RTN_FROM: 2,
}

func (op Opcode) String() string {
	if op > 0 && op < opcodeCount {
		return opcodeNames[op]
	}
	return "?"
}

// Operands returns how many inline operands follow op in a bytecode list.
func (op Opcode) Operands() int {
	if op < opcodeCount {
		return int(opcodeOperands[op])
	}
	return 0
}

// Program builds a bytecode list from opcodes and operand values.
// Opcode arguments are wrapped, Values are taken as they are.
func Program(items ...any) Value {
	vals := make([]Value, len(items))
	for i, it := range items {
		switch x := it.(type) {
		case Opcode:
			vals[i] = NewOpcode(x)
		case Value:
			vals[i] = x
		case int:
			vals[i] = NewInteger(int64(x))
		default:
			panic("Program: unsupported item")
		}
	}
	return List(vals...)
}
