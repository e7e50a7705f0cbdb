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
package secd

import (
	"context"
	"fmt"
	"io"

	"github.com/joomcode/errorx"
	"github.com/launix-de/secdlisp/lisp"
)

// Compiler compiles the argument of eval into code that returns to its
// caller.
type Compiler interface {
	CompileBody(form lisp.Value) (lisp.Value, error)
}

type dumpKind uint8

const (
	dumpCall dumpKind = iota // saved by AP and RAP, restored by RTN
	dumpJoin                 // saved by SEL and DEF, restored by JOIN
)

type dump struct {
	kind dumpKind
	base int
	e, c lisp.Value
}

// blockEntry is the snapshot TAG_B pushes onto X.
type blockEntry struct {
	id         lisp.Value
	e, c       lisp.Value
	dumpDepth  int
	stackDepth int
	base       int
	mark       uint64
}

// Stats counts the work of a machine across executions.
type Stats struct {
	Steps    uint64
	Calls    uint64
	MaxStack int
	MaxDump  int
}

// FormatStatistics writes the counters to w.
func (s Stats) FormatStatistics(w io.Writer) (int, error) {
	return fmt.Fprintf(w, "Steps = %d -- Calls = %d -- MaxStack = %d -- MaxDump = %d",
		s.Steps, s.Calls, s.MaxStack, s.MaxDump)
}

// Machine holds the six registers. S is a slice whose part below base
// belongs to the callers; E and C are lists; D and X are stacks of
// snapshots; B maps each dynamically bound symbol to its binding stack.
type Machine struct {
	S    []lisp.Value
	base int
	E    lisp.Value
	C    lisp.Value
	D    []dump
	B    map[*lisp.Symbol][]lisp.Value
	X    []blockEntry

	// live bindings in the order they were made, for unwinding
	trail  []binding
	serial uint64
	// serial at the start of the current run, and the older bindings the
	// run has unbound so far
	mark uint64
	lost []lostBinding

	Compiler Compiler
	Stats    Stats
	running  bool
}

func New(c Compiler) *Machine {
	return &Machine{B: make(map[*lisp.Symbol][]lisp.Value), Compiler: c}
}

func (m *Machine) fault(format string, args ...any) *errorx.Error {
	return lisp.MachineFault.New(format, args...)
}

// Execute runs code with env as the initial environment until STOP.
func (m *Machine) Execute(code, env lisp.Value) (lisp.Value, error) {
	return m.ExecuteContext(context.Background(), code, env)
}

// ExecuteContext is Execute with cancellation, checked every 256 steps.
// Dynamic bindings made by a run that faults are undone; bindings left by
// a successful run stay until unbound.
func (m *Machine) ExecuteContext(ctx context.Context, code, env lisp.Value) (result lisp.Value, err error) {
	if m.running {
		return lisp.Nil, m.fault("machine is already executing")
	}
	m.running = true
	m.S = m.S[:0]
	m.base = 0
	m.E = env
	m.C = code
	m.D = m.D[:0]
	m.X = m.X[:0]
	m.mark = m.serial
	m.lost = m.lost[:0]
	defer func() {
		if r := recover(); r != nil {
			if e, ok := errorx.ErrorFromPanic(r); ok {
				err = lisp.MachineFault.Wrap(e, "machine panic")
			} else {
				err = m.fault("machine panic: %v", r)
			}
			result = lisp.Nil
		}
		if err != nil {
			m.unwindTo(m.mark)
			m.restoreLost()
		}
		m.lost = m.lost[:0]
		m.running = false
	}()
	done := ctx.Done()
	for {
		if done != nil && m.Stats.Steps&255 == 0 {
			select {
			case <-done:
				return lisp.Nil, lisp.MachineFault.Wrap(ctx.Err(), "execution cancelled")
			default:
			}
		}
		m.Stats.Steps++
		halt, err := m.step()
		if err != nil {
			return lisp.Nil, err
		}
		if halt {
			if len(m.D) != 0 {
				return lisp.Nil, m.fault("STOP with %d dump entries left", len(m.D))
			}
			if len(m.S) == 0 {
				return lisp.Nil, nil
			}
			return m.S[len(m.S)-1], nil
		}
	}
}

// Apply calls fn with the argument list args.
func (m *Machine) Apply(fn, args lisp.Value) (lisp.Value, error) {
	return m.ApplyContext(context.Background(), fn, args)
}

func (m *Machine) ApplyContext(ctx context.Context, fn, args lisp.Value) (lisp.Value, error) {
	if args.Length() < 0 {
		return lisp.Nil, m.fault("improper argument list %s", args)
	}
	// the callee's frame must not share structure with the caller's list
	args = lisp.CopyList(args)
	return m.ExecuteContext(ctx, lisp.Program(lisp.LDC, fn, lisp.LDC, args, lisp.AP, lisp.STOP), lisp.Nil)
}

func (m *Machine) push(v lisp.Value) {
	m.S = append(m.S, v)
	if len(m.S) > m.Stats.MaxStack {
		m.Stats.MaxStack = len(m.S)
	}
}

func (m *Machine) pop() (lisp.Value, error) {
	if len(m.S) <= m.base {
		return lisp.Nil, m.fault("stack underflow")
	}
	v := m.S[len(m.S)-1]
	m.S = m.S[:len(m.S)-1]
	return v, nil
}

func (m *Machine) peek() (lisp.Value, error) {
	if len(m.S) <= m.base {
		return lisp.Nil, m.fault("stack underflow")
	}
	return m.S[len(m.S)-1], nil
}

func (m *Machine) pushDump(kind dumpKind, e, c lisp.Value) {
	m.D = append(m.D, dump{kind: kind, base: m.base, e: e, c: c})
	if len(m.D) > m.Stats.MaxDump {
		m.Stats.MaxDump = len(m.D)
	}
}

func (m *Machine) popDump(kind dumpKind) (dump, error) {
	if len(m.D) == 0 {
		return dump{}, m.fault("dump underflow")
	}
	d := m.D[len(m.D)-1]
	if d.kind != kind {
		return dump{}, m.fault("dump mismatch")
	}
	m.D = m.D[:len(m.D)-1]
	return d, nil
}

// operand consumes the next element of C.
func (m *Machine) operand() (lisp.Value, error) {
	if !m.C.IsCons() {
		return lisp.Nil, m.fault("missing operand")
	}
	v := m.C.Car()
	m.C = m.C.Cdr()
	return v, nil
}

func (m *Machine) symbolOperand() (*lisp.Symbol, error) {
	v, err := m.operand()
	if err != nil {
		return nil, err
	}
	if !v.IsSymbol() {
		return nil, m.fault("%s is not a symbol", v)
	}
	return v.Symbol(), nil
}

// slot returns the frame cell at a lexical address; its car is the value.
func (m *Machine) slot(addr lisp.Value) (frameCell, cell lisp.Value, index int, err error) {
	if addr.Type() != lisp.TAddress {
		return lisp.Nil, lisp.Nil, 0, m.fault("%s is not an address", addr)
	}
	depth, index := addr.Address()
	frameCell = m.E.NthCell(depth)
	if !frameCell.IsCons() {
		return lisp.Nil, lisp.Nil, 0, m.fault("no frame at depth %d", depth)
	}
	cell = frameCell.Car().NthCell(index - 1)
	return frameCell, cell, index, nil
}

func (m *Machine) ret() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	m.S = m.S[:m.base]
	d, err := m.popDump(dumpCall)
	if err != nil {
		return err
	}
	m.base, m.E, m.C = d.base, d.e, d.c
	m.push(v)
	return nil
}

// step executes one instruction; halt reports STOP or the end of C.
func (m *Machine) step() (halt bool, err error) {
	if !m.C.IsCons() {
		return true, nil
	}
	insn := m.C.Car()
	m.C = m.C.Cdr()
	if insn.Type() != lisp.TOpcode {
		return false, m.fault("%s is not an instruction", insn)
	}
	switch op := insn.Opcode(); op {
	case lisp.STOP:
		return true, nil

	case lisp.LDC:
		v, err := m.operand()
		if err != nil {
			return false, err
		}
		m.push(v)

	case lisp.LD, lisp.LDR:
		addr, err := m.operand()
		if err != nil {
			return false, err
		}
		_, cell, _, err := m.slot(addr)
		if err != nil {
			return false, err
		}
		if op == lisp.LDR {
			m.push(cell)
		} else if cell.IsCons() {
			m.push(cell.Car())
		} else {
			return false, m.fault("no slot at %s", addr)
		}

	case lisp.ST, lisp.STR:
		addr, err := m.operand()
		if err != nil {
			return false, err
		}
		v, err := m.peek()
		if err != nil {
			return false, err
		}
		frameCell, cell, index, err := m.slot(addr)
		if err != nil {
			return false, err
		}
		switch {
		case op == lisp.ST && cell.IsCons():
			lisp.Rplaca(cell, v)
		case op == lisp.STR && index == 1:
			lisp.Rplaca(frameCell, v)
		case op == lisp.STR:
			lisp.Rplacd(frameCell.Car().NthCell(index-2), v)
		default:
			return false, m.fault("no slot at %s", addr)
		}

	case lisp.LD_GLOBAL:
		sym, err := m.symbolOperand()
		if err != nil {
			return false, err
		}
		v, ok := m.SymbolValue(sym)
		if !ok {
			return false, lisp.WithSymbol(m.fault("unbound variable %s", sym.Name), sym)
		}
		m.push(v)

	case lisp.SET_GLOBAL:
		sym, err := m.symbolOperand()
		if err != nil {
			return false, err
		}
		v, err := m.peek()
		if err != nil {
			return false, err
		}
		if err := m.SetSymbolValue(sym, v); err != nil {
			return false, err
		}

	case lisp.LDF:
		t, err := m.operand()
		if err != nil {
			return false, err
		}
		if t.Type() != lisp.TTemplate {
			return false, m.fault("LDF needs a template, got %s", t)
		}
		m.push(lisp.NewClosure(t.Template(), m.E))

	case lisp.LDFC:
		sym, err := m.symbolOperand()
		if err != nil {
			return false, err
		}
		fn := sym.Function
		if !fn.IsFunction() {
			return false, lisp.WithSymbol(m.fault("undefined function %s", sym.Name), sym)
		}
		m.push(fn)

	case lisp.AP, lisp.DAP:
		args, err := m.pop()
		if err != nil {
			return false, err
		}
		fn, err := m.pop()
		if err != nil {
			return false, err
		}
		return false, m.apply(fn, args, op == lisp.DAP)

	case lisp.DUM:
		m.E = lisp.NewCons(lisp.Nil, m.E)

	case lisp.RAP:
		args, err := m.pop()
		if err != nil {
			return false, err
		}
		fn, err := m.pop()
		if err != nil {
			return false, err
		}
		if fn.Type() != lisp.TClosure || !m.E.IsCons() || fn.Closure().Env != m.E {
			return false, m.fault("RAP without matching DUM")
		}
		lisp.Rplaca(m.E, args)
		m.Stats.Calls++
		m.pushDump(dumpCall, m.E.Cdr(), m.C)
		m.base = len(m.S)
		m.C = fn.Closure().Template.Code

	case lisp.RTN:
		return false, m.ret()

	case lisp.RTN_IF, lisp.RTN_IT:
		v, err := m.peek()
		if err != nil {
			return false, err
		}
		if v.IsTrue() == (op == lisp.RTN_IT) {
			return false, m.ret()
		}

	case lisp.SEL:
		then, err := m.operand()
		if err != nil {
			return false, err
		}
		els, err := m.operand()
		if err != nil {
			return false, err
		}
		sel, err := m.pop()
		if err != nil {
			return false, err
		}
		m.pushDump(dumpJoin, lisp.Nil, m.C)
		if sel.IsTrue() {
			m.C = then
		} else {
			m.C = els
		}

	case lisp.TEST:
		then, err := m.operand()
		if err != nil {
			return false, err
		}
		sel, err := m.pop()
		if err != nil {
			return false, err
		}
		if sel.IsTrue() {
			m.C = then
		}

	case lisp.JOIN:
		d, err := m.popDump(dumpJoin)
		if err != nil {
			return false, err
		}
		m.C = d.c

	case lisp.DEF:
		addr, err := m.operand()
		if err != nil {
			return false, err
		}
		code, err := m.operand()
		if err != nil {
			return false, err
		}
		_, cell, _, err := m.slot(addr)
		if err != nil {
			return false, err
		}
		if cell.Car().IsUnbound() {
			m.pushDump(dumpJoin, lisp.Nil, m.C)
			m.C = code
		}

	case lisp.LIS:
		nv, err := m.operand()
		if err != nil {
			return false, err
		}
		if nv.Type() != lisp.TInteger {
			return false, m.fault("LIS needs a count, got %s", nv)
		}
		n := int(nv.Int())
		if n < 0 || len(m.S)-m.base < n {
			return false, m.fault("stack underflow")
		}
		l := lisp.List(m.S[len(m.S)-n:]...)
		m.S = m.S[:len(m.S)-n]
		m.push(l)

	case lisp.POP:
		if _, err := m.pop(); err != nil {
			return false, err
		}

	case lisp.SP_BIND:
		sym, err := m.symbolOperand()
		if err != nil {
			return false, err
		}
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		m.Bind(sym, v)

	case lisp.SP_UNBIND:
		sym, err := m.symbolOperand()
		if err != nil {
			return false, err
		}
		if err := m.Unbind(sym); err != nil {
			return false, err
		}

	case lisp.TAG_B:
		id, err := m.operand()
		if err != nil {
			return false, err
		}
		m.X = append(m.X, blockEntry{
			id: id, e: m.E, c: m.C,
			dumpDepth: len(m.D), stackDepth: len(m.S), base: m.base, mark: m.serial,
		})

	case lisp.TAG_E:
		if len(m.X) == 0 {
			return false, m.fault("TAG_E without TAG_B")
		}
		m.X = m.X[:len(m.X)-1]

	case lisp.BLK:
		if _, err := m.operand(); err != nil {
			return false, err
		}

	case lisp.RTN_FROM:
		id, err := m.operand()
		if err != nil {
			return false, err
		}
		depth, err := m.operand()
		if err != nil {
			return false, err
		}
		if depth.Type() != lisp.TInteger {
			return false, m.fault("RTN_FROM needs a frame depth, got %s", depth)
		}
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		return false, m.returnFrom(id, m.E.NthCell(int(depth.Int())), v)

	default:
		return false, m.fault("unknown opcode %s", op)
	}
	return false, nil
}

// returnFrom unwinds to the activation of block id that was entered with
// environment env and continues after its BLK marker with v on the stack.
func (m *Machine) returnFrom(id, env, v lisp.Value) error {
	i := len(m.X) - 1
	for ; i >= 0; i-- {
		if lisp.Eql(m.X[i].id, id) && m.X[i].e == env {
			break
		}
	}
	if i < 0 {
		return m.fault("block %s is no longer active", id)
	}
	x := m.X[i]
	c := x.c
	for c.IsCons() {
		insn := c.Car()
		c = c.Cdr()
		if insn.Type() != lisp.TOpcode {
			continue
		}
		if insn.Opcode() == lisp.BLK && lisp.Eql(c.Car(), id) {
			break
		}
		c = c.NthCell(insn.Opcode().Operands())
	}
	if !c.IsCons() {
		return m.fault("BLK %s not found", id)
	}
	m.unwindTo(x.mark)
	m.X = m.X[:i]
	m.D = m.D[:x.dumpDepth]
	m.S = m.S[:x.stackDepth]
	m.base = x.base
	m.E = x.e
	m.C = c.Cdr()
	m.push(v)
	return nil
}

// apply calls fn; in tail position no dump entry is pushed.
func (m *Machine) apply(fn, args lisp.Value, tail bool) error {
	m.Stats.Calls++
	switch fn.Type() {
	case lisp.TClosure:
		cl := fn.Closure()
		t := cl.Template
		var frame lisp.Value
		if t.Params != nil {
			f, err := t.Params.BindFrame(args)
			if err != nil {
				return err
			}
			frame = f
		} else {
			n := args.Length()
			if n < 0 {
				return m.fault("improper argument list %s", args)
			}
			if n < t.Required || (!t.Rest && n > t.Required) {
				return lisp.WithForm(lisp.BindingError.New("%s expects %d arguments, got %d", fn, t.Required, n), args)
			}
			frame = args
		}
		m.enter(tail, lisp.NewCons(frame, cl.Env), t.Code)
		return nil

	case lisp.TPrimitive:
		p := fn.Primitive()
		argv, ok := args.Slice()
		if !ok {
			return m.fault("improper argument list %s", args)
		}
		if !p.AcceptsArity(len(argv)) {
			return lisp.WithSymbol(lisp.BindingError.New("%s: wrong number of arguments (%d)", p.Name, len(argv)), lisp.NewSymbol(p.Name))
		}
		switch p.Kind {
		case lisp.PrimFuncall:
			return m.apply(argv[0], lisp.List(argv[1:]...), tail)
		case lisp.PrimApply:
			last := argv[len(argv)-1]
			if last.Length() < 0 {
				return m.fault("apply: %s is not a list", last)
			}
			return m.apply(argv[0], lisp.ListStar(lisp.CopyList(last), argv[1:len(argv)-1]...), tail)
		case lisp.PrimEval:
			if m.Compiler == nil {
				return m.fault("eval: no compiler")
			}
			code, err := m.Compiler.CompileBody(argv[0])
			if err != nil {
				return err
			}
			m.enter(tail, lisp.Nil, code)
			return nil
		}
		v, err := p.Fn(m, argv)
		if err != nil {
			return primitiveError(p, err)
		}
		m.push(v)
		if tail {
			return m.ret()
		}
		return nil
	}
	return m.fault("%s is not a function", fn)
}

// enter switches to code running in env; a non-tail call saves the
// caller in D first.
func (m *Machine) enter(tail bool, env, code lisp.Value) {
	if tail {
		m.S = m.S[:m.base]
	} else {
		m.pushDump(dumpCall, m.E, m.C)
		m.base = len(m.S)
	}
	m.E = env
	m.C = code
}

func primitiveError(p *lisp.Primitive, err error) error {
	if e := errorx.Cast(err); e != nil && errorx.IsOfType(e, lisp.MachineFault) {
		return e.WithProperty(lisp.PropertySymbol, p.Name)
	}
	if e := errorx.Cast(err); e != nil && lisp.IsRecoverable(e) {
		return e
	}
	return lisp.MachineFault.Wrap(err, "%s failed", p.Name).WithProperty(lisp.PropertySymbol, p.Name)
}
