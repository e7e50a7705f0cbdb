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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/joomcode/errorx"
	"github.com/jtolds/gls"

	"github.com/launix-de/secdlisp/compiler"
	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/reader"
	"github.com/launix-de/secdlisp/secd"
)

// Engine ties the reader, the compiler and one machine together. Engines
// share nothing: each has its own packages, symbols and history.
type Engine struct {
	ID       uuid.UUID
	Universe *lisp.Universe
	Compiler *compiler.Compiler
	// Package is where the reader interns unqualified symbols.
	Package *lisp.Package
	Log     *slog.Logger
	Out     io.Writer

	trace *Tracefile

	// mu serializes top-level evaluation on machine
	mu      sync.Mutex
	machine *secd.Machine

	titles       []string
	declarations map[string]*Declaration
	gensym       int64
}

type config struct {
	casePolicy lisp.CasePolicy
	log        *slog.Logger
	out        io.Writer
	trace      io.WriteCloser
	boot       bool
}

// Option configures an Engine.
type Option func(*config)

// WithCase sets the case policy of the reader and the printer.
func WithCase(policy lisp.CasePolicy) Option {
	return func(c *config) { c.casePolicy = policy }
}

// WithLogger sets the logger for reader warnings and batch errors.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithOutput sets where the printing primitives write.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithTrace writes read/compile/execute spans in chrome://tracing format.
func WithTrace(w io.WriteCloser) Option {
	return func(c *config) { c.trace = w }
}

// WithoutBoot skips loading the boot library.
func WithoutBoot() Option {
	return func(c *config) { c.boot = false }
}

// New creates an engine. Initialization order: packages and constants,
// then the primitives, then the boot library.
func New(opts ...Option) (*Engine, error) {
	cfg := config{casePolicy: lisp.Upcase, out: os.Stdout, boot: true}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	u := lisp.NewUniverse(cfg.casePolicy)
	e := &Engine{
		ID:           uuid.New(),
		Universe:     u,
		Package:      u.User,
		Out:          cfg.out,
		declarations: make(map[string]*Declaration),
	}
	e.Log = cfg.log.With("engine", e.ID.String())
	e.Compiler = compiler.New(u, e)
	e.machine = secd.New(e.Compiler)
	if cfg.trace != nil {
		e.trace = NewTrace(cfg.trace)
	}
	e.declareBuiltins()
	if cfg.boot {
		if err := e.loadBoot(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Close finishes the trace file, if any.
func (e *Engine) Close() error {
	return e.SetTrace(false, "")
}

// Stats returns the counters of the top-level machine.
func (e *Engine) Stats() secd.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Stats
}

// Expand runs a macro expander on its own machine, so expansion works
// while the top-level machine is busy (eval, load).
func (e *Engine) Expand(m *lisp.Macro, form lisp.Value) (lisp.Value, error) {
	return secd.New(e.Compiler).Apply(m.Expander, form.Cdr())
}

func (e *Engine) newReader(in io.Reader) *reader.Reader {
	return reader.New(in, e.Universe, e.Package, e.Log)
}

// Read parses the first form of src.
func (e *Engine) Read(src string) (lisp.Value, error) {
	return e.newReader(strings.NewReader(src)).Read()
}

// Compile lowers form; lexicalNames describes the frames of the
// environment the code will run in, innermost first.
func (e *Engine) Compile(form, lexicalNames lisp.Value) (lisp.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Compiler.Compile(form, lexicalNames)
}

// Execute runs compiled code with env as the initial environment.
func (e *Engine) Execute(code, env lisp.Value) (lisp.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Execute(code, env)
}

// Eval reads and evaluates every form of src and returns the last value.
// It stops at the first error.
func (e *Engine) Eval(src string) (lisp.Value, error) {
	return e.EvalContext(context.Background(), src)
}

// EvalContext is Eval with cancellation.
func (e *Engine) EvalContext(ctx context.Context, src string) (lisp.Value, error) {
	r := e.newReader(strings.NewReader(src))
	result := lisp.Nil
	for {
		form, err := r.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return lisp.Nil, err
		}
		if result, err = e.EvalForm(ctx, form); err != nil {
			return lisp.Nil, err
		}
	}
}

// EvalForm compiles and executes one top-level form and updates the
// history variables.
func (e *Engine) EvalForm(ctx context.Context, form lisp.Value) (lisp.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.evaluate(ctx, e.machine, form)
	if err != nil {
		return lisp.Nil, err
	}
	e.remember(v)
	return v, nil
}

// EvalAll evaluates all forms read from in. Failing forms are logged and
// skipped; the returned error collects them.
func (e *Engine) EvalAll(ctx context.Context, name string, in io.Reader) (lisp.Value, error) {
	return e.evalAll(name, in, func(form lisp.Value) (lisp.Value, error) {
		return e.EvalForm(ctx, form)
	})
}

func (e *Engine) evalAll(name string, in io.Reader, eval func(lisp.Value) (lisp.Value, error)) (lisp.Value, error) {
	r := e.newReader(in)
	result := lisp.Nil
	var errs []error
	for {
		var form lisp.Value
		var err error
		e.span("read "+name, "read", func() { form, err = r.Read() })
		if err == io.EOF {
			break
		}
		if err != nil {
			e.Log.Error("read failed", "file", name, "line", r.Line(), "error", err)
			errs = append(errs, err)
			if errorx.IsOfType(err, lisp.Incomplete) {
				break
			}
			continue
		}
		v, err := eval(form)
		if err != nil {
			e.Log.Error("evaluation failed", "file", name, "line", r.Line(), "form", e.brief(form), "error", err)
			errs = append(errs, err)
			continue
		}
		result = v
	}
	if len(errs) > 0 {
		return result, errorx.DecorateMany(fmt.Sprintf("%s: %d forms failed", name, len(errs)), errs...)
	}
	return result, nil
}

type outcome struct {
	v   lisp.Value
	err error
}

// contexts carries the context of the running evaluation to primitives
// that start nested evaluations, such as load.
var contexts = gls.NewContextManager()

type contextKey struct{}

func currentContext() context.Context {
	if v, ok := contexts.GetValue(contextKey{}); ok {
		return v.(context.Context)
	}
	return context.Background()
}

// evaluate runs form on a worker goroutine.
func (e *Engine) evaluate(ctx context.Context, m *secd.Machine, form lisp.Value) (lisp.Value, error) {
	done := make(chan outcome, 1)
	gls.Go(func() {
		contexts.SetValues(gls.Values{contextKey{}: ctx}, func() {
			v, err := e.evalForm(ctx, m, form)
			done <- outcome{v, err}
		})
	})
	o := <-done
	return o.v, o.err
}

func (e *Engine) evalForm(ctx context.Context, m *secd.Machine, form lisp.Value) (result lisp.Value, err error) {
	var code lisp.Value
	e.span(e.brief(form), "compile", func() { code, err = e.Compiler.Compile(form, lisp.Nil) })
	if err != nil {
		return lisp.Nil, err
	}
	e.span(e.brief(form), "execute", func() { result, err = m.ExecuteContext(ctx, code, lisp.Nil) })
	return result, err
}

// remember shifts the history variables *, ** and ***.
func (e *Engine) remember(v lisp.Value) {
	s := e.Universe.Syms
	s.History3.Value = s.History2.Value
	s.History2.Value = s.History1.Value
	s.History1.Value = v
}

func (e *Engine) printer(escape bool) *lisp.Printer {
	return &lisp.Printer{Package: e.Package, Case: e.Universe.Case, Escape: escape}
}

// Sprint prints v readably relative to the current package.
func (e *Engine) Sprint(v lisp.Value) string {
	return e.printer(true).Sprint(v)
}

func (e *Engine) brief(form lisp.Value) string {
	s := e.Sprint(form)
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

func (e *Engine) span(name, cat string, f func()) {
	if e.trace == nil {
		f()
		return
	}
	e.trace.Duration(name, cat, f)
}
