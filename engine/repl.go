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
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/joomcode/errorx"

	"github.com/launix-de/secdlisp/lisp"
)

const newprompt = "\033[32m>\033[0m "
const contprompt = "\033[32m.\033[0m "
const resultprompt = "\033[31m=\033[0m "

// Session holds the state of an interactive session between lines.
type Session struct {
	e       *Engine
	out     io.Writer
	pending string
}

func (e *Engine) NewSession(out io.Writer) *Session {
	return &Session{e: e, out: out}
}

// Line takes one line of input and returns the prompt for the next one.
// Input that ends inside a form is kept until the form is complete.
func (s *Session) Line(ctx context.Context, line string) string {
	text := s.pending + line
	if strings.TrimSpace(text) == "" {
		s.pending = ""
		return newprompt
	}
	r := s.e.newReader(strings.NewReader(text))
	var forms []lisp.Value
	for {
		form, err := r.Read()
		if err == io.EOF {
			break
		}
		if errorx.IsOfType(err, lisp.Incomplete) {
			s.pending = text + "\n"
			return contprompt
		}
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			s.pending = ""
			return newprompt
		}
		forms = append(forms, form)
	}
	s.pending = ""
	for _, form := range forms {
		result, err := s.e.EvalForm(ctx, form)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			break
		}
		fmt.Fprint(s.out, resultprompt)
		fmt.Fprintln(s.out, s.e.Sprint(result))
	}
	return newprompt
}

// Repl reads lines from the terminal until EOF. Ctrl-C on an empty line
// quits; during an evaluation it cancels the evaluation.
func (e *Engine) Repl() error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".secdlisp-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	s := e.NewSession(l.Stdout())
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 && s.pending == "" {
				return nil
			}
			s.pending = ""
			l.SetPrompt(newprompt)
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		l.SetPrompt(s.Line(ctx, line))
		stop()
	}
}
