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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jtolds/gls"
)

// Tracefile writes events in the chrome://tracing JSON array format.
type Tracefile struct {
	isFirst bool
	file    io.WriteCloser
	start   time.Time
	m       sync.Mutex
}

type traceEvent struct {
	Name  string `json:"name"`
	Cat   string `json:"cat"`
	Phase string `json:"ph"`
	Ts    int64  `json:"ts"`
	Pid   int    `json:"pid"`
	Tid   uint   `json:"tid"`
	Scope string `json:"s"`
}

// SetTrace starts tracing into trace_<engine id>.json in folder, or stops
// tracing when on is false.
func (e *Engine) SetTrace(on bool, folder string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trace != nil {
		if err := e.trace.Close(); err != nil {
			return err
		}
		e.trace = nil
	}
	if on {
		f, err := os.Create(filepath.Join(folder, fmt.Sprintf("trace_%s.json", e.ID)))
		if err != nil {
			return err
		}
		e.trace = NewTrace(f)
	}
	return nil
}

func NewTrace(file io.WriteCloser) *Tracefile {
	file.Write([]byte("["))
	return &Tracefile{isFirst: true, file: file, start: time.Now()}
}

func (t *Tracefile) Close() error {
	t.m.Lock()
	defer t.m.Unlock()
	if _, err := t.file.Write([]byte("]")); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}

// Duration records f as a begin/end pair on the current worker.
func (t *Tracefile) Duration(name string, cat string, f func()) {
	t.Event(name, cat, "B")
	defer t.Event(name, cat, "E")
	f()
}

func (t *Tracefile) Event(name string, cat string, typ string) {
	tid, _ := gls.GetGoroutineId()
	t.EventFull(name, cat, typ, time.Since(t.start).Microseconds(), tid, 0)
}

/*
@name span name
@cat comma separated categories (for filtering)
@typ B/E for begin/end, i for instant events
@ts timestamp in microseconds since the trace started
*/
func (t *Tracefile) EventFull(name string, cat string, typ string, ts int64, tid uint, pid int) {
	b, _ := json.Marshal(traceEvent{Name: name, Cat: cat, Phase: typ, Ts: ts, Pid: pid, Tid: tid, Scope: "g"})
	t.m.Lock()
	defer t.m.Unlock()
	if t.isFirst {
		t.isFirst = false
	} else {
		t.file.Write([]byte(",\n"))
	}
	t.file.Write(b)
}
