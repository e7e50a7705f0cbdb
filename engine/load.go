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
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jtolds/gls"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/launix-de/secdlisp/lisp"
	"github.com/launix-de/secdlisp/secd"
)

type dirKey struct{}

// resolve makes path relative to the directory of the file being loaded.
func resolve(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if dir, ok := ctx.Value(dirKey{}).(string); ok {
		return filepath.Join(dir, path)
	}
	return path
}

type source struct {
	io.Reader
	closers []io.Closer
}

func (s *source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openSource opens a source file and decompresses it by its extension.
func openSource(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &source{Reader: f, closers: []io.Closer{f}}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.Reader = zr
		s.closers = append(s.closers, zr)
	case ".xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.Reader = xr
	case ".lz4":
		s.Reader = lz4.NewReader(f)
	}
	return s, nil
}

// LoadFile evaluates all forms of a source file on the top-level machine.
// Relative loads inside the file are resolved against its directory.
func (e *Engine) LoadFile(ctx context.Context, path string) (lisp.Value, error) {
	path = resolve(ctx, path)
	in, err := openSource(path)
	if err != nil {
		return lisp.Nil, err
	}
	defer in.Close()
	return e.EvalAll(context.WithValue(ctx, dirKey{}, filepath.Dir(path)), path, in)
}

// loadNested runs a load issued from running code. The top-level machine
// is busy, so the file gets a machine of its own.
func (e *Engine) loadNested(path string) error {
	ctx := currentContext()
	path = resolve(ctx, path)
	in, err := openSource(path)
	if err != nil {
		return err
	}
	defer in.Close()
	ctx = context.WithValue(ctx, dirKey{}, filepath.Dir(path))
	m := secd.New(e.Compiler)
	contexts.SetValues(gls.Values{contextKey{}: ctx}, func() {
		_, err = e.evalAll(path, in, func(form lisp.Value) (lisp.Value, error) {
			return e.evalForm(ctx, m, form)
		})
	})
	return err
}

// Watch loads a file and reloads it whenever it changes until ctx is done.
func (e *Engine) Watch(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	reread := func() {
		if _, err := e.LoadFile(ctx, path); err != nil {
			e.Log.Warn("reload failed", "file", path, "error", err)
		}
	}
	reread()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.Errors:
				e.Log.Warn("watch failed", "file", path, "error", err)
			case <-watcher.Events:
				// flush the burst of events an editor save produces
				for drained := false; !drained; {
					time.Sleep(10 * time.Millisecond)
					select {
					case <-watcher.Events:
					default:
						drained = true
					}
				}
				reread()
				watcher.Add(path) // editors replace files by rename
			}
		}
	}()
	return nil
}
