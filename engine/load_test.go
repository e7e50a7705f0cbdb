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
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func writeCompressed(t *testing.T, path, src string, wrap func(io.Writer) io.WriteCloser) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := wrap(f)
	_, err = io.WriteString(w, src)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestLoadFileDecompresses(t *testing.T) {
	e, _, _ := newEngine(t)
	dir := t.TempDir()
	ctx := context.Background()

	plain := filepath.Join(dir, "plain.lisp")
	require.NoError(t, os.WriteFile(plain, []byte("(defparameter *plain* 1)"), 0o644))

	gz := filepath.Join(dir, "a.lisp.gz")
	writeCompressed(t, gz, "(defparameter *gz* 2)", func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})

	xzPath := filepath.Join(dir, "b.lisp.xz")
	writeCompressed(t, xzPath, "(defparameter *xz* 3)", func(w io.Writer) io.WriteCloser {
		xw, err := xz.NewWriter(w)
		require.NoError(t, err)
		return xw
	})

	lz := filepath.Join(dir, "c.lisp.lz4")
	writeCompressed(t, lz, "(defparameter *lz4* 4)", func(w io.Writer) io.WriteCloser {
		return lz4.NewWriter(w)
	})

	for _, path := range []string{plain, gz, xzPath, lz} {
		_, err := e.LoadFile(ctx, path)
		require.NoError(t, err, path)
	}
	assert.Equal(t, "(1 2 3 4)", eval(t, e, "(list *plain* *gz* *xz* *lz4*)"))

	_, err := e.LoadFile(ctx, filepath.Join(dir, "missing.lisp"))
	assert.Error(t, err)
}

func TestNestedLoadIsRelative(t *testing.T) {
	e, _, _ := newEngine(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lisp"),
		[]byte(`(load "lib/util.lisp") (defparameter *main* (twice 21))`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "util.lisp"),
		[]byte(`(defun twice (x) (* 2 x)) (load "more.lisp")`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "more.lisp"),
		[]byte(`(defparameter *more* t)`), 0o644))

	_, err := e.LoadFile(context.Background(), filepath.Join(dir, "main.lisp"))
	require.NoError(t, err)
	assert.Equal(t, "(42 T)", eval(t, e, "(list *main* *more*)"))

	_, err = e.Eval(`(load "does-not-exist.lisp")`)
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	e, _, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "watched.lisp")
	require.NoError(t, os.WriteFile(path, []byte("(defparameter *w* 1)"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Watch(ctx, path))
	assert.Equal(t, "1", eval(t, e, "*w*"))

	require.NoError(t, os.WriteFile(path, []byte("(defparameter *w* 2)"), 0o644))
	assert.Eventually(t, func() bool {
		v, err := e.Eval("*w*")
		return err == nil && e.Sprint(v) == "2"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Error(t, e.Watch(ctx, path+".missing"))
}

type traceBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *traceBuffer) Close() error {
	b.closed = true
	return nil
}

func TestTrace(t *testing.T) {
	var buf traceBuffer
	e, err := New(WithTrace(&buf), WithoutBoot(), WithOutput(io.Discard))
	require.NoError(t, err)
	_, err = e.EvalAll(context.Background(), "input", bytes.NewBufferString("(+ 1 2) (list 1)"))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.True(t, buf.closed)

	var events []traceEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &events))
	cats := map[string]int{}
	for _, ev := range events {
		cats[ev.Cat+"/"+ev.Phase]++
	}
	assert.Equal(t, 2, cats["compile/B"])
	assert.Equal(t, 2, cats["execute/E"])
	assert.Equal(t, 3, cats["read/B"]) // two forms and the end of input
}
