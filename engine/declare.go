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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/launix-de/secdlisp/lisp"
)

// Declaration describes a primitive together with its help text.
type Declaration struct {
	Name         string
	Desc         string
	MinParameter int
	MaxParameter int // -1 for any number
	Params       []DeclarationParameter
	Returns      string // any | string | number | int | bool | func | list | symbol | nil
	Kind         lisp.PrimitiveKind
	Foldable     bool // safe to constant-fold: literal args, no fresh mutable result
	Fn           func(ctx lisp.Context, args []lisp.Value) (lisp.Value, error)
}

type DeclarationParameter struct {
	Name string
	Type string // any | string | number | int | bool | func | list | symbol | nil
	Desc string
}

// DeclareTitle starts a new chapter for help and the documentation.
func (e *Engine) DeclareTitle(title string) {
	e.titles = append(e.titles, "#"+title)
}

// Declare installs def in the function cell of the LISP symbol of the
// same name.
func (e *Engine) Declare(def *Declaration) {
	sym := e.Universe.Builtin(def.Name)
	e.titles = append(e.titles, def.Name)
	e.declarations[def.Name] = def
	sym.Function = lisp.NewPrimitive(&lisp.Primitive{
		Name:     sym.Name,
		Min:      def.MinParameter,
		Max:      def.MaxParameter,
		Kind:     def.Kind,
		Foldable: def.Foldable,
		Fn:       def.Fn,
	})
}

// FindDeclaration looks up the declaration of a primitive by name.
func (e *Engine) FindDeclaration(name string) *Declaration {
	return e.declarations[lisp.LowerCase(name)]
}

func arity(def *Declaration) string {
	if def.MaxParameter < 0 {
		return fmt.Sprintf("%d or more", def.MinParameter)
	}
	if def.MinParameter == def.MaxParameter {
		return fmt.Sprint(def.MinParameter)
	}
	return fmt.Sprintf("%d-%d", def.MinParameter, def.MaxParameter)
}

// Help lists all primitives, or describes the one named topic.
func (e *Engine) Help(w io.Writer, topic string) error {
	if topic == "" {
		fmt.Fprintln(w, "Available functions:")
		for _, title := range e.titles {
			if title[0] == '#' {
				fmt.Fprintln(w, "")
				fmt.Fprintln(w, "-- "+title[1:]+" --")
			} else {
				fmt.Fprintln(w, "  "+title+": "+strings.Split(e.declarations[title].Desc, "\n")[0])
			}
		}
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "get further information by typing (help \"functionname\")")
		return nil
	}
	def := e.FindDeclaration(topic)
	if def == nil {
		return lisp.UserError.New("function not found: %s", topic)
	}
	fmt.Fprintln(w, "Help for: "+def.Name)
	fmt.Fprintln(w, "===")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, def.Desc)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Allowed number of parameters:", arity(def))
	fmt.Fprintln(w, "")
	for _, p := range def.Params {
		fmt.Fprintln(w, " - "+p.Name+" ("+p.Type+"): "+p.Desc)
	}
	fmt.Fprintln(w, "")
	return nil
}

// slugify makes a filesystem-safe, lowercase slug from a chapter title.
func slugify(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chapter"
	}
	return b.String()
}

type chapter struct {
	title string
	slug  string
	defs  []*Declaration
}

func (e *Engine) chapters() []*chapter {
	var result []*chapter
	var current *chapter
	for _, t := range e.titles {
		if t[0] == '#' {
			current = &chapter{title: t[1:], slug: slugify(t[1:])}
			result = append(result, current)
			continue
		}
		if current == nil {
			current = &chapter{title: "General", slug: "general"}
			result = append(result, current)
		}
		current.defs = append(current.defs, e.declarations[t])
	}
	return result
}

// WriteDocumentation writes index.md and one markdown file per chapter.
func (e *Engine) WriteDocumentation(folder string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", folder, err)
	}
	chapters := e.chapters()

	index, err := os.Create(filepath.Join(folder, "index.md"))
	if err != nil {
		return err
	}
	defer index.Close()
	fmt.Fprint(index, "# Documentation\n\n")
	for _, ch := range chapters {
		if len(ch.defs) > 0 {
			fmt.Fprintf(index, "- [%s](%s.md)\n", ch.title, ch.slug)
		}
	}

	for _, ch := range chapters {
		if len(ch.defs) == 0 {
			continue
		}
		if err := writeChapter(filepath.Join(folder, ch.slug+".md"), ch); err != nil {
			return err
		}
	}
	return nil
}

func writeChapter(path string, ch *chapter) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "# %s\n\n", ch.title)
	for _, def := range ch.defs {
		fmt.Fprintf(f, "## %s\n\n", def.Name)
		if def.Desc != "" {
			fmt.Fprintf(f, "%s\n\n", def.Desc)
		}
		fmt.Fprintf(f, "**Allowed number of parameters:** %s\n\n", arity(def))
		fmt.Fprint(f, "### Parameters\n\n")
		if len(def.Params) == 0 {
			fmt.Fprint(f, "_This function has no parameters._\n\n")
		} else {
			for _, p := range def.Params {
				fmt.Fprintf(f, "- **%s** (`%s`): %s\n", p.Name, p.Type, p.Desc)
			}
			fmt.Fprintln(f)
		}
		fmt.Fprintf(f, "### Returns\n\n`%s`\n\n", def.Returns)
	}
	return nil
}
