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
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/launix-de/NonLockingReadMap"
)

// Package is a namespace of symbols. Symbols are kept in a btree ordered by
// name so listings (apropos, package-symbols) come out sorted.
type Package struct {
	Name      string
	Nicknames []string

	registry *Registry
	symbols  *btree.BTreeG[*Symbol]
	exported map[*Symbol]bool
	uses     []*Package
	keyword  bool
}

func symbolLess(a, b *Symbol) bool { return a.Name < b.Name }

// Registry is the package table of one engine. Lookups by package name are
// lock free; everything that mutates a package goes through mu.
type Registry struct {
	mu       sync.RWMutex
	packages NonLockingReadMap.NonLockingReadMap[packageEntry, string]
}

type packageEntry struct {
	name string // uppercased primary name
	pkg  *Package
}

/* implement NonLockingReadMap */
func (e packageEntry) GetKey() string {
	return e.name
}

func (e packageEntry) ComputeSize() uint {
	return 24 + uint(len(e.name))
}

func NewRegistry() *Registry {
	return &Registry{packages: NonLockingReadMap.New[packageEntry, string]()}
}

// MakePackage creates and registers a package. If a package of that name
// exists already, it is returned unchanged.
func (r *Registry) MakePackage(name string, nicknames ...string) *Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.FindPackage(name); p != nil {
		return p
	}
	p := &Package{
		Name:      name,
		Nicknames: nicknames,
		registry:  r,
		symbols:   btree.NewG[*Symbol](8, symbolLess),
		exported:  make(map[*Symbol]bool),
	}
	r.packages.Set(&packageEntry{name: strings.ToUpper(name), pkg: p})
	return p
}

// MakeKeywordPackage registers the package whose symbols are self-evaluating.
func (r *Registry) MakeKeywordPackage(name string, nicknames ...string) *Package {
	p := r.MakePackage(name, nicknames...)
	p.keyword = true
	return p
}

// FindPackage resolves a package by name, then by nickname (case-insensitive).
func (r *Registry) FindPackage(name string) *Package {
	if e := r.packages.Get(strings.ToUpper(name)); e != nil {
		return e.pkg
	}
	for _, e := range r.packages.GetAll() {
		for _, nick := range e.pkg.Nicknames {
			if strings.EqualFold(nick, name) {
				return e.pkg
			}
		}
	}
	return nil
}

// Packages lists all registered packages ordered by name.
func (r *Registry) Packages() []*Package {
	all := r.packages.GetAll()
	result := make([]*Package, len(all))
	for i, e := range all {
		result[i] = e.pkg
	}
	return result
}

// Use adds other to the use-list of p.
func (p *Package) Use(other *Package) {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	for _, u := range p.uses {
		if u == other {
			return
		}
	}
	p.uses = append(p.uses, other)
}

func (p *Package) Uses() []*Package {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	return append([]*Package(nil), p.uses...)
}

func (p *Package) IsKeyword() bool { return p.keyword }

func (p *Package) findLocked(name string) *Symbol {
	if s, ok := p.symbols.Get(&Symbol{Name: name}); ok {
		return s
	}
	return nil
}

// FindSymbol looks name up among the symbols present in p and the
// exported symbols of the packages p uses.
func (p *Package) FindSymbol(name string) *Symbol {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	return p.findAccessibleLocked(name)
}

func (p *Package) findAccessibleLocked(name string) *Symbol {
	if s := p.findLocked(name); s != nil {
		return s
	}
	for _, u := range p.uses {
		if s := u.findLocked(name); s != nil && u.exported[s] {
			return s
		}
	}
	return nil
}

// FindExternal returns the symbol only if it is present and exported.
func (p *Package) FindExternal(name string) *Symbol {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	if s := p.findLocked(name); s != nil && p.exported[s] {
		return s
	}
	return nil
}

// FindInternal returns a symbol present in p whether exported or not.
func (p *Package) FindInternal(name string) *Symbol {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	return p.findLocked(name)
}

// Intern returns the symbol accessible under name in p, creating it in p if
// there is none. Keywords are self-evaluating constants and always exported.
func (p *Package) Intern(name string) *Symbol {
	if p.keyword {
		name = UpperCase(name)
	}
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()
	if s := p.findAccessibleLocked(name); s != nil {
		return s
	}
	s := NewSymbol(name)
	s.Package = p
	if p.keyword {
		s.MakeConstant(NewSymbolValue(s))
		p.exported[s] = true
	}
	p.symbols.ReplaceOrInsert(s)
	return s
}

// Export marks s as external in its home package.
func (r *Registry) Export(s *Symbol) {
	if s.Package == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Package.exported[s] = true
}

func (p *Package) IsExported(s *Symbol) bool {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	return p.exported[s]
}

// Symbols returns the symbols present in p ordered by name.
func (p *Package) Symbols() []*Symbol {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()
	result := make([]*Symbol, 0, p.symbols.Len())
	p.symbols.Ascend(func(s *Symbol) bool {
		result = append(result, s)
		return true
	})
	return result
}

// Apropos collects the symbols of all packages whose name contains part.
func (r *Registry) Apropos(part string) []*Symbol {
	part = strings.ToUpper(part)
	var result []*Symbol
	for _, p := range r.Packages() {
		for _, s := range p.Symbols() {
			if strings.Contains(strings.ToUpper(s.Name), part) {
				result = append(result, s)
			}
		}
	}
	return result
}
