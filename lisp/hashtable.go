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

// HashTest selects the equality predicate of a hash table.
type HashTest uint8

const (
	HashEq HashTest = iota
	HashEql
	HashEqual
)

func (t HashTest) String() string {
	return [...]string{"EQ", "EQL", "EQUAL"}[t]
}

type hashEntry struct {
	key, value Value
}

// HashTable maps Values by Eq, Eql or Equal.
type HashTable struct {
	Test    HashTest
	entries map[any]hashEntry
}

func NewHashTable(test HashTest) *HashTable {
	return &HashTable{Test: test, entries: make(map[any]hashEntry)}
}

type bigKey string
type equalKey string

func (h *HashTable) hashKey(k Value) any {
	if k.typ == TBigInteger && h.Test != HashEq {
		return bigKey(k.BigInt().String())
	}
	if h.Test == HashEqual && (k.typ == TCons || k.typ == TString) {
		return equalKey(Sprint(k))
	}
	return k
}

func (h *HashTable) Get(k Value) (Value, bool) {
	e, ok := h.entries[h.hashKey(k)]
	return e.value, ok
}

func (h *HashTable) Put(k, v Value) {
	h.entries[h.hashKey(k)] = hashEntry{k, v}
}

func (h *HashTable) Remove(k Value) bool {
	hk := h.hashKey(k)
	_, ok := h.entries[hk]
	delete(h.entries, hk)
	return ok
}

func (h *HashTable) Count() int { return len(h.entries) }

// Each calls fn for every entry until fn returns false.
func (h *HashTable) Each(fn func(k, v Value) bool) {
	for _, e := range h.entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}
