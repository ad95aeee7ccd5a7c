// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package bst

import (
	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/term"
)

// Iterator walks a header's entries in ascending key order. Its internal
// stack holds the path from root to the current node, exactly the state
// spec.md describes for "two iterators are equal iff their stacks are
// identical" — here that's a slice-equality check on recorded offsets
// rather than a fixed-depth array, since Go slices grow as needed instead
// of bounding depth up front.
type Iterator struct {
	r     *arena.Region
	stack []arena.Offset
}

// NewIterator returns an iterator positioned at the first (smallest-key)
// entry of the header at headerOff, or an already-End iterator if it is
// empty.
func NewIterator(r *arena.Region, headerOff arena.Offset) *Iterator {
	h := headerAt(r, headerOff)
	it := &Iterator{r: r}
	it.pushLeftSpine(h.root)
	return it
}

func (it *Iterator) pushLeftSpine(off arena.Offset) {
	for off != arena.Sentinel {
		it.stack = append(it.stack, off)
		off = it.r.At(off).(*node).left
	}
}

// End reports whether the iterator has advanced past the last entry.
func (it *Iterator) End() bool { return len(it.stack) == 0 }

// Deref returns the key and value at the iterator's current position. It
// panics if called on an End iterator, same as dereferencing any other
// end-of-sequence iterator.
func (it *Iterator) Deref() (term.Term, term.Term) {
	top := it.stack[len(it.stack)-1]
	n := it.r.At(top).(*node)
	return n.key, n.value
}

// Next advances the iterator to the next entry in ascending order.
func (it *Iterator) Next() {
	top := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	n := it.r.At(top).(*node)
	it.pushLeftSpine(n.right)
}

// Equal reports whether it and other are at the same position of the same
// tree.
func (it *Iterator) Equal(other *Iterator) bool {
	if len(it.stack) != len(other.stack) {
		return false
	}
	for i := range it.stack {
		if it.stack[i] != other.stack[i] {
			return false
		}
	}
	return true
}

// Cmp lexicographically compares the ordered entry sequences of the
// headers at aOff and bOff: the first differing key or, on a key tie, the
// first differing value, decides the order; if one sequence is a strict
// prefix of the other the shorter one sorts first.
func Cmp(r *arena.Region, aOff, bOff arena.Offset) int {
	ai := NewIterator(r, aOff)
	bi := NewIterator(r, bOff)
	for !ai.End() && !bi.End() {
		ak, av := ai.Deref()
		bk, bv := bi.Deref()
		if c := term.Cmp(ak, bk); c != 0 {
			return c
		}
		if c := term.Cmp(av, bv); c != 0 {
			return c
		}
		ai.Next()
		bi.Next()
	}
	switch {
	case ai.End() && bi.End():
		return 0
	case ai.End():
		return -1
	default:
		return 1
	}
}
