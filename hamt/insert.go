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

package hamt

import (
	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// Insert returns the offset of a new header holding every entry of the
// one at headerOff, plus (key, value). Failure semantics mirror
// bst.Insert: the arena is rewound to its entry state and headerOff
// remains valid.
func Insert(r *arena.Region, headerOff arena.Offset, key, value term.Term, cutoff arena.Offset) (arena.Offset, error) {
	metricInsert.Inc(1)
	entryCursor := r.Arena().Cursor()

	newHeaderOff, h, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	h.region = r
	h.selfOffset = newHeaderOff

	hash := keyHash(key)
	newRoot, isNew, oldHash, newHash, oldSize, newSize, err := insertAt(r, h.root, key, value, hash, 0, cutoff, h.extSizeFn)
	if err != nil {
		r.Arena().Rewind(entryCursor)
		return 0, err
	}
	h.root = newRoot

	if isNew {
		h.hashVal = hasher.Combine(h.hashVal, newHash)
		h.numEntries++
		h.internalSize += nodeInternalCost
		h.externalSize += newSize
	} else {
		h.hashVal = hasher.Combine(hasher.Combine(h.hashVal, oldHash), newHash)
		h.externalSize = h.externalSize - oldSize + newSize
	}
	logger.Debug("insert", "new_key", isNew, "entries", h.numEntries, "header", newHeaderOff)
	return newHeaderOff, nil
}

func insertAt(r *arena.Region, off arena.Offset, key, value term.Term, hash uint64, depth int, cutoff arena.Offset, extSize ExtSizeFunc) (newOff arena.Offset, isNew bool, oldHash, newHash, oldSize, newSize uint64, err error) {
	if off == arena.Sentinel {
		n := &node{}
		idx := slotIndex(hash, depth)
		n.cells[idx] = cell{tag: cellItem, key: key, value: value, hash: hash}
		newOff, err = r.Alloc(n)
		if err != nil {
			return 0, false, 0, 0, 0, 0, err
		}
		return newOff, true, 0, entryHash(key, value), 0, entrySize(extSize, key, value), nil
	}

	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, 0, 0, err
	}
	idx := slotIndex(hash, depth)
	c := n.cells[idx]

	switch c.tag {
	case cellEmpty:
		n.cells[idx] = cell{tag: cellItem, key: key, value: value, hash: hash}
		isNew = true
		newHash = entryHash(key, value)
		newSize = entrySize(extSize, key, value)

	case cellItem:
		if term.Equal(c.key, key) {
			oldHash = entryHash(c.key, c.value)
			oldSize = entrySize(extSize, c.key, c.value)
			n.cells[idx] = cell{tag: cellItem, key: key, value: value, hash: hash}
			newHash = entryHash(key, value)
			newSize = entrySize(extSize, key, value)
			isNew = false
			break
		}
		if depth+1 >= maxDepth {
			return 0, false, 0, 0, 0, 0, errs.New("hamt.Insert", errs.ImplementationError,
				nil) // hash exhausted with two distinct keys colliding at every slice: caller's hash violates the low-collision assumption spec.md §4.4 requires.
		}
		metricBranch.Inc(1)
		branchOff, _, _, _, _, _, err2 := insertAt(r, arena.Sentinel, c.key, c.value, c.hash, depth+1, cutoff, extSize)
		if err2 != nil {
			return 0, false, 0, 0, 0, 0, err2
		}
		branchOff, isNew, _, newHash, _, newSize, err2 = insertAt(r, branchOff, key, value, hash, depth+1, cutoff, extSize)
		if err2 != nil {
			return 0, false, 0, 0, 0, 0, err2
		}
		n.cells[idx] = cell{tag: cellBranch, child: branchOff}

	default: // cellBranch
		childOff, isNewChild, oh, nh, os, ns, err2 := insertAt(r, c.child, key, value, hash, depth+1, cutoff, extSize)
		if err2 != nil {
			return 0, false, 0, 0, 0, 0, err2
		}
		n.cells[idx] = cell{tag: cellBranch, child: childOff}
		isNew, oldHash, newHash, oldSize, newSize = isNewChild, oh, nh, os, ns
	}

	return newOff, isNew, oldHash, newHash, oldSize, newSize, nil
}
