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

// Delete clears the Item cell holding key, if any. Per spec.md §4.4 this
// is leaf-clear only: a now-empty Branch node is left in place rather
// than pruned, so internal_size does not shrink back down from repeated
// insert/delete of the same key the way bst's does.
func Delete(r *arena.Region, headerOff arena.Offset, key term.Term, cutoff arena.Offset) (arena.Offset, error) {
	metricDelete.Inc(1)
	entryCursor := r.Arena().Cursor()

	h := headerAt(r, headerOff)
	if h.root == arena.Sentinel {
		return 0, errs.New("hamt.Delete", errs.NotFound, nil)
	}
	// deleteAt relinks modifiable parents to path-copied children on its
	// way down, so absence is established before it runs.
	if !ContainsKey(r, headerOff, key) {
		return 0, errs.New("hamt.Delete", errs.NotFound, nil)
	}

	newHeaderOff, nh, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	nh.region = r
	nh.selfOffset = newHeaderOff

	hash := keyHash(key)
	newRoot, found, foundHash, foundSize, err := deleteAt(r, nh.root, key, hash, 0, cutoff, nh.extSizeFn)
	if err != nil {
		r.Arena().Rewind(entryCursor)
		return 0, err
	}
	if !found {
		r.Arena().Rewind(entryCursor)
		return 0, errs.New("hamt.Delete", errs.NotFound, nil)
	}
	nh.root = newRoot
	nh.numEntries--
	nh.hashVal = hasher.Combine(nh.hashVal, foundHash)
	nh.externalSize -= foundSize
	// internalSize intentionally not decremented: the node holding the
	// cleared cell stays allocated, per the leaf-clear-only contract.

	logger.Debug("delete", "entries", nh.numEntries, "header", newHeaderOff)
	return newHeaderOff, nil
}

func deleteAt(r *arena.Region, off arena.Offset, key term.Term, hash uint64, depth int, cutoff arena.Offset, extSize ExtSizeFunc) (arena.Offset, bool, uint64, uint64, error) {
	if off == arena.Sentinel {
		return arena.Sentinel, false, 0, 0, nil
	}
	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, err
	}
	idx := slotIndex(hash, depth)
	c := n.cells[idx]

	switch c.tag {
	case cellEmpty:
		return newOff, false, 0, 0, nil
	case cellItem:
		if !term.Equal(c.key, key) {
			return newOff, false, 0, 0, nil
		}
		fh := entryHash(c.key, c.value)
		fs := entrySize(extSize, c.key, c.value)
		n.cells[idx] = cell{}
		return newOff, true, fh, fs, nil
	default: // cellBranch
		childOff, found, fh, fs, err2 := deleteAt(r, c.child, key, hash, depth+1, cutoff, extSize)
		if err2 != nil {
			return 0, false, 0, 0, err2
		}
		n.cells[idx] = cell{tag: cellBranch, child: childOff}
		return newOff, found, fh, fs, nil
	}
}
