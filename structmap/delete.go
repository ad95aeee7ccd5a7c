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

package structmap

import (
	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// Delete clears the entry holding key, if any, leaf-clear only like
// hamt.Delete: an emptied branch node stays allocated rather than being
// pruned back down. spec.md §4.5 does not itself describe a delete
// operation for this container; this is a supplemented addition so the
// container is a complete map, built the same way hamt's delete is.
func Delete(r *arena.Region, headerOff arena.Offset, key uint64, cutoff arena.Offset) (arena.Offset, error) {
	metricDelete.Inc(1)
	entryCursor := r.Arena().Cursor()

	h := headerAt(r, headerOff)
	if h.root == arena.Sentinel {
		return 0, errs.New("structmap.Delete", errs.NotFound, nil)
	}
	// deleteAt relinks modifiable parents to copied children on its way
	// down, so absence is established before it runs.
	if !ContainsKey(r, headerOff, key) {
		return 0, errs.New("structmap.Delete", errs.NotFound, nil)
	}

	newHeaderOff, nh, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	nh.region = r
	nh.selfOffset = newHeaderOff

	newRoot, found, foundHash, foundSize, err := deleteAt(r, nh.root, nh.enclosed, key, cutoff, nh.extSizeFn)
	if err != nil {
		r.Arena().Rewind(entryCursor)
		return 0, err
	}
	if !found {
		r.Arena().Rewind(entryCursor)
		return 0, errs.New("structmap.Delete", errs.NotFound, nil)
	}
	nh.root = newRoot
	nh.numEntries--
	nh.hashVal = hasher.Combine(nh.hashVal, foundHash)
	nh.externalSize -= foundSize
	// internalSize intentionally not decremented: leaf-clear-only, matching
	// hamt's delete contract.

	logger.Debug("delete", "entries", nh.numEntries, "header", newHeaderOff)
	return newHeaderOff, nil
}

func deleteAt(r *arena.Region, off arena.Offset, enclosed uint8, key uint64, cutoff arena.Offset, extSize ExtSizeFunc) (arena.Offset, bool, uint64, uint64, error) {
	if off == arena.Sentinel {
		return arena.Sentinel, false, 0, 0, nil
	}
	newOff, n, err := selectSparse(r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, err
	}
	idx := int((key >> (enclosed - n.consumeBitcount)) & ((1 << n.consumeBitcount) - 1))
	if n.childLocations&(1<<uint(idx)) == 0 {
		return newOff, false, 0, 0, nil
	}

	if n.isLeaf {
		old := n.children[idx].(term.Term)
		fh := entryHash(key, old)
		fs := entrySize(extSize, old)
		n.children[idx] = term.Term{}
		n.childLocations &^= 1 << uint(idx)
		return newOff, true, fh, fs, nil
	}

	childOff := n.children[idx].(arena.Offset)
	newChildOff, found, fh, fs, err2 := deleteAt(r, childOff, enclosed-n.consumeBitcount, key, cutoff, extSize)
	if err2 != nil {
		return 0, false, 0, 0, err2
	}
	n.children[idx] = newChildOff
	return newOff, found, fh, fs, nil
}
