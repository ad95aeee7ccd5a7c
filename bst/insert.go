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
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// Insert returns the offset of a new header holding every entry of the one
// at headerOff, plus (key, value). cutoff is the allocating session's
// cutoff offset: anything at or after it may be mutated in place, anything
// before it must be path-copied. On failure the arena is rewound to its
// state on entry, so headerOff and everything it was already reachable
// from stays valid.
func Insert(r *arena.Region, headerOff arena.Offset, key, value term.Term, cutoff arena.Offset) (arena.Offset, error) {
	metricInsert.Inc(1)
	entryCursor := r.Arena().Cursor()

	newHeaderOff, h, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	h.region = r
	h.selfOffset = newHeaderOff

	newRoot, isNew, oldHash, newHash, oldSize, newSize, err := insertNode(r, h.root, key, value, cutoff, h.cmpFn, h.extSizeFn)
	if err != nil {
		r.Arena().Rewind(entryCursor)
		return 0, err
	}
	newRoot, err = paintBlack(r, newRoot, cutoff)
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

// insertNode recursively descends to key's position, path-copying along
// the way, and rebalances on the way back up. It returns the subtree's new
// offset, whether this inserted a new key, the hash/size of the displaced
// entry (valid only when !isNew and the key already existed), and the
// hash/size of the entry now in place.
func insertNode(r *arena.Region, off arena.Offset, key, value term.Term, cutoff arena.Offset, cmp CmpFunc, extSize ExtSizeFunc) (newOff arena.Offset, isNew bool, oldHash, newHash, oldSize, newSize uint64, err error) {
	if off == arena.Sentinel {
		n := &node{
			key:   key,
			value: value,
			color: red,
			left:  arena.Sentinel,
			right: arena.Sentinel,
		}
		n.hash = computeNodeHash(key, value)
		newOff, err = r.Alloc(n)
		if err != nil {
			return 0, false, 0, 0, 0, 0, err
		}
		return newOff, true, 0, n.hash, 0, entrySize(extSize, key, value), nil
	}

	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, 0, 0, err
	}

	// Split any temporary 4-node on the way down, the top-down half of
	// this otherwise bottom-up algorithm.
	if isRedOff(r, n.left) && isRedOff(r, n.right) {
		newOff, err = flipColors(r, newOff, cutoff)
		if err != nil {
			return 0, false, 0, 0, 0, 0, err
		}
		n = r.At(newOff).(*node)
	}

	c := cmp(key, n.key)
	switch {
	case c < 0:
		childOff, isNewChild, oh, nh, os, ns, err2 := insertNode(r, n.left, key, value, cutoff, cmp, extSize)
		if err2 != nil {
			return 0, false, 0, 0, 0, 0, err2
		}
		n.left = childOff
		isNew, oldHash, newHash, oldSize, newSize = isNewChild, oh, nh, os, ns
	case c > 0:
		childOff, isNewChild, oh, nh, os, ns, err2 := insertNode(r, n.right, key, value, cutoff, cmp, extSize)
		if err2 != nil {
			return 0, false, 0, 0, 0, 0, err2
		}
		n.right = childOff
		isNew, oldHash, newHash, oldSize, newSize = isNewChild, oh, nh, os, ns
	default:
		oldHash = n.hash
		oldSize = entrySize(extSize, n.key, n.value)
		n.value = value
		n.hash = computeNodeHash(n.key, value)
		newHash = n.hash
		newSize = entrySize(extSize, n.key, value)
		isNew = false
	}

	newOff, err = balance(r, newOff, cutoff)
	if err != nil {
		return 0, false, 0, 0, 0, 0, err
	}
	return newOff, isNew, oldHash, newHash, oldSize, newSize, nil
}
