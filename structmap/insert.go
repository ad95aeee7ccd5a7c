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

// Insert returns the offset of a new header holding every entry of the one
// at headerOff, plus (key, value). If key requires more bits than the
// current root covers, the tree is heightened (new nodes stacked above the
// old root) before the value is placed. Failure semantics mirror bst.Insert.
func Insert(r *arena.Region, headerOff arena.Offset, key uint64, value term.Term, cutoff arena.Offset) (arena.Offset, error) {
	metricInsert.Inc(1)
	entryCursor := r.Arena().Cursor()

	newHeaderOff, h, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	h.region = r
	h.selfOffset = newHeaderOff

	for h.enclosed == 0 || (key>>h.enclosed) != 0 {
		newRoot, newEnclosed, herr := heighten(r, h.root, h.enclosed)
		if herr != nil {
			r.Arena().Rewind(entryCursor)
			return 0, herr
		}
		metricHeighten.Inc(1)
		h.root = newRoot
		h.enclosed = newEnclosed
	}

	rootConsume := uint8(L)
	if rootConsume > h.enclosed {
		rootConsume = h.enclosed
	}
	rootIsLeaf := rootConsume == h.enclosed

	newRoot, isNew, oldHash, newHash, oldSize, newSize, err := insertAt(r, h.root, rootConsume, h.enclosed, key, value, rootIsLeaf, cutoff, h.extSizeFn)
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

// heighten stacks a new node above the current root, widening the covered
// key-space by up to L bits (capped at the full 64-bit key width). The old
// root, if any, becomes the new node's slot-0 child: everything below the
// previous coverage is, by construction, a key whose higher bits are all
// zero, which is exactly slot 0.
func heighten(r *arena.Region, rootOff arena.Offset, enclosed uint8) (arena.Offset, uint8, error) {
	consume := uint8(L)
	if enclosed+consume > 64 {
		consume = 64 - enclosed
	}
	if consume == 0 {
		return 0, 0, errs.New("structmap.Insert", errs.ImplementationError, nil)
	}
	newEnclosed := enclosed + consume
	n := &node{
		consumeBitcount:  consume,
		enclosedBitcount: newEnclosed,
		isLeaf:           enclosed == 0 && rootOff == arena.Sentinel,
	}
	width := 1 << consume
	n.children = make([]any, width)
	for i := range n.children {
		if n.isLeaf {
			n.children[i] = term.Term{}
		} else {
			n.children[i] = arena.Sentinel
		}
	}
	if rootOff != arena.Sentinel {
		n.children[0] = rootOff
		n.childLocations = 1
	}
	newOff, err := r.Alloc(n)
	if err != nil {
		return 0, 0, err
	}
	return newOff, newEnclosed, nil
}

func insertAt(r *arena.Region, off arena.Offset, consume, enclosed uint8, key uint64, value term.Term, isLeaf bool, cutoff arena.Offset, extSize ExtSizeFunc) (newOff arena.Offset, isNew bool, oldHash, newHash, oldSize, newSize uint64, err error) {
	if off == arena.Sentinel {
		n := &node{consumeBitcount: consume, enclosedBitcount: enclosed, isLeaf: isLeaf}
		width := 1 << consume
		n.children = make([]any, width)
		for i := range n.children {
			if isLeaf {
				n.children[i] = term.Term{}
			} else {
				n.children[i] = arena.Sentinel
			}
		}
		newOff, err = r.Alloc(n)
		if err != nil {
			return 0, false, 0, 0, 0, 0, err
		}
		return setSlot(r, newOff, n, key, value, cutoff, extSize)
	}

	newOff, n, err := selectSparse(r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, 0, 0, err
	}
	return setSlot(r, newOff, n, key, value, cutoff, extSize)
}

func setSlot(r *arena.Region, newOff arena.Offset, n *node, key uint64, value term.Term, cutoff arena.Offset, extSize ExtSizeFunc) (arena.Offset, bool, uint64, uint64, uint64, uint64, error) {
	consume, enclosed := n.consumeBitcount, n.enclosedBitcount
	idx := int((key >> (enclosed - consume)) & ((1 << consume) - 1))
	present := n.childLocations&(1<<uint(idx)) != 0

	if n.isLeaf {
		var oldHash, oldSize uint64
		if present {
			old := n.children[idx].(term.Term)
			oldHash = entryHash(key, old)
			oldSize = entrySize(extSize, old)
		}
		n.children[idx] = value
		n.childLocations |= 1 << uint(idx)
		return newOff, !present, oldHash, entryHash(key, value), oldSize, entrySize(extSize, value), nil
	}

	var childOff arena.Offset = arena.Sentinel
	if present {
		childOff = n.children[idx].(arena.Offset)
	}
	childEnclosed := enclosed - consume
	childConsume := uint8(L)
	if childConsume > childEnclosed {
		childConsume = childEnclosed
	}
	childIsLeaf := childConsume == childEnclosed

	newChildOff, isNew, oldHash, newHash, oldSize, newSize, err := insertAt(r, childOff, childConsume, childEnclosed, key, value, childIsLeaf, cutoff, extSize)
	if err != nil {
		return 0, false, 0, 0, 0, 0, err
	}
	n.children[idx] = newChildOff
	n.childLocations |= 1 << uint(idx)
	return newOff, isNew, oldHash, newHash, oldSize, newSize, nil
}
