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
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// Delete returns the offset of a new header holding every entry of the one
// at headerOff except key. It fails with errs.NotFound, leaving the arena
// exactly as it was on entry, if key is absent.
//
// The removed entry is located by descending to it and replacing it with
// its in-order successor (the minimum of its right subtree) rather than
// its predecessor; both are valid per the ordering invariant, and the
// successor form is what falls out of this formulation's delete walk.
func Delete(r *arena.Region, headerOff arena.Offset, key term.Term, cutoff arena.Offset) (arena.Offset, error) {
	metricDelete.Inc(1)
	entryCursor := r.Arena().Cursor()

	h := headerAt(r, headerOff)
	if h.root == arena.Sentinel {
		return 0, errs.New("bst.Delete", errs.NotFound, nil)
	}
	// The delete walk recolors and rotates modifiable nodes in place before
	// it reaches the key, so absence is established before any of it runs.
	if !ContainsKey(r, headerOff, key) {
		return 0, errs.New("bst.Delete", errs.NotFound, nil)
	}

	newHeaderOff, nh, err := arena.SelectModifiable[Header](r, headerOff, cutoff)
	if err != nil {
		return 0, err
	}
	nh.region = r
	nh.selfOffset = newHeaderOff

	root := nh.root
	if !isRedOff(r, leftOf(r, root)) && !isRedOff(r, rightOf(r, root)) {
		root, err = paintRed(r, root, cutoff)
		if err != nil {
			r.Arena().Rewind(entryCursor)
			return 0, err
		}
	}

	newRoot, found, foundHash, foundSize, err := deleteNode(r, root, key, cutoff, nh.cmpFn, nh.extSizeFn)
	if err != nil {
		r.Arena().Rewind(entryCursor)
		return 0, err
	}
	if !found {
		r.Arena().Rewind(entryCursor)
		return 0, errs.New("bst.Delete", errs.NotFound, nil)
	}
	if newRoot != arena.Sentinel {
		newRoot, err = paintBlack(r, newRoot, cutoff)
		if err != nil {
			r.Arena().Rewind(entryCursor)
			return 0, err
		}
	}

	nh.root = newRoot
	nh.numEntries--
	nh.hashVal = hasher.Combine(nh.hashVal, foundHash)
	nh.internalSize -= nodeInternalCost
	nh.externalSize -= foundSize

	logger.Debug("delete", "entries", nh.numEntries, "header", newHeaderOff)
	return newHeaderOff, nil
}

// deleteNode is the persistent analogue of Sedgewick's left-leaning
// red-black delete: it pushes a red link down whichever side it is about
// to descend into (moveRedLeft/moveRedRight) so that the node it removes
// is never the sole key in a 2-node, then rebalances on the way back up.
func deleteNode(r *arena.Region, off arena.Offset, key term.Term, cutoff arena.Offset, cmp CmpFunc, extSize ExtSizeFunc) (newOff arena.Offset, found bool, foundHash, foundSize uint64, err error) {
	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, false, 0, 0, err
	}

	if cmp(key, n.key) < 0 {
		if n.left == arena.Sentinel {
			return newOff, false, 0, 0, nil
		}
		if !isRedOff(r, n.left) && !isRedLeft(r, n.left) {
			newOff, err = moveRedLeft(r, newOff, cutoff)
			if err != nil {
				return 0, false, 0, 0, err
			}
			n = r.At(newOff).(*node)
		}
		childOff, f, fh, fs, err2 := deleteNode(r, n.left, key, cutoff, cmp, extSize)
		if err2 != nil {
			return 0, false, 0, 0, err2
		}
		n.left = childOff
		found, foundHash, foundSize = f, fh, fs
	} else {
		if isRedOff(r, n.left) {
			newOff, err = rotateRight(r, newOff, cutoff)
			if err != nil {
				return 0, false, 0, 0, err
			}
			n = r.At(newOff).(*node)
		}
		if cmp(key, n.key) == 0 && n.right == arena.Sentinel {
			return arena.Sentinel, true, n.hash, entrySize(extSize, n.key, n.value), nil
		}
		if n.right == arena.Sentinel {
			return newOff, false, 0, 0, nil
		}
		if !isRedOff(r, n.right) && !isRedLeft(r, n.right) {
			newOff, err = moveRedRight(r, newOff, cutoff)
			if err != nil {
				return 0, false, 0, 0, err
			}
			n = r.At(newOff).(*node)
		}
		if cmp(key, n.key) == 0 {
			foundHash = n.hash
			foundSize = entrySize(extSize, n.key, n.value)
			succKey, succVal := minKV(r, n.right)
			childOff, err2 := deleteMin(r, n.right, cutoff)
			if err2 != nil {
				return 0, false, 0, 0, err2
			}
			n.key = succKey
			n.value = succVal
			n.hash = computeNodeHash(succKey, succVal)
			n.right = childOff
			found = true
		} else {
			childOff, f, fh, fs, err2 := deleteNode(r, n.right, key, cutoff, cmp, extSize)
			if err2 != nil {
				return 0, false, 0, 0, err2
			}
			n.right = childOff
			found, foundHash, foundSize = f, fh, fs
		}
	}

	newOff, err = balance(r, newOff, cutoff)
	if err != nil {
		return 0, false, 0, 0, err
	}
	return newOff, found, foundHash, foundSize, nil
}

// deleteMin removes the leftmost node of the subtree at off and returns
// the subtree's new offset.
func deleteMin(r *arena.Region, off arena.Offset, cutoff arena.Offset) (arena.Offset, error) {
	n0 := r.At(off).(*node)
	if n0.left == arena.Sentinel {
		return arena.Sentinel, nil
	}

	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	if !isRedOff(r, n.left) && !isRedLeft(r, n.left) {
		newOff, err = moveRedLeft(r, newOff, cutoff)
		if err != nil {
			return 0, err
		}
		n = r.At(newOff).(*node)
	}
	childOff, err := deleteMin(r, n.left, cutoff)
	if err != nil {
		return 0, err
	}
	n.left = childOff
	return balance(r, newOff, cutoff)
}

// minKV reads the leftmost entry of the subtree at off without mutating
// anything.
func minKV(r *arena.Region, off arena.Offset) (keyTerm, valTerm term.Term) {
	n := r.At(off).(*node)
	for n.left != arena.Sentinel {
		n = r.At(n.left).(*node)
	}
	return n.key, n.value
}
