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

import "github.com/dkopko/cb-sub000/arena"

// rotateLeft is fixup case "single rotation, right-leaning red" from
// spec.md's rebalance table: pulls up a red right child. Both nodes it
// touches are brought to offset >= cutoff via SelectModifiable before any
// field is written, so the caller's old offset remains valid for any
// concurrent reader still holding it.
func rotateLeft(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	hOff, h, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	xOff, x, err := arena.SelectModifiable[node](r, h.right, cutoff)
	if err != nil {
		return 0, err
	}
	h.right = x.left
	x.left = hOff
	x.color = h.color
	h.color = red
	metricFixupSingle.Inc(1)
	return xOff, nil
}

// rotateRight is rotateLeft's mirror image: pulls up a red left child.
func rotateRight(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	hOff, h, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	xOff, x, err := arena.SelectModifiable[node](r, h.left, cutoff)
	if err != nil {
		return 0, err
	}
	h.left = x.right
	x.right = hOff
	x.color = h.color
	h.color = red
	metricFixupSingle.Inc(1)
	return xOff, nil
}

// flipColors is fixup case "double fixup": splits or merges a temporary
// 4-node by inverting the color of a node and both its children.
func flipColors(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	hOff, h, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	lOff, l, err := arena.SelectModifiable[node](r, h.left, cutoff)
	if err != nil {
		return 0, err
	}
	rOff, rt, err := arena.SelectModifiable[node](r, h.right, cutoff)
	if err != nil {
		return 0, err
	}
	h.color = !h.color
	l.color = !l.color
	rt.color = !rt.color
	h.left = lOff
	h.right = rOff
	metricFixupDouble.Inc(1)
	return hOff, nil
}

// balance restores the three local invariants (no right-leaning red, no
// two reds in a row on the left spine, no temporary 4-node) at off after a
// mutation below it. Called on the way back up from every insert/delete
// recursion, it is the bottom-up analogue of spec.md's top-down rebalance
// window.
func balance(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	n := r.At(off).(*node)

	if isRedOff(r, n.right) && !isRedOff(r, n.left) {
		newOff, err := rotateLeft(r, off, cutoff)
		if err != nil {
			return 0, err
		}
		off = newOff
		n = r.At(off).(*node)
	}
	if isRedOff(r, n.left) {
		ln := r.At(n.left).(*node)
		if isRedOff(r, ln.left) {
			newOff, err := rotateRight(r, off, cutoff)
			if err != nil {
				return 0, err
			}
			off = newOff
			n = r.At(off).(*node)
		}
	}
	if isRedOff(r, n.left) && isRedOff(r, n.right) {
		newOff, err := flipColors(r, off, cutoff)
		if err != nil {
			return 0, err
		}
		off = newOff
	}
	return off, nil
}

// moveRedLeft borrows a key from the right sibling (or merges with it) so
// that a red link can be pushed one level further left during delete.
func moveRedLeft(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	off, err := flipColors(r, off, cutoff)
	if err != nil {
		return 0, err
	}
	n := r.At(off).(*node)
	rn := r.At(n.right).(*node)
	if isRedOff(r, rn.left) {
		newRightOff, err := rotateRight(r, n.right, cutoff)
		if err != nil {
			return 0, err
		}
		n.right = newRightOff
		off, err = rotateLeft(r, off, cutoff)
		if err != nil {
			return 0, err
		}
		off, err = flipColors(r, off, cutoff)
		if err != nil {
			return 0, err
		}
	}
	return off, nil
}

// moveRedRight is moveRedLeft's mirror image.
func moveRedRight(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	off, err := flipColors(r, off, cutoff)
	if err != nil {
		return 0, err
	}
	n := r.At(off).(*node)
	ln := r.At(n.left).(*node)
	if isRedOff(r, ln.left) {
		off, err = rotateRight(r, off, cutoff)
		if err != nil {
			return 0, err
		}
		off, err = flipColors(r, off, cutoff)
		if err != nil {
			return 0, err
		}
	}
	return off, nil
}

// paintBlack ensures the node at off is black, copying it only if it is
// currently red.
func paintBlack(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	if !isRedOff(r, off) {
		return off, nil
	}
	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	n.color = black
	return newOff, nil
}

// paintRed forces the node at off to red; used only for the top-level
// delete's root-preparation step.
func paintRed(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, error) {
	newOff, n, err := arena.SelectModifiable[node](r, off, cutoff)
	if err != nil {
		return 0, err
	}
	n.color = red
	return newOff, nil
}
