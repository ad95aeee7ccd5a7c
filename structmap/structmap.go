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

// Package structmap implements the 64-bit-struct-id-keyed persistent
// trie: variable-width sparse nodes that grow upward (heighten) to cover
// however many bits the largest inserted id needs, plus an offline
// Condense operation that rewrites a finished subtree into a compact,
// read-only popcount-indexed layout.
package structmap

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// L is the compile-time bits-consumed-per-level constant. spec.md allows
// {4,5,6}; 5 is its stated design default, matching the HAMT's fanout
// choice.
const L = 5

// node is a trie level. Sparse nodes (condensed == false) are the only
// form mutation ever targets; condensed nodes are produced by Condense
// and never written to again.
type node struct {
	consumeBitcount  uint8
	enclosedBitcount uint8 // bits covered by the subtree rooted here
	isLeaf           bool
	condensed        bool
	childLocations   uint64 // bitmap of logically-present slots
	// children holds arena.Offset for interior nodes, term.Term for leaf
	// nodes. Sparse: length 2^consumeBitcount, indexed directly.
	// Condensed: length popcount(childLocations), popcount-indexed.
	children []any
}

var nodeInternalCost = uint64(unsafe.Sizeof(node{})) + uint64(unsafe.Alignof(node{})) - 1

// ExtSizeFunc mirrors bst.ExtSizeFunc.
type ExtSizeFunc func(t term.Term) uint64

// Header is the arena-resident metadata record for one version of a
// structmap.
type Header struct {
	root         arena.Offset
	enclosed     uint8 // bits of key-space the current root covers; 0 when empty
	numEntries   uint64
	internalSize uint64
	externalSize uint64
	hashVal      uint64

	extSizeFn ExtSizeFunc

	region     *arena.Region
	selfOffset arena.Offset
}

var (
	metricInsert   = metrics.GetOrRegisterCounter("structmap/insert", nil)
	metricDelete   = metrics.GetOrRegisterCounter("structmap/delete", nil)
	metricLookup   = metrics.GetOrRegisterCounter("structmap/lookup", nil)
	metricHeighten = metrics.GetOrRegisterCounter("structmap/heighten", nil)
	metricCondense = metrics.GetOrRegisterCounter("structmap/condense", nil)
	logger         = log.New("pkg", "structmap")
)

// Init creates a new, empty header.
func Init(r *arena.Region, extSize ExtSizeFunc) (arena.Offset, error) {
	if extSize == nil {
		extSize = term.ExternalSize
	}
	h := &Header{root: arena.Sentinel, extSizeFn: extSize, region: r}
	off, err := r.Alloc(h)
	if err != nil {
		return 0, errs.New("structmap.Init", errs.AllocationFailure, err)
	}
	h.selfOffset = off
	return off, nil
}

func headerAt(r *arena.Region, off arena.Offset) *Header {
	h := r.At(off).(*Header)
	h.region = r
	h.selfOffset = off
	return h
}

func (h *Header) NumEntries() uint64   { return h.numEntries }
func (h *Header) InternalSize() uint64 { return h.internalSize }
func (h *Header) HashValue() uint64    { return h.hashVal }
func (h *Header) ExternalSize() uint64 { return h.externalSize }
func (h *Header) Render() string {
	return fmt.Sprintf("structmap(entries=%d, hash=%x)", h.numEntries, h.hashVal)
}

// Cmp implements term.Container. Per spec.md §4.5, structmap comparison
// is identity-based on the root offset: subtrees are never deduplicated
// in this revision, so two structmaps with identical content but
// different allocation histories compare unequal. This is an accepted,
// spec-documented simplification, not an oversight.
func (h *Header) Cmp(other term.Container) int {
	oh, ok := other.(*Header)
	if !ok {
		panic("structmap: Cmp against non-*Header Container")
	}
	return Cmp(h.region, h.selfOffset, oh.selfOffset)
}

// Cmp is the identity-based comparison Header.Cmp delegates to.
func Cmp(r *arena.Region, aOff, bOff arena.Offset) int {
	ah := headerAt(r, aOff)
	bh := headerAt(r, bOff)
	switch {
	case ah.root == bh.root:
		return 0
	case ah.root < bh.root:
		return -1
	default:
		return 1
	}
}

func entryHash(key uint64, value term.Term) uint64 {
	kh := hasher.HashValue(func(h *hasher.Hasher) { h.WriteU64(key) })
	vh := hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, value) })
	return hasher.Combine(kh, vh)
}

func entrySize(extSize ExtSizeFunc, value term.Term) uint64 {
	return extSize(value)
}

// selectSparse is structmap's analogue of arena.SelectModifiable: a
// condensed node is never modifiable in place regardless of cutoff (that
// is the whole point of condensing it), so mutating one always rebuilds
// a full sparse copy first; a sparse node follows the ordinary cutoff
// rule.
func selectSparse(r *arena.Region, off, cutoff arena.Offset) (arena.Offset, *node, error) {
	n := r.At(off).(*node)
	if !n.condensed {
		return arena.SelectModifiable[node](r, off, cutoff)
	}
	width := 1 << n.consumeBitcount
	sp := &node{
		consumeBitcount:  n.consumeBitcount,
		enclosedBitcount: n.enclosedBitcount,
		isLeaf:           n.isLeaf,
		condensed:        false,
		childLocations:   n.childLocations,
		children:         make([]any, width),
	}
	pc := 0
	for i := 0; i < width; i++ {
		if n.childLocations&(1<<uint(i)) != 0 {
			sp.children[i] = n.children[pc]
			pc++
		} else if n.isLeaf {
			sp.children[i] = term.Term{}
		} else {
			sp.children[i] = arena.Sentinel
		}
	}
	newOff, err := r.Alloc(sp)
	if err != nil {
		return 0, nil, err
	}
	return newOff, sp, nil
}

// slotIndex translates a logical slot idx into the position within
// n.children that actually holds it: the identity for sparse nodes
// (directly indexed), but popcount-compacted for condensed nodes, whose
// children array only has an entry per present slot. This mirrors the
// un-condensing selectSparse already does in the other direction.
func slotIndex(n *node, idx int) int {
	if !n.condensed {
		return idx
	}
	return bits.OnesCount64(n.childLocations & (1<<uint(idx) - 1))
}

// Lookup returns the value stored for key, or a NotFound error.
func Lookup(r *arena.Region, headerOff arena.Offset, key uint64) (term.Term, error) {
	metricLookup.Inc(1)
	h := headerAt(r, headerOff)
	off := h.root
	enclosed := h.enclosed
	if key>>enclosed != 0 {
		// key needs more bits than the root covers, so it was never inserted.
		return term.Term{}, errs.New("structmap.Lookup", errs.NotFound, nil)
	}
	for off != arena.Sentinel {
		n := r.At(off).(*node)
		idx := int((key >> (enclosed - n.consumeBitcount)) & ((1 << n.consumeBitcount) - 1))
		if n.childLocations&(1<<uint(idx)) == 0 {
			return term.Term{}, errs.New("structmap.Lookup", errs.NotFound, nil)
		}
		pos := slotIndex(n, idx)
		if n.isLeaf {
			return n.children[pos].(term.Term), nil
		}
		off = n.children[pos].(arena.Offset)
		enclosed -= n.consumeBitcount
	}
	return term.Term{}, errs.New("structmap.Lookup", errs.NotFound, nil)
}

// ContainsKey reports whether key is present.
func ContainsKey(r *arena.Region, headerOff arena.Offset, key uint64) bool {
	_, err := Lookup(r, headerOff, key)
	return err == nil
}

// Traverse visits every entry in ascending key order (each node's slots
// are visited low-to-high, and slot index is the key's next most
// significant slice, so this is naturally key-ordered), stopping early
// if visit returns non-zero.
func Traverse(r *arena.Region, headerOff arena.Offset, visit func(key uint64, value term.Term) int) int {
	h := headerAt(r, headerOff)
	return traverse(r, h.root, 0, visit)
}

func traverse(r *arena.Region, off arena.Offset, prefix uint64, visit func(key uint64, value term.Term) int) int {
	if off == arena.Sentinel {
		return 0
	}
	n := r.At(off).(*node)
	width := 1 << n.consumeBitcount
	for idx := 0; idx < width; idx++ {
		if n.childLocations&(1<<uint(idx)) == 0 {
			continue
		}
		childPrefix := (prefix << n.consumeBitcount) | uint64(idx)
		pos := slotIndex(n, idx)
		if n.isLeaf {
			if rc := visit(childPrefix, n.children[pos].(term.Term)); rc != 0 {
				return rc
			}
		} else {
			if rc := traverse(r, n.children[pos].(arena.Offset), childPrefix, visit); rc != 0 {
				return rc
			}
		}
	}
	return 0
}

// Hash returns the header's cached content hash.
func Hash(r *arena.Region, headerOff arena.Offset) uint64 {
	return headerAt(r, headerOff).hashVal
}
