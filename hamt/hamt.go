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

// Package hamt implements the unordered, hash-keyed persistent map: a
// 32-way (k=5) bit-sliced trie over an arena, sharing the cutoff/path-copy
// discipline the bst package implements for the ordered map.
package hamt

import (
	"fmt"
	"unsafe"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/hasher"
	"github.com/dkopko/cb-sub000/term"
)

// fanoutBits is k: bits of hash consumed per trie level. spec.md allows
// {4,5,6}; 5 is its stated design default.
const fanoutBits = 5
const fanout = 1 << fanoutBits
const fanoutMask = fanout - 1

// maxDepth is how many fanoutBits-wide slices a 64-bit hash has; beyond
// this the trie has exhausted the hash and cannot distinguish keys by
// index alone.
const maxDepth = (64 + fanoutBits - 1) / fanoutBits

type cellTag uint8

const (
	cellEmpty cellTag = iota
	cellItem
	cellBranch
)

type cell struct {
	tag   cellTag
	key   term.Term
	value term.Term
	hash  uint64 // key's content hash, used to place the item
	child arena.Offset
}

// node is a fixed fanout-wide array of cells. Every mutation replaces
// (or in-place edits, per the cutoff rule) the whole array value, since
// Go arrays are copied by value — the same path-copy guarantee bst.node
// gets from allocating a fresh struct.
type node struct {
	cells [fanout]cell
}

// nodeInternalCost mirrors bst's sizeof+alignof internal-size charge.
var nodeInternalCost = uint64(unsafe.Sizeof(node{})) + uint64(unsafe.Alignof(node{})) - 1

// ExtSizeFunc mirrors bst.ExtSizeFunc.
type ExtSizeFunc func(t term.Term) uint64

// Header is the arena-resident metadata record for one version of a HAMT.
type Header struct {
	root         arena.Offset
	numEntries   uint64
	internalSize uint64
	externalSize uint64
	hashVal      uint64

	extSizeFn ExtSizeFunc

	region     *arena.Region
	selfOffset arena.Offset
}

var (
	metricInsert = metrics.GetOrRegisterCounter("hamt/insert", nil)
	metricDelete = metrics.GetOrRegisterCounter("hamt/delete", nil)
	metricLookup = metrics.GetOrRegisterCounter("hamt/lookup", nil)
	metricBranch = metrics.GetOrRegisterCounter("hamt/branch", nil)
	logger       = log.New("pkg", "hamt")
)

// Init creates a new, empty header.
func Init(r *arena.Region, extSize ExtSizeFunc) (arena.Offset, error) {
	if extSize == nil {
		extSize = term.ExternalSize
	}
	h := &Header{root: arena.Sentinel, extSizeFn: extSize, region: r}
	off, err := r.Alloc(h)
	if err != nil {
		return 0, errs.New("hamt.Init", errs.AllocationFailure, err)
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

func (h *Header) NumEntries() uint64    { return h.numEntries }
func (h *Header) InternalSize() uint64  { return h.internalSize }
func (h *Header) HashValue() uint64     { return h.hashVal }
func (h *Header) ExternalSize() uint64  { return h.externalSize }
func (h *Header) Render() string {
	return fmt.Sprintf("hamt(entries=%d, hash=%x)", h.numEntries, h.hashVal)
}

// Cmp implements term.Container: the two tries' hash-order entry
// sequences are compared lexicographically, the same rule bst.Cmp applies
// to key-order sequences.
func (h *Header) Cmp(other term.Container) int {
	oh, ok := other.(*Header)
	if !ok {
		panic("hamt: Cmp against non-*Header Container")
	}
	return Cmp(h.region, h.selfOffset, oh.selfOffset)
}

func keyHash(key term.Term) uint64 {
	return hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, key) })
}

func entryHash(key, value term.Term) uint64 {
	kh := hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, key) })
	vh := hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, value) })
	return hasher.Combine(kh, vh)
}

func entrySize(extSize ExtSizeFunc, key, value term.Term) uint64 {
	return extSize(key) + extSize(value)
}

func slotIndex(hash uint64, depth int) int {
	return int((hash >> uint(depth*fanoutBits)) & fanoutMask)
}

// Lookup returns the value stored for key, or a NotFound error.
func Lookup(r *arena.Region, headerOff arena.Offset, key term.Term) (term.Term, error) {
	metricLookup.Inc(1)
	h := headerAt(r, headerOff)
	hash := keyHash(key)
	off := h.root
	depth := 0
	for off != arena.Sentinel {
		n := r.At(off).(*node)
		c := n.cells[slotIndex(hash, depth)]
		switch c.tag {
		case cellEmpty:
			return term.Term{}, errs.New("hamt.Lookup", errs.NotFound, nil)
		case cellItem:
			if term.Equal(c.key, key) {
				return c.value, nil
			}
			return term.Term{}, errs.New("hamt.Lookup", errs.NotFound, nil)
		default: // cellBranch
			off = c.child
			depth++
		}
	}
	return term.Term{}, errs.New("hamt.Lookup", errs.NotFound, nil)
}

// ContainsKey reports whether key is present.
func ContainsKey(r *arena.Region, headerOff arena.Offset, key term.Term) bool {
	_, err := Lookup(r, headerOff, key)
	return err == nil
}

// Traverse visits every entry in hash order (left-to-right over each
// node's cell array), stopping early if visit returns non-zero.
func Traverse(r *arena.Region, headerOff arena.Offset, visit func(key, value term.Term) int) int {
	h := headerAt(r, headerOff)
	return traverse(r, h.root, visit)
}

func traverse(r *arena.Region, off arena.Offset, visit func(key, value term.Term) int) int {
	if off == arena.Sentinel {
		return 0
	}
	n := r.At(off).(*node)
	for _, c := range n.cells {
		switch c.tag {
		case cellItem:
			if rc := visit(c.key, c.value); rc != 0 {
				return rc
			}
		case cellBranch:
			if rc := traverse(r, c.child, visit); rc != 0 {
				return rc
			}
		}
	}
	return 0
}

// Cmp lexicographically compares the hash-order entry sequences of the
// tries at aOff and bOff.
func Cmp(r *arena.Region, aOff, bOff arena.Offset) int {
	var aEntries, bEntries [][2]term.Term
	Traverse(r, aOff, func(k, v term.Term) int { aEntries = append(aEntries, [2]term.Term{k, v}); return 0 })
	Traverse(r, bOff, func(k, v term.Term) int { bEntries = append(bEntries, [2]term.Term{k, v}); return 0 })
	for i := 0; i < len(aEntries) && i < len(bEntries); i++ {
		if c := term.Cmp(aEntries[i][0], bEntries[i][0]); c != 0 {
			return c
		}
		if c := term.Cmp(aEntries[i][1], bEntries[i][1]); c != 0 {
			return c
		}
	}
	switch {
	case len(aEntries) == len(bEntries):
		return 0
	case len(aEntries) < len(bEntries):
		return -1
	default:
		return 1
	}
}

// Hash returns the header's cached content hash.
func Hash(r *arena.Region, headerOff arena.Offset) uint64 {
	return headerAt(r, headerOff).hashVal
}
