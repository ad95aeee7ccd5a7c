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

// Package bst implements the order-preserving, path-copy persistent map:
// an arena-resident red-black tree keyed by term.Term.
//
// It is built as a left-leaning red-black tree (Sedgewick's 2-3 tree
// formulation) rather than the four-level top-down insertion window and
// case-numbered top-down deletion a textbook RB tree uses. Every rotation,
// color flip and rebalance is still a pure function of an offset returning
// a (possibly new) offset, so the result is exactly the path-copy
// discipline this package exists to implement; see DESIGN.md for why this
// formulation was chosen over a literal transliteration.
package bst

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

type color bool

const (
	black color = false
	red   color = true
)

// node is a red-black node. It is never mutated after the offset holding
// it stops being >= some still-relevant cutoff; see arena.SelectModifiable.
type node struct {
	key, value term.Term
	color      color
	hash       uint64 // hash(key) (+) hash(value), cached
	left       arena.Offset
	right      arena.Offset
}

// nodeInternalCost mirrors spec.md's "sizeof(node) + alignof(node) - 1"
// internal-size charge, computed from the real Go struct layout instead of
// a hand-packed byte layout.
var nodeInternalCost = uint64(unsafe.Sizeof(node{})) + uint64(unsafe.Alignof(node{})) - 1

// CmpFunc, RenderFunc and ExtSizeFunc are the per-header capability bundle
// spec.md describes as "function pointers for key/value compare, render,
// external-size"; they collapse to ordinary Go func values here.
type CmpFunc func(a, b term.Term) int
type RenderFunc func(t term.Term) string
type ExtSizeFunc func(t term.Term) uint64

// Header is the top-level, arena-resident metadata record for one version
// of a BST.
type Header struct {
	root         arena.Offset
	numEntries   uint64
	internalSize uint64
	externalSize uint64
	hashVal      uint64

	cmpFn      CmpFunc
	renderFn   RenderFunc
	extSizeFn  ExtSizeFunc

	region     *arena.Region
	selfOffset arena.Offset
}

var (
	metricInsert       = metrics.GetOrRegisterCounter("bst/insert", nil)
	metricDelete       = metrics.GetOrRegisterCounter("bst/delete", nil)
	metricLookup       = metrics.GetOrRegisterCounter("bst/lookup", nil)
	metricFixupSingle  = metrics.GetOrRegisterCounter("bst/fixup/single", nil)
	metricFixupDouble  = metrics.GetOrRegisterCounter("bst/fixup/double", nil)
	logger             = log.New("pkg", "bst")
)

// Init creates a new, empty header. A nil cmp/render/extSize falls back to
// term.Cmp/term.Render/term.ExternalSize — "the default for a generic map
// is term comparison" (spec.md §6).
func Init(r *arena.Region, cmp CmpFunc, render RenderFunc, extSize ExtSizeFunc) (arena.Offset, error) {
	if cmp == nil {
		cmp = term.Cmp
	}
	if render == nil {
		render = term.Render
	}
	if extSize == nil {
		extSize = term.ExternalSize
	}
	h := &Header{
		root:      arena.Sentinel,
		cmpFn:     cmp,
		renderFn:  render,
		extSizeFn: extSize,
		region:    r,
	}
	off, err := r.Alloc(h)
	if err != nil {
		return 0, errs.New("bst.Init", errs.AllocationFailure, err)
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

// NumEntries returns the header's cached entry count.
func (h *Header) NumEntries() uint64 { return h.numEntries }

// InternalSize returns the header's cached internal byte accounting.
func (h *Header) InternalSize() uint64 { return h.internalSize }

// HashValue implements term.Container.
func (h *Header) HashValue() uint64 { return h.hashVal }

// ExternalSize implements term.Container.
func (h *Header) ExternalSize() uint64 { return h.externalSize }

// Render implements term.Container.
func (h *Header) Render() string {
	return fmt.Sprintf("bst(entries=%d, hash=%x)", h.numEntries, h.hashVal)
}

// Cmp implements term.Container: lexicographic comparison of the two
// trees' ordered entry sequences.
func (h *Header) Cmp(other term.Container) int {
	oh, ok := other.(*Header)
	if !ok {
		panic("bst: Cmp against non-*Header Container")
	}
	return Cmp(h.region, h.selfOffset, oh.selfOffset)
}

func entrySize(extSize ExtSizeFunc, key, value term.Term) uint64 {
	return extSize(key) + extSize(value)
}

func computeNodeHash(key, value term.Term) uint64 {
	kh := hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, key) })
	vh := hasher.HashValue(func(h *hasher.Hasher) { term.HashContinue(h, value) })
	return hasher.Combine(kh, vh)
}

func isRedOff(r *arena.Region, off arena.Offset) bool {
	if off == arena.Sentinel {
		return false
	}
	return r.At(off).(*node).color == red
}

// isRedLeft reports whether the node at off (if any) has a red left child.
func isRedLeft(r *arena.Region, off arena.Offset) bool {
	if off == arena.Sentinel {
		return false
	}
	return isRedOff(r, r.At(off).(*node).left)
}

func leftOf(r *arena.Region, off arena.Offset) arena.Offset {
	if off == arena.Sentinel {
		return arena.Sentinel
	}
	return r.At(off).(*node).left
}

func rightOf(r *arena.Region, off arena.Offset) arena.Offset {
	if off == arena.Sentinel {
		return arena.Sentinel
	}
	return r.At(off).(*node).right
}

// Lookup returns the value stored for key, or a NotFound error.
func Lookup(r *arena.Region, headerOff arena.Offset, key term.Term) (term.Term, error) {
	metricLookup.Inc(1)
	h := headerAt(r, headerOff)
	off := h.root
	for off != arena.Sentinel {
		n := r.At(off).(*node)
		c := h.cmpFn(key, n.key)
		switch {
		case c == 0:
			return n.value, nil
		case c < 0:
			off = n.left
		default:
			off = n.right
		}
	}
	return term.Term{}, errs.New("bst.Lookup", errs.NotFound, nil)
}

// ContainsKey reports whether key is present.
func ContainsKey(r *arena.Region, headerOff arena.Offset, key term.Term) bool {
	_, err := Lookup(r, headerOff, key)
	return err == nil
}

// Traverse visits every entry in ascending key order, stopping early if
// visit returns non-zero.
func Traverse(r *arena.Region, headerOff arena.Offset, visit func(key, value term.Term) int) int {
	h := headerAt(r, headerOff)
	return traverse(r, h.root, visit)
}

func traverse(r *arena.Region, off arena.Offset, visit func(key, value term.Term) int) int {
	if off == arena.Sentinel {
		return 0
	}
	n := r.At(off).(*node)
	if rc := traverse(r, n.left, visit); rc != 0 {
		return rc
	}
	if rc := visit(n.key, n.value); rc != 0 {
		return rc
	}
	return traverse(r, n.right, visit)
}

// Hash returns the header's cached content hash.
func Hash(r *arena.Region, headerOff arena.Offset) uint64 {
	return headerAt(r, headerOff).hashVal
}

// NumEntriesAt returns the entry count cached in the header at headerOff,
// for callers (such as lowerbound.Set) that only hold an offset rather
// than a resolved *Header.
func NumEntriesAt(r *arena.Region, headerOff arena.Offset) uint64 {
	return headerAt(r, headerOff).numEntries
}
