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

// Package hasher provides the incremental hash state that terms feed
// themselves into (init/continue/finalize), and the commutative combiner
// used to fold per-node hashes into a header's content hash.
//
// The base primitive is Keccak256, the same choice bmt.go makes for its
// binary merkle tree (sha3.NewLegacyKeccak256): a fast, well-audited
// general-purpose hash already in the dependency graph.
package hasher

import (
	"encoding/binary"
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Hasher is reusable incremental hash state. Reset returns it to its
// initial state so a Pool can hand out the same instance for many
// consecutive hashes without reallocating the underlying sponge state.
type Hasher struct {
	h hash.Hash
}

// New constructs a Hasher around a fresh Keccak256 state.
func New() *Hasher {
	return &Hasher{h: sha3.NewLegacyKeccak256()}
}

// Reset (re-)initializes the hasher, discarding any bytes written so far.
func (h *Hasher) Reset() { h.h.Reset() }

// WriteByte continues the hash with a single byte, e.g. a term's tag.
func (h *Hasher) WriteByte(b byte) { h.h.Write([]byte{b}) }

// WriteU64 continues the hash with v in little-endian form.
func (h *Hasher) WriteU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.h.Write(buf[:])
}

// WriteBytes continues the hash with an arbitrary byte slice.
func (h *Hasher) WriteBytes(b []byte) { h.h.Write(b) }

// Sum finalizes the hash and returns its first 8 bytes as a uint64. This is
// the content hash that feeds into a node's cached per-node hash and a
// header's XOR-commutative accumulated hash.
func (h *Hasher) Sum() uint64 {
	digest := h.h.Sum(nil)
	return binary.LittleEndian.Uint64(digest[:8])
}

// Pool amortizes Hasher allocation the way bmt.TreePool amortizes BMT tree
// allocation: callers that hash many terms in a row (e.g. every BST insert)
// pull a Hasher, use it, and give it back instead of constructing a new
// Keccak state each time.
type Pool struct {
	pool sync.Pool
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{pool: sync.Pool{New: func() any { return New() }}}
}

// Get returns a reset Hasher ready to use.
func (p *Pool) Get() *Hasher {
	h := p.pool.Get().(*Hasher)
	h.Reset()
	return h
}

// Put returns h to the pool.
func (p *Pool) Put(h *Hasher) {
	p.pool.Put(h)
}

// Default is the package-level pool used by HashValue.
var Default = NewPool()

// HashValue runs write against a pooled Hasher and returns its finalized
// value, a one-shot convenience for the common case of hashing a single
// term.
func HashValue(write func(*Hasher)) uint64 {
	h := Default.Get()
	defer Default.Put(h)
	write(h)
	return h.Sum()
}

// Combine XOR-folds two hashes, e.g. hash(key) (+) hash(value) for a node,
// or accumulating per-node hashes into a header's order-independent content
// hash.
func Combine(a, b uint64) uint64 {
	return a ^ b
}
