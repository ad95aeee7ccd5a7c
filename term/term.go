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

// Package term implements the small tagged value carried as a key or value
// by every container in this module.
package term

import (
	"fmt"
	"math"

	"github.com/dkopko/cb-sub000/hasher"
)

// Tag discriminates the payload a Term carries.
type Tag uint8

const (
	// U64 terms carry an unsigned 64-bit scalar.
	U64 Tag = iota
	// DBL terms carry a float64 scalar.
	DBL
	// BST terms carry a handle to a BST subtree's header.
	BST
	// STRUCTMAP terms carry a handle to a structmap subtree's header.
	STRUCTMAP
)

func (t Tag) String() string {
	switch t {
	case U64:
		return "U64"
	case DBL:
		return "DBL"
	case BST:
		return "BST"
	case STRUCTMAP:
		return "STRUCTMAP"
	default:
		return "UNKNOWN"
	}
}

// Container is implemented by any persistent container (*bst.Header,
// *structmap.Header) that can be carried as a Term's payload. Term cannot
// import those packages without creating a cycle — they import term for
// their key/value type — so the dependency is inverted through this
// interface instead.
type Container interface {
	// Cmp compares the receiver against another Container of the same
	// concrete type; behavior is undefined if the types differ.
	Cmp(other Container) int
	// HashValue returns the container's cached, content-based hash.
	HashValue() uint64
	// ExternalSize returns the container's cached external byte size.
	ExternalSize() uint64
	// Render returns a human-readable form of the container, for
	// diagnostics.
	Render() string
}

// Term is the tagged sum carried as a key or value.
type Term struct {
	Tag       Tag
	U64Val    uint64
	DBLVal    float64
	Container Container
}

// FromU64 builds a U64 term.
func FromU64(v uint64) Term { return Term{Tag: U64, U64Val: v} }

// FromDBL builds a DBL term.
func FromDBL(v float64) Term { return Term{Tag: DBL, DBLVal: v} }

// FromContainer builds a term wrapping a nested persistent container. tag
// must be BST or STRUCTMAP.
func FromContainer(tag Tag, c Container) Term {
	return Term{Tag: tag, Container: c}
}

// Cmp orders terms primarily by tag, then by payload. Two containers of
// different concrete types compared under the BST/STRUCTMAP tag is a
// caller error; it is not expected to occur because a single header's
// comparator is only ever applied to terms that were inserted through it.
func Cmp(a, b Term) int {
	if a.Tag != b.Tag {
		if a.Tag < b.Tag {
			return -1
		}
		return 1
	}
	switch a.Tag {
	case U64:
		switch {
		case a.U64Val < b.U64Val:
			return -1
		case a.U64Val > b.U64Val:
			return 1
		default:
			return 0
		}
	case DBL:
		switch {
		case a.DBLVal < b.DBLVal:
			return -1
		case a.DBLVal > b.DBLVal:
			return 1
		default:
			return 0
		}
	case BST, STRUCTMAP:
		return a.Container.Cmp(b.Container)
	default:
		return 0
	}
}

// ExternalSize is 0 for scalars and the referenced container's cached
// size() otherwise.
func ExternalSize(t Term) uint64 {
	switch t.Tag {
	case BST, STRUCTMAP:
		return t.Container.ExternalSize()
	default:
		return 0
	}
}

// HashContinue feeds t's tag and then either its scalar bytes or its
// container's cached hash value into h. Because the container's hash is
// itself a content hash independent of internal shape, this makes
// HashContinue a pure function of content, never of tree structure.
func HashContinue(h *hasher.Hasher, t Term) {
	h.WriteByte(byte(t.Tag))
	switch t.Tag {
	case U64:
		h.WriteU64(t.U64Val)
	case DBL:
		h.WriteU64(math.Float64bits(t.DBLVal))
	case BST, STRUCTMAP:
		h.WriteU64(t.Container.HashValue())
	}
}

// Render returns a human-readable representation of t, used by container
// String() methods and debug logging.
func Render(t Term) string {
	switch t.Tag {
	case U64:
		return fmt.Sprintf("%d", t.U64Val)
	case DBL:
		return fmt.Sprintf("%g", t.DBLVal)
	case BST, STRUCTMAP:
		return t.Container.Render()
	default:
		return "<invalid term>"
	}
}

// Equal reports whether two terms are identical. It is Cmp(a, b) == 0,
// spelled out because callers that only need equality shouldn't have to
// think about ordering.
func Equal(a, b Term) bool {
	return Cmp(a, b) == 0
}
