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
	"errors"
	"testing"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/term"
)

func newHarness(t *testing.T) (*arena.Region, arena.Offset) {
	t.Helper()
	a := arena.New()
	r := arena.NewRegion(a, arena.Forward, 0)
	off, err := Init(r, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r, off
}

func TestInsertLookupSmallKeys(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 20; i++ {
		off, err = Insert(r, off, i, term.FromU64(i*i), cutoff)
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if n := headerAt(r, off).numEntries; n != 20 {
		t.Fatalf("numEntries=%d, want 20", n)
	}
	for i := uint64(0); i < 20; i++ {
		v, err := Lookup(r, off, i)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", i, err)
		}
		if v.U64Val != i*i {
			t.Fatalf("Lookup(%d) = %d, want %d", i, v.U64Val, i*i)
		}
	}
	if _, err := Lookup(r, off, 9999); !errors.Is(err, errs.NotFoundErr) {
		t.Fatalf("Lookup(missing) = %v, want NotFound", err)
	}
}

func TestInsertTriggersHeighten(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	// Key 0 fits in a single leaf-rooted node (< 2^L); key 1<<40 forces
	// several heighten calls before it can be placed.
	var err error
	off, err = Insert(r, off, 0, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	enclosedBefore := headerAt(r, off).enclosed

	big := uint64(1) << 40
	off, err = Insert(r, off, big, term.FromU64(2), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if headerAt(r, off).enclosed <= enclosedBefore {
		t.Fatalf("enclosed did not grow: before=%d after=%d", enclosedBefore, headerAt(r, off).enclosed)
	}

	v, err := Lookup(r, off, 0)
	if err != nil || v.U64Val != 1 {
		t.Fatalf("Lookup(0) after heighten = (%v, %v), want (1, nil)", v, err)
	}
	v, err = Lookup(r, off, big)
	if err != nil || v.U64Val != 2 {
		t.Fatalf("Lookup(big) after heighten = (%v, %v), want (2, nil)", v, err)
	}
	if headerAt(r, off).numEntries != 2 {
		t.Fatalf("numEntries=%d, want 2", headerAt(r, off).numEntries)
	}
}

func TestInsertOverwrite(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	off, err = Insert(r, off, 7, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	off, err = Insert(r, off, 7, term.FromU64(2), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if headerAt(r, off).numEntries != 1 {
		t.Fatalf("overwrite changed numEntries to %d", headerAt(r, off).numEntries)
	}
	v, err := Lookup(r, off, 7)
	if err != nil || v.U64Val != 2 {
		t.Fatalf("Lookup after overwrite = (%v, %v), want (2, nil)", v, err)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 30; i++ {
		off, err = Insert(r, off, i, term.FromU64(i), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}
	off, err = Delete(r, off, 5, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Lookup(r, off, 5); !errors.Is(err, errs.NotFoundErr) {
		t.Fatalf("Lookup(deleted) = %v, want NotFound", err)
	}
	if headerAt(r, off).numEntries != 29 {
		t.Fatalf("numEntries=%d, want 29", headerAt(r, off).numEntries)
	}
}

func TestDeleteMissingIsNotFoundAndNoOp(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	off, err = Insert(r, off, 1, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	cursorBefore := r.Arena().Cursor()
	_, err = Delete(r, off, 404, cutoff)
	if !errors.Is(err, errs.NotFoundErr) {
		t.Fatalf("Delete(missing) = %v, want NotFound", err)
	}
	if r.Arena().Cursor() != cursorBefore {
		t.Fatalf("failed delete leaked allocations")
	}
}

func TestOlderVersionUnaffectedByLaterMutation(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 20; i++ {
		off, err = Insert(r, off, i, term.FromU64(i), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}
	snapshot := off
	cutoff = r.Arena().Cursor()
	next, err := Insert(r, snapshot, 100, term.FromU64(100), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if headerAt(r, snapshot).numEntries != 20 {
		t.Fatalf("snapshot mutated")
	}
	if headerAt(r, next).numEntries != 21 {
		t.Fatalf("next numEntries=%d, want 21", headerAt(r, next).numEntries)
	}
}

func TestAllocationFailureLeavesHeaderUntouched(t *testing.T) {
	a := arena.New()
	r := arena.NewRegion(a, arena.Forward, 0)
	off, err := Init(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	cutoff := r.Arena().Cursor()

	bounded := arena.NewRegion(a, arena.Final, 1)
	cursorBefore := a.Cursor()
	_, err = Insert(bounded, off, 1, term.FromU64(1), cutoff)
	if !errors.Is(err, errs.AllocationFailureErr) {
		t.Fatalf("Insert into exhausted region = %v, want AllocationFailure", err)
	}
	if a.Cursor() != cursorBefore {
		t.Fatalf("failed insert leaked allocations")
	}
	if headerAt(r, off).numEntries != 0 {
		t.Fatalf("original header mutated after failed insert")
	}
}

func TestTraverseVisitsEveryEntryInKeyOrder(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 40; i++ {
		off, err = Insert(r, off, i, term.FromU64(i), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}
	var keys []uint64
	Traverse(r, off, func(k uint64, _ term.Term) int {
		keys = append(keys, k)
		return 0
	})
	if len(keys) != 40 {
		t.Fatalf("traverse visited %d entries, want 40", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Fatalf("traverse not in ascending order at %d: %d <= %d", i, keys[i], keys[i-1])
		}
	}
}

func TestHashChangesOnMutation(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	h0 := Hash(r, off)
	off1, err := Insert(r, off, 1, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if Hash(r, off1) == h0 {
		t.Fatalf("hash unchanged after insert")
	}
	off2, err := Delete(r, off1, 1, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if Hash(r, off2) != h0 {
		t.Fatalf("hash after insert+delete != empty hash")
	}
}

func TestCmpIsIdentityBased(t *testing.T) {
	r, offA := newHarness(t)
	cutoff := r.Arena().Cursor()
	offB, err := Init(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c := Cmp(r, offA, offB); c != 0 {
		t.Fatalf("Cmp(empty, empty) = %d, want 0 (both roots are Sentinel)", c)
	}

	offA, err = Insert(r, offA, 1, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	offB, err = Insert(r, offB, 1, term.FromU64(1), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	// Content is identical but allocation history differs: identity-based
	// Cmp must still report them as unequal.
	if c := Cmp(r, offA, offB); c == 0 {
		t.Fatalf("Cmp(a, b) = 0, want nonzero: roots differ even though content matches")
	}
	if c := Cmp(r, offA, offA); c != 0 {
		t.Fatalf("Cmp(a, a) = %d, want 0", c)
	}
}

func TestCondenseThenLookup(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 50; i++ {
		off, err = Insert(r, off, i, term.FromU64(i*10), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}

	c := NewCondenser(r, 128)
	root := headerAt(r, off).root
	condensedRoot, err := c.Condense(root)
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}

	nh := *headerAt(r, off)
	nh.root = condensedRoot
	hOff, err := r.Alloc(&nh)
	if err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < 50; i++ {
		v, err := Lookup(r, hOff, i)
		if err != nil {
			t.Fatalf("Lookup(%d) on condensed tree: %v", i, err)
		}
		if v.U64Val != i*10 {
			t.Fatalf("Lookup(%d) on condensed tree = %d, want %d", i, v.U64Val, i*10)
		}
	}

	second, err := c.Condense(root)
	if err != nil {
		t.Fatal(err)
	}
	if second != condensedRoot {
		t.Fatalf("Condense not memoized: %d != %d", second, condensedRoot)
	}
}

// TestCondenseThenLookupNonContiguousKeys exercises Lookup/Traverse's
// popcount slot translation on a condensed node whose present slots are
// not a zero-started contiguous range, where a bare logical-index lookup
// would read the wrong slot (or run off the end of the compacted
// children array).
func TestCondenseThenLookupNonContiguousKeys(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	keys := []uint64{1, 3, 7, 15}
	var err error
	for _, k := range keys {
		off, err = Insert(r, off, k, term.FromU64(k*100), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}

	c := NewCondenser(r, 16)
	root := headerAt(r, off).root
	condensedRoot, err := c.Condense(root)
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}
	nh := *headerAt(r, off)
	nh.root = condensedRoot
	hOff, err := r.Alloc(&nh)
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range keys {
		v, err := Lookup(r, hOff, k)
		if err != nil {
			t.Fatalf("Lookup(%d) on condensed tree: %v", k, err)
		}
		if v.U64Val != k*100 {
			t.Fatalf("Lookup(%d) on condensed tree = %d, want %d", k, v.U64Val, k*100)
		}
	}
	for _, missing := range []uint64{0, 2, 4, 6, 8} {
		if _, err := Lookup(r, hOff, missing); !errors.Is(err, errs.NotFoundErr) {
			t.Fatalf("Lookup(%d) on condensed tree = %v, want NotFound", missing, err)
		}
	}

	seen := map[uint64]uint64{}
	Traverse(r, hOff, func(key uint64, value term.Term) int {
		seen[key] = value.U64Val
		return 0
	})
	if len(seen) != len(keys) {
		t.Fatalf("Traverse on condensed tree visited %d entries, want %d", len(seen), len(keys))
	}
	for _, k := range keys {
		if seen[k] != k*100 {
			t.Fatalf("Traverse on condensed tree saw (%d, %d), want (%d, %d)", k, seen[k], k, k*100)
		}
	}
}

func TestCondenseIsReadOnlyAndRebuildsOnMutation(t *testing.T) {
	r, off := newHarness(t)
	cutoff := r.Arena().Cursor()

	var err error
	for i := uint64(0); i < 10; i++ {
		off, err = Insert(r, off, i, term.FromU64(i), cutoff)
		if err != nil {
			t.Fatal(err)
		}
	}

	c := NewCondenser(r, 16)
	root := headerAt(r, off).root
	condensedRoot, err := c.Condense(root)
	if err != nil {
		t.Fatal(err)
	}
	nh := *headerAt(r, off)
	nh.root = condensedRoot
	hOff, err := r.Alloc(&nh)
	if err != nil {
		t.Fatal(err)
	}

	cutoff2 := r.Arena().Cursor()
	next, err := Insert(r, hOff, 99, term.FromU64(99), cutoff2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Lookup(r, next, 99); err != nil {
		t.Fatalf("Lookup(99) after mutating condensed tree: %v", err)
	}
	for i := uint64(0); i < 10; i++ {
		if _, err := Lookup(r, next, i); err != nil {
			t.Fatalf("Lookup(%d) after mutating condensed tree: %v", i, err)
		}
	}
}
