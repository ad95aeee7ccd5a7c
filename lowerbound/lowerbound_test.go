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

package lowerbound

import (
	"errors"
	"testing"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
)

func newHarness(t *testing.T) (*arena.Region, *Set) {
	t.Helper()
	a := arena.New()
	r := arena.NewRegion(a, arena.Forward, 0)
	s, err := NewSet(r)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return r, s
}

func TestEmptySetHasNoMinimum(t *testing.T) {
	_, s := newHarness(t)
	if _, ok := s.GetLowest(); ok {
		t.Fatalf("GetLowest on empty set reported a minimum")
	}
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
}

func TestAddTracksMinimum(t *testing.T) {
	_, s := newHarness(t)
	if err := s.Add(50); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(10); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(30); err != nil {
		t.Fatal(err)
	}
	min, ok := s.GetLowest()
	if !ok || min != 10 {
		t.Fatalf("GetLowest = (%d, %v), want (10, true)", min, ok)
	}
	if s.Len() != 3 {
		t.Fatalf("Len=%d, want 3", s.Len())
	}
}

func TestDuplicateAddIncrementsRefcountNotCount(t *testing.T) {
	_, s := newHarness(t)
	if err := s.Add(10); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(10); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1 (same cutoff added twice is one entry with refcount 2)", s.Len())
	}
	// First Remove should only drop the refcount; the entry should survive.
	if err := s.Remove(10); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d after first Remove, want 1 (refcount still 1)", s.Len())
	}
	min, ok := s.GetLowest()
	if !ok || min != 10 {
		t.Fatalf("GetLowest after partial remove = (%d, %v), want (10, true)", min, ok)
	}
	if err := s.Remove(10); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len=%d after second Remove, want 0", s.Len())
	}
	if _, ok := s.GetLowest(); ok {
		t.Fatalf("GetLowest after final Remove reported a minimum")
	}
}

func TestRemoveRecomputesMinimum(t *testing.T) {
	_, s := newHarness(t)
	for _, off := range []arena.Offset{10, 20, 30} {
		if err := s.Add(off); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Remove(10); err != nil {
		t.Fatal(err)
	}
	min, ok := s.GetLowest()
	if !ok || min != 20 {
		t.Fatalf("GetLowest after removing minimum = (%d, %v), want (20, true)", min, ok)
	}
}

func TestRemoveUnregisteredOffsetIsInvalidArgument(t *testing.T) {
	_, s := newHarness(t)
	if err := s.Add(10); err != nil {
		t.Fatal(err)
	}
	err := s.Remove(999)
	if !errors.Is(err, errs.InvalidArgumentErr) {
		t.Fatalf("Remove(unregistered) = %v, want InvalidArgument", err)
	}
}
