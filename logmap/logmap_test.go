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

package logmap

import (
	"errors"
	"testing"
	"time"

	"github.com/tilinna/clock"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/term"
)

func cmpU64(a, b term.Term) int { return term.Cmp(a, b) }

func newHarness(t *testing.T) *Map {
	t.Helper()
	a := arena.New()
	m, err := New(a, cmpU64, term.Render, term.ExternalSize, clock.NewMock(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestGetSeesPendingSetBeforeConsolidate(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(100)); err != nil {
		t.Fatal(err)
	}
	v, err := m.Get(term.FromU64(1))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.U64Val != 100 {
		t.Fatalf("Get = %d, want 100", v.U64Val)
	}
	if m.Backlog() != 1 {
		t.Fatalf("Backlog=%d, want 1", m.Backlog())
	}
}

func TestGetSeesPendingDeleteBeforeConsolidate(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(100)); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(term.FromU64(1)); !errors.Is(err, errs.NotFoundErr) {
		t.Fatalf("Get after pending delete = %v, want NotFound", err)
	}
}

func TestLastPendingRecordForKeyWins(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(term.FromU64(1), term.FromU64(2)); err != nil {
		t.Fatal(err)
	}
	v, err := m.Get(term.FromU64(1))
	if err != nil || v.U64Val != 2 {
		t.Fatalf("Get = (%v, %v), want (2, nil)", v, err)
	}
}

func TestConsolidateFoldsLogIntoTree(t *testing.T) {
	m := newHarness(t)
	for i := uint64(0); i < 10; i++ {
		if err := m.Set(term.FromU64(i), term.FromU64(i*i)); err != nil {
			t.Fatal(err)
		}
	}
	cutoff := m.dataRegion.Arena().Cursor()
	if _, err := m.Consolidate(cutoff); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if m.Backlog() != 0 {
		t.Fatalf("Backlog after Consolidate=%d, want 0", m.Backlog())
	}
	for i := uint64(0); i < 10; i++ {
		v, err := m.Get(term.FromU64(i))
		if err != nil {
			t.Fatalf("Get(%d) after consolidate: %v", i, err)
		}
		if v.U64Val != i*i {
			t.Fatalf("Get(%d) = %d, want %d", i, v.U64Val, i*i)
		}
	}
}

func TestConsolidateHonorsDeleteOrdering(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(term.FromU64(1), term.FromU64(2)); err != nil {
		t.Fatal(err)
	}
	cutoff := m.dataRegion.Arena().Cursor()
	if _, err := m.Consolidate(cutoff); err != nil {
		t.Fatal(err)
	}
	v, err := m.Get(term.FromU64(1))
	if err != nil || v.U64Val != 2 {
		t.Fatalf("Get after set/delete/set consolidate = (%v, %v), want (2, nil)", v, err)
	}
}

func TestConsolidateFailureLeavesHeaderOffUntouched(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	cutoff := m.dataRegion.Arena().Cursor()
	if _, err := m.Consolidate(cutoff); err != nil {
		t.Fatalf("initial Consolidate: %v", err)
	}
	goodHeaderOff := m.headerOff

	// A Delete record for a key the tree never held surfaces as NotFound
	// only once Consolidate replays it; appending it never consults the
	// tree.
	if err := m.Delete(term.FromU64(2)); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(term.FromU64(3), term.FromU64(3)); err != nil {
		t.Fatal(err)
	}

	cutoff = m.dataRegion.Arena().Cursor()
	if _, err := m.Consolidate(cutoff); !errors.Is(err, errs.NotFoundErr) {
		t.Fatalf("Consolidate with absent-key delete = %v, want NotFound", err)
	}

	if m.headerOff != goodHeaderOff {
		t.Fatalf("headerOff changed after failed Consolidate: got %v, want unchanged %v", m.headerOff, goodHeaderOff)
	}
	if m.Backlog() != 2 {
		t.Fatalf("Backlog after failed Consolidate=%d, want 2 (records left pending)", m.Backlog())
	}

	// The previously-consolidated entry and the still-pending Set must
	// both remain readable: the map was not corrupted by the failure.
	v, err := m.Get(term.FromU64(1))
	if err != nil || v.U64Val != 1 {
		t.Fatalf("Get(1) after failed Consolidate = (%v, %v), want (1, nil)", v, err)
	}
	v, err = m.Get(term.FromU64(3))
	if err != nil || v.U64Val != 3 {
		t.Fatalf("Get(3) after failed Consolidate = (%v, %v), want (3, nil)", v, err)
	}
}

func TestSnapshotRecordDoesNotAffectGetOrConsolidate(t *testing.T) {
	m := newHarness(t)
	if err := m.Set(term.FromU64(1), term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Snapshot(); err != nil {
		t.Fatal(err)
	}
	v, err := m.Get(term.FromU64(1))
	if err != nil || v.U64Val != 1 {
		t.Fatalf("Get around snapshot record = (%v, %v), want (1, nil)", v, err)
	}
	cutoff := m.dataRegion.Arena().Cursor()
	if _, err := m.Consolidate(cutoff); err != nil {
		t.Fatal(err)
	}
	v, err = m.Get(term.FromU64(1))
	if err != nil || v.U64Val != 1 {
		t.Fatalf("Get after consolidating snapshot record = (%v, %v), want (1, nil)", v, err)
	}
}

func TestAutoConsolidateRunsOnMockClockTick(t *testing.T) {
	a := arena.New()
	mc := clock.NewMock()
	m, err := New(a, cmpU64, term.Render, term.ExternalSize, mc, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Set(term.FromU64(1), term.FromU64(1)); err != nil {
		t.Fatal(err)
	}
	mc.Set(mc.Now().Add(2 * time.Second))

	deadline := time.Now().Add(2 * time.Second)
	for m.Backlog() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.Backlog() != 0 {
		t.Fatalf("auto-consolidate did not drain backlog after mock clock advance")
	}
}
