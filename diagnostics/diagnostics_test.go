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

package diagnostics

import (
	"testing"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/lowerbound"
)

func TestFootprintReportsNonZeroSize(t *testing.T) {
	a := arena.New()
	r := arena.NewRegion(a, arena.Forward, 0)
	s, err := lowerbound.NewSet(r)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	for _, off := range []arena.Offset{10, 20, 30} {
		if err := s.Add(off); err != nil {
			t.Fatal(err)
		}
	}
	sizes := Footprint(s)
	if sizes.Total == 0 {
		t.Fatalf("Footprint reported zero total size for a non-empty set")
	}
}
