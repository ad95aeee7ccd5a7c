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

// Package errs defines the error kinds shared by the arena-backed
// containers (arena, bst, hamt, structmap, logmap).
package errs

import "fmt"

// Kind is one of the four error categories the core can raise.
type Kind int

const (
	// AllocationFailure means the arena could not grow to satisfy an
	// alignment/size request. Every mutation treats this as fatal to the
	// operation and rewinds the arena cursor to its entry value.
	AllocationFailure Kind = iota
	// NotFound means a delete or lookup targeted an absent key.
	NotFound
	// InvalidArgument means the caller passed arguments the operation
	// cannot act on, e.g. adjusting external size on an empty header.
	InvalidArgument
	// ImplementationError is only reachable through internal invariant
	// checks; it is impossible if the documented invariants hold.
	ImplementationError
)

func (k Kind) String() string {
	switch k {
	case AllocationFailure:
		return "AllocationFailure"
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case ImplementationError:
		return "ImplementationError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type returned by every fallible operation in
// the core. Op names the operation that failed (e.g. "bst.Insert") so logs
// and error strings carry context without needing to wrap repeatedly.
type Error struct {
	Kind Kind
	Op   string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, errs.NotFoundErr) against the sentinels below.
func (e *Error) Is(target error) bool {
	if s, ok := target.(sentinel); ok {
		return e.Kind == s.kind
	}
	return false
}

type sentinel struct{ kind Kind }

func (s sentinel) Error() string { return s.kind.String() }

// Sentinels usable with errors.Is(err, errs.NotFoundErr), etc.
var (
	AllocationFailureErr  error = sentinel{AllocationFailure}
	NotFoundErr           error = sentinel{NotFound}
	InvalidArgumentErr    error = sentinel{InvalidArgument}
	ImplementationErrorErr error = sentinel{ImplementationError}
)

// New constructs an *Error for op of the given kind, optionally wrapping
// cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}
