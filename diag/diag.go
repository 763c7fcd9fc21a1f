// Copyright (c) 2024 The CuteC Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package diag carries the per-stage error lists described in §7:
// every compiler stage accumulates diagnostics into a Bag instead of
// returning early, so a single compile surfaces as many independent
// problems as it safely can.
package diag

import (
	"fmt"

	"github.com/cutec-lang/cutec/token"
)

// Kind classifies a Diagnostic per §7.
type Kind int

const (
	Lexical Kind = iota
	Syntactic
	Scoping
	Typing
	Internal
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntactic:
		return "syntax error"
	case Scoping:
		return "scoping error"
	case Typing:
		return "type error"
	case Internal:
		return "internal error"
	default:
		return "error"
	}
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind    Kind
	Pos     token.Pos
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message)
}

// Bag accumulates diagnostics for one stage. The zero value is ready
// to use.
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Add(kind Kind, pos token.Pos, format string, args ...any) {
	b.items = append(b.items, Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (b *Bag) Empty() bool { return len(b.items) == 0 }

func (b *Bag) Len() int { return len(b.items) }

func (b *Bag) Items() []Diagnostic { return b.items }

// Bug records an Internal diagnostic for a reached-the-unreachable
// condition. Unlike user errors it also panics so the bug surfaces
// immediately during development; compiler.Compiler.Compile recovers a
// panic of this type and reports it as an ordinary stage failure (§7).
func (b *Bag) Bug(pos token.Pos, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.items = append(b.items, Diagnostic{Kind: Internal, Pos: pos, Message: msg})
	panic(BugPanic{Diagnostic{Kind: Internal, Pos: pos, Message: msg}})
}

// BugPanic is the payload of a panic raised by Bag.Bug.
type BugPanic struct {
	Diagnostic
}

func (p BugPanic) Error() string { return p.Diagnostic.String() }

// StageError aggregates a non-empty Bag from one named stage into a
// single error value, returned by the top-level pipeline (§6, §7).
type StageError struct {
	Stage string
	Items []Diagnostic
}

func (e *StageError) Error() string {
	s := fmt.Sprintf("%s: %d error(s)", e.Stage, len(e.Items))
	for _, d := range e.Items {
		s += "\n" + d.String()
	}
	return s
}

// FromBag returns nil if bag is empty, else a *StageError naming stage.
func FromBag(stage string, bag *Bag) error {
	if bag.Empty() {
		return nil
	}
	return &StageError{Stage: stage, Items: bag.Items()}
}
