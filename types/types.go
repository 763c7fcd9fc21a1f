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

// Package types is the compiler's type universe (§3): the four
// integer types, double, and function types, plus the symbol table
// that A5 builds and every later stage reads.
package types

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Int Kind = iota
	UInt
	Long
	ULong
	Double
	Function
)

// Type is an interned value; the scalar kinds are process-wide
// singletons so callers can compare with ==, mirroring the teacher's
// singleton-type-variable pattern.
type Type struct {
	Kind   Kind
	Return *Type   // Function only
	Params []*Type // Function only
}

var (
	TInt    = &Type{Kind: Int}
	TUInt   = &Type{Kind: UInt}
	TLong   = &Type{Kind: Long}
	TULong  = &Type{Kind: ULong}
	TDouble = &Type{Kind: Double}
)

func NewFunction(ret *Type, params []*Type) *Type {
	return &Type{Kind: Function, Return: ret, Params: params}
}

func (t *Type) IsInt() bool      { return t.Kind == Int }
func (t *Type) IsUInt() bool     { return t.Kind == UInt }
func (t *Type) IsLong() bool     { return t.Kind == Long }
func (t *Type) IsULong() bool    { return t.Kind == ULong }
func (t *Type) IsDouble() bool   { return t.Kind == Double }
func (t *Type) IsFunction() bool { return t.Kind == Function }

// IsInteger reports whether t is one of the four integer kinds.
func (t *Type) IsInteger() bool {
	switch t.Kind {
	case Int, UInt, Long, ULong:
		return true
	default:
		return false
	}
}

// IsSigned reports whether t is a signed integer kind. Only
// meaningful when IsInteger is true.
func (t *Type) IsSigned() bool {
	return t.Kind == Int || t.Kind == Long
}

// Size is the type's size in bytes (§3: int/uint=4; long/ulong/double=8).
func (t *Type) Size() int {
	switch t.Kind {
	case Int, UInt:
		return 4
	case Long, ULong, Double:
		return 8
	default:
		return 8
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case UInt:
		return "unsigned int"
	case Long:
		return "long"
	case ULong:
		return "unsigned long"
	case Double:
		return "double"
	case Function:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s(%s)", t.Return, strings.Join(parts, ", "))
	default:
		return "<invalid type>"
	}
}

// Equal reports structural type equality (singletons make == work for
// scalars, but function types need a deep comparison).
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	if a.Kind != Function {
		return true
	}
	if !Equal(a.Return, b.Return) || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !Equal(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Static initializers (§3 "Initial")

type InitialKind int

const (
	InitInt InitialKind = iota
	InitUInt
	InitLong
	InitULong
	InitDouble
	InitZero // an all-bits-zero initializer (not the Tentative state)
)

type Initial struct {
	Kind   InitialKind
	IntVal int64   // Int/UInt/Long/ULong (bit pattern)
	DblVal float64 // Double
}

func ZeroInitial(t *Type) Initial {
	if t.IsDouble() {
		return Initial{Kind: InitZero}
	}
	return Initial{Kind: InitZero}
}

// InitialState distinguishes a realized Initial from the two
// link-time placeholder states a file-scope declaration can have.
type InitialState int

const (
	HasInitial InitialState = iota
	Tentative
	NoInitializer
)

// ---------------------------------------------------------------------------
// Symbol table (§3)

type Linkage int

const (
	Local Linkage = iota // automatic / block-scope, no linkage
	Internal
	External
)

type AttrKind int

const (
	AttrFunction AttrKind = iota
	AttrStatic
	AttrLocal
)

type Attributes struct {
	Kind AttrKind

	// AttrFunction
	Defined bool
	Global  bool

	// AttrStatic
	State   InitialState
	Initial Initial
	// Global is shared with AttrFunction above.
}

type Symbol struct {
	Name  string
	Type  *Type
	Attrs Attributes
}

// Table is the compiler-owned symbol table produced by A5 and read by
// every later stage (§9 "Ownership of the symbol table"); it outlives
// the AST it was built from.
type Table struct {
	symbols map[string]*Symbol
}

func NewTable() *Table {
	return &Table{symbols: make(map[string]*Symbol)}
}

func (t *Table) Get(name string) (*Symbol, bool) {
	s, ok := t.symbols[name]
	return s, ok
}

func (t *Table) Put(sym *Symbol) {
	t.symbols[sym.Name] = sym
}

func (t *Table) All() map[string]*Symbol {
	return t.symbols
}
