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

// Package ir is the three-address intermediate representation
// produced once by the IR generator (§4.I) and never mutated
// afterward: every later stage reads it to build the abstract x86-64
// tree (§4.S).
package ir

import "github.com/cutec-lang/cutec/types"

// Value is either a Constant or a Variable (a name, resolved to a
// pseudo-register or a static/stack slot downstream).
type Value struct {
	IsConstant  bool
	Name        string // Variable
	IntValue    int64  // Constant, integer kinds (bit pattern)
	DoubleValue float64
	Type        *types.Type
}

func Const(t *types.Type, i int64, d float64) Value {
	return Value{IsConstant: true, Type: t, IntValue: i, DoubleValue: d}
}

func ConstInt(t *types.Type, i int64) Value { return Const(t, i, 0) }
func ConstDouble(d float64) Value           { return Const(types.TDouble, 0, d) }
func Var(name string, t *types.Type) Value  { return Value{Name: name, Type: t} }

// UnaryOp is the operator of a Unary instruction.
type UnaryOp int

const (
	Negate UnaryOp = iota
	Complement
	LogicalNot
)

// BinaryOp is the operator of a Binary instruction.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	Shl
	Shr
	And
	Or
	Xor
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

// ConvertOp names one of the seven explicit conversion instructions.
type ConvertOp int

const (
	SignExtend ConvertOp = iota
	Truncate
	ZeroExtend
	IntToDouble
	UIntToDouble
	DoubleToInt
	DoubleToUInt
)

// Instruction is a closed set of three-address operations; exactly
// one of the typed fields below is meaningful per instruction, picked
// by Op.
type Op int

const (
	OpReturn Op = iota
	OpUnary
	OpBinary
	OpCopy
	OpJump
	OpJumpIfZero
	OpJumpIfNotZero
	OpLabel
	OpCall
	OpConvert
)

type Instruction struct {
	Op Op

	// OpReturn, OpCopy (Src/Dst), OpJumpIfZero/OpJumpIfNotZero (Src)
	Src Value
	Dst Value

	// OpUnary
	UnaryOp UnaryOp

	// OpBinary
	BinaryOp BinaryOp
	Left     Value
	Right    Value

	// OpJump, OpJumpIfZero, OpJumpIfNotZero, OpLabel
	Label string

	// OpCall
	Callee string
	Args   []Value

	// OpConvert
	ConvertOp ConvertOp
}

func Return(v Value) Instruction { return Instruction{Op: OpReturn, Src: v} }

func Unary(op UnaryOp, src, dst Value) Instruction {
	return Instruction{Op: OpUnary, UnaryOp: op, Src: src, Dst: dst}
}

func Binary(op BinaryOp, l, r, dst Value) Instruction {
	return Instruction{Op: OpBinary, BinaryOp: op, Left: l, Right: r, Dst: dst}
}

func Copy(src, dst Value) Instruction { return Instruction{Op: OpCopy, Src: src, Dst: dst} }

func Jump(label string) Instruction { return Instruction{Op: OpJump, Label: label} }

func JumpIfZero(v Value, label string) Instruction {
	return Instruction{Op: OpJumpIfZero, Src: v, Label: label}
}

func JumpIfNotZero(v Value, label string) Instruction {
	return Instruction{Op: OpJumpIfNotZero, Src: v, Label: label}
}

func LabelInstr(name string) Instruction { return Instruction{Op: OpLabel, Label: name} }

func Call(callee string, args []Value, dst Value) Instruction {
	return Instruction{Op: OpCall, Callee: callee, Args: args, Dst: dst}
}

func Convert(op ConvertOp, src, dst Value) Instruction {
	return Instruction{Op: OpConvert, ConvertOp: op, Src: src, Dst: dst}
}

// Function is one defined function's straight-line instruction list.
type Function struct {
	Name         string
	Global       bool
	Params       []string
	Instructions []Instruction
}

// StaticVariable is a file- or block-scope variable that needs its
// own storage in .data/.bss, independent of any function's frame.
type StaticVariable struct {
	Name    string
	Global  bool
	Type    *types.Type
	Initial types.Initial
	// Tentative marks a definition with no initializer to realize as
	// zero (distinct from Initial.Kind == InitZero, which is a real
	// all-bits-zero constant initializer).
	Tentative bool
}

// Program is the IR generator's whole output for one translation unit.
type Program struct {
	Functions []Function
	Statics   []StaticVariable
}
