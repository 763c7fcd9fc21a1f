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

// Package emit is §4.E: rendering an already-legalized abstract
// x86-64 program as AT&T-syntax assembly text. Nothing here decides
// instruction shapes; it only knows how to print the shapes codegen
// already chose.
package emit

import (
	"fmt"
	"strings"

	"github.com/cutec-lang/cutec/codegen"
)

// Platform picks the handful of textual conventions that differ
// between a Linux and a macOS assembler for the same instruction
// stream: the `_` symbol prefix and `L` local-label prefix on macOS,
// and on Linux the `.L` local-label prefix, a @PLT suffix on every
// call target, the `.type` directive, and the `.note.GNU-stack`
// section.
type Platform int

const (
	Linux Platform = iota
	Darwin
)

type emitter struct {
	p   Platform
	out strings.Builder
}

// Emit renders prog as a complete assembly source file.
func Emit(prog *codegen.Program, plat Platform) string {
	e := &emitter{p: plat}
	for _, fn := range prog.Functions {
		e.function(fn)
	}
	if len(prog.Statics) > 0 {
		e.statics(prog.Statics)
	}
	if len(prog.Constants) > 0 {
		e.constants(prog.Constants)
	}
	if e.p == Linux {
		e.line(".section .note.GNU-stack,\"\",@progbits")
	}
	return e.out.String()
}

func (e *emitter) line(format string, args ...any) {
	e.out.WriteString(fmt.Sprintf(format, args...))
	e.out.WriteByte('\n')
}

func (e *emitter) symbol(name string) string {
	if e.p == Darwin {
		return "_" + name
	}
	return name
}

func (e *emitter) localLabel(name string) string {
	if strings.HasPrefix(name, ".L") {
		return name
	}
	if e.p == Darwin {
		return "L" + name
	}
	return ".L" + name
}

func (e *emitter) calleeLabel(name string) string {
	sym := e.symbol(name)
	if e.p == Linux {
		return sym + "@PLT"
	}
	return sym
}

func (e *emitter) function(fn codegen.Function) {
	sym := e.symbol(fn.Name)
	e.line(".text")
	if fn.Global {
		e.line(".globl %s", sym)
	}
	if e.p == Linux {
		e.line(".type %s, @function", sym)
	}
	e.line("%s:", sym)
	for _, in := range fn.Instructions {
		e.instr(in)
	}
}

func (e *emitter) statics(statics []codegen.StaticVariable) {
	for _, sv := range statics {
		sym := e.symbol(sv.Name)
		if sv.Tentative {
			e.line(".bss")
		} else {
			e.line(".data")
		}
		if sv.Global {
			e.line(".globl %s", sym)
		}
		e.line(".align %d", sv.Alignment)
		e.line("%s:", sym)
		if sv.Tentative {
			e.line(".zero %d", sv.Alignment)
			continue
		}
		e.bytes(sv.Bytes)
	}
}

func (e *emitter) constants(constants []codegen.StaticConstant) {
	e.line(".section .rodata")
	for _, c := range constants {
		e.line(".align %d", c.Alignment)
		e.line("%s:", c.Name)
		e.bytes(c.Bytes)
	}
}

func (e *emitter) bytes(b []byte) {
	for i := 0; i < len(b); i += 8 {
		end := i + 8
		if end > len(b) {
			end = len(b)
		}
		var v uint64
		for j := end - 1; j >= i; j-- {
			v = v<<8 | uint64(b[j])
		}
		e.line(".quad %d", int64(v))
	}
}

// suffix is the mnemonic width letter for an integer AsmType, picked
// per §3's type table (Byte=b, LongWord=l, QuadWord=q).
func suffix(t codegen.AsmType) string {
	switch t {
	case codegen.Byte:
		return "b"
	case codegen.LongWord:
		return "l"
	default:
		return "q"
	}
}

func (e *emitter) reg(r codegen.Reg, t codegen.AsmType) string {
	if r.IsSSE() {
		return "%" + sseRegName(r)
	}
	return "%" + intRegName(r, t)
}

func sseRegName(r codegen.Reg) string {
	names := map[codegen.Reg]string{
		codegen.XMM0: "xmm0", codegen.XMM1: "xmm1", codegen.XMM2: "xmm2", codegen.XMM3: "xmm3",
		codegen.XMM4: "xmm4", codegen.XMM5: "xmm5", codegen.XMM6: "xmm6", codegen.XMM7: "xmm7",
		codegen.XMM14: "xmm14", codegen.XMM15: "xmm15",
	}
	return names[r]
}

var intRegNames = map[codegen.Reg][4]string{
	// [byte, longword, quadword, quadword] indexed by suffix width;
	// byte names follow the legacy low-byte convention (%al not %r0b).
	codegen.RAX: {"al", "eax", "rax", "rax"},
	codegen.RBX: {"bl", "ebx", "rbx", "rbx"},
	codegen.RCX: {"cl", "ecx", "rcx", "rcx"},
	codegen.RDX: {"dl", "edx", "rdx", "rdx"},
	codegen.RSI: {"sil", "esi", "rsi", "rsi"},
	codegen.RDI: {"dil", "edi", "rdi", "rdi"},
	codegen.RBP: {"bpl", "ebp", "rbp", "rbp"},
	codegen.RSP: {"spl", "esp", "rsp", "rsp"},
	codegen.R8:  {"r8b", "r8d", "r8", "r8"},
	codegen.R9:  {"r9b", "r9d", "r9", "r9"},
	codegen.R10: {"r10b", "r10d", "r10", "r10"},
	codegen.R11: {"r11b", "r11d", "r11", "r11"},
	codegen.R12: {"r12b", "r12d", "r12", "r12"},
	codegen.R13: {"r13b", "r13d", "r13", "r13"},
	codegen.R14: {"r14b", "r14d", "r14", "r14"},
	codegen.R15: {"r15b", "r15d", "r15", "r15"},
}

func intRegName(r codegen.Reg, t codegen.AsmType) string {
	names, ok := intRegNames[r]
	if !ok {
		return "rax"
	}
	switch t {
	case codegen.Byte:
		return names[0]
	case codegen.LongWord:
		return names[1]
	default:
		return names[2]
	}
}

func (e *emitter) operand(o codegen.Operand, t codegen.AsmType) string {
	switch o.Kind {
	case codegen.OpImm:
		return fmt.Sprintf("$%d", o.Imm)
	case codegen.OpReg:
		return e.reg(o.Reg, t)
	case codegen.OpStack:
		return fmt.Sprintf("%d(%%rbp)", o.Offset)
	case codegen.OpData:
		return fmt.Sprintf("%s(%%rip)", e.localLabelOrSymbol(o.Symbol))
	default:
		return "<pseudo:" + o.Pseudo + ">"
	}
}

func (e *emitter) localLabelOrSymbol(name string) string {
	if strings.HasPrefix(name, ".L") {
		return name
	}
	return e.symbol(name)
}

var condSuffix = map[codegen.Cond]string{
	codegen.CondE: "e", codegen.CondNE: "ne",
	codegen.CondL: "l", codegen.CondLE: "le", codegen.CondG: "g", codegen.CondGE: "ge",
	codegen.CondA: "a", codegen.CondAE: "ae", codegen.CondB: "b", codegen.CondBE: "be",
	codegen.CondP: "p", codegen.CondNP: "np",
}

func (e *emitter) instr(in codegen.Instr) {
	switch in.Kind {
	case codegen.ILabel:
		e.line("%s:", e.localLabel(in.Label))
	case codegen.IMov:
		if in.Type == codegen.Double {
			e.line("\tmovsd %s, %s", e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
			return
		}
		e.line("\tmov%s %s, %s", suffix(in.Type), e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
	case codegen.IMovsx:
		e.line("\tmovs%s%s %s, %s", suffix(in.SrcType), suffix(in.DstType), e.operand(in.Src, in.SrcType), e.operand(in.Dst, in.DstType))
	case codegen.IMovZeroExtend:
		e.line("\tmovz%s%s %s, %s", suffix(in.SrcType), suffix(in.DstType), e.operand(in.Src, in.SrcType), e.operand(in.Dst, in.DstType))
	case codegen.ILea:
		e.line("\tlea%s %s, %s", suffix(in.Type), e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
	case codegen.ICvtsi2sd:
		e.line("\tcvtsi2sd%s %s, %s", suffix(in.Type), e.operand(in.Src, in.Type), e.operand(in.Dst, codegen.Double))
	case codegen.ICvttsd2si:
		e.line("\tcvttsd2si%s %s, %s", suffix(in.Type), e.operand(in.Src, codegen.Double), e.operand(in.Dst, in.Type))
	case codegen.IUnary:
		e.line("\t%s%s %s", unaryMnemonic(in.UnaryOp), suffix(in.Type), e.operand(in.Dst, in.Type))
	case codegen.IBinary:
		e.binary(in)
	case codegen.IIdiv:
		e.line("\tidiv%s %s", suffix(in.Type), e.operand(in.Src, in.Type))
	case codegen.IDiv:
		e.line("\tdiv%s %s", suffix(in.Type), e.operand(in.Src, in.Type))
	case codegen.ICdq:
		e.line("\t%s", cdqMnemonic(in.Type))
	case codegen.ICmp:
		if in.Type == codegen.Double {
			e.line("\tucomisd %s, %s", e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
			return
		}
		e.line("\tcmp%s %s, %s", suffix(in.Type), e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
	case codegen.IJmp:
		e.line("\tjmp %s", e.localLabel(in.Label))
	case codegen.IJmpCC:
		e.line("\tj%s %s", condSuffix[in.Cond], e.localLabel(in.Label))
	case codegen.ISetCC:
		e.line("\tset%s %s", condSuffix[in.Cond], e.operand(in.Dst, codegen.Byte))
	case codegen.IPush:
		e.line("\tpushq %s", e.operand(in.Src, codegen.QuadWord))
	case codegen.ICall:
		e.line("\tcall %s", e.calleeLabel(in.Callee))
	case codegen.IRet:
		e.line("\tmovq %%rbp, %%rsp")
		e.line("\tpopq %%rbp")
		e.line("\tret")
	}
}

func unaryMnemonic(op codegen.UnaryOp) string {
	if op == codegen.Not {
		return "not"
	}
	return "neg"
}

func cdqMnemonic(t codegen.AsmType) string {
	if t == codegen.QuadWord {
		return "cqto"
	}
	return "cdq"
}

func (e *emitter) binary(in codegen.Instr) {
	if in.Type == codegen.Double {
		e.line("\t%s %s, %s", doubleMnemonic(in.BinaryOp), e.operand(in.Src, in.Type), e.operand(in.Dst, in.Type))
		return
	}
	src := e.operand(in.Src, in.Type)
	if in.Src.Kind == codegen.OpReg && (in.BinaryOp == codegen.AsmShl || in.BinaryOp == codegen.AsmShr || in.BinaryOp == codegen.AsmSar) {
		// a register shift count is always the byte register %cl
		src = e.operand(in.Src, codegen.Byte)
	}
	e.line("\t%s%s %s, %s", intMnemonic(in.BinaryOp), suffix(in.Type), src, e.operand(in.Dst, in.Type))
}

func doubleMnemonic(op codegen.BinaryOp) string {
	switch op {
	case codegen.AsmAdd:
		return "addsd"
	case codegen.AsmSub:
		return "subsd"
	case codegen.AsmMul:
		return "mulsd"
	case codegen.AsmXor:
		return "xorpd"
	default:
		return "divsd"
	}
}

func intMnemonic(op codegen.BinaryOp) string {
	switch op {
	case codegen.AsmAdd:
		return "add"
	case codegen.AsmSub:
		return "sub"
	case codegen.AsmMul:
		return "imul"
	case codegen.AsmAnd:
		return "and"
	case codegen.AsmOr:
		return "or"
	case codegen.AsmXor:
		return "xor"
	case codegen.AsmShl:
		return "shl"
	case codegen.AsmShr:
		return "shr"
	default:
		return "sar"
	}
}
