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

package codegen

import (
	"math"

	"github.com/cutec-lang/cutec/ir"
	"github.com/cutec-lang/cutec/types"
)

// Select is §4.S: instruction selection. It walks the IR one
// instruction at a time and emits the abstract x86-64 shape for each,
// with no attempt at peephole combination — the fix-up pass (§4.F) is
// where illegal operand shapes get cleaned up, not here.
func Select(prog *ir.Program, table *types.Table) (*Program, map[string]AsmType) {
	s := &selector{table: table, constSeen: make(map[uint64]string), pseudoType: make(map[string]AsmType)}
	out := &Program{}
	for _, fn := range prog.Functions {
		out.Functions = append(out.Functions, s.function(fn))
	}
	for _, sv := range prog.Statics {
		out.Statics = append(out.Statics, s.static(sv))
	}
	out.Constants = s.constants
	return out, s.pseudoType
}

type selector struct {
	table      *types.Table
	instr      []Instr
	constants  []StaticConstant
	constSeen  map[uint64]string
	constCnt   int
	pseudoType map[string]AsmType
	tmpCnt     int
	labelCnt   int
}

// label allocates a jump label for a codegen-internal branch (the
// uint/double conversion corrections below), distinct from any label
// the IR generator produced.
func (s *selector) label(prefix string) string {
	name := "." + prefix + itoaSel(s.labelCnt)
	s.labelCnt++
	return name
}

// tempByte allocates a scratch byte-wide pseudo, replaced to its own
// stack slot downstream exactly like any other pseudo operand.
func (s *selector) tempByte() Operand {
	name := ".eqtmp" + itoaSel(s.tmpCnt)
	s.tmpCnt++
	s.pseudoType[name] = Byte
	return PseudoOp(name)
}

func asmType(t *types.Type) AsmType {
	switch {
	case t == nil:
		return LongWord
	case t.IsDouble():
		return Double
	case t.Size() == 8:
		return QuadWord
	default:
		return LongWord
	}
}

func (s *selector) emit(i Instr) { s.instr = append(s.instr, i) }

func (s *selector) static(sv ir.StaticVariable) StaticVariable {
	out := StaticVariable{Name: sv.Name, Global: sv.Global, Alignment: sv.Type.Size(), Tentative: sv.Tentative}
	if sv.Tentative {
		return out
	}
	out.Bytes = initialBytes(sv.Initial)
	return out
}

func initialBytes(init types.Initial) []byte {
	buf := make([]byte, 8)
	switch init.Kind {
	case types.InitDouble:
		putLE64(buf, math.Float64bits(init.DblVal))
	case types.InitZero:
		return make([]byte, 8)
	default:
		putLE64(buf, uint64(init.IntVal))
	}
	return buf
}

func putLE64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

// doubleConstant interns a double literal into the rodata pool,
// returning its symbol name.
func (s *selector) doubleConstant(v float64) string {
	bits := math.Float64bits(v)
	if name, ok := s.constSeen[bits]; ok {
		return name
	}
	name := ".Ldouble" + itoaSel(s.constCnt)
	s.constCnt++
	buf := make([]byte, 8)
	putLE64(buf, bits)
	s.constants = append(s.constants, StaticConstant{Name: name, Alignment: 8, Bytes: buf})
	s.constSeen[bits] = name
	return name
}

// negZeroConstant returns the 16-byte, 16-aligned -0.0 sign mask that
// xorpd reads: the first 8 bytes carry the bit pattern, the rest are
// zero. It is the only 16-aligned entry in the pool and is kept apart
// from the 8-aligned double literals that doubleConstant interns.
func (s *selector) negZeroConstant() string {
	for _, c := range s.constants {
		if c.Alignment == 16 {
			return c.Name
		}
	}
	name := ".Lnegzero" + itoaSel(s.constCnt)
	s.constCnt++
	buf := make([]byte, 16)
	putLE64(buf, uint64(1)<<63)
	s.constants = append(s.constants, StaticConstant{Name: name, Alignment: 16, Bytes: buf})
	return name
}

func itoaSel(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (s *selector) operand(v ir.Value) Operand {
	t := asmType(v.Type)
	if v.IsConstant {
		if t == Double {
			return DataOp(s.doubleConstant(v.DoubleValue))
		}
		return Imm(v.IntValue)
	}
	if sym, ok := s.table.Get(v.Name); ok && sym.Attrs.Kind == types.AttrStatic {
		return DataOp(v.Name)
	}
	s.pseudoType[v.Name] = t
	return PseudoOp(v.Name)
}

func (s *selector) function(fn ir.Function) Function {
	s.instr = nil
	var intIdx, dblIdx, stackIdx int
	for _, p := range fn.Params {
		sym, _ := s.table.Get(p)
		t := LongWord
		if sym != nil {
			t = asmType(sym.Type)
		}
		s.pseudoType[p] = t
		idx := &intIdx
		if t == Double {
			idx = &dblIdx
		}
		src := paramSource(*idx, stackIdx, t)
		*idx++
		if src.Kind == OpStack {
			stackIdx++
		}
		s.emit(Instr{Kind: IMov, Type: t, Src: src, Dst: PseudoOp(p)})
	}
	for _, in := range fn.Instructions {
		s.inst(in)
	}
	return Function{Name: fn.Name, Global: fn.Global, Instructions: s.instr}
}

// paramSource returns where the System V ABI puts an incoming
// argument, matching the placement call() uses on the caller side:
// classIdx counts the earlier parameters of the same class (integer or
// double) and picks the register; once that class's registers are used
// up, stackIdx counts the earlier stack-passed parameters and picks the
// 8-byte slot above the saved %rbp and the return address.
func paramSource(classIdx, stackIdx int, t AsmType) Operand {
	regs := ArgIntRegs
	if t == Double {
		regs = ArgSSERegs
	}
	if classIdx < len(regs) {
		return RegOp(regs[classIdx])
	}
	return StackOp(16 + 8*stackIdx)
}

func (s *selector) inst(in ir.Instruction) {
	switch in.Op {
	case ir.OpReturn:
		s.ret(in.Src)
	case ir.OpUnary:
		s.unary(in)
	case ir.OpBinary:
		s.binary(in)
	case ir.OpCopy:
		t := asmType(in.Src.Type)
		s.emit(Instr{Kind: IMov, Type: t, Src: s.operand(in.Src), Dst: s.operand(in.Dst)})
	case ir.OpJump:
		s.emit(Instr{Kind: IJmp, Label: in.Label})
	case ir.OpJumpIfZero:
		s.jumpCond(in.Src, in.Label, CondE)
	case ir.OpJumpIfNotZero:
		s.jumpCond(in.Src, in.Label, CondNE)
	case ir.OpLabel:
		s.emit(Instr{Kind: ILabel, Label: in.Label})
	case ir.OpCall:
		s.call(in)
	case ir.OpConvert:
		s.convert(in)
	}
}

func (s *selector) ret(v ir.Value) {
	t := asmType(v.Type)
	dst := RegOp(RAX)
	if t == Double {
		dst = RegOp(XMM0)
	}
	s.emit(Instr{Kind: IMov, Type: t, Src: s.operand(v), Dst: dst})
	s.emit(Instr{Kind: IRet})
}

func (s *selector) jumpCond(v ir.Value, label string, cond Cond) {
	t := asmType(v.Type)
	if t == Double {
		zero := s.doubleConstant(0)
		s.emit(Instr{Kind: ICmp, Type: Double, Src: DataOp(zero), Dst: s.operand(v)})
	} else {
		s.emit(Instr{Kind: ICmp, Type: t, Src: Imm(0), Dst: s.operand(v)})
	}
	s.emit(Instr{Kind: IJmpCC, Cond: cond, Label: label})
}

func (s *selector) unary(in ir.Instruction) {
	t := asmType(in.Src.Type)
	dst := s.operand(in.Dst)
	src := s.operand(in.Src)
	switch in.UnaryOp {
	case ir.Negate:
		if t == Double {
			mask := s.negZeroConstant()
			s.emit(Instr{Kind: IMov, Type: Double, Src: src, Dst: dst})
			s.emit(Instr{Kind: IBinary, Type: Double, BinaryOp: AsmXor, Src: DataOp(mask), Dst: dst})
			return
		}
		s.emit(Instr{Kind: IMov, Type: t, Src: src, Dst: dst})
		s.emit(Instr{Kind: IUnary, Type: t, UnaryOp: Neg, Dst: dst})
	case ir.Complement:
		s.emit(Instr{Kind: IMov, Type: t, Src: src, Dst: dst})
		s.emit(Instr{Kind: IUnary, Type: t, UnaryOp: Not, Dst: dst})
	case ir.LogicalNot:
		s.logicalNot(in.Src, t, dst, in.Dst.Type)
	}
}

func (s *selector) logicalNot(v ir.Value, t AsmType, dst Operand, dstType *types.Type) {
	if t == Double {
		zero := s.doubleConstant(0)
		s.emit(Instr{Kind: ICmp, Type: Double, Src: DataOp(zero), Dst: s.operand(v)})
	} else {
		s.emit(Instr{Kind: ICmp, Type: t, Src: Imm(0), Dst: s.operand(v)})
	}
	s.emit(Instr{Kind: ISetCC, Cond: CondE, Dst: dst})
	dt := asmType(dstType)
	if dt != Byte {
		s.emit(Instr{Kind: IMovZeroExtend, SrcType: Byte, DstType: dt, Src: dst, Dst: dst})
	}
}

// selectDoubleEquality implements the open question in §9: a plain
// sete/setne after ucomisd is wrong for doubles because two NaNs
// compare "not equal" under IEEE 754 but ZF is also clear for an
// ordinary inequality, and an unordered comparison sets the parity
// flag that a naive setcc ignores. == must additionally check
// "ordered" (not parity); != must additionally check "unordered" (is
// parity) so any NaN operand makes != true and == false.
func (s *selector) selectDoubleEquality(op ir.BinaryOp, l, r, dst Operand, dstType AsmType) {
	s.emit(Instr{Kind: ICmp, Type: Double, Src: r, Dst: l})
	a, b := s.tempByte(), s.tempByte()
	if op == ir.Eq {
		s.emit(Instr{Kind: ISetCC, Cond: CondE, Dst: a})
		s.emit(Instr{Kind: ISetCC, Cond: CondNP, Dst: b})
		s.emit(Instr{Kind: IBinary, Type: Byte, BinaryOp: AsmAnd, Src: b, Dst: a})
	} else {
		s.emit(Instr{Kind: ISetCC, Cond: CondNE, Dst: a})
		s.emit(Instr{Kind: ISetCC, Cond: CondP, Dst: b})
		s.emit(Instr{Kind: IBinary, Type: Byte, BinaryOp: AsmOr, Src: b, Dst: a})
	}
	s.emit(Instr{Kind: IMov, Type: Byte, Src: a, Dst: dst})
	if dstType != Byte {
		s.emit(Instr{Kind: IMovZeroExtend, SrcType: Byte, DstType: dstType, Src: dst, Dst: dst})
	}
}

var relational = map[ir.BinaryOp]struct{ signed, unsigned Cond }{
	ir.Eq: {CondE, CondE},
	ir.Ne: {CondNE, CondNE},
	ir.Lt: {CondL, CondB},
	ir.Le: {CondLE, CondBE},
	ir.Gt: {CondG, CondA},
	ir.Ge: {CondGE, CondAE},
}

func (s *selector) binary(in ir.Instruction) {
	t := asmType(in.Left.Type)
	l, r, dst := s.operand(in.Left), s.operand(in.Right), s.operand(in.Dst)

	if t == Double && (in.BinaryOp == ir.Eq || in.BinaryOp == ir.Ne) {
		s.selectDoubleEquality(in.BinaryOp, l, r, dst, asmType(in.Dst.Type))
		return
	}

	if cc, ok := relational[in.BinaryOp]; ok {
		s.emit(Instr{Kind: ICmp, Type: t, Src: r, Dst: l})
		cond := cc.signed
		if t == Double || (in.Left.Type != nil && !in.Left.Type.IsSigned()) {
			cond = cc.unsigned
		}
		s.emit(Instr{Kind: ISetCC, Cond: cond, Dst: dst})
		dt := asmType(in.Dst.Type)
		if dt != Byte {
			s.emit(Instr{Kind: IMovZeroExtend, SrcType: Byte, DstType: dt, Src: dst, Dst: dst})
		}
		return
	}

	switch in.BinaryOp {
	case ir.Div, ir.Rem:
		if t == Double {
			s.emit(Instr{Kind: IMov, Type: Double, Src: l, Dst: dst})
			s.emit(Instr{Kind: IBinary, Type: Double, BinaryOp: AsmDivSentinel, Src: r, Dst: dst})
			return
		}
		signed := in.Left.Type != nil && in.Left.Type.IsSigned()
		s.emit(Instr{Kind: IMov, Type: t, Src: l, Dst: RegOp(RAX)})
		if signed {
			s.emit(Instr{Kind: ICdq, Type: t})
			s.emit(Instr{Kind: IIdiv, Type: t, Src: r})
		} else {
			s.emit(Instr{Kind: IMov, Type: t, Src: Imm(0), Dst: RegOp(RDX)})
			s.emit(Instr{Kind: IDiv, Type: t, Src: r})
		}
		result := RegOp(RAX)
		if in.BinaryOp == ir.Rem {
			result = RegOp(RDX)
		}
		s.emit(Instr{Kind: IMov, Type: t, Src: result, Dst: dst})
	case ir.Shl, ir.Shr:
		op := AsmShl
		if in.BinaryOp == ir.Shr {
			if in.Left.Type != nil && in.Left.Type.IsSigned() {
				op = AsmSar
			} else {
				op = AsmShr
			}
		}
		s.emit(Instr{Kind: IMov, Type: t, Src: l, Dst: dst})
		s.emit(Instr{Kind: IBinary, Type: t, BinaryOp: op, Src: r, Dst: dst})
	default:
		op := arithOp(in.BinaryOp)
		s.emit(Instr{Kind: IMov, Type: t, Src: l, Dst: dst})
		s.emit(Instr{Kind: IBinary, Type: t, BinaryOp: op, Src: r, Dst: dst})
	}
}

// AsmDivSentinel marks a double divide; the fix-up/emit layers render
// it as divsd. Kept distinct from AsmMul's multiply so the emitter's
// mnemonic table stays a flat switch instead of needing a second axis.
const AsmDivSentinel BinaryOp = 100

func arithOp(op ir.BinaryOp) BinaryOp {
	switch op {
	case ir.Add:
		return AsmAdd
	case ir.Sub:
		return AsmSub
	case ir.Mul:
		return AsmMul
	case ir.And:
		return AsmAnd
	case ir.Or:
		return AsmOr
	case ir.Xor:
		return AsmXor
	default:
		return AsmAdd
	}
}

func (s *selector) call(in ir.Instruction) {
	var intArgs, dblArgs, stackArgs []ir.Value
	for _, a := range in.Args {
		if asmType(a.Type) == Double {
			if len(dblArgs) < len(ArgSSERegs) {
				dblArgs = append(dblArgs, a)
			} else {
				stackArgs = append(stackArgs, a)
			}
		} else {
			if len(intArgs) < len(ArgIntRegs) {
				intArgs = append(intArgs, a)
			} else {
				stackArgs = append(stackArgs, a)
			}
		}
	}
	if len(stackArgs)%2 != 0 {
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmSub, Src: Imm(8), Dst: RegOp(RSP)})
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		a := stackArgs[i]
		t := asmType(a.Type)
		src := s.operand(a)
		if src.Kind == OpImm || t == QuadWord || t == Double {
			s.emit(Instr{Kind: IPush, Type: QuadWord, Src: src})
		} else {
			s.emit(Instr{Kind: IMov, Type: LongWord, Src: src, Dst: RegOp(RAX)})
			s.emit(Instr{Kind: IPush, Type: QuadWord, Src: RegOp(RAX)})
		}
	}
	for i, a := range intArgs {
		s.emit(Instr{Kind: IMov, Type: asmType(a.Type), Src: s.operand(a), Dst: RegOp(ArgIntRegs[i])})
	}
	for i, a := range dblArgs {
		s.emit(Instr{Kind: IMov, Type: Double, Src: s.operand(a), Dst: RegOp(ArgSSERegs[i])})
	}
	s.emit(Instr{Kind: ICall, Callee: in.Callee})
	if len(stackArgs) > 0 {
		bytes := int64(8 * len(stackArgs))
		if len(stackArgs)%2 != 0 {
			bytes += 8
		}
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmAdd, Src: Imm(bytes), Dst: RegOp(RSP)})
	}
	dt := asmType(in.Dst.Type)
	if dt == Double {
		s.emit(Instr{Kind: IMov, Type: Double, Src: RegOp(XMM0), Dst: s.operand(in.Dst)})
	} else {
		s.emit(Instr{Kind: IMov, Type: dt, Src: RegOp(RAX), Dst: s.operand(in.Dst)})
	}
}

func (s *selector) convert(in ir.Instruction) {
	src, dst := s.operand(in.Src), s.operand(in.Dst)
	srcT, dstT := asmType(in.Src.Type), asmType(in.Dst.Type)
	switch in.ConvertOp {
	case ir.SignExtend:
		s.emit(Instr{Kind: IMovsx, SrcType: srcT, DstType: dstT, Src: src, Dst: dst})
	case ir.Truncate:
		s.emit(Instr{Kind: IMov, Type: dstT, Src: src, Dst: dst})
	case ir.ZeroExtend:
		s.emit(Instr{Kind: IMovZeroExtend, SrcType: srcT, DstType: dstT, Src: src, Dst: dst})
	case ir.IntToDouble:
		s.emit(Instr{Kind: ICvtsi2sd, Type: srcT, Src: src, Dst: dst})
	case ir.UIntToDouble:
		if srcT != QuadWord {
			// A 32-bit unsigned value always fits in a signed int64 once
			// zero-extended, so cvtsi2sd on the widened value is exact.
			s.emit(Instr{Kind: IMovZeroExtend, SrcType: srcT, DstType: QuadWord, Src: src, Dst: RegOp(RAX)})
			s.emit(Instr{Kind: ICvtsi2sd, Type: QuadWord, Src: RegOp(RAX), Dst: dst})
			return
		}
		// A ulong's top bit may be set, which cvtsi2sd would read as
		// negative. Per original_source/Codegen.h's convert_uint_to_double:
		// if the value still fits in a signed long, convert directly;
		// otherwise halve it (rounding to odd to avoid double rounding),
		// convert, and double the result.
		outOfRange := s.label("ulong_oor")
		end := s.label("ulong_end")
		s.emit(Instr{Kind: ICmp, Type: QuadWord, Src: Imm(0), Dst: src})
		s.emit(Instr{Kind: IJmpCC, Cond: CondL, Label: outOfRange})
		s.emit(Instr{Kind: ICvtsi2sd, Type: QuadWord, Src: src, Dst: dst})
		s.emit(Instr{Kind: IJmp, Label: end})
		s.emit(Instr{Kind: ILabel, Label: outOfRange})
		s.emit(Instr{Kind: IMov, Type: QuadWord, Src: src, Dst: RegOp(RAX)})
		s.emit(Instr{Kind: IMov, Type: QuadWord, Src: RegOp(RAX), Dst: RegOp(RDX)})
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmShr, Src: Imm(1), Dst: RegOp(RDX)})
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmAnd, Src: Imm(1), Dst: RegOp(RAX)})
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmOr, Src: RegOp(RAX), Dst: RegOp(RDX)})
		s.emit(Instr{Kind: ICvtsi2sd, Type: QuadWord, Src: RegOp(RDX), Dst: dst})
		s.emit(Instr{Kind: IBinary, Type: Double, BinaryOp: AsmAdd, Src: dst, Dst: dst})
		s.emit(Instr{Kind: ILabel, Label: end})
	case ir.DoubleToInt:
		s.emit(Instr{Kind: ICvttsd2si, Type: dstT, Src: src, Dst: dst})
	case ir.DoubleToUInt:
		if dstT == LongWord {
			// Converting to unsigned int: convert to unsigned long and
			// truncate, since every uint fits in the signed range cvttsd2si
			// already handles correctly.
			s.emit(Instr{Kind: ICvttsd2si, Type: QuadWord, Src: src, Dst: RegOp(RAX)})
			s.emit(Instr{Kind: IMov, Type: LongWord, Src: RegOp(RAX), Dst: dst})
			return
		}
		// Converting to unsigned long: check whether the value fits in a
		// signed long first. If not, subtract 2^63 before the (signed)
		// conversion and add INT64_MIN's bit pattern back afterward, per
		// original_source/Codegen.h's convert_double_to_uint.
		maxLong := s.doubleConstant(9223372036854775808.0) // 2^63
		outOfRange := s.label("uint_oor")
		end := s.label("uint_end")
		s.emit(Instr{Kind: ICmp, Type: Double, Src: DataOp(maxLong), Dst: src})
		s.emit(Instr{Kind: IJmpCC, Cond: CondAE, Label: outOfRange})
		s.emit(Instr{Kind: ICvttsd2si, Type: QuadWord, Src: src, Dst: dst})
		s.emit(Instr{Kind: IJmp, Label: end})
		s.emit(Instr{Kind: ILabel, Label: outOfRange})
		s.emit(Instr{Kind: IMov, Type: Double, Src: src, Dst: RegOp(XMM1)})
		s.emit(Instr{Kind: IBinary, Type: Double, BinaryOp: AsmSub, Src: DataOp(maxLong), Dst: RegOp(XMM1)})
		s.emit(Instr{Kind: ICvttsd2si, Type: QuadWord, Src: RegOp(XMM1), Dst: dst})
		s.emit(Instr{Kind: IMov, Type: QuadWord, Src: Imm(math.MinInt64), Dst: RegOp(RDX)})
		s.emit(Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmAdd, Src: RegOp(RDX), Dst: dst})
		s.emit(Instr{Kind: ILabel, Label: end})
	}
}
