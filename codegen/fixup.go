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

// FixUp is §4.F: legalize whatever shape §4.S left that real hardware
// rejects — two memory operands, an immediate where only a register
// fits, an out-of-range 64-bit immediate moved straight into memory —
// using a fixed scratch set (%r10/%r11 for integers, %xmm14/%xmm15 for
// doubles, %cl for shift counts) instead of any general allocator.
func FixUp(prog *Program) {
	for i := range prog.Functions {
		prog.Functions[i].Instructions = fixupFunction(prog.Functions[i])
	}
}

func fixupFunction(fn Function) []Instr {
	out := []Instr{
		{Kind: IPush, Type: QuadWord, Src: RegOp(RBP)},
		{Kind: IMov, Type: QuadWord, Src: RegOp(RSP), Dst: RegOp(RBP)},
	}
	if fn.StackSize > 0 {
		out = append(out, Instr{Kind: IBinary, Type: QuadWord, BinaryOp: AsmSub, Src: Imm(int64(fn.StackSize)), Dst: RegOp(RSP)})
	}
	for _, in := range fn.Instructions {
		out = append(out, fixupInstr(in)...)
	}
	return out
}

func scratchInt(t AsmType, which int) Operand {
	r := R10
	if which == 1 {
		r = R11
	}
	return RegOp(r)
}

func scratchSSE(which int) Operand {
	r := XMM14
	if which == 1 {
		r = XMM15
	}
	return RegOp(r)
}

func fitsInt32(v int64) bool { return v >= -2147483648 && v <= 2147483647 }

func fixupInstr(in Instr) []Instr {
	switch in.Kind {
	case IMov:
		return fixupMov(in)
	case IMovsx:
		return fixupMovsx(in)
	case IMovZeroExtend:
		return fixupMovZeroExtend(in)
	case ICmp:
		return fixupCmp(in)
	case IBinary:
		return fixupBinary(in)
	case IIdiv, IDiv:
		return fixupDiv(in)
	case ICvtsi2sd:
		return fixupCvtsi2sd(in)
	case ICvttsd2si:
		return fixupCvttsd2si(in)
	case IPush:
		return fixupPush(in)
	default:
		return []Instr{in}
	}
}

func fixupMov(in Instr) []Instr {
	if in.Type == LongWord && in.Src.Kind == OpImm {
		in.Src.Imm &= 0xffffffff
	}
	if in.Type == Double {
		if in.Src.IsMemory() && in.Dst.IsMemory() {
			scratch := scratchSSE(0)
			return []Instr{
				{Kind: IMov, Type: Double, Src: in.Src, Dst: scratch},
				{Kind: IMov, Type: Double, Src: scratch, Dst: in.Dst},
			}
		}
		return []Instr{in}
	}
	if in.Src.IsMemory() && in.Dst.IsMemory() {
		scratch := scratchInt(in.Type, 0)
		return []Instr{
			{Kind: IMov, Type: in.Type, Src: in.Src, Dst: scratch},
			{Kind: IMov, Type: in.Type, Src: scratch, Dst: in.Dst},
		}
	}
	if in.Src.Kind == OpImm && in.Type == QuadWord && !fitsInt32(in.Src.Imm) && in.Dst.IsMemory() {
		scratch := scratchInt(in.Type, 0)
		return []Instr{
			{Kind: IMov, Type: QuadWord, Src: in.Src, Dst: scratch},
			{Kind: IMov, Type: QuadWord, Src: scratch, Dst: in.Dst},
		}
	}
	return []Instr{in}
}

func fixupMovsx(in Instr) []Instr {
	var pre, post []Instr
	src, dst := in.Src, in.Dst
	if src.Kind == OpImm {
		scratch := scratchInt(in.SrcType, 0)
		pre = append(pre, Instr{Kind: IMov, Type: in.SrcType, Src: src, Dst: scratch})
		src = scratch
	}
	if dst.IsMemory() {
		scratch := scratchInt(in.DstType, 1)
		post = append(post, Instr{Kind: IMov, Type: in.DstType, Src: scratch, Dst: dst})
		dst = scratch
	}
	out := append(pre, Instr{Kind: IMovsx, SrcType: in.SrcType, DstType: in.DstType, Src: src, Dst: dst})
	return append(out, post...)
}

func fixupMovZeroExtend(in Instr) []Instr {
	// movzbl/movzbq have no memory-destination form either; same shape
	// as Movsx.
	if !in.Dst.IsMemory() && in.SrcType != LongWord {
		return []Instr{in}
	}
	if in.SrcType == LongWord {
		// widening from a 32-bit value: plain mov already zero-extends
		// into the full 64-bit register, so this degrades to a normal
		// move instead of needing movzx. A memory destination gets the
		// 32-bit move into %r11 first and then an 8-byte store, so its
		// upper half is zeroed too.
		if in.Dst.IsMemory() {
			scratch := scratchInt(QuadWord, 1)
			mov := fixupMov(Instr{Kind: IMov, Type: LongWord, Src: in.Src, Dst: scratch})
			return append(mov, Instr{Kind: IMov, Type: QuadWord, Src: scratch, Dst: in.Dst})
		}
		return fixupMov(Instr{Kind: IMov, Type: LongWord, Src: in.Src, Dst: in.Dst})
	}
	if in.Dst.IsMemory() {
		scratch := scratchInt(in.DstType, 1)
		return []Instr{
			{Kind: IMovZeroExtend, SrcType: in.SrcType, DstType: in.DstType, Src: in.Src, Dst: scratch},
			{Kind: IMov, Type: in.DstType, Src: scratch, Dst: in.Dst},
		}
	}
	return []Instr{in}
}

func fixupCmp(in Instr) []Instr {
	if in.Type == Double {
		if in.Dst.Kind != OpReg {
			scratch := scratchSSE(0)
			return []Instr{
				{Kind: IMov, Type: Double, Src: in.Dst, Dst: scratch},
				{Kind: ICmp, Type: Double, Src: in.Src, Dst: scratch},
			}
		}
		return []Instr{in}
	}
	var pre []Instr
	src, dst := in.Src, in.Dst
	if src.IsMemory() && dst.IsMemory() {
		scratch := scratchInt(in.Type, 0)
		pre = append(pre, Instr{Kind: IMov, Type: in.Type, Src: src, Dst: scratch})
		src = scratch
	}
	if src.Kind == OpImm && in.Type == QuadWord && !fitsInt32(src.Imm) {
		scratch := scratchInt(in.Type, 0)
		pre = append(pre, Instr{Kind: IMov, Type: QuadWord, Src: src, Dst: scratch})
		src = scratch
	}
	if dst.Kind == OpImm {
		scratch := scratchInt(in.Type, 1)
		pre = append(pre, Instr{Kind: IMov, Type: in.Type, Src: dst, Dst: scratch})
		dst = scratch
	}
	return append(pre, Instr{Kind: ICmp, Type: in.Type, Src: src, Dst: dst})
}

func fixupBinary(in Instr) []Instr {
	if in.Type == Double {
		if in.Dst.Kind != OpReg {
			scratch := scratchSSE(0)
			return []Instr{
				{Kind: IMov, Type: Double, Src: in.Dst, Dst: scratch},
				{Kind: IBinary, Type: Double, BinaryOp: in.BinaryOp, Src: in.Src, Dst: scratch},
				{Kind: IMov, Type: Double, Src: scratch, Dst: in.Dst},
			}
		}
		return []Instr{in}
	}
	if in.BinaryOp == AsmShl || in.BinaryOp == AsmShr || in.BinaryOp == AsmSar {
		if in.Src.Kind == OpImm {
			return []Instr{in}
		}
		return []Instr{
			{Kind: IMov, Type: LongWord, Src: in.Src, Dst: RegOp(RCX)},
			{Kind: IBinary, Type: in.Type, BinaryOp: in.BinaryOp, Src: RegOp(RCX), Dst: in.Dst},
		}
	}
	var pre []Instr
	if in.Src.Kind == OpImm && in.Type == QuadWord && !fitsInt32(in.Src.Imm) {
		scratch := scratchInt(in.Type, 0)
		pre = []Instr{{Kind: IMov, Type: QuadWord, Src: in.Src, Dst: scratch}}
		in.Src = scratch
	}
	if in.BinaryOp == AsmMul {
		if in.Dst.IsMemory() {
			scratch := scratchInt(in.Type, 1)
			return append(pre,
				Instr{Kind: IMov, Type: in.Type, Src: in.Dst, Dst: scratch},
				Instr{Kind: IBinary, Type: in.Type, BinaryOp: AsmMul, Src: in.Src, Dst: scratch},
				Instr{Kind: IMov, Type: in.Type, Src: scratch, Dst: in.Dst},
			)
		}
		return append(pre, in)
	}
	if in.Src.IsMemory() && in.Dst.IsMemory() {
		scratch := scratchInt(in.Type, 0)
		return []Instr{
			{Kind: IMov, Type: in.Type, Src: in.Src, Dst: scratch},
			{Kind: IBinary, Type: in.Type, BinaryOp: in.BinaryOp, Src: scratch, Dst: in.Dst},
		}
	}
	return append(pre, in)
}

func fixupDiv(in Instr) []Instr {
	if in.Src.Kind == OpImm {
		scratch := scratchInt(in.Type, 0)
		return []Instr{
			{Kind: IMov, Type: in.Type, Src: in.Src, Dst: scratch},
			{Kind: in.Kind, Type: in.Type, Src: scratch},
		}
	}
	return []Instr{in}
}

func fixupCvtsi2sd(in Instr) []Instr {
	var pre []Instr
	src := in.Src
	if src.Kind == OpImm {
		scratch := scratchInt(in.Type, 0)
		pre = append(pre, Instr{Kind: IMov, Type: in.Type, Src: src, Dst: scratch})
		src = scratch
	}
	if in.Dst.IsMemory() {
		scratch := scratchSSE(0)
		pre = append(pre, Instr{Kind: ICvtsi2sd, Type: in.Type, Src: src, Dst: scratch})
		pre = append(pre, Instr{Kind: IMov, Type: Double, Src: scratch, Dst: in.Dst})
		return pre
	}
	return append(pre, Instr{Kind: ICvtsi2sd, Type: in.Type, Src: src, Dst: in.Dst})
}

func fixupCvttsd2si(in Instr) []Instr {
	if in.Dst.IsMemory() {
		scratch := scratchInt(in.Type, 0)
		return []Instr{
			{Kind: ICvttsd2si, Type: in.Type, Src: in.Src, Dst: scratch},
			{Kind: IMov, Type: in.Type, Src: scratch, Dst: in.Dst},
		}
	}
	return []Instr{in}
}

func fixupPush(in Instr) []Instr {
	if in.Src.Kind == OpImm && !fitsInt32(in.Src.Imm) {
		scratch := scratchInt(QuadWord, 0)
		return []Instr{
			{Kind: IMov, Type: QuadWord, Src: in.Src, Dst: scratch},
			{Kind: IPush, Type: QuadWord, Src: scratch},
		}
	}
	return []Instr{in}
}
