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

package ir

import (
	"strconv"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/types"
)

// Generate lowers a fully type-checked program (A1-A5 and the switch
// resolver must already have run) to IR.
func Generate(prog *ast.Program, table *types.Table) *Program {
	g := &generator{table: table}
	p := &Program{}
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok || fn.Body == nil {
			continue
		}
		sym, _ := table.Get(fn.Name)
		p.Functions = append(p.Functions, g.function(fn, sym.Attrs.Global))
	}
	for name, sym := range table.All() {
		if sym.Attrs.Kind != types.AttrStatic || sym.Attrs.State == types.NoInitializer {
			continue
		}
		p.Statics = append(p.Statics, StaticVariable{
			Name:      name,
			Global:    sym.Attrs.Global,
			Type:      sym.Type,
			Initial:   sym.Attrs.Initial,
			Tentative: sym.Attrs.State == types.Tentative,
		})
	}
	return p
}

type generator struct {
	table   *types.Table
	instr   []Instruction
	tmp     int
	lbl     int
	retType *types.Type
}

func (g *generator) emit(i Instruction) { g.instr = append(g.instr, i) }

func (g *generator) temporary(t *types.Type) Value {
	name := "tmp." + strconv.Itoa(g.tmp)
	g.tmp++
	return Var(name, t)
}

func (g *generator) label(prefix string) string {
	s := prefix + "." + strconv.Itoa(g.lbl)
	g.lbl++
	return s
}

func (g *generator) function(fn *ast.FunctionDecl, global bool) Function {
	g.instr = nil
	g.retType = fn.Type.Return
	for _, item := range fn.Body {
		g.blockItem(item)
	}
	g.emit(Return(zeroValue(fn.Type.Return)))
	return Function{Name: fn.Name, Global: global, Params: fn.Params, Instructions: g.instr}
}

func zeroValue(t *types.Type) Value {
	if t.IsDouble() {
		return ConstDouble(0)
	}
	return ConstInt(t, 0)
}

func (g *generator) blockItem(item ast.BlockItem) {
	if item.Decl != nil {
		vd, ok := item.Decl.(*ast.VariableDecl)
		if !ok || vd.Storage != ast.StorageNone {
			// Static locals get their own StaticVariable entry from the
			// symbol table; they are never copy-initialized inline.
			return
		}
		if vd.Init != nil {
			g.emit(Copy(g.expr(vd.Init), Var(vd.Name, vd.Type)))
		}
		return
	}
	g.stmt(item.Stmt)
}

func (g *generator) block(items []ast.BlockItem) {
	for _, it := range items {
		g.blockItem(it)
	}
}

func (g *generator) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		if s.Value != nil {
			g.emit(Return(g.expr(s.Value)))
		} else {
			g.emit(Return(zeroValue(g.retType)))
		}
	case *ast.ExprStmt:
		g.expr(s.Expr)
	case *ast.NullStmt:
	case *ast.IfStmt:
		g.ifStmt(s)
	case *ast.CompoundStmt:
		g.block(s.Items)
	case *ast.WhileStmt:
		g.whileStmt(s)
	case *ast.DoWhileStmt:
		g.doWhileStmt(s)
	case *ast.ForStmt:
		g.forStmt(s)
	case *ast.BreakStmt:
		g.emit(Jump(s.Label + ".break"))
	case *ast.ContinueStmt:
		g.emit(Jump(s.Label + ".continue"))
	case *ast.SwitchStmt:
		g.switchStmt(s)
	case *ast.CaseStmt:
		g.emit(LabelInstr(s.Label))
		g.stmt(s.Body)
	case *ast.DefaultStmt:
		g.emit(LabelInstr(s.Label))
		g.stmt(s.Body)
	case *ast.LabeledStmt:
		g.emit(LabelInstr(s.Name))
		g.stmt(s.Body)
	case *ast.GotoStmt:
		g.emit(Jump(s.Name))
	}
}

func (g *generator) ifStmt(s *ast.IfStmt) {
	cond := g.expr(s.Cond)
	if s.Else == nil {
		end := g.label("if.end")
		g.emit(JumpIfZero(cond, end))
		g.stmt(s.Then)
		g.emit(LabelInstr(end))
		return
	}
	elseL := g.label("if.else")
	end := g.label("if.end")
	g.emit(JumpIfZero(cond, elseL))
	g.stmt(s.Then)
	g.emit(Jump(end))
	g.emit(LabelInstr(elseL))
	g.stmt(s.Else)
	g.emit(LabelInstr(end))
}

func (g *generator) whileStmt(s *ast.WhileStmt) {
	contL := s.Label + ".continue"
	breakL := s.Label + ".break"
	g.emit(LabelInstr(contL))
	cond := g.expr(s.Cond)
	g.emit(JumpIfZero(cond, breakL))
	g.stmt(s.Body)
	g.emit(Jump(contL))
	g.emit(LabelInstr(breakL))
}

func (g *generator) doWhileStmt(s *ast.DoWhileStmt) {
	startL := s.Label + ".start"
	contL := s.Label + ".continue"
	breakL := s.Label + ".break"
	g.emit(LabelInstr(startL))
	g.stmt(s.Body)
	g.emit(LabelInstr(contL))
	cond := g.expr(s.Cond)
	g.emit(JumpIfNotZero(cond, startL))
	g.emit(LabelInstr(breakL))
}

func (g *generator) forStmt(s *ast.ForStmt) {
	if s.Init.Decl != nil {
		g.blockItem(ast.BlockItem{Decl: s.Init.Decl})
	} else if s.Init.Expr != nil {
		g.expr(s.Init.Expr)
	}
	startL := s.Label + ".start"
	contL := s.Label + ".continue"
	breakL := s.Label + ".break"
	g.emit(LabelInstr(startL))
	if s.Cond != nil {
		cond := g.expr(s.Cond)
		g.emit(JumpIfZero(cond, breakL))
	}
	g.stmt(s.Body)
	g.emit(LabelInstr(contL))
	if s.Post != nil {
		g.expr(s.Post)
	}
	g.emit(Jump(startL))
	g.emit(LabelInstr(breakL))
}

func (g *generator) switchStmt(s *ast.SwitchStmt) {
	v := g.expr(s.Expr)
	for _, c := range s.Cases {
		k := c.Value.(*ast.ConstantExpr)
		tmp := g.temporary(types.TInt)
		g.emit(Binary(Eq, v, caseValue(k, v.Type), tmp))
		g.emit(JumpIfNotZero(tmp, c.Label))
	}
	if s.HasDefault {
		g.emit(Jump(s.Label + ".default"))
	} else {
		g.emit(Jump(s.Label + ".break"))
	}
	g.stmt(s.Body)
	g.emit(LabelInstr(s.Label + ".break"))
}

// caseValue renders a case constant at the switch expression's width,
// matching the wrap-around conversion the switch resolver applied
// when it checked for duplicate case values.
func caseValue(k *ast.ConstantExpr, t *types.Type) Value {
	v := k.IntValue
	if t != nil && t.Size() == 4 {
		v = int64(int32(v))
	}
	return ConstInt(t, v)
}

// ---------------------------------------------------------------------------
// Expressions

func (g *generator) expr(e ast.Expr) Value {
	switch e := e.(type) {
	case *ast.ConstantExpr:
		if e.GetType() != nil && e.GetType().IsDouble() {
			return ConstDouble(e.DoubleValue)
		}
		return ConstInt(e.GetType(), e.IntValue)
	case *ast.VariableExpr:
		return Var(e.Name, e.GetType())
	case *ast.CastExpr:
		return g.cast(e)
	case *ast.UnaryExpr:
		return g.unary(e)
	case *ast.BinaryExpr:
		return g.binary(e)
	case *ast.AssignmentExpr:
		return g.assignment(e)
	case *ast.ConditionalExpr:
		return g.conditional(e)
	case *ast.FunctionCallExpr:
		return g.call(e)
	}
	return Value{}
}

// cast picks the conversion instruction from the (source, target)
// type pair; a same-kind cast is a no-op and elided.
func (g *generator) cast(e *ast.CastExpr) Value {
	src := g.expr(e.Inner)
	target := e.GetType()
	srcTy := e.Inner.GetType()
	if srcTy != nil && target != nil && srcTy.Kind == target.Kind {
		return src
	}
	dst := g.temporary(target)

	switch {
	case target.IsDouble() && srcTy.IsSigned():
		g.emit(Convert(IntToDouble, src, dst))
	case target.IsDouble():
		g.emit(Convert(UIntToDouble, src, dst))
	case srcTy.IsDouble() && target.IsSigned():
		g.emit(Convert(DoubleToInt, src, dst))
	case srcTy.IsDouble():
		g.emit(Convert(DoubleToUInt, src, dst))
	case target.Size() < srcTy.Size():
		g.emit(Convert(Truncate, src, dst))
	case target.Size() == srcTy.Size():
		// Same width, signed<->unsigned reinterpretation: a bit-pattern
		// copy, no conversion instruction needed.
		g.emit(Copy(src, dst))
	case srcTy.IsSigned():
		g.emit(Convert(SignExtend, src, dst))
	default:
		g.emit(Convert(ZeroExtend, src, dst))
	}
	return dst
}

func (g *generator) unary(e *ast.UnaryExpr) Value {
	switch e.Kind {
	case ast.UnaryPrefixIncr, ast.UnaryPrefixDecr:
		v := e.Expr.(*ast.VariableExpr)
		dst := Var(v.Name, v.GetType())
		op := Add
		if e.Kind == ast.UnaryPrefixDecr {
			op = Sub
		}
		g.emit(Binary(op, dst, oneValue(v.GetType()), dst))
		return dst
	case ast.UnaryPostfixIncr, ast.UnaryPostfixDecr:
		v := e.Expr.(*ast.VariableExpr)
		dst := Var(v.Name, v.GetType())
		old := g.temporary(v.GetType())
		g.emit(Copy(dst, old))
		op := Add
		if e.Kind == ast.UnaryPostfixDecr {
			op = Sub
		}
		g.emit(Binary(op, dst, oneValue(v.GetType()), dst))
		return old
	default:
		src := g.expr(e.Expr)
		dst := g.temporary(e.GetType())
		g.emit(Unary(unaryOp(e.Kind), src, dst))
		return dst
	}
}

func oneValue(t *types.Type) Value {
	if t.IsDouble() {
		return ConstDouble(1)
	}
	return ConstInt(t, 1)
}

func unaryOp(k ast.UnaryKind) UnaryOp {
	switch k {
	case ast.UnaryNegate:
		return Negate
	case ast.UnaryComplement:
		return Complement
	default:
		return LogicalNot
	}
}

func (g *generator) binary(e *ast.BinaryExpr) Value {
	if e.Kind == ast.BinLogicalAnd {
		return g.logicalAnd(e)
	}
	if e.Kind == ast.BinLogicalOr {
		return g.logicalOr(e)
	}
	l := g.expr(e.Left)
	r := g.expr(e.Right)
	dst := g.temporary(e.GetType())
	g.emit(Binary(binaryOp(e.Kind), l, r, dst))
	return dst
}

func (g *generator) logicalAnd(e *ast.BinaryExpr) Value {
	falseL := g.label("land.false")
	end := g.label("land.end")
	result := g.temporary(types.TInt)
	l := g.expr(e.Left)
	g.emit(JumpIfZero(l, falseL))
	r := g.expr(e.Right)
	g.emit(JumpIfZero(r, falseL))
	g.emit(Copy(ConstInt(types.TInt, 1), result))
	g.emit(Jump(end))
	g.emit(LabelInstr(falseL))
	g.emit(Copy(ConstInt(types.TInt, 0), result))
	g.emit(LabelInstr(end))
	return result
}

func (g *generator) logicalOr(e *ast.BinaryExpr) Value {
	trueL := g.label("lor.true")
	end := g.label("lor.end")
	result := g.temporary(types.TInt)
	l := g.expr(e.Left)
	g.emit(JumpIfNotZero(l, trueL))
	r := g.expr(e.Right)
	g.emit(JumpIfNotZero(r, trueL))
	g.emit(Copy(ConstInt(types.TInt, 0), result))
	g.emit(Jump(end))
	g.emit(LabelInstr(trueL))
	g.emit(Copy(ConstInt(types.TInt, 1), result))
	g.emit(LabelInstr(end))
	return result
}

func binaryOp(k ast.BinaryKind) BinaryOp {
	switch k {
	case ast.BinAdd:
		return Add
	case ast.BinSub:
		return Sub
	case ast.BinMul:
		return Mul
	case ast.BinDiv:
		return Div
	case ast.BinRem:
		return Rem
	case ast.BinShl:
		return Shl
	case ast.BinShr:
		return Shr
	case ast.BinBitAnd:
		return And
	case ast.BinBitOr:
		return Or
	case ast.BinBitXor:
		return Xor
	case ast.BinLess:
		return Lt
	case ast.BinLessEq:
		return Le
	case ast.BinGreater:
		return Gt
	case ast.BinGreaterEq:
		return Ge
	case ast.BinEqual:
		return Eq
	default:
		return Ne
	}
}

// assignment lowers `=` to a Copy and a compound `op=` to the binary
// op applied in place, per the rule that the lvalue is never cast on
// read for a compound assignment.
func (g *generator) assignment(e *ast.AssignmentExpr) Value {
	v := e.LHS.(*ast.VariableExpr)
	dst := Var(v.Name, v.GetType())
	if e.Op == ast.AssignPlain {
		g.emit(Copy(g.expr(e.RHS), dst))
		return dst
	}
	r := g.expr(e.RHS)
	g.emit(Binary(compoundOp(e.Op), dst, r, dst))
	return dst
}

func compoundOp(op ast.AssignOp) BinaryOp {
	switch op {
	case ast.AssignAdd:
		return Add
	case ast.AssignSub:
		return Sub
	case ast.AssignMul:
		return Mul
	case ast.AssignDiv:
		return Div
	case ast.AssignRem:
		return Rem
	case ast.AssignBitAnd:
		return And
	case ast.AssignBitOr:
		return Or
	case ast.AssignBitXor:
		return Xor
	case ast.AssignShl:
		return Shl
	default:
		return Shr
	}
}

func (g *generator) conditional(e *ast.ConditionalExpr) Value {
	cond := g.expr(e.Cond)
	elseL := g.label("cond.else")
	end := g.label("cond.end")
	result := g.temporary(e.GetType())
	g.emit(JumpIfZero(cond, elseL))
	g.emit(Copy(g.expr(e.Then), result))
	g.emit(Jump(end))
	g.emit(LabelInstr(elseL))
	g.emit(Copy(g.expr(e.Else), result))
	g.emit(LabelInstr(end))
	return result
}

func (g *generator) call(e *ast.FunctionCallExpr) Value {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = g.expr(a)
	}
	dst := g.temporary(e.GetType())
	g.emit(Call(e.Callee, args, dst))
	return dst
}
