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

// Package typecheck is A5: it builds the program's symbol table,
// assigns a type to every expression in place, and inserts CastExpr
// nodes wherever an implicit conversion is required. It also carries
// the A4 switch-case resolver, which needs the switch expression
// already typed to normalize each case value to its integer type. No
// constant folding is done: a case value has to be a literal constant.
package typecheck

import (
	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/types"
)

// Check runs A5 over prog and returns the symbol table it built. Check
// for non-empty errs before trusting the returned table.
func Check(prog *ast.Program, errs *diag.Bag) *types.Table {
	c := &checker{errs: errs, table: types.NewTable()}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.VariableDecl:
			c.fileScopeVar(d)
		case *ast.FunctionDecl:
			c.funcDecl(d)
		}
	}
	return c.table
}

type checker struct {
	errs    *diag.Bag
	table   *types.Table
	retType []*types.Type
}

func typesMatch(a, b *types.Type) bool { return types.Equal(a, b) }

// commonType implements the usual-arithmetic-conversions rule: same
// kind wins trivially; double always wins; otherwise the wider type
// wins, and a tie between signed and unsigned of the same width goes
// to unsigned.
func commonType(a, b *types.Type) *types.Type {
	if a.Kind == b.Kind {
		return a
	}
	if a.IsDouble() {
		return a
	}
	if b.IsDouble() {
		return b
	}
	if a.Size() == b.Size() {
		if a.IsSigned() {
			return b
		}
		return a
	}
	if a.Size() > b.Size() {
		return a
	}
	return b
}

// convertTo wraps *e in a CastExpr targeting t if its current type
// differs, leaving it unchanged otherwise.
func convertTo(e *ast.Expr, t *types.Type) {
	if (*e).GetType() != nil && types.Equal((*e).GetType(), t) {
		return
	}
	cast := &ast.CastExpr{ExprBase: ast.NewExprBase((*e).Pos()), Inner: *e}
	cast.SetType(t)
	*e = cast
}

// ---------------------------------------------------------------------------
// Declarations

func (c *checker) fileScopeVar(decl *ast.VariableDecl) {
	var state types.InitialState
	var initial types.Initial

	switch {
	case decl.Init != nil:
		if k, ok := decl.Init.(*ast.ConstantExpr); ok {
			initial = constantInitial(k, decl.Type)
			state = types.HasInitial
		} else {
			c.errs.Add(diag.Typing, decl.Pos(), "file-scope initializer for %q must be a constant", decl.Name)
		}
	case decl.Storage == ast.StorageExtern:
		state = types.NoInitializer
	default:
		state = types.Tentative
	}

	global := decl.Storage != ast.StorageStatic

	if old, ok := c.table.Get(decl.Name); ok {
		if !typesMatch(old.Type, decl.Type) {
			c.errs.Add(diag.Typing, decl.Pos(), "conflicting types for %q", decl.Name)
		}
		if decl.Storage == ast.StorageExtern {
			global = old.Attrs.Global
		} else if old.Attrs.Global != global {
			c.errs.Add(diag.Typing, decl.Pos(), "conflicting linkage for %q", decl.Name)
		}
		switch {
		case old.Attrs.State == types.HasInitial && state == types.HasInitial:
			c.errs.Add(diag.Typing, decl.Pos(), "redefinition of %q", decl.Name)
		case old.Attrs.State == types.HasInitial:
			state, initial = old.Attrs.State, old.Attrs.Initial
		case state != types.HasInitial && old.Attrs.State == types.Tentative:
			state = types.Tentative
		}
	}

	c.table.Put(&types.Symbol{Name: decl.Name, Type: decl.Type, Attrs: types.Attributes{
		Kind: types.AttrStatic, Global: global, State: state, Initial: initial,
	}})
}

func constantInitial(c *ast.ConstantExpr, t *types.Type) types.Initial {
	if t.IsDouble() {
		return types.Initial{Kind: types.InitDouble, DblVal: c.DoubleValue}
	}
	switch t.Kind {
	case types.Int:
		return types.Initial{Kind: types.InitInt, IntVal: c.IntValue}
	case types.UInt:
		return types.Initial{Kind: types.InitUInt, IntVal: c.IntValue}
	case types.Long:
		return types.Initial{Kind: types.InitLong, IntVal: c.IntValue}
	default:
		return types.Initial{Kind: types.InitULong, IntVal: c.IntValue}
	}
}

func (c *checker) localVar(decl *ast.VariableDecl) {
	switch decl.Storage {
	case ast.StorageExtern:
		if decl.Init != nil {
			c.errs.Add(diag.Typing, decl.Pos(), "initializer on local extern declaration %q", decl.Name)
		}
		if old, ok := c.table.Get(decl.Name); ok {
			if !typesMatch(old.Type, decl.Type) {
				c.errs.Add(diag.Typing, decl.Pos(), "conflicting types for %q", decl.Name)
			}
			return
		}
		c.table.Put(&types.Symbol{Name: decl.Name, Type: decl.Type, Attrs: types.Attributes{
			Kind: types.AttrStatic, Global: true, State: types.NoInitializer,
		}})
	case ast.StorageStatic:
		var initial types.Initial
		if decl.Init != nil {
			k, ok := decl.Init.(*ast.ConstantExpr)
			if !ok {
				c.errs.Add(diag.Typing, decl.Pos(), "non-constant initializer on local static %q", decl.Name)
			} else {
				initial = constantInitial(k, decl.Type)
			}
		} else {
			initial = types.ZeroInitial(decl.Type)
		}
		c.table.Put(&types.Symbol{Name: decl.Name, Type: decl.Type, Attrs: types.Attributes{
			Kind: types.AttrStatic, Global: false, State: types.HasInitial, Initial: initial,
		}})
	default:
		c.table.Put(&types.Symbol{Name: decl.Name, Type: decl.Type, Attrs: types.Attributes{Kind: types.AttrLocal}})
		if decl.Init != nil {
			c.expr(&decl.Init)
			convertTo(&decl.Init, decl.Type)
		}
	}
}

func (c *checker) funcDecl(fn *ast.FunctionDecl) {
	global := fn.Storage != ast.StorageStatic
	defined := fn.Body != nil
	if old, ok := c.table.Get(fn.Name); ok {
		if !typesMatch(old.Type, fn.Type) {
			c.errs.Add(diag.Typing, fn.Pos(), "incompatible declaration of %q", fn.Name)
		}
		if old.Attrs.Defined && fn.Body != nil {
			c.errs.Add(diag.Typing, fn.Pos(), "redefinition of %q", fn.Name)
		}
		if old.Attrs.Global && fn.Storage == ast.StorageStatic {
			c.errs.Add(diag.Typing, fn.Pos(), "static declaration of %q follows non-static", fn.Name)
		}
		defined = defined || old.Attrs.Defined
		global = old.Attrs.Global
	}
	c.table.Put(&types.Symbol{Name: fn.Name, Type: fn.Type, Attrs: types.Attributes{
		Kind: types.AttrFunction, Defined: defined, Global: global,
	}})

	if fn.Body == nil {
		return
	}
	for i, p := range fn.Params {
		c.table.Put(&types.Symbol{Name: p, Type: fn.Type.Params[i], Attrs: types.Attributes{Kind: types.AttrLocal}})
	}
	c.retType = append(c.retType, fn.Type.Return)
	c.block(fn.Body)
	c.retType = c.retType[:len(c.retType)-1]
}

func (c *checker) block(items []ast.BlockItem) {
	for i := range items {
		if items[i].Decl != nil {
			if vd, ok := items[i].Decl.(*ast.VariableDecl); ok {
				c.localVar(vd)
			}
			continue
		}
		c.stmt(items[i].Stmt)
	}
}

// ---------------------------------------------------------------------------
// Statements

func (c *checker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		if s.Value != nil {
			c.expr(&s.Value)
			convertTo(&s.Value, c.retType[len(c.retType)-1])
		}
	case *ast.ExprStmt:
		c.expr(&s.Expr)
	case *ast.NullStmt, *ast.GotoStmt, *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.IfStmt:
		c.expr(&s.Cond)
		c.stmt(s.Then)
		if s.Else != nil {
			c.stmt(s.Else)
		}
	case *ast.LabeledStmt:
		c.stmt(s.Body)
	case *ast.CompoundStmt:
		c.block(s.Items)
	case *ast.WhileStmt:
		c.expr(&s.Cond)
		c.stmt(s.Body)
	case *ast.DoWhileStmt:
		c.stmt(s.Body)
		c.expr(&s.Cond)
	case *ast.ForStmt:
		if s.Init.Decl != nil {
			c.localVar(s.Init.Decl)
		} else if s.Init.Expr != nil {
			c.expr(&s.Init.Expr)
		}
		if s.Cond != nil {
			c.expr(&s.Cond)
		}
		if s.Post != nil {
			c.expr(&s.Post)
		}
		c.stmt(s.Body)
	case *ast.SwitchStmt:
		c.expr(&s.Expr)
		c.stmt(s.Body)
		if s.Expr.GetType() != nil && s.Expr.GetType().IsDouble() {
			c.errs.Add(diag.Typing, s.Pos(), "switch controlling expression must have integer type")
		}
	case *ast.CaseStmt:
		c.stmt(s.Body)
		c.expr(&s.Value)
		if s.Value.GetType() != nil && s.Value.GetType().IsDouble() {
			c.errs.Add(diag.Typing, s.Pos(), "case value must have integer type")
		}
	case *ast.DefaultStmt:
		c.stmt(s.Body)
	default:
		c.errs.Bug(s.Pos(), "typecheck: unhandled statement %T", s)
	}
}

// ---------------------------------------------------------------------------
// Expressions

func (c *checker) expr(e *ast.Expr) {
	switch v := (*e).(type) {
	case *ast.ConstantExpr:
		if v.GetType() == nil {
			c.errs.Add(diag.Typing, v.Pos(), "char, string, and pointer values are not supported")
		}
	case *ast.VariableExpr:
		sym, ok := c.table.Get(v.Name)
		if !ok {
			c.errs.Bug(v.Pos(), "typecheck: %q escaped identifier resolution", v.Name)
		}
		if sym.Type.IsFunction() {
			c.errs.Add(diag.Typing, v.Pos(), "function %q used as a variable", v.Name)
		}
		v.SetType(sym.Type)
	case *ast.CastExpr:
		c.expr(&v.Inner)
	case *ast.UnaryExpr:
		c.expr(&v.Expr)
		if v.Kind == ast.UnaryComplement && v.Expr.GetType() != nil && v.Expr.GetType().IsDouble() {
			c.errs.Add(diag.Typing, v.Pos(), "bitwise complement requires an integer operand")
		}
		if v.Kind == ast.UnaryLogicalNot {
			v.SetType(types.TInt)
		} else {
			v.SetType(v.Expr.GetType())
		}
	case *ast.BinaryExpr:
		c.binary(v)
	case *ast.AssignmentExpr:
		c.assignment(v)
	case *ast.ConditionalExpr:
		c.expr(&v.Cond)
		c.expr(&v.Then)
		c.expr(&v.Else)
		if v.Then.GetType() == nil || v.Else.GetType() == nil {
			return
		}
		ct := commonType(v.Then.GetType(), v.Else.GetType())
		convertTo(&v.Then, ct)
		convertTo(&v.Else, ct)
		v.SetType(ct)
	case *ast.FunctionCallExpr:
		c.call(v)
	default:
		c.errs.Bug((*e).Pos(), "typecheck: unhandled expression %T", v)
	}
}

func isBitwiseOnly(k ast.BinaryKind) bool {
	switch k {
	case ast.BinRem, ast.BinBitOr, ast.BinBitAnd, ast.BinBitXor, ast.BinShl, ast.BinShr:
		return true
	default:
		return false
	}
}

func (c *checker) binary(e *ast.BinaryExpr) {
	c.expr(&e.Left)
	c.expr(&e.Right)
	lt, rt := e.Left.GetType(), e.Right.GetType()
	if lt == nil || rt == nil {
		return
	}

	if isBitwiseOnly(e.Kind) && (lt.IsDouble() || rt.IsDouble()) {
		c.errs.Add(diag.Typing, e.Pos(), "operator operands must have integer type")
	}

	switch e.Kind {
	case ast.BinLogicalAnd, ast.BinLogicalOr:
		e.SetType(types.TInt)
		return
	case ast.BinShl, ast.BinShr:
		// The shift amount is converted to the left operand's type;
		// only the left operand's type determines the result (§9
		// "shift result type").
		convertTo(&e.Right, lt)
		e.SetType(lt)
		return
	}

	ct := commonType(lt, rt)
	convertTo(&e.Left, ct)
	convertTo(&e.Right, ct)
	switch e.Kind {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinRem, ast.BinBitOr, ast.BinBitAnd, ast.BinBitXor:
		e.SetType(ct)
	default:
		e.SetType(types.TInt)
	}
}

func (c *checker) assignment(e *ast.AssignmentExpr) {
	c.expr(&e.LHS)
	c.expr(&e.RHS)
	if e.LHS.GetType() == nil {
		return
	}
	convertTo(&e.RHS, e.LHS.GetType())
	e.SetType(e.LHS.GetType())
}

func (c *checker) call(e *ast.FunctionCallExpr) {
	sym, ok := c.table.Get(e.Callee)
	if !ok {
		c.errs.Add(diag.Typing, e.Pos(), "call to undeclared function %q", e.Callee)
		return
	}
	if !sym.Type.IsFunction() {
		c.errs.Add(diag.Typing, e.Pos(), "%q is not a function", e.Callee)
		return
	}
	if len(sym.Type.Params) != len(e.Args) {
		c.errs.Add(diag.Typing, e.Pos(), "%q called with %d argument(s), expected %d", e.Callee, len(e.Args), len(sym.Type.Params))
	}
	for i := range e.Args {
		c.expr(&e.Args[i])
		if i < len(sym.Type.Params) {
			convertTo(&e.Args[i], sym.Type.Params[i])
		}
	}
	e.SetType(sym.Type.Return)
}

// ---------------------------------------------------------------------------
// A4: switch-case resolution. Runs after Check because it needs the
// switch expression already typed; case values are not folded, so a
// case value that is not a literal constant is rejected.

type switchFrame struct {
	stmt *ast.SwitchStmt
	seen map[int64]bool
}

// ResolveSwitches assigns a jump label to every case/default and
// rejects case values that are not constant, duplicate, or that
// appear outside a switch.
func ResolveSwitches(prog *ast.Program, errs *diag.Bag) {
	r := &switchResolver{errs: errs}
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FunctionDecl); ok && fn.Body != nil {
			r.block(fn.Body)
		}
	}
}

type switchResolver struct {
	errs  *diag.Bag
	stack []*switchFrame
	cnt   int
}

func (r *switchResolver) block(items []ast.BlockItem) {
	for _, it := range items {
		if it.Stmt != nil {
			r.stmt(it.Stmt)
		}
	}
}

func (r *switchResolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.IfStmt:
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}
	case *ast.LabeledStmt:
		r.stmt(s.Body)
	case *ast.CompoundStmt:
		r.block(s.Items)
	case *ast.WhileStmt:
		r.stmt(s.Body)
	case *ast.DoWhileStmt:
		r.stmt(s.Body)
	case *ast.ForStmt:
		r.stmt(s.Body)
	case *ast.SwitchStmt:
		r.stack = append(r.stack, &switchFrame{stmt: s, seen: map[int64]bool{}})
		r.stmt(s.Body)
		r.stack = r.stack[:len(r.stack)-1]
	case *ast.CaseStmt:
		r.caseStmt(s)
	case *ast.DefaultStmt:
		r.defaultStmt(s)
	case *ast.ReturnStmt, *ast.ExprStmt, *ast.NullStmt, *ast.GotoStmt, *ast.BreakStmt, *ast.ContinueStmt:
	default:
		r.errs.Bug(s.Pos(), "typecheck: unhandled statement %T", s)
	}
}

func (r *switchResolver) caseStmt(s *ast.CaseStmt) {
	if len(r.stack) == 0 {
		r.errs.Add(diag.Scoping, s.Pos(), "case statement outside of switch")
		r.stmt(s.Body)
		return
	}
	frame := r.stack[len(r.stack)-1]
	k, ok := s.Value.(*ast.ConstantExpr)
	if !ok {
		r.errs.Add(diag.Typing, s.Pos(), "case value must be a constant expression")
		r.stmt(s.Body)
		return
	}
	switchTy := frame.stmt.Expr.GetType()
	value := normalizeToInt(k, switchTy)
	if frame.seen[value] {
		r.errs.Add(diag.Typing, s.Pos(), "duplicate case value in switch")
		r.stmt(s.Body)
		return
	}
	frame.seen[value] = true
	s.Label = frame.stmt.Label + ".case." + itoa(r.cnt)
	r.cnt++
	frame.stmt.Cases = append(frame.stmt.Cases, s)
	r.stmt(s.Body)
}

func (r *switchResolver) defaultStmt(s *ast.DefaultStmt) {
	if len(r.stack) == 0 {
		r.errs.Add(diag.Scoping, s.Pos(), "default statement outside of switch")
		r.stmt(s.Body)
		return
	}
	frame := r.stack[len(r.stack)-1]
	if frame.stmt.HasDefault {
		r.errs.Add(diag.Typing, s.Pos(), "duplicate default case in switch")
		r.stmt(s.Body)
		return
	}
	frame.stmt.HasDefault = true
	s.Label = frame.stmt.Label + ".default"
	r.stmt(s.Body)
}

// normalizeToInt truncates/extends a constant's bit pattern to fit t,
// the wrap-around conversion the switch expression's type mandates.
func normalizeToInt(c *ast.ConstantExpr, t *types.Type) int64 {
	if t == nil {
		return c.IntValue
	}
	switch t.Size() {
	case 4:
		return int64(int32(c.IntValue))
	default:
		return c.IntValue
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
