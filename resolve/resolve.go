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

// Package resolve runs the three pre-type-checking analysis passes
// (A1 identifier resolution, A2 loop/switch labeling, A3 goto/label
// resolution), each walking the whole program once and reporting into
// a diag.Bag instead of stopping at the first problem.
package resolve

import (
	"strconv"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/token"
)

// Identifiers renames every block-scope variable to a globally unique
// name (so later stages never need scope lookups) and flags uses of
// undeclared variables and non-lvalue assignment/increment targets.
// File-scope declarations keep their source name: they have external
// or internal linkage and must stay addressable by that name through
// to the emitter.
func Identifiers(prog *ast.Program, errs *diag.Bag) {
	r := &identResolver{errs: errs, fileScope: map[string]string{}}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.VariableDecl:
			r.fileScope[d.Name] = d.Name
		case *ast.FunctionDecl:
			r.fileScope[d.Name] = d.Name
		}
	}
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok || fn.Body == nil {
			continue
		}
		r.scopes = []map[string]string{{}}
		for i, p := range fn.Params {
			fn.Params[i] = r.declare(fn.Pos(), p)
		}
		for i := range fn.Body {
			r.item(&fn.Body[i])
		}
	}
}

type identResolver struct {
	errs      *diag.Bag
	fileScope map[string]string
	scopes    []map[string]string
	cnt       int
}

func (r *identResolver) checkDuplicate(pos token.Pos, name string) {
	top := r.scopes[len(r.scopes)-1]
	if _, dup := top[name]; dup {
		r.errs.Add(diag.Scoping, pos, "variable %q already declared in this scope", name)
	}
}

func (r *identResolver) declare(pos token.Pos, name string) string {
	r.checkDuplicate(pos, name)
	top := r.scopes[len(r.scopes)-1]
	unique := name + "." + strconv.Itoa(r.cnt)
	r.cnt++
	top[name] = unique
	return unique
}

func (r *identResolver) resolveName(name string) (string, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if u, ok := r.scopes[i][name]; ok {
			return u, true
		}
	}
	if u, ok := r.fileScope[name]; ok {
		return u, true
	}
	return "", false
}

func (r *identResolver) block(items []ast.BlockItem) {
	r.scopes = append(r.scopes, map[string]string{})
	for i := range items {
		r.item(&items[i])
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *identResolver) item(it *ast.BlockItem) {
	if it.Decl != nil {
		vd, ok := it.Decl.(*ast.VariableDecl)
		if !ok {
			return
		}
		if vd.Storage == ast.StorageStatic {
			// A block-scope static keeps a single storage location for
			// the whole program run, so it is named (not renamed into
			// the per-activation scheme) and registered so later reads
			// within this scope still find it.
			r.checkDuplicate(vd.Pos(), vd.Name)
			top := r.scopes[len(r.scopes)-1]
			linked := vd.Name + ".static." + strconv.Itoa(r.cnt)
			r.cnt++
			top[vd.Name] = linked
			vd.Name = linked
			if vd.Init != nil {
				r.expr(vd.Init)
			}
			return
		}
		if vd.Init != nil {
			r.expr(vd.Init)
		}
		vd.Name = r.declare(vd.Pos(), vd.Name)
		return
	}
	r.stmt(it.Stmt)
}

func (r *identResolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		if s.Value != nil {
			r.expr(s.Value)
		}
	case *ast.ExprStmt:
		r.expr(s.Expr)
	case *ast.NullStmt:
	case *ast.IfStmt:
		r.expr(s.Cond)
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}
	case *ast.CompoundStmt:
		r.block(s.Items)
	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.stmt(s.Body)
	case *ast.DoWhileStmt:
		r.stmt(s.Body)
		r.expr(s.Cond)
	case *ast.ForStmt:
		r.scopes = append(r.scopes, map[string]string{})
		if s.Init.Decl != nil {
			item := ast.BlockItem{Decl: s.Init.Decl}
			r.item(&item)
		} else if s.Init.Expr != nil {
			r.expr(s.Init.Expr)
		}
		if s.Cond != nil {
			r.expr(s.Cond)
		}
		if s.Post != nil {
			r.expr(s.Post)
		}
		r.stmt(s.Body)
		r.scopes = r.scopes[:len(r.scopes)-1]
	case *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.SwitchStmt:
		r.expr(s.Expr)
		r.stmt(s.Body)
	case *ast.CaseStmt:
		r.expr(s.Value)
		r.stmt(s.Body)
	case *ast.DefaultStmt:
		r.stmt(s.Body)
	case *ast.LabeledStmt:
		r.stmt(s.Body)
	case *ast.GotoStmt:
	default:
		r.errs.Bug(s.Pos(), "resolve: unhandled statement %T", s)
	}
}

func (r *identResolver) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.ConstantExpr:
	case *ast.VariableExpr:
		if u, ok := r.resolveName(e.Name); ok {
			e.Name = u
		} else {
			r.errs.Add(diag.Scoping, e.Pos(), "undeclared variable %q", e.Name)
		}
	case *ast.UnaryExpr:
		if isIncrDecr(e.Kind) {
			if _, ok := e.Expr.(*ast.VariableExpr); !ok {
				r.errs.Add(diag.Scoping, e.Pos(), "increment/decrement requires an lvalue")
			}
		}
		r.expr(e.Expr)
	case *ast.BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *ast.AssignmentExpr:
		if _, ok := e.LHS.(*ast.VariableExpr); !ok {
			r.errs.Add(diag.Scoping, e.Pos(), "assignment requires an lvalue")
		}
		r.expr(e.LHS)
		r.expr(e.RHS)
	case *ast.ConditionalExpr:
		r.expr(e.Cond)
		r.expr(e.Then)
		r.expr(e.Else)
	case *ast.FunctionCallExpr:
		for _, a := range e.Args {
			r.expr(a)
		}
	case *ast.CastExpr:
		r.expr(e.Inner)
	default:
		r.errs.Bug(e.Pos(), "resolve: unhandled expression %T", e)
	}
}

func isIncrDecr(k ast.UnaryKind) bool {
	switch k {
	case ast.UnaryPrefixIncr, ast.UnaryPrefixDecr, ast.UnaryPostfixIncr, ast.UnaryPostfixDecr:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// A2: loop/switch labeling

type loopCtx struct {
	isSwitch bool
	label    string
}

// Loops assigns a unique label to every loop and switch statement and
// resolves break/continue to the label of their nearest enclosing
// construct (continue skips switch frames, since `continue` inside a
// switch targets the enclosing loop).
func Loops(prog *ast.Program, errs *diag.Bag) {
	l := &loopLabeler{errs: errs}
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		l.stack = nil
		l.block(fn.Body)
	}
}

type loopLabeler struct {
	errs  *diag.Bag
	stack []loopCtx
	cnt   int
}

func (l *loopLabeler) block(items []ast.BlockItem) {
	for _, it := range items {
		if it.Stmt != nil {
			l.stmt(it.Stmt)
		}
	}
}

func (l *loopLabeler) label(prefix string) string {
	s := prefix + "." + strconv.Itoa(l.cnt)
	l.cnt++
	return s
}

func (l *loopLabeler) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.IfStmt:
		l.stmt(s.Then)
		if s.Else != nil {
			l.stmt(s.Else)
		}
	case *ast.LabeledStmt:
		l.stmt(s.Body)
	case *ast.CompoundStmt:
		l.block(s.Items)
	case *ast.WhileStmt:
		s.Label = l.label("loop")
		l.stack = append(l.stack, loopCtx{label: s.Label})
		l.stmt(s.Body)
		l.stack = l.stack[:len(l.stack)-1]
	case *ast.DoWhileStmt:
		s.Label = l.label("loop")
		l.stack = append(l.stack, loopCtx{label: s.Label})
		l.stmt(s.Body)
		l.stack = l.stack[:len(l.stack)-1]
	case *ast.ForStmt:
		s.Label = l.label("loop")
		l.stack = append(l.stack, loopCtx{label: s.Label})
		l.stmt(s.Body)
		l.stack = l.stack[:len(l.stack)-1]
	case *ast.BreakStmt:
		if len(l.stack) == 0 {
			l.errs.Add(diag.Scoping, s.Pos(), "break statement outside of loop or switch")
			return
		}
		s.Label = l.stack[len(l.stack)-1].label
	case *ast.ContinueStmt:
		for i := len(l.stack) - 1; i >= 0; i-- {
			if !l.stack[i].isSwitch {
				s.Label = l.stack[i].label
				return
			}
		}
		l.errs.Add(diag.Scoping, s.Pos(), "continue statement outside of loop")
	case *ast.SwitchStmt:
		s.Label = l.label("switch")
		l.stack = append(l.stack, loopCtx{isSwitch: true, label: s.Label})
		l.stmt(s.Body)
		l.stack = l.stack[:len(l.stack)-1]
	case *ast.CaseStmt:
		l.stmt(s.Body)
	case *ast.DefaultStmt:
		l.stmt(s.Body)
	case *ast.ReturnStmt, *ast.ExprStmt, *ast.NullStmt, *ast.GotoStmt:
	default:
		l.errs.Bug(s.Pos(), "resolve: unhandled statement %T", s)
	}
}

// ---------------------------------------------------------------------------
// A3: goto/label resolution

// Labels checks that every goto targets a label reachable somewhere
// in the same function and that no function declares the same label
// name twice. Forward references are legal, so the whole function is
// scanned before any goto is validated.
func Labels(prog *ast.Program, errs *diag.Bag) {
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		lr := &labelResolver{errs: errs, declared: map[string]bool{}, used: map[string]token.Pos{}}
		lr.block(fn.Body)
		for name, pos := range lr.used {
			if !lr.declared[name] {
				errs.Add(diag.Scoping, pos, "label %q could not be resolved", name)
			}
		}
	}
}

type labelResolver struct {
	errs     *diag.Bag
	declared map[string]bool
	used     map[string]token.Pos
}

func (lr *labelResolver) block(items []ast.BlockItem) {
	for _, it := range items {
		if it.Stmt != nil {
			lr.stmt(it.Stmt)
		}
	}
}

func (lr *labelResolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.GotoStmt:
		if _, ok := lr.used[s.Name]; !ok {
			lr.used[s.Name] = s.Pos()
		}
	case *ast.LabeledStmt:
		if lr.declared[s.Name] {
			lr.errs.Add(diag.Scoping, s.Pos(), "label %q already in use", s.Name)
		}
		lr.declared[s.Name] = true
		lr.stmt(s.Body)
	case *ast.IfStmt:
		lr.stmt(s.Then)
		if s.Else != nil {
			lr.stmt(s.Else)
		}
	case *ast.CompoundStmt:
		lr.block(s.Items)
	case *ast.WhileStmt:
		lr.stmt(s.Body)
	case *ast.DoWhileStmt:
		lr.stmt(s.Body)
	case *ast.ForStmt:
		lr.stmt(s.Body)
	case *ast.SwitchStmt:
		lr.stmt(s.Body)
	case *ast.CaseStmt:
		lr.stmt(s.Body)
	case *ast.DefaultStmt:
		lr.stmt(s.Body)
	case *ast.ReturnStmt, *ast.ExprStmt, *ast.NullStmt, *ast.BreakStmt, *ast.ContinueStmt:
	default:
		lr.errs.Bug(s.Pos(), "resolve: unhandled statement %T", s)
	}
}
