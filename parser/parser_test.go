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

package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
)

func parseOK(t *testing.T, source string) *ast.Program {
	t.Helper()
	var errs diag.Bag
	toks := lexer.Tokens(source, &errs)
	require.True(t, errs.Empty(), "lex errors: %v", errs.Items())
	prog := parser.Parse(toks, &errs)
	require.True(t, errs.Empty(), "parse errors: %v", errs.Items())
	require.NotNil(t, prog)
	return prog
}

func firstFunc(t *testing.T, prog *ast.Program) *ast.FunctionDecl {
	t.Helper()
	require.NotEmpty(t, prog.Decls)
	fn, ok := prog.Decls[0].(*ast.FunctionDecl)
	require.True(t, ok, "expected a function decl, got %T", prog.Decls[0])
	return fn
}

func TestParseEmptyFunction(t *testing.T) {
	prog := parseOK(t, "int main(void){return 0;}")
	fn := firstFunc(t, prog)
	require.Equal(t, "main", fn.Name)
	require.Len(t, fn.Body, 1)
	_, ok := fn.Body[0].Stmt.(*ast.ReturnStmt)
	require.True(t, ok)
}

func TestParseBinaryPrecedence(t *testing.T) {
	prog := parseOK(t, "int main(void){return 1+2*3;}")
	fn := firstFunc(t, prog)
	ret := fn.Body[0].Stmt.(*ast.ReturnStmt)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok, "expected top-level binary expr, got %T", ret.Value)
	require.Equal(t, ast.BinAdd, bin.Kind)
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok, "expected * to bind tighter than +, got %T", bin.Right)
	require.Equal(t, ast.BinMul, rhs.Kind)
}

func TestParseIfElse(t *testing.T) {
	prog := parseOK(t, "int main(void){if(1) return 1; else return 2;}")
	fn := firstFunc(t, prog)
	ifs, ok := fn.Body[0].Stmt.(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifs.Then)
	require.NotNil(t, ifs.Else)
}

func TestParseForLoop(t *testing.T) {
	prog := parseOK(t, "int main(void){for(int i=0;i<10;i=i+1){}return 0;}")
	fn := firstFunc(t, prog)
	_, ok := fn.Body[0].Stmt.(*ast.ForStmt)
	require.True(t, ok)
}

func TestParseSwitch(t *testing.T) {
	prog := parseOK(t, "int main(void){switch(1){case 1: return 1; default: return 0;}}")
	fn := firstFunc(t, prog)
	sw, ok := fn.Body[0].Stmt.(*ast.SwitchStmt)
	require.True(t, ok)
	require.NotNil(t, sw.Expr)
}

func TestParseSyntaxError(t *testing.T) {
	var errs diag.Bag
	toks := lexer.Tokens("int main(void){return;", &errs)
	require.True(t, errs.Empty())
	parser.Parse(toks, &errs)
	require.False(t, errs.Empty(), "expected a parse diagnostic for the unterminated body")
}
