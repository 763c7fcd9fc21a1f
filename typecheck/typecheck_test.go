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

package typecheck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
	"github.com/cutec-lang/cutec/resolve"
	"github.com/cutec-lang/cutec/types"
	"github.com/cutec-lang/cutec/typecheck"
)

func checkedProgram(t *testing.T, source string) (*ast.Program, *types.Table, *diag.Bag) {
	t.Helper()
	var errs diag.Bag
	toks := lexer.Tokens(source, &errs)
	require.True(t, errs.Empty())
	prog := parser.Parse(toks, &errs)
	require.True(t, errs.Empty())
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Loops(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Labels(prog, &errs)
	require.True(t, errs.Empty())
	table := typecheck.Check(prog, &errs)
	return prog, table, &errs
}

func TestCheckArithmeticPromotesToCommonType(t *testing.T) {
	prog, _, errs := checkedProgram(t, `long f(void){long x=1; int y=2; return x+y;}`)
	require.True(t, errs.Empty(), "%v", errs.Items())

	fn := prog.Decls[0].(*ast.FunctionDecl)
	ret := fn.Body[2].Stmt.(*ast.ReturnStmt)
	bin := ret.Value.(*ast.BinaryExpr)
	require.True(t, bin.GetType().IsLong(), "x+y should promote to long, got %v", bin.GetType())
}

func TestCheckInsertsCastOnReturnConversion(t *testing.T) {
	prog, _, errs := checkedProgram(t, `int f(void){long x=1; return x;}`)
	require.True(t, errs.Empty(), "%v", errs.Items())

	fn := prog.Decls[0].(*ast.FunctionDecl)
	ret := fn.Body[1].Stmt.(*ast.ReturnStmt)
	cast, ok := ret.Value.(*ast.CastExpr)
	require.True(t, ok, "returning a long from an int function must insert an implicit cast, got %T", ret.Value)
	require.True(t, cast.GetType().IsInt())
}

func TestCheckFlagsTypeMismatchInSwitch(t *testing.T) {
	_, _, errs := checkedProgram(t, `int main(void){double d=1.0; switch(d){default: return 0;}}`)
	require.False(t, errs.Empty(), "switching on a double must be a typing error")
}

func TestCheckFlagsConflictingFileScopeDeclarations(t *testing.T) {
	_, _, errs := checkedProgram(t, `int g=1; long g=2; int main(void){return 0;}`)
	require.False(t, errs.Empty(), "conflicting file-scope types for the same name must be flagged")
}

func TestCheckFlagsCallArityMismatch(t *testing.T) {
	_, _, errs := checkedProgram(t, `int f(int a){return a;} int main(void){return f(1,2);}`)
	require.False(t, errs.Empty(), "expected an argument-count mismatch diagnostic")
}

func TestResolveSwitchesNormalizesCaseValues(t *testing.T) {
	prog, _, errs := checkedProgram(t, `int main(void){long x=3; switch(x){case 3: return 1; default: return 0;}}`)
	require.True(t, errs.Empty())
	typecheck.ResolveSwitches(prog, errs)
	require.True(t, errs.Empty(), "%v", errs.Items())

	fn := prog.Decls[0].(*ast.FunctionDecl)
	sw := fn.Body[1].Stmt.(*ast.SwitchStmt)
	require.Len(t, sw.Cases, 1)
	require.NotEmpty(t, sw.Cases[0].Label)
}

func TestResolveSwitchesFlagsDuplicateCase(t *testing.T) {
	prog, _, errs := checkedProgram(t, `int main(void){switch(1){case 1: return 1; case 1: return 2;}}`)
	require.True(t, errs.Empty())
	typecheck.ResolveSwitches(prog, errs)
	require.False(t, errs.Empty(), "duplicate case value must be a diagnostic")
}
