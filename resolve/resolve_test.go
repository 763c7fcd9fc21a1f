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

package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
	"github.com/cutec-lang/cutec/resolve"
)

func mustParse(t *testing.T, source string) *ast.Program {
	t.Helper()
	var errs diag.Bag
	toks := lexer.Tokens(source, &errs)
	require.True(t, errs.Empty())
	prog := parser.Parse(toks, &errs)
	require.True(t, errs.Empty())
	return prog
}

func TestIdentifiersRenamesShadowedLocals(t *testing.T) {
	prog := mustParse(t, `int main(void){int x=1; {int x=2; x=3;} return x;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty(), "%v", errs.Items())

	fn := prog.Decls[0].(*ast.FunctionDecl)
	outer := fn.Body[0].Decl.(*ast.VariableDecl)
	inner := fn.Body[1].Stmt.(*ast.CompoundStmt).Items[0].Decl.(*ast.VariableDecl)
	require.NotEqual(t, outer.Name, inner.Name, "shadowing decl must get a distinct unique name")
}

func TestIdentifiersFlagsUndeclaredUse(t *testing.T) {
	prog := mustParse(t, `int main(void){return y;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.False(t, errs.Empty(), "expected an undeclared-identifier diagnostic")
}

func TestIdentifiersFlagsDuplicateStaticDeclaration(t *testing.T) {
	prog := mustParse(t, `int main(void){int x=1; static int x=2; return x;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.False(t, errs.Empty(), "redeclaring a name as block-scope static in the same scope must be flagged")
}

func TestIdentifiersFlagsDuplicateDeclaration(t *testing.T) {
	prog := mustParse(t, `int main(void){int x=1; int x=2; return x;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.False(t, errs.Empty(), "expected a duplicate-declaration diagnostic")
}

func TestLoopsAssignDistinctLabels(t *testing.T) {
	prog := mustParse(t, `int main(void){while(1){break;} while(1){break;} return 0;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Loops(prog, &errs)
	require.True(t, errs.Empty())

	fn := prog.Decls[0].(*ast.FunctionDecl)
	first := fn.Body[0].Stmt.(*ast.WhileStmt)
	second := fn.Body[1].Stmt.(*ast.WhileStmt)
	require.NotEmpty(t, first.Label)
	require.NotEmpty(t, second.Label)
	require.NotEqual(t, first.Label, second.Label)
}

func TestLoopsFlagsBreakOutsideLoop(t *testing.T) {
	prog := mustParse(t, `int main(void){break; return 0;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Loops(prog, &errs)
	require.False(t, errs.Empty(), "expected a break-outside-loop diagnostic")
}

func TestLabelsResolvesGoto(t *testing.T) {
	prog := mustParse(t, `int main(void){goto done; done: return 0;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Labels(prog, &errs)
	require.True(t, errs.Empty(), "%v", errs.Items())
}

func TestLabelsFlagsUnresolvedGoto(t *testing.T) {
	prog := mustParse(t, `int main(void){goto nowhere; return 0;}`)
	var errs diag.Bag
	resolve.Identifiers(prog, &errs)
	require.True(t, errs.Empty())
	resolve.Labels(prog, &errs)
	require.False(t, errs.Empty(), "expected an unresolved-label diagnostic")
}
