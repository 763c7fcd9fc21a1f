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

package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/codegen"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/emit"
	"github.com/cutec-lang/cutec/ir"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
	"github.com/cutec-lang/cutec/resolve"
	"github.com/cutec-lang/cutec/types"
	"github.com/cutec-lang/cutec/typecheck"
)

// selectProgram runs the whole front end and instruction selection,
// returning the abstract x86-64 tree before ReplacePseudos/FixUp have
// touched it.
func selectProgram(t *testing.T, source string) (*codegen.Program, map[string]codegen.AsmType, *types.Table) {
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
	require.True(t, errs.Empty(), "%v", errs.Items())
	typecheck.ResolveSwitches(prog, &errs)
	require.True(t, errs.Empty(), "%v", errs.Items())
	irProg := ir.Generate(prog, table)
	asmProg, pseudoType := codegen.Select(irProg, table)
	return asmProg, pseudoType, table
}

func findAsmFunc(t *testing.T, prog *codegen.Program, name string) *codegen.Function {
	t.Helper()
	for i := range prog.Functions {
		if prog.Functions[i].Name == name {
			return &prog.Functions[i]
		}
	}
	t.Fatalf("no function named %q", name)
	return nil
}

func TestSelectReturnsImmediate(t *testing.T) {
	prog, _, _ := selectProgram(t, `int main(void){return 14;}`)
	fn := findAsmFunc(t, prog, "main")

	var sawRet bool
	for _, in := range fn.Instructions {
		if in.Kind == codegen.IRet {
			sawRet = true
		}
	}
	require.True(t, sawRet, "expected a return instruction in %+v", fn.Instructions)
}

func TestSelectDoubleEqualityUsesParityCheck(t *testing.T) {
	prog, _, _ := selectProgram(t, `int main(void){double a=1.0; double b=2.0; return a==b;}`)
	fn := findAsmFunc(t, prog, "main")

	var sawSetE, sawSetNP bool
	for _, in := range fn.Instructions {
		if in.Kind == codegen.ISetCC && in.Cond == codegen.CondE {
			sawSetE = true
		}
		if in.Kind == codegen.ISetCC && in.Cond == codegen.CondNP {
			sawSetNP = true
		}
	}
	require.True(t, sawSetE, "NaN-correct double equality must sete")
	require.True(t, sawSetNP, "NaN-correct double equality must setnp to rule out an unordered comparison")
}

func TestFullPipelineEmitsValidLookingAssembly(t *testing.T) {
	prog, pseudoType, _ := selectProgram(t, `int main(void){int x=5; x+=7; return x;}`)
	codegen.ReplacePseudos(prog, pseudoType)
	codegen.FixUp(prog)
	asm := emit.Emit(prog, emit.Linux)

	require.Contains(t, asm, "main:")
	require.Contains(t, asm, "ret")
	require.True(t, strings.Contains(asm, "pushq") || strings.Contains(asm, "push"), "expected a prologue push of %%rbp")
}

func TestReplacePseudosAssignsDistinctStackSlots(t *testing.T) {
	prog, pseudoType, _ := selectProgram(t, `int main(void){int x=1; int y=2; return x+y;}`)
	codegen.ReplacePseudos(prog, pseudoType)
	fn := findAsmFunc(t, prog, "main")

	seen := map[int]bool{}
	for _, in := range fn.Instructions {
		for _, o := range []codegen.Operand{in.Src, in.Dst} {
			if o.Kind == codegen.OpStack {
				seen[o.Offset] = true
			}
		}
	}
	require.GreaterOrEqual(t, len(seen), 2, "expected at least two distinct stack slots for x and y")
	require.Greater(t, fn.StackSize, 0)
}
