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

package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/ir"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
	"github.com/cutec-lang/cutec/resolve"
	"github.com/cutec-lang/cutec/typecheck"
	"github.com/cutec-lang/cutec/types"
)

func generate(t *testing.T, source string) *ir.Program {
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
	return ir.Generate(prog, table)
}

func findFunc(t *testing.T, prog *ir.Program, name string) *ir.Function {
	t.Helper()
	for i := range prog.Functions {
		if prog.Functions[i].Name == name {
			return &prog.Functions[i]
		}
	}
	t.Fatalf("no function named %q in generated program", name)
	return nil
}

func TestGenerateReturnConstant(t *testing.T) {
	prog := generate(t, `int main(void){return 14;}`)
	fn := findFunc(t, prog, "main")
	require.NotEmpty(t, fn.Instructions)
	// the generator appends a trailing Return(0) to every function, so
	// the explicit return is the first instruction, not the last
	first := fn.Instructions[0]
	require.Equal(t, ir.OpReturn, first.Op)
	require.True(t, first.Src.IsConstant)
	require.Equal(t, int64(14), first.Src.IntValue)
}

func TestGenerateBinaryProducesAddInstruction(t *testing.T) {
	prog := generate(t, `int main(void){return 2+3;}`)
	fn := findFunc(t, prog, "main")
	var found bool
	for _, in := range fn.Instructions {
		if in.Op == ir.OpBinary && in.BinaryOp == ir.Add {
			found = true
		}
	}
	require.True(t, found, "expected an Add instruction in %+v", fn.Instructions)
}

func TestGenerateIfEmitsConditionalJump(t *testing.T) {
	prog := generate(t, `int main(void){if(1){return 1;} return 0;}`)
	fn := findFunc(t, prog, "main")
	var sawJump bool
	for _, in := range fn.Instructions {
		if in.Op == ir.OpJumpIfZero {
			sawJump = true
		}
	}
	require.True(t, sawJump, "expected a JumpIfZero instruction for the if condition")
}

func TestGenerateFileScopeStaticRecorded(t *testing.T) {
	prog := generate(t, `int g=5; int main(void){return g;}`)
	require.Len(t, prog.Statics, 1)
	require.Equal(t, "g", prog.Statics[0].Name)
	require.Equal(t, types.InitInt, prog.Statics[0].Initial.Kind)
	require.Equal(t, int64(5), prog.Statics[0].Initial.IntVal)
}

func TestGenerateCallPassesArguments(t *testing.T) {
	prog := generate(t, `int f(int a,int b){return a+b;} int main(void){return f(1,2);}`)
	fn := findFunc(t, prog, "main")
	var call *ir.Instruction
	for i, in := range fn.Instructions {
		if in.Op == ir.OpCall {
			call = &fn.Instructions[i]
		}
	}
	require.NotNil(t, call)
	require.Equal(t, "f", call.Callee)
	require.Len(t, call.Args, 2)
}
