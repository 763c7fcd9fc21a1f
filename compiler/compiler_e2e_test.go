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

package compiler_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cutec-lang/cutec/compiler"
)

// runAndExpectExit compiles source to assembly via compiler.Compiler,
// assembles and links it with a single system gcc call (the driver
// assembles and links in two steps), runs the resulting binary, and checks its exit code against
// want (mod 256, the way a shell reports a process exit status). This
// mirrors the teacher's ExecExpect helper (compile, run, assert on
// process behavior) rather than testify assertions on in-memory
// structures, since "did the compiled binary do the right thing" is
// what whole-pipeline scenarios need to demonstrate.
func runAndExpectExit(t *testing.T, source string, want int) {
	t.Helper()

	target := compiler.Linux
	if runtime.GOOS == "darwin" {
		target = compiler.Darwin
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c := compiler.New(compiler.Options{Target: target}, log)
	result, err := c.Compile(source)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	dir := t.TempDir()
	asmPath := filepath.Join(dir, "prog.s")
	if err := os.WriteFile(asmPath, []byte(result.Assembly), 0o644); err != nil {
		t.Fatalf("write asm: %v", err)
	}

	binPath := filepath.Join(dir, "prog")
	cmd := exec.Command("gcc", "-o", binPath, asmPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("assemble/link failed: %v\n%s", err, out)
	}

	runCmd := exec.Command(binPath)
	err = runCmd.Run()
	got := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("run failed: %v", err)
		}
		got = exitErr.ExitCode()
	}
	if got != want {
		t.Fatalf("exit code = %d, want %d", got, want)
	}
}

func TestEndToEndArithmetic(t *testing.T) {
	runAndExpectExit(t, `int main(void){return 2+3*4;}`, 14)
}

func TestEndToEndCompoundAssign(t *testing.T) {
	runAndExpectExit(t, `int main(void){int x=5; x+=7; return x;}`, 12)
}

func TestEndToEndConditionalAndCall(t *testing.T) {
	runAndExpectExit(t, `int f(int a,int b){return a<b?a:b;} int main(void){return f(7,3);}`, 3)
}

func TestEndToEndUnsignedWraparound(t *testing.T) {
	runAndExpectExit(t, `int main(void){unsigned long x=0xFFFFFFFFu; return (int)(x+1u);}`, 0)
}

func TestEndToEndDoubleConversion(t *testing.T) {
	runAndExpectExit(t, `int main(void){double d=1.5; int i=(int)(d*4.0); return i;}`, 6)
}

func TestEndToEndForLoop(t *testing.T) {
	runAndExpectExit(t, `int main(void){int s=0; for(int i=1;i<=10;i=i+1){s+=i;} return s;}`, 55)
}

func TestEndToEndSwitchFallThrough(t *testing.T) {
	runAndExpectExit(t, `int main(void){int s=0; switch(3){case 1: s=1; break; case 3: s=3; default: s=s+100;} return s;}`, 103)
}

func TestEndToEndGoto(t *testing.T) {
	runAndExpectExit(t, `int main(void){long x = 10; goto skip; x = 20; skip: return (int)x;}`, 10)
}

func TestEndToEndFileScopeStatic(t *testing.T) {
	runAndExpectExit(t, `unsigned g = 5; int main(void){return g;}`, 5)
}

func TestEndToEndNegative(t *testing.T) {
	cases := []string{
		`int main(void){goto L;}`,
		`int x = 1; int x = 2; int main(void){return 0;}`,
		`int main(void){switch(1.0){}}`,
		`int main(void){int x; x++; &x;}`,
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	for _, src := range cases {
		c := compiler.New(compiler.Options{Target: compiler.Linux}, log)
		if _, err := c.Compile(src); err == nil {
			t.Errorf("expected compile error for %q, got none", src)
		}
	}
}
