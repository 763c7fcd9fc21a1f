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

package driver

import (
	"bytes"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
)

// runCmd is the teacher's utils.ExecuteCmd, generalized to return an
// error instead of calling os.Exit, so a failed preprocessor,
// assembler, or linker invocation surfaces through Run's normal
// error path instead of killing the driver process outright.
func runCmd(dir string, args ...string) (string, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "%s: %s", args[0], stderr.String())
	}
	return stdout.String(), nil
}

// Preprocess runs `gcc -E -P` over src, producing the contents cutec's
// lexer should see (macro expansion and #include are out of the
// compiler core's scope per the Non-goals; gcc does that part).
func Preprocess(dir, src string) (string, error) {
	out, err := runCmd(dir, "gcc", "-E", "-P", src)
	if err != nil {
		return "", errors.Wrap(err, "preprocess")
	}
	return out, nil
}

// Assemble invokes the system assembler on asmPath, producing objPath.
// On macOS this runs under `arch -x86_64` since the target ABI is
// always System V AMD64 regardless of host architecture.
func Assemble(dir, asmPath, objPath string) error {
	args := []string{"gcc", "-c", asmPath, "-o", objPath}
	if runtime.GOOS == "darwin" {
		args = append([]string{"arch", "-x86_64"}, args...)
	}
	_, err := runCmd(dir, args...)
	if err != nil {
		return errors.Wrap(err, "assemble")
	}
	return nil
}

// Link invokes the system linker (via gcc) over objPaths plus any
// `-l<name>` libs forwarded verbatim from the command line.
func Link(dir, out string, objPaths []string, libs []string) error {
	args := []string{"gcc", "-o", out}
	args = append(args, objPaths...)
	for _, l := range libs {
		args = append(args, "-l"+l)
	}
	if runtime.GOOS == "darwin" {
		args = append([]string{"arch", "-x86_64"}, args...)
	}
	_, err := runCmd(dir, args...)
	if err != nil {
		return errors.Wrap(err, "link")
	}
	return nil
}
