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

package driver_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cutec-lang/cutec/driver"
)

func discardLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func writeSource(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "prog.c")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func requireGCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found on PATH, skipping")
	}
}

func TestApplyConfigCLIWinsOverYAML(t *testing.T) {
	cfg := driver.Config{Verbose: true, Target: "darwin", Libs: []string{"m"}}

	// Neither flag passed on the command line: config supplies both.
	f := driver.ApplyConfig(driver.Flags{Target: ""}, cfg, false, false)
	require.True(t, f.Verbose)
	require.Equal(t, "darwin", f.Target)
	require.Equal(t, []string{"m"}, f.Libs)

	// Both flags passed explicitly: the CLI's values must survive untouched.
	f = driver.ApplyConfig(driver.Flags{Verbose: false, Target: "linux"}, cfg, true, true)
	require.False(t, f.Verbose, "an explicit --verbose=false on the CLI must not be overridden by config")
	require.Equal(t, "linux", f.Target, "an explicit --target on the CLI must win over config")

	// Libs are always additive regardless of what was "set" on the CLI.
	f = driver.ApplyConfig(driver.Flags{Libs: []string{"pthread"}}, cfg, true, true)
	require.Equal(t, []string{"pthread", "m"}, f.Libs)
}

func TestApplyConfigEmptyConfigIsNoop(t *testing.T) {
	f := driver.ApplyConfig(driver.Flags{Verbose: true, Target: "linux"}, driver.Config{}, false, false)
	require.True(t, f.Verbose)
	require.Equal(t, "linux", f.Target)
	require.Empty(t, f.Libs)
}

func TestDriverRoundTripIncreasingArtifacts(t *testing.T) {
	requireGCC(t)

	dir := t.TempDir()
	src := writeSource(t, dir, `int main(void){return 0;}`)
	base := filepath.Join(dir, "prog")

	// --codegen: stop before the emitter, no artifact at all.
	code := driver.Run(driver.Flags{Source: src, StopCodegen: true}, discardLog())
	require.Equal(t, 0, code)
	_, err := os.Stat(base + ".s")
	require.True(t, os.IsNotExist(err), "expected no .s file after --codegen")
	_, err = os.Stat(base)
	require.True(t, os.IsNotExist(err), "expected no binary after --codegen")

	// -S: stop after emitting, exactly the .s file.
	code = driver.Run(driver.Flags{Source: src, StopAsm: true}, discardLog())
	require.Equal(t, 0, code)
	_, err = os.Stat(base + ".s")
	require.NoError(t, err, "expected a .s file after -S")
	_, err = os.Stat(base)
	require.True(t, os.IsNotExist(err), "expected no binary after -S")
	require.NoError(t, os.Remove(base+".s"))

	// No stop flag: assemble, link, and clean up intermediates, leaving
	// only the linked binary.
	code = driver.Run(driver.Flags{Source: src}, discardLog())
	require.Equal(t, 0, code)
	_, err = os.Stat(base)
	require.NoError(t, err, "expected a linked binary after a full run")
	_, err = os.Stat(base + ".s")
	require.True(t, os.IsNotExist(err), "the .s file is an intermediate and must be cleaned up")
	_, err = os.Stat(base + ".o")
	require.True(t, os.IsNotExist(err), "the .o file is an intermediate and must be cleaned up")
}

func TestDriverStopLexPrintsTokensWithoutAnyArtifact(t *testing.T) {
	requireGCC(t)
	dir := t.TempDir()
	src := writeSource(t, dir, `int main(void){return 0;}`)

	code := driver.Run(driver.Flags{Source: src, StopLex: true}, discardLog())
	require.Equal(t, 0, code)
	_, err := os.Stat(filepath.Join(dir, "prog.s"))
	require.True(t, os.IsNotExist(err), "stopping at lex must not produce any assembly")
}

func TestStopStagePrecedencePrefersEarliestFlag(t *testing.T) {
	// driver.stopStage checks StopParse before StopAsm, so when both are
	// set the earlier stage wins and compilation never reaches the
	// emitter.
	requireGCC(t)
	dir := t.TempDir()
	src := writeSource(t, dir, `int main(void){return 0;}`)

	code := driver.Run(driver.Flags{Source: src, StopParse: true, StopAsm: true}, discardLog())
	require.Equal(t, 0, code)
	_, err := os.Stat(filepath.Join(dir, "prog.s"))
	require.True(t, os.IsNotExist(err), "StopParse must win over StopAsm since it is checked first")
}

func TestDriverHonorsOutputPath(t *testing.T) {
	requireGCC(t)
	dir := t.TempDir()
	src := writeSource(t, dir, `int main(void){return 0;}`)
	out := filepath.Join(dir, "custom_name")

	code := driver.Run(driver.Flags{Source: src, Output: out}, discardLog())
	require.Equal(t, 0, code)
	_, err := os.Stat(out)
	require.NoError(t, err, "expected the binary at the overridden --output path")
}
