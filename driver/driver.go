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

// Package driver is the cutec CLI's collaborator (§6): it owns
// everything outside the compiler core — invoking the preprocessor,
// writing intermediate files, invoking the assembler/linker, and
// printing diagnostics — none of which the core touches directly.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cutec-lang/cutec/compiler"
	"github.com/cutec-lang/cutec/diag"
)

// Flags is the flag surface §6 names, already merged with any
// --config defaults (CLI flags win, resolved by the caller via
// cobra.Command.Flags().Changed before constructing this).
type Flags struct {
	Source  string
	Output  string
	Target  string
	Libs    []string
	Verbose bool

	StopLex      bool
	StopParse    bool
	StopValidate bool
	StopTacky    bool
	StopCodegen  bool
	StopAsm      bool // -S
	NoLink       bool // -c
}

func hostPlatform() compiler.Platform {
	if runtime.GOOS == "darwin" {
		return compiler.Darwin
	}
	return compiler.Linux
}

func platformFromName(name string) (compiler.Platform, error) {
	switch name {
	case "", "host":
		return hostPlatform(), nil
	case "linux":
		return compiler.Linux, nil
	case "darwin":
		return compiler.Darwin, nil
	default:
		return 0, fmt.Errorf("unknown target %q (want linux or darwin)", name)
	}
}

func stopStage(f Flags) compiler.Stage {
	switch {
	case f.StopLex:
		return compiler.StageLex
	case f.StopParse:
		return compiler.StageParse
	case f.StopValidate:
		return compiler.StageValidate
	case f.StopTacky:
		return compiler.StageTacky
	case f.StopCodegen:
		return compiler.StageCodegen
	case f.StopAsm:
		return compiler.StageAssembly
	default:
		return compiler.StageFull
	}
}

// Run executes one end-to-end compilation per §6: preprocess, run the
// core, write the assembly, assemble, link, clean up. It returns the
// process exit code the caller should use.
func Run(f Flags, log *logrus.Logger) int {
	target, err := platformFromName(f.Target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	wd := filepath.Dir(f.Source)
	base := strings.TrimSuffix(filepath.Base(f.Source), filepath.Ext(f.Source))

	preprocessed, err := Preprocess(wd, f.Source)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "driver"))
		return 1
	}

	c := compiler.New(compiler.Options{Target: target, Stop: stopStage(f)}, log)
	result, err := c.Compile(preprocessed)
	if err != nil {
		if stageErr, ok := err.(*diag.StageError); ok {
			Report(os.Stderr, stageErr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	if f.StopLex {
		for _, t := range result.Tokens {
			fmt.Println(t)
		}
		return 0
	}
	if result.Assembly == "" {
		// Stopped before the emitter; nothing further to produce.
		return 0
	}

	// --output names the final artifact, so it is the .s path only
	// when -S makes the assembly the final artifact.
	asmPath := filepath.Join(wd, base+".s")
	if f.StopAsm && f.Output != "" {
		asmPath = f.Output
	}
	if err := os.WriteFile(asmPath, []byte(result.Assembly), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "driver: write assembly"))
		return 1
	}
	if f.StopAsm {
		return 0
	}

	objPath := filepath.Join(wd, base+".o")
	if err := Assemble(wd, asmPath, objPath); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "driver"))
		return 1
	}
	defer os.Remove(asmPath)
	if f.NoLink {
		if f.Output != "" {
			os.Rename(objPath, f.Output)
		}
		return 0
	}
	defer os.Remove(objPath)

	binPath := f.Output
	if binPath == "" {
		binPath = filepath.Join(wd, base)
	}
	if err := Link(wd, binPath, []string{objPath}, f.Libs); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "driver"))
		return 1
	}
	return 0
}
