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

// Package compiler is the whole-program pipeline (§5/§6): lexer →
// parser → A1 → A2 → A3 → A5 → A4 → IR generator → instruction
// selector → pseudo replacer → fix-up → emitter, as one synchronous
// call producing an in-memory assembly string. A Compiler owns all of
// its mutable state (symbol table, counters, constant pool) and
// shares nothing across calls, so the driver is free to run several
// Compile calls concurrently, one goroutine per translation unit.
package compiler

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cutec-lang/cutec/codegen"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/emit"
	"github.com/cutec-lang/cutec/ir"
	"github.com/cutec-lang/cutec/lexer"
	"github.com/cutec-lang/cutec/parser"
	"github.com/cutec-lang/cutec/resolve"
	"github.com/cutec-lang/cutec/token"
	"github.com/cutec-lang/cutec/typecheck"
)

// Stage names a point at which compilation may be asked to stop early
// (§6's `--lex`/`--parse`/`--validate`/`--tacky`/`--codegen`/`-S` flags).
type Stage int

const (
	StageFull Stage = iota
	StageLex
	StageParse
	StageValidate
	StageTacky
	StageCodegen
	StageAssembly
)

// Platform mirrors emit.Platform so callers outside codegen/emit don't
// need to import those packages just to pick a target.
type Platform = emit.Platform

const (
	Linux  = emit.Linux
	Darwin = emit.Darwin
)

// Options configures one Compiler instance.
type Options struct {
	Target Platform
	Stop   Stage
}

// Compiler runs the pipeline for Options against repeated Compile
// calls; it holds no state between calls, only configuration, per the
// single-translation-unit resource model in §5.
type Compiler struct {
	opts Options
	log  *logrus.Logger
}

func New(opts Options, log *logrus.Logger) *Compiler {
	if log == nil {
		log = logrus.New()
	}
	return &Compiler{opts: opts, log: log}
}

// Result is what Compile produced up to the configured stop stage;
// Assembly is empty unless the pipeline ran all the way to the emitter.
type Result struct {
	Tokens   []string
	Assembly string
}

// Compile runs the pipeline once. On failure the returned error is a
// *diag.StageError naming the first stage whose diagnostics were
// non-empty (retrievable with errors.As); the pipeline stops there per
// §7 rather than attempting to recover and continue into later stages.
func (c *Compiler) Compile(source string) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if bp, ok := rec.(diag.BugPanic); ok {
				err = &diag.StageError{Stage: "internal", Items: []diag.Diagnostic{bp.Diagnostic}}
				return
			}
			panic(rec)
		}
	}()

	errs := &diag.Bag{}

	start := time.Now()
	toks := lexer.Tokens(source, errs)
	c.logStage("lex", errs.Len(), start)
	if e := diag.FromBag("lex", errs); e != nil {
		return nil, e
	}
	if c.opts.Stop == StageLex {
		return &Result{Tokens: renderTokens(toks)}, nil
	}

	*errs = diag.Bag{}
	start = time.Now()
	prog := parser.Parse(toks, errs)
	c.logStage("parse", errs.Len(), start)
	if e := diag.FromBag("parse", errs); e != nil {
		return nil, e
	}
	if c.opts.Stop == StageParse {
		return &Result{}, nil
	}

	*errs = diag.Bag{}
	start = time.Now()
	resolve.Identifiers(prog, errs)
	if e := diag.FromBag("A1", errs); e != nil {
		return nil, e
	}
	*errs = diag.Bag{}
	resolve.Loops(prog, errs)
	if e := diag.FromBag("A2", errs); e != nil {
		return nil, e
	}
	*errs = diag.Bag{}
	resolve.Labels(prog, errs)
	if e := diag.FromBag("A3", errs); e != nil {
		return nil, e
	}
	*errs = diag.Bag{}
	table := typecheck.Check(prog, errs)
	if e := diag.FromBag("A5", errs); e != nil {
		return nil, e
	}
	*errs = diag.Bag{}
	typecheck.ResolveSwitches(prog, errs)
	c.logStage("validate", errs.Len(), start)
	if e := diag.FromBag("A4", errs); e != nil {
		return nil, e
	}
	if c.opts.Stop == StageValidate {
		return &Result{}, nil
	}

	start = time.Now()
	irProg := ir.Generate(prog, table)
	c.logStage("ir", 0, start)
	if c.opts.Stop == StageTacky {
		return &Result{}, nil
	}

	start = time.Now()
	asmProg, pseudoType := codegen.Select(irProg, table)
	codegen.ReplacePseudos(asmProg, pseudoType)
	codegen.FixUp(asmProg)
	c.logStage("codegen", 0, start)
	if c.opts.Stop == StageCodegen {
		return &Result{}, nil
	}

	start = time.Now()
	text := emit.Emit(asmProg, c.opts.Target)
	c.logStage("emit", 0, start)

	return &Result{Assembly: text}, nil
}

func (c *Compiler) logStage(stage string, errCount int, start time.Time) {
	c.log.WithFields(logrus.Fields{
		"stage":   stage,
		"errors":  errCount,
		"elapsed": time.Since(start),
	}).Debug("stage complete")
}

func renderTokens(toks []token.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = fmt.Sprintf("%s %s %q", t.Pos, t.Kind, t.Lexeme)
	}
	return out
}
