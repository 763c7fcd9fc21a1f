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

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cutec-lang/cutec/driver"
)

func main() {
	var (
		output  string
		target  string
		libs    []string
		verbose bool
		cfgPath string

		stopLex, stopParse, stopValidate, stopTacky, stopCodegen bool
		stopAsm, noLink                                          bool
	)

	root := &cobra.Command{
		Use:   "cutec [flags] <source-file>",
		Short: "whole-program ahead-of-time compiler targeting x86-64 System V assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := driver.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			f := driver.Flags{
				Source:       args[0],
				Output:       output,
				Target:       target,
				Libs:         libs,
				Verbose:      verbose,
				StopLex:      stopLex,
				StopParse:    stopParse,
				StopValidate: stopValidate,
				StopTacky:    stopTacky,
				StopCodegen:  stopCodegen,
				StopAsm:      stopAsm,
				NoLink:       noLink,
			}
			f = driver.ApplyConfig(f, cfg, cmd.Flags().Changed("verbose"), cmd.Flags().Changed("target"))

			log := logrus.New()
			if f.Verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			code := driver.Run(f, log)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVarP(&output, "output", "o", "", "override the output path")
	flags.StringVar(&target, "target", "", "override platform convention (linux|darwin)")
	flags.StringArrayVarP(&libs, "lib", "l", nil, "forward -l<name> to the linker")
	flags.BoolVarP(&verbose, "verbose", "v", false, "raise log level to debug")
	flags.StringVar(&cfgPath, "config", "", "YAML file of default flags")

	flags.BoolVar(&stopLex, "lex", false, "stop after lexing, print tokens")
	flags.BoolVar(&stopParse, "parse", false, "stop after parsing")
	flags.BoolVar(&stopValidate, "validate", false, "stop after semantic analysis")
	flags.BoolVar(&stopTacky, "tacky", false, "stop after IR generation")
	flags.BoolVar(&stopCodegen, "codegen", false, "stop after instruction selection")
	flags.BoolVarP(&stopAsm, "S", "S", false, "stop after emitting the .s file")
	flags.BoolVarP(&noLink, "c", "c", false, "assemble only, do not link")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
