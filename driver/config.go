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
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional `--config` file's shape (§6): defaults for
// flags the user did not pass on the command line. An absent file is
// not an error — the zero value leaves every flag at cobra's own
// default.
type Config struct {
	Verbose bool     `yaml:"verbose"`
	Target  string   `yaml:"target"`
	Libs    []string `yaml:"libs"`
}

// LoadConfig reads path, returning a zero Config if path is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyConfig merges cfg's defaults into f, per §6's resolved open
// question: a flag the user actually passed on the command line always
// wins, so verboseSet/targetSet (sourced from cobra's
// Command.Flags().Changed) gate whether cfg's value may override f's.
// Libs are always additive since there is no "did the user pass -l"
// single flag to gate on.
func ApplyConfig(f Flags, cfg Config, verboseSet, targetSet bool) Flags {
	if !verboseSet && cfg.Verbose {
		f.Verbose = true
	}
	if !targetSet && cfg.Target != "" {
		f.Target = cfg.Target
	}
	if len(cfg.Libs) > 0 {
		f.Libs = append(f.Libs, cfg.Libs...)
	}
	return f
}
