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
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cutec-lang/cutec/diag"
)

// Report prints a *diag.StageError one diagnostic per line to w,
// coloring the kind label unless color.NoColor is set. fatih/color
// sets NoColor from its own isatty check of stdout (and NO_COLOR), not
// from w, and this function makes no check of its own.
func Report(w io.Writer, err *diag.StageError) {
	red := color.New(color.FgRed, color.Bold)
	for _, d := range err.Items {
		label := red.Sprint(d.Kind.String())
		fmt.Fprintf(w, "%s: %s: %s\n", d.Pos, label, d.Message)
	}
}
