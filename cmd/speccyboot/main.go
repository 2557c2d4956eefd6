/*
   SpeccyBoot - ZX Spectrum network boot daemon
   Copyright (c) 2026, Patrik Persson

   This file is part of SpeccyBoot.

   SpeccyBoot is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   SpeccyBoot is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with SpeccyBoot. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patrikpersson/speccyboot-sub001/pkg/run"
)

//
func main() {

	root := &cobra.Command{
		Use:           "speccyboot",
		Short:         "ZX Spectrum network boot daemon & client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		run.NewServe().Cmd(),
		run.NewLoad().Cmd(),
		run.NewDump().Cmd(),
		run.NewSearch().Cmd(),
		run.NewVersion().Cmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
