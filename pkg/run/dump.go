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

package run

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/patrikpersson/speccyboot-sub001/pkg/format"
	"github.com/patrikpersson/speccyboot-sub001/pkg/snapshot/z80"
)

//
func NewDump() *Dump {

	d := &Dump{}
	d.Runner = *NewRunner(
		"dump [-i|--input {file}] [--bank {bank}] [-a|--address {address}]",
		"describe a snapshot file, or dump daemon memory",
		`
Use the dump command to describe a local snapshot file, or - without input
file - to hex dump the memory loaded by the daemon's last snapshot transfer.`,
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddSetting(&d.Input, "input", "i", "", nil, "snapshot input file", false)
	d.AddSetting(&d.Bank, "bank", "", "", -1, "memory bank to dump (0-7)", false)

	return d
}

//
type Dump struct {
	//
	Runner
	//
	Input string
	Bank  int
}

//
func (d *Dump) Run() error {

	d.ParseSettings()

	if d.Input != "" {
		f, err := os.Open(d.Input)
		if err != nil {
			return err
		}
		defer f.Close()

		_, _, comp := format.SplitNameTypeCompressor(d.Input)

		rd, err := format.NewSnapshotReader(
			ioutil.NopCloser(bufio.NewReader(f)), comp)
		if err != nil {
			return err
		}

		snap, err := z80.ReadInfo(rd)
		if err != nil {
			return err
		}

		fmt.Printf(`
%s
  format:   v%d (%s)
  PC:       0x%04x
  SP:       0x%04x
  border:   %d
  IM:       %d
`, d.Input, snap.Version, snap.Hardware, snap.PC,
			snap.Registers.SP, snap.Border, snap.Registers.IntMode)

		return nil
	}

	path := "/dump"
	if d.Bank != -1 {
		path = fmt.Sprintf("/dump?bank=%d", d.Bank)
	}

	resp, err := d.apiCall("GET", path, false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	if _, err := io.Copy(os.Stdout, resp); err != nil {
		return err
	}

	fmt.Println()
	return nil
}
