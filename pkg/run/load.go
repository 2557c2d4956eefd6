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
	"net/url"
	"os"

	"github.com/patrikpersson/speccyboot-sub001/pkg/format"
)

//
func NewLoad() *Load {

	l := &Load{}
	l.Runner = *NewRunner(
		`load [-i|--input {file}] [-r|--ref {reference}] [-a|--address {address}]`,
		"load a snapshot into the daemon",
		`
Use the load command to push a snapshot into the daemon, either from a local
file or by reference. A reference is a path relative to the daemon's snapshot
repository, or an http(s) URL.`,
		"", runnerHelpEpilogue, l.Run)

	l.AddBaseSettings()
	l.AddSetting(&l.Input, "input", "i", "", nil, "local snapshot file", false)
	l.AddSetting(&l.Ref, "ref", "r", "", nil, "snapshot reference", false)

	return l
}

//
type Load struct {
	Runner
	//
	Input string
	Ref   string
}

//
func (l *Load) Run() error {

	l.ParseSettings()

	var resp io.ReadCloser
	var err error

	switch {

	case l.Input != "":
		f, err := os.Open(l.Input)
		if err != nil {
			return err
		}
		defer f.Close()

		name, typ, comp := format.SplitNameTypeCompressor(l.Input)
		path := fmt.Sprintf("/load?name=%s&type=%s&compressor=%s",
			url.QueryEscape(name), typ, comp)

		resp, err = l.apiCall("POST", path, false, bufio.NewReader(f))
		if err != nil {
			return err
		}

	case l.Ref != "":
		resp, err = l.apiCall("POST",
			fmt.Sprintf("/load?ref=%s", url.QueryEscape(l.Ref)), false, nil)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("either --input or --ref is required")
	}

	defer resp.Close()

	fmt.Println()
	if _, err := io.Copy(os.Stdout, resp); err != nil {
		return err
	}

	return nil
}
