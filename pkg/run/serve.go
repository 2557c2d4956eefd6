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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/control"
	"github.com/patrikpersson/speccyboot-sub001/pkg/daemon"
	"github.com/patrikpersson/speccyboot-sub001/pkg/repo"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [-t|--tftp {address}] [-a|--address {address}] [-r|--repo {dir}]
      [--index {dir}] [-d|--device {serial device}] [-b|--baud {rate}]`,
		"run the snapshot boot daemon",
		`
Use the serve command to run the daemon. It answers TFTP read requests from
the bootloader with files from the snapshot repository, accepts snapshots
pushed via TFTP write requests or the control API, and loads them into
memory - simulated, or on a tethered board when a serial device is given.`,
		"", runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.TFTPAddress, "tftp", "t", "SPECCYBOOT_TFTP",
		":6969", "TFTP listen address", false)
	s.AddSetting(&s.Repo, "repo", "r", "SPECCYBOOT_REPO",
		"", "snapshot repository directory", false)
	s.AddSetting(&s.IndexDir, "index", "", "SPECCYBOOT_INDEX",
		"", "search index directory; empty disables indexing", false)
	s.AddSetting(&s.Device, "device", "d", "SPECCYBOOT_DEVICE",
		"", "serial device of a tethered board", false)
	s.AddSetting(&s.BaudRate, "baud", "b", "SPECCYBOOT_BAUD",
		115200, "serial baud rate", false)

	return s
}

//
type Serve struct {
	Runner
	//
	TFTPAddress string
	Repo        string
	IndexDir    string
	Device      string
	BaudRate    int
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	var conduit *daemon.Conduit
	var err error

	if s.Device != "" {
		if conduit, err = daemon.NewConduit(
			s.Device, uint(s.BaudRate)); err != nil {
			return err
		}
	}

	d := daemon.NewDaemon(s.Repo, conduit)

	var index *repo.Index
	if s.IndexDir != "" {
		if s.Repo == "" {
			return fmt.Errorf("indexing requires a repository")
		}
		if index, err = repo.NewIndex(s.IndexDir, s.Repo); err != nil {
			return err
		}
		go func() {
			if err := index.Start(); err != nil {
				log.Errorf("index not available: %v", err)
			}
		}()
		defer index.Stop()
	}

	go func() {
		if err := control.ServeAPI(s.Address, d, index, s.Repo); err != nil {
			log.Fatalf("control API failed: %v", err)
		}
	}()

	return d.Serve(s.TFTPAddress)
}
