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

package control

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

/*
	dump streams a hex dump of the simulated memory filled by the last
	snapshot transfer: the 48K address view, or a single bank when the
	bank argument is given.
*/
func (a *api) dump(w http.ResponseWriter, req *http.Request) {

	mem := a.daemon.Memory()
	if mem == nil {
		handleError(fmt.Errorf("no snapshot in memory"),
			http.StatusUnprocessableEntity, w)
		return
	}

	bank, err := getIntArg(req, "bank", -1)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	var bytes []byte
	if bank == -1 {
		bytes = mem.View48()
	} else if bytes = mem.Bank(bank); bytes == nil {
		handleError(fmt.Errorf("no such bank: %d", bank),
			http.StatusUnprocessableEntity, w)
		return
	}

	read, write := io.Pipe()

	go func() {
		d := hex.Dumper(write)
		d.Write(bytes)
		d.Close()
		write.Close()
	}()

	sendStreamReply(read, http.StatusOK, w)
}
