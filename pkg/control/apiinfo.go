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
	"fmt"
	"net/http"

	"github.com/patrikpersson/speccyboot-sub001/pkg/format"
	"github.com/patrikpersson/speccyboot-sub001/pkg/repo"
	"github.com/patrikpersson/speccyboot-sub001/pkg/snapshot/z80"
)

// info describes a snapshot file without loading it.
func (a *api) info(w http.ResponseWriter, req *http.Request) {

	ref := getArg(req, "ref")
	if ref == "" {
		handleError(fmt.Errorf("no ref argument"),
			http.StatusUnprocessableEntity, w)
		return
	}

	in, err := repo.Resolve(ref, a.repoPath)
	if handleError(err, http.StatusNotAcceptable, w) {
		return
	}

	_, _, comp := format.SplitNameTypeCompressor(ref)

	sr, err := format.NewSnapshotReader(in, comp)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	defer sr.Close()

	snap, err := z80.ReadInfo(sr)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(snap, http.StatusOK, w)
	} else {
		sendReply([]byte(fmt.Sprintf(
			"%s: %s snapshot v%d, PC 0x%04x, border %d",
			ref, snap.Hardware, snap.Version, snap.PC, snap.Border)),
			http.StatusOK, w)
	}
}
