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
	"io"
	"net/http"

	"github.com/patrikpersson/speccyboot-sub001/pkg/format"
	"github.com/patrikpersson/speccyboot-sub001/pkg/repo"
)

/*
	load ingests a snapshot into the daemon, exactly as if it had been
	pushed via TFTP. The file comes either from the request body, or from
	the repository or the net when a ref argument is given.
*/
func (a *api) load(w http.ResponseWriter, req *http.Request) {

	var in io.ReadCloser
	var err error

	ref := getArg(req, "ref")

	if ref != "" {
		if in, err = repo.Resolve(ref, a.repoPath); err != nil {
			handleError(err, http.StatusNotAcceptable, w)
			return
		}
	} else {
		in = http.MaxBytesReader(nil, req.Body, repo.MaxSnapshotSize)
	}

	comp := getArg(req, "compressor")
	if comp == "" && ref != "" {
		_, _, comp = format.SplitNameTypeCompressor(ref)
	}

	sr, err := format.NewSnapshotReader(in, comp)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	defer sr.Close()

	name := getArg(req, "name")
	if name == "" {
		name = sr.Name()
	}
	if name == "" {
		name, _, _ = format.SplitNameTypeCompressor(ref)
	}
	if name == "" {
		name = "uploaded"
	}

	typ := getArg(req, "type")
	if typ == "" {
		typ = sr.Type()
	}
	if typ == "" && ref != "" {
		_, typ, _ = format.SplitNameTypeCompressor(ref)
	}
	if typ == "" {
		typ = format.TypeSnapshot
	}

	snap, err := a.daemon.Load(fmt.Sprintf("%s.%s", name, typ), sr)
	if err != nil {
		handleError(fmt.Errorf("snapshot rejected: %v", err),
			http.StatusUnprocessableEntity, w)
		return
	}

	if snap == nil {
		sendReply([]byte(fmt.Sprintf("loaded raw file %s", name)),
			http.StatusOK, w)
		return
	}

	if wantsJSON(req) {
		sendJSONReply(snap, http.StatusOK, w)
	} else {
		sendReply([]byte(fmt.Sprintf(
			"loaded %s: %s snapshot v%d, PC 0x%04x",
			name, snap.Hardware, snap.Version, snap.PC)), http.StatusOK, w)
	}
}
