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
	"strings"
)

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	st := a.daemon.GetStatus()

	if wantsJSON(req) {
		sendJSONReply(st, http.StatusOK, w)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "state: %s\n", st.State)
	if st.Name != "" {
		fmt.Fprintf(&sb, "name: %s\n", st.Name)
	}
	if st.Hardware != "" {
		fmt.Fprintf(&sb, "hardware: %s (v%d), PC 0x%04x\n",
			st.Hardware, st.Version, st.PC)
	}
	if st.KBExpected > 0 {
		fmt.Fprintf(&sb, "loaded: %dk of %dk\n", st.KBLoaded, st.KBExpected)
	}
	if st.Error != "" {
		fmt.Fprintf(&sb, "error: %s\n", st.Error)
	}

	sendReply([]byte(sb.String()), http.StatusOK, w)
}
