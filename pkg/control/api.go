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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/daemon"
	"github.com/patrikpersson/speccyboot-sub001/pkg/repo"
)

/*
	ServeAPI starts the HTTP control API and blocks. The index may be nil
	when the repository is not indexed; /search then reports the feature
	as unavailable.
*/
func ServeAPI(address string, d *daemon.Daemon,
	index *repo.Index, repoPath string) error {

	a := &api{daemon: d, index: index, repoPath: repoPath}

	router := mux.NewRouter()
	router.HandleFunc("/status", a.status).Methods("GET")
	router.HandleFunc("/version", a.version).Methods("GET")
	router.HandleFunc("/search", a.search).Methods("GET")
	router.HandleFunc("/info", a.info).Methods("GET")
	router.HandleFunc("/dump", a.dump).Methods("GET")
	router.HandleFunc("/load", a.load).Methods("POST")

	log.WithField("address", address).Info("control API listening")
	return http.ListenAndServe(address, router)
}

//
type api struct {
	daemon   *daemon.Daemon
	index    *repo.Index
	repoPath string
}

// --- helpers ----------------------------------------------------------------

// handleError logs err and sends it as the reply; returns whether there
// was an error in the first place
func handleError(e error, statusCode int, w http.ResponseWriter) bool {
	if e == nil {
		return false
	}
	log.Errorf("%v", e)
	sendReply([]byte(fmt.Sprintf("%v", e)), statusCode, w)
	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		w.Write([]byte("\n"))
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(obj); err != nil {
		log.Errorf("problem sending JSON reply: %v", err)
	}
}

//
func sendStreamReply(r io.Reader, statusCode int, w http.ResponseWriter) {
	w.WriteHeader(statusCode)
	if _, err := io.Copy(w, r); err != nil {
		log.Errorf("problem sending stream reply: %v", err)
	}
}

//
func getArg(req *http.Request, arg string) string {
	return req.URL.Query().Get(arg)
}

//
func getIntArg(req *http.Request, arg string, def int) (int, error) {
	v := getArg(req, arg)
	if v == "" {
		return def, nil
	}
	ret, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("not a number: %s", v)
	}
	return ret, nil
}

//
func isFlagSet(req *http.Request, arg string) bool {
	switch strings.ToLower(getArg(req, arg)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

//
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}
