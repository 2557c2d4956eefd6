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

package format

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	log "github.com/sirupsen/logrus"
)

// snapshot file types served and loaded by the daemon
const (
	TypeSnapshot = "z80"
	TypeRaw      = "bin"
)

/*
	NewSnapshotReader wraps r for reading a possibly compressed snapshot
	file. An empty compressor means plain data. For archive compressors,
	name and type are recovered from the archived file name.
*/
func NewSnapshotReader(r io.ReadCloser, compressor string) (*SnapshotReader, error) {

	log.WithField("compressor", compressor).Debug("snapshot reader requested")

	var ret *SnapshotReader
	var err error

	switch compressor {

	case "gzip":
		fallthrough
	case "gz":
		ret, err = getGZipReader(r)

	case "zip":
		ret, err = getZipReader(r, false)

	case "7z":
		ret, err = getZipReader(r, true)

	case "":
		ret = &SnapshotReader{r, "", "", ""}
	}

	if ret == nil && err == nil {
		err = fmt.Errorf("unsupported compressor: %s", compressor)
	}

	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"compressor": ret.compressor,
		"name":       ret.name,
		"type":       ret.typ}).Debug("snapshot reader created")

	return ret, nil
}

//
type SnapshotReader struct {
	readCloser io.ReadCloser
	//
	name       string
	typ        string
	compressor string
}

//
func (r *SnapshotReader) Read(p []byte) (n int, err error) {
	return r.readCloser.Read(p)
}

//
func (r *SnapshotReader) Close() error {
	return r.readCloser.Close()
}

//
func (r *SnapshotReader) Name() string {
	return r.name
}

//
func (r *SnapshotReader) Type() string {
	return r.typ
}

//
func (r *SnapshotReader) Compressor() string {
	return r.compressor
}

//
func getGZipReader(r io.ReadCloser) (*SnapshotReader, error) {

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	ret := &SnapshotReader{readCloser: gzr}
	ret.name, ret.typ, _ = SplitNameTypeCompressor(gzr.Name)
	ret.compressor = "gzip"

	return ret, nil
}

//
func getZipReader(r io.ReadCloser, zip7 bool) (*SnapshotReader, error) {

	var sponge bytes.Buffer
	size, err := io.Copy(&sponge, r)
	if err != nil {
		return nil, err
	}
	r.Close()

	ret := &SnapshotReader{}

	if zip7 {
		zr, err := sevenzip.NewReader(bytes.NewReader(sponge.Bytes()), size)
		if err != nil {
			return nil, err
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("empty 7-zip archive")
		}
		if len(zr.File) > 1 {
			log.Warn("7-zip archive has more than one entry, using first")
		}

		ret.name, ret.typ, _ = SplitNameTypeCompressor(zr.File[0].Name)
		ret.compressor = "7z"
		ret.readCloser, err = zr.File[0].Open()
		if err != nil {
			return nil, err
		}

	} else {
		zr, err := zip.NewReader(bytes.NewReader(sponge.Bytes()), size)
		if err != nil {
			return nil, err
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("empty zip archive")
		}
		if len(zr.File) > 1 {
			log.Warn("zip archive has more than one entry, using first")
		}

		ret.name, ret.typ, _ = SplitNameTypeCompressor(zr.File[0].Name)
		ret.compressor = "zip"
		ret.readCloser, err = zr.File[0].Open()
		if err != nil {
			return nil, err
		}
	}

	return ret, nil
}

/*
	SplitNameTypeCompressor takes a snapshot file name apart: base name,
	file type, and compressor, working through stacked extensions such as
	foo.z80.gz from the right.
*/
func SplitNameTypeCompressor(file string) (name, typ, compressor string) {

	_, n := filepath.Split(file)

	for {
		ext := filepath.Ext(n)
		if ext == "" {
			return n, typ, compressor
		}

		switch strings.ToLower(strings.TrimPrefix(ext, ".")) {

		case TypeSnapshot:
			typ = TypeSnapshot

		case TypeRaw:
			typ = TypeRaw

		case "gz":
			compressor = "gz"
		case "gzip":
			compressor = "gzip"
		case "zip":
			compressor = "zip"
		case "7z":
			compressor = "7z"

		default:
			// not a known extension, part of the name
			return n, typ, compressor
		}

		n = strings.TrimSuffix(n, ext)
	}
}
