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

package repo

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFile(t *testing.T) {

	dir := t.TempDir()
	want := []byte("snapshot bytes")
	if err := os.WriteFile(
		filepath.Join(dir, "manic.z80"), want, 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Resolve("manic.z80", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got, err := io.ReadAll(src)
	if err != nil || string(got) != string(want) {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestResolveEscapingRef(t *testing.T) {

	dir := t.TempDir()

	for _, ref := range []string{
		"../secret.z80",
		"sub/../../secret.z80",
		"..",
	} {
		if _, err := Resolve(ref, dir); err == nil {
			t.Errorf("ref %q accepted", ref)
		}
	}
}

func TestResolveWithoutRepo(t *testing.T) {
	if _, err := Resolve("manic.z80", ""); err == nil {
		t.Error("repo-relative ref accepted without repository")
	}
}
