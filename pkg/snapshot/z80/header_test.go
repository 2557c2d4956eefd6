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

package z80

import (
	"bytes"
	"testing"

	"github.com/patrikpersson/speccyboot-sub001/pkg/spectrum"
)

func TestDecodeRegisters(t *testing.T) {

	r := decodeRegisters(testHeader())

	if r.A != 0x7f || r.F != 0xa5 {
		t.Errorf("AF: got %02x %02x", r.A, r.F)
	}
	if r.BC != 0x1234 || r.DE != 0x9abc || r.HL != 0x5678 {
		t.Errorf("BC/DE/HL: got %04x %04x %04x", r.BC, r.DE, r.HL)
	}
	if r.AltA != 0x77 || r.AltF != 0x88 {
		t.Errorf("AF': got %02x %02x", r.AltA, r.AltF)
	}
	if r.AltBC != 0x2211 || r.AltDE != 0x4433 || r.AltHL != 0x6655 {
		t.Errorf("BC'/DE'/HL': got %04x %04x %04x",
			r.AltBC, r.AltDE, r.AltHL)
	}
	if r.IX != 0x03d4 || r.IY != 0x5c3a || r.SP != 0xfff0 {
		t.Errorf("IX/IY/SP: got %04x %04x %04x", r.IX, r.IY, r.SP)
	}
	if r.I != 0x3f {
		t.Errorf("I: got %02x", r.I)
	}

	// bit 7 of R comes from flags1 bit 0
	if r.R != 0x5a|0x80 {
		t.Errorf("R: got %02x", r.R)
	}

	if !r.IFF1 || r.IFF2 {
		t.Errorf("IFF: got %v %v", r.IFF1, r.IFF2)
	}
	if r.IntMode != 2 {
		t.Errorf("IM: got %d", r.IntMode)
	}
}

//
func TestBorderColour(t *testing.T) {
	if b := borderColour(0x0d); b != 6 {
		t.Errorf("got border %d", b)
	}
}

// a flags1 byte of 0xff is read as 0x01: uncompressed, R bit 7 set
func TestFlagsByteFF(t *testing.T) {

	h := v1Header(0x8000, false)
	h[offFlags1] = 0xff

	image := make([]byte, imageSize48)

	var snap *Snapshot
	l := NewLoader(spectrum.NewRAM(), func(s *Snapshot) { snap = s })
	feed(t, l, append(h, image...), 512)

	if snap == nil {
		t.Fatal("launch callback not invoked")
	}
	if snap.Compressed {
		t.Error("flags 0xff read as compressed")
	}
	if snap.Registers.R&0x80 == 0 {
		t.Error("flags 0xff should set bit 7 of R")
	}
	if snap.Border != 0 {
		t.Errorf("got border %d", snap.Border)
	}
}

func TestEncodeHeaderRoundTrip(t *testing.T) {

	snap, err := ReadInfo(bytes.NewReader(v1Header(0x8042, false)))
	if err != nil {
		t.Fatal(err)
	}

	h := snap.EncodeHeader()
	want := v1Header(0x8042, false)

	// R bit 7 and border travel via flags1; everything else bit for bit
	if !bytes.Equal(h, want) {
		t.Errorf("got  %x\nwant %x", h, want)
	}
}

func TestReadInfoV2(t *testing.T) {

	data := v2Stream(3, nil)

	snap, err := ReadInfo(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	if snap.Version != 2 || snap.Model != spectrum.Spectrum128 {
		t.Errorf("got version %d model %s", snap.Version, snap.Model)
	}
	if snap.PC != 0xabcd {
		t.Errorf("got PC 0x%04x", snap.PC)
	}
	if snap.PagingPort != 0x11 || snap.SoundRegs[15] != 0x4f {
		t.Errorf("128k state not captured")
	}
}

func TestReadInfoTruncated(t *testing.T) {
	_, err := ReadInfo(bytes.NewReader(testHeader()[:10]))
	if kind, _ := KindOf(err); kind != TruncatedInput {
		t.Fatalf("got %v", err)
	}
}

func TestHardwareModel(t *testing.T) {

	cases := []struct {
		version int
		mode    byte
		model   spectrum.Model
		ok      bool
	}{
		{2, 0, spectrum.Spectrum48, true},
		{2, 1, spectrum.Spectrum48, true},
		{2, 2, spectrum.Spectrum48, true},
		{2, 3, spectrum.Spectrum128, true},
		{2, 4, spectrum.Spectrum128, true},
		{2, 5, 0, false},
		{3, 0, spectrum.Spectrum48, true},
		{3, 3, spectrum.Spectrum48, true},
		{3, 4, spectrum.Spectrum128, true},
		{3, 6, spectrum.Spectrum128, true},
		{3, 7, 0, false},
	}

	for _, c := range cases {
		model, _, err := hardwareModel(c.version, c.mode)
		if c.ok {
			if err != nil {
				t.Errorf("v%d mode %d: %v", c.version, c.mode, err)
			} else if model != c.model {
				t.Errorf("v%d mode %d: got %s", c.version, c.mode, model)
			}
		} else if err == nil {
			t.Errorf("v%d mode %d accepted", c.version, c.mode)
		}
	}
}
