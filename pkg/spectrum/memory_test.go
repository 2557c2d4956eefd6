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

package spectrum

import (
	"testing"
)

func TestBankForPage48(t *testing.T) {

	cases := map[byte]int{4: 2, 5: 0, 8: 5}

	for page, want := range cases {
		bank, err := BankForPage(page, Spectrum48)
		if err != nil || bank != want {
			t.Errorf("page %d: got %d, %v", page, bank, err)
		}
	}

	for _, page := range []byte{0, 3, 6, 7, 9, 10, 11} {
		if _, err := BankForPage(page, Spectrum48); err == nil {
			t.Errorf("page %d accepted for 48k", page)
		}
	}
}

func TestBankForPage128(t *testing.T) {

	for page := byte(3); page <= 10; page++ {
		bank, err := BankForPage(page, Spectrum128)
		if err != nil || bank != int(page)-3 {
			t.Errorf("page %d: got %d, %v", page, bank, err)
		}
	}

	for _, page := range []byte{0, 1, 2, 11, 255} {
		if _, err := BankForPage(page, Spectrum128); err == nil {
			t.Errorf("page %d accepted for 128k", page)
		}
	}
}

func TestPagingValue(t *testing.T) {
	// ROM 1 selected, bank in the low bits
	if v := PagingValue(3); v != 0x13 {
		t.Errorf("got 0x%02x", v)
	}
	if v := PagingValue(DefaultBank); v != 0x11 {
		t.Errorf("got 0x%02x", v)
	}
}

func TestRAMView48(t *testing.T) {

	r := NewRAM()
	r.WriteByte(5, 0, 0xaa)
	r.WriteByte(2, 1, 0xbb)
	r.WriteByte(0, BankSize-1, 0xcc)

	v := r.View48()
	if v[0] != 0xaa || v[BankSize+1] != 0xbb || v[3*BankSize-1] != 0xcc {
		t.Error("banks not assembled in address order")
	}
}

func TestRAMBounds(t *testing.T) {
	r := NewRAM()
	if err := r.WriteByte(8, 0, 0); err == nil {
		t.Error("bank 8 accepted")
	}
	if err := r.WriteByte(0, BankSize, 0); err == nil {
		t.Error("offset 0x4000 accepted")
	}
	if err := r.SetPage(-1); err == nil {
		t.Error("bank -1 accepted")
	}
}

// records every write going through the bus
type busLog struct {
	mem   map[uint16]byte
	ports []struct {
		port  uint16
		value byte
	}
}

//
func (b *busLog) WriteMem(addr uint16, value byte) error {
	if b.mem == nil {
		b.mem = map[uint16]byte{}
	}
	b.mem[addr] = value
	return nil
}

//
func (b *busLog) WritePort(port uint16, value byte) error {
	b.ports = append(b.ports, struct {
		port  uint16
		value byte
	}{port, value})
	return nil
}

func TestBusMemoryFixedBanks(t *testing.T) {

	bus := &busLog{}
	m := NewBusMemory(bus)

	m.WriteByte(5, 0x10, 0x11)
	m.WriteByte(2, 0x20, 0x22)

	if bus.mem[0x4010] != 0x11 || bus.mem[0x8020] != 0x22 {
		t.Error("fixed banks not mapped to 0x4000/0x8000")
	}
	if len(bus.ports) != 0 {
		t.Error("fixed-bank writes must not touch the paging port")
	}
}

func TestBusMemoryPaging(t *testing.T) {

	bus := &busLog{}
	m := NewBusMemory(bus)

	m.WriteByte(7, 0x30, 0x77)

	if bus.mem[0xc030] != 0x77 {
		t.Error("paged bank not mapped to 0xc000")
	}
	if len(bus.ports) != 1 ||
		bus.ports[0].port != PagingPort ||
		bus.ports[0].value != PagingValue(7) {
		t.Errorf("paging writes: %v", bus.ports)
	}

	// same bank again: no further port write
	m.WriteByte(7, 0x31, 0x78)
	if len(bus.ports) != 1 {
		t.Error("redundant paging write")
	}
}
