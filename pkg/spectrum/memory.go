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
	"fmt"

	log "github.com/sirupsen/logrus"
)

//
const (
	// BankSize is the size of one memory bank/page
	BankSize = 0x4000

	// NumBanks is the number of 16K banks in a 128K machine
	NumBanks = 8

	// PagingPort selects the bank mapped at 0xc000 on 128K machines
	PagingPort = 0x7ffd

	// DefaultBank is mapped at 0xc000 when no snapshot page is being written
	DefaultBank = 1

	// bits of the paging port value
	MemCfgROMLo = 0x10
	MemCfgLock  = 0x20
)

//
type Model int

//
const (
	Spectrum48 Model = iota
	Spectrum128
)

//
func (m Model) String() string {
	if m == Spectrum128 {
		return "128k"
	}
	return "48k"
}

// PagingValue is the value written to the paging port to map bank at 0xc000,
// with ROM 1 (48K BASIC) selected.
func PagingValue(bank int) byte {
	return MemCfgROMLo | byte(bank&0x07)
}

/*
	BankForPage maps a page id as stored in a .z80 snapshot file to the
	hardware bank it belongs to. For 48K snapshots, only pages 4, 5, and 8
	are valid; for 128K snapshots, pages 3 through 10 map to banks 0
	through 7.

	See https://worldofspectrum.org/faq/reference/z80format.htm
*/
func BankForPage(page byte, model Model) (int, error) {

	if model == Spectrum128 {
		if 3 <= page && page <= 10 {
			return int(page) - 3, nil
		}
		return -1, fmt.Errorf("page %d not valid for a 128k snapshot", page)
	}

	switch page {
	case 4:
		return 2, nil
	case 5:
		return 0, nil
	case 8:
		return 5, nil
	}

	return -1, fmt.Errorf("page %d not valid for a 48k snapshot", page)
}

// Addr48 returns the base address of bank within the fixed 48K memory
// layout: bank 5 is the screen at 0x4000, bank 2 sits at 0x8000, and
// bank 0 at 0xc000.
func Addr48(bank int) (uint16, error) {
	switch bank {
	case 5:
		return 0x4000, nil
	case 2:
		return 0x8000, nil
	case 0:
		return 0xc000, nil
	}
	return 0, fmt.Errorf("bank %d has no fixed 48k address", bank)
}

/*
	Memory is the Spectrum address space as seen by the snapshot loader.
	Writes are side-effectful; there is no read-back. SetPage maps a bank
	into the 0xc000 window on 128K machines; it is a no-op for memory
	implementations that address banks directly.
*/
type Memory interface {
	WriteByte(bank int, offset uint16, value byte) error
	SetPage(bank int) error
}

// --- simulated memory -------------------------------------------------------

//
func NewRAM() *RAM {
	return &RAM{page: DefaultBank}
}

// RAM is a simulated 128K memory, addressed by bank. Port writes caused by
// paging are recorded so that tests and diagnostics can inspect them.
type RAM struct {
	banks [NumBanks][BankSize]byte
	page  int
	//
	portWrites []byte
}

//
func (r *RAM) WriteByte(bank int, offset uint16, value byte) error {
	if bank < 0 || bank >= NumBanks {
		return fmt.Errorf("no such bank: %d", bank)
	}
	if offset >= BankSize {
		return fmt.Errorf("offset out of bank range: 0x%04x", offset)
	}
	r.banks[bank][offset] = value
	return nil
}

//
func (r *RAM) SetPage(bank int) error {
	if bank < 0 || bank >= NumBanks {
		return fmt.Errorf("no such bank: %d", bank)
	}
	r.page = bank
	r.portWrites = append(r.portWrites, PagingValue(bank))
	return nil
}

// Page is the bank currently mapped at 0xc000
func (r *RAM) Page() int {
	return r.page
}

// PortWrites lists the values written to the paging port, in order
func (r *RAM) PortWrites() []byte {
	return r.portWrites
}

//
func (r *RAM) Bank(bank int) []byte {
	if bank < 0 || bank >= NumBanks {
		return nil
	}
	return r.banks[bank][:]
}

// View48 assembles the contiguous 0x4000-0xffff region of the 48K layout,
// i.e. banks 5, 2, and 0 in address order.
func (r *RAM) View48() []byte {
	ret := make([]byte, 3*BankSize)
	copy(ret, r.banks[5][:])
	copy(ret[BankSize:], r.banks[2][:])
	copy(ret[2*BankSize:], r.banks[0][:])
	return ret
}

// --- port I/O backed memory -------------------------------------------------

/*
	Bus is the hardware write surface for a real (or emulated) Spectrum:
	plain memory stores into the CPU address space, and port writes for
	the 128K paging register.
*/
type Bus interface {
	WriteMem(addr uint16, value byte) error
	WritePort(port uint16, value byte) error
}

//
func NewBusMemory(bus Bus) *BusMemory {
	return &BusMemory{bus: bus, page: DefaultBank}
}

// BusMemory writes through a Bus, performing the paging-port dance for
// banks that live in the 0xc000 window.
type BusMemory struct {
	bus  Bus
	page int
}

//
func (m *BusMemory) WriteByte(bank int, offset uint16, value byte) error {

	if offset >= BankSize {
		return fmt.Errorf("offset out of bank range: 0x%04x", offset)
	}

	switch bank {
	case 5:
		return m.bus.WriteMem(0x4000+offset, value)
	case 2:
		return m.bus.WriteMem(0x8000+offset, value)
	}

	if m.page != bank {
		if err := m.SetPage(bank); err != nil {
			return err
		}
	}
	return m.bus.WriteMem(0xc000+offset, value)
}

//
func (m *BusMemory) SetPage(bank int) error {
	if bank < 0 || bank >= NumBanks {
		return fmt.Errorf("no such bank: %d", bank)
	}
	log.WithField("bank", bank).Trace("paging")
	if err := m.bus.WritePort(PagingPort, PagingValue(bank)); err != nil {
		return err
	}
	m.page = bank
	return nil
}
