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
	"github.com/patrikpersson/speccyboot-sub001/pkg/spectrum"
)

// size of the fixed v1 header
const headerSize = 30

/*
	Offsets into the fixed header.

	Byte    Length  Description
	---------------------------
	0       1       A register
	1       1       F register
	2       2       BC register pair (LSB, i.e. C, first)
	4       2       HL register pair
	6       2       Program counter (if zero then version 2 or 3 snapshot)
	8       2       Stack pointer
	10      1       Interrupt register
	11      1       Refresh register (bit 7 is not significant!)
	12      1       Bit 0: bit 7 of R; bits 1-3: border; bit 4: SamROM;
	                bit 5: v1 compressed; if byte is 0xff, treat as 0x01
	13      2       DE register pair
	15      2       BC' register pair
	17      2       DE' register pair
	19      2       HL' register pair
	21      1       A' register
	22      1       F' register
	23      2       IY register (again LSB first)
	25      2       IX register
	27      1       Interrupt flip flop, 0 = DI, otherwise EI
	28      1       IFF2
	29      1       Bits 0-1: interrupt mode (0, 1 or 2)
*/
const (
	offA      = 0
	offF      = 1
	offBC     = 2
	offHL     = 4
	offPC     = 6
	offSP     = 8
	offI      = 10
	offR      = 11
	offFlags1 = 12
	offDE     = 13
	offBCAlt  = 15
	offDEAlt  = 17
	offHLAlt  = 19
	offAAlt   = 21
	offFAlt   = 22
	offIY     = 23
	offIX     = 25
	offIFF1   = 27
	offIFF2   = 28
	offFlags2 = 29
)

/*
	Offsets into the additional header of v2/v3 snapshots, relative to the
	start of the additional header (file offset 32).
*/
const (
	extOffPC     = 0
	extOffHWType = 2
	extOff7FFD   = 3
	extOffFFFD   = 6
	extOffAY     = 7
)

// valid additional header lengths; 23 means v2, the others v3
const (
	extLenV2  = 23
	extLenV3  = 54
	extLenV3X = 55
)

// masks for the flags1 byte
const (
	flagsR7Mask         = 0x01
	flagsSamROMMask     = 0x10
	flagsCompressedMask = 0x20
)

//
func borderColour(flags1 byte) byte {
	return (flags1 >> 1) & 0x07
}

// Registers is the Z80 user-visible register state lifted from the header.
// No interpretation beyond reassembling 16-bit pairs.
type Registers struct {
	A, F       byte
	BC, DE, HL uint16
	//
	AltA, AltF          byte
	AltBC, AltDE, AltHL uint16
	//
	IX, IY, SP uint16
	I, R       byte
	//
	IFF1, IFF2 bool
	IntMode    byte
}

// Snapshot describes a parsed .z80 snapshot: everything the context switch
// to the loaded guest needs, plus diagnostics.
type Snapshot struct {
	Version   int
	Model     spectrum.Model
	Hardware  string
	PC        uint16
	Registers Registers
	Border    byte

	// v1 only: flags1 bit 5
	Compressed bool

	// 128K only
	PagingPort byte
	SoundPort  byte
	SoundRegs  [16]byte
}

//
func u16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

//
func put16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

/*
	EncodeHeader serialises the register record into the fixed header
	layout, with the real PC in the PC field. This is the register block
	handed to a tethered board for the final context switch.
*/
func (s *Snapshot) EncodeHeader() []byte {

	h := make([]byte, headerSize)
	r := s.Registers

	h[offA] = r.A
	h[offF] = r.F
	put16(h[offBC:], r.BC)
	put16(h[offDE:], r.DE)
	put16(h[offHL:], r.HL)
	put16(h[offPC:], s.PC)
	put16(h[offSP:], r.SP)
	h[offI] = r.I
	h[offR] = r.R & 0x7f

	flags := s.Border << 1
	if r.R&0x80 != 0 {
		flags |= flagsR7Mask
	}
	h[offFlags1] = flags

	h[offAAlt] = r.AltA
	h[offFAlt] = r.AltF
	put16(h[offBCAlt:], r.AltBC)
	put16(h[offDEAlt:], r.AltDE)
	put16(h[offHLAlt:], r.AltHL)
	put16(h[offIY:], r.IY)
	put16(h[offIX:], r.IX)

	if r.IFF1 {
		h[offIFF1] = 1
	}
	if r.IFF2 {
		h[offIFF2] = 1
	}
	h[offFlags2] = r.IntMode & 0x03

	return h
}

/*
	decodeRegisters lifts the register record from the fixed header. The
	caller must have normalised flags1 (0xff -> 0x01) beforehand. Bit 7 of
	R is stored separately, in bit 0 of flags1.
*/
func decodeRegisters(h []byte) Registers {

	flags := h[offFlags1]

	r := h[offR] & 0x7f
	if flags&flagsR7Mask != 0 {
		r |= 0x80
	}

	return Registers{
		A:       h[offA],
		F:       h[offF],
		BC:      u16(h[offBC:]),
		DE:      u16(h[offDE:]),
		HL:      u16(h[offHL:]),
		AltA:    h[offAAlt],
		AltF:    h[offFAlt],
		AltBC:   u16(h[offBCAlt:]),
		AltDE:   u16(h[offDEAlt:]),
		AltHL:   u16(h[offHLAlt:]),
		IX:      u16(h[offIX:]),
		IY:      u16(h[offIY:]),
		SP:      u16(h[offSP:]),
		I:       h[offI],
		R:       r,
		IFF1:    h[offIFF1] != 0,
		IFF2:    h[offIFF2] != 0,
		IntMode: h[offFlags2] & 0x03,
	}
}

/*
	hardwareModel partitions the hardware mode byte of a v2/v3 additional
	header into {48K, 128K}. The same byte value names different machines
	depending on the snapshot version.

	See https://worldofspectrum.org/faq/reference/z80format.htm
*/
func hardwareModel(version int, mode byte) (spectrum.Model, string, error) {

	if version == 2 {
		switch mode {
		case 0:
			return spectrum.Spectrum48, "48k", nil
		case 1:
			return spectrum.Spectrum48, "48k + If.1", nil
		case 2:
			return spectrum.Spectrum48, "SamRam", nil
		case 3:
			return spectrum.Spectrum128, "128k", nil
		case 4:
			return spectrum.Spectrum128, "128k + If.1", nil
		}
	} else {
		switch mode {
		case 0:
			return spectrum.Spectrum48, "48k", nil
		case 1:
			return spectrum.Spectrum48, "48k + If.1", nil
		case 2:
			return spectrum.Spectrum48, "SamRam", nil
		case 3:
			return spectrum.Spectrum48, "48k + M.G.T.", nil
		case 4:
			return spectrum.Spectrum128, "128k", nil
		case 5:
			return spectrum.Spectrum128, "128k + If.1", nil
		case 6:
			return spectrum.Spectrum128, "128k + M.G.T.", nil
		}
	}

	return 0, "", errorf(UnsupportedModel, "hardware mode byte %d", mode)
}
