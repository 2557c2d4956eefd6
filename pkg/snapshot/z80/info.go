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
	"io"

	"github.com/patrikpersson/speccyboot-sub001/pkg/spectrum"
)

/*
	ReadInfo reads just enough of a .z80 file to describe it: the fixed
	header, and for version 2/3 files the additional header. The reader is
	left positioned at the start of the memory image data.
*/
func ReadInfo(r io.Reader) (*Snapshot, error) {

	h := make([]byte, headerSize)
	if _, err := io.ReadFull(r, h); err != nil {
		return nil, errorf(TruncatedInput, "reading header: %v", err)
	}

	if h[offFlags1] == 0xff {
		h[offFlags1] = 0x01
	}

	snap := &Snapshot{
		Registers: decodeRegisters(h),
		Border:    borderColour(h[offFlags1]),
	}

	if pc := u16(h[offPC:]); pc != 0 {
		snap.Version = 1
		snap.Model = spectrum.Spectrum48
		snap.Hardware = "48k"
		snap.PC = pc
		snap.Compressed = h[offFlags1]&flagsCompressedMask != 0
		return snap, nil
	}

	if _, err := io.ReadFull(r, h[:2]); err != nil {
		return nil, errorf(TruncatedInput, "reading header length: %v", err)
	}

	n := int(u16(h))
	switch n {
	case extLenV2:
		snap.Version = 2
	case extLenV3, extLenV3X:
		snap.Version = 3
	default:
		return nil, errorf(BadAdditionalHeaderLength,
			"%d is not a known additional header length", n)
	}

	ext := make([]byte, n)
	if _, err := io.ReadFull(r, ext); err != nil {
		return nil, errorf(TruncatedInput, "reading additional header: %v", err)
	}

	model, hw, err := hardwareModel(snap.Version, ext[extOffHWType])
	if err != nil {
		return nil, err
	}

	snap.Model = model
	snap.Hardware = hw
	snap.PC = u16(ext[extOffPC:])

	if model == spectrum.Spectrum128 {
		snap.PagingPort = ext[extOff7FFD]
		snap.SoundPort = ext[extOffFFFD]
		copy(snap.SoundRegs[:], ext[extOffAY:extOffAY+16])
	}

	return snap, nil
}
