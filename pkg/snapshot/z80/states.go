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
	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/spectrum"
)

/*
	sHeader accumulates the fixed 30-byte header. A non-zero PC field marks
	a version 1 snapshot, whose body follows immediately; PC == 0 means a
	version 2 or 3 snapshot with an additional header.
*/
func sHeader(l *Loader, c *cursor) error {

	n := headerSize - l.filled
	if r := c.remaining(); r < n {
		n = r
	}
	copy(l.header[l.filled:], c.take(n))
	l.filled += n

	if l.filled < headerSize {
		return nil
	}

	// 0xff here is a relic of very early v1 files
	if l.header[offFlags1] == 0xff {
		l.header[offFlags1] = 0x01
	}

	flags := l.header[offFlags1]

	l.snap = &Snapshot{
		Registers: decodeRegisters(l.header[:]),
		Border:    borderColour(flags),
	}

	pc := u16(l.header[offPC:])

	if pc == 0 {
		l.filled = 0
		l.state = sExtLen
		return nil
	}

	l.snap.Version = 1
	l.snap.Model = spectrum.Spectrum48
	l.snap.Hardware = "48k"
	l.snap.PC = pc
	l.snap.Compressed = flags&flagsCompressedMask != 0

	l.v1 = true
	l.bank = bankOrder48[0]
	l.outRemaining = imageSize48
	l.lastOut = 0xff
	l.kbExpected = 48

	if l.snap.Compressed {
		// no length field; the body runs until the end marker
		l.chunkRemaining = -1
		l.state = sChunkCompressed
	} else {
		l.chunkRemaining = imageSize48
		l.state = sChunkUncompressed
	}

	log.WithFields(log.Fields{
		"version":    1,
		"compressed": l.snap.Compressed,
		"pc":         pc}).Debug("snapshot header")

	return nil
}

// sExtLen accumulates the 2-byte length of the additional header.
func sExtLen(l *Loader, c *cursor) error {

	l.header[l.filled] = c.next()
	l.filled++
	if l.filled < 2 {
		return nil
	}

	n := int(u16(l.header[:]))

	switch n {
	case extLenV2:
		l.snap.Version = 2
	case extLenV3, extLenV3X:
		l.snap.Version = 3
	default:
		return errorf(BadAdditionalHeaderLength,
			"%d is not a known additional header length", n)
	}

	l.ext = make([]byte, 0, n)
	l.state = sExtHeader
	return nil
}

/*
	sExtHeader accumulates the additional header and completes the snapshot
	descriptor: real PC, hardware model, 128K paging and sound chip state.
*/
func sExtHeader(l *Loader, c *cursor) error {

	n := cap(l.ext) - len(l.ext)
	if r := c.remaining(); r < n {
		n = r
	}
	l.ext = append(l.ext, c.take(n)...)

	if len(l.ext) < cap(l.ext) {
		return nil
	}

	model, hw, err := hardwareModel(l.snap.Version, l.ext[extOffHWType])
	if err != nil {
		return err
	}

	l.snap.Model = model
	l.snap.Hardware = hw
	l.snap.PC = u16(l.ext[extOffPC:])

	if model == spectrum.Spectrum128 {
		l.snap.PagingPort = l.ext[extOff7FFD]
		l.snap.SoundPort = l.ext[extOffFFFD]
		copy(l.snap.SoundRegs[:], l.ext[extOffAY:extOffAY+16])
		l.kbExpected = 128
		l.wantPages = 0x07f8 // pages 3..10
	} else {
		l.kbExpected = 48
		l.wantPages = 1<<4 | 1<<5 | 1<<8
	}

	log.WithFields(log.Fields{
		"version":  l.snap.Version,
		"hardware": hw,
		"pc":       l.snap.PC}).Debug("snapshot header")

	l.state = sChunkHeader
	return nil
}

// first byte of a page preamble: length, low byte
func sChunkHeader(l *Loader, c *cursor) error {
	l.chunkLen = int(c.next())
	l.state = sChunkHeader2
	return nil
}

// second byte of a page preamble: length, high byte
func sChunkHeader2(l *Loader, c *cursor) error {
	l.chunkLen |= int(c.next()) << 8
	l.state = sChunkHeader3
	return nil
}

/*
	sChunkHeader3 consumes the page id and opens the page. A length field
	of 0xffff means the page body is stored as 16384 raw bytes.
*/
func sChunkHeader3(l *Loader, c *cursor) error {

	l.page = c.next()

	bank, err := spectrum.BankForPage(l.page, l.snap.Model)
	if err != nil {
		return errorf(UnsupportedPage, "%v", err)
	}

	l.bank = bank
	l.off = 0
	l.outRemaining = spectrum.BankSize
	l.lastOut = 0xff
	l.sentinelZero = false

	log.WithFields(log.Fields{
		"page":   l.page,
		"bank":   bank,
		"length": l.chunkLen}).Debug("page preamble")

	if l.chunkLen == lengthUncompressed {
		l.chunkRemaining = spectrum.BankSize
		l.state = sChunkUncompressed
		return nil
	}

	// an empty body leaves the page untouched; the next byte already
	// belongs to the following preamble
	if l.chunkLen == 0 {
		return l.finishPage()
	}

	l.chunkRemaining = l.chunkLen
	l.state = sChunkCompressed
	return nil
}

// sChunkUncompressed copies the page body verbatim.
func sChunkUncompressed(l *Loader, c *cursor) error {

	n := l.chunkRemaining
	if r := c.remaining(); r < n {
		n = r
	}

	for _, b := range c.take(n) {
		if err := l.emit(b); err != nil {
			return err
		}
	}
	l.chunkRemaining -= n

	if l.chunkRemaining == 0 {
		return l.finishPage()
	}
	return nil
}

/*
	sChunkCompressed is the resting state of the RLE decoder: literals pass
	through, an escape byte switches to sChunkEscape. With a bounded chunk,
	an escape byte consumed as the final chunk byte is itself a literal.
*/
func sChunkCompressed(l *Loader, c *cursor) error {

	for !c.empty() {

		b := c.next()
		if l.chunkRemaining > 0 {
			l.chunkRemaining--
		}

		if b == escape {
			if l.chunkRemaining == 0 {
				if err := l.emit(escape); err != nil {
					return err
				}
				return l.finishPage()
			}
			l.state = sChunkEscape
			return nil
		}

		// a v1 body can only end in the 00 ed ed 00 marker; with the
		// image already full, a zero byte is held back as its first byte
		if l.v1 && b == 0x00 && l.outRemaining == 0 && !l.sentinelZero {
			l.sentinelZero = true
			continue
		}

		if l.sentinelZero {
			// the held-back zero was data after all
			return l.emit(0x00)
		}

		if err := l.emit(b); err != nil {
			return err
		}

		if l.chunkRemaining == 0 {
			return l.finishPage()
		}
	}
	return nil
}

/*
	sChunkEscape has seen a single escape byte. A second one introduces a
	repetition; anything else means the escape byte was a plain literal.
*/
func sChunkEscape(l *Loader, c *cursor) error {

	b := c.next()
	if l.chunkRemaining > 0 {
		l.chunkRemaining--
	}

	if b == escape {
		if l.chunkRemaining == 0 {
			return errorf(ProtocolError,
				"page %d ends inside a compressed sequence", l.page)
		}
		l.state = sChunkRepcount
		return nil
	}

	if l.sentinelZero {
		return l.emit(0x00)
	}

	if err := l.emit(escape); err != nil {
		return err
	}
	if err := l.emit(b); err != nil {
		return err
	}

	if l.chunkRemaining == 0 {
		return l.finishPage()
	}
	l.state = sChunkCompressed
	return nil
}

/*
	sChunkRepcount consumes the repetition count. In a v1 snapshot, a zero
	count following a zero byte is the end-of-data marker 00 ed ed 00;
	elsewhere a zero count is a legal empty run.
*/
func sChunkRepcount(l *Loader, c *cursor) error {

	b := c.next()
	if l.chunkRemaining > 0 {
		l.chunkRemaining--
	}

	if b == 0 && l.v1 && (l.lastOut == 0x00 || l.sentinelZero) {
		log.Debug("end-of-data marker")
		return l.finishPage()
	}

	if l.sentinelZero {
		return l.emit(0x00)
	}

	if l.chunkRemaining == 0 {
		return errorf(ProtocolError,
			"page %d ends inside a compressed sequence", l.page)
	}

	l.repCount = int(b)
	l.state = sChunkRepvalue
	return nil
}

// sChunkRepvalue consumes the repeated value and expands the run.
func sChunkRepvalue(l *Loader, c *cursor) error {

	b := c.next()
	if l.chunkRemaining > 0 {
		l.chunkRemaining--
	}

	for i := 0; i < l.repCount; i++ {
		if err := l.emit(b); err != nil {
			return err
		}
	}

	if l.chunkRemaining == 0 {
		return l.finishPage()
	}
	l.state = sChunkCompressed
	return nil
}

// sRawData copies bytes into the caller-provided buffer.
func sRawData(l *Loader, c *cursor) error {

	n := c.remaining()
	if l.rawWritten+n > len(l.rawDest) {
		return errorf(ProtocolError,
			"raw data exceeds %d-byte buffer", len(l.rawDest))
	}

	copy(l.rawDest[l.rawWritten:], c.take(n))
	l.rawWritten += n
	return nil
}
