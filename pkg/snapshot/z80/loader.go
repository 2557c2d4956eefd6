/*
   SpeccyBoot - ZX Spectrum network boot daemon
   Copyright (c) 2026, Patrik Persson

   This file is part of SpeccyBoot.

   The snapshot state machine follows the SpeccyBoot firmware's z80_loader:
   one function per state, each returning when all currently available data
   has been consumed or a state transition is required.

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

//
const (
	// escape byte in compressed chunks
	escape = 0xed

	// chunk length field value indicating an uncompressed 16384-byte page
	lengthUncompressed = 0xffff

	// total memory image of a 48K snapshot: banks 5, 2, 0
	imageSize48 = 3 * spectrum.BankSize
)

// 48K snapshot data is stored in address order: 0x4000, 0x8000, 0xc000
var bankOrder48 = [3]int{5, 2, 0}

// LaunchFunc hands control to the loaded guest. The registers and PC in
// the snapshot descriptor match the header fields bit for bit.
type LaunchFunc func(snap *Snapshot)

/*
	cursor presents the current datagram as an advancing byte cursor.
	The transport may split the file at arbitrary positions; no state
	lives here.
*/
type cursor struct {
	data []byte
}

//
func (c *cursor) empty() bool {
	return len(c.data) == 0
}

//
func (c *cursor) remaining() int {
	return len(c.data)
}

//
func (c *cursor) next() byte {
	b := c.data[0]
	c.data = c.data[1:]
	return b
}

//
func (c *cursor) take(n int) []byte {
	b := c.data[:n]
	c.data = c.data[n:]
	return b
}

//
type stateFn func(l *Loader, c *cursor) error

/*
	NewLoader creates a snapshot loader writing into mem. When a snapshot
	has been fully consumed and the transport signals end of data, launch
	is invoked. The loader starts out expecting a snapshot header.
*/
func NewLoader(mem spectrum.Memory, launch LaunchFunc) *Loader {
	l := &Loader{mem: mem, launch: launch}
	l.ExpectSnapshot()
	return l
}

/*
	Loader consumes a .z80 snapshot byte stream, delivered in chunks of
	arbitrary size, and materialises it into Spectrum memory. It is a
	passive object: it runs only inside ReceiveData, invoked synchronously
	from the transport's receive callback.
*/
type Loader struct {
	mem    spectrum.Memory
	launch LaunchFunc

	// nil state means the snapshot is fully consumed; done means the
	// transport has confirmed end of data and the loader is spent
	state stateFn
	done  bool

	header [headerSize]byte
	filled int
	ext    []byte
	snap   *Snapshot

	// v1 snapshots have no page framing; data runs through banks 5, 2, 0
	v1       bool
	v1BankIx int

	// input bytes remaining in the current chunk; < 0 means unbounded
	// (v1 compressed, terminated by sentinel)
	chunkRemaining int
	chunkLen       int
	page           byte

	// write cursor and output budget of the current page
	bank         int
	off          int
	outRemaining int

	// pages completed vs. pages the model requires (bit per page id)
	seenPages uint16
	wantPages uint16

	// repetition/sentinel bookkeeping
	repCount     int
	lastOut      byte
	sentinelZero bool

	// progress accounting, in kilobytes of decompressed output
	bytesLoaded int
	kbExpected  int

	rawMode    bool
	rawDest    []byte
	rawWritten int
	rawLoaded  func(n int)
}

// ExpectSnapshot resets the loader to its initial state. Idempotent.
func (l *Loader) ExpectSnapshot() {
	*l = Loader{mem: l.mem, launch: l.launch, state: sHeader}
}

/*
	ExpectRawData installs the raw-file mode instead of snapshot parsing:
	incoming bytes are copied into dest until the transport signals end of
	data, at which point loaded is called with the number of bytes
	received. Receiving more than len(dest) bytes is a fatal error.
*/
func (l *Loader) ExpectRawData(dest []byte, loaded func(n int)) {
	*l = Loader{
		mem:       l.mem,
		launch:    l.launch,
		state:     sRawData,
		rawMode:   true,
		rawDest:   dest,
		rawLoaded: loaded,
	}
}

// Progress reports kilobytes loaded and expected; expected is zero until
// the header has been seen.
func (l *Loader) Progress() (loaded, expected int) {
	return l.bytesLoaded / 1024, l.kbExpected
}

// Done reports whether the transfer has completed, successfully or not.
func (l *Loader) Done() bool {
	return l.done
}

/*
	ReceiveData consumes one datagram. more tells whether the transport
	expects further data after this one. All errors are fatal; the caller
	must not call ReceiveData again after an error, nor after the snapshot
	has completed.
*/
func (l *Loader) ReceiveData(data []byte, more bool) error {

	if l.done {
		return errorf(ProtocolError, "data received after transfer completed")
	}

	c := &cursor{data: data}

	for !c.empty() && l.state != nil {
		if err := l.state(l, c); err != nil {
			l.state = nil
			l.done = true
			return err
		}
	}

	if l.state == nil && !c.empty() {
		l.done = true
		return errorf(TrailingGarbage,
			"%d bytes left after end of snapshot", c.remaining())
	}

	if more {
		return nil
	}

	// transport says this was the last datagram

	if l.rawMode {
		l.state = nil
		l.done = true
		if l.rawLoaded != nil {
			l.rawLoaded(l.rawWritten)
		}
		return nil
	}

	if l.state != nil {
		l.done = true
		return errorf(TruncatedInput, "end of data in mid-snapshot")
	}

	l.done = true
	log.WithFields(log.Fields{
		"model": l.snap.Model,
		"pc":    l.snap.PC}).Debug("snapshot loaded, launching")
	if l.launch != nil {
		l.launch(l.snap)
	}
	return nil
}

/*
	emit writes one decompressed byte at the current write cursor. The
	page's output budget is the sole authority on overflow; in a v1
	snapshot the cursor additionally rolls over from one bank to the next.
*/
func (l *Loader) emit(b byte) error {

	if l.outRemaining <= 0 {
		if l.v1 {
			return errorf(OversizedPage,
				"data expands beyond %d bytes", imageSize48)
		}
		return errorf(OversizedPage,
			"page %d expands beyond its size", l.page)
	}

	if err := l.mem.WriteByte(l.bank, uint16(l.off), b); err != nil {
		return errorf(ProtocolError, "memory write failed: %v", err)
	}

	l.lastOut = b
	l.off++
	l.outRemaining--
	l.bytesLoaded++

	if l.bytesLoaded%1024 == 0 {
		log.WithFields(log.Fields{
			"loaded":   l.bytesLoaded / 1024,
			"expected": l.kbExpected}).Debug("kilobyte loaded")
	}

	if l.off == spectrum.BankSize && l.v1 && l.v1BankIx < 2 {
		l.v1BankIx++
		l.bank = bankOrder48[l.v1BankIx]
		l.off = 0
	}

	return nil
}

/*
	finishPage closes the current page: restores the default page for 128K
	models and decides whether more page frames are expected. Only called
	with the RLE decoder fully flushed.
*/
func (l *Loader) finishPage() error {

	if l.v1 {
		l.state = nil
		return nil
	}

	l.seenPages |= 1 << l.page

	if l.snap.Model == spectrum.Spectrum128 {
		if err := l.mem.SetPage(spectrum.DefaultBank); err != nil {
			return errorf(ProtocolError, "paging failed: %v", err)
		}
	}

	log.WithFields(log.Fields{
		"page": l.page,
		"bank": l.bank}).Debug("page complete")

	if l.seenPages&l.wantPages == l.wantPages {
		l.state = nil
	} else {
		l.state = sChunkHeader
	}
	return nil
}
