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

// --- stream builders --------------------------------------------------------

/*
	encode applies the .z80 run-length scheme: runs of five or more equal
	bytes become ed ed count value, as do runs of two or more ed bytes. A
	lone ed is stored raw, with the following byte never starting a run.
*/
func encode(data []byte) []byte {

	var out []byte

	for i := 0; i < len(data); {
		b := data[i]
		n := 1
		for i+n < len(data) && data[i+n] == b && n < 255 {
			n++
		}
		switch {
		case n >= 5 || (b == escape && n >= 2):
			out = append(out, escape, escape, byte(n), b)
			i += n
		case b == escape:
			out = append(out, escape)
			i++
			if i < len(data) {
				out = append(out, data[i])
				i++
			}
		default:
			out = append(out, b)
			i++
		}
	}
	return out
}

// fixed header with PC cleared; R bit 7 set via flags1, border 6
func testHeader() []byte {
	return []byte{
		0x7f,       // A
		0xa5,       // F
		0x34, 0x12, // BC
		0x78, 0x56, // HL
		0x00, 0x00, // PC
		0xf0, 0xff, // SP
		0x3f,       // I
		0x5a,       // R
		0x0d,       // flags1
		0xbc, 0x9a, // DE
		0x11, 0x22, // BC'
		0x33, 0x44, // DE'
		0x55, 0x66, // HL'
		0x77,       // A'
		0x88,       // F'
		0x3a, 0x5c, // IY
		0xd4, 0x03, // IX
		0x01,       // IFF1
		0x00,       // IFF2
		0x02,       // flags2: IM 2
	}
}

//
func v1Header(pc uint16, compressed bool) []byte {
	h := testHeader()
	h[offPC] = byte(pc)
	h[offPC+1] = byte(pc >> 8)
	if compressed {
		h[offFlags1] |= flagsCompressedMask
	}
	return h
}

//
type pageData struct {
	id   byte
	body []byte
	raw  bool
}

//
func (p pageData) frame() []byte {
	if p.raw {
		return append([]byte{0xff, 0xff, p.id}, p.body...)
	}
	enc := encode(p.body)
	return append([]byte{byte(len(enc)), byte(len(enc) >> 8), p.id}, enc...)
}

//
func v2Stream(hwType byte, pages []pageData) []byte {

	s := testHeader()

	ext := make([]byte, extLenV2)
	ext[extOffPC] = 0xcd
	ext[extOffPC+1] = 0xab
	ext[extOffHWType] = hwType
	ext[extOff7FFD] = 0x11
	ext[extOffFFFD] = 0x0e
	for i := 0; i < 16; i++ {
		ext[extOffAY+i] = byte(0x40 + i)
	}

	s = append(s, extLenV2, 0x00)
	s = append(s, ext...)

	for _, p := range pages {
		s = append(s, p.frame()...)
	}
	return s
}

// a bank body with runs, lone escape bytes, and incompressible filler
func pageBody(seed byte) []byte {
	b := make([]byte, spectrum.BankSize)
	for i := range b {
		switch {
		case i%97 == 0:
			b[i] = escape
		case i%31 < 7:
			b[i] = seed
		default:
			b[i] = byte(i) ^ seed
		}
	}
	return b
}

// feed delivers data in blocks of the given size; the final block is the
// short one, or an empty datagram when the length is an exact multiple
func feed(t *testing.T, l *Loader, data []byte, block int) {
	t.Helper()
	for {
		n := block
		if n > len(data) {
			n = len(data)
		}
		if err := l.ReceiveData(data[:n], n == block); err != nil {
			t.Fatalf("receive failed: %v", err)
		}
		data = data[n:]
		if n < block {
			return
		}
	}
}

// feedErr delivers data expecting a failure of the given kind
func feedErr(t *testing.T, l *Loader, data []byte, block int, want ErrorKind) {
	t.Helper()
	for {
		n := block
		if n > len(data) {
			n = len(data)
		}
		if err := l.ReceiveData(data[:n], n == block); err != nil {
			if kind, ok := KindOf(err); !ok || kind != want {
				t.Fatalf("got error %v, want %s", err, want)
			}
			return
		}
		data = data[n:]
		if n < block {
			t.Fatalf("stream accepted, want %s", want)
		}
	}
}

// --- snapshots --------------------------------------------------------------

func TestV1Uncompressed(t *testing.T) {

	image := make([]byte, imageSize48)
	for i := range image {
		image[i] = byte(i * 7)
	}

	mem := spectrum.NewRAM()
	var snap *Snapshot
	l := NewLoader(mem, func(s *Snapshot) { snap = s })

	feed(t, l, append(v1Header(0x8042, false), image...), 512)

	if snap == nil {
		t.Fatal("launch callback not invoked")
	}
	if snap.Version != 1 || snap.Model != spectrum.Spectrum48 {
		t.Errorf("got version %d model %s", snap.Version, snap.Model)
	}
	if snap.PC != 0x8042 {
		t.Errorf("got PC 0x%04x", snap.PC)
	}
	if !bytes.Equal(mem.View48(), image) {
		t.Error("memory image differs from input")
	}
}

func TestV1Compressed(t *testing.T) {

	image := append(pageBody(0x10), pageBody(0x20)...)
	image = append(image, pageBody(0x30)...)

	data := append(v1Header(0x9000, true), encode(image)...)
	data = append(data, 0x00, escape, escape, 0x00)

	mem := spectrum.NewRAM()
	launched := false
	l := NewLoader(mem, func(*Snapshot) { launched = true })

	feed(t, l, data, 512)

	if !launched {
		t.Fatal("launch callback not invoked")
	}
	if !bytes.Equal(mem.View48(), image) {
		t.Error("memory image differs from input")
	}
}

// the end-of-data marker terminates a v1 body even when the image is not
// completely filled
func TestV1EarlyEndMarker(t *testing.T) {

	image := pageBody(0x01)[:1000]
	image[999] = 0x00 // marker needs a preceding zero

	data := append(v1Header(0x9000, true), encode(image)...)
	data = append(data, escape, escape, 0x00)

	mem := spectrum.NewRAM()
	launched := false
	l := NewLoader(mem, func(*Snapshot) { launched = true })

	feed(t, l, data, 512)

	if !launched {
		t.Fatal("launch callback not invoked")
	}
	if !bytes.Equal(mem.View48()[:1000], image) {
		t.Error("memory image differs from input")
	}
}

func TestV2Snapshot48(t *testing.T) {

	pages := []pageData{
		{id: 8, body: pageBody(0x11)},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	}

	mem := spectrum.NewRAM()
	var snap *Snapshot
	l := NewLoader(mem, func(s *Snapshot) { snap = s })

	feed(t, l, v2Stream(0, pages), 512)

	if snap == nil {
		t.Fatal("launch callback not invoked")
	}
	if snap.Version != 2 || snap.Model != spectrum.Spectrum48 {
		t.Errorf("got version %d model %s", snap.Version, snap.Model)
	}
	if snap.PC != 0xabcd {
		t.Errorf("got PC 0x%04x", snap.PC)
	}

	// page 8 -> bank 5, page 4 -> bank 2, page 5 -> bank 0
	if !bytes.Equal(mem.Bank(5), pages[0].body) ||
		!bytes.Equal(mem.Bank(2), pages[1].body) ||
		!bytes.Equal(mem.Bank(0), pages[2].body) {
		t.Error("memory image differs from input")
	}
}

func TestV2Snapshot128(t *testing.T) {

	var pages []pageData
	for id := byte(3); id <= 10; id++ {
		pages = append(pages, pageData{id: id, body: pageBody(id)})
	}

	mem := spectrum.NewRAM()
	var snap *Snapshot
	l := NewLoader(mem, func(s *Snapshot) { snap = s })

	feed(t, l, v2Stream(3, pages), 512)

	if snap == nil {
		t.Fatal("launch callback not invoked")
	}
	if snap.Model != spectrum.Spectrum128 {
		t.Errorf("got model %s", snap.Model)
	}
	if snap.PagingPort != 0x11 || snap.SoundPort != 0x0e {
		t.Errorf("got paging 0x%02x sound 0x%02x",
			snap.PagingPort, snap.SoundPort)
	}
	if snap.SoundRegs[0] != 0x40 || snap.SoundRegs[15] != 0x4f {
		t.Errorf("sound registers not captured: %v", snap.SoundRegs)
	}

	for id := byte(3); id <= 10; id++ {
		if !bytes.Equal(mem.Bank(int(id)-3), pages[id-3].body) {
			t.Errorf("bank %d differs from page %d", id-3, id)
		}
	}

	// the default page is restored after each of the eight pages
	writes := mem.PortWrites()
	if len(writes) != 8 {
		t.Fatalf("got %d paging writes, want 8", len(writes))
	}
	for _, w := range writes {
		if w != spectrum.PagingValue(spectrum.DefaultBank) {
			t.Errorf("paging write 0x%02x", w)
		}
	}
}

func TestUncompressedPage(t *testing.T) {

	// raw body full of escape bytes; must pass through untouched
	body := make([]byte, spectrum.BankSize)
	for i := range body {
		body[i] = escape
	}

	pages := []pageData{
		{id: 8, body: body, raw: true},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	}

	mem := spectrum.NewRAM()
	l := NewLoader(mem, func(*Snapshot) {})

	feed(t, l, v2Stream(0, pages), 512)

	if !bytes.Equal(mem.Bank(5), body) {
		t.Error("raw page body modified")
	}
}

// a compressed page body whose final byte is a lone escape byte
func TestEscapeAtPageEnd(t *testing.T) {

	body := pageBody(0x44)
	body[len(body)-1] = escape
	body[len(body)-2] = 0x01 // keep the encoder from pairing them

	pages := []pageData{
		{id: 8, body: body},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	}

	mem := spectrum.NewRAM()
	l := NewLoader(mem, func(*Snapshot) {})

	feed(t, l, v2Stream(0, pages), 512)

	if !bytes.Equal(mem.Bank(5), body) {
		t.Error("memory image differs from input")
	}
}

// loading must not depend on how the transport splits the stream
func TestSplitInvariance(t *testing.T) {

	var pages []pageData
	for id := byte(3); id <= 10; id++ {
		pages = append(pages, pageData{id: id, body: pageBody(id ^ 0x5a)})
	}
	data := v2Stream(3, pages)

	want := spectrum.NewRAM()
	l := NewLoader(want, func(*Snapshot) {})
	feed(t, l, data, len(data))

	for _, block := range []int{1, 7, 512, 1021} {
		mem := spectrum.NewRAM()
		launched := false
		l := NewLoader(mem, func(*Snapshot) { launched = true })
		feed(t, l, data, block)
		if !launched {
			t.Fatalf("block size %d: not launched", block)
		}
		for b := 0; b < spectrum.NumBanks; b++ {
			if !bytes.Equal(mem.Bank(b), want.Bank(b)) {
				t.Errorf("block size %d: bank %d differs", block, b)
			}
		}
	}
}

func TestExpectSnapshotResets(t *testing.T) {

	data := v2Stream(0, []pageData{
		{id: 8, body: pageBody(0x11)},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	})

	mem := spectrum.NewRAM()
	launched := 0
	l := NewLoader(mem, func(*Snapshot) { launched++ })

	// abandon a transfer halfway, then restart
	if err := l.ReceiveData(data[:100], true); err != nil {
		t.Fatal(err)
	}
	l.ExpectSnapshot()
	feed(t, l, data, 512)

	if launched != 1 {
		t.Fatalf("launched %d times", launched)
	}
}

// --- error handling ---------------------------------------------------------

func TestTruncatedInput(t *testing.T) {

	data := v2Stream(0, []pageData{{id: 8, body: pageBody(0x11)}})

	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	if err := l.ReceiveData(data[:len(data)-10], false); err == nil {
		t.Fatal("truncated stream accepted")
	} else if kind, _ := KindOf(err); kind != TruncatedInput {
		t.Fatalf("got %v", err)
	}
}

func TestTrailingGarbage(t *testing.T) {

	data := v2Stream(0, []pageData{
		{id: 8, body: pageBody(0x11)},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	})
	data = append(data, 0xde, 0xad)

	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feedErr(t, l, data, 512, TrailingGarbage)
}

func TestUnsupportedModel(t *testing.T) {
	// hardware mode 5 is not defined for v2
	data := v2Stream(5, nil)
	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feedErr(t, l, data, 512, UnsupportedModel)
}

func TestUnsupportedPage(t *testing.T) {
	data := v2Stream(0, []pageData{{id: 2, body: pageBody(0x11)}})
	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feedErr(t, l, data, 512, UnsupportedPage)
}

func TestBadAdditionalHeaderLength(t *testing.T) {

	data := testHeader()
	data = append(data, 30, 0x00)
	data = append(data, make([]byte, 30)...)

	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feedErr(t, l, data, 512, BadAdditionalHeaderLength)
}

func TestOversizedPage(t *testing.T) {

	// expands to BankSize+5 bytes
	body := append(pageBody(0x11), 1, 2, 3, 4, 5)

	data := v2Stream(0, []pageData{{id: 8, body: body}})
	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feedErr(t, l, data, 512, OversizedPage)
}

func TestDataAfterCompletion(t *testing.T) {

	data := v2Stream(0, []pageData{
		{id: 8, body: pageBody(0x11)},
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	})

	l := NewLoader(spectrum.NewRAM(), func(*Snapshot) {})
	feed(t, l, data, 512)

	err := l.ReceiveData([]byte{0x00}, false)
	if kind, _ := KindOf(err); kind != ProtocolError {
		t.Fatalf("got %v", err)
	}
}

func TestZeroCountRun(t *testing.T) {

	// ed ed 00 v is an empty run: v is consumed, nothing is written
	enc := []byte{0x01, escape, escape, 0x00, 0x07, 0x02}

	data := v2Stream(0, []pageData{
		{id: 4, body: pageBody(0x22)},
		{id: 5, body: pageBody(0x33)},
	})
	data = append(data, byte(len(enc)), 0x00, 8)
	data = append(data, enc...)

	mem := spectrum.NewRAM()
	launched := false
	l := NewLoader(mem, func(*Snapshot) { launched = true })

	feed(t, l, data, 512)

	if !launched {
		t.Fatal("launch callback not invoked")
	}
	if got := mem.Bank(5)[:3]; !bytes.Equal(got, []byte{0x01, 0x02, 0x00}) {
		t.Errorf("got % 02x, want 01 02 00", got)
	}
}

// an empty run inside a v1 body, where 00 as the count byte is only the
// end-of-data marker after a zero byte
func TestZeroCountRunV1(t *testing.T) {

	data := append(v1Header(0x9000, true),
		0x01, escape, escape, 0x00, 0x07, 0x02,
		0x00, escape, escape, 0x00)

	mem := spectrum.NewRAM()
	launched := false
	l := NewLoader(mem, func(*Snapshot) { launched = true })

	feed(t, l, data, 512)

	if !launched {
		t.Fatal("launch callback not invoked")
	}
	if got := mem.View48()[:4]; !bytes.Equal(got, []byte{0x01, 0x02, 0x00, 0x00}) {
		t.Errorf("got % 02x, want 01 02 00 00", got)
	}
}

// a page frame may carry an empty body: nothing is written, and the next
// byte already belongs to the following preamble
func TestEmptyPageBody(t *testing.T) {

	page4 := pageData{id: 4, body: pageBody(0x22), raw: true}
	page5 := pageData{id: 5, body: pageBody(0x33)}

	data := v2Stream(0, nil)
	data = append(data, 0x00, 0x00, 8)
	data = append(data, page4.frame()...)
	data = append(data, page5.frame()...)

	mem := spectrum.NewRAM()
	launched := false
	l := NewLoader(mem, func(*Snapshot) { launched = true })

	feed(t, l, data, 512)

	if !launched {
		t.Fatal("launch callback not invoked")
	}
	if !bytes.Equal(mem.Bank(5), make([]byte, spectrum.BankSize)) {
		t.Error("empty page wrote to memory")
	}
	if !bytes.Equal(mem.Bank(2), page4.body) ||
		!bytes.Equal(mem.Bank(0), page5.body) {
		t.Error("frame after empty page misparsed")
	}
}

// --- raw data mode ----------------------------------------------------------

func TestRawData(t *testing.T) {

	payload := []byte("snapshots.lst contents, one name per line\n")

	dest := make([]byte, 512)
	got := -1
	l := NewLoader(spectrum.NewRAM(), nil)
	l.ExpectRawData(dest, func(n int) { got = n })

	feed(t, l, payload, 16)

	if got != len(payload) {
		t.Fatalf("loaded callback got %d, want %d", got, len(payload))
	}
	if !bytes.Equal(dest[:got], payload) {
		t.Error("raw data differs from input")
	}
}

func TestRawDataOverrun(t *testing.T) {

	dest := make([]byte, 8)
	l := NewLoader(spectrum.NewRAM(), nil)
	l.ExpectRawData(dest, func(int) { t.Fatal("loaded despite overrun") })

	err := l.ReceiveData(make([]byte, 9), false)
	if kind, _ := KindOf(err); kind != ProtocolError {
		t.Fatalf("got %v", err)
	}
}

func TestRawDataExactMultiple(t *testing.T) {

	payload := make([]byte, 32)
	dest := make([]byte, 64)
	got := -1
	l := NewLoader(spectrum.NewRAM(), nil)
	l.ExpectRawData(dest, func(n int) { got = n })

	// 2 full blocks, then the empty closing datagram
	feed(t, l, payload, 16)

	if got != len(payload) {
		t.Fatalf("loaded callback got %d, want %d", got, len(payload))
	}
}
