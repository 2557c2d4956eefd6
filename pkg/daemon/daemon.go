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

package daemon

import (
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/format"
	"github.com/patrikpersson/speccyboot-sub001/pkg/snapshot/z80"
	"github.com/patrikpersson/speccyboot-sub001/pkg/spectrum"
)

// buffer for raw (non-snapshot) files, e.g. the boot menu snapshot list
const rawBufferSize = 3 * spectrum.BankSize

/*
	NewDaemon creates a daemon serving snapshots from the repository at
	repoPath. With a conduit, received snapshots are written through to
	the tethered board; without one, they go into simulated memory, which
	can then be inspected via the API.
*/
func NewDaemon(repoPath string, conduit *Conduit) *Daemon {
	return &Daemon{
		repoPath: repoPath,
		conduit:  conduit,
		status:   Status{State: StateIdle},
	}
}

//
type Daemon struct {
	repoPath string
	conduit  *Conduit
	tftp     *TFTPServer

	mu     sync.Mutex
	status Status
	mem    *spectrum.RAM
	raw    []byte
}

// Status describes the most recent transfer.
type Status struct {
	State      string `json:"state"`
	Name       string `json:"name,omitempty"`
	Hardware   string `json:"hardware,omitempty"`
	Version    int    `json:"version,omitempty"`
	PC         uint16 `json:"pc,omitempty"`
	KBLoaded   int    `json:"kbLoaded,omitempty"`
	KBExpected int    `json:"kbExpected,omitempty"`
	Error      string `json:"error,omitempty"`
}

//
const (
	StateIdle      = "idle"
	StateReceiving = "receiving"
	StateLoaded    = "loaded"
	StateFailed    = "failed"
)

// Serve starts the TFTP front-end and blocks until it stops.
func (d *Daemon) Serve(tftpAddress string) error {

	log.WithFields(log.Fields{
		"tftp": tftpAddress,
		"repo": d.repoPath}).Info("daemon starting")

	d.tftp = NewTFTPServer(d)
	return d.tftp.Serve(tftpAddress)
}

//
func (d *Daemon) Stop() {
	if d.tftp != nil {
		d.tftp.Stop()
	}
	if d.conduit != nil {
		d.conduit.Close()
	}
}

//
func (d *Daemon) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Memory returns the simulated memory filled by the last completed
// snapshot transfer; nil when writing through to a board, or before any
// snapshot has completed.
func (d *Daemon) Memory() *spectrum.RAM {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem
}

// RawFile returns the content of the last completed raw file transfer.
func (d *Daemon) RawFile() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw
}

/*
	Load ingests one complete file from in, chopped into transport-sized
	blocks so that the loader sees the same chunking as with TFTP. Used by
	the control API. Returns the snapshot descriptor, or nil for a raw
	file.
*/
func (d *Daemon) Load(name string, in io.Reader) (*z80.Snapshot, error) {

	t := d.newTransfer(name)
	buf := make([]byte, tftpBlockSize)

	for {
		n, err := io.ReadFull(in, buf)

		switch err {
		case nil:
			if err := t.receive(buf, true); err != nil {
				return nil, err
			}

		case io.EOF, io.ErrUnexpectedEOF:
			if err := t.receive(buf[:n], false); err != nil {
				return nil, err
			}
			return t.snap, nil

		default:
			t.fail(err)
			return nil, err
		}
	}
}

// --- single transfer --------------------------------------------------------

/*
	transfer is one incoming file: a fresh loader, plus the memory it
	writes into. Transfers are not concurrent; a new one simply replaces
	the previous state.
*/
type transfer struct {
	d      *Daemon
	name   string
	loader *z80.Loader
	ram    *spectrum.RAM
	rawBuf []byte
	snap   *z80.Snapshot
}

//
func (d *Daemon) newTransfer(name string) *transfer {

	t := &transfer{d: d, name: name}

	var mem spectrum.Memory
	if d.conduit != nil {
		mem = spectrum.NewBusMemory(d.conduit)
	} else {
		t.ram = spectrum.NewRAM()
		mem = t.ram
	}

	t.loader = z80.NewLoader(mem, t.launched)

	if _, typ, _ := format.SplitNameTypeCompressor(name); typ == format.TypeRaw {
		t.rawBuf = make([]byte, rawBufferSize)
		t.loader.ExpectRawData(t.rawBuf, t.rawLoaded)
	}

	d.mu.Lock()
	d.status = Status{State: StateReceiving, Name: name}
	d.mu.Unlock()

	log.WithField("name", name).Info("transfer started")
	return t
}

//
func (t *transfer) receive(data []byte, more bool) error {

	if err := t.loader.ReceiveData(data, more); err != nil {
		t.fail(err)
		return err
	}

	loaded, expected := t.loader.Progress()
	t.d.mu.Lock()
	t.d.status.KBLoaded = loaded
	t.d.status.KBExpected = expected
	t.d.mu.Unlock()

	return nil
}

//
func (t *transfer) fail(err error) {

	log.WithField("name", t.name).Errorf("transfer failed: %v", err)

	t.d.mu.Lock()
	t.d.status.State = StateFailed
	t.d.status.Error = err.Error()
	t.d.mu.Unlock()
}

// invoked by the loader once the snapshot is complete
func (t *transfer) launched(snap *z80.Snapshot) {

	t.snap = snap

	log.WithFields(log.Fields{
		"name":     t.name,
		"hardware": snap.Hardware,
		"pc":       fmt.Sprintf("0x%04x", snap.PC)}).Info("snapshot loaded")

	if t.d.conduit != nil {
		if err := t.d.conduit.Launch(snap); err != nil {
			t.fail(fmt.Errorf("launching on board: %v", err))
			return
		}
	}

	t.d.mu.Lock()
	t.d.status.State = StateLoaded
	t.d.status.Hardware = snap.Hardware
	t.d.status.Version = snap.Version
	t.d.status.PC = snap.PC
	t.d.mem = t.ram
	t.d.mu.Unlock()
}

// invoked by the loader once a raw file is complete
func (t *transfer) rawLoaded(n int) {

	log.WithFields(
		log.Fields{"name": t.name, "size": n}).Info("raw file loaded")

	t.d.mu.Lock()
	t.d.status.State = StateLoaded
	t.d.raw = t.rawBuf[:n]
	t.d.mu.Unlock()
}
