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

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/snapshot/z80"
)

/*
	Conduit command bytes. Each frame is the command byte followed by its
	fixed-size arguments; LAUNCH carries the register block, preceded by
	its length.

	POKE   addr_hi addr_lo value    store into guest memory
	OUT    port_hi port_lo value    write to guest I/O port
	LAUNCH len reg_block...         perform the context switch
*/
const (
	cmdPoke   = 0x01
	cmdOut    = 0x02
	cmdLaunch = 0x03
)

/*
	NewConduit opens the serial connection to a tethered board. The board
	side consumes the frames defined above; 8N1 framing throughout.
*/
func NewConduit(device string, baudRate uint) (*Conduit, error) {

	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %v", device, err)
	}

	log.WithFields(log.Fields{
		"device": device, "baud": baudRate}).Info("conduit opened")

	return &Conduit{port: port, device: device}, nil
}

// Conduit writes guest state through to a board over serial. It is the
// hardware-backed counterpart of simulated memory.
type Conduit struct {
	port   io.ReadWriteCloser
	device string
	mu     sync.Mutex
}

//
func (c *Conduit) Close() error {
	log.WithField("device", c.device).Info("closing conduit")
	return c.port.Close()
}

// WriteMem implements the memory side of spectrum.Bus.
func (c *Conduit) WriteMem(addr uint16, value byte) error {
	return c.send([]byte{cmdPoke, byte(addr >> 8), byte(addr), value})
}

// WritePort implements the I/O side of spectrum.Bus.
func (c *Conduit) WritePort(port uint16, value byte) error {
	return c.send([]byte{cmdOut, byte(port >> 8), byte(port), value})
}

// Launch sends the register block and hands control to the loaded guest.
func (c *Conduit) Launch(snap *z80.Snapshot) error {

	log.WithFields(log.Fields{
		"device": c.device,
		"pc":     fmt.Sprintf("0x%04x", snap.PC)}).Info("launching on board")

	hdr := snap.EncodeHeader()
	frame := append([]byte{cmdLaunch, byte(len(hdr))}, hdr...)
	return c.send(frame)
}

//
func (c *Conduit) send(frame []byte) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(frame) > 0 {
		n, err := c.port.Write(frame)
		if err != nil {
			return fmt.Errorf("conduit write failed: %v", err)
		}
		frame = frame[n:]
	}
	return nil
}
