/*
   SpeccyBoot - ZX Spectrum network boot daemon
   Copyright (c) 2026, Patrik Persson

   This file is part of SpeccyBoot.

   The TFTP front-end speaks the minimal protocol subset the bootloader
   uses: octet mode, 512-byte blocks, no option negotiation. Read requests
   serve files from the snapshot repository; write requests push a file
   into the daemon's loader.

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
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/patrikpersson/speccyboot-sub001/pkg/repo"
)

//
const (
	opRRQ   = 1
	opWRQ   = 2
	opDATA  = 3
	opACK   = 4
	opERROR = 5

	tftpBlockSize = 512
	tftpTimeout   = 3 * time.Second
	tftpRetries   = 5
)

//
func NewTFTPServer(d *Daemon) *TFTPServer {
	return &TFTPServer{daemon: d}
}

//
type TFTPServer struct {
	daemon *Daemon
	//
	mu      sync.Mutex
	conn    *net.UDPConn
	stopped bool
}

// Serve listens for TFTP requests on address and blocks. Each accepted
// request gets its own connection and goroutine, per RFC 1350.
func (s *TFTPServer) Serve(address string) error {

	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	log.WithField("address", address).Info("TFTP server listening")

	buf := make([]byte, 1500)

	for {
		n, client, err := conn.ReadFromUDP(buf)
		if err != nil {
			if s.isStopped() {
				return nil
			}
			return err
		}

		op, file, mode, err := parseRequest(buf[:n])
		if err != nil {
			log.Debugf("ignoring packet from %v: %v", client, err)
			continue
		}

		logger := log.WithFields(log.Fields{"client": client, "file": file})

		if mode != "octet" {
			logger.Warnf("rejecting transfer mode %q", mode)
			go sendErrorTo(client, "only octet mode supported")
			continue
		}

		switch op {
		case opRRQ:
			logger.Info("read request")
			go s.handleRead(client, file)
		case opWRQ:
			logger.Info("write request")
			go s.handleWrite(client, file)
		}
	}
}

//
func (s *TFTPServer) Stop() {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

//
func (s *TFTPServer) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

/*
	handleRead serves a file from the repository. The final data block is
	shorter than 512 bytes; when the file size is an exact multiple, an
	empty block closes the transfer. This is what the bootloader's
	more-data-expected logic keys on.
*/
func (s *TFTPServer) handleRead(client *net.UDPAddr, file string) {

	logger := log.WithFields(log.Fields{"client": client, "file": file})

	conn, err := net.DialUDP("udp", nil, client)
	if err != nil {
		logger.Errorf("cannot open transfer connection: %v", err)
		return
	}
	defer conn.Close()

	src, err := repo.Resolve(file, s.daemon.repoPath)
	if err != nil {
		logger.Warnf("cannot serve: %v", err)
		sendPacket(conn, errorPacket(fmt.Sprintf("not found: %s", file)))
		return
	}
	defer src.Close()

	buf := make([]byte, tftpBlockSize)
	var block uint16 = 1

	for {
		n, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			logger.Errorf("read error: %v", err)
			sendPacket(conn, errorPacket("read error"))
			return
		}

		if err := sendAcked(conn, dataPacket(block, buf[:n]), block); err != nil {
			logger.Errorf("transfer failed: %v", err)
			return
		}

		if n < tftpBlockSize {
			logger.WithField("blocks", block).Info("file served")
			return
		}
		block++
	}
}

// handleWrite accepts a pushed file and feeds it into the loader.
func (s *TFTPServer) handleWrite(client *net.UDPAddr, file string) {

	logger := log.WithFields(log.Fields{"client": client, "file": file})

	conn, err := net.DialUDP("udp", nil, client)
	if err != nil {
		logger.Errorf("cannot open transfer connection: %v", err)
		return
	}
	defer conn.Close()

	t := s.daemon.newTransfer(file)

	if err := sendPacket(conn, ackPacket(0)); err != nil {
		logger.Errorf("cannot acknowledge request: %v", err)
		return
	}

	var expected uint16 = 1
	buf := make([]byte, 1500)

	for retries := 0; ; {

		conn.SetReadDeadline(time.Now().Add(tftpTimeout))
		n, err := conn.Read(buf)

		if err != nil {
			if retries++; retries > tftpRetries {
				logger.Error("transfer timed out")
				t.fail(fmt.Errorf("transfer timed out"))
				return
			}
			// repeat last ACK, the client may have missed it
			sendPacket(conn, ackPacket(expected-1))
			continue
		}
		retries = 0

		block, payload, err := parseData(buf[:n])
		if err != nil {
			logger.Debugf("ignoring packet: %v", err)
			continue
		}

		if block != expected {
			// retransmission of a block already consumed
			if block == expected-1 {
				sendPacket(conn, ackPacket(block))
			}
			continue
		}

		more := len(payload) == tftpBlockSize
		if err := t.receive(payload, more); err != nil {
			sendPacket(conn, errorPacket(err.Error()))
			return
		}

		sendPacket(conn, ackPacket(block))
		expected++

		if !more {
			logger.WithField("blocks", block).Info("file received")
			return
		}
	}
}

// --- packets ----------------------------------------------------------------

//
func parseRequest(pkt []byte) (op uint16, file, mode string, err error) {

	if len(pkt) < 6 {
		return 0, "", "", fmt.Errorf("packet too short")
	}

	op = uint16(pkt[0])<<8 | uint16(pkt[1])
	if op != opRRQ && op != opWRQ {
		return 0, "", "", fmt.Errorf("unexpected opcode %d", op)
	}

	fields := bytes.Split(pkt[2:], []byte{0})
	if len(fields) < 2 {
		return 0, "", "", fmt.Errorf("malformed request")
	}

	file = string(fields[0])
	mode = strings.ToLower(string(fields[1]))

	if file == "" {
		return 0, "", "", fmt.Errorf("empty file name")
	}

	return op, file, mode, nil
}

//
func parseData(pkt []byte) (block uint16, payload []byte, err error) {

	if len(pkt) < 4 {
		return 0, nil, fmt.Errorf("packet too short")
	}
	if op := uint16(pkt[0])<<8 | uint16(pkt[1]); op != opDATA {
		return 0, nil, fmt.Errorf("unexpected opcode %d", op)
	}

	return uint16(pkt[2])<<8 | uint16(pkt[3]), pkt[4:], nil
}

//
func dataPacket(block uint16, payload []byte) []byte {
	pkt := make([]byte, 4+len(payload))
	pkt[1] = opDATA
	pkt[2] = byte(block >> 8)
	pkt[3] = byte(block)
	copy(pkt[4:], payload)
	return pkt
}

//
func ackPacket(block uint16) []byte {
	return []byte{0, opACK, byte(block >> 8), byte(block)}
}

// error code 0 ("not defined") with a message; the bootloader only shows
// the message anyway
func errorPacket(msg string) []byte {
	pkt := make([]byte, 5+len(msg))
	pkt[1] = opERROR
	copy(pkt[4:], msg)
	return pkt
}

//
func sendPacket(conn *net.UDPConn, pkt []byte) error {
	_, err := conn.Write(pkt)
	return err
}

// sendAcked sends pkt and waits for the matching ACK, resending on
// timeout up to the retry limit.
func sendAcked(conn *net.UDPConn, pkt []byte, block uint16) error {

	buf := make([]byte, 256)

	for retries := 0; retries <= tftpRetries; retries++ {

		if err := sendPacket(conn, pkt); err != nil {
			return err
		}

		conn.SetReadDeadline(time.Now().Add(tftpTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			continue
		}

		if n >= 4 &&
			uint16(buf[0])<<8|uint16(buf[1]) == opACK &&
			uint16(buf[2])<<8|uint16(buf[3]) == block {
			return nil
		}
	}

	return fmt.Errorf("no ACK for block %d", block)
}

//
func sendErrorTo(client *net.UDPAddr, msg string) {
	if conn, err := net.DialUDP("udp", nil, client); err == nil {
		defer conn.Close()
		sendPacket(conn, errorPacket(msg))
	}
}
