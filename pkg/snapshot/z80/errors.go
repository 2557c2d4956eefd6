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
	"errors"
	"fmt"
)

/*
	All parse errors are fatal: once snapshot data has been partially
	written into memory, there is no way back. The transport binds an
	error kind to its own halt policy.
*/
type ErrorKind int

//
const (
	// transport said no more data, but the snapshot is incomplete
	TruncatedInput ErrorKind = iota

	// bytes arrived after the snapshot was fully consumed
	TrailingGarbage

	// hardware mode byte does not name a supported machine
	UnsupportedModel

	// page id not valid for the snapshot's machine model
	UnsupportedPage

	// additional header length is not one of 23, 54, 55
	BadAdditionalHeaderLength

	// page body expanded to more than 16384 bytes
	OversizedPage

	// caller broke the loader contract (data after launch, overrun, ...)
	ProtocolError
)

//
func (k ErrorKind) String() string {
	switch k {
	case TruncatedInput:
		return "truncated input"
	case TrailingGarbage:
		return "trailing garbage"
	case UnsupportedModel:
		return "unsupported model"
	case UnsupportedPage:
		return "unsupported page"
	case BadAdditionalHeaderLength:
		return "bad additional header length"
	case OversizedPage:
		return "oversized page"
	case ProtocolError:
		return "protocol error"
	}
	return "unknown error"
}

//
type Error struct {
	Kind   ErrorKind
	Detail string
}

//
func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

//
func errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, if err is a snapshot parse error
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
