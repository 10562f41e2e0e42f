// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package flash defines the block-device contract that the decoder's storage
// layer is built on, plus an in-memory reference implementation for tests and
// the cmd/fragsim demo.
package flash

import "github.com/pkg/errors"

// Device is a page/erase-aligned block device. Implementations are expected
// to require erase-before-program at page granularity, matching flash
// hardware semantics; callers above Device are responsible for erasing a
// region before any byte inside it is programmed a second time.
type Device interface {
	// ReadSize returns the device's native read granularity in bytes.
	ReadSize() int
	// EraseSize returns the device's erase-block granularity in bytes.
	EraseSize() int
	// Size returns the total addressable size of the device in bytes.
	Size() int64

	// ReadAt reads len(p) bytes starting at addr.
	ReadAt(p []byte, addr int64) error
	// ProgramAt programs len(p) bytes starting at addr. addr and len(p) need
	// not be page-aligned; the caller is responsible for erasing the target
	// region ahead of time.
	ProgramAt(p []byte, addr int64) error
	// EraseAt erases len bytes starting at addr. Both addr and len must be
	// multiples of EraseSize().
	EraseAt(addr int64, length int64) error
}

// Errors returned by Device implementations. Higher layers wrap these with
// errors.Wrap to add call-site context before surfacing them.
var (
	ErrOutOfRange    = errors.New("flash: address range out of bounds")
	ErrUnalignedErase = errors.New("flash: erase address/length not erase-block aligned")
)
