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

// Package store wraps a page/erase-aligned flash.Device with a byte-granular
// read/program interface backed by a one-page read-modify-write cache. It is
// the only part of the system allowed to touch flash.Device directly once a
// session is running.
package store

import (
	"github.com/pkg/errors"

	"github.com/lora-fuota/fragdec/flash"
)

// sentinel for "no page currently cached"
const noPage = ^uint32(0)

// Unaligned wraps a flash.Device for byte-granular read/program. It keeps a
// single page-sized buffer; access to it is not safe for concurrent use,
// matching the single-owner model in which Session exclusively borrows the
// store for the lifetime of a session.
type Unaligned struct {
	dev       flash.Device
	pageSize  int
	totalSize int64
	buf       []byte
	lastPage  uint32
}

// New wraps dev, selecting an internal page size equal to the device's read
// size, promoted to 528 bytes when the read size is small, 528 is a
// multiple of it, and the device is large enough to hold a 528-byte page
// (to accommodate AT45-style 528-byte pages).
func New(dev flash.Device) *Unaligned {
	pageSize := dev.ReadSize()
	if pageSize < 256 && 528%pageSize == 0 && dev.Size() >= 528 {
		pageSize = 528
	}

	return &Unaligned{
		dev:       dev,
		pageSize:  pageSize,
		totalSize: dev.Size(),
		buf:       make([]byte, pageSize),
		lastPage:  noPage,
	}
}

// PageSize returns the internal page size selected at construction.
func (u *Unaligned) PageSize() int { return u.pageSize }

func (u *Unaligned) ensurePage(page uint32) error {
	if u.lastPage == page {
		return nil
	}
	addr := int64(page) * int64(u.pageSize)
	if err := u.dev.ReadAt(u.buf, addr); err != nil {
		return errors.Wrap(err, "ensurePage: read")
	}
	u.lastPage = page
	return nil
}

// Read copies len(dst) bytes starting at addr into dst, serving from the
// cached page where possible.
func (u *Unaligned) Read(dst []byte, addr int64) error {
	bytesLeft := len(dst)
	pos := 0
	for bytesLeft > 0 {
		page := uint32(addr / int64(u.pageSize))
		offset := int(addr % int64(u.pageSize))
		length := u.pageSize - offset
		if length > bytesLeft {
			length = bytesLeft
		}

		if err := u.ensurePage(page); err != nil {
			return err
		}
		copy(dst[pos:pos+length], u.buf[offset:offset+length])

		bytesLeft -= length
		addr += int64(length)
		pos += length
	}
	return nil
}

// Program writes len(src) bytes starting at addr, read-modify-writing one
// page at a time. The caller must have erased the target region; Program
// does not erase before writing.
func (u *Unaligned) Program(src []byte, addr int64) error {
	bytesLeft := len(src)
	pos := 0
	for bytesLeft > 0 {
		page := uint32(addr / int64(u.pageSize))
		offset := int(addr % int64(u.pageSize))
		length := u.pageSize - offset
		if length > bytesLeft {
			length = bytesLeft
		}

		if err := u.ensurePage(page); err != nil {
			return err
		}
		copy(u.buf[offset:offset+length], src[pos:pos+length])

		pageAddr := int64(page) * int64(u.pageSize)
		if err := u.dev.ProgramAt(u.buf, pageAddr); err != nil {
			return errors.Wrap(err, "Program: program")
		}
		u.lastPage = page

		bytesLeft -= length
		addr += int64(length)
		pos += length
	}
	return nil
}

// Erase erases [addr, addr+len), which must start at an erase-block boundary;
// len is rounded up to a multiple of the erase size.
func (u *Unaligned) Erase(addr int64, length int64) error {
	eraseSize := int64(u.dev.EraseSize())
	if addr%eraseSize != 0 {
		return flash.ErrUnalignedErase
	}

	rounded := ((length + eraseSize - 1) / eraseSize) * eraseSize
	if err := u.dev.EraseAt(addr, rounded); err != nil {
		return errors.Wrap(err, "Erase")
	}
	// the erased region may have invalidated the cached page
	u.lastPage = noPage
	return nil
}
