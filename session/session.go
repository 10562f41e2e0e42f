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

// Package session wires a store.Unaligned and a decoder.Decoder together into
// the single entry point a transport layer drives: one frame in, one result
// out. It owns frame-size validation and flash erase-on-start, matters the
// decoder itself doesn't know about (spec.md §4.4).
package session

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/lora-fuota/fragdec/decoder"
	"github.com/lora-fuota/fragdec/flash"
	"github.com/lora-fuota/fragdec/store"
)

// Result mirrors the source's FragResult (spec.md §4.4), keeping the same
// four-way split between "keep going", "done", a frame rejected for its size
// before reaching the decoder, and a flash failure inside the decoder.
type Result int

const (
	ResultOK Result = iota
	ResultSizeIncorrect
	ResultFlashError
	ResultComplete
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultSizeIncorrect:
		return "fragment size incorrect"
	case ResultFlashError:
		return "writing to flash failed"
	case ResultComplete:
		return "complete"
	default:
		return "unknown result"
	}
}

// Opts configures a Session the way FragmentationSessionOpts_t does: fragment
// geometry plus the redundancy budget (spec.md §3). Padding is carried for
// callers that need to trim the final fragment back to the original image
// length; the decoder itself is padding-agnostic.
type Opts struct {
	NumberOfFragments int
	FragmentSize      int
	Padding           int
	RedundancyPackets int
	FlashOffset       int64
}

// Session is a Decoder plus the fragment-size policing and flash-erase setup
// FragmentationSession added on top of FragmentationMath in the source.
type Session struct {
	st       *store.Unaligned
	opts     Opts
	dec      *decoder.Decoder
	received int
}

// New builds a Session and allocates its store and decoder buffers. Flash
// I/O happens in Initialize, not here, and a constructed-but-uninitialized
// Session reports StateInit (spec.md "Builder pattern" design note).
func New(dev flash.Device, opts Opts) *Session {
	st := store.New(dev)
	return &Session{
		st:   st,
		opts: opts,
		dec:  decoder.New(opts.NumberOfFragments, opts.FragmentSize, opts.FlashOffset, st),
	}
}

// Initialize clears the flash region that will hold the reconstructed image
// and starts the decoder. Either both steps succeed and the Session is ready
// to process frames, or an error is returned and the Session must be
// discarded; there is no partially-initialized state to recover from.
func (s *Session) Initialize() error {
	log.Printf("session starting: fragments=%d fragsize=%d padding=%d redundancy=%d flashoffset=%d",
		s.opts.NumberOfFragments, s.opts.FragmentSize, s.opts.Padding, s.opts.RedundancyPackets, s.opts.FlashOffset)

	size := int64(s.opts.NumberOfFragments) * int64(s.opts.FragmentSize)
	if err := s.st.Erase(s.opts.FlashOffset, size); err != nil {
		return errors.Wrap(err, "session: clear flash region")
	}
	s.dec.Initialize()
	return nil
}

// ProcessFrame feeds one frame (1-based index, no fragindex bytes in
// payload) to the decoder. size is validated against FragmentSize before any
// flash I/O happens, matching the source's early-return on a short frame.
func (s *Session) ProcessFrame(index int, payload []byte) (Result, error) {
	if len(payload) != s.opts.FragmentSize {
		return ResultSizeIncorrect, fmt.Errorf("session: frame %d has size %d, want %d", index, len(payload), s.opts.FragmentSize)
	}

	var outcome decoder.Outcome
	var err error
	if index <= s.opts.NumberOfFragments {
		outcome, err = s.dec.ProcessData(index, payload)
	} else {
		outcome, err = s.dec.ProcessParity(index, payload)
	}
	s.received++
	if err != nil {
		return ResultFlashError, errors.Wrap(err, "session: process frame")
	}
	if outcome == decoder.Complete {
		return ResultComplete, nil
	}
	return ResultOK, nil
}

// LostCount reports the number of missing fragments detected so far. It is
// not decremented when a missing fragment is later received or recovered.
func (s *Session) LostCount() int { return s.dec.LostCount() }

// ReceivedCount reports how many frames have been handed to the decoder,
// i.e. passed the size check, regardless of outcome.
func (s *Session) ReceivedCount() int { return s.received }

// State exposes the decoder's lifecycle state, e.g. for a caller deciding
// whether to keep accepting frames.
func (s *Session) State() decoder.State { return s.dec.State() }

// Store exposes the backing UnalignedStore so a caller can read the
// reconstructed image once ProcessFrame reports ResultComplete.
func (s *Session) Store() *store.Unaligned { return s.st }
