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

// Package decoder implements the in-place, flash-backed Gaussian elimination
// over GF(2) that recovers missing uncoded fragments from XOR parity
// fragments. This is the core of the system (spec.md §1): it maintains the
// missing-slot index, the packed upper-triangular reduction matrix, and
// performs row reduction and back-substitution directly against fragment
// payloads stored in a store.Unaligned.
package decoder

import (
	"github.com/pkg/errors"
	"github.com/templexxx/xorsimd"

	"github.com/lora-fuota/fragdec/parity"
	"github.com/lora-fuota/fragdec/store"
)

// State is the decoder's lifecycle state (spec.md §4.3.6).
type State int

const (
	StateInit State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// Outcome is the per-frame result a caller (Session) acts on.
type Outcome int

const (
	Ongoing Outcome = iota
	Complete
)

// Decoder holds all per-session reduction state: the missing-slot index, the
// packed triangular matrix, the pivot vector, and a handle to the backing
// store. There is exactly one Decoder per session; m2l is an instance field
// here, not the package-level static counter the source used (spec.md §9).
type Decoder struct {
	n           int
	fragSize    int
	flashOffset int64
	st          *store.Unaligned

	missingIndex  []int // length n; 0 = present, else 1-based missing ordinal
	lastSeenIndex int
	l             int // L: count of missing slots observed so far

	matrix *packedMatrix
	s      []byte // pivot-occupied vector, length L once allocated
	m2l    int

	state State

	scratch []byte // fragSize scratch buffer, reused across XORs
}

// New builds a Decoder for n uncoded fragments of fragSize bytes each,
// stored starting at flashOffset in st.
func New(n, fragSize int, flashOffset int64, st *store.Unaligned) *Decoder {
	return &Decoder{
		n:             n,
		fragSize:      fragSize,
		flashOffset:   flashOffset,
		st:            st,
		missingIndex:  make([]int, n),
		lastSeenIndex: 0,
		state:         StateInit,
		scratch:       make([]byte, fragSize),
	}
}

// Initialize transitions Init -> Running.
func (d *Decoder) Initialize() {
	d.state = StateRunning
}

// State reports the decoder's current lifecycle state.
func (d *Decoder) State() State { return d.state }

// LostCount reports L, the number of distinct missing slots observed so far.
func (d *Decoder) LostCount() int { return d.l }

func (d *Decoder) slotAddr(k int) int64 {
	return d.flashOffset + int64(k)*int64(d.fragSize)
}

func (d *Decoder) readSlot(k int, dst []byte) error {
	return d.st.Read(dst, d.slotAddr(k))
}

func (d *Decoder) writeSlot(k int, src []byte) error {
	return d.st.Program(src, d.slotAddr(k))
}

// missingSlotAccounting records newly-observed gaps ahead of frame i
// (spec.md §4.3.1). It must run for every frame, data or parity, before any
// reduction happens.
func (d *Decoder) missingSlotAccounting(i int) {
	upper := i - 1
	if upper > d.n {
		upper = d.n
	}
	for q := d.lastSeenIndex; q < upper; q++ {
		d.l++
		d.missingIndex[q] = d.l
	}

	next := i
	if next > d.n+1 {
		next = d.n + 1
	}
	d.lastSeenIndex = next
}

// missingSlotFor returns the slot index whose missing ordinal equals ordinal
// (1-based). Exactly one such slot must exist by construction (spec.md §3
// invariants); if none is found the caller has violated that invariant.
func (d *Decoder) missingSlotFor(ordinal int) int {
	for k, v := range d.missingIndex {
		if v == ordinal {
			return k
		}
	}
	panic("decoder: missingSlotFor found no slot for ordinal, missing_index invariant violated")
}

// ProcessData handles a data frame (1-based index i <= n) carrying payload
// (spec.md §4.3.2).
func (d *Decoder) ProcessData(i int, payload []byte) (Outcome, error) {
	d.missingSlotAccounting(i)

	if err := d.writeSlot(i-1, payload); err != nil {
		d.state = StateFailed
		return Ongoing, errors.Wrap(err, "ProcessData: program slot")
	}
	d.missingIndex[i-1] = 0

	if i == d.n && d.l == 0 {
		d.state = StateCompleted
		return Complete, nil
	}
	return Ongoing, nil
}

// ProcessParity handles a parity frame (1-based index i > n) carrying
// payload (spec.md §4.3.3).
func (d *Decoder) ProcessParity(i int, payload []byte) (Outcome, error) {
	d.missingSlotAccounting(i)

	if d.matrix == nil {
		// L is finalized by the time the first parity frame reaches this
		// point: missing-slot accounting for any frame with index > n always
		// sweeps gaps all the way up to n (see DESIGN.md).
		d.matrix = newPackedMatrix(d.l)
		d.s = make([]byte, d.l)
	}

	c := parity.Row(d.n, i-d.n)
	p := append([]byte(nil), payload...)
	v := make([]byte, d.l)

	for k := 0; k < d.n; k++ {
		if c[k] == 0 {
			continue
		}
		if d.missingIndex[k] == 0 {
			if err := d.readSlot(k, d.scratch); err != nil {
				d.state = StateFailed
				return Ongoing, errors.Wrap(err, "ProcessParity: read present slot")
			}
			xorsimd.Bytes(p, p, d.scratch)
		} else {
			v[d.missingIndex[k]-1] = 1
		}
	}

	if isZero(v) {
		// dependent on data/parity already received: drop silently
		return Ongoing, nil
	}

	first, ok := firstOne(v)
	for ok && d.s[first] == 1 {
		u := d.matrix.extractRow(first)
		xorsimd.Bytes(v, v, u)

		kstar := d.missingSlotFor(first + 1)
		if err := d.readSlot(kstar, d.scratch); err != nil {
			d.state = StateFailed
			return Ongoing, errors.Wrap(err, "ProcessParity: read reduced slot")
		}
		xorsimd.Bytes(p, p, d.scratch)

		if isZero(v) {
			// redundant: linearly dependent on already-stored parities
			return Ongoing, nil
		}
		first, ok = firstOne(v)
	}

	// a new pivot is available
	d.matrix.insertRow(first, v)
	kstar := d.missingSlotFor(first + 1)
	if err := d.writeSlot(kstar, p); err != nil {
		d.state = StateFailed
		return Ongoing, errors.Wrap(err, "ProcessParity: store reduced row")
	}
	d.s[first] = 1
	d.m2l++

	if d.m2l == d.l {
		if err := d.backSubstitute(); err != nil {
			d.state = StateFailed
			return Ongoing, errors.Wrap(err, "ProcessParity: back-substitution")
		}
		d.state = StateCompleted
		return Complete, nil
	}
	return Ongoing, nil
}

// backSubstitute diagonalizes the remaining rows once m2l == L, writing the
// recovered content of every originally-missing slot back into flash
// (spec.md §4.3.4).
func (d *Decoder) backSubstitute() error {
	other := make([]byte, d.fragSize)

	for i := d.l - 2; i >= 0; i-- {
		ui := d.matrix.extractRow(i)

		dataI := make([]byte, d.fragSize)
		slotI := d.missingSlotFor(i + 1)
		if err := d.readSlot(slotI, dataI); err != nil {
			return errors.Wrap(err, "backSubstitute: read row i")
		}

		for j := d.l - 1; j > i; j-- {
			if ui[j] != 1 {
				continue
			}
			uj := d.matrix.extractRow(j)
			xorsimd.Bytes(ui, ui, uj)
			d.matrix.insertRow(i, ui)

			slotJ := d.missingSlotFor(j + 1)
			if err := d.readSlot(slotJ, other); err != nil {
				return errors.Wrap(err, "backSubstitute: read row j")
			}
			xorsimd.Bytes(dataI, dataI, other)
		}

		if err := d.writeSlot(slotI, dataI); err != nil {
			return errors.Wrap(err, "backSubstitute: write row i")
		}
	}
	return nil
}
