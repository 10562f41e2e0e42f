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

package decoder

// packedMatrix holds the reduced-parity matrix M: an upper-triangular L x L
// boolean matrix, packed bit-for-bit (msb-first within each byte), storing
// only the [r..L) suffix of each row r (spec.md §4.3.5). L is fixed once the
// matrix starts being used — the missing-slot count is always finalized
// before the first parity frame reaches a pivot (see DESIGN.md).
type packedMatrix struct {
	l    int
	bits []byte
}

// newPackedMatrix allocates a matrix for a missing-slot count of l.
func newPackedMatrix(l int) *packedMatrix {
	totalBits := l * (l + 1) / 2
	return &packedMatrix{
		l:    l,
		bits: make([]byte, (totalBits+7)/8),
	}
}

// offset returns the bit offset of the start of row r's stored suffix.
func (m *packedMatrix) offset(r int) int {
	return r*m.l - r*(r-1)/2
}

func (m *packedMatrix) getBit(b int) byte {
	return (m.bits[b/8] >> (7 - uint(b%8))) & 1
}

func (m *packedMatrix) setBit(b int, v byte) {
	byteIdx := b / 8
	mask := byte(1) << (7 - uint(b%8))
	if v != 0 {
		m.bits[byteIdx] |= mask
	} else {
		m.bits[byteIdx] &^= mask
	}
}

// extractRow reads row r as a full logical length-L vector, zero-padding
// positions [0, r).
func (m *packedMatrix) extractRow(r int) []byte {
	row := make([]byte, m.l)
	start := m.offset(r)
	for i := r; i < m.l; i++ {
		row[i] = m.getBit(start + (i - r))
	}
	return row
}

// insertRow writes positions [r, L) of v into row r of the packed matrix.
// Positions [0, r) of v are ignored (they are implicitly zero by the
// upper-triangular invariant).
func (m *packedMatrix) insertRow(r int, v []byte) {
	start := m.offset(r)
	for i := r; i < m.l; i++ {
		m.setBit(start+(i-r), v[i])
	}
}
