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

// Package parity implements the deterministic PRBS23-driven coefficient
// generator shared by encoder and decoder. Any change here is a wire-protocol
// break (spec.md §6, "PRBS23 wire compatibility").
package parity

// prbs23 advances the 23-bit LFSR state used to pick parity coefficients.
// The source computes this as floor(x/2) via a double-precision cast; since x
// is always non-negative that is exactly an arithmetic right shift of a
// 23-bit value, which is what we do here (spec.md §9).
func prbs23(x int) int {
	b0 := x & 1
	b1 := (x & 0x20) >> 5
	return (x >> 1) + ((b0 ^ b1) << 22)
}

// isPowerOfTwo reports whether n has exactly one bit set.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Row computes the coefficient row for parity fragment i (1-based, i > n)
// given n uncoded fragments. The returned slice has length n; row[k] == 1
// iff uncoded fragment k+1 was XORed into this parity fragment at the
// encoder.
//
// j is the 1-based parity index (i - n); the PRBS23 seed and modulus
// adjustment below must be preserved bit-exact (spec.md §4.2).
func Row(n, j int) []byte {
	row := make([]byte, n)

	m := 0
	if isPowerOfTwo(n) {
		m = 1
	}

	x := 1 + 1001*j
	modulus := n + m

	nbCoeff := 0
	for nbCoeff < n/2 {
		r := 1 << 16
		for r >= n {
			x = prbs23(x)
			r = x % modulus
		}
		row[r] = 1
		nbCoeff++
	}

	return row
}
