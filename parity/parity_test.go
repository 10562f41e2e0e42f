package parity

import (
	"bytes"
	"testing"
)

// S5 from spec.md §8: N=8, j=1 uses modulus N+1 (N is a power of two); N=7,
// j=1 uses modulus N (N is not a power of two). Golden rows below were
// derived by tracing the PRBS23 reference trajectory seeded at x = 1+1001*j.
func TestRowGoldenVectors(t *testing.T) {
	cases := []struct {
		n, j int
		want []byte
	}{
		{8, 1, []byte{1, 1, 0, 0, 1, 0, 1, 0}},
		{7, 1, []byte{0, 0, 0, 0, 0, 1, 1}},
	}

	for _, c := range cases {
		got := Row(c.n, c.j)
		if !bytes.Equal(got, c.want) {
			t.Fatalf("Row(%d,%d) = %v, want %v", c.n, c.j, got, c.want)
		}
	}
}

// Property 7: determinism across repeated calls.
func TestRowDeterministic(t *testing.T) {
	for n := 2; n < 64; n++ {
		for j := 1; j <= 4; j++ {
			a := Row(n, j)
			b := Row(n, j)
			if !bytes.Equal(a, b) {
				t.Fatalf("Row(%d,%d) not deterministic: %v vs %v", n, j, a, b)
			}
		}
	}
}

func TestRowLength(t *testing.T) {
	for n := 1; n < 32; n++ {
		got := Row(n, 3)
		if len(got) != n {
			t.Fatalf("Row(%d, 3) has length %d, want %d", n, len(got), n)
		}
	}
}

func TestPrbs23Shift(t *testing.T) {
	// prbs23 must be equivalent to floor(x/2) + ((bit0^bit5)<<22) for
	// non-negative x; right shift realizes the floor-divide exactly.
	x := 1002
	got := prbs23(x)
	want := (x / 2) + (((x & 1) ^ ((x & 0x20) >> 5)) << 22)
	if got != want {
		t.Fatalf("prbs23(%d) = %d, want %d", x, got, want)
	}
}
