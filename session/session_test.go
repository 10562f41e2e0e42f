package session

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/lora-fuota/fragdec/flash"
	"github.com/lora-fuota/fragdec/parity"
)

func fragment(img []byte, k, fragSize int) []byte {
	return img[k*fragSize : (k+1)*fragSize]
}

func parityPayload(img []byte, n, fragSize, j int) []byte {
	row := parity.Row(n, j)
	out := make([]byte, fragSize)
	for k := 0; k < n; k++ {
		if row[k] == 1 {
			for b := 0; b < fragSize; b++ {
				out[b] ^= img[k*fragSize+b]
			}
		}
	}
	return out
}

func TestSessionRejectsWrongSize(t *testing.T) {
	const n, fragSize = 4, 8
	dev := flash.NewMemory(n*fragSize+4096, 256, 4096)
	s := New(dev, Opts{NumberOfFragments: n, FragmentSize: fragSize, RedundancyPackets: 2})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	res, err := s.ProcessFrame(1, make([]byte, fragSize+1))
	if res != ResultSizeIncorrect {
		t.Fatalf("expected ResultSizeIncorrect, got %v (err=%v)", res, err)
	}
	if err == nil {
		t.Fatal("expected an error for a mis-sized frame")
	}
}

func TestSessionCompletesOnAllData(t *testing.T) {
	const n, fragSize = 4, 8
	r := rand.New(rand.NewSource(5))
	img := make([]byte, n*fragSize)
	r.Read(img)

	dev := flash.NewMemory(n*fragSize+4096, 256, 4096)
	s := New(dev, Opts{NumberOfFragments: n, FragmentSize: fragSize, RedundancyPackets: 2})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var last Result
	for i := 1; i <= n; i++ {
		res, err := s.ProcessFrame(i, fragment(img, i-1, fragSize))
		if err != nil {
			t.Fatalf("ProcessFrame(%d): %v", i, err)
		}
		last = res
	}
	if last != ResultComplete {
		t.Fatalf("expected ResultComplete, got %v", last)
	}

	got := make([]byte, n*fragSize)
	if err := s.Store().Read(got, 0); err != nil {
		t.Fatalf("read reconstructed image: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Fatalf("image mismatch:\ngot  %x\nwant %x", got, img)
	}
}

func TestSessionHonorsFlashOffset(t *testing.T) {
	const n, fragSize = 4, 8
	const offset = 4096
	r := rand.New(rand.NewSource(7))
	img := make([]byte, n*fragSize)
	r.Read(img)

	dev := flash.NewMemory(offset+n*fragSize+4096, 256, 4096)
	s := New(dev, Opts{NumberOfFragments: n, FragmentSize: fragSize, RedundancyPackets: 2, FlashOffset: offset})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var last Result
	for i := 1; i <= n; i++ {
		res, err := s.ProcessFrame(i, fragment(img, i-1, fragSize))
		if err != nil {
			t.Fatalf("ProcessFrame(%d): %v", i, err)
		}
		last = res
	}
	if last != ResultComplete {
		t.Fatalf("expected ResultComplete, got %v", last)
	}
	if got := s.ReceivedCount(); got != n {
		t.Fatalf("ReceivedCount() = %d, want %d", got, n)
	}

	// the image must land at offset, not at 0
	untouched := make([]byte, fragSize)
	if err := s.Store().Read(untouched, 0); err != nil {
		t.Fatalf("read leading region: %v", err)
	}
	for _, b := range untouched {
		if b != 0xFF {
			t.Fatalf("expected region before FlashOffset to remain erased, got %x", untouched)
		}
	}

	got := make([]byte, n*fragSize)
	if err := s.Store().Read(got, offset); err != nil {
		t.Fatalf("read reconstructed image at offset: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Fatalf("image mismatch at offset:\ngot  %x\nwant %x", got, img)
	}
}

func TestSessionConfigRoundTrip(t *testing.T) {
	c := Config{N: 4, FragSize: 8, Padding: 0, Redundancy: 2, FlashOffset: 4096}
	opts := c.Opts()
	want := Opts{NumberOfFragments: 4, FragmentSize: 8, Padding: 0, RedundancyPackets: 2, FlashOffset: 4096}
	if opts != want {
		t.Fatalf("Opts() = %+v, want %+v", opts, want)
	}
}

func TestSessionRecoversViaRedundancy(t *testing.T) {
	const n, fragSize = 4, 8
	r := rand.New(rand.NewSource(6))
	img := make([]byte, n*fragSize)
	r.Read(img)

	dev := flash.NewMemory(n*fragSize+4096, 256, 4096)
	s := New(dev, Opts{NumberOfFragments: n, FragmentSize: fragSize, RedundancyPackets: 2})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := s.ProcessFrame(1, fragment(img, 0, fragSize)); err != nil {
		t.Fatalf("ProcessFrame(1): %v", err)
	}
	if _, err := s.ProcessFrame(3, fragment(img, 2, fragSize)); err != nil {
		t.Fatalf("ProcessFrame(3): %v", err)
	}

	// j=3 (slots 1,3) and j=4 (slots 1,2) are linearly independent over the
	// dropped slots 1 and 3; see
	// decoder/decoder_test.go for why j=1/j=2 can't be used at n=4.
	p3 := parityPayload(img, n, fragSize, 3)
	p4 := parityPayload(img, n, fragSize, 4)

	if _, err := s.ProcessFrame(n+3, p3); err != nil {
		t.Fatalf("ProcessFrame(n+3): %v", err)
	}
	res, err := s.ProcessFrame(n+4, p4)
	if err != nil {
		t.Fatalf("ProcessFrame(n+4): %v", err)
	}
	if res != ResultComplete {
		t.Fatalf("expected ResultComplete, got %v", res)
	}

	got := make([]byte, n*fragSize)
	if err := s.Store().Read(got, 0); err != nil {
		t.Fatalf("read reconstructed image: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Fatalf("image mismatch:\ngot  %x\nwant %x", got, img)
	}
}
