package store

import (
	"bytes"
	"testing"

	"github.com/lora-fuota/fragdec/flash"
)

// S6 from spec.md §8: write [0xAA,0xBB,0xCC] at address 5 of a device whose
// page size is 4; reading back bytes [3..9) must equal the pre-erased 0xFF
// prefix followed by the written bytes followed by 0xFF.
func TestUnalignedProgramAcrossPages(t *testing.T) {
	dev := flash.NewMemory(16, 4, 4)
	u := New(dev)

	if err := u.Program([]byte{0xAA, 0xBB, 0xCC}, 5); err != nil {
		t.Fatalf("program: %v", err)
	}

	got := make([]byte, 6)
	if err := u.Read(got, 3); err != nil {
		t.Fatalf("read: %v", err)
	}

	want := []byte{0xFF, 0xFF, 0xAA, 0xBB, 0xCC, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestUnalignedReadUsesCache(t *testing.T) {
	dev := flash.NewMemory(16, 4, 4)
	u := New(dev)

	if err := u.Program([]byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("program: %v", err)
	}

	buf := make([]byte, 4)
	if err := u.Read(buf, 0); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("got %v", buf)
	}
	if u.lastPage != 0 {
		t.Fatalf("expected page 0 cached, got %d", u.lastPage)
	}
}

func TestUnalignedEraseRequiresAlignment(t *testing.T) {
	dev := flash.NewMemory(16, 4, 4)
	u := New(dev)

	if err := u.Erase(1, 4); err != flash.ErrUnalignedErase {
		t.Fatalf("expected ErrUnalignedErase, got %v", err)
	}

	if err := u.Erase(4, 3); err != nil {
		t.Fatalf("erase rounded length: %v", err)
	}
}

func TestUnalignedPromotesSmallPageSize(t *testing.T) {
	// read size 6 is small and 528 % 6 == 0, so page size is promoted to 528.
	dev := flash.NewMemory(528*2, 6, 6)
	u := New(dev)
	if u.PageSize() != 528 {
		t.Fatalf("expected page size promoted to 528, got %d", u.PageSize())
	}
}
