package integrity

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"hash/crc64"
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/lora-fuota/fragdec/flash"
	"github.com/lora-fuota/fragdec/store"
)

func newStoreWithImage(t *testing.T, img []byte) *store.Unaligned {
	t.Helper()
	dev := flash.NewMemory(len(img)+4096, 256, 4096)
	st := store.New(dev)
	if err := st.Erase(0, int64(len(img))); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if err := st.Program(img, 0); err != nil {
		t.Fatalf("program: %v", err)
	}
	return st
}

func TestDigestCRC64MatchesDirectComputation(t *testing.T) {
	r := mrand.New(mrand.NewSource(1))
	img := make([]byte, 1000)
	r.Read(img)
	st := newStoreWithImage(t, img)

	got, err := Digest(st, CRC64, 0, int64(len(img)), make([]byte, 64))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	want := crc64.Checksum(img, crc64.MakeTable(crc64.ISO))
	wantBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		wantBytes[7-i] = byte(want >> (8 * i))
	}
	if !bytes.Equal(got, wantBytes) {
		t.Fatalf("crc64 mismatch: got %x want %x", got, wantBytes)
	}
}

func TestDigestSHA256MatchesDirectComputation(t *testing.T) {
	r := mrand.New(mrand.NewSource(2))
	img := make([]byte, 513) // not a multiple of the read buffer
	r.Read(img)
	st := newStoreWithImage(t, img)

	got, err := Digest(st, SHA256, 0, int64(len(img)), make([]byte, 64))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	want := sha256.Sum256(img)
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("sha256 mismatch: got %x want %x", got, want[:])
	}
}

func TestDigestUnknownAlgorithm(t *testing.T) {
	st := newStoreWithImage(t, make([]byte, 16))
	if _, err := Digest(st, "md5", 0, 16, make([]byte, 8)); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestVerifyRSARoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := sha256.Sum256([]byte("reconstructed image"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}

	if err := VerifyRSA(&priv.PublicKey, digest[:], sig); err != nil {
		t.Fatalf("VerifyRSA: %v", err)
	}

	sig[0] ^= 0xFF
	if err := VerifyRSA(&priv.PublicKey, digest[:], sig); err == nil {
		t.Fatal("expected verification failure for a tampered signature")
	}
}

func TestVerifyECDSARoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := sha256.Sum256([]byte("reconstructed image"))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("SignASN1: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}

	if err := VerifyECDSA(pubDER, digest[:], sig); err != nil {
		t.Fatalf("VerifyECDSA: %v", err)
	}

	bogus := new(big.Int).SetBytes(sig).Add(new(big.Int).SetBytes(sig), big.NewInt(1)).Bytes()
	if err := VerifyECDSA(pubDER, digest[:], bogus); err == nil {
		t.Fatal("expected verification failure for a tampered signature")
	}
}
