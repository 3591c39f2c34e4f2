package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"
)

// TestBytes verifies the one-shot digest matches the underlying hash
// functions.
func TestBytes(t *testing.T) {
	data := []byte("GX010042 head camera recording")

	d := Bytes(data)

	b3 := blake3.Sum256(data)
	if want := hex.EncodeToString(b3[:]); d.BLAKE3 != want {
		t.Errorf("BLAKE3 = %s, want %s", d.BLAKE3, want)
	}
	s2 := sha256.Sum256(data)
	if want := hex.EncodeToString(s2[:]); d.SHA256 != want {
		t.Errorf("SHA256 = %s, want %s", d.SHA256, want)
	}
	if d.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", d.Size, len(data))
	}
}

// TestFile verifies streaming a file produces the same digests as
// hashing its content directly.
func TestFile(t *testing.T) {
	data := make([]byte, 256*1024)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	want := Bytes(data)
	if got.BLAKE3 != want.BLAKE3 {
		t.Errorf("BLAKE3 = %s, want %s", got.BLAKE3, want.BLAKE3)
	}
	if got.SHA256 != want.SHA256 {
		t.Errorf("SHA256 = %s, want %s", got.SHA256, want.SHA256)
	}
	if got.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", got.Size, len(data))
	}
}

// TestFileNotFound verifies a missing file is reported as an error.
func TestFileNotFound(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "absent.mp4"))
	if err == nil {
		t.Fatal("File on missing path succeeded, want error")
	}
}

// TestFromReaderEmpty verifies empty input still yields valid digests.
func TestFromReaderEmpty(t *testing.T) {
	d, err := FromReader(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("FromReader failed: %v", err)
	}
	if d.Size != 0 {
		t.Errorf("Size = %d, want 0", d.Size)
	}
	if !IsValid(d.BLAKE3) || !IsValid(d.SHA256) {
		t.Errorf("digests not valid hex: blake3=%q sha256=%q", d.BLAKE3, d.SHA256)
	}
}

// TestDistinctContent verifies different content yields different
// digests.
func TestDistinctContent(t *testing.T) {
	a := Bytes([]byte("GX010001.MP4"))
	b := Bytes([]byte("GX010002.MP4"))
	if a.BLAKE3 == b.BLAKE3 {
		t.Error("distinct content produced identical BLAKE3 digests")
	}
	if a.SHA256 == b.SHA256 {
		t.Error("distinct content produced identical SHA256 digests")
	}
}

// TestIsValid exercises the digest format check.
func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{Bytes([]byte("x")).BLAKE3, true},
		{"", false},
		{"zzzz", false},
		{"ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
