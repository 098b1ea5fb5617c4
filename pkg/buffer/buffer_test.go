package buffer

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestBufferInMemory(t *testing.T) {
	b := New(1024)
	defer b.Close()

	n, err := b.Write([]byte("hello world"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if n != 11 {
		t.Errorf("expected 11 bytes written, got %d", n)
	}
	if b.IsSpilled() {
		t.Error("buffer should not have spilled yet")
	}
	if !bytes.Equal(b.Bytes(), []byte("hello world")) {
		t.Errorf("unexpected in-memory contents: %q", b.Bytes())
	}
	if b.Size() != 11 {
		t.Errorf("expected size 11, got %d", b.Size())
	}
}

func TestBufferSpillsToDisk(t *testing.T) {
	b := New(8)
	defer b.Close()

	if _, err := b.Write([]byte("this payload exceeds the limit")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !b.IsSpilled() {
		t.Error("expected buffer to spill to disk")
	}
	if b.Path() == "" {
		t.Error("expected a non-empty spill path")
	}
	if _, err := os.Stat(b.Path()); err != nil {
		t.Errorf("expected spill file to exist: %v", err)
	}

	r, err := b.Reader()
	if err != nil {
		t.Fatalf("Reader returned error: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll returned error: %v", err)
	}
	if string(data) != "this payload exceeds the limit" {
		t.Errorf("unexpected spilled contents: %q", data)
	}
}

func TestBufferWriteAcrossSpillBoundary(t *testing.T) {
	b := New(10)
	defer b.Close()

	b.Write([]byte("12345"))
	if b.IsSpilled() {
		t.Fatal("should still be in memory after first write")
	}
	b.Write([]byte("678901234567890"))
	if !b.IsSpilled() {
		t.Fatal("expected spill after crossing the limit")
	}

	r, err := b.Reader()
	if err != nil {
		t.Fatalf("Reader returned error: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "12345678901234567890" {
		t.Errorf("expected concatenated content across the spill boundary, got %q", data)
	}
}

func TestBufferClosedRejectsWrite(t *testing.T) {
	b := New(1024)
	if err := b.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := b.Write([]byte("x")); err == nil {
		t.Error("expected write after Close to fail")
	}
}

func TestBufferCloseIsIdempotent(t *testing.T) {
	b := New(4)
	b.Write([]byte("spills past four bytes"))
	path := b.Path()

	if err := b.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected spill file to be removed after Close")
	}
}

func TestBufferReset(t *testing.T) {
	b := New(4)
	b.Write([]byte("spills past four bytes"))

	if err := b.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("expected size 0 after reset, got %d", b.Size())
	}
	if b.IsSpilled() {
		t.Error("expected spill state cleared after reset")
	}

	// Buffer should be usable again after Reset.
	if _, err := b.Write([]byte("reused")); err != nil {
		t.Fatalf("Write after Reset returned error: %v", err)
	}
	// "reused" is 6 bytes against a 4-byte limit, so it spills to disk and
	// has to be read back through Reader rather than Bytes.
	r, err := b.Reader()
	if err != nil {
		t.Fatalf("Reader after Reset returned error: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if !bytes.Equal(data, []byte("reused")) {
		t.Errorf("unexpected contents after reuse: %q", data)
	}
	b.Close()
}

func TestNewWithData(t *testing.T) {
	b := NewWithData([]byte("preloaded"))
	defer b.Close()

	if b.Size() != 9 {
		t.Errorf("expected size 9, got %d", b.Size())
	}
	if !bytes.Equal(b.Bytes(), []byte("preloaded")) {
		t.Errorf("unexpected contents: %q", b.Bytes())
	}
}

func TestNewDefaultsLimit(t *testing.T) {
	b := New(0)
	defer b.Close()
	if b.limit != DefaultMemoryLimit {
		t.Errorf("expected default limit %d, got %d", DefaultMemoryLimit, b.limit)
	}
}
