package wire

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"testing"
)

func TestDecodeBodyIdentity(t *testing.T) {
	out, err := decodeBody([]byte("plain"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "plain" {
		t.Errorf("got %q", out)
	}
}

func TestDecodeBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte("compressed"))
	w.Close()

	out, err := decodeBody(buf.Bytes(), "gzip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "compressed" {
		t.Errorf("got %q", out)
	}
}

func TestDecodeBodyDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	w.Write([]byte("deflated"))
	w.Close()

	out, err := decodeBody(buf.Bytes(), "deflate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "deflated" {
		t.Errorf("got %q", out)
	}
}

func TestDecodeBodyUnknownEncoding(t *testing.T) {
	if _, err := decodeBody([]byte("x"), "br"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
