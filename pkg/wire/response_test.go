package wire

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"strconv"
	"strings"
	"testing"
)

func TestReadResponseFixedLength(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"
	r := bufio.NewReader(strings.NewReader(raw))

	resp, err := ReadResponse(r, "GET", ReadOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
	if got := string(resp.Body.Bytes()); got != "hello" {
		t.Errorf("body = %q, want %q", got, "hello")
	}
}

func TestReadResponseChunked(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	resp, err := ReadResponse(r, "GET", ReadOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if got := string(resp.Body.Bytes()); got != "hello world" {
		t.Errorf("body = %q, want %q", got, "hello world")
	}
}

func TestReadResponseHeaderContinuation(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nX-Multi: first\r\n second\r\nContent-Length: 0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	resp, err := ReadResponse(r, "GET", ReadOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if got := resp.Headers.Get("X-Multi"); got != "firstsecond" {
		t.Errorf("X-Multi = %q, want %q", got, "firstsecond")
	}
}

func TestReadResponseGzip(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	gz.Write([]byte("decompressed body"))
	gz.Close()

	var raw bytes.Buffer
	raw.WriteString("HTTP/1.1 200 OK\r\n")
	raw.WriteString("Content-Encoding: gzip\r\n")
	raw.WriteString("Content-Length: ")
	raw.WriteString(strconv.Itoa(compressed.Len()))
	raw.WriteString("\r\n\r\n")
	raw.Write(compressed.Bytes())

	r := bufio.NewReader(&raw)
	resp, err := ReadResponse(r, "GET", ReadOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if got := string(resp.Body.Bytes()); got != "decompressed body" {
		t.Errorf("body = %q, want %q", got, "decompressed body")
	}
}

func TestReadResponseBodyTooLarge(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n0123456789"
	r := bufio.NewReader(strings.NewReader(raw))

	_, err := ReadResponse(r, "GET", ReadOptions{MaxBodyBytes: 4}, nil)
	if err == nil {
		t.Fatal("expected BodyTooLarge error")
	}
}

func TestReadResponseHeadNoBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	resp, err := ReadResponse(r, "HEAD", ReadOptions{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if resp.Body.Size() != 0 {
		t.Errorf("expected empty body for HEAD response, got %d bytes", resp.Body.Size())
	}
}

type fakeConnMarker struct {
	unhealthy bool
}

func (f *fakeConnMarker) MarkUnhealthy() { f.unhealthy = true }

func TestReadResponseUntilCloseMarksConnUnhealthy(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nno length, just EOF"
	r := bufio.NewReader(strings.NewReader(raw))

	conn := &fakeConnMarker{}
	resp, err := ReadResponse(r, "GET", ReadOptions{}, conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	defer resp.Raw.Close()

	if got := string(resp.Body.Bytes()); got != "no length, just EOF" {
		t.Errorf("body = %q, want %q", got, "no length, just EOF")
	}
	if !conn.unhealthy {
		t.Error("expected until-close body read to mark the connection unhealthy")
	}
}
