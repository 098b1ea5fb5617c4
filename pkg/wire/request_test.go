package wire

import (
	"strings"
	"testing"

	"github.com/corvidlabs/rawcore/pkg/rawurl"
)

func TestSerializeInjectsDefaults(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com/path?x=1")
	req := NewRequest("GET", url)

	raw := string(Serialize(req))

	if !strings.HasPrefix(raw, "GET /path?x=1 HTTP/1.1\r\n") {
		t.Fatalf("unexpected request line: %q", raw)
	}
	for _, want := range []string{"Host: example.com", "User-Agent:", "Accept:", "Connection:"} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected header containing %q, got:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "Accept-Encoding:") {
		t.Errorf("expected no Accept-Encoding without EnableCompression, got:\n%s", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\n") {
		t.Errorf("expected request to terminate with blank line, got %q", raw)
	}
}

func TestSerializeAdvertisesCompressionWhenEnabled(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com/")
	req := NewRequest("GET", url)
	req.EnableCompression = true

	raw := string(Serialize(req))
	if !strings.Contains(raw, "Accept-Encoding: gzip, deflate") {
		t.Errorf("expected Accept-Encoding with EnableCompression set, got:\n%s", raw)
	}
}

func TestSerializePreservesHeaderOrderAndCase(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com/")
	req := NewRequest("GET", url)
	req.SetHeader("X-First", "1")
	req.SetHeader("X-Second", "2")

	raw := string(Serialize(req))
	first := strings.Index(raw, "X-First:")
	second := strings.Index(raw, "X-Second:")
	if first == -1 || second == -1 || first > second {
		t.Errorf("expected X-First before X-Second, got:\n%s", raw)
	}
}

func TestSerializeNonDefaultPortInHost(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com:8080/")
	req := NewRequest("GET", url)
	raw := string(Serialize(req))
	if !strings.Contains(raw, "Host: example.com:8080") {
		t.Errorf("expected explicit port in Host header, got:\n%s", raw)
	}
}

func TestSerializeRespectsExplicitHeaders(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com/")
	req := NewRequest("GET", url)
	req.SetHeader("User-Agent", "custom/1.0")
	raw := string(Serialize(req))
	if strings.Contains(raw, "rawcore/1.0") {
		t.Error("expected caller-supplied User-Agent to win over the default")
	}
	if !strings.Contains(raw, "User-Agent: custom/1.0") {
		t.Errorf("expected custom User-Agent, got:\n%s", raw)
	}
}

func TestSerializeBodyAndContentLength(t *testing.T) {
	url, _ := rawurl.Parse("http://example.com/submit")
	req := NewRequest("POST", url)
	req.Body = []byte("field=value")
	raw := string(Serialize(req))
	if !strings.Contains(raw, "Content-Length: 11") {
		t.Errorf("expected Content-Length: 11, got:\n%s", raw)
	}
	if !strings.HasSuffix(raw, "field=value") {
		t.Errorf("expected body to be appended verbatim, got:\n%s", raw)
	}
}
