package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/corvidlabs/rawcore/pkg/rawurl"
)

// Request is the information needed to serialize one HTTP/1.1 request.
type Request struct {
	Method  string
	URL     rawurl.UrlInfo
	Headers Header
	Body    []byte

	// EnableCompression controls whether Serialize advertises
	// Accept-Encoding on the caller's behalf. It has no bearing on
	// decoding: a response is always decompressed per whatever
	// Content-Encoding the server actually sends.
	EnableCompression bool
}

// NewRequest builds a Request with an empty header set.
func NewRequest(method string, url rawurl.UrlInfo) *Request {
	return &Request{Method: strings.ToUpper(method), URL: url, Headers: NewHeader()}
}

// SetHeader sets a header on the request, overwriting any existing value.
func (r *Request) SetHeader(key, value string) {
	r.Headers.Set(key, value)
}

// Serialize renders the request as wire bytes. It injects Host, User-Agent,
// Accept, Connection, Content-Length, and (when EnableCompression is set)
// Accept-Encoding whenever the caller hasn't already supplied them (a
// case-insensitive "absent" check), then emits every header in the order
// it was added, and passes the body through verbatim.
func Serialize(r *Request) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", r.Method, r.URL.PathQuery)

	headers := r.Headers.Clone()

	if !headers.Has("Host") {
		host := r.URL.Host
		if (r.URL.IsSecure && r.URL.Port != 443) || (!r.URL.IsSecure && r.URL.Port != 80) {
			host = host + ":" + strconv.Itoa(r.URL.Port)
		}
		headers.Set("Host", host)
	}
	if !headers.Has("User-Agent") {
		headers.Set("User-Agent", "rawcore/1.0")
	}
	if !headers.Has("Accept") {
		headers.Set("Accept", "*/*")
	}
	if r.EnableCompression && !headers.Has("Accept-Encoding") {
		headers.Set("Accept-Encoding", "gzip, deflate")
	}
	if !headers.Has("Connection") {
		headers.Set("Connection", "keep-alive")
	}
	if len(r.Body) > 0 && !headers.Has("Content-Length") {
		headers.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	for _, f := range headers.Fields() {
		fmt.Fprintf(&buf, "%s: %s\r\n", f.Name, f.Value)
	}
	buf.WriteString("\r\n")

	if len(r.Body) > 0 {
		buf.Write(r.Body)
	}

	return buf.Bytes()
}
