package rawcore

import (
	"io"

	"github.com/corvidlabs/rawcore/pkg/exec"
	"github.com/corvidlabs/rawcore/pkg/timing"
	"github.com/corvidlabs/rawcore/pkg/wire"
)

// Response wraps a parsed wire.Response with the additive connection,
// TLS, proxy, and timing metadata the teacher's Response carries: which
// socket served it, whether it was reused from the pool or proxied, and
// per-phase timing. None of these bear on the core protocol invariants;
// they are attached because dropping them would silently discard
// information the teacher's callers rely on for diagnostics.
type Response struct {
	StatusCode  int
	HTTPVersion string
	Headers     wire.Header

	ConnectionID     uint64
	LocalAddr        string
	RemoteAddr       string
	ConnectionReused bool

	TLSVersion     string
	TLSCipherSuite string
	TLSResumed     bool

	ProxyUsed bool
	ProxyType string
	ProxyAddr string

	Timings timing.Metrics

	// Redirects is the ordered sequence of URLs traversed to produce this
	// response, oldest hop first. Empty when no redirect was followed.
	Redirects []string

	body *wire.Response
}

func wrapResponse(r *wire.Response, meta *exec.ConnMeta, timer *timing.Timer) *Response {
	resp := &Response{
		StatusCode:  r.StatusCode,
		HTTPVersion: r.HTTPVersion,
		Headers:     r.Headers,
		Redirects:   r.Redirects,
		body:        r,
	}
	if meta != nil {
		resp.ConnectionID = meta.ConnectionID
		resp.LocalAddr = meta.LocalAddr
		resp.RemoteAddr = meta.RemoteAddr
		resp.ConnectionReused = meta.ConnectionReused
		resp.TLSVersion = meta.TLSVersion
		resp.TLSCipherSuite = meta.TLSCipherSuite
		resp.TLSResumed = meta.TLSResumed
		resp.ProxyUsed = meta.ProxyUsed
		resp.ProxyType = meta.ProxyType
		resp.ProxyAddr = meta.ProxyAddr
	}
	if timer != nil {
		resp.Timings = timer.GetMetrics()
	}
	return resp
}

// Bytes returns the full decoded response body, reading it into memory if
// it spilled to disk during reception.
func (r *Response) Bytes() ([]byte, error) {
	if !r.body.Body.IsSpilled() {
		return r.body.Body.Bytes(), nil
	}
	rc, err := r.body.Body.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// BodyReader returns a reader over the decoded response body. Callers that
// only need to stream the body once should prefer this over Bytes to avoid
// buffering disk-spilled bodies into memory.
func (r *Response) BodyReader() (io.ReadCloser, error) {
	return r.body.Body.Reader()
}

// Close releases any disk-backed storage the response body holds. Safe to
// call on a response whose body never spilled.
func (r *Response) Close() error {
	if err := r.body.Body.Close(); err != nil {
		return err
	}
	return r.body.Raw.Close()
}

// StatusOK reports whether the response status is in the 2xx range.
func (r *Response) StatusOK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
