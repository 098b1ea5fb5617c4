package wire

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/corvidlabs/rawcore/pkg/buffer"
	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// Response is a parsed HTTP/1.1 response.
type Response struct {
	StatusLine  string
	StatusCode  int
	HTTPVersion string
	Headers     Header
	Body        *buffer.Buffer // decoded (post-decompression) body
	Raw         *buffer.Buffer // verbatim wire bytes (status line + headers + framed body)
	BodyBytes   int64
	RawBytes    int64

	// Redirects is the ordered sequence of URLs traversed to produce this
	// response, oldest hop first. Empty when no redirect was followed.
	Redirects []string
}

// ReadOptions bounds response parsing.
type ReadOptions struct {
	BodyMemLimit   int64 // in-memory threshold before Body/Raw spill to disk
	MaxBodyBytes   int64 // hard cap on the decoded body; 0 means constants.DefaultMaxBodyBytes
	MaxHeaderBytes int   // 0 means constants.MaxHeaderBytes
}

// ConnHealthMarker lets the body reader flag the underlying connection as
// unsafe to reuse. A response framed by connection close rather than a
// length (readUntilClose) has already consumed the connection's only EOF;
// pooling it afterward would hand the next caller a dead socket.
type ConnHealthMarker interface {
	MarkUnhealthy()
}

// ReadResponse parses one HTTP/1.1 response from r: status line, headers
// (RFC 7230 §3.2.4 folding, original case and insertion order preserved,
// last-occurrence-wins lookup), and the framed body. The body is
// decompressed per Content-Encoding; if the decoded size exceeds
// MaxBodyBytes, it fails with BodyTooLarge and the caller must close the
// connection rather than reuse it. conn may be nil; when set, it is marked
// unhealthy if the body was framed by connection close.
func ReadResponse(r *bufio.Reader, method string, opts ReadOptions, conn ConnHealthMarker) (*Response, error) {
	resp, err := ReadHead(r, opts)
	if err != nil {
		return resp, err
	}

	maxBodyBytes := opts.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}

	wireBody := buffer.New(opts.BodyMemLimit)
	defer wireBody.Close()
	if err := readBody(r, resp.StatusCode, method, &resp.Headers, wireBody, resp.Raw, conn); err != nil {
		return resp, err
	}

	rawBytes, err := wireBody.Reader()
	if err != nil {
		return resp, err
	}
	defer rawBytes.Close()
	encoded, err := io.ReadAll(rawBytes)
	if err != nil {
		return resp, rawerr.NewIOError("buffering body", err)
	}

	decoded, err := decodeBody(encoded, resp.Headers.Get("Content-Encoding"))
	if err != nil {
		return resp, err
	}
	if int64(len(decoded)) > maxBodyBytes {
		resp.Body.Close()
		return resp, rawerr.NewBodyTooLargeError(maxBodyBytes)
	}

	if _, err := resp.Body.Write(decoded); err != nil {
		return resp, err
	}

	resp.BodyBytes = resp.Body.Size()
	resp.RawBytes = resp.Raw.Size()
	return resp, nil
}

// ReadHead parses only the status line and headers, leaving r positioned at
// the start of the body. Used by streaming callers (SSE) that read the body
// themselves instead of going through the chunked/fixed/until-close framer.
func ReadHead(r *bufio.Reader, opts ReadOptions) (*Response, error) {
	maxHeaderBytes := opts.MaxHeaderBytes
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = constants.MaxHeaderBytes
	}

	resp := &Response{
		Headers: NewHeader(),
		Body:    buffer.New(opts.BodyMemLimit),
		Raw:     buffer.New(opts.BodyMemLimit),
	}

	statusLine, err := readLine(r)
	if err != nil {
		return resp, rawerr.NewProtocolError("reading status line", err)
	}
	resp.StatusLine = statusLine
	resp.Raw.Write([]byte(statusLine + "\r\n"))

	if err := parseStatusLine(statusLine, resp); err != nil {
		return resp, err
	}

	if err := readHeaders(r, &resp.Headers, resp.Raw, maxHeaderBytes); err != nil {
		return resp, err
	}

	return resp, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) >= 2 && line[len(line)-2:] == "\r\n" {
		return line[:len(line)-2], nil
	}
	return strings.TrimRight(line, "\n"), nil
}

func parseStatusLine(statusLine string, resp *Response) error {
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return rawerr.NewProtocolError("invalid status line format", nil)
	}
	if parts[0] != "" {
		resp.HTTPVersion = parts[0]
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return rawerr.NewProtocolError("invalid status code", err)
	}
	resp.StatusCode = code
	return nil
}

func readHeaders(r *bufio.Reader, headers *Header, raw *buffer.Buffer, maxHeaderBytes int) error {
	total := 0
	sawField := false

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return rawerr.NewProtocolError("reading headers", err)
		}

		total += len(line)
		if total > maxHeaderBytes {
			return rawerr.NewProtocolError("headers exceed maximum size", nil)
		}
		if _, err := raw.Write([]byte(line)); err != nil {
			return err
		}

		if line == "\r\n" {
			break
		}

		trimmed := strings.TrimRight(line, "\r\n")

		// RFC 7230 §3.2.4 continuation lines.
		if strings.HasPrefix(trimmed, " ") || strings.HasPrefix(trimmed, "\t") {
			if !sawField {
				continue
			}
			headers.appendToLast(strings.TrimSpace(trimmed))
			continue
		}

		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}

		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		headers.Add(name, value)
		sawField = true
	}

	return nil
}
