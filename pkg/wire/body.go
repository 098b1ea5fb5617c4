package wire

import (
	"bufio"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/corvidlabs/rawcore/pkg/buffer"
	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// readBody dispatches to the correct framing strategy based on headers and
// writes both the decoded body (dst) and the verbatim wire bytes (raw).
// conn, if non-nil, is marked unhealthy when the body was framed by
// connection close rather than a length.
func readBody(r *bufio.Reader, statusCode int, method string, headers *Header, dst, raw *buffer.Buffer, conn ConnHealthMarker) error {
	transferEncoding := headers.Get("Transfer-Encoding")
	contentLength := headers.Get("Content-Length")
	connectionHeader := headers.Get("Connection")

	// RFC 9110 §6.4.1: 1xx, 204, 304, and HEAD responses carry no body,
	// unless the server violates the RFC and sends one anyway.
	if method == "HEAD" ||
		(statusCode >= 100 && statusCode < 200) ||
		statusCode == 204 ||
		statusCode == 304 {
		if r.Buffered() == 0 {
			return nil
		}
	}

	switch {
	case strings.Contains(strings.ToLower(transferEncoding), "chunked"):
		return readChunkedBody(r, dst, raw, headers)
	case contentLength != "":
		length, err := strconv.ParseInt(strings.TrimSpace(contentLength), 10, 64)
		if err != nil {
			return rawerr.NewProtocolError("invalid content-length", err)
		}
		if length < 0 {
			return rawerr.NewProtocolError("negative content-length not allowed", nil)
		}
		if length > constants.MaxContentLength {
			return rawerr.NewProtocolError("content-length too large", nil)
		}
		return readFixedBody(r, length, dst, raw)
	default:
		return readUntilClose(r, connectionHeader, dst, raw, conn)
	}
}

func readChunkedBody(r *bufio.Reader, dst, raw *buffer.Buffer, headers *Header) error {
	tp := textproto.NewReader(r)
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return rawerr.NewProtocolError("reading chunk size", err)
		}
		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}

		size, err := strconv.ParseInt(strings.TrimSpace(strings.Split(line, ";")[0]), 16, 64)
		if err != nil {
			return rawerr.NewProtocolError("invalid chunk size", err)
		}
		if size == 0 {
			break
		}

		if _, err := io.CopyN(io.MultiWriter(dst, raw), tp.R, size); err != nil {
			return rawerr.NewIOError("reading chunk body", err)
		}

		crlf := make([]byte, 2)
		if _, err := io.ReadFull(tp.R, crlf); err != nil {
			return rawerr.NewIOError("reading chunk CRLF", err)
		}
		if _, err := raw.Write(crlf); err != nil {
			return err
		}
	}

	// Trailers
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return rawerr.NewProtocolError("reading chunk trailer", err)
		}
		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}
		if line == "" {
			break
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			headers.Add(name, value)
		}
	}

	return nil
}

func readFixedBody(r *bufio.Reader, length int64, dst, raw *buffer.Buffer) error {
	if length <= 0 {
		return nil
	}

	_, err := io.CopyN(io.MultiWriter(dst, raw), r, length)
	if err != nil {
		// Servers that under-send relative to Content-Length are tolerated:
		// the bytes actually seen were already written to dst/raw.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		return rawerr.NewIOError("reading fixed body", err)
	}
	return nil
}

// readUntilClose frames the body by connection close: the response carries
// neither a length nor chunked encoding, so the body runs until the peer
// closes the socket. That EOF leaves the connection unusable for anything
// else, so conn (if given) is marked unhealthy rather than ever pooled.
func readUntilClose(r *bufio.Reader, connectionHeader string, dst, raw *buffer.Buffer, conn ConnHealthMarker) error {
	_, err := io.Copy(io.MultiWriter(dst, raw), r)
	if conn != nil {
		conn.MarkUnhealthy()
	}
	if err != nil && err != io.EOF {
		return rawerr.NewIOError("reading until close", err)
	}
	return nil
}
