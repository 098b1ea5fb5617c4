package wire

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// decodeBody decompresses raw according to the Content-Encoding header.
// An empty or "identity" encoding is a no-op. Any other value is a
// DecodeError.
func decodeBody(raw []byte, contentEncoding string) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch enc {
	case "", "identity":
		return raw, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, rawerr.NewDecodeError("gzip", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, rawerr.NewDecodeError("gzip", err)
		}
		return out, nil
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, rawerr.NewDecodeError("deflate", err)
		}
		return out, nil
	default:
		return nil, rawerr.NewDecodeError(enc, nil)
	}
}
