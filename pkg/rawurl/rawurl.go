// Package rawurl parses absolute HTTP(S) URLs into the pieces the rest of
// rawcore needs: the connection-pool origin key and the path+query that
// goes out on the wire.
package rawurl

import (
	"net/url"
	"strconv"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// UrlInfo is the result of parsing an absolute URL.
type UrlInfo struct {
	Scheme    string
	Host      string
	Port      int
	PathQuery string
	IsSecure  bool
	UserInfo  string // "user:pass", empty if absent
}

// OriginKey is the connection-pool partitioning triple. Two requests share a
// pool iff their origin keys are equal.
type OriginKey struct {
	Scheme string
	Host   string
	Port   int
}

// Origin returns the OriginKey for this URL.
func (u UrlInfo) Origin() OriginKey {
	return OriginKey{Scheme: u.Scheme, Host: u.Host, Port: u.Port}
}

// String renders u in absolute form (scheme, host, non-default port, path
// and query) — the shape a redirect chain entry or log line needs.
func (u UrlInfo) String() string {
	host := u.Host
	if (u.IsSecure && u.Port != 443) || (!u.IsSecure && u.Port != 80) {
		host = host + ":" + strconv.Itoa(u.Port)
	}
	return u.Scheme + "://" + host + u.PathQuery
}

// Parse parses an absolute URL string into a UrlInfo. It fails with an
// InvalidUrl error when the scheme is not http/https, the host is empty, or
// the port is syntactically invalid. Relative URLs (no scheme) are rejected;
// redirect resolution against a base URL is the executor's job, not this
// package's.
func Parse(raw string) (UrlInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return UrlInfo{}, rawerr.NewInvalidURLError(raw, err)
	}

	scheme := u.Scheme
	switch scheme {
	case "http", "https":
	case "":
		return UrlInfo{}, rawerr.NewInvalidURLError(raw, errMissingScheme)
	default:
		return UrlInfo{}, rawerr.NewInvalidURLError(raw, errUnsupportedScheme(scheme))
	}

	host := u.Hostname()
	if host == "" {
		return UrlInfo{}, rawerr.NewInvalidURLError(raw, errMissingHost)
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 1 || p > 65535 {
			return UrlInfo{}, rawerr.NewInvalidURLError(raw, errInvalidPort(portStr))
		}
		port = p
	}

	pathQuery := u.EscapedPath()
	if pathQuery == "" {
		pathQuery = "/"
	}
	if u.RawQuery != "" {
		pathQuery += "?" + u.RawQuery
	}

	info := UrlInfo{
		Scheme:    scheme,
		Host:      host,
		Port:      port,
		PathQuery: pathQuery,
		IsSecure:  scheme == "https",
	}
	if u.User != nil {
		info.UserInfo = u.User.String()
	}
	return info, nil
}

// ResolveLocation resolves a Location header against the current origin.
// A path-only location (starting with "/") preserves scheme/host/port;
// anything else is parsed as an absolute URL.
func ResolveLocation(base UrlInfo, location string) (UrlInfo, error) {
	if location == "" {
		return UrlInfo{}, rawerr.NewValidationError("empty Location header")
	}
	if location[0] == '/' {
		u, err := url.Parse(location)
		if err != nil {
			return UrlInfo{}, rawerr.NewInvalidURLError(location, err)
		}
		pathQuery := u.EscapedPath()
		if pathQuery == "" {
			pathQuery = "/"
		}
		if u.RawQuery != "" {
			pathQuery += "?" + u.RawQuery
		}
		return UrlInfo{
			Scheme:    base.Scheme,
			Host:      base.Host,
			Port:      base.Port,
			PathQuery: pathQuery,
			IsSecure:  base.IsSecure,
		}, nil
	}
	return Parse(location)
}
