package rawcore

import "github.com/corvidlabs/rawcore/pkg/rawconn"

// ProxyConfig describes an upstream proxy a Client dials through. Re-
// exported so callers don't need to import pkg/rawconn directly just to
// build one.
type ProxyConfig = rawconn.ProxyConfig

// ParseProxyURL parses a proxy URL of the form
// scheme://[user[:pass]@]host[:port] (http, https, socks4, or socks5) into
// a ProxyConfig suitable for Options.Proxy.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	return rawconn.ParseProxyURL(raw)
}
