package rawconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
	netproxy "golang.org/x/net/proxy"
)

// ProxyConfig describes an upstream proxy a connection is dialed through.
type ProxyConfig struct {
	Type         string // "http", "https", "socks4", "socks5"
	Host         string
	Port         int
	Username     string
	Password     string
	ProxyHeaders map[string]string
	TLSConfig    *tls.Config // used only when Type == "https"

	// ResolveDNSViaProxy, when true and Type == "socks5", leaves DNS
	// resolution of the target host to the proxy instead of doing it
	// locally first. SOCKS4 always resolves locally (protocol requires an
	// IPv4 literal).
	ResolveDNSViaProxy bool
}

// Addr returns the proxy's dial address, applying the scheme's default port
// when Port is unset.
func (p *ProxyConfig) Addr() string {
	port := p.Port
	if port == 0 {
		switch p.Type {
		case "http":
			port = 8080
		case "https":
			port = 443
		case "socks4", "socks5":
			port = 1080
		}
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Key identifies a proxy for pool partitioning: distinct proxies (even to
// the same type) never share idle connections.
func (p *ProxyConfig) Key() string {
	return fmt.Sprintf("%s:%s", p.Type, p.Addr())
}

// ParseProxyURL parses a proxy URL of the form
// scheme://[user[:pass]@]host[:port] into a ProxyConfig. Supported schemes
// are http, https, socks4, and socks5; unspecified ports default per
// scheme (http 8080, https 443, socks4/5 1080). SOCKS5 proxies default to
// resolving the target host via the proxy.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	if raw == "" {
		return nil, rawerr.NewValidationError("proxy URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, rawerr.NewInvalidURLError(raw, err)
	}

	switch u.Scheme {
	case "http", "https", "socks4", "socks5":
	case "":
		return nil, rawerr.NewValidationError("proxy URL must include a scheme (http, https, socks4, socks5)")
	default:
		return nil, rawerr.NewValidationError(fmt.Sprintf("unsupported proxy scheme %q", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return nil, rawerr.NewValidationError("proxy URL must include a host")
	}

	var port int
	if portStr := u.Port(); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, rawerr.NewValidationError(fmt.Sprintf("invalid proxy port %q", portStr))
		}
	}

	var username, password string
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}

	return &ProxyConfig{
		Type:               u.Scheme,
		Host:               host,
		Port:               port,
		Username:           username,
		Password:           password,
		ResolveDNSViaProxy: u.Scheme == "socks5",
	}, nil
}

// dialViaProxy establishes a net.Conn to targetAddr routed through proxy,
// dispatching to the scheme-specific handshake. The returned conn is
// plaintext; DialThroughProxy layers TLS on top when the origin is https.
func dialViaProxy(ctx context.Context, proxy *ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	if proxy.Host == "" {
		return nil, rawerr.NewValidationError("proxy host cannot be empty")
	}

	var conn net.Conn
	var err error
	switch proxy.Type {
	case "http", "https":
		conn, err = connectViaHTTPProxy(ctx, proxy, targetAddr, timeout)
	case "socks4":
		conn, err = connectViaSOCKS4(ctx, proxy, targetAddr, timeout)
	case "socks5":
		conn, err = connectViaSOCKS5(ctx, proxy, targetAddr, timeout)
	default:
		return nil, rawerr.NewValidationError(fmt.Sprintf("unsupported proxy type %q", proxy.Type))
	}
	if err != nil {
		return nil, rawerr.NewProxyError(proxy.Type, proxy.Addr(), "connect", err)
	}
	return conn, nil
}

// connectViaHTTPProxy tunnels targetAddr through an HTTP CONNECT proxy,
// optionally itself reached over TLS (proxy.Type == "https").
func connectViaHTTPProxy(ctx context.Context, proxy *ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", proxy.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial proxy: %w", err)
	}

	if proxy.Type == "https" {
		tlsConf := proxy.TLSConfig
		if tlsConf == nil {
			tlsConf = &tls.Config{ServerName: proxy.Host}
		} else {
			tlsConf = tlsConf.Clone()
			if tlsConf.ServerName == "" {
				tlsConf.ServerName = proxy.Host
			}
		}
		tlsConn := tls.Client(conn, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake to proxy: %w", err)
		}
		conn = tlsConn
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\nHost: %s\r\nConnection: keep-alive\r\n", targetAddr, targetAddr)
	for k, v := range proxy.ProxyHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	if proxy.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(proxy.Username + ":" + proxy.Password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", auth)
	}
	b.WriteString("\r\n")

	if _, err := conn.Write([]byte(b.String())); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write CONNECT request: %w", err)
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	if !strings.Contains(statusLine, " 200") {
		conn.Close()
		return nil, fmt.Errorf("CONNECT rejected: %s", strings.TrimSpace(statusLine))
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read CONNECT headers: %w", err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	return conn, nil
}

// connectViaSOCKS4 resolves targetAddr's host to an IPv4 literal locally
// (SOCKS4 carries no hostname field) and performs the CONNECT handshake.
func connectViaSOCKS4(ctx context.Context, proxy *ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(targetAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid target address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid target port: %w", err)
	}

	resolver := net.DefaultResolver
	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve target for SOCKS4: %w", err)
	}
	var targetIP net.IP
	for _, ip := range ips {
		if v4 := ip.IP.To4(); v4 != nil {
			targetIP = v4
			break
		}
	}
	if targetIP == nil {
		return nil, fmt.Errorf("no IPv4 address for %s (SOCKS4 requires IPv4)", host)
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", proxy.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial SOCKS4 proxy: %w", err)
	}

	req := []byte{0x04, 0x01, byte(port >> 8), byte(port & 0xFF)}
	req = append(req, targetIP...)
	if proxy.Username != "" {
		req = append(req, []byte(proxy.Username)...)
	}
	req = append(req, 0x00)

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write SOCKS4 request: %w", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read SOCKS4 response: %w", err)
	}

	switch resp[1] {
	case 0x5A:
		return conn, nil
	case 0x5B:
		conn.Close()
		return nil, fmt.Errorf("SOCKS4 request rejected")
	case 0x5C:
		conn.Close()
		return nil, fmt.Errorf("SOCKS4 failed: identd unreachable")
	case 0x5D:
		conn.Close()
		return nil, fmt.Errorf("SOCKS4 failed: identd auth mismatch")
	default:
		conn.Close()
		return nil, fmt.Errorf("SOCKS4 unknown status 0x%02X", resp[1])
	}
}

// connectViaSOCKS5 delegates to golang.org/x/net/proxy, which implements
// RFC 1928 including username/password auth and proxy-side DNS resolution.
func connectViaSOCKS5(ctx context.Context, proxy *ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	var auth *netproxy.Auth
	if proxy.Username != "" {
		auth = &netproxy.Auth{User: proxy.Username, Password: proxy.Password}
	}

	dialer, err := netproxy.SOCKS5("tcp", proxy.Addr(), auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	type ctxDialer interface {
		DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	}
	if cd, ok := dialer.(ctxDialer); ok {
		return cd.DialContext(ctx, "tcp", targetAddr)
	}
	return dialer.Dial("tcp", targetAddr)
}
