// Package rawconn dials and TLS-wraps the plaintext/TLS sockets rawcore
// pools and reads/writes against.
package rawconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
	"github.com/corvidlabs/rawcore/pkg/rawurl"
	"github.com/corvidlabs/rawcore/pkg/tlsconfig"
)

// TLSConfig bundles the caller-facing TLS knobs mirrored from the
// teacher's Options: mTLS material, custom CAs, SNI control, version and
// cipher-suite control, and direct *tls.Config passthrough.
type TLSConfig struct {
	SNI              string
	DisableSNI       bool
	InsecureSkipVerify bool
	CustomCACerts    [][]byte
	ClientCertPEM    []byte
	ClientKeyPEM     []byte
	ClientCertFile   string
	ClientKeyFile    string
	MinVersion       uint16
	MaxVersion       uint16
	CipherSuites     []uint16
	Renegotiation    tls.RenegotiationSupport
	BaseConfig       *tls.Config // cloned per dial; when set, CustomCACerts, SNI and DisableSNI are not applied and Min/MaxVersion and CipherSuites fill only its zero fields
}

// DialConfig carries everything needed to establish one connection.
type DialConfig struct {
	Origin      rawurl.OriginKey
	ConnectIP   string // bypasses DNS when set
	ConnTimeout time.Duration
	DNSTimeout  time.Duration
	TLS         TLSConfig
	Proxy       *ProxyConfig // nil dials the origin directly
}

var connIDCounter uint64

// Conn wraps a pooled net.Conn with the bookkeeping the pool and executor
// need: which origin it belongs to, when it was last handed back, and
// whether it is still believed healthy.
type Conn struct {
	net.Conn
	Origin     rawurl.OriginKey
	ID         uint64
	LastUsed   time.Time
	healthy    atomic.Bool
	TLSVersion string
	TLSCipher  string
	Resumed    bool
}

// MarkUnhealthy flags the connection as unfit for reuse. Any I/O error,
// EOF mid-message, or TLS truncation should call this before releasing the
// connection back to the pool.
func (c *Conn) MarkUnhealthy() { c.healthy.Store(false) }

// MarkHealthy flags the connection as fit for reuse. Dial calls this once
// a connection is fully established.
func (c *Conn) MarkHealthy() { c.healthy.Store(true) }

// Healthy reports whether the connection is still believed usable.
func (c *Conn) Healthy() bool { return c.healthy.Load() }

// IsIdleExpired reports whether the connection has been idle longer than
// keepalive.
func (c *Conn) IsIdleExpired(now time.Time, keepalive time.Duration) bool {
	return now.Sub(c.LastUsed) > keepalive
}

// Dial establishes a plaintext or TLS-wrapped connection to cfg.Origin,
// resolving DNS unless ConnectIP bypasses it.
func Dial(ctx context.Context, cfg DialConfig) (*Conn, error) {
	if cfg.Origin.Host == "" {
		return nil, rawerr.NewValidationError("host cannot be empty")
	}
	if cfg.Origin.Port <= 0 || cfg.Origin.Port > 65535 {
		return nil, rawerr.NewValidationError("port must be between 1 and 65535")
	}

	connTimeout := cfg.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = 10 * time.Second
	}

	netConn, err := dialDirectOrProxy(ctx, cfg, connTimeout)
	if err != nil {
		return nil, err
	}

	conn := &Conn{
		Origin:   cfg.Origin,
		ID:       atomic.AddUint64(&connIDCounter, 1),
		LastUsed: time.Now(),
	}
	conn.MarkHealthy()

	if cfg.Origin.Scheme == "https" {
		tlsConn, err := upgradeTLS(ctx, netConn, cfg, connTimeout)
		if err != nil {
			netConn.Close()
			return nil, rawerr.NewTLSError(cfg.Origin.Host, cfg.Origin.Port, err)
		}
		conn.Conn = tlsConn.conn
		conn.TLSVersion = tlsConn.version
		conn.TLSCipher = tlsConn.cipher
		conn.Resumed = tlsConn.resumed
	} else {
		conn.Conn = netConn
	}

	return conn, nil
}

// dialDirectOrProxy establishes the underlying plaintext net.Conn, routing
// through cfg.Proxy when set.
func dialDirectOrProxy(ctx context.Context, cfg DialConfig, connTimeout time.Duration) (net.Conn, error) {
	if cfg.Proxy != nil {
		targetAddr := net.JoinHostPort(cfg.Origin.Host, strconv.Itoa(cfg.Origin.Port))
		return dialViaProxy(ctx, cfg.Proxy, targetAddr, connTimeout)
	}

	dialAddr, err := resolveAddress(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: connTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", dialAddr)
	if err != nil {
		return nil, rawerr.NewConnectionError(cfg.Origin.Host, cfg.Origin.Port, err)
	}
	return netConn, nil
}

func resolveAddress(ctx context.Context, cfg DialConfig) (string, error) {
	if cfg.ConnectIP != "" {
		return net.JoinHostPort(cfg.ConnectIP, strconv.Itoa(cfg.Origin.Port)), nil
	}

	dnsTimeout := cfg.DNSTimeout
	if dnsTimeout <= 0 {
		dnsTimeout = cfg.ConnTimeout
	}
	if dnsTimeout <= 0 {
		dnsTimeout = 5 * time.Second
	}

	lookupCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(lookupCtx, cfg.Origin.Host)
	if err != nil {
		return "", rawerr.NewResolveError(cfg.Origin.Host, err)
	}
	if len(addrs) == 0 {
		return "", rawerr.NewResolveError(cfg.Origin.Host, fmt.Errorf("no IP addresses found"))
	}
	return net.JoinHostPort(addrs[0].IP.String(), strconv.Itoa(cfg.Origin.Port)), nil
}

type tlsResult struct {
	conn    net.Conn
	version string
	cipher  string
	resumed bool
}

func upgradeTLS(ctx context.Context, netConn net.Conn, cfg DialConfig, connTimeout time.Duration) (*tlsResult, error) {
	tlsCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	var conf *tls.Config
	if cfg.TLS.BaseConfig != nil {
		conf = cfg.TLS.BaseConfig.Clone()
		if cfg.TLS.InsecureSkipVerify {
			conf.InsecureSkipVerify = true
		}
		conf.NextProtos = []string{"http/1.1"}
	} else {
		conf = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			NextProtos:         []string{"http/1.1"},
		}
		if len(cfg.TLS.CustomCACerts) > 0 {
			pool := x509.NewCertPool()
			for i, ca := range cfg.TLS.CustomCACerts {
				if ok := pool.AppendCertsFromPEM(ca); !ok {
					return nil, fmt.Errorf("failed to parse CA certificate at index %d", i)
				}
			}
			conf.RootCAs = pool
		}
		configureSNI(conf, cfg.TLS.SNI, cfg.TLS.DisableSNI, cfg.Origin.Host)
	}

	if cfg.TLS.MinVersion > 0 && conf.MinVersion == 0 {
		conf.MinVersion = cfg.TLS.MinVersion
	}
	if cfg.TLS.MaxVersion > 0 && conf.MaxVersion == 0 {
		conf.MaxVersion = cfg.TLS.MaxVersion
	}
	if len(cfg.TLS.CipherSuites) > 0 && len(conf.CipherSuites) == 0 {
		conf.CipherSuites = cfg.TLS.CipherSuites
	}
	if cfg.TLS.Renegotiation != 0 {
		conf.Renegotiation = cfg.TLS.Renegotiation
	}

	clientCert, err := loadClientCertificate(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if clientCert != nil {
		conf.Certificates = append(conf.Certificates, *clientCert)
	}

	tlsConn := tls.Client(netConn, conf)
	if err := tlsConn.HandshakeContext(tlsCtx); err != nil {
		return nil, err
	}

	state := tlsConn.ConnectionState()
	return &tlsResult{
		conn:    tlsConn,
		version: tlsconfig.GetVersionName(state.Version),
		cipher:  tlsconfig.GetCipherSuiteName(state.CipherSuite),
		resumed: state.DidResume,
	}, nil
}

func loadClientCertificate(cfg TLSConfig) (*tls.Certificate, error) {
	hasPEM := len(cfg.ClientCertPEM) > 0 && len(cfg.ClientKeyPEM) > 0
	hasFile := cfg.ClientCertFile != "" && cfg.ClientKeyFile != ""
	if !hasPEM && !hasFile {
		return nil, nil
	}

	certPEM, keyPEM := cfg.ClientCertPEM, cfg.ClientKeyPEM
	if !hasPEM {
		var err error
		certPEM, err = os.ReadFile(cfg.ClientCertFile)
		if err != nil {
			return nil, fmt.Errorf("reading client certificate file %s: %w", cfg.ClientCertFile, err)
		}
		keyPEM, err = os.ReadFile(cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading client key file %s: %w", cfg.ClientKeyFile, err)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing client certificate/key: %w", err)
	}
	return &cert, nil
}

// configureSNI mirrors the priority order: an explicit ServerName wins,
// then DisableSNI, then customSNI, then fallbackHost.
func configureSNI(conf *tls.Config, customSNI string, disableSNI bool, fallbackHost string) {
	if conf.ServerName != "" {
		return
	}
	if disableSNI {
		return
	}
	if customSNI != "" {
		conf.ServerName = customSNI
		return
	}
	conf.ServerName = fallbackHost
}
