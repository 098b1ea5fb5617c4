// Package rawcore is an HTTP/1.1 request-execution core: URL resolution,
// pooled plaintext/TLS connections, wire framing (chunked, gzip/deflate,
// SSE), deadline-bound I/O, redirects and retries, exposed as both a
// blocking and a suspending (future-based) surface over one shared
// transport.
package rawcore

import (
	"crypto/tls"
	"time"

	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawconn"
)

// Options controls how a Client establishes connections, pools them, reads
// responses, and retries. Copied into the Client at New/Configure time;
// mutating an Options value afterward has no effect on a Client already
// built from it.
type Options struct {
	// Connection and read/request deadlines.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RequestTimeout time.Duration // 0 means no wall-clock cap per attempt

	// Compression.
	EnableCompression bool

	// TLS.
	VerifySSL      bool
	CACertFile     string
	CACertPath     string
	SNI            string
	DisableSNI     bool
	ClientCertPEM  []byte
	ClientKeyPEM   []byte
	ClientCertFile string
	ClientKeyFile  string
	MinTLSVersion  uint16
	MaxTLSVersion  uint16
	CipherSuites   []uint16
	TLSRenegotiation tls.RenegotiationSupport
	TLSConfig      *tls.Config // base config cloned per dial; when set, CACertFile, CACertPath, SNI and DisableSNI are not applied, and Min/MaxTLSVersion and CipherSuites fill only its zero fields

	// Redirects.
	FollowRedirects bool
	MaxRedirects    int

	// Connection pool.
	EnableConnectionPool  bool
	MaxConnectionsPerHost int
	KeepaliveTimeout      time.Duration

	// Rate limiting.
	EnableRateLimit    bool
	RateLimitRequests  int
	RateLimitWindow    time.Duration

	// Retry policy.
	EnableRetry         bool
	MaxRetries          int
	InitialRetryDelay   time.Duration
	RetryBackoffFactor  float64
	MaxRetryDelay       time.Duration
	RetryOnStatus       []int // additional statuses (beyond 502/503/504) that trigger a retry

	// Proxy.
	ProxyURL string // parsed via ParseProxyURL; ignored if Proxy is also set
	Proxy    *rawconn.ProxyConfig

	// Body limits.
	BodyMemLimit  int64
	MaxBodyBytes  int64

	// ConnectIP is not passed to the dialer: every origin is resolved
	// through DNS whatever this field holds.
	ConnectIP string
}

// DefaultOptions returns rawcore's defaults, matching the Client
// configuration table: connection pooling and redirect-following on,
// rate limiting off (its request and window bounds preset for when it is
// enabled), retry on with conservative bounds, compression and
// certificate verification on.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: constants.DefaultConnectTimeout,
		ReadTimeout:    constants.DefaultReadTimeout,

		EnableCompression: true,
		VerifySSL:         true,

		FollowRedirects: true,
		MaxRedirects:    constants.DefaultMaxRedirects,

		EnableConnectionPool:  true,
		MaxConnectionsPerHost: constants.DefaultMaxConnectionsPerHost,
		KeepaliveTimeout:      constants.DefaultKeepaliveTimeout,

		EnableRateLimit:   false,
		RateLimitRequests: constants.DefaultRateLimitRequests,
		RateLimitWindow:   constants.DefaultRateLimitWindow,

		EnableRetry:        true,
		MaxRetries:         constants.DefaultMaxAttempts,
		InitialRetryDelay:  constants.DefaultInitialDelay,
		RetryBackoffFactor: constants.DefaultFactor,
		MaxRetryDelay:      constants.DefaultMaxDelay,

		BodyMemLimit: constants.DefaultBodyMemLimit,
		MaxBodyBytes: constants.DefaultMaxBodyBytes,
	}
}
