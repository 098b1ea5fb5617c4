package rawcore

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/corvidlabs/rawcore/pkg/exec"
	"github.com/corvidlabs/rawcore/pkg/pool"
	"github.com/corvidlabs/rawcore/pkg/ratelimit"
	"github.com/corvidlabs/rawcore/pkg/rawconn"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
	"github.com/corvidlabs/rawcore/pkg/rawurl"
	"github.com/corvidlabs/rawcore/pkg/retry"
	"github.com/corvidlabs/rawcore/pkg/timing"
	"github.com/corvidlabs/rawcore/pkg/wire"
)

// Client executes HTTP/1.1 requests over a shared connection pool, rate
// limiter, and retry policy. A Client is safe for concurrent use by
// multiple goroutines; it holds no per-request mutable state.
type Client struct {
	opts Options
	exec *exec.Executor
	log  *slog.Logger
}

// New builds a Client from opts, taking DefaultOptions' values for a zero
// ConnectTimeout or ReadTimeout, for a zero MaxRedirects when
// FollowRedirects is set, and for zero rate-limit bounds when rate limiting
// is enabled; other zero fields are not filled in. The returned Client owns its own connection pool and
// rate limiter; construct one Client per logical upstream rather than one
// per request.
func New(opts Options) (*Client, error) {
	return newClient(opts, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

// Configure is an alias for New, named to match callers that think of this
// as reconfiguring a logical endpoint rather than constructing a fresh
// object.
func Configure(opts Options) (*Client, error) {
	return New(opts)
}

// WithLogger returns a copy of c that logs through logger instead of the
// default silent handler.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	clone := *c
	clone.log = logger
	return &clone
}

func newClient(opts Options, log *slog.Logger) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultOptions().ConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultOptions().ReadTimeout
	}
	if opts.MaxRedirects <= 0 && opts.FollowRedirects {
		opts.MaxRedirects = DefaultOptions().MaxRedirects
	}

	tlsCfg, err := buildTLSConfig(opts)
	if err != nil {
		return nil, err
	}

	proxy := opts.Proxy
	if proxy == nil && opts.ProxyURL != "" {
		proxy, err = rawconn.ParseProxyURL(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
	}

	poolCfg := pool.DefaultConfig()
	if opts.EnableConnectionPool {
		if opts.MaxConnectionsPerHost > 0 {
			poolCfg.MaxConnsPerHost = opts.MaxConnectionsPerHost
			poolCfg.MaxIdleConnsPerHost = opts.MaxConnectionsPerHost
		}
		if opts.KeepaliveTimeout > 0 {
			poolCfg.KeepaliveTimeout = opts.KeepaliveTimeout
		}
	} else {
		// A pool of exactly one connection per origin, never idled, behaves
		// like "no pooling": every lease dials fresh because nothing is ever
		// retained as idle.
		poolCfg.MaxConnsPerHost = 1
		poolCfg.MaxIdleConnsPerHost = 0
	}
	connPool := pool.New(poolCfg)

	var limiter exec.Limiter
	if opts.EnableRateLimit {
		requests := opts.RateLimitRequests
		if requests <= 0 {
			requests = DefaultOptions().RateLimitRequests
		}
		window := opts.RateLimitWindow
		if window <= 0 {
			window = DefaultOptions().RateLimitWindow
		}
		limiter = ratelimit.New(requests, window)
	}

	retryPolicy := retry.NewPolicy()
	if opts.EnableRetry {
		if opts.MaxRetries > 0 {
			retryPolicy.MaxAttempts = opts.MaxRetries
		}
		if opts.InitialRetryDelay > 0 {
			retryPolicy.InitialDelay = opts.InitialRetryDelay
		}
		if opts.RetryBackoffFactor > 0 {
			retryPolicy.Factor = opts.RetryBackoffFactor
		}
		if opts.MaxRetryDelay > 0 {
			retryPolicy.MaxDelay = opts.MaxRetryDelay
		}
		for _, status := range opts.RetryOnStatus {
			retryPolicy.RetryableStatus[status] = true
		}
	} else {
		retryPolicy.MaxAttempts = 1
	}

	execCfg := exec.Config{
		Pool:    connPool,
		Limiter: limiter,
		Retry:   retryPolicy,

		TLS:   tlsCfg,
		Proxy: proxy,

		ConnectTimeout: opts.ConnectTimeout,
		ReadTimeout:    opts.ReadTimeout,
		RequestTimeout: opts.RequestTimeout,

		FollowRedirects: opts.FollowRedirects,
		MaxRedirects:    opts.MaxRedirects,

		BodyMemLimit: opts.BodyMemLimit,
		MaxBodyBytes: opts.MaxBodyBytes,
	}

	return &Client{opts: opts, exec: exec.New(execCfg), log: log}, nil
}

func buildTLSConfig(opts Options) (rawconn.TLSConfig, error) {
	cfg := rawconn.TLSConfig{
		SNI:            opts.SNI,
		DisableSNI:     opts.DisableSNI,
		InsecureSkipVerify: !opts.VerifySSL,
		ClientCertPEM:  opts.ClientCertPEM,
		ClientKeyPEM:   opts.ClientKeyPEM,
		ClientCertFile: opts.ClientCertFile,
		ClientKeyFile:  opts.ClientKeyFile,
		MinVersion:     opts.MinTLSVersion,
		MaxVersion:     opts.MaxTLSVersion,
		CipherSuites:   opts.CipherSuites,
		Renegotiation:  opts.TLSRenegotiation,
		BaseConfig:     opts.TLSConfig,
	}

	if opts.CACertFile != "" {
		pem, err := os.ReadFile(opts.CACertFile)
		if err != nil {
			return cfg, rawerr.NewValidationError(fmt.Sprintf("reading ca cert file %q: %v", opts.CACertFile, err))
		}
		cfg.CustomCACerts = append(cfg.CustomCACerts, pem)
	}
	if opts.CACertPath != "" {
		entries, err := os.ReadDir(opts.CACertPath)
		if err != nil {
			return cfg, rawerr.NewValidationError(fmt.Sprintf("reading ca cert directory %q: %v", opts.CACertPath, err))
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(opts.CACertPath, entry.Name()))
			if err != nil {
				return cfg, rawerr.NewValidationError(fmt.Sprintf("reading ca cert %q: %v", entry.Name(), err))
			}
			cfg.CustomCACerts = append(cfg.CustomCACerts, pem)
		}
	}

	// Fail fast on an unparsable CA bundle rather than letting the first
	// dial surface a confusing TLS handshake error.
	if len(cfg.CustomCACerts) > 0 {
		pool := x509.NewCertPool()
		for _, ca := range cfg.CustomCACerts {
			if !pool.AppendCertsFromPEM(ca) {
				return cfg, rawerr.NewValidationError("no valid certificates found in CA bundle")
			}
		}
	}

	return cfg, nil
}

// newRequest builds a wire.Request from a raw URL string and optional body.
func newRequest(method, rawURL string, body []byte, enableCompression bool) (*wire.Request, error) {
	url, err := rawurl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	req := wire.NewRequest(method, url)
	req.EnableCompression = enableCompression
	if body != nil {
		req.Body = body
	}
	return req, nil
}

// Execute runs req to completion through this Client's pool, rate limiter,
// and retry policy, following redirects when enabled.
func (c *Client) Execute(ctx context.Context, req *wire.Request) (*Response, error) {
	meta := &exec.ConnMeta{}
	timer := timing.NewTimer()
	ctx = exec.WithConnMeta(ctx, meta)
	ctx = exec.WithTimer(ctx, timer)

	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		c.log.DebugContext(ctx, "request failed", "method", req.Method, "url", req.URL.Host, "error", err)
		return nil, err
	}
	return wrapResponse(resp, meta, timer), nil
}

// Get, Post, Put, Delete, Head, Patch, and Options are convenience
// wrappers around Execute for the common verbs. Get, Head, Delete and
// Options take no body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, "GET", url, nil)
}

func (c *Client) Post(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.do(ctx, "POST", url, body)
}

func (c *Client) Put(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.do(ctx, "PUT", url, body)
}

func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, "DELETE", url, nil)
}

func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, "HEAD", url, nil)
}

func (c *Client) Patch(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.do(ctx, "PATCH", url, body)
}

func (c *Client) Options(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, "OPTIONS", url, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	req, err := newRequest(method, url, body, c.opts.EnableCompression)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, req)
}

// SSEHandler is called once per parsed Server-Sent Event. Returning false
// stops the stream early and StreamEvents returns nil.
type SSEHandler func(wire.SSEEvent) bool

// StreamEvents opens req as a Server-Sent Events stream and invokes handler
// for each event until the handler returns false, the stream ends, or ctx
// is cancelled. Unlike Execute, the underlying connection is never pooled.
func (c *Client) StreamEvents(ctx context.Context, req *wire.Request, handler SSEHandler) error {
	return c.exec.Stream(ctx, req, handler)
}
