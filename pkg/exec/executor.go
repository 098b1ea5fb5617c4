// Package exec drives the request-execution state machine: resolve, admit,
// acquire a connection, serialize, read the response, follow redirects, and
// retry a failed attempt with a fresh connection. It wires together
// pkg/rawurl, pkg/wire, pkg/retry, pkg/ratelimit, pkg/rawconn and pkg/pool.
package exec

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/corvidlabs/rawcore/pkg/pool"
	"github.com/corvidlabs/rawcore/pkg/rawconn"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
	"github.com/corvidlabs/rawcore/pkg/rawurl"
	"github.com/corvidlabs/rawcore/pkg/retry"
	"github.com/corvidlabs/rawcore/pkg/wire"
)

// Config bounds one Executor's behavior. It is taken as an immutable
// snapshot at construction; in-flight requests never observe a change to it.
type Config struct {
	Pool    *pool.Pool
	Limiter Limiter // nil disables rate limiting
	Retry   retry.Policy

	TLS   rawconn.TLSConfig
	Proxy *rawconn.ProxyConfig

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RequestTimeout time.Duration // 0 means no wall-clock cap

	FollowRedirects bool
	MaxRedirects    int

	BodyMemLimit   int64
	MaxBodyBytes   int64
	MaxHeaderBytes int
}

// Limiter is the subset of *ratelimit.Limiter the executor depends on, so
// tests can substitute a fake without dragging in container/list plumbing.
type Limiter interface {
	Admit(ctx context.Context) error
}

// Executor implements the request-execution state machine.
type Executor struct {
	cfg Config
}

// New returns an Executor bound to cfg.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Execute runs req to completion: a full attempt (including any redirect
// hops) wrapped in the retry loop. Each retry acquires a brand new
// connection; no partial state survives from a failed attempt.
func (e *Executor) Execute(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	attempt := 1
	for {
		// RequestTimeout caps each attempt separately, not the retry loop.
		attemptCtx, cancelAttempt := ctx, context.CancelFunc(func() {})
		if e.cfg.RequestTimeout > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		}
		resp, err := e.attemptWithRedirects(attemptCtx, req, 0, nil)
		cancelAttempt()

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		retriableStatus := err == nil && e.cfg.Retry.RetryableStatus[status]

		if err == nil && !retriableStatus {
			return resp, nil
		}
		if !e.cfg.Retry.ShouldRetry(err, status, attempt) {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		delay := e.cfg.Retry.Delay(attempt)
		attempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, rawerr.NewCancelledError("retry-wait", ctx.Err())
		}
	}
}

// attemptWithRedirects performs one connection-level attempt and, on a 3xx
// response with Location and hops remaining, recursively follows the
// redirect. hopsSoFar counts completed hops in this attempt only; it resets
// to 0 on every retry. chain accumulates the URL of every hop taken so far
// and is attached to the terminal response as Redirects.
func (e *Executor) attemptWithRedirects(ctx context.Context, req *wire.Request, hopsSoFar int, chain []string) (*wire.Response, error) {
	resp, err := e.attemptOnce(ctx, req)
	if err != nil {
		return nil, err
	}

	if !e.cfg.FollowRedirects || resp.StatusCode < 300 || resp.StatusCode >= 400 {
		resp.Redirects = chain
		return resp, nil
	}

	location := resp.Headers.Get("Location")
	if location == "" {
		resp.Redirects = chain
		return resp, nil
	}

	if hopsSoFar >= e.cfg.MaxRedirects {
		return nil, rawerr.NewRedirectLimitError(e.cfg.MaxRedirects)
	}

	nextURL, err := rawurl.ResolveLocation(req.URL, location)
	if err != nil {
		return nil, err
	}
	chain = append(chain, nextURL.String())

	nextMethod := "GET"
	if req.Method == "HEAD" {
		nextMethod = "HEAD"
	}
	nextReq := wire.NewRequest(nextMethod, nextURL)
	nextReq.EnableCompression = req.EnableCompression
	crossOrigin := nextURL.Origin() != req.URL.Origin()
	for _, f := range req.Headers.Fields() {
		if crossOrigin && wire.IsSensitiveHeader(f.Name) {
			continue
		}
		nextReq.Headers.Add(f.Name, f.Value)
	}

	return e.attemptWithRedirects(ctx, nextReq, hopsSoFar+1, chain)
}

// attemptOnce performs exactly one wire round trip: rate-limit admission,
// scoped pool acquisition, dial if needed, serialize+write, read the
// response. The connection is released (reused iff the response advertises
// keep-alive and it is still healthy) before this function returns.
func (e *Executor) attemptOnce(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if e.cfg.Limiter != nil {
		if err := e.cfg.Limiter.Admit(ctx); err != nil {
			return nil, err
		}
	}

	origin := req.URL.Origin()
	key := pool.Key{Origin: origin}
	if e.cfg.Proxy != nil {
		key.ProxyKey = e.cfg.Proxy.Key()
	}

	lease, err := e.cfg.Pool.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer lease.Release(false)

	timer := timerFromContext(ctx)

	conn := lease.Conn()
	reused := conn != nil
	if conn == nil {
		if timer != nil {
			timer.StartTCP()
		}
		conn, err = rawconn.Dial(ctx, rawconn.DialConfig{
			Origin:      origin,
			ConnTimeout: e.connectTimeout(),
			TLS:         e.cfg.TLS,
			Proxy:       e.cfg.Proxy,
		})
		if timer != nil {
			timer.EndTCP()
		}
		if err != nil {
			return nil, err
		}
		lease.Bind(conn)
	}

	// Cancelling ctx closes the socket, unblocking any write or read in
	// progress on it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if meta := connMetaFromContext(ctx); meta != nil {
		meta.ConnectionID = conn.ID
		meta.LocalAddr = conn.LocalAddr().String()
		meta.RemoteAddr = conn.RemoteAddr().String()
		meta.ConnectionReused = reused
		meta.TLSVersion = conn.TLSVersion
		meta.TLSCipherSuite = conn.TLSCipher
		meta.TLSResumed = conn.Resumed
		if e.cfg.Proxy != nil {
			meta.ProxyUsed = true
			meta.ProxyType = e.cfg.Proxy.Type
			meta.ProxyAddr = e.cfg.Proxy.Addr()
		}
	}

	writeDeadline := e.attemptDeadline(ctx)
	if err := conn.WriteDeadline(wire.Serialize(req), writeDeadline); err != nil {
		return nil, err
	}

	if timer != nil {
		timer.StartTTFB()
	}
	// Each Read gets its own inactivity window instead of one deadline
	// covering the whole head+body read, so a large but steadily
	// progressing body is never mistaken for a stalled one.
	reader := bufio.NewReader(&deadlineRefreshingReader{
		r:       bufio.NewReader(conn),
		conn:    conn,
		timeout: e.readTimeout(),
	})
	resp, err := wire.ReadResponse(reader, req.Method, wire.ReadOptions{
		BodyMemLimit:   e.cfg.BodyMemLimit,
		MaxBodyBytes:   e.cfg.MaxBodyBytes,
		MaxHeaderBytes: e.cfg.MaxHeaderBytes,
	}, conn)
	if timer != nil {
		timer.EndTTFB()
	}
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.MarkUnhealthy()
		return nil, err
	}

	if !stop() {
		conn.MarkUnhealthy()
	}
	reusable := conn.Healthy() && advertisesKeepAlive(resp.Headers)
	lease.Release(reusable)

	return resp, nil
}

func advertisesKeepAlive(h wire.Header) bool {
	return !strings.EqualFold(h.Get("Connection"), "close")
}

func (e *Executor) connectTimeout() time.Duration {
	if e.cfg.ConnectTimeout > 0 {
		return e.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

// attemptDeadline derives an absolute deadline from the read-inactivity
// bound, further tightened by ctx's own deadline (request_timeout) when
// that comes first. It bounds the write side of the round trip; the read
// side uses a per-read inactivity timer instead (see deadlineRefreshingReader).
func (e *Executor) attemptDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(e.readTimeout())
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	return deadline
}

func (e *Executor) readTimeout() time.Duration {
	if e.cfg.ReadTimeout > 0 {
		return e.cfg.ReadTimeout
	}
	return 30 * time.Second
}
