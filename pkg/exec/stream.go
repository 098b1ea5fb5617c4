package exec

import (
	"bufio"
	"fmt"
	"time"

	"github.com/corvidlabs/rawcore/pkg/pool"
	"github.com/corvidlabs/rawcore/pkg/rawconn"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
	"github.com/corvidlabs/rawcore/pkg/wire"

	"context"
)

// Stream performs one attempt's rate-limit admission, pool acquisition and
// dial as Execute does, writes the request under a deadline taken from the
// connect timeout, and then reads the response body as a live Server-Sent
// Events stream instead of buffering it. It records no timer phases or
// connection metadata, follows no redirects and does not retry. fn is invoked once per dispatched event; returning false
// stops the stream early. SSE connections are never returned to the idle
// pool — the caller holds the stream open indefinitely, which is
// incompatible with pooled reuse.
func (e *Executor) Stream(ctx context.Context, req *wire.Request, fn func(wire.SSEEvent) bool) error {
	if e.cfg.Limiter != nil {
		if err := e.cfg.Limiter.Admit(ctx); err != nil {
			return err
		}
	}

	origin := req.URL.Origin()
	key := pool.Key{Origin: origin}
	if e.cfg.Proxy != nil {
		key.ProxyKey = e.cfg.Proxy.Key()
	}

	lease, err := e.cfg.Pool.Acquire(ctx, key)
	if err != nil {
		return err
	}
	// SSE connections are never reusable; the pool slot they occupied is
	// simply freed once the connection closes.
	defer lease.Release(false)

	conn := lease.Conn()
	if conn == nil {
		conn, err = rawconn.Dial(ctx, rawconn.DialConfig{
			Origin:      origin,
			ConnTimeout: e.connectTimeout(),
			TLS:         e.cfg.TLS,
			Proxy:       e.cfg.Proxy,
		})
		if err != nil {
			return err
		}
		lease.Bind(conn)
	}

	// Cancelling ctx closes the socket, ending the stream.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	writeDeadline := time.Now().Add(e.connectTimeout())
	if err := conn.WriteDeadline(wire.Serialize(req), writeDeadline); err != nil {
		return err
	}

	// Inactivity, not total-stream, bound: each read gets a fresh window so
	// a slow-but-alive event source is never cut off mid-stream.
	conn.SetReadDeadline(time.Now().Add(e.readTimeout()))
	defer conn.SetReadDeadline(time.Time{})

	br := bufio.NewReader(conn)
	head, err := wire.ReadHead(br, wire.ReadOptions{MaxHeaderBytes: e.cfg.MaxHeaderBytes})
	if err != nil {
		conn.MarkUnhealthy()
		return err
	}
	if head.StatusCode < 200 || head.StatusCode >= 300 {
		conn.MarkUnhealthy()
		return rawerr.NewProtocolError(fmt.Sprintf("unexpected status %d for SSE stream", head.StatusCode), nil)
	}

	return wire.ScanSSE(&deadlineRefreshingReader{r: br, conn: conn, timeout: e.readTimeout()}, fn)
}

// deadlineRefreshingReader resets the connection's read deadline before
// every Read call, keeping the inactivity bound per read rather than
// capping the whole stream.
type deadlineRefreshingReader struct {
	r       *bufio.Reader
	conn    *rawconn.Conn
	timeout time.Duration
}

func (d *deadlineRefreshingReader) Read(p []byte) (int, error) {
	d.conn.SetReadDeadline(time.Now().Add(d.timeout))
	return d.r.Read(p)
}
