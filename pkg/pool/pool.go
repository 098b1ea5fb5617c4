// Package pool implements the per-origin connection pool: a LIFO idle
// list bounded by MaxIdleConnsPerHost, at most MaxConnsPerHost leases per
// origin, a FIFO waiter queue for callers that
// arrive when the pool is at capacity, and idle-timeout/liveness eviction
// on acquire.
package pool

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawconn"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
	"github.com/corvidlabs/rawcore/pkg/rawurl"
)

// Config bounds one Pool's behavior.
type Config struct {
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	KeepaliveTimeout    time.Duration
	WaitTimeout         time.Duration // not read by Acquire, which waits until a slot frees or ctx is done
}

// DefaultConfig returns rawcore's pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnsPerHost:     constants.DefaultMaxConnectionsPerHost,
		MaxIdleConnsPerHost: constants.DefaultMaxConnectionsPerHost,
		KeepaliveTimeout:    constants.DefaultKeepaliveTimeout,
		WaitTimeout:         constants.DefaultConnectTimeout,
	}
}

type originPool struct {
	mu        sync.Mutex
	cond      *sync.Cond
	idle      []*rawconn.Conn
	numActive int
}

func newOriginPool() *originPool {
	p := &originPool{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pool partitions connections by origin (and, when proxied, by proxy
// identity too — see Key).
type Pool struct {
	cfg     Config
	origins sync.Map // map[string]*originPool
}

// New returns a Pool configured with cfg.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Key is the pool partitioning key: an origin, optionally qualified by the
// upstream proxy used to reach it so distinct proxies never share idle
// connections.
type Key struct {
	Origin    rawurl.OriginKey
	ProxyKey  string // "" for a direct connection
}

func (k Key) poolKey() string {
	if k.ProxyKey == "" {
		return k.Origin.Scheme + "://" + k.Origin.Host + ":" + strconv.Itoa(k.Origin.Port)
	}
	return k.ProxyKey + "->" + k.Origin.Host + ":" + strconv.Itoa(k.Origin.Port)
}

func (p *Pool) getOrCreate(key string) *originPool {
	val, _ := p.origins.LoadOrStore(key, newOriginPool())
	return val.(*originPool)
}

// Lease is a scoped acquisition: the caller must invoke Release exactly
// once, typically from a defer placed immediately after Acquire returns.
// Release is idempotent.
type Lease struct {
	pool     *Pool
	key      string
	op       *originPool
	conn     *rawconn.Conn // nil if the caller must dial a new connection
	released bool
	mu       sync.Mutex
}

// Conn returns the leased connection, or nil if the caller must dial a new
// one and call Bind once it has.
func (l *Lease) Conn() *rawconn.Conn { return l.conn }

// Bind attaches a freshly dialed connection to this lease (used when
// Acquire returned a nil Conn — a reserved slot with no idle connection to
// reuse).
func (l *Lease) Bind(c *rawconn.Conn) { l.conn = c }

// Release returns the connection to the idle pool when reusable is true,
// it is healthy, and the idle list has room; otherwise it frees the slot
// and closes the connection. Safe to call multiple times.
func (l *Lease) Release(reusable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true

	op := l.op
	op.mu.Lock()
	defer op.mu.Unlock()

	op.numActive--

	pooled := false
	if reusable && l.conn != nil && l.conn.Healthy() && len(op.idle) < l.pool.cfg.MaxIdleConnsPerHost {
		l.conn.LastUsed = time.Now()
		op.idle = append(op.idle, l.conn)
		pooled = true
	}
	if !pooled && l.conn != nil {
		l.conn.Close()
	}
	op.cond.Signal()
}

// Acquire reserves a connection for key: an idle connection if one is
// healthy and unexpired, otherwise a reserved slot for a new dial (signaled
// by a nil Lease.Conn()). If the pool is at MaxConnsPerHost, Acquire blocks
// on the FIFO waiter queue until a slot frees or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context, key Key) (*Lease, error) {
	k := key.poolKey()
	op := p.getOrCreate(k)

	op.mu.Lock()
	defer op.mu.Unlock()

	for {
		for len(op.idle) > 0 {
			n := len(op.idle)
			c := op.idle[n-1]
			op.idle = op.idle[:n-1]

			if c.IsIdleExpired(time.Now(), p.cfg.KeepaliveTimeout) {
				c.Close()
				continue
			}
			if !c.IsAlive() {
				c.Close()
				continue
			}

			op.numActive++
			return &Lease{pool: p, key: k, op: op, conn: c}, nil
		}

		if p.cfg.MaxConnsPerHost <= 0 || op.numActive < p.cfg.MaxConnsPerHost {
			op.numActive++
			return &Lease{pool: p, key: k, op: op}, nil
		}

		if ctx.Err() != nil {
			return nil, rawerr.NewCancelledError("pool-acquire", ctx.Err())
		}

		if !p.waitOnCond(ctx, op) {
			return nil, rawerr.NewPoolExhaustedError(k)
		}
	}
}

// waitOnCond blocks on op.cond until signaled or ctx is done, returning
// false on cancellation/timeout. op.mu must be held on entry and is held
// again on return.
func (p *Pool) waitOnCond(ctx context.Context, op *originPool) bool {
	// Cancellation wakes every waiter; each re-checks its own ctx.
	stop := context.AfterFunc(ctx, func() {
		op.mu.Lock()
		op.cond.Broadcast()
		op.mu.Unlock()
	})
	defer stop()

	op.cond.Wait()
	return ctx.Err() == nil
}

// Stats reports a snapshot of pool occupancy for the given key.
type Stats struct {
	Idle   int
	Active int
}

// Stats returns current occupancy for key.
func (p *Pool) Stats(key Key) Stats {
	op := p.getOrCreate(key.poolKey())
	op.mu.Lock()
	defer op.mu.Unlock()
	return Stats{Idle: len(op.idle), Active: op.numActive}
}

// CloseAll closes every idle connection across every origin. Active
// (leased) connections are unaffected.
func (p *Pool) CloseAll() {
	p.origins.Range(func(_, v interface{}) bool {
		op := v.(*originPool)
		op.mu.Lock()
		for _, c := range op.idle {
			c.Close()
		}
		op.idle = nil
		op.mu.Unlock()
		return true
	})
}
