package exec

import "context"

// ConnMeta collects connection-level facts about one attempt for callers
// that want to report them alongside the response (negotiated TLS
// parameters, socket addresses, whether the connection was proxied or
// reused from the pool). Threaded through context the same way as *timing.Timer
// so attemptOnce doesn't need a wider return type for callers that don't
// care about it.
type ConnMeta struct {
	ConnectionID     uint64
	LocalAddr        string
	RemoteAddr       string
	ConnectionReused bool

	TLSVersion     string
	TLSCipherSuite string
	TLSResumed     bool

	ProxyUsed bool
	ProxyType string
	ProxyAddr string
}

type connMetaContextKey struct{}

// WithConnMeta attaches m to ctx; attemptOnce fills it in when present.
func WithConnMeta(ctx context.Context, m *ConnMeta) context.Context {
	return context.WithValue(ctx, connMetaContextKey{}, m)
}

func connMetaFromContext(ctx context.Context) *ConnMeta {
	m, _ := ctx.Value(connMetaContextKey{}).(*ConnMeta)
	return m
}
