// Package retry implements the request retry/backoff policy: classify an
// attempt's outcome, decide whether to retry, and compute the delay before
// the next attempt.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/corvidlabs/rawcore/pkg/constants"
	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

// jitterSource is a single package-level, mutex-guarded source so callers
// never need to seed or share a *rand.Rand themselves. Mirrors the
// single-owner-mutex pattern used around shared mutable state elsewhere in
// this module.
var (
	jitterMu  sync.Mutex
	jitterRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func jitter() float64 {
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return constants.JitterMin + jitterRng.Float64()*(constants.JitterMax-constants.JitterMin)
}

// Policy decides whether and how long to wait before retrying a request.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64

	// RetryableStatus, when non-empty, is the set of HTTP status codes that
	// trigger a retry in addition to retryable errors. A nil/empty set means
	// only transport-level errors are retried.
	RetryableStatus map[int]bool
}

// NewPolicy returns a Policy with rawcore's defaults.
func NewPolicy() Policy {
	return Policy{
		MaxAttempts:  constants.DefaultMaxAttempts,
		InitialDelay: constants.DefaultInitialDelay,
		MaxDelay:     constants.DefaultMaxDelay,
		Factor:       constants.DefaultFactor,
		RetryableStatus: map[int]bool{
			502: true, 503: true, 504: true,
		},
	}
}

// ShouldRetry reports whether attempt (1-indexed, the attempt that just
// finished) should be retried given its outcome. err is classified by its
// rawerr.ErrorType tag, never by inspecting its message text.
func (p Policy) ShouldRetry(err error, status int, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if err != nil {
		switch rawerr.GetErrorType(err) {
		case rawerr.ErrorTypeTimeout, rawerr.ErrorTypeConnection, rawerr.ErrorTypeIO:
			return true
		case rawerr.ErrorTypeCancelled, rawerr.ErrorTypeValidation, rawerr.ErrorTypeInvalidURL,
			rawerr.ErrorTypeTLS, rawerr.ErrorTypeBodyTooLarge, rawerr.ErrorTypeRedirectLimit,
			rawerr.ErrorTypeProtocol, rawerr.ErrorTypeDecode:
			return false
		default:
			return rawerr.IsTemporaryError(err)
		}
	}
	return p.RetryableStatus[status]
}

// Delay returns the backoff duration after attempt k (k >= 1, the attempt
// that just finished) and before the next one. attempt 0 (or negative) returns InitialDelay
// unmodified. For k >= 1, base = InitialDelay * Factor^k, scaled by a
// uniform jitter factor drawn from [0.75, 1.25], then capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.InitialDelay
	}
	base := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	d := time.Duration(base * jitter())
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
