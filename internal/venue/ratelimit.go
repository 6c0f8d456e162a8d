// ratelimit.go groups per-endpoint-category rate limiters for the venue
// REST API, replacing the teacher's hand-rolled TokenBucket
// (internal/exchange/ratelimit.go) with golang.org/x/time/rate's Limiter —
// the same continuous-refill token-bucket semantics, via the library the
// rest of the retrieval pack reaches for (thrasher-corp/gocryptotrader,
// DimaJoyti/ai-agentic-crypto-browser both import golang.org/x/time for
// exactly this purpose).
package venue

import (
	"golang.org/x/time/rate"
)

// RateLimiter groups limiters by venue API category. Order/Cancel batches
// are capped at 20 per spec §4.1/§6; Book reads are unbounded by that
// constraint but still rate-limited to stay within the venue's published
// request budget.
type RateLimiter struct {
	Order  *rate.Limiter
	Cancel *rate.Limiter
	Book   *rate.Limiter
}

// NewRateLimiter creates rate limiters tuned to typical perpetual-futures
// venue limits: bursts sized to the batch-order constraint, steady-state
// rates conservative enough to avoid tripping venue-side throttling.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  rate.NewLimiter(rate.Limit(20), 20),
		Cancel: rate.NewLimiter(rate.Limit(20), 20),
		Book:   rate.NewLimiter(rate.Limit(10), 10),
	}
}
