package errclass

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	backoffUnit   = time.Second
	backoffJitter = 0.2
	maxAttemptExp = 16
)

// Backoff returns the delay before retry attempt n (zero based):
// 2^(n+1) seconds with ±20% uniform jitter.
func Backoff(attempt int) time.Duration {
	return BackoffWith(attempt, rand.Float64)
}

// BackoffWith is Backoff with an injectable [0,1) source.
func BackoffWith(attempt int, random func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxAttemptExp {
		attempt = maxAttemptExp
	}
	base := math.Pow(2, float64(attempt+1)) * float64(backoffUnit)
	factor := 1 - backoffJitter + 2*backoffJitter*random()
	return time.Duration(base * factor)
}
