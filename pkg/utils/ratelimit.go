package utils

import (
	"math"

	"golang.org/x/time/rate"
)

// NewRateLimiter returns a token bucket allowing rps requests per second with a burst of
// at least one, or nil when rps is not positive.
func NewRateLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
}
