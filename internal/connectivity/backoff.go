package connectivity

import (
	"math"
	"math/rand"
	"time"
)

// Policy controls how long the live channel waits between reconnect
// attempts. Delays grow exponentially from Initial, capped at Max, with a
// random jitter fraction applied so a fleet of clients does not reconnect
// in lockstep after a server restart.
type Policy struct {
	// Initial is the delay before the first reconnect attempt.
	Initial time.Duration

	// Max caps the delay regardless of attempt count.
	Max time.Duration

	// Factor is the multiplier applied per attempt (must be >= 1).
	Factor float64

	// Jitter is the fraction of the delay randomized in either
	// direction, in [0, 1]. Zero disables jitter.
	Jitter float64
}

// DefaultPolicy returns the reconnect policy used when none is configured:
// 1s doubling up to 30s with 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2,
		Jitter:  0.2,
	}
}

// Delay returns the wait before reconnect attempt n (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	d := float64(initial) * math.Pow(factor, float64(attempt))
	if max := float64(p.Max); p.Max > 0 && d > max {
		d = max
	}

	if p.Jitter > 0 {
		// Spread across [d*(1-jitter), d*(1+jitter)].
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}

	return time.Duration(d)
}
