package irc

import (
	"math/rand"
	"time"
)

// backoff computes reconnect delays: exponential doubling from the initial
// delay, an additive jitter term, and a hard cap. With jitter <= 1 the
// resulting delays are non-decreasing across attempts until the cap.
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
}

func (b backoff) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	if b.jitter > 0 && d < b.max {
		d += time.Duration(rand.Float64() * b.jitter * float64(d))
	}
	if d > b.max {
		d = b.max
	}
	return d
}
