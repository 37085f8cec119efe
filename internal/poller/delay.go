package poller

import (
	"math/rand"
	"time"

	"github.com/onllm-dev/claudewatch/internal/api"
)

const (
	// MinPollInterval is the floor applied to the configured interval so a
	// misconfigured value cannot hammer the API.
	MinPollInterval = 10 * time.Second

	rateLimitedBackoff = 5 * time.Minute

	normalJitterFraction      = 0.10
	rateLimitedJitterFraction = 0.20
)

// NextDelay computes the delay before the next poll cycle. Rate-limited
// responses back off hard regardless of the configured interval; everything
// else polls at the configured cadence. Jitter spreads fleets of watchers so
// they do not synchronize against the API.
func NextDelay(interval time.Duration, status api.Status) time.Duration {
	if status == api.StatusRateLimited {
		return jittered(rateLimitedBackoff, rateLimitedJitterFraction)
	}
	base := interval
	if base < MinPollInterval {
		base = MinPollInterval
	}
	return jittered(base, normalJitterFraction)
}

// jittered returns base +/- fraction, uniformly distributed.
func jittered(base time.Duration, fraction float64) time.Duration {
	span := float64(base) * fraction
	offset := (rand.Float64()*2 - 1) * span
	return base + time.Duration(offset)
}
