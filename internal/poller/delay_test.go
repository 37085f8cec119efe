package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/onllm-dev/claudewatch/internal/api"
)

func TestNextDelay_NormalJitterBounds(t *testing.T) {
	interval := 60 * time.Second
	for i := 0; i < 200; i++ {
		d := NextDelay(interval, api.StatusOK)
		assert.GreaterOrEqual(t, d, 54*time.Second)
		assert.LessOrEqual(t, d, 66*time.Second)
	}
}

func TestNextDelay_EnforcesMinimumInterval(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := NextDelay(time.Second, api.StatusOK)
		assert.GreaterOrEqual(t, d, 9*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
}

func TestNextDelay_RateLimitedBackoff(t *testing.T) {
	// The configured interval is irrelevant once the API pushes back.
	for i := 0; i < 200; i++ {
		d := NextDelay(10*time.Second, api.StatusRateLimited)
		assert.GreaterOrEqual(t, d, 4*time.Minute)
		assert.LessOrEqual(t, d, 6*time.Minute)
	}
}

func TestNextDelay_ErrorUsesNormalCadence(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := NextDelay(60*time.Second, api.StatusError)
		assert.GreaterOrEqual(t, d, 54*time.Second)
		assert.LessOrEqual(t, d, 66*time.Second)
	}
}
