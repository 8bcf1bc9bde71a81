// Package aggregator implements the MCP protocol dispatch (single-server
// and unified/multi-server) and the unified-mode facade's per-session
// server health tracking.
package aggregator

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"muster/internal/domain"
)

const (
	// degradedThreshold is the consecutive-failure count at which a
	// healthy server is marked degraded.
	degradedThreshold = 3
	// failedThreshold is the consecutive-failure count at which a
	// degraded server is marked failed.
	failedThreshold = 5
	// baseCooldown is the floor of the failed->recovering cooldown; it
	// escalates per repeated failure via the backoff curve below, capped
	// at maxCooldown.
	baseCooldown = 5 * time.Minute
	maxCooldown  = 30 * time.Minute
)

// newCooldown builds the escalating backoff curve a Failed server's
// cooldown follows: 5 minutes after the first run of failures, growing
// toward 30 minutes if it keeps failing once recovering.
func newCooldown() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseCooldown
	b.MaxInterval = maxCooldown
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	return b
}

// ServerHealth tracks one backing server's health within a unified
// session: consecutive failure count, current status, and the cooldown
// that gates when a Failed server may be retried.
type ServerHealth struct {
	mu sync.Mutex

	ServerID         string
	Status           domain.ServerHealthStatus
	ConsecutiveFails int
	LastErrorType    domain.ServerErrorType
	LastError        string
	LastFailureAt    time.Time
	LastSuccessAt    time.Time

	cooldown    *backoff.ExponentialBackOff
	nextRetryAt time.Time
}

// NewServerHealth starts a server out healthy.
func NewServerHealth(serverID string) *ServerHealth {
	return &ServerHealth{
		ServerID: serverID,
		Status:   domain.HealthHealthy,
		cooldown: newCooldown(),
	}
}

// RecordSuccess resets the failure count and the cooldown curve,
// restoring healthy status — the spec's error-isolation guarantee that
// one bad call doesn't permanently sideline a server once it starts
// answering again.
func (h *ServerHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ConsecutiveFails = 0
	h.Status = domain.HealthHealthy
	h.LastSuccessAt = time.Now()
	h.cooldown.Reset()
}

// RecordFailure classifies err's message and advances the failure state
// machine: healthy/recovering -> degraded at 3 consecutive failures,
// degraded -> failed at 5, at which point the next retry is pushed out
// along the escalating cooldown curve.
func (h *ServerHealth) RecordFailure(errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ConsecutiveFails++
	h.LastErrorType = domain.ClassifyError(errMsg)
	h.LastError = errMsg
	h.LastFailureAt = time.Now()

	switch {
	case h.ConsecutiveFails >= failedThreshold:
		h.Status = domain.HealthFailed
		result := h.cooldown.NextBackOff()
		if result == backoff.Stop {
			result = maxCooldown
		}
		h.nextRetryAt = h.LastFailureAt.Add(result)
	case h.ConsecutiveFails >= degradedThreshold:
		h.Status = domain.HealthDegraded
	}
}

// Usable reports whether the facade should still route calls to this
// server: true unless it's Failed and still within its cooldown window.
// A Failed server past its cooldown flips to Recovering and is allowed
// one more attempt.
func (h *ServerHealth) Usable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.Status != domain.HealthFailed {
		return true
	}
	if time.Now().Before(h.nextRetryAt) {
		return false
	}
	h.Status = domain.HealthRecovering
	return true
}

// Snapshot returns a copy of the current state for the health endpoint.
func (h *ServerHealth) Snapshot() domain.ServerHealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Status
}
