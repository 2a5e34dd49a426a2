package session

import "time"

// The proactive refresh scheduler: a single one-shot timer that fires
// refreshBuffer before the known expiry, floored at minTimerDelay so a
// short-lived token never produces a nonsensical delay. Re-arming always
// cancels the previous timer, so at most one timer exists per Coordinator.

// fireDelay converts a token lifetime into the timer delay.
func (c *Coordinator) fireDelay(ttl time.Duration) time.Duration {
	fire := ttl - c.refreshBuffer
	if fire < c.minTimerDelay {
		fire = c.minTimerDelay
	}
	return fire
}

// armTimerLocked records the new expiry instant and arms the one-shot timer.
// Callers hold c.mu.
func (c *Coordinator) armTimerLocked(ttl time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.expiresAt = c.clock.Now().Add(ttl)
	c.timer = c.clock.AfterFunc(c.fireDelay(ttl), c.timerFired)
}

// rearmTimerLocked re-arms the timer for an already-recorded expiry, used by
// Wake to compensate for timer drift while the process was suspended.
// Callers hold c.mu.
func (c *Coordinator) rearmTimerLocked(remaining time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.fireDelay(remaining), c.timerFired)
}

// stopTimerLocked cancels the timer and forgets the expiry. Idempotent.
// Callers hold c.mu.
func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.expiresAt = time.Time{}
}

// timerFired runs on the timer goroutine when the proactive deadline hits.
// A failed proactive refresh has already torn the session down and published
// Expired; there is nothing left to do here but log.
func (c *Coordinator) timerFired() {
	if _, err := c.refresh(c.ctx, true); err != nil {
		c.logf("session: proactive refresh failed: %v", err)
	}
}

// Wake corrects the schedule after the process was suspended or the host
// application regained focus, covering timers that were throttled or never
// fired while asleep.
//
// If the recorded expiry is within the refresh buffer (or already past), a
// refresh runs immediately and Wake blocks until it settles. Otherwise the
// timer is re-armed for the corrected remaining time. A logged-out
// coordinator ignores Wake.
func (c *Coordinator) Wake() {
	c.mu.Lock()
	if c.refreshToken == "" || c.expiresAt.IsZero() {
		c.mu.Unlock()
		return
	}

	remaining := c.expiresAt.Sub(c.clock.Now())
	if remaining > c.refreshBuffer {
		c.rearmTimerLocked(remaining)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if _, err := c.refresh(c.ctx, true); err != nil {
		c.logf("session: refresh on wake failed: %v", err)
	}
}
