package client

import (
	"time"

	"github.com/bhandras/warden/internal/logger"
	"github.com/bhandras/warden/internal/session"
)

// startMonitoring begins periodic liveness checks for a session.
//
// Starting is idempotent: any previous timer for the session is stopped first,
// so there is never more than one per session. Ticks run on the event queue,
// keeping liveness evaluation serialized with inbound frames.
func (c *Client) startMonitoring(sessionID string) {
	stop := c.registry.StartMonitor(sessionID)
	interval := c.cfg.CheckInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.events.Do(func() { c.checkLiveness(sessionID) }); err != nil {
					return
				}
			}
		}
	}()
}

// stopMonitoring cancels the session's liveness timer if one is active.
func (c *Client) stopMonitoring(sessionID string) {
	c.registry.StopMonitor(sessionID)
}

// IsMonitoring reports whether liveness monitoring is active for a session.
func (c *Client) IsMonitoring(sessionID string) bool {
	return c.registry.Monitoring(sessionID)
}

// checkLiveness evaluates one liveness tick. It runs on the event queue.
func (c *Client) checkLiveness(sessionID string) {
	// The status may have moved on between the tick firing and this running;
	// a monitor for a non-busy session stops itself.
	status, ok := c.registry.Status(sessionID)
	if !ok || status != session.StatusBusy {
		c.stopMonitoring(sessionID)
		return
	}
	if !c.registry.Monitoring(sessionID) {
		// Stale tick from a timer stopped after enqueueing.
		return
	}

	last, ok := c.registry.LastActivity(sessionID)
	if !ok {
		// Busy always records activity, but guard against a missed update.
		c.registry.TouchActivity(sessionID, c.clock.Now())
		return
	}

	elapsed := c.clock.Now().Sub(last)
	stale := elapsed >= c.cfg.SessionTimeout

	c.sig.emit(SignalSessionLiveness, map[string]any{
		"sessionID":             sessionID,
		"secondsSinceLastEvent": int(elapsed / time.Second),
		"isStale":               stale,
	})

	if stale {
		logger.Warnf("session %s stale after %s, starting timeout retry", sessionID, elapsed)
		// Stop first: monitoring stays suspended during the in-flight retry so
		// duplicate retries cannot fire.
		c.stopMonitoring(sessionID)
		go c.recover(sessionID, "timeout", true)
	}
}

// PauseLivenessMonitoring unconditionally stops the session's liveness timer.
// Use it when a long silence is expected (e.g. the agent is waiting on a
// human answer).
func (c *Client) PauseLivenessMonitoring(sessionID string) {
	c.stopMonitoring(sessionID)
}

// ResumeLivenessMonitoring restarts monitoring for a still-busy session,
// resetting the staleness countdown to zero. Calling it on a non-busy session
// is a no-op.
func (c *Client) ResumeLivenessMonitoring(sessionID string) {
	status, ok := c.registry.Status(sessionID)
	if !ok || status != session.StatusBusy {
		return
	}
	c.registry.ResetActivity(sessionID, c.clock.Now())
	c.startMonitoring(sessionID)
}
