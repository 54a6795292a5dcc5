package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bhandras/warden/internal/api"
	"github.com/bhandras/warden/internal/logger"
	"github.com/bhandras/warden/internal/session"
)

// ErrNoPendingPrompt is reported when recovery finds nothing to resend.
var ErrNoPendingPrompt = errors.New("no pending prompt to resend")

// maybeFailover switches the session's model binding to the secondary when
// one is configured and structurally distinct from the current model, then
// kicks off recovery. It is the status-driven recovery entry point; the
// attempt counter is left untouched.
func (c *Client) maybeFailover(sessionID, reason string) {
	model, switched := c.registry.SwitchToSecondary(sessionID)
	if !switched {
		return
	}
	logger.Infof("session %s: switching to secondary model %s/%s (reason: %s)",
		sessionID, model.ProviderID, model.ModelID, reason)
	c.sig.emit(SignalModelSwitched, map[string]any{
		"sessionID": sessionID,
		"model":     model,
		"reason":    reason,
	})
	c.sig.emit(SignalRetryingAlternative, map[string]any{
		"sessionID": sessionID,
		"model":     model,
		"reason":    reason,
	})
	go c.recover(sessionID, reason, false)
}

// recover runs the shared recovery protocol for both the timeout and the
// status-driven failover paths: abort, settle, resend the pending prompt
// using the session's current model binding.
//
// countAttempt distinguishes the timeout path (which increments the
// consecutive-retry counter) from the status path (which leaves it alone).
func (c *Client) recover(sessionID, reason string, countAttempt bool) {
	c.stopMonitoring(sessionID)

	attempt := c.registry.Attempts(sessionID)
	if countAttempt {
		attempt = c.registry.IncrementAttempts(sessionID)
	}
	c.sig.emit(SignalRetryStart, map[string]any{
		"sessionID":     sessionID,
		"reason":        reason,
		"attemptNumber": attempt,
	})

	ctx := context.Background()
	if err := c.api.AbortSession(ctx, sessionID); err != nil {
		// The operation may already have stopped; abort failure is tolerated.
		logger.Warnf("session %s: abort before retry failed: %v", sessionID, err)
	}

	settle := c.cfg.RetrySettleDelay
	if !countAttempt {
		settle = c.cfg.FailoverSettleDelay
	}
	time.Sleep(settle)

	prompt, ok := c.registry.Prompt(sessionID)
	if !ok {
		c.failRetry(sessionID, ErrNoPendingPrompt)
		return
	}

	req := api.SendMessageRequest{
		MessageID: uuid.NewString(),
		Parts:     []api.TextPart{{Type: "text", Text: prompt.Text}},
		Agent:     prompt.Agent,
		System:    prompt.System,
	}
	// The original explicit model override is dropped on purpose: the resend
	// must use the current binding so a failover takes effect.
	if current, ok := c.registry.CurrentModel(sessionID); ok {
		req.Model = &current
	}

	if err := c.api.SendMessage(ctx, sessionID, req); err != nil {
		c.failRetry(sessionID, err)
		return
	}

	c.registry.ResetAttempts(sessionID)
	c.sig.emit(SignalRetrySuccess, map[string]any{
		"sessionID": sessionID,
		"reason":    reason,
	})
}

// failRetry surfaces a failed recovery and forces the session into error
// status, which is terminal until fresh input arrives.
func (c *Client) failRetry(sessionID string, err error) {
	logger.Errorf("session %s: retry failed: %v", sessionID, err)
	c.registry.SetStatus(sessionID, session.StatusError)
	c.sig.emit(SignalRetryFailed, map[string]any{
		"sessionID": sessionID,
		"error":     err.Error(),
	})
}
