package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bhandras/warden/internal/api"
	"github.com/bhandras/warden/internal/logger"
	"github.com/bhandras/warden/internal/session"
)

const (
	// rehydrateWindow bounds how far back message replay reaches.
	rehydrateWindow = 12 * time.Hour
	// rehydrateMaxMessages caps the number of replayed messages.
	rehydrateMaxMessages = 200
	// rehydrateMaxDiffs caps the number of replayed diffs.
	rehydrateMaxDiffs = 200
	// historyFetchLimit asks the server for a generous page; bounding happens
	// client-side where the time filter lives.
	historyFetchLimit = 1000
)

// SyncSessionHistory rehydrates bounded historical state for a session
// through the live signal surface, tagging every replayed event with
// historical=true and concluding with a session.sync.complete signal carrying
// total vs. rehydrated counts.
//
// The three fetches (metadata, messages, diffs) run concurrently and are
// independently fault-tolerant: a failed fetch yields an empty result for
// that piece without aborting the others.
func (c *Client) SyncSessionHistory(ctx context.Context, sessionID string) error {
	var (
		wg   sync.WaitGroup
		sess *api.Session
		msgs []api.Message
		difs []api.Diff
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		s, err := c.api.GetSession(ctx, sessionID)
		if err != nil {
			logger.Warnf("history sync %s: session fetch failed: %v", sessionID, err)
			return
		}
		sess = s
	}()
	go func() {
		defer wg.Done()
		m, err := c.api.GetMessages(ctx, sessionID, historyFetchLimit)
		if err != nil {
			logger.Warnf("history sync %s: message fetch failed: %v", sessionID, err)
			return
		}
		msgs = m
	}()
	go func() {
		defer wg.Done()
		d, err := c.api.GetDiffs(ctx, sessionID)
		if err != nil {
			logger.Warnf("history sync %s: diff fetch failed: %v", sessionID, err)
			return
		}
		difs = d
	}()
	wg.Wait()

	// Replay is not live activity: the session is (re)seeded idle.
	if sess != nil {
		c.registry.Seed(sessionID, sess.Title, sess.Directory)
		if sess.Model != nil {
			c.registry.SeedModel(sessionID, *sess.Model)
		}
	}
	c.registry.SetStatus(sessionID, session.StatusIdle)

	totalMessages := len(msgs)
	totalDiffs := len(difs)

	retained := boundMessages(msgs, c.clock.Now())
	if len(difs) > rehydrateMaxDiffs {
		difs = difs[len(difs)-rehydrateMaxDiffs:]
	}

	for _, d := range difs {
		c.sig.emit(SignalSessionDiff, map[string]any{
			"sessionID":  sessionID,
			"diff":       d,
			"historical": true,
		})
	}

	for _, msg := range retained {
		for i := range msg.Parts {
			part := msg.Parts[i]
			c.sig.emit(SignalMessageDelta, map[string]any{
				"sessionID":  sessionID,
				"messageID":  msg.Info.ID,
				"delta":      part.Text,
				"part":       &part,
				"historical": true,
			})
		}
		// Completion carries the full parts array so consumers need not
		// re-fetch; only genuinely finished messages complete.
		if msg.Info.Finished() {
			c.sig.emit(SignalMessageComplete, map[string]any{
				"sessionID":  sessionID,
				"messageID":  msg.Info.ID,
				"info":       &msg.Info,
				"parts":      msg.Parts,
				"historical": true,
			})
		}
	}

	c.sig.emit(SignalSyncComplete, map[string]any{
		"sessionID":          sessionID,
		"totalMessages":      totalMessages,
		"rehydratedMessages": len(retained),
		"totalDiffs":         totalDiffs,
		"rehydratedDiffs":    len(difs),
	})
	return nil
}

// boundMessages sorts messages chronologically, keeps those created within
// the rehydration window, and truncates to the most recent
// rehydrateMaxMessages.
func boundMessages(msgs []api.Message, now time.Time) []api.Message {
	sorted := make([]api.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Info.Time.Created < sorted[j].Info.Time.Created
	})

	cutoff := now.Add(-rehydrateWindow).UnixMilli()
	recent := sorted[:0]
	for _, m := range sorted {
		if m.Info.Time.Created >= cutoff {
			recent = append(recent, m)
		}
	}
	if len(recent) > rehydrateMaxMessages {
		recent = recent[len(recent)-rehydrateMaxMessages:]
	}
	return recent
}
