package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/warden/internal/session"
)

func TestStatusTransitionsDriveMonitoring(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(statusFrame("s1", "busy"))
	c.sig.flush()

	require.True(t, c.IsMonitoring("s1"))
	status, ok := c.GetSessionStatus("s1")
	require.True(t, ok)
	require.Equal(t, session.StatusBusy, status)

	emitted := rec.bySignal(SignalSessionStatus)
	require.Len(t, emitted, 1)
	require.Equal(t, "busy", emitted[0]["status"])
	require.Equal(t, "idle", emitted[0]["previousStatus"])

	// Repeated busy keeps the same monitor.
	c.handleFrame(statusFrame("s1", "busy"))
	require.True(t, c.IsMonitoring("s1"))

	c.handleFrame(statusFrame("s1", "idle"))
	c.sig.flush()
	require.False(t, c.IsMonitoring("s1"))

	emitted = rec.bySignal(SignalSessionStatus)
	require.Len(t, emitted, 3)
	require.Equal(t, "idle", emitted[2]["status"])
	require.Equal(t, "busy", emitted[2]["previousStatus"])
}

func TestBusyStatusRecordsActivity(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, fake, _ := newTestClient(t, srv.srv.URL)

	c.handleFrame(statusFrame("s1", "busy"))
	last, ok := c.registry.LastActivity("s1")
	require.True(t, ok)
	require.Equal(t, fake.Now(), last)
}

func TestPartUpdatedEmitsDeltaAndSubagentProgress(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type": "message.part.updated",
		"properties": map[string]any{
			"delta": "chunk",
			"part": map[string]any{
				"sessionID": "s1",
				"messageID": "m1",
				"type":      "tool",
				"tool":      "bash",
				"state": map[string]any{
					"status": "running",
					"metadata": map[string]any{
						"subagent_type": "researcher",
						"description":   "scan the repo",
					},
				},
			},
		},
	})
	c.sig.flush()

	progress := rec.bySignal(SignalSubagentProgress)
	require.Len(t, progress, 1)
	require.Equal(t, "researcher", progress[0]["agent"])
	require.Equal(t, "scan the repo", progress[0]["task"])
	require.Equal(t, "running", progress[0]["status"])

	deltas := rec.bySignal(SignalMessageDelta)
	require.Len(t, deltas, 1)
	require.Equal(t, "m1", deltas[0]["messageID"])
	require.Equal(t, "chunk", deltas[0]["delta"])

	_, ok := c.registry.LastActivity("s1")
	require.True(t, ok)
}

func TestSubagentProgressFallbacks(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	// A bare tool part with no metadata falls back to documented defaults
	// (except task, which falls back to the tool name first).
	c.handleFrame(map[string]any{
		"type": "message.part.updated",
		"properties": map[string]any{
			"part": map[string]any{
				"sessionID": "s1",
				"type":      "subtask",
			},
		},
	})
	c.sig.flush()

	progress := rec.bySignal(SignalSubagentProgress)
	require.Len(t, progress, 1)
	require.Equal(t, "agent", progress[0]["agent"])
	require.Equal(t, "working", progress[0]["task"])
	require.Equal(t, "running", progress[0]["status"])
}

func TestPlainTextPartSkipsSubagentProgress(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type": "message.part.updated",
		"properties": map[string]any{
			"part": map[string]any{
				"sessionID": "s1",
				"type":      "text",
				"text":      "streamed",
			},
		},
	})
	c.sig.flush()

	require.Empty(t, rec.bySignal(SignalSubagentProgress))
	deltas := rec.bySignal(SignalMessageDelta)
	require.Len(t, deltas, 1)
	require.Equal(t, "streamed", deltas[0]["delta"])
}

func TestMessageUpdatedCompletesOnlyFinished(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type": "message.updated",
		"properties": map[string]any{
			"info": map[string]any{"id": "m1", "sessionID": "s1", "role": "assistant"},
		},
	})
	c.sig.flush()
	require.Empty(t, rec.bySignal(SignalMessageComplete))

	c.handleFrame(map[string]any{
		"type": "message.updated",
		"properties": map[string]any{
			"info": map[string]any{
				"id":        "m1",
				"sessionID": "s1",
				"role":      "assistant",
				"time":      map[string]any{"created": 100, "completed": 200},
			},
		},
	})
	c.sig.flush()

	complete := rec.bySignal(SignalMessageComplete)
	require.Len(t, complete, 1)
	require.Equal(t, "m1", complete[0]["messageID"])
}

func TestQuestionAndPermissionTouchActivity(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, fake, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type":       "question.asked",
		"properties": map[string]any{"sessionID": "s1", "requestID": "q1"},
	})
	c.sig.flush()

	require.Len(t, rec.bySignal(SignalQuestion), 1)
	last, ok := c.registry.LastActivity("s1")
	require.True(t, ok)
	require.Equal(t, fake.Now(), last)

	fake.Advance(1)
	c.handleFrame(map[string]any{
		"type":       "permission.asked",
		"properties": map[string]any{"sessionID": "s1", "permissionID": "p1"},
	})
	c.sig.flush()

	require.Len(t, rec.bySignal(SignalPermission), 1)
	last, _ = c.registry.LastActivity("s1")
	require.Equal(t, fake.Now(), last)
}

func TestAuthSessionErrorEmitsBothSignals(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type": "session.error",
		"properties": map[string]any{
			"sessionID": "s1",
			"error":     map[string]any{"name": "ProviderAuthError", "statusCode": 401},
		},
	})
	c.sig.flush()

	require.Len(t, rec.bySignal(SignalSessionErrorAuth), 1)
	require.Len(t, rec.bySignal(SignalSessionError), 1)
}

func TestGenericSessionErrorSkipsAuthSignal(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type": "session.error",
		"properties": map[string]any{
			"sessionID": "s1",
			"error":     map[string]any{"name": "InternalError", "statusCode": 500},
		},
	})
	c.sig.flush()

	require.Empty(t, rec.bySignal(SignalSessionErrorAuth))
	require.Len(t, rec.bySignal(SignalSessionError), 1)
}

func TestUnknownFrameTypePassesThrough(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{
		"type":       "installation.updated",
		"properties": map[string]any{"version": "1.2.3"},
	})
	c.sig.flush()

	passthrough := rec.bySignal(Signal("installation.updated"))
	require.Len(t, passthrough, 1)
	props, ok := passthrough[0]["properties"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "1.2.3", props["version"])
}

func TestEveryFrameEmitsRawEvent(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(statusFrame("s1", "busy"))
	c.handleFrame(map[string]any{"type": "server.heartbeat", "properties": map[string]any{}})
	c.sig.flush()

	raw := rec.bySignal(SignalRawEvent)
	require.Len(t, raw, 2)
	require.Equal(t, "session.status", raw[0]["type"])
	require.Equal(t, "s1", raw[0]["sessionID"])
	require.Equal(t, "server.heartbeat", raw[1]["type"])
}
