package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSessionIDPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		props map[string]any
		want  string
	}{
		{
			name:  "topLevel",
			props: map[string]any{"sessionID": "s1"},
			want:  "s1",
		},
		{
			name: "topLevelWinsOverNested",
			props: map[string]any{
				"sessionID": "s1",
				"info":      map[string]any{"sessionID": "s2"},
				"part":      map[string]any{"sessionID": "s3"},
			},
			want: "s1",
		},
		{
			name: "infoBeforePart",
			props: map[string]any{
				"info": map[string]any{"sessionID": "s2"},
				"part": map[string]any{"sessionID": "s3"},
			},
			want: "s2",
		},
		{
			name:  "partOnly",
			props: map[string]any{"part": map[string]any{"sessionID": "s3"}},
			want:  "s3",
		},
		{
			name:  "none",
			props: map[string]any{"other": "x"},
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := Decode(map[string]any{"type": "session.updated", "properties": tt.props})
			require.NoError(t, err)
			require.Equal(t, tt.want, ev.SessionID)
		})
	}
}

func TestDecodeWrappedPayload(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
		"directory": "/work/project",
		"payload": map[string]any{
			"type":       "session.status",
			"properties": map[string]any{"sessionID": "s1", "status": "busy"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, EventSessionStatus, ev.Type)
	require.Equal(t, "s1", ev.SessionID)
	require.NotNil(t, ev.Status)
	require.Equal(t, "busy", ev.Status.Status)
}

func TestDecodeStatusObjectForm(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
		"type": "session.status",
		"properties": map[string]any{
			"sessionID": "s1",
			"status":    map[string]any{"type": "retry", "detail": "rate-limit"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, ev.Status)
	require.Equal(t, "retry", ev.Status.Status)
	require.Equal(t, ev.Properties, ev.Status.Details)
}

func TestDecodePartAndDelta(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
		"type": "message.part.updated",
		"properties": map[string]any{
			"delta": "hel",
			"part": map[string]any{
				"id":        "p1",
				"sessionID": "s1",
				"messageID": "m1",
				"type":      "tool",
				"tool":      "bash",
				"text":      "hello",
				"state": map[string]any{
					"status": "running",
					"metadata": map[string]any{
						"subagent_type": "researcher",
					},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "s1", ev.SessionID)
	require.Equal(t, "hel", ev.Delta)
	require.NotNil(t, ev.Part)
	require.Equal(t, "bash", ev.Part.Tool)
	require.True(t, ev.Part.IsToolUnit())
	require.Equal(t, "researcher", ev.Part.State.Metadata["subagent_type"])
}

func TestDecodeDeltaFallsBackToPartText(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
		"type": "message.part.updated",
		"properties": map[string]any{
			"part": map[string]any{
				"sessionID": "s1",
				"type":      "text",
				"text":      "streamed",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "streamed", ev.Delta)
	require.False(t, ev.Part.IsToolUnit())
}

func TestDecodeMessageInfoFinished(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
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
	require.NoError(t, err)
	require.NotNil(t, ev.Info)
	require.Equal(t, "assistant", ev.Info.Role)
	require.True(t, ev.Info.Finished())

	ev, err = Decode(map[string]any{
		"type": "message.updated",
		"properties": map[string]any{
			"info": map[string]any{"id": "m2", "sessionID": "s1", "role": "assistant"},
		},
	})
	require.NoError(t, err)
	require.False(t, ev.Info.Finished())
}

func TestDecodeErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		errObj   map[string]any
		wantAuth bool
	}{
		{
			name:     "statusCode401",
			errObj:   map[string]any{"name": "APIError", "statusCode": 401},
			wantAuth: true,
		},
		{
			name:     "nestedStatusCode",
			errObj:   map[string]any{"name": "APIError", "data": map[string]any{"statusCode": 401}},
			wantAuth: true,
		},
		{
			name:     "authName",
			errObj:   map[string]any{"name": "ProviderAuthError"},
			wantAuth: true,
		},
		{
			name:     "generic",
			errObj:   map[string]any{"name": "InternalError", "statusCode": 500},
			wantAuth: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := Decode(map[string]any{
				"type":       "session.error",
				"properties": map[string]any{"sessionID": "s1", "error": tt.errObj},
			})
			require.NoError(t, err)
			require.NotNil(t, ev.Error)
			require.Equal(t, tt.wantAuth, ev.Error.IsAuth())
		})
	}
}

func TestDecodeUnknownTypePassesThrough(t *testing.T) {
	t.Parallel()

	ev, err := Decode(map[string]any{
		"type":       "installation.updated",
		"properties": map[string]any{"version": "1.2.3"},
	})
	require.NoError(t, err)
	require.False(t, ev.Known())
	require.Equal(t, EventType("installation.updated"), ev.Type)
	require.Equal(t, "1.2.3", ev.Properties["version"])
}

func TestDecodeMalformedFrames(t *testing.T) {
	t.Parallel()

	_, err := Decode(map[string]any{"properties": map[string]any{}})
	require.Error(t, err)

	_, err = Decode(make(chan int))
	require.Error(t, err)
}
