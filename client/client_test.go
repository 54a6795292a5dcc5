package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/warden/internal/api"
	"github.com/bhandras/warden/internal/clock"
)

// recorded is one signal captured by the test recorder.
type recorded struct {
	signal  Signal
	payload map[string]any
}

// recorder captures every emitted signal for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) record(signal Signal, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{signal: signal, payload: payload})
}

func (r *recorder) snapshot() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recorded, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) bySignal(signal Signal) []map[string]any {
	var out []map[string]any
	for _, e := range r.snapshot() {
		if e.signal == signal {
			out = append(out, e.payload)
		}
	}
	return out
}

// wait blocks until at least one instance of the signal has been delivered,
// returning its payload.
func (r *recorder) wait(t *testing.T, signal Signal) map[string]any {
	t.Helper()
	var got map[string]any
	require.Eventually(t, func() bool {
		for _, e := range r.snapshot() {
			if e.signal == signal {
				got = e.payload
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond, "signal %s never delivered", signal)
	return got
}

// fakeServer is a minimal REST backend capturing aborts and sends.
type fakeServer struct {
	mu        sync.Mutex
	aborts    int
	sends     []api.SendMessageRequest
	failSend  bool
	failAbort bool

	srv *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/abort"):
			f.mu.Lock()
			f.aborts++
			fail := f.failAbort
			f.mu.Unlock()
			if fail {
				http.Error(w, "abort failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/message") && r.Method == http.MethodPost:
			var req api.SendMessageRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.mu.Lock()
			f.sends = append(f.sends, req)
			fail := f.failSend
			f.mu.Unlock()
			if fail {
				http.Error(w, "send failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) sentRequests() []api.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.SendMessageRequest, len(f.sends))
	copy(out, f.sends)
	return out
}

func (f *fakeServer) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

// newTestClient builds a Client on a deterministic clock with settle delays
// short enough for tests. The liveness interval is huge so ticks only happen
// when a test invokes checkLiveness directly.
func newTestClient(t *testing.T, baseURL string) (*Client, *clock.Fake, *recorder) {
	t.Helper()
	c, err := New(Config{
		BaseURL:             baseURL,
		CheckInterval:       time.Hour,
		RetrySettleDelay:    5 * time.Millisecond,
		FailoverSettleDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	fake := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	c.clock = fake

	rec := &recorder{}
	c.OnAny(rec.record)
	return c, fake, rec
}

func statusFrame(sessionID, status string) map[string]any {
	return map[string]any{
		"type": "session.status",
		"properties": map[string]any{
			"sessionID": sessionID,
			"status":    status,
		},
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestHeartbeatFramesUpdateLastHeartbeat(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, fake, _ := newTestClient(t, srv.srv.URL)
	require.True(t, c.LastHeartbeat().IsZero())

	c.handleFrame(map[string]any{"type": "server.heartbeat", "properties": map[string]any{}})
	require.Equal(t, fake.Now(), c.LastHeartbeat())
}

func TestMalformedFrameIsDropped(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, rec := newTestClient(t, srv.srv.URL)

	c.handleFrame(map[string]any{"properties": map[string]any{"sessionID": "s1"}})
	c.sig.flush()

	require.Empty(t, rec.snapshot())
	require.Empty(t, c.RawEvents())
}

func TestRawEventsBoundedLog(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, _ := newTestClient(t, srv.srv.URL)

	for i := 0; i < 5; i++ {
		c.handleFrame(map[string]any{"type": "server.heartbeat", "properties": map[string]any{}})
	}
	require.Len(t, c.RawEvents(), 5)
}

func TestSendMessageRecordsPendingPrompt(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c, _, _ := newTestClient(t, srv.srv.URL)

	primary := api.ModelRef{ProviderID: "anthropic", ModelID: "sonnet"}
	c.ConfigureSessionModels("s1", primary, nil)

	err := c.SendMessage(context.Background(), "s1", "do the thing", SendOptions{Agent: "build"})
	require.NoError(t, err)

	sent := srv.sentRequests()
	require.Len(t, sent, 1)
	require.NotEmpty(t, sent[0].MessageID)
	require.Equal(t, "do the thing", sent[0].Parts[0].Text)
	require.Equal(t, "build", sent[0].Agent)
	// No explicit override: the current binding is applied.
	require.NotNil(t, sent[0].Model)
	require.Equal(t, primary, *sent[0].Model)

	prompt, ok := c.registry.Prompt("s1")
	require.True(t, ok)
	require.Equal(t, "do the thing", prompt.Text)
	require.Equal(t, "build", prompt.Agent)
}

func TestSendMessageFailureLeavesNoPrompt(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	srv.failSend = true
	c, _, _ := newTestClient(t, srv.srv.URL)

	err := c.SendMessage(context.Background(), "s1", "hello", SendOptions{})
	require.Error(t, err)
	_, ok := c.registry.Prompt("s1")
	require.False(t, ok)
}
