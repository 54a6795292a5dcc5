package client

import (
	"sync"

	"github.com/bhandras/warden/internal/dispatch"
)

// Signal names the events emitted to consumers (the relay collaborator).
type Signal string

const (
	SignalConnected           Signal = "connected"
	SignalDisconnected        Signal = "disconnected"
	SignalError               Signal = "error"
	SignalRawEvent            Signal = "raw.event"
	SignalSessionStatus       Signal = "session.status"
	SignalModelSwitched       Signal = "session.model_switched"
	SignalRetryingAlternative Signal = "session.retrying_alternative"
	SignalMessageDelta        Signal = "message.delta"
	SignalSubagentProgress    Signal = "subagent.progress"
	SignalMessageComplete     Signal = "message.complete"
	SignalQuestion            Signal = "question"
	SignalPermission          Signal = "permission"
	SignalSessionError        Signal = "session.error"
	SignalSessionErrorAuth    Signal = "session.error.auth"
	SignalSessionDiff         Signal = "session.diff"
	SignalSessionUpdated      Signal = "session.updated"
	SignalSessionLiveness     Signal = "session.liveness"
	SignalRetryStart          Signal = "session.retry.start"
	SignalRetrySuccess        Signal = "session.retry.success"
	SignalRetryFailed         Signal = "session.retry.failed"
	SignalSyncComplete        Signal = "session.sync.complete"
)

// Handler receives one emitted signal payload.
type Handler func(payload map[string]any)

// AnyHandler receives every emitted signal.
type AnyHandler func(signal Signal, payload map[string]any)

// emitter fans signals out to registered handlers.
//
// Handlers run on a dedicated callbacks queue so a slow consumer cannot stall
// event processing; within the queue, delivery order matches emission order.
type emitter struct {
	mu       sync.RWMutex
	handlers map[Signal][]Handler
	any      []AnyHandler
	queue    *dispatch.Queue
}

func newEmitter(queueSize int) *emitter {
	return &emitter{
		handlers: make(map[Signal][]Handler),
		queue:    dispatch.New(queueSize),
	}
}

func (e *emitter) on(signal Signal, handler Handler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[signal] = append(e.handlers[signal], handler)
}

func (e *emitter) onAny(handler AnyHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.any = append(e.any, handler)
}

func (e *emitter) emit(signal Signal, payload map[string]any) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers[signal]))
	copy(handlers, e.handlers[signal])
	anyHandlers := make([]AnyHandler, len(e.any))
	copy(anyHandlers, e.any)
	e.mu.RUnlock()

	if len(handlers) == 0 && len(anyHandlers) == 0 {
		return
	}
	_ = e.queue.Do(func() {
		for _, h := range handlers {
			h(payload)
		}
		for _, h := range anyHandlers {
			h(signal, payload)
		}
	})
}

// flush blocks until every previously emitted signal has been delivered.
func (e *emitter) flush() {
	_ = e.queue.Barrier()
}

func (e *emitter) close() {
	e.queue.Close()
}
