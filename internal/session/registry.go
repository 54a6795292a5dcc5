// Package session owns all per-session client state.
//
// Every piece of mutable state keyed by session id (status, activity, model
// binding, pending prompt, retry attempts, liveness timer handle) lives in one
// Record inside the Registry. Records are created lazily on first reference
// and removed only by an explicit Remove call from the embedding application;
// the registry itself never decides when a session is finished.
package session

import (
	"sync"
	"time"

	"github.com/bhandras/warden/internal/api"
)

// Status is the tracked state of one session.
type Status string

const (
	StatusIdle  Status = "idle"
	StatusBusy  Status = "busy"
	StatusRetry Status = "retry"
	StatusError Status = "error"
)

// ModelBinding tracks the model configuration of a session.
//
// Current starts equal to Primary and is switched to Secondary by failover
// when a structurally distinct secondary exists.
type ModelBinding struct {
	Primary   api.ModelRef
	Secondary *api.ModelRef
	Current   api.ModelRef
}

// PendingPrompt is the most recently sent user prompt plus its send options.
//
// It is overwritten on every successful send and never cleared, so repeated
// timeouts resend the same prompt.
type PendingPrompt struct {
	Text   string
	Agent  string
	Model  *api.ModelRef
	System string
}

// Record is the per-session state owned by the registry.
type Record struct {
	ID        string
	Title     string
	Directory string

	Status       Status
	LastActivity time.Time

	Binding  *ModelBinding
	Prompt   *PendingPrompt
	Attempts int

	// monitorStop is the liveness timer handle. Non-nil means monitoring is
	// active; there is never more than one per session.
	monitorStop chan struct{}
}

// Registry holds one Record per session id behind a single mutex.
//
// Accessors are safe to call from any goroutine; they copy values out rather
// than exposing internal pointers.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// record returns the record for id, creating it lazily. Callers must hold mu.
func (r *Registry) record(id string) *Record {
	rec, ok := r.records[id]
	if !ok {
		rec = &Record{ID: id, Status: StatusIdle}
		r.records[id] = rec
	}
	return rec
}

// SetStatus overwrites the tracked status and returns the previous value.
func (r *Registry) SetStatus(id string, status Status) (previous Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	previous = rec.Status
	rec.Status = status
	return previous
}

// Status returns the tracked status. ok is false if the session has never
// been referenced.
func (r *Registry) Status(id string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return "", false
	}
	return rec.Status, true
}

// TouchActivity records AI-originated activity at t. Activity never moves
// backwards except through ResetActivity.
func (r *Registry) TouchActivity(id string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	if t.After(rec.LastActivity) {
		rec.LastActivity = t
	}
}

// ResetActivity unconditionally sets the activity timestamp to t. Used when
// resuming liveness monitoring so the staleness countdown restarts fresh.
func (r *Registry) ResetActivity(id string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(id).LastActivity = t
}

// LastActivity returns the last recorded activity time. ok is false when no
// activity has ever been recorded.
func (r *Registry) LastActivity(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.LastActivity.IsZero() {
		return time.Time{}, false
	}
	return rec.LastActivity, true
}

// ConfigureModels installs a model binding with Current reset to primary.
func (r *Registry) ConfigureModels(id string, primary api.ModelRef, secondary *api.ModelRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	binding := &ModelBinding{Primary: primary, Current: primary}
	if secondary != nil {
		s := *secondary
		binding.Secondary = &s
	}
	rec.Binding = binding
}

// SeedModel installs a primary-only binding when the session has none yet.
// Used during history rehydration so replay never clobbers live bindings.
func (r *Registry) SeedModel(id string, primary api.ModelRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	if rec.Binding == nil {
		rec.Binding = &ModelBinding{Primary: primary, Current: primary}
	}
}

// Binding returns a copy of the session's model binding.
func (r *Registry) Binding(id string) (ModelBinding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Binding == nil {
		return ModelBinding{}, false
	}
	out := *rec.Binding
	if rec.Binding.Secondary != nil {
		s := *rec.Binding.Secondary
		out.Secondary = &s
	}
	return out, true
}

// SwitchToSecondary flips Current to the secondary model when a secondary
// exists and differs structurally from Current. Returns the new Current and
// whether a switch happened.
func (r *Registry) SwitchToSecondary(id string) (api.ModelRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Binding == nil || rec.Binding.Secondary == nil {
		return api.ModelRef{}, false
	}
	if *rec.Binding.Secondary == rec.Binding.Current {
		return api.ModelRef{}, false
	}
	rec.Binding.Current = *rec.Binding.Secondary
	return rec.Binding.Current, true
}

// CurrentModel returns the session's currently bound model.
func (r *Registry) CurrentModel(id string) (api.ModelRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Binding == nil {
		return api.ModelRef{}, false
	}
	return rec.Binding.Current, true
}

// SetPrompt overwrites the pending prompt.
func (r *Registry) SetPrompt(id string, prompt PendingPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := prompt
	if prompt.Model != nil {
		m := *prompt.Model
		p.Model = &m
	}
	r.record(id).Prompt = &p
}

// Prompt returns a copy of the pending prompt.
func (r *Registry) Prompt(id string) (PendingPrompt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Prompt == nil {
		return PendingPrompt{}, false
	}
	out := *rec.Prompt
	if rec.Prompt.Model != nil {
		m := *rec.Prompt.Model
		out.Model = &m
	}
	return out, true
}

// IncrementAttempts bumps the consecutive retry counter and returns the new
// value.
func (r *Registry) IncrementAttempts(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	rec.Attempts++
	return rec.Attempts
}

// ResetAttempts zeroes the retry counter.
func (r *Registry) ResetAttempts(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.Attempts = 0
	}
}

// Attempts returns the current retry counter.
func (r *Registry) Attempts(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return 0
	}
	return rec.Attempts
}

// Seed installs baseline session metadata without touching runtime state.
func (r *Registry) Seed(id, title, directory string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	if title != "" {
		rec.Title = title
	}
	if directory != "" {
		rec.Directory = directory
	}
}

// StartMonitor installs a fresh liveness timer handle, stopping any existing
// one first so there is never more than one per session. The returned channel
// closes when the monitor must stop.
func (r *Registry) StartMonitor(id string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(id)
	if rec.monitorStop != nil {
		close(rec.monitorStop)
	}
	rec.monitorStop = make(chan struct{})
	return rec.monitorStop
}

// StopMonitor stops the session's liveness timer if one is active.
func (r *Registry) StopMonitor(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.monitorStop == nil {
		return false
	}
	close(rec.monitorStop)
	rec.monitorStop = nil
	return true
}

// Monitoring reports whether a liveness timer is active for the session.
func (r *Registry) Monitoring(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return ok && rec.monitorStop != nil
}

// StopAllMonitors stops every active liveness timer.
func (r *Registry) StopAllMonitors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.monitorStop != nil {
			close(rec.monitorStop)
			rec.monitorStop = nil
		}
	}
}

// Remove tears down all state for a session, stopping its monitor. The
// embedding application calls this when it knows a session is finished.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	if rec.monitorStop != nil {
		close(rec.monitorStop)
		rec.monitorStop = nil
	}
	delete(r.records, id)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
