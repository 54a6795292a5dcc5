// Package dispatch provides a serialized work queue backed by a single
// goroutine.
//
// All state-changing work submitted to a Queue runs to completion before the
// next item is processed, so callers that funnel every mutation through one
// Queue get a single-threaded execution model without explicit locking.
package dispatch

import (
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed Queue.
var ErrClosed = errors.New("dispatch queue closed")

type callResult struct {
	value interface{}
	err   error
}

// Queue serializes submitted functions onto a single goroutine.
type Queue struct {
	q         chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Queue with the given mailbox size and starts its goroutine.
func New(queueSize int) *Queue {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Queue{
		q:    make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Queue) loop() {
	for {
		select {
		case <-d.done:
			return
		case fn := <-d.q:
			if fn != nil {
				fn()
			}
		}
	}
}

// Do submits fn for asynchronous execution.
func (d *Queue) Do(fn func()) error {
	if d == nil {
		return errors.New("dispatch queue not initialized")
	}
	if fn == nil {
		return nil
	}
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	select {
	case d.q <- fn:
		return nil
	case <-d.done:
		return ErrClosed
	}
}

// Call submits fn and waits for its result.
func (d *Queue) Call(fn func() (interface{}, error)) (interface{}, error) {
	if d == nil {
		return nil, errors.New("dispatch queue not initialized")
	}
	if fn == nil {
		return nil, nil
	}
	resCh := make(chan callResult, 1)
	err := d.Do(func() {
		value, err := fn()
		resCh <- callResult{value: value, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case res := <-resCh:
		return res.value, res.err
	case <-d.done:
		return nil, ErrClosed
	}
}

// Barrier blocks until all work submitted before it has completed.
func (d *Queue) Barrier() error {
	_, err := d.Call(func() (interface{}, error) { return nil, nil })
	return err
}

// Close stops the queue goroutine. Pending work may be dropped.
func (d *Queue) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}
