// Package mem implements a scripted in-memory engine for tests and
// examples. Transfers complete from timer goroutines, so completion
// callbacks genuinely arrive on threads the caller does not control —
// the same shape as a hardware-backed engine.
package mem

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/pkg"
)

// Script describes how the engine completes transfers on one endpoint.
type Script struct {
	// Data is copied into the transfer's data phase on successful
	// completion of an IN endpoint.
	Data []byte

	// Latency is the simulated transfer duration.
	Latency time.Duration

	// Status is the terminal status. The zero value is
	// hal.StatusCompleted.
	Status int32
}

// Engine is a scripted hal.Engine. Endpoints without a script complete
// immediately with success and an empty data phase.
type Engine struct {
	mu       sync.Mutex
	scripts  map[uint8]Script
	inflight map[*hal.TransferDescriptor]*time.Timer
	wake     chan struct{}
	closed   bool
}

// New creates an idle engine with no scripts.
func New() *Engine {
	return &Engine{
		scripts:  make(map[uint8]Script),
		inflight: make(map[*hal.TransferDescriptor]*time.Timer),
		wake:     make(chan struct{}, 64),
	}
}

// Script installs the completion script for an endpoint.
func (e *Engine) Script(endpoint uint8, s Script) {
	e.mu.Lock()
	e.scripts[endpoint] = s
	e.mu.Unlock()
}

// AllocTransfer allocates a transfer descriptor.
func (e *Engine) AllocTransfer() (*hal.TransferDescriptor, error) {
	return &hal.TransferDescriptor{Status: hal.StatusPending}, nil
}

// FreeTransfer releases a descriptor. Descriptors are garbage
// collected; this only exists to satisfy the engine contract.
func (e *Engine) FreeTransfer(td *hal.TransferDescriptor) {}

// Submit schedules the descriptor for completion per its endpoint's
// script. If the script's latency exceeds the descriptor timeout, the
// transfer completes with hal.StatusTimedOut at the timeout instead.
func (e *Engine) Submit(td *hal.TransferDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return pkg.ErrNoDevice
	}
	if _, ok := e.inflight[td]; ok {
		return pkg.ErrBusy
	}

	script := e.scripts[td.Endpoint]
	status := script.Status
	delay := script.Latency

	if timeout := time.Duration(td.Timeout) * time.Millisecond; timeout > 0 && delay > timeout {
		status = hal.StatusTimedOut
		delay = timeout
	}

	e.inflight[td] = time.AfterFunc(delay, func() {
		e.complete(td, status, script.Data)
	})
	return nil
}

// Cancel requests cancellation. A descriptor that already completed is
// left alone; its completion is still delivered through the callback
// path. Cancel never fails on this engine.
func (e *Engine) Cancel(td *hal.TransferDescriptor) error {
	e.mu.Lock()
	timer, ok := e.inflight[td]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	timer.Stop()
	// Completion runs off this thread like a real unwind would. The
	// inflight check in complete keeps exactly one completion per
	// submission even if the timer raced and fired.
	go e.complete(td, hal.StatusCancelled, nil)
	return nil
}

// complete finalizes a descriptor and delivers its callback. The first
// caller to claim the inflight entry wins; later callers are no-ops.
func (e *Engine) complete(td *hal.TransferDescriptor, status int32, data []byte) {
	e.mu.Lock()
	if _, ok := e.inflight[td]; !ok {
		e.mu.Unlock()
		return
	}
	delete(e.inflight, td)
	e.mu.Unlock()

	offset := 0
	if td.Type == hal.TransferControl {
		offset = hal.SetupPacketSize
	}

	td.ActualLength = 0
	if status == hal.StatusCompleted {
		if td.Endpoint&0x80 != 0 {
			td.ActualLength = int32(copy(td.Buffer[offset:], data))
		} else {
			td.ActualLength = int32(len(td.Buffer) - offset)
		}
	}
	td.Status = status

	if td.Callback != nil {
		td.Callback(td)
	}
	select {
	case e.wake <- struct{}{}:
	default:
		// A wake token is already queued; the waiter cannot miss this
		// event.
	}
}

// ProcessEvents blocks until a completion has been delivered since
// completed was last cleared. It returns promptly if the flag is
// already set, and may return early on a wake left over from an event
// the caller already consumed.
func (e *Engine) ProcessEvents(ctx context.Context, completed *atomic.Int32) error {
	if completed.Load() != 0 {
		return nil
	}
	select {
	case <-e.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the engine closed and unwinds anything still in flight
// with hal.StatusNoDevice. Pending completions are still delivered
// through the callback path.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pending := make([]*hal.TransferDescriptor, 0, len(e.inflight))
	for td, timer := range e.inflight {
		timer.Stop()
		pending = append(pending, td)
	}
	e.mu.Unlock()

	for _, td := range pending {
		go e.complete(td, hal.StatusNoDevice, nil)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ hal.Engine = (*Engine)(nil)
