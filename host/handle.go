package host

import (
	"sync/atomic"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/pkg"
)

// Handle represents an open device connection backed by an engine.
//
// The handle borrows the engine; closing the handle does not shut the
// engine down, it only fences off further transfer construction and
// submission. Every Transfer and AsyncGroup built against a handle must
// be drained before the engine itself is closed.
type Handle struct {
	eng    hal.Engine
	closed atomic.Bool
}

// NewHandle wraps an engine in a device handle.
func NewHandle(eng hal.Engine) *Handle {
	return &Handle{eng: eng}
}

// Engine returns the engine backing this handle.
func (h *Handle) Engine() hal.Engine {
	return h.eng
}

// Close marks the handle closed. Transfers can no longer be built
// against or submitted through it.
func (h *Handle) Close() error {
	h.closed.Store(true)
	return nil
}

// Closed reports whether the handle has been closed.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// live returns ErrNoDevice if the handle has been closed.
func (h *Handle) live() error {
	if h == nil || h.closed.Load() {
		return pkg.ErrNoDevice
	}
	return nil
}
