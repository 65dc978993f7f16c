//go:build linux

package usbfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/pkg"
)

// eventPollInterval bounds a single ppoll wait so context cancellation
// is noticed even when no transfer carries a deadline.
const eventPollInterval = 500 * time.Millisecond

// =============================================================================
// Engine
// =============================================================================

// entry tracks one submitted descriptor.
type entry struct {
	td       *hal.TransferDescriptor
	u        *urb
	deadline time.Time // zero if the transfer has no timeout
	timedOut bool      // deadline expired; URB discarded by the reaper
}

// Engine implements hal.Engine over the Linux usbfs async URB interface
// (/dev/bus/usb device nodes).
//
// usbfs has no per-URB timeout, so the engine enforces descriptor
// timeouts itself: the event loop discards URBs whose deadline has
// passed, and their completions surface as hal.StatusTimedOut.
type Engine struct {
	fd int

	mu       sync.Mutex
	inflight map[*urb]*entry
	byTD     map[*hal.TransferDescriptor]*urb
	closed   bool
}

// Open opens the USB device node at path (for example
// /dev/bus/usb/001/004) and returns an engine bound to it.
func Open(path string) (*Engine, error) {
	fd, err := openDevice(path)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return nil, pkg.FromErrno(errno)
		}
		return nil, err
	}

	pkg.LogInfo(pkg.ComponentEngine, "usbfs engine opened", "path", path, "fd", fd)
	return &Engine{
		fd:       fd,
		inflight: make(map[*urb]*entry),
		byTD:     make(map[*hal.TransferDescriptor]*urb),
	}, nil
}

// Close closes the device node. All pending transfers must have been
// drained first (the coordinator's cancel path does this).
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for u := range e.inflight {
		discardURB(e.fd, u)
	}
	e.mu.Unlock()

	return unix.Close(e.fd)
}

// AllocTransfer allocates a transfer descriptor.
func (e *Engine) AllocTransfer() (*hal.TransferDescriptor, error) {
	return &hal.TransferDescriptor{Status: hal.StatusPending}, nil
}

// FreeTransfer releases a descriptor. Descriptors are garbage
// collected; this only exists to satisfy the engine contract.
func (e *Engine) FreeTransfer(td *hal.TransferDescriptor) {}

// Submit hands the descriptor to the kernel as an async URB.
func (e *Engine) Submit(td *hal.TransferDescriptor) error {
	typ := urbType(td.Type)
	if typ < 0 {
		return pkg.ErrNotSupported
	}

	u := &urb{
		typ:          uint8(typ),
		endpoint:     td.Endpoint,
		bufferLength: int32(len(td.Buffer)),
	}
	if len(td.Buffer) > 0 {
		u.buffer = uintptr(unsafe.Pointer(&td.Buffer[0]))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return pkg.ErrNoDevice
	}
	if _, ok := e.byTD[td]; ok {
		return pkg.ErrBusy
	}

	if errno := submitURB(e.fd, u); errno != 0 {
		return pkg.FromErrno(errno)
	}

	ent := &entry{td: td, u: u}
	if td.Timeout > 0 {
		ent.deadline = time.Now().Add(time.Duration(td.Timeout) * time.Millisecond)
	}
	e.inflight[u] = ent
	e.byTD[td] = u

	pkg.LogDebug(pkg.ComponentEngine, "urb submitted",
		"endpoint", td.Endpoint, "type", td.Type.String(), "length", len(td.Buffer))
	return nil
}

// Cancel discards a pending URB. The URB still completes through the
// reap path with a cancelled status. Cancelling a descriptor that
// already completed is a no-op.
func (e *Engine) Cancel(td *hal.TransferDescriptor) error {
	e.mu.Lock()
	u, ok := e.byTD[td]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	switch errno := discardURB(e.fd, u); errno {
	case 0:
		return nil
	case unix.EINVAL:
		// Already completed; its reap is on the way.
		return nil
	default:
		return pkg.FromErrno(errno)
	}
}

// ProcessEvents reaps completed URBs until completed is nonzero. It
// returns promptly if the flag is already set, and may return after
// processing events unrelated to the caller's flag.
func (e *Engine) ProcessEvents(ctx context.Context, completed *atomic.Int32) error {
	for {
		if completed.Load() != 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		u, errno := reapURBNDelay(e.fd)
		switch errno {
		case 0:
			e.finalize(u)
			continue
		case unix.EAGAIN:
			// Nothing reapable; fall through to wait.
		case unix.EINTR:
			continue
		case unix.ENODEV:
			return e.deviceGone()
		default:
			return pkg.FromErrno(errno)
		}

		wait := e.nextWait()
		ts := unix.NsecToTimespec(wait.Nanoseconds())
		if _, err := pollReapable(e.fd, &ts); err != nil && err != unix.EINTR {
			if err == unix.ENODEV {
				return e.deviceGone()
			}
			if errno, ok := err.(unix.Errno); ok {
				return pkg.FromErrno(errno)
			}
			return err
		}

		e.expireDeadlines()
	}
}

// nextWait computes how long the event loop may sleep: until the
// nearest transfer deadline, capped by the poll interval.
func (e *Engine) nextWait() time.Duration {
	wait := eventPollInterval

	e.mu.Lock()
	now := time.Now()
	for _, ent := range e.inflight {
		if ent.deadline.IsZero() || ent.timedOut {
			continue
		}
		if d := ent.deadline.Sub(now); d < wait {
			wait = d
		}
	}
	e.mu.Unlock()

	if wait < 0 {
		wait = 0
	}
	return wait
}

// expireDeadlines discards URBs whose deadline has passed. Each one
// still completes through the reap path; finalize reports it as timed
// out rather than cancelled.
func (e *Engine) expireDeadlines() {
	e.mu.Lock()
	now := time.Now()
	var expired []*urb
	for u, ent := range e.inflight {
		if !ent.deadline.IsZero() && !ent.timedOut && now.After(ent.deadline) {
			ent.timedOut = true
			expired = append(expired, u)
		}
	}
	e.mu.Unlock()

	for _, u := range expired {
		discardURB(e.fd, u)
	}
}

// finalize completes a reaped URB: translates its status, fills the
// descriptor, and delivers the completion callback.
func (e *Engine) finalize(u *urb) {
	e.mu.Lock()
	ent, ok := e.inflight[u]
	if ok {
		delete(e.inflight, u)
		delete(e.byTD, ent.td)
	}
	e.mu.Unlock()

	if !ok {
		pkg.LogWarn(pkg.ComponentEngine, "reaped urb with no inflight entry",
			"endpoint", u.endpoint, "status", u.status)
		return
	}

	td := ent.td
	td.Status = urbStatus(u.status, ent.timedOut)
	td.ActualLength = u.actualLength

	if td.Callback != nil {
		td.Callback(td)
	}
}

// deviceGone unwinds every inflight URB after ENODEV: the kernel has
// already detached them, so completions can only come from us.
func (e *Engine) deviceGone() error {
	e.mu.Lock()
	entries := make([]*entry, 0, len(e.inflight))
	for u, ent := range e.inflight {
		entries = append(entries, ent)
		delete(e.inflight, u)
		delete(e.byTD, ent.td)
	}
	e.mu.Unlock()

	if len(entries) == 0 {
		return pkg.ErrNoDevice
	}

	pkg.LogWarn(pkg.ComponentEngine, "device disconnected with urbs inflight",
		"count", len(entries))
	for _, ent := range entries {
		ent.td.Status = hal.StatusNoDevice
		ent.td.ActualLength = 0
		if ent.td.Callback != nil {
			ent.td.Callback(ent.td)
		}
	}
	return nil
}

// urbStatus translates a reaped URB's negative-errno status into a
// descriptor status code.
func urbStatus(status int32, timedOut bool) int32 {
	switch -status {
	case 0:
		return hal.StatusCompleted
	case int32(unix.ECONNRESET), int32(unix.ENOENT):
		// Discarded URBs report ECONNRESET (async discard) or ENOENT
		// (synchronous kill); distinguish our own deadline discards.
		if timedOut {
			return hal.StatusTimedOut
		}
		return hal.StatusCancelled
	case int32(unix.EPIPE):
		return hal.StatusStall
	case int32(unix.ENODEV), int32(unix.ESHUTDOWN):
		return hal.StatusNoDevice
	case int32(unix.EOVERFLOW):
		return hal.StatusOverflow
	case int32(unix.ETIMEDOUT), int32(unix.ETIME):
		return hal.StatusTimedOut
	default:
		return hal.StatusError
	}
}

// Verify interface compliance at compile time.
var _ hal.Engine = (*Engine)(nil)
