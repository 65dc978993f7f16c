package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/pkg"
)

// completionState holds the data touched by the engine's completion
// callback. It is allocated separately from the AsyncGroup so its
// address stays stable for the lifetime of every pending descriptor
// that references it through UserData.
type completionState struct {
	// mu guards completed.
	mu sync.Mutex

	// completed holds descriptors that have completed but have not yet
	// been returned from WaitAny, in completion order.
	completed *queue.Queue

	// flag signals a completion to avoid the race between the callback
	// firing and ProcessEvents beginning to block. It is set under mu
	// but deliberately readable and resettable without it: the engine's
	// blocking event primitive only needs a monotonic wake hint.
	flag atomic.Int32
}

// enqueue is the engine completion callback. Careful: the engine may
// invoke this on any thread. It must never block beyond the queue lock.
func (s *completionState) enqueue(td *hal.TransferDescriptor) {
	s.mu.Lock()
	s.completed.Add(td)
	s.flag.Store(1)
	s.mu.Unlock()
}

// AsyncGroup manages outstanding asynchronous transfers against one
// engine.
//
// An AsyncGroup is owned by a single goroutine; Submit, WaitAny,
// CancelAll, and Close must not be called concurrently.
type AsyncGroup struct {
	handle *Handle
	eng    hal.Engine

	// state is touched by the completion callback from engine threads.
	state *completionState

	// pending tracks submitted descriptors so they can be cancelled on
	// teardown. A descriptor is pending at most once.
	pending map[*hal.TransferDescriptor]struct{}
}

// NewAsyncGroup creates an AsyncGroup to process transfers for the
// given device handle.
func NewAsyncGroup(h *Handle) *AsyncGroup {
	return &AsyncGroup{
		handle: h,
		eng:    h.Engine(),
		state: &completionState{
			completed: queue.New(),
		},
		pending: make(map[*hal.TransferDescriptor]struct{}),
	}
}

// Pending returns the number of transfers currently pending in the
// engine.
func (g *AsyncGroup) Pending() int {
	return len(g.pending)
}

// Submit starts a transfer.
//
// On success the descriptor and buffer are owned by the engine until
// the transfer is returned from [AsyncGroup.WaitAny]; the Transfer
// value is detached and must not be used again. On error the transfer
// is not tracked and remains with the caller.
func (g *AsyncGroup) Submit(t *Transfer) error {
	td, err := t.submittable()
	if err != nil {
		return err
	}

	td.UserData = g.state
	td.Callback = g.state.enqueue
	td.Status = hal.StatusPending
	td.ActualLength = 0

	if err := g.eng.Submit(td); err != nil {
		td.UserData = nil
		td.Callback = nil
		return err
	}

	g.pending[td] = struct{}{}
	t.detach()

	pkg.LogDebug(pkg.ComponentGroup, "transfer submitted",
		"endpoint", td.Endpoint, "type", td.Type.String(), "pending", len(g.pending))
	return nil
}

// WaitAny waits for any pending transfer to complete, and returns it.
//
// Completions are returned in the order the engine reported them. If no
// transfers are pending, WaitAny fails immediately with
// [pkg.ErrNotFound] rather than blocking forever. Otherwise it blocks
// in the engine's event processing, bounded only by transfer timeouts
// and ctx.
func (g *AsyncGroup) WaitAny(ctx context.Context) (*Transfer, error) {
	if len(g.pending) == 0 {
		return nil, pkg.ErrNotFound
	}

	var td *hal.TransferDescriptor
	for {
		g.state.mu.Lock()
		if g.state.completed.Length() > 0 {
			td = g.state.completed.Remove().(*hal.TransferDescriptor)
			g.state.mu.Unlock()
			break
		}
		// Clear the wake hint before releasing the lock: a callback
		// that lands after this point sets it again, so the engine
		// primitive below cannot miss it.
		g.state.flag.Store(0)
		g.state.mu.Unlock()

		if err := g.eng.ProcessEvents(ctx, &g.state.flag); err != nil {
			return nil, err
		}
		// The primitive may wake for unrelated reasons; re-check the
		// queue.
	}

	if _, ok := g.pending[td]; !ok {
		// An engine/coordinator invariant is broken (descriptor reused
		// after free, or delivered to the wrong group). Continuing
		// risks silent data corruption.
		panic("usbasync: completion for a transfer that was not pending")
	}
	delete(g.pending, td)

	pkg.LogDebug(pkg.ComponentGroup, "transfer completed",
		"endpoint", td.Endpoint, "status", td.Status, "actual", td.ActualLength)

	return &Transfer{handle: g.handle, td: td, buf: td.Buffer}, nil
}

// CancelAll cancels all pending transfers and drains their completions,
// discarding received data and errors on transfers that completed but
// were never collected by WaitAny. The pending set is empty when
// CancelAll returns nil.
func (g *AsyncGroup) CancelAll(ctx context.Context) error {
	for td := range g.pending {
		if err := g.eng.Cancel(td); err != nil {
			return err
		}
	}

	// Cancellation is asynchronous: every cancelled descriptor still
	// completes through the normal path, as do any that raced to a real
	// completion before the cancel landed.
	for len(g.pending) > 0 {
		t, err := g.WaitAny(ctx)
		if err != nil {
			return err
		}
		t.Close()
	}

	return nil
}

// Close tears the group down with best-effort cleanup: cancellation
// failures are reported but the group is still unusable afterwards.
// The group must not be abandoned with transfers pending, since their
// descriptors reference the group's completion state.
func (g *AsyncGroup) Close() error {
	err := g.CancelAll(context.Background())
	if err != nil {
		pkg.LogWarn(pkg.ComponentGroup, "cancel on close failed",
			"error", err, "pending", len(g.pending))
	}
	return err
}
