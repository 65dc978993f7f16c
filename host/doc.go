// Package host implements asynchronous USB transfer coordination.
//
// A [Transfer] describes one bulk, interrupt, or control transfer and
// owns its data buffer. An [AsyncGroup] coordinates any number of
// concurrently pending transfers against one engine: Submit hands a
// transfer to the engine, WaitAny blocks until any pending transfer
// completes and returns it, and CancelAll unwinds everything that is
// still in flight.
//
//	group := host.NewAsyncGroup(handle)
//	defer group.Close()
//
//	t, _ := host.Bulk(handle, 0x81, make([]byte, 64), time.Second)
//	if err := group.Submit(t); err != nil {
//	    // transfer still belongs to the caller
//	}
//	done, err := group.WaitAny(ctx)
//
// An AsyncGroup is owned by a single goroutine: Submit, WaitAny, and
// CancelAll must not be called concurrently. The completion path from
// the engine is the only cross-thread traffic, and it is confined to
// the group's internal completion queue.
package host
