package host

import (
	"time"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/pkg"
)

// TransferStatus is the completion status of a Transfer returned by
// [AsyncGroup.WaitAny].
type TransferStatus int

// Transfer status values.
const (
	TransferSuccess   TransferStatus = iota // Completed without error
	TransferError                           // Failed (I/O error)
	TransferTimeout                         // Timed out
	TransferCancelled                       // Cancelled
	TransferStall                           // Endpoint stalled or request not supported
	TransferNoDevice                        // Device was disconnected
	TransferOverflow                        // Device sent more data than requested
	TransferUnknown                         // No status, not yet submitted
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferSuccess:
		return "success"
	case TransferError:
		return "error"
	case TransferTimeout:
		return "timeout"
	case TransferCancelled:
		return "cancelled"
	case TransferStall:
		return "stall"
	case TransferNoDevice:
		return "no device"
	case TransferOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Transfer is an asynchronous transfer that is not currently pending.
//
// It specifies the data necessary to perform a transfer on a specified
// endpoint, and holds the result of a completed transfer. A completed
// Transfer can be resubmitted. While a Transfer is pending inside an
// [AsyncGroup] the engine owns its descriptor and buffer; the value
// handed to Submit is detached and must not be used again.
type Transfer struct {
	handle *Handle
	td     *hal.TransferDescriptor
	buf    []byte
}

// newTransfer builds an unsubmitted transfer over the given buffer.
// The buffer's capacity is clipped to its length so the engine never
// sees slack capacity as usable length.
func newTransfer(h *Handle, endpoint uint8, typ hal.TransferType, buf []byte, timeout time.Duration) (*Transfer, error) {
	if err := h.live(); err != nil {
		return nil, err
	}
	td, err := h.eng.AllocTransfer()
	if err != nil {
		return nil, err
	}

	buf = buf[:len(buf):len(buf)]
	td.Endpoint = endpoint
	td.Type = typ
	td.Timeout = uint32(timeout / time.Millisecond)
	td.Buffer = buf
	td.Status = hal.StatusPending
	td.ActualLength = 0

	return &Transfer{handle: h, td: td, buf: buf}, nil
}

// Bulk creates an asynchronous bulk transfer, but does not submit it.
// The buffer length determines the request size.
func Bulk(h *Handle, endpoint uint8, buf []byte, timeout time.Duration) (*Transfer, error) {
	return newTransfer(h, endpoint, hal.TransferBulk, buf, timeout)
}

// Interrupt creates an asynchronous interrupt transfer, but does not
// submit it.
func Interrupt(h *Handle, endpoint uint8, buf []byte, timeout time.Duration) (*Transfer, error) {
	return newTransfer(h, endpoint, hal.TransferInterrupt, buf, timeout)
}

// Control creates an asynchronous control transfer, but does not submit
// it. The 8-byte SETUP packet encoding (requestType, request, value,
// index, len(buf)) is prepended to buf; the combined buffer is what gets
// submitted.
func Control(h *Handle, endpoint uint8, buf []byte, requestType, request uint8, value, index uint16, timeout time.Duration) (*Transfer, error) {
	setup := hal.SetupPacket{
		RequestType: requestType,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      uint16(len(buf)),
	}

	combined := make([]byte, hal.SetupPacketSize+len(buf))
	setup.MarshalTo(combined)
	copy(combined[hal.SetupPacketSize:], buf)

	return newTransfer(h, endpoint, hal.TransferControl, combined, timeout)
}

// Endpoint returns the endpoint address of the transfer.
func (t *Transfer) Endpoint() uint8 {
	return t.td.Endpoint
}

// Timeout returns the transfer timeout.
func (t *Transfer) Timeout() time.Duration {
	return time.Duration(t.td.Timeout) * time.Millisecond
}

// Status returns the status of a completed transfer.
func (t *Transfer) Status() TransferStatus {
	switch t.td.Status {
	case hal.StatusCompleted:
		return TransferSuccess
	case hal.StatusError:
		return TransferError
	case hal.StatusTimedOut:
		return TransferTimeout
	case hal.StatusCancelled:
		return TransferCancelled
	case hal.StatusStall:
		return TransferStall
	case hal.StatusNoDevice:
		return TransferNoDevice
	case hal.StatusOverflow:
		return TransferOverflow
	default:
		return TransferUnknown
	}
}

// Buffer returns the full owned buffer of the transfer, including the
// SETUP packet for control transfers.
func (t *Transfer) Buffer() []byte {
	return t.buf
}

// SetBuffer replaces the owned buffer and updates the descriptor,
// resetting the actual length to 0. Only valid while the transfer is
// not submitted; replacing the buffer of a pending transfer would
// corrupt in-flight engine state.
func (t *Transfer) SetBuffer(buf []byte) {
	buf = buf[:len(buf):len(buf)]
	t.td.Buffer = buf
	t.td.ActualLength = 0
	t.buf = buf
}

// Actual returns the slice of the buffer containing data received in
// the data phase. For control transfers the slice begins past the
// echoed SETUP packet.
func (t *Transfer) Actual() []byte {
	offset := 0
	if t.td.Type == hal.TransferControl {
		offset = hal.SetupPacketSize
	}
	return t.buf[offset : offset+int(t.td.ActualLength)]
}

// Close releases the transfer's descriptor. It must not be called on a
// transfer that was successfully submitted and has not yet been
// returned from WaitAny; the value handed to Submit is detached, so
// calling Close on it after submission is a safe no-op.
func (t *Transfer) Close() error {
	if t.td == nil {
		return nil
	}
	t.handle.eng.FreeTransfer(t.td)
	t.td = nil
	t.buf = nil
	return nil
}

// detach surrenders ownership of the descriptor, leaving the Transfer
// value inert. Any later accessor use fails fast on the nil descriptor
// instead of aliasing engine-owned state.
func (t *Transfer) detach() *hal.TransferDescriptor {
	td := t.td
	t.td = nil
	t.buf = nil
	return td
}

// submittable returns the descriptor if the transfer can be submitted,
// or an error describing why it cannot.
func (t *Transfer) submittable() (*hal.TransferDescriptor, error) {
	if t == nil || t.td == nil {
		return nil, pkg.ErrInvalidParam
	}
	if err := t.handle.live(); err != nil {
		return nil, err
	}
	return t.td, nil
}
