package hal

import (
	"context"
	"sync/atomic"
)

// TransferType indicates the type of USB transfer.
type TransferType uint8

// Transfer type constants.
const (
	TransferControl     TransferType = 0 // Control transfer
	TransferIsochronous TransferType = 1 // Isochronous transfer
	TransferBulk        TransferType = 2 // Bulk transfer
	TransferInterrupt   TransferType = 3 // Interrupt transfer
)

// String returns a human-readable transfer type name.
func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "control"
	case TransferIsochronous:
		return "isochronous"
	case TransferBulk:
		return "bulk"
	case TransferInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Raw completion status codes written by the engine into a descriptor.
const (
	StatusPending   int32 = -1 // Not yet submitted, or still in flight
	StatusCompleted int32 = 0  // Completed without error
	StatusError     int32 = 1  // Failed (I/O error)
	StatusTimedOut  int32 = 2  // Timed out
	StatusCancelled int32 = 3  // Cancelled
	StatusStall     int32 = 4  // Endpoint stalled or request not supported
	StatusNoDevice  int32 = 5  // Device was disconnected
	StatusOverflow  int32 = 6  // Device sent more data than requested
)

// TransferDescriptor describes one asynchronous transfer handed to an
// engine. The engine owns the descriptor from Submit until it invokes
// Callback; during that window the engine is the sole mutator of Status
// and ActualLength, and the buffer must not be touched by the caller.
type TransferDescriptor struct {
	// Endpoint is the endpoint address (0x00-0x0F OUT, 0x80-0x8F IN).
	Endpoint uint8

	// Type is the transfer type.
	Type TransferType

	// Timeout is the transfer timeout in milliseconds (0 = no timeout),
	// enforced by the engine.
	Timeout uint32

	// Buffer is the transfer data buffer. For control transfers the
	// first 8 bytes hold the SETUP packet.
	Buffer []byte

	// Status is the raw completion status, valid after Callback fires.
	Status int32

	// ActualLength is the number of bytes transferred in the data phase.
	ActualLength int32

	// Callback is invoked by the engine exactly once per submission,
	// possibly from a thread the submitter does not control.
	Callback func(*TransferDescriptor)

	// UserData is an opaque value for the submitter; the engine must
	// carry it through completion untouched.
	UserData any
}

// SetupPacket represents a USB SETUP packet.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes in the data phase
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf in wire order (little-endian
// multi-byte fields). Returns the number of bytes written (8), or 0 if
// buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// Engine is the event-processing engine driven by the coordination core.
//
// Submit and Cancel are expected to be fast and non-blocking; only
// ProcessEvents may block the calling thread.
type Engine interface {
	// AllocTransfer allocates a transfer descriptor.
	AllocTransfer() (*TransferDescriptor, error)

	// FreeTransfer releases a descriptor. The descriptor must not be
	// pending in the engine.
	FreeTransfer(td *TransferDescriptor)

	// Submit hands a descriptor to the engine. On success the engine
	// owns the descriptor until its Callback fires; on error the
	// descriptor is untouched and remains with the caller.
	Submit(td *TransferDescriptor) error

	// Cancel requests asynchronous cancellation of a pending descriptor.
	// The descriptor still completes through its Callback, with
	// StatusCancelled unless it raced to a real completion first.
	Cancel(td *TransferDescriptor) error

	// ProcessEvents blocks processing engine events until completed is
	// nonzero. It must return promptly if completed is already set at
	// call time, and may return before the flag is set when an
	// unrelated event was processed.
	ProcessEvents(ctx context.Context, completed *atomic.Int32) error
}
