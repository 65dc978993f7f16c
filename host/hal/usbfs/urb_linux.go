//go:build linux

package usbfs

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/usbasync/host/hal"
)

// =============================================================================
// URB (USB Request Block) Structures
// =============================================================================

// urb represents a USB Request Block for async I/O.
// This must match the kernel's struct usbdevfs_urb layout.
type urb struct {
	typ          uint8   // URB type (control, bulk, interrupt, iso)
	endpoint     uint8   // Endpoint address
	status       int32   // URB status after completion (negative errno)
	flags        uint32  // URB flags
	buffer       uintptr // Pointer to data buffer
	bufferLength int32   // Length of data buffer
	actualLength int32   // Actual bytes transferred
	startFrame   int32   // Start frame for ISO transfers
	streamID     uint32  // Stream ID for USB 3.0 bulk streams
	errorCount   int32   // Error count for ISO transfers
	signr        uint32  // Signal number for async notification
	userContext  uintptr // User context pointer
}

// URB transfer types for USBDEVFS_SUBMITURB.
const (
	urbTypeISO       = 0 // Isochronous
	urbTypeInterrupt = 1 // Interrupt
	urbTypeControl   = 2 // Control
	urbTypeBulk      = 3 // Bulk
)

// =============================================================================
// Syscall Wrappers
// =============================================================================

// openDevice opens a USB device node for read/write access.
func openDevice(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
}

// ioctlRaw performs a raw ioctl syscall.
func ioctlRaw(fd int, req uintptr, arg uintptr) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	return errno
}

// submitURB submits a URB for asynchronous processing.
func submitURB(fd int, u *urb) unix.Errno {
	return ioctlRaw(fd, ioctlSubmitURB, uintptr(unsafe.Pointer(u)))
}

// reapURBNDelay retrieves a completed URB without blocking.
// Returns EAGAIN if no URB is available.
func reapURBNDelay(fd int) (*urb, unix.Errno) {
	var urbPtr *urb
	errno := ioctlRaw(fd, ioctlReapURBNDelay, uintptr(unsafe.Pointer(&urbPtr)))
	if errno != 0 {
		return nil, errno
	}
	return urbPtr, 0
}

// discardURB cancels a pending URB. The URB still completes and must be
// reaped; its status reports the cancellation.
func discardURB(fd int, u *urb) unix.Errno {
	return ioctlRaw(fd, ioctlDiscardURB, uintptr(unsafe.Pointer(u)))
}

// pollReapable waits until the device has reapable URBs, or the timeout
// elapses. A nil timeout blocks indefinitely. Returns the number of
// ready events (0 on timeout).
func pollReapable(fd int, timeout *unix.Timespec) (int, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Ppoll(fds, timeout, nil)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// URB Helpers
// =============================================================================

// urbType maps a descriptor transfer type to the usbfs URB type.
// Returns -1 for types this backend cannot submit.
func urbType(typ hal.TransferType) int {
	switch typ {
	case hal.TransferControl:
		return urbTypeControl
	case hal.TransferIsochronous:
		return urbTypeISO
	case hal.TransferBulk:
		return urbTypeBulk
	case hal.TransferInterrupt:
		return urbTypeInterrupt
	default:
		return -1
	}
}
